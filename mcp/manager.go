// Package mcp connects external Model Context Protocol tool servers and
// converts tool schemas into each backend's tool parameter format.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"toolchat/config"
	"toolchat/tools"
)

const protocolVersion = "2025-06-18"

// Manager owns the connections to configured tool servers. Every tool a
// server lists is registered as "<server id>.<tool name>".
type Manager struct {
	registry *tools.Registry
	logger   *slog.Logger

	mu      sync.Mutex
	servers map[string]*serverConn
}

func NewManager(registry *tools.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		registry: registry,
		logger:   logger.With("component", "mcp"),
		servers:  make(map[string]*serverConn),
	}
}

// Start connects every server. A server that fails is logged and skipped so
// the rest stay available; the failures are returned joined.
func (m *Manager) Start(ctx context.Context, servers []config.MCPServer) error {
	var errs []error
	for _, srv := range servers {
		if err := m.start(ctx, srv); err != nil {
			m.logger.Warn("tool server unavailable", "server", srv.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) start(ctx context.Context, srv config.MCPServer) error {
	m.mu.Lock()
	_, running := m.servers[srv.ID]
	m.mu.Unlock()
	if running {
		return fmt.Errorf("tool server %s already running", srv.ID)
	}

	c, cmd, err := connect(ctx, srv)
	if err != nil {
		return err
	}
	if err := m.attach(ctx, srv.ID, c, cmd); err != nil {
		(&serverConn{id: srv.ID, client: c, cmd: cmd}).close(ctx, m.logger)
		return err
	}
	return nil
}

// attach initializes a connected client, lists its tools and registers them.
func (m *Manager) attach(ctx context.Context, id string, c *client.Client, cmd *exec.Cmd) error {
	_, err := c.Initialize(ctx, mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "toolchat",
				Version: "1.0.0",
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize %s: %w", id, err)
	}

	listed, err := c.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list tools for %s: %w", id, err)
	}

	conn := &serverConn{id: id, client: c, cmd: cmd}
	for _, tool := range listed.Tools {
		name := id + "." + tool.Name
		err := m.registry.Register(tools.Tool{
			Name:        name,
			Description: tool.Description,
			Parameters:  SchemaParameters(tool.InputSchema),
			Func:        callTool(c, tool.Name),
		})
		if err != nil {
			m.logger.Warn("skipping tool", "server", id, "tool", tool.Name, "error", err)
			continue
		}
		conn.tools = append(conn.tools, tool)
	}

	m.mu.Lock()
	m.servers[id] = conn
	m.mu.Unlock()

	m.logger.Info("tool server connected", "server", id, "tools", len(conn.tools), "remote", cmd == nil)
	return nil
}

// Servers returns the ids of connected servers, sorted.
func (m *Manager) Servers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.servers))
	for id := range m.servers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close disconnects all servers in parallel. Registered tools stay in the
// registry and fail once their server is gone.
func (m *Manager) Close() error {
	m.mu.Lock()
	conns := make([]*serverConn, 0, len(m.servers))
	for _, conn := range m.servers {
		conns = append(conns, conn)
	}
	m.servers = make(map[string]*serverConn)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn.close(context.Background(), m.logger)
		}()
	}
	wg.Wait()

	m.logger.Debug("tool servers stopped", "count", len(conns))
	return nil
}

// callTool returns a tools.Func forwarding to the server's tool. Text content
// is joined with newlines; a result flagged as an error becomes a Go error.
func callTool(c *client.Client, name string) tools.Func {
	return func(ctx context.Context, args map[string]any) (any, error) {
		res, err := c.CallTool(ctx, mcptypes.CallToolRequest{
			Params: mcptypes.CallToolParams{
				Name:      name,
				Arguments: args,
			},
		})
		if err != nil {
			return nil, err
		}

		text := resultText(res)
		if res.IsError {
			if text == "" {
				text = "tool reported an error"
			}
			return nil, errors.New(text)
		}
		if text == "" && res.StructuredContent != nil {
			return res.StructuredContent, nil
		}
		return text, nil
	}
}

func resultText(res *mcptypes.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		switch c := content.(type) {
		case mcptypes.TextContent:
			parts = append(parts, c.Text)
		case *mcptypes.TextContent:
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}
