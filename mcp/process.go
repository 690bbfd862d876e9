package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"toolchat/config"
)

const (
	transportSSE            = "sse"
	transportStreamableHTTP = "streamable-http"

	closeTimeout = time.Second
)

// serverConn is one connected tool server. cmd is nil for remote servers.
type serverConn struct {
	id     string
	client *client.Client
	cmd    *exec.Cmd
	tools  []mcptypes.Tool
}

// connect starts a local server or opens a transport to a remote one. The
// returned client is ready for Initialize.
func connect(ctx context.Context, srv config.MCPServer) (*client.Client, *exec.Cmd, error) {
	if srv.URL != "" {
		c, err := newRemoteClient(ctx, srv)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to %s at %s: %w", srv.ID, srv.URL, err)
		}
		return c, nil, nil
	}

	c, cmd, err := newLocalClient(srv)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start %s: %w", srv.ID, err)
	}
	return c, cmd, nil
}

func newRemoteClient(ctx context.Context, srv config.MCPServer) (*client.Client, error) {
	var (
		mcpClient *client.Client
		err       error
	)

	switch srv.Transport {
	case transportStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(srv.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(srv.Headers))
		}
		mcpClient, err = client.NewStreamableHttpClient(srv.URL, opts...)
	case transportSSE, "":
		var opts []transport.ClientOption
		if len(srv.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(srv.Headers))
		}
		mcpClient, err = client.NewSSEMCPClient(srv.URL, opts...)
	default:
		return nil, fmt.Errorf("unknown transport type: %s", srv.Transport)
	}
	if err != nil {
		return nil, err
	}

	// Remote transports must be started before Initialize.
	if err := mcpClient.GetTransport().Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start %s transport: %w", transportName(srv.Transport), err)
	}
	return mcpClient, nil
}

func transportName(t string) string {
	if t == "" {
		return transportSSE
	}
	return t
}

// newLocalClient spawns the server over stdio and returns its command so it
// can be killed if a graceful close hangs.
func newLocalClient(srv config.MCPServer) (*client.Client, *exec.Cmd, error) {
	var capturedCmd *exec.Cmd

	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		capturedCmd = cmd
		return cmd, nil
	}

	mcpClient, err := client.NewStdioMCPClientWithOptions(
		srv.Command,
		serverEnv(srv.Env),
		srv.Args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return nil, nil, err
	}
	return mcpClient, capturedCmd, nil
}

// serverEnv starts from the current environment so PATH and friends survive,
// then applies the configured overrides.
func serverEnv(overrides map[string]string) []string {
	env := os.Environ()
	for k, v := range overrides {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

// close closes the client, waiting at most closeTimeout. A local process
// whose client did not close cleanly is killed.
func (s *serverConn) close(ctx context.Context, logger *slog.Logger) {
	closed := false
	if s.client != nil {
		closeCtx, cancel := context.WithTimeout(ctx, closeTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- s.client.Close()
		}()

		select {
		case err := <-done:
			if err != nil {
				logger.Warn("error closing tool server client", "server", s.id, "error", err)
			} else {
				closed = true
			}
		case <-closeCtx.Done():
			logger.Warn("timed out closing tool server client", "server", s.id)
		}
	}

	if !closed && s.cmd != nil && s.cmd.Process != nil {
		if err := s.cmd.Process.Kill(); err != nil {
			logger.Warn("failed to kill tool server process", "server", s.id, "pid", s.cmd.Process.Pid, "error", err)
		} else {
			logger.Info("killed tool server process", "server", s.id, "pid", s.cmd.Process.Pid)
		}
	}
}
