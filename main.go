package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"toolchat/config"
	"toolchat/mcp"
	"toolchat/provider"
	"toolchat/server"
	"toolchat/storage"
	"toolchat/tools"
)

const Version = "v0.1.0"

func main() {
	c := newCLI(os.Stdin, os.Stdout)
	parser := c.parser()
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				fmt.Println(err)
				return
			}
			fmt.Fprintf(os.Stderr, "toolchat: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "toolchat: %v\n", err)
		os.Exit(1)
	}
	if parser.Active != nil {
		return
	}

	if c.Version {
		fmt.Println("toolchat", Version)
		return
	}

	if err := run(c.Config, c.Listen); err != nil {
		fmt.Fprintf(os.Stderr, "toolchat: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, listen string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if listen != "" {
		cfg.Listen = listen
	}

	logger, logCloser, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.DataDir())
	if err != nil {
		return err
	}
	defer store.Close()

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry, cfg, store, &http.Client{Timeout: cfg.ToolTimeout.Duration}, logger); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	servers := mcp.NewManager(registry, logger)
	if err := servers.Start(ctx, cfg.MCPServers); err != nil {
		logger.Warn("some tool servers failed to start", "error", err)
	}
	defer servers.Close()

	models := provider.InitializeProviders(cfg, logger)
	if models.Len() == 0 {
		return errors.New("no usable models configured")
	}
	go checkModels(ctx, models, logger)

	invoker := tools.NewInvoker(registry, tools.WithTimeout(cfg.ToolTimeout.Duration), tools.WithLogger(logger))
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.New(models, store, invoker, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen, "models", models.Len(), "tools", registry.Len(), "version", Version)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// checkModels pings each backend once so misconfiguration shows up in the
// log at startup rather than on the first chat.
func checkModels(ctx context.Context, models *provider.Registry, logger *slog.Logger) {
	for _, info := range models.Models() {
		p, _, err := models.Resolve(info.ID)
		if err != nil {
			continue
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := p.Ping(pingCtx); err != nil {
			logger.Warn("model backend unreachable", "model", info.ID, "provider", info.Provider, "error", err)
		}
		cancel()
	}
}
