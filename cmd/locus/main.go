package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Versifine/locus/internal/client"
	"github.com/Versifine/locus/internal/config"
	"github.com/Versifine/locus/internal/conn"
	"github.com/Versifine/locus/internal/event"
	"github.com/Versifine/locus/internal/logger"
	"github.com/Versifine/locus/internal/protocol"
	"github.com/Versifine/locus/internal/proxy"
	"github.com/Versifine/locus/internal/world"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to a YAML or TOML config file")
	mode := flag.String("mode", "", "override the configured mode (proxy, client, ping)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid config", "error", err)
		os.Exit(1)
	}

	out, closeLog, err := logOutput(cfg.Logging.File)
	if err != nil {
		slog.Error("Failed to open log file", "error", err)
		os.Exit(1)
	}
	defer closeLog()
	logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: out,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Locus stopped", "mode", cfg.Mode, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	switch cfg.Mode {
	case config.ModeProxy:
		server := proxy.NewServer(cfg.ListenAddr(), cfg.BackendAddr())
		return server.Start(ctx)
	case config.ModeClient:
		return runClient(ctx, cfg)
	case config.ModePing:
		return runPing(ctx, cfg)
	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

func runClient(ctx context.Context, cfg *config.Config) error {
	blocks, err := world.LoadRegistry(cfg.Client.BlocksJSON)
	if err != nil {
		slog.Warn("Block registry unavailable, block names are unknown", "error", err)
		blocks = world.FallbackRegistry()
	}
	c := client.New(client.Config{
		Addr:         cfg.BackendAddr(),
		Username:     cfg.Client.Username,
		Version:      protocol.ProtocolVersion(cfg.Client.ProtocolVersion),
		ViewDistance: cfg.Client.ViewDistance,
		Locale:       cfg.Client.Locale,
		SkipUnknown:  cfg.Client.SkipUnknown,
	}, blocks)
	c.Bus().Subscribe(event.EventChat, event.ChatEventHandler)
	c.Bus().Subscribe(event.EventSpawn, func(any) {
		slog.Info("Spawned", "state", c.State().String())
	})
	return c.Start(ctx)
}

func runPing(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	res, err := conn.Ping(ctx, cfg.BackendAddr(), protocol.ProtocolVersion(cfg.Client.ProtocolVersion))
	if err != nil {
		return err
	}
	slog.Info("Server status",
		"address", cfg.BackendAddr(),
		"version", res.Status.Version.Name,
		"protocol", res.Status.Version.Protocol,
		"players", fmt.Sprintf("%d/%d", res.Status.Players.Online, res.Status.Players.Max),
		"motd", res.Status.MOTD(),
		"latency", res.Latency,
	)
	return nil
}

// logOutput returns stdout, or stdout and the log file when one is set.
func logOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return io.MultiWriter(os.Stdout, f), func() { _ = f.Close() }, nil
}
