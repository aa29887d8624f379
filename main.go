package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/freekieb7/staticd/config"
	"github.com/freekieb7/staticd/filesystem"
	"github.com/freekieb7/staticd/http"
	"github.com/freekieb7/staticd/telemetry"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("staticd", flag.ContinueOnError)
	var (
		configPath = flags.String("config", "", "path to a YAML config file")
		host       = flags.String("host", "", "listen host (default 0.0.0.0)")
		port       = flags.Int("port", 0, "listen port (default 7770)")
		root       = flags.String("root", "", "document root (default .)")
		workers    = flags.Int("workers", 0, "number of worker slots (default 5)")
		queue      = flags.Int("queue", -1, "max queued connections, 0 for unbounded (default 0)")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *root != "" {
		cfg.Server.DocumentRoot = *root
	}
	if *workers != 0 {
		cfg.Server.Workers = *workers
	}
	if *queue >= 0 {
		cfg.Server.QueueSize = *queue
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	logger := telemetry.NewLogger(os.Stderr, cfg.Log, cfg.Telemetry)
	slog.SetDefault(logger)

	fsys, err := filesystem.NewLocalFileSystem(cfg.Server.DocumentRoot)
	if err != nil {
		return errors.Join(err, shutdownTelemetry(context.Background()))
	}

	server := http.NewServer(cfg.Telemetry.ServiceName, http.FileHandler(fsys))
	server.Logger = logger
	server.Workers = cfg.Server.Workers
	server.QueueSize = cfg.Server.QueueSize
	server.MaxRequestLineSize = cfg.Server.MaxRequestLineSize
	server.ReadTimeout = cfg.Server.ReadTimeout
	server.WriteTimeout = cfg.Server.WriteTimeout
	server.LingerTimeout = cfg.Server.LingerTimeout
	server.ShutdownFunc = func(ctx context.Context) error {
		return errors.Join(fsys.Close(), shutdownTelemetry(ctx))
	}

	logger.Info("serving files", "root", fsys.Dir(), "addr", cfg.ServerAddress())

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe(cfg.ServerAddress())
	}()

	select {
	case err := <-serverErrCh:
		// Binding failed or the listener died: nothing is being served.
		return errors.Join(err, fsys.Close(), shutdownTelemetry(context.Background()))
	case <-ctx.Done():
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
