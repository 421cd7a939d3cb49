package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jonathan/cv-publisher/internal/metrics"
	"github.com/jonathan/cv-publisher/internal/publish"
	"github.com/jonathan/cv-publisher/internal/server"
	"github.com/jonathan/cv-publisher/internal/server/ratelimit"
)

var (
	serveAddr        string
	serveNoRateLimit bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start an HTTP server that publishes CVs with live progress over Server-Sent Events.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (default: configured listen_addr)")
	serveCmd.Flags().BoolVar(&serveNoRateLimit, "no-rate-limit", false, "Disable per-client rate limiting")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()
	renderer, err := newRenderer()
	if err != nil {
		return err
	}

	registry := prom.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	vercel := newVercel()
	orch := publish.New(vercel, newBuilder(renderer),
		publish.WithMonitorTimeout(cfg.MonitorTimeout.Std()),
		publish.WithRecorder(metrics.NewPrometheusRecorder(registry)),
		publish.WithLogger(logger),
	)

	limits := ratelimit.DefaultConfig()
	if serveNoRateLimit {
		limits.Enabled = false
	}
	addr := serveAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}

	srv, err := server.New(server.Config{
		Addr:         addr,
		Orchestrator: orch,
		Adapter:      vercel,
		Renderer:     renderer,
		Registry:     registry,
		Token:        cfg.Token,
		Defaults: server.PublishDefaults{
			Project:    cfg.Project,
			Template:   cfg.Template,
			IncludePDF: cfg.IncludePDF,
		},
		RateLimit: limits,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}
