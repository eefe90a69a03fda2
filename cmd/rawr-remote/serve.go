package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	gorawrremote "github.com/Keksclan/goRawrRemote"
	"github.com/Keksclan/goRawrRemote/auth"
	"github.com/Keksclan/goRawrRemote/lookup"
	"github.com/Keksclan/goRawrRemote/observe"
	"github.com/Keksclan/goRawrRemote/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var forwardAuth bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the lookup over gRPC",
	Long:  `serve exposes rawr.Entities/FindByIDs. Every call is one unit of work with its own repository; results are shared between calls only through the configured shared cache.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&forwardAuth, "forward-auth", false, "send the caller's bearer token upstream instead of the configured token")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := newApp(ctx, cfg, observe.NewMetrics(reg))
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		return err
	}
	defer a.close()

	var tokens auth.TokenProvider
	if forwardAuth {
		tokens = auth.Incoming{}
	}
	svc := lookup.NewService(func(_ context.Context, extra ...gorawrremote.Option) (*gorawrremote.Repository, error) {
		return a.repository(tokens, extra...)
	})

	g := lookup.NewServer(svc, lookup.ServerConfig{
		Logger:  slog.Default(),
		Tracing: a.tracing,
	})
	srv := server.New(g,
		server.WithAddr(cfg.Server.Addr),
		server.WithMetricsAddr(cfg.Server.MetricsAddr),
		server.WithGatherer(reg),
		server.WithLogger(slog.Default()),
	)

	slog.Info("rawr-remote started", "config", cfgPath, "base_uri", cfg.BaseURI, "resource", cfg.ResourcePath)
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server failed", "error", err)
		return err
	}
	return nil
}
