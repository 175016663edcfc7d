package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	graph "github.com/i5heu/ouroboros-graph"
	"github.com/i5heu/ouroboros-graph/internal/apiServer"
	"github.com/i5heu/ouroboros-graph/internal/config"
	"github.com/i5heu/ouroboros-graph/pkg/partition"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	conf, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	g, err := graph.New(graph.Config{
		Paths:         []string{conf.DataPath},
		MinimumFreeGB: conf.MinimumFreeGB,
		Logger:        log,
	})
	if err != nil {
		log.Error("failed to build graph", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := g.Start(ctx); err != nil {
		log.Error("failed to start graph", "error", err)
		os.Exit(1)
	}

	router, err := g.Router()
	if err != nil {
		log.Error("router unavailable", "error", err)
		os.Exit(1)
	}
	caller := partition.NewHTTPCaller(conf.Peers, nil)
	for name := range conf.Peers {
		router.AddRemote(name, caller)
	}

	srv := &http.Server{
		Addr:    conf.Listen,
		Handler: apiServer.New(router, apiServer.WithLogger(log)),
	}

	go func() {
		log.Info("listening", "addr", conf.Listen, "partition", conf.PartitionName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", "error", err)
	}
	if err := g.Close(shutdownCtx); err != nil {
		log.Warn("graph close failed", "error", err)
	}
}
