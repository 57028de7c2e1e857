package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/sudorandom/physio-stream/pkg/config"
	"github.com/sudorandom/physio-stream/pkg/logging"
	"github.com/sudorandom/physio-stream/pkg/simulator"
)

type CLI struct {
	Config   string        `help:"YAML config file." short:"c" type:"path"`
	Listen   string        `help:"Listen address. Overrides the config file."`
	Interval time.Duration `help:"Time between batches. Overrides the config file."`
	Jitter   time.Duration `help:"Random spread added to each batch delay. Overrides the config file."`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("physio-sim"),
		kong.Description("Streams simulated physiological signals over a websocket."))

	cfg, err := config.Load(cli.Config)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cli.Listen != "" {
		cfg.Simulator.ListenAddr = cli.Listen
	}
	interval := config.Ms(cfg.Simulator.IntervalMs)
	if cli.Interval > 0 {
		interval = cli.Interval
	}
	jitter := config.Ms(cfg.Simulator.JitterMs)
	if cli.Jitter > 0 {
		jitter = cli.Jitter
	}

	logFile := logging.Setup(cfg.Log)
	defer logFile.Close()

	sim := simulator.NewServer(interval, jitter)
	mux := http.NewServeMux()
	mux.Handle(cfg.Simulator.Path, sim)
	mux.HandleFunc("/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":   "alive",
			"sessions": sim.Sessions(),
			"sent":     sim.Sent(),
		})
	})

	srv := &http.Server{
		Addr:              cfg.Simulator.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Simulator listening on %s%s (interval %v, jitter %v)", cfg.Simulator.ListenAddr, cfg.Simulator.Path, interval, jitter)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
}
