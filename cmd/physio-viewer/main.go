package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/hajimehoshi/ebiten/v2"
	_ "github.com/silbinarywolf/preferdiscretegpu"

	"github.com/sudorandom/physio-stream/pkg/config"
	"github.com/sudorandom/physio-stream/pkg/feed"
	"github.com/sudorandom/physio-stream/pkg/history"
	"github.com/sudorandom/physio-stream/pkg/logging"
	"github.com/sudorandom/physio-stream/pkg/viewer"
	"github.com/sudorandom/physio-stream/pkg/waveform"
)

type CLI struct {
	Config       string `help:"YAML config file." short:"c" type:"path"`
	Feed         string `help:"Feed websocket URL. Overrides the config file."`
	History      string `help:"Badger directory for the cycle history. Overrides the config file."`
	Width        int    `help:"Internal rendering width. Overrides the config file."`
	Height       int    `help:"Internal rendering height. Overrides the config file."`
	WindowWidth  int    `help:"Initial window width." default:"1280"`
	WindowHeight int    `help:"Initial window height." default:"900"`
	TPS          int    `help:"Ticks per second (dispatcher rate)." default:"60"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("physio-viewer"),
		kong.Description("Plays back streamed physiological waveforms at an adaptive rate."))

	cfg, err := config.Load(cli.Config)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cli.Feed != "" {
		cfg.Feed.URL = cli.Feed
	}
	if cli.History != "" {
		cfg.History.Path = cli.History
	}
	if cli.Width > 0 {
		cfg.Viewer.Width = cli.Width
	}
	if cli.Height > 0 {
		cfg.Viewer.Height = cli.Height
	}

	logFile := logging.Setup(cfg.Log)
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	player := waveform.NewPlayer(cfg.Playback.WaveformConfig())

	var wg sync.WaitGroup
	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			log.Fatalf("Failed to open history database: %v", err)
		}
		defer store.Close()

		recorder := history.NewRecorder(store, cfg.History.BufferSize, config.Ms(cfg.History.FlushMs))
		player.SetCycleObserver(recorder.Observe)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := recorder.Run(ctx); err != nil {
				log.Printf("Warning: Failed to flush cycle history: %v", err)
			}
			log.Printf("Cycle history: %d written, %d dropped", recorder.Written(), recorder.Dropped())
		}()
	}

	client := feed.NewClient(cfg.Feed.URL, nil)
	client.InitialBackoff = config.Ms(cfg.Feed.InitialBackoffMs)
	client.MaxBackoff = config.Ms(cfg.Feed.MaxBackoffMs)

	controls := viewer.NewControls(player, cfg.Signals, client.SetControl)
	client.Handler = feed.PlayerHandler{Player: player, Autoregulation: controls.SetAutoregulation}
	controls.Start(time.Now())

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := client.Run(ctx); err != nil {
			log.Printf("Feed client stopped: %v", err)
		}
	}()

	game := viewer.NewGame(cfg.Viewer, player, controls, client)
	game.Quit = ctx.Done()
	ebiten.SetTPS(cli.TPS)
	ebiten.SetWindowSize(cli.WindowWidth, cli.WindowHeight)
	ebiten.SetWindowTitle("Physiological Waveform Viewer")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetRunnableOnUnfocused(true)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
	}()

	runErr := ebiten.RunGame(game)
	stop()
	wg.Wait()

	stats := client.Stats()
	log.Printf("Feed: %d messages, %d batches, %d malformed, %d reconnects", stats.Messages, stats.Batches, stats.Malformed, stats.Reconnects)
	if runErr != nil {
		log.Fatal(runErr)
	}
}
