package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gorilla/websocket"

	"github.com/sudorandom/physio-stream/pkg/feed"
	"github.com/sudorandom/physio-stream/pkg/history"
	"github.com/sudorandom/physio-stream/pkg/vitals"
)

type CLI struct {
	URL            string        `help:"Feed websocket URL." default:"ws://localhost:8000/ws"`
	Signals        []string      `help:"Signals to request from the feed." default:"blood_pressure,brain,heart"`
	Autoregulation bool          `help:"Request autoregulation mode." default:"true" negatable:""`
	Timeout        time.Duration `help:"How long to run before exiting (0 for infinite)."`
	JSON           bool          `help:"Dump raw JSON instead of showing stats." name:"json"`
	History        string        `help:"Print the newest records of a cycle history database and exit." type:"path"`
	Limit          int           `help:"Records per channel with --history." default:"20"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("feed-probe"),
		kong.Description("Reports per-channel cadence of a physiological feed."))

	if cli.History != "" {
		if err := dumpHistory(cli.History, cli.Limit); err != nil {
			log.Fatalf("history: %v", err)
		}
		return
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	if cli.Timeout > 0 {
		go func() {
			time.Sleep(cli.Timeout)
			log.Printf("Timeout of %v reached, exiting...", cli.Timeout)
			interrupt <- os.Interrupt
		}()
	}

	log.Printf("Connecting to %s", cli.URL)
	c, _, err := websocket.DefaultDialer.Dial(cli.URL, nil)
	if err != nil {
		log.Printf("dial: %v", err)
		return
	}
	defer func() {
		_ = c.Close()
	}()

	stats := NewStats(time.Now())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := stats.Record(message, time.Now()); err != nil {
				log.Printf("%v", err)
				continue
			}
			if cli.JSON {
				var prettyJSON bytes.Buffer
				_ = json.Indent(&prettyJSON, message, "", "  ")
				fmt.Printf("%s\n\n", prettyJSON.String())
			}
		}
	}()

	ctl := feed.Control{ActiveSignals: cli.Signals, SignalParams: map[string]feed.Params{}, Autoregulation: cli.Autoregulation}
	for _, id := range cli.Signals {
		if _, ok := vitals.Lookup(id); !ok {
			log.Printf("Warning: unknown signal %q", id)
		}
		ctl.SignalParams[id] = feed.Params{Amplitude: 100, Frequency: 1}
	}
	ctlBytes, err := feed.EncodeControl(ctl)
	if err != nil {
		log.Printf("encode control: %v", err)
		return
	}
	log.Printf("Requesting: %v", cli.Signals)
	if err := c.WriteMessage(websocket.TextMessage, ctlBytes); err != nil {
		log.Printf("control error: %v", err)
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !cli.JSON {
				stats.Report(os.Stdout, time.Now())
			}
		case <-interrupt:
			log.Println("Exiting...")
			if !cli.JSON {
				stats.Report(os.Stdout, time.Now())
			}
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				return
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}

func dumpHistory(path string, limit int) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	channels, err := store.Channels()
	if err != nil {
		return err
	}
	for _, ch := range channels {
		recs, err := store.Recent(ch, limit)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%d most recent)\n", ch, len(recs))
		for _, r := range recs {
			status := ""
			if r.Rejected {
				status = " REJECTED"
			}
			fmt.Printf("  %s  %-36s  %4d pts  %8v  %7.1f pts/s  x=[%.2f, %.2f]%s\n",
				r.ReceivedAt.Format("15:04:05.000"), r.CycleID, r.Points, r.Duration.Round(time.Millisecond),
				r.Rate(), r.FirstX, r.LastX, status)
		}
	}
	return nil
}
