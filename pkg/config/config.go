// Package config loads physio-stream settings: built-in defaults, then an
// optional YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/sudorandom/physio-stream/pkg/vitals"
	"github.com/sudorandom/physio-stream/pkg/waveform"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Feed      FeedConfig      `yaml:"feed"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Signals   SignalsConfig   `yaml:"signals"`
	Viewer    ViewerConfig    `yaml:"viewer"`
	Simulator SimulatorConfig `yaml:"simulator"`
	History   HistoryConfig   `yaml:"history"`
	Log       LogConfig       `yaml:"log"`
}

type FeedConfig struct {
	URL              string `yaml:"url"`
	InitialBackoffMs int    `yaml:"initialBackoffMs"`
	MaxBackoffMs     int    `yaml:"maxBackoffMs"`
}

// PlaybackConfig mirrors waveform.Config in file-friendly units.
type PlaybackConfig struct {
	RetentionSec     float64 `yaml:"retentionSec"`
	CompactThreshold int     `yaml:"compactThreshold"`
	MaxQueuedPoints  int     `yaml:"maxQueuedPoints"`
	ShedToPoints     int     `yaml:"shedToPoints"`
	PressureWindowMs int     `yaml:"pressureWindowMs"`
	PressureCeiling  float64 `yaml:"pressureCeiling"`
	MinSpeed         float64 `yaml:"minSpeed"`
	MaxSpeed         float64 `yaml:"maxSpeed"`
	InitialSpeed     float64 `yaml:"initialSpeed"`
	MaxPointsPerTick int     `yaml:"maxPointsPerTick"`
	ResumeStaleMs    int     `yaml:"resumeStaleMs"`
	HistorySize      int     `yaml:"historySize"`
}

type SignalsConfig struct {
	Active         []string `yaml:"active"`
	Amplitude      float64  `yaml:"amplitude"` // percent of nominal
	HeartRate      int      `yaml:"heartRate"` // bpm
	Autoregulation bool     `yaml:"autoregulation"`
}

type ViewerConfig struct {
	Width              int     `yaml:"width"`
	Height             int     `yaml:"height"`
	DisplayWindowSec   float64 `yaml:"displayWindowSec"`
	PauseWhenUnfocused bool    `yaml:"pauseWhenUnfocused"`
	ShowDiagnostics    bool    `yaml:"showDiagnostics"`
}

type SimulatorConfig struct {
	ListenAddr string `yaml:"listenAddr"`
	Path       string `yaml:"path"`
	IntervalMs int    `yaml:"intervalMs"`
	JitterMs   int    `yaml:"jitterMs"`
}

type HistoryConfig struct {
	Path       string `yaml:"path"` // empty disables persistence
	BufferSize int    `yaml:"bufferSize"`
	FlushMs    int    `yaml:"flushMs"`
}

type LogConfig struct {
	File       string `yaml:"file"` // empty logs to stderr only
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

const (
	MinAmplitude = 50.0
	MaxAmplitude = 150.0
	MinHeartRate = 20
	MaxHeartRate = 200
)

func Default() *Config {
	wf := waveform.DefaultConfig()
	return &Config{
		Feed: FeedConfig{
			URL:              "ws://localhost:8000/ws",
			InitialBackoffMs: 1000,
			MaxBackoffMs:     60000,
		},
		Playback: PlaybackConfig{
			RetentionSec:     wf.RetentionWindow,
			CompactThreshold: wf.CompactThreshold,
			MaxQueuedPoints:  wf.MaxQueuedPoints,
			ShedToPoints:     wf.ShedToPoints,
			PressureWindowMs: int(wf.PressureWindow / time.Millisecond),
			PressureCeiling:  wf.PressureCeiling,
			MinSpeed:         wf.MinSpeed,
			MaxSpeed:         wf.MaxSpeed,
			InitialSpeed:     wf.InitialSpeed,
			MaxPointsPerTick: wf.MaxPointsPerTick,
			ResumeStaleMs:    int(wf.ResumeStaleAfter / time.Millisecond),
			HistorySize:      wf.HistorySize,
		},
		Signals: SignalsConfig{
			Active:         append([]string(nil), vitals.DefaultActive...),
			Amplitude:      100,
			HeartRate:      60,
			Autoregulation: true,
		},
		Viewer: ViewerConfig{
			Width:            1280,
			Height:           900,
			DisplayWindowSec: 10,
			ShowDiagnostics:  true,
		},
		Simulator: SimulatorConfig{
			ListenAddr: ":8000",
			Path:       "/ws",
			IntervalMs: 1000,
			JitterMs:   0,
		},
		History: HistoryConfig{
			BufferSize: 256,
			FlushMs:    1000,
		},
		Log: LogConfig{
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load builds the configuration. path may be empty, in which case only the
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PHYSIO_FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
	if v := os.Getenv("PHYSIO_LISTEN_ADDR"); v != "" {
		cfg.Simulator.ListenAddr = v
	}
	if v := os.Getenv("PHYSIO_HISTORY_DB"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("PHYSIO_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func (c *Config) Validate() error {
	p := c.Playback
	switch {
	case p.RetentionSec <= 0:
		return invalid("playback.retentionSec must be positive, got %v", p.RetentionSec)
	case p.CompactThreshold < 1:
		return invalid("playback.compactThreshold must be at least 1, got %d", p.CompactThreshold)
	case p.ShedToPoints < 1 || p.ShedToPoints >= p.MaxQueuedPoints:
		return invalid("playback.shedToPoints must be in [1, maxQueuedPoints), got %d", p.ShedToPoints)
	case p.PressureWindowMs <= 0:
		return invalid("playback.pressureWindowMs must be positive, got %d", p.PressureWindowMs)
	case p.PressureCeiling <= 0:
		return invalid("playback.pressureCeiling must be positive, got %v", p.PressureCeiling)
	case p.MinSpeed <= 0 || p.MaxSpeed < p.MinSpeed:
		return invalid("playback speed bounds [%v, %v] are not usable", p.MinSpeed, p.MaxSpeed)
	case p.InitialSpeed <= 0:
		return invalid("playback.initialSpeed must be positive, got %v", p.InitialSpeed)
	case p.MaxPointsPerTick < 1:
		return invalid("playback.maxPointsPerTick must be at least 1, got %d", p.MaxPointsPerTick)
	case p.ResumeStaleMs < 0:
		return invalid("playback.resumeStaleMs must not be negative, got %d", p.ResumeStaleMs)
	case p.HistorySize < 1:
		return invalid("playback.historySize must be at least 1, got %d", p.HistorySize)
	}

	for _, id := range c.Signals.Active {
		if _, ok := vitals.Lookup(id); !ok {
			return invalid("unknown signal %q", id)
		}
	}
	if c.Signals.Amplitude < MinAmplitude || c.Signals.Amplitude > MaxAmplitude {
		return invalid("signals.amplitude must be in [%v, %v], got %v", MinAmplitude, MaxAmplitude, c.Signals.Amplitude)
	}
	if c.Signals.HeartRate < MinHeartRate || c.Signals.HeartRate > MaxHeartRate {
		return invalid("signals.heartRate must be in [%d, %d], got %d", MinHeartRate, MaxHeartRate, c.Signals.HeartRate)
	}

	if c.Feed.URL == "" {
		return invalid("feed.url is required")
	}
	if c.Feed.InitialBackoffMs <= 0 || c.Feed.MaxBackoffMs < c.Feed.InitialBackoffMs {
		return invalid("feed backoff [%d, %d]ms is not usable", c.Feed.InitialBackoffMs, c.Feed.MaxBackoffMs)
	}
	if c.Viewer.DisplayWindowSec <= 0 {
		return invalid("viewer.displayWindowSec must be positive, got %v", c.Viewer.DisplayWindowSec)
	}
	if c.Simulator.IntervalMs <= 0 || c.Simulator.JitterMs < 0 {
		return invalid("simulator interval %dms / jitter %dms is not usable", c.Simulator.IntervalMs, c.Simulator.JitterMs)
	}
	if c.History.BufferSize < 1 || c.History.FlushMs <= 0 {
		return invalid("history buffer %d / flush %dms is not usable", c.History.BufferSize, c.History.FlushMs)
	}
	return nil
}

// WaveformConfig converts the playback section for waveform.NewPlayer.
func (p PlaybackConfig) WaveformConfig() waveform.Config {
	return waveform.Config{
		RetentionWindow:  p.RetentionSec,
		CompactThreshold: p.CompactThreshold,
		MaxQueuedPoints:  p.MaxQueuedPoints,
		ShedToPoints:     p.ShedToPoints,
		PressureWindow:   time.Duration(p.PressureWindowMs) * time.Millisecond,
		PressureCeiling:  p.PressureCeiling,
		MinSpeed:         p.MinSpeed,
		MaxSpeed:         p.MaxSpeed,
		InitialSpeed:     p.InitialSpeed,
		MaxPointsPerTick: p.MaxPointsPerTick,
		ResumeStaleAfter: time.Duration(p.ResumeStaleMs) * time.Millisecond,
		HistorySize:      p.HistorySize,
	}
}

func Ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
