package logging

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sudorandom/physio-stream/pkg/config"
)

func TestSetupWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "physio.log")
	closer := Setup(config.LogConfig{File: path, MaxSizeMB: 1})
	defer log.SetOutput(os.Stderr)

	log.Printf("Shed %d queued points for %s", 1500, "heart")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "Shed 1500 queued points for heart") {
		t.Errorf("Expected message in log file, got %q", data)
	}
	if log.Flags()&log.Lmicroseconds == 0 {
		t.Error("Expected microsecond timestamps")
	}
}

func TestSetupStderrOnly(t *testing.T) {
	closer := Setup(config.LogConfig{})
	if err := closer.Close(); err != nil {
		t.Errorf("Expected no-op close, got %v", err)
	}
}
