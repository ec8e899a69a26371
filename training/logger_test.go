package training

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestLoggerWritesConsoleAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Training_2.log")

	for run := 0; run < 2; run++ {
		var console bytes.Buffer
		logger, err := NewLogger(&console, path)
		if err != nil {
			t.Fatalf("Failed to create logger: %v", err)
		}
		logger.Infof("Epoch: %d Loss: %.6f", run, 0.5)
		logger.Warnf("slow")
		if err := logger.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		want := "INFO: Epoch: " + string(rune('0'+run)) + " Loss: 0.500000\nWARNING: slow\n"
		if console.String() != want {
			t.Errorf("Run %d: expected console %q, got %q", run, want, console.String())
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}
	want := "Epoch: 0 Loss: 0.500000\nslow\nEpoch: 1 Loss: 0.500000\nslow\n"
	if string(data) != want {
		t.Errorf("Expected appended log %q, got %q", want, data)
	}
}

func TestLoggerWithoutFile(t *testing.T) {
	var console bytes.Buffer
	logger, err := NewLogger(&console, "")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	logger.Infof("hello")
	if console.String() != "INFO: hello\n" {
		t.Errorf("Unexpected console output %q", console.String())
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close without a file should succeed: %v", err)
	}
}

func TestLoggerBadPath(t *testing.T) {
	if _, err := NewLogger(&bytes.Buffer{}, filepath.Join(t.TempDir(), "missing", "x.log")); err == nil {
		t.Error("Expected error for an unwritable log path")
	}
}
