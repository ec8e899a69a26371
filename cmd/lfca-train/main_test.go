package main

import (
	"bytes"
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tsawler/go-lfca/lightfield"
)

func writeDataset(t *testing.T, dir string) string {
	t.Helper()
	store, err := lightfield.Synthesize(lightfield.SynthOptions{
		Count:         3,
		AngResolution: 2,
		Channels:      1,
		Height:        6,
		Width:         6,
		MaxDisparity:  1,
	}, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("Failed to synthesize: %v", err)
	}
	path := filepath.Join(dir, "train.lfd")
	if err := lightfield.WriteDataset(path, store); err != nil {
		t.Fatalf("Failed to write dataset: %v", err)
	}
	return path
}

func TestRunTrains(t *testing.T) {
	dir := t.TempDir()
	args := []string{
		"-dataPath", writeDataset(t, dir),
		"-angResolution", "2",
		"-sampleNum", "3",
		"-batchSize", "2",
		"-patchSize", "4",
		"-stageNum", "1",
		"-measurementNum", "1",
		"-epochNum", "2",
		"-summaryPath", filepath.Join(dir, "runs"),
		"-modelDir", filepath.Join(dir, "model"),
		"-workDir", dir,
	}

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), args, &stdout, &stderr); code != 0 {
		t.Fatalf("Expected exit 0, got %d: %s", code, stderr.String())
	}

	if !strings.Contains(stdout.String(), "Epoch: 1 Batch: 2 Loss: ") {
		t.Errorf("Missing batch lines in %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "INFO: Config(learningRate=6e-05") {
		t.Errorf("Expected the configuration to be logged, got %q", stderr.String())
	}
	for _, name := range []string{"model/lfca_measure1.pth", "Training_1.log", "Training_1.jpg"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s: %v", name, err)
		}
	}
}

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"help", []string{"-h"}, 0},
		{"bad flag value", []string{"-batchSize", "three"}, 2},
		{"missing dataset", []string{"-dataPath", filepath.Join(dir, "none.lfd"), "-workDir", dir}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(context.Background(), tt.args, &stdout, &stderr); code != tt.want {
				t.Errorf("Expected exit %d, got %d: %s", tt.want, code, stderr.String())
			}
		})
	}
}
