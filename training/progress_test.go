package training

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/tsawler/go-lfca/model"
)

func TestProgressBar(t *testing.T) {
	var buf bytes.Buffer
	pb := NewProgressBar(&buf, "Epoch 0", 3)

	for i := 1; i <= 3; i++ {
		pb.Update(i, map[string]float64{"loss": 0.5 / float64(i)})
	}
	pb.Finish()

	out := buf.String()
	if !strings.Contains(out, "Epoch 0: 100%") {
		t.Errorf("Expected completed bar, got %q", out)
	}
	if !strings.Contains(out, "3/3") {
		t.Errorf("Expected step counter, got %q", out)
	}
	if !strings.Contains(out, "loss=0.166667") {
		t.Errorf("Expected last loss, got %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("Finish should end the line")
	}
}

func TestProgressBarZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	NewProgressBar(&buf, "Empty", 0).Finish()
	if !strings.Contains(buf.String(), "Empty:   0%") {
		t.Errorf("Unexpected output %q", buf.String())
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{65 * time.Second, "01:05"},
		{12*time.Minute + 3*time.Second, "12:03"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v): expected %s, got %s", tt.d, tt.want, got)
		}
	}
}

func TestPrintArchitecture(t *testing.T) {
	n, err := model.New(model.Options{AngResolution: 3, ChannelNum: 1, MeasurementNum: 2, StageNum: 1},
		rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Failed to create network: %v", err)
	}

	var buf bytes.Buffer
	NewModelArchitecturePrinter("LFCA").PrintArchitecture(&buf, n)
	out := buf.String()

	for _, want := range []string{"LFCA(", "(proj_init.weight): [9 2]", "(stages.0.fc1.weight): [9 18]", "Total parameters: "} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in %q", want, out)
		}
	}
}

func TestFormatParameterCount(t *testing.T) {
	tests := []struct {
		count int64
		want  string
	}{
		{722, "722"},
		{1500, "1.5K"},
		{2500000, "2.5M"},
	}
	for _, tt := range tests {
		if got := formatParameterCount(tt.count); got != tt.want {
			t.Errorf("formatParameterCount(%d): expected %s, got %s", tt.count, tt.want, got)
		}
	}
}
