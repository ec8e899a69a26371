package training

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestLossLogAppend(t *testing.T) {
	log := NewLossLog("LFCA")
	if _, ok := log.Last(); ok {
		t.Error("Empty log should have no last entry")
	}

	log.Append(0, 0.5, 6e-5)
	log.Append(1, 0.25, 6e-6)

	if log.Len() != 2 {
		t.Fatalf("Expected 2 entries, got %d", log.Len())
	}
	last, ok := log.Last()
	if !ok || last.Epoch != 1 || last.Loss != 0.25 || last.LearningRate != 6e-6 {
		t.Errorf("Unexpected last entry %+v", last)
	}

	entries := log.Entries()
	entries[0].Loss = 99
	if log.Entries()[0].Loss != 0.5 {
		t.Error("Entries should return a copy")
	}
}

func TestTrainingCurvesPlotSkipsNonFinite(t *testing.T) {
	log := NewLossLog("LFCA")
	log.Append(0, 0.5, 6e-5)
	log.Append(1, math.NaN(), 6e-5)
	log.Append(2, 0.3, 6e-5)

	pd := log.GenerateTrainingCurvesPlot()
	if pd.PlotType != TrainingCurves || pd.Title != "Loss" {
		t.Errorf("Unexpected plot header %s/%s", pd.PlotType, pd.Title)
	}
	if pd.Config.XAxisLabel != "Epoch" || pd.Config.YAxisLabel != "Loss" {
		t.Errorf("Unexpected axis labels %s/%s", pd.Config.XAxisLabel, pd.Config.YAxisLabel)
	}
	if len(pd.Series) != 1 || len(pd.Series[0].Data) != 2 {
		t.Fatalf("Expected one series of 2 points, got %+v", pd.Series)
	}

	s, err := pd.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	var decoded PlotData
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		t.Fatalf("Plot JSON does not parse: %v", err)
	}
	if decoded.Metrics["final_loss"] != 0.3 {
		t.Errorf("Expected final_loss 0.3, got %v", decoded.Metrics["final_loss"])
	}
}

func TestLearningRateSchedulePlot(t *testing.T) {
	log := NewLossLog("LFCA")
	for epoch := 0; epoch < 10; epoch++ {
		lr := 6e-5
		if epoch >= 8 {
			lr = 6e-6
		}
		log.Append(epoch, 0.1, lr)
	}
	pd := log.GenerateLearningRateSchedulePlot()
	if pd.PlotType != LearningRateSchedule || pd.Config.YAxisScale != "log" {
		t.Errorf("Unexpected plot %s with y scale %s", pd.PlotType, pd.Config.YAxisScale)
	}
	if got := pd.Series[0].Data[9].Y; got != 6e-6 {
		t.Errorf("Expected decayed rate at epoch 9, got %v", got)
	}
}

func TestRenderLossPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "Training_2.jpg")
	log := NewLossLog("LFCA")

	// an empty history still renders axes
	if err := RenderLossPlot(log, path); err != nil {
		t.Fatalf("Failed to render empty plot: %v", err)
	}

	log.Append(0, 0.5, 6e-5)
	log.Append(1, math.Inf(1), 6e-5)
	log.Append(2, 0.2, 6e-5)
	if err := RenderLossPlot(log, path); err != nil {
		t.Fatalf("Failed to render plot: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read plot: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Error("Expected JPEG output")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("Expected the plot to be overwritten in place, found %d files", len(entries))
	}
}
