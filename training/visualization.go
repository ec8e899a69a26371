package training

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// PlotType represents different types of plots that can be generated
type PlotType string

const (
	TrainingCurves       PlotType = "training_curves"
	LearningRateSchedule PlotType = "learning_rate_schedule"
)

// PlotData represents the universal JSON format for the sidecar plotting service
type PlotData struct {
	// Metadata
	PlotType  PlotType  `json:"plot_type"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	ModelName string    `json:"model_name"`

	Series []SeriesData `json:"series"`

	Config PlotConfig `json:"config"`

	Metrics map[string]interface{} `json:"metrics,omitempty"`
}

// SeriesData represents a single data series in a plot
type SeriesData struct {
	Name  string                 `json:"name"`
	Type  string                 `json:"type"` // "line", "scatter"
	Data  []DataPoint            `json:"data"`
	Style map[string]interface{} `json:"style,omitempty"`
}

// DataPoint represents a single data point
type DataPoint struct {
	X     interface{} `json:"x"`
	Y     interface{} `json:"y"`
	Label string      `json:"label,omitempty"`
}

// PlotConfig contains plot-specific configuration
type PlotConfig struct {
	XAxisLabel  string `json:"x_axis_label"`
	YAxisLabel  string `json:"y_axis_label"`
	XAxisScale  string `json:"x_axis_scale"` // "linear", "log"
	YAxisScale  string `json:"y_axis_scale"` // "linear", "log"
	ShowLegend  bool   `json:"show_legend"`
	ShowGrid    bool   `json:"show_grid"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Interactive bool   `json:"interactive"`
}

// LossEntry is one epoch of the loss history.
type LossEntry struct {
	Epoch        int
	Loss         float64
	LearningRate float64
}

// LossLog is the append-only per-epoch loss history of a run. It lives in
// memory only; the rendered plot is its sole on-disk form.
type LossLog struct {
	modelName string
	entries   []LossEntry
}

// NewLossLog creates an empty loss history
func NewLossLog(modelName string) *LossLog {
	return &LossLog{modelName: modelName}
}

// Append records the mean loss of an epoch.
func (l *LossLog) Append(epoch int, loss, learningRate float64) {
	l.entries = append(l.entries, LossEntry{Epoch: epoch, Loss: loss, LearningRate: learningRate})
}

func (l *LossLog) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the history.
func (l *LossLog) Entries() []LossEntry {
	return append([]LossEntry(nil), l.entries...)
}

// Last returns the most recent entry.
func (l *LossLog) Last() (LossEntry, bool) {
	if len(l.entries) == 0 {
		return LossEntry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// GenerateTrainingCurvesPlot generates loss-vs-epoch plot data. Epochs with a
// non-finite loss are left out, since JSON cannot carry them.
func (l *LossLog) GenerateTrainingCurvesPlot() PlotData {
	series := SeriesData{
		Name: "Training Loss",
		Type: "line",
		Data: make([]DataPoint, 0, len(l.entries)),
		Style: map[string]interface{}{
			"color":      "#FF6B6B",
			"line_width": 2,
		},
	}
	for _, e := range l.entries {
		if math.IsNaN(e.Loss) || math.IsInf(e.Loss, 0) {
			continue
		}
		series.Data = append(series.Data, DataPoint{X: e.Epoch, Y: e.Loss})
	}

	pd := PlotData{
		PlotType:  TrainingCurves,
		Title:     "Loss",
		Timestamp: time.Now(),
		ModelName: l.modelName,
		Series:    []SeriesData{series},
		Config: PlotConfig{
			XAxisLabel:  "Epoch",
			YAxisLabel:  "Loss",
			XAxisScale:  "linear",
			YAxisScale:  "linear",
			ShowLegend:  true,
			ShowGrid:    true,
			Width:       800,
			Height:      600,
			Interactive: true,
		},
	}
	if last, ok := l.Last(); ok && len(series.Data) > 0 {
		pd.Metrics = map[string]interface{}{"epochs": len(l.entries)}
		if !math.IsNaN(last.Loss) && !math.IsInf(last.Loss, 0) {
			pd.Metrics["final_loss"] = last.Loss
		}
	}
	return pd
}

// GenerateLearningRateSchedulePlot generates learning rate schedule plot data
func (l *LossLog) GenerateLearningRateSchedulePlot() PlotData {
	series := SeriesData{
		Name: "Learning Rate",
		Type: "line",
		Data: make([]DataPoint, len(l.entries)),
		Style: map[string]interface{}{
			"color":      "#6C5CE7",
			"line_width": 2,
		},
	}
	for i, e := range l.entries {
		series.Data[i] = DataPoint{X: e.Epoch, Y: e.LearningRate}
	}

	return PlotData{
		PlotType:  LearningRateSchedule,
		Title:     fmt.Sprintf("Learning Rate Schedule - %s", l.modelName),
		Timestamp: time.Now(),
		ModelName: l.modelName,
		Series:    []SeriesData{series},
		Config: PlotConfig{
			XAxisLabel:  "Epoch",
			YAxisLabel:  "Learning Rate",
			XAxisScale:  "linear",
			YAxisScale:  "log",
			ShowLegend:  true,
			ShowGrid:    true,
			Width:       800,
			Height:      400,
			Interactive: true,
		},
	}
}

// ToJSON converts plot data to JSON string
func (pd PlotData) ToJSON() (string, error) {
	jsonData, err := json.MarshalIndent(pd, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal plot data to JSON: %w", err)
	}
	return string(jsonData), nil
}
