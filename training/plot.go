package training

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Loss plot size on disk.
const (
	lossPlotWidth  = 6 * vg.Inch
	lossPlotHeight = 4 * vg.Inch
)

// RenderLossPlot draws history as an "Epoch" vs "Loss" line plot
// titled "Loss" and writes it to path, replacing any earlier rendering. The
// image format follows the file extension. Non-finite losses are skipped.
func RenderLossPlot(history *LossLog, path string) error {
	p := plot.New()
	p.Title.Text = "Loss"
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Loss"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, 0, history.Len())
	for _, e := range history.entries {
		if math.IsNaN(e.Loss) || math.IsInf(e.Loss, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(e.Epoch), Y: e.Loss})
	}

	if len(pts) > 0 {
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to build loss line: %w", err)
		}
		p.Add(line)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create plot directory: %w", err)
		}
	}
	if err := p.Save(lossPlotWidth, lossPlotHeight, path); err != nil {
		return fmt.Errorf("failed to save loss plot: %w", err)
	}
	return nil
}
