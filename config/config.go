// Package config holds the hyperparameters of a training run and parses them
// from command-line flags.
package config

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Checkpoint encodings accepted by --checkpointFormat.
const (
	CheckpointFormatProto = "proto"
	CheckpointFormatJSON  = "json"
)

// Config is the hyperparameter set of one run. It is not modified after Parse.
type Config struct {
	LearningRate   float64
	StageNum       int
	BatchSize      int
	SampleNum      int
	PatchSize      int
	MeasurementNum int
	AngResolution  int
	ChannelNum     int
	EpochNum       int
	SummaryPath    string
	DataPath       string

	Seed             int64
	ModelDir         string
	WorkDir          string
	CheckpointFormat string
	Resume           string
	HaltOnNonFinite  bool
	Progress         bool
	PlotServer       string
}

// Default returns the configuration used when no flags are given.
func Default() *Config {
	return &Config{
		LearningRate:     6e-5,
		StageNum:         6,
		BatchSize:        3,
		SampleNum:        100,
		PatchSize:        32,
		MeasurementNum:   2,
		AngResolution:    7,
		ChannelNum:       1,
		EpochNum:         10000,
		SummaryPath:      "./",
		DataPath:         "../LFData/train_LFCA_Kalantari.lfd",
		Seed:             1,
		ModelDir:         "./model",
		WorkDir:          ".",
		CheckpointFormat: CheckpointFormatProto,
	}
}

// NewFlagSet binds every field of cfg to a flag, using the current values as defaults.
func NewFlagSet(name string, cfg *Config) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	fs.Float64Var(&cfg.LearningRate, "learningRate", cfg.LearningRate, "Learning rate")
	fs.IntVar(&cfg.StageNum, "stageNum", cfg.StageNum, "The number of stages")
	fs.IntVar(&cfg.BatchSize, "batchSize", cfg.BatchSize, "Batch size")
	fs.IntVar(&cfg.SampleNum, "sampleNum", cfg.SampleNum, "The number of LF in training set")
	fs.IntVar(&cfg.PatchSize, "patchSize", cfg.PatchSize, "The size of cropped LF patch")
	fs.IntVar(&cfg.MeasurementNum, "measurementNum", cfg.MeasurementNum, "The number of measurements")
	fs.IntVar(&cfg.AngResolution, "angResolution", cfg.AngResolution, "The angular resolution of original LF")
	fs.IntVar(&cfg.ChannelNum, "channelNum", cfg.ChannelNum, "The number of channels of input LF")
	fs.IntVar(&cfg.EpochNum, "epochNum", cfg.EpochNum, "The number of epochs")
	fs.StringVar(&cfg.SummaryPath, "summaryPath", cfg.SummaryPath, "Path for saving training log")
	fs.StringVar(&cfg.DataPath, "dataPath", cfg.DataPath, "Path for loading training data")

	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed for initialization, shuffling and cropping")
	fs.StringVar(&cfg.ModelDir, "modelDir", cfg.ModelDir, "Directory for the model checkpoint")
	fs.StringVar(&cfg.WorkDir, "workDir", cfg.WorkDir, "Directory for the training log and loss plot")
	fs.StringVar(&cfg.CheckpointFormat, "checkpointFormat", cfg.CheckpointFormat, "Checkpoint encoding: proto or json")
	fs.StringVar(&cfg.Resume, "resume", cfg.Resume, "Checkpoint to load weights from before training")
	fs.BoolVar(&cfg.HaltOnNonFinite, "haltOnNonFinite", cfg.HaltOnNonFinite, "Stop training when the loss becomes NaN or Inf")
	fs.BoolVar(&cfg.Progress, "progress", cfg.Progress, "Show a per-epoch progress bar on stderr")
	fs.StringVar(&cfg.PlotServer, "plotServer", cfg.PlotServer, "URL of a plotting sidecar to post the loss curve to")

	return fs
}

// Parse reads flags from args (without the program name). Values are only
// type-checked; a bad batch size or patch size surfaces when the dataset is
// built. flag.ErrHelp is returned unchanged for -h.
func Parse(args []string, output io.Writer) (*Config, error) {
	cfg := Default()
	fs := NewFlagSet("lfca-train", cfg)
	if output != nil {
		fs.SetOutput(output)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	switch cfg.CheckpointFormat {
	case CheckpointFormatProto, CheckpointFormatJSON:
	default:
		return nil, fmt.Errorf("unknown checkpoint format %q", cfg.CheckpointFormat)
	}
	return cfg, nil
}

// CheckpointPath is the single checkpoint slot, overwritten every epoch.
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.ModelDir, fmt.Sprintf("lfca_measure%d.pth", c.MeasurementNum))
}

// LogPath is the training log, appended to across runs.
func (c *Config) LogPath() string {
	return filepath.Join(c.WorkDir, fmt.Sprintf("Training_%d.log", c.MeasurementNum))
}

// PlotPath is the loss plot image, overwritten every epoch.
func (c *Config) PlotPath() string {
	return filepath.Join(c.WorkDir, fmt.Sprintf("Training_%d.jpg", c.MeasurementNum))
}

func (c *Config) String() string {
	return fmt.Sprintf("Config(learningRate=%g, stageNum=%d, batchSize=%d, sampleNum=%d, patchSize=%d, "+
		"measurementNum=%d, angResolution=%d, channelNum=%d, epochNum=%d, summaryPath=%q, dataPath=%q, "+
		"seed=%d, modelDir=%q, workDir=%q, checkpointFormat=%s, resume=%q, haltOnNonFinite=%t, progress=%t, plotServer=%q)",
		c.LearningRate, c.StageNum, c.BatchSize, c.SampleNum, c.PatchSize,
		c.MeasurementNum, c.AngResolution, c.ChannelNum, c.EpochNum, c.SummaryPath, c.DataPath,
		c.Seed, c.ModelDir, c.WorkDir, c.CheckpointFormat, c.Resume, c.HaltOnNonFinite, c.Progress, c.PlotServer)
}
