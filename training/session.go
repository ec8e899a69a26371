package training

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"

	"github.com/tsawler/go-lfca/checkpoints"
	"github.com/tsawler/go-lfca/config"
	"github.com/tsawler/go-lfca/lightfield"
	"github.com/tsawler/go-lfca/model"
	"github.com/tsawler/go-lfca/optimizer"
	"github.com/tsawler/go-lfca/tensor"
)

// ErrNonFiniteLoss is returned when a batch loss is NaN or Inf and the run
// was configured to halt on it.
var ErrNonFiniteLoss = errors.New("non-finite loss")

// SessionOptions wires a TrainingSession to its inputs and outputs.
type SessionOptions struct {
	Config *config.Config
	Store  *lightfield.Store

	// Logger receives startup and per-epoch messages. Required.
	Logger *Logger

	// Out receives the per-batch loss lines. Defaults to os.Stdout.
	Out io.Writer
}

// EpochResult summarizes one pass over the dataset.
type EpochResult struct {
	Epoch        int
	MeanLoss     float64
	BatchLosses  []float64
	PSNR         float64
	LearningRate float64
}

// TrainingSession owns the model, optimizer, scheduler and loss history of a
// run and drives them epoch by epoch. It is not safe for concurrent use.
type TrainingSession struct {
	cfg    *config.Config
	logger *Logger
	out    io.Writer

	device     tensor.DeviceType
	loader     *lightfield.DataLoader
	network    *model.Network
	optimizer  optimizer.Optimizer
	scheduler  LRScheduler
	loss       Loss
	saver      *checkpoints.CheckpointSaver
	summary    *SummaryWriter
	lossLog    *LossLog
	plotting   *PlottingService
	startEpoch int
	globalStep int

	// stepHook, when set, runs after every optimizer step and projection clamp.
	stepHook func(step int, n *model.Network)
}

// NewTrainingSession builds the dataset adapter, network, optimizer and
// output sinks described by opts.Config. When Config.Resume names a
// checkpoint, the network weights are restored from it and training resumes
// at the epoch after the one it records.
func NewTrainingSession(opts SessionOptions) (*TrainingSession, error) {
	cfg := opts.Config
	if cfg == nil || opts.Store == nil || opts.Logger == nil {
		return nil, fmt.Errorf("config, store and logger are required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	ts := &TrainingSession{
		cfg:     cfg,
		logger:  opts.Logger,
		out:     out,
		loss:    NewL1Loss("mean"),
		lossLog: NewLossLog(fmt.Sprintf("LFCA-measure%d", cfg.MeasurementNum)),
	}

	ts.device = tensor.SelectDevice()
	if ts.device != tensor.GPU {
		ts.logger.Infof("No accelerator available, training on %s", ts.device)
	}

	// model initialization and data sampling draw from separate streams so
	// the crops do not depend on the parameter count
	modelRNG := rand.New(rand.NewSource(cfg.Seed))
	dataRNG := rand.New(rand.NewSource(cfg.Seed + 1))

	dataset, err := lightfield.NewPatchDataset(opts.Store, lightfield.Options{
		SampleNum:     cfg.SampleNum,
		PatchSize:     cfg.PatchSize,
		AngResolution: cfg.AngResolution,
		ChannelNum:    cfg.ChannelNum,
	}, dataRNG)
	if err != nil {
		return nil, fmt.Errorf("failed to build dataset: %w", err)
	}
	ts.loader, err = lightfield.NewDataLoader(dataset, cfg.BatchSize, true, dataRNG)
	if err != nil {
		return nil, fmt.Errorf("failed to build data loader: %w", err)
	}

	ts.network, err = model.New(model.Options{
		AngResolution:  cfg.AngResolution,
		ChannelNum:     cfg.ChannelNum,
		MeasurementNum: cfg.MeasurementNum,
		StageNum:       cfg.StageNum,
	}, modelRNG)
	if err != nil {
		return nil, fmt.Errorf("failed to build network: %w", err)
	}

	if cfg.Resume != "" {
		if err := ts.resume(cfg.Resume); err != nil {
			return nil, err
		}
	}

	format, err := checkpoints.ParseFormat(cfg.CheckpointFormat)
	if err != nil {
		return nil, err
	}
	ts.saver = checkpoints.NewCheckpointSaver(format)

	ts.scheduler = NewDecayScheduler(cfg.EpochNum)
	adamConfig := optimizer.DefaultAdamConfig()
	adamConfig.LearningRate = float32(ts.scheduler.GetLR(ts.startEpoch, 0, cfg.LearningRate))
	ts.optimizer, err = optimizer.NewAdamOptimizer(adamConfig, ts.network.Parameters())
	if err != nil {
		return nil, fmt.Errorf("failed to build optimizer: %w", err)
	}

	ts.summary, err = NewSummaryWriter(cfg.SummaryPath)
	if err != nil {
		return nil, err
	}

	if cfg.PlotServer != "" {
		psConfig := DefaultPlottingServiceConfig()
		psConfig.BaseURL = cfg.PlotServer
		ts.plotting = NewPlottingService(psConfig)
		ts.plotting.Enable()
		if err := ts.plotting.CheckHealth(context.Background()); err != nil {
			ts.logger.Warnf("Plotting service at %s is not reachable: %v", cfg.PlotServer, err)
		}
	}

	ts.logger.Infof("Training parameters: %d", ts.network.NumParameters())
	return ts, nil
}

func (ts *TrainingSession) resume(path string) error {
	format, err := checkpoints.DetectFormat(path)
	if err != nil {
		return fmt.Errorf("failed to resume: %w", err)
	}
	ckpt, err := checkpoints.NewCheckpointSaver(format).LoadCheckpoint(path)
	if err != nil {
		return fmt.Errorf("failed to resume: %w", err)
	}
	if !ckpt.Model.Matches(ts.network.Options()) {
		return fmt.Errorf("failed to resume: checkpoint geometry %+v does not match the configured network", ckpt.Model)
	}
	if err := checkpoints.LoadWeights(ckpt.Weights, ts.network); err != nil {
		return fmt.Errorf("failed to resume: %w", err)
	}
	ts.startEpoch = ckpt.TrainingState.Epoch + 1
	ts.globalStep = ckpt.TrainingState.TotalSteps
	ts.logger.Infof("Resumed from %s at epoch %d", path, ts.startEpoch)
	return nil
}

// Network returns the model being trained.
func (ts *TrainingSession) Network() *model.Network {
	return ts.network
}

// LossLog returns the per-epoch loss history.
func (ts *TrainingSession) LossLog() *LossLog {
	return ts.lossLog
}

// StartEpoch returns the first epoch Run will execute.
func (ts *TrainingSession) StartEpoch() int {
	return ts.startEpoch
}

// SummaryPath returns the event file the session writes scalars to.
func (ts *TrainingSession) SummaryPath() string {
	return ts.summary.Path()
}

// Run trains from StartEpoch through the last configured epoch.
func (ts *TrainingSession) Run(ctx context.Context) error {
	for epoch := ts.startEpoch; epoch < ts.cfg.EpochNum; epoch++ {
		if _, err := ts.RunEpoch(ctx, epoch); err != nil {
			return err
		}
	}
	return nil
}

// RunEpoch makes one optimization pass over the dataset, then writes the
// checkpoint, logs the mean loss, advances the learning rate schedule and
// re-renders the loss plot.
func (ts *TrainingSession) RunEpoch(ctx context.Context, epoch int) (EpochResult, error) {
	result := EpochResult{
		Epoch:        epoch,
		LearningRate: float64(ts.optimizer.LearningRate()),
	}

	epochCtx, cancel := context.WithCancel(ctx)
	batches := ts.loader.Iterator(epochCtx)
	defer func() {
		cancel()
		for range batches {
		}
	}()

	stepsPerEpoch := ts.loader.Len()
	var progress *ProgressBar
	if ts.cfg.Progress {
		progress = NewProgressBar(os.Stderr, fmt.Sprintf("Epoch %d", epoch), stepsPerEpoch)
	}

	var sqErr float64
	var elems int
	batch := 0
	for res := range batches {
		if res.Err != nil {
			return result, fmt.Errorf("epoch %d: %w", epoch, res.Err)
		}
		batch++
		lf := res.Batch.LF

		estimated, err := ts.network.Forward(lf)
		if err != nil {
			return result, fmt.Errorf("epoch %d batch %d: forward: %w", epoch, batch, err)
		}
		loss, err := ts.loss.Forward(estimated, lf)
		if err != nil {
			return result, fmt.Errorf("epoch %d batch %d: loss: %w", epoch, batch, err)
		}
		lossValue := float64(loss.Data[0])
		result.BatchLosses = append(result.BatchLosses, lossValue)

		step := stepsPerEpoch*epoch + batch
		if err := ts.summary.AddScalar("loss", lossValue, step); err != nil {
			return result, err
		}
		fmt.Fprintf(ts.out, "Epoch: %d Batch: %d Loss: %.6f\n", epoch, batch, lossValue)

		if math.IsNaN(lossValue) || math.IsInf(lossValue, 0) {
			ts.logger.Warnf("Epoch: %d Batch: %d non-finite loss %v", epoch, batch, lossValue)
			if ts.cfg.HaltOnNonFinite {
				return result, fmt.Errorf("epoch %d batch %d: %w", epoch, batch, ErrNonFiniteLoss)
			}
		}

		m := CalculateReconstructionMetrics(estimated.Data, lf.Data)
		sqErr += m.MSE * float64(len(lf.Data))
		elems += len(lf.Data)

		ts.optimizer.ZeroGrad()
		if err := loss.Backward(); err != nil {
			return result, fmt.Errorf("epoch %d batch %d: backward: %w", epoch, batch, err)
		}
		if err := ts.optimizer.Step(); err != nil {
			return result, fmt.Errorf("epoch %d batch %d: optimizer step: %w", epoch, batch, err)
		}
		ts.network.ClampProjectionWeights()
		ts.globalStep++

		if ts.stepHook != nil {
			ts.stepHook(step, ts.network)
		}
		if progress != nil {
			progress.Update(batch, map[string]float64{"loss": lossValue})
		}
	}
	if err := epochCtx.Err(); err != nil {
		return result, err
	}
	if progress != nil {
		progress.Finish()
	}
	if batch == 0 {
		return result, fmt.Errorf("epoch %d: data loader produced no batches", epoch)
	}

	result.MeanLoss = MeanLoss(result.BatchLosses)
	result.PSNR = PSNR(sqErr / float64(elems))

	ckpt := &checkpoints.Checkpoint{
		Model:   checkpoints.NewModelInfo(ts.network),
		Weights: checkpoints.ExtractWeights(ts.network),
		TrainingState: checkpoints.TrainingState{
			Epoch:        epoch,
			Step:         batch,
			LearningRate: float32(result.LearningRate),
			Loss:         float32(result.MeanLoss),
			TotalSteps:   ts.globalStep,
		},
		Metadata: checkpoints.CheckpointMetadata{
			Description: fmt.Sprintf("LFCA measurement %d, epoch %d", ts.cfg.MeasurementNum, epoch),
		},
	}
	if err := ts.saver.SaveCheckpoint(ckpt, ts.cfg.CheckpointPath()); err != nil {
		return result, fmt.Errorf("epoch %d: %w", epoch, err)
	}

	ts.logger.Infof("Epoch: %d Loss: %.6f", epoch, result.MeanLoss)
	ts.optimizer.UpdateLearningRate(float32(ts.scheduler.GetLR(epoch+1, 0, ts.cfg.LearningRate)))

	ts.lossLog.Append(epoch, result.MeanLoss, result.LearningRate)
	if err := RenderLossPlot(ts.lossLog, ts.cfg.PlotPath()); err != nil {
		return result, fmt.Errorf("epoch %d: %w", epoch, err)
	}

	if !math.IsInf(result.PSNR, 0) && !math.IsNaN(result.PSNR) {
		if err := ts.summary.AddScalar("psnr", result.PSNR, epoch); err != nil {
			return result, err
		}
	}

	if ts.plotting != nil {
		if err := ts.plotting.PublishLossLog(ctx, ts.lossLog); err != nil {
			ts.logger.Warnf("Failed to send loss plots to %s: %v", ts.cfg.PlotServer, err)
		}
	}

	return result, nil
}

// Close releases the event file.
func (ts *TrainingSession) Close() error {
	return ts.summary.Close()
}
