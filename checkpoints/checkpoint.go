package checkpoints

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tsawler/go-lfca/model"
)

// CheckpointFormat defines the serialization format
type CheckpointFormat int

const (
	FormatProto CheckpointFormat = iota
	FormatJSON
)

func (cf CheckpointFormat) String() string {
	switch cf {
	case FormatProto:
		return "Proto"
	case FormatJSON:
		return "JSON"
	default:
		return "Unknown"
	}
}

// ParseFormat maps a --checkpointFormat value to a CheckpointFormat.
func ParseFormat(name string) (CheckpointFormat, error) {
	switch strings.ToLower(name) {
	case "proto", "protobuf":
		return FormatProto, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("unknown checkpoint format %q", name)
	}
}

// Checkpoint is a snapshot of the network weights plus the training progress
// at the time it was written. Optimizer moments are not included.
type Checkpoint struct {
	Model   ModelInfo      `json:"model"`
	Weights []WeightTensor `json:"weights"`

	TrainingState TrainingState `json:"training_state"`

	Metadata CheckpointMetadata `json:"metadata"`
}

// ModelInfo records the geometry needed to rebuild the network.
type ModelInfo struct {
	AngResolution  int `json:"ang_resolution"`
	ChannelNum     int `json:"channel_num"`
	MeasurementNum int `json:"measurement_num"`
	StageNum       int `json:"stage_num"`
}

// WeightTensor represents a model parameter tensor with its data
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
	Layer string    `json:"layer"`
	Type  string    `json:"type"` // "weight", "bias", "step"
}

// TrainingState captures the current training progress
type TrainingState struct {
	Epoch        int     `json:"epoch"`
	Step         int     `json:"step"`
	LearningRate float32 `json:"learning_rate"`
	Loss         float32 `json:"loss"`
	TotalSteps   int     `json:"total_steps"`
}

// CheckpointMetadata contains checkpoint metadata
type CheckpointMetadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

// CheckpointSaver handles saving model checkpoints in various formats
type CheckpointSaver struct {
	format CheckpointFormat
}

// NewCheckpointSaver creates a new checkpoint saver for the specified format
func NewCheckpointSaver(format CheckpointFormat) *CheckpointSaver {
	return &CheckpointSaver{
		format: format,
	}
}

// Format returns the encoding the saver writes.
func (cs *CheckpointSaver) Format() CheckpointFormat {
	return cs.format
}

// SaveCheckpoint writes checkpoint to path, truncating any previous file.
// The parent directory is created if needed. The write is not atomic: a
// crash mid-write leaves a partial file.
func (cs *CheckpointSaver) SaveCheckpoint(checkpoint *Checkpoint, path string) error {
	if checkpoint.Metadata.Framework == "" {
		checkpoint.Metadata.Framework = "go-lfca"
		checkpoint.Metadata.Version = "1.0.0"
	}
	if checkpoint.Metadata.CreatedAt.IsZero() {
		checkpoint.Metadata.CreatedAt = time.Now()
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	switch cs.format {
	case FormatJSON:
		return cs.saveJSON(checkpoint, path)
	case FormatProto:
		return cs.saveProto(checkpoint, path)
	default:
		return fmt.Errorf("unsupported checkpoint format: %s", cs.format.String())
	}
}

// LoadCheckpoint loads a model checkpoint
func (cs *CheckpointSaver) LoadCheckpoint(path string) (*Checkpoint, error) {
	switch cs.format {
	case FormatJSON:
		return cs.loadJSON(path)
	case FormatProto:
		return cs.loadProto(path)
	default:
		return nil, fmt.Errorf("unsupported checkpoint format: %s", cs.format.String())
	}
}

// DetectFormat guesses the encoding of an existing checkpoint file. JSON
// checkpoints start with '{'; anything else is treated as proto.
func DetectFormat(path string) (CheckpointFormat, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	head, err := bufio.NewReader(file).Peek(64)
	if len(head) == 0 {
		return 0, fmt.Errorf("checkpoint file %s is empty: %v", path, err)
	}
	if bytes.HasPrefix(bytes.TrimSpace(head), []byte("{")) {
		return FormatJSON, nil
	}
	return FormatProto, nil
}

// saveJSON saves checkpoint in JSON format
func (cs *CheckpointSaver) saveJSON(checkpoint *Checkpoint, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(checkpoint); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	return file.Close()
}

// loadJSON loads checkpoint from JSON format
func (cs *CheckpointSaver) loadJSON(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	decoder := json.NewDecoder(file)

	if err := decoder.Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	return &checkpoint, nil
}

func (cs *CheckpointSaver) saveProto(checkpoint *Checkpoint, path string) error {
	data := MarshalProto(checkpoint)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	return nil
}

func (cs *CheckpointSaver) loadProto(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	checkpoint, err := UnmarshalProto(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return checkpoint, nil
}

// ExtractWeights copies the network parameters into checkpoint tensors. The
// layer is the part of the name before the last dot and the type the part after.
func ExtractWeights(n *model.Network) []WeightTensor {
	state := n.StateDict()
	weights := make([]WeightTensor, len(state))
	for i, e := range state {
		layer, typ := e.Name, ""
		if dot := strings.LastIndex(e.Name, "."); dot >= 0 {
			layer, typ = e.Name[:dot], e.Name[dot+1:]
		}
		weights[i] = WeightTensor{
			Name:  e.Name,
			Shape: e.Shape,
			Data:  e.Data,
			Layer: layer,
			Type:  typ,
		}
	}
	return weights
}

// LoadWeights copies checkpoint tensors into the network by name.
func LoadWeights(weights []WeightTensor, n *model.Network) error {
	state := make([]model.StateEntry, len(weights))
	for i, w := range weights {
		state[i] = model.StateEntry{Name: w.Name, Shape: w.Shape, Data: w.Data}
	}
	if err := n.LoadStateDict(state); err != nil {
		return fmt.Errorf("failed to load weights: %w", err)
	}
	return nil
}

// NewModelInfo records the geometry of n.
func NewModelInfo(n *model.Network) ModelInfo {
	opts := n.Options()
	return ModelInfo{
		AngResolution:  opts.AngResolution,
		ChannelNum:     opts.ChannelNum,
		MeasurementNum: opts.MeasurementNum,
		StageNum:       opts.StageNum,
	}
}

// Matches reports whether the recorded geometry equals opts.
func (mi ModelInfo) Matches(opts model.Options) bool {
	return mi.AngResolution == opts.AngResolution &&
		mi.ChannelNum == opts.ChannelNum &&
		mi.MeasurementNum == opts.MeasurementNum &&
		mi.StageNum == opts.StageNum
}
