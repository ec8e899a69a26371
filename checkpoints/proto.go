package checkpoints

import (
	"fmt"
	"math"
	"time"

	"github.com/tsawler/go-lfca/internal/protoenc"
)

// Wire layout of the proto checkpoint format:
//
//	Checkpoint    { 1: repeated WeightTensor, 2: TrainingState, 3: Metadata, 4: ModelInfo }
//	WeightTensor  { 1: name, 2: packed shape, 3: packed float data, 4: layer, 5: type }
//	TrainingState { 1: epoch, 2: step, 3: float lr, 4: float loss, 5: total_steps }
//	Metadata      { 1: version, 2: framework, 3: created_at unix nanos, 4: description }
//	ModelInfo     { 1: ang_resolution, 2: channel_num, 3: measurement_num, 4: stage_num }
const (
	ckptWeights       = 1
	ckptTrainingState = 2
	ckptMetadata      = 3
	ckptModel         = 4

	weightName  = 1
	weightShape = 2
	weightData  = 3
	weightLayer = 4
	weightType  = 5

	stateEpoch      = 1
	stateStep       = 2
	stateLR         = 3
	stateLoss       = 4
	stateTotalSteps = 5

	metaVersion     = 1
	metaFramework   = 2
	metaCreatedAt   = 3
	metaDescription = 4

	modelAng          = 1
	modelChannels     = 2
	modelMeasurements = 3
	modelStages       = 4
)

// MarshalProto encodes a checkpoint in protobuf wire format.
func MarshalProto(c *Checkpoint) []byte {
	var b []byte
	for _, w := range c.Weights {
		var wb []byte
		wb = protoenc.AppendStringField(wb, weightName, w.Name)
		wb = protoenc.AppendPackedInts(wb, weightShape, w.Shape)
		wb = protoenc.AppendPackedFloat32(wb, weightData, w.Data)
		wb = protoenc.AppendStringField(wb, weightLayer, w.Layer)
		wb = protoenc.AppendStringField(wb, weightType, w.Type)
		b = protoenc.AppendMessageField(b, ckptWeights, wb)
	}

	var sb []byte
	s := c.TrainingState
	sb = protoenc.AppendVarintField(sb, stateEpoch, uint64(s.Epoch))
	sb = protoenc.AppendVarintField(sb, stateStep, uint64(s.Step))
	sb = protoenc.AppendFloat32Field(sb, stateLR, s.LearningRate)
	sb = protoenc.AppendFloat32Field(sb, stateLoss, s.Loss)
	sb = protoenc.AppendVarintField(sb, stateTotalSteps, uint64(s.TotalSteps))
	b = protoenc.AppendMessageField(b, ckptTrainingState, sb)

	var mb []byte
	m := c.Metadata
	mb = protoenc.AppendStringField(mb, metaVersion, m.Version)
	mb = protoenc.AppendStringField(mb, metaFramework, m.Framework)
	if !m.CreatedAt.IsZero() {
		mb = protoenc.AppendVarintField(mb, metaCreatedAt, uint64(m.CreatedAt.UnixNano()))
	}
	mb = protoenc.AppendStringField(mb, metaDescription, m.Description)
	b = protoenc.AppendMessageField(b, ckptMetadata, mb)

	var ib []byte
	ib = protoenc.AppendVarintField(ib, modelAng, uint64(c.Model.AngResolution))
	ib = protoenc.AppendVarintField(ib, modelChannels, uint64(c.Model.ChannelNum))
	ib = protoenc.AppendVarintField(ib, modelMeasurements, uint64(c.Model.MeasurementNum))
	ib = protoenc.AppendVarintField(ib, modelStages, uint64(c.Model.StageNum))
	b = protoenc.AppendMessageField(b, ckptModel, ib)

	return b
}

// UnmarshalProto decodes a checkpoint written by MarshalProto.
func UnmarshalProto(data []byte) (*Checkpoint, error) {
	c := &Checkpoint{}
	err := protoenc.Range(data, func(f protoenc.Field) error {
		switch f.Num {
		case ckptWeights:
			w, err := unmarshalWeight(f.Bytes)
			if err != nil {
				return fmt.Errorf("weight %d: %w", len(c.Weights), err)
			}
			c.Weights = append(c.Weights, w)
		case ckptTrainingState:
			return unmarshalTrainingState(f.Bytes, &c.TrainingState)
		case ckptMetadata:
			return unmarshalMetadata(f.Bytes, &c.Metadata)
		case ckptModel:
			return unmarshalModelInfo(f.Bytes, &c.Model)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func unmarshalWeight(b []byte) (WeightTensor, error) {
	var w WeightTensor
	err := protoenc.Range(b, func(f protoenc.Field) error {
		var err error
		switch f.Num {
		case weightName:
			w.Name = string(f.Bytes)
		case weightShape:
			w.Shape, err = protoenc.ConsumePackedInts(w.Shape, f.Bytes)
		case weightData:
			w.Data, err = protoenc.ConsumePackedFloat32(w.Data, f.Bytes)
		case weightLayer:
			w.Layer = string(f.Bytes)
		case weightType:
			w.Type = string(f.Bytes)
		}
		return err
	})
	if err != nil {
		return w, err
	}

	size := 1
	for _, d := range w.Shape {
		size *= d
	}
	if len(w.Shape) == 0 || size != len(w.Data) {
		return w, fmt.Errorf("%q: shape %v does not match %d values", w.Name, w.Shape, len(w.Data))
	}
	return w, nil
}

func unmarshalTrainingState(b []byte, s *TrainingState) error {
	return protoenc.Range(b, func(f protoenc.Field) error {
		switch f.Num {
		case stateEpoch:
			s.Epoch = int(f.Varint)
		case stateStep:
			s.Step = int(f.Varint)
		case stateLR:
			s.LearningRate = f.Float32()
		case stateLoss:
			s.Loss = f.Float32()
		case stateTotalSteps:
			s.TotalSteps = int(f.Varint)
		}
		return nil
	})
}

func unmarshalMetadata(b []byte, m *CheckpointMetadata) error {
	return protoenc.Range(b, func(f protoenc.Field) error {
		switch f.Num {
		case metaVersion:
			m.Version = string(f.Bytes)
		case metaFramework:
			m.Framework = string(f.Bytes)
		case metaCreatedAt:
			if f.Varint > math.MaxInt64 {
				return fmt.Errorf("created_at out of range")
			}
			m.CreatedAt = time.Unix(0, int64(f.Varint))
		case metaDescription:
			m.Description = string(f.Bytes)
		}
		return nil
	})
}

func unmarshalModelInfo(b []byte, mi *ModelInfo) error {
	return protoenc.Range(b, func(f protoenc.Field) error {
		switch f.Num {
		case modelAng:
			mi.AngResolution = int(f.Varint)
		case modelChannels:
			mi.ChannelNum = int(f.Varint)
		case modelMeasurements:
			mi.MeasurementNum = int(f.Varint)
		case modelStages:
			mi.StageNum = int(f.Varint)
		}
		return nil
	})
}
