package lightfield

import (
	"fmt"
	"os"

	"github.com/tsawler/go-lfca/internal/protoenc"
)

// Store is an in-memory set of full-resolution light fields. Every light field
// is stored as float32 values in (u, v, c, h, w) order.
type Store struct {
	AngResolution int
	Channels      int
	Height        int
	Width         int
	LightFields   [][]float32
}

// Field numbers of the .lfd wire format:
//
//	Dataset    { 1: ang_resolution, 2: channels, 3: height, 4: width, 5: repeated LightField }
//	LightField { 1: packed float data }
const (
	fieldAngResolution = 1
	fieldChannels      = 2
	fieldHeight        = 3
	fieldWidth         = 4
	fieldLightField    = 5

	fieldLightFieldData = 1
)

// ElemsPerLightField returns the number of values in one stored light field.
func (s *Store) ElemsPerLightField() int {
	return s.AngResolution * s.AngResolution * s.Channels * s.Height * s.Width
}

// Validate checks that the geometry is positive and every light field has the expected size.
func (s *Store) Validate() error {
	if s.AngResolution <= 0 || s.Channels <= 0 || s.Height <= 0 || s.Width <= 0 {
		return fmt.Errorf("invalid light field geometry: ang=%d channels=%d height=%d width=%d",
			s.AngResolution, s.Channels, s.Height, s.Width)
	}
	want := s.ElemsPerLightField()
	for i, lf := range s.LightFields {
		if len(lf) != want {
			return fmt.Errorf("light field %d has %d values, expected %d", i, len(lf), want)
		}
	}
	return nil
}

// EncodeDataset serializes a store to the .lfd wire format.
func EncodeDataset(s *Store) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var b []byte
	b = protoenc.AppendVarintField(b, fieldAngResolution, uint64(s.AngResolution))
	b = protoenc.AppendVarintField(b, fieldChannels, uint64(s.Channels))
	b = protoenc.AppendVarintField(b, fieldHeight, uint64(s.Height))
	b = protoenc.AppendVarintField(b, fieldWidth, uint64(s.Width))
	for _, lf := range s.LightFields {
		inner := protoenc.AppendPackedFloat32(nil, fieldLightFieldData, lf)
		b = protoenc.AppendMessageField(b, fieldLightField, inner)
	}
	return b, nil
}

// DecodeDataset parses the .lfd wire format.
func DecodeDataset(data []byte) (*Store, error) {
	s := &Store{}
	err := protoenc.Range(data, func(f protoenc.Field) error {
		switch f.Num {
		case fieldAngResolution:
			s.AngResolution = int(f.Varint)
		case fieldChannels:
			s.Channels = int(f.Varint)
		case fieldHeight:
			s.Height = int(f.Varint)
		case fieldWidth:
			s.Width = int(f.Varint)
		case fieldLightField:
			lf, err := decodeLightField(f.Bytes)
			if err != nil {
				return fmt.Errorf("light field %d: %w", len(s.LightFields), err)
			}
			s.LightFields = append(s.LightFields, lf)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeLightField(b []byte) ([]float32, error) {
	var data []float32
	err := protoenc.Range(b, func(f protoenc.Field) error {
		if f.Num != fieldLightFieldData {
			return nil
		}
		var err error
		data, err = protoenc.ConsumePackedFloat32(data, f.Bytes)
		return err
	})
	return data, err
}

// ReadDataset loads a .lfd file.
func ReadDataset(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	s, err := DecodeDataset(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// WriteDataset writes a store to path, replacing any existing file.
func WriteDataset(path string, s *Store) error {
	data, err := EncodeDataset(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return nil
}
