package training

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tsawler/go-lfca/internal/protoenc"
)

// Event file layout. Each record is
//
//	uint64 length | uint32 masked crc(length) | data | uint32 masked crc(data)
//
// with data an Event message:
//
//	Event   { 1: double wall_time, 2: int64 step, 3: file_version, 5: Summary }
//	Summary { 1: repeated Value }
//	Value   { 1: tag, 2: float simple_value }
const (
	eventWallTime    = 1
	eventStep        = 2
	eventFileVersion = 3
	eventSummary     = 5

	summaryValue = 1

	valueTag         = 1
	valueSimpleValue = 2

	eventFileVersionString = "brain.Event:2"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func maskedCRC(b []byte) uint32 {
	c := crc32.Checksum(b, castagnoli)
	return ((c >> 15) | (c << 17)) + 0xa282ead8
}

// ErrCorruptRecord is returned by ReadEvents when a record checksum fails.
var ErrCorruptRecord = errors.New("corrupt event record")

// SummaryValue is one tagged scalar of an event.
type SummaryValue struct {
	Tag         string
	SimpleValue float32
}

// Event is a decoded event record.
type Event struct {
	WallTime    float64
	Step        int64
	FileVersion string
	Values      []SummaryValue
}

// SummaryWriter appends scalar events to a TensorBoard event file.
type SummaryWriter struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewSummaryWriter creates a new event file inside dir, creating dir if
// needed, and writes the file-version header event.
func NewSummaryWriter(dir string) (*SummaryWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create summary directory: %w", err)
	}

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	now := time.Now()
	name := fmt.Sprintf("events.out.tfevents.%d.%s", now.Unix(), host)
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event file: %w", err)
	}

	sw := &SummaryWriter{file: f, path: path}
	header := Event{WallTime: wallTime(now), FileVersion: eventFileVersionString}
	if err := sw.writeEvent(header); err != nil {
		f.Close()
		return nil, err
	}
	return sw, nil
}

// Path returns the event file location.
func (sw *SummaryWriter) Path() string {
	return sw.path
}

// AddScalar records value under tag at the given global step.
func (sw *SummaryWriter) AddScalar(tag string, value float64, step int) error {
	return sw.writeEvent(Event{
		WallTime: wallTime(time.Now()),
		Step:     int64(step),
		Values:   []SummaryValue{{Tag: tag, SimpleValue: float32(value)}},
	})
}

// Close closes the event file.
func (sw *SummaryWriter) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.file == nil {
		return nil
	}
	err := sw.file.Close()
	sw.file = nil
	return err
}

func (sw *SummaryWriter) writeEvent(e Event) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.file == nil {
		return fmt.Errorf("summary writer is closed")
	}
	if _, err := sw.file.Write(frameRecord(marshalEvent(e))); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

func wallTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func frameRecord(data []byte) []byte {
	rec := make([]byte, 12, 12+len(data)+4)
	binary.LittleEndian.PutUint64(rec[:8], uint64(len(data)))
	binary.LittleEndian.PutUint32(rec[8:12], maskedCRC(rec[:8]))
	rec = append(rec, data...)
	return binary.LittleEndian.AppendUint32(rec, maskedCRC(data))
}

func marshalEvent(e Event) []byte {
	var b []byte
	b = protoenc.AppendFloat64Field(b, eventWallTime, e.WallTime)
	b = protoenc.AppendVarintField(b, eventStep, uint64(e.Step))
	b = protoenc.AppendStringField(b, eventFileVersion, e.FileVersion)
	if len(e.Values) > 0 {
		var sb []byte
		for _, v := range e.Values {
			var vb []byte
			vb = protoenc.AppendStringField(vb, valueTag, v.Tag)
			vb = protoenc.AppendFloat32Field(vb, valueSimpleValue, v.SimpleValue)
			sb = protoenc.AppendMessageField(sb, summaryValue, vb)
		}
		b = protoenc.AppendMessageField(b, eventSummary, sb)
	}
	return b
}

func unmarshalEvent(b []byte) (Event, error) {
	var e Event
	err := protoenc.Range(b, func(f protoenc.Field) error {
		switch f.Num {
		case eventWallTime:
			e.WallTime = f.Float64()
		case eventStep:
			e.Step = int64(f.Varint)
		case eventFileVersion:
			e.FileVersion = string(f.Bytes)
		case eventSummary:
			return protoenc.Range(f.Bytes, func(sf protoenc.Field) error {
				if sf.Num != summaryValue {
					return nil
				}
				var v SummaryValue
				err := protoenc.Range(sf.Bytes, func(vf protoenc.Field) error {
					switch vf.Num {
					case valueTag:
						v.Tag = string(vf.Bytes)
					case valueSimpleValue:
						v.SimpleValue = vf.Float32()
					}
					return nil
				})
				e.Values = append(e.Values, v)
				return err
			})
		}
		return nil
	})
	return e, err
}

// ReadEvents decodes every record of an event stream, verifying checksums.
func ReadEvents(r io.Reader) ([]Event, error) {
	var events []Event
	header := make([]byte, 12)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if err == io.EOF {
				return events, nil
			}
			return nil, fmt.Errorf("failed to read record header: %w", err)
		}
		if binary.LittleEndian.Uint32(header[8:]) != maskedCRC(header[:8]) {
			return nil, fmt.Errorf("record %d length: %w", len(events), ErrCorruptRecord)
		}

		n := binary.LittleEndian.Uint64(header[:8])
		body := make([]byte, n+4)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("failed to read record %d: %w", len(events), err)
		}
		data := body[:n]
		if binary.LittleEndian.Uint32(body[n:]) != maskedCRC(data) {
			return nil, fmt.Errorf("record %d data: %w", len(events), ErrCorruptRecord)
		}

		e, err := unmarshalEvent(data)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(events), err)
		}
		events = append(events, e)
	}
}
