package training

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMaskedCRC(t *testing.T) {
	tests := []struct {
		data string
		want uint32
	}{
		{"", 0xa282ead8},
		{"123456789", 0xc78ab0e5},
	}
	for _, tt := range tests {
		if got := maskedCRC([]byte(tt.data)); got != tt.want {
			t.Errorf("maskedCRC(%q): expected %#x, got %#x", tt.data, tt.want, got)
		}
	}
}

func TestSummaryWriterRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")
	sw, err := NewSummaryWriter(dir)
	if err != nil {
		t.Fatalf("Failed to create summary writer: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(sw.Path()), "events.out.tfevents.") {
		t.Errorf("Unexpected event file name %s", sw.Path())
	}

	for step, v := range []float64{0.5, 0.25, 0.125} {
		if err := sw.AddScalar("loss", v, step+1); err != nil {
			t.Fatalf("AddScalar failed: %v", err)
		}
	}
	if err := sw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := sw.AddScalar("loss", 1, 4); err == nil {
		t.Error("Expected error writing to a closed writer")
	}

	data, err := os.ReadFile(sw.Path())
	if err != nil {
		t.Fatalf("Failed to read event file: %v", err)
	}
	events, err := ReadEvents(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadEvents failed: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("Expected header plus 3 events, got %d", len(events))
	}
	if events[0].FileVersion != "brain.Event:2" || len(events[0].Values) != 0 {
		t.Errorf("Unexpected header event %+v", events[0])
	}
	for i, e := range events[1:] {
		if e.Step != int64(i+1) {
			t.Errorf("Event %d: expected step %d, got %d", i, i+1, e.Step)
		}
		if len(e.Values) != 1 || e.Values[0].Tag != "loss" {
			t.Fatalf("Event %d: unexpected values %+v", i, e.Values)
		}
		if want := float32(0.5 / float64(int(1)<<i)); e.Values[0].SimpleValue != want {
			t.Errorf("Event %d: expected %f, got %f", i, want, e.Values[0].SimpleValue)
		}
		if e.WallTime <= 0 {
			t.Errorf("Event %d: missing wall time", i)
		}
	}
}

func TestReadEventsDetectsCorruption(t *testing.T) {
	record := frameRecord(marshalEvent(Event{Step: 3, Values: []SummaryValue{{Tag: "loss", SimpleValue: 1}}}))

	badLength := append([]byte(nil), record...)
	badLength[0] ^= 0x01
	if _, err := ReadEvents(bytes.NewReader(badLength)); !errors.Is(err, ErrCorruptRecord) {
		t.Errorf("Expected ErrCorruptRecord for a bad length, got %v", err)
	}

	badData := append([]byte(nil), record...)
	badData[14] ^= 0xFF
	if _, err := ReadEvents(bytes.NewReader(badData)); !errors.Is(err, ErrCorruptRecord) {
		t.Errorf("Expected ErrCorruptRecord for bad data, got %v", err)
	}

	if _, err := ReadEvents(bytes.NewReader(record[:len(record)-2])); err == nil {
		t.Error("Expected error for a truncated record")
	}

	events, err := ReadEvents(bytes.NewReader(record))
	if err != nil || len(events) != 1 || events[0].Step != 3 {
		t.Errorf("Expected one intact event, got %+v, %v", events, err)
	}
}
