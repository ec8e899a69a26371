// Package protoenc holds the protobuf wire-format helpers shared by the
// checkpoint, dataset and summary-event codecs. Messages are encoded by hand
// with protowire so no generated code is needed.
package protoenc

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field is one decoded field of a message. Only the value matching Type is set.
type Field struct {
	Num     protowire.Number
	Type    protowire.Type
	Varint  uint64
	Fixed32 uint32
	Fixed64 uint64
	Bytes   []byte
}

// Float32 interprets a fixed32 field as an IEEE-754 float.
func (f Field) Float32() float32 {
	return math.Float32frombits(f.Fixed32)
}

// Float64 interprets a fixed64 field as an IEEE-754 double.
func (f Field) Float64() float64 {
	return math.Float64frombits(f.Fixed64)
}

// Range calls fn for every field in b, in wire order.
func Range(b []byte, fn func(f Field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			f.Varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			f.Fixed32, n = protowire.ConsumeFixed32(b)
		case protowire.Fixed64Type:
			f.Fixed64, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.Bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("invalid value for field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// AppendVarintField appends a varint field; zero values are skipped as proto3 does.
func AppendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendStringField appends a string field; empty strings are skipped.
func AppendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// AppendMessageField appends an embedded message.
func AppendMessageField(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// AppendFloat32Field appends a float field.
func AppendFloat32Field(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

// AppendFloat64Field appends a double field.
func AppendFloat64Field(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

// AppendPackedFloat32 appends a packed repeated float field.
func AppendPackedFloat32(b []byte, num protowire.Number, data []float32) []byte {
	if len(data) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(4*len(data)))
	for _, v := range data {
		b = protowire.AppendFixed32(b, math.Float32bits(v))
	}
	return b
}

// ConsumePackedFloat32 decodes the payload of a packed repeated float field
// and appends the values to dst.
func ConsumePackedFloat32(dst []float32, payload []byte) ([]float32, error) {
	if len(payload)%4 != 0 {
		return dst, fmt.Errorf("packed float payload of %d bytes is not a multiple of 4", len(payload))
	}
	for len(payload) > 0 {
		v, n := protowire.ConsumeFixed32(payload)
		if n < 0 {
			return dst, protowire.ParseError(n)
		}
		dst = append(dst, math.Float32frombits(v))
		payload = payload[n:]
	}
	return dst, nil
}

// AppendPackedInts appends a packed repeated int64 field holding non-negative values.
func AppendPackedInts(b []byte, num protowire.Number, data []int) []byte {
	if len(data) == 0 {
		return b
	}
	var inner []byte
	for _, v := range data {
		inner = protowire.AppendVarint(inner, uint64(v))
	}
	return AppendMessageField(b, num, inner)
}

// ConsumePackedInts decodes a packed repeated int64 payload.
func ConsumePackedInts(dst []int, payload []byte) ([]int, error) {
	for len(payload) > 0 {
		v, n := protowire.ConsumeVarint(payload)
		if n < 0 {
			return dst, protowire.ParseError(n)
		}
		dst = append(dst, int(v))
		payload = payload[n:]
	}
	return dst, nil
}
