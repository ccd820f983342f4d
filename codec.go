package cellstore

import (
	"reflect"
)

// Codec is a deterministic binary encoding of T. Append must be total;
// Read consumes exactly one encoded T from d.
type Codec[T any] interface {
	Append(buf []byte, v T) []byte
	Read(d *Decoder) (T, error)
}

// Encode returns the encoding of v.
func Encode[T any](c Codec[T], v T) []byte {
	return c.Append(nil, v)
}

// Decode decodes exactly one T from data. Short data, unknown discriminants
// and trailing bytes all fail with a *DecodeError, and the zero value is
// returned instead of a partially decoded one.
func Decode[T any](c Codec[T], data []byte) (T, error) {
	var zero T
	d := NewDecoder(data)
	v, err := c.Read(d)
	if err != nil {
		return zero, err
	}
	if err := d.Finish(); err != nil {
		return zero, err
	}
	return v, nil
}

// CodecFunc builds a Codec from a pair of functions.
func CodecFunc[T any](appendFn func(buf []byte, v T) []byte, readFn func(d *Decoder) (T, error)) Codec[T] {
	return funcCodec[T]{appendFn, readFn}
}

type funcCodec[T any] struct {
	appendFn func(buf []byte, v T) []byte
	readFn   func(d *Decoder) (T, error)
}

func (c funcCodec[T]) Append(buf []byte, v T) []byte { return c.appendFn(buf, v) }
func (c funcCodec[T]) Read(d *Decoder) (T, error)    { return c.readFn(d) }

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
