package cellstore

import (
	"bytes"
	"fmt"
	"slices"
)

// Opt is an optional value, encoded by Option.
type Opt[T any] struct {
	Value T
	Valid bool
}

func Some[T any](v T) Opt[T] {
	return Opt[T]{v, true}
}

func None[T any]() Opt[T] {
	return Opt[T]{}
}

func (o Opt[T]) Get() (T, bool) {
	return o.Value, o.Valid
}

const (
	optionNone byte = 0
	optionSome byte = 1
)

// Option encodes Opt[T] as a tag byte (0 none, 1 some) followed by the payload.
func Option[T any](c Codec[T]) Codec[Opt[T]] {
	return optionCodec[T]{c}
}

type optionCodec[T any] struct {
	inner Codec[T]
}

func (c optionCodec[T]) Append(buf []byte, v Opt[T]) []byte {
	if !v.Valid {
		return appendUint8(buf, optionNone)
	}
	buf = appendUint8(buf, optionSome)
	return c.inner.Append(buf, v.Value)
}

func (c optionCodec[T]) Read(d *Decoder) (Opt[T], error) {
	off := d.Off()
	tag, err := d.Byte()
	if err != nil {
		return Opt[T]{}, err
	}
	switch tag {
	case optionNone:
		return Opt[T]{}, nil
	case optionSome:
		v, err := c.inner.Read(d)
		if err != nil {
			return Opt[T]{}, err
		}
		return Some(v), nil
	default:
		return Opt[T]{}, decodeErrf(d.Orig, off, nil, "invalid option tag 0x%02x", tag)
	}
}

// Slice encodes a u32 element count followed by the elements.
func Slice[T any](c Codec[T]) Codec[[]T] {
	return sliceCodec[T]{c}
}

type sliceCodec[T any] struct {
	elem Codec[T]
}

func (c sliceCodec[T]) Append(buf []byte, v []T) []byte {
	buf = appendUint32(buf, uint32(len(v)))
	for _, el := range v {
		buf = c.elem.Append(buf, el)
	}
	return buf
}

func (c sliceCodec[T]) Read(d *Decoder) ([]T, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	// Elements may encode to nothing, so the count is not bounded by the
	// remaining bytes. A corrupt count still fails at the first short read.
	result := make([]T, 0, capHint(n, d.Remaining()))
	for i := uint32(0); i < n; i++ {
		el, err := c.elem.Read(d)
		if err != nil {
			return nil, err
		}
		result = append(result, el)
	}
	return result, nil
}

func capHint(n uint32, remaining int) int {
	return int(min(uint64(n), uint64(remaining)))
}

// MapOf encodes a Go map as a u32 count followed by key/value pairs sorted by
// their encoded keys, which keeps the encoding deterministic.
func MapOf[K comparable, V any](kc Codec[K], vc Codec[V]) Codec[map[K]V] {
	return mapCodec[K, V]{kc, vc}
}

type mapCodec[K comparable, V any] struct {
	key   Codec[K]
	value Codec[V]
}

func (c mapCodec[K, V]) Append(buf []byte, m map[K]V) []byte {
	type pair struct {
		raw []byte
		key K
	}
	pairs := make([]pair, 0, len(m))
	for k := range m {
		pairs = append(pairs, pair{c.key.Append(nil, k), k})
	}
	slices.SortFunc(pairs, func(a, b pair) int {
		return bytes.Compare(a.raw, b.raw)
	})
	buf = appendUint32(buf, uint32(len(pairs)))
	for _, p := range pairs {
		buf = appendRaw(buf, p.raw)
		buf = c.value.Append(buf, m[p.key])
	}
	return buf
}

func (c mapCodec[K, V]) Read(d *Decoder) (map[K]V, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	m := make(map[K]V, capHint(n, d.Remaining()))
	for i := uint32(0); i < n; i++ {
		koff := d.Off()
		k, err := c.key.Read(d)
		if err != nil {
			return nil, err
		}
		v, err := c.value.Read(d)
		if err != nil {
			return nil, err
		}
		if _, dup := m[k]; dup {
			return nil, decodeErrf(d.Orig, koff, nil, "duplicate map key")
		}
		m[k] = v
	}
	return m, nil
}

// Case is one variant of an Enum.
type Case[T any] struct {
	Tag   byte
	Codec Codec[T]
}

// Enum encodes a sum type as a discriminant byte followed by the payload of
// the chosen variant. tagOf must return the tag of one of the cases.
func Enum[T any](tagOf func(v T) byte, cases ...Case[T]) Codec[T] {
	c := &enumCodec[T]{tagOf: tagOf}
	for _, cs := range cases {
		if c.cases[cs.Tag] != nil {
			panic(fmt.Errorf("Enum: duplicate tag %d", cs.Tag))
		}
		c.cases[cs.Tag] = cs.Codec
	}
	return c
}

type enumCodec[T any] struct {
	tagOf func(v T) byte
	cases [256]Codec[T]
}

func (c *enumCodec[T]) Append(buf []byte, v T) []byte {
	tag := c.tagOf(v)
	vc := c.cases[tag]
	if vc == nil {
		panic(fmt.Errorf("Enum: %s has no case for tag %d", typeName[T](), tag))
	}
	buf = appendUint8(buf, tag)
	return vc.Append(buf, v)
}

func (c *enumCodec[T]) Read(d *Decoder) (T, error) {
	var zero T
	off := d.Off()
	tag, err := d.Byte()
	if err != nil {
		return zero, err
	}
	vc := c.cases[tag]
	if vc == nil {
		return zero, decodeErrf(d.Orig, off, nil, "unknown %s discriminant %d", typeName[T](), tag)
	}
	return vc.Read(d)
}

// StructMember is one member of a Struct codec.
type StructMember[S any] interface {
	appendFrom(buf []byte, s *S) []byte
	readInto(d *Decoder, s *S) error
}

// Member binds a struct field accessor to the codec of that field.
func Member[S, F any](get func(s *S) *F, c Codec[F]) StructMember[S] {
	return member[S, F]{get, c}
}

type member[S, F any] struct {
	get   func(s *S) *F
	codec Codec[F]
}

func (m member[S, F]) appendFrom(buf []byte, s *S) []byte {
	return m.codec.Append(buf, *m.get(s))
}

func (m member[S, F]) readInto(d *Decoder, s *S) error {
	v, err := m.codec.Read(d)
	if err != nil {
		return err
	}
	*m.get(s) = v
	return nil
}

// Struct encodes a struct as the concatenation of its members in declaration
// order. It is the codec used by Packed structs.
func Struct[S any](members ...StructMember[S]) Codec[S] {
	return structCodec[S]{members}
}

type structCodec[S any] struct {
	members []StructMember[S]
}

func (c structCodec[S]) Append(buf []byte, v S) []byte {
	for _, m := range c.members {
		buf = m.appendFrom(buf, &v)
	}
	return buf
}

func (c structCodec[S]) Read(d *Decoder) (S, error) {
	var s S
	for _, m := range c.members {
		if err := m.readInto(d, &s); err != nil {
			var zero S
			return zero, err
		}
	}
	return s, nil
}
