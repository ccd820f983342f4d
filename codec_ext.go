package cellstore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack/v5"
)

// MsgPack encodes T with msgpack (map keys sorted) inside a u32 length
// prefix. Use it for opaque Packed values whose shape is owned by another
// package.
func MsgPack[T any]() Codec[T] {
	return msgpackCodec[T]{}
}

type msgpackCodec[T any] struct{}

func (msgpackCodec[T]) Append(buf []byte, v T) []byte {
	off, buf := grow(buf, 4)
	bb := bytesBuilder{buf}
	enc := msgpack.GetEncoder()
	enc.ResetDict(&bb, nil)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		panic(fmt.Errorf("failed to encode %T using MsgPack: %w", v, err))
	}
	buf = bb.Buf
	n := len(buf) - off - 4
	binary.BigEndian.PutUint32(buf[off:], uint32(n))
	return buf
}

func (msgpackCodec[T]) Read(d *Decoder) (T, error) {
	var v T
	off := d.Off()
	raw, err := d.VarBytes()
	if err != nil {
		return v, err
	}
	var r bytes.Reader
	r.Reset(raw)
	dec := msgpack.GetDecoder()
	dec.ResetDict(&r, nil)
	err = dec.Decode(&v)
	msgpack.PutDecoder(dec)
	if err != nil {
		var zero T
		return zero, decodeErrf(d.Orig, off, err, "failed to decode msgpack into %T", v)
	}
	if r.Len() != 0 {
		var zero T
		return zero, decodeErrf(d.Orig, off, nil, "%d trailing bytes after msgpack %T", r.Len(), v)
	}
	return v, nil
}

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	cborDecMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// CBOR encodes T as core deterministic CBOR inside a u32 length prefix.
func CBOR[T any]() Codec[T] {
	return cborCodec[T]{}
}

type cborCodec[T any] struct{}

func (cborCodec[T]) Append(buf []byte, v T) []byte {
	raw, err := cborEncMode.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("failed to encode %T using CBOR: %w", v, err))
	}
	return appendVarbytes(buf, raw)
}

func (cborCodec[T]) Read(d *Decoder) (T, error) {
	var v T
	off := d.Off()
	raw, err := d.VarBytes()
	if err != nil {
		return v, err
	}
	if err := cborDecMode.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero, decodeErrf(d.Orig, off, err, "failed to decode CBOR into %T", v)
	}
	return v, nil
}

// Snappy compresses the inner encoding with snappy block compression, for
// large Packed values where stored bytes dominate the cost.
func Snappy[T any](inner Codec[T]) Codec[T] {
	return snappyCodec[T]{inner}
}

type snappyCodec[T any] struct {
	inner Codec[T]
}

func (c snappyCodec[T]) Append(buf []byte, v T) []byte {
	raw := c.inner.Append(nil, v)
	return appendVarbytes(buf, snappy.Encode(nil, raw))
}

func (c snappyCodec[T]) Read(d *Decoder) (T, error) {
	var zero T
	off := d.Off()
	compressed, err := d.VarBytes()
	if err != nil {
		return zero, err
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return zero, decodeErrf(d.Orig, off, err, "invalid snappy block")
	}
	return Decode(c.inner, raw)
}
