package cellstore

import (
	"unicode/utf8"
)

var (
	Uint8  Codec[uint8]  = uint8Codec{}
	Uint16 Codec[uint16] = uint16Codec{}
	Uint32 Codec[uint32] = uint32Codec{}
	Uint64 Codec[uint64] = uint64Codec{}
	Int8   Codec[int8]   = int8Codec{}
	Int16  Codec[int16]  = int16Codec{}
	Int32  Codec[int32]  = int32Codec{}
	Int64  Codec[int64]  = int64Codec{}
	Bool   Codec[bool]   = boolCodec{}
	String Codec[string] = stringCodec{}
	Bytes  Codec[[]byte] = bytesCodec{}

	// KeyCodec encodes a Key as its 32 raw bytes.
	KeyCodec Codec[Key] = keyCodec{}
)

type uint8Codec struct{}

func (uint8Codec) Append(buf []byte, v uint8) []byte { return appendUint8(buf, v) }
func (uint8Codec) Read(d *Decoder) (uint8, error)    { return d.Byte() }

type uint16Codec struct{}

func (uint16Codec) Append(buf []byte, v uint16) []byte { return appendUint16(buf, v) }
func (uint16Codec) Read(d *Decoder) (uint16, error)    { return d.Uint16() }

type uint32Codec struct{}

func (uint32Codec) Append(buf []byte, v uint32) []byte { return appendUint32(buf, v) }
func (uint32Codec) Read(d *Decoder) (uint32, error)    { return d.Uint32() }

type uint64Codec struct{}

func (uint64Codec) Append(buf []byte, v uint64) []byte { return appendUint64(buf, v) }
func (uint64Codec) Read(d *Decoder) (uint64, error)    { return d.Uint64() }

type int8Codec struct{}

func (int8Codec) Append(buf []byte, v int8) []byte { return appendUint8(buf, uint8(v)) }
func (int8Codec) Read(d *Decoder) (int8, error) {
	v, err := d.Byte()
	return int8(v), err
}

type int16Codec struct{}

func (int16Codec) Append(buf []byte, v int16) []byte { return appendUint16(buf, uint16(v)) }
func (int16Codec) Read(d *Decoder) (int16, error) {
	v, err := d.Uint16()
	return int16(v), err
}

type int32Codec struct{}

func (int32Codec) Append(buf []byte, v int32) []byte { return appendUint32(buf, uint32(v)) }
func (int32Codec) Read(d *Decoder) (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

type int64Codec struct{}

func (int64Codec) Append(buf []byte, v int64) []byte { return appendUint64(buf, uint64(v)) }
func (int64Codec) Read(d *Decoder) (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

type boolCodec struct{}

func (boolCodec) Append(buf []byte, v bool) []byte {
	if v {
		return appendUint8(buf, 1)
	}
	return appendUint8(buf, 0)
}

func (boolCodec) Read(d *Decoder) (bool, error) {
	off := d.Off()
	b, err := d.Byte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, decodeErrf(d.Orig, off, nil, "invalid bool byte 0x%02x", b)
	}
}

type stringCodec struct{}

func (stringCodec) Append(buf []byte, v string) []byte {
	buf = appendUint32(buf, uint32(len(v)))
	off, buf := grow(buf, len(v))
	copy(buf[off:], v)
	return buf
}

func (stringCodec) Read(d *Decoder) (string, error) {
	off := d.Off()
	b, err := d.VarBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", decodeErrf(d.Orig, off, nil, "invalid UTF-8 string")
	}
	return string(b), nil
}

type bytesCodec struct{}

func (bytesCodec) Append(buf []byte, v []byte) []byte { return appendVarbytes(buf, v) }

func (bytesCodec) Read(d *Decoder) ([]byte, error) {
	b, err := d.VarBytes()
	if err != nil {
		return nil, err
	}
	return append([]byte{}, b...), nil
}

type keyCodec struct{}

func (keyCodec) Append(buf []byte, v Key) []byte { return appendRaw(buf, v[:]) }

func (keyCodec) Read(d *Decoder) (Key, error) {
	var k Key
	b, err := d.Raw(KeyLen)
	if err != nil {
		return k, err
	}
	copy(k[:], b)
	return k, nil
}

// FixedBytes encodes byte slices of exactly n bytes without a length prefix.
// Appending a slice of a different length panics.
func FixedBytes(n int) Codec[[]byte] {
	return fixedBytesCodec(n)
}

type fixedBytesCodec int

func (c fixedBytesCodec) Append(buf []byte, v []byte) []byte {
	if len(v) != int(c) {
		panic("FixedBytes: wrong length")
	}
	return appendRaw(buf, v)
}

func (c fixedBytesCodec) Read(d *Decoder) ([]byte, error) {
	b, err := d.Raw(int(c))
	if err != nil {
		return nil, err
	}
	return append([]byte{}, b...), nil
}
