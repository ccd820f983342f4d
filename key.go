package cellstore

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// KeyLen is the fixed size of every storage key.
const KeyLen = 32

// Key names one storage slot.
type Key [KeyLen]byte

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Short returns an abbreviated form for logs and errors.
func (k Key) Short() string {
	return hex.EncodeToString(k[:4]) + ".." + hex.EncodeToString(k[KeyLen-4:])
}

func (k Key) Bytes() []byte {
	return k[:]
}

// ParseKey parses a 64-character hex key.
func ParseKey(s string) (Key, error) {
	var k Key
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("invalid key %q: %w", s, err)
	}
	if len(b) != KeyLen {
		return k, fmt.Errorf("invalid key %q: got %d bytes, wanted %d", s, len(b), KeyLen)
	}
	copy(k[:], b)
	return k, nil
}

// KeyFromBytes converts a raw host key, failing on a length mismatch.
func KeyFromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != KeyLen {
		return k, fmt.Errorf("invalid key length %d", len(b))
	}
	copy(k[:], b)
	return k, nil
}

// NamedKey derives a root key from a human-readable name.
func NamedKey(name string) Key {
	return blake2b.Sum256([]byte(name))
}

// Derive returns the key at the given structural offset from root: the key
// is treated as a 256-bit big-endian unsigned integer and offset is added to
// it, wrapping on overflow.
func Derive(root Key, offset uint64) Key {
	k := root
	carry := offset
	for i := KeyLen - 1; i >= 0 && carry != 0; i-- {
		sum := uint64(k[i]) + (carry & 0xFF)
		k[i] = byte(sum)
		carry = (carry >> 8) + (sum >> 8)
	}
	return k
}

// HashKey derives the key of a hashed sub-key (map entries) as
// BLAKE2b-256(root ‖ subkey).
func HashKey(root Key, subkey []byte) Key {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err) // only fails for oversized MAC keys
	}
	h.Write(root[:])
	h.Write(subkey)
	var k Key
	h.Sum(k[:0])
	return k
}

// KeyPtr is the cursor threaded through nested pulls, pushes and clears.
// Each component takes the next footprint-sized range of keys in declaration
// order, so sibling components never share a key.
type KeyPtr struct {
	key Key
}

func NewKeyPtr(root Key) *KeyPtr {
	return &KeyPtr{root}
}

// Key returns the key the next component would start at.
func (p *KeyPtr) Key() Key {
	return p.key
}

// Next returns the base key of a component with the given footprint and
// advances the cursor past it.
func (p *KeyPtr) Next(footprint uint64) Key {
	k := p.key
	p.key = Derive(p.key, footprint)
	return k
}
