package cellstore

import (
	"fmt"
	"math"
	"math/bits"
)

// BitsPerPack is the number of bits of a Bitvec stored under one key.
const BitsPerPack = 256

const wordsPerPack = BitsPerPack / 64

// bitsPack holds bit i of the pack in word i/64, bit i%64 (LSB first).
type bitsPack [wordsPerPack]uint64

func (p *bitsPack) get(i uint32) bool {
	return p[i/64]&(1<<(i%64)) != 0
}

func (p *bitsPack) set(i uint32, b bool) {
	if b {
		p[i/64] |= 1 << (i % 64)
	} else {
		p[i/64] &^= 1 << (i % 64)
	}
}

func (p *bitsPack) ones() int {
	var n int
	for _, w := range p {
		n += bits.OnesCount64(w)
	}
	return n
}

// firstZero returns the index of the lowest zero bit, or BitsPerPack if all
// bits are set.
func (p *bitsPack) firstZero() uint32 {
	for wi, w := range p {
		if w != math.MaxUint64 {
			return uint32(wi*64 + bits.TrailingZeros64(^w))
		}
	}
	return BitsPerPack
}

var bitsPackCodec = CodecFunc(func(buf []byte, p bitsPack) []byte {
	for _, w := range p {
		buf = appendUint64(buf, w)
	}
	return buf
}, func(d *Decoder) (bitsPack, error) {
	var p bitsPack
	for i := range p {
		w, err := d.Uint64()
		if err != nil {
			return p, err
		}
		p[i] = w
	}
	return p, nil
})

// Bitvec is a dynamic bit array packing 256 bits per key. Its length lives at
// Derive(root, 0) and pack j at Derive(root, 1+j). Bits beyond the length
// are always zero in storage.
type Bitvec struct {
	env   *Env
	root  Key
	len   *Cell[uint32]
	packs *lazyMap[uint32, bitsPack]
}

// NewBitvec returns a Bitvec handle at root.
//
// The handle is not registered with env: it is flushed together with a root
// bound by Bind when it is reachable from that root, and otherwise only by
// an explicit Flush.
func NewBitvec(env *Env, root Key) *Bitvec {
	return &Bitvec{
		env:   env,
		root:  root,
		len:   NewCell(env, Derive(root, lengthSlot), Packed(Uint32)),
		packs: newIndexMap(env, Derive(root, firstSlot), bitsPackCodec),
	}
}

// BitvecOf lays out a Bitvec.
func BitvecOf() Layout[*Bitvec] {
	return bitvecLayout{}
}

type bitvecLayout struct{}

func (bitvecLayout) Kind() LayoutKind  { return KindSpread }
func (bitvecLayout) Footprint() uint64 { return VecFootprint }

func (bitvecLayout) Pull(env *Env, ptr *KeyPtr) (*Bitvec, bool, error) {
	return NewBitvec(env, ptr.Next(VecFootprint)), true, nil
}

func (bitvecLayout) Push(env *Env, ptr *KeyPtr, bv *Bitvec) error {
	root := ptr.Next(VecFootprint)
	if bv == nil {
		return nil
	}
	if err := checkHandleRoot(root, bv.Root()); err != nil {
		return err
	}
	return bv.Flush()
}

func (bitvecLayout) Clear(env *Env, ptr *KeyPtr, bv *Bitvec) error {
	root := ptr.Next(VecFootprint)
	if bv == nil {
		bv = NewBitvec(env, root)
	} else if err := checkHandleRoot(root, bv.Root()); err != nil {
		return err
	}
	if err := bv.Clear(); err != nil {
		return err
	}
	return bv.Flush()
}

func (bv *Bitvec) Root() Key {
	return bv.root
}

func (bv *Bitvec) Len() (uint32, error) {
	return bv.len.GetOr(0)
}

func (bv *Bitvec) setLen(n uint32) {
	if n == 0 {
		bv.len.Remove()
	} else {
		bv.len.Set(n)
	}
}

func packCount(n uint32) uint32 {
	return uint32((uint64(n) + BitsPerPack - 1) / BitsPerPack)
}

func (bv *Bitvec) pack(j uint32) (*bitsPack, error) {
	p, err := bv.packs.getMut(j)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, missingSlotErr(bv.root, j)
	}
	return p, nil
}

func (bv *Bitvec) checkIndex(i uint32) error {
	n, err := bv.Len()
	if err != nil {
		return err
	}
	if i >= n {
		return &IndexError{i, n}
	}
	return nil
}

func (bv *Bitvec) Get(i uint32) (bool, error) {
	if err := bv.checkIndex(i); err != nil {
		return false, err
	}
	p, ok, err := bv.packs.get(i / BitsPerPack)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, missingSlotErr(bv.root, i/BitsPerPack)
	}
	return p.get(i % BitsPerPack), nil
}

func (bv *Bitvec) Set(i uint32, b bool) error {
	if err := bv.checkIndex(i); err != nil {
		return err
	}
	p, err := bv.pack(i / BitsPerPack)
	if err != nil {
		return err
	}
	p.set(i%BitsPerPack, b)
	return nil
}

// Flip inverts bit i and returns its new value.
func (bv *Bitvec) Flip(i uint32) (bool, error) {
	if err := bv.checkIndex(i); err != nil {
		return false, err
	}
	p, err := bv.pack(i / BitsPerPack)
	if err != nil {
		return false, err
	}
	b := !p.get(i % BitsPerPack)
	p.set(i%BitsPerPack, b)
	return b, nil
}

// Push appends a bit. Starting a new pack does not read the host.
func (bv *Bitvec) Push(b bool) error {
	n, err := bv.Len()
	if err != nil {
		return err
	}
	if n == math.MaxUint32 {
		return ErrCapacity
	}
	if n%BitsPerPack == 0 {
		var p bitsPack
		p.set(0, b)
		bv.packs.put(n/BitsPerPack, p)
	} else if b {
		p, err := bv.pack(n / BitsPerPack)
		if err != nil {
			return err
		}
		p.set(n%BitsPerPack, true)
	}
	bv.setLen(n + 1)
	return nil
}

// Pop removes the last bit, or returns ok=false if the Bitvec is empty.
func (bv *Bitvec) Pop() (b bool, ok bool, err error) {
	n, err := bv.Len()
	if err != nil || n == 0 {
		return false, false, err
	}
	i := n - 1
	if i%BitsPerPack == 0 {
		p, ok, err := bv.packs.take(i / BitsPerPack)
		if err != nil {
			return false, false, err
		}
		if !ok {
			return false, false, missingSlotErr(bv.root, i/BitsPerPack)
		}
		b = p.get(0)
	} else {
		p, err := bv.pack(i / BitsPerPack)
		if err != nil {
			return false, false, err
		}
		b = p.get(i % BitsPerPack)
		p.set(i%BitsPerPack, false)
	}
	bv.setLen(i)
	return b, true, nil
}

// CountOnes reads every pack.
func (bv *Bitvec) CountOnes() (uint64, error) {
	n, err := bv.Len()
	if err != nil {
		return 0, err
	}
	var total uint64
	for j := uint32(0); j < packCount(n); j++ {
		p, ok, err := bv.packs.get(j)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, missingSlotErr(bv.root, j)
		}
		total += uint64(p.ones())
	}
	return total, nil
}

func (bv *Bitvec) Each(fn func(i uint32, b bool) error) error {
	n, err := bv.Len()
	if err != nil {
		return err
	}
	for j := uint32(0); j < packCount(n); j++ {
		p, ok, err := bv.packs.get(j)
		if err != nil {
			return err
		}
		if !ok {
			return missingSlotErr(bv.root, j)
		}
		for k := uint32(0); k < BitsPerPack; k++ {
			i := j*BitsPerPack + k
			if i >= n {
				break
			}
			if err := fn(i, p.get(k)); err != nil {
				return err
			}
		}
	}
	return nil
}

// firstZeroIn returns the lowest zero bit of pack j as an absolute index.
// The result may equal the length when the last pack is full up to it.
func (bv *Bitvec) firstZeroIn(j uint32) (uint32, bool, error) {
	p, ok, err := bv.packs.get(j)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, missingSlotErr(bv.root, j)
	}
	k := p.firstZero()
	if k == BitsPerPack {
		return 0, false, nil
	}
	return j*BitsPerPack + k, true, nil
}

// Clear removes every pack and the length without reading the packs.
func (bv *Bitvec) Clear() error {
	n, err := bv.Len()
	if err != nil {
		return err
	}
	for j := uint32(0); j < packCount(n); j++ {
		bv.packs.remove(j)
	}
	bv.setLen(0)
	return nil
}

func (bv *Bitvec) Flush() error {
	if err := bv.len.Flush(); err != nil {
		return err
	}
	return bv.packs.flush()
}

func (bv *Bitvec) String() string {
	return fmt.Sprintf("Bitvec(%s)", bv.root.Short())
}
