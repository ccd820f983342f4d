package cellstore

import (
	"math"
)

// CountsPerPack is the number of per-pack occupancy counts stored under one key.
const CountsPerPack = 32

// countsPack tracks how many bits of each of 32 Bitvec packs are set. A full
// pack (256 bits set) has its bit in full set, since a uint8 count tops out
// at 255.
type countsPack struct {
	Counts [CountsPerPack]uint8
	Full   uint32
}

func (c *countsPack) isFull(k uint32) bool {
	return c.Full&(1<<k) != 0
}

func (c *countsPack) inc(k uint32) {
	if c.Counts[k] == math.MaxUint8 {
		c.Full |= 1 << k
	} else {
		c.Counts[k]++
	}
}

func (c *countsPack) dec(k uint32) {
	if c.isFull(k) {
		c.Full &^= 1 << k
	} else {
		c.Counts[k]--
	}
}

var countsPackCodec = CodecFunc(func(buf []byte, c countsPack) []byte {
	buf = appendRaw(buf, c.Counts[:])
	return appendUint32(buf, c.Full)
}, func(d *Decoder) (countsPack, error) {
	var c countsPack
	b, err := d.Raw(CountsPerPack)
	if err != nil {
		return c, err
	}
	copy(c.Counts[:], b)
	c.Full, err = d.Uint32()
	return c, err
})

// BitStashFootprint is the number of keys reserved by a BitStash.
const BitStashFootprint = 2 * VecFootprint

// BitStash allocates the lowest free slot index. Occupancy is a Bitvec; a
// Vec of counts lets Put skip full packs without reading their bits.
type BitStash struct {
	counts *Vec[countsPack]
	free   *Bitvec
}

// NewBitStash returns a BitStash handle at root.
//
// The handle is not registered with env: it is flushed together with a root
// bound by Bind when it is reachable from that root, and otherwise only by
// an explicit Flush.
func NewBitStash(env *Env, root Key) *BitStash {
	return &BitStash{
		counts: NewVec(env, root, countsPackCodec),
		free:   NewBitvec(env, Derive(root, VecFootprint)),
	}
}

// BitStashOf lays out a BitStash.
func BitStashOf() Layout[*BitStash] {
	return bitStashLayout{}
}

type bitStashLayout struct{}

func (bitStashLayout) Kind() LayoutKind  { return KindSpread }
func (bitStashLayout) Footprint() uint64 { return BitStashFootprint }

func (bitStashLayout) Pull(env *Env, ptr *KeyPtr) (*BitStash, bool, error) {
	return NewBitStash(env, ptr.Next(BitStashFootprint)), true, nil
}

func (bitStashLayout) Push(env *Env, ptr *KeyPtr, bs *BitStash) error {
	root := ptr.Next(BitStashFootprint)
	if bs == nil {
		return nil
	}
	if err := checkHandleRoot(root, bs.Root()); err != nil {
		return err
	}
	return bs.Flush()
}

func (bitStashLayout) Clear(env *Env, ptr *KeyPtr, bs *BitStash) error {
	root := ptr.Next(BitStashFootprint)
	if bs == nil {
		bs = NewBitStash(env, root)
	} else if err := checkHandleRoot(root, bs.Root()); err != nil {
		return err
	}
	if err := bs.Clear(); err != nil {
		return err
	}
	return bs.Flush()
}

func (bs *BitStash) Root() Key {
	return bs.counts.Root()
}

// Put occupies the lowest free slot and returns its index.
func (bs *BitStash) Put() (uint32, error) {
	n, err := bs.counts.Len()
	if err != nil {
		return 0, err
	}
	bitLen, err := bs.free.Len()
	if err != nil {
		return 0, err
	}
	packs := packCount(bitLen)
	for ci := uint32(0); ci < n; ci++ {
		c, err := bs.counts.Get(ci)
		if err != nil {
			return 0, err
		}
		for k := uint32(0); k < CountsPerPack; k++ {
			j := ci*CountsPerPack + k
			if j >= packs {
				break
			}
			if c.isFull(k) {
				continue
			}
			i, ok, err := bs.free.firstZeroIn(j)
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}
			if i < bitLen {
				if err := bs.free.Set(i, true); err != nil {
					return 0, err
				}
			} else if err := bs.free.Push(true); err != nil {
				return 0, err
			}
			return i, bs.counts.Mutate(ci, func(c *countsPack) { c.inc(k) })
		}
	}

	i := bitLen
	if err := bs.free.Push(true); err != nil {
		return 0, err
	}
	j := i / BitsPerPack
	ci, k := j/CountsPerPack, j%CountsPerPack
	if ci >= n {
		var c countsPack
		c.inc(k)
		return i, bs.counts.Push(c)
	}
	return i, bs.counts.Mutate(ci, func(c *countsPack) { c.inc(k) })
}

// Get reports whether slot i is occupied. Indices past the end are free.
func (bs *BitStash) Get(i uint32) (bool, error) {
	n, err := bs.free.Len()
	if err != nil || i >= n {
		return false, err
	}
	return bs.free.Get(i)
}

// Take frees slot i and reports whether it was occupied.
func (bs *BitStash) Take(i uint32) (bool, error) {
	occupied, err := bs.Get(i)
	if err != nil || !occupied {
		return false, err
	}
	if err := bs.free.Set(i, false); err != nil {
		return false, err
	}
	j := i / BitsPerPack
	return true, bs.counts.Mutate(j/CountsPerPack, func(c *countsPack) { c.dec(j % CountsPerPack) })
}

func (bs *BitStash) Clear() error {
	if err := bs.counts.Clear(); err != nil {
		return err
	}
	return bs.free.Clear()
}

func (bs *BitStash) Flush() error {
	if err := bs.counts.Flush(); err != nil {
		return err
	}
	return bs.free.Flush()
}
