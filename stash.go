package cellstore

import (
	"math"
)

const noVacant = math.MaxUint32

// stashHeader lives at Derive(root, 0).
type stashHeader struct {
	// LastVacant is the head of the circular vacant list, the slot the next
	// Put reuses, or noVacant.
	LastVacant uint32
	Len        uint32
	LenEntries uint32
}

var stashHeaderCodec = Struct(
	Member(func(h *stashHeader) *uint32 { return &h.LastVacant }, Uint32),
	Member(func(h *stashHeader) *uint32 { return &h.Len }, Uint32),
	Member(func(h *stashHeader) *uint32 { return &h.LenEntries }, Uint32),
)

var emptyStashHeader = stashHeader{LastVacant: noVacant}

const (
	stashOccupied byte = 0
	stashVacant   byte = 1
)

// stashEntry is either an occupied value or a link of the vacant list.
type stashEntry[T any] struct {
	occupied bool
	value    T
	prev     uint32
	next     uint32
}

func stashEntryCodec[T any](c Codec[T]) Codec[stashEntry[T]] {
	return Enum(func(e stashEntry[T]) byte {
		if e.occupied {
			return stashOccupied
		}
		return stashVacant
	}, Case[stashEntry[T]]{
		Tag: stashOccupied,
		Codec: CodecFunc(func(buf []byte, e stashEntry[T]) []byte {
			return c.Append(buf, e.value)
		}, func(d *Decoder) (stashEntry[T], error) {
			v, err := c.Read(d)
			return stashEntry[T]{occupied: true, value: v}, err
		}),
	}, Case[stashEntry[T]]{
		Tag: stashVacant,
		Codec: CodecFunc(func(buf []byte, e stashEntry[T]) []byte {
			buf = appendUint32(buf, e.prev)
			return appendUint32(buf, e.next)
		}, func(d *Decoder) (stashEntry[T], error) {
			prev, err := d.Uint32()
			if err != nil {
				return stashEntry[T]{}, err
			}
			next, err := d.Uint32()
			return stashEntry[T]{prev: prev, next: next}, err
		}),
	})
}

// Stash is a slot-reuse container: Take vacates a slot without shifting the
// others, and Put reuses the most recently vacated slot before appending.
// Vacant slots form a persisted circular doubly linked list so that any of
// them can be unlinked in O(1) (Defrag needs that).
type Stash[T any] struct {
	env     *Env
	root    Key
	header  *Cell[stashHeader]
	entries *lazyMap[uint32, stashEntry[T]]
}

// NewStash returns a Stash handle at root.
//
// The handle is not registered with env: it is flushed together with a root
// bound by Bind when it is reachable from that root, and otherwise only by
// an explicit Flush.
func NewStash[T any](env *Env, root Key, c Codec[T]) *Stash[T] {
	return &Stash[T]{
		env:     env,
		root:    root,
		header:  NewCell(env, Derive(root, lengthSlot), Packed(stashHeaderCodec)),
		entries: newIndexMap(env, Derive(root, firstSlot), stashEntryCodec(c)),
	}
}

// StashOf lays out a Stash of Packed values.
func StashOf[T any](c Codec[T]) Layout[*Stash[T]] {
	return stashLayout[T]{c}
}

type stashLayout[T any] struct {
	codec Codec[T]
}

func (stashLayout[T]) Kind() LayoutKind  { return KindSpread }
func (stashLayout[T]) Footprint() uint64 { return VecFootprint }

func (l stashLayout[T]) Pull(env *Env, ptr *KeyPtr) (*Stash[T], bool, error) {
	return NewStash(env, ptr.Next(VecFootprint), l.codec), true, nil
}

func (l stashLayout[T]) Push(env *Env, ptr *KeyPtr, s *Stash[T]) error {
	root := ptr.Next(VecFootprint)
	if s == nil {
		return nil
	}
	if err := checkHandleRoot(root, s.Root()); err != nil {
		return err
	}
	return s.Flush()
}

func (l stashLayout[T]) Clear(env *Env, ptr *KeyPtr, s *Stash[T]) error {
	root := ptr.Next(VecFootprint)
	if s == nil {
		s = NewStash(env, root, l.codec)
	} else if err := checkHandleRoot(root, s.Root()); err != nil {
		return err
	}
	if err := s.Clear(); err != nil {
		return err
	}
	return s.Flush()
}

func (s *Stash[T]) Root() Key {
	return s.root
}

func (s *Stash[T]) loadHeader() (stashHeader, error) {
	return s.header.GetOr(emptyStashHeader)
}

func (s *Stash[T]) storeHeader(h stashHeader) {
	if h == emptyStashHeader {
		s.header.Remove()
	} else {
		s.header.Set(h)
	}
}

// Len is the number of occupied slots.
func (s *Stash[T]) Len() (uint32, error) {
	h, err := s.loadHeader()
	return h.Len, err
}

// LenEntries is the number of slots, occupied or vacant.
func (s *Stash[T]) LenEntries() (uint32, error) {
	h, err := s.loadHeader()
	return h.LenEntries, err
}

func (s *Stash[T]) entry(i uint32) (*stashEntry[T], error) {
	p, err := s.entries.getMut(i)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, missingSlotErr(s.root, i)
	}
	return p, nil
}

// Put stores v and returns its slot index.
func (s *Stash[T]) Put(v T) (uint32, error) {
	h, err := s.loadHeader()
	if err != nil {
		return 0, err
	}
	var idx uint32
	if h.LastVacant != noVacant {
		idx = h.LastVacant
		if err := s.unlink(&h, idx); err != nil {
			return 0, err
		}
	} else {
		if h.LenEntries == noVacant {
			return 0, ErrCapacity
		}
		idx = h.LenEntries
		h.LenEntries++
	}
	s.entries.put(idx, stashEntry[T]{occupied: true, value: v})
	h.Len++
	s.storeHeader(h)
	return idx, nil
}

// Get returns the value at slot i, or ok=false if the slot is vacant or
// beyond the end.
func (s *Stash[T]) Get(i uint32) (v T, ok bool, err error) {
	h, err := s.loadHeader()
	if err != nil || i >= h.LenEntries {
		return v, false, err
	}
	e, ok, err := s.entries.get(i)
	if err != nil {
		return v, false, err
	}
	if !ok {
		return v, false, missingSlotErr(s.root, i)
	}
	if !e.occupied {
		return v, false, nil
	}
	return e.value, true, nil
}

// Set overwrites the occupied slot i.
func (s *Stash[T]) Set(i uint32, v T) error {
	h, err := s.loadHeader()
	if err != nil {
		return err
	}
	if i >= h.LenEntries {
		return &IndexError{i, h.LenEntries}
	}
	e, err := s.entry(i)
	if err != nil {
		return err
	}
	if !e.occupied {
		return keyErr(s.root, ErrNotFound)
	}
	e.value = v
	return nil
}

// Take vacates slot i and returns its value, or ok=false if it was not occupied.
func (s *Stash[T]) Take(i uint32) (v T, ok bool, err error) {
	h, err := s.loadHeader()
	if err != nil || i >= h.LenEntries {
		return v, false, err
	}
	e, err := s.entry(i)
	if err != nil {
		return v, false, err
	}
	if !e.occupied {
		return v, false, nil
	}
	v = e.value
	if err := s.link(&h, i); err != nil {
		return v, false, err
	}
	h.Len--
	s.storeHeader(h)
	return v, true, nil
}

// link makes slot i the head of the vacant list.
func (s *Stash[T]) link(h *stashHeader, i uint32) error {
	if h.LastVacant == noVacant {
		s.entries.put(i, stashEntry[T]{prev: i, next: i})
		h.LastVacant = i
		return nil
	}
	head := h.LastVacant
	headEntry, err := s.entry(head)
	if err != nil {
		return err
	}
	prev := headEntry.prev
	prevEntry, err := s.entry(prev)
	if err != nil {
		return err
	}
	prevEntry.next = i
	headEntry.prev = i
	s.entries.put(i, stashEntry[T]{prev: prev, next: head})
	h.LastVacant = i
	return nil
}

// unlink removes the vacant slot i from the vacant list.
func (s *Stash[T]) unlink(h *stashHeader, i uint32) error {
	e, err := s.entry(i)
	if err != nil {
		return err
	}
	if e.occupied {
		return keyErr(s.root, decodeErrf(nil, 0, nil, "vacant list points to occupied slot %d", i))
	}
	if e.next == i {
		h.LastVacant = noVacant
		return nil
	}
	prev, next := e.prev, e.next
	prevEntry, err := s.entry(prev)
	if err != nil {
		return err
	}
	prevEntry.next = next
	nextEntry, err := s.entry(next)
	if err != nil {
		return err
	}
	nextEntry.prev = prev
	if h.LastVacant == i {
		h.LastVacant = next
	}
	return nil
}

// Defrag shrinks the Stash by moving occupied slots from the end into vacant
// slots, at most maxIterations steps (0 means no limit). onMove, if not nil,
// is called for each moved value so that external references can be
// updated. It returns the number of slots removed from the end.
func (s *Stash[T]) Defrag(maxIterations uint32, onMove func(from, to uint32, v T) error) (uint32, error) {
	h, err := s.loadHeader()
	if err != nil {
		return 0, err
	}
	var n uint32
	for h.LenEntries > h.Len && (maxIterations == 0 || n < maxIterations) {
		last := h.LenEntries - 1
		e, err := s.entry(last)
		if err != nil {
			return n, err
		}
		if !e.occupied {
			if err := s.unlink(&h, last); err != nil {
				return n, err
			}
		} else {
			v := e.value
			to := h.LastVacant
			if err := s.unlink(&h, to); err != nil {
				return n, err
			}
			s.entries.put(to, stashEntry[T]{occupied: true, value: v})
			if onMove != nil {
				if err := onMove(last, to, v); err != nil {
					return n, err
				}
			}
		}
		s.entries.remove(last)
		h.LenEntries--
		n++
	}
	s.storeHeader(h)
	return n, nil
}

// Each calls fn for every occupied slot in index order.
func (s *Stash[T]) Each(fn func(i uint32, v T) error) error {
	h, err := s.loadHeader()
	if err != nil {
		return err
	}
	for i := uint32(0); i < h.LenEntries; i++ {
		e, ok, err := s.entries.get(i)
		if err != nil {
			return err
		}
		if !ok {
			return missingSlotErr(s.root, i)
		}
		if !e.occupied {
			continue
		}
		if err := fn(i, e.value); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes every slot and the header without reading the slots.
func (s *Stash[T]) Clear() error {
	h, err := s.loadHeader()
	if err != nil {
		return err
	}
	for i := uint32(0); i < h.LenEntries; i++ {
		s.entries.remove(i)
	}
	s.storeHeader(emptyStashHeader)
	return nil
}

func (s *Stash[T]) Flush() error {
	if err := s.header.Flush(); err != nil {
		return err
	}
	return s.entries.flush()
}
