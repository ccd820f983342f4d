package cellstore

import (
	"fmt"
	"math"
)

const (
	// MaxSlots bounds the number of slots of an indexed collection.
	MaxSlots = 1 << 32

	// lengthSlot is the offset of the header (length, free-list head) of an
	// indexed collection; slot i lives at offset firstSlot+i.
	lengthSlot = 0
	firstSlot  = 1

	// VecFootprint is the number of keys reserved by Vec, Stash, Bitvec and Heap.
	VecFootprint = firstSlot + MaxSlots
)

// Vec is a dynamic array with its length at Derive(root, 0) and element i at
// Derive(root, 1+i). Elements are Packed and loaded one by one on access.
type Vec[T any] struct {
	env   *Env
	root  Key
	len   *Cell[uint32]
	elems *lazyMap[uint32, T]
}

// NewVec returns a Vec handle at root. Nothing is read until the first
// access.
//
// The handle is not registered with env: it is flushed together with a root
// bound by Bind when it is reachable from that root, and otherwise only by
// an explicit Flush.
func NewVec[T any](env *Env, root Key, c Codec[T]) *Vec[T] {
	return &Vec[T]{
		env:   env,
		root:  root,
		len:   NewCell(env, Derive(root, lengthSlot), Packed(Uint32)),
		elems: newIndexMap(env, Derive(root, firstSlot), c),
	}
}

// VecOf lays out a Vec of Packed elements.
func VecOf[T any](c Codec[T]) Layout[*Vec[T]] {
	return vecLayout[T]{c}
}

type vecLayout[T any] struct {
	codec Codec[T]
}

func (vecLayout[T]) Kind() LayoutKind  { return KindSpread }
func (vecLayout[T]) Footprint() uint64 { return VecFootprint }

func (l vecLayout[T]) Pull(env *Env, ptr *KeyPtr) (*Vec[T], bool, error) {
	return NewVec(env, ptr.Next(VecFootprint), l.codec), true, nil
}

func (l vecLayout[T]) Push(env *Env, ptr *KeyPtr, v *Vec[T]) error {
	root := ptr.Next(VecFootprint)
	if v == nil {
		return nil
	}
	if err := checkHandleRoot(root, v.Root()); err != nil {
		return err
	}
	return v.Flush()
}

func (l vecLayout[T]) Clear(env *Env, ptr *KeyPtr, v *Vec[T]) error {
	root := ptr.Next(VecFootprint)
	if v == nil {
		v = NewVec(env, root, l.codec)
	} else if err := checkHandleRoot(root, v.Root()); err != nil {
		return err
	}
	if err := v.Clear(); err != nil {
		return err
	}
	return v.Flush()
}

func (v *Vec[T]) Root() Key {
	return v.root
}

func (v *Vec[T]) Len() (uint32, error) {
	return v.len.GetOr(0)
}

func (v *Vec[T]) IsEmpty() (bool, error) {
	n, err := v.Len()
	return n == 0, err
}

func (v *Vec[T]) setLen(n uint32) {
	if n == 0 {
		v.len.Remove()
	} else {
		v.len.Set(n)
	}
}

func (v *Vec[T]) checkIndex(i uint32) error {
	n, err := v.Len()
	if err != nil {
		return err
	}
	if i >= n {
		return &IndexError{i, n}
	}
	return nil
}

func (v *Vec[T]) Get(i uint32) (T, error) {
	var zero T
	if err := v.checkIndex(i); err != nil {
		return zero, err
	}
	x, ok, err := v.elems.get(i)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, missingSlotErr(v.root, i)
	}
	return x, nil
}

// Set overwrites element i without reading its previous value.
func (v *Vec[T]) Set(i uint32, x T) error {
	if err := v.checkIndex(i); err != nil {
		return err
	}
	v.elems.put(i, x)
	return nil
}

func (v *Vec[T]) Mutate(i uint32, fn func(x *T)) error {
	if err := v.checkIndex(i); err != nil {
		return err
	}
	p, err := v.elems.getMut(i)
	if err != nil {
		return err
	}
	if p == nil {
		return missingSlotErr(v.root, i)
	}
	fn(p)
	return nil
}

// Push appends x. It fails with ErrCapacity once the Vec holds 2^32-1 elements.
func (v *Vec[T]) Push(x T) error {
	n, err := v.Len()
	if err != nil {
		return err
	}
	if n == math.MaxUint32 {
		return ErrCapacity
	}
	v.setLen(n + 1)
	v.elems.put(n, x)
	return nil
}

// Pop removes and returns the last element, or ok=false if the Vec is empty.
func (v *Vec[T]) Pop() (x T, ok bool, err error) {
	n, err := v.Len()
	if err != nil || n == 0 {
		return x, false, err
	}
	x, ok, err = v.elems.take(n - 1)
	if err != nil {
		return x, false, err
	}
	if !ok {
		return x, false, missingSlotErr(v.root, n-1)
	}
	v.setLen(n - 1)
	return x, true, nil
}

func (v *Vec[T]) First() (x T, ok bool, err error) {
	n, err := v.Len()
	if err != nil || n == 0 {
		return x, false, err
	}
	x, err = v.Get(0)
	return x, err == nil, err
}

func (v *Vec[T]) Last() (x T, ok bool, err error) {
	n, err := v.Len()
	if err != nil || n == 0 {
		return x, false, err
	}
	x, err = v.Get(n - 1)
	return x, err == nil, err
}

func (v *Vec[T]) Swap(a, b uint32) error {
	if err := v.checkIndex(a); err != nil {
		return err
	}
	if err := v.checkIndex(b); err != nil {
		return err
	}
	return v.elems.swap(a, b)
}

// SwapRemove removes element i by moving the last element into its place.
func (v *Vec[T]) SwapRemove(i uint32) (T, error) {
	var zero T
	n, err := v.Len()
	if err != nil {
		return zero, err
	}
	if i >= n {
		return zero, &IndexError{i, n}
	}
	if err := v.elems.swap(i, n-1); err != nil {
		return zero, err
	}
	x, _, err := v.Pop()
	return x, err
}

// Clear removes every element and the length. Elements are cleared without
// being read.
func (v *Vec[T]) Clear() error {
	n, err := v.Len()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		v.elems.remove(i)
	}
	v.setLen(0)
	return nil
}

// Each calls fn for every element in index order, stopping at the first error.
func (v *Vec[T]) Each(fn func(i uint32, x T) error) error {
	n, err := v.Len()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		x, err := v.Get(i)
		if err != nil {
			return err
		}
		if err := fn(i, x); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes the pending changes and leaves the Vec clean.
func (v *Vec[T]) Flush() error {
	if err := v.len.Flush(); err != nil {
		return err
	}
	return v.elems.flush()
}

func missingSlotErr(root Key, i uint32) error {
	return keyErr(root, decodeErrf(nil, 0, nil, "slot %d within length is missing", i))
}

func (v *Vec[T]) String() string {
	return fmt.Sprintf("Vec(%s)", v.root.Short())
}
