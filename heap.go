package cellstore

import (
	"fmt"
	"math"
)

// heapGroup holds siblings 2g-1 and 2g. Group 0 holds only the root.
type heapGroup[T any] struct {
	Left  Opt[T]
	Right Opt[T]
}

func heapGroupCodec[T any](c Codec[T]) Codec[heapGroup[T]] {
	return Struct(
		Member(func(g *heapGroup[T]) *Opt[T] { return &g.Left }, Option(c)),
		Member(func(g *heapGroup[T]) *Opt[T] { return &g.Right }, Option(c)),
	)
}

// heapSlot maps element i to its group and side. Siblings share a group so
// that sift-down reads both children with a single host read.
func heapSlot(i uint32) (group uint32, left bool) {
	if i == 0 {
		return 0, true
	}
	return uint32((uint64(i) + 1) / 2), i%2 == 1
}

// Heap is a max-priority queue ordered by less: Pop returns an element x
// such that less(x, y) is false for every other y. Its length lives at
// Derive(root, 0) and group g at Derive(root, 1+g).
type Heap[T any] struct {
	env    *Env
	root   Key
	less   func(a, b T) bool
	len    *Cell[uint32]
	groups *lazyMap[uint32, heapGroup[T]]
}

// NewHeap returns a Heap handle at root.
//
// The handle is not registered with env: it is flushed together with a root
// bound by Bind when it is reachable from that root, and otherwise only by
// an explicit Flush.
func NewHeap[T any](env *Env, root Key, c Codec[T], less func(a, b T) bool) *Heap[T] {
	return &Heap[T]{
		env:    env,
		root:   root,
		less:   less,
		len:    NewCell(env, Derive(root, lengthSlot), Packed(Uint32)),
		groups: newIndexMap(env, Derive(root, firstSlot), heapGroupCodec(c)),
	}
}

// HeapOf lays out a Heap of Packed elements.
func HeapOf[T any](c Codec[T], less func(a, b T) bool) Layout[*Heap[T]] {
	return heapLayout[T]{c, less}
}

type heapLayout[T any] struct {
	codec Codec[T]
	less  func(a, b T) bool
}

func (heapLayout[T]) Kind() LayoutKind  { return KindSpread }
func (heapLayout[T]) Footprint() uint64 { return VecFootprint }

func (l heapLayout[T]) Pull(env *Env, ptr *KeyPtr) (*Heap[T], bool, error) {
	return NewHeap(env, ptr.Next(VecFootprint), l.codec, l.less), true, nil
}

func (l heapLayout[T]) Push(env *Env, ptr *KeyPtr, h *Heap[T]) error {
	root := ptr.Next(VecFootprint)
	if h == nil {
		return nil
	}
	if err := checkHandleRoot(root, h.Root()); err != nil {
		return err
	}
	return h.Flush()
}

func (l heapLayout[T]) Clear(env *Env, ptr *KeyPtr, h *Heap[T]) error {
	root := ptr.Next(VecFootprint)
	if h == nil {
		h = NewHeap(env, root, l.codec, l.less)
	} else if err := checkHandleRoot(root, h.Root()); err != nil {
		return err
	}
	if err := h.Clear(); err != nil {
		return err
	}
	return h.Flush()
}

func (h *Heap[T]) Root() Key {
	return h.root
}

func (h *Heap[T]) Len() (uint32, error) {
	return h.len.GetOr(0)
}

func (h *Heap[T]) IsEmpty() (bool, error) {
	n, err := h.Len()
	return n == 0, err
}

func (h *Heap[T]) setLen(n uint32) {
	if n == 0 {
		h.len.Remove()
	} else {
		h.len.Set(n)
	}
}

func (h *Heap[T]) elem(i uint32) (T, error) {
	var zero T
	g, left := heapSlot(i)
	grp, ok, err := h.groups.get(g)
	if err != nil {
		return zero, err
	}
	side := grp.Right
	if left {
		side = grp.Left
	}
	v, ok2 := side.Get()
	if !ok || !ok2 {
		return zero, missingSlotErr(h.root, i)
	}
	return v, nil
}

func (h *Heap[T]) setElem(i uint32, v Opt[T]) error {
	g, left := heapSlot(i)
	grp, _, err := h.groups.get(g)
	if err != nil {
		return err
	}
	if left {
		grp.Left = v
	} else {
		grp.Right = v
	}
	if _, ok := grp.Left.Get(); !ok {
		if _, ok := grp.Right.Get(); !ok {
			h.groups.remove(g)
			return nil
		}
	}
	h.groups.put(g, grp)
	return nil
}

// Peek returns the greatest element without removing it.
func (h *Heap[T]) Peek() (v T, ok bool, err error) {
	n, err := h.Len()
	if err != nil || n == 0 {
		return v, false, err
	}
	v, err = h.elem(0)
	return v, err == nil, err
}

func (h *Heap[T]) Push(v T) error {
	n, err := h.Len()
	if err != nil {
		return err
	}
	if n == math.MaxUint32 {
		return ErrCapacity
	}
	i := n
	for i > 0 {
		p := (i - 1) / 2
		pv, err := h.elem(p)
		if err != nil {
			return err
		}
		if !h.less(pv, v) {
			break
		}
		if err := h.setElem(i, Some(pv)); err != nil {
			return err
		}
		i = p
	}
	if err := h.setElem(i, Some(v)); err != nil {
		return err
	}
	h.setLen(n + 1)
	return nil
}

// Pop removes and returns the greatest element, or ok=false if the Heap is empty.
func (h *Heap[T]) Pop() (top T, ok bool, err error) {
	n, err := h.Len()
	if err != nil || n == 0 {
		return top, false, err
	}
	top, err = h.elem(0)
	if err != nil {
		return top, false, err
	}
	last := n - 1
	v, err := h.elem(last)
	if err != nil {
		return top, false, err
	}
	if err := h.setElem(last, None[T]()); err != nil {
		return top, false, err
	}
	h.setLen(last)
	if last == 0 {
		return top, true, nil
	}

	i := uint32(0)
	for {
		l := uint64(i)*2 + 1
		if l >= uint64(last) {
			break
		}
		c := uint32(l)
		cv, err := h.elem(c)
		if err != nil {
			return top, false, err
		}
		if r := c + 1; r < last {
			rv, err := h.elem(r)
			if err != nil {
				return top, false, err
			}
			if h.less(cv, rv) {
				c, cv = r, rv
			}
		}
		if !h.less(v, cv) {
			break
		}
		if err := h.setElem(i, Some(cv)); err != nil {
			return top, false, err
		}
		i = c
	}
	if err := h.setElem(i, Some(v)); err != nil {
		return top, false, err
	}
	return top, true, nil
}

// Clear removes every element and the length without reading the elements.
func (h *Heap[T]) Clear() error {
	n, err := h.Len()
	if err != nil {
		return err
	}
	if n > 0 {
		g, _ := heapSlot(n - 1)
		for j := uint32(0); j <= g; j++ {
			h.groups.remove(j)
		}
	}
	h.setLen(0)
	return nil
}

// Flush writes the pending changes.
func (h *Heap[T]) Flush() error {
	if err := h.len.Flush(); err != nil {
		return err
	}
	return h.groups.flush()
}

func (h *Heap[T]) String() string {
	return fmt.Sprintf("Heap(%s)", h.root.Short())
}
