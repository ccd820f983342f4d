package cellstore

// CellState is the lifecycle state of a Cell.
type CellState int

const (
	// CellUnloaded means no host read has happened yet.
	CellUnloaded CellState = iota
	// CellLoaded means the value (or its absence) is cached.
	CellLoaded
	// CellCleared means the value was removed in this invocation.
	CellCleared
)

func (s CellState) String() string {
	switch s {
	case CellUnloaded:
		return "unloaded"
	case CellLoaded:
		return "loaded"
	case CellCleared:
		return "cleared"
	default:
		return "invalid"
	}
}

// Cell is a lazily loaded, write-buffered handle to one logical value laid
// out at a base key. The first access loads the value exactly once; writes
// only touch the cached value until Flush.
//
// A Cell exclusively owns the keys of its value for the invocation.
type Cell[T any] struct {
	env    *Env
	base   Key
	layout Layout[T]

	state   CellState
	present bool
	dirty   bool
	value   T

	// set when a removed value was replaced in the same invocation and its
	// spread keys still need clearing before the push
	clearFirst bool
	removed    T
}

// NewCell returns an unloaded cell over the value laid out at base.
func NewCell[T any](env *Env, base Key, layout Layout[T]) *Cell[T] {
	return &Cell[T]{env: env, base: base, layout: layout}
}

func (c *Cell[T]) Key() Key          { return c.base }
func (c *Cell[T]) State() CellState  { return c.state }
func (c *Cell[T]) IsDirty() bool     { return c.dirty }
func (c *Cell[T]) Layout() Layout[T] { return c.layout }

func (c *Cell[T]) load() error {
	if c.state != CellUnloaded {
		return nil
	}
	v, ok, err := c.layout.Pull(c.env, NewKeyPtr(c.base))
	if err != nil {
		return err
	}
	c.state, c.present, c.value = CellLoaded, ok, v
	return nil
}

// Get returns the value, or ok=false if nothing is stored or the value was
// removed. Only the first access reads the host.
//
// Modifying the value through a returned pointer or collection handle needs
// GetMut, otherwise the change is not flushed.
func (c *Cell[T]) Get() (v T, ok bool, err error) {
	if err := c.load(); err != nil {
		return v, false, err
	}
	if c.state == CellCleared || !c.present {
		return v, false, nil
	}
	return c.value, true, nil
}

// GetOr returns the stored value or def if absent.
func (c *Cell[T]) GetOr(def T) (T, error) {
	v, ok, err := c.Get()
	if err != nil || !ok {
		return def, err
	}
	return v, nil
}

// GetMut returns a pointer to the cached value and marks the cell dirty.
// It returns nil if the value is absent.
func (c *Cell[T]) GetMut() (*T, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	if c.state == CellCleared || !c.present {
		return nil, nil
	}
	c.dirty = true
	return &c.value, nil
}

// Set replaces the value. No host access happens until Flush.
func (c *Cell[T]) Set(v T) {
	if c.state == CellCleared && c.layout.Kind() == KindSpread {
		c.clearFirst = true
	}
	c.state, c.present, c.dirty, c.value = CellLoaded, true, true, v
}

// Mutate applies fn to the stored value. It fails with ErrNotFound if the
// value is absent.
func (c *Cell[T]) Mutate(fn func(v *T)) error {
	p, err := c.GetMut()
	if err != nil {
		return err
	}
	if p == nil {
		return keyErr(c.base, ErrNotFound)
	}
	fn(p)
	return nil
}

// Remove marks the value cleared; Flush will remove all of its keys. It does
// not read the host.
func (c *Cell[T]) Remove() {
	// with clearFirst set, removed already holds the stored value and the
	// current one was never pushed
	if c.state == CellLoaded && !c.clearFirst {
		c.removed = c.value
	}
	c.clearFirst = false
	var zero T
	c.state, c.present, c.dirty, c.value = CellCleared, false, true, zero
}

// Flush pushes a dirty value, clears a removed one and does nothing for a
// clean cell. Afterwards the cell is clean.
func (c *Cell[T]) Flush() error {
	if !c.dirty {
		return nil
	}
	switch c.state {
	case CellCleared:
		if err := c.layout.Clear(c.env, NewKeyPtr(c.base), c.removed); err != nil {
			return err
		}
		var zero T
		c.removed = zero
	case CellLoaded:
		if c.clearFirst {
			if err := c.layout.Clear(c.env, NewKeyPtr(c.base), c.removed); err != nil {
				return err
			}
			var zero T
			c.clearFirst, c.removed = false, zero
		}
		if c.present {
			if err := c.layout.Push(c.env, NewKeyPtr(c.base), c.value); err != nil {
				return err
			}
		}
	}
	c.dirty = false
	return nil
}

// CellOf lays out a lazily loaded Cell over l. The cell takes l's footprint.
func CellOf[T any](l Layout[T]) Layout[*Cell[T]] {
	return cellLayout[T]{l}
}

type cellLayout[T any] struct {
	inner Layout[T]
}

func (l cellLayout[T]) Kind() LayoutKind  { return KindSpread }
func (l cellLayout[T]) Footprint() uint64 { return l.inner.Footprint() }

func (l cellLayout[T]) Pull(env *Env, ptr *KeyPtr) (*Cell[T], bool, error) {
	return NewCell(env, ptr.Next(l.Footprint()), l.inner), true, nil
}

func (l cellLayout[T]) Push(env *Env, ptr *KeyPtr, c *Cell[T]) error {
	ptr.Next(l.Footprint())
	if c == nil {
		return nil
	}
	return c.Flush()
}

func (l cellLayout[T]) Clear(env *Env, ptr *KeyPtr, c *Cell[T]) error {
	base := ptr.Next(l.Footprint())
	if c == nil {
		c = NewCell(env, base, l.inner)
	}
	c.Remove()
	return c.Flush()
}
