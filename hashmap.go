package cellstore

// HashMapFootprint is the number of keys reserved by a HashMap: a Stash of
// keys followed by the Mapping of values.
const HashMapFootprint = VecFootprint + MappingFootprint

// hashEntry is a HashMap value together with the Stash slot of its key.
type hashEntry[V any] struct {
	Value V
	Slot  uint32
}

func hashEntryCodec[V any](vc Codec[V]) Codec[hashEntry[V]] {
	return Struct(
		Member(func(e *hashEntry[V]) *V { return &e.Value }, vc),
		Member(func(e *hashEntry[V]) *uint32 { return &e.Slot }, Uint32),
	)
}

// HashMap is a Mapping that also keeps its keys in a Stash, so it knows its
// size and can be iterated and cleared at the price of extra bookkeeping
// writes.
type HashMap[K comparable, V any] struct {
	root    Key
	keys    *Stash[K]
	entries *Mapping[K, hashEntry[V]]
}

// NewHashMap returns a HashMap handle at root.
//
// The handle is not registered with env: it is flushed together with a root
// bound by Bind when it is reachable from that root, and otherwise only by
// an explicit Flush.
func NewHashMap[K comparable, V any](env *Env, root Key, kc Codec[K], vc Codec[V]) *HashMap[K, V] {
	return &HashMap[K, V]{
		root:    root,
		keys:    NewStash(env, root, kc),
		entries: NewMapping(env, Derive(root, VecFootprint), kc, hashEntryCodec(vc)),
	}
}

// HashMapOf lays out a HashMap.
func HashMapOf[K comparable, V any](kc Codec[K], vc Codec[V]) Layout[*HashMap[K, V]] {
	return hashMapLayout[K, V]{kc, vc}
}

type hashMapLayout[K comparable, V any] struct {
	kc Codec[K]
	vc Codec[V]
}

func (hashMapLayout[K, V]) Kind() LayoutKind  { return KindSpread }
func (hashMapLayout[K, V]) Footprint() uint64 { return HashMapFootprint }

func (l hashMapLayout[K, V]) Pull(env *Env, ptr *KeyPtr) (*HashMap[K, V], bool, error) {
	return NewHashMap(env, ptr.Next(HashMapFootprint), l.kc, l.vc), true, nil
}

func (l hashMapLayout[K, V]) Push(env *Env, ptr *KeyPtr, m *HashMap[K, V]) error {
	root := ptr.Next(HashMapFootprint)
	if m == nil {
		return nil
	}
	if err := checkHandleRoot(root, m.Root()); err != nil {
		return err
	}
	return m.Flush()
}

func (l hashMapLayout[K, V]) Clear(env *Env, ptr *KeyPtr, m *HashMap[K, V]) error {
	root := ptr.Next(HashMapFootprint)
	if m == nil {
		m = NewHashMap(env, root, l.kc, l.vc)
	} else if err := checkHandleRoot(root, m.Root()); err != nil {
		return err
	}
	if err := m.Clear(); err != nil {
		return err
	}
	return m.Flush()
}

func (m *HashMap[K, V]) Root() Key {
	return m.root
}

func (m *HashMap[K, V]) Len() (uint32, error) {
	return m.keys.Len()
}

func (m *HashMap[K, V]) Get(k K) (v V, ok bool, err error) {
	e, ok, err := m.entries.Get(k)
	return e.Value, ok, err
}

func (m *HashMap[K, V]) Contains(k K) (bool, error) {
	return m.entries.Contains(k)
}

// Insert sets the value for k and returns the previous one, if any.
func (m *HashMap[K, V]) Insert(k K, v V) (prev V, ok bool, err error) {
	e, ok, err := m.entries.Get(k)
	if err != nil {
		return prev, false, err
	}
	if ok {
		m.entries.Insert(k, hashEntry[V]{v, e.Slot})
		return e.Value, true, nil
	}
	slot, err := m.keys.Put(k)
	if err != nil {
		return prev, false, err
	}
	m.entries.Insert(k, hashEntry[V]{v, slot})
	return prev, false, nil
}

// Take removes k and returns its value.
func (m *HashMap[K, V]) Take(k K) (v V, ok bool, err error) {
	e, ok, err := m.entries.Take(k)
	if err != nil || !ok {
		return v, false, err
	}
	if _, _, err := m.keys.Take(e.Slot); err != nil {
		return v, false, err
	}
	return e.Value, true, nil
}

// Mutate applies fn to the value for k, failing with ErrNotFound if absent.
func (m *HashMap[K, V]) Mutate(k K, fn func(v *V)) error {
	return m.entries.Mutate(k, func(e *hashEntry[V]) { fn(&e.Value) })
}

// Keys returns every key in slot order.
func (m *HashMap[K, V]) Keys() ([]K, error) {
	var keys []K
	err := m.keys.Each(func(_ uint32, k K) error {
		keys = append(keys, k)
		return nil
	})
	return keys, err
}

// Each calls fn for every entry in slot order.
func (m *HashMap[K, V]) Each(fn func(k K, v V) error) error {
	return m.keys.Each(func(slot uint32, k K) error {
		e, ok, err := m.entries.Get(k)
		if err != nil {
			return err
		}
		if !ok {
			return keyErr(m.entries.KeyOf(k), decodeErrf(nil, 0, nil, "entry of key slot %d is missing", slot))
		}
		return fn(k, e.Value)
	})
}

// Defrag compacts the key Stash, at most maxIterations steps (0 means no
// limit), and repoints the moved entries.
func (m *HashMap[K, V]) Defrag(maxIterations uint32) (uint32, error) {
	return m.keys.Defrag(maxIterations, func(from, to uint32, k K) error {
		return m.entries.Mutate(k, func(e *hashEntry[V]) { e.Slot = to })
	})
}

// Clear removes every entry and key.
func (m *HashMap[K, V]) Clear() error {
	err := m.keys.Each(func(_ uint32, k K) error {
		m.entries.Remove(k)
		return nil
	})
	if err != nil {
		return err
	}
	return m.keys.Clear()
}

func (m *HashMap[K, V]) Flush() error {
	if err := m.keys.Flush(); err != nil {
		return err
	}
	return m.entries.Flush()
}
