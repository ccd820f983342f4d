package cellstore

import (
	"bytes"
	"slices"
)

// entry is the cached state of one Packed slot. A missing entry means the
// slot is unloaded; present=false with dirty=true means it is cleared.
type entry[T any] struct {
	key     Key
	value   T
	present bool
	dirty   bool
}

// lazyMap caches Packed slots addressed by a logical key. Slots are loaded
// on first access, at most once, and written back by flush only when dirty.
type lazyMap[K comparable, T any] struct {
	env   *Env
	codec Codec[T]
	keyOf func(k K) Key
	cache map[K]*entry[T]
}

func newLazyMap[K comparable, T any](env *Env, codec Codec[T], keyOf func(k K) Key) *lazyMap[K, T] {
	return &lazyMap[K, T]{env: env, codec: codec, keyOf: keyOf}
}

func newIndexMap[T any](env *Env, base Key, codec Codec[T]) *lazyMap[uint32, T] {
	return newLazyMap(env, codec, func(i uint32) Key {
		return Derive(base, uint64(i))
	})
}

func (m *lazyMap[K, T]) slot(k K) *entry[T] {
	if m.cache == nil {
		m.cache = make(map[K]*entry[T])
	}
	e := m.cache[k]
	if e == nil {
		e = &entry[T]{key: m.keyOf(k)}
		m.cache[k] = e
	}
	return e
}

func (m *lazyMap[K, T]) load(k K) (*entry[T], error) {
	if e := m.cache[k]; e != nil {
		return e, nil
	}
	key := m.keyOf(k)
	v, ok, err := loadPacked(m.env, key, m.codec)
	if err != nil {
		return nil, err
	}
	e := m.slot(k)
	e.value, e.present = v, ok
	return e, nil
}

func (m *lazyMap[K, T]) get(k K) (T, bool, error) {
	var zero T
	e, err := m.load(k)
	if err != nil || !e.present {
		return zero, false, err
	}
	return e.value, true, nil
}

// getMut returns nil for an absent slot.
func (m *lazyMap[K, T]) getMut(k K) (*T, error) {
	e, err := m.load(k)
	if err != nil || !e.present {
		return nil, err
	}
	e.dirty = true
	return &e.value, nil
}

// put overwrites the slot without reading it.
func (m *lazyMap[K, T]) put(k K, v T) {
	e := m.slot(k)
	e.value, e.present, e.dirty = v, true, true
}

// remove clears the slot without reading it.
func (m *lazyMap[K, T]) remove(k K) {
	e := m.slot(k)
	var zero T
	e.value, e.present, e.dirty = zero, false, true
}

func (m *lazyMap[K, T]) take(k K) (T, bool, error) {
	v, ok, err := m.get(k)
	if err != nil || !ok {
		return v, ok, err
	}
	m.remove(k)
	return v, true, nil
}

func (m *lazyMap[K, T]) swap(a, b K) error {
	if a == b {
		return nil
	}
	ea, err := m.load(a)
	if err != nil {
		return err
	}
	eb, err := m.load(b)
	if err != nil {
		return err
	}
	ea.value, eb.value = eb.value, ea.value
	ea.present, eb.present = eb.present, ea.present
	ea.dirty, eb.dirty = true, true
	return nil
}

// flush writes dirty slots in key order and marks them clean.
func (m *lazyMap[K, T]) flush() error {
	var dirty []*entry[T]
	for _, e := range m.cache {
		if e.dirty {
			dirty = append(dirty, e)
		}
	}
	slices.SortFunc(dirty, func(a, b *entry[T]) int {
		return bytes.Compare(a.key[:], b.key[:])
	})
	for _, e := range dirty {
		var err error
		if e.present {
			err = storePacked(m.env, e.key, m.codec, e.value)
		} else {
			err = m.env.remove(e.key)
		}
		if err != nil {
			return err
		}
		e.dirty = false
	}
	return nil
}

