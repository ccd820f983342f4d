package cellstore

import (
	"fmt"
)

// MappingFootprint is the number of keys reserved by a Mapping. Entries live
// at hashed keys outside of the linear key space.
const MappingFootprint = 1

// Mapping is an associative map whose entry for k lives at
// HashKey(root, Encode(kc, k)). The host cannot enumerate keys, so a Mapping
// knows neither its size nor its entries; see HashMap for that.
type Mapping[K comparable, V any] struct {
	env     *Env
	root    Key
	entries *lazyMap[K, V]
}

// NewMapping returns a Mapping handle at root.
//
// The handle is not registered with env: it is flushed together with a root
// bound by Bind when it is reachable from that root, and otherwise only by
// an explicit Flush.
func NewMapping[K comparable, V any](env *Env, root Key, kc Codec[K], vc Codec[V]) *Mapping[K, V] {
	return &Mapping[K, V]{
		env:  env,
		root: root,
		entries: newLazyMap(env, vc, func(k K) Key {
			return HashKey(root, Encode(kc, k))
		}),
	}
}

// MappingOf lays out a Mapping.
func MappingOf[K comparable, V any](kc Codec[K], vc Codec[V]) Layout[*Mapping[K, V]] {
	return mappingLayout[K, V]{kc, vc}
}

type mappingLayout[K comparable, V any] struct {
	kc Codec[K]
	vc Codec[V]
}

func (mappingLayout[K, V]) Kind() LayoutKind  { return KindSpread }
func (mappingLayout[K, V]) Footprint() uint64 { return MappingFootprint }

func (l mappingLayout[K, V]) Pull(env *Env, ptr *KeyPtr) (*Mapping[K, V], bool, error) {
	return NewMapping(env, ptr.Next(MappingFootprint), l.kc, l.vc), true, nil
}

func (l mappingLayout[K, V]) Push(env *Env, ptr *KeyPtr, m *Mapping[K, V]) error {
	root := ptr.Next(MappingFootprint)
	if m == nil {
		return nil
	}
	if err := checkHandleRoot(root, m.Root()); err != nil {
		return err
	}
	return m.Flush()
}

// Clear can only remove the entries touched in this invocation; untouched
// entries are unknown to it.
func (l mappingLayout[K, V]) Clear(env *Env, ptr *KeyPtr, m *Mapping[K, V]) error {
	root := ptr.Next(MappingFootprint)
	if m == nil {
		return nil
	}
	if err := checkHandleRoot(root, m.Root()); err != nil {
		return err
	}
	for k := range m.entries.cache {
		m.entries.remove(k)
	}
	return m.entries.flush()
}

func (m *Mapping[K, V]) Root() Key {
	return m.root
}

// KeyOf returns the storage key of the entry for k.
func (m *Mapping[K, V]) KeyOf(k K) Key {
	return m.entries.keyOf(k)
}

// Get returns the entry for k, or ok=false if there is none.
func (m *Mapping[K, V]) Get(k K) (v V, ok bool, err error) {
	return m.entries.get(k)
}

func (m *Mapping[K, V]) Contains(k K) (bool, error) {
	_, ok, err := m.entries.get(k)
	return ok, err
}

// Insert sets the entry for k without reading the previous one.
func (m *Mapping[K, V]) Insert(k K, v V) {
	m.entries.put(k, v)
}

// Remove clears the entry for k without reading it.
func (m *Mapping[K, V]) Remove(k K) {
	m.entries.remove(k)
}

// Take removes the entry for k and returns its previous value.
func (m *Mapping[K, V]) Take(k K) (v V, ok bool, err error) {
	return m.entries.take(k)
}

// Mutate applies fn to the entry for k, failing with ErrNotFound if absent.
func (m *Mapping[K, V]) Mutate(k K, fn func(v *V)) error {
	p, err := m.entries.getMut(k)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%v: %w", k, ErrNotFound)
	}
	fn(p)
	return nil
}

// Upsert applies fn to the entry for k, starting from the zero value if absent.
func (m *Mapping[K, V]) Upsert(k K, fn func(v *V)) error {
	v, _, err := m.entries.get(k)
	if err != nil {
		return err
	}
	fn(&v)
	m.entries.put(k, v)
	return nil
}

// Flush writes the entries changed since the last flush.
func (m *Mapping[K, V]) Flush() error {
	return m.entries.flush()
}
