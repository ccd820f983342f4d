package cellstore

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"sync"
)

type memBackend struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  map[Key][]byte
	closed bool
	writer bool
}

// NewMemBackend returns a transient in-memory Backend, mostly for tests.
// Each invocation works on a snapshot, so an aborted invocation leaves the
// committed state untouched.
func NewMemBackend() Backend {
	s := &memBackend{items: make(map[Key][]byte)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *memBackend) Begin(writable bool) (HostTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("backend closed")
	}
	if writable {
		for s.writer && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			return nil, fmt.Errorf("backend closed")
		}
		s.writer = true
	}

	// Values are never mutated in place, so a shallow copy is a snapshot.
	return &memTx{
		writable: writable,
		base:     s,
		items:    maps.Clone(s.items),
	}, nil
}

func (s *memBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.items = nil
	s.cond.Broadcast()
	return nil
}

type memTx struct {
	base     *memBackend
	writable bool
	items    map[Key][]byte
	closed   bool
}

func (tx *memTx) Writable() bool { return tx.writable }

func (tx *memTx) closeLocked() {
	if tx.closed {
		return
	}
	tx.closed = true
	if tx.writable {
		tx.base.writer = false
		tx.base.cond.Broadcast()
	}
}

func (tx *memTx) Get(key Key) ([]byte, bool, error) {
	if tx.closed {
		return nil, false, fmt.Errorf("tx is closed")
	}
	v, ok := tx.items[key]
	return v, ok, nil
}

func (tx *memTx) Set(key Key, value []byte) error {
	if tx.closed {
		return fmt.Errorf("tx is closed")
	}
	if !tx.writable {
		return ErrReadOnly
	}
	tx.items[key] = slices.Clone(value)
	return nil
}

func (tx *memTx) Clear(key Key) error {
	if tx.closed {
		return fmt.Errorf("tx is closed")
	}
	if !tx.writable {
		return ErrReadOnly
	}
	delete(tx.items, key)
	return nil
}

func (tx *memTx) ForEach(fn func(key Key, value []byte) error) error {
	keys := slices.SortedFunc(maps.Keys(tx.items), func(a, b Key) int {
		return bytes.Compare(a[:], b[:])
	})
	for _, k := range keys {
		if err := fn(k, tx.items[k]); err != nil {
			return err
		}
	}
	return nil
}

func (tx *memTx) Commit() error {
	if tx.closed {
		return nil
	}
	if !tx.writable {
		return ErrReadOnly
	}
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	if tx.base.closed {
		tx.closeLocked()
		return fmt.Errorf("backend closed")
	}
	tx.base.items = tx.items
	tx.closeLocked()
	return nil
}

func (tx *memTx) Rollback() error {
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	tx.closeLocked()
	return nil
}
