package cellstore

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

type levelBackend struct {
	db *leveldb.DB
}

// OpenLevelDB opens (creating if needed) a LevelDB-backed Backend. Writable
// invocations run inside a LevelDB transaction, read-only ones on a snapshot.
func OpenLevelDB(dir string) (Backend, error) {
	db, err := leveldb.OpenFile(dir, &opt.Options{
		Compression: opt.NoCompression,
		Filter:      filter.NewBloomFilter(10), // 10 bits/key
	})
	if err != nil {
		return nil, fmt.Errorf("cellstore: %w", err)
	}
	return &levelBackend{db}, nil
}

func (s *levelBackend) Begin(writable bool) (HostTx, error) {
	if !writable {
		snap, err := s.db.GetSnapshot()
		if err != nil {
			return nil, err
		}
		return &levelSnapshotTx{snap: snap}, nil
	}
	tr, err := s.db.OpenTransaction()
	if err != nil {
		return nil, err
	}
	return &levelTx{tr: tr}, nil
}

func (s *levelBackend) Close() error {
	return s.db.Close()
}

type levelTx struct {
	tr   *leveldb.Transaction
	done bool
}

func (tx *levelTx) Writable() bool { return true }

func (tx *levelTx) Get(key Key) ([]byte, bool, error) {
	v, err := tx.tr.Get(key[:], nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (tx *levelTx) Set(key Key, value []byte) error {
	return tx.tr.Put(key[:], value, nil)
}

func (tx *levelTx) Clear(key Key) error {
	return tx.tr.Delete(key[:], nil)
}

func (tx *levelTx) ForEach(fn func(key Key, value []byte) error) error {
	it := tx.tr.NewIterator(nil, nil)
	defer it.Release()
	return forEachLevel(it.Next, it.Key, it.Value, it.Error, fn)
}

func (tx *levelTx) Commit() error {
	if tx.done {
		return nil
	}
	tx.done = true
	return tx.tr.Commit()
}

func (tx *levelTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.tr.Discard()
	return nil
}

type levelSnapshotTx struct {
	snap *leveldb.Snapshot
	done bool
}

func (tx *levelSnapshotTx) Writable() bool { return false }

func (tx *levelSnapshotTx) Get(key Key) ([]byte, bool, error) {
	v, err := tx.snap.Get(key[:], nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (tx *levelSnapshotTx) Set(key Key, value []byte) error { return ErrReadOnly }

func (tx *levelSnapshotTx) Clear(key Key) error { return ErrReadOnly }

func (tx *levelSnapshotTx) ForEach(fn func(key Key, value []byte) error) error {
	it := tx.snap.NewIterator(nil, nil)
	defer it.Release()
	return forEachLevel(it.Next, it.Key, it.Value, it.Error, fn)
}

func (tx *levelSnapshotTx) Commit() error { return ErrReadOnly }

func (tx *levelSnapshotTx) Rollback() error {
	if !tx.done {
		tx.done = true
		tx.snap.Release()
	}
	return nil
}

func forEachLevel(next func() bool, key, value func() []byte, iterErr func() error, fn func(key Key, value []byte) error) error {
	for next() {
		k, err := KeyFromBytes(key())
		if err != nil {
			return err
		}
		if err := fn(k, value()); err != nil {
			return err
		}
	}
	return iterErr()
}
