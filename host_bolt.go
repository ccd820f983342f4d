package cellstore

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var cellsBucket = []byte("cells")

// BoltOptions tunes the bbolt file backing a store.
type BoltOptions struct {
	IsTesting bool
	MmapSize  int
	Timeout   time.Duration
}

type boltBackend struct {
	bdb *bbolt.DB
}

// OpenBolt opens (creating if needed) a bbolt-backed Backend. All cells live
// in a single bucket keyed by the raw 32-byte key.
func OpenBolt(path string, opt BoltOptions) (Backend, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.Timeout != 0 {
		bopt.Timeout = opt.Timeout
	}
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 64
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("cellstore: %w", err)
	}
	err = bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(cellsBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("cellstore: %w", err)
	}
	return &boltBackend{bdb: bdb}, nil
}

// NewBoltBackend wraps an already open bbolt database.
func NewBoltBackend(bdb *bbolt.DB) (Backend, error) {
	err := bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(cellsBucket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &boltBackend{bdb: bdb}, nil
}

func (s *boltBackend) Bolt() *bbolt.DB {
	return s.bdb
}

func (s *boltBackend) Begin(writable bool) (HostTx, error) {
	btx, err := s.bdb.Begin(writable)
	if err != nil {
		return nil, err
	}
	b := btx.Bucket(cellsBucket)
	if b == nil {
		btx.Rollback()
		return nil, fmt.Errorf("cellstore: missing %q bucket", cellsBucket)
	}
	return &boltTx{btx: btx, b: b}, nil
}

func (s *boltBackend) Close() error {
	return s.bdb.Close()
}

type boltTx struct {
	btx *bbolt.Tx
	b   *bbolt.Bucket
}

func (tx *boltTx) Writable() bool { return tx.btx.Writable() }

func (tx *boltTx) Get(key Key) ([]byte, bool, error) {
	v := tx.b.Get(key[:])
	return v, v != nil, nil
}

func (tx *boltTx) Set(key Key, value []byte) error {
	if !tx.btx.Writable() {
		return ErrReadOnly
	}
	// Bolt treats a nil value as a missing key on Get.
	if value == nil {
		value = []byte{}
	}
	return tx.b.Put(key[:], value)
}

func (tx *boltTx) Clear(key Key) error {
	if !tx.btx.Writable() {
		return ErrReadOnly
	}
	return tx.b.Delete(key[:])
}

func (tx *boltTx) ForEach(fn func(key Key, value []byte) error) error {
	return tx.b.ForEach(func(k, v []byte) error {
		key, err := KeyFromBytes(k)
		if err != nil {
			return err
		}
		return fn(key, v)
	})
}

func (tx *boltTx) Commit() error { return tx.btx.Commit() }

func (tx *boltTx) Rollback() error {
	err := tx.btx.Rollback()
	if err == bbolt.ErrTxClosed {
		return nil
	}
	return err
}
