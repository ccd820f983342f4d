package cellstore

// Host is the only persistent storage primitive the core relies on: point
// reads, point writes and point removals by fixed-size key. There is no
// scan, no batch and no transaction control.
type Host interface {
	// Get returns the stored bytes, or ok=false if the key is unset.
	// The returned slice is only valid until the end of the invocation.
	Get(key Key) (value []byte, ok bool, err error)

	// Set overwrites or creates the value at key.
	Set(key Key, value []byte) error

	// Clear removes the value at key. Clearing an unset key is not an error.
	Clear(key Key) error
}

// HostTx is one invocation's view of a Backend. Pending writes become
// visible to other invocations only on Commit, all at once.
type HostTx interface {
	Host

	// Writable returns true if this is a writable invocation.
	Writable() bool

	// Commit atomically applies every write made through this HostTx.
	Commit() error

	// Rollback discards all writes. It should be safe to call multiple times,
	// including after Commit.
	Rollback() error

	// ForEach lists stored pairs in key order. Only debugging tools use it;
	// the storage core never iterates.
	ForEach(fn func(key Key, value []byte) error) error
}

// Backend provides the all-or-nothing commit the core builds on.
type Backend interface {
	// Begin starts an invocation. Writable invocations are serialized.
	Begin(writable bool) (HostTx, error)

	// Close closes the backend.
	Close() error
}
