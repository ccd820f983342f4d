package cellstore

// LayoutKind is the storage strategy of a type.
type LayoutKind int

const (
	// KindPacked stores the whole value encoded under a single key.
	KindPacked LayoutKind = iota
	// KindSpread stores each component under its own derived key.
	KindSpread
)

func (k LayoutKind) String() string {
	switch k {
	case KindPacked:
		return "packed"
	case KindSpread:
		return "spread"
	default:
		return "unknown"
	}
}

// Layout governs how a value of type T is pulled from and pushed to the host.
// The cursor is advanced by exactly Footprint() keys by every Pull, Push and
// Clear, so consecutive components get disjoint key ranges.
type Layout[T any] interface {
	Kind() LayoutKind

	// Footprint is the number of consecutive keys the value reserves.
	Footprint() uint64

	// Pull reconstructs the value. ok is false when nothing is stored.
	// Spread collections bind lazily and report ok=true without any host read.
	Pull(env *Env, ptr *KeyPtr) (v T, ok bool, err error)

	// Push persists the value.
	Push(env *Env, ptr *KeyPtr, v T) error

	// Clear removes every key the value occupies.
	Clear(env *Env, ptr *KeyPtr, v T) error
}

// Packed lays out a value as one encoded blob under one key.
func Packed[T any](c Codec[T]) Layout[T] {
	return packedLayout[T]{c}
}

type packedLayout[T any] struct {
	codec Codec[T]
}

func (packedLayout[T]) Kind() LayoutKind  { return KindPacked }
func (packedLayout[T]) Footprint() uint64 { return 1 }

func (l packedLayout[T]) Pull(env *Env, ptr *KeyPtr) (T, bool, error) {
	return loadPacked(env, ptr.Next(1), l.codec)
}

func (l packedLayout[T]) Push(env *Env, ptr *KeyPtr, v T) error {
	return storePacked(env, ptr.Next(1), l.codec, v)
}

func (l packedLayout[T]) Clear(env *Env, ptr *KeyPtr, v T) error {
	return env.remove(ptr.Next(1))
}

