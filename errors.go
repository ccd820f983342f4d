package cellstore

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by operations that require an entry to be present.
	ErrNotFound = errors.New("not found")

	// ErrIndexOutOfRange is matched by every *IndexError.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrBudgetExhausted is wrapped into a *HostError when an invocation runs
	// out of metered resources.
	ErrBudgetExhausted = errors.New("budget exhausted")

	// ErrValueTooLarge is wrapped into a *HostError when a single value exceeds
	// Options.MaxValueSize.
	ErrValueTooLarge = errors.New("value too large")

	// ErrReadOnly is wrapped into a *HostError when writing inside a read-only invocation.
	ErrReadOnly = errors.New("read-only invocation")

	// ErrCapacity is returned when a collection would exceed 2^32 slots.
	ErrCapacity = errors.New("collection capacity exceeded")

	// ErrWrongRoot is returned when a collection handle is pushed into a slot
	// other than the one it was created for.
	ErrWrongRoot = errors.New("handle belongs to another root")
)

// DecodeError means the stored bytes are not a valid encoding of the
// expected type. It is fatal for the invocation.
type DecodeError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func decodeErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DecodeError{bytes.Clone(data), off, err, fmt.Sprintf(format, args...)}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("decode: %s at %d: %v: (%d) %x", e.Msg, e.Off, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("decode: %s at %d: (%d) %x", e.Msg, e.Off, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("decode: %s at %d: %v: (%d) %x...%x", e.Msg, e.Off, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("decode: %s at %d: (%d) %x...%x", e.Msg, e.Off, n, p, s)
		}
	}
}

// IndexError reports an out-of-range index. It is recoverable.
type IndexError struct {
	Index uint32
	Len   uint32
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range (len %d)", e.Index, e.Len)
}

func (e *IndexError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}

// HostError is a failure reported at the host boundary. It is always fatal:
// the invocation aborts and the host discards all buffered writes.
type HostError struct {
	Op  string
	Key Key
	Err error
}

func hostErr(op string, key Key, err error) error {
	return &HostError{op, key, err}
}

func (e *HostError) Unwrap() error {
	return e.Err
}

func (e *HostError) Error() string {
	return fmt.Sprintf("host %s %s: %v", e.Op, e.Key.Short(), e.Err)
}

// IsFatal reports whether err must terminate the invocation, i.e. whether it
// is a decode or host failure rather than structural misuse.
func IsFatal(err error) bool {
	var de *DecodeError
	var he *HostError
	var pe panicked
	return errors.As(err, &de) || errors.As(err, &he) || errors.As(err, &pe)
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func checkHandleRoot(slot, handle Key) error {
	if slot != handle {
		return fmt.Errorf("%w: handle at %s, slot at %s", ErrWrongRoot, handle.Short(), slot.Short())
	}
	return nil
}

func keyErr(key Key, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", key.Short(), err)
}
