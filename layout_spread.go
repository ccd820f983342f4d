package cellstore

import (
	"fmt"
	"math/bits"
)

// SpreadField is one component of a Spread layout.
type SpreadField[S any] interface {
	Name() string
	Footprint() uint64
	pull(env *Env, ptr *KeyPtr, s *S) (bool, error)
	push(env *Env, ptr *KeyPtr, s *S) error
	clear(env *Env, ptr *KeyPtr, s *S) error
	barePacked() (string, bool)
}

// Field binds a struct field accessor to the layout of that field.
func Field[S, F any](name string, get func(s *S) *F, l Layout[F]) SpreadField[S] {
	return &spreadField[S, F]{name, get, l}
}

type spreadField[S, F any] struct {
	name   string
	get    func(s *S) *F
	layout Layout[F]
}

func (f *spreadField[S, F]) Name() string      { return f.name }
func (f *spreadField[S, F]) Footprint() uint64 { return f.layout.Footprint() }

func (f *spreadField[S, F]) pull(env *Env, ptr *KeyPtr, s *S) (bool, error) {
	v, ok, err := f.layout.Pull(env, ptr)
	if err != nil {
		return false, fmt.Errorf("%s: %w", f.name, err)
	}
	*f.get(s) = v
	return ok, nil
}

func (f *spreadField[S, F]) push(env *Env, ptr *KeyPtr, s *S) error {
	if err := f.layout.Push(env, ptr, *f.get(s)); err != nil {
		return fmt.Errorf("%s: %w", f.name, err)
	}
	return nil
}

func (f *spreadField[S, F]) clear(env *Env, ptr *KeyPtr, s *S) error {
	if err := f.layout.Clear(env, ptr, *f.get(s)); err != nil {
		return fmt.Errorf("%s: %w", f.name, err)
	}
	return nil
}

func (f *spreadField[S, F]) barePacked() (string, bool) {
	if f.layout.Kind() == KindPacked {
		return f.name, true
	}
	if pf, ok := f.layout.(packedFieldFinder); ok {
		if name, ok := pf.barePacked(); ok {
			return f.name + "." + name, true
		}
	}
	return "", false
}

// packedFieldFinder is implemented by layouts that can contain Packed fields
// outside of any Cell. Such fields have no dirty tracking: they are pushed
// on every flush of the value, which is only correct when the whole value
// sits in a Cell.
type packedFieldFinder interface {
	barePacked() (string, bool)
}

// Spread lays out a struct field by field: each field takes the next
// Footprint() keys of the cursor in declaration order, so a field that is a
// Packed value occupies one key and a field that is a collection recurses
// into its own range. Accessing one field never materializes the others
// when the fields are cells or collections.
func Spread[S any](fields ...SpreadField[S]) Layout[S] {
	var total uint64
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name()] {
			panic(fmt.Errorf("Spread: duplicate field %q", f.Name()))
		}
		seen[f.Name()] = true
		var carry uint64
		total, carry = bits.Add64(total, f.Footprint(), 0)
		if carry != 0 {
			panic(fmt.Errorf("Spread: footprint overflow at field %q", f.Name()))
		}
	}
	return &spreadLayout[S]{fields, total}
}

type spreadLayout[S any] struct {
	fields    []SpreadField[S]
	footprint uint64
}

func (l *spreadLayout[S]) Kind() LayoutKind  { return KindSpread }
func (l *spreadLayout[S]) Footprint() uint64 { return l.footprint }

func (l *spreadLayout[S]) barePacked() (string, bool) {
	for _, f := range l.fields {
		if name, ok := f.barePacked(); ok {
			return name, true
		}
	}
	return "", false
}

func (l *spreadLayout[S]) Pull(env *Env, ptr *KeyPtr) (S, bool, error) {
	var s S
	var found bool
	for _, f := range l.fields {
		ok, err := f.pull(env, ptr, &s)
		if err != nil {
			var zero S
			return zero, false, err
		}
		found = found || ok
	}
	return s, found, nil
}

func (l *spreadLayout[S]) Push(env *Env, ptr *KeyPtr, v S) error {
	for _, f := range l.fields {
		if err := f.push(env, ptr, &v); err != nil {
			return err
		}
	}
	return nil
}

func (l *spreadLayout[S]) Clear(env *Env, ptr *KeyPtr, v S) error {
	for _, f := range l.fields {
		if err := f.clear(env, ptr, &v); err != nil {
			return err
		}
	}
	return nil
}

// FieldOffsets returns the offset of each field's first key relative to the
// root of a value laid out with l, keyed by field name. It panics if l was
// not built by Spread.
func FieldOffsets[S any](l Layout[S]) map[string]uint64 {
	sl := l.(*spreadLayout[S])
	result := make(map[string]uint64, len(sl.fields))
	var off uint64
	for _, f := range sl.fields {
		result[f.Name()] = off
		off += f.Footprint()
	}
	return result
}
