package cellstore

import (
	"bytes"
	"maps"
	"slices"
	"strings"
	"testing"
)

type wallet struct {
	Owner  *Cell[string]
	Coins  *Vec[uint64]
	Limits *Mapping[string, uint64]
}

var walletLayout = Spread(
	Field("Owner", func(w *wallet) **Cell[string] { return &w.Owner }, CellOf(Packed(String))),
	Field("Coins", func(w *wallet) **Vec[uint64] { return &w.Coins }, VecOf(Uint64)),
	Field("Limits", func(w *wallet) **Mapping[string, uint64] { return &w.Limits }, MappingOf(String, Uint64)),
)

type point struct {
	X, Y int32
}

var pointLayout = Spread(
	Field("X", func(p *point) *int32 { return &p.X }, Packed(Int32)),
	Field("Y", func(p *point) *int32 { return &p.Y }, Packed(Int32)),
)

// storedKeys returns everything committed to the backend of db.
func storedKeys(t testing.TB, db *DB) map[Key][]byte {
	t.Helper()
	htx, err := db.Backend().Begin(false)
	noErr(t, err)
	defer htx.Rollback()
	result := make(map[Key][]byte)
	noErr(t, htx.ForEach(func(key Key, value []byte) error {
		result[key] = bytes.Clone(value)
		return nil
	}))
	return result
}

func sortedKeys(m map[Key][]byte) []Key {
	return slices.SortedFunc(maps.Keys(m), func(a, b Key) int {
		return bytes.Compare(a[:], b[:])
	})
}

func TestLayout_Kinds(t *testing.T) {
	if a, e := Packed(Uint8).Kind(), KindPacked; a != e {
		t.Fatalf("Packed.Kind = %v, wanted %v", a, e)
	}
	if a, e := Packed(Uint8).Footprint(), uint64(1); a != e {
		t.Fatalf("Packed.Footprint = %v, wanted %v", a, e)
	}
	if a, e := walletLayout.Kind(), KindSpread; a != e {
		t.Fatalf("Spread.Kind = %v, wanted %v", a, e)
	}
	if a, e := walletLayout.Footprint(), uint64(1+VecFootprint+MappingFootprint); a != e {
		t.Fatalf("Spread.Footprint = %v, wanted %v", a, e)
	}
	deepEqual(t, FieldOffsets(walletLayout), map[string]uint64{"Owner": 0, "Coins": 1, "Limits": 1 + VecFootprint})
	if a, e := KindSpread.String(), "spread"; a != e {
		t.Fatalf("KindSpread.String() = %q, wanted %q", a, e)
	}
}

func TestLayout_SpreadDuplicateFieldPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	Spread(
		Field("X", func(p *point) *int32 { return &p.X }, Packed(Int32)),
		Field("X", func(p *point) *int32 { return &p.Y }, Packed(Int32)),
	)
}

func TestLayout_SpreadKeysAreDisjoint(t *testing.T) {
	db := setup(t)
	root := NamedKey("wallet")
	err := Call(db, root, walletLayout, func(env *Env, w wallet) error {
		w.Owner.Set("alice")
		noErr(t, w.Coins.Push(1))
		noErr(t, w.Coins.Push(2))
		w.Limits.Insert("day", 5)
		return nil
	})
	noErr(t, err)

	limitsBase := Derive(root, 1+VecFootprint)
	wanted := map[Key][]byte{
		root:                                     Encode(String, "alice"),
		Derive(root, 1):                          Encode(Uint32, 2),
		Derive(root, 2):                          Encode(Uint64, 1),
		Derive(root, 3):                          Encode(Uint64, 2),
		HashKey(limitsBase, Encode(String, "day")): Encode(Uint64, 5),
	}
	deepEqual(t, storedKeys(t, db), wanted)
}

func TestLayout_SpreadPackedFields(t *testing.T) {
	db := setup(t)
	root := NamedKey("point")
	err := Call(db, root, CellOf(pointLayout), func(env *Env, c *Cell[point]) error {
		if _, ok, err := c.Get(); err != nil || ok {
			t.Fatalf("Get on empty = (%v, %v), wanted absent", ok, err)
		}
		c.Set(point{3, -4})
		return nil
	})
	noErr(t, err)
	deepEqual(t, sortedKeys(storedKeys(t, db)), []Key{root, Derive(root, 1)})

	err = Query(db, root, CellOf(pointLayout), func(env *Env, c *Cell[point]) error {
		p, ok, err := c.Get()
		noErr(t, err)
		if !ok || p != (point{3, -4}) {
			t.Fatalf("Get = (%v, %v), wanted ({3 -4}, true)", p, ok)
		}
		return nil
	})
	noErr(t, err)

	err = Call(db, root, CellOf(pointLayout), func(env *Env, c *Cell[point]) error {
		c.Remove()
		return nil
	})
	noErr(t, err)
	if a := storedKeys(t, db); len(a) != 0 {
		t.Fatalf("after Remove, stored = %v, wanted nothing", a)
	}
}

func TestBind_Errors(t *testing.T) {
	db := setup(t)
	root := NamedKey("r")
	err := db.Invoke(func(env *Env) error {
		if _, err := Bind(env, root, Packed(Uint8)); err == nil {
			t.Fatalf("Bind(Packed) succeeded, wanted error")
		}
		if _, err := Bind(env, root, CellOf(Packed(Uint8))); err != nil {
			return err
		}
		if _, err := Bind(env, root, CellOf(Packed(Uint8))); err == nil {
			t.Fatalf("second Bind of the same root succeeded, wanted error")
		}
		return nil
	})
	noErr(t, err)
}

func TestBind_RejectsBarePackedFields(t *testing.T) {
	db := setup(t)
	root := NamedKey("point")
	called := false
	err := Call(db, root, pointLayout, func(env *Env, p point) error {
		called = true
		p.X = 5
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "field X is Packed") {
		t.Fatalf("Call(pointLayout) = %v, wanted field X is Packed", err)
	}
	err = Query(db, root, pointLayout, func(env *Env, p point) error {
		called = true
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "field X is Packed") {
		t.Fatalf("Query(pointLayout) = %v, wanted field X is Packed", err)
	}
	if called {
		t.Fatalf("fn ran for a rejected layout")
	}

	type segment struct {
		Len *Cell[uint32]
		P   point
	}
	segmentLayout := Spread(
		Field("Len", func(s *segment) **Cell[uint32] { return &s.Len }, CellOf(Packed(Uint32))),
		Field("P", func(s *segment) *point { return &s.P }, pointLayout),
	)
	err = db.Invoke(func(env *Env) error {
		_, err := Bind(env, root, segmentLayout)
		return err
	})
	if err == nil || !strings.Contains(err.Error(), "field P.X is Packed") {
		t.Fatalf("Bind(segmentLayout) = %v, wanted field P.X is Packed", err)
	}

	if a := db.WriteCount.Load(); a != 0 {
		t.Fatalf("WriteCount = %d, wanted 0", a)
	}
	if a := storedKeys(t, db); len(a) != 0 {
		t.Fatalf("stored = %v, wanted nothing", a)
	}
}

type limits struct {
	Max      *Cell[uint64]
	PerOwner *Mapping[Key, uint64]
}

var limitsLayout = Spread(
	Field("Max", func(s *limits) **Cell[uint64] { return &s.Max }, CellOf(Packed(Uint64))),
	Field("PerOwner", func(s *limits) **Mapping[Key, uint64] { return &s.PerOwner }, MappingOf(KeyCodec, Uint64)),
)

type ledger struct {
	Total    *Cell[uint64]
	Accounts *HashMap[Key, account]
	Log      *Vec[[]uint8]
	Queue    *Heap[uint32]
	Flags    *Bitvec
	Limits   limits
}

var ledgerLayout = Spread(
	Field("Total", func(s *ledger) **Cell[uint64] { return &s.Total }, CellOf(Packed(Uint64))),
	Field("Accounts", func(s *ledger) **HashMap[Key, account] { return &s.Accounts }, HashMapOf(KeyCodec, accountCodec)),
	Field("Log", func(s *ledger) **Vec[[]uint8] { return &s.Log }, VecOf(Slice(Uint8))),
	Field("Queue", func(s *ledger) **Heap[uint32] { return &s.Queue }, HeapOf(Uint32, func(a, b uint32) bool { return a < b })),
	Field("Flags", func(s *ledger) **Bitvec { return &s.Flags }, BitvecOf()),
	Field("Limits", func(s *ledger) *limits { return &s.Limits }, limitsLayout),
)

func TestLayout_NestedSpreadWrites(t *testing.T) {
	db := setup(t)
	root := NamedKey("ledger")
	alice := NamedKey("alice")

	writes := func(fn func(env *Env, l ledger) error) uint64 {
		t.Helper()
		before := db.WriteCount.Load()
		noErr(t, Call(db, root, ledgerLayout, fn))
		return db.WriteCount.Load() - before
	}

	n := writes(func(env *Env, l ledger) error {
		l.Total.Set(10)
		if _, _, err := l.Accounts.Insert(alice, account{alice, 10, nil}); err != nil {
			return err
		}
		if err := l.Log.Push([]uint8{1}); err != nil {
			return err
		}
		if err := l.Queue.Push(7); err != nil {
			return err
		}
		if err := l.Flags.Push(true); err != nil {
			return err
		}
		l.Limits.Max.Set(100)
		l.Limits.PerOwner.Insert(alice, 3)
		return nil
	})
	// Total 1, Accounts 3 (key slot, stash header, entry), Log 2, Queue 2,
	// Flags 2, Max 1, PerOwner 1
	if a, e := n, uint64(12); a != e {
		t.Fatalf("first Call wrote %d keys, wanted %d", a, e)
	}

	n = writes(func(env *Env, l ledger) error {
		if _, err := l.Total.GetOr(0); err != nil {
			return err
		}
		if _, _, err := l.Accounts.Get(alice); err != nil {
			return err
		}
		if _, err := l.Log.Get(0); err != nil {
			return err
		}
		if _, _, err := l.Queue.Peek(); err != nil {
			return err
		}
		if _, err := l.Flags.Get(0); err != nil {
			return err
		}
		if _, err := l.Limits.Max.GetOr(0); err != nil {
			return err
		}
		_, _, err := l.Limits.PerOwner.Get(alice)
		return err
	})
	if n != 0 {
		t.Fatalf("read-only Call wrote %d keys, wanted 0", n)
	}

	n = writes(func(env *Env, l ledger) error {
		l.Limits.Max.Set(200)
		return nil
	})
	if n != 1 {
		t.Fatalf("Call setting Limits.Max wrote %d keys, wanted 1", n)
	}

	noErr(t, Query(db, root, ledgerLayout, func(env *Env, l ledger) error {
		deepEqual(t, must(l.Total.GetOr(0)), uint64(10))
		a, ok, err := l.Accounts.Get(alice)
		noErr(t, err)
		if !ok || a.Balance != 10 {
			t.Fatalf("Accounts.Get = (%v, %v), wanted balance 10", a, ok)
		}
		deepEqual(t, must(l.Log.Get(0)), []uint8{1})
		top, ok, err := l.Queue.Peek()
		noErr(t, err)
		if !ok || top != 7 {
			t.Fatalf("Queue.Peek = (%v, %v), wanted (7, true)", top, ok)
		}
		deepEqual(t, must(l.Flags.Get(0)), true)
		deepEqual(t, must(l.Limits.Max.GetOr(0)), uint64(200))
		v, ok, err := l.Limits.PerOwner.Get(alice)
		noErr(t, err)
		if !ok || v != 3 {
			t.Fatalf("Limits.PerOwner.Get = (%v, %v), wanted (3, true)", v, ok)
		}
		return nil
	}))
}
