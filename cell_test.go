package cellstore

import (
	"errors"
	"testing"
)

func TestCell_StateMachine(t *testing.T) {
	db := setup(t)
	root := NamedKey("counter")
	err := db.Invoke(func(env *Env) error {
		c := NewCell(env, root, Packed(Uint64))
		if a, e := c.State(), CellUnloaded; a != e {
			t.Fatalf("State = %v, wanted %v", a, e)
		}
		v, ok, err := c.Get()
		if err != nil || ok || v != 0 {
			t.Fatalf("Get = (%v, %v, %v), wanted (0, false, nil)", v, ok, err)
		}
		if a, e := c.State(), CellLoaded; a != e {
			t.Fatalf("State = %v, wanted %v", a, e)
		}
		if c.IsDirty() {
			t.Fatalf("IsDirty after Get = true, wanted false")
		}
		c.Set(5)
		if !c.IsDirty() {
			t.Fatalf("IsDirty after Set = false, wanted true")
		}
		c.Remove()
		if a, e := c.State(), CellCleared; a != e {
			t.Fatalf("State = %v, wanted %v", a, e)
		}
		if _, ok, _ := c.Get(); ok {
			t.Fatalf("Get after Remove = present, wanted absent")
		}
		c.Set(7)
		if a, e := c.State(), CellLoaded; a != e {
			t.Fatalf("State = %v, wanted %v", a, e)
		}
		if a, e := env.Stats().Reads, uint64(1); a != e {
			t.Fatalf("Reads = %d, wanted %d", a, e)
		}
		return c.Flush()
	})
	noErr(t, err)
	deepEqual(t, storedKeys(t, db), map[Key][]byte{root: Encode(Uint64, 7)})
}

func TestCell_ReadYourWrites(t *testing.T) {
	db := setup(t)
	root := NamedKey("name")
	err := db.Invoke(func(env *Env) error {
		c := NewCell(env, root, Packed(String))
		c.Set("a")
		v, err := c.GetOr("")
		if err != nil || v != "a" {
			t.Fatalf("GetOr = (%q, %v), wanted (a, nil)", v, err)
		}
		if a := env.Stats().RoundTrips(); a != 0 {
			t.Fatalf("RoundTrips = %d, wanted 0", a)
		}
		return nil
	})
	noErr(t, err)
}

func TestCell_LoadsOnce(t *testing.T) {
	db := setup(t)
	root := NamedKey("name")
	noErr(t, Call(db, root, CellOf(Packed(String)), func(env *Env, c *Cell[string]) error {
		c.Set("bob")
		return nil
	}))
	err := db.Invoke(func(env *Env) error {
		c := NewCell(env, root, Packed(String))
		for i := 0; i < 3; i++ {
			v, ok, err := c.Get()
			if err != nil || !ok || v != "bob" {
				t.Fatalf("Get = (%q, %v, %v), wanted (bob, true, nil)", v, ok, err)
			}
		}
		if a, e := env.Stats().Reads, uint64(1); a != e {
			t.Fatalf("Reads = %d, wanted %d", a, e)
		}
		return nil
	})
	noErr(t, err)
}

func TestCell_FlushMinimality(t *testing.T) {
	db := setup(t)
	root := NamedKey("n")
	noErr(t, Call(db, root, CellOf(Packed(Uint32)), func(env *Env, c *Cell[uint32]) error {
		c.Set(1)
		return nil
	}))

	err := db.Invoke(func(env *Env) error {
		c := NewCell(env, root, Packed(Uint32))
		if _, _, err := c.Get(); err != nil {
			return err
		}
		noErr(t, c.Flush())
		if a := env.Stats().Writes + env.Stats().Clears; a != 0 {
			t.Fatalf("writes after flushing a clean cell = %d, wanted 0", a)
		}

		c.Set(2)
		noErr(t, c.Flush())
		noErr(t, c.Flush())
		if a, e := env.Stats().Writes, uint64(1); a != e {
			t.Fatalf("Writes = %d, wanted %d", a, e)
		}
		if c.IsDirty() {
			t.Fatalf("IsDirty after Flush = true, wanted false")
		}
		return nil
	})
	noErr(t, err)
}

func TestCell_GetMutAndMutate(t *testing.T) {
	db := setup(t)
	root := NamedKey("acc")
	err := Call(db, root, CellOf(Packed(accountCodec)), func(env *Env, c *Cell[account]) error {
		if err := c.Mutate(func(a *account) { a.Balance++ }); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Mutate on absent = %v, wanted ErrNotFound", err)
		}
		if p, err := c.GetMut(); err != nil || p != nil {
			t.Fatalf("GetMut on absent = (%v, %v), wanted (nil, nil)", p, err)
		}
		c.Set(account{Balance: 10})
		noErr(t, c.Flush())

		p, err := c.GetMut()
		noErr(t, err)
		p.Balance = 11
		noErr(t, c.Mutate(func(a *account) { a.Tags = append(a.Tags, "x") }))
		return nil
	})
	noErr(t, err)

	err = Query(db, root, CellOf(Packed(accountCodec)), func(env *Env, c *Cell[account]) error {
		a, ok, err := c.Get()
		noErr(t, err)
		if !ok || a.Balance != 11 || len(a.Tags) != 1 {
			t.Fatalf("Get = (%+v, %v), wanted balance 11 with one tag", a, ok)
		}
		return nil
	})
	noErr(t, err)
}

func TestCell_ClearLeavesNoResidue(t *testing.T) {
	db := setup(t)
	root := NamedKey("w")
	layout := CellOf(walletLayout)
	noErr(t, Call(db, root, layout, func(env *Env, c *Cell[wallet]) error {
		w, ok, err := c.Get()
		if err != nil || !ok {
			t.Fatalf("Get = (%v, %v), wanted bound wallet", ok, err)
		}
		w.Owner.Set("carol")
		noErr(t, w.Coins.Push(100))
		noErr(t, w.Coins.Push(200))
		_, err = c.GetMut()
		return err
	}))
	if a, e := len(storedKeys(t, db)), 4; a != e {
		t.Fatalf("stored keys = %d, wanted %d", a, e)
	}

	noErr(t, Call(db, root, layout, func(env *Env, c *Cell[wallet]) error {
		c.Remove()
		return nil
	}))
	if a := storedKeys(t, db); len(a) != 0 {
		t.Fatalf("after Remove, stored = %v, wanted nothing", a)
	}

	noErr(t, Call(db, root, layout, func(env *Env, c *Cell[wallet]) error {
		w, _, err := c.Get()
		noErr(t, err)
		n, err := w.Coins.Len()
		noErr(t, err)
		if n != 0 {
			t.Fatalf("Coins.Len after clear = %d, wanted 0", n)
		}
		if _, ok, _ := w.Owner.Get(); ok {
			t.Fatalf("Owner after clear = present, wanted absent")
		}
		noErr(t, w.Coins.Push(300))
		_, err = c.GetMut()
		return err
	}))
	deepEqual(t, storedKeys(t, db), map[Key][]byte{
		Derive(root, 1): Encode(Uint32, 1),
		Derive(root, 2): Encode(Uint64, 300),
	})
}

func TestCell_StringState(t *testing.T) {
	for _, tt := range []struct {
		s CellState
		e string
	}{{CellUnloaded, "unloaded"}, {CellLoaded, "loaded"}, {CellCleared, "cleared"}, {CellState(9), "invalid"}} {
		if a := tt.s.String(); a != tt.e {
			t.Errorf("** %d.String() = %q, wanted %q", tt.s, a, tt.e)
		}
	}
}
