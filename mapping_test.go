package cellstore

import (
	"errors"
	"testing"
)

func TestMapping_Scenario(t *testing.T) {
	db := setup(t)
	root := NamedKey("map")
	layout := MappingOf(String, Uint32)
	noErr(t, Call(db, root, layout, func(env *Env, m *Mapping[string, uint32]) error {
		if _, ok, err := m.Get("x"); ok || err != nil {
			t.Fatalf("Get(x) = (%v, %v), wanted absent", ok, err)
		}
		m.Insert("x", 7)
		if v, ok, err := m.Get("x"); !ok || err != nil || v != 7 {
			t.Fatalf("Get(x) = (%d, %v, %v), wanted 7", v, ok, err)
		}
		return nil
	}))
	deepEqual(t, storedKeys(t, db), map[Key][]byte{
		HashKey(root, Encode(String, "x")): Encode(Uint32, 7),
	})

	noErr(t, Call(db, root, layout, func(env *Env, m *Mapping[string, uint32]) error {
		if ok, err := m.Contains("x"); !ok || err != nil {
			t.Fatalf("Contains(x) = (%v, %v), wanted true", ok, err)
		}
		m.Remove("x")
		if _, ok, err := m.Get("x"); ok || err != nil {
			t.Fatalf("Get(x) after Remove = (%v, %v), wanted absent", ok, err)
		}
		return nil
	}))
	if a := storedKeys(t, db); len(a) != 0 {
		t.Fatalf("stored = %v, wanted nothing", a)
	}
}

func TestMapping_TakeMutateUpsert(t *testing.T) {
	db := setup(t)
	root := NamedKey("map")
	layout := MappingOf(KeyCodec, accountCodec)
	alice, bob := NamedKey("alice"), NamedKey("bob")
	noErr(t, Call(db, root, layout, func(env *Env, m *Mapping[Key, account]) error {
		if err := m.Mutate(alice, func(a *account) {}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Mutate(absent) = %v, wanted ErrNotFound", err)
		}
		noErr(t, m.Upsert(alice, func(a *account) { a.Balance += 5 }))
		noErr(t, m.Upsert(alice, func(a *account) { a.Balance += 5 }))
		m.Insert(bob, account{Owner: bob, Balance: 1})
		return nil
	}))

	noErr(t, Call(db, root, layout, func(env *Env, m *Mapping[Key, account]) error {
		a, ok, err := m.Take(bob)
		if err != nil || !ok || a.Balance != 1 {
			t.Fatalf("Take(bob) = (%+v, %v, %v), wanted balance 1", a, ok, err)
		}
		if _, ok, _ := m.Take(bob); ok {
			t.Fatalf("second Take(bob) = present, wanted absent")
		}
		noErr(t, m.Mutate(alice, func(a *account) { a.Balance *= 3 }))
		return nil
	}))

	noErr(t, Query(db, root, layout, func(env *Env, m *Mapping[Key, account]) error {
		a, ok, err := m.Get(alice)
		if err != nil || !ok || a.Balance != 30 {
			t.Fatalf("Get(alice) = (%+v, %v, %v), wanted balance 30", a, ok, err)
		}
		if a, e := m.KeyOf(alice), HashKey(root, alice[:]); a != e {
			t.Fatalf("KeyOf = %v, wanted %v", a, e)
		}
		return nil
	}))
	if a, e := len(storedKeys(t, db)), 1; a != e {
		t.Fatalf("stored keys = %d, wanted %d", a, e)
	}
}
