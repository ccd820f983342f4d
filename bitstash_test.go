package cellstore

import (
	"testing"
)

func TestBitStash_PutTakeGet(t *testing.T) {
	db := setup(t)
	root := NamedKey("alloc")
	noErr(t, Call(db, root, BitStashOf(), func(env *Env, bs *BitStash) error {
		for e := uint32(0); e < 3; e++ {
			i, err := bs.Put()
			noErr(t, err)
			if i != e {
				t.Fatalf("Put = %d, wanted %d", i, e)
			}
		}
		return nil
	}))

	noErr(t, Call(db, root, BitStashOf(), func(env *Env, bs *BitStash) error {
		ok, err := bs.Take(1)
		noErr(t, err)
		if !ok {
			t.Fatalf("Take(1) = false, wanted true")
		}
		if ok, _ := bs.Take(1); ok {
			t.Fatalf("second Take(1) = true, wanted false")
		}
		if ok, _ := bs.Take(100); ok {
			t.Fatalf("Take(100) = true, wanted false")
		}
		if ok, _ := bs.Get(1); ok {
			t.Fatalf("Get(1) = true, wanted false")
		}
		if ok, _ := bs.Get(2); !ok {
			t.Fatalf("Get(2) = false, wanted true")
		}
		return nil
	}))

	noErr(t, Call(db, root, BitStashOf(), func(env *Env, bs *BitStash) error {
		for _, e := range []uint32{1, 3} {
			i, err := bs.Put()
			noErr(t, err)
			if i != e {
				t.Fatalf("Put = %d, wanted %d", i, e)
			}
		}
		return nil
	}))
}

func TestBitStash_SkipsFullPacks(t *testing.T) {
	db := setup(t)
	root := NamedKey("alloc")
	noErr(t, Call(db, root, BitStashOf(), func(env *Env, bs *BitStash) error {
		for range BitsPerPack + 1 {
			_, err := bs.Put()
			noErr(t, err)
		}
		return nil
	}))

	noErr(t, Call(db, root, BitStashOf(), func(env *Env, bs *BitStash) error {
		c, err := bs.counts.Get(0)
		noErr(t, err)
		if !c.isFull(0) || c.Counts[1] != 1 {
			t.Fatalf("counts = %+v, wanted pack 0 full and 1 bit in pack 1", c)
		}

		_, err = bs.Take(10)
		noErr(t, err)
		i, err := bs.Put()
		noErr(t, err)
		if i != 10 {
			t.Fatalf("Put = %d, wanted 10", i)
		}

		_, err = bs.Take(256)
		noErr(t, err)
		before := env.Stats().Reads
		i, err = bs.Put()
		noErr(t, err)
		if i != 256 {
			t.Fatalf("Put = %d, wanted 256", i)
		}
		if a := env.Stats().Reads; a != before {
			t.Fatalf("Put read %d more keys, wanted everything cached", a-before)
		}
		return nil
	}))
}

func TestCountsPack(t *testing.T) {
	var c countsPack
	for range 256 {
		c.inc(3)
	}
	if !c.isFull(3) || c.Counts[3] != 255 {
		t.Fatalf("after 256 inc: %+v, wanted full", c)
	}
	c.dec(3)
	if c.isFull(3) || c.Counts[3] != 255 {
		t.Fatalf("after dec: %+v, wanted 255 and not full", c)
	}
	c.dec(3)
	if c.Counts[3] != 254 {
		t.Fatalf("after second dec: %+v, wanted 254", c)
	}
	data := Encode(countsPackCodec, c)
	if a, e := len(data), CountsPerPack+4; a != e {
		t.Fatalf("encoded len = %d, wanted %d", a, e)
	}
	a, err := Decode(countsPackCodec, data)
	noErr(t, err)
	deepEqual(t, a, c)
}
