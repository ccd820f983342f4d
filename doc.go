/*
Package cellstore implements typed persistent state on top of a flat
key-value host that only offers point reads, writes and removals of
32-byte keys.

We implement:

1. Codecs, deterministic binary encodings of values (fixed-width big-endian
integers, length-prefixed strings and sequences, options, enums, structs,
plus msgpack, CBOR and snappy wrappers).

2. Layouts, deciding which keys a value occupies: Packed stores the whole
encoding under one key, Spread gives every field its own key range.

3. Cells, lazily loaded and write-buffered handles that read a value at most
once per invocation and write it back only if it changed.

4. Collections (Vec, Mapping, HashMap, Stash, Bitvec, BitStash, Heap) whose
elements are loaded one by one on access.

# Technical Details

**Invocations.**
All access happens inside DB.Invoke (or DB.View), which is the unit of
atomicity: bound roots are flushed exactly once when the callback succeeds,
and the host transaction is rolled back otherwise. Nothing is cached across
invocations.

**Key derivation.**
A root key is typically NamedKey(name), the BLAKE2b-256 of the name.
Derive(root, n) treats the key as a 256-bit big-endian integer and adds n,
wrapping. A value with footprint f laid out at key k occupies k ... k+f-1;
Spread fields take consecutive ranges in declaration order. Map entries live
at HashKey(root, encoded key) = BLAKE2b-256(root ‖ encoded key), outside the
linear range.

These derivations are the persisted format. Changing them or a field order
orphans existing data.

## Collection layout

Offsets are relative to the collection's base key.

**Vec, Stash, Bitvec, Heap**: header at +0, slot i at +1+i, footprint
1+2^32.

  - Vec header: length (u32).
  - Stash header: last vacant slot (u32, 0xFFFFFFFF for none), occupied
    count (u32), slot count (u32). Slot: tag 0 + value, or tag 1 + previous
    and next vacant slot (u32 each).
  - Bitvec header: length in bits (u32). Slot j: bits 256j ... 256j+255 as
    four big-endian u64 words, LSB first.
  - Heap header: length (u32). Slot 0 holds the root, slot g>0 holds
    siblings 2g-1 and 2g, each as an option.

**Mapping**: entry for k at HashKey(base, encode(k)); footprint 1.

**HashMap**: key Stash at +0, value Mapping at +1+2^32; each value is stored
with the Stash slot of its key.

**BitStash**: Vec of occupancy counts at +0 (32 one-byte counts plus a u32
full-pack mask per slot), Bitvec at +1+2^32.

## Binary encoding

Integers are fixed-width big-endian. Bool is one byte, 0 or 1. Strings, byte
slices and sequences carry a u32 big-endian length prefix. Options and enums
start with a tag byte. Go maps are encoded sorted by encoded key so that the
same value always produces the same bytes.
*/
package cellstore
