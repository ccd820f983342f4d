package layoutgen

import (
	"fmt"
	"strings"
	"unicode"
)

// TypeExpr is a parsed field type such as "mapping<key, vec<u8>>".
type TypeExpr struct {
	Name string
	Args []*TypeExpr
}

func (t *TypeExpr) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.String()
	}
	return t.Name + "<" + strings.Join(args, ", ") + ">"
}

func ParseType(s string) (*TypeExpr, error) {
	p := &typeParser{src: s}
	t, err := p.parse()
	if err != nil {
		return nil, fmt.Errorf("type %q: %w", s, err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("type %q: unexpected %q at %d", s, p.src[p.pos:], p.pos)
	}
	return t, nil
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	p.skipSpace()
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *typeParser) parse() (*TypeExpr, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		p.pos++
	}
	if start == p.pos {
		return nil, fmt.Errorf("expected type name at %d", start)
	}
	t := &TypeExpr{Name: p.src[start:p.pos]}
	if p.peek() != '<' {
		return t, nil
	}
	p.pos++
	for {
		arg, err := p.parse()
		if err != nil {
			return nil, err
		}
		t.Args = append(t.Args, arg)
		switch p.peek() {
		case ',':
			p.pos++
		case '>':
			p.pos++
			return t, nil
		default:
			return nil, fmt.Errorf("expected ',' or '>' at %d", p.pos)
		}
	}
}

// valueType is a type that can be encoded by a codec and stored Packed.
type valueType struct {
	Go         string
	Codec      string
	Comparable bool
	Ordered    bool
}

var primitives = map[string]*valueType{
	"u8":     {"uint8", "cellstore.Uint8", true, true},
	"u16":    {"uint16", "cellstore.Uint16", true, true},
	"u32":    {"uint32", "cellstore.Uint32", true, true},
	"u64":    {"uint64", "cellstore.Uint64", true, true},
	"i8":     {"int8", "cellstore.Int8", true, true},
	"i16":    {"int16", "cellstore.Int16", true, true},
	"i32":    {"int32", "cellstore.Int32", true, true},
	"i64":    {"int64", "cellstore.Int64", true, true},
	"bool":   {"bool", "cellstore.Bool", true, false},
	"string": {"string", "cellstore.String", true, true},
	"bytes":  {"[]byte", "cellstore.Bytes", false, false},
	"key":    {"cellstore.Key", "cellstore.KeyCodec", true, false},
}

func arity(t *TypeExpr, n int) error {
	if len(t.Args) != n {
		return fmt.Errorf("%s takes %d type arguments, got %d", t.Name, n, len(t.Args))
	}
	return nil
}

// resolveValue resolves a type usable inside a Packed value.
func (g *generator) resolveValue(t *TypeExpr) (*valueType, error) {
	if p := primitives[t.Name]; p != nil {
		if err := arity(t, 0); err != nil {
			return nil, err
		}
		return p, nil
	}
	switch t.Name {
	case "option":
		if err := arity(t, 1); err != nil {
			return nil, err
		}
		inner, err := g.resolveValue(t.Args[0])
		if err != nil {
			return nil, err
		}
		return &valueType{
			Go:         "cellstore.Opt[" + inner.Go + "]",
			Codec:      "cellstore.Option(" + inner.Codec + ")",
			Comparable: inner.Comparable,
		}, nil
	case "list":
		if err := arity(t, 1); err != nil {
			return nil, err
		}
		inner, err := g.resolveValue(t.Args[0])
		if err != nil {
			return nil, err
		}
		return &valueType{
			Go:    "[]" + inner.Go,
			Codec: "cellstore.Slice(" + inner.Codec + ")",
		}, nil
	}
	st := g.schema.lookup(t.Name)
	if st == nil {
		return nil, fmt.Errorf("unknown type %s", t.Name)
	}
	if !st.IsPacked() {
		return nil, fmt.Errorf("%s is a spread struct and cannot be packed", t.Name)
	}
	if err := arity(t, 0); err != nil {
		return nil, err
	}
	comparable, err := g.packedComparable(st)
	if err != nil {
		return nil, err
	}
	return &valueType{Go: st.Name, Codec: st.Name + "Codec", Comparable: comparable}, nil
}

func (g *generator) packedComparable(st *Struct) (bool, error) {
	if c, ok := g.comparable[st.Name]; ok {
		return c, nil
	}
	if g.resolving[st.Name] {
		return false, fmt.Errorf("packed struct %s contains itself", st.Name)
	}
	g.resolving[st.Name] = true
	defer delete(g.resolving, st.Name)
	c := true
	for _, f := range st.Fields {
		t, err := ParseType(f.Type)
		if err != nil {
			return false, err
		}
		vt, err := g.resolveValue(t)
		if err != nil {
			return false, err
		}
		c = c && vt.Comparable
	}
	g.comparable[st.Name] = c
	return c, nil
}

// spreadField is a resolved field of a spread struct.
type spreadField struct {
	Go     string
	Layout string
}

func (g *generator) resolveSpread(t *TypeExpr) (*spreadField, error) {
	switch t.Name {
	case "cell":
		if err := arity(t, 1); err != nil {
			return nil, err
		}
		if !g.isSpread(t.Args[0]) {
			vt, err := g.resolveValue(t.Args[0])
			if err != nil {
				return nil, err
			}
			return packedCell(vt), nil
		}
		inner, err := g.resolveSpread(t.Args[0])
		if err != nil {
			return nil, err
		}
		return &spreadField{"*cellstore.Cell[" + inner.Go + "]", "cellstore.CellOf(" + inner.Layout + ")"}, nil
	case "vec", "stash":
		if err := arity(t, 1); err != nil {
			return nil, err
		}
		vt, err := g.resolveValue(t.Args[0])
		if err != nil {
			return nil, err
		}
		if t.Name == "vec" {
			return &spreadField{"*cellstore.Vec[" + vt.Go + "]", "cellstore.VecOf(" + vt.Codec + ")"}, nil
		}
		return &spreadField{"*cellstore.Stash[" + vt.Go + "]", "cellstore.StashOf(" + vt.Codec + ")"}, nil
	case "heap":
		if err := arity(t, 1); err != nil {
			return nil, err
		}
		vt, err := g.resolveValue(t.Args[0])
		if err != nil {
			return nil, err
		}
		if !vt.Ordered {
			return nil, fmt.Errorf("heap elements must be ordered, %s is not", t.Args[0])
		}
		less := "func(a, b " + vt.Go + ") bool { return a < b }"
		return &spreadField{"*cellstore.Heap[" + vt.Go + "]", "cellstore.HeapOf(" + vt.Codec + ", " + less + ")"}, nil
	case "mapping", "hashmap":
		if err := arity(t, 2); err != nil {
			return nil, err
		}
		kt, err := g.resolveValue(t.Args[0])
		if err != nil {
			return nil, err
		}
		if !kt.Comparable {
			return nil, fmt.Errorf("%s keys must be comparable, %s is not", t.Name, t.Args[0])
		}
		vt, err := g.resolveValue(t.Args[1])
		if err != nil {
			return nil, err
		}
		args := "[" + kt.Go + ", " + vt.Go + "]"
		if t.Name == "mapping" {
			return &spreadField{"*cellstore.Mapping" + args, "cellstore.MappingOf(" + kt.Codec + ", " + vt.Codec + ")"}, nil
		}
		return &spreadField{"*cellstore.HashMap" + args, "cellstore.HashMapOf(" + kt.Codec + ", " + vt.Codec + ")"}, nil
	case "bitvec":
		if err := arity(t, 0); err != nil {
			return nil, err
		}
		return &spreadField{"*cellstore.Bitvec", "cellstore.BitvecOf()"}, nil
	case "bitstash":
		if err := arity(t, 0); err != nil {
			return nil, err
		}
		return &spreadField{"*cellstore.BitStash", "cellstore.BitStashOf()"}, nil
	}
	if st := g.schema.lookup(t.Name); st != nil && !st.IsPacked() {
		if err := arity(t, 0); err != nil {
			return nil, err
		}
		if err := g.checkSpreadCycle(st); err != nil {
			return nil, err
		}
		return &spreadField{st.Name, st.Name + "Layout"}, nil
	}
	// A bare Packed field would be pushed on every flush, so plain values
	// get a Cell of their own.
	vt, err := g.resolveValue(t)
	if err != nil {
		return nil, err
	}
	return packedCell(vt), nil
}

func packedCell(vt *valueType) *spreadField {
	return &spreadField{"*cellstore.Cell[" + vt.Go + "]", "cellstore.CellOf(cellstore.Packed(" + vt.Codec + "))"}
}

// isSpread reports whether t is laid out across several keys.
func (g *generator) isSpread(t *TypeExpr) bool {
	switch t.Name {
	case "cell", "vec", "stash", "heap", "mapping", "hashmap", "bitvec", "bitstash":
		return true
	}
	st := g.schema.lookup(t.Name)
	return st != nil && !st.IsPacked()
}

// checkSpreadCycle rejects spread structs that contain themselves, which
// would have an infinite footprint.
func (g *generator) checkSpreadCycle(st *Struct) error {
	if g.resolving[st.Name] {
		return fmt.Errorf("spread struct %s contains itself", st.Name)
	}
	g.resolving[st.Name] = true
	defer delete(g.resolving, st.Name)
	for _, f := range st.Fields {
		t, err := ParseType(f.Type)
		if err != nil {
			return err
		}
		if _, err := g.resolveSpread(t); err != nil {
			return err
		}
	}
	return nil
}
