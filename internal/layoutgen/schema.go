// Package layoutgen generates Go declarations of cellstore structs, their
// Spread layouts and Packed codecs from a TOML schema.
package layoutgen

import (
	"fmt"
	"go/token"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	LayoutSpread = "spread"
	LayoutPacked = "packed"
)

// Schema is the root of a schema file:
//
//	package = "ledger"
//
//	[[struct]]
//	name = "Account"
//	layout = "packed"
//	fields = [
//	    { name = "Owner", type = "key" },
//	    { name = "Balance", type = "u64" },
//	]
//
//	[[struct]]
//	name = "Ledger"
//	root = "ledger"
//	fields = [
//	    { name = "Total", type = "cell<u64>" },
//	    { name = "Accounts", type = "hashmap<key, Account>" },
//	]
type Schema struct {
	Package string    `toml:"package"`
	Structs []*Struct `toml:"struct"`
}

type Struct struct {
	Name   string   `toml:"name"`
	Layout string   `toml:"layout"`
	Root   string   `toml:"root"`
	Doc    string   `toml:"doc"`
	Fields []*Field `toml:"fields"`
}

func (s *Struct) IsPacked() bool {
	return s.Layout == LayoutPacked
}

type Field struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
	Doc  string `toml:"doc"`
}

// Load reads and validates a schema file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a schema. Unknown keys are errors.
func Parse(data string) (*Schema, error) {
	var s Schema
	md, err := toml.Decode(data, &s)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown schema keys: %s", strings.Join(keys, ", "))
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schema) lookup(name string) *Struct {
	for _, st := range s.Structs {
		if st.Name == name {
			return st
		}
	}
	return nil
}

func (s *Schema) validate() error {
	if s.Package != "" && !token.IsIdentifier(s.Package) {
		return fmt.Errorf("invalid package name %q", s.Package)
	}
	seen := make(map[string]bool)
	for _, st := range s.Structs {
		if !token.IsExported(st.Name) || !token.IsIdentifier(st.Name) {
			return fmt.Errorf("struct name %q must be an exported identifier", st.Name)
		}
		if seen[st.Name] {
			return fmt.Errorf("duplicate struct %s", st.Name)
		}
		seen[st.Name] = true
		switch st.Layout {
		case "":
			st.Layout = LayoutSpread
		case LayoutSpread, LayoutPacked:
		default:
			return fmt.Errorf("struct %s: unknown layout %q", st.Name, st.Layout)
		}
		if st.Root != "" && st.IsPacked() {
			return fmt.Errorf("struct %s: only spread structs can be roots", st.Name)
		}
		if len(st.Fields) == 0 {
			return fmt.Errorf("struct %s has no fields", st.Name)
		}
		fieldSeen := make(map[string]bool)
		for _, f := range st.Fields {
			if !token.IsExported(f.Name) || !token.IsIdentifier(f.Name) {
				return fmt.Errorf("struct %s: field name %q must be an exported identifier", st.Name, f.Name)
			}
			if fieldSeen[f.Name] {
				return fmt.Errorf("struct %s: duplicate field %s", st.Name, f.Name)
			}
			fieldSeen[f.Name] = true
		}
	}
	return nil
}
