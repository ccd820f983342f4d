package layoutgen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input  string
		output string
	}{
		{"u8", "u8"},
		{" vec < u8 > ", "vec<u8>"},
		{"mapping<key,list<option<string>>>", "mapping<key, list<option<string>>>"},
		{"hashmap<key, Account>", "hashmap<key, Account>"},
	}
	for _, tt := range tests {
		te, err := ParseType(tt.input)
		if err != nil {
			t.Errorf("** ParseType(%q) failed: %v", tt.input, err)
			continue
		}
		if a := te.String(); a != tt.output {
			t.Errorf("** ParseType(%q) = %q, wanted %q", tt.input, a, tt.output)
		}
	}

	for _, bad := range []string{"", "vec<", "vec<u8", "vec<u8>>", "vec<,>", "a b"} {
		if te, err := ParseType(bad); err == nil {
			t.Errorf("** ParseType(%q) = %v, wanted error", bad, te)
		}
	}
}

func TestParseSchemaErrors(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		err    string
	}{
		{"unknown key", `
package = "p"
[[struct]]
name = "A"
colour = "red"
fields = [{ name = "X", type = "u8" }]
`, "colour"},
		{"bad layout", `
[[struct]]
name = "A"
layout = "zipped"
fields = [{ name = "X", type = "u8" }]
`, `unknown layout "zipped"`},
		{"duplicate struct", `
[[struct]]
name = "A"
fields = [{ name = "X", type = "u8" }]
[[struct]]
name = "A"
fields = [{ name = "X", type = "u8" }]
`, "duplicate struct A"},
		{"duplicate field", `
[[struct]]
name = "A"
fields = [{ name = "X", type = "u8" }, { name = "X", type = "u16" }]
`, "duplicate field X"},
		{"unexported", `
[[struct]]
name = "a"
fields = [{ name = "X", type = "u8" }]
`, "must be an exported identifier"},
		{"packed root", `
[[struct]]
name = "A"
layout = "packed"
root = "a"
fields = [{ name = "X", type = "u8" }]
`, "only spread structs can be roots"},
		{"no fields", `
[[struct]]
name = "A"
`, "has no fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.schema)
			if err == nil {
				t.Fatalf("Parse succeeded, wanted error containing %q", tt.err)
			}
			if !strings.Contains(err.Error(), tt.err) {
				t.Fatalf("Parse error = %v, wanted %q", err, tt.err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.toml")
	err := os.WriteFile(path, []byte(ledgerSchema), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if a, e := len(s.Structs), 3; a != e {
		t.Fatalf("len(Structs) = %d, wanted %d", a, e)
	}
	if a, e := s.Structs[1].Layout, LayoutSpread; a != e {
		t.Fatalf("Ledger.Layout = %q, wanted %q", a, e)
	}
	if a, e := s.lookup("Account").IsPacked(), true; a != e {
		t.Fatalf("Account.IsPacked = %v, wanted %v", a, e)
	}
}
