package layoutgen

import (
	"bytes"
	"fmt"
	"go/format"
	"strings"
	"text/template"
)

const DefaultImportPath = "github.com/andreyvit/cellstore"

type Options struct {
	// Package overrides the schema's package name.
	Package string
	// ImportPath of the cellstore package, DefaultImportPath if empty.
	ImportPath string
	// Source is mentioned in the generated header.
	Source string
}

type generator struct {
	schema     *Schema
	comparable map[string]bool
	resolving  map[string]bool
}

type genFile struct {
	Source     string
	Package    string
	ImportPath string
	Structs    []*genStruct
}

type genStruct struct {
	Name   string
	Doc    []string
	Packed bool
	Root   string
	Fields []*genField
}

type genField struct {
	Name string
	Doc  []string
	Go   string
	Expr string
}

var fileTmpl = template.Must(template.New("file").Parse(`// Code generated by cellctl gen{{with .Source}} from {{.}}{{end}}. DO NOT EDIT.

package {{.Package}}

import "{{.ImportPath}}"
{{range .Structs}}{{$s := .}}
{{range .Doc}}// {{.}}
{{end}}type {{.Name}} struct {
{{- range .Fields}}
{{range .Doc}}	// {{.}}
{{end}}	{{.Name}} {{.Go}}
{{- end}}
}
{{if .Packed}}
var {{.Name}}Codec = cellstore.Struct(
{{- range .Fields}}
	cellstore.Member(func(s *{{$s.Name}}) *{{.Go}} { return &s.{{.Name}} }, {{.Expr}}),
{{- end}}
)
{{else}}
var {{.Name}}Layout = cellstore.Spread(
{{- range .Fields}}
	cellstore.Field("{{.Name}}", func(s *{{$s.Name}}) *{{.Go}} { return &s.{{.Name}} }, {{.Expr}}),
{{- end}}
)
{{with .Root}}
var {{$s.Name}}Root = cellstore.NamedKey({{printf "%q" .}})
{{end}}{{end}}{{end}}`))

// Generate returns gofmt-ed Go source for every struct of the schema.
func Generate(s *Schema, opt Options) ([]byte, error) {
	g := &generator{
		schema:     s,
		comparable: make(map[string]bool),
		resolving:  make(map[string]bool),
	}
	f := &genFile{
		Source:     opt.Source,
		Package:    opt.Package,
		ImportPath: opt.ImportPath,
	}
	if f.Package == "" {
		f.Package = s.Package
	}
	if f.Package == "" {
		return nil, fmt.Errorf("no package name")
	}
	if f.ImportPath == "" {
		f.ImportPath = DefaultImportPath
	}
	for _, st := range s.Structs {
		gs, err := g.genStruct(st)
		if err != nil {
			return nil, err
		}
		f.Structs = append(f.Structs, gs)
	}

	var buf bytes.Buffer
	if err := fileTmpl.Execute(&buf, f); err != nil {
		return nil, err
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("generated invalid Go: %w\n%s", err, buf.Bytes())
	}
	return src, nil
}

func (g *generator) genStruct(st *Struct) (*genStruct, error) {
	gs := &genStruct{
		Name:   st.Name,
		Doc:    docLines(st.Doc),
		Packed: st.IsPacked(),
		Root:   st.Root,
	}
	if st.IsPacked() {
		if _, err := g.packedComparable(st); err != nil {
			return nil, err
		}
	} else if err := g.checkSpreadCycle(st); err != nil {
		return nil, err
	}
	for _, f := range st.Fields {
		t, err := ParseType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", st.Name, f.Name, err)
		}
		gf := &genField{Name: f.Name, Doc: docLines(f.Doc)}
		if st.IsPacked() {
			vt, err := g.resolveValue(t)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", st.Name, f.Name, err)
			}
			gf.Go, gf.Expr = vt.Go, vt.Codec
		} else {
			sf, err := g.resolveSpread(t)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", st.Name, f.Name, err)
			}
			gf.Go, gf.Expr = sf.Go, sf.Layout
		}
		gs.Fields = append(gs.Fields, gf)
	}
	return gs, nil
}

func docLines(doc string) []string {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return nil
	}
	return strings.Split(doc, "\n")
}
