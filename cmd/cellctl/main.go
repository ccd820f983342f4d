// Command cellctl generates cellstore layouts from TOML schemas and inspects
// stores on disk.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/andreyvit/cellstore"
	"github.com/andreyvit/cellstore/internal/layoutgen"
)

func main() {
	app := kingpin.New("cellctl", "Tools for cellstore layouts and stores.")
	app.HelpFlag.Short('h')
	verbose := app.Flag("verbose", "log more").Short('v').Bool()

	gen := app.Command("gen", "generate Go layouts from a TOML schema")
	genSchema := gen.Arg("schema", "schema file").Required().ExistingFile()
	genOut := gen.Flag("out", "output file (default: stdout)").Short('o').String()
	genPkg := gen.Flag("package", "package name, overriding the schema's").String()
	genImport := gen.Flag("import", "import path of the cellstore package").Default(layoutgen.DefaultImportPath).String()

	dump := app.Command("dump", "list the keys of a store")
	dumpBolt := dump.Flag("bolt", "bbolt database file").ExistingFile()
	dumpLevel := dump.Flag("leveldb", "goleveldb directory").ExistingDir()
	dumpValues := dump.Flag("values", "print values in hex").Bool()
	dumpRoots := dump.Flag("root", "label the key derived from this root name").Strings()

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var err error
	switch cmd {
	case gen.FullCommand():
		err = runGen(logger, *genSchema, *genOut, *genPkg, *genImport)
	case dump.FullCommand():
		err = runDump(*dumpBolt, *dumpLevel, *dumpValues, *dumpRoots)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "cellctl: %v\n", err)
		os.Exit(1)
	}
}

func runGen(logger *slog.Logger, schemaPath, out, pkg, importPath string) error {
	s, err := layoutgen.Load(schemaPath)
	if err != nil {
		return err
	}
	src, err := layoutgen.Generate(s, layoutgen.Options{
		Package:    pkg,
		ImportPath: importPath,
		Source:     filepath.Base(schemaPath),
	})
	if err != nil {
		return err
	}
	if out == "" {
		_, err = os.Stdout.Write(src)
		return err
	}
	if err := os.WriteFile(out, src, 0o644); err != nil {
		return err
	}
	logger.Debug("generated", "out", out, "structs", len(s.Structs), "size", humanize.Bytes(uint64(len(src))))
	return nil
}

func runDump(boltPath, levelPath string, values bool, roots []string) error {
	var backend cellstore.Backend
	var err error
	switch {
	case boltPath != "" && levelPath != "":
		return fmt.Errorf("--bolt and --leveldb are mutually exclusive")
	case boltPath != "":
		backend, err = cellstore.OpenBolt(boltPath, cellstore.BoltOptions{})
	case levelPath != "":
		backend, err = cellstore.OpenLevelDB(levelPath)
	default:
		return fmt.Errorf("either --bolt or --leveldb is required")
	}
	if err != nil {
		return err
	}
	defer backend.Close()

	names := make(map[cellstore.Key]string)
	for _, r := range roots {
		names[cellstore.NamedKey(r)] = r
	}
	f := cellstore.DumpKeys | cellstore.DumpStats
	if values {
		f |= cellstore.DumpValues
	}
	_, err = cellstore.Dump(os.Stdout, backend, f, names)
	return err
}
