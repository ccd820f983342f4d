package cellstore

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

type DumpFlags uint64

const (
	DumpKeys = DumpFlags(1 << iota)
	DumpValues
	DumpStats

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var dumpSep = strings.Repeat("=", 80)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// DumpSummary describes the stored contents of a backend.
type DumpSummary struct {
	Keys       int
	ValueBytes uint64
	Largest    int
}

func (s DumpSummary) String() string {
	return fmt.Sprintf("%d keys, %s in values, largest %s", s.Keys, humanize.Bytes(s.ValueBytes), humanize.Bytes(uint64(s.Largest)))
}

// Dump lists every stored key of the backend in key order. names labels
// known keys, typically the roots bound by an application.
func Dump(w io.Writer, b Backend, f DumpFlags, names map[Key]string) (DumpSummary, error) {
	var sum DumpSummary
	htx, err := b.Begin(false)
	if err != nil {
		return sum, err
	}
	defer htx.Rollback()

	err = htx.ForEach(func(key Key, value []byte) error {
		sum.Keys++
		sum.ValueBytes += uint64(len(value))
		sum.Largest = max(sum.Largest, len(value))
		if !f.Contains(DumpKeys) {
			return nil
		}
		label := names[key]
		if label != "" {
			label = " " + label
		}
		if f.Contains(DumpValues) {
			_, err := fmt.Fprintf(w, "%s%s = (%s) %s\n", key, label, humanize.Bytes(uint64(len(value))), hexstr(value))
			return err
		}
		_, err := fmt.Fprintf(w, "%s%s (%s)\n", key, label, humanize.Bytes(uint64(len(value))))
		return err
	})
	if err != nil {
		return sum, err
	}
	if f.Contains(DumpStats) {
		fmt.Fprintln(w, dumpSep)
		fmt.Fprintln(w, sum)
	}
	return sum, nil
}
