package cellstore

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
)

// Stats counts host traffic of one invocation.
type Stats struct {
	Reads        uint64
	Misses       uint64
	Writes       uint64
	Clears       uint64
	BytesRead    uint64
	BytesWritten uint64
	Cost         uint64
}

// RoundTrips is the number of host calls made.
func (s Stats) RoundTrips() uint64 {
	return s.Reads + s.Writes + s.Clears
}

func (s Stats) String() string {
	return fmt.Sprintf("reads=%d (miss %d, %s) writes=%d (%s) clears=%d cost=%d",
		s.Reads, s.Misses, humanize.Bytes(s.BytesRead), s.Writes, humanize.Bytes(s.BytesWritten), s.Clears, s.Cost)
}

func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("reads", s.Reads),
		slog.Uint64("misses", s.Misses),
		slog.Uint64("writes", s.Writes),
		slog.Uint64("clears", s.Clears),
		slog.Uint64("bytes_read", s.BytesRead),
		slog.Uint64("bytes_written", s.BytesWritten),
		slog.Uint64("cost", s.Cost),
	)
}
