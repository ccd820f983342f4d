package cellstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Env is the state of one invocation: the host view, the meter, statistics
// and the roots to flush. It is not safe for concurrent use; an invocation is
// single-threaded by definition.
type Env struct {
	db       *DB
	host     HostTx
	id       uuid.UUID
	logger   *slog.Logger
	verbose  bool
	maxValue int
	meter    meter
	stats    Stats

	roots   []rootBinding
	rootSet map[Key]bool
	flushed bool
}

type rootBinding struct {
	root  Key
	flush func() error
}

func newEnv(db *DB, host HostTx) *Env {
	id := uuid.New()
	env := &Env{
		db:       db,
		host:     host,
		id:       id,
		logger:   db.logger.With(slog.String("inv", id.String())),
		verbose:  db.opt.Verbose,
		maxValue: db.opt.MaxValueSize,
		meter:    meter{costs: db.opt.Costs, budget: db.opt.Budget},
	}
	if env.maxValue == 0 {
		env.maxValue = DefaultMaxValueSize
	}
	if env.meter.costs == (CostModel{}) {
		env.meter.costs = DefaultCostModel
	}
	return env
}

// ID identifies the invocation in logs.
func (env *Env) ID() uuid.UUID {
	return env.id
}

func (env *Env) Logger() *slog.Logger {
	return env.logger
}

func (env *Env) Writable() bool {
	return env.host.Writable()
}

// Stats returns host traffic so far.
func (env *Env) Stats() Stats {
	s := env.stats
	s.Cost = env.meter.used
	return s
}

// Bind pulls the value laid out at root and registers it to be pushed when
// the invocation flushes. A root can be bound only once per invocation.
//
// A Packed value is a copy and cannot be flushed back, and neither can a
// Spread struct with a Packed field outside of any Cell; bind CellOf(layout)
// or give the field a CellOf layout instead.
func Bind[T any](env *Env, root Key, layout Layout[T]) (T, error) {
	var zero T
	if err := checkRoot(root, layout); err != nil {
		return zero, err
	}
	if env.flushed {
		return zero, fmt.Errorf("cellstore: Bind after flush")
	}
	if env.rootSet[root] {
		return zero, fmt.Errorf("cellstore: root %s is already bound", root.Short())
	}
	v, _, err := layout.Pull(env, NewKeyPtr(root))
	if err != nil {
		return zero, err
	}
	if env.rootSet == nil {
		env.rootSet = make(map[Key]bool)
	}
	env.rootSet[root] = true
	env.roots = append(env.roots, rootBinding{root, func() error {
		return layout.Push(env, NewKeyPtr(root), v)
	}})
	return v, nil
}

func checkRoot[T any](root Key, layout Layout[T]) error {
	if layout.Kind() == KindPacked {
		return fmt.Errorf("cellstore: cannot bind Packed root %s, wrap it in CellOf", root.Short())
	}
	if pf, ok := layout.(packedFieldFinder); ok {
		if name, ok := pf.barePacked(); ok {
			return fmt.Errorf("cellstore: cannot bind root %s: field %s is Packed, wrap it in CellOf", root.Short(), name)
		}
	}
	return nil
}

// flush pushes every bound root. It runs exactly once, at the end of a
// successful invocation.
func (env *Env) flush() error {
	if env.flushed {
		return errors.New("cellstore: flushed twice")
	}
	env.flushed = true
	for _, rb := range env.roots {
		if err := rb.flush(); err != nil {
			return err
		}
	}
	if env.verbose {
		env.logger.LogAttrs(context.Background(), slog.LevelDebug, "cellstore: FLUSH", slog.Int("roots", len(env.roots)), slog.Any("stats", env.Stats()))
	}
	return nil
}

func (env *Env) read(key Key) ([]byte, bool, error) {
	if err := env.meter.charge("get", key, env.meter.costs.ReadBase, 0); err != nil {
		return nil, false, err
	}
	v, ok, err := env.host.Get(key)
	if err != nil {
		return nil, false, hostErr("get", key, err)
	}
	env.stats.Reads++
	env.db.ReadCount.Add(1)
	if !ok {
		env.stats.Misses++
	} else {
		if err := env.meter.charge("get", key, 0, len(v)); err != nil {
			return nil, false, err
		}
		env.stats.BytesRead += uint64(len(v))
	}
	if env.verbose {
		env.logger.LogAttrs(context.Background(), slog.LevelDebug, "cellstore: GET", hexAttr("key", key[:]), slog.Bool("found", ok), slog.Int("len", len(v)))
	}
	return v, ok, nil
}

func (env *Env) write(key Key, value []byte) error {
	if !env.host.Writable() {
		return hostErr("set", key, ErrReadOnly)
	}
	if len(value) > env.maxValue {
		return hostErr("set", key, fmt.Errorf("%w: %d bytes, limit %d", ErrValueTooLarge, len(value), env.maxValue))
	}
	if err := env.meter.charge("set", key, env.meter.costs.WriteBase, len(value)); err != nil {
		return err
	}
	if err := env.host.Set(key, value); err != nil {
		return hostErr("set", key, err)
	}
	env.stats.Writes++
	env.stats.BytesWritten += uint64(len(value))
	env.db.WriteCount.Add(1)
	if env.verbose {
		env.logger.LogAttrs(context.Background(), slog.LevelDebug, "cellstore: SET", hexAttr("key", key[:]), slog.Int("len", len(value)))
	}
	return nil
}

func (env *Env) remove(key Key) error {
	if !env.host.Writable() {
		return hostErr("clear", key, ErrReadOnly)
	}
	if err := env.meter.charge("clear", key, env.meter.costs.ClearBase, 0); err != nil {
		return err
	}
	if err := env.host.Clear(key); err != nil {
		return hostErr("clear", key, err)
	}
	env.stats.Clears++
	env.db.WriteCount.Add(1)
	if env.verbose {
		env.logger.LogAttrs(context.Background(), slog.LevelDebug, "cellstore: CLEAR", hexAttr("key", key[:]))
	}
	return nil
}

// loadPacked reads and decodes one key.
func loadPacked[T any](env *Env, key Key, c Codec[T]) (T, bool, error) {
	var zero T
	raw, ok, err := env.read(key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := Decode(c, raw)
	if err != nil {
		return zero, false, keyErr(key, err)
	}
	return v, true, nil
}

func storePacked[T any](env *Env, key Key, c Codec[T], v T) error {
	return env.write(key, Encode(c, v))
}
