package cellstore

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
)

// DB runs invocations against a Backend. It holds no cell state between
// invocations: every invocation starts from unloaded cells and sees only what
// was committed.
type DB struct {
	backend Backend
	opt     Options
	logger  *slog.Logger

	InvokeCount atomic.Uint64
	AbortCount  atomic.Uint64
	ReadCount   atomic.Uint64
	WriteCount  atomic.Uint64
}

type Options struct {
	Logger  *slog.Logger
	Verbose bool

	// Budget caps the metered cost of one invocation; 0 means unlimited.
	Budget uint64
	// Costs defaults to DefaultCostModel.
	Costs CostModel
	// MaxValueSize defaults to DefaultMaxValueSize.
	MaxValueSize int
}

func Open(backend Backend, opt Options) *DB {
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{
		backend: backend,
		opt:     opt,
		logger:  logger,
	}
}

// OpenMem returns a DB over a fresh in-memory backend.
func OpenMem(opt Options) *DB {
	return Open(NewMemBackend(), opt)
}

func (db *DB) Backend() Backend {
	return db.backend
}

func (db *DB) Close() error {
	return db.backend.Close()
}

// Invoke runs fn as one writable invocation. If fn returns nil, every bound
// root is flushed once and the host commits all writes atomically. If fn
// fails, panics, or the flush fails, nothing is written.
func (db *DB) Invoke(fn func(env *Env) error) error {
	htx, err := db.backend.Begin(true)
	if err != nil {
		return fmt.Errorf("cellstore: begin: %w", err)
	}
	env := newEnv(db, htx)
	db.InvokeCount.Add(1)

	err = safelyCall(fn, env)
	if err == nil {
		err = env.flush()
	}
	if err != nil {
		db.AbortCount.Add(1)
		if rerr := htx.Rollback(); rerr != nil {
			env.logger.LogAttrs(context.Background(), slog.LevelError, "cellstore: rollback failed", slog.Any("err", rerr))
		}
		if IsFatal(err) {
			env.logger.LogAttrs(context.Background(), slog.LevelWarn, "cellstore: invocation aborted", slog.Any("err", err))
		}
		return err
	}
	if err := htx.Commit(); err != nil {
		db.AbortCount.Add(1)
		return fmt.Errorf("cellstore: commit: %w", err)
	}
	return nil
}

// View runs fn as a read-only invocation. Cells may be modified in memory but
// are never flushed.
func (db *DB) View(fn func(env *Env) error) error {
	htx, err := db.backend.Begin(false)
	if err != nil {
		return fmt.Errorf("cellstore: begin: %w", err)
	}
	defer htx.Rollback()
	return safelyCall(fn, newEnv(db, htx))
}

// Call binds the state laid out at root and runs fn against it as one
// writable invocation.
func Call[T any](db *DB, root Key, layout Layout[T], fn func(env *Env, state T) error) error {
	return db.Invoke(func(env *Env) error {
		state, err := Bind(env, root, layout)
		if err != nil {
			return err
		}
		return fn(env, state)
	})
}

// Query is the read-only counterpart of Call. It accepts the same layouts
// as Bind.
func Query[T any](db *DB, root Key, layout Layout[T], fn func(env *Env, state T) error) error {
	if err := checkRoot(root, layout); err != nil {
		return err
	}
	return db.View(func(env *Env) error {
		state, _, err := layout.Pull(env, NewKeyPtr(root))
		if err != nil {
			return err
		}
		return fn(env, state)
	})
}

func safelyCall(fn func(*Env) error, env *Env) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(env)
}
