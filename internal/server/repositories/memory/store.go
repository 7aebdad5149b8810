// Package memory is an in-process credential store with the same observable
// semantics as the Postgres repositories: unique emails, unique token values,
// cascading user deletion and all-or-nothing transactions. It backs
// development runs without a database and the service-level tests.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// ErrRawSQL is returned by the DBTX methods of a memory transaction handle.
var ErrRawSQL = errors.New("memory: raw SQL is not supported")

type state struct {
	users   map[string]models.User
	byEmail map[string]string
	tokens  map[string]models.RefreshToken
}

func newState() *state {
	return &state{
		users:   make(map[string]models.User),
		byEmail: make(map[string]string),
		tokens:  make(map[string]models.RefreshToken),
	}
}

func (s *state) clone() *state {
	c := &state{
		users:   make(map[string]models.User, len(s.users)),
		byEmail: make(map[string]string, len(s.byEmail)),
		tokens:  make(map[string]models.RefreshToken, len(s.tokens)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.byEmail {
		c.byEmail[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	return c
}

// Store holds all records behind one lock. Transactions hold the lock for
// their whole duration and work on a private copy that replaces the live
// state only on success.
type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{state: newState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tx is the handle passed to WithTx callbacks. Repositories obtained for it
// see the transaction's private state.
type Tx struct {
	state *state
}

func (*Tx) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, ErrRawSQL
}

func (*Tx) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, ErrRawSQL
}

// QueryRowContext cannot report ErrRawSQL through *sql.Row, so it panics.
func (*Tx) QueryRowContext(context.Context, string, ...any) *sql.Row {
	panic(ErrRawSQL)
}

var _ dbx.DBTX = (*Tx)(nil)

// WithTx runs fn against a copy of the store and publishes the copy only if
// fn returns nil. Calling WithTx from inside fn deadlocks.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{state: s.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// read runs fn over the state db refers to: the transaction copy for a *Tx,
// the live state otherwise.
func (s *Store) read(db dbx.DBTX, fn func(st *state) error) error {
	if tx, ok := db.(*Tx); ok {
		return fn(tx.state)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

func (s *Store) write(db dbx.DBTX, fn func(st *state) error) error {
	if tx, ok := db.(*Tx); ok {
		return fn(tx.state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}
