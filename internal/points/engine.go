package points

import (
	"database/sql"
	"log/slog"
	"time"
)

// Engine is the redemption engine. It owns every write to point balances,
// catalog stock and order status.
type Engine struct {
	db        *sql.DB
	logger    *slog.Logger
	now       func() time.Time
	observers []Observer
	ledger    *Ledger
}

type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithObserver registers an observer notified after each committed change.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func NewEngine(db *sql.DB, opts ...Option) *Engine {
	e := &Engine{
		db:     db,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "points")
	e.ledger = NewLedger(db, e.logger)
	return e
}

// Ledger returns the engine's read-only view of the ledger.
func (e *Engine) Ledger() *Ledger { return e.ledger }

func (e *Engine) timestamp() time.Time { return e.now().UTC() }
