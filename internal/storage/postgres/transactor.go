package postgres

import (
	"context"

	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/avito-tech/go-transaction-manager/trm/v2/settings"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Transactor runs units of work in PostgreSQL transactions. A failed unit is
// rolled back as a whole.
type Transactor struct {
	m        *manager.Manager
	snapshot trmpgx.Settings
}

// NewTransactor creates a Transactor on pool.
func NewTransactor(pool *pgxpool.Pool) *Transactor {
	s := trmpgx.MustSettings(settings.Must(),
		trmpgx.WithTxOptions(pgx.TxOptions{
			IsoLevel:   pgx.RepeatableRead,
			AccessMode: pgx.ReadOnly,
		}),
	)
	return &Transactor{
		m:        manager.Must(trmpgx.NewDefaultFactory(pool)),
		snapshot: s,
	}
}

// Do runs fn in a read-write transaction, joining one already bound to ctx.
func (t *Transactor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.m.Do(ctx, fn)
}

// Atomic is always true.
func (t *Transactor) Atomic() bool { return true }

// ReadSnapshot runs fn in a read-only repeatable-read transaction, so every
// query inside sees the same database state.
func (t *Transactor) ReadSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.m.DoWithSettings(ctx, t.snapshot, fn)
}
