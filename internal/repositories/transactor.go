package repositories

import (
	"context"
	"database/sql"
)

// Tx exposes the repositories bound to one database transaction.
type Tx struct {
	Tasks   TaskRepository
	Changes ChangeRepository
}

// Transactor runs fn inside a single transaction; any error rolls it back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

type sqlTransactor struct {
	db *sql.DB
}

func NewTransactor(db *sql.DB) Transactor {
	return &sqlTransactor{db: db}
}

func (t *sqlTransactor) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return withTx(ctx, t.db, func(sqlTx *sql.Tx) error {
		return fn(Tx{
			Tasks:   &taskRepository{db: sqlTx},
			Changes: &changeRepository{db: sqlTx},
		})
	})
}
