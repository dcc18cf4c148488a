package handler

import (
	"context"
	"database/sql"
)

// stdTx wraps *sql.Tx with the rollback-unless-committed pattern used by
// every transactional handler.
type stdTx struct {
	tx        *sql.Tx
	committed bool
}

func beginTx(ctx context.Context, db *sql.DB) (*stdTx, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &stdTx{tx: tx}, nil
}

func (t *stdTx) commit() error {
	if err := t.tx.Commit(); err != nil {
		return err
	}
	t.committed = true
	return nil
}

func (t *stdTx) rollbackUnlessCommitted() {
	if !t.committed {
		_ = t.tx.Rollback()
	}
}
