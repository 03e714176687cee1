// Package store implements the single-writer relational persistence layer
// described in spec.md §4.3: a batched, idempotent GORM store over SQLite,
// with the schema and invariants from spec.md §3.
package store

import (
	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
)

// Context abstracts over either the root DB or an open transaction, so
// every entity-access function in this package takes a Context and never
// a raw *gorm.DB — mirroring the teacher's dbaccess.Context convention.
type Context interface {
	accessor() (*gorm.DB, error)
}

// dbContext wraps the root connection; every call runs in its own
// implicit transaction via GORM.
type dbContext struct {
	db *gorm.DB
}

func (c *dbContext) accessor() (*gorm.DB, error) {
	if c.db == nil {
		return nil, errors.New("store: database is closed")
	}
	return c.db, nil
}

// TxContext wraps one open transaction. Callers must Commit or
// RollbackUnlessClosed it exactly once.
type TxContext struct {
	tx     *gorm.DB
	closed bool
}

func (c *TxContext) accessor() (*gorm.DB, error) {
	if c.closed {
		return nil, errors.New("store: transaction is already closed")
	}
	return c.tx, nil
}

// NewTx begins a transaction over db's root context.
func (db *DB) NewTx() (*TxContext, error) {
	tx := db.gorm.Begin()
	if tx.Error != nil {
		return nil, errors.Wrap(tx.Error, "store: begin transaction")
	}
	return &TxContext{tx: tx}, nil
}

// Commit commits the transaction.
func (c *TxContext) Commit() error {
	if c.closed {
		return errors.New("store: transaction is already closed")
	}
	c.closed = true
	if err := c.tx.Commit().Error; err != nil {
		return errors.Wrap(err, "store: commit transaction")
	}
	return nil
}

// RollbackUnlessClosed rolls the transaction back unless it was already
// committed. Safe to defer unconditionally right after NewTx.
func (c *TxContext) RollbackUnlessClosed() {
	if c.closed {
		return
	}
	c.closed = true
	c.tx.Rollback()
}

// IsNotFoundError reports whether err is GORM's "record not found" error,
// the relational analogue of the teacher's dbaccess.IsNotFoundError.
func IsNotFoundError(err error) bool {
	return errors.Cause(err) == gorm.ErrRecordNotFound
}
