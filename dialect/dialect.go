package dialect

import (
	"context"
	"fmt"
	"log"
)

// Supported dialect names. The name is carried by the driver and consulted
// by the query builders for placeholder and quoting style.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the two basic operations every connection-like value
// supports: executing a statement and running a query.
type ExecQuerier interface {
	// Exec executes a statement. The args are expected to be []any and v an
	// optional *sql.Result destination.
	Exec(ctx context.Context, query string, args, v any) error
	// Query runs a query. The args are expected to be []any and v a
	// *sql.Rows destination.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface consumed by the ORM layer for executing queries
// and starting transactions.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx is the transaction interface returned by Driver.Tx. It executes on the
// transaction's connection until committed or rolled back.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

type nopTx struct {
	Driver
}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

// NopTx returns a Tx that executes on the given driver and discards
// commit/rollback. Useful for drivers without transaction support.
func NopTx(d Driver) Tx {
	return nopTx{d}
}

// DebugDriver is a driver that logs all driver operations before delegating.
type DebugDriver struct {
	Driver              // underlying driver.
	log    func(...any) // log function.
}

// Debug gets a driver and an optional logging function, and returns a new
// debugged driver that prints all outgoing statements.
func Debug(d Driver, logger ...func(...any)) Driver {
	logf := log.Println
	if len(logger) == 1 {
		logf = logger[0]
	}
	return &DebugDriver{d, logf}
}

// Exec logs its params and calls the underlying driver Exec method.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.log(fmt.Sprintf("driver.Exec: query=%v args=%v", query, args))
	return d.Driver.Exec(ctx, query, args, v)
}

// Query logs its params and calls the underlying driver Query method.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.log(fmt.Sprintf("driver.Query: query=%v args=%v", query, args))
	return d.Driver.Query(ctx, query, args, v)
}

// Tx adds a log-id for the transaction and calls the underlying driver Tx command.
func (d *DebugDriver) Tx(ctx context.Context) (Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &DebugTx{tx, d.log}, nil
}

// DebugTx is a transaction implementation that logs all transaction operations.
type DebugTx struct {
	Tx
	log func(...any)
}

// Exec logs its params and calls the underlying transaction Exec method.
func (d *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	d.log(fmt.Sprintf("tx.Exec: query=%v args=%v", query, args))
	return d.Tx.Exec(ctx, query, args, v)
}

// Query logs its params and calls the underlying transaction Query method.
func (d *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	d.log(fmt.Sprintf("tx.Query: query=%v args=%v", query, args))
	return d.Tx.Query(ctx, query, args, v)
}

// Commit logs the commit and calls the underlying transaction Commit method.
func (d *DebugTx) Commit() error {
	d.log("tx.Commit")
	return d.Tx.Commit()
}

// Rollback logs the rollback and calls the underlying transaction Rollback method.
func (d *DebugTx) Rollback() error {
	d.log("tx.Rollback")
	return d.Tx.Rollback()
}
