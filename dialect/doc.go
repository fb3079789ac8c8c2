// Package dialect provides the database driver abstraction used by Rivet.
//
// The package defines the interfaces the ORM layer consumes for executing
// statements and scoping transactions, keeping the upper layers independent
// of database/sql and of the specific database backend.
//
// # Supported Dialects
//
// Each supported backend is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The Tx interface extends ExecQuerier with Commit and Rollback; statements
// issued through a Tx run on the transaction's connection.
//
// # Usage
//
//	import (
//	    "github.com/rivetorm/rivet/dialect"
//	    "github.com/rivetorm/rivet/dialect/sql"
//	)
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// The dialect/sql sub-package provides the SQL query builders and the
// database/sql-backed driver implementation.
package dialect
