package rivet

import (
	"context"
	"errors"

	"github.com/rivetorm/rivet/dialect"
	"github.com/rivetorm/rivet/dialect/sql"
	"github.com/rivetorm/rivet/schema"
)

// Client binds a booted registry to a database driver. All queries and
// record-level mutations go through a client.
type Client struct {
	driver   dialect.Driver
	conn     dialect.ExecQuerier
	registry *schema.Registry
	dialect  string
}

// NewClient boots the registry and returns a client on the given driver.
func NewClient(drv dialect.Driver, reg *schema.Registry) (*Client, error) {
	if err := reg.Boot(); err != nil {
		return nil, err
	}
	return &Client{
		driver:   drv,
		conn:     drv,
		registry: reg,
		dialect:  drv.Dialect(),
	}, nil
}

// Open opens a database connection for the given dialect and DSN and
// returns a client on it.
func Open(dialectName, dsn string, reg *schema.Registry) (*Client, error) {
	drv, err := sql.Open(dialectName, dsn)
	if err != nil {
		return nil, err
	}
	return NewClient(drv, reg)
}

// Debug returns a client that logs every statement before executing it.
func (c *Client) Debug(logger ...func(...any)) *Client {
	drv := dialect.Debug(c.driver, logger...)
	return &Client{driver: drv, conn: drv, registry: c.registry, dialect: c.dialect}
}

// Registry returns the client's type registry.
func (c *Client) Registry() *schema.Registry { return c.registry }

// Close closes the underlying driver.
func (c *Client) Close() error { return c.driver.Close() }

// Model returns a query over the registered type. Referencing an
// unregistered type defers the error to execution.
func (c *Client) Model(name string) *Query {
	t, err := c.registry.Type(name)
	if err != nil {
		q := &Query{client: c, preloads: make(map[string]*preloadNode)}
		q.err = err
		return q
	}
	return newQuery(c, t)
}

// New returns a fresh record of the registered type.
func (c *Client) New(typeName string) (*Record, error) {
	t, err := c.registry.Type(typeName)
	if err != nil {
		return nil, err
	}
	return NewRecord(t), nil
}

// Related returns a relation query for the parent record's relation.
func (c *Client) Related(parent *Record, name string) *RelationQuery {
	rel, ok := parent.Type().Relation(name)
	if !ok {
		q := &Query{client: c, preloads: make(map[string]*preloadNode)}
		q.err = NewUndefinedRelationError(parent.Type().Name, name)
		return &RelationQuery{Query: q, parents: []*Record{parent}}
	}
	return newRelationQuery(c, rel, []*Record{parent}, false)
}

// Create inserts a new record of the given type with the given attributes.
func (c *Client) Create(ctx context.Context, typeName string, attrs map[string]any) (*Record, error) {
	rec, err := c.New(typeName)
	if err != nil {
		return nil, err
	}
	rec.Fill(attrs)
	if err := c.insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Save persists the record: INSERT for new records, a minimal UPDATE of the
// dirty attributes for persisted ones. Saving a clean persisted record is a
// no-op.
func (c *Client) Save(ctx context.Context, rec *Record) error {
	if !rec.Persisted() {
		return c.insert(ctx, rec)
	}
	dirty := rec.Dirty()
	if len(dirty) == 0 {
		return nil
	}
	t := rec.Type()
	pk, err := rec.PrimaryKey()
	if err != nil {
		return err
	}
	ub := sql.Dialect(c.dialect).Update(t.Table)
	for _, attr := range sortedKeys(dirty) {
		ub.Set(t.ColumnOf(attr), dirty[attr])
	}
	ub.Where(sql.EQ(t.ColumnOf(t.PrimaryKey), pk))
	query, args := ub.Query()
	if _, err := c.exec(ctx, query, args); err != nil {
		return err
	}
	rec.syncOriginal()
	return nil
}

// Delete removes the record by primary key.
func (c *Client) Delete(ctx context.Context, rec *Record) error {
	t := rec.Type()
	pk, err := rec.PrimaryKey()
	if err != nil {
		return err
	}
	db := sql.Dialect(c.dialect).Delete(t.Table).Where(sql.EQ(t.ColumnOf(t.PrimaryKey), pk))
	query, args := db.Query()
	if _, err := c.exec(ctx, query, args); err != nil {
		return err
	}
	rec.persisted = false
	return nil
}

// insert writes a new row. On Postgres the generated primary key comes back
// via RETURNING; elsewhere via LastInsertId.
func (c *Client) insert(ctx context.Context, rec *Record) error {
	t := rec.Type()
	attrs := rec.Attributes()
	ib := sql.Dialect(c.dialect).Insert(t.Table)
	names := sortedKeys(attrs)
	if len(names) == 0 {
		ib.Default()
	} else {
		cols := make([]string, len(names))
		vals := make([]any, len(names))
		for i, attr := range names {
			cols[i] = t.ColumnOf(attr)
			vals[i] = attrs[attr]
		}
		ib.Columns(cols...).Values(vals...)
	}
	pkCol := t.ColumnOf(t.PrimaryKey)
	_, pkSet := rec.Get(t.PrimaryKey)

	if c.dialect == dialect.Postgres && !pkSet {
		ib.Returning(pkCol)
		query, args := ib.Query()
		var rows sql.Rows
		if err := c.conn.Query(ctx, query, args, &rows); err != nil {
			return c.wrapConstraint(err)
		}
		defer rows.Close()
		if rows.Next() {
			var id any
			if err := rows.Scan(&id); err != nil {
				return err
			}
			if err := c.assignPrimaryKey(rec, id); err != nil {
				return err
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
	} else {
		query, args := ib.Query()
		var res sql.Result
		if err := c.conn.Exec(ctx, query, args, &res); err != nil {
			return c.wrapConstraint(err)
		}
		if !pkSet {
			if id, err := res.LastInsertId(); err == nil && id != 0 {
				if err := c.assignPrimaryKey(rec, id); err != nil {
					return err
				}
			}
		}
	}
	rec.syncOriginal()
	return nil
}

func (c *Client) assignPrimaryKey(rec *Record, id any) error {
	t := rec.Type()
	if a, ok := t.Attribute(t.PrimaryKey); ok {
		cv, err := schema.CastValue(a.Cast, id)
		if err != nil {
			return err
		}
		rec.Set(t.PrimaryKey, cv)
		return nil
	}
	rec.Set(t.PrimaryKey, id)
	return nil
}

// exec runs a statement and returns the affected row count, translating
// driver constraint violations.
func (c *Client) exec(ctx context.Context, query string, args []any) (int64, error) {
	var res sql.Result
	if err := c.conn.Exec(ctx, query, args, &res); err != nil {
		return 0, c.wrapConstraint(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (c *Client) wrapConstraint(err error) error {
	if info, ok := sql.Constraint(err); ok {
		msg := string(info.Kind)
		if info.Name != "" {
			msg += " " + info.Name
		}
		return NewConstraintError(msg, err)
	}
	return err
}

// Tx is a transaction-bound client. All queries and mutations issued
// through it ride the transaction's connection.
type Tx struct {
	*Client
	tx dialect.Tx
}

// Tx starts a transaction and returns a client bound to it.
func (c *Client) Tx(ctx context.Context) (*Tx, error) {
	if _, ok := c.conn.(dialect.Tx); ok {
		return nil, errors.New("rivet: cannot start a transaction within a transaction")
	}
	tx, err := c.driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	bound := &Client{
		driver:   c.driver,
		conn:     tx,
		registry: c.registry,
		dialect:  c.dialect,
	}
	return &Tx{Client: bound, tx: tx}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback rolls the transaction back.
func (t *Tx) Rollback() error { return t.tx.Rollback() }
