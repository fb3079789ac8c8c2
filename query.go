package rivet

import (
	"context"
	"fmt"
	"time"

	"github.com/rivetorm/rivet/dialect/sql"
	"github.com/rivetorm/rivet/schema"
)

// queryMode tells constraint hooks what the statement is for. HasOne
// relations limit reads to a single row but never mutations or batches.
type queryMode int

const (
	modeSelect queryMode = iota
	modeAggregate
	modeMutation
)

// Query is a fluent builder over a single registered type. The vocabulary
// addresses attributes; the builder maps them to columns.
type Query struct {
	client *Client
	typ    *schema.Type
	table  *sql.SelectTable
	sel    *sql.Selector

	preloads     map[string]*preloadNode
	preloadOrder []string

	// before hooks run once ahead of statement building. Relation queries
	// register their parent constraints here.
	before []func(queryMode) error

	cache    Cache
	cacheTTL time.Duration

	err error
}

func newQuery(c *Client, t *schema.Type) *Query {
	table := sql.Table(t.Table)
	return &Query{
		client:   c,
		typ:      t,
		table:    table,
		sel:      sql.Dialect(c.dialect).Select(t.Table + ".*").From(table),
		preloads: make(map[string]*preloadNode),
	}
}

func (q *Query) fail(err error) *Query {
	if q.err == nil {
		q.err = err
	}
	return q
}

// Err returns the first deferred builder error, if any.
func (q *Query) Err() error { return q.err }

// Selector exposes the underlying SQL selector for constraints the
// attribute vocabulary does not cover.
func (q *Query) Selector() *sql.Selector { return q.sel }

// C returns the qualified column backing the given attribute.
func (q *Query) C(attr string) string {
	return q.table.C(q.typ.ColumnOf(attr))
}

// Where adds an attribute comparison. Supported operators: =, !=, <>, >,
// >=, <, <=, like.
func (q *Query) Where(attr, op string, v any) *Query {
	if q.err != nil {
		return q
	}
	col := q.C(attr)
	var p *sql.Predicate
	switch op {
	case "=":
		p = sql.EQ(col, v)
	case "!=", "<>":
		p = sql.NEQ(col, v)
	case ">":
		p = sql.GT(col, v)
	case ">=":
		p = sql.GTE(col, v)
	case "<":
		p = sql.LT(col, v)
	case "<=":
		p = sql.LTE(col, v)
	case "like", "LIKE":
		p = sql.Like(col, fmt.Sprint(v))
	default:
		return q.fail(fmt.Errorf("rivet: unsupported operator %q", op))
	}
	q.sel.Where(p)
	return q
}

// WhereIn constrains the attribute to the given value set.
func (q *Query) WhereIn(attr string, vs ...any) *Query {
	if q.err != nil {
		return q
	}
	q.sel.Where(sql.In(q.C(attr), vs...))
	return q
}

// WhereNull constrains the attribute to NULL.
func (q *Query) WhereNull(attr string) *Query {
	if q.err != nil {
		return q
	}
	q.sel.Where(sql.IsNull(q.C(attr)))
	return q
}

// WhereNotNull constrains the attribute to non-NULL.
func (q *Query) WhereNotNull(attr string) *Query {
	if q.err != nil {
		return q
	}
	q.sel.Where(sql.NotNull(q.C(attr)))
	return q
}

// WhereP hands the underlying selector to fn for arbitrary constraints.
func (q *Query) WhereP(fn func(*sql.Selector)) *Query {
	if q.err != nil {
		return q
	}
	fn(q.sel)
	return q
}

// Select limits the selection to the given attributes.
func (q *Query) Select(attrs ...string) *Query {
	if q.err != nil {
		return q
	}
	cols := make([]string, len(attrs))
	for i, attr := range attrs {
		cols[i] = q.C(attr)
	}
	q.sel.Select(cols...)
	return q
}

// OrderBy orders ascending by the given attribute.
func (q *Query) OrderBy(attr string) *Query {
	if q.err != nil {
		return q
	}
	q.sel.OrderBy(q.C(attr))
	return q
}

// OrderByDesc orders descending by the given attribute.
func (q *Query) OrderByDesc(attr string) *Query {
	if q.err != nil {
		return q
	}
	q.sel.OrderBy(sql.Desc(q.C(attr)))
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	if q.err != nil {
		return q
	}
	q.sel.Limit(n)
	return q
}

// Offset skips the first n rows.
func (q *Query) Offset(n int) *Query {
	if q.err != nil {
		return q
	}
	q.sel.Offset(n)
	return q
}

// Cache serves All results from the given cache for ttl, keyed by the
// rendered statement and arguments.
func (q *Query) Cache(c Cache, ttl time.Duration) *Query {
	q.cache = c
	q.cacheTTL = ttl
	return q
}

// Preload registers a relation path ("posts" or "posts.comments") for eager
// loading, optionally with constraint callbacks applied to the generated
// relation query.
func (q *Query) Preload(path string, cbs ...func(*RelationQuery)) *Query {
	if q.err != nil {
		return q
	}
	addPreloadPath(q.preloads, &q.preloadOrder, path, cbs)
	return q
}

func (q *Query) prepare(mode queryMode) error {
	if q.err != nil {
		return q.err
	}
	for _, hook := range q.before {
		if err := hook(mode); err != nil {
			q.err = err
			return err
		}
	}
	return nil
}

// ToSQL renders the SELECT statement without executing it.
func (q *Query) ToSQL() (string, []any, error) {
	if err := q.prepare(modeSelect); err != nil {
		return "", nil, err
	}
	query, args := q.sel.Query()
	return query, args, nil
}

// All executes the query and returns every matching record, with any
// registered preloads resolved.
func (q *Query) All(ctx context.Context) (*Collection, error) {
	if err := q.prepare(modeSelect); err != nil {
		return nil, err
	}
	query, args := q.sel.Query()

	var (
		recs *Collection
		key  string
	)
	if q.cache != nil {
		key = cacheKey(query, args)
		if data, err := q.cache.Get(ctx, key); err == nil && data != nil {
			if decoded, err := decodeCollection(q.client.registry, data); err == nil {
				recs = decoded
			}
		}
	}
	if recs == nil {
		var rows sql.Rows
		if err := q.client.conn.Query(ctx, query, args, &rows); err != nil {
			return nil, err
		}
		fetched, err := scanRecords(q.typ, &rows)
		if err != nil {
			return nil, err
		}
		recs = fetched
		if q.cache != nil {
			if data, err := encodeCollection(recs); err == nil {
				_ = q.cache.Set(ctx, key, data, q.cacheTTL)
			}
		}
	}
	if len(q.preloads) > 0 {
		if err := q.client.loadRelations(ctx, q.typ, recs.Records(), q.preloads, q.preloadOrder); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// First returns the first matching record, or nil when none matches.
func (q *Query) First(ctx context.Context) (*Record, error) {
	q.Limit(1)
	recs, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	return recs.First(), nil
}

// FirstOrFail returns the first matching record, or a NotFoundError.
func (q *Query) FirstOrFail(ctx context.Context) (*Record, error) {
	rec, err := q.First(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, NewNotFoundError(q.typ.Name)
	}
	return rec, nil
}

// Find returns the record with the given primary key, or a NotFoundError.
func (q *Query) Find(ctx context.Context, pk any) (*Record, error) {
	return q.Where(q.typ.PrimaryKey, "=", pk).FirstOrFail(ctx)
}

// Count returns the number of matching rows.
func (q *Query) Count(ctx context.Context) (int, error) {
	if err := q.prepare(modeAggregate); err != nil {
		return 0, err
	}
	sel := q.sel.Clone().ClearOrder().ClearLimitOffset().Select(sql.Count("*"))
	query, args := sel.Query()
	var rows sql.Rows
	if err := q.client.conn.Query(ctx, query, args, &rows); err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return int(n), rows.Err()
}

// Exists reports whether any row matches.
func (q *Query) Exists(ctx context.Context) (bool, error) {
	if err := q.prepare(modeAggregate); err != nil {
		return false, err
	}
	sel := q.sel.Clone().ClearOrder().ClearLimitOffset().Select("1").Limit(1)
	query, args := sel.Query()
	var rows sql.Rows
	if err := q.client.conn.Query(ctx, query, args, &rows); err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

func (q *Query) aggregate(ctx context.Context, fn func(string) string, attr string) (float64, error) {
	if err := q.prepare(modeAggregate); err != nil {
		return 0, err
	}
	sel := q.sel.Clone().ClearOrder().ClearLimitOffset().Select(fn(q.C(attr)))
	query, args := sel.Query()
	var rows sql.Rows
	if err := q.client.conn.Query(ctx, query, args, &rows); err != nil {
		return 0, err
	}
	defer rows.Close()
	var v sql.NullFloat64
	if rows.Next() {
		if err := rows.Scan(&v); err != nil {
			return 0, err
		}
	}
	return v.Float64, rows.Err()
}

// Sum returns the sum of a numeric attribute over the matching rows.
func (q *Query) Sum(ctx context.Context, attr string) (float64, error) {
	return q.aggregate(ctx, sql.Sum, attr)
}

// Avg returns the average of a numeric attribute over the matching rows.
func (q *Query) Avg(ctx context.Context, attr string) (float64, error) {
	return q.aggregate(ctx, sql.Avg, attr)
}

// Min returns the minimum of a numeric attribute over the matching rows.
func (q *Query) Min(ctx context.Context, attr string) (float64, error) {
	return q.aggregate(ctx, sql.Min, attr)
}

// Max returns the maximum of a numeric attribute over the matching rows.
func (q *Query) Max(ctx context.Context, attr string) (float64, error) {
	return q.aggregate(ctx, sql.Max, attr)
}

// Page is one page of a paginated result set.
type Page struct {
	Records  *Collection
	Total    int
	Page     int
	PerPage  int
	LastPage int
}

// Paginate counts the matching rows and fetches the requested page in one
// call. Pages are 1-based.
func (q *Query) Paginate(ctx context.Context, page, perPage int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 15
	}
	total, err := q.Count(ctx)
	if err != nil {
		return nil, err
	}
	q.Limit(perPage).Offset((page - 1) * perPage)
	recs, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	last := (total + perPage - 1) / perPage
	if last < 1 {
		last = 1
	}
	return &Page{Records: recs, Total: total, Page: page, PerPage: perPage, LastPage: last}, nil
}

// scanRecords maps rows onto records: known columns become cast attributes,
// unknown columns (join aliases) land in the extras map.
func scanRecords(t *schema.Type, rows *sql.Rows) (*Collection, error) {
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	coll := NewCollection()
	for rows.Next() {
		values := make([]any, len(columns))
		for i := range values {
			values[i] = new(any)
		}
		if err := rows.Scan(values...); err != nil {
			return nil, err
		}
		rec := NewRecord(t)
		for i, col := range columns {
			v := *(values[i].(*any))
			if a, ok := t.AttributeByColumn(col); ok {
				cv, err := schema.CastValue(a.Cast, v)
				if err != nil {
					return nil, err
				}
				rec.attrs[a.Name] = cv
			} else {
				rec.setExtra(col, normalizeKey(v))
			}
		}
		rec.syncOriginal()
		coll.append(rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return coll, nil
}

func cacheKey(query string, args []any) string {
	return fmt.Sprintf("%s|%v", query, args)
}
