package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rivetorm/rivet/dialect"
)

// Querier wraps the Query method, implemented by all statement builders.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any)
}

// Builder is the base query builder: an SQL string buffer together with the
// collected arguments and the placeholder counter. All statement builders
// write themselves into a Builder at Query time.
type Builder struct {
	sb      strings.Builder
	dialect string
	args    []any
	total   int
}

// NewBuilder returns a Builder for the given dialect.
func NewBuilder(dialect string) *Builder {
	return &Builder{dialect: dialect}
}

// WriteString appends the string as-is.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// WriteByte appends the byte as-is.
func (b *Builder) WriteByte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Quote quotes the given identifier for the configured dialect.
func (b *Builder) Quote(ident string) string {
	switch b.dialect {
	case dialect.Postgres:
		return `"` + ident + `"`
	default:
		// MySQL and SQLite accept backtick quoting.
		return "`" + ident + "`"
	}
}

// Ident appends the given identifier, quoting plain (possibly qualified)
// names and passing expressions through untouched.
func (b *Builder) Ident(s string) *Builder {
	switch {
	case s == "":
	case strings.ContainsAny(s, "( ,*") || isLiteral(s):
		// Expressions, aliases, stars and literals are written as-is.
		b.WriteString(s)
	default:
		for i, part := range strings.Split(s, ".") {
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(b.Quote(part))
		}
	}
	return b
}

// isLiteral reports whether s is a bare numeric literal.
func isLiteral(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// IdentComma appends the given identifiers separated by commas.
func (b *Builder) IdentComma(s ...string) *Builder {
	for i := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(s[i])
	}
	return b
}

// Arg appends an argument placeholder to the statement and records the value.
func (b *Builder) Arg(v any) *Builder {
	if r, ok := v.(*raw); ok {
		b.WriteString(r.s)
		b.args = append(b.args, r.args...)
		b.total += len(r.args)
		return b
	}
	b.total++
	switch b.dialect {
	case dialect.Postgres:
		b.WriteString("$" + strconv.Itoa(b.total))
	default:
		b.WriteByte('?')
	}
	b.args = append(b.args, v)
	return b
}

// Args appends a comma-separated list of argument placeholders.
func (b *Builder) Args(vs ...any) *Builder {
	for i := range vs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Arg(vs[i])
	}
	return b
}

// Nested wraps the writes of f in parentheses.
func (b *Builder) Nested(f func(*Builder)) *Builder {
	b.WriteByte('(')
	f(b)
	b.WriteByte(')')
	return b
}

// String returns the accumulated statement.
func (b *Builder) String() string { return b.sb.String() }

type raw struct {
	s    string
	args []any
}

// Expr returns a raw SQL fragment that is written as-is wherever an argument
// or predicate is expected.
func Expr(s string, args ...any) any { return &raw{s: s, args: args} }

// DialectBuilder is the entry point for building statements for a dialect.
type DialectBuilder struct {
	dialect string
}

// Dialect creates a builder entry point for the given dialect.
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{dialect: name}
}

// Select returns a Selector for the given columns.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	return Select(columns...).SetDialect(d.dialect)
}

// Table returns a SelectTable for the given table name.
func (d *DialectBuilder) Table(name string) *SelectTable {
	return Table(name)
}

// Insert returns an InsertBuilder for the given table.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	return Insert(table).SetDialect(d.dialect)
}

// Update returns an UpdateBuilder for the given table.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	return Update(table).SetDialect(d.dialect)
}

// Delete returns a DeleteBuilder for the given table.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	return Delete(table).SetDialect(d.dialect)
}

// TableView is a view that can appear in the FROM and JOIN clauses.
type TableView interface {
	ref(b *Builder)
	// C returns the column qualified by the view reference.
	C(column string) string
}

// SelectTable is a simple table reference with an optional alias.
type SelectTable struct {
	name  string
	alias string
}

// Table returns a new table reference.
func Table(name string) *SelectTable {
	return &SelectTable{name: name}
}

// As sets the table alias.
func (t *SelectTable) As(alias string) *SelectTable {
	t.alias = alias
	return t
}

// Name returns the table name.
func (t *SelectTable) Name() string { return t.name }

// C returns the column qualified by the table name or alias.
func (t *SelectTable) C(column string) string {
	if t.alias != "" {
		return t.alias + "." + column
	}
	return t.name + "." + column
}

// Columns returns the given columns qualified by the table.
func (t *SelectTable) Columns(columns ...string) []string {
	qualified := make([]string, len(columns))
	for i := range columns {
		qualified[i] = t.C(columns[i])
	}
	return qualified
}

func (t *SelectTable) ref(b *Builder) {
	b.Ident(t.name)
	if t.alias != "" {
		b.WriteString(" AS ")
		b.Ident(t.alias)
	}
}

type join struct {
	kind  string
	table TableView
	on    *Predicate
}

// Selector builds a SELECT statement.
type Selector struct {
	dialect  string
	columns  []string
	from     TableView
	joins    []join
	where    *Predicate
	groupBy  []string
	having   *Predicate
	orderBy  []string
	limit    *int
	offset   *int
	distinct bool
}

// Select returns a Selector for the given columns.
func Select(columns ...string) *Selector {
	return &Selector{columns: columns}
}

// SetDialect sets the dialect used for quoting and placeholders.
func (s *Selector) SetDialect(name string) *Selector {
	s.dialect = name
	return s
}

// Dialect returns the selector dialect.
func (s *Selector) Dialect() string { return s.dialect }

// Select replaces the selected columns.
func (s *Selector) Select(columns ...string) *Selector {
	s.columns = columns
	return s
}

// AppendSelect appends columns to the selection.
func (s *Selector) AppendSelect(columns ...string) *Selector {
	s.columns = append(s.columns, columns...)
	return s
}

// SelectedColumns returns the current selection.
func (s *Selector) SelectedColumns() []string { return s.columns }

// From sets the table view of the statement.
func (s *Selector) From(t TableView) *Selector {
	s.from = t
	return s
}

// C returns the column qualified by the FROM table, if any.
func (s *Selector) C(column string) string {
	if s.from != nil {
		return s.from.C(column)
	}
	return column
}

// Distinct sets the DISTINCT flag.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// Join appends an INNER JOIN to the statement.
func (s *Selector) Join(t TableView) *Selector {
	s.joins = append(s.joins, join{kind: "JOIN", table: t})
	return s
}

// LeftJoin appends a LEFT JOIN to the statement.
func (s *Selector) LeftJoin(t TableView) *Selector {
	s.joins = append(s.joins, join{kind: "LEFT JOIN", table: t})
	return s
}

// On sets the join condition of the last join to column equality.
func (s *Selector) On(c1, c2 string) *Selector {
	if len(s.joins) > 0 {
		s.joins[len(s.joins)-1].on = ColumnsEQ(c1, c2)
	}
	return s
}

// OnP sets the join condition of the last join to the given predicate.
func (s *Selector) OnP(p *Predicate) *Selector {
	if len(s.joins) > 0 {
		s.joins[len(s.joins)-1].on = p
	}
	return s
}

// Where appends the given predicate, AND-ed with any previous one.
func (s *Selector) Where(p *Predicate) *Selector {
	if p == nil {
		return s
	}
	if s.where != nil {
		s.where = And(s.where, p)
	} else {
		s.where = p
	}
	return s
}

// P returns the accumulated WHERE predicate.
func (s *Selector) P() *Predicate { return s.where }

// GroupBy appends columns to the GROUP BY clause.
func (s *Selector) GroupBy(columns ...string) *Selector {
	s.groupBy = append(s.groupBy, columns...)
	return s
}

// Having sets the HAVING predicate.
func (s *Selector) Having(p *Predicate) *Selector {
	s.having = p
	return s
}

// OrderBy appends columns to the ORDER BY clause.
func (s *Selector) OrderBy(columns ...string) *Selector {
	s.orderBy = append(s.orderBy, columns...)
	return s
}

// ClearOrder drops any accumulated ORDER BY columns.
func (s *Selector) ClearOrder() *Selector {
	s.orderBy = nil
	return s
}

// Limit sets the LIMIT clause.
func (s *Selector) Limit(n int) *Selector {
	s.limit = &n
	return s
}

// Offset sets the OFFSET clause.
func (s *Selector) Offset(n int) *Selector {
	s.offset = &n
	return s
}

// ClearLimitOffset drops the LIMIT and OFFSET clauses.
func (s *Selector) ClearLimitOffset() *Selector {
	s.limit, s.offset = nil, nil
	return s
}

// Clone returns a duplicate of the selector.
func (s *Selector) Clone() *Selector {
	if s == nil {
		return nil
	}
	c := *s
	c.columns = append([]string(nil), s.columns...)
	c.joins = append([]join(nil), s.joins...)
	c.groupBy = append([]string(nil), s.groupBy...)
	c.orderBy = append([]string(nil), s.orderBy...)
	if s.where != nil {
		c.where = s.where.clone()
	}
	return &c
}

func (s *Selector) writeTo(b *Builder) {
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.columns) > 0 {
		b.IdentComma(s.columns...)
	} else {
		b.WriteByte('*')
	}
	if s.from != nil {
		b.WriteString(" FROM ")
		s.from.ref(b)
	}
	for _, j := range s.joins {
		b.WriteByte(' ').WriteString(j.kind).WriteByte(' ')
		j.table.ref(b)
		if j.on != nil {
			b.WriteString(" ON ")
			j.on.writeTo(b)
		}
	}
	if s.where != nil {
		b.WriteString(" WHERE ")
		s.where.writeTo(b)
	}
	if len(s.groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.IdentComma(s.groupBy...)
	}
	if s.having != nil {
		b.WriteString(" HAVING ")
		s.having.writeTo(b)
	}
	if len(s.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.IdentComma(s.orderBy...)
	}
	if s.limit != nil {
		b.WriteString(" LIMIT ").WriteString(strconv.Itoa(*s.limit))
	}
	if s.offset != nil {
		b.WriteString(" OFFSET ").WriteString(strconv.Itoa(*s.offset))
	}
}

// Query returns the SELECT statement and its arguments.
func (s *Selector) Query() (string, []any) {
	b := NewBuilder(s.dialect)
	s.writeTo(b)
	return b.String(), b.args
}

// Predicate is a composable WHERE/HAVING/ON condition.
type Predicate struct {
	fns []func(*Builder)
}

// P returns a new empty predicate.
func P() *Predicate { return &Predicate{} }

func (p *Predicate) append(f func(*Builder)) *Predicate {
	p.fns = append(p.fns, f)
	return p
}

func (p *Predicate) clone() *Predicate {
	fns := make([]func(*Builder), len(p.fns))
	copy(fns, p.fns)
	return &Predicate{fns: fns}
}

func (p *Predicate) writeTo(b *Builder) {
	for _, f := range p.fns {
		f(b)
	}
}

// Query returns the predicate as a standalone fragment. Used for debugging.
func (p *Predicate) Query() (string, []any) {
	b := NewBuilder("")
	p.writeTo(b)
	return b.String(), b.args
}

// And combines the given predicates with AND.
func And(preds ...*Predicate) *Predicate {
	return P().append(func(b *Builder) {
		b.Nested(func(b *Builder) {
			for i, p := range preds {
				if i > 0 {
					b.WriteString(" AND ")
				}
				p.writeTo(b)
			}
		})
	})
}

// Or combines the given predicates with OR.
func Or(preds ...*Predicate) *Predicate {
	return P().append(func(b *Builder) {
		b.Nested(func(b *Builder) {
			for i, p := range preds {
				if i > 0 {
					b.WriteString(" OR ")
				}
				p.writeTo(b)
			}
		})
	})
}

// Not negates the given predicate.
func Not(p *Predicate) *Predicate {
	return P().append(func(b *Builder) {
		b.WriteString("NOT ")
		b.Nested(p.writeTo)
	})
}

func binary(col, op string, v any) *Predicate {
	return P().append(func(b *Builder) {
		b.Ident(col).WriteString(" " + op + " ").Arg(v)
	})
}

// EQ returns a column = value predicate.
func EQ(col string, v any) *Predicate { return binary(col, "=", v) }

// NEQ returns a column <> value predicate.
func NEQ(col string, v any) *Predicate { return binary(col, "<>", v) }

// GT returns a column > value predicate.
func GT(col string, v any) *Predicate { return binary(col, ">", v) }

// GTE returns a column >= value predicate.
func GTE(col string, v any) *Predicate { return binary(col, ">=", v) }

// LT returns a column < value predicate.
func LT(col string, v any) *Predicate { return binary(col, "<", v) }

// LTE returns a column <= value predicate.
func LTE(col string, v any) *Predicate { return binary(col, "<=", v) }

// ColumnsEQ returns a column = column predicate.
func ColumnsEQ(c1, c2 string) *Predicate {
	return P().append(func(b *Builder) {
		b.Ident(c1).WriteString(" = ").Ident(c2)
	})
}

// In returns a column IN (values...) predicate. An empty value set renders
// to FALSE so the query matches nothing instead of producing invalid SQL.
func In(col string, vs ...any) *Predicate {
	return P().append(func(b *Builder) {
		if len(vs) == 0 {
			b.WriteString("FALSE")
			return
		}
		b.Ident(col).WriteString(" IN ")
		b.Nested(func(b *Builder) {
			b.Args(vs...)
		})
	})
}

// NotIn returns a column NOT IN (values...) predicate.
func NotIn(col string, vs ...any) *Predicate {
	return P().append(func(b *Builder) {
		if len(vs) == 0 {
			b.WriteString("TRUE")
			return
		}
		b.Ident(col).WriteString(" NOT IN ")
		b.Nested(func(b *Builder) {
			b.Args(vs...)
		})
	})
}

// InSelect returns a column IN (subquery) predicate.
func InSelect(col string, sub *Selector) *Predicate {
	return P().append(func(b *Builder) {
		b.Ident(col).WriteString(" IN ")
		b.Nested(sub.writeTo)
	})
}

// IsNull returns a column IS NULL predicate.
func IsNull(col string) *Predicate {
	return P().append(func(b *Builder) {
		b.Ident(col).WriteString(" IS NULL")
	})
}

// NotNull returns a column IS NOT NULL predicate.
func NotNull(col string) *Predicate {
	return P().append(func(b *Builder) {
		b.Ident(col).WriteString(" IS NOT NULL")
	})
}

// Like returns a column LIKE pattern predicate.
func Like(col, pattern string) *Predicate { return binary(col, "LIKE", pattern) }

// Contains returns a substring-match predicate.
func Contains(col, sub string) *Predicate { return Like(col, "%"+sub+"%") }

// HasPrefix returns a prefix-match predicate.
func HasPrefix(col, prefix string) *Predicate { return Like(col, prefix+"%") }

// HasSuffix returns a suffix-match predicate.
func HasSuffix(col, suffix string) *Predicate { return Like(col, "%"+suffix) }

// ExprP returns a raw predicate with the given arguments.
func ExprP(expr string, args ...any) *Predicate {
	return P().append(func(b *Builder) {
		b.WriteString(expr)
		b.args = append(b.args, args...)
		b.total += len(args)
	})
}

// As returns an aliased expression. The result is written as-is, so the
// identifier must already be qualified/safe.
func As(ident, alias string) string { return ident + " AS " + alias }

// Count returns a COUNT aggregate over the given column expression.
func Count(col string) string { return "COUNT(" + col + ")" }

// Sum returns a SUM aggregate over the given column expression.
func Sum(col string) string { return "SUM(" + col + ")" }

// Avg returns an AVG aggregate over the given column expression.
func Avg(col string) string { return "AVG(" + col + ")" }

// Min returns a MIN aggregate over the given column expression.
func Min(col string) string { return "MIN(" + col + ")" }

// Max returns a MAX aggregate over the given column expression.
func Max(col string) string { return "MAX(" + col + ")" }

// Asc returns an ascending ORDER BY term.
func Asc(col string) string { return col + " ASC" }

// Desc returns a descending ORDER BY term.
func Desc(col string) string { return col + " DESC" }

// InsertBuilder builds an INSERT statement.
type InsertBuilder struct {
	dialect   string
	table     string
	columns   []string
	values    [][]any
	defaults  bool
	returning []string
}

// Insert returns an InsertBuilder for the given table.
func Insert(table string) *InsertBuilder {
	return &InsertBuilder{table: table}
}

// SetDialect sets the dialect used for quoting and placeholders.
func (i *InsertBuilder) SetDialect(name string) *InsertBuilder {
	i.dialect = name
	return i
}

// Columns sets the insert columns.
func (i *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	i.columns = columns
	return i
}

// Values appends a row of values. May be called repeatedly for bulk inserts.
func (i *InsertBuilder) Values(vs ...any) *InsertBuilder {
	i.values = append(i.values, vs)
	return i
}

// Default builds an INSERT with database defaults for all columns.
func (i *InsertBuilder) Default() *InsertBuilder {
	i.defaults = true
	return i
}

// Returning sets the RETURNING clause. Ignored on MySQL.
func (i *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	i.returning = columns
	return i
}

// Query returns the INSERT statement and its arguments.
func (i *InsertBuilder) Query() (string, []any) {
	b := NewBuilder(i.dialect)
	b.WriteString("INSERT INTO ")
	b.Ident(i.table)
	switch {
	case i.defaults && i.dialect == dialect.MySQL:
		b.WriteString(" () VALUES ()")
	case i.defaults:
		b.WriteString(" DEFAULT VALUES")
	default:
		b.WriteByte(' ')
		b.Nested(func(b *Builder) {
			b.IdentComma(i.columns...)
		})
		b.WriteString(" VALUES ")
		for j, row := range i.values {
			if j > 0 {
				b.WriteString(", ")
			}
			b.Nested(func(b *Builder) {
				b.Args(row...)
			})
		}
	}
	if len(i.returning) > 0 && i.dialect != dialect.MySQL {
		b.WriteString(" RETURNING ")
		b.IdentComma(i.returning...)
	}
	return b.String(), b.args
}

// UpdateBuilder builds an UPDATE statement.
type UpdateBuilder struct {
	dialect string
	table   string
	columns []string
	values  []any
	where   *Predicate
}

// Update returns an UpdateBuilder for the given table.
func Update(table string) *UpdateBuilder {
	return &UpdateBuilder{table: table}
}

// SetDialect sets the dialect used for quoting and placeholders.
func (u *UpdateBuilder) SetDialect(name string) *UpdateBuilder {
	u.dialect = name
	return u
}

// Set adds a column = value assignment.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// Where appends the given predicate, AND-ed with any previous one.
func (u *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	if p == nil {
		return u
	}
	if u.where != nil {
		u.where = And(u.where, p)
	} else {
		u.where = p
	}
	return u
}

// Empty reports whether the builder carries no assignments.
func (u *UpdateBuilder) Empty() bool { return len(u.columns) == 0 }

// Query returns the UPDATE statement and its arguments.
func (u *UpdateBuilder) Query() (string, []any) {
	b := NewBuilder(u.dialect)
	b.WriteString("UPDATE ")
	b.Ident(u.table)
	b.WriteString(" SET ")
	for i, c := range u.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(c).WriteString(" = ").Arg(u.values[i])
	}
	if u.where != nil {
		b.WriteString(" WHERE ")
		u.where.writeTo(b)
	}
	return b.String(), b.args
}

// DeleteBuilder builds a DELETE statement.
type DeleteBuilder struct {
	dialect string
	table   string
	where   *Predicate
}

// Delete returns a DeleteBuilder for the given table.
func Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{table: table}
}

// SetDialect sets the dialect used for quoting and placeholders.
func (d *DeleteBuilder) SetDialect(name string) *DeleteBuilder {
	d.dialect = name
	return d
}

// Where appends the given predicate, AND-ed with any previous one.
func (d *DeleteBuilder) Where(p *Predicate) *DeleteBuilder {
	if p == nil {
		return d
	}
	if d.where != nil {
		d.where = And(d.where, p)
	} else {
		d.where = p
	}
	return d
}

// Query returns the DELETE statement and its arguments.
func (d *DeleteBuilder) Query() (string, []any) {
	b := NewBuilder(d.dialect)
	b.WriteString("DELETE FROM ")
	b.Ident(d.table)
	if d.where != nil {
		b.WriteString(" WHERE ")
		d.where.writeTo(b)
	}
	return b.String(), b.args
}

var (
	_ Querier = (*Selector)(nil)
	_ Querier = (*InsertBuilder)(nil)
	_ Querier = (*UpdateBuilder)(nil)
	_ Querier = (*DeleteBuilder)(nil)
)

func (r *raw) String() string { return fmt.Sprintf("%s %v", r.s, r.args) }
