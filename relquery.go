package rivet

import (
	"context"
	"fmt"
	"sort"

	"github.com/rivetorm/rivet/dialect/sql"
	"github.com/rivetorm/rivet/schema"
)

// RelationQuery is a Query over a relation's related type, pre-constrained
// to one or more parent records. It carries the full query vocabulary plus
// the relation mutations (Create, Save, Attach, Detach, Sync, ...).
type RelationQuery struct {
	*Query
	rel     *schema.Relation
	parents []*Record
	// eager marks a batch built by the eager loader: HasOne keeps all rows
	// and pagination is rejected.
	eager bool
	// constrained guards parent-constraint application: exactly once per
	// builder even when ToSQL and execution both run.
	constrained bool
	// callerWhere snapshots the selector's WHERE before the parent
	// constraint is rendered into it. Mutations scope with this snapshot:
	// the rendered form may reference joined tables that do not exist in
	// an UPDATE or DELETE statement.
	callerWhere *sql.Predicate
}

func newRelationQuery(c *Client, rel *schema.Relation, parents []*Record, eager bool) *RelationQuery {
	if err := rel.Boot(c.registry); err != nil {
		q := &Query{client: c, preloads: make(map[string]*preloadNode)}
		q.err = err
		return &RelationQuery{Query: q, rel: rel, parents: parents, eager: eager}
	}
	q := newQuery(c, rel.Related())
	rq := &RelationQuery{Query: q, rel: rel, parents: parents, eager: eager}
	if fn := rel.OnQueryFunc(); fn != nil {
		fn(q.sel)
	}
	q.before = append(q.before, rq.applyConstraints)
	return rq
}

// Relation returns the descriptor the query was built from.
func (rq *RelationQuery) Relation() *schema.Relation { return rq.rel }

// applyConstraints scopes the selector to the parent set. Runs at most once.
func (rq *RelationQuery) applyConstraints(mode queryMode) error {
	if rq.constrained {
		return nil
	}
	rq.constrained = true
	rq.callerWhere = rq.sel.P()
	keys, err := rq.rel.Keys()
	if err != nil {
		return err
	}
	vals, err := rq.parentValues(keys.Local.Attr)
	if err != nil {
		return err
	}
	switch rq.rel.Kind() {
	case schema.HasOne, schema.HasMany:
		rq.sel.Where(keyPredicate(rq.table.C(keys.Foreign.Column), vals))
		if rq.rel.Kind() == schema.HasOne && !rq.eager && mode == modeSelect {
			rq.sel.Limit(1)
		}
	case schema.HasManyThrough:
		through := sql.Table(rq.rel.Through().Table)
		rq.sel.AppendSelect(sql.As(through.C(keys.ThroughForeign.Column), throughAlias(keys.ThroughForeign.Column)))
		rq.sel.Join(through).On(through.C(keys.ThroughLocal.Column), rq.table.C(keys.Foreign.Column))
		rq.sel.Where(keyPredicate(through.C(keys.ThroughForeign.Column), vals))
	case schema.ManyToMany:
		pivot := sql.Table(keys.PivotTable)
		rq.sel.AppendSelect(sql.As(pivot.C(keys.PivotOwner), pivotAlias(keys.PivotOwner)))
		rq.sel.Join(pivot).On(pivot.C(keys.PivotRelated), rq.table.C(keys.Foreign.Column))
		rq.sel.Where(keyPredicate(pivot.C(keys.PivotOwner), vals))
	}
	return nil
}

// parentValues collects the distinct local key values in parent order.
// A parent without a value fails fast instead of matching NULL.
func (rq *RelationQuery) parentValues(attr string) ([]any, error) {
	seen := make(map[any]struct{}, len(rq.parents))
	vals := make([]any, 0, len(rq.parents))
	for _, p := range rq.parents {
		v, ok := p.Get(attr)
		if !ok || v == nil {
			return nil, NewValueUndefinedError(rq.rel.Owner().Name, attr)
		}
		k := normalizeKey(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		vals = append(vals, v)
	}
	return vals, nil
}

func (rq *RelationQuery) soleParent(op string) (any, error) {
	if len(rq.parents) != 1 {
		return nil, fmt.Errorf("rivet: %s on relation %q requires a single parent", op, rq.rel.Name())
	}
	keys, err := rq.rel.Keys()
	if err != nil {
		return nil, err
	}
	v, ok := rq.parents[0].Get(keys.Local.Attr)
	if !ok || v == nil {
		return nil, NewValueUndefinedError(rq.rel.Owner().Name, keys.Local.Attr)
	}
	return v, nil
}

// callerPredicate returns the WHERE constraints chained onto the relation
// query so Update and Delete honor them alongside the parent scope.
func (rq *RelationQuery) callerPredicate() *sql.Predicate {
	if rq.constrained {
		return rq.callerWhere
	}
	return rq.sel.P()
}

// keyPredicate is an equality for one value and an IN for several.
func keyPredicate(col string, vals []any) *sql.Predicate {
	if len(vals) == 1 {
		return sql.EQ(col, vals[0])
	}
	return sql.In(col, vals...)
}

// Paginate pages the relation like Query.Paginate, but is rejected inside
// an eager load where one query serves many parents.
func (rq *RelationQuery) Paginate(ctx context.Context, page, perPage int) (*Page, error) {
	if rq.eager {
		err := NewPaginationNotAllowedError(rq.rel.Name())
		rq.fail(err)
		return nil, err
	}
	return rq.Query.Paginate(ctx, page, perPage)
}

// Update applies the given attribute values to every related row of the
// parents and returns the number of affected rows. HasOne does not limit
// mutations to a single row.
func (rq *RelationQuery) Update(ctx context.Context, attrs map[string]any) (int64, error) {
	if rq.err != nil {
		return 0, rq.err
	}
	keys, err := rq.rel.Keys()
	if err != nil {
		return 0, err
	}
	vals, err := rq.parentValues(keys.Local.Attr)
	if err != nil {
		return 0, err
	}
	related := rq.rel.Related()
	ub := sql.Dialect(rq.client.dialect).Update(related.Table)
	for _, attr := range sortedKeys(attrs) {
		ub.Set(related.ColumnOf(attr), attrs[attr])
	}
	if p := rq.callerPredicate(); p != nil {
		ub.Where(p)
	}
	ub.Where(rq.mutationScope(keys, vals))
	query, args := ub.Query()
	return rq.client.exec(ctx, query, args)
}

// Delete removes every related row of the parents and returns the number
// of affected rows.
func (rq *RelationQuery) Delete(ctx context.Context) (int64, error) {
	if rq.err != nil {
		return 0, rq.err
	}
	keys, err := rq.rel.Keys()
	if err != nil {
		return 0, err
	}
	vals, err := rq.parentValues(keys.Local.Attr)
	if err != nil {
		return 0, err
	}
	db := sql.Dialect(rq.client.dialect).Delete(rq.rel.Related().Table)
	if p := rq.callerPredicate(); p != nil {
		db.Where(p)
	}
	db.Where(rq.mutationScope(keys, vals))
	query, args := db.Query()
	return rq.client.exec(ctx, query, args)
}

// mutationScope scopes an UPDATE/DELETE on the related table to the parent
// set. Through and pivot relations narrow with an IN subquery since the
// mutated table carries no direct owner key.
func (rq *RelationQuery) mutationScope(keys schema.Keys, vals []any) *sql.Predicate {
	switch rq.rel.Kind() {
	case schema.HasManyThrough:
		through := rq.rel.Through()
		sub := sql.Select(keys.ThroughLocal.Column).
			From(sql.Table(through.Table)).
			Where(keyPredicate(keys.ThroughForeign.Column, vals))
		return sql.InSelect(keys.Foreign.Column, sub)
	case schema.ManyToMany:
		sub := sql.Select(keys.PivotRelated).
			From(sql.Table(keys.PivotTable)).
			Where(keyPredicate(keys.PivotOwner, vals))
		return sql.InSelect(keys.Foreign.Column, sub)
	default:
		return keyPredicate(keys.Foreign.Column, vals)
	}
}

// Create inserts a related record bound to the parent. Through relations
// cannot create: the intermediate row is not derivable.
func (rq *RelationQuery) Create(ctx context.Context, attrs map[string]any) (*Record, error) {
	if rq.err != nil {
		return nil, rq.err
	}
	switch rq.rel.Kind() {
	case schema.HasManyThrough:
		return nil, NewUnsupportedOperationError(rq.rel.Name(), "create")
	case schema.ManyToMany:
		rec := NewRecord(rq.rel.Related()).Fill(attrs)
		if err := rq.client.insert(ctx, rec); err != nil {
			return nil, err
		}
		pk, err := rec.PrimaryKey()
		if err != nil {
			return nil, err
		}
		if err := rq.Attach(ctx, pk); err != nil {
			return nil, err
		}
		return rec, nil
	default:
		keys, err := rq.rel.Keys()
		if err != nil {
			return nil, err
		}
		parent, err := rq.soleParent("create")
		if err != nil {
			return nil, err
		}
		rec := NewRecord(rq.rel.Related()).Fill(attrs).Set(keys.Foreign.Attr, parent)
		if err := rq.client.insert(ctx, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}
}

// Save persists an existing record as related to the parent.
func (rq *RelationQuery) Save(ctx context.Context, rec *Record) error {
	if rq.err != nil {
		return rq.err
	}
	switch rq.rel.Kind() {
	case schema.HasManyThrough:
		return NewUnsupportedOperationError(rq.rel.Name(), "save")
	case schema.ManyToMany:
		wasNew := !rec.Persisted()
		if err := rq.client.Save(ctx, rec); err != nil {
			return err
		}
		if wasNew {
			pk, err := rec.PrimaryKey()
			if err != nil {
				return err
			}
			return rq.Attach(ctx, pk)
		}
		return nil
	default:
		keys, err := rq.rel.Keys()
		if err != nil {
			return err
		}
		parent, err := rq.soleParent("save")
		if err != nil {
			return err
		}
		rec.Set(keys.Foreign.Attr, parent)
		return rq.client.Save(ctx, rec)
	}
}

// Associate binds the child to the parent by setting its foreign key and
// persisting it. HasOne and HasMany only.
func (rq *RelationQuery) Associate(ctx context.Context, child *Record) error {
	if rq.err != nil {
		return rq.err
	}
	if k := rq.rel.Kind(); k != schema.HasOne && k != schema.HasMany {
		return NewUnsupportedOperationError(rq.rel.Name(), "associate")
	}
	return rq.Save(ctx, child)
}

// Dissociate clears the child's foreign key and persists it.
func (rq *RelationQuery) Dissociate(ctx context.Context, child *Record) error {
	if rq.err != nil {
		return rq.err
	}
	if k := rq.rel.Kind(); k != schema.HasOne && k != schema.HasMany {
		return NewUnsupportedOperationError(rq.rel.Name(), "dissociate")
	}
	keys, err := rq.rel.Keys()
	if err != nil {
		return err
	}
	child.Set(keys.Foreign.Attr, nil)
	return rq.client.Save(ctx, child)
}

// Attach inserts pivot rows binding the parent to the given related keys.
// ManyToMany only.
func (rq *RelationQuery) Attach(ctx context.Context, relatedKeys ...any) error {
	if rq.err != nil {
		return rq.err
	}
	if rq.rel.Kind() != schema.ManyToMany {
		return NewUnsupportedOperationError(rq.rel.Name(), "attach")
	}
	if len(relatedKeys) == 0 {
		return nil
	}
	keys, err := rq.rel.Keys()
	if err != nil {
		return err
	}
	parent, err := rq.soleParent("attach")
	if err != nil {
		return err
	}
	ib := sql.Dialect(rq.client.dialect).
		Insert(keys.PivotTable).
		Columns(keys.PivotOwner, keys.PivotRelated)
	for _, rk := range relatedKeys {
		ib.Values(parent, rk)
	}
	query, args := ib.Query()
	_, err = rq.client.exec(ctx, query, args)
	return err
}

// Detach deletes pivot rows binding the parent to the given related keys,
// or all of the parent's pivot rows when none are given. ManyToMany only.
func (rq *RelationQuery) Detach(ctx context.Context, relatedKeys ...any) error {
	if rq.err != nil {
		return rq.err
	}
	if rq.rel.Kind() != schema.ManyToMany {
		return NewUnsupportedOperationError(rq.rel.Name(), "detach")
	}
	keys, err := rq.rel.Keys()
	if err != nil {
		return err
	}
	parent, err := rq.soleParent("detach")
	if err != nil {
		return err
	}
	db := sql.Dialect(rq.client.dialect).
		Delete(keys.PivotTable).
		Where(sql.EQ(keys.PivotOwner, parent))
	if len(relatedKeys) > 0 {
		db.Where(sql.In(keys.PivotRelated, relatedKeys...))
	}
	query, args := db.Query()
	_, err = rq.client.exec(ctx, query, args)
	return err
}

// Sync diffs the parent's current pivot rows against the given related keys
// and issues the minimal attach/detach pair. Returns the attached and
// detached keys.
func (rq *RelationQuery) Sync(ctx context.Context, relatedKeys ...any) (attached, detached []any, err error) {
	if rq.err != nil {
		return nil, nil, rq.err
	}
	if rq.rel.Kind() != schema.ManyToMany {
		return nil, nil, NewUnsupportedOperationError(rq.rel.Name(), "sync")
	}
	keys, err := rq.rel.Keys()
	if err != nil {
		return nil, nil, err
	}
	parent, err := rq.soleParent("sync")
	if err != nil {
		return nil, nil, err
	}
	sel := sql.Dialect(rq.client.dialect).
		Select(keys.PivotRelated).
		From(sql.Table(keys.PivotTable)).
		Where(sql.EQ(keys.PivotOwner, parent))
	query, args := sel.Query()
	var rows sql.Rows
	if err := rq.client.conn.Query(ctx, query, args, &rows); err != nil {
		return nil, nil, err
	}
	current := make([]any, 0)
	currentSet := make(map[any]struct{})
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return nil, nil, err
		}
		k := normalizeKey(v)
		current = append(current, k)
		currentSet[k] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, nil, err
	}
	rows.Close()

	wantSet := make(map[any]struct{}, len(relatedKeys))
	for _, rk := range relatedKeys {
		k := normalizeKey(rk)
		if _, dup := wantSet[k]; dup {
			continue
		}
		wantSet[k] = struct{}{}
		if _, ok := currentSet[k]; !ok {
			attached = append(attached, rk)
		}
	}
	for _, c := range current {
		if _, ok := wantSet[c]; !ok {
			detached = append(detached, c)
		}
	}
	if len(attached) > 0 {
		if err := rq.Attach(ctx, attached...); err != nil {
			return nil, nil, err
		}
	}
	if len(detached) > 0 {
		if err := rq.Detach(ctx, detached...); err != nil {
			return nil, nil, err
		}
	}
	return attached, detached, nil
}

func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
