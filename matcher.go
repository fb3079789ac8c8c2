package rivet

import (
	"github.com/rivetorm/rivet/schema"
)

// The matcher is pure: it distributes an already-fetched child set onto the
// parent records in memory, without touching the database.

// matchRelation initializes the relation slot on every parent, then assigns
// children grouped by the relation's grouping key. Parents with no matching
// children keep a loaded-but-empty slot: nil for to-one, an empty collection
// for to-many.
func matchRelation(rel *schema.Relation, parents []*Record, children *Collection) error {
	keys, err := rel.Keys()
	if err != nil {
		return err
	}
	name := rel.Name()
	for _, p := range parents {
		if rel.Kind().IsToMany() {
			p.setRelated(name, NewCollection())
		} else {
			p.setRelated(name, nil)
		}
	}
	switch rel.Kind() {
	case schema.HasOne:
		byKey := make(map[any]*Record, children.Len())
		for _, child := range children.Records() {
			k, ok := groupByAttr(child, keys.Foreign.Attr)
			if !ok {
				continue
			}
			// Last write wins on duplicate keys.
			byKey[k] = child
		}
		for _, p := range parents {
			k, ok := groupByAttr(p, keys.Local.Attr)
			if !ok {
				continue
			}
			if child, ok := byKey[k]; ok {
				p.setRelated(name, child)
			}
		}
	case schema.HasMany, schema.HasManyThrough, schema.ManyToMany:
		groupKey := func(child *Record) (any, bool) {
			return groupByAttr(child, keys.Foreign.Attr)
		}
		switch rel.Kind() {
		case schema.HasManyThrough:
			column := throughAlias(keys.ThroughForeign.Column)
			groupKey = func(child *Record) (any, bool) {
				return groupByExtra(child, column)
			}
		case schema.ManyToMany:
			column := pivotAlias(keys.PivotOwner)
			groupKey = func(child *Record) (any, bool) {
				return groupByExtra(child, column)
			}
		}
		byKey := make(map[any]*Collection)
		for _, child := range children.Records() {
			k, ok := groupKey(child)
			if !ok {
				continue
			}
			coll, ok := byKey[k]
			if !ok {
				coll = NewCollection()
				byKey[k] = coll
			}
			// Input order is preserved within each group.
			coll.append(child)
		}
		for _, p := range parents {
			k, ok := groupByAttr(p, keys.Local.Attr)
			if !ok {
				continue
			}
			if coll, ok := byKey[k]; ok {
				p.setRelated(name, coll)
			}
		}
	}
	return nil
}

// throughAlias names the extra column carrying the through table's owner
// key on a HasManyThrough row.
func throughAlias(column string) string { return "through_" + column }

// pivotAlias names the extra column carrying the pivot table's owner key on
// a ManyToMany row.
func pivotAlias(column string) string { return "pivot_" + column }

func groupByAttr(r *Record, attr string) (any, bool) {
	v, ok := r.Get(attr)
	if !ok || v == nil {
		return nil, false
	}
	return normalizeKey(v), true
}

func groupByExtra(r *Record, column string) (any, bool) {
	v, ok := r.Extra(column)
	if !ok || v == nil {
		return nil, false
	}
	return normalizeKey(v), true
}

// normalizeKey widens numeric variants and flattens byte slices so values
// from different scan paths group under the same map key.
func normalizeKey(v any) any {
	switch v := v.(type) {
	case []byte:
		return string(v)
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)
	default:
		return v
	}
}
