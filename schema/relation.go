package schema

import (
	"sync"

	"github.com/rivetorm/rivet/dialect/sql"
)

// Kind enumerates the supported relationship shapes.
type Kind uint8

const (
	// HasOne relates the owner to at most one record on the related type.
	HasOne Kind = iota + 1
	// HasMany relates the owner to an ordered set of related records.
	HasMany
	// HasManyThrough reaches the related type across an intermediate type.
	HasManyThrough
	// ManyToMany relates two types across a pivot table.
	ManyToMany
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case HasOne:
		return "has_one"
	case HasMany:
		return "has_many"
	case HasManyThrough:
		return "has_many_through"
	case ManyToMany:
		return "many_to_many"
	default:
		return "unknown"
	}
}

// IsToMany reports whether the kind loads into a collection.
func (k Kind) IsToMany() bool { return k != HasOne }

// Keys holds the resolved attribute/column pairs of a booted relation.
type Keys struct {
	// Local is the key on the owner type.
	Local Key
	// Foreign is the key on the related type. For HasManyThrough it
	// references the through type instead of the owner.
	Foreign Key
	// ThroughLocal is the through type's key joined against Foreign.
	// HasManyThrough only.
	ThroughLocal Key
	// ThroughForeign is the key on the through type referencing the owner.
	// HasManyThrough only.
	ThroughForeign Key
	// Pivot naming. ManyToMany only.
	PivotTable   string
	PivotOwner   string
	PivotRelated string
}

// Relation is a relationship descriptor registered on a Type. Descriptors
// follow a two-phase lifecycle: declaration records names and overrides,
// Boot resolves and validates the keys exactly once.
type Relation struct {
	name        string
	kind        Kind
	owner       *Type
	relatedName string
	throughName string

	localKey        string
	foreignKey      string
	throughLocalKey string
	throughForeign  string
	pivotTable      string
	pivotOwnerCol   string
	pivotRelatedCol string
	onQuery         func(*sql.Selector)

	mu      sync.Mutex
	booted  bool
	keys    Keys
	related *Type
	through *Type
}

// Option customizes a relation at declaration time.
type Option func(*Relation)

// LocalKey overrides the owner-side key attribute.
func LocalKey(attr string) Option {
	return func(r *Relation) { r.localKey = attr }
}

// ForeignKey overrides the related-side key attribute.
func ForeignKey(attr string) Option {
	return func(r *Relation) { r.foreignKey = attr }
}

// ThroughLocalKey overrides the through type's key attribute joined against
// the related type.
func ThroughLocalKey(attr string) Option {
	return func(r *Relation) { r.throughLocalKey = attr }
}

// ThroughForeignKey overrides the through type's key attribute referencing
// the owner.
func ThroughForeignKey(attr string) Option {
	return func(r *Relation) { r.throughForeign = attr }
}

// PivotTable overrides the conventional pivot table name.
func PivotTable(name string) Option {
	return func(r *Relation) { r.pivotTable = name }
}

// PivotColumns overrides the conventional pivot column names.
func PivotColumns(owner, related string) Option {
	return func(r *Relation) {
		r.pivotOwnerCol = owner
		r.pivotRelatedCol = related
	}
}

// OnQuery registers a base constraint applied to every query the relation
// builds, before any caller constraints.
func OnQuery(fn func(*sql.Selector)) Option {
	return func(r *Relation) { r.onQuery = fn }
}

// Name returns the relation name.
func (r *Relation) Name() string { return r.name }

// Kind returns the relation kind.
func (r *Relation) Kind() Kind { return r.kind }

// Owner returns the declaring type.
func (r *Relation) Owner() *Type { return r.owner }

// Related returns the related type. Nil before Boot.
func (r *Relation) Related() *Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.related
}

// Through returns the through type of a HasManyThrough. Nil before Boot.
func (r *Relation) Through() *Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.through
}

// OnQueryFunc returns the registered base constraint, or nil.
func (r *Relation) OnQueryFunc() func(*sql.Selector) { return r.onQuery }

// Booted reports whether the relation keys were resolved.
func (r *Relation) Booted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.booted
}

// Keys returns the resolved keys. Reading keys before Boot returns a
// NotBootedError.
func (r *Relation) Keys() (Keys, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.booted {
		return Keys{}, NewNotBootedError(r.name)
	}
	return r.keys, nil
}

// Boot resolves and validates the relation keys against the registry.
// Calling Boot on a booted relation is a no-op.
func (r *Relation) Boot(reg *Registry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.booted {
		return nil
	}
	related, err := reg.Type(r.relatedName)
	if err != nil {
		return err
	}
	var keys Keys
	switch r.kind {
	case HasOne, HasMany:
		if keys.Local, err = resolveKey(r.name, r.owner, defaultAttr(r.localKey, r.owner.PrimaryKey)); err != nil {
			return err
		}
		if keys.Foreign, err = resolveKey(r.name, related, defaultAttr(r.foreignKey, ForeignKeyAttr(r.owner.Name))); err != nil {
			return err
		}
	case HasManyThrough:
		through, err := reg.Type(r.throughName)
		if err != nil {
			return err
		}
		if keys.Local, err = resolveKey(r.name, r.owner, defaultAttr(r.localKey, r.owner.PrimaryKey)); err != nil {
			return err
		}
		if keys.ThroughForeign, err = resolveKey(r.name, through, defaultAttr(r.throughForeign, ForeignKeyAttr(r.owner.Name))); err != nil {
			return err
		}
		if keys.ThroughLocal, err = resolveKey(r.name, through, defaultAttr(r.throughLocalKey, through.PrimaryKey)); err != nil {
			return err
		}
		if keys.Foreign, err = resolveKey(r.name, related, defaultAttr(r.foreignKey, ForeignKeyAttr(through.Name))); err != nil {
			return err
		}
		r.through = through
	case ManyToMany:
		if keys.Local, err = resolveKey(r.name, r.owner, defaultAttr(r.localKey, r.owner.PrimaryKey)); err != nil {
			return err
		}
		if keys.Foreign, err = resolveKey(r.name, related, defaultAttr(r.foreignKey, related.PrimaryKey)); err != nil {
			return err
		}
		keys.PivotTable = defaultAttr(r.pivotTable, PivotTableName(r.owner.Name, related.Name))
		keys.PivotOwner = defaultAttr(r.pivotOwnerCol, PivotColumn(r.owner.Name))
		keys.PivotRelated = defaultAttr(r.pivotRelatedCol, PivotColumn(related.Name))
	}
	r.related = related
	r.keys = keys
	r.booted = true
	return nil
}

func defaultAttr(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
