package schema

import "sync"

// Type is the runtime descriptor of a record type: its table, primary key,
// declared attributes and relations.
type Type struct {
	// Name is the type name in CamelCase, e.g. "User".
	Name string
	// Table is the backing table. Defaults to the conventional plural
	// snake form of the name.
	Table string
	// PrimaryKey is the primary key attribute name. Defaults to "id".
	PrimaryKey string

	attrs     map[string]*Attribute
	byColumn  map[string]*Attribute
	attrOrder []string

	relations map[string]*Relation
	relOrder  []string
}

// TypeOption customizes a type at declaration time.
type TypeOption func(*Type)

// WithTable overrides the conventional table name.
func WithTable(name string) TypeOption {
	return func(t *Type) { t.Table = name }
}

// WithPrimaryKey overrides the primary key attribute.
func WithPrimaryKey(attr string) TypeOption {
	return func(t *Type) { t.PrimaryKey = attr }
}

// NewType returns a new type descriptor with conventional defaults.
func NewType(name string, opts ...TypeOption) *Type {
	t := &Type{
		Name:       name,
		Table:      TableName(name),
		PrimaryKey: "id",
		attrs:      make(map[string]*Attribute),
		byColumn:   make(map[string]*Attribute),
		relations:  make(map[string]*Relation),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Attr declares an attribute and returns the type for chaining.
func (t *Type) Attr(name string, cast Cast, opts ...AttrOption) *Type {
	a := &Attribute{Name: name, Column: Column(name), Cast: cast}
	for _, opt := range opts {
		opt(a)
	}
	if _, exists := t.attrs[name]; !exists {
		t.attrOrder = append(t.attrOrder, name)
	}
	t.attrs[name] = a
	t.byColumn[a.Column] = a
	return t
}

// Attribute returns the attribute declared under the given name.
func (t *Type) Attribute(name string) (*Attribute, bool) {
	a, ok := t.attrs[name]
	return a, ok
}

// AttributeByColumn returns the attribute backed by the given column.
func (t *Type) AttributeByColumn(column string) (*Attribute, bool) {
	a, ok := t.byColumn[column]
	return a, ok
}

// Attributes returns the attributes in declaration order.
func (t *Type) Attributes() []*Attribute {
	out := make([]*Attribute, 0, len(t.attrOrder))
	for _, name := range t.attrOrder {
		out = append(out, t.attrs[name])
	}
	return out
}

// Columns returns the column names in declaration order.
func (t *Type) Columns() []string {
	out := make([]string, 0, len(t.attrOrder))
	for _, name := range t.attrOrder {
		out = append(out, t.attrs[name].Column)
	}
	return out
}

// ColumnOf returns the column backing the given attribute, falling back to
// the conventional derivation for undeclared names.
func (t *Type) ColumnOf(attr string) string {
	if a, ok := t.attrs[attr]; ok {
		return a.Column
	}
	return Column(attr)
}

// HasOne declares a to-one relation to the related type.
func (t *Type) HasOne(name, related string, opts ...Option) *Relation {
	return t.addRelation(HasOne, name, related, "", opts)
}

// HasMany declares a to-many relation to the related type.
func (t *Type) HasMany(name, related string, opts ...Option) *Relation {
	return t.addRelation(HasMany, name, related, "", opts)
}

// HasManyThrough declares a to-many relation reaching related across through.
func (t *Type) HasManyThrough(name, related, through string, opts ...Option) *Relation {
	return t.addRelation(HasManyThrough, name, related, through, opts)
}

// ManyToMany declares a pivot-backed relation to the related type.
func (t *Type) ManyToMany(name, related string, opts ...Option) *Relation {
	return t.addRelation(ManyToMany, name, related, "", opts)
}

func (t *Type) addRelation(kind Kind, name, related, through string, opts []Option) *Relation {
	r := &Relation{
		name:        name,
		kind:        kind,
		owner:       t,
		relatedName: related,
		throughName: through,
	}
	for _, opt := range opts {
		opt(r)
	}
	if _, exists := t.relations[name]; !exists {
		t.relOrder = append(t.relOrder, name)
	}
	t.relations[name] = r
	return r
}

// Relation returns the relation declared under the given name.
func (t *Type) Relation(name string) (*Relation, bool) {
	r, ok := t.relations[name]
	return r, ok
}

// Relations returns the relations in declaration order.
func (t *Type) Relations() []*Relation {
	out := make([]*Relation, 0, len(t.relOrder))
	for _, name := range t.relOrder {
		out = append(out, t.relations[name])
	}
	return out
}

// Registry holds the registered types and is the single boot point for
// every relation they declare.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*Type)}
}

// Register adds the given types, replacing earlier registrations of the
// same name. Returns the registry for chaining.
func (r *Registry) Register(types ...*Type) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range types {
		if _, exists := r.types[t.Name]; !exists {
			r.order = append(r.order, t.Name)
		}
		r.types[t.Name] = t
	}
	return r
}

// Type returns the registered type of the given name.
func (r *Registry) Type(name string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return nil, NewUndefinedTypeError(name)
	}
	return t, nil
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Type, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.types[name])
	}
	return out
}

// Boot resolves the keys of every relation of every registered type.
// Booting twice is a no-op.
func (r *Registry) Boot() error {
	for _, t := range r.Types() {
		for _, rel := range t.Relations() {
			if err := rel.Boot(r); err != nil {
				return err
			}
		}
	}
	return nil
}
