package rivet

import (
	"fmt"
	"reflect"

	"github.com/rivetorm/rivet/schema"
	"github.com/vmihailenco/msgpack/v5"
)

// Record is a single row of a registered type: an attribute map plus any
// extra columns a join selected, the loaded relations, and the dirty-diff
// bookkeeping used by Save.
type Record struct {
	typ       *schema.Type
	attrs     map[string]any
	extras    map[string]any
	relations map[string]any
	loaded    map[string]bool
	original  map[string]any
	persisted bool
}

// NewRecord returns a fresh, unpersisted record of the given type.
func NewRecord(t *schema.Type) *Record {
	return &Record{
		typ:       t,
		attrs:     make(map[string]any),
		extras:    make(map[string]any),
		relations: make(map[string]any),
		loaded:    make(map[string]bool),
	}
}

// Type returns the record's type descriptor.
func (r *Record) Type() *schema.Type { return r.typ }

// Get returns the attribute value and whether it is set.
func (r *Record) Get(attr string) (any, bool) {
	v, ok := r.attrs[attr]
	return v, ok
}

// MustGet returns the attribute value, or nil when unset.
func (r *Record) MustGet(attr string) any {
	return r.attrs[attr]
}

// Set assigns an attribute value and returns the record for chaining.
func (r *Record) Set(attr string, v any) *Record {
	r.attrs[attr] = v
	return r
}

// Fill assigns all given attributes.
func (r *Record) Fill(attrs map[string]any) *Record {
	for k, v := range attrs {
		r.attrs[k] = v
	}
	return r
}

// Attributes returns a copy of the attribute map.
func (r *Record) Attributes() map[string]any {
	out := make(map[string]any, len(r.attrs))
	for k, v := range r.attrs {
		out[k] = v
	}
	return out
}

// Extra returns a non-schema column selected alongside the record, such as
// a join alias.
func (r *Record) Extra(column string) (any, bool) {
	v, ok := r.extras[column]
	return v, ok
}

func (r *Record) setExtra(column string, v any) {
	r.extras[column] = v
}

// PrimaryKey returns the primary key value, or an error when unset.
func (r *Record) PrimaryKey() (any, error) {
	v, ok := r.attrs[r.typ.PrimaryKey]
	if !ok || v == nil {
		return nil, NewValueUndefinedError(r.typ.Name, r.typ.PrimaryKey)
	}
	return v, nil
}

// Persisted reports whether the record was loaded from or written to the
// database.
func (r *Record) Persisted() bool { return r.persisted }

// Dirty returns the attributes changed since the last sync with the
// database. Unpersisted records report every attribute.
func (r *Record) Dirty() map[string]any {
	out := make(map[string]any)
	for k, v := range r.attrs {
		if !r.persisted {
			out[k] = v
			continue
		}
		if ov, ok := r.original[k]; !ok || !reflect.DeepEqual(ov, v) {
			out[k] = v
		}
	}
	return out
}

// syncOriginal snapshots the attributes as the persisted state.
func (r *Record) syncOriginal() {
	r.original = make(map[string]any, len(r.attrs))
	for k, v := range r.attrs {
		r.original[k] = v
	}
	r.persisted = true
}

// Related returns the loaded value of a relation: a *Record (possibly nil)
// for to-one relations, a *Collection for to-many. Accessing a relation
// that was not loaded returns a NotLoadedError.
func (r *Record) Related(name string) (any, error) {
	if !r.loaded[name] {
		return nil, NewNotLoadedError(name)
	}
	return r.relations[name], nil
}

// RelatedRecord returns a loaded to-one relation.
func (r *Record) RelatedRecord(name string) (*Record, error) {
	v, err := r.Related(name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	rec, ok := v.(*Record)
	if !ok {
		return nil, fmt.Errorf("rivet: relation %q holds a collection, not a record", name)
	}
	return rec, nil
}

// RelatedCollection returns a loaded to-many relation.
func (r *Record) RelatedCollection(name string) (*Collection, error) {
	v, err := r.Related(name)
	if err != nil {
		return nil, err
	}
	coll, ok := v.(*Collection)
	if !ok {
		return nil, fmt.Errorf("rivet: relation %q holds a record, not a collection", name)
	}
	return coll, nil
}

// setRelated assigns a relation slot and marks it loaded.
func (r *Record) setRelated(name string, v any) {
	r.relations[name] = v
	r.loaded[name] = true
}

// recordPayload is the wire form of a record for the binary codec.
type recordPayload struct {
	Type      string         `msgpack:"type"`
	Attrs     map[string]any `msgpack:"attrs"`
	Extras    map[string]any `msgpack:"extras,omitempty"`
	Persisted bool           `msgpack:"persisted"`
}

// MarshalBinary encodes the record's attributes and extras. Loaded
// relations are not carried.
func (r *Record) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal(recordPayload{
		Type:      r.typ.Name,
		Attrs:     r.attrs,
		Extras:    r.extras,
		Persisted: r.persisted,
	})
}

// UnmarshalBinary decodes attributes and extras into the record. The
// record's type must already be set and match the encoded payload.
func (r *Record) UnmarshalBinary(data []byte) error {
	var p recordPayload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Type != r.typ.Name {
		return fmt.Errorf("rivet: cannot decode %q payload into %q record", p.Type, r.typ.Name)
	}
	if err := r.applyPayload(p); err != nil {
		return err
	}
	return nil
}

// applyPayload installs decoded attributes, re-casting values so decoded
// records compare equal to freshly scanned ones.
func (r *Record) applyPayload(p recordPayload) error {
	for k, v := range p.Attrs {
		if a, ok := r.typ.Attribute(k); ok {
			cv, err := schema.CastValue(a.Cast, normalizeDecoded(v))
			if err != nil {
				return err
			}
			r.attrs[k] = cv
		} else {
			r.attrs[k] = normalizeDecoded(v)
		}
	}
	for k, v := range p.Extras {
		r.extras[k] = normalizeDecoded(v)
	}
	if p.Persisted {
		r.syncOriginal()
	}
	return nil
}

// normalizeDecoded widens msgpack's compact integer types back to the
// driver-level representations the casts accept.
func normalizeDecoded(v any) any {
	switch v := v.(type) {
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int:
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

// Collection is an ordered set of records preserving SQL row order.
type Collection struct {
	records []*Record
}

// NewCollection returns a collection of the given records.
func NewCollection(records ...*Record) *Collection {
	return &Collection{records: records}
}

// Len returns the number of records.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// At returns the record at index i, or nil when out of range.
func (c *Collection) At(i int) *Record {
	if c == nil || i < 0 || i >= len(c.records) {
		return nil
	}
	return c.records[i]
}

// First returns the first record, or nil when empty.
func (c *Collection) First() *Record { return c.At(0) }

// Records returns the backing slice.
func (c *Collection) Records() []*Record {
	if c == nil {
		return nil
	}
	return c.records
}

// Pluck returns the values of the given attribute in order. Unset
// attributes contribute nil.
func (c *Collection) Pluck(attr string) []any {
	out := make([]any, 0, c.Len())
	for _, r := range c.Records() {
		out = append(out, r.attrs[attr])
	}
	return out
}

// Each calls fn for every record in order.
func (c *Collection) Each(fn func(*Record)) {
	for _, r := range c.Records() {
		fn(r)
	}
}

func (c *Collection) append(r *Record) {
	c.records = append(c.records, r)
}
