package schema

import (
	"sort"

	"github.com/go-openapi/inflect"
)

// Naming conventions. All derivations are deterministic so key resolution
// yields the same result on every boot.

// Column derives the conventional column name of an attribute:
// "countryId" -> "country_id".
func Column(attr string) string {
	return inflect.Underscore(attr)
}

// TableName derives the conventional table of a type name:
// "User" -> "users", "Country" -> "countries".
func TableName(typeName string) string {
	return inflect.Pluralize(inflect.Underscore(typeName))
}

// ForeignKeyAttr derives the conventional foreign key attribute referencing
// the given type: "User" -> "userId".
func ForeignKeyAttr(typeName string) string {
	return inflect.CamelizeDownFirst(typeName) + "Id"
}

// PivotTableName derives the conventional pivot table joining two types: the
// singular snake forms sorted and joined, e.g. ("Post", "User") -> "post_user".
func PivotTableName(a, b string) string {
	names := []string{
		inflect.Singularize(inflect.Underscore(a)),
		inflect.Singularize(inflect.Underscore(b)),
	}
	sort.Strings(names)
	return names[0] + "_" + names[1]
}

// PivotColumn derives the conventional pivot column referencing the given
// type: "User" -> "user_id".
func PivotColumn(typeName string) string {
	return inflect.Singularize(inflect.Underscore(typeName)) + "_id"
}

// Key pairs an attribute name with the column backing it.
type Key struct {
	Attr   string
	Column string
}

// resolveKey validates that the type declares the attribute and returns the
// attribute/column pair.
func resolveKey(relation string, t *Type, attr string) (Key, error) {
	a, ok := t.Attribute(attr)
	if !ok {
		return Key{}, NewMissingAttributeError(relation, t.Name, attr)
	}
	return Key{Attr: a.Name, Column: a.Column}, nil
}
