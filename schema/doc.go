// Package schema holds the runtime descriptors of record types: attributes
// with scan-time casts, relationship declarations, and the naming
// conventions that resolve keys and tables.
//
// Types are declared explicitly and collected in a Registry:
//
//	user := schema.NewType("User").
//		Attr("id", schema.Int).
//		Attr("name", schema.String).
//		Attr("countryId", schema.Int)
//	user.HasMany("posts", "Post")
//
//	reg := schema.NewRegistry().Register(user, post)
//	if err := reg.Boot(); err != nil {
//		log.Fatal(err)
//	}
//
// Relations follow a two-phase lifecycle. Declaration records the related
// type name and any key overrides; Boot resolves the keys against the
// registry, validates every referenced attribute, and caches the result.
// Booting is idempotent, and reading keys before boot fails with a
// NotBootedError.
package schema
