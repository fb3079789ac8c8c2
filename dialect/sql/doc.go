// Package sql provides the SQL statement builders and the database/sql
// backed driver used by Rivet.
//
// Builders are dialect-aware: quoting and argument placeholders follow the
// dialect the builder was created with.
//
//	users := sql.Table("users").As("u")
//	query, args := sql.Dialect(dialect.Postgres).
//		Select(users.C("id"), users.C("name")).
//		From(users).
//		Where(sql.EQ(users.C("active"), true)).
//		OrderBy(users.C("name")).
//		Limit(10).
//		Query()
//
// Predicates compose with And, Or and Not, and join conditions are expressed
// through Join(...).On(...). The Insert, Update and Delete builders follow
// the same shape and all return the statement string together with its
// ordered arguments.
package sql
