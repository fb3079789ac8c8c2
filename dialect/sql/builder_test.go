package sql

import (
	"testing"

	"github.com/rivetorm/rivet/dialect"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		input     Querier
		wantQuery string
		wantArgs  []any
	}{
		{
			name: "select all",
			input: Dialect(dialect.Postgres).
				Select().
				From(Table("users")),
			wantQuery: `SELECT * FROM "users"`,
		},
		{
			name: "select columns with where",
			input: Dialect(dialect.Postgres).
				Select("id", "name").
				From(Table("users")).
				Where(EQ("name", "alice")),
			wantQuery: `SELECT "id", "name" FROM "users" WHERE "name" = $1`,
			wantArgs:  []any{"alice"},
		},
		{
			name: "mysql placeholders and quoting",
			input: Dialect(dialect.MySQL).
				Select("id").
				From(Table("users")).
				Where(EQ("name", "alice")),
			wantQuery: "SELECT `id` FROM `users` WHERE `name` = ?",
			wantArgs:  []any{"alice"},
		},
		{
			name: "and or composition",
			input: Dialect(dialect.Postgres).
				Select("id").
				From(Table("users")).
				Where(And(EQ("active", true), Or(GT("age", 18), LT("age", 10)))),
			wantQuery: `SELECT "id" FROM "users" WHERE ("active" = $1 AND ("age" > $2 OR "age" < $3))`,
			wantArgs:  []any{true, 18, 10},
		},
		{
			name: "not",
			input: Dialect(dialect.Postgres).
				Select("id").
				From(Table("users")).
				Where(Not(EQ("name", "bob"))),
			wantQuery: `SELECT "id" FROM "users" WHERE NOT ("name" = $1)`,
			wantArgs:  []any{"bob"},
		},
		{
			name: "in values",
			input: Dialect(dialect.Postgres).
				Select("id").
				From(Table("users")).
				Where(In("id", 1, 2, 3)),
			wantQuery: `SELECT "id" FROM "users" WHERE "id" IN ($1, $2, $3)`,
			wantArgs:  []any{1, 2, 3},
		},
		{
			name: "in with no values matches nothing",
			input: Dialect(dialect.Postgres).
				Select("id").
				From(Table("users")).
				Where(In("id")),
			wantQuery: `SELECT "id" FROM "users" WHERE FALSE`,
		},
		{
			name: "null predicates",
			input: Dialect(dialect.Postgres).
				Select("id").
				From(Table("users")).
				Where(And(IsNull("deleted_at"), NotNull("email"))),
			wantQuery: `SELECT "id" FROM "users" WHERE ("deleted_at" IS NULL AND "email" IS NOT NULL)`,
		},
		{
			name: "string match predicates",
			input: Dialect(dialect.Postgres).
				Select("id").
				From(Table("users")).
				Where(And(Contains("name", "li"), HasPrefix("email", "a"), HasSuffix("email", ".io"))),
			wantQuery: `SELECT "id" FROM "users" WHERE ("name" LIKE $1 AND "email" LIKE $2 AND "email" LIKE $3)`,
			wantArgs:  []any{"%li%", "a%", "%.io"},
		},
		{
			name: "join with alias",
			input: func() Querier {
				users := Table("users").As("u")
				posts := Table("posts")
				return Dialect(dialect.Postgres).
					Select(users.C("id"), users.C("name")).
					From(users).
					Join(posts).
					On(users.C("id"), posts.C("user_id"))
			}(),
			wantQuery: `SELECT "u"."id", "u"."name" FROM "users" AS "u" JOIN "posts" ON "u"."id" = "posts"."user_id"`,
		},
		{
			name: "join through parent with aliased extra column",
			input: func() Querier {
				posts := Table("posts")
				users := Table("users")
				return Dialect(dialect.Postgres).
					Select("posts.*", As(users.C("country_id"), "through_country_id")).
					From(posts).
					Join(users).
					On(users.C("id"), posts.C("user_id")).
					Where(EQ(users.C("country_id"), 1))
			}(),
			wantQuery: `SELECT posts.*, users.country_id AS through_country_id FROM "posts" JOIN "users" ON "users"."id" = "posts"."user_id" WHERE "users"."country_id" = $1`,
			wantArgs:  []any{1},
		},
		{
			name: "order limit offset",
			input: Dialect(dialect.Postgres).
				Select("id").
				From(Table("users")).
				OrderBy("name", Desc("created_at")).
				Limit(10).
				Offset(20),
			wantQuery: `SELECT "id" FROM "users" ORDER BY "name", created_at DESC LIMIT 10 OFFSET 20`,
		},
		{
			name: "group by having",
			input: Dialect(dialect.Postgres).
				Select("role", Count("*")).
				From(Table("users")).
				GroupBy("role").
				Having(GT(Count("*"), 5)),
			wantQuery: `SELECT "role", COUNT(*) FROM "users" GROUP BY "role" HAVING COUNT(*) > $1`,
			wantArgs:  []any{5},
		},
		{
			name: "distinct",
			input: Dialect(dialect.Postgres).
				Select("country_id").
				Distinct().
				From(Table("users")),
			wantQuery: `SELECT DISTINCT "country_id" FROM "users"`,
		},
		{
			name: "subquery in",
			input: Dialect(dialect.Postgres).
				Delete("posts").
				Where(InSelect("user_id", Select("id").
					From(Table("users")).
					Where(EQ("country_id", 5)))),
			wantQuery: `DELETE FROM "posts" WHERE "user_id" IN (SELECT "id" FROM "users" WHERE "country_id" = $1)`,
			wantArgs:  []any{5},
		},
		{
			name: "insert",
			input: Dialect(dialect.Postgres).
				Insert("users").
				Columns("name", "age").
				Values("alice", 30).
				Returning("id"),
			wantQuery: `INSERT INTO "users" ("name", "age") VALUES ($1, $2) RETURNING "id"`,
			wantArgs:  []any{"alice", 30},
		},
		{
			name: "insert multiple rows",
			input: Dialect(dialect.MySQL).
				Insert("users").
				Columns("name").
				Values("a").
				Values("b"),
			wantQuery: "INSERT INTO `users` (`name`) VALUES (?), (?)",
			wantArgs:  []any{"a", "b"},
		},
		{
			name: "insert returning ignored on mysql",
			input: Dialect(dialect.MySQL).
				Insert("users").
				Columns("name").
				Values("a").
				Returning("id"),
			wantQuery: "INSERT INTO `users` (`name`) VALUES (?)",
			wantArgs:  []any{"a"},
		},
		{
			name: "insert defaults",
			input: Dialect(dialect.Postgres).
				Insert("users").
				Default(),
			wantQuery: `INSERT INTO "users" DEFAULT VALUES`,
		},
		{
			name: "insert defaults mysql",
			input: Dialect(dialect.MySQL).
				Insert("users").
				Default(),
			wantQuery: "INSERT INTO `users` () VALUES ()",
		},
		{
			name: "update",
			input: Dialect(dialect.Postgres).
				Update("users").
				Set("name", "bob").
				Set("age", 31).
				Where(EQ("id", 7)),
			wantQuery: `UPDATE "users" SET "name" = $1, "age" = $2 WHERE "id" = $3`,
			wantArgs:  []any{"bob", 31, 7},
		},
		{
			name: "delete",
			input: Dialect(dialect.SQLite).
				Delete("users").
				Where(EQ("id", 1)),
			wantQuery: "DELETE FROM `users` WHERE `id` = ?",
			wantArgs:  []any{1},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			query, args := tt.input.Query()
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

// Repeated Where calls AND together.
func TestSelectorWhereChaining(t *testing.T) {
	t.Parallel()
	query, args := Dialect(dialect.Postgres).
		Select("id").
		From(Table("users")).
		Where(EQ("active", true)).
		Where(GT("age", 18)).
		Query()
	assert.Equal(t, `SELECT "id" FROM "users" WHERE ("active" = $1 AND "age" > $2)`, query)
	assert.Equal(t, []any{true, 18}, args)
}

func TestSelectorClone(t *testing.T) {
	t.Parallel()
	base := Dialect(dialect.Postgres).
		Select("id").
		From(Table("users")).
		Where(EQ("active", true))
	clone := base.Clone().Where(GT("age", 18)).Limit(1)

	baseQuery, baseArgs := base.Query()
	require.Equal(t, `SELECT "id" FROM "users" WHERE "active" = $1`, baseQuery)
	require.Equal(t, []any{true}, baseArgs)

	cloneQuery, cloneArgs := clone.Query()
	require.Equal(t, `SELECT "id" FROM "users" WHERE ("active" = $1 AND "age" > $2) LIMIT 1`, cloneQuery)
	require.Equal(t, []any{true, 18}, cloneArgs)
}

func TestTableColumns(t *testing.T) {
	t.Parallel()
	users := Table("users")
	assert.Equal(t, []string{"users.id", "users.name"}, users.Columns("id", "name"))
	assert.Equal(t, "u.id", users.As("u").C("id"))
}
