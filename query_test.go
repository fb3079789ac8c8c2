package rivet

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rivetorm/rivet/dialect"
	sqld "github.com/rivetorm/rivet/dialect/sql"
	"github.com/rivetorm/rivet/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	client, err := NewClient(sqld.OpenDB(dialect.Postgres, db), newTestRegistry())
	require.NoError(t, err)
	return client, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestQueryAll(t *testing.T) {
	t.Parallel()
	client, mock := newTestClient(t)

	mock.ExpectQuery(q(`SELECT users.* FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "country_id"}).
			AddRow(1, "alice", 10).
			AddRow(2, []byte("bob"), 20))

	users, err := client.Model("User").All(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, users.Len())

	first := users.First()
	assert.Equal(t, int64(1), first.MustGet("id"))
	assert.Equal(t, "alice", first.MustGet("name"))
	assert.Equal(t, int64(10), first.MustGet("countryId"))
	assert.True(t, first.Persisted())

	// Byte-slice scans cast to the declared attribute type.
	assert.Equal(t, "bob", users.At(1).MustGet("name"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryScanExtras(t *testing.T) {
	t.Parallel()
	client, mock := newTestClient(t)

	mock.ExpectQuery(q(`SELECT users.* FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_count"}).AddRow(1, 5))

	users, err := client.Model("User").All(context.Background())
	require.NoError(t, err)

	// Columns outside the schema land in the extras map.
	v, ok := users.First().Extra("post_count")
	require.True(t, ok)
	assert.Equal(t, int64(5), v)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryToSQL(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t)

	query, args, err := client.Model("User").
		Where("name", "=", "alice").
		Where("countryId", ">", 5).
		OrderBy("name").
		Limit(5).
		Offset(10).
		ToSQL()
	require.NoError(t, err)
	assert.Equal(t, `SELECT users.* FROM "users" WHERE ("users"."name" = $1 AND "users"."country_id" > $2) ORDER BY "users"."name" LIMIT 5 OFFSET 10`, query)
	assert.Equal(t, []any{"alice", 5}, args)
}

func TestQueryVocabulary(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t)

	tests := []struct {
		name  string
		build func() *Query
		want  string
	}{
		{
			"where in",
			func() *Query { return client.Model("User").WhereIn("id", 1, 2) },
			`SELECT users.* FROM "users" WHERE "users"."id" IN ($1, $2)`,
		},
		{
			"where null",
			func() *Query { return client.Model("User").WhereNull("countryId") },
			`SELECT users.* FROM "users" WHERE "users"."country_id" IS NULL`,
		},
		{
			"where not null",
			func() *Query { return client.Model("User").WhereNotNull("countryId") },
			`SELECT users.* FROM "users" WHERE "users"."country_id" IS NOT NULL`,
		},
		{
			"select attrs",
			func() *Query { return client.Model("User").Select("id", "name") },
			`SELECT "users"."id", "users"."name" FROM "users"`,
		},
		{
			"order desc",
			func() *Query { return client.Model("User").OrderByDesc("id") },
			`SELECT users.* FROM "users" ORDER BY users.id DESC`,
		},
		{
			"raw selector",
			func() *Query {
				return client.Model("User").WhereP(func(s *sqld.Selector) {
					s.Where(sqld.GT(s.C("id"), 7))
				})
			},
			`SELECT users.* FROM "users" WHERE "users"."id" > $1`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			query, _, err := tt.build().ToSQL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, query)
		})
	}
}

func TestQueryInvalidOperator(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t)

	_, err := client.Model("User").Where("name", "=~", "x").All(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported operator")
}

func TestQueryUndefinedType(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t)

	_, err := client.Model("Ghost").All(context.Background())
	require.Error(t, err)
	assert.True(t, schema.IsUndefinedType(err))
}

func TestQueryFirst(t *testing.T) {
	t.Parallel()
	client, mock := newTestClient(t)

	mock.ExpectQuery(q(`SELECT users.* FROM "users" LIMIT 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	rec, err := client.Model("User").First(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rec)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryFirstOrFail(t *testing.T) {
	t.Parallel()
	client, mock := newTestClient(t)

	mock.ExpectQuery(q(`SELECT users.* FROM "users" LIMIT 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := client.Model("User").FirstOrFail(context.Background())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryFind(t *testing.T) {
	t.Parallel()
	client, mock := newTestClient(t)

	mock.ExpectQuery(q(`SELECT users.* FROM "users" WHERE "users"."id" = $1 LIMIT 1`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(7, "alice"))

	rec, err := client.Model("User").Find(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.MustGet("id"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryCount(t *testing.T) {
	t.Parallel()
	client, mock := newTestClient(t)

	mock.ExpectQuery(q(`SELECT COUNT(*) FROM "users" WHERE "users"."country_id" = $1`)).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))

	n, err := client.Model("User").Where("countryId", "=", 3).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryExists(t *testing.T) {
	t.Parallel()
	client, mock := newTestClient(t)

	mock.ExpectQuery(q(`SELECT 1 FROM "users" LIMIT 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	ok, err := client.Model("User").Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryAggregates(t *testing.T) {
	t.Parallel()
	client, mock := newTestClient(t)

	mock.ExpectQuery(q(`SELECT SUM(users.country_id) FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(30.0))

	sum, err := client.Model("User").Sum(context.Background(), "countryId")
	require.NoError(t, err)
	assert.Equal(t, 30.0, sum)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryPaginate(t *testing.T) {
	t.Parallel()
	client, mock := newTestClient(t)

	mock.ExpectQuery(q(`SELECT COUNT(*) FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery(q(`SELECT users.* FROM "users" LIMIT 2 OFFSET 2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(4))

	page, err := client.Model("User").Paginate(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.LastPage)
	assert.Equal(t, 2, page.Records.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryCache(t *testing.T) {
	t.Parallel()
	client, mock := newTestClient(t)
	cache := NewMemoryCache()

	mock.ExpectQuery(q(`SELECT users.* FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "alice"))

	first, err := client.Model("User").Cache(cache, time.Minute).All(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Len())

	// Second run is served from the cache: no further query expected.
	second, err := client.Model("User").Cache(cache, time.Minute).All(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, second.Len())
	assert.Equal(t, first.First().Attributes(), second.First().Attributes())
	require.NoError(t, mock.ExpectationsWereMet())
}
