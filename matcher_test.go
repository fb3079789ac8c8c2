package rivet

import (
	"testing"

	"github.com/rivetorm/rivet/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *schema.Registry {
	country := schema.NewType("Country").
		Attr("id", schema.Int).
		Attr("name", schema.String)
	user := schema.NewType("User").
		Attr("id", schema.Int).
		Attr("name", schema.String).
		Attr("countryId", schema.Int)
	post := schema.NewType("Post").
		Attr("id", schema.Int).
		Attr("title", schema.String).
		Attr("userId", schema.Int)
	comment := schema.NewType("Comment").
		Attr("id", schema.Int).
		Attr("body", schema.String).
		Attr("postId", schema.Int)
	tag := schema.NewType("Tag").
		Attr("id", schema.Int).
		Attr("label", schema.String)
	profile := schema.NewType("Profile").
		Attr("id", schema.Int).
		Attr("userId", schema.Int).
		Attr("bio", schema.String)

	user.HasOne("profile", "Profile")
	user.HasMany("posts", "Post")
	country.HasMany("users", "User")
	country.HasManyThrough("posts", "Post", "User")
	post.HasMany("comments", "Comment")
	post.ManyToMany("tags", "Tag")

	return schema.NewRegistry().Register(country, user, post, comment, tag, profile)
}

func bootedRelation(t *testing.T, reg *schema.Registry, typeName, relation string) *schema.Relation {
	t.Helper()
	require.NoError(t, reg.Boot())
	typ, err := reg.Type(typeName)
	require.NoError(t, err)
	rel, ok := typ.Relation(relation)
	require.True(t, ok)
	return rel
}

func mkRecord(t *testing.T, reg *schema.Registry, typeName string, attrs map[string]any) *Record {
	t.Helper()
	typ, err := reg.Type(typeName)
	require.NoError(t, err)
	return NewRecord(typ).Fill(attrs)
}

func TestMatchToOne(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry()
	rel := bootedRelation(t, reg, "User", "profile")

	u1 := mkRecord(t, reg, "User", map[string]any{"id": int64(1)})
	u2 := mkRecord(t, reg, "User", map[string]any{"id": int64(2)})

	p1 := mkRecord(t, reg, "Profile", map[string]any{"id": int64(10), "userId": int64(1)})
	p1dup := mkRecord(t, reg, "Profile", map[string]any{"id": int64(11), "userId": int64(1)})

	require.NoError(t, matchRelation(rel, []*Record{u1, u2}, NewCollection(p1, p1dup)))

	// Duplicate foreign keys: last write wins.
	got, err := u1.RelatedRecord("profile")
	require.NoError(t, err)
	assert.Same(t, p1dup, got)

	// No match stays a loaded nil, not an error.
	got, err = u2.RelatedRecord("profile")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMatchToMany(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry()
	rel := bootedRelation(t, reg, "User", "posts")

	u1 := mkRecord(t, reg, "User", map[string]any{"id": int64(1)})
	u2 := mkRecord(t, reg, "User", map[string]any{"id": int64(2)})

	// Interleaved input: per-parent order must follow input order.
	posts := NewCollection(
		mkRecord(t, reg, "Post", map[string]any{"id": int64(3), "userId": int64(1)}),
		mkRecord(t, reg, "Post", map[string]any{"id": int64(4), "userId": int64(2)}),
		mkRecord(t, reg, "Post", map[string]any{"id": int64(1), "userId": int64(1)}),
		mkRecord(t, reg, "Post", map[string]any{"id": int64(2), "userId": int64(1)}),
	)
	require.NoError(t, matchRelation(rel, []*Record{u1, u2}, posts))

	got, err := u1.RelatedCollection("posts")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(3), int64(1), int64(2)}, got.Pluck("id"))

	got, err = u2.RelatedCollection("posts")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(4)}, got.Pluck("id"))
}

func TestMatchToManyNoMatch(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry()
	rel := bootedRelation(t, reg, "User", "posts")

	u := mkRecord(t, reg, "User", map[string]any{"id": int64(9)})
	require.NoError(t, matchRelation(rel, []*Record{u}, NewCollection()))

	got, err := u.RelatedCollection("posts")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestMatchThroughGroupsByAlias(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry()
	rel := bootedRelation(t, reg, "Country", "posts")

	c1 := mkRecord(t, reg, "Country", map[string]any{"id": int64(1)})
	c2 := mkRecord(t, reg, "Country", map[string]any{"id": int64(2)})

	p1 := mkRecord(t, reg, "Post", map[string]any{"id": int64(10), "userId": int64(100)})
	p1.setExtra("through_country_id", int64(1))
	p2 := mkRecord(t, reg, "Post", map[string]any{"id": int64(11), "userId": int64(200)})
	p2.setExtra("through_country_id", int64(2))
	p3 := mkRecord(t, reg, "Post", map[string]any{"id": int64(12), "userId": int64(101)})
	p3.setExtra("through_country_id", int64(1))

	require.NoError(t, matchRelation(rel, []*Record{c1, c2}, NewCollection(p1, p2, p3)))

	got, err := c1.RelatedCollection("posts")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(10), int64(12)}, got.Pluck("id"))

	got, err = c2.RelatedCollection("posts")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(11)}, got.Pluck("id"))
}

func TestMatchPivotGroupsByAlias(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry()
	rel := bootedRelation(t, reg, "Post", "tags")

	post := mkRecord(t, reg, "Post", map[string]any{"id": int64(1)})
	other := mkRecord(t, reg, "Post", map[string]any{"id": int64(2)})

	t1 := mkRecord(t, reg, "Tag", map[string]any{"id": int64(5), "label": "go"})
	t1.setExtra("pivot_post_id", int64(1))
	t2 := mkRecord(t, reg, "Tag", map[string]any{"id": int64(6), "label": "sql"})
	t2.setExtra("pivot_post_id", int64(2))

	require.NoError(t, matchRelation(rel, []*Record{post, other}, NewCollection(t1, t2)))

	got, err := post.RelatedCollection("tags")
	require.NoError(t, err)
	assert.Equal(t, []any{"go"}, got.Pluck("label"))

	got, err = other.RelatedCollection("tags")
	require.NoError(t, err)
	assert.Equal(t, []any{"sql"}, got.Pluck("label"))
}

// Mixed integer widths from different scan paths group under one key.
func TestMatchKeyNormalization(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry()
	rel := bootedRelation(t, reg, "User", "posts")

	u := mkRecord(t, reg, "User", map[string]any{"id": int(1)})
	p := mkRecord(t, reg, "Post", map[string]any{"id": int64(1), "userId": int64(1)})

	require.NoError(t, matchRelation(rel, []*Record{u}, NewCollection(p)))
	got, err := u.RelatedCollection("posts")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}

func TestMatchUnbootedRelation(t *testing.T) {
	t.Parallel()
	user := schema.NewType("User").Attr("id", schema.Int)
	rel := user.HasMany("posts", "Post")

	err := matchRelation(rel, []*Record{NewRecord(user)}, NewCollection())
	require.Error(t, err)
	assert.True(t, schema.IsNotBooted(err))
}
