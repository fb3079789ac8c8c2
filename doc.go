// Package rivet is a runtime ORM: record types are registered explicitly,
// relationships are declared on them, and queries resolve relations eagerly
// without the N+1 pattern.
//
// # Setup
//
//	user := schema.NewType("User").
//		Attr("id", schema.Int).
//		Attr("name", schema.String).
//		Attr("countryId", schema.Int)
//	post := schema.NewType("Post").
//		Attr("id", schema.Int).
//		Attr("title", schema.String).
//		Attr("userId", schema.Int)
//	user.HasMany("posts", "Post")
//
//	reg := schema.NewRegistry().Register(user, post)
//	client, err := rivet.Open(dialect.Postgres, dsn, reg)
//
// # Querying
//
//	users, err := client.Model("User").
//		Where("name", "like", "a%").
//		OrderBy("name").
//		Preload("posts", func(rq *rivet.RelationQuery) {
//			rq.OrderByDesc("id")
//		}).
//		All(ctx)
//
// Preloading issues one batched query per relation per level and matches
// rows onto their parents in memory. Dotted paths ("posts.comments") nest.
//
// # Relations
//
//	posts, err := client.Related(user, "posts").All(ctx)
//	err = client.Related(post, "tags").Attach(ctx, tagID)
//
// Relation queries carry the full query vocabulary pre-constrained to the
// parent, plus the relation mutations: Create, Save, Associate, Dissociate,
// Attach, Detach and Sync.
package rivet
