package posts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linblog/internal/posts"
	"linblog/internal/testsupport"
)

func TestGetPostSummary(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	lookup := posts.NewGormLookup(db)
	ctx := context.Background()

	t.Run("published post", func(t *testing.T) {
		post := testsupport.CreateTestPost(t, db, "live-post", posts.StatusPublished)

		summary, err := lookup.GetPostSummary(ctx, post.ID)
		require.NoError(t, err)
		require.NotNil(t, summary)
		assert.Equal(t, "live-post", summary.Slug)
		assert.Equal(t, "live post", summary.Title)
		assert.True(t, summary.Published())
		assert.False(t, summary.Deleted())
	})

	t.Run("draft post is not published", func(t *testing.T) {
		post := testsupport.CreateTestPost(t, db, "draft-post", posts.StatusDraft)

		summary, err := lookup.GetPostSummary(ctx, post.ID)
		require.NoError(t, err)
		require.NotNil(t, summary)
		assert.False(t, summary.Published())
	})

	t.Run("soft-deleted post is still returned", func(t *testing.T) {
		post := testsupport.CreateTestPost(t, db, "removed-post", posts.StatusPublished)
		require.NoError(t, db.Delete(post).Error)

		summary, err := lookup.GetPostSummary(ctx, post.ID)
		require.NoError(t, err)
		require.NotNil(t, summary)
		assert.True(t, summary.Deleted())
		assert.False(t, summary.Published())
	})

	t.Run("missing post", func(t *testing.T) {
		summary, err := lookup.GetPostSummary(ctx, 987654)
		require.NoError(t, err)
		assert.Nil(t, summary)

		summary, err = lookup.GetPostSummary(ctx, 0)
		require.NoError(t, err)
		assert.Nil(t, summary)
	})
}

func TestCreatePost(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)

	draft := &posts.Post{Slug: "no-status", Title: "No status"}
	require.NoError(t, posts.CreatePost(db, draft))
	assert.Equal(t, posts.StatusDraft, draft.Status)
	assert.Nil(t, draft.PublishedAt)

	live := &posts.Post{Slug: "published", Title: "Published", Status: posts.StatusPublished}
	require.NoError(t, posts.CreatePost(db, live))
	assert.NotNil(t, live.PublishedAt)

	dup := &posts.Post{Slug: "published", Title: "Again"}
	assert.Error(t, posts.CreatePost(db, dup), "slugs are unique")
}

func TestCountByStatus(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)

	testsupport.CreateTestPost(t, db, "a", posts.StatusPublished)
	testsupport.CreateTestPost(t, db, "b", posts.StatusPublished)
	testsupport.CreateTestPost(t, db, "c", posts.StatusDraft)
	archived := testsupport.CreateTestPost(t, db, "d", posts.StatusArchived)
	gone := testsupport.CreateTestPost(t, db, "e", posts.StatusPublished)
	require.NoError(t, db.Delete(gone).Error)

	counts, err := posts.CountByStatus(context.Background(), db)
	require.NoError(t, err)

	assert.Equal(t, int64(2), counts[posts.StatusPublished])
	assert.Equal(t, int64(1), counts[posts.StatusDraft])
	assert.Equal(t, int64(1), counts[archived.Status])
}
