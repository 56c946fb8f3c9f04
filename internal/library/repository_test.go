package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	repo, err := NewRepository(db)
	require.NoError(t, err)
	return repo
}

func TestRefreshAndList(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Refresh(ctx, []Movie{
		{RatingKey: "101", Title: "Heat", Year: 1995, AddedAt: 1700000000},
		{RatingKey: "102", Title: "Alien", Year: 1979, AddedAt: 1700000500},
	}))

	movies, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 2)

	titles := []string{movies[0].Title, movies[1].Title}
	assert.ElementsMatch(t, []string{"Heat", "Alien"}, titles)
	assert.Equal(t, []string{}, movies[0].Labels)
}

func TestRefreshDropsRemovedMovies(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Refresh(ctx, []Movie{
		{RatingKey: "101", Title: "Heat"},
		{RatingKey: "102", Title: "Alien"},
	}))
	require.NoError(t, repo.Refresh(ctx, []Movie{
		{RatingKey: "101", Title: "Heat"},
	}))

	movies, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "101", movies[0].RatingKey)
}

func TestRefreshPreservesEnrichment(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Refresh(ctx, []Movie{{RatingKey: "101", Title: "Heat", Year: 1995}}))
	require.NoError(t, repo.SetTMDbID(ctx, "101", 949))
	require.NoError(t, repo.SetLabels(ctx, "101", []string{"Overlay"}))
	require.NoError(t, repo.SetPosterURL(ctx, "101", "http://plex/thumb/1"))

	// A later basic refresh must not wipe the enrichment columns.
	require.NoError(t, repo.Refresh(ctx, []Movie{{RatingKey: "101", Title: "Heat", Year: 1995}}))

	movies, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, 949, movies[0].TMDbID)
	assert.Equal(t, []string{"Overlay"}, movies[0].Labels)
	assert.Equal(t, "http://plex/thumb/1", movies[0].PosterURL)
}

func TestEmptyRefreshClearsCache(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Refresh(ctx, []Movie{{RatingKey: "101", Title: "Heat"}}))
	require.NoError(t, repo.Refresh(ctx, nil))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
