package runner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/postersmith/postersmith/internal/library"
	"github.com/postersmith/postersmith/internal/plex"
	"github.com/postersmith/postersmith/internal/progress"
	"github.com/postersmith/postersmith/internal/render"
	"github.com/postersmith/postersmith/internal/settings"
	"github.com/postersmith/postersmith/internal/tmdb"
	"github.com/postersmith/postersmith/pkg/errors"
	"github.com/postersmith/postersmith/pkg/logger"
)

type fakePlex struct {
	movies       []plex.Movie
	moviesErr    error
	tmdbIDs      map[string]int
	tmdbErr      map[string]error
	labels       map[string][]string
	uploads      []string
	removed      []string
	uploadErr    map[string]error
	removeCalled int
}

func (f *fakePlex) Movies(ctx context.Context) ([]plex.Movie, error) {
	return f.movies, f.moviesErr
}

func (f *fakePlex) TMDbID(ctx context.Context, ratingKey string) (int, error) {
	if err, ok := f.tmdbErr[ratingKey]; ok {
		return 0, err
	}
	return f.tmdbIDs[ratingKey], nil
}

func (f *fakePlex) Labels(ctx context.Context, ratingKey string) ([]string, error) {
	return f.labels[ratingKey], nil
}

func (f *fakePlex) RemoveLabel(ctx context.Context, ratingKey, label string) error {
	f.removeCalled++
	f.removed = append(f.removed, ratingKey+":"+label)
	return nil
}

func (f *fakePlex) UploadPoster(ctx context.Context, ratingKey string, data []byte, contentType string) error {
	if err, ok := f.uploadErr[ratingKey]; ok {
		return err
	}
	f.uploads = append(f.uploads, ratingKey)
	return nil
}

func (f *fakePlex) PosterURL(ctx context.Context, ratingKey string) (string, error) {
	return "", nil
}

type fakeTMDb struct {
	images  map[int]*tmdb.Images
	details map[int]*tmdb.MovieDetails
}

func (f *fakeTMDb) Images(ctx context.Context, tmdbID int) (*tmdb.Images, error) {
	imgs, ok := f.images[tmdbID]
	if !ok {
		return nil, errors.Unavailable("tmdb has no such movie")
	}
	return imgs, nil
}

func (f *fakeTMDb) MovieDetails(ctx context.Context, tmdbID int) (*tmdb.MovieDetails, error) {
	d, ok := f.details[tmdbID]
	if !ok {
		return nil, errors.Unavailable("tmdb has no such movie")
	}
	return d, nil
}

type stubRenderer struct {
	err      error
	requests []render.Request
}

func (r *stubRenderer) Render(ctx context.Context, req render.Request) (*render.Result, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	return &render.Result{Data: []byte("poster"), ContentType: "image/jpeg"}, nil
}

type fixture struct {
	service  *Service
	tracker  *progress.Tracker
	plex     *fakePlex
	tmdb     *fakeTMDb
	renderer *stubRenderer
	cache    *library.Repository
	settings *settings.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	settingsRepo, err := settings.NewRepository(db)
	require.NoError(t, err)
	settingsSvc := settings.NewService(settingsRepo, logger.NewNop())

	cache, err := library.NewRepository(db)
	require.NoError(t, err)

	f := &fixture{
		tracker: progress.NewTracker(nil),
		plex: &fakePlex{
			tmdbIDs:   map[string]int{},
			tmdbErr:   map[string]error{},
			labels:    map[string][]string{},
			uploadErr: map[string]error{},
		},
		tmdb: &fakeTMDb{
			images:  map[int]*tmdb.Images{},
			details: map[int]*tmdb.MovieDetails{},
		},
		renderer: &stubRenderer{},
		cache:    cache,
		settings: settingsSvc,
	}

	factories := Factories{
		Plex: func(settings.PlexSettings) PlexLibrary { return f.plex },
		TMDb: func(string, float64) MetadataProvider { return f.tmdb },
	}
	f.service = NewService(f.tracker, settingsSvc, cache, f.renderer, factories, t.TempDir(), logger.NewNop())
	return f
}

func (f *fixture) addMovie(ratingKey, title string, tmdbID int) {
	f.plex.movies = append(f.plex.movies, plex.Movie{RatingKey: ratingKey, Title: title, Year: 1995})
	f.plex.tmdbIDs[ratingKey] = tmdbID
	f.tmdb.images[tmdbID] = &tmdb.Images{
		Posters: []tmdb.Image{{URL: "http://img/poster.jpg"}},
		Logos:   []tmdb.Image{{URL: "http://img/logo.png"}},
	}
	f.tmdb.details[tmdbID] = &tmdb.MovieDetails{ID: tmdbID, Title: title, Year: "1995"}
}

func waitTerminal(t *testing.T, tracker *progress.Tracker, kind progress.Kind) progress.Snapshot {
	t.Helper()
	var snap progress.Snapshot
	require.Eventually(t, func() bool {
		snap = tracker.Snapshot(kind)
		return snap.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return snap
}

func TestBatchCountsFailedItemsAndFinishesDone(t *testing.T) {
	f := newFixture(t)
	for i, key := range []string{"1", "2", "3", "4", "5"} {
		f.addMovie(key, "Movie "+key, 100+i)
	}
	// Item 3 has no TMDb match.
	delete(f.plex.tmdbIDs, "3")

	_, err := f.service.StartBatch(context.Background(), BatchRequest{
		Items:      []string{"1", "2", "3", "4", "5"},
		SendToPlex: true,
	})
	require.NoError(t, err)

	snap := waitTerminal(t, f.tracker, progress.KindBatch)
	assert.Equal(t, progress.StateDone, snap.State)
	assert.Equal(t, 5, snap.Processed)
	assert.Equal(t, 5, snap.Total)
	assert.Contains(t, strings.Join(snap.Log, "\n"), "3: failed")

	results := f.service.LastBatchResults()
	require.Len(t, results, 5)
	assert.Equal(t, StatusError, results[2].Status)
	assert.Equal(t, "3", results[2].RatingKey)
	assert.NotEmpty(t, results[2].Err)
	assert.Equal(t, StatusOK, results[4].Status)
	assert.ElementsMatch(t, []string{"1", "2", "4", "5"}, f.plex.uploads)
}

func TestBatchRequiresItems(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.StartBatch(context.Background(), BatchRequest{})
	require.Error(t, err)
	assert.True(t, errors.IsBadRequest(err))
	assert.Equal(t, progress.StateIdle, f.tracker.Snapshot(progress.KindBatch).State)
}

func TestSecondBatchStartConflicts(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tracker.Start(progress.KindBatch))

	_, err := f.service.StartBatch(context.Background(), BatchRequest{Items: []string{"1"}})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestBatchSavesLocally(t *testing.T) {
	f := newFixture(t)
	f.addMovie("1", "Heat", 949)

	_, err := f.service.StartBatch(context.Background(), BatchRequest{
		Items:       []string{"1"},
		SaveLocally: true,
	})
	require.NoError(t, err)

	waitTerminal(t, f.tracker, progress.KindBatch)

	results := f.service.LastBatchResults()
	require.Len(t, results, 1)
	assert.Equal(t, StatusOK, results[0].Status)
	assert.NotEmpty(t, results[0].SavedPath)
	assert.FileExists(t, results[0].SavedPath)
}

func TestBatchRemovesRequestedLabels(t *testing.T) {
	f := newFixture(t)
	f.addMovie("1", "Heat", 949)

	_, err := f.service.StartBatch(context.Background(), BatchRequest{
		Items:      []string{"1"},
		SendToPlex: true,
		Labels:     []string{"Overlay", "Kometa"},
	})
	require.NoError(t, err)

	waitTerminal(t, f.tracker, progress.KindBatch)
	assert.ElementsMatch(t, []string{"1:Overlay", "1:Kometa"}, f.plex.removed)
}

func TestScanRefreshesCache(t *testing.T) {
	f := newFixture(t)
	f.addMovie("1", "Heat", 949)
	f.addMovie("2", "Alien", 348)
	f.plex.labels["1"] = []string{"Overlay"}

	_, err := f.service.StartScan(context.Background(), ScanOptions{IncludeLabels: true, IncludeTMDb: true})
	require.NoError(t, err)

	snap := waitTerminal(t, f.tracker, progress.KindScan)
	assert.Equal(t, progress.StateDone, snap.State)
	assert.Equal(t, 2, snap.Processed)
	assert.Equal(t, 2, snap.Total)

	movies, err := f.cache.List(context.Background())
	require.NoError(t, err)
	require.Len(t, movies, 2)

	byKey := map[string]library.Movie{}
	for _, m := range movies {
		byKey[m.RatingKey] = m
	}
	assert.Equal(t, []string{"Overlay"}, byKey["1"].Labels)
	assert.Equal(t, 949, byKey["1"].TMDbID)
}

func TestScanEnumerationFailureFailsJob(t *testing.T) {
	f := newFixture(t)
	f.plex.moviesErr = errors.Unavailable("plex unreachable")

	_, err := f.service.StartScan(context.Background(), ScanOptions{})
	require.NoError(t, err)

	snap := waitTerminal(t, f.tracker, progress.KindScan)
	assert.Equal(t, progress.StateError, snap.State)
	assert.Contains(t, snap.Error, "listing library failed")
}

func TestWebhookIgnoresUnhandledEventTypes(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.HandleRadarr(context.Background(), RadarrEvent{
		EventType: "Test",
		Movie:     RadarrMovie{Title: "Heat"},
	}, WebhookConfig{AutoSend: true})
	require.NoError(t, err)
	assert.Equal(t, "ignored", result.Status)
	assert.Empty(t, f.plex.uploads)
}

func TestWebhookRendersAndUploads(t *testing.T) {
	f := newFixture(t)
	f.addMovie("1", "Heat", 949)

	result, err := f.service.HandleRadarr(context.Background(), RadarrEvent{
		EventType: "Download",
		Movie:     RadarrMovie{Title: "Heat", Year: 1995},
	}, WebhookConfig{AutoSend: true})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)
	assert.True(t, result.SentToPlex)
	assert.Equal(t, "1", result.RatingKey)
	assert.Equal(t, []string{"1"}, f.plex.uploads)
	// Default labels from settings get cleaned up after the upload.
	assert.Equal(t, []string{"1:Overlay"}, f.plex.removed)
}

func TestWebhookNoLibraryMatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.HandleRadarr(context.Background(), RadarrEvent{
		EventType: "download",
		Movie:     RadarrMovie{Title: "Missing"},
	}, WebhookConfig{AutoSend: true})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestPreviewUsesCommittedQuality(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Preview(context.Background(), PosterRequest{
		TemplateID:    "default",
		BackgroundURL: "http://img/poster.jpg",
	})
	require.NoError(t, err)
	require.Len(t, f.renderer.requests, 1)
	assert.Equal(t, settings.Defaults().Quality, f.renderer.requests[0].Quality)
}

func TestSendToPlexValidatesRequest(t *testing.T) {
	f := newFixture(t)

	err := f.service.SendToPlex(context.Background(), SendRequest{
		PosterRequest: PosterRequest{TemplateID: "default", BackgroundURL: "ftp://nope"},
		RatingKey:     "1",
	})
	require.Error(t, err)
	assert.True(t, errors.IsBadRequest(err))
}
