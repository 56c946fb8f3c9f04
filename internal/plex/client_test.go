package plex_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postersmith/postersmith/internal/plex"
	"github.com/postersmith/postersmith/internal/settings"
	"github.com/postersmith/postersmith/pkg/logger"
)

const sectionsXML = `<?xml version="1.0"?>
<MediaContainer size="2">
  <Directory key="3" title="Movies"/>
  <Directory key="5" title="TV Shows"/>
</MediaContainer>`

const moviesXML = `<?xml version="1.0"?>
<MediaContainer size="2">
  <Video ratingKey="101" title="Heat" year="1995" addedAt="1700000000"/>
  <Video ratingKey="102" title="Alien" year="1979" addedAt="1700000500"/>
</MediaContainer>`

const metadataXML = `<?xml version="1.0"?>
<MediaContainer size="1">
  <Video ratingKey="101" title="Heat" thumb="/library/metadata/101/thumb/1">
    <Guid id="plex://movie/5d776830999c64001ec2c906"/>
    <Guid id="tmdb://949"/>
    <Tag tagType="label" tag="Overlay"/>
    <Tag tagType="genre" tag="Crime"/>
    <Label tag="Kometa"/>
  </Video>
</MediaContainer>`

func newTestClient(t *testing.T, handler http.Handler) (*plex.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := plex.NewClient(settings.PlexSettings{
		URL:          server.URL,
		Token:        "test-token",
		MovieLibrary: "Movies",
		VerifyTLS:    true,
	}, logger.NewNop())
	return client, server
}

func TestMoviesResolvesLibraryByName(t *testing.T) {
	var sectionPath string
	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("X-Plex-Token"))
		_, _ = w.Write([]byte(sectionsXML))
	})
	mux.HandleFunc("/library/sections/3/all", func(w http.ResponseWriter, r *http.Request) {
		sectionPath = r.URL.Path
		_, _ = w.Write([]byte(moviesXML))
	})

	client, _ := newTestClient(t, mux)

	movies, err := client.Movies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/library/sections/3/all", sectionPath)
	require.Len(t, movies, 2)
	assert.Equal(t, "101", movies[0].RatingKey)
	assert.Equal(t, "Heat", movies[0].Title)
	assert.Equal(t, 1995, movies[0].Year)
	assert.Equal(t, int64(1700000000), movies[0].AddedAt)
}

func TestMoviesUnreachableServer(t *testing.T) {
	client := plex.NewClient(settings.PlexSettings{
		URL:          "http://127.0.0.1:1",
		MovieLibrary: "1",
	}, logger.NewNop())

	_, err := client.Movies(context.Background())
	require.Error(t, err)
}

func TestTMDbIDFromGuid(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/library/metadata/101", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(metadataXML))
	})

	client, _ := newTestClient(t, mux)

	id, err := client.TMDbID(context.Background(), "101")
	require.NoError(t, err)
	assert.Equal(t, 949, id)
}

func TestTMDbIDMissingGuidReturnsZero(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/library/metadata/102", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<MediaContainer><Video ratingKey="102"/></MediaContainer>`))
	})

	client, _ := newTestClient(t, mux)

	id, err := client.TMDbID(context.Background(), "102")
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestLabelsMergesBothTagForms(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/library/metadata/101", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(metadataXML))
	})

	client, _ := newTestClient(t, mux)

	labels, err := client.Labels(context.Background(), "101")
	require.NoError(t, err)
	assert.Equal(t, []string{"Kometa", "Overlay"}, labels)
}

func TestRemoveLabelFallsThroughStrategies(t *testing.T) {
	var deleteCalled bool
	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sectionsXML))
	})
	mux.HandleFunc("/library/sections/3/all", func(w http.ResponseWriter, r *http.Request) {
		// First strategy rejected by this server version.
		w.WriteHeader(http.StatusBadRequest)
	})
	mux.HandleFunc("/library/metadata/101/labels", func(w http.ResponseWriter, r *http.Request) {
		deleteCalled = true
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "Overlay", r.URL.Query().Get("tag.tag"))
		w.WriteHeader(http.StatusOK)
	})

	client, _ := newTestClient(t, mux)

	require.NoError(t, client.RemoveLabel(context.Background(), "101", "Overlay"))
	assert.True(t, deleteCalled)
}

func TestUploadPoster(t *testing.T) {
	var uploaded []byte
	mux := http.NewServeMux()
	mux.HandleFunc("/library/metadata/101/posters", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		buf := make([]byte, 16)
		n, _ := r.Body.Read(buf)
		uploaded = buf[:n]
		w.WriteHeader(http.StatusOK)
	})

	client, _ := newTestClient(t, mux)

	require.NoError(t, client.UploadPoster(context.Background(), "101", []byte("jpeg-bytes"), "image/jpeg"))
	assert.Equal(t, "jpeg-bytes", string(uploaded))
}
