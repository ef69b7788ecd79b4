package requestsource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrflow/arrflow/internal/mediaitem"
)

func TestOverseerrSource_Fetch(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/api/v1/request", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"id":7,"media":{"mediaType":"movie","tmdbId":603,"imdbId":"tt0133093"}},
			{"id":8,"media":{"mediaType":"tv","tmdbId":1396,"imdbId":"tt0903747"}}
		]}`))
	})

	s := NewOverseerrSource(srv.URL, "test-key")
	items, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, mediaitem.KindMovie, items[0].Kind)
	assert.Equal(t, "tt0133093", items[0].ImdbID)
	assert.Equal(t, mediaitem.KindShow, items[1].Kind)
	require.NotNil(t, items[1].OverseerrID)
	assert.Equal(t, int64(8), *items[1].OverseerrID)
}

func TestMdblistSource_Fetch(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/lists/42/items", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"imdb_id":"tt1111111","mediatype":"movie"},{"imdb_id":"tt2222222","mediatype":"show"}]`))
	})

	s := NewMdblistSource("key", []string{"42"})
	s.baseURL = srv.URL

	items, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, mediaitem.KindMovie, items[0].Kind)
	assert.Equal(t, mediaitem.KindShow, items[1].Kind)
}

func TestListrrSource_Fetch(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/api/List/Movies/abc/1/1000", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"imDbId":"tt3333333"}],"pages":1}`))
	})

	s := NewListrrSource("key", []string{"abc"}, nil)
	s.baseURL = srv.URL

	items, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "tt3333333", items[0].ImdbID)
}

func TestPlexWatchlistSource_Fetch(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/library/sections/watchlist/all", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("X-Plex-Token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"MediaContainer":{"Metadata":[
			{"type":"movie","title":"Some Movie","Guid":[{"id":"imdb://tt4444444"}]}
		]}}`))
	})

	s := NewPlexWatchlistSource("test-token")
	s.baseURL = srv.URL

	items, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "tt4444444", items[0].ImdbID)
	assert.Equal(t, "Some Movie", items[0].Title)
}

func TestLibraryScanSource_Fetch(t *testing.T) {
	root := t.TempDir()
	movieDir := filepath.Join(root, "Some Movie (2024)")
	require.NoError(t, os.MkdirAll(movieDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(movieDir, "movie.mkv"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(movieDir, "movie-sample.mkv"), []byte("x"), 0o644))

	known := map[string]bool{}
	s := NewLibraryScanSource([]string{root}, func(folder string) bool { return known[folder] })

	items, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Some Movie (2024)", items[0].Title)

	known[movieDir] = true
	items, err = s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestIsVideoFile(t *testing.T) {
	assert.True(t, isVideoFile("/a/b/movie.MKV"))
	assert.False(t, isVideoFile("/a/b/movie.nfo"))
}
