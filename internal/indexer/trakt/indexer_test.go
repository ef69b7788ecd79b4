package trakt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arrflow/arrflow/internal/mediaitem"
	"github.com/arrflow/arrflow/internal/transition"
)

func TestFromEntry_Movie(t *testing.T) {
	e := &entry{
		Title:    "Arrival",
		Year:     2016,
		IDs:      ids{Imdb: "tt2543164", Tmdb: 329865, Tvdb: 0},
		Genres:   []string{"Drama", "Sci-Fi"},
		Released: "2016-11-11",
	}

	item := fromEntry(mediaitem.KindMovie, e, nil)

	if item.Kind != mediaitem.KindMovie {
		t.Errorf("Kind = %v, want KindMovie", item.Kind)
	}
	if item.Title != "Arrival" || item.Year != 2016 {
		t.Errorf("unexpected title/year: %+v", item)
	}
	if item.ImdbID != "tt2543164" || item.TmdbID != "329865" || item.TvdbID != "" {
		t.Errorf("unexpected ids: imdb=%q tmdb=%q tvdb=%q", item.ImdbID, item.TmdbID, item.TvdbID)
	}
	if item.AiredAt == nil || !item.AiredAt.Equal(time.Date(2016, 11, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected AiredAt: %v", item.AiredAt)
	}
}

func TestFromEntry_ShowUsesFirstAiredAndInheritedGenres(t *testing.T) {
	e := &entry{
		Title:      "Arcane",
		IDs:        ids{Imdb: "tt11126994"},
		FirstAired: "2021-11-06T19:00:00.000Z",
	}

	item := fromEntry(mediaitem.KindShow, e, []string{"animation"})

	if item.Kind != mediaitem.KindShow {
		t.Errorf("Kind = %v, want KindShow", item.Kind)
	}
	if len(item.Genres) != 1 || item.Genres[0] != "animation" {
		t.Errorf("expected inherited genres to override entry genres, got %v", item.Genres)
	}
	want := time.Date(2021, 11, 6, 19, 0, 0, 0, time.UTC)
	if item.AiredAt == nil || !item.AiredAt.Equal(want) {
		t.Errorf("unexpected AiredAt: %v", item.AiredAt)
	}
}

func TestFromEntry_GenresFallBackToEntryWhenNilPassed(t *testing.T) {
	e := &entry{Title: "Arcane", Genres: []string{"animation"}}
	item := fromEntry(mediaitem.KindShow, e, nil)
	if len(item.Genres) != 1 || item.Genres[0] != "animation" {
		t.Errorf("expected entry genres to be used, got %v", item.Genres)
	}
}

func TestIsAnime(t *testing.T) {
	tests := []struct {
		name     string
		genres   []string
		country  string
		language string
		want     bool
	}{
		{"explicit anime genre", []string{"Anime"}, "", "", true},
		{"animation from japan", []string{"Animation"}, "jp", "", true},
		{"animation from korea", []string{"Animation"}, "kr", "", true},
		{"animation in japanese", []string{"Animation"}, "", "ja", true},
		{"western animation is not anime", []string{"Animation"}, "us", "en", false},
		{"no genres at all", nil, "jp", "ja", false},
		{"drama is not anime", []string{"Drama"}, "jp", "ja", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isAnime(tt.genres, tt.country, tt.language); got != tt.want {
				t.Errorf("isAnime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestItoaOrEmpty(t *testing.T) {
	if got := itoaOrEmpty(0); got != "" {
		t.Errorf("itoaOrEmpty(0) = %q, want empty", got)
	}
	if got := itoaOrEmpty(42); got != "42" {
		t.Errorf("itoaOrEmpty(42) = %q, want 42", got)
	}
}

func TestParseTraktTime(t *testing.T) {
	if got := parseTraktTime(""); got != nil {
		t.Errorf("parseTraktTime(\"\") = %v, want nil", got)
	}
	if got := parseTraktTime("not-a-time"); got != nil {
		t.Errorf("parseTraktTime(garbage) = %v, want nil", got)
	}
	got := parseTraktTime("2021-11-06T19:00:00.000Z")
	want := time.Date(2021, 11, 6, 19, 0, 0, 0, time.UTC)
	if got == nil || !got.Equal(want) {
		t.Errorf("parseTraktTime() = %v, want %v", got, want)
	}
}

func TestParseTraktDate(t *testing.T) {
	if got := parseTraktDate(""); got != nil {
		t.Errorf("parseTraktDate(\"\") = %v, want nil", got)
	}
	got := parseTraktDate("2016-11-11")
	want := time.Date(2016, 11, 11, 0, 0, 0, 0, time.UTC)
	if got == nil || !got.Equal(want) {
		t.Errorf("parseTraktDate() = %v, want %v", got, want)
	}
}

func TestShouldRefresh(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if !ShouldRefresh(&mediaitem.Item{}, time.Hour, now) {
		t.Error("expected an item never indexed to be due for refresh")
	}
	if !ShouldRefresh(&mediaitem.Item{IndexedAt: timePtr(now.Add(-2 * time.Hour))}, time.Hour, now) {
		t.Error("expected an item indexed beyond the interval to be due for refresh")
	}
	if ShouldRefresh(&mediaitem.Item{Title: "Arrival", IndexedAt: timePtr(now.Add(-time.Minute))}, time.Hour, now) {
		t.Error("expected a recently indexed item to not be due for refresh")
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func newTestServer(t *testing.T, mux *http.ServeMux) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(mux)
	client := NewClient("test-client-id", nil)
	client.baseURL = srv.URL
	return client, srv.Close
}

func TestClient_Index_Movie(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/imdb/tt2543164", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("trakt-api-key"); got != "test-client-id" {
			t.Errorf("trakt-api-key header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"type":"movie","movie":{"title":"Arrival","year":2016,"ids":{"imdb":"tt2543164"},"released":"2016-11-11"}}]`))
	})
	client, closeFn := newTestServer(t, mux)
	defer closeFn()

	got, err := client.Index(context.Background(), &mediaitem.Item{ID: 7, ItemID: "tt2543164", ImdbID: "tt2543164"})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if got.Title != "Arrival" || got.Kind != mediaitem.KindMovie {
		t.Errorf("unexpected resolved item: %+v", got)
	}
	if got.ID != 7 || got.ItemID != "tt2543164" {
		t.Errorf("expected the resolved item to carry over the caller's id/item_id, got id=%d item_id=%s", got.ID, got.ItemID)
	}
	if got.IndexedAt == nil {
		t.Error("expected IndexedAt to be stamped")
	}
}

func TestClient_Index_ShowFetchesSeasonsAndSkipsSpecials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/imdb/tt11126994", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"type":"show","show":{"title":"Arcane","ids":{"imdb":"tt11126994"},"genres":["animation"],"first_aired":"2021-11-06T19:00:00.000Z"}}]`))
	})
	mux.HandleFunc("/shows/tt11126994/seasons", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"number":0,"ids":{"trakt":1},"episodes":[{"number":1,"title":"Special"}]},
			{"number":1,"ids":{"trakt":2},"episodes":[{"number":1,"title":"Welcome, to the Playground","ids":{"imdb":"tt11126995"},"first_aired":"2021-11-06T19:00:00.000Z"}]}
		]`))
	})
	client, closeFn := newTestServer(t, mux)
	defer closeFn()

	got, err := client.Index(context.Background(), &mediaitem.Item{ImdbID: "tt11126994"})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(got.Seasons) != 1 {
		t.Fatalf("expected the specials pseudo-season to be skipped, got %d seasons", len(got.Seasons))
	}
	season := got.Seasons[0]
	if season.Number != 1 {
		t.Errorf("expected season number 1, got %d", season.Number)
	}
	if season.Parent != got {
		t.Error("expected the season's parent to be set to the resolved show")
	}
	if len(season.Episodes) != 1 || season.Episodes[0].Title != "Welcome, to the Playground" {
		t.Fatalf("unexpected episodes: %+v", season.Episodes)
	}
	if season.Episodes[0].ImdbID != "tt11126995" {
		t.Errorf("expected episode imdb id to be carried over, got %q", season.Episodes[0].ImdbID)
	}
}

func TestClient_Index_NoImdbID(t *testing.T) {
	client := NewClient("key", nil)
	if _, err := client.Index(context.Background(), &mediaitem.Item{ID: 1}); err == nil {
		t.Fatal("expected an error for an item with no imdb_id")
	}
}

func TestClient_Index_NoMatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/imdb/tt0000000", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	client, closeFn := newTestServer(t, mux)
	defer closeFn()

	if _, err := client.Index(context.Background(), &mediaitem.Item{ImdbID: "tt0000000"}); err == nil {
		t.Fatal("expected an error when trakt has no match for the imdb id")
	}
}

func TestContentSource_Fetch_DedupesAndSkipsUnknownEntries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me/lists/to-watch/items", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"type":"movie","movie":{"ids":{"imdb":"tt1"}}},
			{"type":"movie","movie":{"ids":{"imdb":"tt1"}}},
			{"type":"show","show":{"ids":{"imdb":"tt2"}}},
			{"type":"person"},
			{"type":"movie","movie":{"ids":{"imdb":""}}}
		]`))
	})
	client, closeFn := newTestServer(t, mux)
	defer closeFn()

	source := NewContentSource(client, []string{"users/me/lists/to-watch"})
	items, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 deduped items, got %d: %+v", len(items), items)
	}
	if items[0].ImdbID != "tt1" || items[0].Kind != mediaitem.KindMovie {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[1].ImdbID != "tt2" || items[1].Kind != mediaitem.KindShow {
		t.Errorf("unexpected second item: %+v", items[1])
	}
	for _, it := range items {
		if it.RequestedBy != "trakt_content" || it.RequestedAt == nil {
			t.Errorf("expected every fetched item to carry requested metadata, got %+v", it)
		}
	}
}

func TestContentSource_Name(t *testing.T) {
	source := NewContentSource(NewClient("key", nil), nil)
	if source.Name() != transition.StartedByTraktContent {
		t.Errorf("Name() = %q, want %q", source.Name(), transition.StartedByTraktContent)
	}
}
