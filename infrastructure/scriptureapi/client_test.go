package scriptureapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"versegraph/domain/core/valueobjects"
	pkgerrors "versegraph/pkg/errors"
	"versegraph/pkg/observability"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(server.URL, 5*time.Second, zap.NewNop(), observability.NewNopMetrics())
	return client, server
}

func TestClient_GetVerse(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/verses/Genesis/1/1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"book":"Genesis","chapter":1,"verse":1,"text":"In the beginning"}`))
	}))

	key, _ := valueobjects.ParseVerseKey("Genesis-1-1")
	verse, err := client.GetVerse(context.Background(), key)
	require.NoError(t, err)

	assert.True(t, verse.Key.Equals(key))
	assert.Equal(t, "In the beginning", verse.Text)
}

func TestClient_GetVerse_NotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Verse not found"}`, http.StatusNotFound)
	}))

	key, _ := valueobjects.ParseVerseKey("Hezekiah-3-3")
	_, err := client.GetVerse(context.Background(), key)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestClient_GetVerse_UpstreamFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	key, _ := valueobjects.ParseVerseKey("Genesis-1-1")
	_, err := client.GetVerse(context.Background(), key)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsTransient(err))
}

func TestClient_GetNeighborhood(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/graph-data", r.URL.Path)
		assert.Equal(t, "Genesis", r.URL.Query().Get("book"))
		assert.Equal(t, "1", r.URL.Query().Get("chapter"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"source_book":"Genesis","source_chapter":1,"source_verse":1,
			 "target_book":"Genesis","target_chapter":1,"target_verse":3},
			{"source_book":"","source_chapter":0,"source_verse":0,
			 "target_book":"Genesis","target_chapter":1,"target_verse":5}
		]`))
	}))

	rels, err := client.GetNeighborhood(context.Background(), valueobjects.NewPageKey("Genesis", 1), 100)
	require.NoError(t, err)

	// The malformed record is skipped, not fatal.
	require.Len(t, rels, 1)
	assert.Equal(t, "Genesis-1-1", rels[0].Source.String())
	assert.Equal(t, "Genesis-1-3", rels[0].Target.String())
}

func TestClient_GetNeighborhood_EmptyWindow(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))

	rels, err := client.GetNeighborhood(context.Background(), valueobjects.NewPageKey("Obadiah", 1), 100)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestClient_GetCrossReferences(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cross-references/Genesis/1/1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"book":"Genesis","chapter":1,"verse":3,"text":"Let there be light"},
			{"book":"John","chapter":1,"verse":1,"text":"In the beginning was the Word"}
		]`))
	}))

	key, _ := valueobjects.ParseVerseKey("Genesis-1-1")
	refs, err := client.GetCrossReferences(context.Background(), key)
	require.NoError(t, err)

	require.Len(t, refs, 2)
	assert.Equal(t, "Genesis-1-3", refs[0].String())
	assert.Equal(t, "John-1-1", refs[1].String())
}

func TestClient_NetworkErrorMapped(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client := NewClient(server.URL, time.Second, zap.NewNop(), observability.NewNopMetrics())

	key, _ := valueobjects.ParseVerseKey("Genesis-1-1")
	_, err := client.GetVerse(context.Background(), key)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsTransient(err))
}

func TestClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/verses/Genesis/1/1" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"book":"Genesis","chapter":1,"verse":1,"text":"In the beginning"}`))
			return
		}
		http.Error(w, `{"detail":"Verse not found"}`, http.StatusNotFound)
	}))

	missing, _ := valueobjects.ParseVerseKey("Hezekiah-3-3")
	for i := 0; i < 8; i++ {
		_, err := client.GetVerse(context.Background(), missing)
		assert.True(t, pkgerrors.IsNotFound(err))
	}

	// A run of missing-verse lookups must not block lookups of verses
	// that exist.
	existing, _ := valueobjects.ParseVerseKey("Genesis-1-1")
	verse, err := client.GetVerse(context.Background(), existing)
	require.NoError(t, err)
	assert.Equal(t, "In the beginning", verse.Text)
}

func TestClient_CircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	key, _ := valueobjects.ParseVerseKey("Genesis-1-1")
	for i := 0; i < 6; i++ {
		_, err := client.GetVerse(context.Background(), key)
		require.Error(t, err)
	}

	// The breaker trips after five consecutive failures; the sixth call
	// never reaches the upstream.
	assert.Equal(t, 5, hits)
}
