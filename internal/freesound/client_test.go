package freesound

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"narrative-server/internal/model"
)

const sampleResponse = `{
	"results": [
		{
			"id": 123,
			"name": "dark ambient loop",
			"previews": {
				"preview-hq-mp3": "https://freesound.org/previews/123-hq.mp3",
				"preview-lq-mp3": "https://freesound.org/previews/123-lq.mp3"
			},
			"duration": 45.5,
			"tags": ["ambient", "dark", "loop"]
		}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: server.URL}, zap.NewNop())
}

func TestSearchSample_FirstStrategyHit(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/search/text/", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("token"))
		assert.Contains(t, r.URL.Query().Get("filter"), "duration:[10 TO 120]")
		fmt.Fprint(w, sampleResponse)
	})

	sample, err := client.SearchSample(context.Background(), "terror", "aterrador", 60)
	require.NoError(t, err)

	assert.Equal(t, 123, sample.ID)
	assert.Equal(t, "https://freesound.org/previews/123-hq.mp3", sample.PreviewURL)
	assert.EqualValues(t, 1, calls.Load())
}

func TestSearchSample_CachesResults(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, sampleResponse)
	})

	first, err := client.SearchSample(context.Background(), "terror", "aterrador", 60)
	require.NoError(t, err)
	second, err := client.SearchSample(context.Background(), "terror", "aterrador", 60)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// Повторный идентичный запрос обслуживается из кэша.
	assert.EqualValues(t, 1, calls.Load())

	// Другая длительность — другой ключ кэша.
	_, err = client.SearchSample(context.Background(), "terror", "aterrador", 90)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSearchSample_FallsThroughStrategies(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Первая стратегия (с тегами) пуста, вторая (без тегов) находит.
		if calls.Add(1) == 1 {
			fmt.Fprint(w, `{"results": []}`)
			return
		}
		fmt.Fprint(w, sampleResponse)
	})

	sample, err := client.SearchSample(context.Background(), "misterio", "", 60)
	require.NoError(t, err)
	assert.Equal(t, 123, sample.ID)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSearchSample_GenericStrategyUsesNarrowTagFilter(t *testing.T) {
	var genericFilter string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Пустые ответы гонят каскад до общих запросов.
		filter := r.URL.Query().Get("filter")
		if r.URL.Query().Get("query") == "ambient music loop" {
			genericFilter = filter
			fmt.Fprint(w, sampleResponse)
			return
		}
		fmt.Fprint(w, `{"results": []}`)
	})

	sample, err := client.SearchSample(context.Background(), "polka", "", 60)
	require.NoError(t, err)
	assert.Equal(t, 123, sample.ID)

	// Общая стратегия ищет с узким фильтром тегов, без tag:background.
	assert.Contains(t, genericFilter, "tag:ambient")
	assert.NotContains(t, genericFilter, "tag:background")
}

func TestSearchSample_LowQualityPreviewFallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"results": [
				{"id": 1, "name": "no previews", "previews": {}, "duration": 30},
				{"id": 2, "name": "lq only", "previews": {"preview-lq-mp3": "https://freesound.org/previews/2-lq.mp3"}, "duration": 30}
			]
		}`)
	})

	sample, err := client.SearchSample(context.Background(), "drama", "", 60)
	require.NoError(t, err)

	// Результат без preview пропускается, lq берётся за неимением hq.
	assert.Equal(t, 2, sample.ID)
	assert.Equal(t, "https://freesound.org/previews/2-lq.mp3", sample.PreviewURL)
}

func TestSearchSample_NothingFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": []}`)
	})

	_, err := client.SearchSample(context.Background(), "aventura", "", 60)
	assert.ErrorIs(t, err, model.ErrNoSampleFound)
}

func TestSearchSample_ServerErrorsDoNotAbortCascade(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, sampleResponse)
	})

	sample, err := client.SearchSample(context.Background(), "romance", "", 60)
	require.NoError(t, err)
	assert.Equal(t, 123, sample.ID)
}

func TestSearchSample_WithoutAPIKey(t *testing.T) {
	client := NewClient(Config{}, zap.NewNop())

	_, err := client.SearchSample(context.Background(), "terror", "", 60)
	assert.ErrorIs(t, err, model.ErrNoSampleFound)
}
