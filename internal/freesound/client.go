package freesound

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"narrative-server/internal/model"
)

const (
	defaultBaseURL = "https://freesound.org/apiv2"
	defaultTimeout = 5 * time.Second

	searchPageSize = 10
	// Диапазон длительности в фильтрах шире запрошенной: луп можно
	// и зациклить, и обрезать на клиенте.
	durationFilter = "duration:[10 TO 120]"

	tagFilter = durationFilter + " (tag:music OR tag:loop OR tag:ambient OR tag:background)"
	// Общие запросы и так широкие, фильтр тегов для них уже.
	genericTagFilter = durationFilter + " (tag:music OR tag:loop OR tag:ambient)"
)

// genreSearchTerms — термины поиска по жанрам. Для неизвестного жанра
// используется genericTerms.
var genreSearchTerms = map[string][]string{
	"terror":          {"dark ambient", "horror", "suspense", "creepy", "ominous"},
	"ciencia ficción": {"sci-fi", "space", "electronic", "futuristic", "synth"},
	"fantasía":        {"orchestral", "magical", "ethereal", "fantasy", "epic"},
	"romance":         {"piano", "soft", "romantic", "gentle", "love"},
	"thriller":        {"tension", "suspense", "dramatic", "intense", "action"},
	"misterio":        {"mysterious", "enigmatic", "ambient", "subtle", "intrigue"},
	"aventura":        {"epic", "adventure", "heroic", "orchestral", "uplifting"},
	"drama":           {"emotional", "dramatic", "cinematic", "melancholic", "strings"},
	"histórico":       {"classical", "period", "orchestral", "traditional", "baroque"},
	"distopía":        {"dark", "industrial", "dystopian", "electronic", "atmospheric"},
}

var genericTerms = []string{"ambient", "background"}

var genericQueries = []string{
	"ambient music loop",
	"background music",
	"atmospheric sound",
	"cinematic music",
	"mood music",
}

// Config содержит конфигурацию клиента Freesound.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client ищет аудиосэмплы в Freesound: упорядоченная цепочка стратегий
// поиска, первая вернувшая результат с пригодным preview URL побеждает.
// Результаты кэшируются на время жизни процесса.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	cacheMu sync.RWMutex
	cache   map[string]*model.AudioSample
}

// NewClient создает клиент Freesound. Пустой APIKey допустим: поиск в
// этом случае всегда отвечает "не найдено", и вызывающая сторона
// откатывается на синтезированный эмбиент.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("FreesoundClient"),
		cache:      make(map[string]*model.AudioSample),
	}
}

// searchStrategy — одна попытка поиска; возвращает nil-сэмпл без ошибки,
// если стратегия ничего не нашла (следующая по порядку получает шанс).
type searchStrategy struct {
	name string
	run  func(ctx context.Context) (*model.AudioSample, error)
}

// SearchSample ищет сэмпл под жанр/настроение/длительность. Ошибки сети
// отдельных стратегий не прерывают каскад; если все стратегии исчерпаны,
// возвращается model.ErrNoSampleFound.
func (c *Client) SearchSample(ctx context.Context, genre, mood string, duration int) (*model.AudioSample, error) {
	cacheKey := fmt.Sprintf("%s-%s-%d", genre, mood, duration)

	c.cacheMu.RLock()
	cached, ok := c.cache[cacheKey]
	c.cacheMu.RUnlock()
	if ok {
		c.logger.Debug("Sample served from cache", zap.String("key", cacheKey))
		return cached, nil
	}

	if c.apiKey == "" {
		c.logger.Debug("Freesound API key is not configured, skipping search")
		return nil, model.ErrNoSampleFound
	}

	terms, ok := genreSearchTerms[strings.ToLower(genre)]
	if !ok {
		terms = genericTerms
	}

	strategies := []searchStrategy{
		{name: "tag_filtered", run: func(ctx context.Context) (*model.AudioSample, error) {
			return c.trySearch(ctx, buildQuery(terms, mood), tagFilter)
		}},
		{name: "no_tags", run: func(ctx context.Context) (*model.AudioSample, error) {
			return c.trySearch(ctx, buildQuery(terms, mood), durationFilter)
		}},
		{name: "single_terms", run: func(ctx context.Context) (*model.AudioSample, error) {
			limit := len(terms)
			if limit > 3 {
				limit = 3
			}
			for _, term := range terms[:limit] {
				sample, err := c.trySearch(ctx, buildQuery([]string{term}, mood), tagFilter)
				if err != nil {
					return nil, err
				}
				if sample != nil {
					return sample, nil
				}
			}
			return nil, nil
		}},
		{name: "generic", run: func(ctx context.Context) (*model.AudioSample, error) {
			for _, query := range genericQueriesFor(genre) {
				sample, err := c.trySearch(ctx, query, genericTagFilter)
				if err != nil {
					return nil, err
				}
				if sample != nil {
					return sample, nil
				}
			}
			return nil, nil
		}},
	}

	for _, strategy := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sample, err := strategy.run(ctx)
		if err != nil {
			// Сетевые сбои одной стратегии не фатальны для каскада.
			c.logger.Warn("Search strategy failed",
				zap.String("strategy", strategy.name),
				zap.String("genre", genre),
				zap.Error(err))
			continue
		}
		if sample != nil {
			c.logger.Info("Sample found",
				zap.String("strategy", strategy.name),
				zap.String("name", sample.Name),
				zap.Float64("duration", sample.Duration))
			c.cacheMu.Lock()
			c.cache[cacheKey] = sample
			c.cacheMu.Unlock()
			return sample, nil
		}
	}

	c.logger.Info("No samples found after all strategies", zap.String("genre", genre), zap.String("mood", mood))
	return nil, model.ErrNoSampleFound
}

func buildQuery(terms []string, mood string) string {
	query := strings.Join(terms, " OR ")
	if mood != "" {
		query = fmt.Sprintf("(%s) %s", query, mood)
	}
	return query
}

// genericQueriesFor добавляет жанрово-специфичные запросы перед общими.
func genericQueriesFor(genre string) []string {
	queries := append([]string(nil), genericQueries...)
	genreLower := strings.ToLower(genre)
	switch {
	case strings.Contains(genreLower, "terror"), strings.Contains(genreLower, "horror"):
		queries = append([]string{"dark ambient", "horror music", "suspense music"}, queries...)
	case strings.Contains(genreLower, "ciencia ficción"), strings.Contains(genreLower, "sci-fi"):
		queries = append([]string{"sci-fi music", "electronic ambient", "space music"}, queries...)
	case strings.Contains(genreLower, "fantasía"), strings.Contains(genreLower, "fantasy"):
		queries = append([]string{"fantasy music", "epic music", "orchestral ambient"}, queries...)
	}
	return queries
}

// searchResponse — релевантная часть ответа /search/text/.
type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID       int               `json:"id"`
	Name     string            `json:"name"`
	Previews map[string]string `json:"previews"`
	Duration float64           `json:"duration"`
	Tags     []string          `json:"tags"`
}

// trySearch выполняет один запрос к /search/text/ и возвращает первый
// результат с пригодным preview, либо nil если результатов нет.
func (c *Client) trySearch(ctx context.Context, query, filter string) (*model.AudioSample, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("filter", filter)
	params.Set("sort", "rating_desc")
	params.Set("fields", "id,name,previews,duration,tags")
	params.Set("page_size", strconv.Itoa(searchPageSize))
	params.Set("token", c.apiKey)

	reqURL := c.baseURL + "/search/text/?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	for _, result := range decoded.Results {
		previewURL := result.Previews["preview-hq-mp3"]
		if previewURL == "" {
			previewURL = result.Previews["preview-lq-mp3"]
		}
		if previewURL == "" {
			continue
		}
		return &model.AudioSample{
			ID:         result.ID,
			Name:       result.Name,
			PreviewURL: previewURL,
			Duration:   result.Duration,
			Tags:       result.Tags,
		}, nil
	}

	return nil, nil
}
