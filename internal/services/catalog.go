package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moviememo/internal/metrics"
	"github.com/desertthunder/moviememo/internal/models"
	"github.com/desertthunder/moviememo/internal/shared"
	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultCatalogURL = "https://api.themoviedb.org/3"
	DefaultLanguage   = "en-US"
	catalogClientName = "catalog"
)

// CatalogOpts configures a [CatalogClient].
type CatalogOpts struct {
	BaseURL     string
	BearerToken string
	Language    string
	Timeout     time.Duration
	RateLimit   float64 // requests per second, 0 disables limiting
	Burst       int
	CacheTTL    time.Duration // 0 disables the detail cache
	Transport   http.RoundTripper
	Metrics     metrics.MetricsCollector
	Logger      *log.Logger
}

// CatalogClient reads movie listings and details from TMDB.
type CatalogClient struct {
	baseURL    string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
	details    *cache.Cache
	metrics    metrics.MetricsCollector
	logger     *log.Logger
}

// NewCatalogClient creates a CatalogClient authenticated with opts.BearerToken.
func NewCatalogClient(opts CatalogOpts) *CatalogClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultCatalogURL
	}
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	base := metrics.InstrumentTransport(opts.Transport, opts.Metrics, catalogClientName)
	transport := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.BearerToken, TokenType: "Bearer"}),
		Base:   base,
	}

	c := &CatalogClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		language:   opts.Language,
		httpClient: &http.Client{Timeout: opts.Timeout, Transport: transport},
		limiter:    rate.NewLimiter(limit, opts.Burst),
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
	if opts.CacheTTL > 0 {
		c.details = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return c
}

type moviePage struct {
	Page         int            `json:"page"`
	Results      []models.Movie `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

// Trending returns this week's trending movies.
func (c *CatalogClient) Trending(ctx context.Context, page int) MoviesResult {
	return c.list(ctx, "/trending/movie/week", page)
}

// Popular returns the current popular movies.
func (c *CatalogClient) Popular(ctx context.Context, page int) MoviesResult {
	return c.list(ctx, "/movie/popular", page)
}

func (c *CatalogClient) list(ctx context.Context, endpoint string, page int) MoviesResult {
	if page < 1 {
		page = 1
	}
	params := url.Values{"page": {strconv.Itoa(page)}}

	var result moviePage
	status, msg, err := c.doRequest(ctx, endpoint, params, &result)
	switch {
	case err != nil:
		return MoviesResult{Error: transportMessage(err)}
	case status == http.StatusNotFound:
		return MoviesResult{Success: true, Movies: []models.Movie{}, Page: page}
	case msg != "":
		return MoviesResult{Error: msg}
	}

	if result.Results == nil {
		result.Results = []models.Movie{}
	}
	return MoviesResult{
		Success:      true,
		Movies:       result.Results,
		Page:         result.Page,
		TotalPages:   result.TotalPages,
		TotalResults: result.TotalResults,
	}
}

// Movie fetches the details of one movie. Unlike other lookups a missing movie is a failure
// carrying the catalog's message.
func (c *CatalogClient) Movie(ctx context.Context, id string) MovieResult {
	id = strings.TrimSpace(id)
	if id == "" {
		return MovieResult{Error: "movie id is required"}
	}

	if c.details != nil {
		if cached, ok := c.details.Get(id); ok {
			movie := cached.(models.Movie)
			return MovieResult{Success: true, Movie: &movie}
		}
	}

	var movie models.Movie
	_, msg, err := c.doRequest(ctx, "/movie/"+url.PathEscape(id), nil, &movie)
	switch {
	case err != nil:
		return MovieResult{Error: transportMessage(err)}
	case msg != "":
		return MovieResult{Error: msg}
	}

	if c.details != nil {
		c.details.SetDefault(id, movie)
	}
	return MovieResult{Success: true, Movie: &movie}
}

// doRequest performs a rate limited GET. A non-2xx response yields its status and message with a nil error.
func (c *CatalogClient) doRequest(ctx context.Context, endpoint string, params url.Values, result any) (int, string, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("language", c.language)
	fullURL := c.baseURL + endpoint + "?" + params.Encode()

	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, "", fmt.Errorf("rate limiter: %w", err)
	}
	c.metrics.RecordRateLimitWait(catalogClientName, time.Since(waitStart))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("catalog request", "endpoint", endpoint, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiResp := &APIResponse{StatusCode: resp.StatusCode, Body: body}
		_ = json.Unmarshal(body, &apiResp.JSONData)
		return resp.StatusCode, apiResp.Message(), nil
	}

	if err := json.Unmarshal(body, result); err != nil {
		return resp.StatusCode, fmt.Sprintf("failed to decode response: %v", err), nil
	}
	return resp.StatusCode, "", nil
}
