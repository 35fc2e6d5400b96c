package algolia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const maxResponseBytes = 8 << 20

// ErrResponseTooLarge is returned when a search response exceeds the read limit.
var ErrResponseTooLarge = errors.New("search response too large")

// Config describes how to reach an Algolia-compatible search service.
type Config struct {
	AppID       string
	APIKey      string
	BaseURL     string
	IndexPrefix string
	HitsPerPage int
	Timeout     time.Duration
	RetryMax    int
}

// Result is one page of raw hits as returned by the service.
type Result struct {
	Hits       []json.RawMessage
	Page       int
	TotalPages int
	TotalHits  int64
}

// Client queries search indexes over HTTP.
type Client struct {
	http        *retryablehttp.Client
	baseURL     string
	appID       string
	apiKey      string
	indexPrefix string
	hitsPerPage int
	logger      zerolog.Logger
}

// New creates a search client. The base URL defaults to the hosted DSN of the application.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.AppID) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("algolia app id and api key must be provided")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s-dsn.algolia.net", strings.ToLower(cfg.AppID))
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid algolia base url: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = cfg.RetryMax
	if retryClient.RetryMax < 0 {
		retryClient.RetryMax = 0
	}
	retryClient.RetryWaitMin = 50 * time.Millisecond
	retryClient.RetryWaitMax = time.Second
	if cfg.Timeout > 0 {
		retryClient.HTTPClient.Timeout = cfg.Timeout
	}

	hitsPerPage := cfg.HitsPerPage
	if hitsPerPage <= 0 {
		hitsPerPage = 25
	}

	return &Client{
		http:        retryClient,
		baseURL:     baseURL,
		appID:       cfg.AppID,
		apiKey:      cfg.APIKey,
		indexPrefix: cfg.IndexPrefix,
		hitsPerPage: hitsPerPage,
		logger:      logger.With().Str("component", "algolia_client").Logger(),
	}, nil
}

type queryBody struct {
	Query       string `json:"query"`
	Page        int    `json:"page"`
	HitsPerPage int    `json:"hitsPerPage"`
}

// Query runs a search against index. page is zero-based, as the service expects.
func (c *Client) Query(ctx context.Context, index, query string, page int) (Result, error) {
	if page < 0 {
		page = 0
	}

	body, err := json.Marshal(queryBody{Query: query, Page: page, HitsPerPage: c.hitsPerPage})
	if err != nil {
		return Result{}, err
	}

	endpoint := fmt.Sprintf("%s/1/indexes/%s/query", c.baseURL, url.PathEscape(c.indexPrefix+index))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Algolia-Application-Id", c.appID)
	req.Header.Set("X-Algolia-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read search response: %w", err)
	}
	if len(payload) > maxResponseBytes {
		return Result{}, ErrResponseTooLarge
	}

	if resp.StatusCode != http.StatusOK {
		message := gjson.GetBytes(payload, "message").String()
		return Result{}, fmt.Errorf("search service returned %d: %s", resp.StatusCode, message)
	}

	parsed := gjson.ParseBytes(payload)
	hits := parsed.Get("hits").Array()
	result := Result{
		Hits:       make([]json.RawMessage, 0, len(hits)),
		Page:       int(parsed.Get("page").Int()),
		TotalPages: int(parsed.Get("nbPages").Int()),
		TotalHits:  parsed.Get("nbHits").Int(),
	}
	for _, hit := range hits {
		result.Hits = append(result.Hits, json.RawMessage(hit.Raw))
	}

	c.logger.Debug().Str("index", index).Int("page", page).Int("hits", len(result.Hits)).Msg("search query completed")

	return result, nil
}
