package nestgraphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const myProgramsQuery = `query GetMyPrograms { myPrograms { programs { key name } } }`

const maxResponseBytes = 4 << 20

var (
	// ErrMissingEndpoint is returned when no GraphQL URL is configured.
	ErrMissingEndpoint = errors.New("graphql endpoint must be provided")
	// ErrMissingToken is returned when a query is attempted without the caller's bearer token.
	ErrMissingToken = errors.New("graphql bearer token must be provided")
	// ErrResponseTooLarge is returned when a response body exceeds the read limit.
	ErrResponseTooLarge = errors.New("graphql response too large")
)

// Config controls the GraphQL transport.
type Config struct {
	URL      string
	Timeout  time.Duration
	RetryMax int
}

// Program is the subset of a mentorship program returned by myPrograms.
type Program struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Client talks to the Nest GraphQL API.
type Client struct {
	http   *retryablehttp.Client
	url    string
	logger zerolog.Logger
}

// New builds a GraphQL client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		return nil, ErrMissingEndpoint
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

	return &Client{
		http:   retryClient,
		url:    endpoint,
		logger: logger.With().Str("component", "graphql_client").Logger(),
	}, nil
}

type request struct {
	Query string `json:"query"`
}

// MyPrograms returns the programs administered by the bearer's user. A null
// list in the response yields a nil slice.
func (c *Client) MyPrograms(ctx context.Context, bearer string) ([]Program, error) {
	payload, err := c.do(ctx, myProgramsQuery, bearer)
	if err != nil {
		return nil, err
	}

	list := gjson.GetBytes(payload, "data.myPrograms.programs")
	if !list.Exists() || list.Type == gjson.Null {
		return nil, nil
	}

	programs := make([]Program, 0, len(list.Array()))
	for _, item := range list.Array() {
		programs = append(programs, Program{
			Key:  item.Get("key").String(),
			Name: item.Get("name").String(),
		})
	}
	return programs, nil
}

func (c *Client) do(ctx context.Context, query, bearer string) ([]byte, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return nil, ErrMissingToken
	}

	body, err := json.Marshal(request{Query: query})
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read graphql response: %w", err)
	}
	if len(payload) > maxResponseBytes {
		return nil, ErrResponseTooLarge
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graphql endpoint returned %d", resp.StatusCode)
	}

	if errs := gjson.GetBytes(payload, "errors"); errs.IsArray() && len(errs.Array()) > 0 {
		return nil, fmt.Errorf("graphql error: %s", errs.Array()[0].Get("message").String())
	}

	c.logger.Debug().Int("bytes", len(payload)).Msg("graphql query completed")
	return payload, nil
}
