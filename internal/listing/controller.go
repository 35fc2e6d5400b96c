// Package listing drives the search-backed listing pages: a free-text query,
// the current page, and the loading state around each remote fetch.
package listing

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/owasp-nest/nest-api/internal/search"
)

// State is a snapshot of a listing page.
type State[T any] struct {
	Index      string `json:"index"`
	Title      string `json:"title"`
	Query      string `json:"query"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	IsLoaded   bool   `json:"is_loaded"`
	Items      []T    `json:"items"`
}

// Options configures optional observers of a controller.
type Options[T any] struct {
	// OnChange receives every state transition, including the Loading ones.
	OnChange func(State[T])
	// OnScrollTop is invoked when a page change asks the view to scroll to the top.
	OnScrollTop func()
}

// Controller owns the state of one mounted listing page. It is safe for
// concurrent use; when fetches overlap only the most recently issued one is
// applied.
type Controller[T any] struct {
	client search.Client[T]
	logger zerolog.Logger
	opts   Options[T]

	mu     sync.Mutex
	state  State[T]
	latest uint64

	// Deliveries to OnChange are serialized and ordered by request token;
	// a snapshot queued while another is being delivered replaces any
	// older pending one.
	dmu        sync.Mutex
	delivering bool
	pending    State[T]
	hasPending bool
	notified   uint64
}

// NewController builds a controller backed by client.
func NewController[T any](client search.Client[T], logger zerolog.Logger, opts Options[T]) *Controller[T] {
	return &Controller[T]{
		client: client,
		logger: logger.With().Str("component", "listing_controller").Logger(),
		opts:   opts,
		state:  State[T]{Page: 1, Items: []T{}},
	}
}

// Initialize resets the page for index and loads the unfiltered first page.
func (c *Controller[T]) Initialize(ctx context.Context, index, title string) {
	c.InitializeQuery(ctx, index, title, "")
}

// InitializeQuery resets the page for index with query already entered and
// loads its first page with a single fetch.
func (c *Controller[T]) InitializeQuery(ctx context.Context, index, title, query string) {
	c.mu.Lock()
	c.state = State[T]{Index: index, Title: title, Query: query, Page: 1, Items: []T{}}
	token, snapshot := c.beginLocked()
	c.mu.Unlock()

	c.notify(token, snapshot)
	c.fetch(ctx, token, snapshot.Index, snapshot.Query, snapshot.Page)
}

// Search replaces the query and goes back to the first page.
func (c *Controller[T]) Search(ctx context.Context, query string) {
	c.mu.Lock()
	c.state.Query = query
	c.state.Page = 1
	token, snapshot := c.beginLocked()
	c.mu.Unlock()

	c.notify(token, snapshot)
	c.fetch(ctx, token, snapshot.Index, snapshot.Query, snapshot.Page)
}

// ChangePage loads page for the current query. Callers keep page within
// [1, TotalPages]; see ClampPage.
func (c *Controller[T]) ChangePage(ctx context.Context, page int) {
	if page < 1 {
		page = 1
	}

	c.mu.Lock()
	c.state.Page = page
	token, snapshot := c.beginLocked()
	c.mu.Unlock()

	c.notify(token, snapshot)
	if c.opts.OnScrollTop != nil {
		c.opts.OnScrollTop()
	}
	c.fetch(ctx, token, snapshot.Index, snapshot.Query, snapshot.Page)
}

// Snapshot returns a copy of the current state.
func (c *Controller[T]) Snapshot() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

func (c *Controller[T]) beginLocked() (uint64, State[T]) {
	c.latest++
	c.state.IsLoaded = false
	return c.latest, c.copyLocked()
}

func (c *Controller[T]) fetch(ctx context.Context, token uint64, index, query string, page int) {
	result, err := c.client.Search(ctx, index, query, page)

	c.mu.Lock()
	if token != c.latest {
		c.mu.Unlock()
		c.logger.Debug().Str("index", index).Str("query", query).Int("page", page).Msg("discarding stale search response")
		return
	}

	if err != nil {
		c.logger.Error().Err(err).Str("index", index).Str("query", query).Int("page", page).Msg("search request failed")
	} else {
		items := result.Items
		if items == nil {
			items = []T{}
		}
		c.state.Items = items
		c.state.TotalPages = result.TotalPages
	}
	c.state.IsLoaded = true
	snapshot := c.copyLocked()
	c.mu.Unlock()

	c.notify(token, snapshot)
}

func (c *Controller[T]) notify(token uint64, state State[T]) {
	if c.opts.OnChange == nil {
		return
	}

	c.dmu.Lock()
	if token < c.notified {
		c.dmu.Unlock()
		return
	}
	c.notified = token
	c.pending = state
	c.hasPending = true
	if c.delivering {
		c.dmu.Unlock()
		return
	}

	c.delivering = true
	for c.hasPending {
		next := c.pending
		c.pending = State[T]{}
		c.hasPending = false
		c.dmu.Unlock()

		c.opts.OnChange(next)

		c.dmu.Lock()
	}
	c.delivering = false
	c.dmu.Unlock()
}

func (c *Controller[T]) copyLocked() State[T] {
	snapshot := c.state
	snapshot.Items = append(make([]T, 0, len(c.state.Items)), c.state.Items...)
	return snapshot
}

// ClampPage keeps a requested page inside [1, totalPages].
func ClampPage(page, totalPages int) int {
	if totalPages < 1 {
		return 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}
