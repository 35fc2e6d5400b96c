// Package search defines the paged-search contract consumed by listing pages
// and the client implementations behind it.
package search

import "context"

// Page is one page of search results in relevance order.
type Page[T any] struct {
	Items      []T   `json:"items"`
	TotalPages int   `json:"total_pages"`
	TotalItems int64 `json:"total_items"`
}

// Client runs a paged search. page is 1-indexed; an empty query matches everything.
type Client[T any] interface {
	Search(ctx context.Context, index, query string, page int) (Page[T], error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc[T any] func(ctx context.Context, index, query string, page int) (Page[T], error)

// Search calls f.
func (f ClientFunc[T]) Search(ctx context.Context, index, query string, page int) (Page[T], error) {
	return f(ctx, index, query, page)
}
