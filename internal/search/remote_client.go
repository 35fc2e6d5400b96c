package search

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/owasp-nest/nest-api/internal/observability"
	"github.com/owasp-nest/nest-api/pkg/algolia"
)

// RawQuerier is the zero-based raw query API of a hosted search service.
type RawQuerier interface {
	Query(ctx context.Context, index, query string, page int) (algolia.Result, error)
}

// RemoteClient decodes raw hits from a hosted search service into T.
type RemoteClient[T any] struct {
	querier RawQuerier
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewRemoteClient wraps querier as a typed Client.
func NewRemoteClient[T any](querier RawQuerier, logger zerolog.Logger) *RemoteClient[T] {
	return &RemoteClient[T]{
		querier: querier,
		logger:  logger.With().Str("component", "remote_search_client").Logger(),
		tracer:  otel.Tracer("github.com/owasp-nest/nest-api/internal/search"),
	}
}

// Search converts the 1-indexed page to the service's zero-based page.
func (c *RemoteClient[T]) Search(ctx context.Context, index, query string, page int) (Page[T], error) {
	if page < 1 {
		page = 1
	}

	ctx, span := c.tracer.Start(ctx, "search.remote", trace.WithAttributes(
		attribute.String("search.index", index),
		attribute.Int("search.page", page),
	))
	defer span.End()

	start := time.Now()
	result, err := c.querier.Query(ctx, index, query, page-1)
	observability.SearchLatency().WithLabelValues(index).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		observability.SearchRequests().WithLabelValues(index, "error").Inc()
		return Page[T]{}, err
	}

	items := make([]T, 0, len(result.Hits))
	for i, hit := range result.Hits {
		var item T
		if err := json.Unmarshal(hit, &item); err != nil {
			span.RecordError(err)
			observability.SearchRequests().WithLabelValues(index, "error").Inc()
			return Page[T]{}, fmt.Errorf("decode hit %d of %s: %w", i, index, err)
		}
		items = append(items, item)
	}

	observability.SearchRequests().WithLabelValues(index, "success").Inc()

	return Page[T]{Items: items, TotalPages: result.TotalPages, TotalItems: result.TotalHits}, nil
}
