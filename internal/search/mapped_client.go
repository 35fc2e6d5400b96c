package search

import "context"

// Map converts the items of every page returned by client with fn.
func Map[S, T any](client Client[S], fn func(S) T) Client[T] {
	return ClientFunc[T](func(ctx context.Context, index, query string, page int) (Page[T], error) {
		result, err := client.Search(ctx, index, query, page)
		if err != nil {
			return Page[T]{}, err
		}

		items := make([]T, 0, len(result.Items))
		for _, item := range result.Items {
			items = append(items, fn(item))
		}
		return Page[T]{Items: items, TotalPages: result.TotalPages, TotalItems: result.TotalItems}, nil
	})
}
