package api

import (
	"context"
	"fmt"
	"time"
)

// DefaultPaginationTimeout bounds a full sweep when the caller's context
// has no deadline.
const DefaultPaginationTimeout = 10 * time.Minute

// DefaultPageSize is the page size requested from list endpoints.
const DefaultPageSize = 100

// PageFetcher fetches the page that starts at cursor and returns its items
// and the cursor of the next page ("" when there is none).
type PageFetcher[T any] func(ctx context.Context, cursor string) ([]T, string, error)

// PageVisitor receives each page in order, together with the cursor that
// resumes after it. Returning an error stops the sweep.
type PageVisitor[T any] func(items []T, next string) error

// Paginate walks a cursor-paginated endpoint starting at start ("" for the
// beginning) until the server returns an empty cursor. Empty pages with a
// non-empty cursor are followed, not treated as the end.
func Paginate[T any](ctx context.Context, start string, fetch PageFetcher[T], visit PageVisitor[T]) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultPaginationTimeout)
		defer cancel()
	}

	seen := make(map[string]struct{})
	cursor := start
	for {
		items, next, err := fetch(ctx, cursor)
		if err != nil {
			return err
		}
		if err := visit(items, next); err != nil {
			return err
		}
		if next == "" {
			return nil
		}
		if _, dup := seen[next]; dup || next == cursor {
			return fmt.Errorf("%w: %q", ErrCursorLoop, next)
		}
		seen[next] = struct{}{}
		cursor = next
	}
}

// collect gathers every item of a paginated endpoint.
func collect[T any](ctx context.Context, fetch PageFetcher[T]) ([]T, error) {
	all := []T{}
	err := Paginate(ctx, "", fetch, func(items []T, _ string) error {
		all = append(all, items...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}
