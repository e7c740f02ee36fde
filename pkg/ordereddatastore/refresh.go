package ordereddatastore

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RefreshEntries fetches a fresh snapshot of every entry concurrently, with
// at most limit requests in flight (limit <= 0 means no limit). The result is
// in input order. The first error cancels the remaining fetches and is
// returned.
func RefreshEntries(ctx context.Context, entries []*Entry, limit int) ([]*Entry, error) {
	out := make([]*Entry, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			fresh, err := e.Fetch(ctx)
			if err != nil {
				return err
			}
			out[i] = fresh
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
