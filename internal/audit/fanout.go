package audit

import (
	"context"
	"errors"

	id "driftgate/pkg/domain"
)

// Fanout appends to every store and reads from the first. It lets the server
// pair a queryable store with write-only sinks such as Kafka.
type Fanout struct {
	stores []Store
}

// NewFanout requires at least one store; the first serves reads.
func NewFanout(stores ...Store) *Fanout {
	return &Fanout{stores: stores}
}

func (f *Fanout) Append(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range f.stores {
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) ListByRepo(ctx context.Context, repo id.RepoRef) ([]Event, error) {
	return f.stores[0].ListByRepo(ctx, repo)
}

func (f *Fanout) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	return f.stores[0].ListRecent(ctx, limit)
}
