package audit

import (
	"context"

	id "driftgate/pkg/domain"
	dErrors "driftgate/pkg/domain-errors"
)

// ChannelStore decouples event producers from slow sinks: Append hands the
// event to a Worker via the inbox, reads are served by the local query store.
// A full inbox rejects the append rather than blocking the caller.
type ChannelStore struct {
	inbox chan<- Event
	query Store
}

func NewChannelStore(inbox chan<- Event, query Store) *ChannelStore {
	return &ChannelStore{inbox: inbox, query: query}
}

func (s *ChannelStore) Append(_ context.Context, event Event) error {
	select {
	case s.inbox <- event:
		return nil
	default:
		return dErrors.New(dErrors.CodeUnavailable, "audit inbox full")
	}
}

func (s *ChannelStore) ListByRepo(ctx context.Context, repo id.RepoRef) ([]Event, error) {
	return s.query.ListByRepo(ctx, repo)
}

func (s *ChannelStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	return s.query.ListRecent(ctx, limit)
}
