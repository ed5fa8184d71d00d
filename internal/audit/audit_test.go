package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "driftgate/pkg/domain"
	"driftgate/pkg/requestcontext"
)

func mustRepo(t *testing.T, slug string) id.RepoRef {
	t.Helper()
	repo, err := id.ParseRepoRef(slug)
	require.NoError(t, err)
	return repo
}

func TestPublisherStampsEvent(t *testing.T) {
	ctx := requestcontext.WithRequestID(context.Background(), "req-42")
	store := NewInMemoryStore()
	pub := NewPublisher(store)

	repo := mustRepo(t, "acme/webapp")
	require.NoError(t, pub.Emit(ctx, Event{
		Workspace: "acme",
		Repo:      repo,
		Action:    EventReportFinalized,
	}))

	events, err := pub.List(ctx, repo)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, "req-42", events[0].RequestID)
}

func TestPublisherKeepsExplicitFields(t *testing.T) {
	ctx := requestcontext.WithRequestID(context.Background(), "req-later")
	store := NewInMemoryStore()
	pub := NewPublisher(store)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := mustRepo(t, "acme/webapp")
	require.NoError(t, pub.Emit(ctx, Event{
		Repo:      repo,
		Action:    EventTargetSet,
		Timestamp: at,
		RequestID: "req-original",
	}))

	events, err := store.ListByRepo(ctx, repo)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, at, events[0].Timestamp)
	assert.Equal(t, "req-original", events[0].RequestID)
}

func TestInMemoryStoreListRecent(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	repo := mustRepo(t, "acme/webapp")
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, Event{Repo: repo, Action: EventCheckUpdated}))
	}

	recent, err := store.ListRecent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	all, err := store.ListRecent(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestWorkerAppendsFromInbox(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewInMemoryStore()
	inbox := make(chan Event, 4)
	worker := NewWorker(store, inbox, slog.New(slog.NewTextHandler(testWriter{t}, nil)))

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	repo := mustRepo(t, "acme/webapp")
	inbox <- Event{Repo: repo, Action: EventRemediationSubmitted}
	inbox <- Event{Repo: repo, Action: EventCheckUpdated}

	require.Eventually(t, func() bool {
		events, err := store.ListByRepo(context.Background(), repo)
		return err == nil && len(events) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

type failingStore struct{ Store }

func (failingStore) Append(context.Context, Event) error {
	return errors.New("sink down")
}

func TestWorkerDropsFailedAppend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inbox := make(chan Event, 1)
	worker := NewWorker(failingStore{}, inbox, slog.New(slog.NewTextHandler(testWriter{t}, nil)))

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	inbox <- Event{Repo: mustRepo(t, "acme/webapp"), Action: EventCheckUpdated}

	// The worker must survive the failed append and exit only on cancel.
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestFanoutAppendsToAll(t *testing.T) {
	ctx := context.Background()
	primary := NewInMemoryStore()
	secondary := NewInMemoryStore()
	fanout := NewFanout(primary, secondary)

	repo := mustRepo(t, "acme/webapp")
	require.NoError(t, fanout.Append(ctx, Event{Repo: repo, Action: EventOptOutChanged}))

	for _, s := range []*InMemoryStore{primary, secondary} {
		events, err := s.ListByRepo(ctx, repo)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	}

	// A failing member does not block the others.
	fanout = NewFanout(failingStore{}, secondary)
	err := fanout.Append(ctx, Event{Repo: repo, Action: EventOptOutChanged})
	require.Error(t, err)
	events, err := secondary.ListByRepo(ctx, repo)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestChannelStoreRejectsWhenFull(t *testing.T) {
	ctx := context.Background()
	inbox := make(chan Event, 1)
	store := NewChannelStore(inbox, NewInMemoryStore())

	repo := mustRepo(t, "acme/webapp")
	require.NoError(t, store.Append(ctx, Event{Repo: repo, Action: EventCheckUpdated}))

	err := store.Append(ctx, Event{Repo: repo, Action: EventCheckUpdated})
	require.Error(t, err)

	// Reads are served by the query store, not the inbox.
	events, err := store.ListByRepo(ctx, repo)
	require.NoError(t, err)
	assert.Empty(t, events)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
