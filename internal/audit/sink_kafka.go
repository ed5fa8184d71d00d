package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	id "driftgate/pkg/domain"
	dErrors "driftgate/pkg/domain-errors"
)

// KafkaSink publishes events to a Kafka topic, keyed by repository slug so
// one repo's history stays ordered within a partition. It is write-only;
// wire it behind a Fanout with a queryable store.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects to the brokers and ensures the topic exists.
func NewKafkaSink(ctx context.Context, brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, 3, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", err)
	}
	for _, r := range resp {
		if r.Err != nil && !isTopicExists(r.Err) {
			client.Close()
			return nil, fmt.Errorf("ensure audit topic %s: %w", r.Topic, r.Err)
		}
	}

	return &KafkaSink{client: client, topic: topic}, nil
}

func isTopicExists(err error) bool {
	return errors.Is(err, kerr.TopicAlreadyExists)
}

func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Repo.Slug()),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// ListByRepo is unsupported; the sink is write-only.
func (s *KafkaSink) ListByRepo(context.Context, id.RepoRef) ([]Event, error) {
	return nil, dErrors.New(dErrors.CodeInternal, "kafka audit sink is write-only")
}

// ListRecent is unsupported; the sink is write-only.
func (s *KafkaSink) ListRecent(context.Context, int) ([]Event, error) {
	return nil, dErrors.New(dErrors.CodeInternal, "kafka audit sink is write-only")
}

func (s *KafkaSink) Close() {
	s.client.Close()
}
