package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/openaudio/discovery-indexer/internal/store"
	"github.com/openaudio/discovery-indexer/internal/store/schema"
)

// Stream and subject the rewards pipeline consumes from.
const (
	StreamName    = "CHALLENGES"
	SubjectPrefix = "challenges.events"
	defaultBatch  = 200
)

// JetStream is the slice of the JetStream API the relay uses.
// nats.JetStreamContext satisfies it.
type JetStream interface {
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Relay drains the challenge outbox table to JetStream. Events are
// deleted only after the broker acknowledges them, and the publish
// carries the deterministic event ID as the message ID so a crash
// between publish and delete cannot double-deliver.
type Relay struct {
	store     store.Store
	js        JetStream
	batchSize int
	interval  time.Duration
	log       *zap.Logger
}

// NewRelay creates a relay and makes sure the stream exists.
func NewRelay(st store.Store, js JetStream, interval time.Duration, log *zap.Logger) (*Relay, error) {
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	_, err := js.AddStream(&nats.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{SubjectPrefix + ".>"},
		Storage:    nats.FileStorage,
		Duplicates: 2 * time.Minute,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return nil, fmt.Errorf("failed to create challenge stream: %w", err)
	}

	return &Relay{
		store:     st,
		js:        js,
		batchSize: defaultBatch,
		interval:  interval,
		log:       log,
	}, nil
}

// Run drains the outbox until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.DrainOnce(ctx); err != nil {
				r.log.Warn("outbox drain failed", zap.Error(err))
			}
		}
	}
}

// DrainOnce publishes one batch of outbox events and deletes the
// acknowledged ones.
func (r *Relay) DrainOnce(ctx context.Context) error {
	events, err := r.store.ListChallengeEvents(ctx, r.batchSize)
	if err != nil {
		return fmt.Errorf("failed to read outbox: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	published := make([]string, 0, len(events))
	for _, event := range events {
		if err := r.publish(event); err != nil {
			// Keep the batch's earlier acks; the rest stays in the
			// outbox for the next drain.
			r.log.Warn("failed to publish challenge event",
				zap.String("event_id", event.ID),
				zap.Error(err))
			break
		}
		published = append(published, event.ID)
	}

	if len(published) == 0 {
		return nil
	}
	if err := r.store.DeleteChallengeEvents(ctx, published); err != nil {
		return fmt.Errorf("failed to clear published events: %w", err)
	}
	r.log.Debug("drained challenge events", zap.Int("count", len(published)))
	return nil
}

func (r *Relay) publish(event *schema.ChallengeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", SubjectPrefix, event.EventType)
	_, err = r.js.Publish(subject, payload, nats.MsgId(event.ID))
	return err
}
