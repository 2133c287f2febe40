package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	lferrors "github.com/vnykmshr/leaderflow/pkg/common/errors"
	"github.com/vnykmshr/leaderflow/pkg/common/validation"
	"github.com/vnykmshr/leaderflow/pkg/event"
	"github.com/vnykmshr/leaderflow/pkg/metrics"
)

// ListClient is the subset of redis.UniversalClient used by RedisList.
type ListClient interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

var _ ListClient = (redis.UniversalClient)(nil)

// Message is the JSON form of an event stored in a Redis list. ID is
// optional; a random one is assigned when it is empty.
type Message struct {
	ID       string          `json:"id,omitempty"`
	Category string          `json:"category"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// EncodeMessage returns the list element for ev. The payload must be
// JSON-encodable.
func EncodeMessage(ev event.Event) ([]byte, error) {
	payload, err := json.Marshal(ev.Payload())
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload of %s: %w", ev, err)
	}
	return json.Marshal(Message{
		ID:       ev.ID(),
		Category: string(ev.Category()),
		Payload:  payload,
	})
}

// DecodeMessage parses a list element into an event. The payload is
// decoded into the generic JSON types (map[string]any, []any, float64, ...).
func DecodeMessage(data []byte) (event.Event, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return event.Event{}, fmt.Errorf("malformed event message: %w", err)
	}
	if msg.Category == "" {
		return event.Event{}, lferrors.NewValidationError("source", "category", msg.Category, "cannot be empty")
	}

	var payload any
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return event.Event{}, fmt.Errorf("malformed event payload: %w", err)
		}
	}

	if msg.ID == "" {
		return event.New(event.Category(msg.Category), payload), nil
	}
	return event.NewWithID(msg.ID, event.Category(msg.Category), payload), nil
}

// RedisListConfig configures a RedisList source.
type RedisListConfig struct {
	// Name identifies the source in logs and metrics.
	Name string

	// Client is usually a redis.UniversalClient.
	Client ListClient

	// Key is the list to pop from.
	Key string

	// PopTimeout is the BLPOP timeout. Defaults to one second.
	PopTimeout time.Duration

	// RetryDelay is the pause after a Redis error. Defaults to one second.
	RetryDelay time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Registry
}

// RedisList pops events from the head of a Redis list.
type RedisList struct {
	client     ListClient
	key        string
	popTimeout time.Duration
	retryDelay time.Duration
	instruments
}

// NewRedisList creates a Redis list source.
func NewRedisList(config RedisListConfig) (*RedisList, error) {
	if err := validation.ValidateNotEmpty("source", "name", config.Name); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotEmpty("source", "key", config.Key); err != nil {
		return nil, err
	}
	if config.Client == nil {
		return nil, validation.ValidateNotNil("source", "client", nil)
	}
	if err := validation.ValidateNonNegativeDuration("source", "pop_timeout", config.PopTimeout); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeDuration("source", "retry_delay", config.RetryDelay); err != nil {
		return nil, err
	}

	popTimeout := config.PopTimeout
	if popTimeout == 0 {
		popTimeout = time.Second
	}
	retryDelay := config.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}

	return &RedisList{
		client:      config.Client,
		key:         config.Key,
		popTimeout:  popTimeout,
		retryDelay:  retryDelay,
		instruments: newInstruments("redis", config.Name, config.Logger, config.Metrics),
	}, nil
}

// Name returns the source name.
func (r *RedisList) Name() string {
	return r.name
}

// Run pops and submits events until ctx is done or sub is closed. Elements
// that cannot be decoded are logged and dropped; elements sub does not
// accept are pushed back onto the list.
func (r *RedisList) Run(ctx context.Context, sub Submitter) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		vals, err := r.client.BLPop(ctx, r.popTimeout, r.key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			r.failed("redis pop failed", err, slog.String("key", r.key))
			if !sleepContext(ctx, r.retryDelay) {
				return nil
			}
			continue
		}

		// BLPOP replies with the key followed by the element.
		if len(vals) != 2 {
			r.failed("unexpected BLPOP reply", fmt.Errorf("got %d values", len(vals)))
			continue
		}

		ev, err := DecodeMessage([]byte(vals[1]))
		if err != nil {
			r.failed("dropping undecodable message", err, slog.String("key", r.key))
			continue
		}

		err = sub.SubmitContext(ctx, ev)
		if err == nil {
			r.emitted()
			continue
		}

		// The element is already off the list; put it back at the head.
		r.requeue(ctx, vals[1], ev)
		switch {
		case lferrors.IsClosed(err):
			r.logger.Info("submitter closed, stopping")
			return nil
		case ctx.Err() != nil:
			return nil
		}
		r.failed("redis submit failed", err, slog.String("event_id", ev.ID()))
		if !sleepContext(ctx, r.retryDelay) {
			return nil
		}
	}
}

// requeue pushes a popped element back onto the head of the list. It runs
// even when ctx is done, bounded by the pop timeout.
func (r *RedisList) requeue(ctx context.Context, raw string, ev event.Event) {
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.popTimeout)
	defer cancel()

	if err := r.client.LPush(pushCtx, r.key, raw).Err(); err != nil {
		r.failed("popped event lost", err, slog.String("key", r.key), slog.String("event_id", ev.ID()))
		return
	}
	r.logger.Warn("event returned to list", slog.String("key", r.key), slog.String("event_id", ev.ID()))
}

// sleepContext waits for d, returning false if ctx ends first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
