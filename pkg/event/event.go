package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Category identifies which handler processes an event.
type Category string

// Event is an immutable unit of work carrying a payload.
type Event struct {
	id        string
	category  Category
	payload   any
	createdAt time.Time
}

// New creates an event with a random ID.
func New(category Category, payload any) Event {
	return NewWithID(uuid.NewString(), category, payload)
}

// NewWithID creates an event with a caller-supplied ID, for producers that
// already carry an identifier from an upstream system.
func NewWithID(id string, category Category, payload any) Event {
	return Event{
		id:        id,
		category:  category,
		payload:   payload,
		createdAt: time.Now(),
	}
}

// ID returns the event identifier.
func (e Event) ID() string { return e.id }

// Category returns the event category.
func (e Event) Category() Category { return e.category }

// Payload returns the opaque payload.
func (e Event) Payload() any { return e.payload }

// CreatedAt returns when the event was constructed.
func (e Event) CreatedAt() time.Time { return e.createdAt }

// IsZero reports whether e is the zero Event.
func (e Event) IsZero() bool {
	return e.id == "" && e.category == "" && e.payload == nil && e.createdAt.IsZero()
}

func (e Event) String() string {
	return fmt.Sprintf("event(%s %s)", e.category, e.id)
}

// Handler processes events of one category.
type Handler interface {
	// Handle processes ev. A returned error is reported to the pool's
	// failure callback and never reaches the producer.
	Handle(ctx context.Context, ev Event) error
}

// HandlerFunc is a function type that implements the Handler interface.
type HandlerFunc func(ctx context.Context, ev Event) error

// Handle implements the Handler interface for HandlerFunc.
func (f HandlerFunc) Handle(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}
