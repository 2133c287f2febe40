package event

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	lferrors "github.com/vnykmshr/leaderflow/pkg/common/errors"
	"github.com/vnykmshr/leaderflow/pkg/common/validation"
)

var (
	// ErrRegistryFrozen is returned by Register once the registry is frozen.
	ErrRegistryFrozen = fmt.Errorf("handler registry is frozen: %w", lferrors.ErrMisuse)

	// ErrDuplicateHandler is returned when a category already has a handler.
	ErrDuplicateHandler = errors.New("handler already registered for category")

	// ErrNoHandler is returned by Resolve when neither a category handler
	// nor a fallback exists.
	ErrNoHandler = errors.New("no handler registered for category")
)

// Registry maps categories to handlers. It is safe for concurrent use;
// after Freeze it is read-only and lookups are lock-free.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Category]Handler
	fallback Handler
	frozen   atomic.Bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Category]Handler)}
}

// NewRegistryFrom creates a registry populated from handlers.
func NewRegistryFrom(handlers map[Category]Handler) (*Registry, error) {
	r := NewRegistry()
	for category, h := range handlers {
		if err := r.Register(category, h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register binds h to category.
func (r *Registry) Register(category Category, h Handler) error {
	if err := validation.ValidateNotEmpty("event", "category", string(category)); err != nil {
		return err
	}
	if h == nil {
		return validation.ValidateNotNil("event", "handler", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return ErrRegistryFrozen
	}
	if _, exists := r.handlers[category]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateHandler, category)
	}
	r.handlers[category] = h
	return nil
}

// SetFallback sets the handler used for categories without a registration.
// Passing nil clears it.
func (r *Registry) SetFallback(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return ErrRegistryFrozen
	}
	r.fallback = h
	return nil
}

// Freeze makes the registry read-only. It is idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen.Store(true)
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Lookup returns the handler registered for category.
func (r *Registry) Lookup(category Category) (Handler, bool) {
	if r.frozen.Load() {
		h, ok := r.handlers[category]
		return h, ok
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[category]
	return h, ok
}

// Resolve returns the handler for ev, falling back to the fallback handler.
func (r *Registry) Resolve(ev Event) (Handler, error) {
	if h, ok := r.Lookup(ev.Category()); ok {
		return h, nil
	}

	var fallback Handler
	if r.frozen.Load() {
		fallback = r.fallback
	} else {
		r.mu.RLock()
		fallback = r.fallback
		r.mu.RUnlock()
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoHandler, ev.Category())
}

// Len returns the number of registered categories.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Categories returns the registered categories in sorted order.
func (r *Registry) Categories() []Category {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Category, 0, len(r.handlers))
	for c := range r.handlers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
