/*
Package event defines the unit of work processed by a leader/followers pool
and the registry that maps event categories to handlers.

An Event is an immutable value: a category, an opaque payload, a unique ID
and a creation timestamp. Producers build events with New and hand them to a
pool; the pool looks up the handler for the event's category and invokes it.

	ev := event.New("orders.created", order)

Handlers implement a single method:

	type Handler interface {
		Handle(ctx context.Context, ev Event) error
	}

HandlerFunc adapts an ordinary function:

	h := event.HandlerFunc(func(ctx context.Context, ev event.Event) error {
		return process(ev.Payload())
	})

Registry:

The Registry is populated before workers start and frozen afterwards. Once
frozen it is read-only and lookups take no lock, so every worker can resolve
handlers concurrently without contention:

	reg := event.NewRegistry()
	_ = reg.Register("orders.created", h)
	reg.SetFallback(logUnknown)
	reg.Freeze()

Registering after Freeze returns ErrRegistryFrozen. An event whose category
has no handler resolves to the fallback handler if one is set, and to
ErrNoHandler otherwise.

The payload is stored as given. Events are immutable at the envelope level;
producers must not mutate a payload after submitting it.
*/
package event
