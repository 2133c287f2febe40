package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lferrors "github.com/vnykmshr/leaderflow/pkg/common/errors"
	"github.com/vnykmshr/leaderflow/pkg/event"
)

var errSubmitterClosed = fmt.Errorf("fake submitter closed: %w", lferrors.ErrClosed)

var errSubmitterFull = errors.New("fake submitter full")

// fakeSubmitter records submitted events. It can reject the first few
// events as full, and be closed after a limit.
type fakeSubmitter struct {
	mu       sync.Mutex
	events   []event.Event
	limit    int
	failures int
	err      error
}

func (f *fakeSubmitter) SubmitContext(ctx context.Context, ev event.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	if f.failures > 0 {
		f.failures--
		return errSubmitterFull
	}
	if f.limit > 0 && len(f.events) >= f.limit {
		return errSubmitterClosed
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeSubmitter) Events() []event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.Event(nil), f.events...)
}

func (f *fakeSubmitter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

var errFakeRedis = errors.New("connection refused")
