package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vnykmshr/leaderflow/internal/testutil"
	lferrors "github.com/vnykmshr/leaderflow/pkg/common/errors"
)

func nopHandler() Handler {
	return HandlerFunc(func(context.Context, Event) error { return nil })
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	h := nopHandler()

	testutil.AssertNoError(t, r.Register("a", h))
	testutil.AssertNoError(t, r.Register("b", nopHandler()))

	_, ok := r.Lookup("a")
	testutil.AssertEqual(t, ok, true)
	_, ok = r.Lookup("missing")
	testutil.AssertEqual(t, ok, false)

	testutil.AssertEqual(t, r.Len(), 2)
	testutil.AssertSliceEqual(t, r.Categories(), []Category{"a", "b"})
}

func TestRegistryRejectsInvalid(t *testing.T) {
	r := NewRegistry()

	err := r.Register("", nopHandler())
	testutil.AssertEqual(t, lferrors.IsValidationError(err), true)

	err = r.Register("a", nil)
	testutil.AssertEqual(t, lferrors.IsValidationError(err), true)

	testutil.AssertNoError(t, r.Register("a", nopHandler()))
	err = r.Register("a", nopHandler())
	testutil.AssertEqual(t, errors.Is(err, ErrDuplicateHandler), true)
}

func TestRegistryFreeze(t *testing.T) {
	r := NewRegistry()
	testutil.AssertNoError(t, r.Register("a", nopHandler()))

	r.Freeze()
	r.Freeze()
	testutil.AssertEqual(t, r.Frozen(), true)

	err := r.Register("b", nopHandler())
	testutil.AssertEqual(t, errors.Is(err, ErrRegistryFrozen), true)
	testutil.AssertEqual(t, lferrors.IsMisuse(err), true)

	err = r.SetFallback(nopHandler())
	testutil.AssertEqual(t, errors.Is(err, ErrRegistryFrozen), true)

	_, ok := r.Lookup("a")
	testutil.AssertEqual(t, ok, true)
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	testutil.AssertNoError(t, r.Register("known", nopHandler()))

	_, err := r.Resolve(New("known", nil))
	testutil.AssertNoError(t, err)

	_, err = r.Resolve(New("unknown", nil))
	testutil.AssertEqual(t, errors.Is(err, ErrNoHandler), true)

	var fallbackCalled bool
	testutil.AssertNoError(t, r.SetFallback(HandlerFunc(func(context.Context, Event) error {
		fallbackCalled = true
		return nil
	})))
	r.Freeze()

	h, err := r.Resolve(New("unknown", nil))
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, h.Handle(context.Background(), New("unknown", nil)))
	testutil.AssertEqual(t, fallbackCalled, true)
}

func TestNewRegistryFrom(t *testing.T) {
	r, err := NewRegistryFrom(map[Category]Handler{
		"a": nopHandler(),
		"b": nopHandler(),
	})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, r.Len(), 2)

	_, err = NewRegistryFrom(map[Category]Handler{"a": nil})
	testutil.AssertError(t, err)
}

func TestRegistryConcurrentLookupAfterFreeze(t *testing.T) {
	r := NewRegistry()
	for _, c := range []Category{"a", "b", "c"} {
		testutil.AssertNoError(t, r.Register(c, nopHandler()))
	}
	r.Freeze()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if _, ok := r.Lookup("b"); !ok {
					t.Error("lookup failed")
					return
				}
			}
		}()
	}
	wg.Wait()
}
