package testutil

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEventually(t *testing.T) {
	t.Run("condition met immediately", func(t *testing.T) {
		called := false
		Eventually(t, func() bool {
			called = true
			return true
		}, 100*time.Millisecond, 10*time.Millisecond)

		if !called {
			t.Error("condition function should be called")
		}
	})

	t.Run("condition met after delay", func(t *testing.T) {
		var counter int32
		go func() {
			time.Sleep(20 * time.Millisecond)
			atomic.StoreInt32(&counter, 1)
		}()

		Eventually(t, func() bool {
			return atomic.LoadInt32(&counter) == 1
		}, time.Second, 5*time.Millisecond)
	})
}

func TestWaitForInt64(t *testing.T) {
	var value int64

	go func() {
		time.Sleep(20 * time.Millisecond)
		atomic.StoreInt64(&value, 100)
	}()

	WaitForInt64(t, &value, 100, time.Second)
}

func TestWaitClosed(t *testing.T) {
	ch := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(ch)
	}()
	WaitClosed(t, ch, time.Second)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder[int]()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			r.Record(v)
		}(i)
	}
	wg.Wait()

	AssertEqual(t, r.Len(), 10)
	AssertEqual(t, len(r.Values()), 10)

	r.Reset()
	AssertEqual(t, r.Len(), 0)
}

func TestMaxTracker(t *testing.T) {
	var m MaxTracker
	m.Inc()
	m.Inc()
	m.Dec()
	m.Inc()
	m.Dec()
	m.Dec()

	AssertEqual(t, m.Current(), 0)
	AssertEqual(t, m.Max(), 2)
}

func TestAssertSliceEqual(t *testing.T) {
	AssertSliceEqual(t, []string{"A", "B", "C"}, []string{"A", "B", "C"})
}
