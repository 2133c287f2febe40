package queue

import (
	"context"
	"testing"

	"github.com/vnykmshr/leaderflow/pkg/event"
)

func BenchmarkEnqueueDequeue(b *testing.B) {
	q := New(0)
	ctx := context.Background()
	e := event.New("bench", nil)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = q.Enqueue(ctx, e)
		_, _ = q.Dequeue(0)
	}
}

func BenchmarkBoundedContended(b *testing.B) {
	q := New(64)
	ctx := context.Background()
	e := event.New("bench", nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, err := q.Dequeue(0); err != nil {
				return
			}
		}
	}()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = q.Enqueue(ctx, e)
		}
	})
	b.StopTimer()

	q.Close()
	<-done
}
