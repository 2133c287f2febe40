package leaderfollower

import (
	"context"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vnykmshr/leaderflow/pkg/event"
)

const instrumentationName = "github.com/vnykmshr/leaderflow/pkg/leaderfollower"

// tracer returns a tracer from the global OTel provider. It is looked up
// per pool so tests can install a provider before constructing the pool.
func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// startDispatchSpan starts a span for one handler invocation. It returns
// a nil span when tracing is disabled.
func (p *pool) startDispatchSpan(ctx context.Context, workerID int, ev event.Event) (context.Context, trace.Span) {
	if p.tracer == nil {
		return ctx, nil
	}
	return p.tracer.Start(ctx, "leaderflow.dispatch."+string(ev.Category()),
		trace.WithAttributes(
			attribute.String("event.id", ev.ID()),
			attribute.String("event.category", string(ev.Category())),
			attribute.Int("worker.id", workerID),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
}

// endSpanWithError completes a span, optionally recording an error.
func endSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func logStarted(logger *slog.Logger, size, capacity int) {
	logger.Info("pool started",
		slog.Int("workers", size),
		slog.Int("queue_capacity", capacity),
	)
}

func logStopped(logger *slog.Logger, size int) {
	logger.Info("pool stopped",
		slog.Int("workers", size),
	)
}

func logShutdown(logger *slog.Logger, drain bool, queued int) {
	logger.Info("pool shutting down",
		slog.Bool("drain", drain),
		slog.Int("queued", queued),
	)
}

func logDiscarded(logger *slog.Logger, n int) {
	logger.Warn("discarded queued events",
		slog.Int("count", n),
	)
}

// logPromotion logs a leader handing off before processing ev.
func logPromotion(logger *slog.Logger, from, to int, ev event.Event) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	logger.Debug("leader dequeued event",
		slog.Int("worker_id", from),
		slog.String("next_leader", leaderString(to)),
		slog.String("event_id", ev.ID()),
		slog.String("category", string(ev.Category())),
	)
}

func logTerminated(logger *slog.Logger, id, next int) {
	logger.Debug("worker terminated",
		slog.Int("worker_id", id),
		slog.String("next_leader", leaderString(next)),
	)
}

func logHandlerFailure(logger *slog.Logger, err *HandlerError) {
	logger.Error("event handler failed",
		slog.Int("worker_id", err.WorkerID),
		slog.String("event_id", err.Event.ID()),
		slog.String("category", string(err.Event.Category())),
		slog.String("error", err.Err.Error()),
	)
}

func leaderString(id int) string {
	if id == noLeader {
		return "none"
	}
	return strconv.Itoa(id)
}
