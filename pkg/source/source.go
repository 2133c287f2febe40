package source

import (
	"context"
	"io"
	"log/slog"

	"github.com/vnykmshr/leaderflow/pkg/event"
	"github.com/vnykmshr/leaderflow/pkg/metrics"
)

// Submitter accepts events for processing.
type Submitter interface {
	SubmitContext(ctx context.Context, ev event.Event) error
}

// Source produces events until ctx is done or the submitter is closed.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Run blocks, submitting events to sub. It returns nil when ctx is
	// done or sub reports that it is closed.
	Run(ctx context.Context, sub Submitter) error
}

// instruments carries the logger and metrics shared by every source.
type instruments struct {
	kind    string
	name    string
	logger  *slog.Logger
	metrics *metrics.Registry
}

func newInstruments(kind, name string, logger *slog.Logger, reg *metrics.Registry) instruments {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return instruments{
		kind:    kind,
		name:    name,
		logger:  logger.With(slog.String("source", kind), slog.String("source_name", name)),
		metrics: reg,
	}
}

func (in instruments) emitted() {
	if in.metrics != nil {
		in.metrics.SourceEmitted.WithLabelValues(in.kind, in.name).Inc()
	}
}

func (in instruments) failed(msg string, err error, attrs ...slog.Attr) {
	if in.metrics != nil {
		in.metrics.SourceErrors.WithLabelValues(in.kind, in.name).Inc()
	}
	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.String("error", err.Error()))
	for _, a := range attrs {
		args = append(args, a)
	}
	in.logger.Warn(msg, args...)
}
