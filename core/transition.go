package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	lenderrors "lendchain/core/errors"
	"lendchain/native/common"
	lendotel "lendchain/observability/otel"
)

// apply runs fn as one atomic transition. Every state write and every event
// emitted by fn is kept only if fn succeeds and the journal commits.
func (n *Node) apply(ctx context.Context, module, op string, fn func() error) error {
	ctx, span := lendotel.StartTransition(ctx, module, op)
	defer span.End()
	start := time.Now()

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := common.Guard(n, module); err != nil {
		return n.fail(ctx, span, op, start, err)
	}
	if err := n.state.Begin(); err != nil {
		return n.fail(ctx, span, op, start, fmt.Errorf("%s: begin: %w", op, err))
	}
	if err := fn(); err != nil {
		n.state.Rollback()
		n.buffer.Discard()
		return n.fail(ctx, span, op, start, err)
	}
	if err := n.state.Commit(); err != nil {
		n.buffer.Discard()
		return n.fail(ctx, span, op, start, fmt.Errorf("%s: commit: %w", op, err))
	}
	n.buffer.Flush()
	n.publishGauges()
	n.metrics.ObserveTransition(op, "ok")
	lendotel.Finish(span, "", nil)
	n.logger.DebugContext(ctx, "transition committed", slog.String("operation", op), elapsed(start))
	return nil
}

func (n *Node) fail(ctx context.Context, span trace.Span, op string, start time.Time, err error) error {
	class := lenderrors.Classify(err)
	n.metrics.ObserveTransition(op, string(class))
	lendotel.Finish(span, string(class), err)
	n.logger.WarnContext(ctx, "transition failed",
		slog.String("operation", op),
		slog.String("class", string(class)),
		slog.Any("error", err),
		elapsed(start),
	)
	return err
}
