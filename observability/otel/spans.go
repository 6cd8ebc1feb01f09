package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName scopes every span the node and its RPC server create.
const TracerName = "lendchain"

// Span attribute keys shared by node transitions and RPC dispatch.
const (
	KeyModule    = attribute.Key("lend.module")
	KeyOperation = attribute.Key("lend.operation")
	KeyErrClass  = attribute.Key("lend.error_class")
	KeyRPCMethod = attribute.Key("rpc.method")
	KeyRPCCode   = attribute.Key("rpc.error_code")
)

// Tracer returns the lendchain tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartTransition opens the span covering one journaled node transition.
func StartTransition(ctx context.Context, module, op string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "node."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(KeyModule.String(module), KeyOperation.String(op)),
	)
}

// StartRPC opens the server span for one JSON-RPC method call.
func StartRPC(ctx context.Context, method string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "rpc."+method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(KeyRPCMethod.String(method)),
	)
}

// Finish records the outcome on span. A nil err marks the span Ok; otherwise
// the error and its class are attached and the span is marked Error.
func Finish(span trace.Span, class string, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetAttributes(KeyErrClass.String(class))
	span.SetStatus(codes.Error, class)
}
