// Copyright (c) 2018 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package katautils

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	otelTrace "go.opentelemetry.io/otel/trace"
)

// tracing controls whether spans are actually recorded. The out-of-scope
// collaborator here is the exporter (spec.md treats "tracing subscribers"
// as an external concern); the instrumentation call sites below are not.
var tracing bool

// EnableTracing installs a tracer provider that records spans in-process.
// Wiring that provider to an external collector (Jaeger, OTLP, ...) is left
// to the caller; this package only guarantees spans exist to export.
func EnableTracing(name string) func() {
	tracing = true

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return func() {
		_ = tp.Shutdown(context.Background())
	}
}

// StopTracing ends the span carried by ctx, if any.
func StopTracing(ctx context.Context) {
	if !tracing {
		return
	}

	span := otelTrace.SpanFromContext(ctx)
	span.End()
}

// Trace creates a new tracing span based on the specified name and parent
// context, attaching the given key/value attribute pairs (flattened
// string pairs, e.g. Trace(ctx, "foo", "key1", "val1", "key2", "val2")).
func Trace(parent context.Context, name string, kv ...string) (otelTrace.Span, context.Context) {
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, attribute.String(kv[i], kv[i+1]))
	}

	tracer := otel.Tracer("kata-agent-core")
	ctx, span := tracer.Start(parent, name, otelTrace.WithAttributes(attrs...))

	if tracing {
		katautilsLog.Debugf("created span %v", span)
	}

	return span, ctx
}
