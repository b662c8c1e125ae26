// Package tracer is a thin span API over OpenTelemetry so services can be
// traced without importing otel types directly.
package tracer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies spans emitted by this service.
const InstrumentationName = "warden"

// Span is an in-flight operation. End must be called exactly once.
type Span interface {
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer starts spans. Implementations are safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute    { return Attribute{Key: key, Value: value} }
func Bool(key string, value bool) Attribute { return Attribute{Key: key, Value: value} }
func Int(key string, value int) Attribute   { return Attribute{Key: key, Value: int64(value)} }

// Duration records d in milliseconds.
func Duration(key string, d time.Duration) Attribute {
	return Attribute{Key: key, Value: d.Milliseconds()}
}

type OTel struct {
	tracer trace.Tracer
}

// NewOTel uses tp, or the global provider when tp is nil.
func NewOTel(tp trace.TracerProvider) *OTel {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &OTel{tracer: tp.Tracer(InstrumentationName)}
}

func (t *OTel) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(convert(attrs)...))
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

func (s otelSpan) SetAttributes(attrs ...Attribute) {
	s.span.SetAttributes(convert(attrs)...)
}

func (s otelSpan) AddEvent(name string, attrs ...Attribute) {
	s.span.AddEvent(name, trace.WithAttributes(convert(attrs)...))
}

func convert(attrs []Attribute) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		switch v := a.Value.(type) {
		case string:
			out = append(out, attribute.String(a.Key, v))
		case bool:
			out = append(out, attribute.Bool(a.Key, v))
		case int64:
			out = append(out, attribute.Int64(a.Key, v))
		case float64:
			out = append(out, attribute.Float64(a.Key, v))
		}
	}
	return out
}

// Noop discards spans.
type Noop struct{}

func (Noop) Start(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error)                     {}
func (noopSpan) SetAttributes(...Attribute)    {}
func (noopSpan) AddEvent(string, ...Attribute) {}

var (
	_ Tracer = (*OTel)(nil)
	_ Tracer = Noop{}
)
