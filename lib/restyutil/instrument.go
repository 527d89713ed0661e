// Package restyutil instruments resty clients with OpenTelemetry
// spans and, optionally, full request/response dumps for debugging
// provider integrations.
package restyutil

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.13.0/httpconv"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentOutput receives a formatted dump of every HTTP exchange.
type InstrumentOutput interface {
	Write(id string, contents string)
}

type instrumentCtx struct {
	output    InstrumentOutput
	tracer    trace.Tracer
	idcounter *uint64
}

// InstrumentClient attaches span tracing to every request the client
// makes. `tracer` may be nil, defaulting to a library name of "resty".
// `output` may be nil; dumps are skipped then.
func InstrumentClient(client *resty.Client, tracer trace.Tracer, output InstrumentOutput) {
	if tracer == nil {
		tracer = otel.Tracer("resty")
	}

	var idcounter uint64
	i := instrumentCtx{output: output, tracer: tracer, idcounter: &idcounter}
	client.OnBeforeRequest(i.onBeforeRequest)
	client.OnAfterResponse(i.onAfterResponse)
	client.OnError(i.onError)
}

type messageIdKey struct{}

func (i instrumentCtx) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	ctx, _ := i.tracer.Start(req.Context(), req.Method)

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		messageId := strconv.FormatUint(atomic.AddUint64(i.idcounter, 1), 10)
		slog.DebugContext(
			ctx, "start request",
			"method", req.Method,
			"url", req.URL,
			"message_id", messageId,
		)
		ctx = context.WithValue(ctx, messageIdKey{}, messageId)
	}

	req.SetContext(ctx)
	return nil
}

func (i instrumentCtx) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	ctx := res.Request.Context()
	span := trace.SpanFromContext(ctx)
	defer span.End()

	// request attributes are set here since RawRequest is nil in the
	// before-request hook
	span.SetName(fmt.Sprintf("http %s", res.Request.Method))
	span.SetAttributes(httpconv.ClientRequest(res.Request.RawRequest)...)
	span.SetAttributes(httpconv.ClientResponse(res.RawResponse)...)

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		messageId, ok := ctx.Value(messageIdKey{}).(string)
		if ok && i.output != nil {
			i.output.Write(messageId, formatHttpMessage(res))
		}
		slog.DebugContext(
			ctx, "request completed",
			"method", res.Request.Method,
			"url", res.Request.URL,
			"status", res.StatusCode(),
			"message_id", messageId,
		)
	}

	return nil
}

func (i instrumentCtx) onError(req *resty.Request, err error) {
	ctx := req.Context()
	span := trace.SpanFromContext(ctx)
	defer span.End()

	span.RecordError(err)
	span.SetStatus(codes.Error, "request failed")

	slog.DebugContext(
		ctx, "request failed",
		"method", req.Method,
		"url", req.URL,
		"err", err,
	)
}
