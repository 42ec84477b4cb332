package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dandye/mcp-security/pkg/log"
)

// WithTracing wraps a tool handler with OpenTelemetry tracing and structured logging.
// It creates a span for each tool call, adds trace IDs to logs, and records errors on spans.
func WithTracing[In, Out any](
	tracer trace.Tracer,
	handler mcp.ToolHandlerFor[In, Out],
) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		name := req.Params.Name

		ctx, span := tracer.Start(ctx, name, trace.WithAttributes(
			attribute.String("mcp.tool", name),
		))
		defer span.End()

		logger := log.WithContext(ctx)

		logger.DebugContext(ctx, "handling tool call",
			slog.String("name", name),
			slog.Any("args", in),
		)

		result, out, err := handler(ctx, req, in)
		if err != nil {
			logger.ErrorContext(ctx, "tool call failed",
				slog.String("name", name),
				slog.Any("error", err),
			)
			span.RecordError(err)
		} else {
			logger.DebugContext(ctx, "tool call completed successfully")
		}

		return result, out, err
	}
}

// withResourceTracing is the resource read counterpart of [WithTracing].
func withResourceTracing(tracer trace.Tracer, handler mcp.ResourceHandler) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI

		ctx, span := tracer.Start(ctx, "resources/read", trace.WithAttributes(
			attribute.String("mcp.resource.uri", uri),
		))
		defer span.End()

		logger := log.WithContext(ctx)
		logger.DebugContext(ctx, "reading resource", slog.String("uri", uri))

		result, err := handler(ctx, req)
		if err != nil {
			logger.WarnContext(ctx, "resource read failed",
				slog.String("uri", uri),
				slog.Any("error", err),
			)
			span.RecordError(err)
		}

		return result, err
	}
}
