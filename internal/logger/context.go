package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	tranRefKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithTranRef tags every log line under ctx with the PayTabs transaction reference.
func WithTranRef(ctx context.Context, tranRef string) context.Context {
	if tranRef == "" {
		return ctx
	}
	return context.WithValue(ctx, tranRefKey, tranRef)
}

func TranRefFrom(ctx context.Context) string {
	ref, _ := ctx.Value(tranRefKey).(string)
	return ref
}

// FromCtx returns the global logger with the request id and transaction
// reference carried by ctx.
func FromCtx(ctx context.Context) *zap.Logger {
	var fields []zap.Field
	if id := RequestIDFrom(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if ref := TranRefFrom(ctx); ref != "" {
		fields = append(fields, zap.String("tran_ref", ref))
	}
	if len(fields) == 0 {
		return L()
	}
	return L().With(fields...)
}

// Layer tags the request logger with the component layer and method name.
func Layer(ctx context.Context, layer, method string) *zap.Logger {
	return FromCtx(ctx).With(
		zap.String("layer", layer),
		zap.String("method", method),
	)
}
