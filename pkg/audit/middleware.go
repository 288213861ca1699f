package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hazyhaar/pkg/kit"
)

type ctxKey int

const (
	ctxTransport ctxKey = iota
	ctxUserID
	ctxRequestID
)

// WithTransport tags the context with the transport carrying the request.
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, ctxTransport, transport)
}

// WithUserID tags the context with the acting user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithRequestID tags the context with a request correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestID, requestID)
}

func ctxString(ctx context.Context, key ctxKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// Middleware wraps an Endpoint: measures duration, captures params/result/error,
// and logs asynchronously via the Logger.
func Middleware(logger Logger, actionName string) func(kit.Endpoint) kit.Endpoint {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, request any) (any, error) {
			start := time.Now()

			resp, err := next(ctx, request)

			entry := &Entry{
				Action:     actionName,
				Transport:  ctxString(ctx, ctxTransport),
				UserID:     ctxString(ctx, ctxUserID),
				RequestID:  ctxString(ctx, ctxRequestID),
				DurationMs: time.Since(start).Milliseconds(),
			}

			if params, e := json.Marshal(request); e == nil {
				entry.Parameters = string(params)
			}
			if err != nil {
				entry.Error = err.Error()
				entry.Status = "error"
			} else {
				entry.Status = "success"
				if result, e := json.Marshal(resp); e == nil {
					entry.Result = string(result)
				}
			}

			logger.LogAsync(entry)
			return resp, err
		}
	}
}
