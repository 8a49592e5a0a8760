package underwriter

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LoggingMiddleware logs every routed message with its outcome and latency.
func LoggingMiddleware(log *zap.SugaredLogger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, s *RouteState) (RoutedResult, error) {
			start := time.Now()
			rr, err := next(ctx, s)
			fields := []any{
				"message_type", rr.MessageType,
				"document_type", rr.DocumentType,
				"document_id", rr.DocumentID,
				"attempt", rr.Attempt,
				"delete", rr.HandlerResult.ShouldDelete,
				"failure", rr.Failure.String(),
				"duration", time.Since(start),
			}
			if rr.HandlerResult.Error != nil {
				log.Warnw("message routed with error", append(fields, "error", rr.HandlerResult.Error)...)
			} else {
				log.Debugw("message routed", fields...)
			}
			return rr, err
		}
	}
}
