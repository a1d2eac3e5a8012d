package middleware

import (
	"context"
	"net/http"

	"github.com/ak-softwares/wa-api-sub002/internal/logger"
	"github.com/ak-softwares/wa-api-sub002/internal/server"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
)

const (
	OwnerIDKey = "owner_id"
	LoggerKey  = "logger"
)

type ContextEnhancer struct {
	Server *server.Server
}

func NewContextEnhancer(srv *server.Server) *ContextEnhancer {
	return &ContextEnhancer{
		Server: srv,
	}
}

// EnhanceContext attaches a request-scoped logger carrying the request id and,
// when available, trace metadata and the acting owner id.
func (ce *ContextEnhancer) EnhanceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := GetRequestID(r)

		contextLogger := ce.Server.Logger.With().
			Str("request_id", requestID).
			Str("ip", r.RemoteAddr).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()

		if txn := newrelic.FromContext(r.Context()); txn != nil {
			contextLogger = logger.WithTraceContext(contextLogger, txn)
		}

		if ownerID := ce.extractOwnerID(r); ownerID != "" {
			contextLogger = contextLogger.With().Str("owner_id", ownerID).Logger()
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, LoggerKey, &contextLogger)
		r = r.WithContext(ctx)

		next.ServeHTTP(w, r)
	})
}

func (ce *ContextEnhancer) extractOwnerID(r *http.Request) string {
	if ownerID, ok := r.Context().Value(OwnerIDKey).(string); ok {
		return ownerID
	}
	return ""
}

// GetLogger retrieves the logger from the context.
func GetLogger(ctx context.Context) *zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zerolog.Logger); ok {
		return logger
	}
	logger := zerolog.Nop()
	return &logger
}
