package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfolk/contacts-backend/internal/observability"
	"github.com/openfolk/contacts-backend/internal/platform/ctxutil"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
)

type RequestLogger struct {
	log *logger.Logger
}

func NewRequestLogger(log *logger.Logger) *RequestLogger {
	return &RequestLogger{log: log.With("middleware", "RequestLogger")}
}

// Handler logs every request and feeds the API metrics. Route labels use the
// matched pattern, not the raw path, to keep metric cardinality bounded.
func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m := observability.Current()
		m.ApiInflightInc()

		td := &ctxutil.TraceData{RequestID: uuid.NewString()}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			td.TraceID = sc.TraceID().String()
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))

		c.Next()

		m.ApiInflightDec()
		dur := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(status), dur)

		if status >= 500 {
			rl.log.Error("http request failed",
				"method", c.Request.Method,
				"route", route,
				"status", status,
				"duration_ms", dur.Milliseconds(),
				"client_ip", c.ClientIP(),
				"request_id", td.RequestID,
				"trace_id", td.TraceID,
			)
			return
		}
		rl.log.Info("http request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", dur.Milliseconds(),
			"request_id", td.RequestID,
		)
	}
}
