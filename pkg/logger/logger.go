package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/uniport/uap-leave-api/pkg/config"
	"github.com/uniport/uap-leave-api/pkg/middleware/requestid"
)

// New builds the process logger: JSON in production, the human-readable
// console encoder elsewhere, with the level taken from LOG_LEVEL.
func New(cfg *config.Config) (*zap.Logger, error) {
	var base zap.Config
	if cfg.Env == config.EnvProduction {
		base = zap.NewProductionConfig()
		base.Encoding = "json"
	} else {
		base = zap.NewDevelopmentConfig()
		base.Encoding = "console"
	}
	if cfg.Log.Format != "" {
		base.Encoding = cfg.Log.Format
	}

	level := zapcore.InfoLevel
	if cfg.Log.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			level = zapcore.InfoLevel
		}
	}
	base.Level = zap.NewAtomicLevelAt(level)

	base.EncoderConfig.TimeKey = "timestamp"
	base.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return base.Build()
}

// GinMiddleware logs one line per handled request, correlated with the
// request ID when present.
func GinMiddleware(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if id := requestid.Value(c); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		l.Info("http_request", fields...)
	}
}
