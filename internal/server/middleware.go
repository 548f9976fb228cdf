package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/cipherpoll/internal/clock"
	"github.com/railzwaylabs/cipherpoll/internal/identity"
	"go.uber.org/zap"
)

const (
	HeaderCallerIdentity = "X-Caller-Identity"
	HeaderSimulatedTime  = "X-Simulated-Time"
)

// CallerIdentity moves the attested caller from the gateway header onto the
// request context. Handlers that mutate state fail with missing_caller_identity
// when it is absent.
func (s *Server) CallerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(HeaderCallerIdentity)); id != "" {
			c.Request = c.Request.WithContext(identity.WithCaller(c.Request.Context(), id))
		}
		c.Next()
	}
}

// SimulatedTime pins ledger time for the request. The header is ignored unless
// http.allow_simulated_time is set outside production and the caller holds the
// admin role.
func (s *Server) SimulatedTime() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderSimulatedTime))
		if raw == "" || !s.cfg.HTTP.AllowSimulatedTime || s.cfg.Environment == "production" {
			c.Next()
			return
		}
		caller, _ := identity.CallerFromContext(c.Request.Context())
		ok, err := s.authz.CanSimulateTime(caller)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !ok {
			s.log.Warn("simulated time ignored", zap.String("caller", caller))
			c.Next()
			return
		}
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError(HeaderSimulatedTime, "invalid_simulated_time", "simulated time must be RFC3339"))
			return
		}
		c.Request = c.Request.WithContext(clock.WithTime(c.Request.Context(), at))
		c.Next()
	}
}

func (s *Server) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if caller, ok := identity.CallerFromContext(c.Request.Context()); ok {
			fields = append(fields, zap.String("caller", caller))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.Last().Error()))
		}

		switch {
		case c.Writer.Status() >= 500:
			s.log.Error("request failed", fields...)
		case c.Writer.Status() >= 400:
			s.log.Info("request rejected", fields...)
		default:
			s.log.Debug("request", fields...)
		}
	}
}
