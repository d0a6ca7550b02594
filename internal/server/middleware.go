package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HeaderClientIP carries the original client address from a trusted proxy.
const HeaderClientIP = "X-Client-IP"

// chatRateLimit throttles conversational turns per client. Limiter errors
// fail open: a degraded redis must not take the assistant down with it.
func (s *Server) chatRateLimit(c *gin.Context) {
	if !s.chatLimiter.Enabled() {
		c.Next()
		return
	}

	res, err := s.chatLimiter.Allow(c.Request.Context(), s.clientIP(c))
	if err != nil {
		s.log.Warn("chat rate limiter unavailable", zap.Error(err))
		c.Next()
		return
	}
	if !res.Allowed {
		retryAfter := int(math.Ceil(res.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorPayload{
			Type:    "rate_limited",
			Message: "too many requests, slow down",
		}})
		return
	}
	c.Next()
}

// clientIP resolves the caller's address, honoring the proxy override header
// only when the deployment declares the proxy trusted.
func (s *Server) clientIP(c *gin.Context) string {
	if s.cfg.TrustProxyClientIP {
		if ip := strings.TrimSpace(c.GetHeader(HeaderClientIP)); ip != "" {
			return ip
		}
	}
	return c.ClientIP()
}

func parseIntDefault(value string, def int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return def
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return def
	}
	return parsed
}
