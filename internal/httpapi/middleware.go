package httpapi

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"storefront-query-engine/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// requestIDHeader is the header carrying the per-request correlation ID,
// both inbound (reused if the caller already set one) and outbound.
const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware stamps every request with a correlation ID — generated
// via google/uuid unless the caller already supplied one — echoed on the
// response and threaded into RequestLoggingMiddleware's log line. It runs
// right after gin.Recovery so every later middleware and handler can read it.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// shopDomainPattern matches a normalized *.myshopify.com domain.
var shopDomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*\.myshopify\.com$`)

// whitelistedDomains are explicitly-allowed non-myshopify domains (custom
// storefront domains onboarded by the admin dashboard), per spec §6.
var whitelistedDomains = map[string]bool{}

// NormalizeShopDomain lowercases, trims a trailing dot, and strips
// protocol/path, per spec §6.
func NormalizeShopDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if idx := strings.Index(s, "/"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSuffix(s, ".")
	return s
}

// ValidShopDomain reports whether domain is a *.myshopify.com domain or on
// the explicit whitelist.
func ValidShopDomain(domain string) bool {
	if domain == "" {
		return false
	}
	return shopDomainPattern.MatchString(domain) || whitelistedDomains[domain]
}

// ValidateShopDomain rejects requests with a missing or malformed shop
// domain, per spec §4.8/§6.
func ValidateShopDomain() gin.HandlerFunc {
	return func(c *gin.Context) {
		shop := NormalizeShopDomain(c.Query("shop"))
		if !ValidShopDomain(shop) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "missing or invalid shop domain",
			})
			return
		}
		c.Set("shop", shop)
		c.Next()
	}
}

// RateLimitMiddleware rejects requests once a tenant exceeds its bucket,
// grounded on api-gateway/internal/middleware/rate_limit.go.
func RateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		shop, _ := c.Get("shop")
		shopStr, _ := shop.(string)
		if shopStr == "" {
			shopStr = NormalizeShopDomain(c.Query("shop"))
		}
		if !limiter.Allow(shopStr) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate limit exceeded, please slow down",
			})
			return
		}
		c.Next()
	}
}

// RequestLoggingMiddleware logs method/path/status/latency/shop per
// request, matching api-gateway/internal/middleware/logging.go's shape
// (adapted from client-IP fields to shop-domain fields).
func RequestLoggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		logger.Info("http request",
			zap.String("requestId", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("shop", c.Query("shop")),
		)
	}
}

// ErrorLoggingMiddleware logs every gin error attached to the context.
func ErrorLoggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		for _, e := range c.Errors {
			logger.Error("request error", zap.Error(e.Err))
		}
	}
}
