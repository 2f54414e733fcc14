package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/iyhunko/product-catalog/internal/gate"
)

const (
	msgTooManyRequests = "Too many requests, please try again later"
	msgBotDetected     = "Forbidden: Bot detected"
	msgForbidden       = "Forbidden: Unknown reason"
	msgGateFailure     = "Internal server error"
)

// Gate rejects requests the gate denies. trustXFF selects X-Forwarded-For
// over the socket address as the client identity.
func Gate(g *gate.Gate, trustXFF bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.Bypass(c.Request) {
			c.Next()
			return
		}

		dec, err := g.Protect(c.Request.Context(), c.Request, gate.ClientAddr(c.Request, trustXFF))
		if err != nil {
			slog.Error("gate evaluation failed",
				slog.String("error", err.Error()),
				slog.String("path", c.Request.URL.Path),
				slog.String(RequestIDKey, c.GetString(RequestIDKey)),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msgGateFailure})
			return
		}

		if !dec.Denied() {
			c.Next()
			return
		}

		switch dec.Reason {
		case gate.ReasonRateLimit:
			c.Header("Retry-After", retryAfterSeconds(dec))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": msgTooManyRequests})
		case gate.ReasonBot:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": msgBotDetected})
		default:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": msgForbidden})
		}
	}
}

func retryAfterSeconds(dec gate.Decision) string {
	secs := int(math.Ceil(dec.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
