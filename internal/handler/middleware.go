package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"datablog/internal/csrf"
	"datablog/internal/models"
	"datablog/internal/token"
)

const principalKey = "principal"

// Authenticate verifies the bearer access token and attaches the principal to
// the request context. The token is not re-checked against the database; a
// revoked access token stays accepted until its TTL runs out.
func Authenticate(tokens *token.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			newErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing token")

			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			newErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing token")

			return
		}

		claims, err := tokens.VerifyAccess(parts[1])
		if err != nil {
			// Expired and forged collapse into one message.
			newErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")

			return
		}

		c.Set(principalKey, models.Principal{
			ID:           claims.Subject,
			Email:        claims.Email,
			Role:         claims.Role,
			TokenVersion: claims.TokenVersion,
		})

		c.Next()
	}
}

// Authorize passes requests whose principal carries one of the permitted
// roles. Runs after Authenticate; the missing-principal branch is defensive.
func Authorize(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := getPrincipal(c)
		if !ok {
			newErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated")

			return
		}

		for _, role := range roles {
			if principal.Role == role {
				c.Next()
				return
			}
		}

		newErrorResponse(c, http.StatusForbidden, "FORBIDDEN", "Insufficient role")
	}
}

// CSRFGuard enforces the double-submit check on state-changing endpoints.
func CSRFGuard(guard *csrf.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookieToken, _ := c.Cookie(csrfCookieName)

		headerToken := c.GetHeader("csrf-token")
		if headerToken == "" {
			headerToken = c.GetHeader("x-csrf-token")
		}

		if !guard.Verify(cookieToken, headerToken, sessionIdentifier(c)) {
			newErrorResponse(c, http.StatusForbidden, "CSRF_TOKEN_INVALID", "Invalid CSRF token")

			return
		}

		c.Next()
	}
}

// sessionIdentifier binds CSRF tokens to the refresh cookie when one exists,
// falling back to client IP plus user agent for first visits.
func sessionIdentifier(c *gin.Context) string {
	if rt, err := c.Cookie(refreshCookieName); err == nil && rt != "" {
		return rt
	}

	return c.ClientIP() + "!" + c.Request.UserAgent()
}

func getPrincipal(c *gin.Context) (models.Principal, bool) {
	val, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}

	principal, ok := val.(models.Principal)

	return principal, ok
}

func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")

		c.Next()
	}
}

// RequestLogger tags each request with an id and logs its outcome.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Header("X-Request-Id", requestID)

		start := time.Now()
		c.Next()

		log.Info("request",
			slog.String("request_id", requestID),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
