package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mkosyakov/admin-auth-service/internal/service"
	"github.com/mkosyakov/admin-auth-service/internal/utils"
)

const unknownIdentity = "unknownEmail"

// OTPRateLimitMiddleware throttles the OTP-sending endpoints. The window is
// keyed by identity, route and origin together so one caller cannot exhaust
// another caller's budget, and one email cannot be hammered from many
// addresses without each address burning its own window.
func OTPRateLimitMiddleware(rateLimiter *service.RateLimiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c)

		if err := rateLimiter.Allow(c.Request.Context(), key, limit, window); err != nil {
			respondError(c, err)
			return
		}

		c.Next()
	}
}

// rateLimitKey builds "email:path:ip". The email comes from the JSON body
// when present; the body is restored so the handler can still bind it.
func rateLimitKey(c *gin.Context) string {
	identity := unknownIdentity
	if email := emailFromBody(c); email != "" {
		identity = utils.SanitizeEmail(email)
	}

	return identity + ":" + normalizePath(c.Request.URL.Path) + ":" + c.ClientIP()
}

func emailFromBody(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Email)
}
