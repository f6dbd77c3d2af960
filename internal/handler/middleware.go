package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mkosyakov/admin-auth-service/internal/dto"
	"github.com/mkosyakov/admin-auth-service/internal/service"
	"github.com/mkosyakov/admin-auth-service/internal/utils"
)

// AuthMiddleware validates the bearer session token and puts the user id
// on the request context.
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Authorization header is missing or malformed",
			})
			return
		}

		claims, err := authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Invalid or expired token",
			})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("claims", claims)

		c.Next()
	}
}

// otpRoutes are the only paths a pending token may reach.
var otpRoutes = map[string]struct{}{
	"/admin/verify-otp": {},
	"/admin/resend-otp": {},
}

// PendingTokenGate blocks half-authenticated callers. A bearer token with the
// pending OTP claim gets a 404 on anything except the OTP endpoints, so the
// gate does not reveal which routes exist behind it.
func PendingTokenGate(tokenManager *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, valid := tokenManager.Verify(token)
		if !valid || !claims.IsPending() {
			c.Next()
			return
		}

		if _, allowed := otpRoutes[normalizePath(c.Request.URL.Path)]; allowed {
			c.Next()
			return
		}

		c.AbortWithStatus(http.StatusNotFound)
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// normalizePath lower-cases the path and strips a trailing slash so the same
// route always produces the same gate and rate-limit key.
func normalizePath(path string) string {
	path = strings.ToLower(path)
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
