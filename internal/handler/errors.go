package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mkosyakov/admin-auth-service/internal/domain"
	"github.com/mkosyakov/admin-auth-service/internal/dto"
	"github.com/mkosyakov/admin-auth-service/internal/repository"
)

// respondError maps the domain error taxonomy onto HTTP responses. Anything
// outside the taxonomy is an internal error and stays opaque to the caller.
func respondError(c *gin.Context, err error) {
	var rateErr *domain.RateLimitError
	if errors.As(err, &rateErr) {
		c.Header("Retry-After", strconv.Itoa(int(rateErr.RetryAfter/time.Second)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
			Error:   "RateLimitError",
			Message: "You have exceeded the number of allowed attempts. Please try again later.",
		})
		return
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		resp := dto.ErrorResponse{
			Error:   "ValidationError",
			Message: validationErr.Message,
		}
		if validationErr.Field != "" {
			resp.Details = gin.H{"field": validationErr.Field}
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, resp)
		return
	}

	if errors.Is(err, repository.ErrDuplicateEmail) || errors.Is(err, repository.ErrDuplicatePhone) {
		c.AbortWithStatusJSON(http.StatusConflict, dto.ErrorResponse{
			Error:   "ApplicationError",
			Message: "An account with these details already exists",
		})
		return
	}

	var appErr *domain.ApplicationError
	if errors.As(err, &appErr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "ApplicationError",
			Message: appErr.Message,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
		Error:   "InternalServerError",
		Message: "An error occurred",
	})
}

// respondBindError reports malformed request payloads
func respondBindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "ValidationError",
		Message: err.Error(),
	})
}
