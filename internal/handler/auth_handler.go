package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mkosyakov/admin-auth-service/internal/domain"
	"github.com/mkosyakov/admin-auth-service/internal/dto"
	"github.com/mkosyakov/admin-auth-service/internal/service"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService service.AuthService
	userService service.UserService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService service.AuthService, userService service.UserService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
	}
}

// Login authenticates with email and password. A verified user gets a
// session token; an unverified one gets a pending token and an OTP code on
// the side channel.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse(result))
}

// Register completes an invite-based registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse(result))
}

// RegisterAdmin bootstraps the first super admin
func (h *AuthHandler) RegisterAdmin(c *gin.Context) {
	var req dto.RegisterAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.authService.RegisterAdmin(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, authResponse(result))
}

// VerifyOTP exchanges a pending token plus code for a session token
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req dto.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.authService.VerifyOTP(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse(result))
}

// ResendOTP rotates the code on an explicit resend, or invalidates the
// pending token when the client reports expiry.
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req dto.ResendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.authService.ResendOTP(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RenewToken re-issues a session token (sliding expiry)
func (h *AuthHandler) RenewToken(c *gin.Context) {
	var req dto.RenewTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	token, err := h.authService.RenewToken(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, err)
		return
	}

	var resp dto.TokenResponse
	resp.Data.Token = token
	c.JSON(http.StatusOK, resp)
}

// RegistrationInfo returns the invited user's public fields for the
// registration form.
func (h *AuthHandler) RegistrationInfo(c *gin.Context) {
	registrationToken := c.Query("registrationToken")
	if registrationToken == "" {
		respondError(c, domain.NewFieldValidationError("registrationToken", "is required"))
		return
	}

	info, err := h.userService.RegistrationInfo(c.Request.Context(), registrationToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": info})
}

// ForgotPassword always answers 204 so the endpoint cannot be used to probe
// for registered emails.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ResetPassword sets a new password and forces re-verification: the
// response carries a pending token, never a session token.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.authService.ResetPassword(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse(result))
}

// Logout demotes the caller's verification state
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "User ID not found in context",
		})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), userID.(string)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{}})
}

// authResponse shapes an AuthResult the way the admin client expects:
// token is null while OTP verification is pending.
func authResponse(result *service.AuthResult) dto.AuthResponse {
	var resp dto.AuthResponse
	if result.Token != "" {
		resp.Data.Token = &result.Token
	}
	if result.PendingToken != "" {
		resp.Data.PendingToken = &result.PendingToken
	}
	resp.Data.User = result.User
	return resp
}
