package dto

import "time"

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterUserInfo carries the fields an invited user fills in
type RegisterUserInfo struct {
	Firstname string `json:"firstname" binding:"required"`
	Lastname  string `json:"lastname" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

// RegisterRequest completes an invite-based registration
type RegisterRequest struct {
	RegistrationToken string           `json:"registrationToken" binding:"required"`
	UserInfo          RegisterUserInfo `json:"userInfo" binding:"required"`
}

// RegisterAdminRequest bootstraps the first super admin
type RegisterAdminRequest struct {
	Email       string `json:"email" binding:"required,email"`
	PhoneNumber string `json:"phoneNumber" binding:"required"`
	Firstname   string `json:"firstname" binding:"required"`
	Lastname    string `json:"lastname" binding:"required"`
	Password    string `json:"password" binding:"required"`
}

// VerifyOTPRequest represents an OTP verification request
type VerifyOTPRequest struct {
	PendingToken string `json:"pendingToken" binding:"required"`
	Code         string `json:"code" binding:"required"`
}

// ResendOTPRequest represents an OTP resend request. IsResendAction is true
// for a user-initiated resend and false when the client countdown expired.
type ResendOTPRequest struct {
	PendingToken   string `json:"pendingToken" binding:"required"`
	IsResendAction bool   `json:"isResendAction"`
}

// RenewTokenRequest represents a session token renewal request
type RenewTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// ForgotPasswordRequest represents a forgot password request
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest represents a password reset request
type ResetPasswordRequest struct {
	ResetPasswordToken string `json:"resetPasswordToken" binding:"required"`
	Password           string `json:"password" binding:"required"`
}

// UpdateMeRequest is the profile update payload. CurrentPassword is required
// whenever Password is set.
type UpdateMeRequest struct {
	Email            *string `json:"email"`
	Firstname        *string `json:"firstname"`
	Lastname         *string `json:"lastname"`
	Username         *string `json:"username"`
	PreferedLanguage *string `json:"preferedLanguage"`
	Password         *string `json:"password"`
	CurrentPassword  *string `json:"currentPassword"`
}

// CreateUserRequest invites a new admin user
type CreateUserRequest struct {
	Email       string   `json:"email" binding:"required,email"`
	PhoneNumber string   `json:"phoneNumber" binding:"required"`
	Firstname   string   `json:"firstname" binding:"required"`
	Lastname    string   `json:"lastname" binding:"required"`
	RoleIDs     []string `json:"roles"`
}

// RoleInfo represents a sanitized role in responses
type RoleInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// UserResponse is a sanitized user: password hash, OTP and action tokens
// never appear here.
type UserResponse struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	PhoneNumber      string     `json:"phoneNumber"`
	Firstname        string     `json:"firstname"`
	Lastname         string     `json:"lastname"`
	Username         string     `json:"username"`
	IsActive         bool       `json:"isActive"`
	IsVerified       bool       `json:"isVerified"`
	PreferedLanguage string     `json:"preferedLanguage"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty"`
	Roles            []RoleInfo `json:"roles,omitempty"`
}

// AuthData is the payload of authentication responses. Token is set for
// fully authenticated sessions; PendingToken when OTP verification is still
// required. Exactly one of the two is present.
type AuthData struct {
	Token        *string       `json:"token"`
	PendingToken *string       `json:"pendingToken,omitempty"`
	User         *UserResponse `json:"user,omitempty"`
}

// AuthResponse wraps AuthData the way the admin client expects
type AuthResponse struct {
	Data AuthData `json:"data"`
}

// TokenResponse carries a renewed session token
type TokenResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

// RegistrationInfo is the public slice of an invited user's record
type RegistrationInfo struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Firstname   string `json:"firstname"`
	Lastname    string `json:"lastname"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
