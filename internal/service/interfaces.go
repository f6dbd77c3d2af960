package service

import (
	"context"

	"github.com/mkosyakov/admin-auth-service/internal/domain"
	"github.com/mkosyakov/admin-auth-service/internal/dto"
)

// AuthService is the OTP/auth state machine
type AuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*AuthResult, error)
	Register(ctx context.Context, req *dto.RegisterRequest) (*AuthResult, error)
	RegisterAdmin(ctx context.Context, req *dto.RegisterAdminRequest) (*AuthResult, error)
	VerifyOTP(ctx context.Context, req *dto.VerifyOTPRequest) (*AuthResult, error)
	ResendOTP(ctx context.Context, req *dto.ResendOTPRequest) error
	RenewToken(ctx context.Context, token string) (string, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) (*AuthResult, error)
	Logout(ctx context.Context, userID string) error
	ValidateToken(ctx context.Context, token string) (*domain.TokenClaims, error)
}

// UserService manages admin user records and guards the super-admin
// invariant on every mutation
type UserService interface {
	Create(ctx context.Context, req *dto.CreateUserRequest) (*dto.UserResponse, error)
	RegistrationInfo(ctx context.Context, registrationToken string) (*dto.RegistrationInfo, error)
	UpdateProfile(ctx context.Context, userID string, req *dto.UpdateMeRequest) (*dto.UserResponse, error)
	UpdateByID(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error)
	Delete(ctx context.Context, id string) error
	IsLastSuperAdmin(ctx context.Context, userID string) (bool, error)
}
