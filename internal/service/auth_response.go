package service

import (
	"github.com/mkosyakov/admin-auth-service/internal/domain"
	"github.com/mkosyakov/admin-auth-service/internal/dto"
)

// AuthResult is what the state machine hands back to the transport layer.
// Token is set for fully authenticated sessions, PendingToken when the user
// still has to pass OTP verification. Never both.
type AuthResult struct {
	Token        string
	PendingToken string
	User         *dto.UserResponse
}

// SanitizeUser strips everything that must not cross the trust boundary:
// password hash, OTP code, registration and reset tokens.
func SanitizeUser(user *domain.User) *dto.UserResponse {
	if user == nil {
		return nil
	}

	resp := &dto.UserResponse{
		ID:               user.ID,
		Email:            user.Email,
		PhoneNumber:      user.PhoneNumber,
		Firstname:        user.Firstname,
		Lastname:         user.Lastname,
		Username:         user.Username,
		IsActive:         user.IsActive,
		IsVerified:       user.IsVerified,
		PreferedLanguage: user.PreferedLanguage,
		CreatedAt:        user.CreatedAt,
		UpdatedAt:        user.UpdatedAt,
		LastLoginAt:      user.LastLoginAt,
	}

	for _, role := range user.Roles {
		resp.Roles = append(resp.Roles, dto.RoleInfo{
			ID:          role.ID,
			Name:        role.Name,
			Code:        role.Code,
			Description: role.Description,
		})
	}

	return resp
}
