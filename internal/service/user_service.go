package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkosyakov/admin-auth-service/internal/domain"
	"github.com/mkosyakov/admin-auth-service/internal/dto"
	"github.com/mkosyakov/admin-auth-service/internal/repository"
	"github.com/mkosyakov/admin-auth-service/internal/utils"
)

// userService implements UserService
type userService struct {
	userRepo   repository.UserRepository
	roleRepo   repository.RoleRepository
	policy     *PasswordPolicy
	notifier   *Notifier
	bcryptCost int
}

// NewUserService creates a new user service
func NewUserService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	policy *PasswordPolicy,
	notifier *Notifier,
	bcryptCost int,
) UserService {
	return &userService{
		userRepo:   userRepo,
		roleRepo:   roleRepo,
		policy:     policy,
		notifier:   notifier,
		bcryptCost: bcryptCost,
	}
}

// Create invites a new admin user: the record starts inactive and unverified
// with a registration token, and the invite link goes out by email.
func (s *userService) Create(ctx context.Context, req *dto.CreateUserRequest) (*dto.UserResponse, error) {
	if !utils.ValidatePhoneNumber(req.PhoneNumber) {
		return nil, domain.NewFieldValidationError("phoneNumber", "must be 10 to 15 digits")
	}

	registrationToken, err := utils.GenerateActionToken()
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:             utils.SanitizeEmail(req.Email),
		PhoneNumber:       req.PhoneNumber,
		Firstname:         req.Firstname,
		Lastname:          req.Lastname,
		RegistrationToken: &registrationToken,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	if len(req.RoleIDs) > 0 {
		if err := s.roleRepo.ReplaceUserRoles(ctx, user.ID, req.RoleIDs); err != nil {
			return nil, err
		}
		roles, err := s.roleRepo.GetByUserID(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load roles: %w", err)
		}
		user.Roles = roles
	}

	s.notifier.DispatchInvite(user, registrationToken)

	return SanitizeUser(user), nil
}

// RegistrationInfo returns the public slice of an invited user's record
func (s *userService) RegistrationInfo(ctx context.Context, registrationToken string) (*dto.RegistrationInfo, error) {
	user, err := s.userRepo.GetByRegistrationToken(ctx, registrationToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewValidationError("invalid registrationToken")
		}
		return nil, fmt.Errorf("failed to look up registration token: %w", err)
	}

	return &dto.RegistrationInfo{
		Email:       user.Email,
		PhoneNumber: user.PhoneNumber,
		Firstname:   user.Firstname,
		Lastname:    user.Lastname,
	}, nil
}

// UpdateProfile applies a self-service profile update. Changing the password
// requires the current one and runs the full password policy.
func (s *userService) UpdateProfile(ctx context.Context, userID string, req *dto.UpdateMeRequest) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	patch := domain.UserPatch{
		Firstname:        req.Firstname,
		Lastname:         req.Lastname,
		Username:         req.Username,
		PreferedLanguage: req.PreferedLanguage,
	}

	if req.Email != nil {
		email := utils.SanitizeEmail(*req.Email)
		if !utils.ValidateEmail(email) {
			return nil, domain.NewFieldValidationError("email", "must be a valid email address")
		}
		patch.Email = &email
	}

	var passwordHash string
	if req.Password != nil {
		if req.CurrentPassword == nil || !utils.CheckPasswordHash(*req.CurrentPassword, user.PasswordHash) {
			return nil, domain.NewFieldValidationError("currentPassword", "does not match the current password")
		}
		if err := s.policy.Validate(*req.Password); err != nil {
			return nil, err
		}
		if err := s.policy.CheckHistory(ctx, user.ID, *req.Password); err != nil {
			return nil, err
		}
		if err := s.policy.CheckChangeFrequency(ctx, user.ID); err != nil {
			return nil, err
		}

		passwordHash, err = utils.HashPassword(*req.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &passwordHash
	}

	if patch.IsEmpty() {
		return nil, domain.NewValidationError("nothing to update")
	}

	updated, err := s.UpdateByID(ctx, userID, patch)
	if err != nil {
		return nil, err
	}

	if patch.PasswordHash != nil {
		if err := s.policy.RecordChange(ctx, userID, passwordHash); err != nil {
			return nil, err
		}
	}

	return SanitizeUser(updated), nil
}

// UpdateByID applies a typed patch after enforcing the super-admin
// invariant: the change is rejected before any mutation if it would leave
// the system without an active super admin.
func (s *userService) UpdateByID(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	if patch.RoleIDs != nil {
		removesSuperAdmin, err := s.roleSetDropsSuperAdmin(ctx, patch.RoleIDs)
		if err != nil {
			return nil, err
		}
		if removesSuperAdmin {
			last, err := s.IsLastSuperAdmin(ctx, id)
			if err != nil {
				return nil, err
			}
			if last {
				return nil, domain.ErrLastSuperAdmin
			}
		}
	}

	if patch.IsActive != nil && !*patch.IsActive {
		last, err := s.IsLastSuperAdmin(ctx, id)
		if err != nil {
			return nil, err
		}
		if last {
			return nil, domain.ErrLastSuperAdmin
		}
	}

	var user *domain.User
	var err error
	if patch.HasColumnChanges() {
		user, err = s.userRepo.Update(ctx, id, patch)
	} else {
		user, err = s.userRepo.GetByID(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	if patch.RoleIDs != nil {
		if err := s.roleRepo.ReplaceUserRoles(ctx, id, patch.RoleIDs); err != nil {
			return nil, err
		}
	}

	roles, err := s.roleRepo.GetByUserID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	user.Roles = roles

	return user, nil
}

// Delete removes a user unless they are the last active super admin
func (s *userService) Delete(ctx context.Context, id string) error {
	last, err := s.IsLastSuperAdmin(ctx, id)
	if err != nil {
		return err
	}
	if last {
		return domain.ErrLastSuperAdmin
	}

	return s.userRepo.Delete(ctx, id)
}

// IsLastSuperAdmin reports whether the user is the only active holder of the
// super-admin role.
func (s *userService) IsLastSuperAdmin(ctx context.Context, userID string) (bool, error) {
	roles, err := s.roleRepo.GetByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load roles: %w", err)
	}

	holdsSuperAdmin := false
	for _, r := range roles {
		if r.Code == domain.SuperAdminCode {
			holdsSuperAdmin = true
			break
		}
	}
	if !holdsSuperAdmin {
		return false, nil
	}

	role, err := s.roleRepo.GetSuperAdmin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get super admin role: %w", err)
	}

	count, err := s.roleRepo.CountUsersWithRole(ctx, role.ID)
	if err != nil {
		return false, fmt.Errorf("failed to count super admins: %w", err)
	}

	return count == 1, nil
}

// roleSetDropsSuperAdmin reports whether the new role set excludes the
// super-admin role.
func (s *userService) roleSetDropsSuperAdmin(ctx context.Context, roleIDs []string) (bool, error) {
	role, err := s.roleRepo.GetSuperAdmin(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get super admin role: %w", err)
	}

	for _, id := range roleIDs {
		if id == role.ID {
			return false, nil
		}
	}
	return true, nil
}
