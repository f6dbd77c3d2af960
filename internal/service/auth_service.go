package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkosyakov/admin-auth-service/internal/domain"
	"github.com/mkosyakov/admin-auth-service/internal/dto"
	"github.com/mkosyakov/admin-auth-service/internal/repository"
	"github.com/mkosyakov/admin-auth-service/internal/utils"
	"go.uber.org/zap"
)

// authService implements the AuthService state machine. Per user the flow is
// UNVERIFIED -> PENDING_OTP -> VERIFIED; the bootstrap super admin and the
// sole remaining super admin skip the OTP step.
type authService struct {
	userRepo     repository.UserRepository
	roleRepo     repository.RoleRepository
	tokenManager *utils.TokenManager
	policy       *PasswordPolicy
	notifier     *Notifier
	bcryptCost   int
	logger       *zap.Logger
}

// NewAuthService creates the auth state machine with its dependency set:
// credential store, token manager, password policy and notification
// dispatcher. No hidden globals.
func NewAuthService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	tokenManager *utils.TokenManager,
	policy *PasswordPolicy,
	notifier *Notifier,
	bcryptCost int,
	logger *zap.Logger,
) AuthService {
	return &authService{
		userRepo:     userRepo,
		roleRepo:     roleRepo,
		tokenManager: tokenManager,
		policy:       policy,
		notifier:     notifier,
		bcryptCost:   bcryptCost,
		logger:       logger,
	}
}

// checkCredentials authenticates email and password. Every failure collapses
// to the same generic error so a caller cannot tell which sub-check failed.
func (s *authService) checkCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, utils.SanitizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.PasswordHash == "" || !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, domain.ErrInvalidCredentials
	}

	return user, nil
}

// Login authenticates credentials and either opens a session or starts the
// OTP flow, depending on the user's verification state.
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*AuthResult, error) {
	user, err := s.checkCredentials(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	if err := s.loadRoles(ctx, user); err != nil {
		return nil, err
	}

	soleSuperAdmin, err := s.isSoleSuperAdmin(ctx, user)
	if err != nil {
		return nil, err
	}

	if user.IsVerified || soleSuperAdmin {
		token, err := s.tokenManager.GenerateSessionToken(user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to issue session token: %w", err)
		}
		return &AuthResult{Token: token, User: SanitizeUser(user)}, nil
	}

	return s.startOTPFlow(ctx, user)
}

// Register completes an invite-based registration: the invited user sets
// names and a password, then enters the OTP flow.
func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*AuthResult, error) {
	user, err := s.userRepo.GetByRegistrationToken(ctx, req.RegistrationToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewValidationError("invalid registration info")
		}
		return nil, fmt.Errorf("failed to look up registration token: %w", err)
	}

	if err := s.policy.Validate(req.UserInfo.Password); err != nil {
		return nil, err
	}

	passwordHash, err := utils.HashPassword(req.UserInfo.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	active := true
	user, err = s.userRepo.Update(ctx, user.ID, domain.UserPatch{
		Firstname:    &req.UserInfo.Firstname,
		Lastname:     &req.UserInfo.Lastname,
		PasswordHash: &passwordHash,
		IsActive:     &active,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete registration: %w", err)
	}

	if err := s.loadRoles(ctx, user); err != nil {
		return nil, err
	}

	return s.startOTPFlow(ctx, user)
}

// RegisterAdmin bootstraps the first super admin. This path is trusted: the
// account comes out active, verified and holding a session token, no OTP.
func (s *authService) RegisterAdmin(ctx context.Context, req *dto.RegisterAdminRequest) (*AuthResult, error) {
	count, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil, domain.NewApplicationError("you cannot register a new super admin")
	}

	superAdminRole, err := s.roleRepo.GetSuperAdmin(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewApplicationError("cannot register the first admin because the super admin role doesn't exist")
		}
		return nil, fmt.Errorf("failed to get super admin role: %w", err)
	}

	if !utils.ValidatePhoneNumber(req.PhoneNumber) {
		return nil, domain.NewFieldValidationError("phoneNumber", "must be 10 to 15 digits")
	}
	if err := s.policy.Validate(req.Password); err != nil {
		return nil, err
	}

	passwordHash, err := utils.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        utils.SanitizeEmail(req.Email),
		PhoneNumber:  req.PhoneNumber,
		Firstname:    req.Firstname,
		Lastname:     req.Lastname,
		PasswordHash: passwordHash,
		IsActive:     true,
		IsVerified:   true,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.roleRepo.AssignRole(ctx, user.ID, superAdminRole.ID); err != nil {
		return nil, fmt.Errorf("failed to assign super admin role: %w", err)
	}
	user.Roles = []domain.Role{*superAdminRole}

	token, err := s.tokenManager.GenerateSessionToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	return &AuthResult{Token: token, User: SanitizeUser(user)}, nil
}

// VerifyOTP checks the pending token and code against the stored state. The
// presented token must exactly match the stored one so a stale token cannot
// be replayed after a newer one was issued. All failures look the same.
func (s *authService) VerifyOTP(ctx context.Context, req *dto.VerifyOTPRequest) (*AuthResult, error) {
	user, err := s.userByPendingToken(ctx, req.PendingToken)
	if err != nil {
		return nil, err
	}

	if user.OTP == nil || *user.OTP != req.Code {
		return nil, domain.ErrInvalidOTP
	}

	verified := true
	var cleared *string
	user, err = s.userRepo.Update(ctx, user.ID, domain.UserPatch{
		IsVerified:        &verified,
		OTP:               &cleared,
		RegistrationToken: &cleared,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark user verified: %w", err)
	}

	if err := s.loadRoles(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.tokenManager.GenerateSessionToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	return &AuthResult{Token: token, User: SanitizeUser(user)}, nil
}

// ResendOTP either rotates the code (user pressed resend) or invalidates the
// pending token (client countdown expired). The distinction is carried by
// the request flag, never inferred here.
func (s *authService) ResendOTP(ctx context.Context, req *dto.ResendOTPRequest) error {
	user, err := s.userByPendingToken(ctx, req.PendingToken)
	if err != nil {
		return err
	}

	var cleared *string
	if !req.IsResendAction {
		// Countdown expired: kill the pending token and force a fresh login.
		_, err = s.userRepo.Update(ctx, user.ID, domain.UserPatch{
			OTP:               &cleared,
			RegistrationToken: &cleared,
		})
		if err != nil {
			return fmt.Errorf("failed to invalidate pending token: %w", err)
		}
		return domain.ErrOTPExpired
	}

	code, err := utils.GenerateOTPCode()
	if err != nil {
		return err
	}

	otp := &code
	user, err = s.userRepo.Update(ctx, user.ID, domain.UserPatch{OTP: &otp})
	if err != nil {
		return fmt.Errorf("failed to store new otp: %w", err)
	}

	s.notifier.DispatchOTP(user, code)
	return nil
}

// RenewToken re-issues a session token for the same subject. Pending tokens
// are refused; there is no re-authentication (sliding expiry).
func (s *authService) RenewToken(ctx context.Context, token string) (string, error) {
	claims, ok := s.tokenManager.Verify(token)
	if !ok || claims.IsPending() {
		return "", domain.ErrInvalidToken
	}

	renewed, err := s.tokenManager.GenerateSessionToken(claims.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to renew token: %w", err)
	}

	return renewed, nil
}

// ForgotPassword stores a reset token and emails a reset link. An unknown or
// inactive email is a silent no-op so the endpoint cannot be used to
// enumerate accounts.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, utils.SanitizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive {
		return nil
	}

	resetToken, err := utils.GenerateActionToken()
	if err != nil {
		return err
	}

	tokenRef := &resetToken
	user, err = s.userRepo.Update(ctx, user.ID, domain.UserPatch{ResetPasswordToken: &tokenRef})
	if err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	s.notifier.DispatchResetPassword(user, resetToken)
	return nil
}

// ResetPassword validates the reset token and the new password against the
// full policy, writes the new hash and history entry, then forces the user
// back through OTP verification. No session token is ever granted here.
func (s *authService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) (*AuthResult, error) {
	user, err := s.userRepo.GetByResetToken(ctx, req.ResetPasswordToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up reset token: %w", err)
	}

	if err := s.policy.Validate(req.Password); err != nil {
		return nil, err
	}
	if err := s.policy.CheckHistory(ctx, user.ID, req.Password); err != nil {
		return nil, err
	}
	if err := s.policy.CheckChangeFrequency(ctx, user.ID); err != nil {
		return nil, err
	}

	passwordHash, err := utils.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	code, err := utils.GenerateOTPCode()
	if err != nil {
		return nil, err
	}
	pendingToken, err := s.tokenManager.GeneratePendingToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue pending token: %w", err)
	}

	var cleared *string
	verified := false
	otp := &code
	tokenRef := &pendingToken
	user, err = s.userRepo.Update(ctx, user.ID, domain.UserPatch{
		PasswordHash:       &passwordHash,
		ResetPasswordToken: &cleared,
		IsVerified:         &verified,
		OTP:                &otp,
		RegistrationToken:  &tokenRef,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reset password: %w", err)
	}

	if err := s.policy.RecordChange(ctx, user.ID, passwordHash); err != nil {
		return nil, err
	}

	if err := s.loadRoles(ctx, user); err != nil {
		return nil, err
	}

	s.notifier.DispatchOTP(user, code)

	return &AuthResult{PendingToken: pendingToken, User: SanitizeUser(user)}, nil
}

// Logout demotes the user's verification state so the next login re-enters
// the OTP flow. Tokens are stateless; this is the server-side invalidation.
func (s *authService) Logout(ctx context.Context, userID string) error {
	verified := false
	_, err := s.userRepo.Update(ctx, userID, domain.UserPatch{IsVerified: &verified})
	if err != nil {
		return fmt.Errorf("failed to demote verification state: %w", err)
	}
	return nil
}

// ValidateToken checks a bearer session token for protected routes. Pending
// tokens and tokens of deactivated users are refused.
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.TokenClaims, error) {
	claims, ok := s.tokenManager.Verify(token)
	if !ok || claims.IsPending() {
		return nil, domain.ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	if !user.IsActive {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}

// startOTPFlow mints a fresh code and pending token, persists both on the
// user record (the stored token is what makes older pending tokens stale)
// and dispatches the code. Only the pending token goes back to the caller.
func (s *authService) startOTPFlow(ctx context.Context, user *domain.User) (*AuthResult, error) {
	code, err := utils.GenerateOTPCode()
	if err != nil {
		return nil, err
	}

	pendingToken, err := s.tokenManager.GeneratePendingToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue pending token: %w", err)
	}

	otp := &code
	tokenRef := &pendingToken
	roles := user.Roles
	user, err = s.userRepo.Update(ctx, user.ID, domain.UserPatch{
		OTP:               &otp,
		RegistrationToken: &tokenRef,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store otp state: %w", err)
	}
	user.Roles = roles

	s.notifier.DispatchOTP(user, code)

	return &AuthResult{PendingToken: pendingToken, User: SanitizeUser(user)}, nil
}

// userByPendingToken resolves a user from a pending token and enforces the
// exact-match rule against the stored token.
func (s *authService) userByPendingToken(ctx context.Context, pendingToken string) (*domain.User, error) {
	claims, ok := s.tokenManager.Verify(pendingToken)
	if !ok || !claims.IsPending() {
		return nil, domain.ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	// A stale token (one issued before the stored one) and a wrong code must
	// be indistinguishable to the caller.
	if user.RegistrationToken == nil || *user.RegistrationToken != pendingToken {
		return nil, domain.ErrInvalidOTP
	}

	return user, nil
}

// isSoleSuperAdmin reports whether the user is the only active holder of the
// super-admin role. That account skips OTP so the panel can never lock out
// its last administrator.
func (s *authService) isSoleSuperAdmin(ctx context.Context, user *domain.User) (bool, error) {
	if !user.HasSuperAdminRole() {
		return false, nil
	}

	role, err := s.roleRepo.GetSuperAdmin(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get super admin role: %w", err)
	}

	count, err := s.roleRepo.CountUsersWithRole(ctx, role.ID)
	if err != nil {
		return false, fmt.Errorf("failed to count super admins: %w", err)
	}

	return count == 1, nil
}

// loadRoles populates user.Roles from the role repository
func (s *authService) loadRoles(ctx context.Context, user *domain.User) error {
	roles, err := s.roleRepo.GetByUserID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to load roles: %w", err)
	}
	user.Roles = roles
	return nil
}
