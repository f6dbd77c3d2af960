package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkosyakov/admin-auth-service/internal/domain"
	"github.com/mkosyakov/admin-auth-service/internal/dto"
	"github.com/mkosyakov/admin-auth-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testBCryptCost = bcrypt.MinCost
	validPassword  = "Aa1!aaaaaaaaaaaa"
	otherPassword  = "Bb2@bbbbbbbbbbbb"
)

func testTokenManager() *utils.TokenManager {
	return utils.NewTokenManager(
		"test-secret-key-that-is-at-least-32-chars",
		30*24*time.Hour,
		60*time.Second,
	)
}

var phoneSeq atomic.Int64

func seedUser(t *testing.T, env *testEnv, email, password string, verified bool) *domain.User {
	t.Helper()

	hash, err := utils.HashPassword(password, testBCryptCost)
	require.NoError(t, err)

	user := &domain.User{
		Email:        email,
		PhoneNumber:  fmt.Sprintf("7999%07d", phoneSeq.Add(1)),
		Firstname:    "Test",
		Lastname:     "User",
		PasswordHash: hash,
		IsActive:     true,
		IsVerified:   verified,
	}
	require.NoError(t, env.userRepo.Create(context.Background(), user))
	return user
}

func storedUser(t *testing.T, env *testEnv, id string) *domain.User {
	t.Helper()
	user, err := env.userRepo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

// wrongCode returns a 6-digit code guaranteed not to match the stored one
func wrongCode(stored string) string {
	if stored == "000000" {
		return "111111"
	}
	return "000000"
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedUser(t, env, "admin@example.com", validPassword, true)

	cases := []dto.LoginRequest{
		{Email: "nobody@example.com", Password: validPassword},
		{Email: "admin@example.com", Password: "wrong-password"},
	}
	for _, req := range cases {
		_, err := env.auth.Login(ctx, &req)
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}
}

func TestLoginInactiveUserRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	user := seedUser(t, env, "admin@example.com", validPassword, true)

	inactive := false
	_, err := env.userRepo.Update(ctx, user.ID, domain.UserPatch{IsActive: &inactive})
	require.NoError(t, err)

	_, err = env.auth.Login(ctx, &dto.LoginRequest{Email: "admin@example.com", Password: validPassword})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLoginUnverifiedStartsOTPFlow(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	user := seedUser(t, env, "admin@example.com", validPassword, false)

	result, err := env.auth.Login(ctx, &dto.LoginRequest{Email: "admin@example.com", Password: validPassword})
	require.NoError(t, err)

	assert.Empty(t, result.Token)
	assert.NotEmpty(t, result.PendingToken)

	stored := storedUser(t, env, user.ID)
	require.NotNil(t, stored.OTP)
	assert.Len(t, *stored.OTP, 6)
	require.NotNil(t, stored.RegistrationToken)
	assert.Equal(t, result.PendingToken, *stored.RegistrationToken)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestLoginVerifiedGetsSessionToken(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedUser(t, env, "admin@example.com", validPassword, true)

	result, err := env.auth.Login(ctx, &dto.LoginRequest{Email: "admin@example.com", Password: validPassword})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Token)
	assert.Empty(t, result.PendingToken)
	require.NotNil(t, result.User)
	assert.True(t, result.User.IsVerified)
}

func TestLoginSoleSuperAdminSkipsOTP(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	role := env.roleRepo.seedSuperAdmin()
	user := seedUser(t, env, "admin@example.com", validPassword, false)
	require.NoError(t, env.roleRepo.AssignRole(ctx, user.ID, role.ID))

	result, err := env.auth.Login(ctx, &dto.LoginRequest{Email: "admin@example.com", Password: validPassword})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Token)
	assert.Empty(t, result.PendingToken)
}

func TestLoginSecondSuperAdminStillNeedsOTP(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	role := env.roleRepo.seedSuperAdmin()

	first := seedUser(t, env, "first@example.com", validPassword, false)
	second := seedUser(t, env, "second@example.com", validPassword, false)
	require.NoError(t, env.roleRepo.AssignRole(ctx, first.ID, role.ID))
	require.NoError(t, env.roleRepo.AssignRole(ctx, second.ID, role.ID))

	result, err := env.auth.Login(ctx, &dto.LoginRequest{Email: "second@example.com", Password: validPassword})
	require.NoError(t, err)

	assert.Empty(t, result.Token)
	assert.NotEmpty(t, result.PendingToken)
}

func TestVerifyOTPSuccess(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	user := seedUser(t, env, "admin@example.com", validPassword, false)

	result, err := env.auth.Login(ctx, &dto.LoginRequest{Email: "admin@example.com", Password: validPassword})
	require.NoError(t, err)

	code := *storedUser(t, env, user.ID).OTP

	verified, err := env.auth.VerifyOTP(ctx, &dto.VerifyOTPRequest{
		PendingToken: result.PendingToken,
		Code:         code,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, verified.Token)
	assert.Empty(t, verified.PendingToken)

	stored := storedUser(t, env, user.ID)
	assert.True(t, stored.IsVerified)
	assert.Nil(t, stored.OTP)
	assert.Nil(t, stored.RegistrationToken)
}

func TestVerifyOTPWrongCode(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	user := seedUser(t, env, "admin@example.com", validPassword, false)

	result, err := env.auth.Login(ctx, &dto.LoginRequest{Email: "admin@example.com", Password: validPassword})
	require.NoError(t, err)

	code := *storedUser(t, env, user.ID).OTP
	_, err = env.auth.VerifyOTP(ctx, &dto.VerifyOTPRequest{
		PendingToken: result.PendingToken,
		Code:         wrongCode(code),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)

	// Wrong code does not consume the stored state; the right one still works.
	_, err = env.auth.VerifyOTP(ctx, &dto.VerifyOTPRequest{
		PendingToken: result.PendingToken,
		Code:         code,
	})
	assert.NoError(t, err)
}

func TestVerifyOTPReplayRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	user := seedUser(t, env, "admin@example.com", validPassword, false)

	result, err := env.auth.Login(ctx, &dto.LoginRequest{Email: "admin@example.com", Password: validPassword})
	require.NoError(t, err)
	code := *storedUser(t, env, user.ID).OTP

	_, err = env.auth.VerifyOTP(ctx, &dto.VerifyOTPRequest{PendingToken: result.PendingToken, Code: code})
	require.NoError(t, err)

	// Same token and code again: stored state is gone.
	_, err = env.auth.VerifyOTP(ctx, &dto.VerifyOTPRequest{PendingToken: result.PendingToken, Code: code})
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
}

func TestVerifyOTPStaleTokenRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	user := seedUser(t, env, "admin@example.com", validPassword, false)

	first, err := env.auth.Login(ctx, &dto.LoginRequest{Email: "admin@example.com", Password: validPassword})
	require.NoError(t, err)

	// A second login supersedes the first pending token.
	time.Sleep(1100 * time.Millisecond)
	_, err = env.auth.Login(ctx, &dto.LoginRequest{Email: "admin@example.com", Password: validPassword})
	require.NoError(t, err)

	code := *storedUser(t, env, user.ID).OTP
	_, err = env.auth.VerifyOTP(ctx, &dto.VerifyOTPRequest{PendingToken: first.PendingToken, Code: code})
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
}

func TestVerifyOTPGarbageToken(t *testing.T) {
	env := newTestEnv()

	_, err := env.auth.VerifyOTP(context.Background(), &dto.VerifyOTPRequest{
		PendingToken: "not-a-jwt",
		Code:         "123456",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestResendOTPRotatesCode(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	user := seedUser(t, env, "admin@example.com", validPassword, false)

	result, err := env.auth.Login(ctx, &dto.LoginRequest{Email: "admin@example.com", Password: validPassword})
	require.NoError(t, err)

	err = env.auth.ResendOTP(ctx, &dto.ResendOTPRequest{PendingToken: result.PendingToken, IsResendAction: true})
	require.NoError(t, err)

	stored := storedUser(t, env, user.ID)
	require.NotNil(t, stored.OTP)
	assert.Len(t, *stored.OTP, 6)
	// The pending token itself survives a resend.
	require.NotNil(t, stored.RegistrationToken)
	assert.Equal(t, result.PendingToken, *stored.RegistrationToken)

	_, err = env.auth.VerifyOTP(ctx, &dto.VerifyOTPRequest{PendingToken: result.PendingToken, Code: *stored.OTP})
	assert.NoError(t, err)
}

func TestResendOTPExpiryInvalidatesPendingToken(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	user := seedUser(t, env, "admin@example.com", validPassword, false)

	result, err := env.auth.Login(ctx, &dto.LoginRequest{Email: "admin@example.com", Password: validPassword})
	require.NoError(t, err)
	code := *storedUser(t, env, user.ID).OTP

	err = env.auth.ResendOTP(ctx, &dto.ResendOTPRequest{PendingToken: result.PendingToken, IsResendAction: false})
	assert.ErrorIs(t, err, domain.ErrOTPExpired)

	stored := storedUser(t, env, user.ID)
	assert.Nil(t, stored.OTP)
	assert.Nil(t, stored.RegistrationToken)

	_, err = env.auth.VerifyOTP(ctx, &dto.VerifyOTPRequest{PendingToken: result.PendingToken, Code: code})
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
}

func TestRegisterAdminBootstrap(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.roleRepo.seedSuperAdmin()

	result, err := env.auth.RegisterAdmin(ctx, &dto.RegisterAdminRequest{
		Email:       "Root@Example.com",
		PhoneNumber: "79991234567",
		Firstname:   "Root",
		Lastname:    "Admin",
		Password:    validPassword,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Token)
	assert.Empty(t, result.PendingToken)
	require.NotNil(t, result.User)
	assert.Equal(t, "root@example.com", result.User.Email)
	assert.True(t, result.User.IsVerified)
	require.Len(t, result.User.Roles, 1)
	assert.Equal(t, domain.SuperAdminCode, result.User.Roles[0].Code)
}

func TestRegisterAdminRefusedWhenUsersExist(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.roleRepo.seedSuperAdmin()
	seedUser(t, env, "existing@example.com", validPassword, true)

	_, err := env.auth.RegisterAdmin(ctx, &dto.RegisterAdminRequest{
		Email:       "root@example.com",
		PhoneNumber: "79991234567",
		Firstname:   "Root",
		Lastname:    "Admin",
		Password:    validPassword,
	})
	assert.True(t, domain.IsApplicationError(err))
}

func TestRegisterAdminWeakPasswordRejected(t *testing.T) {
	env := newTestEnv()
	env.roleRepo.seedSuperAdmin()

	_, err := env.auth.RegisterAdmin(context.Background(), &dto.RegisterAdminRequest{
		Email:       "root@example.com",
		PhoneNumber: "79991234567",
		Firstname:   "Root",
		Lastname:    "Admin",
		Password:    "short",
	})
	assert.True(t, domain.IsValidationError(err))
}

func TestInviteRegisterVerifyScenario(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	invited, err := env.users.Create(ctx, &dto.CreateUserRequest{
		Email:       "new.admin@example.com",
		PhoneNumber: "79995554433",
		Firstname:   "New",
		Lastname:    "Admin",
	})
	require.NoError(t, err)
	assert.False(t, invited.IsActive)

	stored := storedUser(t, env, invited.ID)
	require.NotNil(t, stored.RegistrationToken)
	inviteToken := *stored.RegistrationToken

	result, err := env.auth.Register(ctx, &dto.RegisterRequest{
		RegistrationToken: inviteToken,
		UserInfo: dto.RegisterUserInfo{
			Firstname: "New",
			Lastname:  "Admin",
			Password:  validPassword,
		},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Token)
	assert.NotEmpty(t, result.PendingToken)

	stored = storedUser(t, env, invited.ID)
	assert.True(t, stored.IsActive)
	require.NotNil(t, stored.OTP)
	code := *stored.OTP

	_, err = env.auth.VerifyOTP(ctx, &dto.VerifyOTPRequest{
		PendingToken: result.PendingToken,
		Code:         wrongCode(code),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)

	verified, err := env.auth.VerifyOTP(ctx, &dto.VerifyOTPRequest{
		PendingToken: result.PendingToken,
		Code:         code,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, verified.Token)
	assert.True(t, storedUser(t, env, invited.ID).IsVerified)
}

func TestRegisterUnknownTokenRejected(t *testing.T) {
	env := newTestEnv()

	_, err := env.auth.Register(context.Background(), &dto.RegisterRequest{
		RegistrationToken: "no-such-token",
		UserInfo: dto.RegisterUserInfo{
			Firstname: "New",
			Lastname:  "Admin",
			Password:  validPassword,
		},
	})
	assert.True(t, domain.IsValidationError(err))
}

func TestRenewToken(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	manager := testTokenManager()

	session, err := manager.GenerateSessionToken("user-1")
	require.NoError(t, err)

	renewed, err := env.auth.RenewToken(ctx, session)
	require.NoError(t, err)
	claims, ok := manager.Verify(renewed)
	require.True(t, ok)
	assert.Equal(t, "user-1", claims.UserID)

	pending, err := manager.GeneratePendingToken("user-1")
	require.NoError(t, err)
	_, err = env.auth.RenewToken(ctx, pending)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = env.auth.RenewToken(ctx, "garbage")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestLogoutDemotesVerification(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	user := seedUser(t, env, "admin@example.com", validPassword, true)

	require.NoError(t, env.auth.Logout(ctx, user.ID))
	assert.False(t, storedUser(t, env, user.ID).IsVerified)

	// Next login re-enters the OTP flow.
	result, err := env.auth.Login(ctx, &dto.LoginRequest{Email: "admin@example.com", Password: validPassword})
	require.NoError(t, err)
	assert.Empty(t, result.Token)
	assert.NotEmpty(t, result.PendingToken)
}

func TestForgotPasswordStoresResetToken(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	user := seedUser(t, env, "admin@example.com", validPassword, true)

	require.NoError(t, env.auth.ForgotPassword(ctx, "Admin@Example.com"))

	stored := storedUser(t, env, user.ID)
	require.NotNil(t, stored.ResetPasswordToken)
	assert.NotEmpty(t, *stored.ResetPasswordToken)
}

func TestForgotPasswordUnknownEmailSilent(t *testing.T) {
	env := newTestEnv()
	assert.NoError(t, env.auth.ForgotPassword(context.Background(), "nobody@example.com"))
}

func TestForgotPasswordInactiveUserSilent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	user := seedUser(t, env, "admin@example.com", validPassword, true)

	inactive := false
	_, err := env.userRepo.Update(ctx, user.ID, domain.UserPatch{IsActive: &inactive})
	require.NoError(t, err)

	require.NoError(t, env.auth.ForgotPassword(ctx, "admin@example.com"))
	assert.Nil(t, storedUser(t, env, user.ID).ResetPasswordToken)
}

func TestResetPasswordIssuesPendingTokenOnly(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	user := seedUser(t, env, "admin@example.com", validPassword, true)

	require.NoError(t, env.auth.ForgotPassword(ctx, "admin@example.com"))
	resetToken := *storedUser(t, env, user.ID).ResetPasswordToken

	result, err := env.auth.ResetPassword(ctx, &dto.ResetPasswordRequest{
		ResetPasswordToken: resetToken,
		Password:           otherPassword,
	})
	require.NoError(t, err)

	assert.Empty(t, result.Token)
	assert.NotEmpty(t, result.PendingToken)

	stored := storedUser(t, env, user.ID)
	assert.False(t, stored.IsVerified)
	assert.Nil(t, stored.ResetPasswordToken)
	require.NotNil(t, stored.OTP)
	require.NotNil(t, stored.RegistrationToken)
	assert.Equal(t, result.PendingToken, *stored.RegistrationToken)
	assert.True(t, utils.CheckPasswordHash(otherPassword, stored.PasswordHash))

	entries, err := env.historyRepo.ListByUser(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// The old password no longer logs in; the new one resumes the OTP flow.
	_, err = env.auth.Login(ctx, &dto.LoginRequest{Email: "admin@example.com", Password: validPassword})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestResetPasswordRejectsReusedPassword(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	user := seedUser(t, env, "admin@example.com", validPassword, true)

	hash, err := utils.HashPassword(validPassword, testBCryptCost)
	require.NoError(t, err)
	require.NoError(t, env.historyRepo.Create(ctx, &domain.PasswordHistoryEntry{
		UserID:       user.ID,
		PasswordHash: hash,
		ChangedAt:    time.Now().Add(-48 * time.Hour),
	}))

	require.NoError(t, env.auth.ForgotPassword(ctx, "admin@example.com"))
	resetToken := *storedUser(t, env, user.ID).ResetPasswordToken

	_, err = env.auth.ResetPassword(ctx, &dto.ResetPasswordRequest{
		ResetPasswordToken: resetToken,
		Password:           validPassword,
	})
	assert.ErrorIs(t, err, domain.ErrPasswordReused)
}

func TestResetPasswordRejectsTooFrequentChange(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	user := seedUser(t, env, "admin@example.com", validPassword, true)

	hash, err := utils.HashPassword(validPassword, testBCryptCost)
	require.NoError(t, err)
	require.NoError(t, env.historyRepo.Create(ctx, &domain.PasswordHistoryEntry{
		UserID:       user.ID,
		PasswordHash: hash,
		ChangedAt:    time.Now().Add(-time.Hour),
	}))

	require.NoError(t, env.auth.ForgotPassword(ctx, "admin@example.com"))
	resetToken := *storedUser(t, env, user.ID).ResetPasswordToken

	_, err = env.auth.ResetPassword(ctx, &dto.ResetPasswordRequest{
		ResetPasswordToken: resetToken,
		Password:           otherPassword,
	})
	assert.ErrorIs(t, err, domain.ErrPasswordTooSoon)
}

func TestResetPasswordUnknownToken(t *testing.T) {
	env := newTestEnv()

	_, err := env.auth.ResetPassword(context.Background(), &dto.ResetPasswordRequest{
		ResetPasswordToken: "no-such-token",
		Password:           validPassword,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestValidateToken(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	user := seedUser(t, env, "admin@example.com", validPassword, true)

	manager := testTokenManager()
	session, err := manager.GenerateSessionToken(user.ID)
	require.NoError(t, err)

	claims, err := env.auth.ValidateToken(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	pending, err := manager.GeneratePendingToken(user.ID)
	require.NoError(t, err)
	_, err = env.auth.ValidateToken(ctx, pending)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	inactive := false
	_, err = env.userRepo.Update(ctx, user.ID, domain.UserPatch{IsActive: &inactive})
	require.NoError(t, err)
	_, err = env.auth.ValidateToken(ctx, session)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}
