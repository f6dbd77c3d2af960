package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mkosyakov/admin-auth-service/internal/domain"
	"github.com/mkosyakov/admin-auth-service/internal/repository"
	"go.uber.org/zap"
)

// fakeUserRepo is an in-memory UserRepository for service tests
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
	seq   int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
		if user.PhoneNumber != "" && u.PhoneNumber == user.PhoneNumber {
			return repository.ErrDuplicatePhone
		}
	}

	r.seq++
	user.ID = fmt.Sprintf("user-%d", r.seq)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByRegistrationToken(ctx context.Context, token string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.RegistrationToken != nil && *u.RegistrationToken == token {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByResetToken(ctx context.Context, token string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.ResetPasswordToken != nil && *u.ResetPasswordToken == token {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if patch.IsEmpty() {
		return nil, repository.ErrEmptyPatch
	}

	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	if patch.Email != nil {
		user.Email = *patch.Email
	}
	if patch.PhoneNumber != nil {
		user.PhoneNumber = *patch.PhoneNumber
	}
	if patch.Firstname != nil {
		user.Firstname = *patch.Firstname
	}
	if patch.Lastname != nil {
		user.Lastname = *patch.Lastname
	}
	if patch.Username != nil {
		user.Username = *patch.Username
	}
	if patch.PasswordHash != nil {
		user.PasswordHash = *patch.PasswordHash
	}
	if patch.IsActive != nil {
		user.IsActive = *patch.IsActive
	}
	if patch.IsVerified != nil {
		user.IsVerified = *patch.IsVerified
	}
	if patch.OTP != nil {
		user.OTP = *patch.OTP
	}
	if patch.RegistrationToken != nil {
		user.RegistrationToken = *patch.RegistrationToken
	}
	if patch.ResetPasswordToken != nil {
		user.ResetPasswordToken = *patch.ResetPasswordToken
	}
	if patch.PreferedLanguage != nil {
		user.PreferedLanguage = *patch.PreferedLanguage
	}
	user.UpdatedAt = time.Now()

	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) UpdateLastLogin(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	user.LastLoginAt = &now
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

// fakeRoleRepo is an in-memory RoleRepository
type fakeRoleRepo struct {
	mu         sync.Mutex
	superAdmin *domain.Role
	roles      map[string]domain.Role
	userRoles  map[string][]string
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{
		roles:     make(map[string]domain.Role),
		userRoles: make(map[string][]string),
	}
}

func (r *fakeRoleRepo) seedSuperAdmin() *domain.Role {
	r.mu.Lock()
	defer r.mu.Unlock()

	role := domain.Role{ID: "role-super-admin", Name: "Super Admin", Code: domain.SuperAdminCode}
	r.superAdmin = &role
	r.roles[role.ID] = role
	return &role
}

func (r *fakeRoleRepo) GetSuperAdmin(ctx context.Context) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.superAdmin == nil {
		return nil, repository.ErrNotFound
	}
	copied := *r.superAdmin
	return &copied, nil
}

func (r *fakeRoleRepo) GetByUserID(ctx context.Context, userID string) ([]domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var roles []domain.Role
	for _, id := range r.userRoles[userID] {
		if role, ok := r.roles[id]; ok {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

func (r *fakeRoleRepo) CountUsersWithRole(ctx context.Context, roleID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, ids := range r.userRoles {
		for _, id := range ids {
			if id == roleID {
				count++
				break
			}
		}
	}
	return count, nil
}

func (r *fakeRoleRepo) ReplaceUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.userRoles[userID] = append([]string(nil), roleIDs...)
	return nil
}

func (r *fakeRoleRepo) AssignRole(ctx context.Context, userID, roleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.userRoles[userID] {
		if id == roleID {
			return nil
		}
	}
	r.userRoles[userID] = append(r.userRoles[userID], roleID)
	return nil
}

// fakeHistoryRepo is an in-memory PasswordHistoryRepository
type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []*domain.PasswordHistoryEntry
	seq     int
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{}
}

func (r *fakeHistoryRepo) Create(ctx context.Context, entry *domain.PasswordHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	entry.ID = fmt.Sprintf("hist-%d", r.seq)
	stored := *entry
	r.entries = append(r.entries, &stored)
	return nil
}

func (r *fakeHistoryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.PasswordHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Reverse insertion order so timestamp ties come out newest-first.
	var result []*domain.PasswordHistoryEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].UserID == userID {
			copied := *r.entries[i]
			result = append(result, &copied)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ChangedAt.After(result[j].ChangedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *fakeHistoryRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	kept := r.entries[:0]
	for _, e := range r.entries {
		if _, gone := drop[e.ID]; !gone {
			kept = append(kept, e)
		}
	}
	r.entries = kept
	return nil
}

// fakeEmailSender and fakeSMSSender record dispatched notifications
type fakeEmailSender struct {
	mu   sync.Mutex
	msgs []EmailMessage
}

func (s *fakeEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

type fakeSMSSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *fakeSMSSender) Send(ctx context.Context, phone, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, phone+": "+message)
	return nil
}

// testEnv bundles the fakes behind a fully wired service pair
type testEnv struct {
	userRepo    *fakeUserRepo
	roleRepo    *fakeRoleRepo
	historyRepo *fakeHistoryRepo
	policy      *PasswordPolicy
	auth        AuthService
	users       UserService
}

func newTestEnv() *testEnv {
	userRepo := newFakeUserRepo()
	roleRepo := newFakeRoleRepo()
	historyRepo := newFakeHistoryRepo()

	policy := NewPasswordPolicy(historyRepo, 15, 12, 24*time.Hour)
	notifier := NewNotifier(&fakeEmailSender{}, &fakeSMSSender{}, "http://localhost:3000/admin", zap.NewNop())
	tokenManager := testTokenManager()

	return &testEnv{
		userRepo:    userRepo,
		roleRepo:    roleRepo,
		historyRepo: historyRepo,
		policy:      policy,
		auth:        NewAuthService(userRepo, roleRepo, tokenManager, policy, notifier, testBCryptCost, zap.NewNop()),
		users:       NewUserService(userRepo, roleRepo, policy, notifier, testBCryptCost),
	}
}
