package repository

import (
	"context"

	"github.com/mkosyakov/admin-auth-service/internal/domain"
)

// UserRepository defines methods for admin user operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByRegistrationToken(ctx context.Context, token string) (*domain.User, error)
	GetByResetToken(ctx context.Context, token string) (*domain.User, error)
	Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, userID string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// PasswordHistoryRepository defines methods for password history operations.
// Trimming to the retention limit is a read / delete / insert sequence owned
// by the caller; it is best effort, not transactional.
type PasswordHistoryRepository interface {
	Create(ctx context.Context, entry *domain.PasswordHistoryEntry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.PasswordHistoryEntry, error)
	DeleteByIDs(ctx context.Context, ids []string) error
}

// RoleRepository defines methods for role lookups and assignment
type RoleRepository interface {
	GetSuperAdmin(ctx context.Context) (*domain.Role, error)
	GetByUserID(ctx context.Context, userID string) ([]domain.Role, error)
	CountUsersWithRole(ctx context.Context, roleID string) (int, error)
	ReplaceUserRoles(ctx context.Context, userID string, roleIDs []string) error
	AssignRole(ctx context.Context, userID, roleID string) error
}
