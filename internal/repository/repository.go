package repository

import (
	"github.com/mkosyakov/admin-auth-service/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	User            UserRepository
	PasswordHistory PasswordHistoryRepository
	Role            RoleRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:            NewUserRepository(db),
		PasswordHistory: NewPasswordHistoryRepository(db),
		Role:            NewRoleRepository(db),
	}
}
