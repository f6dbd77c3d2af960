package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mkosyakov/admin-auth-service/internal/domain"
	"github.com/mkosyakov/admin-auth-service/pkg/database"
)

// roleRepository implements RoleRepository interface
type roleRepository struct {
	db *database.Postgres
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *database.Postgres) RoleRepository {
	return &roleRepository{db: db}
}

// GetSuperAdmin retrieves the super-admin role
func (r *roleRepository) GetSuperAdmin(ctx context.Context) (*domain.Role, error) {
	query := `SELECT id, name, code, description FROM admin_roles WHERE code = $1`

	role := &domain.Role{}
	err := r.db.DB.QueryRowContext(ctx, query, domain.SuperAdminCode).Scan(
		&role.ID,
		&role.Name,
		&role.Code,
		&role.Description,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("super admin role not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get super admin role: %w", err)
	}

	return role, nil
}

// GetByUserID retrieves all roles assigned to a user
func (r *roleRepository) GetByUserID(ctx context.Context, userID string) ([]domain.Role, error) {
	query := `
		SELECT r.id, r.name, r.code, r.description
		FROM admin_roles r
		JOIN admin_users_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`

	rows, err := r.db.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles by user id: %w", err)
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var role domain.Role
		err := rows.Scan(&role.ID, &role.Name, &role.Code, &role.Description)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}

	return roles, nil
}

// CountUsersWithRole counts active users holding a role
func (r *roleRepository) CountUsersWithRole(ctx context.Context, roleID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM admin_users_roles ur
		JOIN admin_users u ON u.id = ur.user_id
		WHERE ur.role_id = $1 AND u.is_active = TRUE
	`

	var count int
	err := r.db.DB.QueryRowContext(ctx, query, roleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users with role: %w", err)
	}

	return count, nil
}

// ReplaceUserRoles replaces a user's role assignments with the given set
func (r *roleRepository) ReplaceUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	tx, err := r.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin role update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM admin_users_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear user roles: %w", err)
	}

	for _, roleID := range roleIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO admin_users_roles (user_id, role_id) VALUES ($1, $2)`,
			userID, roleID,
		)
		if err != nil {
			return fmt.Errorf("failed to assign role %s: %w", roleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role update: %w", err)
	}

	return nil
}

// AssignRole adds a single role to a user
func (r *roleRepository) AssignRole(ctx context.Context, userID, roleID string) error {
	query := `
		INSERT INTO admin_users_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`

	_, err := r.db.DB.ExecContext(ctx, query, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	return nil
}
