package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mkosyakov/admin-auth-service/internal/domain"
	"github.com/mkosyakov/admin-auth-service/pkg/database"
)

const userColumns = `id, email, phone_number, firstname, lastname, username, password_hash,
	is_active, is_verified, otp, registration_token, reset_password_token,
	prefered_language, created_at, updated_at, last_login_at`

// userRepository implements UserRepository interface
type userRepository struct {
	db *database.Postgres
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.Postgres) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new admin user in the database
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO admin_users (id, email, phone_number, firstname, lastname, username,
			password_hash, is_active, is_verified, otp, registration_token,
			reset_password_token, prefered_language, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PhoneNumber,
		user.Firstname,
		user.Lastname,
		user.Username,
		user.PasswordHash,
		user.IsActive,
		user.IsVerified,
		user.OTP,
		user.RegistrationToken,
		user.ResetPasswordToken,
		user.PreferedLanguage,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			if strings.Contains(pqErr.Constraint, "phone") {
				return fmt.Errorf("user with phone number %s already exists: %w", user.PhoneNumber, ErrDuplicatePhone)
			}
			return fmt.Errorf("user with email %s already exists: %w", user.Email, ErrDuplicateEmail)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByEmail retrieves a user by email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "email = $1", email)
}

// GetByRegistrationToken retrieves a user by its pending registration token
func (r *userRepository) GetByRegistrationToken(ctx context.Context, token string) (*domain.User, error) {
	return r.getOne(ctx, "registration_token = $1", token)
}

// GetByResetToken retrieves an active user by its reset password token
func (r *userRepository) GetByResetToken(ctx context.Context, token string) (*domain.User, error) {
	return r.getOne(ctx, "reset_password_token = $1 AND is_active = TRUE", token)
}

func (r *userRepository) getOne(ctx context.Context, where string, args ...interface{}) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM admin_users WHERE %s`, userColumns, where)

	user, err := scanUser(r.db.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// Update applies a typed partial patch to a user and returns the updated
// row. Only the fields enumerated in domain.UserPatch can ever change.
func (r *userRepository) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	sets, args := buildUserPatch(patch)
	if len(sets) == 0 {
		return nil, fmt.Errorf("failed to update user: %w", ErrEmptyPatch)
	}

	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)+1))
	args = append(args, time.Now())
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE admin_users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	user, err := scanUser(r.db.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user with id %s not found: %w", id, ErrNotFound)
		}
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			if strings.Contains(pqErr.Constraint, "phone") {
				return nil, fmt.Errorf("phone number already in use: %w", ErrDuplicatePhone)
			}
			return nil, fmt.Errorf("email already in use: %w", ErrDuplicateEmail)
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// UpdateLastLogin updates the last login timestamp for a user
func (r *userRepository) UpdateLastLogin(ctx context.Context, userID string) error {
	query := `UPDATE admin_users SET last_login_at = $1 WHERE id = $2`

	result, err := r.db.DB.ExecContext(ctx, query, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user with id %s not found: %w", userID, ErrNotFound)
	}

	return nil
}

// Delete removes a user by ID
func (r *userRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM admin_users WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user with id %s not found: %w", id, ErrNotFound)
	}

	return nil
}

// Count returns the total number of admin users
func (r *userRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// buildUserPatch turns the set fields of a patch into SQL assignments.
// RoleIDs are handled by the role repository, not here.
func buildUserPatch(patch domain.UserPatch) ([]string, []interface{}) {
	var sets []string
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.PhoneNumber != nil {
		add("phone_number", *patch.PhoneNumber)
	}
	if patch.Firstname != nil {
		add("firstname", *patch.Firstname)
	}
	if patch.Lastname != nil {
		add("lastname", *patch.Lastname)
	}
	if patch.Username != nil {
		add("username", *patch.Username)
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if patch.IsVerified != nil {
		add("is_verified", *patch.IsVerified)
	}
	if patch.OTP != nil {
		add("otp", *patch.OTP)
	}
	if patch.RegistrationToken != nil {
		add("registration_token", *patch.RegistrationToken)
	}
	if patch.ResetPasswordToken != nil {
		add("reset_password_token", *patch.ResetPasswordToken)
	}
	if patch.PreferedLanguage != nil {
		add("prefered_language", *patch.PreferedLanguage)
	}

	return sets, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var otp, registrationToken, resetPasswordToken sql.NullString
	var lastLoginAt sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PhoneNumber,
		&user.Firstname,
		&user.Lastname,
		&user.Username,
		&user.PasswordHash,
		&user.IsActive,
		&user.IsVerified,
		&otp,
		&registrationToken,
		&resetPasswordToken,
		&user.PreferedLanguage,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLoginAt,
	)
	if err != nil {
		return nil, err
	}

	if otp.Valid {
		user.OTP = &otp.String
	}
	if registrationToken.Valid {
		user.RegistrationToken = &registrationToken.String
	}
	if resetPasswordToken.Valid {
		user.ResetPasswordToken = &resetPasswordToken.String
	}
	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}

	return user, nil
}
