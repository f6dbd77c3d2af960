package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mkosyakov/admin-auth-service/internal/domain"
	"github.com/mkosyakov/admin-auth-service/pkg/database"
)

// passwordHistoryRepository implements PasswordHistoryRepository interface
type passwordHistoryRepository struct {
	db *database.Postgres
}

// NewPasswordHistoryRepository creates a new password history repository
func NewPasswordHistoryRepository(db *database.Postgres) PasswordHistoryRepository {
	return &passwordHistoryRepository{db: db}
}

// Create appends a password history entry for a user
func (r *passwordHistoryRepository) Create(ctx context.Context, entry *domain.PasswordHistoryEntry) error {
	query := `
		INSERT INTO password_histories (id, user_id, password_hash, changed_at)
		VALUES ($1, $2, $3, $4)
	`

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.PasswordHash,
		entry.ChangedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create password history entry: %w", err)
	}

	return nil
}

// ListByUser returns a user's history entries ordered newest-first. A limit
// of 0 returns all entries.
func (r *passwordHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.PasswordHistoryEntry, error) {
	query := `
		SELECT id, user_id, password_hash, changed_at
		FROM password_histories
		WHERE user_id = $1
		ORDER BY changed_at DESC
	`
	args := []interface{}{userID}

	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list password history: %w", err)
	}
	defer rows.Close()

	var entries []*domain.PasswordHistoryEntry
	for rows.Next() {
		entry := &domain.PasswordHistoryEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.PasswordHash,
			&entry.ChangedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan password history entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate password history: %w", err)
	}

	return entries, nil
}

// DeleteByIDs prunes history entries by their IDs
func (r *passwordHistoryRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `DELETE FROM password_histories WHERE id = ANY($1)`

	_, err := r.db.DB.ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to delete password history entries: %w", err)
	}

	return nil
}
