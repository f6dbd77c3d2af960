package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/mkosyakov/admin-auth-service/internal/domain"
	"github.com/mkosyakov/admin-auth-service/internal/repository"
	"github.com/mkosyakov/admin-auth-service/internal/utils"
)

// passwordSymbols is the fixed punctuation set that satisfies the symbol
// class requirement.
const passwordSymbols = `!@#$%^&*()-_=+[]{};:'",.<>/?\|~` + "`"

// PasswordPolicy validates password strength, reuse against history, and
// change frequency. The checks never mutate state; RecordChange is the only
// writer and is called after the credential store update succeeded.
type PasswordPolicy struct {
	historyRepo    repository.PasswordHistoryRepository
	minLength      int
	historySize    int
	changeInterval time.Duration
}

// NewPasswordPolicy creates a password policy engine
func NewPasswordPolicy(
	historyRepo repository.PasswordHistoryRepository,
	minLength int,
	historySize int,
	changeInterval time.Duration,
) *PasswordPolicy {
	return &PasswordPolicy{
		historyRepo:    historyRepo,
		minLength:      minLength,
		historySize:    historySize,
		changeInterval: changeInterval,
	}
}

// Validate checks password strength: minimum length plus at least one
// uppercase letter, one lowercase letter, one digit and one symbol.
func (p *PasswordPolicy) Validate(password string) error {
	if len(password) < p.minLength {
		return domain.NewFieldValidationError("password",
			fmt.Sprintf("must be at least %d characters long", p.minLength))
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}

	switch {
	case !hasUpper:
		return domain.NewFieldValidationError("password", "must contain at least one uppercase letter")
	case !hasLower:
		return domain.NewFieldValidationError("password", "must contain at least one lowercase letter")
	case !hasDigit:
		return domain.NewFieldValidationError("password", "must contain at least one number")
	case !hasSymbol:
		return domain.NewFieldValidationError("password", "must contain at least one special character")
	}

	return nil
}

// CheckHistory rejects a candidate that matches any of the user's most
// recent password digests. A user with no history always passes.
func (p *PasswordPolicy) CheckHistory(ctx context.Context, userID, candidate string) error {
	entries, err := p.historyRepo.ListByUser(ctx, userID, p.historySize)
	if err != nil {
		return fmt.Errorf("failed to load password history: %w", err)
	}

	for _, entry := range entries {
		if utils.CheckPasswordHash(candidate, entry.PasswordHash) {
			return domain.ErrPasswordReused
		}
	}

	return nil
}

// CheckChangeFrequency rejects a change attempted within the minimum
// interval since the last recorded change. No history always passes.
func (p *PasswordPolicy) CheckChangeFrequency(ctx context.Context, userID string) error {
	entries, err := p.historyRepo.ListByUser(ctx, userID, 1)
	if err != nil {
		return fmt.Errorf("failed to load password history: %w", err)
	}

	if len(entries) > 0 && time.Since(entries[0].ChangedAt) < p.changeInterval {
		return domain.ErrPasswordTooSoon
	}

	return nil
}

// RecordChange appends a history entry and prunes entries beyond the
// retention limit. Read, delete and insert are separate statements; under
// concurrent writers the count may transiently exceed the limit but
// converges on the next change.
func (p *PasswordPolicy) RecordChange(ctx context.Context, userID, passwordHash string) error {
	entries, err := p.historyRepo.ListByUser(ctx, userID, 0)
	if err != nil {
		return fmt.Errorf("failed to load password history: %w", err)
	}

	// Keep historySize-1 old entries so the new one lands within the limit.
	if len(entries) >= p.historySize {
		var excess []string
		for _, entry := range entries[p.historySize-1:] {
			excess = append(excess, entry.ID)
		}
		if err := p.historyRepo.DeleteByIDs(ctx, excess); err != nil {
			return fmt.Errorf("failed to prune password history: %w", err)
		}
	}

	entry := &domain.PasswordHistoryEntry{
		UserID:       userID,
		PasswordHash: passwordHash,
		ChangedAt:    time.Now(),
	}
	if err := p.historyRepo.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to record password change: %w", err)
	}

	return nil
}
