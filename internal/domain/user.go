package domain

import "time"

// SuperAdminCode is the role code whose last active holder can never be
// removed or deactivated.
const SuperAdminCode = "super-admin"

// User represents an administrative account
type User struct {
	ID                 string     `json:"id" db:"id"`
	Email              string     `json:"email" db:"email"`
	PhoneNumber        string     `json:"phoneNumber" db:"phone_number"`
	Firstname          string     `json:"firstname" db:"firstname"`
	Lastname           string     `json:"lastname" db:"lastname"`
	Username           string     `json:"username" db:"username"`
	PasswordHash       string     `json:"-" db:"password_hash"`
	IsActive           bool       `json:"isActive" db:"is_active"`
	IsVerified         bool       `json:"isVerified" db:"is_verified"`
	OTP                *string    `json:"-" db:"otp"`
	RegistrationToken  *string    `json:"-" db:"registration_token"`
	ResetPasswordToken *string    `json:"-" db:"reset_password_token"`
	PreferedLanguage   string     `json:"preferedLanguage" db:"prefered_language"`
	CreatedAt          time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time  `json:"updatedAt" db:"updated_at"`
	LastLoginAt        *time.Time `json:"lastLoginAt" db:"last_login_at"`
	Roles              []Role     `json:"roles"`
}

// HasSuperAdminRole reports whether the user holds the super-admin role.
func (u *User) HasSuperAdminRole() bool {
	for _, r := range u.Roles {
		if r.Code == SuperAdminCode {
			return true
		}
	}
	return false
}

// Role represents an administrative role
type Role struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Code        string `json:"code" db:"code"`
	Description string `json:"description" db:"description"`
}

// PasswordHistoryEntry records a previous password hash for reuse checks.
// Entries are append-only; the oldest beyond the retention limit are pruned.
type PasswordHistoryEntry struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"userId" db:"user_id"`
	PasswordHash string    `json:"-" db:"password_hash"`
	ChangedAt    time.Time `json:"changedAt" db:"changed_at"`
}

// UserPatch is the enumerated set of mutable user fields. A nil field is
// left untouched. Double pointers distinguish "set to NULL" from "leave as
// is" for the nullable token columns.
type UserPatch struct {
	Email              *string
	PhoneNumber        *string
	Firstname          *string
	Lastname           *string
	Username           *string
	PasswordHash       *string
	IsActive           *bool
	IsVerified         *bool
	OTP                **string
	RegistrationToken  **string
	ResetPasswordToken **string
	PreferedLanguage   *string
	RoleIDs            []string
}

// IsEmpty reports whether the patch would change nothing.
func (p UserPatch) IsEmpty() bool {
	return !p.HasColumnChanges() && p.RoleIDs == nil
}

// HasColumnChanges reports whether the patch touches any user column.
// RoleIDs live in the join table and do not count.
func (p UserPatch) HasColumnChanges() bool {
	return p.Email != nil || p.PhoneNumber != nil || p.Firstname != nil ||
		p.Lastname != nil || p.Username != nil || p.PasswordHash != nil ||
		p.IsActive != nil || p.IsVerified != nil || p.OTP != nil ||
		p.RegistrationToken != nil || p.ResetPasswordToken != nil ||
		p.PreferedLanguage != nil
}
