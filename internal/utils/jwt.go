package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mkosyakov/admin-auth-service/internal/domain"
)

const otpCodeMax = 1000000 // 6 digits, zero padded

// TokenManager signs and verifies session and pending tokens
type TokenManager struct {
	secret             []byte
	sessionTokenExpiry time.Duration
	pendingTokenExpiry time.Duration
}

// NewTokenManager creates a new token manager
func NewTokenManager(secret string, sessionTokenExpiry, pendingTokenExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:             []byte(secret),
		sessionTokenExpiry: sessionTokenExpiry,
		pendingTokenExpiry: pendingTokenExpiry,
	}
}

// GenerateSessionToken issues a full session token for an authenticated user
func (m *TokenManager) GenerateSessionToken(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  userID,
		"exp": now.Add(m.sessionTokenExpiry).Unix(),
		"iat": now.Unix(),
	})

	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// GeneratePendingToken issues a short-lived token restricted to the OTP
// verify/resend operations. Its lifetime matches the OTP validity window.
func (m *TokenManager) GeneratePendingToken(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  userID,
		"otp": domain.OTPPending,
		"exp": now.Add(m.pendingTokenExpiry).Unix(),
		"iat": now.Unix(),
	})

	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign pending token: %w", err)
	}

	return tokenString, nil
}

// Verify checks a token's signature and expiry. Malformed, tampered and
// expired tokens are all reported the same way: ok=false, no claims. It
// never panics on garbage input.
func (m *TokenManager) Verify(tokenString string) (*domain.TokenClaims, bool) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}

	userID, ok := claims["id"].(string)
	if !ok || userID == "" {
		return nil, false
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, false
	}

	iat, _ := claims["iat"].(float64)
	otp, _ := claims["otp"].(string)

	tokenClaims := &domain.TokenClaims{
		UserID: userID,
		OTP:    otp,
		Exp:    int64(exp),
		Iat:    int64(iat),
	}

	if tokenClaims.IsExpired() {
		return nil, false
	}

	return tokenClaims, true
}

// SessionTokenExpiry returns the session token lifetime in seconds
func (m *TokenManager) SessionTokenExpiry() int {
	return int(m.sessionTokenExpiry.Seconds())
}

// PendingTokenExpiry returns the pending token lifetime in seconds
func (m *TokenManager) PendingTokenExpiry() int {
	return int(m.pendingTokenExpiry.Seconds())
}

// GenerateOTPCode draws a 6-digit zero-padded code from crypto/rand.
// Collisions with a previous code for the same user are acceptable: the
// code is single-use and short-lived.
func GenerateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpCodeMax))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// GenerateActionToken returns an opaque random token used for registration
// invites and password resets. It is stored on the user row and compared
// byte for byte, never decoded.
func GenerateActionToken() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate action token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
