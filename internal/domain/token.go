package domain

import "time"

// OTPPending marks a token that is only good for OTP verification and
// resend. Session tokens carry no OTP claim at all.
const OTPPending = "pending"

// TokenClaims represents the payload of a signed token
type TokenClaims struct {
	UserID string `json:"id"`
	OTP    string `json:"otp,omitempty"`
	Exp    int64  `json:"exp"`
	Iat    int64  `json:"iat"`
}

// IsExpired checks if the token is expired
func (tc TokenClaims) IsExpired() bool {
	return time.Now().Unix() > tc.Exp
}

// IsPending reports whether the token is restricted to the OTP flow.
func (tc TokenClaims) IsPending() bool {
	return tc.OTP == OTPPending
}
