package model

import (
	"fmt"
	"time"
)

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// VerificationType names the identity-sensitive change a code or token unlocks.
type VerificationType string

const (
	VerifyEmail    VerificationType = "email"
	VerifyPassword VerificationType = "password"
)

func ParseVerificationType(s string) (VerificationType, error) {
	switch VerificationType(s) {
	case VerifyEmail, VerifyPassword:
		return VerificationType(s), nil
	default:
		return "", fmt.Errorf("unknown verification type %q", s)
	}
}

type VerificationCode struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Code      string           `json:"-"`
	Type      VerificationType `json:"type"`
	Used      bool             `json:"used"`
	Attempts  int              `json:"attempts"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// VerifyToken is the short-lived proof issued after a code is confirmed.
// It is held in session memory only.
type VerifyToken struct {
	Token     string
	Type      VerificationType
	ExpiresAt time.Time
}

func (t VerifyToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
