// Package verify issues one-time codes and short-lived tokens that unlock
// identity-sensitive profile changes.
package verify

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/dukerupert/tally/internal/activity"
	"github.com/dukerupert/tally/internal/apperr"
	"github.com/dukerupert/tally/internal/auth"
	"github.com/dukerupert/tally/internal/model"
	"github.com/dukerupert/tally/internal/store"
)

type Config struct {
	CodeTTL    time.Duration
	TokenTTL   time.Duration
	MaxPending int
	Window     time.Duration
	// MaxAttempts wrong guesses disable every live code of a type.
	MaxAttempts int
	// Debug echoes the raw code back to its owner. Never enable in production.
	Debug bool
	// StrictType requires a token's type to match the change it unlocks.
	StrictType bool
}

func DefaultConfig() Config {
	return Config{
		CodeTTL:     15 * time.Minute,
		TokenTTL:    5 * time.Minute,
		MaxPending:  3,
		Window:      15 * time.Minute,
		MaxAttempts: 5,
	}
}

// CodeStore persists verification codes.
type CodeStore interface {
	Create(userID int64, typ model.VerificationType, code string, now time.Time, ttl time.Duration, limit store.Limit) (*model.VerificationCode, error)
	FindValid(userID int64, typ model.VerificationType, code string, now time.Time, maxAttempts int) (*model.VerificationCode, error)
	IncrementAttempts(userID int64, typ model.VerificationType, now time.Time) (int64, error)
	MarkUsed(id int64) (bool, error)
}

// EventRecorder observes gate outcomes, e.g. for metrics.
type EventRecorder interface {
	RecordVerification(event string)
}

type Gate struct {
	codes    CodeStore
	vault    *auth.TokenVault
	activity activity.Logger
	events   EventRecorder
	cfg      Config
	now      func() time.Time
	random   io.Reader
}

func NewGate(codes CodeStore, vault *auth.TokenVault, log activity.Logger, events EventRecorder, cfg Config) *Gate {
	if log == nil {
		log = activity.Discard{}
	}
	return &Gate{
		codes:    codes,
		vault:    vault,
		activity: log,
		events:   events,
		cfg:      cfg,
		now:      time.Now,
		random:   rand.Reader,
	}
}

// Issued is returned to the caller after a code is created.
type Issued struct {
	Message     string `json:"message"`
	MaskedEmail string `json:"masked_email"`
	DebugCode   string `json:"debug_code,omitempty"`
}

// IssueCode creates a code for sub and the given type. It fails with a
// rate-limit error when MaxPending unused codes were issued within Window.
func (g *Gate) IssueCode(ctx context.Context, sub auth.Subject, typ model.VerificationType) (*Issued, error) {
	now := g.now()

	code, err := g.generateCode()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	vc, err := g.codes.Create(sub.UserID, typ, code, now, g.cfg.CodeTTL, store.Limit{Max: g.cfg.MaxPending, Window: g.cfg.Window})
	if errors.Is(err, store.ErrTooManyCodes) {
		g.record("rate_limited")
		return nil, apperr.RateLimited("too many verification codes requested, try again later")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	g.record("issued")
	g.activity.Record(ctx, activity.VerificationSent, map[string]any{"type": string(typ)}, sub.UserID)

	out := &Issued{
		Message:     "verification code sent",
		MaskedEmail: MaskEmail(sub.Email),
	}
	if g.cfg.Debug && vc.UserID == sub.UserID {
		out.DebugCode = code
	}
	return out, nil
}

// ConfirmCode consumes a matching code and stores a fresh token in the
// subject's session.
func (g *Gate) ConfirmCode(ctx context.Context, sub auth.Subject, code string, typ model.VerificationType) (model.VerifyToken, error) {
	code = strings.TrimSpace(code)
	if len(code) != 6 || strings.Trim(code, "0123456789") != "" {
		return model.VerifyToken{}, apperr.Validation("code", "code must be 6 digits")
	}

	now := g.now()
	vc, err := g.codes.FindValid(sub.UserID, typ, code, now, g.cfg.MaxAttempts)
	if err != nil {
		return model.VerifyToken{}, apperr.Internal(err)
	}
	if vc == nil {
		if _, err := g.codes.IncrementAttempts(sub.UserID, typ, now); err != nil {
			return model.VerifyToken{}, apperr.Internal(err)
		}
		g.record("rejected")
		return model.VerifyToken{}, apperr.Validation("code", "invalid or expired code")
	}
	ok, err := g.codes.MarkUsed(vc.ID)
	if err != nil {
		return model.VerifyToken{}, apperr.Internal(err)
	}
	if !ok {
		g.record("rejected")
		return model.VerifyToken{}, apperr.Validation("code", "invalid or expired code")
	}

	raw := make([]byte, 32)
	if _, err := io.ReadFull(g.random, raw); err != nil {
		return model.VerifyToken{}, apperr.Internal(fmt.Errorf("generate token: %w", err))
	}
	tok := model.VerifyToken{
		Token:     hex.EncodeToString(raw),
		Type:      typ,
		ExpiresAt: now.Add(g.cfg.TokenTTL),
	}
	g.vault.Put(sub.SessionID, tok)

	g.record("confirmed")
	g.activity.Record(ctx, activity.VerificationPassed, map[string]any{"type": string(typ)}, sub.UserID)
	return tok, nil
}

// Check verifies that presented matches the session's unexpired token. It
// does not consume the token; call Consume once the gated change succeeds.
func (g *Gate) Check(sub auth.Subject, required model.VerificationType, presented string) error {
	if presented == "" {
		return apperr.Unauthenticated("verification required").
			With("requires_verification", true).
			With("type", string(required))
	}
	tok, ok := g.vault.Get(sub.SessionID, g.now())
	if !ok || subtle.ConstantTimeCompare([]byte(tok.Token), []byte(presented)) != 1 {
		return apperr.Unauthenticated("invalid or expired verification token")
	}
	if g.cfg.StrictType && tok.Type != required {
		return apperr.Unauthenticated(fmt.Sprintf("verification token was issued for %s changes", tok.Type))
	}
	return nil
}

// Consume clears the session's token.
func (g *Gate) Consume(sub auth.Subject) {
	g.vault.Clear(sub.SessionID)
}

// generateCode returns a uniformly random 6-digit code, zero padded.
func (g *Gate) generateCode() (string, error) {
	n, err := rand.Int(g.random, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (g *Gate) record(event string) {
	if g.events != nil {
		g.events.RecordVerification(event)
	}
}

// MaskEmail keeps the first three characters of the local part and the
// domain: "alice@example.com" becomes "ali***@example.com".
func MaskEmail(email string) string {
	local, domain, found := strings.Cut(email, "@")
	r := []rune(local)
	if len(r) > 3 {
		r = r[:3]
	}
	masked := string(r) + "***"
	if found {
		masked += "@" + domain
	}
	return masked
}
