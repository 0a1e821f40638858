package auth

import (
	"sync"
	"time"

	"github.com/dukerupert/tally/internal/model"
)

// TokenVault holds at most one verify token per session. Tokens live in
// process memory only and disappear with the session or a restart.
type TokenVault struct {
	mu     sync.Mutex
	tokens map[int64]model.VerifyToken
}

func NewTokenVault() *TokenVault {
	return &TokenVault{tokens: make(map[int64]model.VerifyToken)}
}

// Put stores tok for the session, replacing any earlier token.
func (v *TokenVault) Put(sessionID int64, tok model.VerifyToken) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[sessionID] = tok
}

// Get returns the session's token if one is stored and unexpired at now.
func (v *TokenVault) Get(sessionID int64, now time.Time) (model.VerifyToken, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	tok, ok := v.tokens[sessionID]
	if !ok {
		return model.VerifyToken{}, false
	}
	if tok.Expired(now) {
		delete(v.tokens, sessionID)
		return model.VerifyToken{}, false
	}
	return tok, true
}

// Clear drops the session's token.
func (v *TokenVault) Clear(sessionID int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.tokens, sessionID)
}

// Sweep removes expired tokens and returns how many were dropped.
func (v *TokenVault) Sweep(now time.Time) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for id, tok := range v.tokens {
		if tok.Expired(now) {
			delete(v.tokens, id)
			n++
		}
	}
	return n
}
