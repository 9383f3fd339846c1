package repository

import "sync"

// SessionRepository keeps exactly one live refresh token per identity.
type SessionRepository struct {
	mu     sync.Mutex
	tokens map[string]string
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{tokens: map[string]string{}}
}

// Supersede stores token as the identity's live refresh token and reports whether a previous
// session was replaced.
func (r *SessionRepository) Supersede(name string, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, superseded := r.tokens[name]
	r.tokens[name] = token

	return superseded
}

func (r *SessionRepository) Current(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, exists := r.tokens[name]
	return token, exists
}

// Revoke deletes the identity's live refresh token. It reports whether one existed.
func (r *SessionRepository) Revoke(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.tokens[name]
	delete(r.tokens, name)

	return exists
}

// RevokeIfCurrent deletes the identity's refresh token only while it still equals token.
func (r *SessionRepository) RevokeIfCurrent(name string, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, exists := r.tokens[name]; !exists || current != token {
		return false
	}
	delete(r.tokens, name)

	return true
}

func (r *SessionRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.tokens)
}
