package app

import (
	"crypto/subtle"
	"sync"

	"team-quiz-service/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuth checks the admin credential and tracks logged-in admin sessions.
// Either a plain password or a bcrypt hash is configured; the hash wins.
type AdminAuth struct {
	password string
	hash     []byte

	mu       sync.RWMutex
	sessions map[string]struct{}
}

func NewAdminAuth(password, passwordHash string) *AdminAuth {
	a := &AdminAuth{
		password: password,
		sessions: make(map[string]struct{}),
	}
	if passwordHash != "" {
		a.hash = []byte(passwordHash)
	}
	return a
}

// Login checks password and opens a new admin session.
func (a *AdminAuth) Login(password string) (string, error) {
	if !a.check(password) {
		return "", domain.ErrUnauthorized
	}
	token := uuid.NewString()
	a.mu.Lock()
	a.sessions[token] = struct{}{}
	a.mu.Unlock()
	return token, nil
}

// Verify returns ErrUnauthorized unless token belongs to an open admin session.
func (a *AdminAuth) Verify(token string) error {
	if token == "" {
		return domain.ErrUnauthorized
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if _, ok := a.sessions[token]; !ok {
		return domain.ErrUnauthorized
	}
	return nil
}

// Logout closes an admin session.
func (a *AdminAuth) Logout(token string) {
	a.mu.Lock()
	delete(a.sessions, token)
	a.mu.Unlock()
}

func (a *AdminAuth) check(password string) bool {
	if a.hash != nil {
		return bcrypt.CompareHashAndPassword(a.hash, []byte(password)) == nil
	}
	if a.password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a.password), []byte(password)) == 1
}
