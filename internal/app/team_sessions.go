package app

import (
	"sync"

	"github.com/google/uuid"
)

// TeamSessions maps opaque session tokens to the team a client joined as. A
// session only exists after the team's join check passed.
type TeamSessions struct {
	mu       sync.RWMutex
	sessions map[string]string
}

func NewTeamSessions() *TeamSessions {
	return &TeamSessions{sessions: make(map[string]string)}
}

// Open starts a session for team and returns its token.
func (t *TeamSessions) Open(team string) string {
	token := uuid.NewString()
	t.mu.Lock()
	t.sessions[token] = team
	t.mu.Unlock()
	return token
}

// Team returns the team bound to token.
func (t *TeamSessions) Team(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	team, ok := t.sessions[token]
	return team, ok
}

// Close ends a session.
func (t *TeamSessions) Close(token string) {
	t.mu.Lock()
	delete(t.sessions, token)
	t.mu.Unlock()
}
