package bot

import "sync"

// State is the per-sender conversation state.
type State int

const (
	// StateNew means the sender has never engaged (or the process
	// restarted and no profile was found).
	StateNew State = iota
	// StateAwaitingName means the bot asked for the sender's name.
	StateAwaitingName
	// StateAwaitingGender means the name guess failed and the bot asked
	// the sender to resolve their gender.
	StateAwaitingGender
	// StateActive means onboarding completed; normal chat turns.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateAwaitingName:
		return "awaiting_name"
	case StateAwaitingGender:
		return "awaiting_gender"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Session is the in-memory conversation state for one sender. Sessions
// are not persisted; profiles in the store survive restarts and are
// used to reconstruct active sessions on first contact.
type Session struct {
	State State

	// PendingName holds the name given during onboarding while gender
	// resolution is still in flight.
	PendingName string
}

// SessionStore is an in-memory session map keyed by sender ID.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Get returns the session for sender, creating a fresh StateNew session
// if none exists.
func (s *SessionStore) Get(sender string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sender]
	if !ok {
		sess = &Session{State: StateNew}
		s.sessions[sender] = sess
	}
	return sess
}

// Len reports the number of tracked sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
