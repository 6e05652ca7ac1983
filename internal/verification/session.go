package verification

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// State is the verification step a visitor is in.
type State string

const (
	StateUnsent   State = "unsent"
	StateSent     State = "sent"
	StateVerified State = "verified"
)

// DefaultMaxAttempts bounds wrong guesses per code.
const DefaultMaxAttempts = 5

// Session is the Unsent -> Sent -> Verified state machine for one phone.
// It only ever holds a salted hash of the expected code.
type Session struct {
	salt         string
	state        State
	expectedHash string
	attempts     int
	maxAttempts  int
}

// NewSession starts in Unsent. salt scopes code hashes to one funnel session.
func NewSession(salt string, maxAttempts int) *Session {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Session{salt: salt, state: StateUnsent, maxAttempts: maxAttempts}
}

// restoreSession rebuilds a machine from persisted state.
func restoreSession(salt string, maxAttempts int, verified bool, ch *Challenge) *Session {
	s := NewSession(salt, maxAttempts)
	switch {
	case verified:
		s.state = StateVerified
	case ch != nil:
		s.state = StateSent
		s.expectedHash = ch.CodeHash
		s.attempts = ch.Attempts
	}
	return s
}

func (s *Session) State() State { return s.state }

// Attempts is the number of wrong guesses against the current code.
func (s *Session) Attempts() int { return s.attempts }

// Sent records a freshly delivered code, replacing any previous one.
func (s *Session) Sent(code string) error {
	if s.state == StateVerified {
		return ErrAlreadyVerified
	}
	s.expectedHash = HashCode(s.salt, code)
	s.attempts = 0
	s.state = StateSent
	return nil
}

// Verify checks code against the expected hash. A wrong code counts as an
// attempt; reaching the limit discards the code.
func (s *Session) Verify(code string) error {
	switch s.state {
	case StateVerified:
		return ErrAlreadyVerified
	case StateUnsent:
		return ErrNotSent
	}
	if s.attempts >= s.maxAttempts {
		s.discard()
		return newError(KindTooManyAttempts, nil)
	}
	code = strings.TrimSpace(code)
	if code != "" && hashesEqual(HashCode(s.salt, code), s.expectedHash) {
		s.state = StateVerified
		s.expectedHash = ""
		s.attempts = 0
		return nil
	}
	s.attempts++
	if s.attempts >= s.maxAttempts {
		s.discard()
		return newError(KindTooManyAttempts, nil)
	}
	return newError(KindInvalidCode, nil)
}

func (s *Session) discard() {
	s.state = StateUnsent
	s.expectedHash = ""
	s.attempts = 0
}

// HashCode is the stored form of an OTP.
func HashCode(salt, code string) string {
	sum := sha256.Sum256([]byte(salt + ":" + strings.TrimSpace(code)))
	return hex.EncodeToString(sum[:])
}

func hashesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
