package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/inlane-funnel/internal/leads"
)

// ErrNotFound is returned for unknown or expired tokens.
var ErrNotFound = errors.New("session: not found or expired")

// DefaultTTL bounds how long a visitor can take between steps.
const DefaultTTL = 30 * time.Minute

// Session is the server-side funnel state referenced by an opaque token.
type Session struct {
	Token      string     `json:"token"`
	LeadID     string     `json:"lead_id"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone"`
	Email      string     `json:"email"`
	Area       string     `json:"area"`
	CustomArea string     `json:"custom_area"`
	HasLicense bool       `json:"has_license"`
	Verified   bool       `json:"verified"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CustomerArea is the location forwarded to payment: the typed area for
// Other, the selected area otherwise.
func (s *Session) CustomerArea() string {
	if s.Area == leads.AreaOther && s.CustomArea != "" {
		return s.CustomArea
	}
	return s.Area
}

func fromLead(lead *leads.Lead, now time.Time) *Session {
	s := &Session{
		Token:     uuid.NewString(),
		LeadID:    lead.ID,
		Name:      lead.Name,
		Phone:     lead.Phone,
		Email:     lead.Email,
		Area:      lead.Area,
		CreatedAt: now,
	}
	if lead.CustomArea != nil {
		s.CustomArea = *lead.CustomArea
	}
	if lead.HasLicense != nil {
		s.HasLicense = *lead.HasLicense
	}
	return s
}

// Store persists funnel sessions.
type Store interface {
	Create(ctx context.Context, lead *leads.Lead) (*Session, error)
	Get(ctx context.Context, token string) (*Session, error)
	MarkVerified(ctx context.Context, token string) (*Session, error)
}

// MemoryStore keeps sessions in process. Used in development and tests.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, sessions: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Create(ctx context.Context, lead *leads.Lead) (*Session, error) {
	if lead == nil {
		return nil, fmt.Errorf("session: lead required")
	}
	now := m.now().UTC()
	s := fromLead(lead, now)
	m.mu.Lock()
	m.sessions[s.Token] = memoryEntry{session: *s, expiresAt: now.Add(m.ttl)}
	m.mu.Unlock()
	return s, nil
}

func (m *MemoryStore) Get(ctx context.Context, token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.lookup(token)
	if !ok {
		return nil, ErrNotFound
	}
	out := entry.session
	return &out, nil
}

func (m *MemoryStore) MarkVerified(ctx context.Context, token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.lookup(token)
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.session.Verified {
		now := m.now().UTC()
		entry.session.Verified = true
		entry.session.VerifiedAt = &now
		m.sessions[token] = entry
	}
	out := entry.session
	return &out, nil
}

// StartSession satisfies leads.SessionStarter.
func (m *MemoryStore) StartSession(ctx context.Context, lead *leads.Lead) (string, error) {
	s, err := m.Create(ctx, lead)
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

// lookup must be called with mu held.
func (m *MemoryStore) lookup(token string) (memoryEntry, bool) {
	entry, ok := m.sessions[token]
	if !ok {
		return memoryEntry{}, false
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.sessions, token)
		return memoryEntry{}, false
	}
	return entry, true
}
