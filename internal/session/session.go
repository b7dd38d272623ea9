// Package session keeps signed-in shoppers and staff in server-side sessions
// referenced by an HttpOnly cookie.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/verdantshop/verdant/internal/auth"
)

const (
	cookieName = "verdant_session"

	DefaultIdleTTL = 7 * 24 * time.Hour
	DefaultMaxAge  = 30 * 24 * time.Hour
)

var (
	ErrNoSession = errors.New("no session")
	ErrNotFound  = errors.New("session not found")
)

// Data represents the signed-in user stored in a session.
type Data struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt int64     `json:"created_at"`
	LastSeen  int64     `json:"last_seen"`
}

// Principal converts the session into the request principal.
func (d *Data) Principal() *auth.Principal {
	if d == nil || d.UserID == uuid.Nil {
		return nil
	}
	return &auth.Principal{
		UserID: d.UserID,
		Email:  d.Email,
		Name:   d.Name,
		Role:   auth.ParseRole(d.Role),
	}
}

// Store persists session data by id. Get returns ErrNotFound for unknown or
// expired ids.
type Store interface {
	Get(ctx context.Context, id string) (*Data, error)
	Set(ctx context.Context, id string, data *Data, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Options controls cookie security and session lifetimes. A session expires
// after IdleTTL without activity and never outlives MaxAge.
type Options struct {
	Secure  bool
	IdleTTL time.Duration
	MaxAge  time.Duration
}

type Manager struct {
	store   Store
	secure  bool
	idleTTL time.Duration
	maxAge  time.Duration
	now     func() time.Time
}

func NewManager(store Store, opts Options) *Manager {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	if opts.MaxAge <= 0 || opts.MaxAge < opts.IdleTTL {
		opts.MaxAge = DefaultMaxAge
	}
	return &Manager{
		store:   store,
		secure:  opts.Secure,
		idleTTL: opts.IdleTTL,
		maxAge:  opts.MaxAge,
		now:     time.Now,
	}
}

func (m *Manager) Close() error {
	if m == nil || m.store == nil {
		return nil
	}
	return m.store.Close()
}

// CreateSession stores data under a fresh id and sets the session cookie.
func (m *Manager) CreateSession(ctx context.Context, w http.ResponseWriter, data *Data) (string, error) {
	if ctx == nil {
		return "", fmt.Errorf("context is required")
	}
	if data == nil {
		return "", fmt.Errorf("session data is required")
	}

	sessionID := uuid.NewString()
	now := m.now().Unix()

	sessionData := *data
	sessionData.CreatedAt = now
	sessionData.LastSeen = now
	if err := m.store.Set(ctx, sessionID, &sessionData, m.idleTTL); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	m.setCookie(w, sessionID, int(m.idleTTL.Seconds()))
	return sessionID, nil
}

// GetSession loads the session referenced by the request cookie.
func (m *Manager) GetSession(ctx context.Context, r *http.Request) (*Data, error) {
	_, data, err := m.load(ctx, r)
	return data, err
}

// DestroySession removes the session and clears the cookie.
func (m *Manager) DestroySession(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if ctx == nil {
		ctx = r.Context()
	}
	m.setCookie(w, "", -1)

	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return nil
	}
	if err := m.store.Delete(ctx, cookie.Value); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (m *Manager) load(ctx context.Context, r *http.Request) (string, *Data, error) {
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return "", nil, ErrNoSession
	}
	if ctx == nil {
		ctx = r.Context()
	}

	data, err := m.store.Get(ctx, cookie.Value)
	if err != nil {
		return "", nil, err
	}

	if m.now().Sub(time.Unix(data.CreatedAt, 0)) > m.maxAge {
		_ = m.store.Delete(ctx, cookie.Value)
		return "", nil, ErrNotFound
	}
	return cookie.Value, data, nil
}

// refresh extends an active session once half of its idle window has passed,
// so busy sessions are not rewritten on every request.
func (m *Manager) refresh(ctx context.Context, w http.ResponseWriter, id string, data *Data) error {
	now := m.now()
	if now.Sub(time.Unix(data.LastSeen, 0)) < m.idleTTL/2 {
		return nil
	}

	ttl := m.idleTTL
	if remaining := time.Unix(data.CreatedAt, 0).Add(m.maxAge).Sub(now); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return nil
	}

	data.LastSeen = now.Unix()
	if err := m.store.Set(ctx, id, data, ttl); err != nil {
		return err
	}
	m.setCookie(w, id, int(ttl.Seconds()))
	return nil
}

func (m *Manager) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
