// Package settings keeps the per-user session and display preferences that
// the front-ends need. They are passed explicitly to whoever needs them;
// the journal rules never see them.
package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/stagelog/internal/storage"
)

const (
	keyUsername = "stagelog_user"
	keyLoggedIn = "stagelog_logged_in"
	keyTheme    = "stagelog_theme"
)

// Theme is the display theme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeLight, ThemeDark:
		return t, nil
	}
	return "", fmt.Errorf("unknown theme %q: must be light or dark", s)
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Session is the current user and their preferences.
type Session struct {
	Username   string `json:"username"`
	IsLoggedIn bool   `json:"isLoggedIn"`
	Theme      Theme  `json:"theme"`
}

// Store defines the storage operations the Manager needs.
// Implemented by storage.Store.
type Store interface {
	SetSetting(key, value string) error
	GetAllSettings() (map[string]string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// ErrEmptyUsername is returned by Login for a blank username.
var ErrEmptyUsername = errors.New("username is required")

// Manager provides cached access to the session stored in SQLite.
type Manager struct {
	store Store
	clock Clock
	ttl   time.Duration

	mu       sync.RWMutex
	cached   *Session
	cachedAt time.Time
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store Store) *Manager {
	return NewManagerWithClock(store, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store Store, clock Clock, ttl time.Duration) *Manager {
	return &Manager{store: store, clock: clock, ttl: ttl}
}

// Get returns the current session. An empty store yields a logged-out
// session with the light theme.
func (m *Manager) Get() (Session, error) {
	m.mu.RLock()
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		s := *m.cached
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		return *m.cached, nil
	}

	kv, err := m.store.GetAllSettings()
	if err != nil {
		return Session{}, fmt.Errorf("loading settings: %w", err)
	}
	s := buildSession(kv)
	m.cached = &s
	m.cachedAt = m.clock.Now()
	return s, nil
}

func buildSession(kv map[string]string) Session {
	s := Session{Theme: ThemeLight}
	s.Username = kv[keyUsername]
	s.IsLoggedIn, _ = strconv.ParseBool(kv[keyLoggedIn])
	if t, err := ParseTheme(kv[keyTheme]); err == nil {
		s.Theme = t
	}
	if s.Username == "" {
		s.IsLoggedIn = false
	}
	return s
}

// Login records username as the current user.
func (m *Manager) Login(username string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Session{}, ErrEmptyUsername
	}
	if err := m.set(map[string]string{keyUsername: username, keyLoggedIn: "true"}); err != nil {
		return Session{}, err
	}
	return m.Get()
}

// Logout clears the current user. The theme is kept.
func (m *Manager) Logout() (Session, error) {
	if err := m.set(map[string]string{keyUsername: "", keyLoggedIn: "false"}); err != nil {
		return Session{}, err
	}
	return m.Get()
}

// SetTheme persists the display theme.
func (m *Manager) SetTheme(t Theme) (Session, error) {
	if _, err := ParseTheme(string(t)); err != nil {
		return Session{}, err
	}
	if err := m.set(map[string]string{keyTheme: string(t)}); err != nil {
		return Session{}, err
	}
	return m.Get()
}

// ToggleTheme flips between light and dark.
func (m *Manager) ToggleTheme() (Session, error) {
	s, err := m.Get()
	if err != nil {
		return Session{}, err
	}
	return m.SetTheme(s.Theme.Toggle())
}

// set persists values and invalidates the cache.
func (m *Manager) set(values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range values {
		if err := m.store.SetSetting(k, v); err != nil {
			return fmt.Errorf("setting %q: %w", k, err)
		}
	}
	m.cached = nil
	return nil
}

var _ Store = (*storage.Store)(nil)
