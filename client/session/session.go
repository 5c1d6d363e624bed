package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"mechanicapp/client/kv"
	"mechanicapp/client/model"

	"go.uber.org/zap"
)

const (
	authKey       = "auth"
	onboardingKey = "onboarding_done"
)

// ErrNoSession is returned by operations that need an authenticated session.
var ErrNoSession = errors.New("session: not authenticated")

type persisted struct {
	User            *model.User `json:"user"`
	Token           string      `json:"token"`
	IsAuthenticated *bool       `json:"isAuthenticated,omitempty"`
}

// Store holds the bearer credential and current user. It is created once
// by the application root and shared by the API client and socket manager.
type Store struct {
	kv  kv.Store
	log *zap.Logger

	mu       sync.RWMutex
	user     *model.User
	token    string
	hydrated bool
	onLogout []func()
}

func NewStore(store kv.Store, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{kv: store, log: log}
}

// Hydrate reads the persisted session once. Missing or unreadable state
// leaves the store signed out; the store is marked hydrated either way.
func (s *Store) Hydrate(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.hydrated = true
		s.mu.Unlock()
	}()

	raw, err := s.kv.Get(ctx, authKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.log.Warn("read persisted session", zap.Error(err))
		}
		return
	}
	var p persisted
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.log.Warn("decode persisted session", zap.Error(err))
		return
	}
	if p.User == nil || p.Token == "" {
		return
	}
	if p.IsAuthenticated != nil && !*p.IsAuthenticated {
		return
	}
	s.mu.Lock()
	s.user = p.User
	s.token = p.Token
	s.mu.Unlock()
}

// SetAuth records a successful authentication and persists it.
func (s *Store) SetAuth(ctx context.Context, user model.User, token string) error {
	s.mu.Lock()
	s.user = &user
	s.token = token
	s.mu.Unlock()

	authenticated := true
	raw, err := json.Marshal(persisted{User: &user, Token: token, IsAuthenticated: &authenticated})
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, authKey, string(raw))
}

// OnLogout registers fn to run after every session teardown.
func (s *Store) OnLogout(fn func()) {
	s.mu.Lock()
	s.onLogout = append(s.onLogout, fn)
	s.mu.Unlock()
}

// Logout tears the session down and reports whether there was one to tear
// down. Hooks run only when it returns true.
func (s *Store) Logout(ctx context.Context) bool {
	s.mu.Lock()
	if s.token == "" && s.user == nil {
		s.mu.Unlock()
		return false
	}
	s.user = nil
	s.token = ""
	hooks := append([]func(){}, s.onLogout...)
	s.mu.Unlock()

	if err := s.kv.Delete(ctx, authKey); err != nil {
		s.log.Warn("remove persisted session", zap.Error(err))
	}
	for _, fn := range hooks {
		fn()
	}
	return true
}

// Token returns the current bearer credential or "".
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the current user.
func (s *Store) User() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// UserID returns the current user's id or "".
func (s *Store) UserID() string {
	u, _ := s.User()
	return u.ID
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}

func (s *Store) Hydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrated
}
