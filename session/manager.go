// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

// Package session owns the client side authentication state: it restores a
// persisted session at startup, installs new sessions after login or
// registration and purges everything on logout.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/VA7DBI/skillswap/auth"
	"github.com/VA7DBI/skillswap/backend"
	"github.com/VA7DBI/skillswap/logging"
	"github.com/VA7DBI/skillswap/metrics"
	"github.com/VA7DBI/skillswap/storage"
	"go.uber.org/zap"
)

// Durable storage keys.
const (
	KeyToken      = "token"
	KeyUser       = "user"
	KeyRememberMe = "rememberMe"
)

// Ephemeral storage key marking a browser session that has been initialized.
const (
	KeySessionMarker = "sessionMarker"
	markerValue      = "active"
)

// ErrInvalidToken is returned by Login and Register when the backend answers
// with a token that cannot be decoded or is not usable.
var ErrInvalidToken = errors.New("invalid authentication token received")

type State int

const (
	NoSession State = iota
	Restoring
	Authenticated
	LoggedOut
)

func (s State) String() string {
	switch s {
	case NoSession:
		return "no_session"
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	case LoggedOut:
		return "logged_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Authenticator obtains tokens from the authentication backend.
type Authenticator interface {
	Login(ctx context.Context, creds backend.Credentials) (string, error)
	Register(ctx context.Context, creds backend.Credentials) (string, error)
}

type Options struct {
	Durable   storage.Store // survives restarts
	Ephemeral storage.Store // scoped to one browser session
	Backend   Authenticator
	Cache     *auth.TokenCache // optional, a default cache is built when nil
	Logger    *zap.Logger
	Now       func() time.Time
}

// Manager is the only writer of the storage collaborators and the token
// cache. All methods are safe for concurrent use; the lock is never held
// across a backend call.
type Manager struct {
	mu        sync.Mutex
	durable   storage.Store
	ephemeral storage.Store
	backend   Authenticator
	cache     *auth.TokenCache
	log       *zap.Logger
	now       func() time.Time

	initialized bool
	state       State
	token       string
	user        *User
	rememberMe  bool
}

func New(opts Options) (*Manager, error) {
	if opts.Durable == nil || opts.Ephemeral == nil {
		return nil, errors.New("session: durable and ephemeral stores are required")
	}
	if opts.Backend == nil {
		return nil, errors.New("session: authentication backend is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Cache == nil {
		opts.Cache = auth.NewTokenCache(auth.CacheOptions{
			SafetyMargin: auth.DefaultSafetyMargin,
			Now:          opts.Now,
		})
	}
	return &Manager{
		durable:   opts.Durable,
		ephemeral: opts.Ephemeral,
		backend:   opts.Backend,
		cache:     opts.Cache,
		log:       logging.OrNop(opts.Logger).Named("session"),
		now:       opts.Now,
		state:     NoSession,
	}, nil
}

// InitializeStore restores the persisted session, or clears it when it must
// not survive. Only the first call does anything.
func (m *Manager) InitializeStore(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return
	}
	m.initialized = true
	m.state = Restoring

	outcome := m.restore(ctx)
	metrics.SessionRestores.WithLabelValues(outcome).Inc()
	m.log.Info("session restore finished",
		zap.String("outcome", outcome),
		zap.Stringer("state", m.state),
	)
}

func (m *Manager) restore(ctx context.Context) (outcome string) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("session restore failed", zap.Any("panic", r))
			m.purge(ctx)
			outcome = "fault"
		}
	}()

	token, ok, err := m.durable.GetItem(ctx, KeyToken)
	if err != nil {
		m.storageError("durable", "get", KeyToken, err)
		m.purge(ctx)
		return "storage_error"
	}
	if !ok || token == "" {
		// user or rememberMe left behind without a token are cleared
		m.remove(ctx, m.durable, "durable", KeyUser)
		m.remove(ctx, m.durable, "durable", KeyRememberMe)
		m.state = LoggedOut
		return "no_token"
	}

	claims, err := m.cache.Decode(token)
	if err != nil {
		m.log.Warn("stored token does not decode", zap.Error(err))
		m.purge(ctx)
		return "invalid_token"
	}
	if !claims.Valid(m.now()) {
		m.purge(ctx)
		return "expired"
	}

	// token, user and rememberMe are one record; unreadable counts as absent
	remembered, hasRemember := m.read(ctx, m.durable, "durable", KeyRememberMe)
	rawUser, hasUser := m.read(ctx, m.durable, "durable", KeyUser)
	if !hasRemember || !hasUser {
		m.log.Warn("persisted session is incomplete",
			zap.Bool("remember_me", hasRemember),
			zap.Bool("user", hasUser),
		)
		m.purge(ctx)
		return "partial_record"
	}
	rememberMe := remembered == "true"

	_, hasMarker := m.read(ctx, m.ephemeral, "ephemeral", KeySessionMarker)
	if !rememberMe && !hasMarker {
		m.purge(ctx)
		return "not_remembered"
	}

	m.write(ctx, m.ephemeral, "ephemeral", KeySessionMarker, markerValue)

	m.install(token, m.parseUser(rawUser), rememberMe)
	return "restored"
}

// parseUser decodes the persisted user record. The token is already valid,
// so a record that does not parse only leaves the user unset.
func (m *Manager) parseUser(raw string) *User {
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		m.log.Warn("stored user is not valid JSON", zap.Error(err))
		return nil
	}
	return &u
}

// Login authenticates against the backend and installs the new session.
func (m *Manager) Login(ctx context.Context, creds backend.Credentials) (User, error) {
	token, err := m.backend.Login(ctx, creds)
	if err != nil {
		return User{}, err
	}
	return m.establish(ctx, token, creds.RememberMe, User{Email: creds.Email, Name: DefaultLoginName})
}

// Register creates an account and installs its session. Registered sessions
// are always remembered.
func (m *Manager) Register(ctx context.Context, creds backend.Credentials) (User, error) {
	token, err := m.backend.Register(ctx, creds)
	if err != nil {
		return User{}, err
	}
	name := creds.Name
	if name == "" {
		name = DefaultRegisterName
	}
	return m.establish(ctx, token, true, User{Email: creds.Email, Name: name})
}

func (m *Manager) establish(ctx context.Context, token string, rememberMe bool, fallback User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.initialized = true

	claims, err := m.cache.Decode(token)
	if err == nil && !claims.Valid(m.now()) {
		err = errors.New("token is expired or has no subject")
	}
	if err != nil {
		m.log.Warn("backend issued an unusable token", zap.Error(err))
		m.purge(ctx)
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user := userFromClaims(claims, fallback)

	m.write(ctx, m.durable, "durable", KeyToken, token)
	m.write(ctx, m.durable, "durable", KeyRememberMe, fmt.Sprintf("%t", rememberMe))
	m.persistUser(ctx, user)
	m.write(ctx, m.ephemeral, "ephemeral", KeySessionMarker, markerValue)

	m.install(token, &user, rememberMe)
	m.log.Info("session established", zap.Int64("user_id", user.ID), zap.Bool("remember_me", rememberMe))
	return user, nil
}

// Logout purges every trace of the session. It always succeeds.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.initialized = true
	m.purge(ctx)
	m.log.Info("logged out")
}

// UpdateProfile merges update into the current user and persists it. It
// reports false when no user is installed.
func (m *Manager) UpdateProfile(ctx context.Context, update ProfileUpdate) (User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil {
		return User{}, false
	}
	u := m.user.apply(update)
	m.user = &u
	m.persistUser(ctx, u)
	return u, true
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Authenticated
}

func (m *Manager) CurrentUser() (User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return User{}, false
	}
	return *m.user, true
}

// HasRole reports whether the current user holds role.
func (m *Manager) HasRole(role string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil && m.user.Role == role
}

func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *Manager) RememberMe() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rememberMe
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// TokenValid checks an arbitrary token through the cache, the way every API
// call checks the token it carries.
func (m *Manager) TokenValid(token string) bool {
	claims, err := m.cache.Decode(token)
	return err == nil && claims.Valid(m.now())
}

func (m *Manager) CacheStats() auth.CacheStats {
	return m.cache.Stats()
}

func (m *Manager) install(token string, user *User, rememberMe bool) {
	m.token = token
	m.user = user
	m.rememberMe = rememberMe
	m.state = Authenticated
}

// purge clears memory, both stores and the cache. Storage failures are
// logged and skipped so the in-memory state is always cleared.
func (m *Manager) purge(ctx context.Context) {
	m.token = ""
	m.user = nil
	m.rememberMe = false
	m.state = LoggedOut

	for _, key := range []string{KeyToken, KeyUser, KeyRememberMe} {
		m.remove(ctx, m.durable, "durable", key)
	}
	m.cache.Clear()
	m.remove(ctx, m.ephemeral, "ephemeral", KeySessionMarker)
}

func (m *Manager) persistUser(ctx context.Context, u User) {
	data, err := json.Marshal(u)
	if err != nil {
		m.log.Warn("encode user", zap.Error(err))
		return
	}
	m.write(ctx, m.durable, "durable", KeyUser, string(data))
}

func (m *Manager) read(ctx context.Context, s storage.Store, name, key string) (string, bool) {
	v, ok, err := s.GetItem(ctx, key)
	if err != nil {
		m.storageError(name, "get", key, err)
		return "", false
	}
	return v, ok
}

func (m *Manager) write(ctx context.Context, s storage.Store, name, key, value string) {
	if err := s.SetItem(ctx, key, value); err != nil {
		m.storageError(name, "set", key, err)
	}
}

func (m *Manager) remove(ctx context.Context, s storage.Store, name, key string) {
	if err := s.RemoveItem(ctx, key); err != nil {
		m.storageError(name, "remove", key, err)
	}
}

func (m *Manager) storageError(store, op, key string, err error) {
	metrics.StorageErrors.WithLabelValues(store, op).Inc()
	m.log.Warn("storage access failed",
		zap.String("store", store),
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
}
