// Package session holds the authenticated user and access token, persisted
// across runs under the auth-storage bucket.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codemate/codemate/internal/crypto"
	"github.com/codemate/codemate/internal/storage"
)

// ErrNoCurrentUser is returned when a token refresh arrives while the
// session holds no user; the refresh flow treats it as a failed refresh.
var ErrNoCurrentUser = errors.New("no current user found")

// User is the authenticated account as the client sees it.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Handle    string    `json:"handle,omitempty"` // external judge handle, empty until verified
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserPatch is a partial user update; nil fields are left unchanged.
type UserPatch struct {
	Email  *string
	Name   *string
	Handle *string
	Avatar *string
}

// Store is the session store. Invariant: authenticated is true iff both the
// user and the token are set.
type Store struct {
	mu            sync.Mutex
	bucket        *storage.Bucket
	cipher        *crypto.Cipher
	user          *User
	token         string
	authenticated bool

	tokenSinks  []func(token string) // token == "" means removed
	logoutHooks []func()
}

// snapshot is the persisted shape; the blob is encrypted when a cipher is
// configured.
type snapshot struct {
	User          *User  `json:"user"`
	Token         string `json:"token"`
	Authenticated bool   `json:"isAuthenticated"`
}

type record struct {
	Payload string `json:"payload"`
}

// New creates a Store backed by the given bucket, restoring any persisted
// session. A corrupt or undecryptable record is discarded, not fatal.
func New(bucket *storage.Bucket, cipher *crypto.Cipher) (*Store, error) {
	s := &Store{bucket: bucket, cipher: cipher}

	var rec record
	ok, err := bucket.Load(&rec)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if !ok {
		return s, nil
	}

	plaintext, err := cipher.Decrypt(rec.Payload)
	if err != nil {
		slog.Warn("discarding undecryptable session", "error", err)
		return s, nil
	}
	var snap snapshot
	if err := json.Unmarshal([]byte(plaintext), &snap); err != nil {
		slog.Warn("discarding corrupt session", "error", err)
		return s, nil
	}
	s.user = snap.User
	s.token = snap.Token
	s.authenticated = snap.Authenticated && snap.User != nil && snap.Token != ""
	return s, nil
}

// OnToken registers a sink notified on every token change. The HTTP client's
// default-header setter is registered here at wiring time.
func (s *Store) OnToken(fn func(token string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenSinks = append(s.tokenSinks, fn)
}

// OnLogout registers a hook run after the session is cleared. The team cache
// store registers its Reset here, so no stale team data survives a logout.
func (s *Store) OnLogout(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutHooks = append(s.logoutHooks, fn)
}

// Login sets the user, token and authenticated flag atomically and pushes
// the token to registered sinks.
func (s *Store) Login(user User, token string) {
	s.mu.Lock()
	u := user
	s.user = &u
	s.token = token
	s.authenticated = true
	sinks := append([]func(string){}, s.tokenSinks...)
	s.persistLocked()
	s.mu.Unlock()

	for _, fn := range sinks {
		fn(token)
	}
}

// Logout clears all session fields, strips the token from sinks and runs
// the registered logout hooks.
func (s *Store) Logout() {
	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.authenticated = false
	sinks := append([]func(string){}, s.tokenSinks...)
	hooks := append([]func(){}, s.logoutHooks...)
	s.persistLocked()
	s.mu.Unlock()

	for _, fn := range sinks {
		fn("")
	}
	for _, fn := range hooks {
		fn()
	}
}

// UpdateUser merges the patch into the current user. Without a current user
// it is a no-op.
func (s *Store) UpdateUser(patch UserPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return
	}
	if patch.Email != nil {
		s.user.Email = *patch.Email
	}
	if patch.Name != nil {
		s.user.Name = *patch.Name
	}
	if patch.Handle != nil {
		s.user.Handle = *patch.Handle
	}
	if patch.Avatar != nil {
		s.user.Avatar = *patch.Avatar
	}
	s.persistLocked()
}

// RefreshToken replaces only the access token, keeping the current user.
func (s *Store) RefreshToken(token string) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return ErrNoCurrentUser
	}
	s.token = token
	s.authenticated = true
	sinks := append([]func(string){}, s.tokenSinks...)
	s.persistLocked()
	s.mu.Unlock()

	for _, fn := range sinks {
		fn(token)
	}
	return nil
}

// Clear implements the HTTP client's session hook: the local logout cascade.
func (s *Store) Clear() {
	s.Logout()
}

// Token returns the current access token, or "".
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// User returns a copy of the current user.
func (s *Store) User() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// IsAuthenticated reports whether a user and token are both present.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// persistLocked writes the session to disk; persistence failures are logged,
// never surfaced, since the in-memory session stays correct either way.
func (s *Store) persistLocked() {
	snap := snapshot{User: s.user, Token: s.token, Authenticated: s.authenticated}
	data, err := json.Marshal(snap)
	if err != nil {
		slog.Warn("encoding session", "error", err)
		return
	}
	payload, err := s.cipher.Encrypt(string(data))
	if err != nil {
		slog.Warn("encrypting session", "error", err)
		return
	}
	if err := s.bucket.Save(record{Payload: payload}); err != nil {
		slog.Warn("persisting session", "error", err)
	}
}
