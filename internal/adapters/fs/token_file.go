package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bft-labs/offlinesync/internal/ports"
)

var _ ports.TokenSource = (*TokenFile)(nil)

// Session is the on-disk session written by the login flow.
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username,omitempty"`
}

// TokenFile is a ports.TokenSource backed by a session file. The file may
// hold either a JSON Session or a bare token.
type TokenFile struct {
	path string

	mu      sync.RWMutex
	session Session
}

// NewTokenFile creates a token source and loads the file if present.
func NewTokenFile(path string) (*TokenFile, error) {
	t := &TokenFile{path: path}
	if err := t.Reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Token returns the current bearer token, or "".
func (t *TokenFile) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.session.Token
}

// Username returns the username recorded with the token.
func (t *TokenFile) Username() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.session.Username
}

// Reload re-reads the file. A missing file clears the session.
func (t *TokenFile) Reload() error {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.set(Session{})
			return nil
		}
		return fmt.Errorf("read session file: %w", err)
	}

	var s Session
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), &s); err != nil {
			return fmt.Errorf("parse session file: %w", err)
		}
	} else {
		s.Token = trimmed
	}
	t.set(s)
	return nil
}

// Save persists a session atomically.
// Uses atomic write (write to temp file, then rename) to prevent corruption.
func (t *TokenFile) Save(s Session) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return err
	}
	t.set(s)
	return nil
}

// Clear removes the session file and forgets the token.
func (t *TokenFile) Clear() error {
	t.set(Session{})
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Path returns the session file path.
func (t *TokenFile) Path() string {
	return t.path
}

func (t *TokenFile) set(s Session) {
	t.mu.Lock()
	t.session = s
	t.mu.Unlock()
}
