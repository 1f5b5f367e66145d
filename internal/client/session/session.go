// Package session holds who the terminal client is talking to the server as.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/atinyakov/CipherStudio/internal/models"
	"github.com/google/uuid"
)

// Session is passed explicitly to every API call. A session with a token
// acts as a registered user; otherwise GuestID identifies the caller.
type Session struct {
	Token   string `json:"token,omitempty"`
	UserID  string `json:"userId,omitempty"`
	Email   string `json:"email,omitempty"`
	GuestID string `json:"guestId,omitempty"`
}

// now is replaced in tests.
var now = time.Now

// NewGuestID mints a guest identity of the form guest-<random>-<unixMillis>.
func NewGuestID() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return "guest-" + random + "-" + strconv.FormatInt(now().UnixMilli(), 10)
}

// Authenticated reports whether the session carries a bearer token.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Identity returns the id the server will attribute requests to.
func (s Session) Identity() string {
	if s.Authenticated() {
		return s.UserID
	}
	return s.GuestID
}

// EnsureGuest mints a guest id when the session has neither a token nor a
// guest id. It reports whether anything changed.
func (s *Session) EnsureGuest() bool {
	if s.Authenticated() || s.GuestID != "" {
		return false
	}
	s.GuestID = NewGuestID()
	return true
}

// WithLogin returns a copy of s signed in as the user in res. The guest id
// is kept so that guest projects stay reachable after logout.
func (s Session) WithLogin(res *models.AuthResult) Session {
	s.Token = res.Token
	s.UserID = res.User.ID
	s.Email = res.User.Email
	return s
}

// Logout returns a copy of s without the user credentials.
func (s Session) Logout() Session {
	s.Token, s.UserID, s.Email = "", "", ""
	return s
}

// Load reads a session file. A missing file yields an empty session.
func Load(path string) (Session, error) {
	var s Session
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read session: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("decode session %s: %w", path, err)
	}
	return s, nil
}

// Save writes the session file with owner-only permissions.
func Save(path string, s Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}
