package session

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/atinyakov/CipherStudio/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGuestID(t *testing.T) {
	old := now
	defer func() { now = old }()
	now = func() time.Time { return time.UnixMilli(1700000000123) }

	id := NewGuestID()
	assert.Regexp(t, regexp.MustCompile(`^guest-[0-9a-f]{9}-1700000000123$`), id)
	assert.NotEqual(t, id, NewGuestID())
}

func TestIdentity(t *testing.T) {
	guest := Session{GuestID: "guest-1"}
	assert.False(t, guest.Authenticated())
	assert.Equal(t, "guest-1", guest.Identity())

	user := guest.WithLogin(&models.AuthResult{Token: "tok", User: models.PublicUser{ID: "u1", Email: "a@b.co"}})
	assert.True(t, user.Authenticated())
	assert.Equal(t, "u1", user.Identity())
	assert.Equal(t, "guest-1", user.GuestID)

	out := user.Logout()
	assert.Equal(t, Session{GuestID: "guest-1"}, out)
}

func TestEnsureGuest(t *testing.T) {
	var s Session
	require.True(t, s.EnsureGuest())
	assert.NotEmpty(t, s.GuestID)
	assert.False(t, s.EnsureGuest())

	user := Session{Token: "t", UserID: "u"}
	assert.False(t, user.EnsureGuest())
	assert.Empty(t, user.GuestID)
}

func TestLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Session{}, s)

	want := Session{Token: "t", UserID: "u", Email: "a@b.co", GuestID: "g"}
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "decode session")
}
