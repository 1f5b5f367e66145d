// Package access resolves who is calling and decides what they may do with a
// project.
package access

import (
	"net/http"
	"strings"

	"github.com/atinyakov/CipherStudio/internal/common"
	"github.com/atinyakov/CipherStudio/internal/models"
)

// GuestHeader carries a client-chosen guest identity.
const GuestHeader = "user-id"

// Identity is the caller of a request. A zero Identity means nobody.
type Identity struct {
	// ID is a registered user id or a guest id.
	ID string
	// Authenticated is true when ID came from a verified bearer token.
	Authenticated bool
}

// Known reports whether the identity names anybody at all.
func (i Identity) Known() bool {
	return i.ID != ""
}

// TokenVerifier extracts a user id from a bearer token.
type TokenVerifier interface {
	UserIDFromToken(token string) (string, error)
}

// ResolveIdentity prefers a valid bearer token and falls back to the guest
// header. An invalid token is not an error here; the caller just becomes a
// guest or nobody.
func ResolveIdentity(r *http.Request, v TokenVerifier) Identity {
	if token, ok := bearerToken(r); ok && v != nil {
		if id, err := v.UserIDFromToken(token); err == nil && id != "" {
			return Identity{ID: id, Authenticated: true}
		}
	}
	if guest := strings.TrimSpace(r.Header.Get(GuestHeader)); guest != "" {
		return Identity{ID: guest}
	}
	return Identity{}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

// Policy holds the authorization rules for projects.
type Policy struct {
	// OpenWrites lets any identity modify or delete any project it can
	// address. Off by default.
	OpenWrites bool
}

var errForbidden = common.NewError(common.ErrForbidden, "Forbidden")

// AuthorizeRead allows public projects and the owner.
func (p Policy) AuthorizeRead(project *models.Project, ident Identity) error {
	if project.IsPublic || isOwner(project, ident) {
		return nil
	}
	return errForbidden
}

// AuthorizeWrite allows only the owner unless OpenWrites is set.
func (p Policy) AuthorizeWrite(project *models.Project, ident Identity) error {
	if p.OpenWrites || isOwner(project, ident) {
		return nil
	}
	return errForbidden
}

// DefaultVisibility returns the isPublic flag for a project created by ident:
// guests make public projects, registered users private ones.
func DefaultVisibility(ident Identity) bool {
	return !ident.Authenticated
}

func isOwner(project *models.Project, ident Identity) bool {
	return ident.Known() && project.OwnerID == ident.ID
}
