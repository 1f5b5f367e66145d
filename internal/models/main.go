// Package models defines the core data structures for users and projects.
package models

import "time"

// User represents an application user with credentials.
type User struct {
	// ID is the unique identifier for the user.
	ID string
	// Email is stored trimmed and lower-cased.
	Email string
	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash []byte
	// CreatedAt is the registration time.
	CreatedAt time.Time
}

// PublicUser is the part of a User that is returned to API callers.
type PublicUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Profile is the signed-in user's own account view.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuthResult is returned by registration and login.
type AuthResult struct {
	Message string     `json:"message"`
	Token   string     `json:"token"`
	User    PublicUser `json:"user"`
}

// File is a single source file of a project. Projects hold a flat list of
// files; there are no directories.
type File struct {
	// ID is unique within the owning project.
	ID string `json:"id"`
	// Name is the file name including its extension, e.g. "App.jsx".
	Name string `json:"name"`
	// Type is always "file".
	Type string `json:"type"`
	// Language is a display hint such as "jsx" or "javascript".
	Language string `json:"language,omitempty"`
	// Content is the full text of the file.
	Content string `json:"content"`
}

// FileType is the only file type currently known.
const FileType = "file"

// Project is the persisted project document.
type Project struct {
	// ProjectID uniquely identifies the project.
	ProjectID string `json:"projectId"`
	// OwnerID is either a registered user id or a guest id.
	OwnerID string `json:"userId"`
	// Name is the project's display name.
	Name string `json:"name"`
	// Description is free text.
	Description string `json:"description"`
	// Files is the ordered file list.
	Files []File `json:"files"`
	// Dependencies maps a package name to a version range.
	Dependencies map[string]string `json:"dependencies"`
	// SelectedFileID references an element of Files; a dangling reference is
	// treated as absent.
	SelectedFileID string `json:"selectedFile,omitempty"`
	// IsPublic makes the project readable by any identity.
	IsPublic bool `json:"isPublic"`
	// CreatedAt is the creation time.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is refreshed on every save.
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProjectPatch is a partial project update. Nil fields are left untouched;
// Files and Dependencies replace the stored values wholesale when present.
type ProjectPatch struct {
	Files          []File            `json:"files"`
	Dependencies   map[string]string `json:"dependencies"`
	Name           *string           `json:"name,omitempty"`
	Description    *string           `json:"description,omitempty"`
	SelectedFileID *string           `json:"selectedFile,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProjectPatch) Empty() bool {
	return p.Files == nil && p.Dependencies == nil && p.Name == nil &&
		p.Description == nil && p.SelectedFileID == nil
}
