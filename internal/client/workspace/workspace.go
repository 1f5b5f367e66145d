// Package workspace keeps the project being edited in memory and keeps it in
// sync with the local cache and the server. Edits are applied immediately;
// a debounced autosave pushes them to the server after a quiet period.
package workspace

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/CipherStudio/internal/client/session"
	"github.com/atinyakov/CipherStudio/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultQuietPeriod is how long edits must pause before an autosave.
const DefaultQuietPeriod = 2 * time.Second

// autosaveTimeout bounds a save started by the timer.
const autosaveTimeout = 15 * time.Second

var (
	ErrNoProject    = errors.New("no project is open")
	ErrFileNotFound = errors.New("file not found")
	ErrFileExists   = errors.New("a file with that name already exists")
	ErrInvalidName  = errors.New("invalid file name")
	ErrSaveInFlight = errors.New("a save is already in progress")
)

// State is the sync state of the workspace.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Saving
	ReadyWithError
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Saving:
		return "saving"
	case ReadyWithError:
		return "ready (last save failed)"
	}
	return "unknown"
}

// API is the part of the backend client the workspace needs.
type API interface {
	CreateProject(ctx context.Context, s session.Session, name, description string) (*models.Project, error)
	GetProject(ctx context.Context, s session.Session, projectID string) (*models.Project, error)
	UpdateProject(ctx context.Context, s session.Session, projectID string, patch models.ProjectPatch) (*models.Project, error)
	DeleteProject(ctx context.Context, s session.Session, projectID string) error
}

// Cache is the persistent local copy of projects.
type Cache interface {
	Project(ctx context.Context, projectID string) (*models.Project, error)
	PutProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, projectID string) error
	TouchRecent(ctx context.Context, p *models.Project) error
}

// Renderer produces the preview document of a file list.
type Renderer interface {
	Render(files []models.File) string
}

// Options configures a Workspace.
type Options struct {
	// QuietPeriod defaults to DefaultQuietPeriod.
	QuietPeriod time.Duration
	// DisableAutosave starts the workspace with autosave off.
	DisableAutosave bool
	Session         session.Session
	Logger          *zap.Logger
	// OnChange receives a copy of the project after every change of content,
	// selection or sync result. It runs outside the workspace lock.
	OnChange func(p *models.Project)
}

// Workspace is safe for concurrent use; the autosave timer fires on its own
// goroutine.
type Workspace struct {
	api      API
	cache    Cache
	renderer Renderer
	log      *zap.Logger
	onChange func(*models.Project)
	quiet    time.Duration
	newID    func() string

	mu       sync.Mutex
	sess     session.Session
	state    State
	lastErr  error
	project  *models.Project
	synced   models.ProjectPatch // what the server is known to hold
	autosave bool
	timer    *time.Timer
	gen      uint64
	saving   bool
	closed   bool
	inflight sync.WaitGroup
}

// New returns an idle workspace.
func New(api API, cache Cache, renderer Renderer, opts Options) *Workspace {
	if opts.QuietPeriod <= 0 {
		opts.QuietPeriod = DefaultQuietPeriod
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Workspace{
		api:      api,
		cache:    cache,
		renderer: renderer,
		log:      opts.Logger,
		onChange: opts.OnChange,
		quiet:    opts.QuietPeriod,
		newID:    uuid.NewString,
		sess:     opts.Session,
		autosave: !opts.DisableAutosave,
	}
}

// SetSession replaces the identity used for later requests.
func (w *Workspace) SetSession(s session.Session) {
	w.mu.Lock()
	w.sess = s
	w.mu.Unlock()
}

// State returns the sync state and the error of the last failed operation.
func (w *Workspace) State() (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.lastErr
}

// Project returns a copy of the open project, or nil.
func (w *Workspace) Project() *models.Project {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.project.Clone()
}

// Preview renders the in-memory files.
func (w *Workspace) Preview() (string, error) {
	w.mu.Lock()
	if w.project == nil {
		w.mu.Unlock()
		return "", ErrNoProject
	}
	files := slices.Clone(w.project.Files)
	w.mu.Unlock()
	return w.renderer.Render(files), nil
}

// Create makes a new project on the server and opens it. Unsaved changes of
// the open project are flushed first.
func (w *Workspace) Create(ctx context.Context, name, description string) (*models.Project, error) {
	w.flush(ctx)

	w.mu.Lock()
	sess := w.sess
	w.mu.Unlock()

	p, err := w.api.CreateProject(ctx, sess, name, description)
	if err != nil {
		return nil, err
	}
	normalize(p, "")
	w.open(ctx, p)
	return p.Clone(), nil
}

// Load shows the cached snapshot of projectID at once, then replaces it with
// the server copy. When the server cannot be reached the cached snapshot
// stays open; Load only fails when there is nothing to show, and then the
// previously open project stays open. Unsaved changes of the previous
// project are flushed first.
func (w *Workspace) Load(ctx context.Context, projectID string) (*models.Project, error) {
	w.flush(ctx)

	w.mu.Lock()
	pending := w.timer != nil
	w.stopTimerLocked()
	prev, prevSynced := w.project, w.synced
	prevState, prevErr := w.state, w.lastErr
	w.state = Loading
	sess := w.sess
	w.mu.Unlock()

	cached, err := w.cache.Project(ctx, projectID)
	if err != nil {
		w.log.Warn("failed to read cached project", zap.String("project_id", projectID), zap.Error(err))
		cached = nil
	}
	cachedSel := ""
	if cached != nil {
		cached.DropDanglingSelection()
		cachedSel = cached.SelectedFileID

		w.mu.Lock()
		w.project = cached.Clone()
		w.synced = models.ProjectPatch{}
		w.mu.Unlock()
		w.notify()
	}

	remote, err := w.api.GetProject(ctx, sess, projectID)
	if err != nil {
		w.mu.Lock()
		defer w.mu.Unlock()
		if cached == nil {
			if prev == nil {
				w.state, w.lastErr = Idle, err
				return nil, err
			}
			w.project, w.synced = prev, prevSynced
			w.state, w.lastErr = prevState, prevErr
			if pending {
				w.scheduleLocked()
			}
			return nil, err
		}
		w.log.Warn("using cached project, server copy unavailable",
			zap.String("project_id", projectID), zap.Error(err))
		w.state, w.lastErr = Ready, err
		return cached, nil
	}

	normalize(remote, cachedSel)
	w.open(ctx, remote)
	return remote.Clone(), nil
}

// flush pushes unsaved changes of the open project before it is replaced.
// Whatever the server says, the local copy ends up in the cache.
func (w *Workspace) flush(ctx context.Context) {
	w.mu.Lock()
	if w.project == nil || samePatch(patchOf(w.project), w.synced) {
		w.mu.Unlock()
		return
	}
	local := w.project.Clone()
	w.mu.Unlock()

	err := w.save(ctx, false)
	if err == nil {
		return
	}
	// a failed save cached the copy already; one in flight did not
	if errors.Is(err, ErrSaveInFlight) {
		if cerr := w.cache.PutProject(ctx, local); cerr != nil {
			w.log.Warn("failed to cache project", zap.String("project_id", local.ProjectID), zap.Error(cerr))
		}
	}
	w.log.Warn("unsaved changes kept in the local cache only",
		zap.String("project_id", local.ProjectID), zap.Error(err))
}

// open makes p, a document just received from the server, the current
// project.
func (w *Workspace) open(ctx context.Context, p *models.Project) {
	w.mu.Lock()
	w.stopTimerLocked()
	w.project = p.Clone()
	w.synced = patchOf(p)
	w.state, w.lastErr = Ready, nil
	w.mu.Unlock()

	w.remember(ctx, p)
	w.notify()
}

// normalize resolves the selected file: a dangling id is dropped, an empty
// one takes carry when that file still exists, and the first file is the
// last resort.
func normalize(p *models.Project, carry string) {
	p.DropDanglingSelection()
	if p.SelectedFileID == "" && carry != "" && p.FileByID(carry) != nil {
		p.SelectedFileID = carry
	}
	if p.SelectedFileID == "" && len(p.Files) > 0 {
		p.SelectedFileID = p.Files[0].ID
	}
}

func (w *Workspace) remember(ctx context.Context, p *models.Project) {
	if err := w.cache.PutProject(ctx, p); err != nil {
		w.log.Warn("failed to cache project", zap.String("project_id", p.ProjectID), zap.Error(err))
	}
	if err := w.cache.TouchRecent(ctx, p); err != nil {
		w.log.Warn("failed to update recent projects", zap.Error(err))
	}
}

// Edit replaces the content of a file. Identical content is a no-op.
func (w *Workspace) Edit(fileID, content string) error {
	w.mu.Lock()
	if w.project == nil {
		w.mu.Unlock()
		return ErrNoProject
	}
	f := w.project.FileByID(fileID)
	if f == nil {
		w.mu.Unlock()
		return ErrFileNotFound
	}
	if f.Content == content {
		w.mu.Unlock()
		return nil
	}
	f.Content = content
	w.scheduleLocked()
	w.mu.Unlock()

	w.notify()
	return nil
}

// SelectFile changes the selected file. The selection is sent with the next
// save.
func (w *Workspace) SelectFile(fileID string) error {
	w.mu.Lock()
	if w.project == nil {
		w.mu.Unlock()
		return ErrNoProject
	}
	if w.project.FileByID(fileID) == nil {
		w.mu.Unlock()
		return ErrFileNotFound
	}
	w.project.SelectedFileID = fileID
	w.mu.Unlock()

	w.notify()
	return nil
}

// AddFile appends a file with starter content and selects it. A name
// without an extension becomes a .jsx file.
func (w *Workspace) AddFile(name string) (*models.File, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(name, ".") {
		name += defaultExt
	}

	w.mu.Lock()
	if w.project == nil {
		w.mu.Unlock()
		return nil, ErrNoProject
	}
	if w.project.FileByName(name) != nil {
		w.mu.Unlock()
		return nil, ErrFileExists
	}
	f := models.File{
		ID:       w.newID(),
		Name:     name,
		Type:     models.FileType,
		Language: languageFor(name),
		Content:  defaultContent(name),
	}
	w.project.Files = append(w.project.Files, f)
	w.project.SelectedFileID = f.ID
	w.scheduleLocked()
	w.mu.Unlock()

	w.notify()
	return &f, nil
}

// RenameFile renames a file and saves at once.
func (w *Workspace) RenameFile(ctx context.Context, fileID, newName string) error {
	newName, err := cleanName(newName)
	if err != nil {
		return err
	}

	w.mu.Lock()
	if w.project == nil {
		w.mu.Unlock()
		return ErrNoProject
	}
	f := w.project.FileByID(fileID)
	if f == nil {
		w.mu.Unlock()
		return ErrFileNotFound
	}
	if f.Name == newName {
		w.mu.Unlock()
		return nil
	}
	if w.project.FileByName(newName) != nil {
		w.mu.Unlock()
		return ErrFileExists
	}
	f.Name = newName
	f.Language = languageFor(newName)
	w.mu.Unlock()

	w.notify()
	return w.Save(ctx)
}

// RemoveFile deletes a file and saves at once. When the removed file was
// selected, the first remaining file becomes selected.
func (w *Workspace) RemoveFile(ctx context.Context, fileID string) error {
	w.mu.Lock()
	if w.project == nil {
		w.mu.Unlock()
		return ErrNoProject
	}
	i := slices.IndexFunc(w.project.Files, func(f models.File) bool { return f.ID == fileID })
	if i < 0 {
		w.mu.Unlock()
		return ErrFileNotFound
	}
	w.project.Files = slices.Delete(w.project.Files, i, i+1)
	if w.project.SelectedFileID == fileID {
		w.project.SelectedFileID = ""
		if len(w.project.Files) > 0 {
			w.project.SelectedFileID = w.project.Files[0].ID
		}
	}
	w.mu.Unlock()

	w.notify()
	return w.Save(ctx)
}

// Delete deletes projectID on the server, best effort. The cached snapshot,
// the recent entry and, if projectID is open, the in-memory project are
// cleared whatever the server says; its error is returned for reporting.
func (w *Workspace) Delete(ctx context.Context, projectID string) error {
	w.mu.Lock()
	sess := w.sess
	if w.project != nil && w.project.ProjectID == projectID {
		w.stopTimerLocked()
		w.project = nil
		w.synced = models.ProjectPatch{}
		w.state, w.lastErr = Idle, nil
	}
	w.mu.Unlock()

	apiErr := w.api.DeleteProject(ctx, sess, projectID)
	if err := w.cache.DeleteProject(ctx, projectID); err != nil {
		w.log.Warn("failed to drop cached project", zap.String("project_id", projectID), zap.Error(err))
	}
	w.notify()
	return apiErr
}

// SetAutosave turns autosave on or off. Turning it on arms the timer when
// there are unsaved edits.
func (w *Workspace) SetAutosave(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.autosave = on
	if on {
		w.scheduleLocked()
	} else {
		w.stopTimerLocked()
	}
}

// Autosave reports whether autosave is on.
func (w *Workspace) Autosave() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.autosave
}

// Dirty reports whether the open project differs from the server copy.
func (w *Workspace) Dirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.project != nil && !samePatch(patchOf(w.project), w.synced)
}

// Close stops the autosave timer and waits for an autosave in flight.
func (w *Workspace) Close() {
	w.mu.Lock()
	w.closed = true
	w.stopTimerLocked()
	w.mu.Unlock()
	w.inflight.Wait()
}

// Save pushes the open project to the server unless nothing changed since
// the last successful sync.
func (w *Workspace) Save(ctx context.Context) error {
	return w.save(ctx, false)
}

// save sends one snapshot. With contentOnly set, as for autosave, it only
// proceeds when some file's content changed.
func (w *Workspace) save(ctx context.Context, contentOnly bool) error {
	w.mu.Lock()
	if w.project == nil {
		w.mu.Unlock()
		return ErrNoProject
	}
	if w.saving {
		w.mu.Unlock()
		return ErrSaveInFlight
	}
	current := patchOf(w.project)
	if samePatch(current, w.synced) || (contentOnly && !w.contentChangedLocked()) {
		w.mu.Unlock()
		return nil
	}
	w.stopTimerLocked()
	snap := w.project.Clone()
	sess := w.sess
	w.saving = true
	w.state = Saving
	w.mu.Unlock()
	w.notify()

	updated, err := w.api.UpdateProject(ctx, sess, snap.ProjectID, patchOf(snap))

	w.mu.Lock()
	w.saving = false
	if w.project == nil || w.project.ProjectID != snap.ProjectID {
		// closed or replaced while the request was in flight
		w.mu.Unlock()
		return err
	}

	if err != nil {
		w.state, w.lastErr = ReadyWithError, err
		local := w.project.Clone()
		w.mu.Unlock()

		w.log.Warn("save failed, kept local copy",
			zap.String("project_id", snap.ProjectID), zap.Error(err))
		if cerr := w.cache.PutProject(ctx, local); cerr != nil {
			w.log.Warn("failed to cache project", zap.String("project_id", local.ProjectID), zap.Error(cerr))
		}
		w.notify()
		return err
	}

	normalize(updated, snap.SelectedFileID)
	w.synced = patchOf(updated)
	// edits made while the request was in flight win over the server copy
	if !samePatch(patchOf(w.project), patchOf(snap)) {
		updated.Files = slices.Clone(w.project.Files)
		updated.SelectedFileID = w.project.SelectedFileID
		updated.Name = w.project.Name
		updated.Description = w.project.Description
		updated.Dependencies = maps.Clone(w.project.Dependencies)
	}
	w.project = updated.Clone()
	w.state, w.lastErr = Ready, nil
	w.scheduleLocked()
	w.mu.Unlock()

	w.log.Debug("project saved", zap.String("project_id", updated.ProjectID))
	w.remember(ctx, updated)
	w.notify()
	return nil
}

// contentChangedLocked reports whether any file's content differs from the
// last synced content. A file the server has not seen counts as changed.
func (w *Workspace) contentChangedLocked() bool {
	saved := models.FileContents(w.synced.Files)
	for _, f := range w.project.Files {
		if c, ok := saved[f.ID]; !ok || c != f.Content {
			return true
		}
	}
	return false
}

// scheduleLocked (re)arms the autosave timer when autosave is on and some
// content changed, and disarms it otherwise.
func (w *Workspace) scheduleLocked() {
	if !w.autosave || w.closed || w.project == nil || !w.contentChangedLocked() {
		w.stopTimerLocked()
		return
	}
	w.stopTimerLocked()
	gen := w.gen
	w.timer = time.AfterFunc(w.quiet, func() { w.fire(gen) })
}

func (w *Workspace) stopTimerLocked() {
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// fire runs on the timer goroutine.
func (w *Workspace) fire(gen uint64) {
	w.mu.Lock()
	if gen != w.gen || w.closed {
		w.mu.Unlock()
		return
	}
	if w.saving {
		// one save at a time; try again after another quiet period
		w.timer = time.AfterFunc(w.quiet, func() { w.fire(gen) })
		w.mu.Unlock()
		return
	}
	w.timer = nil
	w.inflight.Add(1)
	w.mu.Unlock()
	defer w.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), autosaveTimeout)
	defer cancel()
	if err := w.save(ctx, true); err != nil && !errors.Is(err, ErrSaveInFlight) {
		w.log.Warn("autosave failed", zap.Error(err))
	}
}

func (w *Workspace) notify() {
	if w.onChange == nil {
		return
	}
	w.onChange(w.Project())
}

// patchOf is the full update a save sends for p.
func patchOf(p *models.Project) models.ProjectPatch {
	name, desc, sel := p.Name, p.Description, p.SelectedFileID
	files := slices.Clone(p.Files)
	if files == nil {
		files = []models.File{}
	}
	deps := maps.Clone(p.Dependencies)
	if deps == nil {
		deps = map[string]string{}
	}
	return models.ProjectPatch{
		Files:          files,
		Dependencies:   deps,
		Name:           &name,
		Description:    &desc,
		SelectedFileID: &sel,
	}
}

func samePatch(a, b models.ProjectPatch) bool {
	return slices.Equal(a.Files, b.Files) &&
		maps.Equal(a.Dependencies, b.Dependencies) &&
		equalPtr(a.Name, b.Name) &&
		equalPtr(a.Description, b.Description) &&
		equalPtr(a.SelectedFileID, b.SelectedFileID)
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
