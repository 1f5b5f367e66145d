package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/atinyakov/CipherStudio/internal/client/api"
	"github.com/atinyakov/CipherStudio/internal/client/session"
	"github.com/atinyakov/CipherStudio/internal/client/storage"
	"github.com/atinyakov/CipherStudio/internal/client/workspace"
	"github.com/atinyakov/CipherStudio/internal/models"
	"github.com/atinyakov/CipherStudio/internal/preview"
	"go.uber.org/zap"
)

const defaultPreviewPath = "preview.html"

const helpText = `Available commands:
  register | login | logout | whoami
  new <name> [description]   create a project and open it
  open <project id>          open a project (cache first, then server)
  list                       your projects on the server (login required)
  recent                     recently opened projects
  files                      files of the open project (* marks the selection)
  select <file>              select a file
  cat [file]                 print a file (default: the selected one)
  edit [file]                replace a file's content
  touch <name>               add a file with starter content
  rename <file> <new name>   rename a file (saves at once)
  rm <file>                  remove a file (saves at once)
  save                       push unsaved changes to the server
  status                     sync state of the open project
  autosave on|off            toggle autosave
  preview [path]             write the preview document (default preview.html)
  watch [path] | watch off   rewrite the preview after every change
  delete [project id]        delete a project (default: the open one)
  help | exit`

// accountAPI is the part of the backend client that the workspace does not
// cover.
type accountAPI interface {
	workspace.API
	Register(ctx context.Context, email, password string) (*models.AuthResult, error)
	Login(ctx context.Context, email, password string) (*models.AuthResult, error)
	Profile(ctx context.Context, s session.Session) (*models.Profile, error)
	ListProjects(ctx context.Context, s session.Session) ([]models.Project, error)
}

type appConfig struct {
	API         accountAPI
	Cache       *storage.ProjectCache
	Session     session.Session
	SessionPath string
	Logger      *zap.Logger
	In          io.Reader
	Out         io.Writer
}

type app struct {
	api         accountAPI
	cache       *storage.ProjectCache
	ws          *workspace.Workspace
	renderer    *preview.Renderer
	sessionPath string
	in          *bufio.Reader
	out         io.Writer

	mu        sync.Mutex
	sess      session.Session
	watchPath string
}

func newApp(cfg appConfig) *app {
	a := &app{
		api:         cfg.API,
		cache:       cfg.Cache,
		renderer:    preview.NewRenderer(),
		sessionPath: cfg.SessionPath,
		in:          bufio.NewReader(cfg.In),
		out:         cfg.Out,
		sess:        cfg.Session,
	}
	a.ws = workspace.New(cfg.API, cfg.Cache, a.renderer, workspace.Options{
		Session:  cfg.Session,
		Logger:   cfg.Logger,
		OnChange: a.onChange,
	})
	return a
}

func (a *app) close() {
	a.ws.Close()
}

// onChange rewrites the watched preview file.
func (a *app) onChange(p *models.Project) {
	a.mu.Lock()
	path := a.watchPath
	a.mu.Unlock()
	if path == "" || p == nil {
		return
	}
	if err := os.WriteFile(path, []byte(a.renderer.Render(p.Files)), 0644); err != nil {
		fmt.Fprintf(a.out, "preview: %v\n", err)
	}
}

// repl runs the interactive shell loop until exit or end of input.
func (a *app) repl(ctx context.Context) {
	for {
		fmt.Fprint(a.out, a.prompt())
		line, err := a.in.ReadString('\n')
		args := strings.Fields(line)
		if len(args) > 0 {
			if !a.exec(ctx, args) {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (a *app) prompt() string {
	if p := a.ws.Project(); p != nil {
		return "cipherstudio:" + p.Name + "> "
	}
	return "cipherstudio> "
}

// exec runs one command and reports whether the shell should go on.
func (a *app) exec(ctx context.Context, args []string) bool {
	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "help":
		fmt.Fprintln(a.out, helpText)
	case "register", "login":
		err = a.authenticate(ctx, cmd)
	case "logout":
		err = a.setSession(a.currentSession().Logout())
		if err == nil {
			fmt.Fprintln(a.out, "Logged out")
		}
	case "whoami":
		err = a.whoami(ctx)
	case "new":
		err = a.newProject(ctx, rest)
	case "open":
		err = a.open(ctx, rest)
	case "list":
		err = a.list(ctx)
	case "recent":
		err = a.recent(ctx)
	case "files":
		err = a.files()
	case "select":
		err = a.withFile(rest, func(f *models.File) error { return a.ws.SelectFile(f.ID) })
	case "cat":
		err = a.withFile(rest, func(f *models.File) error {
			fmt.Fprintln(a.out, f.Content)
			return nil
		})
	case "edit":
		err = a.withFile(rest, func(f *models.File) error {
			content, err := storage.PromptContent(a.in, a.out)
			if err != nil {
				return err
			}
			return a.ws.Edit(f.ID, content)
		})
	case "touch":
		err = a.touch(rest)
	case "rename":
		if len(rest) != 2 {
			fmt.Fprintln(a.out, "Usage: rename <file> <new name>")
			return true
		}
		err = a.withFile(rest[:1], func(f *models.File) error { return a.ws.RenameFile(ctx, f.ID, rest[1]) })
	case "rm":
		if len(rest) != 1 {
			fmt.Fprintln(a.out, "Usage: rm <file>")
			return true
		}
		err = a.withFile(rest, func(f *models.File) error { return a.ws.RemoveFile(ctx, f.ID) })
	case "save":
		err = a.ws.Save(ctx)
		if err == nil {
			fmt.Fprintln(a.out, "Saved")
		}
	case "status":
		a.status()
	case "autosave":
		err = a.autosave(rest)
	case "preview":
		err = a.preview(rest)
	case "watch":
		err = a.watch(rest)
	case "delete":
		err = a.deleteProject(ctx, rest)
	case "exit", "quit":
		fmt.Fprintln(a.out, "Bye")
		return false
	default:
		fmt.Fprintln(a.out, "Unknown command. Type 'help' for a list of commands.")
	}
	if err != nil {
		fmt.Fprintf(a.out, "Error: %v\n", err)
	}
	return true
}

func (a *app) currentSession() session.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sess
}

func (a *app) setSession(s session.Session) error {
	a.mu.Lock()
	a.sess = s
	a.mu.Unlock()
	a.ws.SetSession(s)
	return session.Save(a.sessionPath, s)
}

func (a *app) authenticate(ctx context.Context, cmd string) error {
	email, password, err := storage.PromptCredentials(a.in, a.out)
	if err != nil {
		return err
	}

	var res *models.AuthResult
	if cmd == "register" {
		res, err = a.api.Register(ctx, email, password)
	} else {
		res, err = a.api.Login(ctx, email, password)
	}
	if err != nil {
		return err
	}
	if err := a.setSession(a.currentSession().WithLogin(res)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, res.Message)
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	s := a.currentSession()
	if !s.Authenticated() {
		fmt.Fprintf(a.out, "Guest %s\n", s.GuestID)
		return nil
	}
	p, err := a.api.Profile(ctx, s)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (%s), member since %s\n", p.Email, p.ID, p.CreatedAt.Format("2006-01-02"))
	return nil
}

func (a *app) newProject(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: new <name> [description]")
		return nil
	}
	p, err := a.ws.Create(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	visibility := "private"
	if p.IsPublic {
		visibility = "public"
	}
	fmt.Fprintf(a.out, "Created %s project %s (%s)\n", visibility, p.Name, p.ProjectID)
	return nil
}

func (a *app) open(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: open <project id>")
		return nil
	}
	p, err := a.ws.Load(ctx, args[0])
	if err != nil {
		return err
	}
	if _, lastErr := a.ws.State(); lastErr != nil {
		fmt.Fprintf(a.out, "Server unavailable, showing the cached copy: %v\n", lastErr)
	}
	fmt.Fprintf(a.out, "Opened %s (%d files)\n", p.Name, len(p.Files))
	return nil
}

func (a *app) list(ctx context.Context) error {
	projects, err := a.api.ListProjects(ctx, a.currentSession())
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Fprintln(a.out, "No projects")
	}
	for _, p := range projects {
		fmt.Fprintf(a.out, "%s  %-20s  %s\n", p.ProjectID, p.Name, p.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func (a *app) recent(ctx context.Context) error {
	list, err := a.cache.Recent(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No recent projects")
	}
	for _, r := range list {
		fmt.Fprintf(a.out, "%s  %s\n", r.ProjectID, r.Name)
	}
	return nil
}

func (a *app) files() error {
	p := a.ws.Project()
	if p == nil {
		return workspace.ErrNoProject
	}
	for _, f := range p.Files {
		mark := " "
		if f.ID == p.SelectedFileID {
			mark = "*"
		}
		fmt.Fprintf(a.out, "%s %s\n", mark, f.Name)
	}
	return nil
}

// withFile resolves args[0] (a name or an id, default the selected file)
// and calls fn with it.
func (a *app) withFile(args []string, fn func(f *models.File) error) error {
	p := a.ws.Project()
	if p == nil {
		return workspace.ErrNoProject
	}
	var f *models.File
	if len(args) == 0 {
		f = p.SelectedFile()
	} else if f = p.FileByName(args[0]); f == nil {
		f = p.FileByID(args[0])
	}
	if f == nil {
		return workspace.ErrFileNotFound
	}
	return fn(f)
}

func (a *app) touch(args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: touch <name>")
		return nil
	}
	f, err := a.ws.AddFile(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s\n", f.Name)
	return nil
}

func (a *app) status() {
	p := a.ws.Project()
	if p == nil {
		fmt.Fprintln(a.out, "No project open")
		return
	}
	state, err := a.ws.State()
	fmt.Fprintf(a.out, "%s (%s): %s, autosave %v, unsaved changes %v\n",
		p.Name, p.ProjectID, state, a.ws.Autosave(), a.ws.Dirty())
	if err != nil {
		fmt.Fprintf(a.out, "Last error: %v\n", err)
	}
}

func (a *app) autosave(args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		fmt.Fprintln(a.out, "Usage: autosave on|off")
		return nil
	}
	a.ws.SetAutosave(args[0] == "on")
	fmt.Fprintf(a.out, "Autosave %s\n", args[0])
	return nil
}

func (a *app) preview(args []string) error {
	path := defaultPreviewPath
	if len(args) > 0 {
		path = args[0]
	}
	doc, err := a.ws.Preview()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Preview written to %s\n", path)
	return nil
}

func (a *app) watch(args []string) error {
	if len(args) == 1 && args[0] == "off" {
		a.mu.Lock()
		a.watchPath = ""
		a.mu.Unlock()
		fmt.Fprintln(a.out, "Preview watch off")
		return nil
	}
	path := defaultPreviewPath
	if len(args) > 0 {
		path = args[0]
	}
	a.mu.Lock()
	a.watchPath = path
	a.mu.Unlock()
	if p := a.ws.Project(); p != nil {
		a.onChange(p)
	}
	fmt.Fprintf(a.out, "Watching, preview follows every change in %s\n", path)
	return nil
}

func (a *app) deleteProject(ctx context.Context, args []string) error {
	id := ""
	if len(args) > 0 {
		id = args[0]
	} else if p := a.ws.Project(); p != nil {
		id = p.ProjectID
	}
	if id == "" {
		fmt.Fprintln(a.out, "Usage: delete [project id]")
		return nil
	}
	// the local copy is gone either way
	if err := a.ws.Delete(ctx, id); err != nil {
		if !api.IsNetwork(err) {
			return err
		}
		fmt.Fprintf(a.out, "Server unreachable (%v), removed locally\n", err)
		return nil
	}
	fmt.Fprintln(a.out, "Project deleted")
	return nil
}
