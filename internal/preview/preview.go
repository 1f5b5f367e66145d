// Package preview renders a project's files into a standalone HTML document
// that runs the React app in a browser.
package preview

import (
	"bytes"
	"path"
	"regexp"
	"strings"
	"text/template"

	"github.com/atinyakov/CipherStudio/internal/models"
)

// Placeholder is returned when the app or entry file is missing.
const Placeholder = "<div style='padding: 20px; color: #666;'>App.jsx and index.js files are required</div>"

// SourceTransformer rewrites module-style source into plain browser scripts
// that communicate through window globals.
type SourceTransformer interface {
	// Component rewrites a component file. global is the window property its
	// default export is assigned to.
	Component(global, code string) string
	// Entry rewrites the entry file so it mounts window.<app> into #root.
	Entry(app, code string) string
}

// Renderer builds preview documents. The zero value is not usable; use
// NewRenderer.
type Renderer struct {
	// Transformer rewrites sources. Defaults to RegexTransformer.
	Transformer SourceTransformer
	// ComponentExt is the extension of component files, including the dot.
	ComponentExt string
	// AppName is the base name of the root component file.
	AppName string
	// EntryName is the full name of the entry file.
	EntryName string
}

// NewRenderer returns a Renderer for App.jsx / index.js projects.
func NewRenderer() *Renderer {
	return &Renderer{
		Transformer:  RegexTransformer{},
		ComponentExt: ".jsx",
		AppName:      "App",
		EntryName:    "index.js",
	}
}

type document struct {
	Styles  string
	Scripts []string
}

// Render returns the preview document for files, or Placeholder when the
// app or entry file is missing. It never fails.
func (r *Renderer) Render(files []models.File) string {
	appFile := r.AppName + r.ComponentExt

	var app, entry *models.File
	for i := range files {
		switch files[i].Name {
		case appFile:
			if app == nil {
				app = &files[i]
			}
		case r.EntryName:
			if entry == nil {
				entry = &files[i]
			}
		}
	}
	if app == nil || entry == nil {
		return Placeholder
	}

	var (
		css     []string
		scripts []string
	)
	for _, f := range files {
		if strings.HasSuffix(f.Name, ".css") {
			css = append(css, f.Content)
		}
	}
	for _, f := range files {
		if f.Name == appFile || !strings.HasSuffix(f.Name, r.ComponentExt) {
			continue
		}
		global := globalName(strings.TrimSuffix(path.Base(f.Name), r.ComponentExt))
		scripts = append(scripts, r.Transformer.Component(global, f.Content))
	}
	scripts = append(scripts,
		r.Transformer.Component(r.AppName, app.Content),
		r.Transformer.Entry(r.AppName, entry.Content),
	)

	for i := range scripts {
		scripts[i] = closingScript.ReplaceAllString(scripts[i], `<\/$1`)
	}
	doc := document{
		Styles:  closingStyle.ReplaceAllString(strings.Join(css, "\n"), `<\/$1`),
		Scripts: scripts,
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, doc); err != nil {
		return Placeholder
	}
	return buf.String()
}

var (
	closingScript = regexp.MustCompile(`(?i)</(script)`)
	closingStyle  = regexp.MustCompile(`(?i)</(style)`)
	nonIdent      = regexp.MustCompile(`\W`)
)

// globalName turns a file base name into a JavaScript identifier.
func globalName(base string) string {
	name := nonIdent.ReplaceAllString(base, "_")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "_" + name
	}
	return name
}

var page = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <script>
      (function () {
        window.__consoleLogs = [];
        var format = function (args) {
          return Array.prototype.map.call(args, function (a) {
            if (typeof a === 'object') {
              try { return JSON.stringify(a); } catch (e) { return String(a); }
            }
            return String(a);
          }).join(' ');
        };
        ['log', 'info', 'warn', 'error'].forEach(function (type) {
          var original = console[type];
          console[type] = function () {
            window.__consoleLogs.push({ type: type, message: format(arguments) });
            original.apply(console, arguments);
          };
        });
        window.addEventListener('error', function (e) {
          window.__consoleLogs.push({ type: 'error', message: String(e.message) });
        });
      })();
    </script>
    <script crossorigin src="https://unpkg.com/react@18/umd/react.production.min.js"></script>
    <script crossorigin src="https://unpkg.com/react-dom@18/umd/react-dom.production.min.js"></script>
    <script src="https://unpkg.com/@babel/standalone/babel.min.js"></script>
    <style>
      * {
        margin: 0;
        padding: 0;
        box-sizing: border-box;
      }
      body {
        font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", "Roboto", "Oxygen", "Ubuntu", "Cantarell", sans-serif;
        background-color: #ffffff;
      }
      #root {
        width: 100%;
        min-height: 100vh;
      }
      .error-boundary {
        padding: 20px;
        background-color: #fee;
        border: 1px solid #fcc;
        border-radius: 4px;
        color: #c33;
        font-family: monospace;
        white-space: pre-wrap;
        word-break: break-word;
        font-size: 12px;
      }
    </style>
    <style>
{{.Styles}}
    </style>
  </head>
  <body>
    <div id="root"></div>
{{- range .Scripts}}
    <script type="text/babel" data-presets="react">
{{.}}
    </script>
{{- end}}
  </body>
</html>
`))
