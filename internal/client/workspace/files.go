package workspace

import (
	"fmt"
	"path"
	"strings"
)

// defaultExt is appended to file names given without an extension.
const defaultExt = ".jsx"

// languages maps an extension to the editor's display hint.
var languages = map[string]string{
	".jsx":  "jsx",
	".js":   "javascript",
	".css":  "css",
	".json": "json",
	".html": "html",
}

func languageFor(name string) string {
	return languages[path.Ext(name)]
}

// defaultContent returns the starter text of a new file.
func defaultContent(name string) string {
	switch path.Ext(name) {
	case ".jsx":
		return fmt.Sprintf(`export default function Component() {
  return (
    <div>
      <h1>Hello from %s</h1>
    </div>
  )
}`, name)
	case ".css":
		return `/* Styles for your component */
.container {
  padding: 20px;
  background-color: #f5f5f5;
}`
	case ".json":
		return `{
  "name": "config",
  "version": "1.0.0"
}`
	case ".html":
		return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>%s</title>
</head>
<body>
  <h1>Welcome</h1>
</body>
</html>`, name)
	}
	return ""
}

// cleanName trims name and rejects empty names and path separators; files
// live in a flat list.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidName
	}
	return name, nil
}
