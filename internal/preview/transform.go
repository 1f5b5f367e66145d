package preview

import (
	"regexp"
	"strings"
)

// RegexTransformer rewrites sources with regular expressions. It understands
// the import/export shapes the editor's templates produce, not arbitrary
// JavaScript.
type RegexTransformer struct{}

var (
	reactNamed   = regexp.MustCompile(`(?m)^[ \t]*import\s+(?:\w+\s*,\s*)?\{([^}]*)\}\s*from\s*['"](react|react-dom|react-dom/client)['"][ \t]*;?`)
	importFrom   = regexp.MustCompile(`(?ms)^[ \t]*import\s+[^;'"]*?\s*from\s*['"][^'"]+['"][ \t]*;?[ \t]*\n?`)
	importBare   = regexp.MustCompile(`(?m)^[ \t]*import\s*['"][^'"]+['"][ \t]*;?[ \t]*\n?`)
	exportDef    = regexp.MustCompile(`\bexport\s+default\s+`)
	exportNamed  = regexp.MustCompile(`\bexport\s+((?:async\s+)?function|const|let|var|class)\b`)
	exportList   = regexp.MustCompile(`(?m)^[ \t]*export\s*\{[^}]*\}[ \t]*;?[ \t]*\n?`)
	twoStmtRoot  = regexp.MustCompile(`(?s)(?:const|let|var)\s+(\w+)\s*=\s*(?:ReactDOM\.)?createRoot\([^;]*?\)\s*;?\s*(\w+)\.render\(.*?\)\s*;`)
	chainedRoot  = regexp.MustCompile(`(?s)(?:ReactDOM\.)?createRoot\([^;]*?\)\s*\.render\(.*?\)\s*;`)
	legacyRender = regexp.MustCompile(`(?s)ReactDOM\.render\(.*?\)\s*;`)
)

// Component strips imports, assigns the default export to window.<global>
// and drops the export keyword from named exports.
func (RegexTransformer) Component(global, code string) string {
	code = stripImports(code)
	code = exportDef.ReplaceAllLiteralString(code, "window."+global+" = ")
	code = exportList.ReplaceAllString(code, "")
	code = exportNamed.ReplaceAllString(code, "$1")
	return code
}

// Entry strips imports and replaces the root render call with one that
// mounts window.<app>.
func (RegexTransformer) Entry(app, code string) string {
	mount := "ReactDOM.createRoot(document.getElementById('root')).render(React.createElement(window." + app + "));"

	code = stripImports(code)
	code = twoStmtRoot.ReplaceAllStringFunc(code, func(m string) string {
		sub := twoStmtRoot.FindStringSubmatch(m)
		if sub[1] != sub[2] {
			return m
		}
		return mount
	})
	if !strings.Contains(code, mount) {
		code = chainedRoot.ReplaceAllLiteralString(code, mount)
	}
	if !strings.Contains(code, mount) {
		code = legacyRender.ReplaceAllLiteralString(code, mount)
	}
	return code
}

// stripImports drops import statements. Named imports from react and
// react-dom become destructuring of the page's React and ReactDOM globals;
// var, since every file runs as its own top-level script.
func stripImports(code string) string {
	code = reactNamed.ReplaceAllStringFunc(code, func(m string) string {
		sub := reactNamed.FindStringSubmatch(m)
		names := destructure(sub[1])
		if names == "" {
			return ""
		}
		global := "React"
		if sub[2] != "react" {
			global = "ReactDOM"
		}
		return "var { " + names + " } = " + global + ";"
	})
	code = importFrom.ReplaceAllString(code, "")
	return importBare.ReplaceAllString(code, "")
}

// destructure turns an import list such as "useState, useEffect as effect"
// into destructuring pattern entries ("useState, useEffect: effect").
func destructure(list string) string {
	var names []string
	for _, item := range strings.Split(list, ",") {
		fields := strings.Fields(item)
		switch {
		case len(fields) == 1:
			names = append(names, fields[0])
		case len(fields) == 3 && fields[1] == "as":
			names = append(names, fields[0]+": "+fields[2])
		}
	}
	return strings.Join(names, ", ")
}
