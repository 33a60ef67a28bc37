// Package hooks renders the shell snippets that feed directory changes into
// frecency.
//
// The snippets record visits in the background and never block the prompt or
// print anything, so a broken database cannot break the shell.
package hooks

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/template"
)

// HookInput parameterizes a shell snippet.
type HookInput struct {
	// Exe is the command the snippet runs, normally the absolute path of the
	// running binary.
	Exe string
	// Config, Engine and DBFile, when set, are passed as --config, --engine
	// and --db-file on every invocation.
	Config string
	Engine string
	DBFile string
}

var templates = map[string]*template.Template{
	"bash": parse("bash", bashHook),
	"zsh":  parse("zsh", zshHook),
	"fish": parse("fish", fishHook),
}

func parse(name, text string) *template.Template {
	t := template.Must(template.New(name).Funcs(funcs).Parse(flagsTemplate))
	return template.Must(t.Parse(text))
}

var funcs = template.FuncMap{
	"quote":     posixQuote,
	"fishquote": fishQuote,
}

// Shells returns the supported shell names, sorted.
func Shells() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle writes the hook for shell to w.
func Handle(shell string, input HookInput, w io.Writer) error {
	tmpl, ok := templates[shell]
	if !ok {
		return fmt.Errorf("unsupported shell %q (want one of %s)", shell, strings.Join(Shells(), ", "))
	}
	if input.Exe == "" {
		return fmt.Errorf("hook for %s: empty executable", shell)
	}
	return tmpl.Execute(w, input)
}

// posixQuote single-quotes s for sh-like shells.
func posixQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// fishQuote single-quotes s for fish, where only \ and ' are special.
func fishQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}
