package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// TemplateName is the template the HTML report is rendered from.
const TemplateName = "coverage"

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

// TemplateRenderer executes a named template against data.
type TemplateRenderer interface {
	Render(name string, data any) (string, error)
}

// Templates is a set of html/template templates loaded from a filesystem.
type Templates struct {
	tmpl *template.Template
}

// LoadTemplates parses every *.tmpl file in dir. An empty dir selects the
// templates bundled with the binary.
func LoadTemplates(dir string) (*Templates, error) {
	if dir == "" {
		sub, err := fs.Sub(embeddedTemplates, "templates")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
		}
		return ParseTemplates(sub)
	}

	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%w: template directory: %v", ErrTemplate, err)
	}
	return ParseTemplates(os.DirFS(dir))
}

// ParseTemplates parses every *.tmpl file at the root of fsys.
func ParseTemplates(fsys fs.FS) (*Templates, error) {
	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(fsys, "*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("%w: parse templates: %v", ErrTemplate, err)
	}
	return &Templates{tmpl: tmpl}, nil
}

// Render executes the template called name.
func (t *Templates) Render(name string, data any) (string, error) {
	if t.tmpl.Lookup(name) == nil {
		return "", fmt.Errorf("%w: template %q not defined", ErrTemplate, name)
	}

	var buf bytes.Buffer
	if err := t.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("%w: execute %q: %v", ErrTemplate, name, err)
	}
	return buf.String(), nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"colorClass": colorClass,
	}
}

// colorClass buckets a percentage string like "83.3%" for styling.
// Unparseable values get "unknown".
func colorClass(pct string) string {
	value, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(pct), "%"), 64)
	if err != nil {
		return "unknown"
	}
	switch {
	case value >= 70:
		return "excellent"
	case value >= 50:
		return "good"
	case value >= 30:
		return "moderate"
	case value >= 15:
		return "poor"
	default:
		return "critical"
	}
}
