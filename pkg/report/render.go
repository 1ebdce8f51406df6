package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Target selects what Render produces and where it is written.
type Target int

const (
	// Markdown writes the Markdown report to disk and returns it.
	Markdown Target = iota
	// HTML writes the chunked HTML report to disk and returns the table as JSON.
	HTML
	// StdOut returns the Markdown report without writing anything.
	StdOut
)

func (t Target) String() string {
	switch t {
	case Markdown:
		return "md"
	case HTML:
		return "html"
	case StdOut:
		return "stdout"
	default:
		return fmt.Sprintf("Target(%d)", int(t))
	}
}

// ParseTarget converts "md", "html" or "stdout" into a Target.
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "md", "markdown":
		return Markdown, nil
	case "html":
		return HTML, nil
	case "stdout":
		return StdOut, nil
	default:
		return 0, fmt.Errorf("invalid target: %s (valid: md, html, stdout)", s)
	}
}

const (
	// DefaultMarkdownPath is where the Markdown target writes.
	DefaultMarkdownPath = "coverage.md"
	// DefaultHTMLPath is where the HTML target writes.
	DefaultHTMLPath = "coverage.html"
	// TimestampLayout formats the generation time shown in the HTML report.
	TimestampLayout = "2006-01-02 15:04:05"
)

// HTMLData is passed to the coverage template.
type HTMLData struct {
	Coverage  []Chunk
	Timestamp string
}

// Renderer serializes a Table into one of the report targets.
type Renderer struct {
	MarkdownPath string
	HTMLPath     string
	ChunkSize    int
	Templates    TemplateRenderer
	// Now supplies the HTML timestamp; time.Now when nil.
	Now func() time.Time
}

// NewRenderer returns a renderer with the default output paths and chunk size.
func NewRenderer(templates TemplateRenderer) *Renderer {
	return &Renderer{
		MarkdownPath: DefaultMarkdownPath,
		HTMLPath:     DefaultHTMLPath,
		ChunkSize:    DefaultChunkSize,
		Templates:    templates,
	}
}

// Render produces the report for target. Markdown and StdOut return the
// Markdown text; only Markdown writes it. HTML writes the rendered page and
// returns the unchunked table as JSON.
func (r *Renderer) Render(table *Table, target Target) (string, error) {
	switch target {
	case Markdown:
		text := MarkdownReport(table)
		if err := writeFile(r.MarkdownPath, text); err != nil {
			return "", fmt.Errorf("write markdown report: %w", err)
		}
		return text, nil
	case StdOut:
		return MarkdownReport(table), nil
	case HTML:
		if err := r.renderHTML(table); err != nil {
			return "", err
		}
		out, err := table.JSON()
		if err != nil {
			return "", fmt.Errorf("encode coverage json: %w", err)
		}
		return out, nil
	default:
		return "", fmt.Errorf("unsupported target: %s", target)
	}
}

// renderHTML executes the template before touching the output file, so a
// template failure leaves no HTML behind.
func (r *Renderer) renderHTML(table *Table) error {
	if r.Templates == nil {
		return fmt.Errorf("%w: no templates configured", ErrTemplate)
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	data := HTMLData{
		Coverage:  ChunkTable(table, r.ChunkSize),
		Timestamp: now().Local().Format(TimestampLayout),
	}

	page, err := r.Templates.Render(TemplateName, data)
	if err != nil {
		return fmt.Errorf("render html report: %w", err)
	}

	if err := writeFile(r.HTMLPath, page); err != nil {
		return fmt.Errorf("write html report: %w", err)
	}
	return nil
}

func writeFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(content), 0644)
}
