package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *Table {
	table := NewTable()
	table.Append("internal/nws/nws.go", Record{"21", "NewClient", "100.0%"})
	table.Append("internal/nws/nws.go", Record{"40", "Forecast", "83.3%"})
	table.Append("internal/nws/nws.go", Record{"77", "parse", "66.7%"})
	table.Append("internal/view/view.go", Record{"12", "Render", "50.0%"})
	return table
}

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	templates, err := LoadTemplates("")
	require.NoError(t, err)

	dir := t.TempDir()
	r := NewRenderer(templates)
	r.MarkdownPath = filepath.Join(dir, "coverage.md")
	r.HTMLPath = filepath.Join(dir, "coverage.html")
	r.Now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local) }
	return r
}

// parseMarkdownRows extracts the three columns of every data row.
func parseMarkdownRows(md string) map[string][]Record {
	rows := make(map[string][]Record)
	var file string
	for _, line := range strings.Split(md, "\n") {
		switch {
		case strings.HasPrefix(line, "### "):
			file = strings.TrimPrefix(line, "### ")
		case strings.HasPrefix(line, "| ") && line != "| Line | Function | Coverage |":
			cells := strings.Split(strings.Trim(line, "|"), "|")
			rows[file] = append(rows[file], Record{
				Line:       strings.TrimSpace(cells[0]),
				Function:   strings.TrimSpace(cells[1]),
				Percentage: strings.TrimSpace(cells[2]),
			})
		}
	}
	return rows
}

func TestMarkdown_Layout(t *testing.T) {
	table := NewTable()
	table.Append("file.go", Record{"10", "DoThing", "75.0%"})

	expected := "## Coverage Report\n" +
		"### file.go\n\n" +
		"| Line | Function | Coverage |\n" +
		"|---|---|---|\n" +
		"| 10 | DoThing | 75.0% |\n" +
		"\n"
	assert.Equal(t, expected, MarkdownReport(table))
}

func TestMarkdown_RoundTrip(t *testing.T) {
	table := sampleTable()
	rows := parseMarkdownRows(MarkdownReport(table))

	require.Len(t, rows, table.Len())
	for _, entry := range table.Entries() {
		assert.Equal(t, entry.Records, rows[entry.File])
	}
}

func TestRender_Markdown(t *testing.T) {
	r := testRenderer(t)
	table := sampleTable()

	out, err := r.Render(table, Markdown)
	require.NoError(t, err)

	written, err := os.ReadFile(r.MarkdownPath)
	require.NoError(t, err)
	assert.Equal(t, out, string(written))
	assert.True(t, strings.HasPrefix(out, MarkdownTitle))
	assert.Contains(t, out, "### internal/view/view.go")
}

func TestRender_MarkdownIdempotent(t *testing.T) {
	r := testRenderer(t)
	table := sampleTable()

	_, err := r.Render(table, Markdown)
	require.NoError(t, err)
	first, err := os.ReadFile(r.MarkdownPath)
	require.NoError(t, err)

	_, err = r.Render(table, Markdown)
	require.NoError(t, err)
	second, err := os.ReadFile(r.MarkdownPath)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRender_StdOutMatchesMarkdownWithoutWriting(t *testing.T) {
	r := testRenderer(t)
	table := sampleTable()

	stdout, err := r.Render(table, StdOut)
	require.NoError(t, err)
	_, err = os.Stat(r.MarkdownPath)
	assert.True(t, errors.Is(err, os.ErrNotExist), "stdout target must not write a file")

	md, err := r.Render(table, Markdown)
	require.NoError(t, err)
	assert.Equal(t, md, stdout)
}

func TestRender_HTML(t *testing.T) {
	r := testRenderer(t)
	table := sampleTable()

	out, err := r.Render(table, HTML)
	require.NoError(t, err)

	var decoded Table
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, table.Entries(), decoded.Entries(), "return value is the unchunked table")

	page, err := os.ReadFile(r.HTMLPath)
	require.NoError(t, err)
	html := string(page)

	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "<main>")
	assert.Contains(t, html, "Generated 2024-03-09 14:05:07")
	// three records in chunks of two means the file header appears twice
	assert.Equal(t, 2, strings.Count(html, "<h2>internal/nws/nws.go</h2>"))
	assert.Equal(t, 1, strings.Count(html, "<h2>internal/view/view.go</h2>"))
	assert.Contains(t, html, `<td class="pct excellent">83.3%</td>`)
	assert.Contains(t, html, `<td class="pct good">50.0%</td>`)
}

func TestRender_HTMLEscapes(t *testing.T) {
	r := testRenderer(t)
	table := NewTable()
	table.Append("a.go", Record{"1", "<script>alert(1)</script>", "10.0%"})

	_, err := r.Render(table, HTML)
	require.NoError(t, err)

	page, err := os.ReadFile(r.HTMLPath)
	require.NoError(t, err)
	assert.NotContains(t, string(page), "<script>")
	assert.Contains(t, string(page), "&lt;script&gt;")
}

func TestRender_HTMLTemplateMissing(t *testing.T) {
	templates, err := ParseTemplates(fstest.MapFS{
		"other.tmpl": {Data: []byte(`{{define "other"}}x{{end}}`)},
	})
	require.NoError(t, err)

	r := testRenderer(t)
	r.Templates = templates

	_, err = r.Render(sampleTable(), HTML)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplate)

	_, statErr := os.Stat(r.HTMLPath)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "no HTML file on template failure")
}

func TestRender_HTMLTemplateExecutionFails(t *testing.T) {
	templates, err := ParseTemplates(fstest.MapFS{
		"coverage.tmpl": {Data: []byte(`{{define "coverage"}}{{.Missing}}{{end}}`)},
	})
	require.NoError(t, err)

	r := testRenderer(t)
	r.Templates = templates

	_, err = r.Render(sampleTable(), HTML)
	assert.ErrorIs(t, err, ErrTemplate)
	_, statErr := os.Stat(r.HTMLPath)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestRender_HTMLWithoutTemplates(t *testing.T) {
	r := testRenderer(t)
	r.Templates = nil

	_, err := r.Render(sampleTable(), HTML)
	assert.ErrorIs(t, err, ErrTemplate)
}

func TestRender_UnknownTarget(t *testing.T) {
	r := testRenderer(t)
	_, err := r.Render(sampleTable(), Target(42))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported target")
}

func TestLoadTemplates_Directory(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "coverage.tmpl", `{{define "coverage"}}{{len .Coverage}} chunks at {{.Timestamp}}{{end}}`)

	templates, err := LoadTemplates(dir)
	require.NoError(t, err)

	out, err := templates.Render(TemplateName, HTMLData{Coverage: ChunkTable(sampleTable(), 2), Timestamp: "now"})
	require.NoError(t, err)
	assert.Equal(t, "3 chunks at now", out)
}

func TestLoadTemplates_MissingDirectory(t *testing.T) {
	_, err := LoadTemplates(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, ErrTemplate)
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{"md", Markdown, false},
		{"markdown", Markdown, false},
		{"HTML", HTML, false},
		{"stdout", StdOut, false},
		{"pdf", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) Target {
	t.Helper()
	target, err := ParseTarget(s)
	require.NoError(t, err)
	return target
}

func TestColorClass(t *testing.T) {
	assert.Equal(t, "excellent", colorClass("100.0%"))
	assert.Equal(t, "good", colorClass("50.0%"))
	assert.Equal(t, "moderate", colorClass("30.0%"))
	assert.Equal(t, "poor", colorClass("15.0%"))
	assert.Equal(t, "critical", colorClass("0%"))
	assert.Equal(t, "unknown", colorClass("n/a"))
}
