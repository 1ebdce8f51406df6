package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModule = "example.com/mod"

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func parseString(t *testing.T, profile string) (*Table, error) {
	t.Helper()
	p := &Parser{Module: testModule}
	return p.Parse(strings.NewReader(profile))
}

func TestParse_SingleLine(t *testing.T) {
	table, err := parseString(t, "example.com/mod/file.go:10:2\tDoThing\t 75.0%\n")
	require.NoError(t, err)

	assert.Equal(t, []string{"file.go"}, table.Files())
	assert.Equal(t, []Record{{Line: "10", Function: "DoThing", Percentage: "75.0%"}}, table.Records("file.go"))
}

func TestParse_GoToolCoverOutput(t *testing.T) {
	profile := strings.Join([]string{
		"example.com/mod/internal/nws/nws.go:21:\t\tNewClient\t\t100.0%",
		"example.com/mod/internal/nws/nws.go:40:\t\tForecast\t\t83.3%",
		"example.com/mod/internal/view/view.go:12:\t\tRender\t\t\t50.0%",
		"example.com/mod/internal/nws/nws.go:77:\t\tparse\t\t\t66.7%",
		"total:\t\t\t\t\t(statements)\t\t72.4%",
		"",
	}, "\n")

	table, err := parseString(t, profile)
	require.NoError(t, err)

	assert.Equal(t, []string{"internal/nws/nws.go", "internal/view/view.go"}, table.Files())
	assert.Equal(t, []Record{
		{Line: "21", Function: "NewClient", Percentage: "100.0%"},
		{Line: "40", Function: "Forecast", Percentage: "83.3%"},
		{Line: "77", Function: "parse", Percentage: "66.7%"},
	}, table.Records("internal/nws/nws.go"))
	assert.Equal(t, 4, table.RecordCount())
}

func TestParse_SkipsIrrelevantLines(t *testing.T) {
	profile := strings.Join([]string{
		"mode: set",
		"",
		"github.com/other/dep/x.go:3:\tHelper\t90.0%",
		"example.com/mod/a.go:5:\tA\t10.0%",
		"   ",
	}, "\n")

	table, err := parseString(t, profile)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go"}, table.Files())
}

func TestParse_FilenameRelativeToModule(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"module file", "example.com/mod/a.go:1:\tA\t50.0%", "a.go"},
		{"nested package", "example.com/mod/internal/x/x.go:1:\tX\t50.0%", "internal/x/x.go"},
		{"sibling module keeps full path", "example.com/modextra/b.go:2:\tB\t60.0%", "example.com/modextra/b.go"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := parseString(t, tt.line+"\n")
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, table.Files())
		})
	}
}

func TestParse_ZeroCoverage(t *testing.T) {
	tests := []struct {
		name    string
		pct     string
		dropped bool
	}{
		{"canonical zero", "0.0%", true},
		{"canonical zero padded", "  0.0%", true},
		{"short zero", "0%", false},
		{"two decimals", "0.00%", false},
		{"non-zero", "0.1%", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := parseString(t, "example.com/mod/a.go:5:\tA\t"+tt.pct+"\n")
			require.NoError(t, err)
			if tt.dropped {
				assert.Equal(t, 0, table.Len())
				return
			}
			require.Len(t, table.Records("a.go"), 1)
			assert.Equal(t, strings.TrimSpace(tt.pct), table.Records("a.go")[0].Percentage)
		})
	}
}

func TestParse_NoZeroRecordsSurvive(t *testing.T) {
	var lines []string
	for i, pct := range []string{"0.0%", "12.5%", "0.0%", "100.0%", "0.0%", "33.3%"} {
		lines = append(lines, "example.com/mod/f.go:"+string(rune('1'+i))+":\tF\t"+pct)
	}

	table, err := parseString(t, strings.Join(lines, "\n"))
	require.NoError(t, err)
	for _, entry := range table.Entries() {
		for _, rec := range entry.Records {
			assert.NotEqual(t, ZeroCoverage, rec.Percentage)
		}
	}
	assert.Equal(t, 3, table.RecordCount())
}

func TestParse_PreservesOrder(t *testing.T) {
	profile := strings.Join([]string{
		"example.com/mod/b.go:1:\tB1\t10.0%",
		"example.com/mod/a.go:1:\tA1\t20.0%",
		"example.com/mod/b.go:9:\tB2\t30.0%",
		"example.com/mod/a.go:3:\tA2\t40.0%",
		"example.com/mod/b.go:4:\tB3\t50.0%",
	}, "\n")

	table, err := parseString(t, profile)
	require.NoError(t, err)

	assert.Equal(t, []string{"b.go", "a.go"}, table.Files())

	var names []string
	for _, rec := range table.Records("b.go") {
		names = append(names, rec.Function)
	}
	assert.Equal(t, []string{"B1", "B2", "B3"}, names)
}

func TestParse_FormatErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"two fields", "example.com/mod/a.go:5:\tA"},
		{"four fields", "example.com/mod/a.go:5:\tA\tB\t10.0%"},
		{"missing column", "example.com/mod/a.go:5\tA\t10.0%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := "example.com/mod/ok.go:1:\tOK\t10.0%\n" + tt.line + "\n"
			table, err := parseString(t, profile)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFormat)
			assert.Contains(t, err.Error(), "line 2")
			assert.Nil(t, table)
		})
	}
}

func TestParse_Exclude(t *testing.T) {
	profile := strings.Join([]string{
		"example.com/mod/cmd/tool/main.go:10:\tmain\t50.0%",
		"example.com/mod/internal/nws/nws.go:21:\tNewClient\t100.0%",
		"example.com/mod/internal/nws/mock_nws.go:5:\tMock\t100.0%",
	}, "\n")

	p := &Parser{Module: testModule, Exclude: []string{"cmd/**", "**/mock_*.go"}}
	table, err := p.Parse(strings.NewReader(profile))
	require.NoError(t, err)
	assert.Equal(t, []string{"internal/nws/nws.go"}, table.Files())
}

func TestParse_InvalidExcludePattern(t *testing.T) {
	p := &Parser{Module: testModule, Exclude: []string{"[unclosed"}}
	_, err := p.Parse(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid exclude pattern")
}

func TestParse_EmptyModule(t *testing.T) {
	p := &Parser{}
	_, err := p.Parse(strings.NewReader("a.go:1:\tA\t10.0%"))
	assert.ErrorIs(t, err, ErrFormat)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, ".cov/coverage.txt", "example.com/mod/file.go:10:2\tDoThing\t 75.0%\n")

	table, err := ParseFile(path, testModule)
	require.NoError(t, err)
	assert.Equal(t, []Record{{Line: "10", Function: "DoThing", Percentage: "75.0%"}}, table.Records("file.go"))
}

func TestParseFile_NotFound(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.txt"), testModule)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestModulePath(t *testing.T) {
	dir := t.TempDir()

	t.Run("module directive", func(t *testing.T) {
		path := writeTestFile(t, dir, "ok/go.mod", "module example.com/mod\n\ngo 1.22\n")
		module, err := ModulePath(path)
		require.NoError(t, err)
		assert.Equal(t, testModule, module)
	})

	t.Run("leading comment", func(t *testing.T) {
		path := writeTestFile(t, dir, "comment/go.mod", "// weather cli\nmodule example.com/mod\n")
		module, err := ModulePath(path)
		require.NoError(t, err)
		assert.Equal(t, testModule, module)
	})

	t.Run("no module directive", func(t *testing.T) {
		path := writeTestFile(t, dir, "bad/go.mod", "go 1.22\n")
		_, err := ModulePath(path)
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("missing manifest", func(t *testing.T) {
		_, err := ModulePath(filepath.Join(dir, "none", "go.mod"))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
