package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/mod/modfile"
)

// DefaultProfile is where the profile is read from when no path is given.
const DefaultProfile = ".cov/coverage.txt"

// ZeroCoverage is the percentage text of functions that were never run.
// Matching is on the exact text, so "0%" or "0.00%" are kept.
const ZeroCoverage = "0.0%"

// Parser turns `go tool cover -func` output into a Table.
type Parser struct {
	// Module is the module path; only lines starting with it are read.
	Module string
	// Exclude holds doublestar globs matched against the relative filename.
	Exclude []string
}

// ModulePath reads the module path from a go.mod style manifest.
func ModulePath(manifest string) (string, error) {
	data, err := os.ReadFile(manifest)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, manifest)
		}
		return "", fmt.Errorf("read manifest: %w", err)
	}

	module := modfile.ModulePath(data)
	if module == "" {
		return "", fmt.Errorf("%w: no module path in %s", ErrFormat, manifest)
	}
	return module, nil
}

// ParseFile parses the profile at path for module.
func ParseFile(path, module string) (*Table, error) {
	p := &Parser{Module: module}
	return p.ParseFile(path)
}

// ParseFile opens path and parses it.
func (p *Parser) ParseFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open profile: %w", err)
	}
	defer f.Close()

	table, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return table, nil
}

// Parse reads profile lines from r. Lines outside the module are skipped.
// A module line that does not hold exactly three fields aborts the parse.
func (p *Parser) Parse(r io.Reader) (*Table, error) {
	if p.Module == "" {
		return nil, fmt.Errorf("%w: empty module path", ErrFormat)
	}
	for _, pattern := range p.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	table := NewTable()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if !strings.HasPrefix(line, p.Module) {
			continue
		}

		file, rec, err := p.parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if rec.Percentage == ZeroCoverage || p.excluded(file) {
			continue
		}
		table.Append(file, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	return table, nil
}

func (p *Parser) parseLine(line string) (string, Record, error) {
	fields := splitFields(line)
	if len(fields) != 3 {
		return "", Record{}, fmt.Errorf("%w: expected 3 fields, got %d in %q", ErrFormat, len(fields), line)
	}

	pos := strings.Split(fields[0], ":")
	if len(pos) != 3 {
		return "", Record{}, fmt.Errorf("%w: expected path:line:column, got %q", ErrFormat, fields[0])
	}

	// a sibling module sharing the prefix (example.com/modextra) keeps its full path
	file := pos[0]
	if rel, ok := strings.CutPrefix(file, p.Module+"/"); ok {
		file = rel
	}

	return file, Record{
		Line:       strings.TrimSpace(pos[1]),
		Function:   fields[1],
		Percentage: fields[2],
	}, nil
}

func (p *Parser) excluded(file string) bool {
	for _, pattern := range p.Exclude {
		if ok, _ := doublestar.Match(pattern, file); ok {
			return true
		}
	}
	return false
}

// splitFields collapses tab runs and returns the trimmed, non-empty fields.
func splitFields(line string) []string {
	var fields []string
	for _, part := range strings.Split(line, "\t") {
		part = strings.TrimSpace(part)
		if part != "" {
			fields = append(fields, part)
		}
	}
	return fields
}
