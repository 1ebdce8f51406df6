package report

import "errors"

var (
	// ErrNotFound is returned when the profile or manifest does not exist.
	ErrNotFound = errors.New("input file not found")

	// ErrFormat is returned for a profile line that cannot be split into
	// file, function and percentage, or a manifest without a module path.
	ErrFormat = errors.New("malformed input")

	// ErrTemplate is returned when the HTML template is missing or fails to execute.
	ErrTemplate = errors.New("template error")
)
