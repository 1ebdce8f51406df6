package report

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Record is one function entry from a coverage profile.
// Percentage keeps its original text (e.g. "83.3%").
type Record struct {
	Line       string
	Function   string
	Percentage string
}

// MarshalJSON encodes a record as a [line, function, percentage] array.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]string{r.Line, r.Function, r.Percentage})
}

// UnmarshalJSON decodes the array form written by MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields [3]string
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	r.Line, r.Function, r.Percentage = fields[0], fields[1], fields[2]
	return nil
}

// FileCoverage holds the records of a single source file
type FileCoverage struct {
	File    string
	Records []Record
}

// Table maps source filenames to their records. Files keep the order in
// which they were first added, records keep the order they were appended.
type Table struct {
	files []*FileCoverage
	index map[string]*FileCoverage
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{index: make(map[string]*FileCoverage)}
}

// Append adds a record to file, creating the file entry on first use.
func (t *Table) Append(file string, rec Record) {
	fc := t.entry(file)
	fc.Records = append(fc.Records, rec)
}

func (t *Table) entry(file string) *FileCoverage {
	if t.index == nil {
		t.index = make(map[string]*FileCoverage)
	}
	fc, ok := t.index[file]
	if !ok {
		fc = &FileCoverage{File: file}
		t.index[file] = fc
		t.files = append(t.files, fc)
	}
	return fc
}

// Files returns the filenames in insertion order.
func (t *Table) Files() []string {
	names := make([]string, 0, len(t.files))
	for _, fc := range t.files {
		names = append(names, fc.File)
	}
	return names
}

// Records returns the records for file, or nil if the file is unknown.
func (t *Table) Records(file string) []Record {
	if fc, ok := t.index[file]; ok {
		return fc.Records
	}
	return nil
}

// Entries returns every file with its records in insertion order.
func (t *Table) Entries() []FileCoverage {
	entries := make([]FileCoverage, 0, len(t.files))
	for _, fc := range t.files {
		entries = append(entries, *fc)
	}
	return entries
}

// Len returns the number of files
func (t *Table) Len() int {
	return len(t.files)
}

// RecordCount returns the total number of records across all files
func (t *Table) RecordCount() int {
	n := 0
	for _, fc := range t.files {
		n += len(fc.Records)
	}
	return n
}

// MarshalJSON writes the table as an object keyed by filename, preserving
// insertion order.
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fc := range t.files {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(fc.File)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		records := fc.Records
		if records == nil {
			records = []Record{}
		}
		val, err := json.Marshal(records)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the object form written by MarshalJSON, keeping the
// key order found in the document.
func (t *Table) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("coverage table must be a JSON object")
	}

	*t = Table{index: make(map[string]*FileCoverage)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		file, _ := tok.(string)

		var records []Record
		if err := dec.Decode(&records); err != nil {
			return err
		}
		// files with an empty list survive the round trip
		fc := t.entry(file)
		fc.Records = append(fc.Records, records...)
	}

	_, err = dec.Token()
	return err
}

// JSON returns the table as indented JSON (four spaces per level).
func (t *Table) JSON() (string, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return "", err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "    "); err != nil {
		return "", err
	}
	return out.String(), nil
}
