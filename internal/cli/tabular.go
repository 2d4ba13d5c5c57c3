package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
)

// TabReader reads tab-delimited files with optional header support.
type TabReader struct {
	reader     *bufio.Reader
	headers    []string
	delimiter  string
	hasHeader  bool
	headerRead bool
	line       int
}

// NewTabReader creates a new tab-delimited reader.
func NewTabReader(r io.Reader, hasHeader bool) *TabReader {
	return &TabReader{
		reader:    bufio.NewReaderSize(r, 1<<20),
		delimiter: "\t",
		hasHeader: hasHeader,
	}
}

// Headers returns the header row with surrounding whitespace trimmed from
// each cell. If the file has no headers, returns nil.
func (t *TabReader) Headers() ([]string, error) {
	if t.headerRead {
		return t.headers, nil
	}

	t.headerRead = true

	if !t.hasHeader {
		return nil, nil
	}

	line, err := t.readLine()
	if err != nil {
		return nil, err
	}

	t.headers = splitTrim(line, t.delimiter)
	return t.headers, nil
}

// Read reads the next row as a slice of strings.
// Returns io.EOF when there are no more rows.
func (t *TabReader) Read() ([]string, error) {
	if !t.headerRead {
		if _, err := t.Headers(); err != nil {
			return nil, err
		}
	}

	line, err := t.readLine()
	if err != nil {
		return nil, err
	}

	return splitTrim(line, t.delimiter), nil
}

// Line returns the 1-based line number of the last row returned.
func (t *TabReader) Line() int {
	return t.line
}

// FindColumn returns the 0-based index of a header name.
func (t *TabReader) FindColumn(name string) (int, error) {
	for i, h := range t.headers {
		if h == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("column %q not found in headers", name)
}

// HasColumns reports whether every name is present in the header row.
func (t *TabReader) HasColumns(names ...string) bool {
	for _, name := range names {
		if _, err := t.FindColumn(name); err != nil {
			return false
		}
	}
	return true
}

// Records reads all remaining rows keyed by header name. Missing trailing
// cells are returned as empty strings.
func (t *TabReader) Records() ([]map[string]string, error) {
	if _, err := t.Headers(); err != nil {
		return nil, err
	}
	if t.headers == nil {
		return nil, fmt.Errorf("records require a header row")
	}

	var out []map[string]string
	for {
		row, err := t.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		rec := make(map[string]string, len(t.headers))
		for i, h := range t.headers {
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = ""
			}
		}
		out = append(out, rec)
	}
}

// readLine reads a line, skipping empty lines.
func (t *TabReader) readLine() (string, error) {
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil && len(line) == 0 {
			return "", err
		}
		t.line++

		line = strings.TrimRight(line, "\r\n")

		if strings.TrimSpace(line) == "" && err == nil {
			continue
		}
		if strings.TrimSpace(line) == "" {
			return "", io.EOF
		}

		return line, nil
	}
}

func splitTrim(line, delimiter string) []string {
	cells := strings.Split(line, delimiter)
	for i, c := range cells {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

// TabWriter writes tab-delimited output.
type TabWriter struct {
	writer    *bufio.Writer
	delimiter string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		writer:    bufio.NewWriter(w),
		delimiter: "\t",
	}
}

// WriteHeaders writes the header row.
func (t *TabWriter) WriteHeaders(headers []string) error {
	return t.WriteRow(headers...)
}

// WriteRow writes a single row.
func (t *TabWriter) WriteRow(fields ...string) error {
	line := strings.Join(fields, t.delimiter)
	_, err := t.writer.WriteString(line + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (t *TabWriter) Flush() error {
	return t.writer.Flush()
}

// WriteTable writes headers and rows to a new file at path.
func WriteTable(path string, headers []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := NewTabWriter(f)
	if len(headers) > 0 {
		if err := w.WriteHeaders(headers); err != nil {
			_ = f.Close()
			return err
		}
	}
	for _, row := range rows {
		if err := w.WriteRow(row...); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadTable opens path and returns its header-keyed records and header row.
func ReadTable(path string) ([]map[string]string, []string, error) {
	in, err := OpenInput(path)
	if err != nil {
		return nil, nil, err
	}
	defer in.Close()

	r := NewTabReader(in, true)
	headers, err := r.Headers()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("%s: empty table", path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	recs, err := r.Records()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, headers, nil
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error {
	return r.close()
}

// OpenInput opens a file for reading, decompressing transparently when the
// name ends in .gz.
func OpenInput(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := pgzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return readCloser{
		Reader: gz,
		close: func() error {
			_ = gz.Close()
			return f.Close()
		},
	}, nil
}
