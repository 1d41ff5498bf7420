// Package csvio reads and writes the CSV files exchanged with spreadsheet users.
// Input may carry a UTF-8 BOM or be Windows-1252 encoded (Excel "CSV" exports).
package csvio

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

var (
	ErrEmptyFile     = errors.New("file is empty")
	ErrMissingHeader = errors.New("missing header row")

	utf8BOM = []byte{0xEF, 0xBB, 0xBF}
)

// RowError reports a problem on one data row; Row is the 1-based line number (header is line 1).
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

type Reader struct {
	reader    *csv.Reader
	headers   []string
	headerMap map[string]int // {lowered header: index}
	line      int
}

// NewReader reads the whole input, normalizes its encoding to UTF-8 and parses the header row.
func NewReader(r io.Reader) (*Reader, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading file")
	}
	content = bytes.TrimPrefix(content, utf8BOM)
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrEmptyFile
	}
	if !utf8.Valid(content) {
		if content, err = charmap.Windows1252.NewDecoder().Bytes(content); err != nil {
			return nil, errors.Wrap(err, "decoding windows-1252")
		}
	}

	cr := csv.NewReader(bytes.NewReader(content))
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	record, err := cr.Read()
	if err == io.EOF {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}

	rdr := &Reader{reader: cr, headerMap: make(map[string]int, len(record)), line: 1}
	for i, h := range record {
		h = strings.TrimSpace(h)
		rdr.headers = append(rdr.headers, h)
		if h != "" {
			rdr.headerMap[strings.ToLower(h)] = i
		}
	}
	if len(rdr.headerMap) == 0 {
		return nil, ErrMissingHeader
	}
	return rdr, nil
}

func (r *Reader) Headers() []string { return r.headers }

// HasHeader reports whether the column exists, case-insensitively.
func (r *Reader) HasHeader(name string) bool {
	_, ok := r.headerMap[strings.ToLower(name)]
	return ok
}

// Require returns a RowError on the header line for every missing column.
func (r *Reader) Require(names ...string) []RowError {
	var errs []RowError
	for _, name := range names {
		if !r.HasHeader(name) {
			errs = append(errs, RowError{Row: 1, Field: name, Message: "missing column"})
		}
	}
	return errs
}

type Row struct {
	Line   int
	fields []string
	index  map[string]int
}

// Get returns the trimmed value of a column, case-insensitively; "" when absent.
func (r Row) Get(name string) string {
	i, ok := r.index[strings.ToLower(name)]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r Row) IsEmpty() bool {
	for _, f := range r.fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Next returns the next non-empty row, or io.EOF.
func (r *Reader) Next() (Row, error) {
	for {
		fields, err := r.reader.Read()
		if err == io.EOF {
			return Row{}, io.EOF
		}
		r.line++
		if err != nil {
			return Row{}, RowError{Row: r.line, Message: err.Error()}
		}
		row := Row{Line: r.line, fields: fields, index: r.headerMap}
		if !row.IsEmpty() {
			return row, nil
		}
	}
}

type Writer struct {
	cw *csv.Writer
}

// NewWriter writes the header row right away.
func NewWriter(w io.Writer, header ...string) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return nil, err
	}
	return &Writer{cw: cw}, nil
}

func (w *Writer) Write(values ...string) error {
	return w.cw.Write(values)
}

// Flush must be called once all rows are written.
func (w *Writer) Flush() error {
	w.cw.Flush()
	return w.cw.Error()
}
