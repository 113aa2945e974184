// Package tabular reads and writes the delimited files consumed by the mlcore
// command line. The first row of a file is a header naming the columns.
package tabular

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/mlcore/pkg/errors"
)

// Table is a delimited file held in memory as strings. Cells are parsed
// lazily so that non-numeric columns survive a read/write round trip.
type Table struct {
	Header  []string
	Records [][]string
}

// Read parses a delimited stream whose first row is the header. Every record
// must have as many cells as the header.
func Read(r io.Reader, delimiter rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewInvalidInputError("tabular.Read", "input has no header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	t := &Table{Header: header}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// csv reports a ragged record as ErrFieldCount
			return nil, errors.NewInvalidInputErrorf("tabular.Read", "line %d: %v", line, err)
		}
		t.Records = append(t.Records, record)
	}
	return t, nil
}

// ReadFile opens path and reads it with Read. A missing file is reported with
// an error matching fs.ErrNotExist.
func ReadFile(path string, delimiter rune) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	t, err := Read(f, delimiter)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return t, nil
}

// Len returns the number of data records.
func (t *Table) Len() int {
	return len(t.Records)
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, error) {
	for i, h := range t.Header {
		if h == name {
			return i, nil
		}
	}
	return -1, errors.NewInvalidInputErrorf("tabular.ColumnIndex", "column %q not found in header %v", name, t.Header)
}

// IsNumeric reports whether every cell of column j parses as a float64.
// A table without records has no numeric columns.
func (t *Table) IsNumeric(j int) bool {
	if len(t.Records) == 0 {
		return false
	}
	for _, record := range t.Records {
		if _, err := parseCell(record[j]); err != nil {
			return false
		}
	}
	return true
}

// NumericColumns returns the indices of the numeric columns in header order,
// leaving out the named columns.
func (t *Table) NumericColumns(exclude ...string) []int {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}
	var cols []int
	for j, name := range t.Header {
		if skip[name] || !t.IsNumeric(j) {
			continue
		}
		cols = append(cols, j)
	}
	return cols
}

// Floats parses the given columns of every record into rows.
func (t *Table) Floats(cols []int) ([][]float64, error) {
	rows := make([][]float64, len(t.Records))
	for i, record := range t.Records {
		row := make([]float64, len(cols))
		for k, j := range cols {
			v, err := parseCell(record[j])
			if err != nil {
				return nil, errors.NewInvalidInputErrorf("tabular.Floats",
					"line %d column %q: %v", i+2, t.Header[j], err)
			}
			row[k] = v
		}
		rows[i] = row
	}
	return rows, nil
}

// Features returns the numeric non-target columns as rows, together with
// their names. target may be empty.
func (t *Table) Features(target string) ([]string, [][]float64, error) {
	if len(t.Records) == 0 {
		return nil, nil, errors.NewInvalidInputError("tabular.Features", "input has no data rows")
	}
	var exclude []string
	if target != "" {
		exclude = append(exclude, target)
	}
	cols := t.NumericColumns(exclude...)
	if len(cols) == 0 {
		return nil, nil, errors.NewInvalidInputError("tabular.Features", "input has no numeric feature columns")
	}
	names := make([]string, len(cols))
	for k, j := range cols {
		names[k] = t.Header[j]
	}
	rows, err := t.Floats(cols)
	if err != nil {
		return nil, nil, err
	}
	return names, rows, nil
}

// Target parses the named column as numeric labels.
func (t *Table) Target(name string) ([]float64, error) {
	j, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	rows, err := t.Floats([]int{j})
	if err != nil {
		return nil, err
	}
	labels := make([]float64, len(rows))
	for i, row := range rows {
		labels[i] = row[0]
	}
	return labels, nil
}

// Write emits the table with an extra column appended. values holds one cell
// per record; an empty column name writes the table unchanged.
func (t *Table) Write(w io.Writer, delimiter rune, column string, values []string) error {
	if column != "" && len(values) != len(t.Records) {
		return errors.NewDimensionError("tabular.Write", len(t.Records), len(values), 0)
	}
	cw := csv.NewWriter(w)
	cw.Comma = delimiter

	header := t.Header
	if column != "" {
		header = append(append([]string(nil), t.Header...), column)
	}
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for i, record := range t.Records {
		if column != "" {
			record = append(append([]string(nil), record...), values[i])
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "writing record %d", i)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile creates path and writes the table to it with Write.
func (t *Table) WriteFile(path string, delimiter rune, column string, values []string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "closing %s", path)
		}
	}()
	return t.Write(f, delimiter, column, values)
}

// FormatFloat renders a value the way labels appear in input files: integral
// values without a fractional part.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatInts renders integer cells.
func FormatInts(values []int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return out
}

// FormatFloats renders float cells with FormatFloat.
func FormatFloats(values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = FormatFloat(v)
	}
	return out
}

func parseCell(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// ParseDelimiter converts a flag value into a single rune. "\t" and "tab" name
// the tab character.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case `\t`, "tab":
		return '\t', nil
	}
	r := []rune(s)
	if len(r) != 1 || r[0] == '"' || r[0] == '\r' || r[0] == '\n' {
		return 0, errors.NewConfigurationError("delimiter", "must be a single character other than a quote or newline", s)
	}
	return r[0], nil
}
