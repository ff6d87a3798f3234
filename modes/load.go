package modes

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nasa-jpl/wfc3ir/calib"
)

// the columns a timing table must carry
var requiredColumns = []string{"SUBARRAY", "SAMPSEQ", "NSAMP", "TIME"}

// LoadFile loads a timing table from a CSV file on disk
func LoadFile(path string) (*Table, error) {
	return LoadFromRoot(calib.Root{}, path)
}

// LoadFromRoot loads a timing table named name, resolved against a calibration root
func LoadFromRoot(root calib.Root, name string) (*Table, error) {
	f, err := root.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return load(f, root.Path(name))
}

// Load parses a timing table from r.
//
// The header row must name the SUBARRAY, SAMPSEQ, NSAMP and TIME columns; other
// columns are ignored.  A single annotation line ahead of the header is
// tolerated, as is a units row directly beneath it.  TIME may carry thousands
// separators.  Rows need not be sorted.
func Load(r io.Reader) (*Table, error) {
	return load(r, "")
}

func load(r io.Reader, source string) (*Table, error) {
	rdr := csv.NewReader(r)
	rdr.FieldsPerRecord = -1
	rdr.TrimLeadingSpace = true
	records, err := rdr.ReadAll()
	if err != nil {
		return nil, calib.Invalid(source, "malformed CSV: %v", err)
	}

	hdrIdx, cols, err := findHeader(records)
	if err != nil {
		return nil, &calib.InvalidCalibrationDataError{Source: source, Reason: err.Error()}
	}

	body := records[hdrIdx+1:]
	lineOffset := hdrIdx + 2 // 1-based line numbers
	if len(body) > 0 && isUnitsRow(body[0], cols) {
		body = body[1:]
		lineOffset++
	}

	rows := make([]Row, 0, len(body))
	for i, rec := range body {
		if blank(rec) {
			continue
		}
		row, err := parseRow(rec, cols)
		if err != nil {
			return nil, calib.Invalid(source, "line %d: %v", i+lineOffset, err)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, calib.Invalid(source, "timing table has no rows")
	}
	t, err := newTable(rows)
	if err != nil {
		return nil, calib.Invalid(source, "%v", err)
	}
	return t, nil
}

// findHeader locates the header within the first two records and maps column names to indices
func findHeader(records [][]string) (int, map[string]int, error) {
	for i := 0; i < len(records) && i < 2; i++ {
		cols := map[string]int{}
		for j, name := range records[i] {
			cols[strings.ToUpper(strings.TrimSpace(name))] = j
		}
		if _, ok := cols["SUBARRAY"]; !ok {
			continue
		}
		missing := []string{}
		for _, c := range requiredColumns {
			if _, ok := cols[c]; !ok {
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 {
			return 0, nil, fmt.Errorf("missing required columns %s", strings.Join(missing, ", "))
		}
		return i, cols, nil
	}
	return 0, nil, errors.New("no header row naming " + strings.Join(requiredColumns, ", "))
}

func field(rec []string, cols map[string]int, name string) (string, error) {
	idx := cols[name]
	if idx >= len(rec) {
		return "", fmt.Errorf("missing %s field", name)
	}
	return strings.TrimSpace(rec[idx]), nil
}

// isUnitsRow reports if rec is an annotation row rather than data
func isUnitsRow(rec []string, cols map[string]int) bool {
	s, err := field(rec, cols, "SUBARRAY")
	if err != nil {
		return true
	}
	_, err = strconv.Atoi(s)
	return err != nil
}

func blank(rec []string) bool {
	for _, s := range rec {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}

func parseRow(rec []string, cols map[string]int) (Row, error) {
	var (
		row Row
		s   string
		err error
	)
	if s, err = field(rec, cols, "SUBARRAY"); err != nil {
		return row, err
	}
	if row.Subarray, err = strconv.Atoi(s); err != nil {
		return row, fmt.Errorf("SUBARRAY %q is not an integer", s)
	}
	if s, err = field(rec, cols, "NSAMP"); err != nil {
		return row, err
	}
	if row.NSamp, err = strconv.Atoi(s); err != nil {
		return row, fmt.Errorf("NSAMP %q is not an integer", s)
	}
	if row.SampSeq, err = field(rec, cols, "SAMPSEQ"); err != nil {
		return row, err
	}
	if row.SampSeq == "" {
		return row, errors.New("empty SAMPSEQ")
	}
	if s, err = field(rec, cols, "TIME"); err != nil {
		return row, err
	}
	// thousands separators
	s = strings.ReplaceAll(s, ",", "")
	if row.Time, err = strconv.ParseFloat(s, 64); err != nil {
		return row, fmt.Errorf("TIME %q is not a number", s)
	}
	return row, nil
}
