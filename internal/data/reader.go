package data

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"hwr-classifier/internal/common"

	"github.com/sjwhitworth/golearn/base"
)

// ErrDataAccess is returned when a dataset cannot be read or parsed.
var ErrDataAccess = errors.New("data access error")

// Read loads the dataset at path. Files ending in .arff are parsed as
// attribute-relation files; anything else is read as CSV.
func Read(path string) (*Dataset, error) {
	if strings.EqualFold(filepath.Ext(path), ".arff") {
		return readARFF(path)
	}
	return readCSV(path)
}

func readCSV(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", ErrDataAccess, path, err)
	}
	defer file.Close()

	ds, err := ParseCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// ParseCSV parses comma-separated rows into a dataset. The first record is
// treated as a header when any of its fields is not a number; otherwise
// attributes are named att1..attN. Empty fields and "?" are missing values.
func ParseCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataAccess, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records", ErrDataAccess)
	}

	width := len(records[0])
	var names []string
	if isHeader(records[0]) {
		names = make([]string, width)
		for i, n := range records[0] {
			names[i] = strings.TrimSpace(n)
		}
		records = records[1:]
	} else {
		names = make([]string, width)
		for i := range names {
			names[i] = "att" + strconv.Itoa(i+1)
		}
	}

	attrs := make([]Attribute, width)
	for i, n := range names {
		attrs[i] = NumericAttribute(n)
	}

	rows := make([][]float64, len(records))
	for r, record := range records {
		row := make([]float64, width)
		for c, field := range record {
			v, err := parseValue(field)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %s: %v", ErrDataAccess, r+1, names[c], err)
			}
			row[c] = v
		}
		rows[r] = row
	}

	ds, err := New(attrs, rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataAccess, err)
	}
	return ds, nil
}

func isHeader(record []string) bool {
	for _, field := range record {
		if _, err := parseValue(field); err != nil {
			return true
		}
	}
	return false
}

func parseValue(field string) (float64, error) {
	field = strings.TrimSpace(field)
	if field == "" || field == common.MissingValue {
		return Missing(), nil
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not numeric", field)
	}
	return v, nil
}

// readARFF delegates parsing to golearn and converts the resulting grid.
// The class attribute golearn assigns is ignored: label handling belongs to
// the normalizer.
func readARFF(path string) (ds *Dataset, err error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", ErrDataAccess, path, err)
	}

	realPath, err := realAttributes(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrDataAccess, path, err)
	}
	defer os.Remove(realPath)

	defer func() {
		if r := recover(); r != nil {
			ds, err = nil, fmt.Errorf("%w: failed to parse %s: %v", ErrDataAccess, path, r)
		}
	}()

	inst, err := base.ParseDenseARFFToInstances(realPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrDataAccess, path, err)
	}

	gridAttrs := inst.AllAttributes()
	attrs := make([]Attribute, len(gridAttrs))
	for i, a := range gridAttrs {
		switch ga := a.(type) {
		case *base.FloatAttribute:
			attrs[i] = NumericAttribute(ga.GetName())
		case *base.CategoricalAttribute:
			attrs[i] = NominalAttribute(ga.GetName(), ga.GetValues())
		default:
			return nil, fmt.Errorf("%w: %s: unsupported attribute type %T", ErrDataAccess, path, a)
		}
	}

	_, numRows := inst.Size()
	rows := make([][]float64, 0, numRows)
	specs := base.ResolveAllAttributes(inst)
	err = inst.MapOverRows(specs, func(vals [][]byte, _ int) (bool, error) {
		row := make([]float64, len(vals))
		for c, raw := range vals {
			switch ga := gridAttrs[c].(type) {
			case *base.FloatAttribute:
				row[c] = ga.GetFloatFromSysVal(raw)
			case *base.CategoricalAttribute:
				idx := attrs[c].CategoryIndex(ga.GetStringFromSysVal(raw))
				if idx < 0 {
					row[c] = Missing()
				} else {
					row[c] = float64(idx)
				}
			}
		}
		rows = append(rows, row)
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDataAccess, path, err)
	}

	ds, err = New(attrs, rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDataAccess, path, err)
	}
	return ds, nil
}

// realAttributes copies the ARFF file at path to a temporary file with every
// numeric or integer attribute declared as real, the only numeric type
// golearn parses. The caller removes the returned file.
func realAttributes(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.CreateTemp("", "hwr-*.arff")
	if err != nil {
		return "", err
	}
	if err := rewriteARFFHeader(bufio.NewReader(in), out); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}

// rewriteARFFHeader copies r to w, rewriting attribute declarations up to
// the @data line. The data section is copied unchanged.
func rewriteARFFHeader(r *bufio.Reader, w io.Writer) error {
	for {
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 3 && strings.EqualFold(fields[0], "@attribute") {
			switch strings.ToLower(fields[2]) {
			case "numeric", "integer":
				line = fields[0] + " " + fields[1] + " real\n"
			}
		}
		if _, werr := io.WriteString(w, line); werr != nil {
			return werr
		}

		if err == io.EOF {
			return nil
		}
		if len(fields) > 0 && strings.EqualFold(fields[0], "@data") {
			_, err := io.Copy(w, r)
			return err
		}
	}
}
