// Package reader turns a catalog file into raw rows keyed by the file's own
// header strings.
//
// Readers never normalize values: CSV and spreadsheet cells stay strings,
// JSON numbers stay json.Number, XML leaves stay text. Structural problems
// fail the whole file with a *catalog.FormatError before any row is
// returned.
package reader

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

// Format identifies a supported input format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
)

// extensions maps lower-cased file extensions to formats.
var extensions = map[string]Format{
	".csv":  FormatCSV,
	".txt":  FormatCSV,
	".tsv":  FormatCSV,
	".xlsx": FormatXLSX,
	".xlsm": FormatXLSX,
	".xls":  FormatXLS,
	".json": FormatJSON,
	".xml":  FormatXML,
}

// FormatFor returns the format implied by the extension of path.
func FormatFor(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	f, ok := extensions[ext]
	if !ok {
		return "", catalog.NewUnsupportedFormat(ext)
	}
	return f, nil
}

// Supported reports whether path has a readable extension.
func Supported(path string) bool {
	_, err := FormatFor(path)
	return err == nil
}

// Read parses the file at path into rows. An unsupported extension fails with
// a *catalog.FormatError, a missing file with a *catalog.FileError.
func Read(path string) ([]catalog.RawRow, Format, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, "", err
	}

	var rows []catalog.RawRow
	switch format {
	case FormatCSV:
		rows, err = readCSVFile(path)
	case FormatXLSX:
		rows, err = readXLSXFile(path)
	case FormatXLS:
		rows, err = readXLSFile(path)
	case FormatJSON:
		rows, err = readJSONFile(path)
	case FormatXML:
		rows, err = readXMLFile(path)
	}
	if err != nil {
		return nil, format, err
	}
	return rows, format, nil
}

// openError classifies a failure to open path. Anything that is not a
// filesystem problem means the library rejected the content.
func openError(format Format, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &catalog.FileError{Path: path, Err: catalog.ErrFileNotFound}
	case errors.Is(err, fs.ErrPermission):
		return &catalog.FileError{Path: path, Err: err}
	default:
		return catalog.NewMalformed(string(format), err)
	}
}

// tableBuilder turns positional records (CSV lines, sheet rows) into RawRows.
// The first non-blank record is the header. Header text is kept as authored;
// blank header cells drop their column.
type tableBuilder struct {
	headers []string
	columns []int // Record index for each header
	rows    []catalog.RawRow
}

// add consumes one record. line is its 1-based source line or sheet row.
func (b *tableBuilder) add(record []string, line int) {
	if isBlankRecord(record) {
		return
	}

	if b.headers == nil {
		b.headers = make([]string, 0, len(record))
		for i, h := range record {
			if strings.TrimSpace(h) == "" {
				continue
			}
			b.headers = append(b.headers, h)
			b.columns = append(b.columns, i)
		}
		return
	}

	row := catalog.NewRawRow(len(b.headers))
	row.Row = len(b.rows) + 1
	row.Line = line
	for i, h := range b.headers {
		value := ""
		if col := b.columns[i]; col < len(record) {
			value = record[col]
		}
		row.Set(h, value)
	}
	b.rows = append(b.rows, row)
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
