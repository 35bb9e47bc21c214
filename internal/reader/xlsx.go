package reader

import (
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

// readXLSXFile reads the first worksheet. Cells are read raw so numbers keep
// their stored value instead of the sheet's display format.
func readXLSXFile(path string) ([]catalog.RawRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, openError(FormatXLSX, path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, nil
	}

	records, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, catalog.NewMalformed(string(FormatXLSX), err)
	}

	var b tableBuilder
	for i, record := range records {
		b.add(record, i+1)
	}
	return b.rows, nil
}
