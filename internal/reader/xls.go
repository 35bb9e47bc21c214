package reader

import (
	"fmt"
	"os"

	"github.com/extrame/xls"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

// readXLSFile reads the first sheet of a legacy BIFF workbook.
func readXLSFile(path string) (rows []catalog.RawRow, err error) {
	if _, err := os.Stat(path); err != nil {
		return nil, openError(FormatXLS, path, err)
	}

	// The BIFF decoder panics on some truncated files.
	defer func() {
		if r := recover(); r != nil {
			rows = nil
			err = catalog.NewMalformed(string(FormatXLS), fmt.Errorf("%v", r))
		}
	}()

	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, openError(FormatXLS, path, err)
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	var b tableBuilder
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		record := make([]string, row.LastCol())
		for c := range record {
			record[c] = row.Col(c)
		}
		b.add(record, i+1)
	}
	return b.rows, nil
}
