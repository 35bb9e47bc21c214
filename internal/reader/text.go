package reader

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeText returns data as UTF-8. A UTF-8 BOM is dropped and UTF-16 input
// with a BOM is transcoded. Anything else that is not valid UTF-8 is read as
// Windows-1252, the code page spreadsheet tools use for "CSV" exports.
func decodeText(data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		return nil, err
	}
	if utf8.Valid(out) {
		return out, nil
	}
	return charmap.Windows1252.NewDecoder().Bytes(out)
}
