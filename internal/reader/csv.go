package reader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

// delimiters are the separators tried when sniffing, in tie-break order.
var delimiters = []rune{',', ';', '\t', '|'}

func readCSVFile(path string) ([]catalog.RawRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, openError(FormatCSV, path, err)
	}
	return parseCSV(data)
}

// parseCSV reads delimited text with the header on the first non-blank line.
// Every value stays a string; rows shorter than the header are padded with "".
func parseCSV(data []byte) ([]catalog.RawRow, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, catalog.NewMalformed(string(FormatCSV), err)
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.FieldsPerRecord = -1

	var b tableBuilder
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, catalog.NewMalformed(string(FormatCSV), err)
		}
		line, _ := r.FieldPos(0)
		b.add(record, line)
	}
	return b.rows, nil
}

// sniffDelimiter picks the candidate that occurs most often outside quotes on
// the first non-empty line. Comma wins ties and is the default.
func sniffDelimiter(text []byte) rune {
	line := firstLine(text)

	counts := make(map[rune]int, len(delimiters))
	inQuotes := false
	for _, c := range string(line) {
		if c == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[c]++
		}
	}

	best := delimiters[0]
	for _, d := range delimiters[1:] {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}

func firstLine(text []byte) []byte {
	for len(text) > 0 {
		line := text
		if i := bytes.IndexByte(text, '\n'); i >= 0 {
			line, text = text[:i], text[i+1:]
		} else {
			text = nil
		}
		if len(bytes.TrimSpace(line)) > 0 {
			return line
		}
	}
	return nil
}
