package reader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

func readJSONFile(path string) ([]catalog.RawRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, openError(FormatJSON, path, err)
	}
	return parseJSON(data)
}

// parseJSON accepts a top-level array of objects, an object whose only member
// is such an array ({"produtos": [...]}), or a single object. Object keys keep
// their document order and numbers stay json.Number.
func parseJSON(data []byte) ([]catalog.RawRow, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, catalog.NewMalformed(string(FormatJSON), err)
	}
	return parseJSONText(text)
}

func parseJSONText(text []byte) ([]catalog.RawRow, error) {
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()

	malformed := func(err error) error {
		return catalog.NewMalformed(string(FormatJSON), err)
	}

	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, malformed(err)
	}

	var rows []catalog.RawRow
	switch tok {
	case json.Delim('['):
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, malformed(err)
			}
			if tok != json.Delim('{') {
				return nil, malformed(fmt.Errorf("array element %d is not an object", len(rows)+1))
			}
			row, err := readJSONObject(dec)
			if err != nil {
				return nil, malformed(err)
			}
			row.Row = len(rows) + 1
			rows = append(rows, row)
		}
		if _, err := dec.Token(); err != nil {
			return nil, malformed(err)
		}
	case json.Delim('{'):
		keys, values, err := readJSONMembers(dec)
		if err != nil {
			return nil, malformed(err)
		}
		if len(keys) == 1 {
			if inner, ok := unwrapJSONArray(values[0]); ok {
				rows = inner
				break
			}
		}
		row := catalog.NewRawRow(len(keys))
		for i, key := range keys {
			var value any
			if err := decodeJSONValue(values[i], &value); err != nil {
				return nil, malformed(err)
			}
			row.Set(key, value)
		}
		row.Row = 1
		rows = append(rows, row)
	default:
		return nil, malformed(errors.New("top-level value must be an array or an object"))
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, malformed(errors.New("unexpected data after top-level value"))
	}
	return rows, nil
}

// readJSONObject reads the members of an object whose '{' was already
// consumed, through the closing '}'. Nested values decode to map/slice.
func readJSONObject(dec *json.Decoder) (catalog.RawRow, error) {
	row := catalog.NewRawRow(8)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return row, err
		}
		key, ok := tok.(string)
		if !ok {
			return row, fmt.Errorf("unexpected token %v", tok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return row, err
		}
		row.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return row, err
	}
	return row, nil
}

// readJSONMembers reads the members of an object whose '{' was already
// consumed, keeping each value undecoded.
func readJSONMembers(dec *json.Decoder) ([]string, []json.RawMessage, error) {
	var keys []string
	var values []json.RawMessage
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, raw)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, values, nil
}

// unwrapJSONArray returns the rows of raw when it is an array of objects.
func unwrapJSONArray(raw json.RawMessage) ([]catalog.RawRow, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	rows, err := parseJSONText(trimmed)
	if err != nil {
		return nil, false
	}
	return rows, true
}

func decodeJSONValue(raw json.RawMessage, v *any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
