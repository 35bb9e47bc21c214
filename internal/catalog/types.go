package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Field identifies one of the canonical product fields.
type Field string

const (
	FieldNome             Field = "nome"
	FieldPreco            Field = "preco"
	FieldQuantidade       Field = "quantidade"
	FieldCategoria        Field = "categoria"
	FieldMarca            Field = "marca"
	FieldUnidadeMedida    Field = "unidade_medida"
	FieldCodigoBarras     Field = "codigo_barras"
	FieldDescricao        Field = "descricao"
	FieldPrecoPromocional Field = "preco_promocional"
	FieldEmPromocao       Field = "em_promocao"
)

// Fields lists every canonical field in declared order.
var Fields = []Field{
	FieldNome,
	FieldPreco,
	FieldQuantidade,
	FieldCategoria,
	FieldMarca,
	FieldUnidadeMedida,
	FieldCodigoBarras,
	FieldDescricao,
	FieldPrecoPromocional,
	FieldEmPromocao,
}

// EssentialFields are the fields without which a record cannot be built.
var EssentialFields = []Field{FieldNome, FieldPreco}

// Valid reports whether f is one of the canonical fields.
func (f Field) Valid() bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

// RawRow is one input row as produced by a format reader.
// Values are kept exactly as the reader produced them.
type RawRow struct {
	Headers []string       // Header strings in file column order, as authored
	Values  map[string]any // Header -> raw cell value
	Row     int            // 1-based data row number
	Line    int            // 1-based source line, 0 if the format has no lines
}

// NewRawRow creates an empty row with room for n columns.
func NewRawRow(n int) RawRow {
	return RawRow{
		Headers: make([]string, 0, n),
		Values:  make(map[string]any, n),
	}
}

// Set stores a value under header. The first occurrence of a header keeps
// its column position; repeated headers keep the first value.
func (r *RawRow) Set(header string, value any) {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	if _, exists := r.Values[header]; exists {
		return
	}
	r.Headers = append(r.Headers, header)
	r.Values[header] = value
}

// Has reports whether the row carries a column with this header.
func (r RawRow) Has(header string) bool {
	_, ok := r.Values[header]
	return ok
}

// Cell returns the value under header rendered as a string.
// Missing headers and nil values yield "".
func (r RawRow) Cell(header string) string {
	if header == "" {
		return ""
	}
	return CellString(r.Values[header])
}

// CellString renders a raw cell value as text without normalizing it.
func CellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

// ColumnMap maps canonical fields to the raw header chosen for them.
// A field that is absent from the map is unmapped.
type ColumnMap map[Field]string

// Header returns the header mapped to f and whether one was found.
func (m ColumnMap) Header(f Field) (string, bool) {
	h, ok := m[f]
	return h, ok
}

// Missing returns the given fields that have no mapped header.
func (m ColumnMap) Missing(fields ...Field) []Field {
	var missing []Field
	for _, f := range fields {
		if _, ok := m[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// CanonicalProduct is the normalized product record consumed by the platform.
type CanonicalProduct struct {
	Nome             string   `json:"nome"`
	Preco            float64  `json:"preco"`
	Quantidade       int      `json:"quantidade"`
	Categoria        string   `json:"categoria"`
	Marca            string   `json:"marca"`
	UnidadeMedida    string   `json:"unidade_medida"`
	CodigoBarras     string   `json:"codigo_barras"`
	Descricao        string   `json:"descricao"`
	PrecoPromocional *float64 `json:"preco_promocional"`
	EmPromocao       bool     `json:"em_promocao"`
}

// InferredFieldSet records which fields of a record were filled by heuristics.
type InferredFieldSet map[Field]bool

// Add marks f as inferred.
func (s InferredFieldSet) Add(f Field) {
	s[f] = true
}

// Has reports whether f was inferred.
func (s InferredFieldSet) Has(f Field) bool {
	return s[f]
}

// List returns the inferred fields in declared order.
func (s InferredFieldSet) List() []Field {
	out := make([]Field, 0, len(s))
	for _, f := range Fields {
		if s[f] {
			out = append(out, f)
		}
	}
	return out
}

// JoinFields renders fields as a comma-separated list.
func JoinFields(fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}
