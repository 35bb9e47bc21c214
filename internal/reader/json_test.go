package reader

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][][2]string
	}{
		{
			name:  "array of objects",
			input: `[{"nome":"Leite","preco":4.5},{"nome":"Pão","preco":"0,75","quantidade":10}]`,
			want: [][][2]string{
				{{"nome", "Leite"}, {"preco", "4.5"}},
				{{"nome", "Pão"}, {"preco", "0,75"}, {"quantidade", "10"}},
			},
		},
		{
			name:  "single object",
			input: `{"nome":"Leite","preco":4.5}`,
			want: [][][2]string{
				{{"nome", "Leite"}, {"preco", "4.5"}},
			},
		},
		{
			name:  "object wrapping an array",
			input: `{"produtos":[{"nome":"Leite","preco":4.5},{"nome":"Pão","preco":"0,75"}]}`,
			want: [][][2]string{
				{{"nome", "Leite"}, {"preco", "4.5"}},
				{{"nome", "Pão"}, {"preco", "0,75"}},
			},
		},
		{
			name:  "wrapped array keeps key order",
			input: `{"items":[{"z_preco":1,"a_nome":"X"}]}`,
			want: [][][2]string{
				{{"z_preco", "1"}, {"a_nome", "X"}},
			},
		},
		{
			name:  "single member array of scalars stays one row",
			input: `{"tags":["a","b"]}`,
			want: [][][2]string{
				{{"tags", `["a","b"]`}},
			},
		},
		{
			name:  "array beside other members stays one row",
			input: `{"nome":"Kit","itens":[{"nome":"A"}]}`,
			want: [][][2]string{
				{{"nome", "Kit"}, {"itens", `[{"nome":"A"}]`}},
			},
		},
		{
			name:  "key order preserved",
			input: `[{"z_preco":1,"a_nome":"X","m_marca":"Y"}]`,
			want: [][][2]string{
				{{"z_preco", "1"}, {"a_nome", "X"}, {"m_marca", "Y"}},
			},
		},
		{
			name:  "null bool and nested values",
			input: `[{"nome":"Café","ean":null,"em_promocao":true,"tags":["a","b"],"dims":{"peso":1}}]`,
			want: [][][2]string{
				{{"nome", "Café"}, {"ean", ""}, {"em_promocao", "true"}, {"tags", `["a","b"]`}, {"dims", `{"peso":1}`}},
			},
		},
		{
			name:  "large numbers exact",
			input: `[{"ean":7891234567890,"preco":1e2}]`,
			want: [][][2]string{
				{{"ean", "7891234567890"}, {"preco", "1e2"}},
			},
		},
		{
			name:  "empty array",
			input: `[]`,
			want:  nil,
		},
		{
			name:  "empty file",
			input: "  \n",
			want:  nil,
		},
		{
			name:  "bom prefix",
			input: "\xEF\xBB\xBF[{\"nome\":\"A\"}]",
			want: [][][2]string{
				{{"nome", "A"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := parseJSON([]byte(tt.input))
			if err != nil {
				t.Fatalf("parseJSON() error = %v", err)
			}
			if len(rows) != len(tt.want) {
				t.Fatalf("len(rows) = %d, want %d", len(rows), len(tt.want))
			}
			for i, row := range rows {
				if row.Row != i+1 {
					t.Errorf("rows[%d].Row = %d, want %d", i, row.Row, i+1)
				}
				assertCells(t, row, tt.want[i])
			}
		})
	}
}

func TestParseJSON_NumbersStayJSONNumber(t *testing.T) {
	rows, err := parseJSON([]byte(`[{"preco":4.50}]`))
	if err != nil {
		t.Fatalf("parseJSON() error = %v", err)
	}
	n, ok := rows[0].Values["preco"].(json.Number)
	if !ok {
		t.Fatalf("preco is %T, want json.Number", rows[0].Values["preco"])
	}
	if n.String() != "4.50" {
		t.Errorf("preco = %q, want %q", n.String(), "4.50")
	}
}

func TestParseJSON_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"syntax error", `[{"nome":"A",}]`},
		{"truncated", `[{"nome":"A"}`},
		{"scalar element", `[{"nome":"A"}, 42]`},
		{"array element", `[["A", 1]]`},
		{"top-level string", `"catalog"`},
		{"trailing data", `[{"nome":"A"}] {"nome":"B"}`},
		{"wrapped syntax error", `{"produtos":[{"nome":"A",}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := parseJSON([]byte(tt.input))
			if rows != nil {
				t.Errorf("parseJSON() rows = %v, want nil", rows)
			}
			var fe *catalog.FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("parseJSON() error = %T %v, want *catalog.FormatError", err, err)
			}
			if fe.Format != string(FormatJSON) {
				t.Errorf("FormatError.Format = %q, want %q", fe.Format, FormatJSON)
			}
		})
	}
}
