package catalog

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// AliasTable maps each canonical field to the header synonyms that identify it.
// A table is immutable once built; Extend returns a new table.
type AliasTable struct {
	aliases map[Field][]string
}

// defaultAliases is the built-in synonym list, Portuguese first then English.
// A header matches a field when it matches any of the field's aliases, so
// order inside a list carries no meaning.
var defaultAliases = map[Field][]string{
	FieldNome: {
		"nome", "produto", "nome_produto", "nome do produto", "name", "product", "product_name", "titulo", "title",
	},
	FieldPreco: {
		"preco", "preco_venda", "preco de venda", "valor", "valor_venda", "price", "pvp",
	},
	FieldQuantidade: {
		"quantidade", "qtd", "qtde", "estoque", "saldo", "quantity", "qty", "stock",
	},
	FieldCategoria: {
		"categoria", "category", "departamento", "secao", "grupo", "department",
	},
	FieldMarca: {
		"marca", "brand", "fabricante", "manufacturer",
	},
	FieldUnidadeMedida: {
		"unidade_medida", "unidade de medida", "unid_medida", "unidade", "medida", "unit_of_measure", "uom",
	},
	FieldCodigoBarras: {
		"codigo_barras", "codigo de barras", "cod_barras", "ean", "gtin", "barcode", "upc",
	},
	FieldDescricao: {
		"descricao", "description", "detalhes", "details",
	},
	FieldPrecoPromocional: {
		"preco_promocional", "preco promocional", "promocional", "valor_promocional", "preco_oferta", "oferta", "promo_price", "sale_price",
	},
	FieldEmPromocao: {
		"em_promocao", "em promocao", "promocao", "on_sale", "is_promo",
	},
}

// DefaultAliases returns the built-in alias table.
func DefaultAliases() AliasTable {
	t := AliasTable{aliases: make(map[Field][]string, len(defaultAliases))}
	for f, list := range defaultAliases {
		t.aliases[f] = append([]string(nil), list...)
	}
	return t
}

// Empty reports whether the table has no aliases at all, as for the zero value.
func (t AliasTable) Empty() bool {
	return len(t.aliases) == 0
}

// Aliases returns a copy of the aliases for f.
func (t AliasTable) Aliases(f Field) []string {
	return append([]string(nil), t.aliases[f]...)
}

// Extend returns a new table with extra aliases appended after the existing
// ones. Aliases are lower-cased and trimmed; blanks and duplicates are dropped.
func (t AliasTable) Extend(extra map[Field][]string) (AliasTable, error) {
	out := AliasTable{aliases: make(map[Field][]string, len(t.aliases))}
	for f, list := range t.aliases {
		out.aliases[f] = append([]string(nil), list...)
	}

	for f, list := range extra {
		if !f.Valid() {
			return AliasTable{}, fmt.Errorf("unknown canonical field %q", f)
		}
		seen := make(map[string]bool, len(out.aliases[f]))
		for _, a := range out.aliases[f] {
			seen[a] = true
		}
		for _, a := range list {
			a = strings.ToLower(strings.TrimSpace(a))
			if a == "" || seen[a] {
				continue
			}
			seen[a] = true
			out.aliases[f] = append(out.aliases[f], a)
		}
	}
	return out, nil
}

// aliasFile is the on-disk shape of an alias extension file:
//
//	[aliases]
//	preco = ["vlr_unit", "preco_loja"]
//	quantidade = ["disponivel"]
type aliasFile struct {
	Aliases map[string][]string `toml:"aliases"`
}

// LoadAliasFile reads a TOML alias extension file and applies it on top of base.
func LoadAliasFile(path string, base AliasTable) (AliasTable, error) {
	var file aliasFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return AliasTable{}, fmt.Errorf("decode alias file %s: %w", path, err)
	}

	extra := make(map[Field][]string, len(file.Aliases))
	for name, list := range file.Aliases {
		extra[Field(strings.ToLower(strings.TrimSpace(name)))] = list
	}

	table, err := base.Extend(extra)
	if err != nil {
		return AliasTable{}, fmt.Errorf("alias file %s: %w", path, err)
	}
	return table, nil
}
