package catalog

// convert.go turns one RawRow into a CanonicalProduct.
//
// The checks run in a fixed order and stop at the first fatal problem:
// name, then price, then quantity. Optional fields never reject a row; when
// categoria, marca or unidade_medida are blank they are inferred from the
// normalized name and reported in the row's InferredFieldSet.

// Conversion is the result of converting a single row. Exactly one of
// Product and Errors is set.
type Conversion struct {
	Product  *CanonicalProduct
	Inferred InferredFieldSet
	Errors   []*RowError
}

// OK reports whether the row produced a product.
func (c Conversion) OK() bool {
	return c.Product != nil && len(c.Errors) == 0
}

// Converter converts rows of one file using the file's column map.
type Converter struct {
	columns ColumnMap
}

// NewConverter creates a converter bound to a file's column map.
func NewConverter(columns ColumnMap) *Converter {
	return &Converter{columns: columns}
}

// Columns returns the column map the converter was built with.
func (c *Converter) Columns() ColumnMap {
	return c.columns
}

// cell returns the raw text of f in row, or "" when f is unmapped.
func (c *Converter) cell(row RawRow, f Field) string {
	h, ok := c.columns.Header(f)
	if !ok {
		return ""
	}
	return row.Cell(h)
}

// Convert converts one row. It performs no I/O.
func (c *Converter) Convert(row RawRow) Conversion {
	fail := func(f Field, value string, reason RowReason) Conversion {
		return Conversion{Errors: []*RowError{{
			Row:    row.Row,
			Line:   row.Line,
			Field:  f,
			Value:  value,
			Reason: reason,
		}}}
	}

	nome := NormalizeText(c.cell(row, FieldNome))
	if nome == "" {
		return fail(FieldNome, "", ReasonNameMissing)
	}

	rawPreco := c.cell(row, FieldPreco)
	preco := NormalizeNumber(rawPreco)
	if !preco.Valid || preco.Value <= 0 {
		return fail(FieldPreco, rawPreco, ReasonInvalidPrice)
	}

	quantidade := 0
	if rawQtd := c.cell(row, FieldQuantidade); rawQtd != "" {
		n, ok := NormalizeQuantity(rawQtd)
		if !ok {
			return fail(FieldQuantidade, rawQtd, ReasonInvalidQuantity)
		}
		quantidade = n
	}

	inferred := make(InferredFieldSet)

	categoria := NormalizeText(c.cell(row, FieldCategoria))
	if categoria == "" {
		categoria = InferCategory(nome)
		inferred.Add(FieldCategoria)
	}

	marca := NormalizeText(c.cell(row, FieldMarca))
	if marca == "" {
		marca = InferBrand(nome)
		inferred.Add(FieldMarca)
	}

	unidade := NormalizeText(c.cell(row, FieldUnidadeMedida))
	if unidade == "" {
		unidade = DetectUnit(nome)
		inferred.Add(FieldUnidadeMedida)
	}

	promo := NormalizeNumber(c.cell(row, FieldPrecoPromocional))

	var emPromocao bool
	if _, explicit := c.columns.Header(FieldEmPromocao); explicit {
		emPromocao = NormalizeBoolean(c.cell(row, FieldEmPromocao))
	} else {
		emPromocao = promo.Valid && promo.Value > 0 && promo.Value < preco.Value
	}

	return Conversion{
		Product: &CanonicalProduct{
			Nome:             nome,
			Preco:            preco.Value,
			Quantidade:       quantidade,
			Categoria:        categoria,
			Marca:            marca,
			UnidadeMedida:    unidade,
			CodigoBarras:     NormalizeBarcode(c.cell(row, FieldCodigoBarras)),
			Descricao:        NormalizeText(c.cell(row, FieldDescricao)),
			PrecoPromocional: promo.Ptr(),
			EmPromocao:       emPromocao,
		},
		Inferred: inferred,
	}
}
