// Package catalog provides the canonical product schema and the per-row
// logic that turns a merchant's raw catalog row into a canonical product.
//
// The package is independent of file formats, storage and transport. Format
// readers produce [RawRow] values; the ingest package drives the batch.
//
// # Canonical Schema
//
// A [CanonicalProduct] has ten fields identified by [Field]:
//
//   - nome, preco: required; preco must be a positive number
//   - quantidade: integer >= 0, defaults to 0 when the file has no value
//   - categoria, marca, unidade_medida: inferred from the name when blank
//   - codigo_barras: 8 or 13 digits, shorter codes zero-padded to 13
//   - descricao, preco_promocional: optional
//   - em_promocao: explicit column, or derived from preco_promocional < preco
//
// # Column Mapping
//
// [BuildColumnMap] resolves headers once per file using an [AliasTable].
// Matching is bidirectional substring containment on lower-cased,
// accent-folded text, so "qtd_estoque" maps to quantidade and "Preço
// Unitário" maps to preco.
//
// # Normalizers
//
// Normalizers never fail. [NormalizeNumber] returns a [Number] with
// Valid=false for unparseable input, mirroring how database nullable types
// separate "absent" from "zero".
//
// # Error Handling
//
// [FileError] and [FormatError] are fatal to a batch. [RowError] is scoped to
// one row and never stops the batch. [MapError] turns any of them into a
// [UserMessage] with a support code:
//
//   - FILE001-FILE004: input file problems
//   - FMT001-FMT002: unsupported or malformed formats
//   - ROW001-ROW004: row validation failures
package catalog
