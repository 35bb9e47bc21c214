package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
	"github.com/JonMunkholm/catalogimport/internal/history"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService(opts Options) *Service {
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	return NewService(opts)
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func readProducts(t *testing.T, path string) []catalog.CanonicalProduct {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var products []catalog.CanonicalProduct
	if err := json.Unmarshal(data, &products); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return products
}

const scenarioA = "Produto,Valor,Estoque\n" +
	"\"Arroz Tio João 5kg\",\"18,90\",100\n" +
	",5.00,10\n" +
	"Feijão Camil,-3,5\n"

func TestConvert_ScenarioA_CSV(t *testing.T) {
	path := writeInput(t, "catalogo.csv", scenarioA)
	out := newTestService(Options{}).Convert(context.Background(), Request{Path: path})

	if out.Status != StatusPartial {
		t.Fatalf("Status = %q, want partial (message %q)", out.Status, out.Message)
	}
	want := Stats{Total: 3, Valid: 1, Inferred: 1, Ignored: 2}
	if out.Stats != want {
		t.Errorf("Stats = %+v, want %+v", out.Stats, want)
	}
	if out.Format != "csv" || out.SourceFile != "catalogo.csv" {
		t.Errorf("Format, SourceFile = %q, %q", out.Format, out.SourceFile)
	}

	if len(out.RowErrors) != 2 {
		t.Fatalf("len(RowErrors) = %d, want 2", len(out.RowErrors))
	}
	if e := out.RowErrors[0]; e.Row != 2 || e.Reason != catalog.ReasonNameMissing {
		t.Errorf("RowErrors[0] = %+v, want row 2 name missing", e)
	}
	if e := out.RowErrors[1]; e.Row != 3 || e.Reason != catalog.ReasonInvalidPrice || e.Value != "-3" {
		t.Errorf("RowErrors[1] = %+v, want row 3 invalid price -3", e)
	}

	if len(out.Products) != 1 {
		t.Fatalf("len(Products) = %d, want 1", len(out.Products))
	}
	p := out.Products[0]
	if p.Nome != "Arroz Tio João 5kg" || p.Preco != 18.90 || p.Quantidade != 100 || p.UnidadeMedida != "KG" {
		t.Errorf("product = %+v", p)
	}

	wantWarning := "inferred fields: categoria, marca, unidade_medida"
	found := false
	for _, w := range out.Warnings {
		if w == wantWarning {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings = %q, want %q", out.Warnings, wantWarning)
	}

	wantPath := filepath.Join(filepath.Dir(path), "catalogo_canonical_20240501T120000.json")
	if out.OutputPath != wantPath {
		t.Errorf("OutputPath = %q, want %q", out.OutputPath, wantPath)
	}
	if got := readProducts(t, out.OutputPath); len(got) != 1 || got[0] != p {
		t.Errorf("output file = %+v, want [%+v]", got, p)
	}
}

func TestConvert_ScenarioB_JSON(t *testing.T) {
	path := writeInput(t, "leite.json", `[{"nome":"Leite","preco":4.5}]`)
	out := newTestService(Options{}).Convert(context.Background(), Request{Path: path})

	if out.Status != StatusSuccess {
		t.Fatalf("Status = %q, want success (message %q)", out.Status, out.Message)
	}
	if out.Stats != (Stats{Total: 1, Valid: 1, Inferred: 1}) {
		t.Errorf("Stats = %+v", out.Stats)
	}
	if len(out.RowErrors) != 0 {
		t.Errorf("RowErrors = %v, want none", out.RowErrors)
	}
	p := out.Products[0]
	if p.Quantidade != 0 || p.Preco != 4.5 || p.Categoria != "Dairy" {
		t.Errorf("product = %+v", p)
	}
}

func TestConvert_ScenarioC_XML(t *testing.T) {
	path := writeInput(t, "produtos.xml", `<?xml version="1.0" encoding="UTF-8"?>
<produtos>
  <produto>
    <nome>Sabonete Dove 90g</nome>
    <preco>3,49</preco>
    <quantidade>24</quantidade>
  </produto>
</produtos>`)
	out := newTestService(Options{}).Convert(context.Background(), Request{Path: path})

	if out.Stats.Total != 1 || out.Stats.Valid != 1 {
		t.Fatalf("Stats = %+v, want one valid row (message %q)", out.Stats, out.Message)
	}
	p := out.Products[0]
	if p.Marca != "Dove" || p.UnidadeMedida != "G" || p.Categoria != "Hygiene" || p.Quantidade != 24 {
		t.Errorf("product = %+v", p)
	}
}

func TestConvert_AllRowsInvalid(t *testing.T) {
	path := writeInput(t, "ruim.csv", "nome,preco\nArroz,abc\n,10\n")
	out := newTestService(Options{}).Convert(context.Background(), Request{Path: path})

	if out.Status != StatusError {
		t.Fatalf("Status = %q, want error", out.Status)
	}
	if out.OutputPath != "" {
		t.Errorf("OutputPath = %q, want none", out.OutputPath)
	}
	if out.Code != "ROW002" {
		t.Errorf("Code = %q, want ROW002", out.Code)
	}
	if out.Stats != (Stats{Total: 2, Ignored: 2}) {
		t.Errorf("Stats = %+v", out.Stats)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("output dir has %d entries, want only the input", len(entries))
	}
}

func TestConvert_FileErrors(t *testing.T) {
	dir := t.TempDir()
	big := writeInput(t, "big.csv", "nome,preco\nArroz,10\n")
	pdf := writeInput(t, "catalogo.pdf", "%PDF-1.4")
	empty := writeInput(t, "vazio.csv", "")
	headerOnly := writeInput(t, "cabecalho.csv", "nome,preco\n")
	broken := writeInput(t, "quebrado.xml", "<produtos><produto>")

	tests := []struct {
		name     string
		path     string
		maxSize  int64
		wantCode string
		wantErr  error
	}{
		{"missing file", filepath.Join(dir, "nope.csv"), 0, "FILE001", catalog.ErrFileNotFound},
		{"directory", dir, 0, "FILE001", catalog.ErrFileNotFound},
		{"too large", big, 5, "FILE002", catalog.ErrFileTooLarge},
		{"empty file", empty, 0, "FILE003", catalog.ErrNoData},
		{"header only", headerOnly, 0, "FILE003", catalog.ErrNoData},
		{"unsupported format", pdf, 0, "FMT001", catalog.ErrUnsupportedFormat},
		{"malformed xml", broken, 0, "FMT002", catalog.ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newTestService(Options{MaxFileSize: tt.maxSize}).Convert(context.Background(), Request{Path: tt.path})

			if out.Status != StatusError {
				t.Fatalf("Status = %q, want error", out.Status)
			}
			if out.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q (message %q)", out.Code, tt.wantCode, out.Message)
			}
			if !errors.Is(out.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", out.Err, tt.wantErr)
			}
			if out.Message == "" {
				t.Error("Message is empty")
			}
			if out.Stats != (Stats{}) {
				t.Errorf("Stats = %+v, want zero", out.Stats)
			}
			if out.OutputPath != "" {
				t.Errorf("OutputPath = %q, want none", out.OutputPath)
			}
		})
	}
}

func TestConvert_StatsInvariant(t *testing.T) {
	inputs := map[string]string{
		"a.csv":  scenarioA,
		"b.json": `[{"nome":"A","preco":1},{"nome":"","preco":1},{"nome":"C","preco":"x"},{"nome":"D","preco":2,"quantidade":-1}]`,
		"c.csv":  "nome;preco;qtd\nA;1;1\nB;2;2\n",
	}

	for name, content := range inputs {
		t.Run(name, func(t *testing.T) {
			out := newTestService(Options{}).Convert(context.Background(), Request{Path: writeInput(t, name, content)})
			s := out.Stats
			if s.Valid+s.Ignored != s.Total {
				t.Errorf("valid %d + ignored %d != total %d", s.Valid, s.Ignored, s.Total)
			}
			if s.Inferred > s.Valid {
				t.Errorf("inferred %d > valid %d", s.Inferred, s.Valid)
			}
			if len(out.Products) != s.Valid {
				t.Errorf("len(Products) = %d, want %d", len(out.Products), s.Valid)
			}
			for _, p := range out.Products {
				if strings.TrimSpace(p.Nome) == "" || p.Preco <= 0 || p.Quantidade < 0 {
					t.Errorf("invalid product %+v", p)
				}
				if n := len(p.CodigoBarras); n != 0 && n != 8 && n != 13 {
					t.Errorf("barcode %q has %d digits", p.CodigoBarras, n)
				}
			}
		})
	}
}

func TestConvert_Idempotent(t *testing.T) {
	path := writeInput(t, "catalogo.csv", scenarioA)
	svc := newTestService(Options{})

	first := svc.Convert(context.Background(), Request{Path: path})
	second := svc.Convert(context.Background(), Request{Path: path})

	if first.OutputPath == second.OutputPath {
		t.Fatalf("second run reused output path %q", first.OutputPath)
	}
	if !strings.HasSuffix(second.OutputPath, "_canonical_20240501T120000_2.json") {
		t.Errorf("second OutputPath = %q, want _2 suffix", second.OutputPath)
	}

	a, err := os.ReadFile(first.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(second.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Errorf("outputs differ:\n%s\n---\n%s", a, b)
	}
	if first.ID == second.ID {
		t.Error("conversions share an ID")
	}
}

func TestConvert_OutputDirAndSourceName(t *testing.T) {
	path := writeInput(t, "3f2a.csv", "nome,preco\nArroz,10\n")
	outDir := filepath.Join(t.TempDir(), "nested", "out")

	out := newTestService(Options{}).Convert(context.Background(), Request{
		Path:       path,
		OutputDir:  outDir,
		SourceName: "Tabela Loja.csv",
	})

	want := filepath.Join(outDir, "Tabela Loja_canonical_20240501T120000.json")
	if out.OutputPath != want {
		t.Errorf("OutputPath = %q, want %q", out.OutputPath, want)
	}
	if out.SourceFile != "Tabela Loja.csv" {
		t.Errorf("SourceFile = %q", out.SourceFile)
	}
}

func TestConvert_MissingEssentialColumns(t *testing.T) {
	path := writeInput(t, "sem_preco.csv", "nome,marca\nArroz,Camil\n")
	out := newTestService(Options{}).Convert(context.Background(), Request{Path: path})

	if out.Status != StatusError {
		t.Errorf("Status = %q, want error", out.Status)
	}
	if len(out.Warnings) == 0 || out.Warnings[0] != "no column recognized as preco" {
		t.Errorf("Warnings = %q", out.Warnings)
	}
}

func TestConvert_RowErrorsBounded(t *testing.T) {
	var b strings.Builder
	b.WriteString("nome,preco\n")
	for i := 0; i < 7; i++ {
		b.WriteString("Arroz,0\n")
	}
	b.WriteString("Feijão,5\n")

	path := writeInput(t, "muitos.csv", b.String())
	out := newTestService(Options{MaxReportedErrors: 3}).Convert(context.Background(), Request{Path: path})

	if out.Stats.Ignored != 7 {
		t.Errorf("Ignored = %d, want 7", out.Stats.Ignored)
	}
	if len(out.RowErrors) != 3 {
		t.Errorf("len(RowErrors) = %d, want 3", len(out.RowErrors))
	}
	found := false
	for _, w := range out.Warnings {
		if w == "4 more row errors not shown" {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings = %q, want truncation notice", out.Warnings)
	}
}

func TestConvert_Cancelled(t *testing.T) {
	path := writeInput(t, "catalogo.csv", scenarioA)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := newTestService(Options{}).Convert(ctx, Request{Path: path})

	if out.Status != StatusError {
		t.Fatalf("Status = %q, want error", out.Status)
	}
	if !errors.Is(out.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", out.Err)
	}
	if out.Code != "CONV001" {
		t.Errorf("Code = %q, want CONV001", out.Code)
	}
	if out.OutputPath != "" {
		t.Errorf("OutputPath = %q, want none", out.OutputPath)
	}
}

// panicOnRow panics for one row and delegates the rest.
type panicOnRow struct {
	row  int
	next *catalog.Converter
}

func (p panicOnRow) Convert(row catalog.RawRow) catalog.Conversion {
	if row.Row == p.row {
		panic("boom")
	}
	return p.next.Convert(row)
}

func TestConvert_RecoversRowPanic(t *testing.T) {
	path := writeInput(t, "catalogo.csv", "nome,preco\nArroz,10\nFeijão,8\nMacarrão,4\n")
	svc := newTestService(Options{})
	svc.newConverter = func(cm catalog.ColumnMap) rowConverter {
		return panicOnRow{row: 2, next: catalog.NewConverter(cm)}
	}

	out := svc.Convert(context.Background(), Request{Path: path})

	if out.Status != StatusPartial {
		t.Fatalf("Status = %q, want partial", out.Status)
	}
	if out.Stats.Valid != 2 || out.Stats.Ignored != 1 {
		t.Errorf("Stats = %+v", out.Stats)
	}
	if len(out.RowErrors) != 1 {
		t.Fatalf("len(RowErrors) = %d, want 1", len(out.RowErrors))
	}
	e := out.RowErrors[0]
	if e.Row != 2 || e.Reason != catalog.ReasonUnexpected || e.Detail != "boom" {
		t.Errorf("RowErrors[0] = %+v", e)
	}
}

type fakeRecorder struct {
	runs []history.Run
	err  error
}

func (f *fakeRecorder) Record(ctx context.Context, run history.Run) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.runs = append(f.runs, run)
	return f.err
}

func TestConvert_RecordsHistory(t *testing.T) {
	rec := &fakeRecorder{}
	path := writeInput(t, "catalogo.csv", scenarioA)

	out := newTestService(Options{Recorder: rec}).Convert(context.Background(), Request{Path: path})

	if len(rec.runs) != 1 {
		t.Fatalf("recorded %d runs, want 1", len(rec.runs))
	}
	run := rec.runs[0]
	if run.ID != out.ID || run.Status != "partial" || run.Format != "csv" {
		t.Errorf("run = %+v", run)
	}
	if run.Total != 3 || run.Valid != 1 || run.Inferred != 1 || run.Ignored != 2 {
		t.Errorf("run counts = %+v", run)
	}
	if run.OutputPath != out.OutputPath || !run.CreatedAt.Equal(fixedNow) {
		t.Errorf("run = %+v", run)
	}
}

func TestConvert_RecorderFailureIgnored(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("database unavailable")}
	path := writeInput(t, "leite.json", `{"nome":"Leite","preco":4.5}`)

	out := newTestService(Options{Recorder: rec}).Convert(context.Background(), Request{Path: path})

	if out.Status != StatusSuccess {
		t.Errorf("Status = %q, want success", out.Status)
	}
}

func TestConvert_RecordsAfterCancellation(t *testing.T) {
	rec := &fakeRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	newTestService(Options{Recorder: rec}).Convert(ctx, Request{Path: writeInput(t, "a.csv", scenarioA)})

	if len(rec.runs) != 1 || rec.runs[0].Status != "error" {
		t.Errorf("runs = %+v, want one error run", rec.runs)
	}
}

func TestConvert_CustomAliases(t *testing.T) {
	path := writeInput(t, "loja.csv", "nome,vlr_unit\nArroz,10\n")

	out := newTestService(Options{}).Convert(context.Background(), Request{Path: path})
	if out.Status != StatusError {
		t.Fatalf("Status = %q, want error without a price alias", out.Status)
	}

	aliases, err := catalog.DefaultAliases().Extend(map[catalog.Field][]string{
		catalog.FieldPreco: {"vlr_unit"},
	})
	if err != nil {
		t.Fatal(err)
	}
	out = newTestService(Options{Aliases: aliases}).Convert(context.Background(), Request{Path: path})
	if out.Status != StatusSuccess || out.Products[0].Preco != 10 {
		t.Errorf("outcome = %+v", out)
	}
}

func TestOutcome_JSON(t *testing.T) {
	out := &Outcome{
		ID:         "id",
		Status:     StatusError,
		Message:    "file not found",
		SourceFile: "a.csv",
		Err:        errors.New("internal detail"),
	}
	data, err := json.Marshal(out)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, absent := range []string{"outputPath", "warnings", "rowErrors", "products", "internal detail"} {
		if strings.Contains(s, absent) {
			t.Errorf("JSON %s should not contain %q", s, absent)
		}
	}
	if !strings.Contains(s, `"stats":{"total":0,"valid":0,"inferred":0,"ignored":0}`) {
		t.Errorf("JSON %s missing zero stats", s)
	}
}
