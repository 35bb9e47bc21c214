package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
	"github.com/JonMunkholm/catalogimport/internal/history"
	"github.com/JonMunkholm/catalogimport/internal/logging"
	"github.com/JonMunkholm/catalogimport/internal/reader"
)

// Defaults applied by NewService to zero Options fields.
const (
	DefaultMaxReportedErrors    = 100
	DefaultContextCheckInterval = 500
)

// RecordTimeout bounds the history write after a conversion.
var RecordTimeout = 5 * time.Second

// Status is the overall result of one conversion.
type Status string

const (
	StatusSuccess Status = "success" // every row converted
	StatusPartial Status = "partial" // some rows converted
	StatusError   Status = "error"   // nothing converted, or the file failed
)

// Stats counts rows. Valid + Ignored == Total.
type Stats struct {
	Total    int `json:"total"`
	Valid    int `json:"valid"`
	Inferred int `json:"inferred"` // valid records with at least one inferred field
	Ignored  int `json:"ignored"`
}

// Outcome is the result of one file conversion.
type Outcome struct {
	ID             string                     `json:"id"`
	Status         Status                     `json:"status"`
	OutputPath     string                     `json:"outputPath,omitempty"`
	Stats          Stats                      `json:"stats"`
	Message        string                     `json:"message"`
	Code           string                     `json:"code,omitempty"`
	Warnings       []string                   `json:"warnings,omitempty"`
	RowErrors      []*catalog.RowError        `json:"rowErrors,omitempty"`
	InferredFields []catalog.Field            `json:"inferredFields,omitempty"`
	Products       []catalog.CanonicalProduct `json:"products,omitempty"`
	SourceFile     string                     `json:"sourceFile"`
	Format         string                     `json:"format,omitempty"`
	DurationMs     int64                      `json:"durationMs"`

	// Err is the fatal error behind a StatusError outcome, if any.
	Err error `json:"-"`
}

// Request names the file to convert.
type Request struct {
	Path       string // Input file
	OutputDir  string // Defaults to the input file's directory
	SourceName string // Name shown to users and used for the output file; defaults to the base of Path
}

func (r Request) sourceName() string {
	if r.SourceName != "" {
		return filepath.Base(r.SourceName)
	}
	return filepath.Base(r.Path)
}

func (r Request) outputDir() string {
	if r.OutputDir != "" {
		return r.OutputDir
	}
	return filepath.Dir(r.Path)
}

// Recorder stores a summary of each conversion. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, run history.Run) error
}

// Options configures a Service.
type Options struct {
	Aliases              catalog.AliasTable // Defaults to catalog.DefaultAliases()
	MaxFileSize          int64              // 0 disables the size check
	MaxReportedErrors    int                // Row errors kept in an Outcome
	ContextCheckInterval int                // Rows between cancellation checks
	Recorder             Recorder           // Optional
	Metrics              *Metrics           // Optional
	Now                  func() time.Time
}

// rowConverter converts one row. *catalog.Converter implements it.
type rowConverter interface {
	Convert(row catalog.RawRow) catalog.Conversion
}

// Service runs file conversions. It is safe for concurrent use; each call to
// Convert owns its rows, column map and converter.
type Service struct {
	aliases    catalog.AliasTable
	maxSize    int64
	maxErrors  int
	checkEvery int
	recorder   Recorder
	metrics    *Metrics
	now        func() time.Time

	newConverter func(catalog.ColumnMap) rowConverter
}

// NewService creates a Service from opts.
func NewService(opts Options) *Service {
	s := &Service{
		aliases:    opts.Aliases,
		maxSize:    opts.MaxFileSize,
		maxErrors:  opts.MaxReportedErrors,
		checkEvery: opts.ContextCheckInterval,
		recorder:   opts.Recorder,
		metrics:    opts.Metrics,
		now:        opts.Now,
		newConverter: func(cm catalog.ColumnMap) rowConverter {
			return catalog.NewConverter(cm)
		},
	}
	if s.aliases.Empty() {
		s.aliases = catalog.DefaultAliases()
	}
	if s.maxErrors <= 0 {
		s.maxErrors = DefaultMaxReportedErrors
	}
	if s.checkEvery <= 0 {
		s.checkEvery = DefaultContextCheckInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Convert reads the file named by req, converts every row and writes the
// valid products as a JSON array next to the input or into req.OutputDir.
//
// Convert never returns an error: file-level failures produce an Outcome with
// StatusError, row-level failures are listed in Outcome.RowErrors.
func (s *Service) Convert(ctx context.Context, req Request) *Outcome {
	start := s.now()
	out := &Outcome{
		ID:         uuid.NewString(),
		SourceFile: req.sourceName(),
	}
	logger := logging.ForConversion(ctx, out.ID, out.SourceFile)
	logger.Info("conversion started", "path", req.Path)

	fieldCounts, err := s.run(ctx, req, out, logger)
	if err != nil {
		out.Status = StatusError
		out.Message = err.Error()
		out.Code = catalog.MapError(err).Code
		out.Err = err
	}
	out.DurationMs = s.now().Sub(start).Milliseconds()

	s.metrics.observe(out, fieldCounts)
	s.record(ctx, out, logger)

	attrs := []any{
		"status", out.Status,
		"total", out.Stats.Total,
		"valid", out.Stats.Valid,
		"ignored", out.Stats.Ignored,
		"duration_ms", out.DurationMs,
	}
	if out.Status == StatusError {
		logger.Warn("conversion failed", append(attrs, "error", out.Message)...)
	} else {
		logger.Info("conversion finished", append(attrs, "output", out.OutputPath)...)
	}
	return out
}

// run fills out and returns how many records had each field inferred.
// A non-nil error is fatal to the whole file.
func (s *Service) run(ctx context.Context, req Request, out *Outcome, logger *slog.Logger) (map[string]int, error) {
	if err := s.checkInput(req.Path); err != nil {
		return nil, err
	}

	rows, format, err := reader.Read(req.Path)
	out.Format = string(format)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &catalog.FileError{Path: req.Path, Err: catalog.ErrNoData}
	}

	columns := catalog.BuildColumnMap(rows[0].Headers, s.aliases)
	for _, f := range columns.Missing(catalog.EssentialFields...) {
		out.Warnings = append(out.Warnings, fmt.Sprintf("no column recognized as %s", f))
	}
	logger.Debug("columns mapped", "rows", len(rows), "mapped", len(columns))

	conv := s.newConverter(columns)
	inferred := make(catalog.InferredFieldSet)
	fieldCounts := make(map[string]int)
	products := make([]catalog.CanonicalProduct, 0, len(rows))
	dropped := 0

	for i, row := range rows {
		if i%s.checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return fieldCounts, fmt.Errorf("conversion cancelled: %w", err)
			}
		}

		out.Stats.Total++
		c := convertRow(conv, row)
		if !c.OK() {
			out.Stats.Ignored++
			for _, rowErr := range c.Errors {
				logger.Debug("row rejected", "row", rowErr.Row, "line", rowErr.Line, "reason", rowErr.Reason, "value", rowErr.Value)
				if len(out.RowErrors) < s.maxErrors {
					out.RowErrors = append(out.RowErrors, rowErr)
				} else {
					dropped++
				}
			}
			continue
		}

		out.Stats.Valid++
		products = append(products, *c.Product)
		if fields := c.Inferred.List(); len(fields) > 0 {
			out.Stats.Inferred++
			for _, f := range fields {
				inferred.Add(f)
				fieldCounts[string(f)]++
			}
		}
	}

	if dropped > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%d more row errors not shown", dropped))
	}
	if fields := inferred.List(); len(fields) > 0 {
		out.InferredFields = fields
		out.Warnings = append(out.Warnings, "inferred fields: "+catalog.JoinFields(fields))
	}
	out.Products = products

	switch {
	case out.Stats.Valid == out.Stats.Total:
		out.Status = StatusSuccess
		out.Message = fmt.Sprintf("converted %d products", out.Stats.Valid)
	case out.Stats.Valid > 0:
		out.Status = StatusPartial
		out.Message = fmt.Sprintf("converted %d of %d rows, %d ignored", out.Stats.Valid, out.Stats.Total, out.Stats.Ignored)
	default:
		out.Status = StatusError
		out.Message = fmt.Sprintf("no valid products in %d rows", out.Stats.Total)
		if len(out.RowErrors) > 0 {
			out.Code = catalog.MapError(out.RowErrors[0]).Code
		}
		return fieldCounts, nil
	}

	path, err := writeOutput(req.outputDir(), req.sourceName(), products, s.now())
	if err != nil {
		return fieldCounts, fmt.Errorf("write output: %w", err)
	}
	out.OutputPath = path
	return fieldCounts, nil
}

// checkInput rejects missing, directory and oversized inputs before any
// reader opens them.
func (s *Service) checkInput(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &catalog.FileError{Path: path, Err: catalog.ErrFileNotFound}
	case err != nil:
		return &catalog.FileError{Path: path, Err: err}
	case info.IsDir():
		return &catalog.FileError{Path: path, Err: fmt.Errorf("%w (path is a directory)", catalog.ErrFileNotFound)}
	case s.maxSize > 0 && info.Size() > s.maxSize:
		return &catalog.FileError{
			Path: path,
			Err:  fmt.Errorf("%w: %d bytes exceeds limit of %d", catalog.ErrFileTooLarge, info.Size(), s.maxSize),
		}
	}
	return nil
}

// convertRow isolates one row: a panic inside the converter becomes a row
// error instead of aborting the file.
func convertRow(conv rowConverter, row catalog.RawRow) (c catalog.Conversion) {
	unexpected := func(detail string) catalog.Conversion {
		return catalog.Conversion{Errors: []*catalog.RowError{{
			Row:    row.Row,
			Line:   row.Line,
			Reason: catalog.ReasonUnexpected,
			Detail: detail,
		}}}
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic converting row", "row", row.Row, "panic", r)
			c = unexpected(fmt.Sprint(r))
		}
	}()

	c = conv.Convert(row)
	if c.Product == nil && len(c.Errors) == 0 {
		return unexpected("converter returned no result")
	}
	return c
}

// record stores the run summary. Failures are logged and never change the
// outcome.
func (s *Service) record(ctx context.Context, out *Outcome, logger *slog.Logger) {
	if s.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RecordTimeout)
	defer cancel()

	err := s.recorder.Record(ctx, history.Run{
		ID:         out.ID,
		SourceFile: out.SourceFile,
		Format:     out.Format,
		Status:     string(out.Status),
		Total:      out.Stats.Total,
		Valid:      out.Stats.Valid,
		Inferred:   out.Stats.Inferred,
		Ignored:    out.Stats.Ignored,
		OutputPath: out.OutputPath,
		Message:    out.Message,
		DurationMs: out.DurationMs,
		CreatedAt:  s.now(),
	})
	if err != nil {
		logger.Error("failed to record conversion", "error", err)
	}
}
