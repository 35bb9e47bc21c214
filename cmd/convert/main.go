// Command convert converts one catalog file to canonical JSON and prints the
// outcome.
//
//	convert -out DIR [-aliases FILE] [-products] FILE
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
	"github.com/JonMunkholm/catalogimport/internal/config"
	"github.com/JonMunkholm/catalogimport/internal/ingest"
	"github.com/JonMunkholm/catalogimport/internal/logging"
)

func main() {
	// Optional; CONVERT_* and LOG_* settings may live in .env
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args, converts the file and writes the Outcome JSON to stdout.
// Flag defaults come from the environment through config.Load; -out is the
// exception and defaults to the input's directory.
// It returns the process exit code: 0 for success or partial, 1 when the
// conversion failed, 2 for usage or configuration errors.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "convert:", err)
		return 2
	}

	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		outDir   = fs.String("out", "", "Directory for the canonical JSON (default: next to the input)")
		aliases  = fs.String("aliases", cfg.Convert.AliasFile, "TOML file with extra header aliases")
		products = fs.Bool("products", false, "Include the converted products in the printed outcome")
		level    = fs.String("log-level", cfg.Logging.Level, "Log level: debug, info, warn, error")
		format   = fs.String("log-format", cfg.Logging.Format, "Log format: text or json")
	)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: convert [-out DIR] [-aliases FILE] [-products] FILE")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	logger := logging.New(stderr, *level, *format)
	slog.SetDefault(logger)

	table := catalog.DefaultAliases()
	if *aliases != "" {
		if table, err = catalog.LoadAliasFile(*aliases, table); err != nil {
			logger.Error("failed to load alias file", "error", err)
			return 2
		}
	}

	svc := ingest.NewService(ingest.Options{
		Aliases:              table,
		MaxFileSize:          cfg.Convert.MaxFileSize,
		MaxReportedErrors:    cfg.Convert.MaxReportedErrors,
		ContextCheckInterval: cfg.Convert.ContextCheckInterval,
	})
	out := svc.Convert(ctx, ingest.Request{Path: fs.Arg(0), OutputDir: *outDir})
	if !*products {
		out.Products = nil
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		logger.Error("failed to write outcome", "error", err)
		return 1
	}

	if out.Status == ingest.StatusError {
		return 1
	}
	return 0
}
