package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/catalogimport/internal/ingest"
)

func runCLI(t *testing.T, args ...string) (int, ingest.Outcome, string) {
	t.Helper()
	return runCLIEnv(t, nil, args...)
}

// runCLIEnv runs the command with env applied on top of a cleared
// CONVERT_ALIAS_FILE.
func runCLIEnv(t *testing.T, env map[string]string, args ...string) (int, ingest.Outcome, string) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	t.Setenv("CONVERT_ALIAS_FILE", "")
	for k, v := range env {
		t.Setenv(k, v)
	}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)

	var out ingest.Outcome
	if stdout.Len() > 0 {
		if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
			t.Fatalf("decode stdout %q: %v", stdout.String(), err)
		}
	}
	return code, out, stderr.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_Success(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	input := writeFile(t, dir, "catalogo.csv", "nome,preco,estoque\nLeite Italac 1L,\"4,99\",12\n")

	code, out, _ := runCLI(t, "-out", outDir, input)

	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if out.Status != ingest.StatusSuccess || out.Stats.Valid != 1 {
		t.Errorf("outcome = %+v", out)
	}
	if filepath.Dir(out.OutputPath) != outDir {
		t.Errorf("OutputPath = %q, want in %s", out.OutputPath, outDir)
	}
	if len(out.Products) != 0 {
		t.Error("products printed without -products")
	}
}

func TestRun_Products(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "catalogo.json", `[{"nome":"Leite","preco":4.5}]`)

	code, out, _ := runCLI(t, "-products", input)

	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if len(out.Products) != 1 || out.Products[0].Nome != "Leite" {
		t.Errorf("Products = %+v", out.Products)
	}
	if filepath.Dir(out.OutputPath) != dir {
		t.Errorf("OutputPath = %q, want next to the input", out.OutputPath)
	}
}

func TestRun_Aliases(t *testing.T) {
	dir := t.TempDir()
	aliases := writeFile(t, dir, "aliases.toml", "[aliases]\npreco = [\"vlr_unit\"]\n")
	input := writeFile(t, dir, "loja.csv", "nome,vlr_unit\nCafé Pilão 500g,\"21,90\"\n")

	code, out, _ := runCLI(t, "-aliases", aliases, input)

	if code != 0 {
		t.Fatalf("exit code = %d (%s)", code, out.Message)
	}
	if out.Stats.Valid != 1 {
		t.Errorf("Stats = %+v", out.Stats)
	}
}

func TestRun_Failures(t *testing.T) {
	dir := t.TempDir()
	invalid := writeFile(t, dir, "ruim.csv", "nome,preco\nArroz,abc\n")
	badAliases := writeFile(t, dir, "bad.toml", "[aliases\n")

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  bool
	}{
		{"no valid rows", []string{invalid}, 1, true},
		{"missing file", []string{filepath.Join(dir, "nope.csv")}, 1, true},
		{"no arguments", nil, 2, false},
		{"two files", []string{invalid, invalid}, 2, false},
		{"unknown flag", []string{"-bogus", invalid}, 2, false},
		{"bad alias file", []string{"-aliases", badAliases, invalid}, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, stderr := runCLI(t, tt.args...)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d (stderr %q)", code, tt.wantCode, stderr)
			}
			if tt.wantOut && out.Status != ingest.StatusError {
				t.Errorf("Status = %q, want error", out.Status)
			}
			if !tt.wantOut && out.ID != "" {
				t.Errorf("unexpected outcome printed: %+v", out)
			}
			if tt.wantCode == 2 && !strings.Contains(stderr, "Usage") && !strings.Contains(stderr, "alias") {
				t.Errorf("stderr = %q, want usage or alias error", stderr)
			}
		})
	}
}

func TestRun_EnvironmentDefaults(t *testing.T) {
	dir := t.TempDir()
	aliases := writeFile(t, dir, "aliases.toml", "[aliases]\npreco = [\"vlr_unit\"]\n")
	input := writeFile(t, dir, "loja.csv", "nome,vlr_unit\nCafé Pilão 500g,\"21,90\"\n")

	tests := []struct {
		name      string
		env       map[string]string
		wantCode  int
		wantValid int
		wantDir   string
	}{
		{"alias file from env", map[string]string{"CONVERT_ALIAS_FILE": aliases}, 0, 1, dir},
		{"output dir env is not a cli default", map[string]string{"CONVERT_ALIAS_FILE": aliases, "CONVERT_OUTPUT_DIR": filepath.Join(dir, "srv")}, 0, 1, dir},
		{"invalid log level", map[string]string{"LOG_LEVEL": "loud"}, 2, 0, ""},
		{"invalid max file size", map[string]string{"CONVERT_MAX_FILE_SIZE": "big"}, 2, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, stderr := runCLIEnv(t, tt.env, input)
			if code != tt.wantCode {
				t.Fatalf("exit code = %d, want %d (stderr %q)", code, tt.wantCode, stderr)
			}
			if tt.wantCode == 2 {
				if out.ID != "" {
					t.Errorf("unexpected outcome printed: %+v", out)
				}
				if !strings.Contains(stderr, "config") {
					t.Errorf("stderr = %q, want config error", stderr)
				}
				return
			}
			if out.Stats.Valid != tt.wantValid {
				t.Errorf("Stats = %+v", out.Stats)
			}
			if filepath.Dir(out.OutputPath) != tt.wantDir {
				t.Errorf("OutputPath = %q, want in %s", out.OutputPath, tt.wantDir)
			}
		})
	}
}
