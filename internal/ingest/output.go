package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

// outputTimeFormat stamps output names in UTC, e.g. 20240501T120000.
const outputTimeFormat = "20060102T150405"

// maxNameAttempts bounds the collision suffixes tried for one output name.
const maxNameAttempts = 1000

// outputBase returns "<stem>_canonical_<stamp>" for source.
func outputBase(source string, at time.Time) string {
	name := filepath.Base(source)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stem = strings.TrimSpace(stem)
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "catalog"
	}
	return stem + "_canonical_" + at.UTC().Format(outputTimeFormat)
}

// encodeProducts renders products as an indented JSON array. HTML characters
// are kept literal so names like "Arroz & Feijão" stay readable.
func encodeProducts(products []catalog.CanonicalProduct) ([]byte, error) {
	if products == nil {
		products = []catalog.CanonicalProduct{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(products); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeOutput writes products to a new file in dir and returns its path.
//
// The final name is reserved with O_EXCL so an existing file, including the
// input, is never overwritten; a name already taken gets a "_2", "_3", ...
// suffix. Content goes to a temp file first and is renamed over the
// reservation, so readers never see a half-written array.
func writeOutput(dir, source string, products []catalog.CanonicalProduct, at time.Time) (string, error) {
	data, err := encodeProducts(products)
	if err != nil {
		return "", fmt.Errorf("encode products: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	base := outputBase(source, at)
	path, err := reserve(dir, base)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, "."+base+"-*.tmp")
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		os.Remove(tmpName)
		os.Remove(path)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return "", fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return "", fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return "", fmt.Errorf("rename to %s: %w", path, err)
	}
	return path, nil
}

// reserve creates an empty file named base.json, or base_N.json when taken.
func reserve(dir, base string) (string, error) {
	for n := 1; n <= maxNameAttempts; n++ {
		name := base + ".json"
		if n > 1 {
			name = fmt.Sprintf("%s_%d.json", base, n)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}
		f.Close()
		return path, nil
	}
	return "", fmt.Errorf("no free output name for %s after %d attempts", base, maxNameAttempts)
}
