package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const envPackOutDir = "WEIGHTDECODE_PACK_OUT_DIR"

// resolvePackOut picks the output path of pack. An explicit --out wins;
// otherwise the values file's base name is reused with a .wdb (container) or
// .bin (plain) extension, inside $WEIGHTDECODE_PACK_OUT_DIR or ./out.
func resolvePackOut(valuesPath, outFlag string, plain bool) (string, bool, error) {
	outFlag = strings.TrimSpace(outFlag)
	if outFlag != "" {
		outPath := filepath.Clean(outFlag)
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return "", false, err
		}
		return outPath, false, nil
	}

	base := filepath.Base(filepath.Clean(valuesPath))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", true, fmt.Errorf("invalid values path: %q", valuesPath)
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	ext := ".wdb"
	if plain {
		ext = ".bin"
	}

	outDir := strings.TrimSpace(os.Getenv(envPackOutDir))
	if outDir == "" {
		outDir = filepath.Join(".", "out")
	}
	outPath := filepath.Join(outDir, base+ext)
	if filepath.Clean(outPath) == filepath.Clean(valuesPath) {
		return "", true, fmt.Errorf("refusing to overwrite input %s; set --out", valuesPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", true, err
	}
	return outPath, true, nil
}
