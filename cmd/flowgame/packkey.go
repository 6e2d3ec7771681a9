package main

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/rendis/flowgame/internal/stages"
)

// sha256Hex computes the SHA-256 hex digest of r.
func sha256Hex(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// sha256File computes the SHA-256 hex digest of a file.
func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return sha256Hex(f)
}

// packKey names the stage pack that progress is stored under: the pack name
// when it has one, otherwise a digest of the pack file.
func packKey(catalog *stages.Catalog, path string) string {
	if name := catalog.Name(); name != "" {
		return name
	}
	if path == "" {
		return "builtin"
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return path
	}
	sum, err := sha256File(path)
	if err != nil {
		return path
	}
	return "sha256:" + sum[:12]
}
