// SPDX-License-Identifier: MPL-2.0

// Package manifest rewrites version-carrying files. JSON and TOML manifests
// get their top-level version field replaced; any other file type falls back
// to plain-text substitution of the previous version string.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ErrVersionNotFound indicates the file carries no recognizable version to
// replace. Callers treat it as a warning, not a failure.
var ErrVersionNotFound = errors.New("no version found in file")

// Bump rewrites the version in the file at path from prev to next.
func Bump(path, prev, next string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return bumpJSON(path, next)
	case ".toml":
		return bumpTOML(path, next)
	default:
		return bumpText(path, prev, next)
	}
}

// BumpAll bumps every file (relative to root) and returns the paths that
// actually changed. Files without a recognizable version are skipped and
// reported through the skipped list.
func BumpAll(root string, files []string, prev, next string) (bumped, skipped []string, err error) {
	for _, f := range files {
		full := f
		if !filepath.IsAbs(full) {
			full = filepath.Join(root, f)
		}
		bumpErr := Bump(full, prev, next)
		switch {
		case bumpErr == nil:
			bumped = append(bumped, f)
		case errors.Is(bumpErr, ErrVersionNotFound):
			skipped = append(skipped, f)
		default:
			return bumped, skipped, bumpErr
		}
	}
	return bumped, skipped, nil
}

// ReadVersion extracts the version field from a JSON or TOML manifest.
func ReadVersion(path string) (string, error) {
	return readField(path, "version")
}

// ReadName extracts the package name from a JSON or TOML manifest.
func ReadName(path string) (string, error) {
	return readField(path, "name")
}

func readField(path, key string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	var doc map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return "", fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return "", fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return "", fmt.Errorf("%s: not a structured manifest", path)
	}

	v, ok := doc[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%s: no %q field", path, key)
	}
	return v, nil
}

// bumpJSON replaces the top-level "version" field, re-encoding with
// two-space indentation and a trailing newline.
func bumpJSON(path, next string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if _, ok := doc["version"]; !ok {
		return fmt.Errorf("%s: %w", path, ErrVersionNotFound)
	}
	doc["version"] = next

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// bumpTOML replaces the top-level version key.
func bumpTOML(path, next string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if _, ok := doc["version"]; !ok {
		return fmt.Errorf("%s: %w", path, ErrVersionNotFound)
	}
	doc["version"] = next

	out, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return os.WriteFile(path, out, 0o644)
}

// bumpText substitutes every occurrence of prev with next.
func bumpText(path, prev, next string) error {
	if prev == "" {
		return fmt.Errorf("%s: %w", path, ErrVersionNotFound)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if !bytes.Contains(data, []byte(prev)) {
		return fmt.Errorf("%s: %w", path, ErrVersionNotFound)
	}

	out := bytes.ReplaceAll(data, []byte(prev), []byte(next))
	return os.WriteFile(path, out, 0o644)
}
