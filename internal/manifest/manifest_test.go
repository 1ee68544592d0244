// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestBump_JSON(t *testing.T) {
	t.Parallel()

	path := write(t, t.TempDir(), "package.json", `{"name": "widget", "version": "1.0.0"}`)
	if err := Bump(path, "1.0.0", "1.0.1"); err != nil {
		t.Fatalf("Bump: %v", err)
	}

	got, err := ReadVersion(path)
	if err != nil {
		t.Fatalf("ReadVersion: %v", err)
	}
	if got != "1.0.1" {
		t.Errorf("version = %q, want 1.0.1", got)
	}
	if !strings.HasSuffix(read(t, path), "\n") {
		t.Error("bumped JSON missing trailing newline")
	}
}

func TestBump_JSONWithoutVersionField(t *testing.T) {
	t.Parallel()

	path := write(t, t.TempDir(), "package.json", `{"name": "widget"}`)
	if err := Bump(path, "1.0.0", "1.0.1"); !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("Bump = %v, want ErrVersionNotFound", err)
	}
}

func TestBump_TOML(t *testing.T) {
	t.Parallel()

	path := write(t, t.TempDir(), "widget.toml", "name = \"widget\"\nversion = \"2.1.0\"\n")
	if err := Bump(path, "2.1.0", "2.2.0"); err != nil {
		t.Fatalf("Bump: %v", err)
	}

	got, err := ReadVersion(path)
	if err != nil {
		t.Fatalf("ReadVersion: %v", err)
	}
	if got != "2.2.0" {
		t.Errorf("version = %q, want 2.2.0", got)
	}
}

func TestReadName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		file    string
		content string
		want    string
		wantErr bool
	}{
		{file: "package.json", content: `{"name": "@acme/widget", "version": "1.0.0"}`, want: "@acme/widget"},
		{file: "widget.toml", content: "name = \"widget\"\nversion = \"1.0.0\"\n", want: "widget"},
		{file: "package.json", content: `{"version": "1.0.0"}`, wantErr: true},
		{file: "version.txt", content: "1.0.0\n", wantErr: true},
	}

	for _, tt := range tests {
		path := write(t, t.TempDir(), tt.file, tt.content)
		got, err := ReadName(path)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ReadName(%s) expected error, got %q", tt.file, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ReadName(%s) error = %v", tt.file, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ReadName(%s) = %q, want %q", tt.file, got, tt.want)
		}
	}
}

func TestBump_PlainText(t *testing.T) {
	t.Parallel()

	path := write(t, t.TempDir(), "version.txt", "release 1.4.0 built from 1.4.0\n")
	if err := Bump(path, "1.4.0", "1.5.0"); err != nil {
		t.Fatalf("Bump: %v", err)
	}
	if got := read(t, path); got != "release 1.5.0 built from 1.5.0\n" {
		t.Errorf("content = %q", got)
	}
}

func TestBump_PlainTextMissingVersion(t *testing.T) {
	t.Parallel()

	path := write(t, t.TempDir(), "notes.txt", "nothing to see\n")
	if err := Bump(path, "1.0.0", "2.0.0"); !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("Bump = %v, want ErrVersionNotFound", err)
	}
}

func TestBumpAll(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, "package.json", `{"version": "1.0.0"}`)
	write(t, dir, "README.md", "install widget@1.0.0\n")
	write(t, dir, "LICENSE", "no versions here\n")

	bumped, skipped, err := BumpAll(dir, []string{"package.json", "README.md", "LICENSE"}, "1.0.0", "1.1.0")
	if err != nil {
		t.Fatalf("BumpAll: %v", err)
	}
	if len(bumped) != 2 {
		t.Errorf("bumped = %v, want 2 entries", bumped)
	}
	if len(skipped) != 1 || skipped[0] != "LICENSE" {
		t.Errorf("skipped = %v, want [LICENSE]", skipped)
	}
}
