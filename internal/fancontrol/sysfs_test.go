package fancontrol

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteSysfs_DoesNotTruncate(t *testing.T) {
	p := filepath.Join(t.TempDir(), "attr")
	if err := os.WriteFile(p, []byte("0000\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := writeSysfs(p, "12"); err != nil {
		t.Fatalf("writeSysfs: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(b) != "1200\n" {
		t.Fatalf("contents=%q want %q", b, "1200\n")
	}
}

func TestReadInt(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "npwm")
	if err := os.WriteFile(p, []byte(" 2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	n, err := readInt(p)
	if err != nil || n != 2 {
		t.Fatalf("n=%d err=%v want 2", n, err)
	}

	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, []byte("\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := readInt(empty); err == nil {
		t.Fatalf("expected error for empty file")
	}
}
