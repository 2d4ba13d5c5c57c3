package staging

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/synum-dev/synum/internal/errors"
)

func TestEnsureEmptyDir(t *testing.T) {
	empty := t.TempDir()
	if err := EnsureEmptyDir(empty); err != nil {
		t.Errorf("EnsureEmptyDir(empty) error = %v", err)
	}

	full := t.TempDir()
	if err := os.WriteFile(filepath.Join(full, "x"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(full, "x")

	for _, path := range []string{full, file, filepath.Join(empty, "absent")} {
		err := EnsureEmptyDir(path)
		if !errors.IsCategory(err, errors.CategoryPreflight) {
			t.Errorf("EnsureEmptyDir(%s) error = %v, want preflight", path, err)
		}
	}
}

func TestEnsureDistinct(t *testing.T) {
	dir := t.TempDir()
	if err := EnsureDistinct(dir, filepath.Join(dir, ".")); err == nil {
		t.Error("EnsureDistinct() should fail for the same directory")
	}
	if err := EnsureDistinct(dir, t.TempDir()); err != nil {
		t.Errorf("EnsureDistinct() error = %v", err)
	}
}

func TestArea_Stage(t *testing.T) {
	src := t.TempDir()
	plain := filepath.Join(src, "bin.1.fa")
	if err := os.WriteFile(plain, []byte(">c1\nACGT\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	area := New(t.TempDir(), WithWorkers(2))
	dir, err := area.Dir(KindBins, "soil asm bin.1")
	if err != nil {
		t.Fatalf("Dir() error = %v", err)
	}
	if filepath.Base(dir) != "soil_asm_bin.1" {
		t.Errorf("Dir() = %q", dir)
	}

	name, err := area.Stage(plain, dir, "")
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if name != "bin.1.fa.gz" {
		t.Errorf("Stage() = %q, want bin.1.fa.gz", name)
	}
	if got := readGzip(t, filepath.Join(dir, name)); got != ">c1\nACGT\n" {
		t.Errorf("staged content = %q", got)
	}

	// Gzipped inputs are copied as-is under the requested name.
	copied, err := area.Stage(filepath.Join(dir, name), dir, "renamed.fa")
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if copied != "renamed.fa.gz" {
		t.Errorf("Stage() = %q, want renamed.fa.gz", copied)
	}
	if got := readGzip(t, filepath.Join(dir, copied)); got != ">c1\nACGT\n" {
		t.Errorf("copied content = %q", got)
	}

	if _, err := area.Stage(filepath.Join(src, "absent.fa"), dir, ""); !errors.IsCategory(err, errors.CategoryIO) {
		t.Errorf("Stage(absent) error = %v, want io", err)
	}

	if err := area.Remove(KindBins); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("Remove() should delete the kind directory")
	}
}

func readGzip(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
