// Package staging prepares per-artifact directories for the CLI submitter.
//
// Each artifact gets its own directory under the staging root holding the
// gzipped data files and the manifest; the submitter's output tree lives in
// an "out" subdirectory of the same directory.
package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/pgzip"

	"github.com/synum-dev/synum/internal/errors"
)

// Artifact kinds used as staging subdirectories.
const (
	KindReads    = "reads"
	KindAssembly = "assembly"
	KindBins     = "bins"
	KindMAGs     = "mags"
	KindDepth    = "depth"
)

// ManifestName is the manifest file name inside an artifact directory.
const ManifestName = "MANIFEST"

// EnsureEmptyDir fails with a preflight error unless path is an existing,
// empty directory.
func EnsureEmptyDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Preflight("directory %s does not exist", path)
	}
	if !info.IsDir() {
		return errors.Preflight("%s is not a directory", path)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return errors.IO(fmt.Errorf("listing %s: %w", path, err), path)
	}
	if len(entries) > 0 {
		return errors.Newf("directory %s is not empty", path).
			Category(errors.CategoryPreflight).
			Context("entries", len(entries)).
			Build()
	}
	return nil
}

// EnsureDistinct fails unless a and b resolve to different directories.
func EnsureDistinct(a, b string) error {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return errors.Preflight("cannot resolve %s and %s", a, b)
	}
	if absA == absB {
		return errors.Preflight("staging and logging directories must differ (both %s)", absA)
	}
	return nil
}

// Area is a staging root.
type Area struct {
	Root    string
	Workers int
}

// Option configures an Area.
type Option func(*Area)

// WithWorkers sets the gzip concurrency used when compressing inputs.
func WithWorkers(n int) Option {
	return func(a *Area) {
		if n > 0 {
			a.Workers = n
		}
	}
}

// New creates an Area rooted at root.
func New(root string, opts ...Option) *Area {
	a := &Area{Root: root, Workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SafeName converts an artifact name into a directory name.
func SafeName(name string) string {
	r := strings.NewReplacer(" ", "_", "/", "_", string(filepath.Separator), "_")
	return r.Replace(name)
}

// Dir creates and returns the directory for one artifact.
func (a *Area) Dir(kind, name string) (string, error) {
	dir := filepath.Join(a.Root, kind, SafeName(name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.IO(fmt.Errorf("creating staging dir: %w", err), dir)
	}
	return dir, nil
}

// KindDir creates and returns the directory for a kind.
func (a *Area) KindDir(kind string) (string, error) {
	dir := filepath.Join(a.Root, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.IO(fmt.Errorf("creating staging dir: %w", err), dir)
	}
	return dir, nil
}

// Stage places src into dir as a gzipped file and returns its base name.
// Gzipped inputs are copied; anything else is compressed. When name is
// non-empty it replaces the source base name (without the .gz suffix).
func (a *Area) Stage(src, dir, name string) (string, error) {
	base := name
	if base == "" {
		base = strings.TrimSuffix(filepath.Base(src), ".gz")
	}
	dstName := base + ".gz"
	dst := filepath.Join(dir, dstName)

	in, err := os.Open(src)
	if err != nil {
		return "", errors.IO(fmt.Errorf("opening input: %w", err), src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", errors.IO(fmt.Errorf("creating staged file: %w", err), dst)
	}

	if strings.HasSuffix(src, ".gz") {
		_, err = io.Copy(out, in)
	} else {
		err = a.compress(out, in)
	}
	if err != nil {
		_ = out.Close()
		return "", errors.IO(fmt.Errorf("staging %s: %w", src, err), dst)
	}
	if err := out.Close(); err != nil {
		return "", errors.IO(err, dst)
	}
	return dstName, nil
}

func (a *Area) compress(w io.Writer, r io.Reader) error {
	gz, err := pgzip.NewWriterLevel(w, pgzip.DefaultCompression)
	if err != nil {
		return fmt.Errorf("create gzip writer: %w", err)
	}
	if err := gz.SetConcurrency(1<<20, a.Workers); err != nil {
		_ = gz.Close()
		return fmt.Errorf("set gzip concurrency: %w", err)
	}
	if _, err := io.Copy(gz, r); err != nil {
		_ = gz.Close()
		return err
	}
	return gz.Close()
}

// Remove deletes a kind directory and everything under it.
func (a *Area) Remove(kind string) error {
	return os.RemoveAll(filepath.Join(a.Root, kind))
}
