// Package depth produces per-position depth files from read alignments.
package depth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"golang.org/x/sync/errgroup"

	"github.com/synum-dev/synum/internal/errors"
)

// Extension is appended to an alignment's base name to form its depth file.
const Extension = ".depth"

// Backend converts alignments into depth files.
type Backend interface {
	// Produce writes one depth file per alignment into outDir and returns
	// their paths in input order.
	Produce(ctx context.Context, alignments []string, outDir string) ([]string, error)
}

// skipFlags are the reads excluded from depth, as in samtools depth.
const skipFlags = sam.Unmapped | sam.Secondary | sam.QCFail | sam.Duplicate

// BAMBackend reads coordinate-sorted BAM files and writes every position of
// every reference, zero-depth positions included.
type BAMBackend struct {
	Threads int
	Logger  *slog.Logger
	// OnDone, if set, is called after each alignment is converted.
	OnDone func()
}

// Produce converts alignments with at most min(Threads, len(alignments))
// concurrent workers.
func (b *BAMBackend) Produce(ctx context.Context, alignments []string, outDir string) ([]string, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.IO(fmt.Errorf("creating depth dir: %w", err), outDir)
	}

	out := make([]string, len(alignments))
	for i, a := range alignments {
		out[i] = filepath.Join(outDir, fmt.Sprintf("%d_%s%s", i, strings.TrimSuffix(filepath.Base(a), ".bam"), Extension))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(b.Threads, len(alignments))))
	for i, a := range alignments {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			logger.Info("computing depth", "bam", a, "out", out[i])
			if err := convertFile(a, out[i]); err != nil {
				return err
			}
			if b.OnDone != nil {
				b.OnDone()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func convertFile(in, out string) error {
	f, err := os.Open(in)
	if err != nil {
		return errors.IO(fmt.Errorf("opening alignment: %w", err), in)
	}
	defer f.Close()

	br, err := bam.NewReader(f, 1)
	if err != nil {
		return errors.IO(fmt.Errorf("reading BAM header: %w", err), in)
	}
	defer br.Close()

	w, err := os.Create(out)
	if err != nil {
		return errors.IO(fmt.Errorf("creating depth file: %w", err), out)
	}
	if err := Write(w, br.Header(), br); err != nil {
		_ = w.Close()
		return errors.IO(fmt.Errorf("%s: %w", in, err), out)
	}
	return w.Close()
}

// RecordReader yields alignment records until io.EOF.
type RecordReader interface {
	Read() (*sam.Record, error)
}

// Write computes depth for records sorted by reference and position and
// writes "name<TAB>pos<TAB>depth" lines for every position of every
// reference in header order.
func Write(w io.Writer, h *sam.Header, records RecordReader) error {
	bw := bufio.NewWriterSize(w, 1<<20)
	refs := h.Refs()
	counts := []int32(nil)
	cur := -1

	flush := func(until int) error {
		for cur < until {
			if cur >= 0 {
				if err := writeRef(bw, refs[cur], counts); err != nil {
					return err
				}
			}
			cur++
			if cur < len(refs) {
				counts = make([]int32, refs[cur].Len())
			}
		}
		return nil
	}

	for {
		r, err := records.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if r.Flags&skipFlags != 0 || r.Ref == nil {
			continue
		}
		id := r.Ref.ID()
		if id < cur {
			return fmt.Errorf("alignments are not sorted by coordinate (%s after %s)", r.Ref.Name(), refs[cur].Name())
		}
		if err := flush(id); err != nil {
			return err
		}
		addCoverage(counts, r)
	}
	if err := flush(len(refs)); err != nil {
		return err
	}
	return bw.Flush()
}

// addCoverage counts the reference positions covered by aligned bases.
func addCoverage(counts []int32, r *sam.Record) {
	pos := r.Pos
	for _, op := range r.Cigar {
		n := op.Len()
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			for i := pos; i < pos+n && i < len(counts); i++ {
				if i >= 0 {
					counts[i]++
				}
			}
			pos += n
		case sam.CigarDeletion, sam.CigarSkipped:
			pos += n
		}
	}
}

func writeRef(w *bufio.Writer, ref *sam.Reference, counts []int32) error {
	name := ref.Name()
	buf := make([]byte, 0, len(name)+24)
	for i, c := range counts {
		buf = append(buf[:0], name...)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, int64(i+1), 10)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, int64(c), 10)
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
