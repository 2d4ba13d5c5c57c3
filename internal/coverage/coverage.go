// Package coverage computes length-weighted mean coverage from depth
// streams, the "contig<TAB>position<TAB>depth" output of samtools depth.
package coverage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/synum-dev/synum/internal/errors"
)

// Stat accumulates one contig's coverage.
type Stat struct {
	// Sum is the total depth over all positions.
	Sum int64
	// Length is the largest position seen, the contig length for sorted
	// streams produced with all positions.
	Length int64
}

// Profile holds per-contig statistics reduced over one or more streams.
type Profile map[string]Stat

// Add merges other into p additively.
func (p Profile) Add(other Profile) {
	for contig, s := range other {
		cur := p[contig]
		cur.Sum += s.Sum
		cur.Length += s.Length
		p[contig] = cur
	}
}

// Totals returns the summed depth and length over contigs; a nil set
// includes every contig.
func (p Profile) Totals(contigs ContigSet) (sum, length int64) {
	if contigs == nil {
		for _, s := range p {
			sum += s.Sum
			length += s.Length
		}
		return sum, length
	}
	for c := range contigs {
		s := p[c]
		sum += s.Sum
		length += s.Length
	}
	return sum, length
}

// Mean returns the length-weighted mean coverage over contigs, 0 when no
// position is included.
func (p Profile) Mean(contigs ContigSet) float64 {
	sum, length := p.Totals(contigs)
	if length == 0 {
		return 0
	}
	return float64(sum) / float64(length)
}

// ReadDepth reads one depth stream.
func ReadDepth(r io.Reader) (Profile, error) {
	p := make(Profile)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	var (
		cur     string
		stat    Stat
		started bool
		line    int
	)
	for sc.Scan() {
		line++
		text := sc.Text()
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: expected contig, position and depth", line)
		}
		pos, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad position %q", line, fields[1])
		}
		depth, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad depth %q", line, fields[2])
		}

		if !started || fields[0] != cur {
			if started {
				p.Add(Profile{cur: stat})
			}
			cur, stat, started = fields[0], Stat{}, true
		}
		stat.Sum += depth
		stat.Length = max(stat.Length, pos)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if started {
		p.Add(Profile{cur: stat})
	}
	return p, nil
}

// ReadDepthFile reads the depth stream at path.
func ReadDepthFile(path string) (Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.IO(fmt.Errorf("opening depth file: %w", err), path)
	}
	defer f.Close()
	p, err := ReadDepth(f)
	if err != nil {
		return nil, errors.IO(fmt.Errorf("%s: %w", path, err), path)
	}
	return p, nil
}

// Reducer loads depth streams in parallel.
type Reducer struct {
	Threads int
	Logger  *slog.Logger
	// OnDone, if set, is called after each stream is read.
	OnDone func()
}

// Load reads every path with at most min(Threads, len(paths)) workers and
// reduces the per-stream profiles additively.
func (r *Reducer) Load(ctx context.Context, paths []string) (Profile, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	partials := make([]Profile, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(r.Threads, len(paths))))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := ReadDepthFile(path)
			if err != nil {
				return err
			}
			logger.Debug("read depth file", "path", path, "contigs", len(p))
			partials[i] = p
			if r.OnDone != nil {
				r.OnDone()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := make(Profile)
	for _, p := range partials {
		total.Add(p)
	}
	return total, nil
}
