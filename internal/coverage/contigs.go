package coverage

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"

	"github.com/synum-dev/synum/internal/bins"
	"github.com/synum-dev/synum/internal/cli"
	"github.com/synum-dev/synum/internal/errors"
)

// ContigSet is a set of contig names.
type ContigSet map[string]struct{}

// NewContigSet returns a set holding names.
func NewContigSet(names ...string) ContigSet {
	s := make(ContigSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// ReadContigs returns the sequence IDs (first word of each header) of a
// FASTA file, gzipped or not.
func ReadContigs(path string) (ContigSet, error) {
	in, err := cli.OpenInput(path)
	if err != nil {
		return nil, errors.IO(fmt.Errorf("opening fasta: %w", err), path)
	}
	defer in.Close()

	sc := seqio.NewScanner(fasta.NewReader(in, linear.NewSeq("", nil, alphabet.DNAredundant)))
	set := make(ContigSet)
	for sc.Next() {
		set[sc.Seq().Name()] = struct{}{}
	}
	if err := sc.Error(); err != nil {
		return nil, errors.IO(fmt.Errorf("reading fasta: %w", err), path)
	}
	return set, nil
}

// Table columns of a per-bin coverage file.
const (
	ColBinID    = "Bin_id"
	ColCoverage = "Coverage"
)

// ReadTable reads a per-bin coverage table keyed by bin name.
func ReadTable(path string) (map[string]float64, error) {
	recs, headers, err := cli.ReadTable(path)
	if err != nil {
		return nil, errors.IO(err, path)
	}
	if !slices.Contains(headers, ColBinID) || !slices.Contains(headers, ColCoverage) {
		return nil, errors.Config("coverage file %s needs columns %s and %s", path, ColBinID, ColCoverage)
	}
	out := make(map[string]float64, len(recs))
	for i, rec := range recs {
		v, err := strconv.ParseFloat(rec[ColCoverage], 64)
		if err != nil {
			return nil, errors.Config("coverage file %s row %d: bad coverage %q", path, i+2, rec[ColCoverage])
		}
		out[bins.Name(rec[ColBinID])] = v
	}
	return out, nil
}
