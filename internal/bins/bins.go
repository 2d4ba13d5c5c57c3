// Package bins reads a binning result: the bin FASTA directory, the
// completeness/contamination table and the MAG metadata table.
package bins

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/synum-dev/synum/internal/cli"
	"github.com/synum-dev/synum/internal/errors"
	"github.com/synum-dev/synum/internal/vocab"
)

// MaxContamination is the largest contamination percentage accepted.
const MaxContamination = 100.0

var fastaExtensions = []string{".fa", ".fasta", ".fna"}

// Name returns the bin identifier of a file name: the base name without a
// trailing .gz and FASTA extension.
func Name(file string) string {
	name := strings.TrimSuffix(filepath.Base(file), ".gz")
	for _, ext := range fastaExtensions {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

func isFasta(file string) bool {
	name := strings.TrimSuffix(file, ".gz")
	for _, ext := range fastaExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Bin is one bin FASTA with its quality.
type Bin struct {
	Name          string
	Path          string
	Completeness  float64
	Contamination float64
}

// Set is the bins of a directory, ordered by name.
type Set struct {
	Dir   string
	Bins  []Bin
	index map[string]int
}

// Scan lists the bin FASTA files in dir.
func Scan(dir string) (*Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.IO(fmt.Errorf("reading bins directory: %w", err), dir)
	}
	s := &Set{Dir: dir, index: make(map[string]int)}
	for _, e := range entries {
		if e.IsDir() || !isFasta(e.Name()) {
			continue
		}
		name := Name(e.Name())
		if _, dup := s.index[name]; dup {
			return nil, errors.Coherence("bin %s appears twice in %s", name, dir)
		}
		s.index[name] = len(s.Bins)
		s.Bins = append(s.Bins, Bin{Name: name, Path: filepath.Join(dir, e.Name())})
	}
	if len(s.Bins) == 0 {
		return nil, errors.Coherence("no bin FASTA files (%s) in %s", strings.Join(fastaExtensions, ", "), dir)
	}
	slices.SortFunc(s.Bins, func(a, b Bin) int { return strings.Compare(a.Name, b.Name) })
	for i, b := range s.Bins {
		s.index[b.Name] = i
	}
	return s, nil
}

// Get returns the named bin.
func (s *Set) Get(name string) (Bin, bool) {
	i, ok := s.index[name]
	if !ok {
		return Bin{}, false
	}
	return s.Bins[i], true
}

// Names returns the bin names in order.
func (s *Set) Names() []string {
	out := make([]string, len(s.Bins))
	for i, b := range s.Bins {
		out[i] = b.Name
	}
	return out
}

// Quality is one row of a completeness/contamination table.
type Quality struct {
	Completeness  float64
	Contamination float64
}

// Quality table id columns: CheckM and CheckM2 respectively.
const (
	ColCheckMID  = "Bin Id"
	ColCheckM2ID = "Name"
)

// ReadQuality reads a CheckM or CheckM2 quality table keyed by bin name.
func ReadQuality(path string) (map[string]Quality, error) {
	recs, headers, err := cli.ReadTable(path)
	if err != nil {
		return nil, errors.IO(err, path)
	}
	idCol := ""
	for _, h := range headers {
		if h == ColCheckMID || h == ColCheckM2ID {
			idCol = h
			break
		}
	}
	if idCol == "" || !slices.Contains(headers, "Completeness") || !slices.Contains(headers, "Contamination") {
		return nil, errors.Config("quality file %s needs columns %q (or %q), Completeness and Contamination",
			path, ColCheckMID, ColCheckM2ID)
	}

	out := make(map[string]Quality, len(recs))
	for i, rec := range recs {
		name := Name(rec[idCol])
		comp, err1 := strconv.ParseFloat(rec["Completeness"], 64)
		cont, err2 := strconv.ParseFloat(rec["Contamination"], 64)
		if err1 != nil || err2 != nil {
			return nil, errors.Config("quality file %s row %d (%s): non-numeric completeness or contamination", path, i+2, name)
		}
		out[name] = Quality{Completeness: comp, Contamination: cont}
	}
	return out, nil
}

// Check verifies that the bin set, the quality records and the bins named
// by taxonomy sources agree, and that no bin exceeds MaxContamination. On
// success the quality values are copied into the set.
func (s *Set) Check(quality map[string]Quality, taxonomy []string) error {
	var problems []string

	for _, b := range s.Bins {
		q, ok := quality[b.Name]
		if !ok {
			problems = append(problems, fmt.Sprintf("bin %s has no quality record", b.Name))
			continue
		}
		if q.Contamination > MaxContamination {
			problems = append(problems, fmt.Sprintf("bin %s has contamination %.2f > %.0f", b.Name, q.Contamination, MaxContamination))
		}
	}
	for _, name := range sortedKeys(quality) {
		if _, ok := s.index[name]; !ok {
			problems = append(problems, fmt.Sprintf("quality record %s has no bin file", name))
		}
	}

	named := make(map[string]bool, len(taxonomy))
	for _, t := range taxonomy {
		named[t] = true
		if _, ok := s.index[t]; !ok {
			problems = append(problems, fmt.Sprintf("taxonomy entry %s has no bin file", t))
		}
	}
	for _, b := range s.Bins {
		if !named[b.Name] {
			problems = append(problems, fmt.Sprintf("bin %s has no taxonomy entry", b.Name))
		}
	}

	if len(problems) > 0 {
		return errors.Newf("bins in %s are inconsistent: %s", s.Dir, strings.Join(problems, "; ")).
			Category(errors.CategoryCoherence).
			Context("problems", len(problems)).
			Build()
	}
	for i := range s.Bins {
		q := quality[s.Bins[i].Name]
		s.Bins[i].Completeness = q.Completeness
		s.Bins[i].Contamination = q.Contamination
	}
	return nil
}

// MAG metadata columns.
const (
	ColBinID       = "Bin_id"
	ColQuality     = "Quality_category"
	ColFlatfile    = "Flatfile_path"
	ColChromosomes = "Chromosomes_path"
	ColUnlocalised = "Unlocalised_path"
)

// MAG is one row of the MAG metadata table.
type MAG struct {
	Bin         string
	Quality     vocab.Quality
	Flatfile    string
	Chromosomes string
	Unlocalised string
}

// ReadMAGs reads the MAG metadata table.
func ReadMAGs(path string) ([]MAG, error) {
	recs, headers, err := cli.ReadTable(path)
	if err != nil {
		return nil, errors.IO(err, path)
	}
	if !slices.Contains(headers, ColBinID) || !slices.Contains(headers, ColQuality) {
		return nil, errors.Config("MAG metadata %s needs columns %s and %s", path, ColBinID, ColQuality)
	}
	seen := make(map[string]bool, len(recs))
	out := make([]MAG, 0, len(recs))
	for i, rec := range recs {
		name := Name(rec[ColBinID])
		if name == "" {
			return nil, errors.Config("MAG metadata %s row %d: empty %s", path, i+2, ColBinID)
		}
		if seen[name] {
			return nil, errors.Coherence("MAG metadata %s lists %s twice", path, name)
		}
		seen[name] = true
		q, err := vocab.ParseQuality(rec[ColQuality])
		if err != nil {
			return nil, errors.Config("MAG metadata %s row %d: %v", path, i+2, err)
		}
		out = append(out, MAG{
			Bin:         name,
			Quality:     q,
			Flatfile:    rec[ColFlatfile],
			Chromosomes: rec[ColChromosomes],
			Unlocalised: rec[ColUnlocalised],
		})
	}
	return out, nil
}

// CheckMAGs verifies that every MAG refers to a bin of the set and that the
// referenced files exist.
func (s *Set) CheckMAGs(mags []MAG) error {
	for _, m := range mags {
		if _, ok := s.index[m.Bin]; !ok {
			return errors.Coherence("MAG %s has no bin file in %s", m.Bin, s.Dir)
		}
		for _, p := range []string{m.Flatfile, m.Chromosomes, m.Unlocalised} {
			if p == "" {
				continue
			}
			if _, err := os.Stat(p); err != nil {
				return errors.Preflight("MAG %s: file %s does not exist", m.Bin, p)
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
