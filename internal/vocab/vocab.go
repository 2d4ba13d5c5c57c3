// Package vocab holds the archive's controlled vocabularies.
package vocab

import (
	"bufio"
	"embed"
	"fmt"
	"slices"
	"strings"
	"sync"
)

//go:embed data/*.txt
var data embed.FS

// Set is a closed vocabulary.
type Set struct {
	Name   string
	values []string
	index  map[string]struct{}
}

// Contains reports whether v is a member.
func (s *Set) Contains(v string) bool {
	_, ok := s.index[v]
	return ok
}

// Values returns the members in file order.
func (s *Set) Values() []string {
	return slices.Clone(s.values)
}

// Check returns an error naming the vocabulary when v is not a member.
func (s *Set) Check(v string) error {
	if s.Contains(v) {
		return nil
	}
	return fmt.Errorf("%q is not a valid %s", v, s.Name)
}

var (
	loadOnce sync.Once
	sets     map[string]*Set
)

const (
	Instruments       = "instrument"
	Platforms         = "sequencing platform"
	LibrarySources    = "library source"
	LibrarySelections = "library selection"
	LibraryStrategies = "library strategy"
	Countries         = "geographic location"
)

var files = map[string]string{
	Instruments:       "data/instruments.txt",
	Platforms:         "data/platforms.txt",
	LibrarySources:    "data/library_sources.txt",
	LibrarySelections: "data/library_selections.txt",
	LibraryStrategies: "data/library_strategies.txt",
	Countries:         "data/countries.txt",
}

func load() {
	sets = make(map[string]*Set, len(files))
	for name, path := range files {
		f, err := data.Open(path)
		if err != nil {
			panic(fmt.Sprintf("vocab: %s: %v", path, err))
		}
		s := &Set{Name: name, index: make(map[string]struct{})}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			v := strings.TrimSpace(scanner.Text())
			if v == "" {
				continue
			}
			s.values = append(s.values, v)
			s.index[v] = struct{}{}
		}
		_ = f.Close()
		sets[name] = s
	}
}

// Get returns the named vocabulary. It panics on an unknown name.
func Get(name string) *Set {
	loadOnce.Do(load)
	s, ok := sets[name]
	if !ok {
		panic("vocab: unknown vocabulary " + name)
	}
	return s
}

// Quality is a MAG assembly quality category.
type Quality string

const (
	QualityFinished Quality = "finished"
	QualityHigh     Quality = "high"
	QualityMedium   Quality = "medium"
)

var qualityLiterals = map[Quality]string{
	QualityFinished: "Single contiguous sequence without gaps",
	QualityHigh:     "Multiple fragments where gaps span repetitive regions. Presence of the 23S, 16S, and 5S rRNA genes and at least 18 tRNAs.",
	QualityMedium:   "Many fragments with little to no review of assembly other than reporting of standard assembly statistics.",
}

// ParseQuality maps a metadata-table value onto a category.
func ParseQuality(s string) (Quality, error) {
	q := Quality(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := qualityLiterals[q]; !ok {
		return "", fmt.Errorf("%q is not a valid quality category (finished, high, medium)", s)
	}
	return q, nil
}

// Literal returns the archive's attribute value for the category.
func (q Quality) Literal() string {
	return qualityLiterals[q]
}
