// Package taxonomy assigns archive taxa to bins.
//
// Bins are classified by lineage strings ("d__Bacteria;p__...;s__...").
// The lowest classified rank selects a query for the archive's
// suggest-for-submission service, and the suggestions are filtered by rank
// until exactly one taxon remains.
package taxonomy

import (
	"strings"
)

// Level is a taxonomic rank, domain first.
type Level int

const (
	Domain Level = iota
	Phylum
	Class
	Order
	Family
	Genus
	Species
)

var levelNames = [...]string{"domain", "phylum", "class", "order", "family", "genus", "species"}

func (l Level) String() string {
	if l < Domain || l > Species {
		return "unknown"
	}
	return levelNames[l]
}

// minClassified is the shortest entry, rank tag included, that names a taxon.
const minClassified = 4

// Entry is one rank of a lineage: its tag (e.g. "g__") and name.
type Entry struct {
	Tag  string
	Name string
}

func (e Entry) String() string {
	return e.Tag + e.Name
}

// Classified reports whether the entry names a taxon.
func (e Entry) Classified() bool {
	return len(e.Tag)+len(e.Name) >= minClassified && e.Name != ""
}

// Classification is a lineage ordered from domain to species.
type Classification []Entry

// ParseClassification splits a semicolon-delimited lineage.
func ParseClassification(s string) Classification {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make(Classification, 0, len(parts))
	for _, p := range parts {
		out = append(out, parseEntry(strings.TrimSpace(p)))
	}
	return out
}

// parseEntry separates a leading rank tag: a letter followed by one or two
// underscores.
func parseEntry(s string) Entry {
	if len(s) < 2 || s[1] != '_' || !isLetter(s[0]) {
		return Entry{Name: s}
	}
	n := 2
	if len(s) > 2 && s[2] == '_' {
		n = 3
	}
	return Entry{Tag: s[:n], Name: s[n:]}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func (c Classification) String() string {
	parts := make([]string, len(c))
	for i, e := range c {
		parts[i] = e.String()
	}
	return strings.Join(parts, ";")
}

// unclassifiedPrefix starts the single-entry lineages some classifiers emit
// for bins placed only at domain level.
const unclassifiedPrefix = "Unclassified "

// Lowest returns the lowest classified rank and its name. ok is false when
// nothing is classified.
func (c Classification) Lowest() (level Level, name string, ok bool) {
	if len(c) == 1 {
		if d, isSentinel := unclassifiedDomain(c[0].String()); isSentinel {
			return Domain, d, true
		}
	}
	for i := min(len(c), int(Species)+1) - 1; i >= 0; i-- {
		if c[i].Classified() {
			return Level(i), c[i].Name, true
		}
	}
	return 0, "", false
}

// Domain returns the domain name, or "" if unknown.
func (c Classification) Domain() string {
	if len(c) == 0 {
		return ""
	}
	if d, ok := unclassifiedDomain(c[0].String()); ok {
		return d
	}
	if !c[0].Classified() {
		return ""
	}
	return c[0].Name
}

func unclassifiedDomain(s string) (string, bool) {
	rest, ok := strings.CutPrefix(s, unclassifiedPrefix)
	if !ok {
		return "", false
	}
	switch {
	case rest == "Bacteria":
		return "Bacteria", true
	case rest == "Archaea":
		return "Archaea", true
	case strings.HasPrefix(rest, "Eukaryot"):
		return rest, true
	}
	return "", false
}

// Domain-specific suffixes of archive names for uncultured organisms.
const (
	SuffixBacterium = "bacterium"
	SuffixArchaeon  = "archaeon"
	SuffixEukaryote = "eukaryote"
)

// domainSuffix maps a domain name to the suffix used in archive names.
func domainSuffix(domain string) string {
	switch {
	case strings.EqualFold(domain, "Archaea"):
		return SuffixArchaeon
	case strings.HasPrefix(strings.ToLower(domain), "eukaryot"):
		return SuffixEukaryote
	default:
		return SuffixBacterium
	}
}

// Query returns the suggestion query for a bin classified to name at level.
func Query(level Level, name, domain string) string {
	switch level {
	case Species:
		return name
	case Genus:
		return name + " sp."
	case Domain:
		return "uncultured " + domainSuffix(domain)
	default:
		return name + " " + domainSuffix(domain)
	}
}

// Accept reports whether a suggested scientific name fits the rank the
// query was built for.
func Accept(level Level, name, suggestion string) bool {
	switch level {
	case Species:
		return strings.HasSuffix(suggestion, name)
	case Genus:
		return strings.HasSuffix(suggestion, " sp.")
	default:
		return strings.HasSuffix(suggestion, SuffixArchaeon) ||
			strings.HasSuffix(suggestion, SuffixBacterium) ||
			strings.HasSuffix(suggestion, SuffixEukaryote)
	}
}
