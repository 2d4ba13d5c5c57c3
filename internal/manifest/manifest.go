package manifest

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/synum-dev/synum/internal/cli"
)

// Manifest keys.
const (
	KeyStudy            = "STUDY"
	KeySample           = "SAMPLE"
	KeyName             = "NAME"
	KeyAssemblyName     = "ASSEMBLYNAME"
	KeyAssemblyType     = "ASSEMBLY_TYPE"
	KeyCoverage         = "COVERAGE"
	KeyProgram          = "PROGRAM"
	KeyPlatform         = "PLATFORM"
	KeyMoleculeType     = "MOLECULETYPE"
	KeyRunRef           = "RUN_REF"
	KeyFasta            = "FASTA"
	KeyFlatfile         = "FLATFILE"
	KeyChromosomeList   = "CHROMOSOME_LIST"
	KeyUnlocalisedList  = "UNLOCALISED_LIST"
	KeyInstrument       = "INSTRUMENT"
	KeyInsertSize       = "INSERT_SIZE"
	KeyLibrarySource    = "LIBRARY_SOURCE"
	KeyLibrarySelection = "LIBRARY_SELECTION"
	KeyLibraryStrategy  = "LIBRARY_STRATEGY"
	KeyFastq            = "FASTQ"
)

// Assembly types.
const (
	TypePrimary = "primary metagenome"
	TypeBinned  = "binned metagenome"
	TypeMAG     = "Metagenome-Assembled Genome (MAG)"

	MoleculeType = "genomic DNA"
)

const (
	// ArchiveNameLimit is the archive's maximum analysis alias length.
	ArchiveNameLimit = 50
	// ServerPrefix is prepended by the CLI submitter to assembly names.
	ServerPrefix = "webin-genome-"
	// MaxAssemblyName keeps prefixed names within ArchiveNameLimit.
	MaxAssemblyName = ArchiveNameLimit - len(ServerPrefix)
)

// CapAssemblyName keeps the rightmost MaxAssemblyName characters of name.
func CapAssemblyName(name string) string {
	r := []rune(name)
	if len(r) <= MaxAssemblyName {
		return name
	}
	return string(r[len(r)-MaxAssemblyName:])
}

// Field is one manifest line.
type Field struct {
	Key   string
	Value string
}

// Manifest is an ordered list of key/value lines.
type Manifest struct {
	Fields []Field
}

// Add appends a line; empty values are skipped.
func (m *Manifest) Add(key, value string) *Manifest {
	if value != "" {
		m.Fields = append(m.Fields, Field{Key: key, Value: value})
	}
	return m
}

// Get returns the first value for key.
func (m *Manifest) Get(key string) (string, bool) {
	for _, f := range m.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// WriteTo writes the manifest as tab-separated lines.
func (m *Manifest) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	tw := cli.NewTabWriter(cw)
	for _, f := range m.Fields {
		if strings.ContainsAny(f.Value, "\t\n") {
			return cw.n, fmt.Errorf("manifest value for %s contains a tab or newline", f.Key)
		}
		if err := tw.WriteRow(f.Key, f.Value); err != nil {
			return cw.n, err
		}
	}
	err := tw.Flush()
	return cw.n, err
}

// Write writes the manifest to path.
func (m *Manifest) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := m.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return f.Close()
}

// Read parses a tab-separated manifest, preserving line order.
func Read(r io.Reader) (*Manifest, error) {
	tr := cli.NewTabReader(r, false)
	m := &Manifest{}
	for {
		row, err := tr.Read()
		if err == io.EOF {
			return m, nil
		}
		if err != nil {
			return nil, err
		}
		if len(row) != 2 {
			return nil, fmt.Errorf("manifest line %d: expected KEY<TAB>VALUE", tr.Line())
		}
		m.Fields = append(m.Fields, Field{Key: row[0], Value: row[1]})
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Genome describes an assembly, bin or MAG submission.
type Genome struct {
	Study           string
	Sample          string
	AssemblyName    string
	AssemblyType    string
	Coverage        string
	Program         string
	Platform        string
	RunRef          string
	Fasta           string
	Flatfile        string
	ChromosomeList  string
	UnlocalisedList string
}

// Manifest renders the genome context manifest in submitter key order.
// The assembly name is capped with CapAssemblyName.
func (g Genome) Manifest() (*Manifest, error) {
	if (g.Fasta == "") == (g.Flatfile == "") {
		return nil, fmt.Errorf("genome %s needs exactly one of FASTA and FLATFILE", g.AssemblyName)
	}
	m := &Manifest{}
	m.Add(KeyStudy, g.Study).
		Add(KeySample, g.Sample).
		Add(KeyAssemblyName, CapAssemblyName(g.AssemblyName)).
		Add(KeyAssemblyType, g.AssemblyType).
		Add(KeyCoverage, g.Coverage).
		Add(KeyProgram, g.Program).
		Add(KeyPlatform, g.Platform).
		Add(KeyMoleculeType, MoleculeType).
		Add(KeyRunRef, g.RunRef).
		Add(KeyFasta, g.Fasta).
		Add(KeyFlatfile, g.Flatfile).
		Add(KeyChromosomeList, g.ChromosomeList).
		Add(KeyUnlocalisedList, g.UnlocalisedList)
	return m, nil
}

// Reads describes a single-end or paired-end read submission.
type Reads struct {
	Study            string
	Sample           string
	Name             string
	Instrument       string
	InsertSize       string
	LibrarySource    string
	LibrarySelection string
	LibraryStrategy  string
	Fastq            []string
}

// Manifest renders the reads context manifest in submitter key order.
func (r Reads) Manifest() (*Manifest, error) {
	if len(r.Fastq) == 0 || len(r.Fastq) > 2 {
		return nil, fmt.Errorf("read set %s needs one or two FASTQ files, got %d", r.Name, len(r.Fastq))
	}
	m := &Manifest{}
	m.Add(KeyStudy, r.Study).
		Add(KeySample, r.Sample).
		Add(KeyName, r.Name).
		Add(KeyInstrument, r.Instrument).
		Add(KeyInsertSize, r.InsertSize).
		Add(KeyLibrarySource, r.LibrarySource).
		Add(KeyLibrarySelection, r.LibrarySelection).
		Add(KeyLibraryStrategy, r.LibraryStrategy)
	for _, f := range r.Fastq {
		m.Add(KeyFastq, f)
	}
	return m, nil
}
