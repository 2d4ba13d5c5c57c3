// Package config loads and validates the submission document.
//
// The YAML document is decoded into yaml.Node first so that every missing or
// empty field can be reported with its full dotted path, then into typed
// section records. Which sections are required depends on the enabled phases.
package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/synum-dev/synum/internal/errors"
	"github.com/synum-dev/synum/internal/vocab"
)

// Document keys shared by several sections.
const (
	KeyCollectionDate = "collection date"
	KeyLocation       = "geographic location (country and/or sea)"
	KeyAdditional     = "ADDITIONAL_SAMPLESHEET_FIELDS"
)

// Attribute is a free-form sample attribute.
type Attribute struct {
	Tag   string
	Value string
}

// NewSample is a biological sample created by the run.
type NewSample struct {
	Title          string
	CollectionDate string
	Location       string
	Attributes     []Attribute
}

// ReadSet is a single-end or paired-end read submission.
type ReadSet struct {
	Name             string
	Instrument       string
	LibrarySource    string
	LibrarySelection string
	LibraryStrategy  string
	Paired           bool
	InsertSize       string
	Files            []string

	RelatedSampleTitle     Optional[string]
	RelatedSampleAccession Optional[string]
}

// Assembly describes the primary assembly, submitted or pre-existing.
type Assembly struct {
	Name            string
	Software        string
	IsolationSource Optional[string]
	FastaFile       Optional[string]
	Coverage        Optional[float64]
	CollectionDate  Optional[string]
	Location        Optional[string]
	Attributes      []Attribute

	ExistingAnalysisAccession         Optional[string]
	ExistingCoAssemblySampleAccession Optional[string]
}

// Bins describes the bin directory and its quality and taxonomy sources.
type Bins struct {
	Directory            string
	CompletenessSoftware string
	QualityFile          string
	BinningSoftware      string
	NCBITaxonomyFiles    []string
	ManualTaxonomyFile   Optional[string]
	CoverageFile         Optional[string]
	Attributes           []Attribute
}

// MAGs describes the MAG metadata table.
type MAGs struct {
	MetadataFile string
	CoverageFile Optional[string]
	Attributes   []Attribute
}

// Config is the validated, immutable submission document.
type Config struct {
	Path   string
	Phases Phases

	Study                    string
	MetagenomeScientificName string
	MetagenomeTaxID          string
	Platforms                []string
	ProjectName              Optional[string]

	SampleAccessions []string
	NewSamples       []NewSample
	SingleReads      []ReadSet
	PairedEndReads   []ReadSet
	Assembly         *Assembly
	Bins             *Bins
	MAGs             *MAGs
	BAMFiles         []string
}

// Load reads and validates the document at path for the given phases.
func Load(path string, phases Phases) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("reading config: %w", err)).
			Category(errors.CategoryConfig).
			Context("path", path).
			Build()
	}
	cfg, err := Parse(data, phases)
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes and validates a document for the given phases.
func Parse(data []byte, phases Phases) (*Config, error) {
	if err := ValidateMode(phases); err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.New(fmt.Errorf("parsing config: %w", err)).Category(errors.CategoryConfig).Build()
	}
	root := at(&doc, "")
	if root.node == nil || root.node.Kind != yaml.MappingNode {
		return nil, errors.Config("config document must be a mapping")
	}

	cfg, err := decode(root, phases)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(root field, p Phases) (*Config, error) {
	d := &decoder{}
	cfg := &Config{Phases: p}

	cfg.Study = d.keep(Lookup(root.node, "STUDY"))
	cfg.MetagenomeScientificName = d.keep(Lookup(root.node, "METAGENOME_SCIENTIFIC_NAME"))
	cfg.MetagenomeTaxID = d.keep(Lookup(root.node, "METAGENOME_TAXID"))
	cfg.Platforms = d.list(root.child("SEQUENCING_PLATFORMS"), p.Assembly || p.Bins || p.MAGs)
	if p.Bins || p.MAGs {
		cfg.ProjectName = Some(d.str(root.child("PROJECT_NAME")))
	} else {
		cfg.ProjectName = d.optStr(root.child("PROJECT_NAME"))
	}

	if p.Samples {
		ns := root.child("NEW_SAMPLES")
		if !ns.present() {
			d.fail("missing or empty config field %s", ns.path)
		}
		for i := 0; i < ns.len(); i++ {
			cfg.NewSamples = append(cfg.NewSamples, decodeSample(d, ns.index(i)))
		}
	} else if p.Reads || p.Assembly {
		cfg.SampleAccessions = d.list(root.child("SAMPLE_ACCESSIONS"), p.Assembly)
	} else {
		cfg.SampleAccessions = d.list(root.child("SAMPLE_ACCESSIONS"), false)
	}

	if p.Reads {
		single, paired := root.child("SINGLE_READS"), root.child("PAIRED_END_READS")
		if !single.present() && !paired.present() {
			d.fail("missing or empty config field SINGLE_READS or PAIRED_END_READS")
		}
		for i := 0; i < single.len(); i++ {
			cfg.SingleReads = append(cfg.SingleReads, decodeReads(d, single.index(i), false, p.Samples))
		}
		for i := 0; i < paired.len(); i++ {
			cfg.PairedEndReads = append(cfg.PairedEndReads, decodeReads(d, paired.index(i), true, p.Samples))
		}
	}

	cfg.BAMFiles = d.list(root.child("BAM_FILES"), false)

	if p.Assembly || p.Bins || p.MAGs {
		cfg.Assembly = decodeAssembly(d, root.child("ASSEMBLY"), p, len(cfg.NewSamples)+len(cfg.SampleAccessions))
	}
	if p.Bins || p.MAGs {
		cfg.Bins = decodeBins(d, root.child("BINS"), p)
	}
	if p.MAGs {
		cfg.MAGs = decodeMAGs(d, root.child("MAGS"))
	}

	if d.err != nil {
		return nil, d.err
	}
	return cfg, nil
}

func decodeSample(d *decoder, f field) NewSample {
	return NewSample{
		Title:          d.str(f.child("TITLE")),
		CollectionDate: d.str(f.child(KeyCollectionDate)),
		Location:       d.str(f.child(KeyLocation)),
		Attributes:     d.attrs(f.child(KeyAdditional)),
	}
}

func decodeReads(d *decoder, f field, paired, samplesInRun bool) ReadSet {
	rs := ReadSet{
		Name:             d.str(f.child("NAME")),
		Instrument:       d.str(f.child("SEQUENCING_INSTRUMENT")),
		LibrarySource:    d.str(f.child("LIBRARY_SOURCE")),
		LibrarySelection: d.str(f.child("LIBRARY_SELECTION")),
		LibraryStrategy:  d.str(f.child("LIBRARY_STRATEGY")),
		Paired:           paired,
	}
	if paired {
		rs.InsertSize = d.str(f.child("INSERT_SIZE"))
		rs.Files = []string{d.str(f.child("FASTQ1_FILE")), d.str(f.child("FASTQ2_FILE"))}
	} else {
		rs.Files = []string{d.str(f.child("FASTQ_FILE"))}
	}
	if samplesInRun {
		rs.RelatedSampleTitle = Some(d.str(f.child("RELATED_SAMPLE_TITLE")))
	} else {
		rs.RelatedSampleAccession = Some(d.str(f.child("RELATED_SAMPLE_ACCESSION")))
	}
	return rs
}

func decodeAssembly(d *decoder, f field, p Phases, origins int) *Assembly {
	if !f.present() {
		d.fail("missing or empty config field %s", f.path)
		return nil
	}
	a := &Assembly{
		Name:                              d.str(f.child("ASSEMBLY_NAME")),
		Software:                          d.str(f.child("ASSEMBLY_SOFTWARE")),
		Coverage:                          d.optFloat(f.child("COVERAGE_VALUE")),
		Attributes:                        d.attrs(f.child(KeyAdditional)),
		ExistingAnalysisAccession:         d.optStr(f.child("EXISTING_ASSEMBLY_ANALYSIS_ACCESSION")),
		ExistingCoAssemblySampleAccession: d.optStr(f.child("EXISTING_CO_ASSEMBLY_SAMPLE_ACCESSION")),
	}

	describesSample := p.Bins || p.MAGs || (p.Assembly && origins > 1)
	if describesSample {
		a.IsolationSource = Some(d.str(f.child("ISOLATION_SOURCE")))
		a.CollectionDate = Some(d.str(f.child(KeyCollectionDate)))
		a.Location = Some(d.str(f.child(KeyLocation)))
	} else {
		a.IsolationSource = d.optStr(f.child("ISOLATION_SOURCE"))
		a.CollectionDate = d.optStr(f.child(KeyCollectionDate))
		a.Location = d.optStr(f.child(KeyLocation))
	}

	if p.Assembly {
		a.FastaFile = Some(d.str(f.child("FASTA_FILE")))
	}
	return a
}

func decodeBins(d *decoder, f field, p Phases) *Bins {
	if !f.present() {
		d.fail("missing or empty config field %s", f.path)
		return nil
	}
	b := &Bins{
		Directory:            d.str(f.child("BINS_DIRECTORY")),
		CompletenessSoftware: d.str(f.child("COMPLETENESS_SOFTWARE")),
		QualityFile:          d.str(f.child("QUALITY_FILE")),
		BinningSoftware:      d.str(f.child("BINNING_SOFTWARE")),
		NCBITaxonomyFiles:    d.list(f.child("NCBI_TAXONOMY_FILES"), false),
		ManualTaxonomyFile:   d.optStr(f.child("MANUAL_TAXONOMY_FILE")),
		CoverageFile:         d.optStr(f.child("COVERAGE_FILE")),
		Attributes:           d.attrs(f.child(KeyAdditional)),
	}
	if len(b.NCBITaxonomyFiles) == 0 && !b.ManualTaxonomyFile.IsSet() {
		d.fail("missing or empty config field %s.NCBI_TAXONOMY_FILES or %s.MANUAL_TAXONOMY_FILE", f.path, f.path)
	}
	return b
}

func decodeMAGs(d *decoder, f field) *MAGs {
	if !f.present() {
		d.fail("missing or empty config field %s", f.path)
		return nil
	}
	return &MAGs{
		MetadataFile: d.str(f.child("MAG_METADATA_FILE")),
		CoverageFile: d.optStr(f.child("COVERAGE_FILE")),
		Attributes:   d.attrs(f.child(KeyAdditional)),
	}
}

// ReadSets returns single-end then paired-end read sets in document order.
func (c *Config) ReadSets() []ReadSet {
	return slices.Concat(c.SingleReads, c.PairedEndReads)
}

// UsesBAM reports whether coverage derives from alignment files.
func (c *Config) UsesBAM() bool {
	return len(c.BAMFiles) > 0
}

// InputFiles returns every local path the document references, keyed by
// the field that names it.
func (c *Config) InputFiles() []Input {
	var out []Input
	for _, rs := range c.ReadSets() {
		for _, f := range rs.Files {
			out = append(out, Input{Field: "reads " + rs.Name, Path: f})
		}
	}
	if c.Assembly != nil {
		if v, ok := c.Assembly.FastaFile.Get(); ok {
			out = append(out, Input{Field: "ASSEMBLY.FASTA_FILE", Path: v})
		}
	}
	if c.Bins != nil {
		out = append(out,
			Input{Field: "BINS.BINS_DIRECTORY", Path: c.Bins.Directory, Dir: true},
			Input{Field: "BINS.QUALITY_FILE", Path: c.Bins.QualityFile},
		)
		for _, f := range c.Bins.NCBITaxonomyFiles {
			out = append(out, Input{Field: "BINS.NCBI_TAXONOMY_FILES", Path: f})
		}
		if v, ok := c.Bins.ManualTaxonomyFile.Get(); ok {
			out = append(out, Input{Field: "BINS.MANUAL_TAXONOMY_FILE", Path: v})
		}
		if v, ok := c.Bins.CoverageFile.Get(); ok && c.Phases.Bins {
			out = append(out, Input{Field: "BINS.COVERAGE_FILE", Path: v})
		}
	}
	if c.MAGs != nil {
		out = append(out, Input{Field: "MAGS.MAG_METADATA_FILE", Path: c.MAGs.MetadataFile})
		if v, ok := c.MAGs.CoverageFile.Get(); ok {
			out = append(out, Input{Field: "MAGS.COVERAGE_FILE", Path: v})
		}
	}
	for _, f := range c.BAMFiles {
		out = append(out, Input{Field: "BAM_FILES", Path: f})
	}
	return out
}

// Input is a local path referenced by the document.
type Input struct {
	Field string
	Path  string
	Dir   bool
}

func (c *Config) validate() error {
	for _, pl := range c.Platforms {
		if err := vocab.Get(vocab.Platforms).Check(pl); err != nil {
			return errors.Config("SEQUENCING_PLATFORMS: %v", err)
		}
	}

	titles := make(map[string]bool, len(c.NewSamples))
	for i, s := range c.NewSamples {
		if err := checkSampleFields(fmt.Sprintf("NEW_SAMPLES[%d]", i), s.CollectionDate, s.Location); err != nil {
			return err
		}
		if titles[s.Title] {
			return errors.Coherence("duplicate sample title %q in NEW_SAMPLES", s.Title)
		}
		titles[s.Title] = true
	}

	names := make(map[string]bool)
	for _, rs := range c.ReadSets() {
		if names[rs.Name] {
			return errors.Newf("duplicate read set name %q", rs.Name).
				Category(errors.CategoryCoherence).
				Context("read_set", rs.Name).
				Build()
		}
		names[rs.Name] = true
		if err := checkReads(rs); err != nil {
			return err
		}
		if t, ok := rs.RelatedSampleTitle.Get(); ok && !titles[t] {
			return errors.Config("read set %s: RELATED_SAMPLE_TITLE %q matches no NEW_SAMPLES title", rs.Name, t)
		}
	}

	if a := c.Assembly; a != nil {
		if d, ok := a.CollectionDate.Get(); ok {
			if err := checkSampleFields("ASSEMBLY", d, a.Location.Or("")); err != nil {
				return err
			}
		}
		existing := a.ExistingAnalysisAccession.IsSet()
		coAssembly := a.ExistingCoAssemblySampleAccession.IsSet()
		if c.Phases.Assembly && (existing || coAssembly) {
			return errors.Config("ASSEMBLY: EXISTING_* accessions cannot be combined with --submit_assembly")
		}
		if !c.Phases.Assembly && existing == coAssembly {
			return errors.Config("ASSEMBLY: exactly one of EXISTING_ASSEMBLY_ANALYSIS_ACCESSION and EXISTING_CO_ASSEMBLY_SAMPLE_ACCESSION must be set when the assembly is not submitted")
		}
	}

	return c.validateCoverage()
}

// validateCoverage enforces one coverage source per coverage-requiring phase.
func (c *Config) validateCoverage() error {
	bam := c.UsesBAM()
	check := func(phase string, on, own bool, field string) error {
		if !on {
			return nil
		}
		if bam && own {
			return errors.Config("%s: %s cannot be combined with BAM_FILES", phase, field)
		}
		if !bam && !own {
			return errors.Config("%s: one of %s or BAM_FILES is required", phase, field)
		}
		return nil
	}

	if err := check("assembly", c.Phases.Assembly, c.Assembly != nil && c.Assembly.Coverage.IsSet(), "ASSEMBLY.COVERAGE_VALUE"); err != nil {
		return err
	}
	if err := check("bins", c.Phases.Bins, c.Bins != nil && c.Bins.CoverageFile.IsSet(), "BINS.COVERAGE_FILE"); err != nil {
		return err
	}
	return check("MAGs", c.Phases.MAGs, c.MAGs != nil && c.MAGs.CoverageFile.IsSet(), "MAGS.COVERAGE_FILE")
}

func checkSampleFields(where, date, location string) error {
	if !ValidDate(date) {
		return errors.Config("%s: invalid %s %q (accepted: YYYY, YYYY-MM, YYYY-MM-DD, optionally followed by Thh, Thh:mm or Thh:mm:ss)", where, KeyCollectionDate, date)
	}
	if location != "" {
		if err := vocab.Get(vocab.Countries).Check(location); err != nil {
			return errors.Config("%s: %v", where, err)
		}
	}
	return nil
}

func checkReads(rs ReadSet) error {
	checks := []struct {
		set   string
		value string
	}{
		{vocab.Instruments, rs.Instrument},
		{vocab.LibrarySources, rs.LibrarySource},
		{vocab.LibrarySelections, rs.LibrarySelection},
		{vocab.LibraryStrategies, rs.LibraryStrategy},
	}
	for _, ch := range checks {
		if err := vocab.Get(ch.set).Check(ch.value); err != nil {
			return errors.Config("read set %s: %v", rs.Name, err)
		}
	}
	return nil
}
