package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/synum-dev/synum/internal/errors"
)

const binsOnly = `
STUDY: PRJEB12345
METAGENOME_SCIENTIFIC_NAME: soil metagenome
METAGENOME_TAXID: 410658
SEQUENCING_PLATFORMS: [ILLUMINA]
PROJECT_NAME: soil survey
ASSEMBLY:
  ASSEMBLY_NAME: soil_asm
  ASSEMBLY_SOFTWARE: MEGAHIT
  ISOLATION_SOURCE: topsoil
  EXISTING_ASSEMBLY_ANALYSIS_ACCESSION: ERZ1049590
  "collection date": 2020-05
  "geographic location (country and/or sea)": Germany
BINS:
  BINS_DIRECTORY: bins
  COMPLETENESS_SOFTWARE: CheckM
  QUALITY_FILE: quality.tsv
  MANUAL_TAXONOMY_FILE: manual.tsv
  BINNING_SOFTWARE: MetaBAT2
  COVERAGE_FILE: coverage.tsv
  ADDITIONAL_SAMPLESHEET_FIELDS:
    binning parameters: default
`

const coAssembly = `
STUDY: PRJEB12345
METAGENOME_SCIENTIFIC_NAME: soil metagenome
METAGENOME_TAXID: 410658
SEQUENCING_PLATFORMS: [ILLUMINA]
NEW_SAMPLES:
  - TITLE: plot A
    "collection date": 2020-05-01
    "geographic location (country and/or sea)": Germany
    ADDITIONAL_SAMPLESHEET_FIELDS:
      depth: 10 cm
  - TITLE: plot B
    "collection date": 2020-05-02T13:45
    "geographic location (country and/or sea)": Germany
PAIRED_END_READS:
  - NAME: reads A
    SEQUENCING_INSTRUMENT: Illumina NovaSeq 6000
    LIBRARY_SOURCE: METAGENOMIC
    LIBRARY_SELECTION: RANDOM
    LIBRARY_STRATEGY: WGS
    INSERT_SIZE: 300
    FASTQ1_FILE: a_1.fq.gz
    FASTQ2_FILE: a_2.fq.gz
    RELATED_SAMPLE_TITLE: plot A
  - NAME: reads B
    SEQUENCING_INSTRUMENT: Illumina NovaSeq 6000
    LIBRARY_SOURCE: METAGENOMIC
    LIBRARY_SELECTION: RANDOM
    LIBRARY_STRATEGY: WGS
    INSERT_SIZE: 300
    FASTQ1_FILE: b_1.fq.gz
    FASTQ2_FILE: b_2.fq.gz
    RELATED_SAMPLE_TITLE: plot B
ASSEMBLY:
  ASSEMBLY_NAME: soil coassembly
  ASSEMBLY_SOFTWARE: MEGAHIT
  ISOLATION_SOURCE: topsoil
  FASTA_FILE: contigs.fa
  COVERAGE_VALUE: 42.5
  "collection date": 2020-05
  "geographic location (country and/or sea)": Germany
`

func TestParse_BinsOnly(t *testing.T) {
	cfg, err := Parse([]byte(binsOnly), Phases{Bins: true})
	require.NoError(t, err)

	assert.Equal(t, "410658", cfg.MetagenomeTaxID)
	assert.Equal(t, []string{"ILLUMINA"}, cfg.Platforms)
	acc, ok := cfg.Assembly.ExistingAnalysisAccession.Get()
	assert.True(t, ok)
	assert.Equal(t, "ERZ1049590", acc)
	assert.False(t, cfg.Assembly.ExistingCoAssemblySampleAccession.IsSet())
	assert.Equal(t, "2020-05", cfg.Assembly.CollectionDate.Or(""))
	assert.Equal(t, []Attribute{{Tag: "binning parameters", Value: "default"}}, cfg.Bins.Attributes)
	assert.False(t, cfg.UsesBAM())
}

func TestParse_CoAssembly(t *testing.T) {
	cfg, err := Parse([]byte(coAssembly), Phases{Samples: true, Reads: true, Assembly: true})
	require.NoError(t, err)

	require.Len(t, cfg.NewSamples, 2)
	assert.Equal(t, "2020-05-02T13:45", cfg.NewSamples[1].CollectionDate)
	assert.Equal(t, []Attribute{{Tag: "depth", Value: "10 cm"}}, cfg.NewSamples[0].Attributes)

	reads := cfg.ReadSets()
	require.Len(t, reads, 2)
	assert.True(t, reads[0].Paired)
	assert.Equal(t, "300", reads[0].InsertSize)
	assert.Equal(t, []string{"b_1.fq.gz", "b_2.fq.gz"}, reads[1].Files)
	assert.Equal(t, "plot B", reads[1].RelatedSampleTitle.Or(""))

	assert.Equal(t, 42.5, cfg.Assembly.Coverage.Or(0))
	assert.Equal(t, "contigs.fa", cfg.Assembly.FastaFile.Or(""))
}

func TestParse_MissingFieldNamesPath(t *testing.T) {
	doc := bytes.Replace([]byte(coAssembly), []byte("    FASTQ2_FILE: b_2.fq.gz\n"), nil, 1)

	_, err := Parse(doc, Phases{Samples: true, Reads: true, Assembly: true})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
	assert.Contains(t, err.Error(), "PAIRED_END_READS[1].FASTQ2_FILE")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		phases   Phases
		category errors.Category
		contains string
	}{
		{
			name:     "mode violation",
			doc:      binsOnly,
			phases:   Phases{Samples: true, MAGs: true},
			category: errors.CategoryConfig,
			contains: "SRABM",
		},
		{
			name:     "both existing accessions",
			doc:      strings.Replace(binsOnly, "ERZ1049590\n", "ERZ1049590\n  EXISTING_CO_ASSEMBLY_SAMPLE_ACCESSION: ERS1\n", 1),
			phases:   Phases{Bins: true},
			category: errors.CategoryConfig,
			contains: "exactly one",
		},
		{
			name:     "coverage table and bam",
			doc:      binsOnly + "BAM_FILES: [a.bam]\n",
			phases:   Phases{Bins: true},
			category: errors.CategoryConfig,
			contains: "BAM_FILES",
		},
		{
			name:     "bad date",
			doc:      strings.Replace(binsOnly, "2020-05\n", "May 2020\n", 1),
			phases:   Phases{Bins: true},
			category: errors.CategoryConfig,
			contains: "collection date",
		},
		{
			name:     "unknown location",
			doc:      strings.Replace(binsOnly, ": Germany", ": Atlantis", 1),
			phases:   Phases{Bins: true},
			category: errors.CategoryConfig,
			contains: "Atlantis",
		},
		{
			name:     "duplicate read names",
			doc:      strings.Replace(coAssembly, "NAME: reads B", "NAME: reads A", 1),
			phases:   Phases{Samples: true, Reads: true, Assembly: true},
			category: errors.CategoryCoherence,
			contains: "reads A",
		},
		{
			name:     "unknown instrument",
			doc:      strings.Replace(coAssembly, "NovaSeq 6000", "NovaSeq 9000", 1),
			phases:   Phases{Samples: true, Reads: true, Assembly: true},
			category: errors.CategoryConfig,
			contains: "instrument",
		},
		{
			name:     "related title mismatch",
			doc:      strings.Replace(coAssembly, "RELATED_SAMPLE_TITLE: plot B", "RELATED_SAMPLE_TITLE: plot C", 1),
			phases:   Phases{Samples: true, Reads: true, Assembly: true},
			category: errors.CategoryConfig,
			contains: "plot C",
		},
		{
			name:     "not a mapping",
			doc:      "- a\n- b\n",
			phases:   Phases{Bins: true},
			category: errors.CategoryConfig,
			contains: "mapping",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), tt.phases)
			require.Error(t, err)
			assert.Equal(t, tt.category, errors.CategoryOf(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestValidateMode(t *testing.T) {
	accepted := make(map[string]bool)
	for _, m := range Modes {
		accepted[m] = true
	}

	for bits := 0; bits < 32; bits++ {
		p := Phases{
			Samples:  bits&1 != 0,
			Reads:    bits&2 != 0,
			Assembly: bits&4 != 0,
			Bins:     bits&8 != 0,
			MAGs:     bits&16 != 0,
		}
		err := ValidateMode(p)
		if accepted[p.Mode()] {
			assert.NoError(t, err, p.Mode())
		} else {
			assert.True(t, errors.Is(err, errors.ErrConfig), "mode %q should fail", p.Mode())
		}
	}
}

func TestValidDate(t *testing.T) {
	valid := []string{"2020", "2020-05", "2020-05-01", "2020-05-01T13", "2020-05-01T13:45", "2020-05-01T13:45:59"}
	invalid := []string{"", "20", "2020-5", "2020-13", "2020-05-32", "2020-05-01 13:45", "2020-05-01T25", "2020-05-01T13:45:59Z"}

	for _, d := range valid {
		assert.True(t, ValidDate(d), d)
	}
	for _, d := range invalid {
		assert.False(t, ValidDate(d), d)
	}
}

func TestLookup(t *testing.T) {
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(coAssembly), &doc))

	v, err := Lookup(&doc, "ASSEMBLY.COVERAGE_VALUE")
	require.NoError(t, err)
	assert.Equal(t, "42.5", v)

	v, err = Lookup(&doc, "NEW_SAMPLES.1.TITLE")
	require.NoError(t, err)
	assert.Equal(t, "plot B", v)

	_, err = Lookup(&doc, "ASSEMBLY.EXISTING_ASSEMBLY_ANALYSIS_ACCESSION")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ASSEMBLY.EXISTING_ASSEMBLY_ANALYSIS_ACCESSION")
}

func TestParse_TopLevelScalars(t *testing.T) {
	cfg, err := Parse([]byte(binsOnly), Phases{Bins: true})
	require.NoError(t, err)
	assert.Equal(t, "PRJEB12345", cfg.Study)
	assert.Equal(t, "410658", cfg.MetagenomeTaxID)

	doc := strings.Replace(binsOnly, "METAGENOME_TAXID: 410658", "METAGENOME_TAXID: [410658]", 1)
	_, err = Parse([]byte(doc), Phases{Bins: true})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
	assert.Contains(t, err.Error(), "config field METAGENOME_TAXID must be a single value")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(binsOnly), 0o644))

	cfg, err := Load(path, Phases{Bins: true})
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"), Phases{Bins: true})
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
}

func TestInputFiles(t *testing.T) {
	cfg, err := Parse([]byte(binsOnly), Phases{Bins: true})
	require.NoError(t, err)

	var fields []string
	for _, in := range cfg.InputFiles() {
		fields = append(fields, in.Field)
	}
	assert.Equal(t, []string{"BINS.BINS_DIRECTORY", "BINS.QUALITY_FILE", "BINS.MANUAL_TAXONOMY_FILE", "BINS.COVERAGE_FILE"}, fields)
}

func TestSkeleton(t *testing.T) {
	var buf bytes.Buffer
	opts := SkeletonOptions{Phases: Phases{Assembly: true, Bins: true, MAGs: true}, CoverageFromBAM: true}
	require.NoError(t, WriteSkeleton(&buf, opts))

	out := buf.String()
	assert.Contains(t, out, "BAM_FILES")
	assert.Contains(t, out, "MAG_METADATA_FILE")
	assert.NotContains(t, out, "COVERAGE_VALUE")
	assert.Contains(t, out, "# CheckM or CheckM2 quality table")

	// An unfilled skeleton parses but fails on its first required field.
	_, err := Parse(buf.Bytes(), opts.Phases)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STUDY")
}
