package config

import (
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// SkeletonOptions selects the sections emitted by WriteSkeleton.
type SkeletonOptions struct {
	Phases          Phases
	CoverageFromBAM bool
}

type entry struct {
	key     string
	comment string
	value   *yaml.Node
}

func mapping(entries ...entry) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range entries {
		k := &yaml.Node{Kind: yaml.ScalarNode, Value: e.key, HeadComment: e.comment}
		if strings.ContainsAny(e.key, " ()") {
			k.Style = yaml.DoubleQuotedStyle
		}
		n.Content = append(n.Content, k, e.value)
	}
	return n
}

func seq(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Content: items}
}

// blank is a key with a null value.
func blank(key, comment string) entry {
	return entry{key: key, comment: comment, value: &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}}
}

func section(key, comment string, v *yaml.Node) entry {
	return entry{key: key, comment: comment, value: v}
}

func sampleFields() []entry {
	return []entry{
		blank(KeyCollectionDate, "YYYY, YYYY-MM, YYYY-MM-DD or with Thh[:mm[:ss]]"),
		blank(KeyLocation, "country or sea from the archive's vocabulary"),
		section(KeyAdditional, "optional free-form sample attributes", mapping()),
	}
}

func readFields(paired bool) *yaml.Node {
	es := []entry{
		blank("NAME", "unique read set name"),
		blank("SEQUENCING_INSTRUMENT", ""),
		blank("LIBRARY_SOURCE", ""),
		blank("LIBRARY_SELECTION", ""),
		blank("LIBRARY_STRATEGY", ""),
	}
	if paired {
		es = append(es,
			blank("INSERT_SIZE", ""),
			blank("FASTQ1_FILE", ""),
			blank("FASTQ2_FILE", ""),
		)
	} else {
		es = append(es, blank("FASTQ_FILE", ""))
	}
	return mapping(append(es,
		blank("RELATED_SAMPLE_TITLE", "TITLE of a NEW_SAMPLES entry (when submitting samples)"),
		blank("RELATED_SAMPLE_ACCESSION", "existing sample accession (otherwise)"),
	)...)
}

// Skeleton returns an empty submission document for the selected phases.
func Skeleton(opts SkeletonOptions) *yaml.Node {
	p := opts.Phases
	es := []entry{
		blank("STUDY", "study accession, e.g. PRJEB12345"),
		blank("METAGENOME_SCIENTIFIC_NAME", "e.g. soil metagenome"),
		blank("METAGENOME_TAXID", "e.g. 410658"),
		section("SEQUENCING_PLATFORMS", "e.g. [ILLUMINA]", seq()),
		blank("PROJECT_NAME", ""),
	}

	if p.Samples {
		es = append(es, section("NEW_SAMPLES", "one entry per biological sample",
			seq(mapping(append([]entry{blank("TITLE", "")}, sampleFields()...)...))))
	} else {
		es = append(es, section("SAMPLE_ACCESSIONS", "existing sample accessions", seq()))
	}

	if p.Reads {
		es = append(es,
			section("SINGLE_READS", "", seq(readFields(false))),
			section("PAIRED_END_READS", "", seq(readFields(true))),
		)
	}

	if p.Assembly || p.Bins || p.MAGs {
		as := []entry{
			blank("ASSEMBLY_NAME", ""),
			blank("ASSEMBLY_SOFTWARE", ""),
			blank("ISOLATION_SOURCE", ""),
		}
		if p.Assembly {
			as = append(as, blank("FASTA_FILE", ""))
			if !opts.CoverageFromBAM {
				as = append(as, blank("COVERAGE_VALUE", "mean coverage of the assembly"))
			}
		} else {
			as = append(as,
				blank("EXISTING_ASSEMBLY_ANALYSIS_ACCESSION", "set this one"),
				blank("EXISTING_CO_ASSEMBLY_SAMPLE_ACCESSION", "or this one"),
			)
		}
		as = append(as, sampleFields()...)
		es = append(es, section("ASSEMBLY", "", mapping(as...)))
	}

	if p.Bins || p.MAGs {
		bs := []entry{
			blank("BINS_DIRECTORY", "directory of bin fasta files"),
			blank("COMPLETENESS_SOFTWARE", ""),
			blank("QUALITY_FILE", "CheckM or CheckM2 quality table"),
			section("NCBI_TAXONOMY_FILES", "Bin_id/NCBI_taxonomy or GTDB majority vote tables", seq()),
			blank("MANUAL_TAXONOMY_FILE", "optional Bin_id/Scientific_name/Tax_id overrides"),
			blank("BINNING_SOFTWARE", ""),
		}
		if p.Bins && !opts.CoverageFromBAM {
			bs = append(bs, blank("COVERAGE_FILE", "Bin_id/Coverage table"))
		}
		bs = append(bs, section(KeyAdditional, "", mapping()))
		es = append(es, section("BINS", "", mapping(bs...)))
	}

	if p.MAGs {
		ms := []entry{blank("MAG_METADATA_FILE", "Bin_id, Quality_category and optional flatfile/chromosome/unlocalised paths")}
		if !opts.CoverageFromBAM {
			ms = append(ms, blank("COVERAGE_FILE", "Bin_id/Coverage table"))
		}
		ms = append(ms, section(KeyAdditional, "", mapping()))
		es = append(es, section("MAGS", "", mapping(ms...)))
	}

	if opts.CoverageFromBAM {
		es = append(es, section("BAM_FILES", "sorted alignments of reads against the assembly", seq()))
	}

	return &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{mapping(es...)}}
}

// WriteSkeleton encodes the skeleton to w.
func WriteSkeleton(w io.Writer, opts SkeletonOptions) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Skeleton(opts)); err != nil {
		return err
	}
	return enc.Close()
}
