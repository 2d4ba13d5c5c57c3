package pipeline

import (
	"context"
	"strings"

	"github.com/synum-dev/synum/api"
	"github.com/synum-dev/synum/internal/errors"
	"github.com/synum-dev/synum/internal/manifest"
	"github.com/synum-dev/synum/staging"
	"github.com/synum-dev/synum/webin"
)

// assemblyPhase submits the primary assembly, or resolves the sample of a
// pre-existing one for the bins and MAGs phases.
func (p *Pipeline) assemblyPhase(ctx context.Context) error {
	if !p.cfg.Phases.Assembly {
		return p.existingAssembly(ctx)
	}
	a := p.cfg.Assembly

	switch len(p.originSamples) {
	case 0:
		return errors.Config("the assembly has no origin sample")
	case 1:
		p.assemblySample = p.originSamples[0]
	default:
		v, err := p.coAssemblySample(ctx)
		if err != nil {
			return err
		}
		p.assemblySample = v
	}

	dir, err := p.area.Dir(staging.KindAssembly, a.Name)
	if err != nil {
		return err
	}
	fasta, err := p.area.Stage(a.FastaFile.Or(""), dir, "")
	if err != nil {
		return err
	}

	name := manifest.CapAssemblyName(a.Name)
	m, err := manifest.Genome{
		Study:        p.cfg.Study,
		Sample:       p.assemblySample,
		AssemblyName: name,
		AssemblyType: manifest.TypePrimary,
		Coverage:     p.assemblyCoverage,
		Program:      a.Software,
		Platform:     strings.Join(p.cfg.Platforms, ","),
		RunRef:       strings.Join(p.runAccessions, ","),
		Fasta:        fasta,
	}.Manifest()
	if err != nil {
		return errors.New(err).Category(errors.CategoryConfig).Build()
	}
	acc, err := p.submit(ctx, webin.ContextGenome, name, dir, m)
	if err != nil {
		return err
	}
	p.assemblyAnalysis = acc
	return nil
}

// coAssemblySample submits the virtual sample standing for an assembly of
// several origin samples.
func (p *Pipeline) coAssemblySample(ctx context.Context) (string, error) {
	a := p.cfg.Assembly
	attrs := []manifest.Attribute{
		{Tag: tagComposedOf, Value: strings.Join(p.originSamples, ",")},
		{Tag: tagCollectionDate, Value: a.CollectionDate.Or("")},
		{Tag: tagLocation, Value: a.Location.Or("")},
		{Tag: tagIsolationSource, Value: a.IsolationSource.Or("")},
	}
	sample := manifest.Sample{
		Alias:          p.aliases.Alias("coassembly", a.Name),
		Title:          a.Name,
		TaxID:          p.cfg.MetagenomeTaxID,
		ScientificName: p.cfg.MetagenomeScientificName,
		Attributes:     append(attrs, attributes(a.Attributes)...),
	}
	acc, err := p.dropBox(ctx, "coassembly", []manifest.Sample{sample})
	if err != nil {
		return "", err
	}
	return acc[sample.Alias], nil
}

// existingAssembly resolves the assembly sample from a pre-existing
// analysis or co-assembly sample accession.
func (p *Pipeline) existingAssembly(ctx context.Context) error {
	a := p.cfg.Assembly
	if acc, ok := a.ExistingCoAssemblySampleAccession.Get(); ok {
		p.assemblySample = acc
	} else if acc, ok := a.ExistingAnalysisAccession.Get(); ok {
		idCol := api.GetIDColumn(api.ResultAnalysis)
		q := api.NewQuery().Select(idCol, "sample_accession").Eq(idCol, acc).Limit(1)
		rows, err := p.archive.Search(ctx, api.ResultAnalysis, q)
		if err != nil {
			return err
		}
		if len(rows) == 0 || rows[0]["sample_accession"] == "" {
			return errors.Newf("assembly analysis %s was not found in the archive", acc).
				Category(errors.CategoryConfig).
				Context("field", "ASSEMBLY.EXISTING_ASSEMBLY_ANALYSIS_ACCESSION").
				Build()
		}
		p.assemblySample = strings.Split(rows[0]["sample_accession"], ";")[0]
	} else {
		return errors.Config("ASSEMBLY needs EXISTING_ASSEMBLY_ANALYSIS_ACCESSION or EXISTING_CO_ASSEMBLY_SAMPLE_ACCESSION")
	}

	if len(p.originSamples) == 0 {
		p.originSamples = []string{p.assemblySample}
	}
	p.logger.Info("using existing assembly", "sample", p.assemblySample, "origin_samples", len(p.originSamples))
	return nil
}
