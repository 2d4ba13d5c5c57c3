package pipeline

import (
	"context"
	"strconv"
	"strings"

	"github.com/synum-dev/synum/internal/bins"
	"github.com/synum-dev/synum/internal/cli"
	"github.com/synum-dev/synum/internal/errors"
	"github.com/synum-dev/synum/internal/manifest"
	"github.com/synum-dev/synum/staging"
	"github.com/synum-dev/synum/webin"
)

// Sample checklists of binned metagenomes and MAGs.
const (
	checklistBins = "ERC000050"
	checklistMAGs = "ERC000047"
)

// genomeSample builds the virtual sample of a bin or MAG.
func (p *Pipeline) genomeSample(kind string, b bins.Bin, checklist string, extra ...manifest.Attribute) manifest.Sample {
	a := p.cfg.Assembly
	cb := p.cfg.Bins
	t := p.taxa[b.Name]
	attrs := []manifest.Attribute{
		{Tag: tagChecklist, Value: checklist},
		{Tag: tagProjectName, Value: p.cfg.ProjectName.Or("")},
		{Tag: "sequencing method", Value: strings.Join(p.cfg.Platforms, ",")},
		{Tag: "assembly software", Value: a.Software},
		{Tag: "completeness score", Value: strconv.FormatFloat(b.Completeness, 'f', -1, 64), Units: "%"},
		{Tag: "completeness software", Value: cb.CompletenessSoftware},
		{Tag: "contamination score", Value: strconv.FormatFloat(b.Contamination, 'f', -1, 64), Units: "%"},
		{Tag: "binning software", Value: cb.BinningSoftware},
		{Tag: "taxonomic identity marker", Value: "multi-marker approach"},
		{Tag: tagIsolationSource, Value: a.IsolationSource.Or("")},
		{Tag: tagCollectionDate, Value: a.CollectionDate.Or("")},
		{Tag: tagLocation, Value: a.Location.Or("")},
		{Tag: tagMetagenomeSource, Value: p.cfg.MetagenomeScientificName},
	}
	attrs = append(attrs, extra...)
	attrs = append(attrs, attributes(cb.Attributes)...)
	return manifest.Sample{
		Alias:          p.aliases.Alias(kind, b.Name),
		Title:          genomeName(a.Name, b.Name),
		TaxID:          t.TaxID,
		ScientificName: t.ScientificName,
		Attributes:     attrs,
	}
}

func genomeName(assembly, bin string) string {
	return staging.SafeName(assembly) + "_" + bin
}

// submitGenomeSamples posts one sample per name and returns the accession
// of each name, read back through the alias table.
func (p *Pipeline) submitGenomeSamples(ctx context.Context, phase string, samples []manifest.Sample) (map[string]string, error) {
	byAlias, err := p.dropBox(ctx, phase, samples)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(byAlias))
	for alias, acc := range byAlias {
		name, ok := p.aliases.Name(alias)
		if !ok {
			return nil, errors.Submission("%s receipt returned unknown alias %s", phase, alias)
		}
		out[name] = acc
	}
	return out, nil
}

// binsPhase submits one virtual sample per bin, then each bin through the
// CLI submitter.
func (p *Pipeline) binsPhase(ctx context.Context) error {
	samples := make([]manifest.Sample, 0, len(p.binSet.Bins))
	for _, b := range p.binSet.Bins {
		samples = append(samples, p.genomeSample("bin", b, checklistBins,
			manifest.Attribute{Tag: tagDerivedFrom, Value: p.assemblySample}))
	}
	accessions, err := p.submitGenomeSamples(ctx, "bins", samples)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(p.binSet.Bins))
	bar := cli.NewProgress(len(p.binSet.Bins), "bins", p.opts.Progress)
	defer bar.Finish()
	for _, b := range p.binSet.Bins {
		p.binSamples[b.Name] = accessions[b.Name]
		dir, err := p.area.Dir(staging.KindBins, b.Name)
		if err != nil {
			return err
		}
		fasta, err := p.area.Stage(b.Path, dir, "")
		if err != nil {
			return err
		}
		name := manifest.CapAssemblyName(genomeName(p.cfg.Assembly.Name, b.Name))
		m, err := manifest.Genome{
			Study:        p.cfg.Study,
			Sample:       accessions[b.Name],
			AssemblyName: name,
			AssemblyType: manifest.TypeBinned,
			Coverage:     p.binCoverage[b.Name],
			Program:      p.cfg.Assembly.Software,
			Platform:     strings.Join(p.cfg.Platforms, ","),
			Fasta:        fasta,
		}.Manifest()
		if err != nil {
			return errors.New(err).Category(errors.CategoryConfig).Build()
		}
		acc, err := p.submit(ctx, webin.ContextGenome, name, dir, m)
		if err != nil {
			return err
		}
		p.binAnalyses[b.Name] = acc
		rows = append(rows, []string{b.Name, acc})
		bar.Increment()
	}
	return p.writeSummary(BinsTable, rows)
}

// magsPhase submits one virtual sample per MAG, then each MAG through the
// CLI submitter.
func (p *Pipeline) magsPhase(ctx context.Context) error {
	derivedFrom := strings.Join(p.originSamples, ",")
	samples := make([]manifest.Sample, 0, len(p.mags))
	for _, mag := range p.mags {
		b, _ := p.binSet.Get(mag.Bin)
		samples = append(samples, p.genomeSample("mag", b, checklistMAGs,
			manifest.Attribute{Tag: tagDerivedFrom, Value: derivedFrom},
			manifest.Attribute{Tag: "assembly quality", Value: mag.Quality.Literal()}))
	}
	accessions, err := p.submitGenomeSamples(ctx, "mags", samples)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(p.mags))
	bar := cli.NewProgress(len(p.mags), "mags", p.opts.Progress)
	defer bar.Finish()
	for _, mag := range p.mags {
		b, _ := p.binSet.Get(mag.Bin)
		p.magSamples[mag.Bin] = accessions[mag.Bin]
		dir, err := p.area.Dir(staging.KindMAGs, mag.Bin)
		if err != nil {
			return err
		}

		g := manifest.Genome{
			Study:        p.cfg.Study,
			Sample:       accessions[mag.Bin],
			AssemblyType: manifest.TypeMAG,
			Coverage:     p.magCoverage[mag.Bin],
			Program:      p.cfg.Assembly.Software,
			Platform:     strings.Join(p.cfg.Platforms, ","),
		}
		if mag.Flatfile != "" {
			g.Flatfile, err = p.area.Stage(mag.Flatfile, dir, "")
		} else {
			g.Fasta, err = p.area.Stage(b.Path, dir, "")
		}
		if err != nil {
			return err
		}
		if mag.Chromosomes != "" {
			if g.ChromosomeList, err = p.area.Stage(mag.Chromosomes, dir, ""); err != nil {
				return err
			}
		}
		if mag.Unlocalised != "" {
			if g.UnlocalisedList, err = p.area.Stage(mag.Unlocalised, dir, ""); err != nil {
				return err
			}
		}

		name := manifest.CapAssemblyName(genomeName(p.cfg.Assembly.Name, mag.Bin) + "_MAG")
		g.AssemblyName = name
		m, err := g.Manifest()
		if err != nil {
			return errors.New(err).Category(errors.CategoryConfig).Build()
		}
		acc, err := p.submit(ctx, webin.ContextGenome, name, dir, m)
		if err != nil {
			return err
		}
		p.magAnalyses[mag.Bin] = acc
		rows = append(rows, []string{mag.Bin, acc})
		bar.Increment()
	}
	return p.writeSummary(MAGsTable, rows)
}
