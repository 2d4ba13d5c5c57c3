package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/synum-dev/synum/api"
	"github.com/synum-dev/synum/internal/cli"
	"github.com/synum-dev/synum/internal/config"
	"github.com/synum-dev/synum/internal/errors"
	"github.com/synum-dev/synum/internal/manifest"
)

// Sample attribute tags shared by the generated sample sets.
const (
	tagCollectionDate   = config.KeyCollectionDate
	tagLocation         = config.KeyLocation
	tagComposedOf       = "sample composed of"
	tagDerivedFrom      = "sample derived from"
	tagMetagenomeSource = "metagenomic source"
	tagIsolationSource  = "isolation_source"
	tagProjectName      = "project name"
	tagChecklist        = "ENA-CHECKLIST"
)

func attributes(in []config.Attribute) []manifest.Attribute {
	out := make([]manifest.Attribute, len(in))
	for i, a := range in {
		out[i] = manifest.Attribute{Tag: a.Tag, Value: a.Value}
	}
	return out
}

// dropBox submits samples as one sample set and returns the accession of
// each alias. The receipt is kept in the logging directory. In
// validate-only mode nothing is posted and every alias maps to itself.
func (p *Pipeline) dropBox(ctx context.Context, phase string, samples []manifest.Sample) (map[string]string, error) {
	sampleXML, err := manifest.SampleSetXML(samples)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%s sample set: %w", phase, err)).Category(errors.CategorySubmission).Build()
	}
	submissionXML, err := manifest.SubmissionXML(p.aliases.Alias("submission", phase), p.opts.HoldUntil)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%s submission: %w", phase, err)).Category(errors.CategorySubmission).Build()
	}

	dir := filepath.Join(p.opts.LoggingDir, ReceiptsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.IO(err, dir)
	}
	if err := os.WriteFile(filepath.Join(dir, phase+"_samples.xml"), sampleXML, 0o644); err != nil {
		return nil, errors.IO(err, dir)
	}

	if p.opts.ValidateOnly {
		p.logger.Warn("validate only: sample set not submitted, aliases stand in for accessions", "phase", phase, "samples", len(samples))
		out := make(map[string]string, len(samples))
		for _, s := range samples {
			out[s.Alias] = s.Alias
		}
		return out, nil
	}

	p.logger.Info("submitting sample set", "phase", phase, "samples", len(samples))
	raw, err := p.archive.DropBoxSubmit(ctx, submissionXML, sampleXML)
	if err != nil {
		return nil, err
	}
	receiptPath := filepath.Join(dir, phase+"_receipt.xml")
	if err := os.WriteFile(receiptPath, raw, 0o644); err != nil {
		return nil, errors.IO(err, receiptPath)
	}
	receipt, err := api.ParseReceipt(raw)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%s: %w", phase, err)).
			Category(errors.CategoryOf(err)).
			Context("receipt", receiptPath).
			Build()
	}

	accessions := receipt.SampleAccessions()
	out := make(map[string]string, len(samples))
	for _, s := range samples {
		acc, ok := accessions[s.Alias]
		if !ok {
			return nil, errors.Newf("%s receipt has no accession for %s", phase, s.Alias).
				Category(errors.CategorySubmission).
				Context("receipt", receiptPath).
				Build()
		}
		name, _ := p.aliases.Name(s.Alias)
		p.logger.Info("sample accessioned", "phase", phase, "name", name, "accession", acc)
		out[s.Alias] = acc
	}
	return out, nil
}

// samplesPhase submits the new samples, or verifies the given accessions.
func (p *Pipeline) samplesPhase(ctx context.Context) error {
	if !p.cfg.Phases.Samples {
		if len(p.cfg.SampleAccessions) == 0 {
			return nil
		}
		p.originSamples = p.cfg.SampleAccessions
		return p.verifySamples(ctx)
	}

	samples := make([]manifest.Sample, 0, len(p.cfg.NewSamples))
	for _, ns := range p.cfg.NewSamples {
		attrs := []manifest.Attribute{
			{Tag: tagCollectionDate, Value: ns.CollectionDate},
			{Tag: tagLocation, Value: ns.Location},
		}
		samples = append(samples, manifest.Sample{
			Alias:          p.aliases.Alias("sample", ns.Title),
			Title:          ns.Title,
			TaxID:          p.cfg.MetagenomeTaxID,
			ScientificName: p.cfg.MetagenomeScientificName,
			Attributes:     append(attrs, attributes(ns.Attributes)...),
		})
	}
	accessions, err := p.dropBox(ctx, "samples", samples)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(samples))
	for i, s := range samples {
		title := p.cfg.NewSamples[i].Title
		p.sampleAccessions[title] = accessions[s.Alias]
		p.originSamples = append(p.originSamples, accessions[s.Alias])
		rows = append(rows, []string{title, accessions[s.Alias]})
	}
	return p.writeSummary(SamplesTable, rows)
}

// verifySamples confirms that user-supplied sample accessions exist.
func (p *Pipeline) verifySamples(ctx context.Context) error {
	idCol := api.GetIDColumn(api.ResultSample)
	q := api.NewQuery().
		Select(idCol, "scientific_name").
		In(idCol, p.cfg.SampleAccessions...)
	rows, err := p.archive.Search(ctx, api.ResultSample, q)
	if err != nil {
		return err
	}
	found := make(map[string]string, len(rows))
	for _, r := range rows {
		found[r[idCol]] = r["scientific_name"]
	}
	for _, acc := range p.cfg.SampleAccessions {
		name, ok := found[acc]
		if !ok {
			return errors.Newf("sample %s was not found in the archive", acc).
				Category(errors.CategoryConfig).
				Context("field", "SAMPLE_ACCESSIONS").
				Build()
		}
		if !strings.EqualFold(name, p.cfg.MetagenomeScientificName) {
			p.logger.Warn("sample scientific name differs from METAGENOME_SCIENTIFIC_NAME",
				"sample", acc, "scientific_name", name, "expected", p.cfg.MetagenomeScientificName)
		}
	}
	return nil
}

// writeSummary writes a two-column name/accession table to the logging
// directory.
func (p *Pipeline) writeSummary(name string, rows [][]string) error {
	path := filepath.Join(p.opts.LoggingDir, name)
	if err := cli.WriteTable(path, nil, rows); err != nil {
		return errors.IO(fmt.Errorf("writing %s: %w", name, err), path)
	}
	p.logger.Info("wrote summary", "path", path, "rows", len(rows))
	return nil
}
