package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/synum-dev/synum/internal/cli"
	"github.com/synum-dev/synum/internal/config"
	"github.com/synum-dev/synum/internal/errors"
	"github.com/synum-dev/synum/internal/manifest"
	"github.com/synum-dev/synum/staging"
	"github.com/synum-dev/synum/webin"
)

// relatedSample returns the sample accession a read set refers to.
func (p *Pipeline) relatedSample(rs config.ReadSet) (string, error) {
	if title, ok := rs.RelatedSampleTitle.Get(); ok {
		acc, ok := p.sampleAccessions[title]
		if !ok {
			return "", errors.Config("read set %s: no sample titled %q was submitted", rs.Name, title)
		}
		return acc, nil
	}
	acc, ok := rs.RelatedSampleAccession.Get()
	if !ok {
		return "", errors.Config("read set %s has no related sample", rs.Name)
	}
	return acc, nil
}

// readsPhase stages and submits every read set.
func (p *Pipeline) readsPhase(ctx context.Context) error {
	sets := p.cfg.ReadSets()
	rows := make([][]string, 0, len(sets))
	bar := cli.NewProgress(len(sets), "reads", p.opts.Progress)
	defer bar.Finish()

	for _, rs := range sets {
		sample, err := p.relatedSample(rs)
		if err != nil {
			return err
		}
		dir, err := p.area.Dir(staging.KindReads, rs.Name)
		if err != nil {
			return err
		}
		var staged []string
		for _, f := range rs.Files {
			name, err := p.area.Stage(f, dir, "")
			if err != nil {
				return err
			}
			staged = append(staged, name)
		}

		m, err := manifest.Reads{
			Study:            p.cfg.Study,
			Sample:           sample,
			Name:             rs.Name,
			Instrument:       rs.Instrument,
			InsertSize:       rs.InsertSize,
			LibrarySource:    rs.LibrarySource,
			LibrarySelection: rs.LibrarySelection,
			LibraryStrategy:  rs.LibraryStrategy,
			Fastq:            staged,
		}.Manifest()
		if err != nil {
			return errors.New(err).Category(errors.CategoryConfig).Build()
		}

		acc, err := p.submit(ctx, webin.ContextReads, rs.Name, dir, m)
		if err != nil {
			return err
		}
		p.runsByName[rs.Name] = acc
		p.runAccessions = append(p.runAccessions, acc)
		rows = append(rows, []string{rs.Name, acc})
		bar.Increment()
	}
	return p.writeSummary(ReadsTable, rows)
}

// submit writes m into dir and runs the CLI submitter on it. In
// validate-only mode the artifact is validated and its name stands in for
// the accession.
func (p *Pipeline) submit(ctx context.Context, c webin.Context, name, dir string, m *manifest.Manifest) (string, error) {
	path := filepath.Join(dir, staging.ManifestName)
	if err := m.Write(path); err != nil {
		return "", errors.IO(fmt.Errorf("writing manifest: %w", err), path)
	}
	req := webin.Request{
		Context:   c,
		Name:      name,
		InputDir:  dir,
		OutputDir: filepath.Join(dir, "out"),
		Manifest:  path,
	}

	if p.opts.ValidateOnly {
		if err := p.submitter.Validate(ctx, req); err != nil {
			return "", err
		}
		p.logger.Info("validated", "context", c, "name", name)
		return name, nil
	}

	res, err := p.submitter.Submit(ctx, req)
	if err != nil {
		return "", err
	}
	p.logger.Info("submitted", "context", c, "name", name, "accession", res.Accession, "receipt", res.ReceiptPath)
	return res.Accession, nil
}
