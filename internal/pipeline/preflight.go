package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"slices"

	"github.com/synum-dev/synum/internal/bins"
	"github.com/synum-dev/synum/internal/errors"
	"github.com/synum-dev/synum/internal/taxonomy"
	"github.com/synum-dev/synum/staging"
)

// preflight checks everything that can fail without the network: working
// directories, the submitter runtime, input files and bin coherence.
func (p *Pipeline) preflight(context.Context) error {
	if err := staging.EnsureDistinct(p.opts.StagingDir, p.opts.LoggingDir); err != nil {
		return err
	}
	if err := staging.EnsureEmptyDir(p.opts.StagingDir); err != nil {
		return err
	}
	if err := ensureOnlyLog(p.opts.LoggingDir, p.opts.LogFile); err != nil {
		return err
	}

	if p.cfg.Phases.NeedsCLI() {
		if c, ok := p.submitter.(Checker); ok {
			if err := c.Check(); err != nil {
				return err
			}
		}
	}

	for _, in := range p.cfg.InputFiles() {
		info, err := os.Stat(in.Path)
		if err != nil {
			return errors.Newf("%s: %s does not exist", in.Field, in.Path).
				Category(errors.CategoryPreflight).
				Context("path", in.Path).
				Build()
		}
		if in.Dir != info.IsDir() {
			kind := "a file"
			if in.Dir {
				kind = "a directory"
			}
			return errors.Preflight("%s: %s is not %s", in.Field, in.Path, kind)
		}
	}

	if p.cfg.Bins != nil {
		if err := p.loadBins(); err != nil {
			return err
		}
	}
	p.logger.Info("preflight passed", "inputs", len(p.cfg.InputFiles()))
	return nil
}

// ensureOnlyLog requires dir to be empty apart from logFile, the log this
// run opened there.
func ensureOnlyLog(dir, logFile string) error {
	if logFile == "" || filepath.Clean(filepath.Dir(logFile)) != filepath.Clean(dir) {
		return staging.EnsureEmptyDir(dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Preflight("logging directory %s does not exist", dir)
	}
	for _, e := range entries {
		if e.Name() != filepath.Base(logFile) {
			return errors.Newf("directory %s is not empty", dir).
				Category(errors.CategoryPreflight).
				Context("entry", e.Name()).
				Build()
		}
	}
	return nil
}

// loadBins reads the bin directory with its quality and taxonomy tables and
// checks that they agree.
func (p *Pipeline) loadBins() error {
	b := p.cfg.Bins
	set, err := bins.Scan(b.Directory)
	if err != nil {
		return err
	}
	quality, err := bins.ReadQuality(b.QualityFile)
	if err != nil {
		return err
	}

	p.classifications = make(map[string]taxonomy.Classification)
	for _, f := range b.NCBITaxonomyFiles {
		c, err := taxonomy.ReadNCBI(f)
		if err != nil {
			return err
		}
		for bin, cl := range c {
			p.classifications[bin] = cl
		}
	}
	if path, ok := b.ManualTaxonomyFile.Get(); ok {
		if p.manualTaxa, err = taxonomy.ReadManual(path); err != nil {
			return err
		}
	}

	named := make([]string, 0, len(p.classifications)+len(p.manualTaxa))
	for bin := range p.classifications {
		named = append(named, bin)
	}
	for bin := range p.manualTaxa {
		if _, dup := p.classifications[bin]; !dup {
			named = append(named, bin)
		}
	}
	slices.Sort(named)

	if err := set.Check(quality, named); err != nil {
		return err
	}

	if p.cfg.MAGs != nil {
		mags, err := bins.ReadMAGs(p.cfg.MAGs.MetadataFile)
		if err != nil {
			return err
		}
		if err := set.CheckMAGs(mags); err != nil {
			return err
		}
		p.mags = mags
	}
	p.binSet = set
	p.logger.Info("bins checked", "dir", b.Directory, "bins", len(set.Bins), "mags", len(p.mags))
	return nil
}

// targetBins are the bins whose taxonomy and coverage the run needs.
func (p *Pipeline) targetBins() []string {
	if p.cfg.Phases.Bins {
		return p.binSet.Names()
	}
	return p.magNames()
}

func (p *Pipeline) resolveTaxonomy(ctx context.Context) error {
	r := taxonomy.NewResolver(p.archive,
		taxonomy.WithRateLimit(p.opts.RateLimit),
		taxonomy.WithLogger(p.logger.With("component", "taxonomy")))
	taxa, err := r.Resolve(ctx, p.targetBins(), p.manualTaxa, p.classifications)
	if err != nil {
		return err
	}
	p.taxa = taxa
	return nil
}
