package pipeline

import (
	"context"
	"math"
	"strconv"

	"github.com/synum-dev/synum/internal/cli"
	"github.com/synum-dev/synum/internal/coverage"
	"github.com/synum-dev/synum/internal/depth"
	"github.com/synum-dev/synum/internal/errors"
	"github.com/synum-dev/synum/staging"
)

func formatCoverage(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// prepareCoverage computes the coverage values of the assembly, bins and
// MAGs submitted by this run, either from alignments or from the values
// given in the document.
func (p *Pipeline) prepareCoverage(ctx context.Context) error {
	ph := p.cfg.Phases
	if !ph.Assembly && !ph.Bins && !ph.MAGs {
		return nil
	}
	if p.cfg.UsesBAM() {
		return p.coverageFromAlignments(ctx)
	}

	if ph.Assembly {
		v, ok := p.cfg.Assembly.Coverage.Get()
		if !ok {
			return errors.Config("ASSEMBLY.COVERAGE_VALUE is required without BAM_FILES")
		}
		p.assemblyCoverage = formatCoverage(v)
	}
	if ph.Bins {
		cov, err := p.coverageTable(p.cfg.Bins.CoverageFile.Or(""), "BINS.COVERAGE_FILE", p.binSet.Names())
		if err != nil {
			return err
		}
		p.binCoverage = cov
	}
	if ph.MAGs {
		cov, err := p.coverageTable(p.cfg.MAGs.CoverageFile.Or(""), "MAGS.COVERAGE_FILE", p.magNames())
		if err != nil {
			return err
		}
		p.magCoverage = cov
	}
	return nil
}

func (p *Pipeline) magNames() []string {
	out := make([]string, len(p.mags))
	for i, m := range p.mags {
		out[i] = m.Bin
	}
	return out
}

func (p *Pipeline) coverageTable(path, field string, names []string) (map[string]string, error) {
	if path == "" {
		return nil, errors.Config("%s is required without BAM_FILES", field)
	}
	table, err := coverage.ReadTable(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(names))
	for _, n := range names {
		v, ok := table[n]
		if !ok {
			return nil, errors.Coherence("%s has no coverage for bin %s", path, n)
		}
		out[n] = formatCoverage(v)
	}
	return out, nil
}

func (p *Pipeline) coverageFromAlignments(ctx context.Context) error {
	dir, err := p.area.KindDir(staging.KindDepth)
	if err != nil {
		return err
	}

	bams := p.cfg.BAMFiles
	bar := cli.NewProgress(len(bams), "depth", p.opts.Progress)
	if b, ok := p.backend.(*depth.BAMBackend); ok {
		b.OnDone = bar.Increment
	}
	files, err := p.backend.Produce(ctx, bams, dir)
	bar.Finish()
	if err != nil {
		return err
	}
	p.depthFiles = files

	bar = cli.NewProgress(len(files), "coverage", p.opts.Progress)
	profile, err := p.coverageReducer(bar.Increment).Load(ctx, files)
	bar.Finish()
	if err != nil {
		return err
	}

	if p.cfg.Phases.Assembly {
		p.assemblyCoverage = formatCoverage(profile.Mean(nil))
		p.logger.Info("assembly coverage", "coverage", p.assemblyCoverage, "depth_files", len(files))
	}
	perBin := func(names []string) (map[string]string, error) {
		out := make(map[string]string, len(names))
		for _, n := range names {
			b, ok := p.binSet.Get(n)
			if !ok {
				return nil, errors.Coherence("no bin file for %s", n)
			}
			contigs, err := coverage.ReadContigs(b.Path)
			if err != nil {
				return nil, err
			}
			out[n] = formatCoverage(profile.Mean(contigs))
			p.logger.Debug("bin coverage", "bin", n, "contigs", len(contigs), "coverage", out[n])
		}
		return out, nil
	}
	if p.cfg.Phases.Bins {
		if p.binCoverage, err = perBin(p.binSet.Names()); err != nil {
			return err
		}
	}
	if p.cfg.Phases.MAGs {
		if p.magCoverage, err = perBin(p.magNames()); err != nil {
			return err
		}
	}
	p.logger.Info("coverage ready", "depth_dir", dir)
	return nil
}
