// Package pipeline orchestrates a submission run.
//
// A run walks a fixed sequence of states. Each phase consumes only the
// accessions committed by earlier phases, and the first terminal error
// moves the run to FAILED without rolling anything back.
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/synum-dev/synum/api"
	"github.com/synum-dev/synum/internal/bins"
	"github.com/synum-dev/synum/internal/config"
	"github.com/synum-dev/synum/internal/coverage"
	"github.com/synum-dev/synum/internal/depth"
	"github.com/synum-dev/synum/internal/errors"
	"github.com/synum-dev/synum/internal/taxonomy"
	"github.com/synum-dev/synum/staging"
	"github.com/synum-dev/synum/webin"
)

// Archive is the subset of the archive client a run needs.
type Archive interface {
	DropBoxSubmit(ctx context.Context, submissionXML, sampleXML []byte) ([]byte, error)
	Search(ctx context.Context, resultType string, q *api.Query) ([]map[string]string, error)
	TaxonomySuggest(ctx context.Context, query string) ([]api.Suggestion, error)
}

// Checker is implemented by submitters that can verify their runtime.
type Checker interface {
	Check() error
}

// Options are the run-time settings of a run.
type Options struct {
	StagingDir string
	LoggingDir string
	// LogFile is the log this run already opened inside LoggingDir; it is
	// the only entry the logging directory may hold.
	LogFile        string
	Threads        int
	KeepDepthFiles bool
	// HoldUntil is a YYYY-MM-DD release date; empty releases immediately.
	HoldUntil    string
	ValidateOnly bool
	RateLimit    float64
	Progress     bool
}

// Summary table file names in the logging directory.
const (
	SamplesTable = "samples_to_accession.tsv"
	ReadsTable   = "reads_to_run_accession.tsv"
	BinsTable    = "bin_to_preliminary_accession.tsv"
	MAGsTable    = "mag_to_preliminary_accession.tsv"

	ReceiptsDir = "receipts"
)

// Pipeline runs one submission.
type Pipeline struct {
	cfg       *config.Config
	opts      Options
	archive   Archive
	submitter webin.Submitter
	backend   depth.Backend
	logger    *slog.Logger

	runID   string
	aliases *AliasTable
	area    *staging.Area

	state   State
	history []State

	// Inputs loaded at preflight.
	binSet          *bins.Set
	mags            []bins.MAG
	manualTaxa      map[string]taxonomy.Taxon
	classifications map[string]taxonomy.Classification

	// Results of earlier states.
	taxa             map[string]taxonomy.Taxon
	assemblyCoverage string
	binCoverage      map[string]string
	magCoverage      map[string]string
	depthFiles       []string

	sampleAccessions map[string]string // new sample title -> accession
	originSamples    []string
	runAccessions    []string
	runsByName       map[string]string
	assemblySample   string
	assemblyAnalysis string
	binSamples       map[string]string
	binAnalyses      map[string]string
	magSamples       map[string]string
	magAnalyses      map[string]string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the run's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithDepthBackend replaces the BAM depth backend.
func WithDepthBackend(b depth.Backend) Option {
	return func(p *Pipeline) {
		p.backend = b
	}
}

// WithRunID fixes the run id used in aliases.
func WithRunID(id string) Option {
	return func(p *Pipeline) {
		p.runID = id
	}
}

// New creates a run of cfg against archive and submitter.
func New(cfg *config.Config, archive Archive, submitter webin.Submitter, opts Options, options ...Option) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		opts:      opts,
		archive:   archive,
		submitter: submitter,
		logger:    slog.New(slog.DiscardHandler),
		runID:     uuid.NewString()[:8],

		sampleAccessions: make(map[string]string),
		runsByName:       make(map[string]string),
		binSamples:       make(map[string]string),
		binAnalyses:      make(map[string]string),
		magSamples:       make(map[string]string),
		magAnalyses:      make(map[string]string),
	}
	if p.opts.Threads < 1 {
		p.opts.Threads = 1
	}
	if p.opts.RateLimit <= 0 {
		p.opts.RateLimit = taxonomy.DefaultRateLimit
	}
	for _, o := range options {
		o(p)
	}
	p.logger = p.logger.With("component", "pipeline")
	if p.backend == nil {
		p.backend = &depth.BAMBackend{Threads: p.opts.Threads, Logger: p.logger}
	}
	p.aliases = NewAliasTable(p.runID)
	p.area = staging.New(opts.StagingDir, staging.WithWorkers(p.opts.Threads))
	return p
}

// State returns the current state.
func (p *Pipeline) State() State {
	return p.state
}

// History returns the states entered so far, in order.
func (p *Pipeline) History() []State {
	return append([]State(nil), p.history...)
}

// RunID returns the id suffixed to the run's aliases.
func (p *Pipeline) RunID() string {
	return p.runID
}

type step struct {
	state   State
	enabled bool
	run     func(context.Context) error
}

func (p *Pipeline) steps() []step {
	ph := p.cfg.Phases
	return []step{
		{StateModeValidated, true, p.validateMode},
		{StatePreflightOK, true, p.preflight},
		{StateTaxResolved, ph.Bins || ph.MAGs, p.resolveTaxonomy},
		{StateCoverageReady, ph.Assembly || ph.Bins || ph.MAGs, p.prepareCoverage},
		{StateSamplesDone, true, p.samplesPhase},
		{StateReadsDone, ph.Reads, p.readsPhase},
		{StateAssemblyDone, ph.Assembly || ph.Bins || ph.MAGs, p.assemblyPhase},
		{StateBinsDone, ph.Bins, p.binsPhase},
		{StateMAGsDone, ph.MAGs, p.magsPhase},
	}
}

// Run executes every enabled state in order. The returned error, if any,
// carries the category of the first terminal failure.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("starting run", "run_id", p.runID, "mode", p.cfg.Phases.Mode(),
		"staging_dir", p.opts.StagingDir, "logging_dir", p.opts.LoggingDir, "validate_only", p.opts.ValidateOnly)

	for _, s := range p.steps() {
		if !s.enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return p.fail(err)
		}
		if err := s.run(ctx); err != nil {
			return p.fail(err)
		}
		if err := p.advance(s.state); err != nil {
			return p.fail(err)
		}
	}

	if err := p.cleanup(); err != nil {
		return p.fail(err)
	}
	if err := p.advance(StateComplete); err != nil {
		return p.fail(err)
	}
	p.logger.Info("run complete", "run_id", p.runID)
	return nil
}

func (p *Pipeline) fail(err error) error {
	from := p.state
	_ = p.advance(StateFailed)

	attrs := []any{"state", from, "category", errors.CategoryOf(err), "error", err}
	var e *errors.Error
	if errors.As(err, &e) && len(e.Context) > 0 {
		attrs = append(attrs, "context", e.ContextString())
	}
	p.logger.Error("run failed", attrs...)
	return err
}

func (p *Pipeline) validateMode(context.Context) error {
	return config.ValidateMode(p.cfg.Phases)
}

// cleanup removes depth files unless they are kept.
func (p *Pipeline) cleanup() error {
	if len(p.depthFiles) == 0 || p.opts.KeepDepthFiles {
		return nil
	}
	p.logger.Info("removing depth files", "dir", filepath.Join(p.opts.StagingDir, staging.KindDepth))
	if err := p.area.Remove(staging.KindDepth); err != nil {
		return errors.IO(err, filepath.Join(p.opts.StagingDir, staging.KindDepth))
	}
	return nil
}

// coverageReducer returns the reducer used for depth files.
func (p *Pipeline) coverageReducer(progress func()) *coverage.Reducer {
	return &coverage.Reducer{Threads: p.opts.Threads, Logger: p.logger, OnDone: progress}
}
