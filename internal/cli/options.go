// Package cli provides utilities for the synum command line.
//
// It holds the submit flag set, tab-delimited I/O used for every table the
// pipeline reads or writes, and a progress wrapper for long-running work.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

// DefaultWebinJar returns the default location of the Webin CLI JAR.
func DefaultWebinJar() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "webin-cli.jar"
	}
	return filepath.Join(home, ".synum", "webin-cli.jar")
}

// SubmitOptions contains the options of the submit subcommand.
type SubmitOptions struct {
	// Config is the path of the YAML configuration document
	Config string

	// StagingDir receives per-artifact directories; must be empty
	StagingDir string

	// LoggingDir receives synum.log, receipts and summary tables; must be empty
	LoggingDir string

	// Verbosity selects the console level (0, 1 or 2)
	Verbosity int

	// DevelopmentService selects the archive test service when 1
	DevelopmentService int

	// Threads bounds the parallel depth regions
	Threads int

	// KeepDepthFiles retains depth files after the run
	KeepDepthFiles bool

	// Phase toggles
	SubmitSamples  bool
	SubmitReads    bool
	SubmitAssembly bool
	SubmitBins     bool
	SubmitMAGs     bool

	// HoldUntil is an optional YYYY-MM-DD release date
	HoldUntil string

	// ValidateOnly runs the CLI submitter in validate mode and skips drop-box submissions
	ValidateOnly bool

	// WebinJar is the path of the Webin CLI JAR
	WebinJar string
}

// AddSubmitFlags adds the submit flags to a cobra command.
func AddSubmitFlags(cmd *cobra.Command, opts *SubmitOptions) {
	flags := cmd.Flags()

	flags.StringVar(&opts.Config, "config", "", "path to the YAML submission config")
	flags.StringVar(&opts.StagingDir, "staging_dir", "", "empty directory for staged submission files")
	flags.StringVar(&opts.LoggingDir, "logging_dir", "", "empty directory for the log, receipts and summaries")
	flags.IntVar(&opts.Verbosity, "verbosity", 1, "console verbosity (0, 1 or 2)")
	flags.IntVar(&opts.DevelopmentService, "development_service", 1, "submit to the test service (1) or production (0)")
	flags.IntVar(&opts.Threads, "threads", runtime.NumCPU(), "worker bound for depth extraction and coverage")
	flags.BoolVar(&opts.KeepDepthFiles, "keep_depth_files", false, "do not delete depth files after the run")

	flags.BoolVar(&opts.SubmitSamples, "submit_samples", false, "submit biological samples")
	flags.BoolVar(&opts.SubmitReads, "submit_reads", false, "submit read sets")
	flags.BoolVar(&opts.SubmitAssembly, "submit_assembly", false, "submit the primary assembly")
	flags.BoolVar(&opts.SubmitBins, "submit_bins", false, "submit metagenomic bins")
	flags.BoolVar(&opts.SubmitMAGs, "submit_mags", false, "submit metagenome-assembled genomes")

	flags.StringVar(&opts.HoldUntil, "hold_until", "", "keep objects private until YYYY-MM-DD")
	flags.BoolVar(&opts.ValidateOnly, "validate_only", false, "validate artifacts without submitting them")
	flags.StringVar(&opts.WebinJar, "webin_jar", DefaultWebinJar(), "path to the Webin CLI JAR")

	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("staging_dir")
	_ = cmd.MarkFlagRequired("logging_dir")
}

// Validate checks value ranges that pflag cannot express.
func (o *SubmitOptions) Validate() error {
	if o.Verbosity < 0 || o.Verbosity > 2 {
		return fmt.Errorf("--verbosity must be 0, 1 or 2, got %d", o.Verbosity)
	}
	if o.DevelopmentService != 0 && o.DevelopmentService != 1 {
		return fmt.Errorf("--development_service must be 0 or 1, got %d", o.DevelopmentService)
	}
	if o.Threads < 1 {
		return fmt.Errorf("--threads must be at least 1, got %d", o.Threads)
	}
	if o.HoldUntil != "" {
		hold, err := time.Parse(time.DateOnly, o.HoldUntil)
		if err != nil {
			return fmt.Errorf("--hold_until must be YYYY-MM-DD: %w", err)
		}
		if !hold.After(time.Now()) {
			return fmt.Errorf("--hold_until must be in the future, got %s", o.HoldUntil)
		}
	}
	return nil
}

// Test reports whether the test service is selected.
func (o *SubmitOptions) Test() bool {
	return o.DevelopmentService == 1
}

// MakecfgOptions selects the sections emitted by makecfg.
type MakecfgOptions struct {
	Output          string
	SubmitSamples   bool
	SubmitReads     bool
	SubmitAssembly  bool
	SubmitBins      bool
	SubmitMAGs      bool
	CoverageFromBAM bool
}

// AddMakecfgFlags adds the makecfg flags to a cobra command.
func AddMakecfgFlags(cmd *cobra.Command, opts *MakecfgOptions) {
	flags := cmd.Flags()

	flags.StringVarP(&opts.Output, "output", "o", "", "output file (default: stdout)")
	flags.BoolVar(&opts.SubmitSamples, "submit_samples", false, "include the NEW_SAMPLES section")
	flags.BoolVar(&opts.SubmitReads, "submit_reads", false, "include the read sections")
	flags.BoolVar(&opts.SubmitAssembly, "submit_assembly", false, "include the ASSEMBLY section")
	flags.BoolVar(&opts.SubmitBins, "submit_bins", false, "include the BINS section")
	flags.BoolVar(&opts.SubmitMAGs, "submit_mags", false, "include the MAGS section")
	flags.BoolVar(&opts.CoverageFromBAM, "coverage_from_bam", false, "derive coverage from BAM_FILES")
}
