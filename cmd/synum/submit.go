package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/synum-dev/synum/api"
	"github.com/synum-dev/synum/auth"
	"github.com/synum-dev/synum/internal/cli"
	"github.com/synum-dev/synum/internal/config"
	"github.com/synum-dev/synum/internal/errors"
	"github.com/synum-dev/synum/internal/logging"
	"github.com/synum-dev/synum/internal/pipeline"
	"github.com/synum-dev/synum/staging"
	"github.com/synum-dev/synum/webin"
)

var submitOpts cli.SubmitOptions

var submitCmd = &cobra.Command{
	Use:   "submit --config FILE --staging_dir DIR --logging_dir DIR [phase flags]",
	Short: "Run a submission",
	Long: `Run a submission of the phases selected by the --submit_* flags.

Accepted phase combinations (S=samples R=reads A=assembly B=bins M=MAGs):
SRABM, SRAB, SRA, RABM, RAB, RA, ABM, AB, A, BM, B, M.

The staging and logging directories must exist and be empty. The logging
directory receives the run log, the drop-box receipts and one accession
table per phase.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindEnv(cmd)
	},
	RunE: runSubmit,
}

func init() {
	cli.AddSubmitFlags(submitCmd, &submitOpts)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	opts := submitOpts
	if err := opts.Validate(); err != nil {
		return errors.New(err).Category(errors.CategoryConfig).Build()
	}

	if err := staging.EnsureEmptyDir(opts.LoggingDir); err != nil {
		return err
	}
	sink, err := logging.Open(opts.LoggingDir, cmd.ErrOrStderr(), opts.Verbosity)
	if err != nil {
		return errors.IO(err, opts.LoggingDir)
	}
	defer sink.Close()
	logger := sink.Logger

	phases := config.Phases{
		Samples:  opts.SubmitSamples,
		Reads:    opts.SubmitReads,
		Assembly: opts.SubmitAssembly,
		Bins:     opts.SubmitBins,
		MAGs:     opts.SubmitMAGs,
	}
	cfg, err := config.Load(opts.Config, phases)
	if err != nil {
		logger.Error("invalid config", "path", opts.Config, "category", errors.CategoryOf(err), "error", err)
		return err
	}

	creds, err := auth.GetCredentials()
	if err != nil {
		logger.Error("missing credentials", "error", err)
		return err
	}

	client := api.NewClient(
		api.WithDevelopmentService(opts.Test()),
		api.WithCredentials(creds.Username, creds.Password),
		api.WithLogger(logger.With("component", "api")),
	)
	javaOpts := []webin.Option{
		webin.WithTest(opts.Test()),
		webin.WithLogger(logger.With("component", "webin")),
	}
	if java := os.Getenv(EnvPrefix + "_JAVA"); java != "" {
		javaOpts = append(javaOpts, webin.WithJava(java))
	}
	submitter := webin.New(opts.WebinJar, creds, javaOpts...)

	if !opts.Test() {
		logger.Warn("submitting to the production service")
	}

	p := pipeline.New(cfg, client, submitter, pipeline.Options{
		StagingDir:     opts.StagingDir,
		LoggingDir:     opts.LoggingDir,
		LogFile:        sink.Path,
		Threads:        opts.Threads,
		KeepDepthFiles: opts.KeepDepthFiles,
		HoldUntil:      opts.HoldUntil,
		ValidateOnly:   opts.ValidateOnly,
		Progress:       opts.Verbosity > 0,
	}, pipeline.WithLogger(logger))

	if err := p.Run(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s complete, summaries in %s\n", p.RunID(), opts.LoggingDir)
	return nil
}
