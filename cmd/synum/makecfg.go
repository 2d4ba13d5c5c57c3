package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/synum-dev/synum/internal/cli"
	"github.com/synum-dev/synum/internal/config"
	"github.com/synum-dev/synum/internal/errors"
)

var makecfgOpts cli.MakecfgOptions

var makecfgCmd = &cobra.Command{
	Use:   "makecfg [phase flags] [-o FILE]",
	Short: "Write a config skeleton for the selected phases",
	Args:  cobra.NoArgs,
	RunE:  runMakecfg,
}

func init() {
	cli.AddMakecfgFlags(makecfgCmd, &makecfgOpts)
}

func runMakecfg(cmd *cobra.Command, args []string) error {
	o := makecfgOpts
	phases := config.Phases{
		Samples:  o.SubmitSamples,
		Reads:    o.SubmitReads,
		Assembly: o.SubmitAssembly,
		Bins:     o.SubmitBins,
		MAGs:     o.SubmitMAGs,
	}
	if err := config.ValidateMode(phases); err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if o.Output != "" {
		f, err := os.Create(o.Output)
		if err != nil {
			return errors.IO(err, o.Output)
		}
		defer f.Close()
		w = f
	}
	if err := config.WriteSkeleton(w, config.SkeletonOptions{Phases: phases, CoverageFromBAM: o.CoverageFromBAM}); err != nil {
		return errors.IO(err, o.Output)
	}
	return nil
}
