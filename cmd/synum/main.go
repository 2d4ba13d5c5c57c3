// Command synum submits metagenomic samples, reads, assemblies, bins and
// MAGs to the European Nucleotide Archive.
//
// Usage:
//
//	synum submit --config cfg.yaml --staging_dir stage --logging_dir logs [phase flags]
//	synum makecfg [phase flags] [-o cfg.yaml]
//	synum download_webin [--webin_jar path]
//
// Phase flags select what a run submits: --submit_samples, --submit_reads,
// --submit_assembly, --submit_bins and --submit_mags. Credentials are read
// from ENA_USER and ENA_PASSWORD. Every submit flag may also be given as a
// SYNUM_<FLAG> environment variable, e.g. SYNUM_THREADS=8.
//
// Examples:
//
//	# Write a config skeleton for a bins-only submission
//	synum makecfg --submit_bins -o bins.yaml
//
//	# Validate the bins against the test service without creating objects
//	synum submit --config bins.yaml --staging_dir stage --logging_dir logs --submit_bins --validate_only
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/synum-dev/synum/internal/errors"
)

// EnvPrefix prefixes the environment variables that stand in for flags.
const EnvPrefix = "SYNUM"

var rootCmd = &cobra.Command{
	Use:           "synum",
	Short:         "Submit metagenomic data to the European Nucleotide Archive",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(submitCmd, makecfgCmd, downloadCmd)
}

// bindEnv fills every flag the user did not set from its SYNUM_ variable.
func bindEnv(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}
		if val := v.GetString(f.Name); val != f.DefValue {
			if serr := cmd.Flags().Set(f.Name, val); serr != nil {
				err = errors.Config("%s_%s: %v", EnvPrefix, strings.ToUpper(f.Name), serr)
			}
		}
	})
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR [%s] %v\n", errors.CategoryOf(err), err)
		os.Exit(errors.ExitCode(err))
	}
}
