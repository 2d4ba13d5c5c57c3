package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synum-dev/synum/internal/cli"
	"github.com/synum-dev/synum/internal/errors"
	"github.com/synum-dev/synum/webin"
)

var (
	webinJar     string
	webinVersion string
)

var downloadCmd = &cobra.Command{
	Use:   "download_webin [--webin_jar PATH] [--version X.Y.Z]",
	Short: "Download the Webin CLI JAR",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindEnv(cmd)
	},
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVar(&webinJar, "webin_jar", cli.DefaultWebinJar(), "destination of the JAR")
	downloadCmd.Flags().StringVar(&webinVersion, "version", webin.DefaultVersion, "Webin CLI release")
}

func runDownload(cmd *cobra.Command, args []string) error {
	url := webin.ReleaseURL(webinVersion)
	if err := webin.Download(cmd.Context(), nil, url, webinJar, cmd.ErrOrStderr()); err != nil {
		return errors.New(err).Category(errors.CategoryNetwork).Context("url", url).Build()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Webin CLI %s saved to %s\n", webinVersion, webinJar)
	return nil
}
