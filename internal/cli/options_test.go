package cli

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func TestAddSubmitFlags(t *testing.T) {
	cmd := &cobra.Command{}
	opts := &SubmitOptions{}

	AddSubmitFlags(cmd, opts)

	flags := []string{
		"config", "staging_dir", "logging_dir", "verbosity", "development_service",
		"threads", "keep_depth_files", "submit_samples", "submit_reads",
		"submit_assembly", "submit_bins", "submit_mags", "hold_until",
		"validate_only", "webin_jar",
	}
	for _, name := range flags {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("flag %q not found", name)
		}
	}

	if err := cmd.Flags().Parse([]string{"--submit_bins", "--verbosity", "2", "--development_service", "0"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !opts.SubmitBins || opts.SubmitMAGs {
		t.Errorf("phase toggles = bins:%v mags:%v", opts.SubmitBins, opts.SubmitMAGs)
	}
	if opts.Verbosity != 2 {
		t.Errorf("Verbosity = %d, want 2", opts.Verbosity)
	}
	if opts.Test() {
		t.Error("Test() should be false for --development_service 0")
	}
}

func TestSubmitOptions_Validate(t *testing.T) {
	future := time.Now().AddDate(0, 1, 0).Format(time.DateOnly)

	tests := []struct {
		name    string
		opts    SubmitOptions
		wantErr bool
	}{
		{"defaults", SubmitOptions{Verbosity: 1, DevelopmentService: 1, Threads: 4}, false},
		{"bad verbosity", SubmitOptions{Verbosity: 3, DevelopmentService: 1, Threads: 4}, true},
		{"bad service", SubmitOptions{Verbosity: 1, DevelopmentService: 2, Threads: 4}, true},
		{"zero threads", SubmitOptions{Verbosity: 1, DevelopmentService: 1, Threads: 0}, true},
		{"hold future", SubmitOptions{Verbosity: 1, Threads: 1, HoldUntil: future}, false},
		{"hold past", SubmitOptions{Verbosity: 1, Threads: 1, HoldUntil: "2001-01-01"}, true},
		{"hold malformed", SubmitOptions{Verbosity: 1, Threads: 1, HoldUntil: "next week"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddMakecfgFlags(t *testing.T) {
	cmd := &cobra.Command{}
	opts := &MakecfgOptions{}

	AddMakecfgFlags(cmd, opts)

	if cmd.Flags().ShorthandLookup("o") == nil {
		t.Error("short flag o not found")
	}
	if cmd.Flags().Lookup("coverage_from_bam") == nil {
		t.Error("coverage_from_bam flag not found")
	}
}
