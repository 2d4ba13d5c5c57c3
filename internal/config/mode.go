package config

import (
	"strings"

	"github.com/synum-dev/synum/internal/errors"
)

// Phases is the set of enabled submission phases.
type Phases struct {
	Samples  bool
	Reads    bool
	Assembly bool
	Bins     bool
	MAGs     bool
}

// Mode renders the phases as letters, e.g. "SRAB".
func (p Phases) Mode() string {
	var b strings.Builder
	for _, x := range []struct {
		on     bool
		letter byte
	}{
		{p.Samples, 'S'}, {p.Reads, 'R'}, {p.Assembly, 'A'}, {p.Bins, 'B'}, {p.MAGs, 'M'},
	} {
		if x.on {
			b.WriteByte(x.letter)
		}
	}
	return b.String()
}

// Modes lists the accepted phase combinations.
var Modes = []string{"SRABM", "SRAB", "SRA", "RABM", "RAB", "RA", "ABM", "AB", "A", "BM", "B", "M"}

// ValidateMode fails with a config error citing the matrix unless p is an accepted mode.
func ValidateMode(p Phases) error {
	mode := p.Mode()
	for _, m := range Modes {
		if m == mode {
			return nil
		}
	}
	if mode == "" {
		mode = "(none)"
	}
	return errors.Newf("submission mode %s is not allowed; accepted modes (S=samples R=reads A=assembly B=bins M=MAGs): %s",
		mode, strings.Join(Modes, ", ")).
		Category(errors.CategoryConfig).
		Context("mode", mode).
		Build()
}

// NeedsCLI reports whether any phase drives the CLI submitter.
func (p Phases) NeedsCLI() bool {
	return p.Reads || p.Assembly || p.Bins || p.MAGs
}
