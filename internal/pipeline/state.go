package pipeline

import (
	"fmt"

	"github.com/synum-dev/synum/staging"
)

// State is a step of a run. States only move forward; FAILED and COMPLETE
// are terminal.
type State int

const (
	StateInit State = iota
	StateModeValidated
	StatePreflightOK
	StateTaxResolved
	StateCoverageReady
	StateSamplesDone
	StateReadsDone
	StateAssemblyDone
	StateBinsDone
	StateMAGsDone
	StateComplete
	StateFailed
)

var stateNames = map[State]string{
	StateInit:          "INIT",
	StateModeValidated: "MODE_VALIDATED",
	StatePreflightOK:   "PREFLIGHT_OK",
	StateTaxResolved:   "TAX_RESOLVED",
	StateCoverageReady: "COVERAGE_READY",
	StateSamplesDone:   "SAMPLES_DONE",
	StateReadsDone:     "READS_DONE",
	StateAssemblyDone:  "ASSEMBLY_DONE",
	StateBinsDone:      "BINS_DONE",
	StateMAGsDone:      "MAGS_DONE",
	StateComplete:      "COMPLETE",
	StateFailed:        "FAILED",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// advance moves the run to next. Any state may fail; otherwise next must
// come after the current state.
func (p *Pipeline) advance(next State) error {
	cur := p.state
	if cur.Terminal() {
		return fmt.Errorf("run already %s", cur)
	}
	if next != StateFailed && next <= cur {
		return fmt.Errorf("illegal transition %s -> %s", cur, next)
	}
	p.state = next
	p.history = append(p.history, next)
	p.logger.Debug("state", "from", cur, "to", next)
	return nil
}

// AliasTable records the name behind every drop-box alias of a run.
// Aliases carry the run id so that reruns never collide.
type AliasTable struct {
	runID string
	names map[string]string
}

// NewAliasTable creates a table for runID.
func NewAliasTable(runID string) *AliasTable {
	return &AliasTable{runID: runID, names: make(map[string]string)}
}

// Alias returns the alias for name, registering it. Names that sanitize to
// an alias already held by another name get a numeric suffix.
func (t *AliasTable) Alias(kind, name string) string {
	base := kind + "_" + staging.SafeName(name)
	alias := base + "_" + t.runID
	for i := 2; ; i++ {
		if prev, ok := t.names[alias]; !ok || prev == name {
			break
		}
		alias = fmt.Sprintf("%s_%d_%s", base, i, t.runID)
	}
	t.names[alias] = name
	return alias
}

// Name returns the name registered for alias.
func (t *AliasTable) Name(alias string) (string, bool) {
	n, ok := t.names[alias]
	return n, ok
}
