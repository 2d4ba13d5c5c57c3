package cli

import (
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Progress wraps schollz/progressbar; a nil bar makes every call a no-op.
type Progress struct {
	bar *progressbar.ProgressBar
}

// NewProgress returns a progress bar on stderr when enabled is true and
// stderr is a terminal; otherwise a silent tracker.
func NewProgress(total int, description string, enabled bool) *Progress {
	if !enabled || !term.IsTerminal(int(os.Stderr.Fd())) {
		return &Progress{}
	}
	return newProgress(os.Stderr, total, description)
}

func newProgress(w io.Writer, total int, description string) *Progress {
	opts := []progressbar.Option{
		progressbar.OptionSetWriter(w),
		progressbar.OptionThrottle(250 * time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
	}
	if total > 0 {
		opts = append(opts,
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetPredictTime(true),
		)
		return &Progress{bar: progressbar.NewOptions(total, opts...)}
	}
	opts = append(opts, progressbar.OptionSpinnerType(14))
	return &Progress{bar: progressbar.NewOptions(-1, opts...)}
}

// Increment advances the bar by one.
func (p *Progress) Increment() {
	if p == nil || p.bar == nil {
		return
	}
	_ = p.bar.Add(1)
}

// Finish completes the bar.
func (p *Progress) Finish() {
	if p == nil || p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}
