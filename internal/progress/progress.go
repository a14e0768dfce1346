// Package progress renders a terminal progress bar over the per-tool
// deployment phase of a sync.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/confsync/confsync/internal/logging"
	"github.com/confsync/confsync/internal/ui"
)

// Bar tracks progress across a fixed number of tools. When the writer is
// not an interactive terminal, colors are off, or debug logging is active,
// it renders nothing, so piped output and logs stay clean.
type Bar struct {
	bar     *progressbar.ProgressBar
	enabled bool
	desc    string
}

// New creates a bar over total steps writing to w. A nil writer defaults
// to os.Stderr; a non-positive total disables the bar.
func New(total int, description string, w io.Writer) *Bar {
	if w == nil {
		w = os.Stderr
	}

	b := &Bar{
		enabled: total > 0 && shouldRender(w),
		desc:    description,
	}
	if !b.enabled {
		logging.Debug(fmt.Sprintf("%s started", description), logging.Count(total))
		return b
	}

	b.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(15),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionEnableColorCodes(ui.IsColorEnabled()),
	)
	return b
}

// Describe updates the text shown next to the bar.
func (b *Bar) Describe(desc string) {
	b.desc = desc
	if !b.enabled {
		return
	}
	b.bar.Describe(desc)
}

// Step advances the bar by one tool.
func (b *Bar) Step() {
	if !b.enabled {
		return
	}
	_ = b.bar.Add(1)
}

// Finish completes the bar regardless of how many steps were taken.
func (b *Bar) Finish() {
	if !b.enabled {
		logging.Debug(fmt.Sprintf("%s completed", b.desc))
		return
	}
	_ = b.bar.Finish()
}

// shouldRender reports whether a live bar makes sense for w: colors on,
// a character device, and no debug logging to interleave with.
func shouldRender(w io.Writer) bool {
	if !ui.IsColorEnabled() {
		return false
	}

	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) == 0 {
		return false
	}

	return !logging.Default().Enabled(context.Background(), logging.LevelDebug)
}
