package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// WatchBar follows a single transfer with a percentage bar.
type WatchBar struct {
	bar  *progressbar.ProgressBar
	out  io.Writer
	last int
}

// NewWatchBar creates a bar for name on stderr.
func NewWatchBar(name string) *WatchBar {
	return NewWatchBarWithOutput(name, os.Stderr)
}

// NewWatchBarWithOutput creates a bar for name writing to w.
func NewWatchBarWithOutput(name string, w io.Writer) *WatchBar {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription(name),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &WatchBar{bar: bar, out: w, last: -1}
}

// Set moves the bar to percent. Values outside 0..100 are clamped.
func (b *WatchBar) Set(percent int) {
	percent = clamp(percent)
	if percent == b.last {
		return
	}
	b.last = percent
	_ = b.bar.Set(percent)
}

// Last returns the last percentage shown, or -1.
func (b *WatchBar) Last() int {
	return b.last
}

// Finish completes the bar.
func (b *WatchBar) Finish() {
	_ = b.bar.Finish()
}

// Abort stops the bar without completing it.
func (b *WatchBar) Abort(err error) {
	_ = b.bar.Exit()
	if err != nil {
		fmt.Fprintf(b.out, "\nError: %v\n", err)
	}
}
