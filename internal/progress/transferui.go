// Package progress renders transfer progress pushed by the node: one mpb bar
// per transfer while the client runs, or a single progressbar bar when
// following one transfer.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/kinofiles/kinosync/internal/events"
	"github.com/kinofiles/kinosync/internal/state"
)

// TransferUI shows one bar per in-flight transfer.
type TransferUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool

	mu        sync.Mutex
	bars      map[string]*transferBar
	completed int
}

type transferBar struct {
	bar     *mpb.Bar
	started time.Time
	done    bool
}

// NewTransferUI creates a TransferUI on stderr. Bars are drawn only when
// stderr is a terminal; otherwise start and completion lines are printed.
func NewTransferUI() *TransferUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	if isTerminal {
		enableANSI(os.Stderr)
	}
	return NewTransferUIWithOutput(os.Stderr, isTerminal)
}

// NewTransferUIWithOutput creates a TransferUI writing to out.
func NewTransferUIWithOutput(out io.Writer, isTerminal bool) *TransferUI {
	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(80),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &TransferUI{
		progress:   p,
		out:        out,
		isTerminal: isTerminal,
		bars:       make(map[string]*transferBar),
	}
}

// IsTerminal reports whether bars are drawn.
func (u *TransferUI) IsTerminal() bool {
	return u.isTerminal
}

// Writer returns an io.Writer that prints above the bars.
func (u *TransferUI) Writer() io.Writer {
	if u.isTerminal {
		return u.progress
	}
	return u.out
}

// Run applies progress events from ch until ctx ends or ch closes, then
// removes any bars still showing.
func (u *TransferUI) Run(ctx context.Context, ch <-chan events.Event) {
	defer u.Shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if pe, ok := ev.(*state.ProgressChangedEvent); ok {
				u.Apply(pe)
			}
		}
	}
}

// Apply updates the bars for one progress change. A bulk replacement (empty
// Name) resyncs every transfer in the map.
func (u *TransferUI) Apply(ev *state.ProgressChangedEvent) {
	if ev.Name != "" {
		u.set(ev.Name, ev.Progress)
		return
	}
	names := make([]string, 0, len(ev.Map))
	for name := range ev.Map {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		u.set(name, ev.Map[name])
	}
}

func (u *TransferUI) set(name string, percent int) {
	u.mu.Lock()
	defer u.mu.Unlock()

	tb, ok := u.bars[name]
	if !ok {
		if state.IsComplete(percent) {
			// Finished before we saw it start; nothing to draw.
			return
		}
		tb = u.addBar(name)
		u.bars[name] = tb
	}
	if tb.done {
		if state.IsComplete(percent) {
			return
		}
		// The same name is transferring again.
		tb = u.addBar(name)
		u.bars[name] = tb
	}

	if tb.bar != nil {
		// Regressions are drawn as delivered.
		tb.bar.SetCurrent(int64(clamp(percent)))
	}

	if state.IsComplete(percent) {
		tb.done = true
		u.completed++
		if tb.bar != nil {
			tb.bar.SetTotal(state.CompletePercent, true)
		}
		u.println(fmt.Sprintf("✓ %s (%s)", name, time.Since(tb.started).Round(time.Second)))
	}
}

func (u *TransferUI) addBar(name string) *transferBar {
	tb := &transferBar{started: time.Now()}
	if !u.isTerminal {
		u.println("Transferring " + name)
		return tb
	}

	label := truncateName(name, 40)
	tb.bar = u.progress.New(state.CompletePercent,
		mpb.BarStyle().
			Lbound("[").
			Filler("█").
			Tip("█").
			Padding("░").
			Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(label, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
			decor.Name("  "),
			decor.Elapsed(decor.ET_STYLE_GO, decor.WCSyncSpace),
		),
		mpb.BarRemoveOnComplete(),
	)
	return tb
}

func (u *TransferUI) println(msg string) {
	if u.isTerminal {
		_, _ = u.progress.Write([]byte(msg + "\n"))
		return
	}
	_, _ = fmt.Fprintln(u.out, msg)
}

// Completed returns how many transfers reached 100 while the UI ran.
func (u *TransferUI) Completed() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.completed
}

// Active returns the names of transfers still in flight, sorted.
func (u *TransferUI) Active() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	var names []string
	for name, tb := range u.bars {
		if !tb.done {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Shutdown aborts unfinished bars and waits for the renderer to stop.
func (u *TransferUI) Shutdown() {
	u.mu.Lock()
	for _, tb := range u.bars {
		if !tb.done && tb.bar != nil {
			tb.bar.Abort(true)
		}
		tb.done = true
	}
	u.mu.Unlock()
	u.progress.Wait()
}

func clamp(p int) int {
	switch {
	case p < 0:
		return 0
	case p > state.CompletePercent:
		return state.CompletePercent
	default:
		return p
	}
}

// truncateName keeps the tail of long names: "…/c/d/file.txt".
func truncateName(name string, max int) string {
	r := []rune(name)
	if len(r) <= max {
		return name
	}
	return "…" + string(r[len(r)-max+1:])
}
