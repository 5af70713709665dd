package progress

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kinofiles/kinosync/internal/events"
	"github.com/kinofiles/kinosync/internal/state"
)

func progressEvent(name string, p int) *state.ProgressChangedEvent {
	return state.NewProgressChangedEvent(name, p, -1, state.ProgressMap{name: p})
}

func TestTransferUIPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTransferUIWithOutput(&buf, false)

	ui.Apply(progressEvent("a.bin", 10))
	ui.Apply(progressEvent("a.bin", 60))
	ui.Apply(progressEvent("a.bin", 100))
	ui.Shutdown()

	out := buf.String()
	if strings.Count(out, "Transferring a.bin") != 1 {
		t.Errorf("expected one start line, got %q", out)
	}
	if !strings.Contains(out, "✓ a.bin") {
		t.Errorf("expected completion line, got %q", out)
	}
	if ui.Completed() != 1 {
		t.Errorf("Completed() = %d, want 1", ui.Completed())
	}
}

func TestTransferUICompleteWithoutStart(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTransferUIWithOutput(&buf, false)

	ui.Apply(progressEvent("late.bin", 100))
	ui.Shutdown()

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestTransferUIRestartAfterComplete(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTransferUIWithOutput(&buf, false)

	ui.Apply(progressEvent("a.bin", 100))
	ui.Apply(progressEvent("a.bin", 20))
	ui.Apply(progressEvent("a.bin", 30))

	if got := ui.Active(); len(got) != 1 || got[0] != "a.bin" {
		t.Errorf("Active() = %v, want [a.bin]", got)
	}
	ui.Shutdown()
	if len(ui.Active()) != 0 {
		t.Errorf("expected no active transfers after shutdown")
	}
}

func TestTransferUIBulkReplace(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTransferUIWithOutput(&buf, false)

	ui.Apply(state.NewProgressChangedEvent("", 0, -1, state.ProgressMap{"b": 5, "a": 40}))

	got := ui.Active()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Active() = %v, want [a b]", got)
	}
	ui.Shutdown()
}

func TestTransferUITerminalBars(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTransferUIWithOutput(&buf, true)
	if !ui.IsTerminal() {
		t.Fatal("expected terminal mode")
	}

	ui.Apply(progressEvent("a.bin", 50))
	ui.Apply(progressEvent("a.bin", 100))
	ui.Shutdown()

	if ui.Completed() != 1 {
		t.Errorf("Completed() = %d, want 1", ui.Completed())
	}
}

func TestTransferUIRunFromBus(t *testing.T) {
	bus := events.NewEventBus(8)
	defer bus.Close()

	var buf bytes.Buffer
	ui := NewTransferUIWithOutput(&buf, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	ch := bus.Subscribe(events.EventProgressChanged)
	go func() {
		ui.Run(ctx, ch)
		close(done)
	}()

	bus.Publish(progressEvent("x", 10))
	bus.Publish(progressEvent("x", 100))

	deadline := time.After(2 * time.Second)
	for ui.Completed() != 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for completion")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTruncateName(t *testing.T) {
	if got := truncateName("short", 10); got != "short" {
		t.Errorf("truncateName(short) = %q", got)
	}
	got := truncateName("a/very/long/path/to/file.txt", 10)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "file.txt") {
		t.Errorf("truncateName = %q", got)
	}
}

func TestWatchBar(t *testing.T) {
	var buf bytes.Buffer
	bar := NewWatchBarWithOutput("a.bin", &buf)

	bar.Set(40)
	bar.Set(-5)
	if bar.Last() != 0 {
		t.Errorf("Last() = %d, want 0", bar.Last())
	}
	bar.Set(250)
	if bar.Last() != 100 {
		t.Errorf("Last() = %d, want 100", bar.Last())
	}
	bar.Finish()
	if !strings.Contains(buf.String(), "a.bin") {
		t.Errorf("expected description in output, got %q", buf.String())
	}
}
