// Package core ties the push channel, the store and the snapshot endpoint
// together: it dispatches inbound events, runs listing refreshes and issues
// CreateDir and Move commands.
package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kinofiles/kinosync/internal/constants"
	"github.com/kinofiles/kinosync/internal/events"
	"github.com/kinofiles/kinosync/internal/logging"
	"github.com/kinofiles/kinosync/internal/models"
	"github.com/kinofiles/kinosync/internal/state"
)

// Sender is the outbound command channel held by the store.
type Sender = state.Sender

// Snapshotter fetches the node's full listing.
type Snapshotter interface {
	ListFiles(ctx context.Context) ([]models.FileEntry, error)
}

// Confirmer asks the user to approve a command.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// AlwaysConfirm approves every command.
var AlwaysConfirm Confirmer = ConfirmFunc(func(string) bool { return true })

// Options configures NewEngine.
type Options struct {
	Store       *state.Store // required
	Snapshotter Snapshotter  // required
	Confirmer   Confirmer    // defaults to AlwaysConfirm
	Clock       clockwork.Clock
	// RefreshDelay is the wait between a dispatched command and its
	// follow-up refresh. Zero means the default of one second.
	RefreshDelay time.Duration
	EventBus     *events.EventBus
	Logger       *logging.Logger
}

// Engine is the client-side synchronizer.
type Engine struct {
	store     *state.Store
	snapshots Snapshotter
	confirmer Confirmer
	clock     clockwork.Clock
	delay     time.Duration
	eventBus  *events.EventBus
	logger    *logging.Logger

	// ctx bounds every background refresh; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	pending inflight
}

// NewEngine creates an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine requires a store")
	}
	if opts.Snapshotter == nil {
		return nil, errors.New("engine requires a snapshot client")
	}
	if opts.Confirmer == nil {
		opts.Confirmer = AlwaysConfirm
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.RefreshDelay <= 0 {
		opts.RefreshDelay = constants.DefaultRefreshDelay
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:     opts.Store,
		snapshots: opts.Snapshotter,
		confirmer: opts.Confirmer,
		clock:     opts.Clock,
		delay:     opts.RefreshDelay,
		eventBus:  opts.EventBus,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// RefreshDelay returns the post-command refresh delay.
func (e *Engine) RefreshDelay() time.Duration {
	return e.delay
}

// Wait blocks until no refresh is running or scheduled.
func (e *Engine) Wait() {
	e.pending.wait()
}

// Close cancels pending delayed refreshes and in-flight pulls, then waits
// for their goroutines to exit.
func (e *Engine) Close() {
	e.cancel()
	e.pending.wait()
}

func (e *Engine) publish(ev events.Event) {
	if e.eventBus != nil {
		e.eventBus.Publish(ev)
	}
}

// inflight counts background refresh goroutines. Unlike sync.WaitGroup it
// may be incremented while another goroutine is waiting.
type inflight struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func (f *inflight) add() {
	f.mu.Lock()
	if f.n == 0 {
		f.idle = make(chan struct{})
	}
	f.n++
	f.mu.Unlock()
}

func (f *inflight) done() {
	f.mu.Lock()
	f.n--
	if f.n == 0 {
		close(f.idle)
	}
	f.mu.Unlock()
}

func (f *inflight) wait() {
	for {
		f.mu.Lock()
		if f.n == 0 {
			f.mu.Unlock()
			return
		}
		idle := f.idle
		f.mu.Unlock()
		<-idle
	}
}

func (f *inflight) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}
