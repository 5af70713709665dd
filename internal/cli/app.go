package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/kinofiles/kinosync/internal/api"
	"github.com/kinofiles/kinosync/internal/config"
	"github.com/kinofiles/kinosync/internal/constants"
	"github.com/kinofiles/kinosync/internal/core"
	"github.com/kinofiles/kinosync/internal/events"
	khttp "github.com/kinofiles/kinosync/internal/http"
	"github.com/kinofiles/kinosync/internal/logging"
	"github.com/kinofiles/kinosync/internal/session"
	"github.com/kinofiles/kinosync/internal/state"
	"github.com/kinofiles/kinosync/internal/transport"
)

// connectAttempts bounds dialing for one-shot commands; `run` retries forever.
const connectAttempts = 3

// app is one wired synchronizer: bus, session-backed store, snapshot client
// and engine. Commands build one, use it, and Close it.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	bus     *events.EventBus
	session *session.FileStore
	store   *state.Store
	api     *api.Client
	engine  *core.Engine
}

func newApp(cfg *config.Config, log *logging.Logger, confirmer core.Confirmer) (*app, error) {
	if err := ensureProxyPassword(cfg); err != nil {
		return nil, err
	}

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	sess := session.NewFileStore(nil, cfg.SessionDir, cfg.SessionID)

	store := state.NewStore(state.StoreOptions{
		EventBus:  bus,
		Persister: sess,
		Logger:    log.Named("store"),
	})

	apiClient, err := api.NewClient(cfg, log.Named("api"))
	if err != nil {
		bus.Close()
		return nil, err
	}

	engine, err := core.NewEngine(core.Options{
		Store:        store,
		Snapshotter:  apiClient,
		Confirmer:    confirmer,
		RefreshDelay: cfg.RefreshDelay,
		EventBus:     bus,
		Logger:       log.Named("engine"),
	})
	if err != nil {
		bus.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  log,
		bus:     bus,
		session: sess,
		store:   store,
		api:     apiClient,
		engine:  engine,
	}, nil
}

// newTransport builds the push-channel client. maxAttempts of zero retries
// forever.
func (a *app) newTransport(maxAttempts int) (*transport.Client, error) {
	url, err := a.cfg.EffectiveWSURL()
	if err != nil {
		return nil, err
	}
	proxy, err := khttp.ProxyFor(a.cfg)
	if err != nil {
		return nil, err
	}

	return transport.New(transport.Options{
		URL:         url,
		Proxy:       proxy,
		Store:       a.store,
		Handler:     a.engine.HandleMessage,
		Logger:      a.logger.Named("transport"),
		MaxAttempts: maxAttempts,
	})
}

// connect starts the push channel and returns once it is up. The returned
// stop func closes the channel and waits for it to wind down.
func (a *app) connect(ctx context.Context) (stop func(), err error) {
	client, err := a.newTransport(connectAttempts)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Run(runCtx)
	}()

	select {
	case <-client.Ready():
	case err := <-errCh:
		cancel()
		if err == nil {
			err = ctx.Err()
		}
		if err == nil {
			err = errors.New("push channel closed before connecting")
		}
		return nil, err
	case <-ctx.Done():
		cancel()
		<-errCh
		return nil, ctx.Err()
	}

	return func() {
		cancel()
		<-errCh
	}, nil
}

// Close stops background refreshes and the event bus.
func (a *app) Close() {
	a.engine.Close()
	a.bus.Close()
}

// withApp loads the config, builds an app, runs fn, and closes the app.
func withApp(confirmer core.Confirmer, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, GetLogger(), confirmer)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer a.Close()
	return fn(GetContext(), a)
}
