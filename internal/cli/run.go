package cli

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kinofiles/kinosync/internal/events"
	"github.com/kinofiles/kinosync/internal/logging"
	"github.com/kinofiles/kinosync/internal/metrics"
	"github.com/kinofiles/kinosync/internal/progress"
	"github.com/kinofiles/kinosync/internal/state"
)

func newRunCmd() *cobra.Command {
	var (
		metricsAddr string
		keepSession bool
		noProgress  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the node and keep the local view in sync",
		Long: `Connect to the node's push channel and follow it until interrupted.

An initial listing refresh is made at startup; after that the listing is
refreshed whenever the node reports a finished upload or a file change.
Transfer progress is drawn as bars when stderr is a terminal.

The session snapshot is cleared on exit unless --keep-session is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				cfg.MetricsAddr = metricsAddr
			}

			log := GetLogger()
			a, err := newApp(cfg, log, commandConfirmer())
			if err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer a.Close()

			client, err := a.newTransport(0)
			if err != nil {
				return err
			}

			ctx := GetContext()
			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				return client.Run(gctx)
			})

			if cfg.MetricsAddr != "" {
				g.Go(func() error {
					return serveMetrics(gctx, cfg.MetricsAddr)
				})
				log.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
			}

			if !noProgress {
				ui := progress.NewTransferUI()
				ch := a.bus.Subscribe(events.EventProgressChanged)
				g.Go(func() error {
					ui.Run(gctx, ch)
					if active := ui.Active(); len(active) > 0 {
						log.Info().Int("completed", ui.Completed()).Strs("unfinished", active).Msg("Transfers at exit")
					}
					return nil
				})
			}

			g.Go(func() error {
				followStore(gctx, a.bus, log)
				return nil
			})

			if err := a.engine.Refresh(gctx); err != nil {
				log.Warn().Err(err).Msg("Initial refresh failed; showing the session snapshot")
			}

			err = g.Wait()
			if dropped := a.bus.GetDroppedEventCount(); dropped > 0 {
				log.Debug().Int64("dropped", dropped).Msg("Observers missed events")
			}
			a.Close()

			if !keepSession {
				if cerr := a.session.Clear(); cerr != nil {
					log.Warn().Err(cerr).Msg("Failed to clear session")
				}
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	cmd.Flags().BoolVar(&keepSession, "keep-session", false, "Keep the session snapshot on exit")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Do not draw transfer progress")

	return cmd
}

// serveMetrics serves /metrics until ctx ends.
func serveMetrics(ctx context.Context, addr string) error {
	mux := nethttp.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &nethttp.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	}
}

// followStore logs listing, roster, connection and failure changes.
func followStore(ctx context.Context, bus *events.EventBus, log *logging.Logger) {
	ch := bus.SubscribeAll()
	defer bus.UnsubscribeAll(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			switch e := ev.(type) {
			case *state.FilesChangedEvent:
				log.Infof("Listing updated: %d entries", len(e.Files))
			case *state.NodesChangedEvent:
				log.Infof("Known nodes: %v", e.Nodes)
			case *state.TransportChangedEvent:
				if !e.Connected {
					log.Warnf("Push channel disconnected")
				}
			case *events.RefreshFailedEvent:
				log.Warnf("Refresh failed: %v", e.Error)
			case *events.CommandDispatchedEvent:
				log.Infof("Sent %s", e.Command)
			}
		}
	}
}
