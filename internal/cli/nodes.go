package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kinofiles/kinosync/internal/core"
	"github.com/kinofiles/kinosync/internal/events"
	"github.com/kinofiles/kinosync/internal/progress"
	"github.com/kinofiles/kinosync/internal/state"
)

func newNodesCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Show the nodes the remote node knows about",
		Long: `Connect to the push channel and print the roster from the next
state update the node sends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(core.AlwaysConfirm, func(ctx context.Context, a *app) error {
				ch := a.bus.Subscribe(events.EventNodesChanged)

				stop, err := a.connect(ctx)
				if err != nil {
					return err
				}
				defer stop()

				waitCtx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()

				select {
				case ev, ok := <-ch:
					if !ok {
						return fmt.Errorf("event bus closed")
					}
					nodes := ev.(*state.NodesChangedEvent).Nodes
					out := cmd.OutOrStdout()
					if len(nodes) == 0 {
						fmt.Fprintln(out, "(no nodes)")
						return nil
					}
					for _, n := range nodes {
						fmt.Fprintln(out, n)
					}
					return nil
				case <-waitCtx.Done():
					if ctx.Err() != nil {
						return ctx.Err()
					}
					return fmt.Errorf("no state update from the node within %s", timeout)
				}
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for a state update")

	return cmd
}

func newWatchCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "watch <name>",
		Short: "Follow one transfer until it finishes",
		Long: `Connect to the push channel and draw a progress bar for the named
transfer until the node reports it at 100%.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return withApp(core.AlwaysConfirm, func(ctx context.Context, a *app) error {
				ch := a.bus.Subscribe(events.EventProgressChanged)

				stop, err := a.connect(ctx)
				if err != nil {
					return err
				}
				defer stop()

				if timeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, timeout)
					defer cancel()
				}

				bar := progress.NewWatchBarWithOutput(name, cmd.ErrOrStderr())
				if p, ok := a.store.Progress().Get(name); ok {
					bar.Set(p)
				}

				for {
					select {
					case <-ctx.Done():
						bar.Abort(nil)
						return ctx.Err()
					case ev, ok := <-ch:
						if !ok {
							bar.Abort(nil)
							return fmt.Errorf("event bus closed")
						}
						pe := ev.(*state.ProgressChangedEvent)
						if pe.Name != "" && pe.Name != name {
							continue
						}
						p, tracked := pe.Map.Get(name)
						if !tracked {
							continue
						}
						bar.Set(p)
						if state.IsComplete(p) {
							bar.Finish()
							fmt.Fprintf(cmd.OutOrStdout(), "✓ %s complete\n", name)
							return nil
						}
					}
				}
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long (0 waits until interrupted)")

	return cmd
}
