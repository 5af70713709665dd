package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kinofiles/kinosync/internal/constants"
	"github.com/kinofiles/kinosync/internal/session"
	"github.com/kinofiles/kinosync/internal/state"
)

func newSessionCmd() *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or clear the persisted session snapshot",
		Long: `The session holds the last listing and transfer progress so a restart
can show them before the node answers.

Commands:
  show  - Print what the session holds
  clear - Delete the session`,
	}

	sessionCmd.AddCommand(newSessionShowCmd())
	sessionCmd.AddCommand(newSessionClearCmd())

	return sessionCmd
}

func openSession() (*session.FileStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return session.NewFileStore(nil, cfg.SessionDir, cfg.SessionID), nil
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the session snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSession()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Session: %s\n", store.Dir())

			var snap state.Snapshot
			found, err := store.Load(constants.SessionKey, &snap)
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintln(out, "  (empty)")
				return nil
			}

			fmt.Fprintf(out, "Files: %d\n", len(snap.Files))
			printListing(out, snap.Files)

			fmt.Fprintf(out, "Transfers: %d\n", len(snap.FilesInProgress))
			names := make([]string, 0, len(snap.FilesInProgress))
			for name := range snap.FilesInProgress {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "  %3d%%  %s\n", snap.FilesInProgress[name], name)
			}
			return nil
		},
	}
}

func newSessionClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the session snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSession()
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared %s\n", store.Dir())
			return nil
		},
	}
}
