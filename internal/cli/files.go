package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kinofiles/kinosync/internal/core"
	"github.com/kinofiles/kinosync/internal/models"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List the node's files",
		Long: `Fetch the node's listing once and print it.

When the node cannot be reached the last listing saved in the session is
printed instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(core.AlwaysConfirm, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				if err := a.engine.Refresh(ctx); err != nil {
					files := a.store.Files()
					if len(files) == 0 {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\nShowing the session snapshot from %s\n", err, a.session.Dir())
				}
				printListing(out, a.store.Files())
				return nil
			})
		},
	}
}

// printListing writes one line per entry: a d marker for directories, the
// size, and the name. Directories come first.
func printListing(w io.Writer, files []models.FileEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, name := range models.SortedNames(files) {
		f, _ := models.FindFile(files, name)
		marker, size := "-", fmt.Sprintf("%d", f.Size)
		if f.Dir {
			marker, size = "d", "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t\t%s\n", marker, size, f.Name)
	}
	_ = tw.Flush()
}

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <root> <name>",
		Short: "Create a folder on the node",
		Long: `Ask the node to create the folder <root>/<name>.

Prompts for confirmation unless --yes is given. The listing is refreshed
shortly after the command is sent.

Example:
  kinosync mkdir /docs notes`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, name := args[0], args[1]
			return withApp(commandConfirmer(), func(ctx context.Context, a *app) error {
				stop, err := a.connect(ctx)
				if err != nil {
					return err
				}
				defer stop()

				err = a.engine.CreateFolder(ctx, root, name, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "✓ Requested folder %s\n", models.JoinPath(root, name))
				})
				if err != nil {
					return commandResult(cmd, err)
				}
				a.engine.Wait()
				return nil
			})
		},
	}
}

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <source> <destination-dir>",
		Short: "Move a file into a folder on the node",
		Long: `Ask the node to move <source> into the folder <destination-dir>.

The destination must be a folder in the node's current listing, and must
not already be the source's parent. Prompts for confirmation unless --yes
is given.

Example:
  kinosync mv /inbox/report.pdf /archive`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(commandConfirmer(), func(ctx context.Context, a *app) error {
				stop, err := a.connect(ctx)
				if err != nil {
					return err
				}
				defer stop()

				if err := a.engine.Refresh(ctx); err != nil {
					a.logger.Warn().Err(err).Msg("Using the session listing to resolve paths")
				}
				files := a.store.Files()
				source := lookupEntry(files, args[0])
				destination := lookupEntry(files, args[1])

				if err := a.engine.MoveFile(ctx, source, destination); err != nil {
					return commandResult(cmd, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Requested move of %s to %s\n", source.Name, destination.Name)
				a.engine.Wait()
				return nil
			})
		},
	}
}

// lookupEntry returns the listed entry for name, or a bare non-directory
// entry when the listing does not have it.
func lookupEntry(files []models.FileEntry, name string) models.FileEntry {
	if f, ok := models.FindFile(files, name); ok {
		return f
	}
	return models.FileEntry{Name: name}
}

// commandResult turns a declined confirmation into a message; other errors
// are returned as-is.
func commandResult(cmd *cobra.Command, err error) error {
	if errors.Is(err, core.ErrDeclined) {
		fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
		return nil
	}
	return err
}
