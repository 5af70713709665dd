// Package cli provides the command-line interface for kinosync.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kinofiles/kinosync/internal/config"
	"github.com/kinofiles/kinosync/internal/logging"
	"github.com/kinofiles/kinosync/internal/version"
)

var (
	// Global flags
	cfgFile   string
	baseURL   string
	wsURL     string
	sessionID string
	logFile   string
	verbose   bool
	assumeYes bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kinosync",
		Short: "kinosync - keep a live view of a remote file node",
		Long: `kinosync ` + version.Version + ` - Built: ` + version.BuildTime + `

Connects to a file node's push channel, keeps a local view of its files,
in-flight transfers and peer roster, and sends folder and move commands.

The node's base URL comes from (highest priority first):
  1. --base-url
  2. KINOSYNC_BASE_URL
  3. [node] base_url in ~/.config/kinosync/config`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Node base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&wsURL, "ws-url", "", "Push channel URL (default: derived from base URL)")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "Session identifier for the persisted snapshot")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file (rotated); a bare name is placed in the log directory")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Skip confirmation prompts")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, shutting down...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newLsCmd())
	rootCmd.AddCommand(newMkdirCmd())
	rootCmd.AddCommand(newMvCmd())
	rootCmd.AddCommand(newNodesCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newSessionCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initLogger builds the global logger from flags and config. The config is
// read leniently here; commands validate it themselves.
func initLogger() {
	level := "info"
	file := logFile
	if cfg, err := config.LoadEffective(cfgFile); err == nil {
		level = cfg.LogLevel
		if file == "" {
			file = cfg.LogFile
		}
	}
	if verbose {
		level = "debug"
	}
	// A bare file name goes under the default log directory.
	if file != "" && filepath.Base(file) == file {
		file = filepath.Join(config.LogDirectory(), file)
	}

	logger = logging.New(logging.Options{File: file})
	logging.SetGlobalLevel(logging.ParseLevel(level))
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// loadConfig resolves the effective configuration: file, then environment,
// then flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadEffective(cfgFile)
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if wsURL != "" {
		cfg.WSURL = wsURL
	}
	if sessionID != "" {
		cfg.SessionID = sessionID
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
