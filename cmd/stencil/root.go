package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	logLevel   string
	verbose    bool

	config *stencil.Config
}

// engine builds an engine from the loaded configuration.
func (g *globalOptions) engine() *stencil.Engine {
	return stencil.NewWithConfig(g.config)
}

func (g *globalOptions) load(stderr io.Writer) error {
	var (
		cfg *stencil.Config
		err error
	)
	if g.configFile != "" {
		cfg, err = stencil.LoadConfigFile(g.configFile)
		if err != nil {
			return err
		}
	} else {
		cfg = stencil.ConfigFromEnvironment()
	}

	switch {
	case g.logLevel != "":
		cfg.LogLevel = strings.ToLower(g.logLevel)
	case g.verbose:
		cfg.LogLevel = "debug"
	case cfg.LogLevel == "disabled":
		cfg.LogLevel = "warn"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	stencil.SetGlobalConfig(cfg)
	stencil.SetLogger(stencil.NewLogger(zerolog.ConsoleWriter{Out: stderr, NoColor: true}, stencil.ParseLogLevel(cfg.LogLevel)))
	g.config = cfg
	return nil
}

func versionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "stencil",
		Short: "Render ODF document templates",
		Long: `stencil fills OpenDocument templates (odt, ods) with data.

Directives live in the document itself: py3o:// hyperlinks, text input
fields and py3o.* user fields, and draw frames named py3o.image(...) or
py3o.staticimage.<name>.

Examples:
  stencil render -t invoice.odt -d invoice.yaml -o out.odt
  stencil validate invoice.odt
  stencil refs invoice.odt
  stencil watch -t invoice.odt -d invoice.yaml -o out.odt
  stencil serve --addr :8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.load(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&g.configFile, "config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newRenderCmd(g),
		newValidateCmd(g),
		newRefsCmd(g),
		newWatchCmd(g),
		newServeCmd(g),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "stencil %s\n", versionString())
			return err
		},
	}
}

// Execute runs the root command and exits on failure.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(1)
	}
}
