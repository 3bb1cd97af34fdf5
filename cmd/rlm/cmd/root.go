// Package cmd provides the CLI commands for RLM.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rlmtools/rlm/internal/config"
	"github.com/rlmtools/rlm/internal/embed"
	rlmerr "github.com/rlmtools/rlm/internal/errors"
	"github.com/rlmtools/rlm/internal/logging"
	"github.com/rlmtools/rlm/internal/output"
	"github.com/rlmtools/rlm/internal/store"
	"github.com/rlmtools/rlm/pkg/version"
)

// Exit codes per the command contract.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// usageError marks argument validation failures (exit code 2).
type usageError struct{ err error }

func (u *usageError) Error() string { return u.err.Error() }
func (u *usageError) Unwrap() error { return u.err }

// wrapArgs converts positional-argument failures into usage errors so they
// exit with code 2.
func wrapArgs(validator cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validator(cmd, args); err != nil {
			return &usageError{err}
		}
		return nil
	}
}

// app carries per-invocation state shared by the command handlers.
type app struct {
	dbFlag   string
	format   string
	verbose  bool
	debug    bool
	writer   *output.Writer
	settings config.Settings

	logCleanup func()
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "rlm",
		Short: "Local content indexing and hybrid retrieval",
		Long: `RLM ingests text documents into chunked, indexed buffers and answers
retrieval queries by fusing dense vector similarity with BM25 lexical
scoring. State lives in a single local SQLite database.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logCleanup != nil {
				a.logCleanup()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.dbFlag, "db", "", "Path to the database file (env: RLM_DB_PATH)")
	root.PersistentFlags().StringVar(&a.format, "format", "text", "Output format (text, json)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Verbose logging")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Debug logging to .rlm/rlm.log")

	root.SetVersionTemplate("rlm version {{.Version}}\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})

	root.AddCommand(newInitCmd(a))
	root.AddCommand(newStatusCmd(a))
	root.AddCommand(newLoadCmd(a))
	root.AddCommand(newUpdateBufferCmd(a))
	root.AddCommand(newListCmd(a))
	root.AddCommand(newShowCmd(a))
	root.AddCommand(newDeleteCmd(a))
	root.AddCommand(newPeekCmd(a))
	root.AddCommand(newGrepCmd(a))
	root.AddCommand(newSearchCmd(a))
	root.AddCommand(newChunkCmd(a))
	root.AddCommand(newAddBufferCmd(a))
	root.AddCommand(newExportBuffersCmd(a))
	root.AddCommand(newWriteChunksCmd(a))
	root.AddCommand(newVarCmd(a, store.ScopeContext))
	root.AddCommand(newVarCmd(a, store.ScopeGlobal))
	root.AddCommand(newResetCmd(a))

	return root
}

// setup validates global flags and prepares output and logging.
func (a *app) setup(cmd *cobra.Command) error {
	format := output.Format(a.format)
	if !format.Valid() {
		return &usageError{fmt.Errorf("unknown output format: %s (expected text or json)", a.format)}
	}
	a.writer = output.New(cmd.OutOrStdout(), format)

	level := "warn"
	if a.verbose {
		level = "info"
	}
	logCfg := logging.Config{Level: level}
	if a.debug {
		logCfg.Level = "debug"
		logCfg.FilePath = ".rlm/rlm.log"
	}
	cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return err
	}
	a.logCleanup = cleanup

	settings, err := config.LoadSettings()
	if err != nil {
		return rlmerr.Wrap(rlmerr.ErrCodeConfigInvalid, err)
	}
	a.settings = settings
	return nil
}

// dbPath resolves the database path for this invocation.
func (a *app) dbPath() string {
	return config.ResolveDBPath(a.dbFlag)
}

// newEmbedder builds the active embedder: the deterministic fallback
// wrapped in an LRU cache.
func (a *app) newEmbedder() embed.Embedder {
	dims := a.settings.Embedder.Dimensions
	fallback := embed.NewFallbackEmbedder(dims)
	cached, err := embed.NewCachedEmbedder(fallback, embed.DefaultCacheSize)
	if err != nil {
		return fallback
	}
	return cached
}

// openStore opens the database and runs migrations (including the embedder
// identity check).
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	s, err := store.Open(a.dbPath())
	if err != nil {
		return nil, err
	}
	initialized, err := s.Initialized(ctx)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if initialized {
		if err := s.Init(ctx, a.newEmbedder().ModelID()); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	err := root.Execute()
	if err == nil {
		return exitOK
	}

	if errors.Is(err, errSilent) {
		// Already rendered as an ErrorEnvelope.
		return exitFailure
	}

	var usage *usageError
	if errors.As(err, &usage) {
		fmt.Fprintln(os.Stderr, "error:", usage.Error())
		return exitUsage
	}

	// Errors no handler rendered print as a text line on stdout through a
	// fresh writer; the configured writer is not used here.
	writer := output.New(os.Stdout, output.FormatText)
	code := rlmerr.GetCode(err)
	if code == rlmerr.ErrCodeUnknownStrategy {
		// A bad --chunker value is argument validation.
		fmt.Fprintln(os.Stderr, "error:", err.Error())
		return exitUsage
	}
	message := err.Error()
	if re, ok := err.(*rlmerr.RlmError); ok {
		message = re.Message
	}
	writer.Error(rlmerr.KindName(code), message, rlmerr.GetSuggestion(err))
	return exitFailure
}

// renderError emits err in the invocation's format and keeps the error for
// the exit code.
func (a *app) renderError(err error) error {
	if err == nil {
		return nil
	}
	if a.writer != nil && a.writer.JSONMode() {
		code := rlmerr.GetCode(err)
		message := err.Error()
		if re, ok := err.(*rlmerr.RlmError); ok {
			message = re.Message
		}
		a.writer.Error(rlmerr.KindName(code), message, rlmerr.GetSuggestion(err))
		// The envelope already rendered; return a silent failure marker.
		return errSilent
	}
	return err
}

// errSilent signals a failure already rendered as an ErrorEnvelope.
var errSilent = errors.New("")
