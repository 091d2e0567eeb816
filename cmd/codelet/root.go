package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sengac/codelet"
	"github.com/sengac/codelet/tool/builtin"
)

// version is overridden at release time via -ldflags.
var version = "dev"

const defaultSystemPrompt = "You are a helpful coding assistant working in the user's terminal. " +
	"Use the available tools to read, write and edit files and to run shell commands. " +
	"Be concise; show code rather than describing it."

var (
	flagModel    string
	flagSystem   string
	flagLogLevel string
	flagLogFile  string
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "codelet",
		Short: "Interactive AI coding agent for your terminal",
		Long: `Codelet is an interactive AI coding agent. It streams model responses,
executes file and shell tools, tracks token usage against the model's
context window, and automatically compacts long conversations so a
session never runs out of context.

Backends are detected from ANTHROPIC_API_KEY and OPENAI_API_KEY.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runChat,
	}

	root.PersistentFlags().StringVar(&flagModel, "model", "", "model ID override (e.g. claude-sonnet-4-5-20250929)")
	root.PersistentFlags().StringVar(&flagSystem, "system", defaultSystemPrompt, "system prompt")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "write logs to this file instead of discarding them")

	root.AddCommand(newChatCmd(), newBackendsCmd(), newVersionCmd())
	return root
}

// newLogger builds the slog logger the session uses. Without --log-file
// logs are discarded: the TUI owns the terminal.
func newLogger() (*slog.Logger, func(), error) {
	var w io.Writer = io.Discard
	cleanup := func() {}
	if flagLogFile != "" {
		f, err := os.OpenFile(flagLogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		cleanup = func() { f.Close() }
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(flagLogLevel)); err != nil {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return logger, cleanup, nil
}

func newSession(logger *slog.Logger, opts ...codelet.Option) (*codelet.Session, error) {
	opts = append([]codelet.Option{
		codelet.WithLogger(logger),
		codelet.WithTools(builtin.DefaultTools()...),
	}, opts...)
	return codelet.New(
		codelet.Config{
			SystemPrompt: flagSystem,
			Model:        flagModel,
		},
		opts...,
	)
}

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List detected backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, cleanup, err := newLogger()
			if err != nil {
				return err
			}
			defer cleanup()

			session, err := newSession(logger)
			if err != nil {
				return err
			}
			current := session.CurrentBackend()
			for _, name := range session.AvailableBackends() {
				marker := "  "
				if name == current {
					marker = "* "
				}
				fmt.Fprintln(cmd.OutOrStdout(), marker+name)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "codelet "+version)
		},
	}
}
