package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sengac/codelet"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session (default)",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	logger, cleanup, err := newLogger()
	if err != nil {
		return err
	}
	defer cleanup()

	// The TUI forwards keypresses here; the session's waiter turns the
	// interrupt key into a stream cut at the next chunk boundary.
	keys := make(chan codelet.KeyEvent, 8)
	waiter := codelet.NewKeyWaiter(keys, codelet.DefaultInterruptKey)
	defer waiter.Close()

	session, err := newSession(logger, codelet.WithWaiter(waiter))
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	p := tea.NewProgram(newChatModel(session, keys), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
