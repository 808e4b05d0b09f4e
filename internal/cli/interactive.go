package cli

import (
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"research-chat/internal/tui"
)

func runInteractive(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if !isTerminal() {
		a, closeLog, err := setup(ctx, os.Stderr)
		if err != nil {
			return err
		}
		defer closeLog()
		return runLines(ctx, a.orch, a.openDocument, cmd.InOrStdin(), cmd.OutOrStdout())
	}

	// The full-screen UI owns the terminal, so logs only go to a file.
	a, closeLog, err := setup(ctx, io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	m := tui.New(ctx, a.orch, a.openDocument,
		tui.WithMarkdown(),
		tui.WithSessionHint(a.session.Short()),
	)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx)).Run()
	return err
}
