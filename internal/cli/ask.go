package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"research-chat/internal/domain"
	"research-chat/internal/usecase"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask a single question and print the agent's reply",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAsk,
	}
	RootCmd.AddCommand(cmd)
}

func runAsk(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	a, closeLog, err := setup(ctx, cmd.ErrOrStderr())
	if err != nil {
		exitErr("setup", err)
	}
	defer closeLog()

	reply, err := askOnce(ctx, a.orch, strings.Join(args, " "))
	if err != nil {
		exitErr("ask", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply)
}

var errNoQuestion = errors.New("question is empty")

// askOnce runs one chat turn to completion and returns the agent's reply.
func askOnce(ctx context.Context, orch *usecase.Orchestrator, question string) (string, error) {
	accepted, err := orch.SubmitChatTurn(ctx, question)
	if err != nil {
		return "", err
	}
	if !accepted {
		return "", errNoQuestion
	}
	if err := orch.WaitContext(ctx); err != nil {
		return "", err
	}

	events := orch.Snapshot()
	last := events[len(events)-1]
	if last.Sender != domain.SenderAgent {
		return "", errors.New("no reply committed")
	}
	if last.Text == usecase.ChatErrorText {
		return "", errors.New(last.Text)
	}
	return last.Text, nil
}
