package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"research-chat/internal/usecase"
)

func init() {
	cmd := &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a PDF for the agent to index",
		Args:  cobra.ExactArgs(1),
		Run:   runUpload,
	}
	RootCmd.AddCommand(cmd)
}

func runUpload(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	a, closeLog, err := setup(ctx, cmd.ErrOrStderr())
	if err != nil {
		exitErr("setup", err)
	}
	defer closeLog()

	doc, err := a.openDocument(args[0])
	if err != nil {
		exitErr("open document", err)
	}
	status, err := uploadOnce(ctx, a.orch, doc)
	if err != nil {
		exitErr("upload", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), status)
}

// uploadOnce runs one upload to completion and returns the final status.
func uploadOnce(ctx context.Context, orch *usecase.Orchestrator, doc usecase.Document) (string, error) {
	accepted, err := orch.SubmitDocument(ctx, doc)
	if err != nil {
		return "", err
	}
	if !accepted {
		return "", errors.New("no document selected")
	}
	if err := orch.WaitContext(ctx); err != nil {
		return "", err
	}

	status := orch.Flags().StatusMessage
	if status == usecase.StatusFailed {
		return "", errors.New(status)
	}
	return status, nil
}
