package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the agent service is online",
		Args:  cobra.NoArgs,
		Run:   runPing,
	}
	RootCmd.AddCommand(cmd)
}

func runPing(cmd *cobra.Command, _ []string) {
	ctx := cmd.Context()

	a, closeLog, err := setup(ctx, cmd.ErrOrStderr())
	if err != nil {
		exitErr("setup", err)
	}
	defer closeLog()

	h, err := a.client.Health(ctx)
	if err != nil {
		exitErr("ping "+a.client.BaseURL(), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s\n", a.client.BaseURL(), h.Status, h.Message)
}
