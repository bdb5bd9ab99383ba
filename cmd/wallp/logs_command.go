package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"wallp/internal/ipc"
)

const followWaitMillis = 5000

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log output",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				return tailLogs(cmd.Context(), client, cmd.OutOrStdout(), lines, follow)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines as they are written")
	return cmd
}

func tailLogs(ctx context.Context, client *ipc.Client, out io.Writer, lines int, follow bool) error {
	req := ipc.LogTailRequest{Offset: -1, Limit: lines}
	for {
		resp, err := client.LogTail(req)
		if err != nil {
			return err
		}
		for _, line := range resp.Lines {
			fmt.Fprintln(out, line)
		}
		if !follow {
			return nil
		}
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		req = ipc.LogTailRequest{Offset: resp.Offset, Follow: true, WaitMillis: followWaitMillis}
	}
}
