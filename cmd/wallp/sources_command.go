package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wallp/internal/ipc"
)

func newSourcesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List image sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Sources()
				if err != nil {
					return err
				}
				if len(resp.Sources) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sources registered")
					return nil
				}
				rows := make([][]string, 0, len(resp.Sources))
				for _, src := range resp.Sources {
					rows = append(rows, []string{src.Name, src.Capability.String(), yesNo(src.Enabled)})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Source", "Kind", "Enabled"}, rows, nil))
				return nil
			})
		},
	}
}
