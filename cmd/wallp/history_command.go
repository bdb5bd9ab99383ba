package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"wallp/internal/ipc"
	"wallp/internal/store"
	"wallp/internal/textutil"
)

const historyTitleWidth = 40

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var showTrace bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently staged wallpapers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Images) == 0 {
					fmt.Fprintln(out, "No wallpapers yet")
					return nil
				}
				fmt.Fprint(out, renderHistoryTable(resp.Images, time.Now()))
				if showTrace {
					for _, image := range resp.Images {
						fmt.Fprintf(out, "\n#%d %s\n", image.ID, image.Path)
						for _, step := range image.Trace {
							fmt.Fprintf(out, "  %d. %s: %s\n", step.Step, step.Name, step.Detail)
						}
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of images to show")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "Print how each image was selected")
	return cmd
}

func renderHistoryTable(images []store.ImageRecord, now time.Time) string {
	rows := make([][]string, 0, len(images))
	for _, image := range images {
		title := image.Title
		if title == "" {
			title = filepath.Base(image.Path)
		}
		rows = append(rows, []string{
			strconv.FormatInt(image.ID, 10),
			formatWhen(image.CreatedAt, now),
			image.Source,
			fmt.Sprintf("%dx%d", image.Width, image.Height),
			textutil.Truncate(title, historyTitleWidth),
		})
	}
	return renderTable(
		[]string{"ID", "Staged", "Source", "Size", "Title"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	)
}
