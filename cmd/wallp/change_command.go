package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"wallp/internal/acquire"
	"wallp/internal/ipc"
	"wallp/internal/progress"
)

type specFlags struct {
	source string
	query  string
	color  string
	latest bool
}

func (f *specFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.source, "source", "s", "", "Image source (default: random enabled source)")
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "Search hint passed to the source")
	cmd.Flags().StringVar(&f.color, "color", "", "Base color for the color source, e.g. #336699")
	cmd.Flags().BoolVar(&f.latest, "latest", false, "Prefer the source's newest image")
}

func (f *specFlags) spec() acquire.Spec {
	return acquire.Spec{Source: f.source, Query: f.query, Color: f.color, Latest: f.latest}
}

func newChangeCommand(ctx *commandContext) *cobra.Command {
	var flags specFlags
	var noWait bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "change",
		Short: "Change the wallpaper now",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if noWait {
				return ctx.withClient(func(client *ipc.Client) error {
					resp, err := client.Change(ipc.ChangeRequest{Spec: flags.spec()})
					if err != nil {
						return err
					}
					fmt.Fprintln(out, resp.Message)
					return nil
				})
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			listener, err := progress.Listen(filepath.Join(cfg.Paths.DataDir, "progress-"+uuid.NewString()[:8]+".sock"))
			if err != nil {
				return err
			}
			defer listener.Close()

			err = ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Change(ipc.ChangeRequest{Spec: flags.spec(), ProgressPath: listener.Path()})
				if err != nil {
					return err
				}
				if resp.Coalesced {
					return errors.New(resp.Message)
				}
				return nil
			})
			if err != nil {
				return err
			}

			waitCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			outcome, err := listener.Receive(waitCtx, func(state progress.State) {
				fmt.Fprintln(out, state)
			})
			if err != nil {
				return err
			}
			if outcome.State != progress.Ready {
				return errors.New("wallpaper change failed; see `wallp logs` for details")
			}
			fmt.Fprintln(out, outcome.Path)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Queue the change and return without progress")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for the change to finish")
	return cmd
}
