package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wallp/internal/ipc"
	"wallp/internal/scheduler"
)

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage the timed wallpaper change",
	}

	var flags specFlags
	setCmd := &cobra.Command{
		Use:   "set <frequency>",
		Short: "Change the wallpaper every <frequency> (e.g. 30m, 2h, 1d, 1w, 1M)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frequency := args[0]
			if _, err := scheduler.FrequencySpec(frequency); err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ScheduleSet(ipc.ScheduleSetRequest{Frequency: frequency, Spec: flags.spec()})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wallpaper will change every %s\n", describeFrequency(frequency))
				if len(resp.Jobs) > 0 {
					fmt.Fprint(cmd.OutOrStdout(), renderJobsTable(resp.Jobs, time.Now()))
				}
				return nil
			})
		},
	}
	flags.register(setCmd)

	removeCmd := &cobra.Command{
		Use:     "remove",
		Aliases: []string{"rm", "off"},
		Short:   "Stop changing the wallpaper on a timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ScheduleRemove()
				if err != nil {
					return err
				}
				if resp.Removed {
					fmt.Fprintln(cmd.OutOrStdout(), "Schedule removed")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No schedule installed")
				}
				return nil
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show scheduled changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ScheduleList()
				if err != nil {
					return err
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No scheduled changes")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderJobsTable(resp.Jobs, time.Now()))
				return nil
			})
		},
	}

	scheduleCmd.AddCommand(setCmd, removeCmd, showCmd)
	return scheduleCmd
}

// describeFrequency spells out a validated frequency, e.g. "2h" as "2 hours".
func describeFrequency(frequency string) string {
	count, unit, err := scheduler.ParseFrequency(frequency)
	if err != nil {
		return frequency
	}
	name, _ := scheduler.CronKwarg(count, unit)
	if count != 1 {
		name += "s"
	}
	return fmt.Sprintf("%d %s", count, name)
}
