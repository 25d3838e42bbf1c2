package cmd

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmadmin/runtime"
	"github.com/mensylisir/xmadmin/task/process"
)

func newProcCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "proc",
		Aliases: []string{"process"},
		Short:   "Signal and reprioritize processes",
	}
	cmd.AddCommand(newProcKillCmd(app, args), newProcReniceCmd(app, args))
	return cmd
}

func newProcKillCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "kill PID",
		Short: "Terminate a process with SIGTERM, or SIGKILL with --force",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			pid, err := parsePID(a[0])
			if err != nil {
				return err
			}
			sig := process.SignalTerm
			if force {
				sig = process.SignalKill
			}
			t, err := process.NewSignalTask(pid, sig)
			if err != nil {
				return err
			}
			return app.runTask(cmd, args, t)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "9", false, "send SIGKILL")
	return cmd
}

func newProcReniceCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	var priority int
	cmd := &cobra.Command{
		Use:   "renice PID -n PRIORITY",
		Short: "Change the nice value of a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			pid, err := parsePID(a[0])
			if err != nil {
				return err
			}
			t, err := process.NewReniceTask(pid, priority)
			if err != nil {
				return err
			}
			return app.runTask(cmd, args, t)
		},
	}
	cmd.Flags().IntVarP(&priority, "priority", "n", 0, "nice value from -20 (highest) to 19 (lowest)")
	_ = cmd.MarkFlagRequired("priority")
	return cmd
}

func parsePID(s string) (int, error) {
	pid, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Errorf("invalid pid %q", s)
	}
	return pid, nil
}
