package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmadmin/common"
	"github.com/mensylisir/xmadmin/executor"
	"github.com/mensylisir/xmadmin/runtime"
)

func newRunCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run -- COMMAND [ARG...]",
		Short: "Run an arbitrary command with elevated privileges",
		Long: `Run an arbitrary command with elevated privileges and print its output.
Standard input is not forwarded; the command's stdin ends after the credential.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			rt, err := app.session(args)
			if err != nil {
				return err
			}
			req := executor.NewRequest(a...)
			if err := req.Validate(rt.Config().Elevation.Binary); err != nil {
				return err
			}
			res := rt.Runner().RunPrivileged(cmd.Context(), req)
			_, _ = cmd.OutOrStdout().Write(res.Stdout)
			_, _ = cmd.ErrOrStderr().Write(res.Stderr)
			rt.Logger().WithField(common.CommandName, req.String()).
				WithField("exit_code", res.ExitCode).Debug("command finished")
			return res.AsError()
		},
	}
	// Flags after COMMAND belong to COMMAND.
	cmd.Flags().SetInterspersed(false)
	return cmd
}
