package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mensylisir/xmadmin/runtime"
)

func newAuthCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the cached sudo credential",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Ask for the sudo password now and keep it for this session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := app.session(args)
			if err != nil {
				return err
			}
			r := rt.Runner()
			if err := r.EnsureCredential(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Privileged access confirmed on %s\n", r.Target())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "forget",
		Short: "Wipe the cached sudo password; the next command asks again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := app.session(args)
			if err != nil {
				return err
			}
			r := rt.Runner()
			r.InvalidateCredential()
			fmt.Fprintf(cmd.OutOrStdout(), "Credential for %s forgotten\n", r.Target())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether a credential is cached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := app.session(args)
			if err != nil {
				return err
			}
			r := rt.Runner()
			state := "not authenticated"
			if r.Authenticated() {
				state = "authenticated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", r.Target(), state)
			return nil
		},
	})
	return cmd
}
