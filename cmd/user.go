package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mensylisir/xmadmin/runtime"
	"github.com/mensylisir/xmadmin/task/user"
	"github.com/mensylisir/xmadmin/util"
)

func newUserCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts and groups",
	}
	cmd.AddCommand(
		newUserAddCmd(app, args),
		newUserDelCmd(app, args),
		newUserPasswdCmd(app, args),
		newUserModCmd(app, args),
		newGroupCmd("groupadd GROUP", "Create a group", cobra.ExactArgs(1), app, args,
			func(a []string) (*user.GroupTask, error) { return user.NewAddGroupTask(a[0]) }),
		newGroupCmd("groupdel GROUP", "Delete a group", cobra.ExactArgs(1), app, args,
			func(a []string) (*user.GroupTask, error) { return user.NewDeleteGroupTask(a[0]) }),
		newGroupCmd("join USER GROUP", "Add a user to a supplementary group", cobra.ExactArgs(2), app, args,
			func(a []string) (*user.GroupTask, error) { return user.NewJoinGroupTask(a[0], a[1]) }),
		newGroupCmd("leave USER GROUP", "Remove a user from a supplementary group", cobra.ExactArgs(2), app, args,
			func(a []string) (*user.GroupTask, error) { return user.NewLeaveGroupTask(a[0], a[1]) }),
		newGroupCmd("setgroups USER GROUP[,GROUP...]...", "Replace the supplementary groups of a user", cobra.MinimumNArgs(2), app, args,
			func(a []string) (*user.GroupTask, error) { return user.NewSetGroupsTask(a[0], splitList(a[1:])) }),
	)
	return cmd
}

func newUserAddCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	var (
		shell        string
		noCreateHome bool
		askPassword  bool
	)
	cmd := &cobra.Command{
		Use:   "add USER",
		Short: "Create a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			opts := user.AddUserOptions{Name: a[0], Shell: shell, CreateHome: !noCreateHome}
			if err := user.ValidateName("user", opts.Name); err != nil {
				return err
			}
			if askPassword {
				p, err := app.secretPrompter(args)
				if err != nil {
					return err
				}
				password, err := readNewSecret(cmd, p, "password")
				if err != nil {
					return err
				}
				defer util.Wipe(password)
				opts.Password = password
			}
			t, err := user.NewAddUserTask(opts)
			if err != nil {
				return err
			}
			return app.runTask(cmd, args, t)
		},
	}
	cmd.Flags().StringVarP(&shell, "shell", "s", user.DefaultShell, "login shell")
	cmd.Flags().BoolVarP(&noCreateHome, "no-create-home", "M", false, "do not create the home directory")
	cmd.Flags().BoolVarP(&askPassword, "ask-password", "p", false, "prompt for the new account's password")
	return cmd
}

func newUserDelCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	var removeHome bool
	cmd := &cobra.Command{
		Use:     "del USER",
		Aliases: []string{"delete", "rm"},
		Short:   "Delete a user account",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			t, err := user.NewDeleteUserTask(a[0], removeHome)
			if err != nil {
				return err
			}
			return app.runTask(cmd, args, t)
		},
	}
	cmd.Flags().BoolVarP(&removeHome, "remove-home", "r", false, "remove the home directory and mail spool")
	return cmd
}

func newUserPasswdCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd USER",
		Short: "Set the password of a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			if err := user.ValidateName("user", a[0]); err != nil {
				return err
			}
			p, err := app.secretPrompter(args)
			if err != nil {
				return err
			}
			password, err := readNewSecret(cmd, p, "password")
			if err != nil {
				return err
			}
			defer util.Wipe(password)
			t, err := user.NewChangePasswordTask(a[0], password)
			if err != nil {
				return err
			}
			return app.runTask(cmd, args, t)
		},
	}
}

func newUserModCmd(app *App, args *runtime.CliArgs) *cobra.Command {
	var (
		fullName string
		shell    string
		home     string
		moveHome bool
		expire   string
		lock     bool
		unlock   bool
	)
	cmd := &cobra.Command{
		Use:   "mod USER",
		Short: "Modify a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			opts := user.ModifyUserOptions{Name: a[0], Shell: shell, Home: home, MoveHome: moveHome}
			flags := cmd.Flags()
			if flags.Changed("full-name") {
				opts.FullName = &fullName
			}
			if flags.Changed("expire") {
				opts.Expiry = &expire
			}
			switch {
			case lock:
				v := true
				opts.Lock = &v
			case unlock:
				v := false
				opts.Lock = &v
			}
			t, err := user.NewModifyUserTask(opts)
			if err != nil {
				return err
			}
			return app.runTask(cmd, args, t)
		},
	}
	cmd.Flags().StringVarP(&fullName, "full-name", "f", "", "full name (GECOS)")
	cmd.Flags().StringVarP(&shell, "shell", "s", "", "login shell")
	cmd.Flags().StringVarP(&home, "home", "d", "", "home directory")
	cmd.Flags().BoolVarP(&moveHome, "move-home", "m", false, "move the contents of the old home directory")
	cmd.Flags().StringVarP(&expire, "expire", "e", "", "expiry date YYYY-MM-DD, or \"never\"")
	cmd.Flags().BoolVarP(&lock, "lock", "L", false, "lock the password")
	cmd.Flags().BoolVarP(&unlock, "unlock", "U", false, "unlock the password")
	cmd.MarkFlagsMutuallyExclusive("lock", "unlock")
	return cmd
}

func newGroupCmd(use, short string, posArgs cobra.PositionalArgs, app *App, args *runtime.CliArgs,
	build func([]string) (*user.GroupTask, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  posArgs,
		RunE: func(cmd *cobra.Command, a []string) error {
			t, err := build(a)
			if err != nil {
				return err
			}
			return app.runTask(cmd, args, t)
		},
	}
}

// splitList accepts both "a,b c" and "a" "b" "c".
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}
