package user

import (
	"github.com/mensylisir/xmadmin/step/privcmd"
	"github.com/mensylisir/xmadmin/task"
)

const DefaultShell = "/bin/bash"

// AddUserOptions describes a new account.
type AddUserOptions struct {
	Name       string
	Shell      string
	CreateHome bool
	// Password, when set, is applied with chpasswd after the account exists.
	Password []byte
}

// AddUserTask creates an account and optionally sets its password.
type AddUserTask struct {
	task.BaseTask
}

func NewAddUserTask(opts AddUserOptions) (*AddUserTask, error) {
	if err := ValidateName("user", opts.Name); err != nil {
		return nil, err
	}
	if opts.Shell == "" {
		opts.Shell = DefaultShell
	}
	if err := validatePath("shell", opts.Shell); err != nil {
		return nil, err
	}
	if opts.Password != nil {
		if err := validatePassword(opts.Password); err != nil {
			return nil, err
		}
	}

	args := []string{"useradd"}
	if opts.CreateHome {
		args = append(args, "-m")
	}
	args = append(args, "-s", opts.Shell, opts.Name)

	t := &AddUserTask{BaseTask: task.NewBaseTask("add-user", "Create user "+opts.Name)}
	t.AddStep(privcmd.NewPrivilegedCommandStep("useradd", "Create account "+opts.Name, args...))
	if opts.Password != nil {
		t.AddStep(privcmd.NewPrivilegedInputStep("chpasswd", "Set password of "+opts.Name,
			chpasswdInput(opts.Name, opts.Password), true, "chpasswd"))
	}
	return t, nil
}

// DeleteUserTask removes an account.
type DeleteUserTask struct {
	task.BaseTask
}

func NewDeleteUserTask(name string, removeHome bool) (*DeleteUserTask, error) {
	if err := ValidateName("user", name); err != nil {
		return nil, err
	}
	args := []string{"userdel"}
	if removeHome {
		args = append(args, "-r")
	}
	args = append(args, name)

	t := &DeleteUserTask{BaseTask: task.NewBaseTask("delete-user", "Delete user "+name)}
	t.AddStep(privcmd.NewPrivilegedCommandStep("userdel", "Delete account "+name, args...))
	return t, nil
}

// ChangePasswordTask sets a password through chpasswd. The password never
// appears on argv.
type ChangePasswordTask struct {
	task.BaseTask
}

func NewChangePasswordTask(name string, password []byte) (*ChangePasswordTask, error) {
	if err := ValidateName("user", name); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	t := &ChangePasswordTask{BaseTask: task.NewBaseTask("change-password", "Change password of "+name)}
	t.AddStep(privcmd.NewPrivilegedInputStep("chpasswd", "Set password of "+name,
		chpasswdInput(name, password), true, "chpasswd"))
	return t, nil
}
