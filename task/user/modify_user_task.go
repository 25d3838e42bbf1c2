package user

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmadmin/step/privcmd"
	"github.com/mensylisir/xmadmin/task"
	xmtime "github.com/mensylisir/xmadmin/time"
)

// neverExpires makes usermod -e clear the expiry date.
const neverExpires = "-1"

// ModifyUserOptions lists account changes. Unset fields are left alone.
type ModifyUserOptions struct {
	Name     string
	FullName *string
	Shell    string
	Home     string
	MoveHome bool
	// Expiry is YYYY-MM-DD, or empty / "never" to remove the expiry date.
	Expiry *string
	// Lock locks (true) or unlocks (false) the password.
	Lock *bool
}

// ModifyUserTask applies each requested change with its own command.
type ModifyUserTask struct {
	task.BaseTask
}

func NewModifyUserTask(opts ModifyUserOptions) (*ModifyUserTask, error) {
	if err := ValidateName("user", opts.Name); err != nil {
		return nil, err
	}
	name := opts.Name
	t := &ModifyUserTask{BaseTask: task.NewBaseTask("modify-user", "Modify user "+name)}

	if opts.FullName != nil {
		if strings.ContainsAny(*opts.FullName, ":,=\n") {
			return nil, errors.Errorf("full name %q cannot contain ':', ',', '=' or line breaks", *opts.FullName)
		}
		if *opts.FullName == "" {
			return nil, errors.New("full name cannot be empty")
		}
		t.AddStep(privcmd.NewPrivilegedCommandStep("chfn", "Set full name of "+name,
			"chfn", "-f", *opts.FullName, name))
	}
	if opts.Shell != "" {
		if err := validatePath("shell", opts.Shell); err != nil {
			return nil, err
		}
		t.AddStep(privcmd.NewPrivilegedCommandStep("usermod-shell", "Set login shell of "+name,
			"usermod", "-s", opts.Shell, name))
	}
	if opts.Home != "" {
		if err := validatePath("home directory", opts.Home); err != nil {
			return nil, err
		}
		args := []string{"usermod"}
		if opts.MoveHome {
			args = append(args, "-m")
		}
		args = append(args, "-d", opts.Home, name)
		t.AddStep(privcmd.NewPrivilegedCommandStep("usermod-home", "Set home directory of "+name, args...))
	}
	if opts.Expiry != nil {
		expiry, err := expiryArg(*opts.Expiry)
		if err != nil {
			return nil, err
		}
		t.AddStep(privcmd.NewPrivilegedCommandStep("usermod-expiry", "Set expiry date of "+name,
			"usermod", "-e", expiry, name))
	}
	if opts.Lock != nil {
		flag, desc := "-U", "Unlock account "
		if *opts.Lock {
			flag, desc = "-L", "Lock account "
		}
		t.AddStep(privcmd.NewPrivilegedCommandStep("usermod-lock", desc+name, "usermod", flag, name))
	}

	if len(t.Steps()) == 0 {
		return nil, errors.Errorf("no changes requested for user %s", name)
	}
	return t, nil
}

func expiryArg(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "never") {
		return neverExpires, nil
	}
	d, err := xmtime.ParseExpiryDate(s)
	if err != nil {
		return "", err
	}
	return d.Format(xmtime.ExpiryDateLayout), nil
}
