package user

import (
	"strings"

	"github.com/mensylisir/xmadmin/step/privcmd"
	"github.com/mensylisir/xmadmin/task"
	"github.com/mensylisir/xmadmin/util"
)

// GroupTask runs a single group-management command.
type GroupTask struct {
	task.BaseTask
}

func newGroupTask(name, description, stepName string, args ...string) *GroupTask {
	t := &GroupTask{BaseTask: task.NewBaseTask(name, description)}
	t.AddStep(privcmd.NewPrivilegedCommandStep(stepName, description, args...))
	return t
}

func NewAddGroupTask(group string) (*GroupTask, error) {
	if err := ValidateName("group", group); err != nil {
		return nil, err
	}
	return newGroupTask("add-group", "Create group "+group, "groupadd", "groupadd", group), nil
}

func NewDeleteGroupTask(group string) (*GroupTask, error) {
	if err := ValidateName("group", group); err != nil {
		return nil, err
	}
	return newGroupTask("delete-group", "Delete group "+group, "groupdel", "groupdel", group), nil
}

// NewJoinGroupTask appends group to the user's supplementary groups.
func NewJoinGroupTask(user, group string) (*GroupTask, error) {
	if err := ValidateName("user", user); err != nil {
		return nil, err
	}
	if err := ValidateName("group", group); err != nil {
		return nil, err
	}
	return newGroupTask("join-group", "Add "+user+" to group "+group, "usermod-append",
		"usermod", "-a", "-G", group, user), nil
}

// NewLeaveGroupTask removes the user from one supplementary group.
func NewLeaveGroupTask(user, group string) (*GroupTask, error) {
	if err := ValidateName("user", user); err != nil {
		return nil, err
	}
	if err := ValidateName("group", group); err != nil {
		return nil, err
	}
	return newGroupTask("leave-group", "Remove "+user+" from group "+group, "gpasswd-delete",
		"gpasswd", "-d", user, group), nil
}

// NewSetGroupsTask replaces the user's supplementary groups.
func NewSetGroupsTask(user string, groups []string) (*GroupTask, error) {
	if err := ValidateName("user", user); err != nil {
		return nil, err
	}
	groups = util.UniqueStrings(groups)
	if err := validateNames("group", groups); err != nil {
		return nil, err
	}
	list := strings.Join(groups, ",")
	return newGroupTask("set-groups", "Set groups of "+user+" to "+list, "usermod-groups",
		"usermod", "-G", list, user), nil
}
