package user

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

const maxNameLength = 32

// namePattern is the shadow-utils default for user and group names.
var namePattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]*\$?$`)

// ValidateName checks a user or group name before it reaches argv.
func ValidateName(kind, name string) error {
	if name == "" {
		return errors.Errorf("%s name cannot be empty", kind)
	}
	if len(name) > maxNameLength {
		return errors.Errorf("%s name %q is longer than %d characters", kind, name, maxNameLength)
	}
	if !namePattern.MatchString(name) {
		return errors.Errorf("invalid %s name %q: use lowercase letters, digits, '_' or '-', starting with a letter or '_'", kind, name)
	}
	return nil
}

func validateNames(kind string, names []string) error {
	if len(names) == 0 {
		return errors.Errorf("at least one %s name is required", kind)
	}
	for _, n := range names {
		if err := ValidateName(kind, n); err != nil {
			return err
		}
	}
	return nil
}

// validatePassword rejects values that would break the chpasswd line format.
func validatePassword(password []byte) error {
	if len(password) == 0 {
		return errors.New("password cannot be empty")
	}
	if strings.ContainsAny(string(password), "\r\n") {
		return errors.New("password cannot contain line breaks")
	}
	return nil
}

// validatePath checks an absolute path such as a login shell or home directory.
func validatePath(kind, path string) error {
	if !strings.HasPrefix(path, "/") {
		return errors.Errorf("%s must be an absolute path, got %q", kind, path)
	}
	if strings.ContainsAny(path, "\x00\n:") {
		return errors.Errorf("%s %q contains an invalid character", kind, path)
	}
	return nil
}

// chpasswdInput builds the "name:password\n" line read by chpasswd.
func chpasswdInput(name string, password []byte) []byte {
	line := make([]byte, 0, len(name)+len(password)+2)
	line = append(line, name...)
	line = append(line, ':')
	line = append(line, password...)
	return append(line, '\n')
}
