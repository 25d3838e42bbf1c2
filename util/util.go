package util

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var (
	homeDir     string
	homeDirErr  error
	homeDirOnce sync.Once
)

// Home returns the home directory for the current user.
// It caches the result for subsequent calls.
func Home() (string, error) {
	homeDirOnce.Do(func() {
		u, err := user.Current()
		if err == nil && u.HomeDir != "" {
			homeDir = u.HomeDir
			return
		}
		if home := os.Getenv("HOME"); home != "" {
			homeDir = home
			return
		}
		homeDirErr = errors.New("cannot determine home directory: user lookup failed and HOME is blank")
	})
	return homeDir, homeDirErr
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// FileExists checks if a file exists at the given path and is not a directory.
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// FirstNonEmpty returns the first non-empty string from a list of strings.
func FirstNonEmpty(strs ...string) string {
	for _, s := range strs {
		if s != "" {
			return s
		}
	}
	return ""
}

// UniqueStrings returns the unique strings of slice in order of first appearance.
func UniqueStrings(slice []string) []string {
	seen := make(map[string]struct{}, len(slice))
	result := make([]string, 0, len(slice))
	for _, str := range slice {
		if _, ok := seen[str]; !ok {
			seen[str] = struct{}{}
			result = append(result, str)
		}
	}
	return result
}

// CombineErrors joins the non-nil errors into one, or returns nil.
func CombineErrors(errs ...error) error {
	var errStrings []string
	for _, err := range errs {
		if err != nil {
			errStrings = append(errStrings, err.Error())
		}
	}
	if len(errStrings) == 0 {
		return nil
	}
	return errors.New(strings.Join(errStrings, "; "))
}

// Wipe overwrites b with zeros.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
