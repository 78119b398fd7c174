package service

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// DefaultCandidates returns the ordered locations where the backend
// server executable is expected, relative to the running binary:
// alongside it first, then in a binaries/ subdirectory.
func DefaultCandidates() []string {
	exe := "zerobyte-server"
	if runtime.GOOS == "windows" {
		exe += ".exe"
	}

	self, err := os.Executable()
	if err != nil {
		return []string{exe, filepath.Join("binaries", exe)}
	}
	dir := filepath.Dir(self)
	return []string{
		filepath.Join(dir, exe),
		filepath.Join(dir, "binaries", exe),
	}
}

// ResolveExecutable returns the first candidate path that exists as a
// regular file. Resolution happens per operation so a freshly deployed
// binary is picked up without restarting.
func ResolveExecutable(candidates []string) (string, error) {
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		return abs, nil
	}
	return "", newError(ErrCodeExecutableNotFound,
		fmt.Sprintf("no server executable found in %d candidate locations", len(candidates)), nil)
}
