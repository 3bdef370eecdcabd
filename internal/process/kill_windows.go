//go:build windows

package process

import (
	"fmt"
	"os/exec"
	"strconv"
)

// KillProcessGroup kills pid and its children with taskkill.
// /F = force kill, /T = terminate child processes (tree kill).
func KillProcessGroup(pid int) error {
	if pid < 2 {
		return fmt.Errorf("%w: pid %d", ErrInvalidPID, pid)
	}
	if err := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run(); err != nil { // #nosec G204 -- pid is numeric
		return fmt.Errorf("taskkill %d: %w", pid, err)
	}
	return nil
}
