//go:build !windows

package process

import (
	"fmt"
	"syscall"
)

// KillProcessGroup sends SIGKILL to the process group led by pid, which
// reaches Chrome's renderer and GPU children.
func KillProcessGroup(pid int) error {
	if pid < 2 {
		return fmt.Errorf("%w: pid %d", ErrInvalidPID, pid)
	}
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("killing group %d: %w", pid, err)
	}
	return nil
}
