//go:build unix && !linux

package launcher

import "syscall"

func groupAlive(pgid int) bool {
	return syscall.Kill(-pgid, 0) == nil
}
