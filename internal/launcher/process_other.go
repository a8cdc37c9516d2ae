//go:build !unix

package launcher

import (
	"os"
	"syscall"
)

// Without process groups only the world process itself is signalled.

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

func signalGroup(pid int, sig syscall.Signal) {
	if p, err := os.FindProcess(pid); err == nil {
		p.Kill()
	}
}

func groupAlive(pid int) bool {
	return false
}
