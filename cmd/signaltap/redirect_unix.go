//go:build !windows

package main

import (
	"os"
	"syscall"
)

// redirectStderr points stderr at f using dup2.
func redirectStderr(f *os.File) {
	syscall.Dup2(int(f.Fd()), int(os.Stderr.Fd()))
}
