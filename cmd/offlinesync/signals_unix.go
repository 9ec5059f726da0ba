//go:build unix

package main

import (
	"os"
	"syscall"
)

// triggerSignals request an immediate background sync.
var triggerSignals = []os.Signal{syscall.SIGUSR1}
