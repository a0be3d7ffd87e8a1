// Unix signal handling for stopping long-running subcommands.
//
// SIGINT (Ctrl+C) and SIGTERM, sent by process managers, both cancel the
// command context.

//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals are the signals that cancel the command context.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
