// Windows signal handling for stopping long-running subcommands.
//
// Windows has no SIGTERM; the Go runtime maps CTRL_BREAK_EVENT and
// console-close events to os.Interrupt.

//go:build windows

package main

import "os"

// shutdownSignals are the signals that cancel the command context.
var shutdownSignals = []os.Signal{os.Interrupt}
