//go:build !linux

package main

import (
	"os"
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	// The GUI overlay needs the main thread for itself; the hotkey
	// package wants it otherwise.
	if wantsGUI(os.Args[1:]) {
		os.Exit(run(os.Args[1:]))
	}
	code := 0
	mainthread.Init(func() { code = run(os.Args[1:]) })
	os.Exit(code)
}

func wantsGUI(args []string) bool {
	for i, a := range args {
		switch a {
		case "-overlay=gui", "--overlay=gui":
			return true
		case "-overlay", "--overlay":
			if i+1 < len(args) && args[i+1] == "gui" {
				return true
			}
		}
	}
	return os.Getenv("VOXY_OVERLAY") == "gui"
}
