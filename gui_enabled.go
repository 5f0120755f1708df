//go:build gui

package main

import (
	"voxy/feedback"
	"voxy/gui"
	"voxy/log"
)

const guiAvailable = true

// runGUI hands the calling thread to the desktop overlay and serves
// hotkeys from its ready callback.
func runGUI(env *environment) int {
	served := make(chan int, 1)
	var app *gui.App
	app = gui.NewApp(env.ch, feedback.DefaultPollInterval, func() {
		served <- serve(env, app.Done())
		app.Quit()
	})
	if err := app.Run(); err != nil {
		log.Errorf("gui: %v", err)
		return 1
	}
	return <-served
}
