//go:build !gui

package main

const guiAvailable = false

func runGUI(*environment) int { return 1 }
