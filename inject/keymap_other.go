//go:build !linux

package inject

// Punctuation depends on the keyboard layout here; such text is pasted.
var platformKeys = map[rune]stroke{}
