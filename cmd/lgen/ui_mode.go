package main

import (
	"fmt"
	"os"
	"strings"
)

type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return uiModeAuto, nil
	case "on", "true", "always":
		return uiModeOn, nil
	case "off", "false", "never":
		return uiModeOff, nil
	default:
		return "", &usageError{msg: fmt.Sprintf("invalid --ui value %q (expected auto|on|off)", value)}
	}
}

// shouldUseTUI decides whether the progress view replaces plain output. In
// auto mode it needs a terminal and a TERM that can redraw.
func shouldUseTUI(mode uiMode) bool {
	switch mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	default:
		return isTerminal(os.Stdout) && os.Getenv("TERM") != "dumb"
	}
}
