package main

import "errors"

// usageError marks bad command-line input.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

// programExit carries the exit code of a program run on the VM.
type programExit struct{ code int }

func (e *programExit) Error() string { return "program exited with a non-zero status" }

// exitCode maps command errors onto process exit codes: 2 for usage errors,
// the program's own status for runs, 1 otherwise.
func exitCode(err error) int {
	var usage *usageError
	if errors.As(err, &usage) {
		return 2
	}
	var exit *programExit
	if errors.As(err, &exit) && exit.code != 0 {
		return exit.code
	}
	return 1
}
