package buildpipeline

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// compileObject turns LLVM IR into an object file with clang, falling back
// to llc.
func compileObject(printCommands bool, llPath, objPath string) error {
	if _, err := exec.LookPath("clang"); err == nil {
		if err := runCommand(printCommands, "clang", "-c", "-x", "ir", llPath, "-o", objPath); err == nil {
			return nil
		}
	}
	llcPath, llcErr := exec.LookPath("llc")
	if llcErr != nil {
		return fmt.Errorf("clang failed and llc not found; install with: sudo apt-get install -y clang llvm")
	}
	if err := runCommand(printCommands, llcPath, "-filetype=obj", llPath, "-o", objPath); err != nil {
		return fmt.Errorf("clang and llc failed: %w", err)
	}
	if printCommands {
		if _, err := fmt.Fprintln(os.Stdout, "note: clang IR compile failed; fell back to llc"); err != nil {
			return fmt.Errorf("failed to print command: %w", err)
		}
	}
	return nil
}

func runCommand(printCommands bool, name string, args ...string) error {
	if printCommands {
		_, printErr := fmt.Fprintf(os.Stdout, "%s %s\n", name, strings.Join(args, " "))
		if printErr != nil {
			return fmt.Errorf("failed to print command: %w", printErr)
		}
	}
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return err
		}
		return fmt.Errorf("%s: %s", name, msg)
	}
	return nil
}
