package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

var stdin io.Reader = os.Stdin

// confirm prints prompt and reports whether the answer was y or yes.
func confirm(prompt string) (bool, error) {
	reader := bufio.NewReader(stdin)
	fmt.Fprint(stdout, prompt)
	input, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	input = strings.TrimSpace(strings.ToLower(input))
	return input == "y" || input == "yes", nil
}

// editor returns the $EDITOR command line split into fields, defaulting to vim.
func editor() []string {
	if fields := strings.Fields(os.Getenv("EDITOR")); len(fields) > 0 {
		return fields
	}
	return []string{"vim"}
}

// editFile opens path in the user's editor and waits for it to exit.
func editFile(path string) error {
	fields := editor()
	cmd := exec.Command(fields[0], append(fields[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor failed: %w", err)
	}
	return nil
}
