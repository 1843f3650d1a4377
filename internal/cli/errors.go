package cli

import (
	"errors"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/thinktide/tasks/internal/apperr"
)

var (
	// Errors go to stderr, so colour support is detected there.
	stderrRenderer   = lipgloss.NewRenderer(os.Stderr)
	userErrorStyle   = stderrRenderer.NewStyle().Foreground(lipgloss.Color("3"))
	systemErrorStyle = stderrRenderer.NewStyle().Foreground(lipgloss.Color("1"))

	// typePrefix matches a leading Go-style type name such as "*url.Error: ".
	typePrefix = regexp.MustCompile(`^\*?[A-Za-z_][\w.]*(Error|Exception): `)
)

const debugHint = "\n\nRun with --debug for more information."

// formatError renders err for the terminal.
//
// User errors are yellow and carry their fix instructions. Everything else is
// red; debug details are only shown with --debug.
func formatError(err error, debug bool) string {
	if ue, ok := apperr.AsUserError(err); ok {
		return paint(userErrorStyle, ue.Error())
	}

	var se *apperr.SystemError
	if errors.As(err, &se) {
		msg := se.Message
		if debug && se.DebugInfo != "" {
			msg += "\n\nDebug information: " + se.DebugInfo
			if se.Err != nil {
				msg += "\n\nOriginal error: " + se.Err.Error()
			}
		} else {
			msg += debugHint
		}
		return paint(systemErrorStyle, msg)
	}

	var svc *apperr.ServiceError
	if errors.As(err, &svc) {
		msg := svc.Error()
		if debug {
			msg += "\n\nDebug information: " + svc.DebugInfo()
		} else {
			msg += debugHint
		}
		return paint(systemErrorStyle, msg)
	}

	msg := err.Error()
	if debug {
		return paint(systemErrorStyle, msg)
	}
	return paint(systemErrorStyle, typePrefix.ReplaceAllString(msg, "")+debugHint)
}

// paint styles each line on its own. Rendering the block at once would pad
// every line to the width of the longest.
func paint(style lipgloss.Style, msg string) string {
	lines := strings.Split(msg, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = style.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
