package commands

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/zrma/go-voiceprint/voiceauth"
)

var (
	acceptColor = lipgloss.Color("#00AF00")
	rejectColor = lipgloss.Color("#D70000")
	warnColor   = lipgloss.Color("#D7AF00")
	mutedColor  = lipgloss.Color("#888888")
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(rejectColor)

	AcceptedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(acceptColor)

	RejectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(rejectColor)

	WarnStyle = lipgloss.NewStyle().Foreground(warnColor)

	KeyStyle = lipgloss.NewStyle().Foreground(mutedColor)
)

func printResult(w io.Writer, res voiceauth.Result) {
	style := RejectedStyle
	if res.Accepted() {
		style = AcceptedStyle
	}
	fmt.Fprintf(w, "%s %.4f %s\n", KeyStyle.Render("Similarity:"), res.Similarity, KeyStyle.Render(fmt.Sprintf("(threshold %.2f)", res.Threshold)))
	fmt.Fprintf(w, "%s %s\n", KeyStyle.Render("Decision:"), style.Render(res.Decision.String()))
}

func printNotEnrolled(w io.Writer, userID string) {
	fmt.Fprintln(w, WarnStyle.Render(fmt.Sprintf("No stored voice for '%s'. Please enroll first.", userID)))
}

func printEnrolled(w io.Writer, userID string) {
	fmt.Fprintln(w, AcceptedStyle.Render(fmt.Sprintf("Voice enrolled for '%s'.", userID)))
}
