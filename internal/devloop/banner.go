package devloop

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	ruleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	urlStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Underline(true)
	pathStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	keyStyle  = lipgloss.NewStyle().Bold(true)
	headStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

const ruleWidth = 60

// ReadyBanner renders the message shown once both the server and the
// watcher of a cycle are ready.
func ReadyBanner(port int, dir string) string {
	rule := ruleStyle.Render(strings.Repeat("─", ruleWidth))

	var b strings.Builder

	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Project test server running at %s\n",
		urlStyle.Render(fmt.Sprintf("http://localhost:%d", port)))
	fmt.Fprintf(&b, "Watcher is ready and watching %s for changes\n", pathStyle.Render(dir))
	b.WriteString("\n")
	fmt.Fprintf(&b, "> Press %s to quit dev mode\n", keyStyle.Render("q"))
	b.WriteString(rule + "\n")

	return b.String()
}

// InfoSection renders the summary printed before the dev loop starts.
func InfoSection(projectName string, baseRoutes []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", headStyle.Render(fmt.Sprintf("Project %s is now set up for local development.", projectName)))

	for _, base := range baseRoutes {
		fmt.Fprintf(&b, "- Initialized local dev for %s component\n", base)
	}

	return b.String()
}
