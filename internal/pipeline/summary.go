// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// timeRounding keeps the completion timing readable.
const timeRounding = 10 * time.Millisecond

// printSummary reports the outcome of a completed run: resolved version,
// release links and published packages for every target that succeeded.
func (p *Pipeline) printSummary(res *Result) {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("42"))

	labelStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("214"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	var sb strings.Builder

	sb.WriteString(headerStyle.Render(fmt.Sprintf("✓ Released %s %s → %s", res.Name, res.Previous, res.Version)))
	sb.WriteString("\n")

	writeGroup := func(label string, g *GroupResult) {
		if g == nil {
			return
		}
		if g.Release != nil && g.Release.Released && g.Release.HTMLURL != "" {
			sb.WriteString(labelStyle.Render(label + " release: "))
			sb.WriteString(valueStyle.Render(g.Release.HTMLURL))
			sb.WriteString("\n")
		}
		if g.Receipt != nil && g.Receipt.Published {
			sb.WriteString(labelStyle.Render(label + " package: "))
			sb.WriteString(valueStyle.Render(fmt.Sprintf("%s@%s (tag %s)", g.Receipt.Name, g.Receipt.Version, g.Receipt.Tag)))
			sb.WriteString("\n")
		}
	}
	writeGroup("primary", res.Primary)
	writeGroup("dist", res.Dist)

	sb.WriteString(valueStyle.Render(fmt.Sprintf("completed in %s", res.Duration.Round(timeRounding))))
	sb.WriteString("\n")

	fmt.Fprint(p.out, sb.String())
}
