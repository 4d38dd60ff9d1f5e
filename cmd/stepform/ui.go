package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/tbxark/stepform/types"
	"github.com/tbxark/stepform/wizard"
)

var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")
)

var (
	accentStyle  = lipgloss.NewStyle().Foreground(purple)
	successStyle = lipgloss.NewStyle().Foreground(green)
	errorStyle   = lipgloss.NewStyle().Foreground(red)
	warnStyle    = lipgloss.NewStyle().Foreground(yellow)
	mutedStyle   = lipgloss.NewStyle().Foreground(dim)
	boldStyle    = lipgloss.NewStyle().Bold(true)
)

func successMsg(format string, a ...any) string {
	return successStyle.Render("✓") + " " + fmt.Sprintf(format, a...)
}

func warnMsg(format string, a ...any) string {
	return warnStyle.Render("!") + " " + fmt.Sprintf(format, a...)
}

func errorMsg(format string, a ...any) string {
	return errorStyle.Render("✗") + " " + fmt.Sprintf(format, a...)
}

func infoMsg(format string, a ...any) string {
	return accentStyle.Render("●") + " " + fmt.Sprintf(format, a...)
}

func renderTable(headers []string, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	oddStyle := cellStyle.Foreground(dim)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 0:
				return cellStyle
			default:
				return oddStyle
			}
		}).
		Headers(headers...).
		Rows(rows...)
	return t.String()
}

// progressBar renders percent as a fixed width bar.
func progressBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	filled = max(0, min(width, filled))
	return accentStyle.Render(strings.Repeat("█", filled)) +
		mutedStyle.Render(strings.Repeat("░", width-filled)) +
		fmt.Sprintf(" %3.0f%%", percent)
}

// renderStep shows the active step, its fields and outstanding errors.
func renderStep(s *wizard.Session) string {
	status := s.Status()
	if status.State.Phase == types.PhaseIdle {
		return mutedStyle.Render("not loaded")
	}
	steps := s.Steps()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s  %s\n",
		boldStyle.Render(fmt.Sprintf("Step %d/%d", status.State.Step+1, len(steps))),
		accentStyle.Render(status.Label),
		progressBar(status.Progress, 20),
	)
	snapshot := s.Snapshot()
	for _, f := range steps[status.State.Step].Fields {
		name := f.Label
		if name == "" {
			name = f.Key
		}
		marker := " "
		if f.Required {
			marker = "*"
		}
		value := wizard.DisplayValue(snapshot, f.Key)
		if value == "" {
			value = mutedStyle.Render("(empty)")
		}
		fmt.Fprintf(&sb, "  %s %s %s: %s\n", marker, name, mutedStyle.Render("["+f.Key+"]"), value)
		if msg, ok := status.Errors[f.Key]; ok {
			fmt.Fprintf(&sb, "      %s\n", errorStyle.Render(msg))
		}
	}
	if status.StepErr != nil {
		sb.WriteString(errorMsg("%v", status.StepErr) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderSummary(rows []wizard.SummaryRow) string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		saved := mutedStyle.Render("no")
		if r.Saved {
			saved = successStyle.Render("yes")
		}
		out = append(out, []string{fmt.Sprintf("%d. %s", r.Step+1, r.Label), r.Field, r.Value, saved})
	}
	return renderTable([]string{"STEP", "FIELD", "VALUE", "SAVED"}, out)
}

const helpText = `Commands:
  key=value            set a field (lists: comma separated)
  upload KEY PATH      stage a file for a file field
  discard KEY          drop a staged file
  next | back          save and continue, or go back
  jump N|LABEL         go to a saved step
  review               show everything entered so far
  cancel               leave; saved steps are kept`
