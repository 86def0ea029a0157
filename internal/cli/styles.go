package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"

	"github.com/erg0nix/handover/internal/status"
)

var (
	colorPrimary = lipgloss.Color("#7C71F9")
	colorSuccess = lipgloss.Color("#34D399")
	colorError   = lipgloss.Color("#F87171")
	colorWarning = lipgloss.Color("#FBBF24")
	colorDim     = lipgloss.Color("#6B7280")
	colorAccent  = lipgloss.Color("#60A5FA")
)

var (
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleError   = lipgloss.NewStyle().Foreground(colorError)
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning)
	styleAccent  = lipgloss.NewStyle().Foreground(colorAccent)
	styleLabel   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)

	styleTableHeader = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
)

func phaseStyle(phase status.Phase) lipgloss.Style {
	switch phase {
	case status.PhasePass1, status.PhasePass2:
		return styleWarning
	case status.PhaseDone:
		return styleSuccess
	case status.PhaseError:
		return styleError
	default:
		return styleDim
	}
}

// statusBarStyles are phase styles bound to w with basic ANSI colours forced
// on: the host reads the status line through a pipe but renders its colours.
func statusBarStyles(w io.Writer) func(status.Phase) lipgloss.Style {
	r := lipgloss.NewRenderer(w, termenv.WithProfile(termenv.ANSI))
	r.SetColorProfile(termenv.ANSI)

	active := r.NewStyle().Foreground(lipgloss.Color("11"))
	ready := r.NewStyle().Foreground(lipgloss.Color("10"))
	failed := r.NewStyle().Foreground(lipgloss.Color("9"))

	return func(phase status.Phase) lipgloss.Style {
		switch phase {
		case status.PhaseDone:
			return ready
		case status.PhaseError:
			return failed
		default:
			return active
		}
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Headers(headers...).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderHeader(true).
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleTableHeader
			}
			return lipgloss.NewStyle().PaddingRight(2)
		})
}

func styledError(msg string, hints ...string) string {
	out := styleError.Render(msg)
	for _, h := range hints {
		out += "\n  " + styleDim.Render(h)
	}
	return out
}
