package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/erg0nix/handover/internal/status"

	"github.com/spf13/cobra"
)

const watchPollInterval = 500 * time.Millisecond

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow handover progress live",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessionID, _ := cmd.Flags().GetString("session")
			untilDone, _ := cmd.Flags().GetBool("until-done")

			app, err := newApp(cmd)
			if err != nil {
				return err
			}

			model := newWatchModel(app.Recorder(), sessionID, app.Config.Status.ReadyDisplay())
			model.untilDone = untilDone

			p := tea.NewProgram(model, tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.OutOrStdout()))
			final, err := p.Run()
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}

			if m, ok := final.(watchModel); ok && m.err != nil {
				return m.err
			}
			return nil
		},
	}

	cmd.Flags().String("session", "", "only follow this session")
	cmd.Flags().Bool("until-done", false, "exit once the run finishes or fails")

	return cmd
}

type statusMsg struct {
	rec status.Record
	err error
}

type pollMsg struct{}

type watchModel struct {
	recorder  *status.Recorder
	sessionID string
	readyFor  time.Duration
	untilDone bool

	spinner spinner.Model
	rec     status.Record
	err     error
	seen    bool
	now     func() time.Time
}

func newWatchModel(recorder *status.Recorder, sessionID string, readyFor time.Duration) watchModel {
	return watchModel{
		recorder:  recorder,
		sessionID: sessionID,
		readyFor:  readyFor,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styleWarning)),
		now:       time.Now,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m watchModel) poll() tea.Cmd {
	return func() tea.Msg {
		rec, err := m.recorder.ReadFor(m.sessionID)
		return statusMsg{rec: rec, err: err}
	}
}

func schedulePoll() tea.Cmd {
	return tea.Tick(watchPollInterval, func(time.Time) tea.Msg {
		return pollMsg{}
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pollMsg:
		return m, m.poll()

	case statusMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.rec = msg.rec
		if m.rec.Phase.Active() {
			m.seen = true
		}
		if m.untilDone && m.seen && (m.rec.Phase == status.PhaseDone || m.rec.Phase == status.PhaseError) {
			return m, tea.Quit
		}
		return m, schedulePoll()
	}

	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	switch {
	case m.err != nil:
		b.WriteString(styledError(m.err.Error()))
	case m.rec.IsEmpty():
		b.WriteString(styleDim.Render("waiting for handover activity"))
	case m.rec.Phase.Active():
		b.WriteString(m.spinner.View() + " " + phaseStyle(m.rec.Phase).Render(m.rec.Label(m.now(), m.readyFor)))
	default:
		label := m.rec.Label(m.now(), m.readyFor)
		if label == "" {
			label = "HANDOVER " + string(m.rec.Phase)
		}
		b.WriteString(phaseStyle(m.rec.Phase).Render(label))
		if m.rec.ArtifactPath != "" {
			b.WriteString("  " + styleAccent.Render(m.rec.ArtifactPath))
		}
		if m.rec.Error != "" {
			b.WriteString("\n" + styleDim.Render(m.rec.Error))
		}
	}

	if !m.rec.IsEmpty() {
		b.WriteString("\n" + styleDim.Render("session "+m.rec.SessionID))
	}
	b.WriteString("\n" + styleDim.Render("q to quit") + "\n")
	return b.String()
}
