package overlay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"voxy/feedback"
	"voxy/log"
)

// noVoiceLevel is the peak below which a recording is flagged as silent.
const noVoiceLevel = 0.02

type pollMsg time.Time

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	procStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	standbyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldHelp     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	panelStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("236")).
			Padding(0, 1)
)

// Info is static text shown under the status line.
type Info struct {
	Hotkey   string
	Provider string
	Model    string
	Device   string
	Version  string
}

type model struct {
	ch       *feedback.Channel
	interval time.Duration
	info     Info

	state   State
	now     time.Time
	spinner spinner.Model
	bar     progress.Model
	width   int
}

func newModel(ch *feedback.Channel, interval time.Duration, info Info) model {
	return model{
		ch:       ch,
		interval: interval,
		info:     info,
		now:      time.Now(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(procStyle)),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(30), progress.WithoutPercentage()),
	}
}

func (m model) poll() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.poll(), m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case pollMsg:
		m.now = time.Time(msg)
		m.ch.Drain(func(fm feedback.Message) {
			m.state.Apply(fm, m.now)
		})
		m.state.Advance(m.now)
		return m, m.poll()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) status() string {
	s := &m.state
	elapsed := FormatElapsed(s.Elapsed(m.now))
	switch s.Phase() {
	case PhaseRecording:
		line := recStyle.Render("● REC "+elapsed) + "  " + m.bar.ViewAs(s.Level)
		if s.Elapsed(m.now) > time.Second && s.Peak < noVoiceLevel {
			line += "\n" + messageStyle.Render("⚠ no voice detected")
		}
		return line
	case PhaseProcessing:
		return m.spinner.View() + procStyle.Render(" transcribing "+elapsed)
	case PhaseMessage:
		if s.Text == feedback.TextInjecting {
			return procStyle.Render("→ " + s.Text)
		}
		return messageStyle.Render("! " + s.Text)
	}
	return standbyStyle.Render("○ STANDBY")
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(m.status())
	b.WriteString("\n\n")

	var info []string
	if m.info.Provider != "" {
		info = append(info, fmt.Sprintf("[%s | %s]", m.info.Provider, m.info.Model))
	}
	if m.info.Device != "" {
		info = append(info, "mic: "+m.info.Device)
	}
	if n := m.state.Sessions(); n > 0 {
		info = append(info, fmt.Sprintf("recordings: %d", n))
	}
	if d := m.ch.Dropped(); d > 0 {
		info = append(info, fmt.Sprintf("dropped updates: %d", d))
	}
	for _, line := range info {
		b.WriteString(infoStyle.Render(line) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(boldHelp.Render(m.info.Hotkey) + helpStyle.Render(" to record, q to quit"))
	if m.info.Version != "" {
		b.WriteString("\n" + helpStyle.Render("voxy "+m.info.Version))
	}

	panel := panelStyle
	if m.width > 4 {
		panel = panel.MaxWidth(m.width)
	}
	return panel.Render(b.String())
}

// RunTUI drains ch every interval and renders the overlay in the terminal
// until ctx is cancelled or the user quits.
func RunTUI(ctx context.Context, ch *feedback.Channel, interval time.Duration, info Info) error {
	if interval <= 0 {
		interval = feedback.DefaultPollInterval
	}
	p := tea.NewProgram(newModel(ch, interval, info), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	if err != nil {
		log.Errorf("overlay: %v", err)
	}
	return err
}
