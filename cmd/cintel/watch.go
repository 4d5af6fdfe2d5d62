package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/katehuntsman/cintel-05-cintel/src/analysis"
	"github.com/katehuntsman/cintel-05-cintel/src/monitor"
)

func newWatchCmd(g *globalFlags) *cobra.Command {
	sf := &sourceFlags{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the live readings in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, g, sf)
			if err != nil {
				return err
			}
			mon, err := newMonitor(cfg)
			if err != nil {
				return err
			}
			defer mon.Close()
			// log lines would tear the alt screen
			monitor.SetLogLevel("error")

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			updates, unsubscribe := mon.Subscribe(1)
			defer unsubscribe()
			go func() { _ = mon.Run(ctx) }()

			p := tea.NewProgram(newWatchModel(mon.Source(), updates), tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("watch: %w", err)
			}
			return nil
		},
	}
	sf.register(cmd)
	return cmd
}

type updateMsg monitor.Update

type streamClosedMsg struct{}

// watchModel mirrors the dashboard page in the terminal: value box, clock,
// readings grid and the trend summary.
type watchModel struct {
	src     monitor.Source
	updates <-chan monitor.Update
	grid    table.Model
	last    monitor.Update
	summary *analysis.Summary
	errMsg  string
	width   int
}

func newWatchModel(src monitor.Source, updates <-chan monitor.Update) watchModel {
	fields := src.Fields()
	cols := []table.Column{{Title: analysis.TimestampColumn, Width: 20}}
	for _, f := range fields {
		cols = append(cols, table.Column{Title: f.Key, Width: 10})
	}
	grid := table.New(
		table.WithColumns(cols),
		table.WithHeight(monitor.DefaultWindowSize+1),
		table.WithFocused(false),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#555555")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = lipgloss.NewStyle()
	grid.SetStyles(styles)
	return watchModel{src: src, updates: updates, grid: grid}
}

func waitForUpdate(ch <-chan monitor.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return updateMsg(u)
	}
}

func (m watchModel) Init() tea.Cmd {
	return waitForUpdate(m.updates)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case updateMsg:
		m.apply(monitor.Update(msg))
		return m, waitForUpdate(m.updates)
	case streamClosedMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m *watchModel) apply(u monitor.Update) {
	m.last = u
	f, err := analysis.NewFrame(u.Readings, m.src.Fields())
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	rows := make([]table.Row, 0, f.Len())
	for _, rec := range f.Records() {
		rows = append(rows, table.Row(rec))
	}
	m.grid.SetHeight(len(rows) + 1)
	m.grid.SetRows(rows)
	key := m.src.Fields()[0].Key
	sum, err := analysis.Summarize(f, u.Latest, key)
	if err != nil {
		m.summary = nil
		m.errMsg = err.Error()
		return
	}
	m.summary = &sum
	m.errMsg = ""
}

func (m watchModel) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#6BCB77")).
		MarginBottom(1)
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#555555")).
		Padding(0, 2)
	valueStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD479"))
	statusStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1)

	header := titleStyle.Render(fmt.Sprintf("CINTEL · %s", strings.ToUpper(m.src.Name())))
	if m.last.Seq == 0 {
		return fmt.Sprintf("%s\nwaiting for the first reading…\n%s", header, statusStyle.Render("q to quit"))
	}

	value := "n/a"
	trend := ""
	if m.summary != nil {
		if v, ok := m.summary.Latest.Value(m.summary.Field.Key); ok {
			value = m.summary.Field.Format(v)
		}
		tr := m.summary.Trend
		trend = fmt.Sprintf("%s  slope %+.3f  R² %.2f  min %s  max %s",
			tr.Direction(), tr.Slope, tr.RSquared,
			m.summary.Field.Format(m.summary.Min), m.summary.Field.Format(m.summary.Max))
	}
	valueBox := boxStyle.Render(fmt.Sprintf("Current Value\n%s", valueStyle.Render(value)))
	clockBox := boxStyle.Render(fmt.Sprintf("Current Date and Time\n%s", m.last.Latest.TimestampLabel()))
	top := lipgloss.JoinHorizontal(lipgloss.Top, valueBox, " ", clockBox)
	if m.width > 0 && m.width < lipgloss.Width(top) {
		top = lipgloss.JoinVertical(lipgloss.Left, valueBox, clockBox)
	}

	sections := []string{header, top, boxStyle.Render(m.grid.View())}
	if trend != "" {
		sections = append(sections, "Trend: "+trend)
	}
	if m.errMsg != "" {
		errBlock := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF6B6B")).
			Padding(0, 1).
			Render(fmt.Sprintf("⚠ %s", m.errMsg))
		sections = append(sections, errBlock)
	}
	sections = append(sections, statusStyle.Render(fmt.Sprintf("seq %d · q to quit", m.last.Seq)))
	return strings.Join(sections, "\n")
}
