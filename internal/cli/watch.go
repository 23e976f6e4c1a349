package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskmirror/pkg/models"
)

// Watch panel indices.
const (
	panelTasks = iota
	panelSchedule
	panelSync
	panelCount
)

const watchRefreshInterval = 2 * time.Second

type watchModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	taskCounts map[string]int
	upcoming   []upcomingEntry
	syncState  string
	cacheFresh bool

	loading bool
}

type upcomingEntry struct {
	taskID string
	kind   string // "reminder" or "due"
	fireAt time.Time
}

// refreshMsg carries reloaded data back to the model.
type refreshMsg struct {
	taskCounts map[string]int
	upcoming   []upcomingEntry
	syncState  string
	cacheFresh bool
}

type tickMsg time.Time

// Style definitions.
var (
	watchTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	watchPanelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	watchActivePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	watchHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("62")).
				MarginBottom(1)

	statePendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	stateCompletedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	stateSyncedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	stateOfflineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	watchHelpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newWatchModel() watchModel {
	return watchModel{
		activePanel: panelTasks,
		loading:     true,
		taskCounts:  make(map[string]int),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(refreshData, watchTick())
}

func watchTick() tea.Cmd {
	return tea.Tick(watchRefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			return m, refreshData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(refreshData, watchTick())

	case refreshMsg:
		m.loading = false
		m.taskCounts = msg.taskCounts
		m.upcoming = msg.upcoming
		m.syncState = msg.syncState
		m.cacheFresh = msg.cacheFresh
		return m, nil
	}

	return m, nil
}

func (m watchModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := watchTitleStyle.Render(" Task Mirror ")
	help := watchHelpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	tasksPanel := m.renderTasksPanel()
	schedulePanel := m.renderSchedulePanel()
	syncPanel := m.renderSyncPanel()

	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		colWidth := availableWidth / 3
		tasksPanel = m.applyPanelStyle(panelTasks, tasksPanel, colWidth-4)
		schedulePanel = m.applyPanelStyle(panelSchedule, schedulePanel, colWidth-4)
		syncPanel = m.applyPanelStyle(panelSync, syncPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, tasksPanel, schedulePanel, syncPanel)
	} else {
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		tasksPanel = m.applyPanelStyle(panelTasks, tasksPanel, panelWidth)
		schedulePanel = m.applyPanelStyle(panelSchedule, schedulePanel, panelWidth)
		syncPanel = m.applyPanelStyle(panelSync, syncPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, tasksPanel, schedulePanel, syncPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m watchModel) applyPanelStyle(panel int, content string, width int) string {
	style := watchPanelStyle
	if m.activePanel == panel {
		style = watchActivePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m watchModel) renderTasksPanel() string {
	var b strings.Builder
	b.WriteString(watchHeaderStyle.Render("Tasks"))
	b.WriteString("\n")

	if len(m.taskCounts) == 0 {
		b.WriteString("  No tasks mirrored.")
		return b.String()
	}

	for _, status := range []string{string(models.StatusPending), string(models.StatusCompleted)} {
		count, ok := m.taskCounts[status]
		if !ok || count == 0 {
			continue
		}
		label := fmt.Sprintf("  %-12s %d", status, count)
		b.WriteString(styleForTaskStatus(status).Render(label))
		b.WriteString("\n")
	}

	total := 0
	for _, c := range m.taskCounts {
		total += c
	}
	b.WriteString(fmt.Sprintf("\n  Total: %d", total))

	return b.String()
}

func (m watchModel) renderSchedulePanel() string {
	var b strings.Builder
	b.WriteString(watchHeaderStyle.Render("Upcoming"))
	b.WriteString("\n")

	if len(m.upcoming) == 0 {
		b.WriteString("  No timers armed.")
		return b.String()
	}

	shown := m.upcoming
	if len(shown) > 8 {
		shown = shown[:8]
	}
	for _, e := range shown {
		b.WriteString(fmt.Sprintf("  %-8s %-20s %s\n", e.kind, e.taskID, e.fireAt.Format("15:04:05")))
	}
	b.WriteString(fmt.Sprintf("\n  %d timer(s) armed", len(m.upcoming)))

	return b.String()
}

func (m watchModel) renderSyncPanel() string {
	var b strings.Builder
	b.WriteString(watchHeaderStyle.Render("Sync"))
	b.WriteString("\n")

	style := stateOfflineStyle
	if m.syncState == "synced" {
		style = stateSyncedStyle
	}
	b.WriteString("  State: " + style.Render(m.syncState))
	b.WriteString("\n")

	if m.cacheFresh {
		b.WriteString("  Cache: fresh\n")
	} else {
		b.WriteString("  Cache: absent or stale\n")
	}

	return b.String()
}

func styleForTaskStatus(status string) lipgloss.Style {
	switch status {
	case string(models.StatusPending):
		return statePendingStyle
	case string(models.StatusCompleted):
		return stateCompletedStyle
	default:
		return lipgloss.NewStyle()
	}
}

func refreshData() tea.Msg {
	msg := refreshMsg{
		taskCounts: make(map[string]int),
		syncState:  "disconnected",
	}

	if Store != nil {
		for _, t := range Store.All() {
			msg.taskCounts[string(t.Status)]++
		}
	}

	if Reminders != nil {
		for id, at := range Reminders.Pending() {
			msg.upcoming = append(msg.upcoming, upcomingEntry{taskID: id, kind: "reminder", fireAt: at})
		}
	}
	if DueTimes != nil {
		for id, at := range DueTimes.Pending() {
			msg.upcoming = append(msg.upcoming, upcomingEntry{taskID: id, kind: "due", fireAt: at})
		}
	}
	sort.Slice(msg.upcoming, func(i, j int) bool {
		return msg.upcoming[i].fireAt.Before(msg.upcoming[j].fireAt)
	})

	if Channel != nil {
		msg.syncState = string(Channel.State())
	}
	if Cache != nil {
		_, msg.cacheFresh = Cache.GetTasks()
	}

	return msg
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Interactive dashboard over the mirrored tasks and timers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("task store not initialized")
		}

		p := tea.NewProgram(newWatchModel(), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("running watch dashboard: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
