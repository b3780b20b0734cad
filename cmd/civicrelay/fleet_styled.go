package main

import (
	"fmt"
	"strings"

	"civicrelay/pkg/types"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	primaryColor   = lipgloss.Color("#FF79C6")
	secondaryColor = lipgloss.Color("#8BE9FD")
	accentColor    = lipgloss.Color("#50FA7B")
	warningColor   = lipgloss.Color("#FFB86C")
	dangerColor    = lipgloss.Color("#FF5555")
	mutedColor     = lipgloss.Color("#6272A4")
	bgLightColor   = lipgloss.Color("#44475A")
	fgColor        = lipgloss.Color("#F8F8F2")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2).
			MarginBottom(1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(20)

	valueStyle = lipgloss.NewStyle().
			Foreground(fgColor).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(secondaryColor).
			Background(bgLightColor).
			Padding(0, 1)

	rowStyle = lipgloss.NewStyle().
			Padding(0, 1)
)

func createPanel(title, content string) string {
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), content))
}

func renderFleetStats(stats *types.FleetStats) {
	utilization := float64(stats.UsedStorage) * 100 / float64(max64(stats.TotalStorage, 1))

	rows := []struct {
		label string
		value string
		style lipgloss.Style
	}{
		{"Nodes Online", fmt.Sprintf("%d / %d", stats.OnlineNodes, len(stats.Nodes)), stateCountStyle(stats.OnlineNodes, len(stats.Nodes))},
		{"Users", fmt.Sprintf("%d", stats.TotalUsers), valueStyle},
		{"Files", fmt.Sprintf("%d", stats.TotalFiles), valueStyle},
		{"Total Storage", formatBytes(stats.TotalStorage), valueStyle},
		{"Used Storage", formatBytes(stats.UsedStorage), valueStyle},
		{"Utilization", miniBar(utilization, 20), valueStyle},
	}

	var summary strings.Builder
	for _, r := range rows {
		summary.WriteString(labelStyle.Render(r.label))
		summary.WriteString(r.style.Render(r.value))
		summary.WriteString("\n")
	}
	if stats.DuplicateNodes > 0 {
		summary.WriteString(lipgloss.NewStyle().Foreground(warningColor).Render(
			fmt.Sprintf("%d duplicate node entries ignored", stats.DuplicateNodes)))
		summary.WriteString("\n")
	}
	fmt.Println(createPanel("STORAGE FLEET", strings.TrimRight(summary.String(), "\n")))

	if len(stats.Nodes) == 0 {
		fmt.Println(mutedStyle.Render("No nodes reported."))
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(bgLightColor)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return rowStyle.Copy().Foreground(fgColor)
		})
	t.Headers("NODE", "STATE", "ADDRESS", "PID", "CHUNKS", "USED", "USAGE")

	for _, n := range stats.Nodes {
		address := "-"
		if n.Port > 0 {
			address = fmt.Sprintf("%s:%d", n.IP, n.Port)
		}
		pid := "-"
		if n.PID > 0 {
			pid = fmt.Sprintf("%d", n.PID)
		}
		usage := float64(n.UsedSpace) * 100 / float64(max64(n.TotalSpace, 1))
		t.Row(
			string(n.ID),
			lipgloss.NewStyle().Foreground(stateColor(n.State)).Render(string(n.State)),
			address,
			pid,
			fmt.Sprintf("%d", n.ChunkCount),
			formatBytes(n.UsedSpace),
			miniBar(usage, 15),
		)
	}
	fmt.Println(createPanel("NODES", t.Render()))
}

func renderChunks(nodeID string, chunks []types.ChunkDescriptor) {
	if len(chunks) == 0 {
		fmt.Println(mutedStyle.Render(fmt.Sprintf("Node %s holds no chunks.", nodeID)))
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(bgLightColor)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return rowStyle
		})
	t.Headers("FILE", "INDEX", "CHUNK", "SIZE")

	var total int64
	for _, ch := range chunks {
		t.Row(ch.Filename, fmt.Sprintf("%d", ch.Index), ch.ChunkID, formatBytes(ch.Size))
		total += ch.Size
	}
	title := fmt.Sprintf("NODE %s  %d chunks, %s", nodeID, len(chunks), formatBytes(total))
	fmt.Println(createPanel(title, t.Render()))
}

func renderResult(operation, result string) {
	color := accentColor
	if result == "Failed" {
		color = dangerColor
	}
	fmt.Printf("%s %s\n", mutedStyle.Render(operation+":"), lipgloss.NewStyle().Foreground(color).Bold(true).Render(result))
}

func miniBar(percentage float64, width int) string {
	filled := int(percentage * float64(width) / 100)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	color := accentColor
	switch {
	case percentage > 80:
		color = dangerColor
	case percentage > 60:
		color = warningColor
	}
	return fmt.Sprintf("%s%s %.1f%%",
		lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("▪", filled)),
		mutedStyle.Render(strings.Repeat("·", width-filled)),
		percentage)
}

func stateColor(state types.NodeState) lipgloss.Color {
	switch state {
	case types.NodeOnline:
		return accentColor
	case types.NodeProcessing:
		return warningColor
	default:
		return dangerColor
	}
}

func stateCountStyle(online, total int) lipgloss.Style {
	switch {
	case total == 0 || online == 0:
		return valueStyle.Copy().Foreground(dangerColor)
	case online < total:
		return valueStyle.Copy().Foreground(warningColor)
	}
	return valueStyle.Copy().Foreground(accentColor)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
