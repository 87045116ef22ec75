package tui

import (
	"fmt"
	"strings"

	"zendex/pkg/utils"
	"zendex/pkg/wallet"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

func (m model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}

	header := titleStyle.Render(fmt.Sprintf("ZenChain DEX %s", Version))

	sections := []string{
		header,
		m.viewNetwork(),
		m.viewWallet(),
	}
	if graph := m.viewBalanceGraph(); graph != "" {
		sections = append(sections, graph)
	}
	sections = append(sections, m.viewTokens(), m.viewStatus(), subtleStyle.Render("c connect • r refresh • y copy • o explorer • w watch token • ? help • q quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m model) viewNetwork() string {
	id, _ := m.network.ChainIDUint64()
	lines := []string{
		tableHeaderStyle.Render("Network"),
		fmt.Sprintf("%-10s %s", "Name", m.network.ChainName),
		fmt.Sprintf("%-10s %d (%s)", "Chain ID", id, m.network.ChainID),
		fmt.Sprintf("%-10s %s", "Currency", m.network.NativeCurrency.Symbol),
	}
	if len(m.network.RPCURLs) > 0 {
		lines = append(lines, fmt.Sprintf("%-10s %s", "RPC", utils.TruncateString(m.network.RPCURLs[0], 50)))
	}
	if explorer := m.network.ExplorerURL(); explorer != "" {
		lines = append(lines, fmt.Sprintf("%-10s %s", "Explorer", explorer))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func (m model) viewWallet() string {
	lines := []string{tableHeaderStyle.Render("Wallet")}

	if m.connecting {
		lines = append(lines, fmt.Sprintf("%s Connecting...", m.spinner.View()))
	}

	if !m.session.Connected {
		lines = append(lines, subtleStyle.Render("Not connected. Press c to connect."))
		return boxStyle.Render(strings.Join(lines, "\n"))
	}

	lines = append(lines,
		fmt.Sprintf("%-10s %s", "Address", m.session.Address),
		fmt.Sprintf("%-10s %s %s", "Balance", formatBalance(m.session.Balance, m.global.TokenDecimals), m.network.NativeCurrency.Symbol),
	)
	chain := fmt.Sprintf("%-10s %d", "Chain", m.session.ChainID)
	if !m.onTargetChain() {
		chain += " " + errStyle.Render("(not "+m.network.ChainName+", press c)")
	}
	lines = append(lines, chain)
	if !m.lastUpdate.IsZero() {
		lines = append(lines, subtleStyle.Render("Updated "+m.lastUpdate.Format("15:04:05")))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func (m model) viewBalanceGraph() string {
	data := balanceSeries(m.history)
	if len(data) < 2 {
		return ""
	}
	width := 60
	if m.width > 10 && m.width-10 < width {
		width = m.width - 10
	}
	graph := asciigraph.Plot(data,
		asciigraph.Height(6),
		asciigraph.Width(width),
		asciigraph.Precision(4),
		asciigraph.Caption(fmt.Sprintf("%s balance", m.network.NativeCurrency.Symbol)),
	)
	return boxStyle.Render(graph)
}

func (m model) viewTokens() string {
	lines := []string{tableHeaderStyle.Render("Tokens")}
	for i, t := range m.tokens {
		cursor := "  "
		if i == m.tokenIdx {
			cursor = "> "
		}
		kind := utils.ShortAddress(t.Address)
		if t.IsNative() {
			kind = "native"
		}
		line := fmt.Sprintf("%s%-6s %-16s %2d dec  %s", cursor, t.Symbol, utils.TruncateString(t.Name, 16), t.Decimals, kind)
		if i == m.tokenIdx {
			line = infoStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func (m model) viewStatus() string {
	if m.statusMessage == "" {
		return ""
	}
	if m.statusKind == wallet.StatusFailed {
		return errStyle.Render(m.statusMessage)
	}
	return infoStyle.Render(m.statusMessage)
}

func (m model) viewHelp() string {
	rows := [][2]string{
		{"c", "Connect wallet (switches or adds the network)"},
		{"r", "Refresh native balance"},
		{"y", "Copy address to clipboard"},
		{"o", "Open address in block explorer"},
		{"j/k", "Select token"},
		{"w", "Add selected token to wallet"},
		{"?", "Toggle help"},
		{"q", "Quit"},
	}
	var lines []string
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%-6s %s", r[0], r[1]))
	}
	return lipgloss.Place(
		m.width, m.height, lipgloss.Center, lipgloss.Center,
		boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Help"),
			"\n",
			strings.Join(lines, "\n"),
			"\n",
			subtleStyle.Render("Esc to close"),
		)),
	)
}
