package tui

import (
	"fmt"
	"time"

	"zendex/pkg/config"
	"zendex/pkg/models"
	"zendex/pkg/wallet"
	"zendex/pkg/watcher"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case watcher.Event:
		cmds = append(cmds, listenForWatcher(m.sub))

		switch msg.Type {
		case watcher.EventSessionUpdated, watcher.EventBalanceUpdated:
			if s, ok := msg.Data.(models.WalletSession); ok {
				m.session = s
			}
			m.history = m.watcher.GetBalanceHistory()
			m.lastUpdate = time.Now()
		case watcher.EventStatusUpdated:
			if s, ok := msg.Data.(models.Status); ok {
				m.setStatus(s.Kind, s.Message)
			}
		case watcher.EventStatusCleared:
			m.statusMessage = ""
			m.statusKind = ""
		}

	case connectResultMsg:
		m.connecting = false
		if msg.Err == nil {
			m.session = msg.Session
			m.history = m.watcher.GetBalanceHistory()
		}

	case watchResultMsg:
		if msg.err != nil {
			m.setStatus(wallet.StatusFailed, fmt.Sprintf("Could not add %s: %v", msg.symbol, msg.err))
			cmds = append(cmds, m.clearAfter(m.global.ErrorClearSeconds))
		}

	case refreshDoneMsg:
		m.session = m.watcher.GetSession()

	case tea.KeyMsg:
		if msg.String() == "?" {
			m.showHelp = !m.showHelp
			return m, nil
		}
		if m.showHelp {
			if msg.String() == "q" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "c":
			if !m.connecting {
				m.connecting = true
				cmds = append(cmds, connectCmd(m.watcher), m.spinner.Tick)
			}

		case "r":
			if m.session.Connected {
				m.setStatus(watcher.StatusInfo, "Refreshing balance...")
				cmds = append(cmds, refreshCmd(m.watcher), m.clearAfter(m.global.StatusClearSeconds))
			}

		case "y":
			if m.session.Connected {
				if err := clipboard.WriteAll(m.session.Address); err != nil {
					m.setStatus(wallet.StatusFailed, "Failed to copy to clipboard")
				} else {
					m.setStatus(watcher.StatusInfo, "Address copied to clipboard!")
				}
				cmds = append(cmds, m.clearAfter(m.global.StatusClearSeconds))
			}

		case "o":
			if !m.session.Connected {
				break
			}
			url := m.network.AddressURL(m.session.Address)
			if url == "" {
				m.setStatus(wallet.StatusFailed, "Explorer URL not configured for this network")
			} else if err := openBrowser(url); err != nil {
				m.setStatus(wallet.StatusFailed, fmt.Sprintf("Failed to open browser: %v", err))
			} else {
				m.setStatus(watcher.StatusInfo, "Opened in browser")
			}
			cmds = append(cmds, m.clearAfter(m.global.StatusClearSeconds))

		case "up", "k":
			if m.tokenIdx > 0 {
				m.tokenIdx--
			}
		case "down", "j":
			if m.tokenIdx < len(m.tokens)-1 {
				m.tokenIdx++
			}

		case "w":
			if tok, ok := m.selectedToken(); ok && !tok.IsNative() && m.session.Connected {
				cmds = append(cmds, watchCmd(m.watcher, tok.Symbol))
			}
		}

	case clearStatusMsg:
		// A newer status owns the line now.
		if msg.gen == m.statusGen {
			m.statusMessage = ""
			m.statusKind = ""
		}
	}

	if m.connecting {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *model) setStatus(kind, message string) {
	m.statusGen++
	m.statusKind = kind
	m.statusMessage = message
}

func (m model) clearAfter(seconds int) tea.Cmd {
	if seconds <= 0 {
		seconds = 2
	}
	gen := m.statusGen
	return tea.Tick(time.Duration(seconds)*time.Second, func(t time.Time) tea.Msg {
		return clearStatusMsg{gen: gen}
	})
}

func (m model) selectedToken() (config.TokenConfig, bool) {
	if m.tokenIdx < 0 || m.tokenIdx >= len(m.tokens) {
		return config.TokenConfig{}, false
	}
	return m.tokens[m.tokenIdx], true
}

// onTargetChain reports whether the session is on the configured network.
func (m model) onTargetChain() bool {
	id, err := m.network.ChainIDUint64()
	return err == nil && m.session.ChainID == id
}
