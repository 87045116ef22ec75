package tui

import (
	"time"

	"zendex/pkg/config"
	"zendex/pkg/models"
	"zendex/pkg/watcher"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

// --- Messages ---

type clearStatusMsg struct{ gen int }
type connectResultMsg models.HandshakeOutcome
type watchResultMsg struct {
	symbol string
	err    error
}
type refreshDoneMsg struct{}

// --- Model ---

type model struct {
	network       config.NetworkDescriptor
	tokens        []config.TokenConfig
	global        config.GlobalConfig
	session       models.WalletSession
	history       []models.BalancePoint
	width         int
	height        int
	connecting    bool
	spinner       spinner.Model
	statusMessage string
	statusKind    string
	statusGen     int
	tokenIdx      int
	showHelp      bool
	lastUpdate    time.Time
	watcher       *watcher.Watcher
	sub           watcher.Subscriber
}

func initialModel(w *watcher.Watcher) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	cfg := w.Config()
	return model{
		network: cfg.Network,
		tokens:  cfg.Tokens,
		global:  cfg.Global,
		session: w.GetSession(),
		history: w.GetBalanceHistory(),
		spinner: s,
		watcher: w,
		sub:     w.Subscribe(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		listenForWatcher(m.sub),
		m.spinner.Tick,
	)
}
