package tui

import (
	"context"
	"os/exec"
	"runtime"
	"strconv"

	"zendex/pkg/models"
	"zendex/pkg/utils"
	"zendex/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
)

func listenForWatcher(sub watcher.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return ev
	}
}

func connectCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		return connectResultMsg(w.Connect(context.Background()))
	}
}

func refreshCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		w.Refresh(context.Background())
		return refreshDoneMsg{}
	}
}

func watchCmd(w *watcher.Watcher, symbol string) tea.Cmd {
	return func() tea.Msg {
		return watchResultMsg{symbol: symbol, err: w.WatchAsset(context.Background(), symbol)}
	}
}

func formatBalance(balance string, decimals int) string {
	f, err := strconv.ParseFloat(balance, 64)
	if err != nil {
		return balance
	}
	return utils.AddCommas(strconv.FormatFloat(f, 'f', decimals, 64))
}

// balanceSeries returns the values of the balance history for plotting.
func balanceSeries(history []models.BalancePoint) []float64 {
	data := make([]float64, 0, len(history))
	for _, p := range history {
		data = append(data, p.Value)
	}
	return data
}

// openBrowser opens the specified URL in the default browser.
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start"}
	case "darwin":
		cmd = "open"
	default: // "linux", "freebsd", "openbsd", "netbsd"
		cmd = "xdg-open"
	}
	args = append(args, url)
	return exec.Command(cmd, args...).Start()
}
