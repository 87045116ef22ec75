package tui

import (
	"fmt"
	"os"

	"zendex/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
)

func Start(w *watcher.Watcher, version string) {
	Version = version
	p := tea.NewProgram(
		initialModel(w),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
