package tui

import (
	"testing"
	"time"

	"zendex/pkg/config"
	"zendex/pkg/models"
	"zendex/pkg/wallet"
	"zendex/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func newTestModel() model {
	w := watcher.NewWatcher(config.DefaultConfig())
	return initialModel(w)
}

var session = models.WalletSession{
	Connected: true,
	Address:   "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
	Balance:   "1234.5",
	ChainID:   8408,
}

func TestBalanceSeries(t *testing.T) {
	h := []models.BalancePoint{{Timestamp: time.Now(), Value: 1}, {Timestamp: time.Now(), Value: 2.5}}
	assert.Equal(t, []float64{1, 2.5}, balanceSeries(h))
	assert.Empty(t, balanceSeries(nil))
}

func TestFormatBalance(t *testing.T) {
	assert.Equal(t, "1,234.5000", formatBalance("1234.5", 4))
	assert.Equal(t, "n/a", formatBalance("n/a", 4))
}

func TestUpdate_WatcherEvents(t *testing.T) {
	m := newTestModel()

	next, _ := m.Update(watcher.Event{Type: watcher.EventSessionUpdated, Data: session})
	m = next.(model)
	assert.Equal(t, session, m.session)
	assert.True(t, m.onTargetChain())

	next, _ = m.Update(watcher.Event{Type: watcher.EventStatusUpdated, Data: models.Status{Kind: wallet.StatusConnected, Message: "Wallet connected successfully!"}})
	m = next.(model)
	assert.Equal(t, "Wallet connected successfully!", m.statusMessage)
	assert.Contains(t, m.View(), "Wallet connected successfully!")

	next, _ = m.Update(watcher.Event{Type: watcher.EventStatusCleared})
	m = next.(model)
	assert.Empty(t, m.statusMessage)
}

func TestUpdate_ConnectResult(t *testing.T) {
	m := newTestModel()
	m.connecting = true

	next, _ := m.Update(connectResultMsg(models.HandshakeOutcome{Session: session}))
	m = next.(model)
	assert.False(t, m.connecting)
	assert.Equal(t, session, m.session)
	assert.Contains(t, m.View(), session.Address)
}

func TestUpdate_WrongChainWarning(t *testing.T) {
	m := newTestModel()
	other := session
	other.ChainID = 1
	next, _ := m.Update(connectResultMsg(models.HandshakeOutcome{Session: other}))
	m = next.(model)
	assert.False(t, m.onTargetChain())
	assert.Contains(t, m.View(), "not ZenChain Testnet")
}

func TestUpdate_TokenSelection(t *testing.T) {
	m := newTestModel()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m = next.(model)
	tok, ok := m.selectedToken()
	assert.True(t, ok)
	assert.Equal(t, "BTC", tok.Symbol)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	m = next.(model)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	m = next.(model)
	assert.Equal(t, 0, m.tokenIdx)
	tok, _ = m.selectedToken()
	assert.True(t, tok.IsNative())
}

func TestUpdate_Help(t *testing.T) {
	m := newTestModel()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	m = next.(model)
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View(), "Connect wallet")
}

func TestUpdate_StaleClearKeepsNewerStatus(t *testing.T) {
	m := newTestModel()
	m.setStatus(watcher.StatusInfo, "Address copied to clipboard!")
	stale := clearStatusMsg{gen: m.statusGen}

	next, _ := m.Update(watcher.Event{Type: watcher.EventStatusUpdated, Data: models.Status{Kind: wallet.StatusConnecting, Message: "Connecting wallet..."}})
	m = next.(model)

	next, _ = m.Update(stale)
	m = next.(model)
	assert.Equal(t, "Connecting wallet...", m.statusMessage)

	next, _ = m.Update(clearStatusMsg{gen: m.statusGen})
	m = next.(model)
	assert.Empty(t, m.statusMessage)
}
