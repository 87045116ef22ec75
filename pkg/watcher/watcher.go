package watcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"zendex/pkg/config"
	"zendex/pkg/models"
	"zendex/pkg/wallet"

	"github.com/ethereum/go-ethereum/log"
)

const maxHistory = 2880

var ErrUnknownToken = errors.New("unknown token")

// Wallet is the handshake as seen by the watcher.
type Wallet interface {
	CheckExistingSession(ctx context.Context) models.WalletSession
	Connect(ctx context.Context) models.HandshakeOutcome
	RefreshNativeBalance(ctx context.Context, session models.WalletSession) string
	WatchAsset(ctx context.Context, token config.TokenConfig) (bool, error)
}

// Watcher owns the wallet session for the presentation layer. It polls the
// native balance, fans events out to subscribers and clears status messages
// after a delay.
type Watcher struct {
	config config.Config
	wallet Wallet

	session models.WalletSession
	status  models.Status
	history []models.BalancePoint

	statusGen  uint64
	clearTimer *time.Timer

	subscribers []Subscriber
	mu          sync.RWMutex
	restoreMu   sync.Mutex
	stopOnce    sync.Once
	stopChan    chan struct{}
}

// NewWatcher creates a new Watcher instance. The wallet is set separately
// because the handshake reports its status back to the watcher.
func NewWatcher(cfg config.Config) *Watcher {
	return &Watcher{
		config:   cfg,
		session:  models.Disconnected(),
		stopChan: make(chan struct{}),
	}
}

// SetWallet sets the handshake the watcher drives.
func (w *Watcher) SetWallet(wl Wallet) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.wallet = wl
}

func (w *Watcher) getWallet() Wallet {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.wallet
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (w *Watcher) Subscribe() Subscriber {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(Subscriber, 100)
	w.subscribers = append(w.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (w *Watcher) Unsubscribe(ch Subscriber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, sub := range w.subscribers {
		if sub == ch {
			w.subscribers = append(w.subscribers[:i], w.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (w *Watcher) notify(event Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, sub := range w.subscribers {
		select {
		case sub <- event:
		default:
			log.Debug("Dropping event for slow subscriber", "type", event.Type)
		}
	}
}

// Start restores an existing session and begins balance polling.
func (w *Watcher) Start(ctx context.Context) {
	go w.pollingLoop(ctx)
}

// Stop stops the polling loop.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}

func (w *Watcher) pollInterval() time.Duration {
	secs := w.config.Global.PollIntervalSeconds
	if secs <= 0 {
		secs = config.DefaultGlobalConfig().PollIntervalSeconds
	}
	return time.Duration(secs) * time.Second
}

func (w *Watcher) pollingLoop(ctx context.Context) {
	w.Restore(ctx)

	ticker := time.NewTicker(w.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Refresh(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Restore rebuilds the session from already-authorized accounts. It runs at
// start and again whenever a wallet page attaches; calls are serialized.
func (w *Watcher) Restore(ctx context.Context) models.WalletSession {
	w.restoreMu.Lock()
	defer w.restoreMu.Unlock()

	wl := w.getWallet()
	if wl == nil {
		return w.GetSession()
	}
	session := wl.CheckExistingSession(ctx)
	if session.Connected {
		w.setSession(session)
	}
	return session
}

// Connect runs a handshake. A failed attempt leaves the session as it was.
func (w *Watcher) Connect(ctx context.Context) models.HandshakeOutcome {
	wl := w.getWallet()
	if wl == nil {
		err := wallet.ErrProviderUnavailable
		return models.HandshakeOutcome{Session: w.GetSession(), Err: err, Reason: err.Error()}
	}
	out := wl.Connect(ctx)
	if out.OK() {
		w.setSession(out.Session)
	}
	return out
}

// Refresh re-reads the native balance of a connected session.
func (w *Watcher) Refresh(ctx context.Context) {
	wl := w.getWallet()
	session := w.GetSession()
	if wl == nil || !session.Connected {
		return
	}
	balance := wl.RefreshNativeBalance(ctx, session)

	w.mu.Lock()
	if !w.session.Connected || w.session.Address != session.Address {
		w.mu.Unlock()
		return
	}
	w.session.Balance = balance
	w.appendHistory(balance)
	updated := w.session
	w.mu.Unlock()

	w.notify(Event{Type: EventBalanceUpdated, Data: updated})
}

// WatchAsset asks the wallet to track the configured token with symbol.
func (w *Watcher) WatchAsset(ctx context.Context, symbol string) error {
	token, ok := w.config.FindToken(symbol)
	if !ok {
		return fmt.Errorf("%w %s", ErrUnknownToken, symbol)
	}
	wl := w.getWallet()
	if wl == nil {
		return wallet.ErrProviderUnavailable
	}
	added, err := wl.WatchAsset(ctx, token)
	if err != nil {
		return err
	}
	if added {
		w.Notify(models.Status{Kind: StatusInfo, Message: fmt.Sprintf("%s added to wallet", token.Symbol), At: time.Now()})
	}
	return nil
}

// StatusInfo is the kind of status messages the watcher itself publishes.
const StatusInfo = "info"

// Notify implements wallet.StatusNotifier. A newer status cancels the
// pending clear of the previous one.
func (w *Watcher) Notify(status models.Status) {
	w.mu.Lock()
	w.status = status
	w.statusGen++
	gen := w.statusGen
	if w.clearTimer != nil {
		w.clearTimer.Stop()
		w.clearTimer = nil
	}
	if delay := w.clearDelay(status.Kind); delay > 0 {
		w.clearTimer = time.AfterFunc(delay, func() { w.clearStatus(gen) })
	}
	w.mu.Unlock()

	w.notify(Event{Type: EventStatusUpdated, Data: status})
}

// clearDelay is zero for in-progress statuses, which stay until replaced.
func (w *Watcher) clearDelay(kind string) time.Duration {
	switch kind {
	case wallet.StatusFailed:
		return time.Duration(w.config.Global.ErrorClearSeconds) * time.Second
	case wallet.StatusConnected, StatusInfo:
		return time.Duration(w.config.Global.StatusClearSeconds) * time.Second
	default:
		return 0
	}
}

func (w *Watcher) clearStatus(gen uint64) {
	w.mu.Lock()
	if gen != w.statusGen {
		w.mu.Unlock()
		return
	}
	w.status = models.Status{}
	w.clearTimer = nil
	w.mu.Unlock()

	w.notify(Event{Type: EventStatusCleared})
}

func (w *Watcher) setSession(session models.WalletSession) {
	w.mu.Lock()
	w.session = session
	w.history = w.history[:0]
	w.appendHistory(session.Balance)
	w.mu.Unlock()

	w.notify(Event{Type: EventSessionUpdated, Data: session})
}

// appendHistory expects w.mu to be held.
func (w *Watcher) appendHistory(balance string) {
	v, err := strconv.ParseFloat(balance, 64)
	if err != nil {
		return
	}
	w.history = append(w.history, models.BalancePoint{Timestamp: time.Now(), Value: v})
	if len(w.history) > maxHistory {
		w.history = w.history[len(w.history)-maxHistory:]
	}
}

// GetSession returns the current session.
func (w *Watcher) GetSession() models.WalletSession {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.session
}

// GetStatus returns the current status message, empty when cleared.
func (w *Watcher) GetStatus() models.Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// GetBalanceHistory returns a copy of the balance readings of this session.
func (w *Watcher) GetBalanceHistory() []models.BalancePoint {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cp := make([]models.BalancePoint, len(w.history))
	copy(cp, w.history)
	return cp
}

// Config returns the configuration the watcher was built with.
func (w *Watcher) Config() config.Config {
	return w.config
}
