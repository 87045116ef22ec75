// Package wallet implements the wallet/network handshake: find the provider,
// get an authorized account, make sure the wallet is on the target chain and
// read the native balance.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"zendex/pkg/config"
	"zendex/pkg/models"
	"zendex/pkg/provider"
	"zendex/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// State of the handshake. Connecting is the only transient state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handshake drives a Provider through the connection sequence for one
// target network. At most one Connect runs at a time.
type Handshake struct {
	provider provider.Provider
	network  config.NetworkDescriptor
	notifier StatusNotifier

	targetHex string
	targetID  uint64

	busy atomic.Bool

	mu      sync.RWMutex
	state   State
	session models.WalletSession
}

type Option func(*Handshake)

// WithNotifier sets the receiver of progress messages.
func WithNotifier(n StatusNotifier) Option {
	return func(h *Handshake) {
		if n != nil {
			h.notifier = n
		}
	}
}

// New returns a handshake for network. p may be nil when no wallet is
// injected; every operation then behaves as if the provider were absent.
func New(p provider.Provider, network config.NetworkDescriptor, opts ...Option) (*Handshake, error) {
	if err := network.Validate(); err != nil {
		return nil, err
	}
	targetHex, err := utils.NormalizeChainID(network.ChainID)
	if err != nil {
		return nil, err
	}
	targetID, err := network.ChainIDUint64()
	if err != nil {
		return nil, err
	}

	h := &Handshake{
		provider:  p,
		network:   network,
		notifier:  nopNotifier{},
		targetHex: targetHex,
		targetID:  targetID,
		session:   models.Disconnected(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Handshake) Network() config.NetworkDescriptor {
	return h.network
}

func (h *Handshake) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Session returns a snapshot of the current session.
func (h *Handshake) Session() models.WalletSession {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.session
}

func (h *Handshake) available() bool {
	return provider.IsAvailable(h.provider)
}

// CheckExistingSession rebuilds the session from accounts the wallet has
// already authorized, without prompting. It never fails: any problem yields
// a disconnected session, and the handshake is left disconnected too.
func (h *Handshake) CheckExistingSession(ctx context.Context) models.WalletSession {
	if !h.busy.CompareAndSwap(false, true) {
		return h.Session()
	}
	defer h.busy.Store(false)

	if !h.available() {
		return h.reset()
	}

	var accounts []string
	if err := provider.Call(ctx, h.provider, &accounts, provider.MethodAccounts, nil); err != nil {
		log.Debug("Error checking wallet connection", "err", err)
		return h.reset()
	}
	if len(accounts) == 0 {
		return h.reset()
	}

	session, err := h.readSession(ctx, accounts[0])
	if err != nil {
		log.Debug("Error checking wallet connection", "err", err)
		return h.reset()
	}

	h.mu.Lock()
	h.session = session
	h.state = StateConnected
	h.mu.Unlock()
	log.Info("Restored wallet session", "address", session.Address, "chain", session.ChainID)
	return session
}

func (h *Handshake) reset() models.WalletSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.session = models.Disconnected()
	h.state = StateDisconnected
	return h.session
}

func (h *Handshake) readSession(ctx context.Context, account string) (models.WalletSession, error) {
	address, err := checksumAddress(account)
	if err != nil {
		return models.WalletSession{}, err
	}
	var chainHex string
	if err := provider.Call(ctx, h.provider, &chainHex, provider.MethodChainID, nil); err != nil {
		return models.WalletSession{}, err
	}
	chainID, err := parseChainID(chainHex)
	if err != nil {
		return models.WalletSession{}, err
	}
	balance, err := h.readBalance(ctx, address)
	if err != nil {
		return models.WalletSession{}, err
	}
	return models.WalletSession{Connected: true, Address: address, Balance: balance, ChainID: chainID}, nil
}

// Connect runs the full handshake. On failure the previous session is kept
// as it was and the outcome carries the provider's error message.
func (h *Handshake) Connect(ctx context.Context) models.HandshakeOutcome {
	if !h.available() {
		err := newError(ErrProviderUnavailable, errors.New(InstallWalletMessage))
		h.notifier.Notify(newStatus(StatusFailed, InstallWalletMessage))
		return h.failure(err)
	}
	if !h.busy.CompareAndSwap(false, true) {
		return h.failure(ErrHandshakeInProgress)
	}
	defer h.busy.Store(false)

	h.mu.Lock()
	prev := h.state
	h.state = StateConnecting
	h.mu.Unlock()

	h.notifier.Notify(newStatus(StatusConnecting, "Connecting wallet..."))

	session, err := h.connect(ctx)
	if err != nil {
		h.mu.Lock()
		h.state = prev
		h.mu.Unlock()
		log.Warn("Error connecting wallet", "err", err)
		h.notifier.Notify(newStatus(StatusFailed, fmt.Sprintf("Connection failed: %v", err)))
		return h.failure(err)
	}

	h.mu.Lock()
	h.session = session
	h.state = StateConnected
	h.mu.Unlock()

	log.Info("Wallet connected", "address", session.Address, "chain", session.ChainID, "balance", session.Balance)
	h.notifier.Notify(newStatus(StatusConnected, "Wallet connected successfully!"))
	return models.HandshakeOutcome{Session: session}
}

func (h *Handshake) failure(err error) models.HandshakeOutcome {
	return models.HandshakeOutcome{Session: h.Session(), Err: err, Reason: err.Error()}
}

func (h *Handshake) connect(ctx context.Context) (models.WalletSession, error) {
	var accounts []string
	if err := provider.Call(ctx, h.provider, &accounts, provider.MethodRequestAccounts, nil); err != nil {
		if provider.HasCode(err, provider.CodeUserRejected) {
			return models.WalletSession{}, newError(ErrUserRejected, err)
		}
		return models.WalletSession{}, newError(ErrRequestFailed, err)
	}
	if len(accounts) == 0 {
		return models.WalletSession{}, newError(ErrNoAccounts, errors.New("No accounts found"))
	}
	address, err := checksumAddress(accounts[0])
	if err != nil {
		return models.WalletSession{}, newError(ErrRequestFailed, err)
	}

	var chainHex string
	if err := provider.Call(ctx, h.provider, &chainHex, provider.MethodChainID, nil); err != nil {
		return models.WalletSession{}, newError(ErrRequestFailed, err)
	}
	current, err := utils.NormalizeChainID(chainHex)
	if err != nil {
		return models.WalletSession{}, newError(ErrRequestFailed, err)
	}
	chainID, err := parseChainID(chainHex)
	if err != nil {
		return models.WalletSession{}, newError(ErrRequestFailed, err)
	}

	if current != h.targetHex {
		h.notifier.Notify(newStatus(StatusSwitchingNetwork, fmt.Sprintf("Adding %s...", h.network.ChainName)))
		if err := h.ensureNetwork(ctx); err != nil {
			return models.WalletSession{}, err
		}
		chainID = h.targetID
	}

	balance, err := h.readBalance(ctx, address)
	if err != nil {
		return models.WalletSession{}, newError(ErrBalanceReadFailed, err)
	}

	return models.WalletSession{
		Connected: true,
		Address:   address,
		Balance:   balance,
		ChainID:   chainID,
	}, nil
}

// ensureNetwork switches to the target chain, registering it first when the
// wallet reports it as unrecognized.
func (h *Handshake) ensureNetwork(ctx context.Context) error {
	switchParams := []interface{}{provider.SwitchChainParams{ChainID: h.network.ChainID}}
	err := provider.Call(ctx, h.provider, nil, provider.MethodSwitchChain, switchParams)
	if err == nil {
		return nil
	}
	if !provider.HasCode(err, provider.CodeUnrecognizedChain) {
		return newError(ErrChainSwitchFailed, err)
	}

	log.Info("Registering network with wallet", "chain", h.network.ChainName, "id", h.network.ChainID)
	if err := provider.Call(ctx, h.provider, nil, provider.MethodAddChain, []interface{}{h.network}); err != nil {
		return newError(ErrChainAddFailed, err)
	}
	return nil
}

func (h *Handshake) readBalance(ctx context.Context, address string) (string, error) {
	var hexBalance string
	params := []interface{}{address, provider.BlockLatest}
	if err := provider.Call(ctx, h.provider, &hexBalance, provider.MethodGetBalance, params); err != nil {
		return "", err
	}
	return utils.FormatHexUnits(hexBalance, h.network.NativeCurrency.Decimals)
}

// RefreshNativeBalance re-reads the balance of a connected session. Errors
// are swallowed and the previous balance is returned.
func (h *Handshake) RefreshNativeBalance(ctx context.Context, session models.WalletSession) string {
	if !session.Connected || !h.available() {
		return session.Balance
	}
	balance, err := h.readBalance(ctx, session.Address)
	if err != nil {
		log.Debug("Balance refresh failed", "address", session.Address, "err", err)
		return session.Balance
	}

	h.mu.Lock()
	if h.session.Connected && h.session.Address == session.Address {
		h.session.Balance = balance
	}
	h.mu.Unlock()
	return balance
}

// WatchAsset asks the wallet to track an ERC-20 token. It reports whether
// the user accepted.
func (h *Handshake) WatchAsset(ctx context.Context, token config.TokenConfig) (bool, error) {
	if !h.Session().Connected {
		return false, ErrNotConnected
	}
	if token.IsNative() {
		return false, fmt.Errorf("%s is the native currency of %s", token.Symbol, h.network.ChainName)
	}
	if !h.available() {
		return false, newError(ErrProviderUnavailable, errors.New(InstallWalletMessage))
	}

	image := token.Image
	if image == "" && token.Symbol != "" {
		first, _ := utf8.DecodeRuneInString(token.Symbol)
		image = fmt.Sprintf("https://via.placeholder.com/32x32/6366F1/FFFFFF?text=%s", url.QueryEscape(string(first)))
	}
	params := provider.WatchAssetParams{
		Type: "ERC20",
		Options: provider.WatchAssetOptions{
			Address:  token.Address,
			Symbol:   token.Symbol,
			Decimals: token.Decimals,
			Image:    image,
		},
	}
	var added bool
	if err := provider.Call(ctx, h.provider, &added, provider.MethodWatchAsset, params); err != nil {
		log.Warn("Error adding token to wallet", "token", token.Symbol, "err", err)
		return false, err
	}
	return added, nil
}

func checksumAddress(account string) (string, error) {
	if !common.IsHexAddress(account) {
		return "", fmt.Errorf("invalid account address %q", account)
	}
	return common.HexToAddress(account).Hex(), nil
}

func parseChainID(chainHex string) (uint64, error) {
	v, err := utils.ParseHexQuantity(chainHex)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() || v.Sign() == 0 {
		return 0, fmt.Errorf("invalid chain id %q", chainHex)
	}
	return v.Uint64(), nil
}
