package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"zendex/pkg/config"
	"zendex/pkg/models"
	"zendex/pkg/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccount  = "0xab5801a7d398351b8be11c439e05c5b3259aec9b"
	testChecksum = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
	oneZTC       = "0xDE0B6B3A7640000"
)

type call struct {
	Method string
	Params interface{}
}

// fakeProvider answers from per-method handlers and records every request.
type fakeProvider struct {
	mu       sync.Mutex
	calls    []call
	handlers map[string]func(params interface{}) (interface{}, error)
	absent   bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{handlers: make(map[string]func(interface{}) (interface{}, error))}
}

func (f *fakeProvider) on(method string, result interface{}, err error) *fakeProvider {
	f.handlers[method] = func(interface{}) (interface{}, error) { return result, err }
	return f
}

func (f *fakeProvider) Available() bool { return !f.absent }

func (f *fakeProvider) Request(ctx context.Context, args provider.RequestArguments) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{Method: args.Method, Params: args.Params})
	h, ok := f.handlers[args.Method]
	f.mu.Unlock()
	if !ok {
		return nil, &provider.Error{Code: provider.CodeUnsupportedMethod, Message: "unsupported " + args.Method}
	}
	result, err := h(args.Params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func (f *fakeProvider) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.Method)
	}
	return out
}

func (f *fakeProvider) count(method string) int {
	n := 0
	for _, m := range f.methods() {
		if m == method {
			n++
		}
	}
	return n
}

func (f *fakeProvider) paramsOf(method string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.Method == method {
			return c.Params
		}
	}
	return nil
}

// onTarget is a wallet already on ZenChain with one authorized account.
func onTarget() *fakeProvider {
	return newFakeProvider().
		on(provider.MethodAccounts, []string{testAccount}, nil).
		on(provider.MethodRequestAccounts, []string{testAccount}, nil).
		on(provider.MethodChainID, "0x20d8", nil).
		on(provider.MethodGetBalance, oneZTC, nil)
}

type recorder struct {
	mu       sync.Mutex
	statuses []models.Status
}

func (r *recorder) Notify(s models.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.statuses {
		out = append(out, s.Kind)
	}
	return out
}

func newHandshake(t *testing.T, p provider.Provider, opts ...Option) *Handshake {
	t.Helper()
	h, err := New(p, config.ZenChainTestnet, opts...)
	require.NoError(t, err)
	return h
}

func TestNew_InvalidNetwork(t *testing.T) {
	bad := config.ZenChainTestnet
	bad.ChainID = "zen"
	_, err := New(onTarget(), bad)
	assert.Error(t, err)
}

func TestConnect_SameChain(t *testing.T) {
	p := onTarget()
	rec := &recorder{}
	h := newHandshake(t, p, WithNotifier(rec))

	out := h.Connect(context.Background())
	require.NoError(t, out.Err)
	assert.True(t, out.OK())
	assert.Equal(t, models.WalletSession{Connected: true, Address: testChecksum, Balance: "1.0000", ChainID: 8408}, out.Session)
	assert.True(t, out.Session.Complete())
	assert.Equal(t, StateConnected, h.State())
	assert.Equal(t, out.Session, h.Session())

	assert.Equal(t, []string{provider.MethodRequestAccounts, provider.MethodChainID, provider.MethodGetBalance}, p.methods())
	assert.Equal(t, []interface{}{testChecksum, provider.BlockLatest}, p.paramsOf(provider.MethodGetBalance))
	assert.Equal(t, []string{StatusConnecting, StatusConnected}, rec.kinds())
}

func TestConnect_ChainIDCasing(t *testing.T) {
	p := onTarget().on(provider.MethodChainID, "0x20D8", nil)
	h := newHandshake(t, p)

	out := h.Connect(context.Background())
	require.NoError(t, out.Err)
	assert.Zero(t, p.count(provider.MethodSwitchChain))
}

func TestConnect_SwitchSucceeds(t *testing.T) {
	p := onTarget().
		on(provider.MethodChainID, "0x1", nil).
		on(provider.MethodSwitchChain, nil, nil)
	rec := &recorder{}
	h := newHandshake(t, p, WithNotifier(rec))

	out := h.Connect(context.Background())
	require.NoError(t, out.Err)
	assert.Equal(t, uint64(8408), out.Session.ChainID)
	assert.Equal(t, []interface{}{provider.SwitchChainParams{ChainID: "0x20D8"}}, p.paramsOf(provider.MethodSwitchChain))
	assert.Zero(t, p.count(provider.MethodAddChain))
	assert.Equal(t, []string{StatusConnecting, StatusSwitchingNetwork, StatusConnected}, rec.kinds())
}

func TestConnect_UnrecognizedChainAddsNetwork(t *testing.T) {
	// No authorized accounts yet, user approves one, wrong chain, switch
	// rejected with 4902, add succeeds.
	p := newFakeProvider().
		on(provider.MethodAccounts, []string{}, nil).
		on(provider.MethodRequestAccounts, []string{testAccount}, nil).
		on(provider.MethodChainID, "0x1", nil).
		on(provider.MethodSwitchChain, nil, &provider.Error{Code: provider.CodeUnrecognizedChain, Message: "Unrecognized chain ID"}).
		on(provider.MethodAddChain, nil, nil).
		on(provider.MethodGetBalance, "0x0", nil)
	h := newHandshake(t, p)

	assert.False(t, h.CheckExistingSession(context.Background()).Connected)

	out := h.Connect(context.Background())
	require.NoError(t, out.Err)
	assert.True(t, out.Session.Connected)
	assert.Equal(t, uint64(8408), out.Session.ChainID)
	assert.Equal(t, "0.0000", out.Session.Balance)

	assert.Equal(t, []string{
		provider.MethodAccounts,
		provider.MethodRequestAccounts,
		provider.MethodChainID,
		provider.MethodSwitchChain,
		provider.MethodAddChain,
		provider.MethodGetBalance,
	}, p.methods())
	assert.Equal(t, []interface{}{config.ZenChainTestnet}, p.paramsOf(provider.MethodAddChain))
}

func TestConnect_AddChainPayload(t *testing.T) {
	p := onTarget().
		on(provider.MethodChainID, "0x1", nil).
		on(provider.MethodSwitchChain, nil, &provider.Error{Code: provider.CodeUnrecognizedChain}).
		on(provider.MethodAddChain, nil, nil)
	h := newHandshake(t, p)
	require.NoError(t, h.Connect(context.Background()).Err)

	raw, err := json.Marshal(p.paramsOf(provider.MethodAddChain))
	require.NoError(t, err)
	assert.JSONEq(t, `[{
		"chainId": "0x20D8",
		"chainName": "ZenChain Testnet",
		"nativeCurrency": {"name": "ZTC", "symbol": "ZTC", "decimals": 18},
		"rpcUrls": ["https://zenchain-testnet.api.onfinality.io/public"],
		"blockExplorerUrls": ["https://zentrace.io"]
	}]`, string(raw))
}

func TestConnect_Failures(t *testing.T) {
	rejected := &provider.Error{Code: provider.CodeUserRejected, Message: "User rejected the request."}

	tests := []struct {
		name    string
		setup   func(*fakeProvider)
		kind    error
		message string
		noAdd   bool
	}{
		{
			name:    "user rejects authorization",
			setup:   func(p *fakeProvider) { p.on(provider.MethodRequestAccounts, nil, rejected) },
			kind:    ErrUserRejected,
			message: "User rejected the request.",
		},
		{
			name:    "authorization errors otherwise",
			setup:   func(p *fakeProvider) { p.on(provider.MethodRequestAccounts, nil, errors.New("boom")) },
			kind:    ErrRequestFailed,
			message: "boom",
		},
		{
			name:    "no accounts",
			setup:   func(p *fakeProvider) { p.on(provider.MethodRequestAccounts, []string{}, nil) },
			kind:    ErrNoAccounts,
			message: "No accounts found",
		},
		{
			name: "switch rejected by user",
			setup: func(p *fakeProvider) {
				p.on(provider.MethodChainID, "0x1", nil)
				p.on(provider.MethodSwitchChain, nil, rejected)
				p.on(provider.MethodAddChain, nil, nil)
			},
			kind:    ErrChainSwitchFailed,
			message: "User rejected the request.",
			noAdd:   true,
		},
		{
			name: "switch fails with other code",
			setup: func(p *fakeProvider) {
				p.on(provider.MethodChainID, "0x1", nil)
				p.on(provider.MethodSwitchChain, nil, &provider.Error{Code: -32603, Message: "Internal error"})
				p.on(provider.MethodAddChain, nil, nil)
			},
			kind:    ErrChainSwitchFailed,
			message: "Internal error",
			noAdd:   true,
		},
		{
			name: "add chain rejected",
			setup: func(p *fakeProvider) {
				p.on(provider.MethodChainID, "0x1", nil)
				p.on(provider.MethodSwitchChain, nil, &provider.Error{Code: provider.CodeUnrecognizedChain, Message: "Unrecognized chain ID"})
				p.on(provider.MethodAddChain, nil, &provider.Error{Code: provider.CodeUserRejected, Message: "User denied adding chain"})
			},
			kind:    ErrChainAddFailed,
			message: "User denied adding chain",
		},
		{
			name:    "balance read fails",
			setup:   func(p *fakeProvider) { p.on(provider.MethodGetBalance, nil, errors.New("header not found")) },
			kind:    ErrBalanceReadFailed,
			message: "header not found",
		},
		{
			name:    "malformed balance",
			setup:   func(p *fakeProvider) { p.on(provider.MethodGetBalance, "lots", nil) },
			kind:    ErrBalanceReadFailed,
			message: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := onTarget()
			tt.setup(p)
			rec := &recorder{}
			h := newHandshake(t, p, WithNotifier(rec))

			out := h.Connect(context.Background())
			require.Error(t, out.Err)
			assert.False(t, out.OK())
			assert.ErrorIs(t, out.Err, tt.kind)
			if tt.message != "" {
				assert.Equal(t, tt.message, out.Err.Error())
				assert.Equal(t, tt.message, out.Reason)
			}
			assert.Equal(t, models.Disconnected(), h.Session())
			assert.Equal(t, models.Disconnected(), out.Session)
			assert.Equal(t, StateDisconnected, h.State())
			if tt.noAdd {
				assert.Zero(t, p.count(provider.MethodAddChain))
			}
			kinds := rec.kinds()
			require.NotEmpty(t, kinds)
			assert.Equal(t, StatusFailed, kinds[len(kinds)-1])
		})
	}
}

func TestConnect_FailureKeepsPreviousSession(t *testing.T) {
	p := onTarget()
	h := newHandshake(t, p)
	first := h.Connect(context.Background())
	require.NoError(t, first.Err)

	p.on(provider.MethodRequestAccounts, nil, &provider.Error{Code: provider.CodeUserRejected, Message: "nope"})
	second := h.Connect(context.Background())
	require.Error(t, second.Err)
	assert.Equal(t, first.Session, h.Session())
	assert.Equal(t, first.Session, second.Session)
	assert.Equal(t, StateConnected, h.State())
}

func TestConnect_ProviderUnavailable(t *testing.T) {
	rec := &recorder{}
	h := newHandshake(t, nil, WithNotifier(rec))
	out := h.Connect(context.Background())
	assert.ErrorIs(t, out.Err, ErrProviderUnavailable)
	assert.Equal(t, InstallWalletMessage, out.Reason)
	assert.Equal(t, []string{StatusFailed}, rec.kinds())

	p := onTarget()
	p.absent = true
	h = newHandshake(t, p)
	assert.ErrorIs(t, h.Connect(context.Background()).Err, ErrProviderUnavailable)
	assert.Empty(t, p.methods())
}

func TestConnect_AtMostOneInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	p := onTarget()
	p.handlers[provider.MethodRequestAccounts] = func(interface{}) (interface{}, error) {
		entered <- struct{}{}
		<-release
		return []string{testAccount}, nil
	}
	h := newHandshake(t, p)

	done := make(chan models.HandshakeOutcome, 1)
	go func() { done <- h.Connect(context.Background()) }()

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("first connect never reached the provider")
	}
	assert.Equal(t, StateConnecting, h.State())

	second := h.Connect(context.Background())
	assert.ErrorIs(t, second.Err, ErrHandshakeInProgress)
	// A silent session check does not interleave either.
	assert.False(t, h.CheckExistingSession(context.Background()).Connected)

	close(release)
	first := <-done
	require.NoError(t, first.Err)
	assert.Equal(t, 1, p.count(provider.MethodRequestAccounts))
	assert.Zero(t, p.count(provider.MethodAccounts))
}

func TestCheckExistingSession(t *testing.T) {
	p := onTarget().on(provider.MethodChainID, "0x1", nil)
	h := newHandshake(t, p)

	s := h.CheckExistingSession(context.Background())
	assert.Equal(t, models.WalletSession{Connected: true, Address: testChecksum, Balance: "1.0000", ChainID: 1}, s)
	assert.Equal(t, StateConnected, h.State())
	assert.Zero(t, p.count(provider.MethodRequestAccounts))
	assert.Zero(t, p.count(provider.MethodSwitchChain))
}

func TestCheckExistingSession_Silent(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeProvider)
	}{
		{"no accounts", func(p *fakeProvider) { p.on(provider.MethodAccounts, []string{}, nil) }},
		{"accounts fail", func(p *fakeProvider) { p.on(provider.MethodAccounts, nil, errors.New("boom")) }},
		{"chain id fails", func(p *fakeProvider) { p.on(provider.MethodChainID, nil, errors.New("boom")) }},
		{"balance fails", func(p *fakeProvider) { p.on(provider.MethodGetBalance, nil, errors.New("boom")) }},
		{"bad account", func(p *fakeProvider) { p.on(provider.MethodAccounts, []string{"nope"}, nil) }},
		{"unavailable", func(p *fakeProvider) { p.absent = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := onTarget()
			tt.setup(p)
			h := newHandshake(t, p)
			s := h.CheckExistingSession(context.Background())
			assert.Equal(t, models.Disconnected(), s)
			assert.Equal(t, StateDisconnected, h.State())
		})
	}

	h := newHandshake(t, nil)
	assert.Equal(t, models.Disconnected(), h.CheckExistingSession(context.Background()))
}

func TestCheckExistingSession_ClearsRevokedSession(t *testing.T) {
	p := onTarget()
	h := newHandshake(t, p)
	require.NoError(t, h.Connect(context.Background()).Err)
	require.Equal(t, StateConnected, h.State())

	// The user disconnected the site in the wallet.
	p.on(provider.MethodAccounts, []string{}, nil)
	assert.Equal(t, models.Disconnected(), h.CheckExistingSession(context.Background()))
	assert.Equal(t, StateDisconnected, h.State())
	assert.Equal(t, models.Disconnected(), h.Session())
}

func TestConnect_NotifierFunc(t *testing.T) {
	var messages []string
	h := newHandshake(t, onTarget(), WithNotifier(NotifierFunc(func(s models.Status) {
		messages = append(messages, s.Message)
	})))

	require.NoError(t, h.Connect(context.Background()).Err)
	require.NotEmpty(t, messages)
	assert.Equal(t, "Wallet connected successfully!", messages[len(messages)-1])
}

func TestRefreshNativeBalance(t *testing.T) {
	p := onTarget()
	h := newHandshake(t, p)
	out := h.Connect(context.Background())
	require.NoError(t, out.Err)

	p.on(provider.MethodGetBalance, "0x22B1C8C1227A0000", nil)
	assert.Equal(t, "2.5000", h.RefreshNativeBalance(context.Background(), out.Session))
	assert.Equal(t, "2.5000", h.Session().Balance)

	p.on(provider.MethodGetBalance, nil, errors.New("rate limited"))
	assert.Equal(t, "1.0000", h.RefreshNativeBalance(context.Background(), out.Session))
	assert.Equal(t, "2.5000", h.Session().Balance)

	before := len(p.methods())
	assert.Equal(t, "0", h.RefreshNativeBalance(context.Background(), models.Disconnected()))
	assert.Equal(t, before, len(p.methods()))
	assert.Equal(t, 1, p.count(provider.MethodChainID))
}

func TestWatchAsset(t *testing.T) {
	p := onTarget().on(provider.MethodWatchAsset, true, nil)
	h := newHandshake(t, p)

	usdc, _ := config.DefaultConfig().FindToken("USDC")
	_, err := h.WatchAsset(context.Background(), usdc)
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, h.Connect(context.Background()).Err)

	added, err := h.WatchAsset(context.Background(), usdc)
	require.NoError(t, err)
	assert.True(t, added)

	params, ok := p.paramsOf(provider.MethodWatchAsset).(provider.WatchAssetParams)
	require.True(t, ok)
	assert.Equal(t, "ERC20", params.Type)
	assert.Equal(t, usdc.Address, params.Options.Address)
	assert.Equal(t, 6, params.Options.Decimals)
	assert.True(t, strings.HasSuffix(params.Options.Image, "text=U"))

	ztc, _ := config.DefaultConfig().FindToken("ZTC")
	_, err = h.WatchAsset(context.Background(), ztc)
	assert.Error(t, err)
	assert.Equal(t, 1, p.count(provider.MethodWatchAsset))

	p.on(provider.MethodWatchAsset, nil, &provider.Error{Code: provider.CodeUserRejected, Message: "rejected"})
	_, err = h.WatchAsset(context.Background(), usdc)
	assert.True(t, provider.HasCode(err, provider.CodeUserRejected))
}

func TestWatchAsset_MultiByteSymbolImage(t *testing.T) {
	p := onTarget().on(provider.MethodWatchAsset, true, nil)
	h := newHandshake(t, p)
	require.NoError(t, h.Connect(context.Background()).Err)

	token := config.TokenConfig{Symbol: "ΞETH", Name: "Wrapped", Decimals: 18, Address: "0x1111111111111111111111111111111111111111"}
	_, err := h.WatchAsset(context.Background(), token)
	require.NoError(t, err)

	params, ok := p.paramsOf(provider.MethodWatchAsset).(provider.WatchAssetParams)
	require.True(t, ok)
	assert.True(t, utf8.ValidString(params.Options.Image))
	assert.True(t, strings.HasSuffix(params.Options.Image, "text=%CE%9E"), params.Options.Image)
}

func TestHandshakeError(t *testing.T) {
	inner := &provider.Error{Code: provider.CodeUnrecognizedChain, Message: "Unrecognized chain ID"}
	err := error(newError(ErrChainAddFailed, inner))
	assert.ErrorIs(t, err, ErrChainAddFailed)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "Unrecognized chain ID", err.Error())
	assert.Equal(t, ErrNoAccounts.Error(), newError(ErrNoAccounts, nil).Error())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
}
