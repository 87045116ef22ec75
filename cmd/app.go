package cmd

import (
	"context"
	"fmt"
	"time"

	"zendex/pkg/config"
	"zendex/pkg/provider"
	"zendex/pkg/server"
	"zendex/pkg/wallet"
	"zendex/pkg/watcher"

	"github.com/ethereum/go-ethereum/log"
)

// app wires the provider, handshake and watcher for one process.
type app struct {
	cfg     config.Config
	watcher *watcher.Watcher
	wallet  *wallet.Handshake
	bridge  *provider.Bridge
	node    *provider.NodeProvider
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, watcher: watcher.NewWatcher(cfg)}

	var p provider.Provider
	switch cfg.Global.Provider {
	case config.ProviderNode:
		accounts := make([]string, 0, len(cfg.Addresses))
		for _, addr := range cfg.Addresses {
			accounts = append(accounts, addr.Address)
		}
		node, err := provider.DialNode(ctx, cfg.Network.RPCURLs[0], accounts)
		if err != nil {
			return nil, fmt.Errorf("dialing %s: %w", cfg.Network.RPCURLs[0], err)
		}
		a.node = node
		p = node
	default:
		a.bridge = provider.NewBridge()
		p = a.bridge
	}

	h, err := wallet.New(p, cfg.Network, wallet.WithNotifier(a.watcher))
	if err != nil {
		a.close()
		return nil, err
	}
	a.wallet = h
	a.watcher.SetWallet(h)
	log.Debug("Wallet handshake ready", "provider", cfg.Global.Provider, "chainId", cfg.Network.ChainID)
	return a, nil
}

// serve starts the API server in the background. Errors are logged.
func (a *app) serve(port int) {
	srv := server.NewServer(a.watcher, a.bridge)
	go func() {
		if err := srv.Start(port); err != nil {
			log.Error("Server error", "err", err)
		}
	}()
}

func bridgeURL(port int) string {
	return fmt.Sprintf("http://localhost:%d/", port)
}

// waitForWallet blocks until the provider is usable. The node provider is
// always usable; the bridge needs a browser page to attach.
func (a *app) waitForWallet(ctx context.Context, timeout time.Duration) error {
	if a.bridge == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for !a.bridge.Available() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("no wallet page attached: %w", wallet.ErrProviderUnavailable)
		case <-ticker.C:
		}
	}
	return nil
}

func (a *app) close() {
	a.watcher.Stop()
	if a.node != nil {
		a.node.Close()
	}
}
