// Package provider models the EIP-1193 request capability a wallet exposes
// and ships two implementations of it: a websocket bridge to a browser
// wallet and a watch-only provider backed by a JSON-RPC node.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// Methods used by the handshake.
const (
	MethodAccounts        = "eth_accounts"
	MethodRequestAccounts = "eth_requestAccounts"
	MethodChainID         = "eth_chainId"
	MethodGetBalance      = "eth_getBalance"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodAddChain        = "wallet_addEthereumChain"
	MethodWatchAsset      = "wallet_watchAsset"
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
)

// BlockLatest is the block tag for balance reads.
const BlockLatest = "latest"

// RequestArguments mirrors the argument of provider.request().
type RequestArguments struct {
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

// Provider is the injected wallet capability.
type Provider interface {
	Request(ctx context.Context, args RequestArguments) (json.RawMessage, error)
}

// Availability is implemented by providers that can be present but not
// usable, such as a bridge with no wallet page attached.
type Availability interface {
	Available() bool
}

// IsAvailable reports whether p can serve requests.
func IsAvailable(p Provider) bool {
	if p == nil {
		return false
	}
	if a, ok := p.(Availability); ok {
		return a.Available()
	}
	return true
}

// Error is a rejection from the provider. It satisfies rpc.Error.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider error %d", e.Code)
	}
	return e.Message
}

func (e *Error) ErrorCode() int { return e.Code }

// ErrorCode extracts the numeric code from a provider or JSON-RPC error.
func ErrorCode(err error) (int, bool) {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode(), true
	}
	return 0, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code int) bool {
	c, ok := ErrorCode(err)
	return ok && c == code
}

// SwitchChainParams is the single element of wallet_switchEthereumChain params.
type SwitchChainParams struct {
	ChainID string `json:"chainId"`
}

// WatchAssetOptions describes a token for wallet_watchAsset.
type WatchAssetOptions struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	Image    string `json:"image,omitempty"`
}

// WatchAssetParams is the object params of wallet_watchAsset.
type WatchAssetParams struct {
	Type    string            `json:"type"`
	Options WatchAssetOptions `json:"options"`
}

// Call issues a request and decodes its result into out. A nil out discards it.
func Call(ctx context.Context, p Provider, out interface{}, method string, params interface{}) error {
	raw, err := p.Request(ctx, RequestArguments{Method: method, Params: params})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
