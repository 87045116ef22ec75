package wallet

import (
	"errors"
)

// Failure kinds of a handshake. Match them with errors.Is.
var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrUserRejected        = errors.New("user rejected the request")
	ErrNoAccounts          = errors.New("no accounts found")
	ErrChainSwitchFailed   = errors.New("chain switch failed")
	ErrChainAddFailed      = errors.New("chain add failed")
	ErrBalanceReadFailed   = errors.New("balance read failed")
	ErrRequestFailed       = errors.New("provider request failed")
	ErrNotConnected        = errors.New("wallet not connected")

	ErrHandshakeInProgress = errors.New("a connection attempt is already in progress")
)

// InstallWalletMessage is shown when no provider is injected.
const InstallWalletMessage = "Please install MetaMask or Rabby Wallet to connect"

// HandshakeError pairs a failure kind with the provider's own error. Its
// message is the provider's message, unchanged.
type HandshakeError struct {
	Kind error
	Err  error
}

func (e *HandshakeError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

func (e *HandshakeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind, err error) *HandshakeError {
	return &HandshakeError{Kind: kind, Err: err}
}
