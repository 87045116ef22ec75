package models

import "time"

// WalletSession is the current wallet connection. Connected is true only
// when Address, Balance and ChainID all come from a successful handshake.
type WalletSession struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address"`
	Balance   string `json:"balance"`
	ChainID   uint64 `json:"chainId,omitempty"`
}

// Disconnected returns the empty session.
func Disconnected() WalletSession {
	return WalletSession{Balance: "0"}
}

// Complete reports whether every field of a connected session is set.
func (s WalletSession) Complete() bool {
	return s.Connected && s.Address != "" && s.Balance != "" && s.ChainID != 0
}

// HandshakeOutcome is the result of a single connect attempt.
type HandshakeOutcome struct {
	Session WalletSession `json:"session"`
	Err     error         `json:"-"`
	Reason  string        `json:"reason,omitempty"`
}

func (o HandshakeOutcome) OK() bool {
	return o.Err == nil
}

// Status is a transient, advisory message for the presentation layer.
type Status struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// BalancePoint holds a timestamped native balance reading.
type BalancePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// RPCResult holds check results for a specific RPC URL.
type RPCResult struct {
	URL     string `json:"url"`
	Status  string `json:"status"` // "ok" or "error"
	ChainID int64  `json:"chain_id,omitempty"`
	Block   uint64 `json:"block,omitempty"`
	Latency int64  `json:"latency_ms,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CheckReport holds the results of the network check.
type CheckReport struct {
	ConfigPath      string      `json:"config_path"`
	ValidStructure  bool        `json:"valid_structure"`
	StructureErrors []string    `json:"structure_errors,omitempty"`
	Network         string      `json:"network"`
	ConfigChainID   int64       `json:"config_chain_id"`
	ObservedChainID int64       `json:"observed_chain_id,omitempty"`
	RPCs            []RPCResult `json:"rpcs"`
	Inconsistent    bool        `json:"inconsistent"`
	Mismatch        bool        `json:"mismatch"`
	ConfigSaved     bool        `json:"config_saved,omitempty"`
	DryRun          bool        `json:"dry_run,omitempty"`
	SaveError       string      `json:"save_error,omitempty"`
}
