package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"zendex/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

const ConfigFileName = ".zendex.json"

// Provider kinds.
const (
	ProviderBridge = "bridge"
	ProviderNode   = "node"
)

// NativeCurrency describes the default on-chain asset of a network.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// NetworkDescriptor identifies the target chain. Field names follow the
// wallet_addEthereumChain parameter so the value can be sent as-is.
type NetworkDescriptor struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// ZenChainTestnet is the default target network.
var ZenChainTestnet = NetworkDescriptor{
	ChainID:   "0x20D8", // 8408
	ChainName: "ZenChain Testnet",
	NativeCurrency: NativeCurrency{
		Name:     "ZTC",
		Symbol:   "ZTC",
		Decimals: 18,
	},
	RPCURLs:           []string{"https://zenchain-testnet.api.onfinality.io/public"},
	BlockExplorerURLs: []string{"https://zentrace.io"},
}

// ChainIDUint64 returns the decimal chain id.
func (n NetworkDescriptor) ChainIDUint64() (uint64, error) {
	v, err := utils.ParseHexQuantity(n.ChainID)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("chain id %s out of range", n.ChainID)
	}
	return v.Uint64(), nil
}

// ExplorerURL returns the first block explorer base URL without a trailing slash.
func (n NetworkDescriptor) ExplorerURL() string {
	if len(n.BlockExplorerURLs) == 0 {
		return ""
	}
	return strings.TrimRight(n.BlockExplorerURLs[0], "/")
}

// TxURL builds a transaction-view link, or "" when no explorer is configured.
func (n NetworkDescriptor) TxURL(hash string) string {
	base := n.ExplorerURL()
	if base == "" || hash == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", base, hash)
}

func (n NetworkDescriptor) AddressURL(addr string) string {
	base := n.ExplorerURL()
	if base == "" || addr == "" {
		return ""
	}
	return fmt.Sprintf("%s/address/%s", base, addr)
}

// Validate checks the descriptor is usable for comparison and registration.
func (n NetworkDescriptor) Validate() error {
	if _, err := n.ChainIDUint64(); err != nil {
		return fmt.Errorf("validation failed: invalid chain id: %w", err)
	}
	if strings.TrimSpace(n.ChainName) == "" {
		return fmt.Errorf("validation failed: network has no name")
	}
	if len(n.RPCURLs) == 0 {
		return fmt.Errorf("validation failed: network %s has no RPC URLs", n.ChainName)
	}
	if n.NativeCurrency.Symbol == "" {
		return fmt.Errorf("validation failed: network %s has no native currency symbol", n.ChainName)
	}
	if n.NativeCurrency.Decimals < 0 || n.NativeCurrency.Decimals > 36 {
		return fmt.Errorf("validation failed: native currency decimals %d out of range", n.NativeCurrency.Decimals)
	}
	return nil
}

// TokenConfig holds a token offered by the front-end.
type TokenConfig struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
	Address  string `json:"address"`
	Image    string `json:"image,omitempty"`
}

// IsNative reports whether the token stands for the network's native currency.
func (t TokenConfig) IsNative() bool {
	return common.HexToAddress(t.Address) == (common.Address{})
}

// AddressConfig holds an address the node provider exposes as authorized.
type AddressConfig struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// GlobalConfig holds application-wide settings.
type GlobalConfig struct {
	Provider            string `json:"provider"`
	PollIntervalSeconds int    `json:"poll_interval_seconds"`
	StatusClearSeconds  int    `json:"status_clear_seconds"`
	ErrorClearSeconds   int    `json:"error_clear_seconds"`
	TokenDecimals       int    `json:"token_decimals"`
}

// Config is the full on-disk configuration.
type Config struct {
	Network   NetworkDescriptor
	Tokens    []TokenConfig
	Addresses []AddressConfig
	Global    GlobalConfig
}

func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		Provider:            ProviderBridge,
		PollIntervalSeconds: 30,
		StatusClearSeconds:  3,
		ErrorClearSeconds:   5,
		TokenDecimals:       4,
	}
}

// DefaultTokens is the token list of the swap front-end.
func DefaultTokens() []TokenConfig {
	return []TokenConfig{
		{Symbol: "ZTC", Name: "ZenChain Token", Decimals: 18, Address: "0x0000000000000000000000000000000000000000"},
		{Symbol: "BTC", Name: "Bitcoin", Decimals: 8, Address: "0x1234567890123456789012345678901234567890"},
		{Symbol: "ETH", Name: "Ethereum", Decimals: 18, Address: "0x2345678901234567890123456789012345678901"},
		{Symbol: "USDT", Name: "Tether USD", Decimals: 6, Address: "0x3456789012345678901234567890123456789012"},
		{Symbol: "USDC", Name: "USD Coin", Decimals: 6, Address: "0x4567890123456789012345678901234567890123"},
		{Symbol: "POL", Name: "Polygon", Decimals: 18, Address: "0x5678901234567890123456789012345678901234"},
	}
}

func DefaultConfig() Config {
	return Config{
		Network: ZenChainTestnet,
		Tokens:  DefaultTokens(),
		Global:  DefaultGlobalConfig(),
	}
}

// FindToken looks a token up by symbol, case-insensitively.
func (c Config) FindToken(symbol string) (TokenConfig, bool) {
	for _, t := range c.Tokens {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, true
		}
	}
	return TokenConfig{}, false
}

func (c Config) Validate() error {
	if err := c.Network.Validate(); err != nil {
		return err
	}
	switch c.Global.Provider {
	case ProviderBridge, ProviderNode:
	default:
		return fmt.Errorf("validation failed: unknown provider %q", c.Global.Provider)
	}
	for i, a := range c.Addresses {
		if !common.IsHexAddress(a.Address) {
			return fmt.Errorf("validation failed: address at index %d is not a hex address", i)
		}
	}
	for _, t := range c.Tokens {
		if strings.TrimSpace(t.Symbol) == "" {
			return fmt.Errorf("validation failed: token %s has no symbol", t.Address)
		}
		if !common.IsHexAddress(t.Address) {
			return fmt.Errorf("validation failed: token %s has an invalid address", t.Symbol)
		}
	}
	return nil
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f)
}

func LoadConfig(r io.Reader) (Config, error) {
	var raw struct {
		Network             *NetworkDescriptor `json:"network"`
		Tokens              []TokenConfig      `json:"tokens"`
		Addresses           json.RawMessage    `json:"addresses"`
		Provider            *string            `json:"provider"`
		PollIntervalSeconds *int               `json:"poll_interval_seconds"`
		StatusClearSeconds  *int               `json:"status_clear_seconds"`
		ErrorClearSeconds   *int               `json:"error_clear_seconds"`
		TokenDecimals       *int               `json:"token_decimals"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	if raw.Network != nil {
		cfg.Network = *raw.Network
	}
	if raw.Tokens != nil {
		cfg.Tokens = raw.Tokens
	}

	if len(raw.Addresses) > 0 {
		var addresses []AddressConfig
		if err := json.Unmarshal(raw.Addresses, &addresses); err != nil {
			addresses = nil
			// Plain list of strings is accepted too.
			var strAddrs []string
			if err2 := json.Unmarshal(raw.Addresses, &strAddrs); err2 != nil {
				return Config{}, fmt.Errorf("invalid addresses: %w", err)
			}
			for _, a := range strAddrs {
				addresses = append(addresses, AddressConfig{Address: a})
			}
		}
		cfg.Addresses = addresses
	}

	if raw.Provider != nil {
		cfg.Global.Provider = *raw.Provider
	}
	if raw.PollIntervalSeconds != nil {
		cfg.Global.PollIntervalSeconds = *raw.PollIntervalSeconds
	}
	if raw.StatusClearSeconds != nil {
		cfg.Global.StatusClearSeconds = *raw.StatusClearSeconds
	}
	if raw.ErrorClearSeconds != nil {
		cfg.Global.ErrorClearSeconds = *raw.ErrorClearSeconds
	}
	if raw.TokenDecimals != nil {
		cfg.Global.TokenDecimals = *raw.TokenDecimals
	}

	return cfg, nil
}

// ApplyEnv overrides settings from ZENDEX_* environment variables.
func ApplyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("ZENDEX")
	v.AutomaticEnv()

	if p := v.GetString("provider"); p != "" {
		cfg.Global.Provider = p
	}
	if u := v.GetString("rpc_url"); u != "" {
		cfg.Network.RPCURLs = []string{u}
	}
	if v.GetString("poll_interval_seconds") != "" {
		cfg.Global.PollIntervalSeconds = v.GetInt("poll_interval_seconds")
	}
	if a := v.GetString("addresses"); a != "" {
		cfg.Addresses = nil
		for _, addr := range strings.Split(a, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				cfg.Addresses = append(cfg.Addresses, AddressConfig{Address: addr})
			}
		}
	}
}

func SaveConfig(cfg Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := struct {
		Network             NetworkDescriptor `json:"network"`
		Tokens              []TokenConfig     `json:"tokens"`
		Addresses           []AddressConfig   `json:"addresses"`
		Provider            string            `json:"provider"`
		PollIntervalSeconds int               `json:"poll_interval_seconds"`
		StatusClearSeconds  int               `json:"status_clear_seconds"`
		ErrorClearSeconds   int               `json:"error_clear_seconds"`
		TokenDecimals       int               `json:"token_decimals"`
	}{
		Network:             cfg.Network,
		Tokens:              cfg.Tokens,
		Addresses:           cfg.Addresses,
		Provider:            cfg.Global.Provider,
		PollIntervalSeconds: cfg.Global.PollIntervalSeconds,
		StatusClearSeconds:  cfg.Global.StatusClearSeconds,
		ErrorClearSeconds:   cfg.Global.ErrorClearSeconds,
		TokenDecimals:       cfg.Global.TokenDecimals,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0644); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func RestoreLastBackup(configPath string) error {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no backup files found")
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0644)
}
