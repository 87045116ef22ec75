package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"zendex/pkg/config"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"
)

// Version is set by main.
var Version = "dev"

var (
	configFlag string
	cfgPath    string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "zendex",
	Short: "Wallet and network handshake for the ZenChain Testnet swap front-end",
	Long: `zendex connects a wallet to ZenChain Testnet: it requests accounts,
switches (or adds) the network, and reads the native ZTC balance.

The wallet is reached either through a browser page that relays requests to
an injected provider (MetaMask, Rabby), or through a watch-only node provider.

Examples:
  zendex serve --port 8080
  zendex tui
  zendex connect
  zendex check --json`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() error {
	rootCmd.Version = Version
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	setupLogging(verbose)

	path, err := config.GetConfigPath(configFlag)
	if err != nil {
		return fmt.Errorf("determining config path: %w", err)
	}
	loaded, err := config.LoadConfigFromFile(path)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", path, err)
	}
	config.ApplyEnv(&loaded)

	cfgPath = path
	cfg = loaded
	log.Debug("Loaded configuration", "path", path, "network", cfg.Network.ChainName, "provider", cfg.Global.Provider)
	return nil
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, level, true)))
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}
