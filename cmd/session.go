package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"zendex/pkg/config"
	"zendex/pkg/models"
	"zendex/pkg/utils"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	sessionPort int
	waitTimeout time.Duration
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show the already-authorized wallet session, if any",
	Long: `Restore the wallet session without prompting: reads the authorized
accounts, the current chain and the native balance. Prints a disconnected
session when nothing is authorized.`,
	Args: cobra.NoArgs,
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.Flags().IntVarP(&sessionPort, "port", "p", 8080, "Port for the bridge page")
	sessionCmd.Flags().DurationVar(&waitTimeout, "wait", 2*time.Minute, "How long to wait for a wallet page to attach")
}

func runSession(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := attachWallet(ctx, a, sessionPort, jsonOutput(cmd)); err != nil {
		return err
	}

	session := a.wallet.CheckExistingSession(ctx)
	if jsonOutput(cmd) {
		return printJSON(session)
	}
	displaySession(cfg.Network, session)
	return nil
}

// attachWallet serves the bridge page and waits for a browser wallet when the
// bridge provider is configured.
func attachWallet(ctx context.Context, a *app, port int, quiet bool) error {
	if a.bridge == nil {
		return nil
	}
	a.serve(port)
	if !quiet {
		fmt.Printf("Open %s in a browser with MetaMask or Rabby installed.\n", color.CyanString(bridgeURL(port)))
	}
	return a.waitForWallet(ctx, waitTimeout)
}

func displaySession(network config.NetworkDescriptor, s models.WalletSession) {
	fmt.Println()
	if !s.Connected {
		color.Yellow("  Wallet not connected")
		fmt.Println()
		return
	}
	color.Green("  Wallet connected")
	fmt.Printf("  Address:  %s\n", color.CyanString(s.Address))
	fmt.Printf("  Balance:  %s %s\n", utils.AddCommas(s.Balance), network.NativeCurrency.Symbol)
	fmt.Printf("  Chain ID: %d\n", s.ChainID)
	if want, err := network.ChainIDUint64(); err == nil && want != s.ChainID {
		fmt.Printf("  %s\n", color.YellowString("Wallet is not on %s; run 'zendex connect' to switch", network.ChainName))
	}
	if url := network.AddressURL(s.Address); url != "" {
		fmt.Printf("  Explorer: %s\n", color.HiBlackString(url))
	}
	fmt.Println()
}

func printJSON(v interface{}) error {
	return jsonEncoder(os.Stdout).Encode(v)
}

func jsonEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc
}
