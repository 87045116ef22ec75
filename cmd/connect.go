package cmd

import (
	"context"
	"errors"
	"time"

	"zendex/pkg/models"
	"zendex/pkg/wallet"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	connectPort  int
	watchSymbols []string
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect the wallet and switch it to the configured network",
	Long: `Run the full handshake: request accounts, switch to the configured
network (adding it to the wallet if it is unknown), and read the balance.

Examples:
  zendex connect
  zendex connect --watch USDT,USDC`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
	connectCmd.Flags().IntVarP(&connectPort, "port", "p", 8080, "Port for the bridge page")
	connectCmd.Flags().DurationVar(&waitTimeout, "wait", 2*time.Minute, "How long to wait for a wallet page to attach")
	connectCmd.Flags().StringSliceVar(&watchSymbols, "watch", nil, "Tokens to add to the wallet after connecting")
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	quiet := jsonOutput(cmd)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := attachWallet(ctx, a, connectPort, quiet); err != nil {
		return err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !quiet {
		s.Suffix = " Waiting for wallet approval..."
		s.Start()
	}
	outcome := a.watcher.Connect(ctx)
	if !quiet {
		s.Stop()
	}

	if quiet {
		if err := printJSON(outcome); err != nil {
			return err
		}
	} else {
		displayOutcome(outcome)
	}
	if !outcome.OK() {
		return &ExitError{Code: exitCode(outcome.Err), Err: outcome.Err}
	}

	for _, symbol := range watchSymbols {
		if err := a.watcher.WatchAsset(ctx, symbol); err != nil {
			color.Red("Could not add %s: %v", symbol, err)
			continue
		}
		if !quiet {
			color.Green("%s added to wallet", symbol)
		}
	}
	return nil
}

func displayOutcome(o models.HandshakeOutcome) {
	if o.OK() {
		color.Green("\nWallet connected successfully!")
		displaySession(cfg.Network, o.Session)
		return
	}
	color.Red("\nConnection failed: %s\n", o.Reason)
}

// ExitError carries the process exit status for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// exitCode distinguishes a user decision from an environment failure.
func exitCode(err error) int {
	switch {
	case errors.Is(err, wallet.ErrUserRejected):
		return 2
	case errors.Is(err, wallet.ErrProviderUnavailable):
		return 3
	default:
		return 1
	}
}
