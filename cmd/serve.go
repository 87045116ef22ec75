package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"zendex/pkg/config"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and wallet bridge",
	Long: `Run the headless API server. With the bridge provider, open the served
page in a browser that has MetaMask or Rabby installed; it relays wallet
requests for this process.

Examples:
  zendex serve
  zendex serve --port 9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port for API server")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	a.watcher.Start(ctx)
	a.serve(servePort)

	if cfg.Global.Provider != config.ProviderNode {
		log.Info("Open the bridge page with your wallet extension", "url", bridgeURL(servePort))
	}
	<-ctx.Done()
	log.Info("Shutting down")
	return nil
}
