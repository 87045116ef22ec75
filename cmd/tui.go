package cmd

import (
	"context"

	"zendex/pkg/tui"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"
)

var tuiPort int

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Run the terminal interface",
	Long: `Run the interactive terminal interface. The API server and bridge page
keep running in the background so a browser wallet can attach.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiCmd.Flags().IntVarP(&tuiPort, "port", "p", 8080, "Port for API server")
}

func runTUI(cmd *cobra.Command, args []string) error {
	// Log lines would tear the alt screen.
	log.SetDefault(log.NewLogger(log.DiscardHandler()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	a.watcher.Start(ctx)
	a.serve(tuiPort)

	tui.Start(a.watcher, Version)
	return nil
}
