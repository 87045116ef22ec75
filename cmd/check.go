package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"zendex/pkg/config"
	"zendex/pkg/models"
	"zendex/pkg/rpc"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var checkDryRun bool

var errCheckFailed = errors.New("network check failed")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test the configuration and every RPC URL of the network",
	Long: `Validate the configuration and query every RPC URL of the configured
network for its chain id. Reports RPCs that disagree with each other or with
the configured chain id. When no config file exists yet and the check passes,
the effective configuration is written to disk unless --dry-run is given,
in both text and --json mode.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkDryRun, "dry-run", false, "Perform a trial run with no changes made")
}

func runCheck(cmd *cobra.Command, args []string) error {
	report, err := checkConfig(cmd.Context(), cfg, cfgPath, checkDryRun, jsonOutput(cmd), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if !rpc.Healthy(report) {
		return errCheckFailed
	}
	return nil
}

func checkConfig(ctx context.Context, c config.Config, path string, dryRun, asJSON bool, out io.Writer) (models.CheckReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !asJSON {
		fmt.Fprintf(out, "Testing configuration at: %s\n", path)
	}

	var report models.CheckReport
	if err := c.Validate(); err != nil {
		report = models.CheckReport{
			Network:         c.Network.ChainName,
			StructureErrors: []string{err.Error()},
		}
	} else {
		report = rpc.CheckNetwork(ctx, c.Network)
	}
	report.ConfigPath = path
	report.DryRun = dryRun

	var missing bool
	if rpc.Healthy(report) {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			missing = true
			if !dryRun {
				if err := config.SaveConfig(c, path); err != nil {
					report.SaveError = err.Error()
				} else {
					report.ConfigSaved = true
				}
			}
		}
	}

	if asJSON {
		return report, jsonEncoder(out).Encode(report)
	}

	if !report.ValidStructure {
		for _, e := range report.StructureErrors {
			fmt.Fprintf(out, "Error: %s\n", e)
		}
		return report, nil
	}

	fmt.Fprintf(out, "Network: %s (Chain ID %d)\n", report.Network, report.ConfigChainID)
	for _, r := range report.RPCs {
		fmt.Fprintf(out, "  RPC: %s ... ", r.URL)
		if r.Status != "ok" {
			fmt.Fprintln(out, color.RedString("Failed: %s", r.Error))
			continue
		}
		fmt.Fprintf(out, "OK (ChainID: %d, block %d, %dms)", r.ChainID, r.Block, r.Latency)
		if r.Error != "" {
			fmt.Fprintf(out, " - %s", color.RedString(r.Error))
		} else {
			fmt.Fprintf(out, " - %s", color.GreenString("Verified"))
		}
		fmt.Fprintln(out)
	}

	if report.Inconsistent {
		fmt.Fprintln(out, color.YellowString("\nWARNING: RPCs returned conflicting Chain IDs!"))
	}

	switch {
	case !missing:
	case dryRun:
		fmt.Fprintln(out, "Dry run enabled: Configuration NOT saved.")
	case report.SaveError != "":
		fmt.Fprintf(out, "Failed to save config: %s\n", report.SaveError)
	default:
		fmt.Fprintf(out, "Configuration saved to %s\n", path)
	}
	return report, nil
}
