package rpc

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"zendex/pkg/config"
	"zendex/pkg/models"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
)

var ProbeTimeout = 10 * time.Second

// ProbeRPC dials a single RPC URL and reads its chain id and head block.
func ProbeRPC(ctx context.Context, rpcURL string) models.RPCResult {
	res := models.RPCResult{URL: rpcURL}

	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	start := time.Now()
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		res.Status = "error"
		res.Error = err.Error()
		return res
	}
	defer client.Close()

	id, err := client.ChainID(ctx)
	if err != nil {
		res.Status = "error"
		res.Error = fmt.Sprintf("Failed to get ChainID: %v", err)
		return res
	}
	res.ChainID = id.Int64()

	block, err := client.BlockNumber(ctx)
	if err != nil {
		res.Status = "error"
		res.Error = fmt.Sprintf("Failed to get block number: %v", err)
		return res
	}
	res.Block = block
	res.Latency = time.Since(start).Milliseconds()
	res.Status = "ok"
	return res
}

// CheckNetwork probes every RPC URL of the network and reports whether they
// agree with each other and with the configured chain id.
func CheckNetwork(ctx context.Context, network config.NetworkDescriptor) models.CheckReport {
	report := models.CheckReport{
		ValidStructure: true,
		Network:        network.ChainName,
	}

	if err := network.Validate(); err != nil {
		report.ValidStructure = false
		report.StructureErrors = append(report.StructureErrors, err.Error())
		return report
	}

	want, _ := network.ChainIDUint64()
	report.ConfigChainID = int64(want)

	var observed *big.Int
	for _, url := range network.RPCURLs {
		res := ProbeRPC(ctx, url)
		if res.Status == "ok" {
			id := big.NewInt(res.ChainID)
			if observed == nil {
				observed = id
				report.ObservedChainID = res.ChainID
			} else if observed.Cmp(id) != 0 {
				report.Inconsistent = true
			}
			if uint64(res.ChainID) != want {
				res.Error = fmt.Sprintf("Mismatch! Expected %d", want)
				report.Mismatch = true
			}
		}
		log.Debug("Probed RPC", "url", url, "status", res.Status, "chainId", res.ChainID, "latency", res.Latency)
		report.RPCs = append(report.RPCs, res)
	}
	return report
}

// Healthy reports whether at least one RPC answered and none disagreed.
func Healthy(report models.CheckReport) bool {
	if !report.ValidStructure || report.Inconsistent || report.Mismatch {
		return false
	}
	for _, r := range report.RPCs {
		if r.Status == "ok" {
			return true
		}
	}
	return false
}
