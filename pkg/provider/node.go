package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"zendex/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

// NodeProvider is a watch-only provider on top of a JSON-RPC node. Account
// requests are answered from a fixed address list and the wallet_* methods
// are emulated as far as a node allows.
type NodeProvider struct {
	client   *rpc.Client
	accounts []string
}

// DialNode connects to the node at rawurl.
func DialNode(ctx context.Context, rawurl string, accounts []string) (*NodeProvider, error) {
	client, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	return NewNodeProvider(client, accounts), nil
}

func NewNodeProvider(client *rpc.Client, accounts []string) *NodeProvider {
	normalized := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if common.IsHexAddress(a) {
			normalized = append(normalized, common.HexToAddress(a).Hex())
		}
	}
	return &NodeProvider{client: client, accounts: normalized}
}

func (n *NodeProvider) Close() {
	n.client.Close()
}

func (n *NodeProvider) Request(ctx context.Context, args RequestArguments) (json.RawMessage, error) {
	switch args.Method {
	case MethodAccounts, MethodRequestAccounts:
		return json.Marshal(n.accounts)
	case MethodSwitchChain:
		return n.switchChain(ctx, args.Params)
	case MethodAddChain, MethodWatchAsset:
		return nil, &Error{
			Code:    CodeUnsupportedMethod,
			Message: fmt.Sprintf("The requested method %s is not supported by a node provider.", args.Method),
		}
	}

	var raw json.RawMessage
	if err := n.client.CallContext(ctx, &raw, args.Method, positional(args.Params)...); err != nil {
		return nil, err
	}
	return raw, nil
}

// switchChain succeeds only when the node already serves the target chain.
func (n *NodeProvider) switchChain(ctx context.Context, params interface{}) (json.RawMessage, error) {
	var targets []SwitchChainParams
	data, err := json.Marshal(params)
	if err == nil {
		err = json.Unmarshal(data, &targets)
	}
	if err != nil || len(targets) == 0 {
		return nil, &Error{Code: -32602, Message: "Expected a single chainId parameter."}
	}
	want, err := utils.NormalizeChainID(targets[0].ChainID)
	if err != nil {
		return nil, &Error{Code: -32602, Message: err.Error()}
	}

	var current string
	if err := n.client.CallContext(ctx, &current, MethodChainID); err != nil {
		return nil, err
	}
	have, err := utils.NormalizeChainID(current)
	if err != nil {
		return nil, err
	}
	if have != want {
		log.Debug("Node cannot switch chain", "have", have, "want", want)
		return nil, &Error{
			Code:    CodeUnrecognizedChain,
			Message: fmt.Sprintf("Unrecognized chain ID %q. Try adding the chain using wallet_addEthereumChain first.", targets[0].ChainID),
		}
	}
	return json.RawMessage("null"), nil
}

func positional(params interface{}) []interface{} {
	switch p := params.(type) {
	case nil:
		return nil
	case []interface{}:
		return p
	default:
		return []interface{}{p}
	}
}
