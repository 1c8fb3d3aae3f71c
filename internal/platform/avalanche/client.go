// Package avalanche reads transaction senders and node-storage
// contract state from the Avalanche C-Chain over JSON-RPC.
package avalanche

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// DefaultRPCURL is the public C-Chain JSON-RPC endpoint.
const DefaultRPCURL = "https://api.avax.network/ext/bc/C/rpc"

// storageABI covers the single view we call on the node storage
// contract.
const storageABI = `[{
	"name": "getAllNodes",
	"type": "function",
	"stateMutability": "view",
	"inputs": [{"name": "account", "type": "address"}],
	"outputs": [{
		"name": "nodes",
		"type": "tuple[]",
		"components": [
			{"name": "name", "type": "string"},
			{"name": "creationTime", "type": "uint256"},
			{"name": "lastClaimTime", "type": "uint256"},
			{"name": "lastCompoundTime", "type": "uint256"},
			{"name": "amount", "type": "uint256"},
			{"name": "deleted", "type": "bool"}
		]
	}]
}]`

// Node is one entry returned by getAllNodes. Amount is in wei.
type Node struct {
	Name             string
	CreationTime     *big.Int
	LastClaimTime    *big.Int
	LastCompoundTime *big.Int
	Amount           *big.Int
	Deleted          bool
}

// Client wraps an ethclient connection plus the node storage contract.
type Client struct {
	eth     *ethclient.Client
	storage common.Address
	abi     abi.ABI
	chainID *big.Int
}

// Dial connects to the RPC endpoint and resolves the chain ID used for
// sender recovery.
func Dial(ctx context.Context, rpcURL, storageAddr string) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(storageABI))
	if err != nil {
		return nil, fmt.Errorf("avalanche: parse storage abi: %w", err)
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("avalanche: dial %s: %w", rpcURL, err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("avalanche: chain id: %w", err)
	}

	return &Client{
		eth:     eth,
		storage: common.HexToAddress(storageAddr),
		abi:     parsed,
		chainID: chainID,
	}, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// SenderOf recovers the from-address of a transaction by hash.
func (c *Client) SenderOf(ctx context.Context, txnHash string) (string, error) {
	tx, pending, err := c.eth.TransactionByHash(ctx, common.HexToHash(txnHash))
	if err != nil {
		return "", fmt.Errorf("avalanche: transaction %s: %w", txnHash, err)
	}
	if pending {
		return "", fmt.Errorf("avalanche: transaction %s still pending", txnHash)
	}

	from, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		return "", fmt.Errorf("avalanche: recover sender of %s: %w", txnHash, err)
	}
	return from.Hex(), nil
}

// NodesOf calls getAllNodes on the storage contract for one wallet.
func (c *Client) NodesOf(ctx context.Context, address string) ([]Node, error) {
	input, err := c.abi.Pack("getAllNodes", common.HexToAddress(address))
	if err != nil {
		return nil, fmt.Errorf("avalanche: pack getAllNodes(%s): %w", address, err)
	}

	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{
		To:   &c.storage,
		Data: input,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("avalanche: call getAllNodes(%s): %w", address, err)
	}

	var nodes []Node
	if err := c.abi.UnpackIntoInterface(&nodes, "getAllNodes", out); err != nil {
		return nil, fmt.Errorf("avalanche: unpack getAllNodes(%s): %w", address, err)
	}
	return nodes, nil
}
