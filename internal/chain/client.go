package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client wraps go-ethereum RPC for a single chain.
type Client struct {
	profile   Profile
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// NewClient dials rpcURL and binds it to the chain profile.
func NewClient(ctx context.Context, profile Profile, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return NewClientFromRPC(profile, rpcClient), nil
}

// NewClientFromRPC wraps an existing rpc.Client.
func NewClientFromRPC(profile Profile, rpcClient *rpc.Client) *Client {
	return &Client{
		profile:   profile,
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// RPC exposes the raw client for methods ethclient does not classify the way we need.
func (c *Client) RPC() *rpc.Client {
	return c.rpcClient
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// VerifyChain fails when the endpoint serves a different chain than the profile.
func (c *Client) VerifyChain(ctx context.Context) error {
	chainID, err := c.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() || chainID.Uint64() != c.profile.ChainID {
		return fmt.Errorf("rpc serves chain %s, expected %s (%d)", chainID, c.profile.Name, c.profile.ChainID)
	}
	return nil
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// CallContract performs an eth_call at blockNumber (nil means latest).
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}
