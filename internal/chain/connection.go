package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rewardhub/rewardhub/internal/logging"
)

// ConnectionConfig holds what is needed to reach the contract: the RPC
// endpoint, the platform signing key, and the deployed contract address.
type ConnectionConfig struct {
	RPCURL          string
	PrivateKey      string
	ContractAddress string
	ProbeTimeout    time.Duration
}

// Connection owns the RPC provider and the signing identity. It is created
// once at process start and shared read-only by all operations.
type Connection struct {
	client       *ethclient.Client
	key          *ecdsa.PrivateKey
	address      common.Address
	contractAddr common.Address
	chainID      *big.Int
	probeTimeout time.Duration
	local        bool
}

// Dial connects to the RPC endpoint and resolves the chain ID. Loopback
// endpoints (a local dev chain) get a plain dial; remote gateways get a
// bounded HTTP client, trading latency for robustness against flaky
// third-party RPC providers.
func Dial(ctx context.Context, cfg ConnectionConfig) (*Connection, error) {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 30 * time.Second
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address: %s", cfg.ContractAddress)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	local := isLoopbackEndpoint(cfg.RPCURL)

	var client *ethclient.Client
	if local {
		client, err = ethclient.DialContext(ctx, cfg.RPCURL)
	} else {
		var rpcClient *rpc.Client
		rpcClient, err = rpc.DialOptions(ctx, cfg.RPCURL,
			rpc.WithHTTPClient(&http.Client{Timeout: cfg.ProbeTimeout}))
		if rpcClient != nil {
			client = ethclient.NewClient(rpcClient)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint %s: %w", cfg.RPCURL, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	conn := &Connection{
		client:       client,
		key:          key,
		address:      crypto.PubkeyToAddress(key.PublicKey),
		contractAddr: common.HexToAddress(cfg.ContractAddress),
		chainID:      chainID,
		probeTimeout: cfg.ProbeTimeout,
		local:        local,
	}

	logging.Info("blockchain connection established",
		logging.Component("chain"),
		logging.Wallet(conn.address.Hex()),
		"contract", conn.contractAddr.Hex(),
		"chain_id", chainID.String(),
		"local", local)

	return conn, nil
}

// Healthy issues a lightweight read (current block height) as a pre-flight
// gate before every write. It returns false on any failure, never an error.
func (c *Connection) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	if _, err := c.client.BlockNumber(ctx); err != nil {
		logging.Warn("connection health probe failed",
			logging.Component("chain"),
			logging.Err(err))
		return false
	}
	return true
}

// Close releases the underlying RPC connection.
func (c *Connection) Close() {
	c.client.Close()
}

// Client returns the underlying ethclient.
func (c *Connection) Client() *ethclient.Client {
	return c.client
}

// Address returns the platform signing address.
func (c *Connection) Address() common.Address {
	return c.address
}

// ContractAddress returns the deployed contract address.
func (c *Connection) ContractAddress() common.Address {
	return c.contractAddr
}

// ChainID returns the connected chain's ID.
func (c *Connection) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// isLoopbackEndpoint reports whether the RPC URL points at a local chain.
func isLoopbackEndpoint(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
