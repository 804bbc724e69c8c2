package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// contractBackend is the seam between the client and the chain. Tests inject
// a scripted implementation; production wires boundBackend.
type contractBackend interface {
	// Call performs a read-only contract call.
	Call(ctx context.Context, result *[]interface{}, method string, args ...interface{}) error
	// EstimateGas simulates the call and returns the gas estimate.
	EstimateGas(ctx context.Context, method string, args ...interface{}) (uint64, error)
	// Submit signs and broadcasts the transaction with the given gas limit.
	Submit(ctx context.Context, gasLimit uint64, method string, args ...interface{}) (*types.Transaction, error)
	// WaitMined blocks until the transaction is included or ctx expires.
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	// TransactionReceipt fetches the receipt for a previously broadcast hash.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// healthProber gates writes on provider reachability.
type healthProber interface {
	Healthy(ctx context.Context) bool
}

// Capabilities describes which optional contract operations the deployed
// build supports, resolved once from the ABI at client construction.
type Capabilities struct {
	StudentRegistry bool
}

// boundBackend implements contractBackend over a bind.BoundContract.
type boundBackend struct {
	conn     *Connection
	contract *bind.BoundContract
	abi      abi.ABI
}

func newBoundBackend(conn *Connection, abiJSON string) (*boundBackend, Capabilities, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, Capabilities{}, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	client := conn.Client()
	contract := bind.NewBoundContract(conn.ContractAddress(), parsed, client, client, client)

	_, hasRegister := parsed.Methods["registerStudent"]
	_, hasIsStudent := parsed.Methods["isStudent"]
	caps := Capabilities{StudentRegistry: hasRegister && hasIsStudent}

	return &boundBackend{conn: conn, contract: contract, abi: parsed}, caps, nil
}

func (b *boundBackend) Call(ctx context.Context, result *[]interface{}, method string, args ...interface{}) error {
	return b.contract.Call(&bind.CallOpts{Context: ctx}, result, method, args...)
}

func (b *boundBackend) EstimateGas(ctx context.Context, method string, args ...interface{}) (uint64, error) {
	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	to := b.conn.ContractAddress()
	return b.conn.Client().EstimateGas(ctx, ethereum.CallMsg{
		From: b.conn.Address(),
		To:   &to,
		Data: data,
	})
}

func (b *boundBackend) Submit(ctx context.Context, gasLimit uint64, method string, args ...interface{}) (*types.Transaction, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(b.conn.key, b.conn.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx
	auth.GasLimit = gasLimit

	return b.contract.Transact(auth, method, args...)
}

func (b *boundBackend) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, b.conn.Client(), tx)
}

func (b *boundBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return b.conn.Client().TransactionReceipt(ctx, hash)
}
