package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rewardhub/rewardhub/internal/logging"
)

// defaultDecimals is the fallback token precision when the contract exposes
// no decimals accessor. Advisory metadata, not worth failing a workflow over.
const defaultDecimals = 18

// ErrDirectMint is returned for any attempt to mint a bare amount. Token
// issuance must always be attributable to a named achievement.
var ErrDirectMint = errors.New("direct mint is not supported; use grantAchievement with an achievement title")

// ErrClientClosed is returned when a write is attempted after Close.
var ErrClientClosed = errors.New("chain client is closed")

// Recorder receives client instrumentation events. *metrics.Collector
// satisfies it; a no-op is used when none is configured.
type Recorder interface {
	RecordTxSubmitted(op string)
	RecordTxConfirmed(op string, latency time.Duration)
	RecordTxFailed(op string)
	RecordTxRetry(op string)
	RecordTxTimeout(op string)
	RecordReadFallback(op string)
}

type nopRecorder struct{}

func (nopRecorder) RecordTxSubmitted(string)                 {}
func (nopRecorder) RecordTxConfirmed(string, time.Duration)  {}
func (nopRecorder) RecordTxFailed(string)                    {}
func (nopRecorder) RecordTxRetry(string)                     {}
func (nopRecorder) RecordTxTimeout(string)                   {}
func (nopRecorder) RecordReadFallback(string)                {}

// Balance is a token balance in both raw contract units and human units.
type Balance struct {
	Raw   *big.Int
	Human float64
}

// ClientConfig tunes the contract client. Zero values fall back to the
// process-wide defaults.
type ClientConfig struct {
	Retry          RetryPolicy
	GasLimitBuffer float64
	TxTimeout      time.Duration
	ABI            string
	Metrics        Recorder
}

// Client is the typed facade over the rewards token contract. Reads are
// individually retryable; writes funnel through a single-writer submission
// queue so concurrent operations never race on nonce allocation.
type Client struct {
	backend   contractBackend
	prober    healthProber
	policy    RetryPolicy
	caps      Capabilities
	gasBuffer float64
	txTimeout time.Duration
	metrics   Recorder

	intents   chan *pendingIntent
	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewClient creates a contract client over an established connection and
// starts its submission worker. Callers must Close it on shutdown.
func NewClient(conn *Connection, cfg ClientConfig) (*Client, error) {
	abiJSON := cfg.ABI
	if abiJSON == "" {
		abiJSON = RewardHubTokenABI
	}

	backend, caps, err := newBoundBackend(conn, abiJSON)
	if err != nil {
		return nil, err
	}

	return newClient(backend, conn, caps, cfg), nil
}

// newClient wires a client over explicit collaborators; tests inject fakes here.
func newClient(backend contractBackend, prober healthProber, caps Capabilities, cfg ClientConfig) *Client {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.GasLimitBuffer == 0 {
		cfg.GasLimitBuffer = 1.2
	}
	if cfg.TxTimeout == 0 {
		cfg.TxTimeout = 60 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopRecorder{}
	}

	c := &Client{
		backend:   backend,
		prober:    prober,
		policy:    cfg.Retry,
		caps:      caps,
		gasBuffer: cfg.GasLimitBuffer,
		txTimeout: cfg.TxTimeout,
		metrics:   cfg.Metrics,
		intents:   make(chan *pendingIntent),
		quit:      make(chan struct{}),
	}

	c.wg.Add(1)
	go c.submitLoop()

	return c
}

// Close stops the submission worker. In-flight writes complete first.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
	c.wg.Wait()
}

// Capabilities reports which optional contract operations the deployed build
// supports.
func (c *Client) Capabilities() Capabilities {
	return c.caps
}

// TokenBalance returns the balance for an address in raw and human units.
func (c *Client) TokenBalance(ctx context.Context, address common.Address) (Balance, error) {
	op := fmt.Sprintf("getTokenBalance(%s)", address.Hex())

	raw, err := RunWithRetry(ctx, c.policy, op, func() (*big.Int, error) {
		var out []interface{}
		if err := c.backend.Call(ctx, &out, "balanceOf", address); err != nil {
			return nil, err
		}
		return bigIntResult(out, 0), nil
	}, nil)
	if err != nil {
		return Balance{}, err
	}

	return Balance{Raw: raw, Human: toHumanUnits(raw, c.Decimals(ctx))}, nil
}

// TotalSupply returns the total token supply in human units.
func (c *Client) TotalSupply(ctx context.Context) (float64, error) {
	raw, err := RunWithRetry(ctx, c.policy, "getTotalSupply", func() (*big.Int, error) {
		var out []interface{}
		if err := c.backend.Call(ctx, &out, "totalSupply"); err != nil {
			return nil, err
		}
		return bigIntResult(out, 0), nil
	}, nil)
	if err != nil {
		return 0, err
	}

	return toHumanUnits(raw, c.Decimals(ctx)), nil
}

// Decimals returns the contract's token precision, defaulting to 18 when the
// contract exposes no decimals accessor or the read fails. Never errors.
func (c *Client) Decimals(ctx context.Context) uint8 {
	dec, err := RunWithRetry(ctx, c.policy, "getDecimals", func() (uint8, error) {
		var out []interface{}
		if err := c.backend.Call(ctx, &out, "decimals"); err != nil {
			return 0, err
		}
		if len(out) == 0 {
			return 0, errors.New("empty decimals result")
		}
		switch v := out[0].(type) {
		case uint8:
			return v, nil
		case *big.Int:
			return uint8(v.Uint64()), nil
		default:
			return 0, fmt.Errorf("unexpected decimals type %T", out[0])
		}
	}, nil)
	if err != nil {
		logging.Warn("decimals lookup failed, using default",
			logging.Component("chain"),
			"default", defaultDecimals,
			logging.Err(err))
		c.metrics.RecordReadFallback("decimals")
		return defaultDecimals
	}
	return dec
}

// AchievementExists reports whether an achievement with a positive reward is
// recorded on-chain. Any underlying fault collapses to false: an existence
// check must never block the caller with an error.
func (c *Client) AchievementExists(ctx context.Context, title string) bool {
	return c.recordExists(ctx, "achievements", fmt.Sprintf("achievementExists(%q)", title), title)
}

// PerkExists reports whether a perk with a positive cost is recorded on-chain.
func (c *Client) PerkExists(ctx context.Context, title string) bool {
	return c.recordExists(ctx, "perks", fmt.Sprintf("perkExists(%q)", title), title)
}

// recordExists reads a title-keyed record and checks its amount field
// (rewardAmount for achievements, cost for perks) is positive.
func (c *Client) recordExists(ctx context.Context, method, op, title string) bool {
	exists, err := RunWithRetry(ctx, c.policy, op, func() (bool, error) {
		var out []interface{}
		if err := c.backend.Call(ctx, &out, method, title); err != nil {
			return false, err
		}
		amount := bigIntResult(out, 1)
		return amount != nil && amount.Sign() > 0, nil
	}, nil)
	if err != nil {
		logging.Warn("existence check failed, reporting absent",
			logging.Operation(op),
			logging.Err(err))
		c.metrics.RecordReadFallback(method)
		return false
	}
	return exists
}

// IsStudentRegistered reports whether the address is registered on-chain.
// False is the safe default, both when the contract build lacks the
// registration capability and when the read faults: it permits a
// registration attempt to proceed.
func (c *Client) IsStudentRegistered(ctx context.Context, student common.Address) bool {
	if !c.caps.StudentRegistry {
		logging.Warn("contract build lacks student registry capability",
			logging.Component("chain"))
		return false
	}

	var out []interface{}
	if err := c.backend.Call(ctx, &out, "isStudent", student); err != nil {
		logging.Warn("student registration check failed, reporting unregistered",
			logging.Wallet(student.Hex()),
			logging.Err(err))
		c.metrics.RecordReadFallback("isStudent")
		return false
	}
	if len(out) == 0 {
		return false
	}
	registered, _ := out[0].(bool)
	return registered
}

// AddAchievement records a new achievement on-chain.
func (c *Client) AddAchievement(ctx context.Context, title string, reward int64) (string, error) {
	op := fmt.Sprintf("addAchievement(%q, %d)", title, reward)
	return c.write(ctx, op, "addAchievement", title, big.NewInt(reward))
}

// UpdateAchievement creates a new achievement record and deactivates the old
// one. Titles are never mutated in place, preserving historical traceability.
func (c *Client) UpdateAchievement(ctx context.Context, oldTitle, newTitle string, reward int64) (string, error) {
	op := fmt.Sprintf("updateAchievement(%q, %q, %d)", oldTitle, newTitle, reward)
	return c.write(ctx, op, "updateAchievement", oldTitle, newTitle, big.NewInt(reward))
}

// DeactivateAchievement soft-deletes an achievement on-chain.
func (c *Client) DeactivateAchievement(ctx context.Context, title string) (string, error) {
	op := fmt.Sprintf("deactivateAchievement(%q)", title)
	return c.write(ctx, op, "deactivateAchievement", title)
}

// AddPerk records a new perk on-chain.
func (c *Client) AddPerk(ctx context.Context, title string, cost int64) (string, error) {
	op := fmt.Sprintf("addPerk(%q, %d)", title, cost)
	return c.write(ctx, op, "addPerk", title, big.NewInt(cost))
}

// UpdatePerk creates a new perk record and deactivates the old one.
func (c *Client) UpdatePerk(ctx context.Context, oldTitle, newTitle string, cost int64) (string, error) {
	op := fmt.Sprintf("updatePerk(%q, %q, %d)", oldTitle, newTitle, cost)
	return c.write(ctx, op, "updatePerk", oldTitle, newTitle, big.NewInt(cost))
}

// DeactivatePerk soft-deletes a perk on-chain.
func (c *Client) DeactivatePerk(ctx context.Context, title string) (string, error) {
	op := fmt.Sprintf("deactivatePerk(%q)", title)
	return c.write(ctx, op, "deactivatePerk", title)
}

// GrantAchievement mints the achievement's reward to the student. This is the
// sole path by which token supply grows.
func (c *Client) GrantAchievement(ctx context.Context, student common.Address, title string) (string, error) {
	op := fmt.Sprintf("grantAchievement(%s, %q)", student.Hex(), title)
	return c.write(ctx, op, "grantAchievement", student, title)
}

// RedeemPerk burns the perk's cost from the student balance. The platform
// signing identity submits on the student's behalf; wallet ownership is
// established earlier, off-chain.
func (c *Client) RedeemPerk(ctx context.Context, student common.Address, title string) (string, error) {
	op := fmt.Sprintf("redeemPerk(%s, %q)", student.Hex(), title)
	return c.write(ctx, op, "redeemPerk", student, title)
}

// RegisterStudent registers the address on-chain. Returns an empty hash and
// no error when the contract build lacks the capability.
func (c *Client) RegisterStudent(ctx context.Context, student common.Address) (string, error) {
	if !c.caps.StudentRegistry {
		logging.Warn("contract build lacks registerStudent, skipping",
			logging.Wallet(student.Hex()))
		return "", nil
	}

	op := fmt.Sprintf("registerStudent(%s)", student.Hex())
	return c.write(ctx, op, "registerStudent", student)
}

// Mint always fails. See ErrDirectMint.
func (c *Client) Mint(ctx context.Context, student common.Address, amount int64) (string, error) {
	return "", ErrDirectMint
}

// TxStatus is the resolved state of a previously broadcast transaction.
type TxStatus int

const (
	TxPending TxStatus = iota
	TxConfirmed
	TxFailed
)

// TransactionStatus looks up the receipt for a broadcast hash. Used by the
// reconciliation pass to resolve confirmation-timeout outcomes.
func (c *Client) TransactionStatus(ctx context.Context, hash string) (TxStatus, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, common.HexToHash(hash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return TxPending, nil
		}
		return TxPending, fmt.Errorf("failed to fetch receipt for %s: %w", hash, err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return TxFailed, nil
	}
	return TxConfirmed, nil
}

// bigIntResult extracts the *big.Int at index i of an unpacked call result.
func bigIntResult(out []interface{}, i int) *big.Int {
	if len(out) <= i {
		return nil
	}
	v, _ := out[i].(*big.Int)
	return v
}

// toHumanUnits scales a raw token quantity down by 10^decimals.
func toHumanUnits(raw *big.Int, decimals uint8) float64 {
	if raw == nil {
		return 0
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	human, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), scale).Float64()
	return human
}
