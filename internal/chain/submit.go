package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rewardhub/rewardhub/internal/logging"
)

// TransactionIntent is one pending write: the operation name for logging and
// error attribution, the contract method, and its ordered arguments.
type TransactionIntent struct {
	Op     string
	Method string
	Args   []interface{}
}

// TransactionOutcome is a confirmed write: the transaction hash and the block
// it was included in.
type TransactionOutcome struct {
	Hash        string
	BlockNumber uint64
}

// ConfirmationTimeoutError means no confirmation was observed within the
// transaction timeout. The transaction was broadcast and may still confirm
// later; the hash must be treated as pending, not failed. The message keeps
// the "timeout" signature so the retry classifier treats it as transient.
type ConfirmationTimeoutError struct {
	Op   string
	Hash string
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("transaction confirmation timeout: %s (tx %s still pending)", e.Op, e.Hash)
}

// PendingTxHash extracts the still-pending transaction hash from an error
// chain, if the failure was a confirmation timeout.
func PendingTxHash(err error) (string, bool) {
	var timeout *ConfirmationTimeoutError
	if errors.As(err, &timeout) {
		return timeout.Hash, true
	}
	return "", false
}

type submitResult struct {
	outcome TransactionOutcome
	err     error
}

type pendingIntent struct {
	ctx    context.Context
	intent TransactionIntent
	done   chan submitResult
}

// write queues an intent on the single-writer submission queue and waits for
// its outcome. Serializing submissions through one worker keeps concurrent
// writes from racing on nonce allocation; the retry classifier's nonce
// conditions remain as fallback.
func (c *Client) write(ctx context.Context, op, method string, args ...interface{}) (string, error) {
	p := &pendingIntent{
		ctx:    ctx,
		intent: TransactionIntent{Op: op, Method: method, Args: args},
		done:   make(chan submitResult, 1),
	}

	select {
	case c.intents <- p:
	case <-c.quit:
		return "", ErrClientClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case r := <-p.done:
		if r.err != nil {
			c.metrics.RecordTxFailed(method)
			return "", fmt.Errorf("blockchain %s failed: %w", method, r.err)
		}
		return r.outcome.Hash, nil
	case <-ctx.Done():
		// The worker will still finish and drop the result into the
		// buffered channel; the broadcast cannot be withdrawn.
		return "", ctx.Err()
	}
}

// submitLoop is the single submission worker. One intent at a time, drained
// in arrival order.
func (c *Client) submitLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.quit:
			return
		case p := <-c.intents:
			outcome, err := c.submitWithRetry(p.ctx, p.intent)
			p.done <- submitResult{outcome: outcome, err: err}
		}
	}
}

// submitWithRetry runs the whole submission protocol under the retry
// executor. A failed attempt redoes gas estimation and resubmits, since a
// previous gas guess may itself be stale.
func (c *Client) submitWithRetry(ctx context.Context, intent TransactionIntent) (TransactionOutcome, error) {
	return RunWithRetry(ctx, c.policy, intent.Op, func() (TransactionOutcome, error) {
		return c.submitOnce(ctx, intent)
	}, func() {
		c.metrics.RecordTxRetry(intent.Method)
	})
}

// submitOnce drives one attempt through the submission protocol:
// health gate -> gas estimate -> buffered limit -> broadcast -> confirmation.
func (c *Client) submitOnce(ctx context.Context, intent TransactionIntent) (TransactionOutcome, error) {
	var none TransactionOutcome

	if !c.prober.Healthy(ctx) {
		return none, errors.New("connection error: provider endpoint unhealthy")
	}

	estimate, err := c.backend.EstimateGas(ctx, intent.Method, intent.Args...)
	if err != nil {
		// Most estimation failures are deterministic reverts; retrying
		// cannot fix a logically-invalid call, so no transient signature
		// is attached here.
		return none, fmt.Errorf("gas estimation failed: %w", err)
	}

	gasLimit := uint64(float64(estimate) * c.gasBuffer)

	logging.Debug("gas estimated",
		logging.Operation(intent.Op),
		"gas_estimate", estimate,
		"gas_limit", gasLimit)

	start := time.Now()
	tx, err := c.backend.Submit(ctx, gasLimit, intent.Method, intent.Args...)
	if err != nil {
		return none, err
	}

	hash := tx.Hash().Hex()
	c.metrics.RecordTxSubmitted(intent.Method)
	logging.Info("transaction submitted",
		logging.Operation(intent.Op),
		logging.TxHash(hash),
		"gas_limit", gasLimit)

	waitCtx, cancel := context.WithTimeout(ctx, c.txTimeout)
	defer cancel()

	receipt, err := c.backend.WaitMined(waitCtx, tx)
	if err != nil {
		if waitCtx.Err() != nil && ctx.Err() == nil {
			c.metrics.RecordTxTimeout(intent.Method)
			logging.Warn("no confirmation observed within budget",
				logging.Operation(intent.Op),
				logging.TxHash(hash),
				"timeout", c.txTimeout.String())
			return none, &ConfirmationTimeoutError{Op: intent.Op, Hash: hash}
		}
		return none, fmt.Errorf("failed waiting for transaction %s: %w", hash, err)
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return none, fmt.Errorf("transaction %s reverted on-chain", hash)
	}

	c.metrics.RecordTxConfirmed(intent.Method, time.Since(start))
	logging.Info("transaction confirmed",
		logging.Operation(intent.Op),
		logging.TxHash(hash),
		"block", receipt.BlockNumber.Uint64())

	return TransactionOutcome{Hash: hash, BlockNumber: receipt.BlockNumber.Uint64()}, nil
}
