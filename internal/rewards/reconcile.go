package rewards

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rewardhub/rewardhub/internal/chain"
	"github.com/rewardhub/rewardhub/internal/ledger"
	"github.com/rewardhub/rewardhub/internal/logging"
)

// ReceiptChain is the chain surface transaction reconciliation needs.
type ReceiptChain interface {
	TransactionStatus(ctx context.Context, hash string) (chain.TxStatus, error)
}

// ReconcileJob resolves awards and redemptions whose transactions were
// broadcast but never confirmed within the submission budget. Broadcasts
// cannot be withdrawn, so pending rows are settled from receipts instead of
// being retried.
type ReconcileJob struct {
	store *ledger.Store
	chain ReceiptChain
}

func NewReconcileJob(store *ledger.Store, chain ReceiptChain) *ReconcileJob {
	return &ReconcileJob{store: store, chain: chain}
}

// Schedule registers the job on the scheduler at the given interval.
func (j *ReconcileJob) Schedule(sched gocron.Scheduler, interval time.Duration) error {
	_, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if err := j.Run(ctx); err != nil {
				logging.Error("transaction reconciliation failed",
					logging.Err(err))
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule reconciliation job: %w", err)
	}
	return nil
}

// Run settles every pending award and redemption with a receipt. Rows whose
// transactions are still unmined stay pending for the next pass.
func (j *ReconcileJob) Run(ctx context.Context) error {
	awards, err := j.store.PendingAwards(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending awards: %w", err)
	}
	for _, a := range awards {
		status, err := j.chain.TransactionStatus(ctx, a.TxHash)
		if err != nil {
			logging.Warn("receipt lookup failed, leaving award pending",
				logging.TxHash(a.TxHash),
				logging.Err(err))
			continue
		}
		switch status {
		case chain.TxConfirmed:
			if err := j.store.ResolveAward(ctx, a.ID, ledger.AwardConfirmed); err != nil {
				return err
			}
			logging.Info("pending award confirmed", logging.TxHash(a.TxHash))
		case chain.TxFailed:
			if err := j.store.ResolveAward(ctx, a.ID, ledger.AwardFailed); err != nil {
				return err
			}
			logging.Warn("pending award reverted", logging.TxHash(a.TxHash))
		}
	}

	redemptions, err := j.store.PendingRedemptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending redemptions: %w", err)
	}
	for _, r := range redemptions {
		status, err := j.chain.TransactionStatus(ctx, r.TxHash)
		if err != nil {
			logging.Warn("receipt lookup failed, leaving redemption pending",
				logging.TxHash(r.TxHash),
				logging.Err(err))
			continue
		}
		switch status {
		case chain.TxConfirmed:
			if err := j.store.ResolveRedemption(ctx, r.ID, ledger.RedemptionApproved); err != nil {
				return err
			}
			logging.Info("pending redemption confirmed", logging.TxHash(r.TxHash))
		case chain.TxFailed:
			if err := j.store.ResolveRedemption(ctx, r.ID, ledger.RedemptionRejected); err != nil {
				return err
			}
			logging.Warn("pending redemption reverted", logging.TxHash(r.TxHash))
		}
	}

	return nil
}
