package rewards

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rewardhub/rewardhub/internal/chain"
	"github.com/rewardhub/rewardhub/internal/ledger"
	"github.com/rewardhub/rewardhub/internal/logging"
)

var (
	// ErrInsufficientBalance is returned when the reconciled balance cannot
	// cover the perk's cost. Nothing is submitted and nothing is recorded.
	ErrInsufficientBalance = errors.New("not enough tokens")

	// ErrPerkInactive is returned for redemption attempts against a
	// deactivated perk.
	ErrPerkInactive = errors.New("perk is not active")
)

// RedeemChain is the chain surface redemption needs.
type RedeemChain interface {
	RedeemPerk(ctx context.Context, student common.Address, title string) (string, error)
}

// Redeemer processes perk redemptions. The balance check and the burn for
// one student run under a per-student lock, so two concurrent redemptions
// cannot both pass the check against the same balance.
type Redeemer struct {
	store      *ledger.Store
	chain      RedeemChain
	reconciler *Reconciler

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRedeemer(store *ledger.Store, chain RedeemChain, reconciler *Reconciler) *Redeemer {
	return &Redeemer{
		store:      store,
		chain:      chain,
		reconciler: reconciler,
		locks:      make(map[string]*sync.Mutex),
	}
}

func (d *Redeemer) studentLock(studentID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[studentID]
	if !ok {
		l = &sync.Mutex{}
		d.locks[studentID] = l
	}
	return l
}

// Redeem claims a perk for a student. On-chain perks burn the cost before
// the ledger row is written; when the burn fails outright, no row is
// written and the claim never happened. A burn that outlives the
// confirmation budget is recorded as pending with its transaction hash.
func (d *Redeemer) Redeem(ctx context.Context, student *ledger.User, perkID string) (*ledger.Redemption, error) {
	lock := d.studentLock(student.ID)
	lock.Lock()
	defer lock.Unlock()

	perk, err := d.store.PerkByID(ctx, perkID)
	if err != nil {
		return nil, err
	}
	if !perk.Active {
		return nil, ErrPerkInactive
	}

	view, err := d.reconciler.AvailableBalance(ctx, student)
	if err != nil {
		return nil, err
	}
	if view.Available < float64(perk.TokenCost) {
		logging.Info("redemption refused",
			logging.Student(student.ID),
			"perk", perk.Title,
			"available", view.Available,
			"cost", perk.TokenCost)
		return nil, ErrInsufficientBalance
	}

	status := ledger.RedemptionApproved
	var txHash string

	if perk.OnChainCreated {
		hash, err := d.chain.RedeemPerk(ctx, common.HexToAddress(view.WalletAddress), perk.Title)
		if err != nil {
			if pending, ok := chain.PendingTxHash(err); ok {
				status = ledger.RedemptionPending
				txHash = pending
				logging.Warn("redemption burn unconfirmed, recorded pending",
					logging.Student(student.ID),
					logging.TxHash(pending))
			} else {
				return nil, fmt.Errorf("blockchain redemption failed: %w", err)
			}
		} else {
			txHash = hash
		}
	} else {
		logging.Info("perk not synced on-chain, database-only redemption",
			logging.Student(student.ID),
			"perk", perk.Title)
	}

	redemption := &ledger.Redemption{
		StudentID: student.ID,
		PerkID:    perk.ID,
		Status:    status,
		TxHash:    txHash,
	}
	if err := d.store.CreateRedemption(ctx, redemption); err != nil {
		return nil, fmt.Errorf("failed to record redemption: %w", err)
	}
	redemption.Perk = perk

	logging.Info("perk redeemed",
		logging.Student(student.ID),
		"perk", perk.Title,
		"status", string(status))

	return redemption, nil
}
