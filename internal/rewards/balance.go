package rewards

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rewardhub/rewardhub/internal/chain"
	"github.com/rewardhub/rewardhub/internal/ledger"
)

// ErrNoWallet is returned for balance operations on a student without a
// verified wallet.
var ErrNoWallet = errors.New("student has no verified wallet")

// BalanceReader is the chain surface balance reconciliation needs.
type BalanceReader interface {
	TokenBalance(ctx context.Context, address common.Address) (chain.Balance, error)
}

// BalanceView is a reconciled student balance: what the chain holds, what
// redemptions already spent on either side of the sync boundary, and what
// remains spendable. Only database-only spending reduces Available; on-chain
// redemptions already burned from the chain balance.
type BalanceView struct {
	WalletAddress   string  `json:"wallet_address"`
	OnChain         float64 `json:"on_chain_balance"`
	BlockchainSpent int64   `json:"blockchain_redemptions"`
	DatabaseSpent   int64   `json:"database_only_spent"`
	Available       float64 `json:"available_balance"`
}

// Reconciler computes spendable balances. The chain is authoritative for
// holdings, but redemptions of perks that were never synced on-chain burn
// nothing there, so their cost is subtracted from the chain balance.
type Reconciler struct {
	store *ledger.Store
	chain BalanceReader
}

func NewReconciler(store *ledger.Store, chain BalanceReader) *Reconciler {
	return &Reconciler{store: store, chain: chain}
}

// AvailableBalance reconciles one student's balance. The result can go
// negative if database-only spending outran on-chain earnings; callers treat
// anything below a perk's cost as insufficient.
func (r *Reconciler) AvailableBalance(ctx context.Context, student *ledger.User) (BalanceView, error) {
	if student.WalletAddress == nil || !student.WalletVerified {
		return BalanceView{}, ErrNoWallet
	}

	bal, err := r.chain.TokenBalance(ctx, common.HexToAddress(*student.WalletAddress))
	if err != nil {
		return BalanceView{}, fmt.Errorf("failed to read on-chain balance: %w", err)
	}

	spent, err := r.store.DatabaseOnlyRedemptionCost(ctx, student.ID)
	if err != nil {
		return BalanceView{}, fmt.Errorf("failed to sum database-only redemptions: %w", err)
	}

	burned, err := r.store.OnChainRedemptionCost(ctx, student.ID)
	if err != nil {
		return BalanceView{}, fmt.Errorf("failed to sum on-chain redemptions: %w", err)
	}

	return BalanceView{
		WalletAddress:   *student.WalletAddress,
		OnChain:         bal.Human,
		BlockchainSpent: burned,
		DatabaseSpent:   spent,
		Available:       bal.Human - float64(spent),
	}, nil
}
