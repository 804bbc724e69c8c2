package rewards

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rewardhub/rewardhub/internal/chain"
	"github.com/rewardhub/rewardhub/internal/ledger"
	"github.com/rewardhub/rewardhub/internal/logging"
)

// topHolderCount caps the dashboard leaderboard.
const topHolderCount = 10

// DashboardChain is the chain surface dashboard aggregation needs.
type DashboardChain interface {
	TokenBalance(ctx context.Context, address common.Address) (chain.Balance, error)
	TotalSupply(ctx context.Context) (float64, error)
}

// StudentBalance is one wallet's holding on the dashboard.
type StudentBalance struct {
	UserID        string  `json:"user_id"`
	Name          string  `json:"name"`
	WalletAddress string  `json:"wallet_address"`
	Balance       float64 `json:"balance"`
}

// DashboardStats is the admin overview: supply, aggregate holdings, and the
// top holders.
type DashboardStats struct {
	TotalStudents int              `json:"total_students"`
	TotalSupply   float64          `json:"total_supply"`
	TotalHeld     float64          `json:"total_held"`
	TopHolders    []StudentBalance `json:"top_holders"`
}

// Aggregator fans balance reads out across all connected wallets. A wallet
// whose read fails contributes zero rather than failing the whole view; the
// dashboard tolerates stale zeros, not outages.
type Aggregator struct {
	store *ledger.Store
	chain DashboardChain
}

func NewAggregator(store *ledger.Store, chain DashboardChain) *Aggregator {
	return &Aggregator{store: store, chain: chain}
}

// Stats builds the dashboard view. Per-wallet reads run concurrently; the
// leaderboard orders by balance descending with name order breaking ties.
func (a *Aggregator) Stats(ctx context.Context) (DashboardStats, error) {
	students, err := a.store.StudentsWithWallets(ctx)
	if err != nil {
		return DashboardStats{}, err
	}

	holders := make([]StudentBalance, len(students))
	var wg sync.WaitGroup
	for i, s := range students {
		wg.Add(1)
		go func(i int, s ledger.User) {
			defer wg.Done()
			holders[i] = StudentBalance{
				UserID:        s.ID,
				Name:          s.Name,
				WalletAddress: *s.WalletAddress,
			}
			bal, err := a.chain.TokenBalance(ctx, common.HexToAddress(*s.WalletAddress))
			if err != nil {
				logging.Warn("dashboard balance read failed, counting zero",
					logging.Wallet(*s.WalletAddress),
					logging.Err(err))
				return
			}
			holders[i].Balance = bal.Human
		}(i, s)
	}
	wg.Wait()

	var totalHeld float64
	for _, h := range holders {
		totalHeld += h.Balance
	}

	supply, err := a.chain.TotalSupply(ctx)
	if err != nil {
		logging.Warn("total supply read failed, reporting zero",
			logging.Err(err))
		supply = 0
	}

	// Students come back name-ordered, so ties keep that order.
	sort.SliceStable(holders, func(i, j int) bool {
		return holders[i].Balance > holders[j].Balance
	})
	if len(holders) > topHolderCount {
		holders = holders[:topHolderCount]
	}

	return DashboardStats{
		TotalStudents: len(students),
		TotalSupply:   supply,
		TotalHeld:     totalHeld,
		TopHolders:    holders,
	}, nil
}
