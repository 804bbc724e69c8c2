package rewards

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rewardhub/rewardhub/internal/chain"
	"github.com/rewardhub/rewardhub/internal/ledger"
	"github.com/rewardhub/rewardhub/internal/logging"
)

// ErrAchievementInactive is returned for awards against a deactivated
// achievement.
var ErrAchievementInactive = errors.New("achievement is not active")

// GrantChain is the chain surface the awarding flow needs.
type GrantChain interface {
	GrantAchievement(ctx context.Context, student common.Address, title string) (string, error)
	RegisterStudent(ctx context.Context, student common.Address) (string, error)
	IsStudentRegistered(ctx context.Context, student common.Address) bool
}

// Granter awards achievements. Minting is delegated entirely to the grant
// call: the contract resolves the reward amount from the achievement title.
type Granter struct {
	store *ledger.Store
	chain GrantChain
}

func NewGranter(store *ledger.Store, chain GrantChain) *Granter {
	return &Granter{store: store, chain: chain}
}

// Award grants an achievement to a student on behalf of a faculty member.
// Mints that confirm in-band are recorded confirmed; mints that outlive the
// confirmation budget are recorded pending with their hash and resolved
// later by reconciliation. A mint that fails outright records nothing.
func (g *Granter) Award(ctx context.Context, facultyID, studentID, achievementID string) (*ledger.Award, error) {
	student, err := g.store.UserByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	ach, err := g.store.AchievementByID(ctx, achievementID)
	if err != nil {
		return nil, err
	}
	if !ach.Active {
		return nil, ErrAchievementInactive
	}

	status := ledger.AwardConfirmed
	var txHash string

	if ach.OnChainCreated && student.WalletAddress != nil && student.WalletVerified {
		addr := common.HexToAddress(*student.WalletAddress)

		// Best-effort registration for contract builds that track students.
		// A failed registration does not block the grant; the contract
		// rejects unregistered recipients on its own if it cares.
		if !g.chain.IsStudentRegistered(ctx, addr) {
			if _, err := g.chain.RegisterStudent(ctx, addr); err != nil {
				logging.Warn("student registration failed, attempting grant anyway",
					logging.Wallet(addr.Hex()),
					logging.Err(err))
			}
		}

		hash, err := g.chain.GrantAchievement(ctx, addr, ach.Title)
		if err != nil {
			if pending, ok := chain.PendingTxHash(err); ok {
				status = ledger.AwardPending
				txHash = pending
				logging.Warn("grant mint unconfirmed, recorded pending",
					logging.Student(student.ID),
					logging.TxHash(pending))
			} else {
				return nil, fmt.Errorf("blockchain award failed: %w", err)
			}
		} else {
			txHash = hash
		}
	} else {
		logging.Info("achievement awarded database-only",
			logging.Student(student.ID),
			"achievement", ach.Title,
			"on_chain_created", ach.OnChainCreated,
			"wallet_verified", student.WalletVerified)
	}

	award := &ledger.Award{
		StudentID:     student.ID,
		AchievementID: ach.ID,
		AwardedByID:   facultyID,
		Status:        status,
		TxHash:        txHash,
	}
	if err := g.store.CreateAward(ctx, award); err != nil {
		return nil, fmt.Errorf("failed to record award: %w", err)
	}
	award.Achievement = ach
	award.Student = student

	logging.Info("achievement awarded",
		logging.Student(student.ID),
		"achievement", ach.Title,
		"status", string(status))

	return award, nil
}
