package rewards

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewardhub/rewardhub/internal/chain"
	"github.com/rewardhub/rewardhub/internal/ledger"
)

func TestReconcileSettlesPendingRows(t *testing.T) {
	store := newTestStore(t)
	fc := newFakeChain()
	ctx := context.Background()

	student := seedStudent(t, store, "ada@campus.edu", "0xa1")
	faculty := seedFaculty(t, store)
	ach := seedAchievement(t, store, "Dean's List", 50, true)
	perk := seedPerk(t, store, "Free Coffee", 30, true)

	mined := &ledger.Award{
		StudentID: student.ID, AchievementID: ach.ID, AwardedByID: faculty.ID,
		Status: ledger.AwardPending, TxHash: "0x01",
	}
	reverted := &ledger.Award{
		StudentID: student.ID, AchievementID: ach.ID, AwardedByID: faculty.ID,
		Status: ledger.AwardPending, TxHash: "0x02",
	}
	stillUnmined := &ledger.Award{
		StudentID: student.ID, AchievementID: ach.ID, AwardedByID: faculty.ID,
		Status: ledger.AwardPending, TxHash: "0x03",
	}
	for _, a := range []*ledger.Award{mined, reverted, stillUnmined} {
		require.NoError(t, store.CreateAward(ctx, a))
	}

	pendingRedemption := &ledger.Redemption{
		StudentID: student.ID, PerkID: perk.ID,
		Status: ledger.RedemptionPending, TxHash: "0x04",
	}
	require.NoError(t, store.CreateRedemption(ctx, pendingRedemption))

	fc.statuses["0x01"] = chain.TxConfirmed
	fc.statuses["0x02"] = chain.TxFailed
	fc.statuses["0x03"] = chain.TxPending
	fc.statuses["0x04"] = chain.TxConfirmed

	require.NoError(t, NewReconcileJob(store, fc).Run(ctx))

	awards, err := store.AwardsByStudent(ctx, student.ID)
	require.NoError(t, err)
	byHash := map[string]ledger.AwardStatus{}
	for _, a := range awards {
		byHash[a.TxHash] = a.Status
	}
	assert.Equal(t, ledger.AwardConfirmed, byHash["0x01"])
	assert.Equal(t, ledger.AwardFailed, byHash["0x02"])
	assert.Equal(t, ledger.AwardPending, byHash["0x03"], "unmined rows stay pending")

	redemptions, err := store.RedemptionsByStudent(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, redemptions, 1)
	assert.Equal(t, ledger.RedemptionApproved, redemptions[0].Status)
}
