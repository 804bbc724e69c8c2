package rewards

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewardhub/rewardhub/internal/chain"
	"github.com/rewardhub/rewardhub/internal/ledger"
)

func newRedeemer(store *ledger.Store, fc *fakeChain) *Redeemer {
	return NewRedeemer(store, fc, NewReconciler(store, fc))
}

func TestRedeemInsufficientBalance(t *testing.T) {
	store := newTestStore(t)
	fc := newFakeChain()
	ctx := context.Background()

	student := seedStudent(t, store, "ada@campus.edu", "0xa1")
	fc.setBalance("0xa1", 50)
	perk := seedPerk(t, store, "Hoodie", 80, true)

	_, err := newRedeemer(store, fc).Redeem(ctx, student, perk.ID)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Zero(t, fc.redeemCalls, "no burn may be attempted")

	rows, err := store.RedemptionsByStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Empty(t, rows, "refused redemption must leave no record")
}

func TestRedeemOnChainPerk(t *testing.T) {
	store := newTestStore(t)
	fc := newFakeChain()
	ctx := context.Background()

	student := seedStudent(t, store, "ada@campus.edu", "0xa1")
	fc.setBalance("0xa1", 100)
	perk := seedPerk(t, store, "Free Coffee", 30, true)

	red, err := newRedeemer(store, fc).Redeem(ctx, student, perk.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.RedemptionApproved, red.Status)
	assert.NotEmpty(t, red.TxHash)
	assert.Equal(t, 1, fc.redeemCalls)
}

func TestRedeemDatabaseOnlyPerk(t *testing.T) {
	store := newTestStore(t)
	fc := newFakeChain()
	ctx := context.Background()

	student := seedStudent(t, store, "ada@campus.edu", "0xa1")
	fc.setBalance("0xa1", 100)
	perk := seedPerk(t, store, "Library Pass", 30, false)

	red, err := newRedeemer(store, fc).Redeem(ctx, student, perk.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.RedemptionApproved, red.Status)
	assert.Empty(t, red.TxHash)
	assert.Zero(t, fc.redeemCalls, "unsynced perks never touch the chain")
}

func TestRedeemBurnFailureRecordsNothing(t *testing.T) {
	store := newTestStore(t)
	fc := newFakeChain()
	ctx := context.Background()

	student := seedStudent(t, store, "ada@campus.edu", "0xa1")
	fc.setBalance("0xa1", 100)
	fc.redeemErr = errors.New("execution reverted: perk not active")
	perk := seedPerk(t, store, "Free Coffee", 30, true)

	_, err := newRedeemer(store, fc).Redeem(ctx, student, perk.ID)
	require.Error(t, err)

	rows, err := store.RedemptionsByStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Empty(t, rows, "a failed burn is not a redemption")
}

func TestRedeemConfirmationTimeoutRecordsPending(t *testing.T) {
	store := newTestStore(t)
	fc := newFakeChain()
	ctx := context.Background()

	student := seedStudent(t, store, "ada@campus.edu", "0xa1")
	fc.setBalance("0xa1", 100)
	fc.redeemErr = &chain.ConfirmationTimeoutError{Op: "redeemPerk", Hash: "0xfeed"}
	perk := seedPerk(t, store, "Free Coffee", 30, true)

	red, err := newRedeemer(store, fc).Redeem(ctx, student, perk.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.RedemptionPending, red.Status)
	assert.Equal(t, "0xfeed", red.TxHash)
}

func TestRedeemInactivePerk(t *testing.T) {
	store := newTestStore(t)
	fc := newFakeChain()
	ctx := context.Background()

	student := seedStudent(t, store, "ada@campus.edu", "0xa1")
	fc.setBalance("0xa1", 100)
	perk := seedPerk(t, store, "Retired Perk", 30, false)
	require.NoError(t, store.DeactivatePerk(ctx, perk.ID))

	_, err := newRedeemer(store, fc).Redeem(ctx, student, perk.ID)
	assert.ErrorIs(t, err, ErrPerkInactive)
}

func TestRedeemSerializesPerStudent(t *testing.T) {
	store := newTestStore(t)
	fc := newFakeChain()
	ctx := context.Background()

	// Balance covers one claim only; the check and the write must not
	// interleave across concurrent attempts.
	student := seedStudent(t, store, "ada@campus.edu", "0xa1")
	fc.setBalance("0xa1", 100)
	perk := seedPerk(t, store, "Hoodie", 80, false)

	redeemer := newRedeemer(store, fc)

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = redeemer.Redeem(ctx, student, perk.ID)
		}(i)
	}
	wg.Wait()

	var succeeded, refused int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientBalance):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one claim may pass the balance check")
	assert.Equal(t, 3, refused)
}
