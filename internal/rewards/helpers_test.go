package rewards

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"

	"github.com/rewardhub/rewardhub/internal/chain"
	"github.com/rewardhub/rewardhub/internal/ledger"
)

// fakeChain scripts the contract surface the services consume. Balances are
// keyed by normalized hex address; per-address errors simulate a faulting
// provider for that wallet.
type fakeChain struct {
	mu sync.Mutex

	balances   map[string]float64
	balanceErr map[string]error
	supply     float64
	supplyErr  error

	redeemErr error
	grantErr  error
	writeErr  error
	statuses  map[string]chain.TxStatus

	nextHash    int
	redeemCalls int
	grantCalls  int
	registered  map[string]bool
	hasRegistry bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		balances:   make(map[string]float64),
		balanceErr: make(map[string]error),
		statuses:   make(map[string]chain.TxStatus),
		registered: make(map[string]bool),
	}
}

func (f *fakeChain) setBalance(addr string, human float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[common.HexToAddress(addr).Hex()] = human
}

func (f *fakeChain) issueHash() string {
	f.nextHash++
	return common.BigToHash(big.NewInt(int64(f.nextHash))).Hex()
}

func (f *fakeChain) TokenBalance(_ context.Context, address common.Address) (chain.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.balanceErr[address.Hex()]; err != nil {
		return chain.Balance{}, err
	}
	human := f.balances[address.Hex()]
	return chain.Balance{Raw: big.NewInt(int64(human)), Human: human}, nil
}

func (f *fakeChain) TotalSupply(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.supply, f.supplyErr
}

func (f *fakeChain) RedeemPerk(_ context.Context, _ common.Address, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redeemCalls++
	if f.redeemErr != nil {
		return "", f.redeemErr
	}
	return f.issueHash(), nil
}

func (f *fakeChain) GrantAchievement(_ context.Context, _ common.Address, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grantCalls++
	if f.grantErr != nil {
		return "", f.grantErr
	}
	return f.issueHash(), nil
}

func (f *fakeChain) RegisterStudent(_ context.Context, student common.Address) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered[student.Hex()] = true
	return f.issueHash(), nil
}

func (f *fakeChain) IsStudentRegistered(_ context.Context, student common.Address) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasRegistry && f.registered[student.Hex()]
}

func (f *fakeChain) TransactionStatus(_ context.Context, hash string) (chain.TxStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[hash], nil
}

func (f *fakeChain) AddAchievement(_ context.Context, _ string, _ int64) (string, error) {
	return f.catalogWrite()
}

func (f *fakeChain) UpdateAchievement(_ context.Context, _, _ string, _ int64) (string, error) {
	return f.catalogWrite()
}

func (f *fakeChain) DeactivateAchievement(_ context.Context, _ string) (string, error) {
	return f.catalogWrite()
}

func (f *fakeChain) AddPerk(_ context.Context, _ string, _ int64) (string, error) {
	return f.catalogWrite()
}

func (f *fakeChain) UpdatePerk(_ context.Context, _, _ string, _ int64) (string, error) {
	return f.catalogWrite()
}

func (f *fakeChain) DeactivatePerk(_ context.Context, _ string) (string, error) {
	return f.catalogWrite()
}

func (f *fakeChain) catalogWrite() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return "", f.writeErr
	}
	return f.issueHash(), nil
}

func newTestStore(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(sqlite.Open(":memory:"))
	require.NoError(t, err)
	return store
}

func seedStudent(t *testing.T, store *ledger.Store, email, wallet string) *ledger.User {
	t.Helper()
	u := &ledger.User{Name: "Student " + email, Email: email, PasswordHash: "x", Role: ledger.RoleStudent}
	require.NoError(t, store.CreateUser(context.Background(), u))
	if wallet != "" {
		require.NoError(t, store.AttachWallet(context.Background(), u.ID, common.HexToAddress(wallet).Hex()))
		addr := common.HexToAddress(wallet).Hex()
		u.WalletAddress = &addr
		u.WalletVerified = true
	}
	return u
}

func seedFaculty(t *testing.T, store *ledger.Store) *ledger.User {
	t.Helper()
	u := &ledger.User{Name: "Prof", Email: "prof@campus.edu", PasswordHash: "x", Role: ledger.RoleFaculty}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

func seedPerk(t *testing.T, store *ledger.Store, title string, cost int64, onChain bool) *ledger.Perk {
	t.Helper()
	p := &ledger.Perk{Title: title, TokenCost: cost, Active: true, OnChainCreated: onChain}
	require.NoError(t, store.CreatePerk(context.Background(), p))
	return p
}

func seedAchievement(t *testing.T, store *ledger.Store, title string, reward int64, onChain bool) *ledger.Achievement {
	t.Helper()
	a := &ledger.Achievement{Title: title, TokenReward: reward, Active: true, OnChainCreated: onChain}
	require.NoError(t, store.CreateAchievement(context.Background(), a))
	return a
}
