package rewards

import (
	"context"
	"fmt"

	"github.com/rewardhub/rewardhub/internal/chain"
	"github.com/rewardhub/rewardhub/internal/ledger"
	"github.com/rewardhub/rewardhub/internal/logging"
)

// CatalogChain is the chain surface catalog administration needs.
type CatalogChain interface {
	AddAchievement(ctx context.Context, title string, reward int64) (string, error)
	UpdateAchievement(ctx context.Context, oldTitle, newTitle string, reward int64) (string, error)
	DeactivateAchievement(ctx context.Context, title string) (string, error)
	AddPerk(ctx context.Context, title string, cost int64) (string, error)
	UpdatePerk(ctx context.Context, oldTitle, newTitle string, cost int64) (string, error)
	DeactivatePerk(ctx context.Context, title string) (string, error)
}

// Catalog manages achievements and perks in the ledger and mirrors them to
// the contract. The ledger row is written first; a failed chain sync leaves
// the entry database-only rather than failing the admin operation, and it
// awards or redeems without a chain leg until re-synced.
type Catalog struct {
	store *ledger.Store
	chain CatalogChain
}

func NewCatalog(store *ledger.Store, chain CatalogChain) *Catalog {
	return &Catalog{store: store, chain: chain}
}

// CreateAchievement adds a catalog entry and mirrors it on-chain.
func (c *Catalog) CreateAchievement(ctx context.Context, title, description string, reward int64) (*ledger.Achievement, error) {
	a := &ledger.Achievement{
		Title:       title,
		Description: description,
		TokenReward: reward,
		Active:      true,
	}
	if err := c.store.CreateAchievement(ctx, a); err != nil {
		return nil, err
	}

	hash, err := c.chain.AddAchievement(ctx, title, reward)
	hash, ok := c.syncResult("achievement", title, hash, err)
	if !ok {
		return a, nil
	}
	a.OnChainCreated = true
	a.TxHash = hash
	if err := c.store.SaveAchievement(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateAchievement rewrites a catalog entry. On-chain the old title is
// deactivated and a new record created; titles are never mutated in place.
func (c *Catalog) UpdateAchievement(ctx context.Context, id, title, description string, reward int64) (*ledger.Achievement, error) {
	a, err := c.store.AchievementByID(ctx, id)
	if err != nil {
		return nil, err
	}

	oldTitle := a.Title
	a.Title = title
	a.Description = description
	a.TokenReward = reward

	if a.OnChainCreated {
		hash, err := c.chain.UpdateAchievement(ctx, oldTitle, title, reward)
		if hash, ok := c.syncResult("achievement", title, hash, err); ok {
			a.TxHash = hash
		}
	}

	if err := c.store.SaveAchievement(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeactivateAchievement retires a catalog entry locally and on-chain.
func (c *Catalog) DeactivateAchievement(ctx context.Context, id string) error {
	a, err := c.store.AchievementByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.store.DeactivateAchievement(ctx, id); err != nil {
		return err
	}
	if a.OnChainCreated {
		hash, err := c.chain.DeactivateAchievement(ctx, a.Title)
		c.syncResult("achievement", a.Title, hash, err)
	}
	return nil
}

// CreatePerk adds a perk and mirrors it on-chain.
func (c *Catalog) CreatePerk(ctx context.Context, title, description string, cost int64) (*ledger.Perk, error) {
	p := &ledger.Perk{
		Title:       title,
		Description: description,
		TokenCost:   cost,
		Active:      true,
	}
	if err := c.store.CreatePerk(ctx, p); err != nil {
		return nil, err
	}

	hash, err := c.chain.AddPerk(ctx, title, cost)
	hash, ok := c.syncResult("perk", title, hash, err)
	if !ok {
		return p, nil
	}
	p.OnChainCreated = true
	p.TxHash = hash
	if err := c.store.SavePerk(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdatePerk rewrites a perk entry.
func (c *Catalog) UpdatePerk(ctx context.Context, id, title, description string, cost int64) (*ledger.Perk, error) {
	p, err := c.store.PerkByID(ctx, id)
	if err != nil {
		return nil, err
	}

	oldTitle := p.Title
	p.Title = title
	p.Description = description
	p.TokenCost = cost

	if p.OnChainCreated {
		hash, err := c.chain.UpdatePerk(ctx, oldTitle, title, cost)
		if hash, ok := c.syncResult("perk", title, hash, err); ok {
			p.TxHash = hash
		}
	}

	if err := c.store.SavePerk(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeactivatePerk retires a perk locally and on-chain.
func (c *Catalog) DeactivatePerk(ctx context.Context, id string) error {
	p, err := c.store.PerkByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.store.DeactivatePerk(ctx, id); err != nil {
		return err
	}
	if p.OnChainCreated {
		hash, err := c.chain.DeactivatePerk(ctx, p.Title)
		c.syncResult("perk", p.Title, hash, err)
	}
	return nil
}

// syncResult resolves a chain mirror call to the hash worth persisting. An
// unconfirmed broadcast counts as synced with its pending hash, since the
// record will still land. Failures are logged and swallowed; the entry
// stays database-only.
func (c *Catalog) syncResult(kind, title, hash string, err error) (string, bool) {
	if err == nil {
		return hash, true
	}
	if pending, ok := chain.PendingTxHash(err); ok {
		logging.Warn(fmt.Sprintf("%s sync broadcast unconfirmed", kind),
			"title", title,
			logging.TxHash(pending))
		return pending, true
	}
	logging.Warn(fmt.Sprintf("%s sync failed, entry stays database-only", kind),
		"title", title,
		logging.Err(err))
	return "", false
}
