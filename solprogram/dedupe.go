package solprogram

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"tokenmigration/cache"
)

// Deduped shares one ledger round trip between concurrent identical loads. The shared
// call runs under the context of whichever caller started it.
type Deduped struct {
	*MigrationClient
	projects cache.Memo[ProjectView]
	balances cache.Memo[BalanceSnapshot]
}

// NewDeduped wraps c. Every other method passes through unchanged.
func NewDeduped(c *MigrationClient) *Deduped {
	return &Deduped{MigrationClient: c}
}

// LoadProjectState - Like MigrationClient.LoadProjectState, with in-flight sharing
func (d *Deduped) LoadProjectState(ctx context.Context, projectID string, opts ...LoadOption) (ProjectView, error) {
	key := projectKey(d.network, projectID)
	if applyLoadOptions(opts).skipCache {
		key += ":fresh"
	}
	view, _, err := d.projects.Do(key, func() (ProjectView, error) {
		return d.MigrationClient.LoadProjectState(ctx, projectID, opts...)
	})
	return view, err
}

// GetBalances - Like MigrationClient.GetBalances, with in-flight sharing
func (d *Deduped) GetBalances(ctx context.Context, projectID string, user solana.PublicKey, project *ProjectView, opts ...LoadOption) (BalanceSnapshot, error) {
	key := balancesKey(d.network, projectID, user)
	if applyLoadOptions(opts).skipCache {
		key += ":fresh"
	}
	snap, _, err := d.balances.Do(key, func() (BalanceSnapshot, error) {
		return d.MigrationClient.GetBalances(ctx, projectID, user, project, opts...)
	})
	return snap, err
}
