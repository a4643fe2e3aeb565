package solprogram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GetBalances - Get a user's native, old, new and receipt balances for a project.
// project may be nil, in which case it is loaded.
func (c *MigrationClient) GetBalances(ctx context.Context, projectID string, user solana.PublicKey, project *ProjectView, opts ...LoadOption) (BalanceSnapshot, error) {
	snap, err := c.getBalances(ctx, projectID, user, project, opts...)
	if err != nil {
		return BalanceSnapshot{}, c.fail(err)
	}
	return snap, nil
}

func (c *MigrationClient) getBalances(ctx context.Context, projectID string, user solana.PublicKey, project *ProjectView, opts ...LoadOption) (BalanceSnapshot, error) {
	if user.IsZero() {
		return BalanceSnapshot{}, NewError(CodeInvalidAddress, "user address is required", nil)
	}

	o := applyLoadOptions(opts)
	key := balancesKey(c.network, projectID, user)
	if !o.skipCache {
		if snap, ok := c.balances.Get(key); ok {
			c.metrics.RecordCache(cacheBalances, true)
			return snap, nil
		}
		c.metrics.RecordCache(cacheBalances, false)
	}

	if project == nil {
		view, err := c.loadProjectState(ctx, projectID)
		if err != nil {
			return BalanceSnapshot{}, err
		}
		project = &view
	}

	snap, err := c.fetchBalances(ctx, project, user)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	c.balances.Set(key, snap, c.balanceTTL)
	return snap, nil
}

// fetchBalances runs the four reads concurrently. Only a rate-limited native read or
// cancellation fails the snapshot; other read failures count as zero.
func (c *MigrationClient) fetchBalances(ctx context.Context, project *ProjectView, user solana.PublicKey) (BalanceSnapshot, error) {
	atas, err := deriveUserTokenAccounts(project, user)
	if err != nil {
		return BalanceSnapshot{}, err
	}

	var snap BalanceSnapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		v, err := c.nativeBalance(gctx, user)
		snap.Native = v
		return err
	})
	tokenReads := []struct {
		name    string
		account solana.PublicKey
		dst     *uint64
	}{
		{"old", atas.Old, &snap.OldToken},
		{"new", atas.New, &snap.NewToken},
		{"receipt", atas.Receipt, &snap.Receipt},
	}
	for _, tr := range tokenReads {
		g.Go(func() error {
			v, err := c.tokenBalance(gctx, tr.name, tr.account)
			*tr.dst = v
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return BalanceSnapshot{}, err
	}
	return snap, nil
}

func (c *MigrationClient) nativeBalance(ctx context.Context, user solana.PublicKey) (uint64, error) {
	var out *rpc.GetBalanceResult
	err := c.call(ctx, "getBalance", func(ctx context.Context) error {
		var err error
		out, err = c.ledger.GetBalance(ctx, user, c.commitment)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		if NormalizeError(err).Code == CodeRateLimited {
			return 0, err
		}
		c.logger.Warn("native balance unavailable, reporting zero", zap.Stringer("user", user), zap.Error(err))
		return 0, nil
	}
	if out == nil {
		return 0, nil
	}
	return out.Value, nil
}

func (c *MigrationClient) tokenBalance(ctx context.Context, name string, account solana.PublicKey) (uint64, error) {
	var out *rpc.GetTokenAccountBalanceResult
	err := c.call(ctx, "getTokenAccountBalance", func(ctx context.Context) error {
		var err error
		out, err = c.ledger.GetTokenAccountBalance(ctx, account, c.commitment)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		if !isMissingAccount(err) {
			c.logger.Warn("token balance unavailable, reporting zero",
				zap.String("token", name), zap.Stringer("account", account), zap.Error(err))
		}
		return 0, nil
	}
	if out == nil || out.Value == nil {
		return 0, nil
	}

	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		c.logger.Warn("token balance unparsable, reporting zero",
			zap.String("token", name), zap.String("amount", out.Value.Amount), zap.Error(fmt.Errorf("parse: %w", err)))
		return 0, nil
	}
	return amount, nil
}

// isMissingAccount reports errors meaning the token account was never created.
func isMissingAccount(err error) bool {
	if errors.Is(err, rpc.ErrNotFound) {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "could not find account") ||
		strings.Contains(lower, "account not found") ||
		strings.Contains(lower, "invalid param: not a token account")
}
