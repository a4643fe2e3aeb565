package solprogram

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// WatchBalances polls a user's balances every interval and calls onChange when the
// snapshot differs from the last one delivered. The first successful read is always
// delivered. A non-positive interval uses the client's poll interval.
//
// Unsubscribe cancels any read in flight, and no onChange call starts after it returns.
// It may be called from inside onChange, in which case the poller exits once the
// callback returns. If ctx ends first the subscription's Err channel carries ctx.Err().
func (c *MigrationClient) WatchBalances(ctx context.Context, projectID string, user solana.PublicKey, interval time.Duration, onChange func(BalanceSnapshot)) (event.Subscription, error) {
	if onChange == nil {
		return nil, c.fail(NewError(CodeUnknown, "onChange callback is required", nil))
	}
	if user.IsZero() {
		return nil, c.fail(NewError(CodeInvalidAddress, "user address is required", nil))
	}
	if interval <= 0 {
		interval = c.pollInterval
	}

	project, err := c.loadProjectState(ctx, projectID, SkipCache())
	if err != nil {
		return nil, c.fail(err)
	}

	logger := c.logger.With(zap.String("project", projectID), zap.Stringer("user", user))
	key := balancesKey(c.network, projectID, user)

	w := &balanceWatch{onChange: onChange}
	w.Subscription = event.NewSubscription(func(quit <-chan struct{}) error {
		pollCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-quit:
				cancel()
			case <-pollCtx.Done():
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last BalanceSnapshot
		delivered := false
		for {
			if isClosed(quit) {
				return nil
			}

			snap, err := c.fetchBalances(pollCtx, &project, user)
			switch {
			case err != nil && pollCtx.Err() != nil:
				if isClosed(quit) {
					return nil
				}
				return ctx.Err()
			case err != nil:
				logger.Warn("balance poll failed", zap.Error(err))
			default:
				c.balances.Set(key, snap, c.balanceTTL)
				if !delivered || !snap.Equal(last) {
					if !w.deliver(snap) {
						return nil
					}
					last, delivered = snap, true
				}
			}

			select {
			case <-quit:
				return nil
			case <-pollCtx.Done():
				if isClosed(quit) {
					return nil
				}
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})
	return w, nil
}

// balanceWatch runs callbacks on the poller goroutine and tracks whether one is in
// progress, so Unsubscribe from inside a callback does not wait on its own goroutine.
type balanceWatch struct {
	event.Subscription
	onChange func(BalanceSnapshot)

	mu          sync.Mutex
	stopped     bool
	dispatching bool
}

// deliver runs onChange unless the watch was stopped. It reports whether it ran.
func (w *balanceWatch) deliver(snap BalanceSnapshot) bool {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return false
	}
	w.dispatching = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.dispatching = false
		w.mu.Unlock()
	}()
	w.onChange(snap)
	return true
}

func (w *balanceWatch) Unsubscribe() {
	w.mu.Lock()
	w.stopped = true
	dispatching := w.dispatching
	w.mu.Unlock()

	if dispatching {
		go w.Subscription.Unsubscribe()
		return
	}
	w.Subscription.Unsubscribe()
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
