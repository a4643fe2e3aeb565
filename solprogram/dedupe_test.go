package solprogram

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduped_SharesConcurrentLoads(t *testing.T) {
	f := newFixture(t, nil)
	d := NewDeduped(f.client)

	f.ledger.Block()
	const callers = 8
	var wg sync.WaitGroup
	views := make([]ProjectView, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			views[i], errs[i] = d.LoadProjectState(t.Context(), "alpha")
		}(i)
	}

	// One caller reaches the ledger; the rest wait on its result.
	require.Eventually(t, func() bool { return f.ledger.Calls("getAccountInfo") == 1 }, 2*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	f.ledger.Unblock()
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "alpha", views[i].ProjectID)
	}
	assert.Equal(t, 3, f.ledger.TotalCalls(), "config + two mints, once")
}

func TestDeduped_SharesConcurrentBalanceReads(t *testing.T) {
	f := newFixture(t, nil)
	f.setBalances(1, 2, 3, 4)
	view := f.view()
	d := NewDeduped(f.client)

	f.ledger.Block()
	var wg sync.WaitGroup
	snaps := make([]BalanceSnapshot, 4)
	for i := range snaps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := d.GetBalances(t.Context(), "alpha", f.user, &view, SkipCache())
			assert.NoError(t, err)
			snaps[i] = snap
		}(i)
	}

	require.Eventually(t, func() bool { return f.ledger.Calls("getBalance") == 1 }, 2*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	f.ledger.Unblock()
	wg.Wait()

	for _, s := range snaps {
		assert.Equal(t, BalanceSnapshot{Native: 1, OldToken: 2, NewToken: 3, Receipt: 4}, s)
	}
	assert.Equal(t, 1, f.ledger.Calls("getBalance"))
	assert.Equal(t, 3, f.ledger.Calls("getTokenAccountBalance"))
}

func TestDeduped_SequentialLoadsUseCache(t *testing.T) {
	f := newFixture(t, nil)
	d := NewDeduped(f.client)

	_, err := d.LoadProjectState(t.Context(), "alpha")
	require.NoError(t, err)
	_, err = d.LoadProjectState(t.Context(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, 3, f.ledger.TotalCalls())

	// Fresh loads are not merged with cached ones.
	_, err = d.LoadProjectState(t.Context(), "alpha", SkipCache())
	require.NoError(t, err)
	assert.Equal(t, 6, f.ledger.TotalCalls())
}
