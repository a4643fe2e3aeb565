// Package stub provides an in-memory Ledger for tests.
package stub

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Ledger implements solprogram.Ledger from in-memory maps. Zero values mean absent
// accounts and empty balances. Safe for concurrent use.
type Ledger struct {
	mu sync.Mutex

	accounts  map[solana.PublicKey]*rpc.Account
	native    map[solana.PublicKey]uint64
	tokens    map[solana.PublicKey]uint64
	errs      map[string]error
	keyErrs   map[solana.PublicKey]error
	calls     map[string]int
	blockhash solana.Hash

	// gate, when set, holds every read until it is closed or the read's ctx ends.
	gate chan struct{}
}

// NewLedger creates an empty stub ledger.
func NewLedger() *Ledger {
	return &Ledger{
		accounts:  make(map[solana.PublicKey]*rpc.Account),
		native:    make(map[solana.PublicKey]uint64),
		tokens:    make(map[solana.PublicKey]uint64),
		errs:      make(map[string]error),
		keyErrs:   make(map[solana.PublicKey]error),
		calls:     make(map[string]int),
		blockhash: solana.HashFromBytes([]byte("stub-blockhash-0000000000000000!")),
	}
}

// SetAccount stores raw account data owned by owner.
func (l *Ledger) SetAccount(key, owner solana.PublicKey, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[key] = &rpc.Account{
		Lamports: 1_000_000,
		Owner:    owner,
		Data:     rpc.DataBytesOrJSONFromBytes(data),
	}
}

// DeleteAccount removes an account.
func (l *Ledger) DeleteAccount(key solana.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.accounts, key)
}

// SetNative sets a wallet's lamport balance.
func (l *Ledger) SetNative(key solana.PublicKey, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.native[key] = lamports
}

// SetTokenBalance creates or updates a token account balance.
func (l *Ledger) SetTokenBalance(key solana.PublicKey, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens[key] = amount
}

// SetError makes every call of method fail with err. A nil err clears it.
func (l *Ledger) SetError(method string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.errs, method)
		return
	}
	l.errs[method] = err
}

// SetKeyError makes every read of key fail with err. A nil err clears it.
func (l *Ledger) SetKeyError(key solana.PublicKey, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.keyErrs, key)
		return
	}
	l.keyErrs[key] = err
}

// SetBlockhash sets the hash returned by GetLatestBlockhash.
func (l *Ledger) SetBlockhash(h solana.Hash) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blockhash = h
}

// Block makes reads wait until Unblock is called.
func (l *Ledger) Block() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gate == nil {
		l.gate = make(chan struct{})
	}
}

// Unblock releases waiting and future reads.
func (l *Ledger) Unblock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gate != nil {
		close(l.gate)
		l.gate = nil
	}
}

// Calls returns how many times method was called.
func (l *Ledger) Calls(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (l *Ledger) TotalCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		n += c
	}
	return n
}

// enter records the call, waits on the gate and returns any configured error.
func (l *Ledger) enter(ctx context.Context, method string, key *solana.PublicKey) error {
	l.mu.Lock()
	l.calls[method]++
	gate := l.gate
	l.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err, ok := l.errs[method]; ok {
		return err
	}
	if key != nil {
		if err, ok := l.keyErrs[*key]; ok {
			return err
		}
	}
	return nil
}

// GetAccountInfo returns the stored account or rpc.ErrNotFound.
func (l *Ledger) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	if err := l.enter(ctx, "getAccountInfo", &account); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	copied := *acc
	return &rpc.GetAccountInfoResult{Value: &copied}, nil
}

// GetBalance returns the stored lamports, zero when unset.
func (l *Ledger) GetBalance(ctx context.Context, account solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	if err := l.enter(ctx, "getBalance", &account); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return &rpc.GetBalanceResult{Value: l.native[account]}, nil
}

// GetTokenAccountBalance returns the stored amount, or the RPC's missing-account error.
func (l *Ledger) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	if err := l.enter(ctx, "getTokenAccountBalance", &account); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	amount, ok := l.tokens[account]
	if !ok {
		return nil, fmt.Errorf("Invalid param: could not find account")
	}
	return &rpc.GetTokenAccountBalanceResult{
		Value: &rpc.UiTokenAmount{Amount: strconv.FormatUint(amount, 10)},
	}, nil
}

// GetLatestBlockhash returns the configured hash.
func (l *Ledger) GetLatestBlockhash(ctx context.Context, _ rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	if err := l.enter(ctx, "getLatestBlockhash", nil); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{Blockhash: l.blockhash, LastValidBlockHeight: 1000},
	}, nil
}
