package solprogram

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"tokenmigration/cache"
	"tokenmigration/observability"
)

// Ledger is the subset of the Solana RPC client the migration client reads through.
// *rpc.Client satisfies it.
type Ledger interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
}

// Cache names used in keys, logs and metrics
const (
	cacheProject    = "project"
	cacheBalances   = "balances"
	cacheUserRecord = "user-record"
)

// MigrationClient - Reads project and user state from the migration program and builds
// unsigned transactions against it. Safe for concurrent use.
type MigrationClient struct {
	ledger    Ledger
	programID solana.PublicKey
	network   string

	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
	commitment rpc.CommitmentType

	throttle *cache.Throttle
	projects *cache.TTL[ProjectView]
	balances *cache.TTL[BalanceSnapshot]
	records  *cache.TTL[userRecordEntry]

	projectTTL    time.Duration
	balanceTTL    time.Duration
	userRecordTTL time.Duration
	pollInterval  time.Duration
}

// userRecordEntry caches absence as well as presence.
type userRecordEntry struct {
	Record UserMigrationRecord
	Found  bool
}

// Option configures a MigrationClient
type Option func(*clientOptions)

type clientOptions struct {
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time
	commitment    rpc.CommitmentType
	minInterval   time.Duration
	capacity      int
	projectTTL    time.Duration
	balanceTTL    time.Duration
	userRecordTTL time.Duration
	pollInterval  time.Duration
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *clientOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records cache, ledger and builder activity on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *clientOptions) { o.metrics = m }
}

// WithClock replaces time.Now for phase computation and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithCommitment sets the commitment used for balance and blockhash reads.
func WithCommitment(c rpc.CommitmentType) Option {
	return func(o *clientOptions) { o.commitment = c }
}

// WithMinInterval sets the floor between consecutive ledger calls.
func WithMinInterval(d time.Duration) Option {
	return func(o *clientOptions) { o.minInterval = d }
}

// WithCacheCapacity bounds each cache's entry count.
func WithCacheCapacity(n int) Option {
	return func(o *clientOptions) { o.capacity = n }
}

// WithTTLs sets the project, balance and user record lifetimes. Zero keeps the default.
func WithTTLs(project, balances, userRecord time.Duration) Option {
	return func(o *clientOptions) {
		if project > 0 {
			o.projectTTL = project
		}
		if balances > 0 {
			o.balanceTTL = balances
		}
		if userRecord > 0 {
			o.userRecordTTL = userRecord
		}
	}
}

// WithPollInterval sets the default watcher interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// NewMigrationClient - Create a client for the program deployed at programID on network
func NewMigrationClient(ledger Ledger, programID solana.PublicKey, network string, opts ...Option) (*MigrationClient, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if programID.IsZero() {
		return nil, fmt.Errorf("invalid program ID: zero key")
	}

	o := clientOptions{
		logger:        zap.NewNop(),
		now:           time.Now,
		commitment:    rpc.CommitmentConfirmed,
		minInterval:   DefaultMinInterval,
		capacity:      cache.DefaultCapacity,
		projectTTL:    DefaultProjectTTL,
		balanceTTL:    DefaultBalanceTTL,
		userRecordTTL: DefaultUserRecordTTL,
		pollInterval:  DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}

	cacheOpts := []cache.Option{cache.WithCapacity(o.capacity), cache.WithClock(o.now)}
	return &MigrationClient{
		ledger:        ledger,
		programID:     programID,
		network:       network,
		logger:        o.logger.With(zap.String("network", network), zap.Stringer("program", programID)),
		metrics:       o.metrics,
		now:           o.now,
		commitment:    o.commitment,
		throttle:      cache.NewThrottle(o.minInterval),
		projects:      cache.NewTTL[ProjectView](cacheOpts...),
		balances:      cache.NewTTL[BalanceSnapshot](cacheOpts...),
		records:       cache.NewTTL[userRecordEntry](cacheOpts...),
		projectTTL:    o.projectTTL,
		balanceTTL:    o.balanceTTL,
		userRecordTTL: o.userRecordTTL,
		pollInterval:  o.pollInterval,
	}, nil
}

// NewMigrationClientFromURL - Create a client backed by a JSON-RPC endpoint
func NewMigrationClientFromURL(rpcURL string, programID string, network string, opts ...Option) (*MigrationClient, error) {
	programPubkey, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("invalid program ID: %w", err)
	}
	return NewMigrationClient(rpc.New(rpcURL), programPubkey, network, opts...)
}

// ProgramID - Get program ID
func (c *MigrationClient) ProgramID() solana.PublicKey {
	return c.programID
}

// Network - Get network name
func (c *MigrationClient) Network() string {
	return c.network
}

// Throttle - Get the shared request throttle
func (c *MigrationClient) Throttle() *cache.Throttle {
	return c.throttle
}

// InvalidateProject drops the cached project view. Cached balances and user records
// expire on their own.
func (c *MigrationClient) InvalidateProject(projectID string) {
	c.projects.Delete(projectKey(c.network, projectID))
}

// ClearCache empties every cache and resets the throttle.
func (c *MigrationClient) ClearCache() {
	c.projects.Clear()
	c.balances.Clear()
	c.records.Clear()
	c.throttle.Reset()
}

// LoadOption adjusts a single load
type LoadOption func(*loadOptions)

type loadOptions struct {
	skipCache bool
}

// SkipCache forces a ledger read. The fresh result still replaces the cached one.
func SkipCache() LoadOption {
	return func(o *loadOptions) { o.skipCache = true }
}

func applyLoadOptions(opts []LoadOption) loadOptions {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func projectKey(network, projectID string) string {
	return cacheProject + ":" + network + ":" + projectID
}

func balancesKey(network, projectID string, user solana.PublicKey) string {
	return cacheBalances + ":" + network + ":" + projectID + ":" + user.String()
}

func userRecordKey(network, projectID string, user solana.PublicKey) string {
	return cacheUserRecord + ":" + network + ":" + projectID + ":" + user.String()
}

// call waits on the throttle, then runs fn and records it.
func (c *MigrationClient) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	waitStart := time.Now()
	if err := c.throttle.Wait(ctx); err != nil {
		return err
	}
	c.metrics.RecordThrottleWait(time.Since(waitStart))

	started := time.Now()
	err := fn(ctx)
	c.metrics.RecordLedgerCall(method, started, err)
	if err != nil {
		c.logger.Debug("ledger call failed", zap.String("method", method), zap.Error(err))
	}
	return err
}

func (c *MigrationClient) getAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	var out *rpc.GetAccountInfoResult
	err := c.call(ctx, "getAccountInfo", func(ctx context.Context) error {
		var err error
		out, err = c.ledger.GetAccountInfo(ctx, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil || out.Value == nil {
		return nil, rpc.ErrNotFound
	}
	return out, nil
}

func (c *MigrationClient) latestBlockhash(ctx context.Context) (solana.Hash, error) {
	var out *rpc.GetLatestBlockhashResult
	err := c.call(ctx, "getLatestBlockhash", func(ctx context.Context) error {
		var err error
		out, err = c.ledger.GetLatestBlockhash(ctx, c.commitment)
		return err
	})
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get blockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, fmt.Errorf("failed to get blockhash: empty response")
	}
	return out.Value.Blockhash, nil
}

// fail normalizes err for a caller and records it.
func (c *MigrationClient) fail(err error) *Error {
	e := NormalizeError(err)
	c.metrics.RecordError(string(e.Code))
	return e
}

// DecodeTransaction - Parse a base64 transaction produced by the builder
func DecodeTransaction(encoded string) (*solana.Transaction, error) {
	txBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(txBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}
	return tx, nil
}
