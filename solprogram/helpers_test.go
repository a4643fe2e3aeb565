package solprogram

import (
	"bytes"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"tokenmigration/solprogram/stub"
)

var testProgramID = solana.MustPublicKeyFromBase58(MigrationProgramIDDevnet)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// projectFixture describes an on-chain ProjectConfig record.
type projectFixture struct {
	ProjectID     string
	Admin         solana.PublicKey
	OldMint       solana.PublicKey
	NewMint       solana.PublicKey
	ReceiptMint   solana.PublicKey
	ExchangeRate  uint64
	PenaltyBps    uint16
	Start         time.Time
	End           time.Time
	ClaimsEnabled bool
	Paused        bool
	TotalMigrated uint64
	Protocol      *ProtocolState
	OldDecimals   uint8
	NewDecimals   uint8
	NewIs2022     bool
}

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func encodeProjectConfig(t *testing.T, f projectFixture) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	le := binary.LittleEndian

	require.NoError(t, enc.WriteBytes(ProjectConfigDisc[:], false))
	require.NoError(t, enc.WriteBytes(f.Admin[:], false))
	require.NoError(t, enc.WriteUint32(uint32(len(f.ProjectID)), le))
	require.NoError(t, enc.WriteBytes([]byte(f.ProjectID), false))
	require.NoError(t, enc.WriteBytes(f.OldMint[:], false))
	require.NoError(t, enc.WriteBytes(f.NewMint[:], false))
	require.NoError(t, enc.WriteBytes(f.ReceiptMint[:], false))
	require.NoError(t, enc.WriteUint64(f.ExchangeRate, le))
	require.NoError(t, enc.WriteUint16(f.PenaltyBps, le))
	require.NoError(t, enc.WriteInt64(f.Start.Unix(), le))
	require.NoError(t, enc.WriteInt64(f.End.Unix(), le))
	require.NoError(t, enc.WriteBool(f.ClaimsEnabled))
	require.NoError(t, enc.WriteBool(f.Paused))
	require.NoError(t, enc.WriteUint64(f.TotalMigrated, le))
	require.NoError(t, enc.WriteUint8(254))

	if f.Protocol != nil {
		if f.Protocol.HasProofRoot {
			require.NoError(t, enc.WriteUint8(1))
			require.NoError(t, enc.WriteBytes(f.Protocol.ProofRoot[:], false))
		} else {
			require.NoError(t, enc.WriteUint8(0))
		}
		require.NoError(t, enc.WriteBool(f.Protocol.MigrationFailed))
	}
	return buf.Bytes()
}

func encodeUserMigration(t *testing.T, user solana.PublicKey, amount uint64, refunded bool, at time.Time) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	le := binary.LittleEndian

	require.NoError(t, enc.WriteBytes(UserMigrationDisc[:], false))
	require.NoError(t, enc.WriteBytes(user[:], false))
	require.NoError(t, enc.WriteUint64(amount, le))
	require.NoError(t, enc.WriteBool(refunded))
	require.NoError(t, enc.WriteInt64(at.Unix(), le))
	require.NoError(t, enc.WriteUint8(255))
	return buf.Bytes()
}

// mintData builds an 82-byte SPL mint with both authorities set.
func mintData(decimals uint8) []byte {
	data := make([]byte, 82)
	authority := newKey()
	binary.LittleEndian.PutUint32(data[0:4], 1)
	copy(data[4:36], authority[:])
	binary.LittleEndian.PutUint64(data[36:44], 1_000_000_000)
	data[44] = decimals
	data[45] = 1
	binary.LittleEndian.PutUint32(data[46:50], 1)
	copy(data[50:82], authority[:])
	return data
}

type fixture struct {
	t       *testing.T
	ledger  *stub.Ledger
	client  *MigrationClient
	clock   *testClock
	project projectFixture
	addrs   ProjectAddresses
	user    solana.PublicKey
}

var fixtureBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newFixture publishes an active project on a stub ledger. mutate adjusts the record
// before it is written.
func newFixture(t *testing.T, mutate func(*projectFixture), opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		t:      t,
		ledger: stub.NewLedger(),
		clock:  &testClock{now: fixtureBase},
		user:   newKey(),
		project: projectFixture{
			ProjectID:     "alpha",
			Admin:         newKey(),
			OldMint:       newKey(),
			NewMint:       newKey(),
			ExchangeRate:  20_000,
			PenaltyBps:    500,
			Start:         fixtureBase.Add(-24 * time.Hour),
			End:           fixtureBase.Add(24 * time.Hour),
			ClaimsEnabled: true,
			TotalMigrated: 42,
			OldDecimals:   6,
			NewDecimals:   9,
		},
	}
	if mutate != nil {
		mutate(&f.project)
	}

	addrs, err := DeriveProjectAddresses(testProgramID, f.project.ProjectID)
	require.NoError(t, err)
	f.addrs = addrs
	if f.project.ReceiptMint.IsZero() {
		f.project.ReceiptMint = addrs.ReceiptMint
	}
	f.publish()

	newProgram := TokenProgramID
	if f.project.NewIs2022 {
		newProgram = Token2022ProgramID
	}
	f.ledger.SetAccount(f.project.OldMint, TokenProgramID, mintData(f.project.OldDecimals))
	f.ledger.SetAccount(f.project.NewMint, newProgram, mintData(f.project.NewDecimals))

	base := []Option{WithClock(f.clock.Now), WithMinInterval(0)}
	client, err := NewMigrationClient(f.ledger, testProgramID, NetworkDevnet, append(base, opts...)...)
	require.NoError(t, err)
	f.client = client
	return f
}

// publish writes the current project record to the ledger.
func (f *fixture) publish() {
	f.ledger.SetAccount(f.addrs.Config, testProgramID, encodeProjectConfig(f.t, f.project))
}

func (f *fixture) view() ProjectView {
	f.t.Helper()
	v, err := f.client.LoadProjectState(f.t.Context(), f.project.ProjectID)
	require.NoError(f.t, err)
	return v
}

// userATAs derives the user's token accounts without touching the ledger.
func (f *fixture) userATAs() userTokenAccounts {
	f.t.Helper()
	newProgram := TokenProgramID
	if f.project.NewIs2022 {
		newProgram = Token2022ProgramID
	}
	v := ProjectView{
		OldMint:             f.project.OldMint,
		NewMint:             f.project.NewMint,
		ReceiptMint:         f.project.ReceiptMint,
		OldTokenProgram:     TokenProgramID,
		NewTokenProgram:     newProgram,
		ReceiptTokenProgram: TokenProgramID,
	}
	atas, err := deriveUserTokenAccounts(&v, f.user)
	require.NoError(f.t, err)
	return atas
}

func (f *fixture) setBalances(native, old, newTok, receipt uint64) {
	atas := f.userATAs()
	f.ledger.SetNative(f.user, native)
	f.ledger.SetTokenBalance(atas.Old, old)
	f.ledger.SetTokenBalance(atas.New, newTok)
	f.ledger.SetTokenBalance(atas.Receipt, receipt)
}
