package solprogram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePhase(t *testing.T) {
	start := fixtureBase
	end := fixtureBase.Add(time.Hour)

	assert.Equal(t, PhaseSetup, ComputePhase(start.Add(-time.Nanosecond), start, end, true))
	assert.Equal(t, PhaseActiveMigration, ComputePhase(start, start, end, true))
	assert.Equal(t, PhaseActiveMigration, ComputePhase(end.Add(-time.Nanosecond), start, end, false))
	assert.Equal(t, PhaseGracePeriod, ComputePhase(end, start, end, true))
	assert.Equal(t, PhaseFinalized, ComputePhase(end, start, end, false))
	assert.Equal(t, PhaseFinalized, ComputePhase(end.Add(365*24*time.Hour), start, end, false))
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "Setup", PhaseSetup.String())
	assert.Equal(t, "GracePeriod", PhaseGracePeriod.String())
	assert.Equal(t, "Unknown", Phase(42).String())
}

func TestComputeEligibility(t *testing.T) {
	supplied := func(root, failed bool) ProtocolState {
		return ProtocolState{Supplied: true, HasProofRoot: root, MigrationFailed: failed}
	}

	tests := []struct {
		name     string
		phase    Phase
		paused   bool
		protocol ProtocolState
		balances BalanceSnapshot
		want     ClaimEligibility
		best     ClaimType
	}{
		{
			name:     "active migration blocks everything",
			phase:    PhaseActiveMigration,
			protocol: supplied(true, true),
			balances: BalanceSnapshot{OldToken: 1, Receipt: 1},
			best:     ClaimTypeNone,
		},
		{
			name:     "setup blocks everything",
			phase:    PhaseSetup,
			balances: BalanceSnapshot{Receipt: 1},
			best:     ClaimTypeNone,
		},
		{
			name:     "paused blocks everything",
			phase:    PhaseGracePeriod,
			paused:   true,
			protocol: supplied(true, true),
			balances: BalanceSnapshot{OldToken: 1, Receipt: 1},
			best:     ClaimTypeNone,
		},
		{
			name:     "receipt burn without protocol state",
			phase:    PhaseGracePeriod,
			balances: BalanceSnapshot{OldToken: 5, Receipt: 1},
			want:     ClaimEligibility{ReceiptBurn: true},
			best:     ClaimTypeReceiptBurn,
		},
		{
			name:     "proof claim needs root",
			phase:    PhaseFinalized,
			protocol: supplied(false, false),
			balances: BalanceSnapshot{OldToken: 5},
			best:     ClaimTypeNone,
		},
		{
			name:     "proof claim",
			phase:    PhaseFinalized,
			protocol: supplied(true, false),
			balances: BalanceSnapshot{OldToken: 5},
			want:     ClaimEligibility{ProofClaim: true},
			best:     ClaimTypeProof,
		},
		{
			name:     "refund after failed migration",
			phase:    PhaseFinalized,
			protocol: supplied(false, true),
			balances: BalanceSnapshot{Receipt: 3},
			want:     ClaimEligibility{ReceiptBurn: true, Refund: true},
			best:     ClaimTypeReceiptBurn,
		},
		{
			name:     "all three prefers receipt burn",
			phase:    PhaseGracePeriod,
			protocol: supplied(true, true),
			balances: BalanceSnapshot{OldToken: 1, Receipt: 1},
			want:     ClaimEligibility{ReceiptBurn: true, ProofClaim: true, Refund: true},
			best:     ClaimTypeReceiptBurn,
		},
		{
			name:     "nothing held",
			phase:    PhaseGracePeriod,
			protocol: supplied(true, true),
			balances: BalanceSnapshot{Native: 100},
			best:     ClaimTypeNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project := ProjectView{Phase: tt.phase, Paused: tt.paused, Protocol: tt.protocol}
			got := ComputeEligibility(project, tt.balances)

			want := tt.want
			want.Balances = tt.balances
			assert.Equal(t, want, got)
			assert.Equal(t, tt.best, BestClaimType(got))
		})
	}
}

func TestBestClaimType_Precedence(t *testing.T) {
	assert.Equal(t, ClaimTypeProof, BestClaimType(ClaimEligibility{ProofClaim: true, Refund: true}))
	assert.Equal(t, ClaimTypeRefund, BestClaimType(ClaimEligibility{Refund: true}))

	kind, ok := ClaimTypeProof.TxKind()
	assert.True(t, ok)
	assert.Equal(t, TxClaimProof, kind)
	_, ok = ClaimTypeNone.TxKind()
	assert.False(t, ok)
}

func TestGetEligibility(t *testing.T) {
	f := newFixture(t, nil)
	f.setBalances(1, 0, 0, 50)

	elig, project, err := f.client.GetEligibility(t.Context(), "alpha", f.user)
	require.NoError(t, err)
	assert.Equal(t, PhaseActiveMigration, project.Phase)
	assert.False(t, elig.ReceiptBurn)

	// Past the window end claims open.
	f.clock.Set(f.project.End.Add(time.Second))
	elig, project, err = f.client.GetEligibility(t.Context(), "alpha", f.user)
	require.NoError(t, err)
	assert.Equal(t, PhaseGracePeriod, project.Phase)
	assert.True(t, elig.ReceiptBurn)
	assert.Equal(t, ClaimTypeReceiptBurn, BestClaimType(elig))
}
