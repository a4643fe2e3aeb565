package solprogram

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// ComputeEligibility - Decide which claims a user may submit. Every claim requires the
// grace or finalized phase and an unpaused project. Proof and refund claims also need
// the protocol state; without it they are never offered.
func ComputeEligibility(project ProjectView, balances BalanceSnapshot) ClaimEligibility {
	out := ClaimEligibility{Balances: balances}

	claimPhase := project.Phase == PhaseGracePeriod || project.Phase == PhaseFinalized
	if !claimPhase || project.Paused {
		return out
	}

	protocol := project.Protocol
	out.ReceiptBurn = balances.Receipt > 0
	out.ProofClaim = protocol.Supplied && protocol.HasProofRoot && balances.OldToken > 0
	out.Refund = protocol.Supplied && protocol.MigrationFailed && balances.Receipt > 0
	return out
}

// BestClaimType - Pick the preferred claim: receipt burn, then proof, then refund
func BestClaimType(e ClaimEligibility) ClaimType {
	switch {
	case e.ReceiptBurn:
		return ClaimTypeReceiptBurn
	case e.ProofClaim:
		return ClaimTypeProof
	case e.Refund:
		return ClaimTypeRefund
	default:
		return ClaimTypeNone
	}
}

// TxKind - Transaction kind that submits this claim
func (t ClaimType) TxKind() (TxKind, bool) {
	switch t {
	case ClaimTypeReceiptBurn:
		return TxClaimReceipt, true
	case ClaimTypeProof:
		return TxClaimProof, true
	case ClaimTypeRefund:
		return TxClaimRefund, true
	default:
		return "", false
	}
}

// GetEligibility - Load the project and the user's balances, then compute eligibility
func (c *MigrationClient) GetEligibility(ctx context.Context, projectID string, user solana.PublicKey, opts ...LoadOption) (ClaimEligibility, ProjectView, error) {
	project, err := c.loadProjectState(ctx, projectID, opts...)
	if err != nil {
		return ClaimEligibility{}, ProjectView{}, c.fail(err)
	}
	// A cached view may have crossed a window boundary since it was fetched.
	project.Phase = ComputePhase(c.now(), project.StartTime, project.EndTime, project.ClaimsEnabled)

	balances, err := c.getBalances(ctx, projectID, user, &project, opts...)
	if err != nil {
		return ClaimEligibility{}, ProjectView{}, c.fail(err)
	}
	return ComputeEligibility(project, balances), project, nil
}
