package solprogram

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"tokenmigration/exchange"
)

// BuildTransaction - Assemble an unsigned transaction of the given kind. Local input is
// checked before any ledger read; the result is never signed or submitted.
func (c *MigrationClient) BuildTransaction(ctx context.Context, kind TxKind, req BuildRequest) (*BuiltTransaction, error) {
	built, err := c.buildTransaction(ctx, kind, req)
	if err != nil {
		return nil, c.fail(err)
	}
	c.metrics.RecordTransaction(string(kind))
	c.logger.Debug("built transaction",
		zap.String("kind", string(kind)),
		zap.String("project", req.ProjectID),
		zap.Stringer("user", req.User),
		zap.Uint64("expected_amount", built.ExpectedAmount))
	return built, nil
}

// BuildMigrate - Build a migrate transaction for amount old tokens
func (c *MigrationClient) BuildMigrate(ctx context.Context, projectID string, user solana.PublicKey, amount uint64) (*BuiltTransaction, error) {
	return c.BuildTransaction(ctx, TxMigrate, BuildRequest{ProjectID: projectID, User: user, Amount: amount})
}

// BuildClaimReceipt - Build a receipt-burn claim for amount receipt tokens
func (c *MigrationClient) BuildClaimReceipt(ctx context.Context, projectID string, user solana.PublicKey, amount uint64) (*BuiltTransaction, error) {
	return c.BuildTransaction(ctx, TxClaimReceipt, BuildRequest{ProjectID: projectID, User: user, Amount: amount})
}

// BuildClaimProof - Build a proof-based late claim for amount old tokens
func (c *MigrationClient) BuildClaimProof(ctx context.Context, projectID string, user solana.PublicKey, amount uint64, proof [][32]byte) (*BuiltTransaction, error) {
	return c.BuildTransaction(ctx, TxClaimProof, BuildRequest{ProjectID: projectID, User: user, Amount: amount, Proof: proof})
}

// BuildClaimRefund - Build a refund of everything the user migrated
func (c *MigrationClient) BuildClaimRefund(ctx context.Context, projectID string, user solana.PublicKey) (*BuiltTransaction, error) {
	return c.BuildTransaction(ctx, TxClaimRefund, BuildRequest{ProjectID: projectID, User: user})
}

func (c *MigrationClient) buildTransaction(ctx context.Context, kind TxKind, req BuildRequest) (*BuiltTransaction, error) {
	switch kind {
	case TxMigrate, TxClaimReceipt, TxClaimProof, TxClaimRefund:
	default:
		return nil, NewError(CodeUnknown, fmt.Sprintf("unsupported transaction kind %q", kind), nil)
	}

	// Local validation
	if kind != TxClaimRefund && req.Amount == 0 {
		return nil, NewError(CodeInvalidAmount, "amount must be greater than zero", nil)
	}
	if req.User.IsZero() {
		return nil, NewError(CodeInvalidAddress, "user address is required", nil)
	}
	if len(req.Proof) > MaxProofLength {
		return nil, NewError(CodeInvalidAmount, fmt.Sprintf("proof has %d nodes (max %d)", len(req.Proof), MaxProofLength), nil)
	}

	// Project state
	var project ProjectView
	if req.Project != nil {
		project = *req.Project
	} else {
		var err error
		if project, err = c.loadProjectState(ctx, req.ProjectID); err != nil {
			return nil, err
		}
	}
	if project.Paused {
		return nil, NewError(CodePaused, fmt.Sprintf("project %q is paused", project.ProjectID), nil)
	}
	project.Phase = ComputePhase(c.now(), project.StartTime, project.EndTime, project.ClaimsEnabled)

	built := &BuiltTransaction{Kind: kind}
	var (
		ix       solana.Instruction
		accounts []NamedAccount
		err      error
	)
	switch kind {
	case TxMigrate:
		if err := requireMigrationPhase(project); err != nil {
			return nil, err
		}
		if built.ExpectedNewTokens, err = exchange.ConvertByExchangeRate(req.Amount, project.ExchangeRateBps, project.OldDecimals, project.NewDecimals); err != nil {
			return nil, err
		}
		built.ExpectedAmount = req.Amount
		ix, accounts, err = BuildMigrateInstruction(c.programID, &project, req.User, req.Amount)

	case TxClaimReceipt:
		if err := requireClaimPhase(project); err != nil {
			return nil, err
		}
		if built.ExpectedAmount, err = exchange.ConvertByExchangeRate(req.Amount, project.ExchangeRateBps, project.ReceiptDecimals, project.NewDecimals); err != nil {
			return nil, err
		}
		ix, accounts, err = BuildClaimReceiptInstruction(c.programID, &project, req.User, req.Amount)

	case TxClaimProof:
		if err := requireClaimPhase(project); err != nil {
			return nil, err
		}
		if !project.Protocol.Supplied || !project.Protocol.HasProofRoot {
			return nil, NewError(CodeInvalidPhase, "project has no proof root for late claims", nil)
		}
		var gross uint64
		if gross, err = exchange.ConvertByExchangeRate(req.Amount, project.ExchangeRateBps, project.OldDecimals, project.NewDecimals); err != nil {
			return nil, err
		}
		var split exchange.Penalty
		if split, err = exchange.ApplyPenalty(gross, uint64(project.PenaltyBps)); err != nil {
			return nil, err
		}
		built.ExpectedAmount = split.Remainder
		built.Penalty = split.Penalty
		ix, accounts, err = BuildClaimProofInstruction(c.programID, &project, req.User, req.Amount, req.Proof)

	case TxClaimRefund:
		if err := requireClaimPhase(project); err != nil {
			return nil, err
		}
		if !project.Protocol.Supplied || !project.Protocol.MigrationFailed {
			return nil, NewError(CodeInvalidPhase, "refunds are only available after a failed migration", nil)
		}
		var rec *UserMigrationRecord
		if rec, err = c.getUserMigrationRecord(ctx, project.ProjectID, req.User, SkipCache()); err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, NewError(CodeAccountNotFound, "user has no migration record", nil)
		}
		if rec.RefundClaimed {
			return nil, NewError(CodeInvalidPhase, "refund already claimed", nil)
		}
		if rec.AmountMigrated == 0 {
			return nil, NewError(CodeInvalidAmount, "nothing to refund", nil)
		}
		built.ExpectedAmount = rec.AmountMigrated
		ix, accounts, err = BuildClaimRefundInstruction(c.programID, &project, req.User)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build instruction: %w", err)
	}

	// Get latest blockhash
	blockhash, err := c.latestBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	// Build transaction
	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		blockhash,
		solana.TransactionPayer(req.User),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	// Serialize to base64
	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize: %w", err)
	}

	built.Transaction = tx
	built.Encoded = base64.StdEncoding.EncodeToString(txBytes)
	built.RecentBlockhash = blockhash
	built.Accounts = accounts
	return built, nil
}

func requireMigrationPhase(project ProjectView) error {
	switch project.Phase {
	case PhaseActiveMigration:
		return nil
	case PhaseSetup:
		return NewError(CodeInvalidPhase, "migration window has not opened", nil)
	default:
		return NewError(CodeWindowClosed, "migration window has closed", nil)
	}
}

func requireClaimPhase(project ProjectView) error {
	if project.Phase == PhaseGracePeriod || project.Phase == PhaseFinalized {
		return nil
	}
	return NewError(CodeInvalidPhase, fmt.Sprintf("claims are not open during %s", project.Phase), nil)
}
