package solprogram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// LoadProjectState - Get a project's configuration, from cache when fresh
func (c *MigrationClient) LoadProjectState(ctx context.Context, projectID string, opts ...LoadOption) (ProjectView, error) {
	view, err := c.loadProjectState(ctx, projectID, opts...)
	if err != nil {
		return ProjectView{}, c.fail(err)
	}
	return view, nil
}

func (c *MigrationClient) loadProjectState(ctx context.Context, projectID string, opts ...LoadOption) (ProjectView, error) {
	if projectID == "" {
		return ProjectView{}, NewError(CodeInvalidAddress, "project id is required", nil)
	}

	o := applyLoadOptions(opts)
	key := projectKey(c.network, projectID)
	if !o.skipCache {
		if view, ok := c.projects.Get(key); ok {
			c.metrics.RecordCache(cacheProject, true)
			c.logger.Debug("project cache hit", zap.String("project", projectID))
			return view, nil
		}
		c.metrics.RecordCache(cacheProject, false)
	}

	view, err := c.fetchProject(ctx, projectID)
	if err != nil {
		return ProjectView{}, err
	}
	c.projects.Set(key, view, c.projectTTL)
	return view, nil
}

func (c *MigrationClient) fetchProject(ctx context.Context, projectID string) (ProjectView, error) {
	addrs, err := DeriveProjectAddresses(c.programID, projectID)
	if err != nil {
		return ProjectView{}, err
	}

	c.logger.Debug("fetching project", zap.String("project", projectID), zap.Stringer("config", addrs.Config))
	info, err := c.getAccountInfo(ctx, addrs.Config)
	if errors.Is(err, rpc.ErrNotFound) {
		return ProjectView{}, NewError(CodeNotFound, fmt.Sprintf("project %q not found", projectID), err)
	}
	if err != nil {
		if NormalizeError(err).Code == CodeRateLimited {
			return ProjectView{}, err
		}
		return ProjectView{}, NewError(CodeRPCError, "failed to load project config", err)
	}
	if !info.Value.Owner.Equals(c.programID) {
		return ProjectView{}, NewError(CodeNotFound,
			fmt.Sprintf("project %q config is owned by %s", projectID, info.Value.Owner), nil)
	}

	rec, err := decodeProjectConfig(info.Value.Data.GetBinary())
	if err != nil {
		return ProjectView{}, NewError(CodeNotFound, fmt.Sprintf("project %q config is malformed", projectID), err)
	}

	oldDecimals, oldProgram, err := c.mintInfo(ctx, rec.OldMint)
	if err != nil {
		return ProjectView{}, err
	}
	newDecimals, newProgram, err := c.mintInfo(ctx, rec.NewMint)
	if err != nil {
		return ProjectView{}, err
	}

	now := c.now()
	start := time.Unix(rec.StartTS, 0).UTC()
	end := time.Unix(rec.EndTS, 0).UTC()

	return ProjectView{
		ProjectID:           projectID,
		Network:             c.network,
		Admin:               rec.Admin,
		OldMint:             rec.OldMint,
		NewMint:             rec.NewMint,
		ReceiptMint:         rec.ReceiptMint,
		OldTokenProgram:     oldProgram,
		NewTokenProgram:     newProgram,
		ReceiptTokenProgram: TokenProgramID,
		OldDecimals:         oldDecimals,
		NewDecimals:         newDecimals,
		ReceiptDecimals:     oldDecimals,
		ExchangeRateBps:     rec.ExchangeRate,
		PenaltyBps:          rec.PenaltyBps,
		StartTime:           start,
		EndTime:             end,
		ClaimsEnabled:       rec.ClaimsEnabled,
		Paused:              rec.Paused,
		TotalMigrated:       rec.TotalMigrated,
		Phase:               ComputePhase(now, start, end, rec.ClaimsEnabled),
		Addresses:           addrs,
		Protocol:            rec.Protocol,
		FetchedAt:           now,
	}, nil
}

// mintInfo reads a mint's decimals and owning token program. A missing or unparsable
// mint yields DefaultTokenDecimals; any other read failure is returned.
func (c *MigrationClient) mintInfo(ctx context.Context, mint solana.PublicKey) (uint8, solana.PublicKey, error) {
	info, err := c.getAccountInfo(ctx, mint)
	if errors.Is(err, rpc.ErrNotFound) {
		c.logger.Warn("mint not found, assuming default decimals", zap.Stringer("mint", mint))
		return DefaultTokenDecimals, TokenProgramID, nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, solana.PublicKey{}, ctxErr
		}
		if NormalizeError(err).Code == CodeRateLimited {
			return 0, solana.PublicKey{}, err
		}
		return 0, solana.PublicKey{}, NewError(CodeRPCError, fmt.Sprintf("failed to read mint %s", mint), err)
	}

	program := TokenProgramID
	if info.Value.Owner.Equals(Token2022ProgramID) {
		program = Token2022ProgramID
	}

	decimals, err := decodeMintDecimals(info.Value.Data.GetBinary())
	if err != nil {
		c.logger.Warn("mint unparsable, assuming default decimals",
			zap.Stringer("mint", mint), zap.Error(err))
		return DefaultTokenDecimals, program, nil
	}
	return decimals, program, nil
}

// GetUserMigrationRecord - Get a user's migration record. A user who never migrated
// has no record: the result is nil with a nil error.
func (c *MigrationClient) GetUserMigrationRecord(ctx context.Context, projectID string, user solana.PublicKey, opts ...LoadOption) (*UserMigrationRecord, error) {
	rec, err := c.getUserMigrationRecord(ctx, projectID, user, opts...)
	if err != nil {
		return nil, c.fail(err)
	}
	return rec, nil
}

func (c *MigrationClient) getUserMigrationRecord(ctx context.Context, projectID string, user solana.PublicKey, opts ...LoadOption) (*UserMigrationRecord, error) {
	if user.IsZero() {
		return nil, NewError(CodeInvalidAddress, "user address is required", nil)
	}

	o := applyLoadOptions(opts)
	key := userRecordKey(c.network, projectID, user)
	if !o.skipCache {
		if entry, ok := c.records.Get(key); ok {
			c.metrics.RecordCache(cacheUserRecord, true)
			if !entry.Found {
				return nil, nil
			}
			rec := entry.Record
			return &rec, nil
		}
		c.metrics.RecordCache(cacheUserRecord, false)
	}

	pda, _, err := DeriveUserMigrationPDA(c.programID, projectID, user)
	if err != nil {
		return nil, err
	}

	info, err := c.getAccountInfo(ctx, pda)
	if errors.Is(err, rpc.ErrNotFound) {
		c.records.Set(key, userRecordEntry{}, c.userRecordTTL)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	raw, err := decodeUserMigration(info.Value.Data.GetBinary())
	if err != nil {
		return nil, NewError(CodeAccountNotFound, "user migration record is malformed", err)
	}
	rec := raw.view()
	c.records.Set(key, userRecordEntry{Record: *rec, Found: true}, c.userRecordTTL)
	return rec, nil
}
