package solprogram

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// DeriveAddress - Derive a program address from caller seeds. The bump is appended by
// the search, so at most MaxSeeds-1 seeds are accepted. Oversized input is rejected,
// never truncated.
func DeriveAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	if len(seeds) > MaxSeeds-1 {
		return solana.PublicKey{}, 0, NewError(CodeInvalidAddress,
			fmt.Sprintf("too many seeds: %d (max %d)", len(seeds), MaxSeeds-1), nil)
	}
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return solana.PublicKey{}, 0, NewError(CodeInvalidAddress,
				fmt.Sprintf("seed %d is %d bytes (max %d)", i, len(seed), MaxSeedLength), nil)
		}
	}

	pda, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, 0, NewError(CodeInvalidAddress, "failed to derive PDA", err)
	}
	return pda, bump, nil
}

func deriveProjectPDA(tag []byte, programID solana.PublicKey, projectID string) (solana.PublicKey, uint8, error) {
	pda, bump, err := DeriveAddress([][]byte{tag, []byte(projectID)}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive %s PDA: %w", tag, err)
	}
	return pda, bump, nil
}

// DeriveConfigPDA - Derive the project configuration record address
func DeriveConfigPDA(programID solana.PublicKey, projectID string) (solana.PublicKey, uint8, error) {
	return deriveProjectPDA(SeedConfig, programID, projectID)
}

// DeriveOldVaultPDA - Derive the vault holding migrated old tokens
func DeriveOldVaultPDA(programID solana.PublicKey, projectID string) (solana.PublicKey, uint8, error) {
	return deriveProjectPDA(SeedOldVault, programID, projectID)
}

// DeriveNewVaultPDA - Derive the vault paying out new tokens
func DeriveNewVaultPDA(programID solana.PublicKey, projectID string) (solana.PublicKey, uint8, error) {
	return deriveProjectPDA(SeedNewVault, programID, projectID)
}

// DeriveReceiptMintPDA - Derive the receipt token mint
func DeriveReceiptMintPDA(programID solana.PublicKey, projectID string) (solana.PublicKey, uint8, error) {
	return deriveProjectPDA(SeedReceiptMint, programID, projectID)
}

// DeriveLiquidityVaultPDA - Derive the liquidity vault
func DeriveLiquidityVaultPDA(programID solana.PublicKey, projectID string) (solana.PublicKey, uint8, error) {
	return deriveProjectPDA(SeedLiquidityVault, programID, projectID)
}

// DeriveQuoteVaultPDA - Derive the quote vault
func DeriveQuoteVaultPDA(programID solana.PublicKey, projectID string) (solana.PublicKey, uint8, error) {
	return deriveProjectPDA(SeedQuoteVault, programID, projectID)
}

// DeriveFeeVaultPDA - Derive the vault collecting late-claim penalties
func DeriveFeeVaultPDA(programID solana.PublicKey, projectID string) (solana.PublicKey, uint8, error) {
	return deriveProjectPDA(SeedFeeVault, programID, projectID)
}

// DeriveUserMigrationPDA - Derive a user's migration record
func DeriveUserMigrationPDA(programID solana.PublicKey, projectID string, user solana.PublicKey) (solana.PublicKey, uint8, error) {
	pda, bump, err := DeriveAddress([][]byte{SeedUserMigration, []byte(projectID), user.Bytes()}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive user migration PDA: %w", err)
	}
	return pda, bump, nil
}

// DeriveProjectAddresses - Derive every project-scoped PDA at once
func DeriveProjectAddresses(programID solana.PublicKey, projectID string) (ProjectAddresses, error) {
	var out ProjectAddresses
	targets := []struct {
		tag []byte
		dst *solana.PublicKey
	}{
		{SeedConfig, &out.Config},
		{SeedOldVault, &out.OldVault},
		{SeedNewVault, &out.NewVault},
		{SeedReceiptMint, &out.ReceiptMint},
		{SeedLiquidityVault, &out.LiquidityVault},
		{SeedQuoteVault, &out.QuoteVault},
		{SeedFeeVault, &out.FeeVault},
	}
	for _, t := range targets {
		pda, _, err := deriveProjectPDA(t.tag, programID, projectID)
		if err != nil {
			return ProjectAddresses{}, err
		}
		*t.dst = pda
	}
	return out, nil
}

// AssociatedTokenAddress - Derive the associated token account of wallet for mint.
// tokenProgram selects between SPL Token and Token-2022 accounts.
func AssociatedTokenAddress(wallet, mint, tokenProgram solana.PublicKey) (solana.PublicKey, error) {
	if tokenProgram.IsZero() {
		tokenProgram = TokenProgramID
	}
	ata, _, err := solana.FindProgramAddress(
		[][]byte{
			wallet.Bytes(),
			tokenProgram.Bytes(),
			mint.Bytes(),
		},
		AssociatedTokenProgID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive associated token address: %w", err)
	}
	return ata, nil
}
