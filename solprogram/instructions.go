package solprogram

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// getAnchorDiscriminator - Generate Anchor instruction discriminator
// Anchor uses: sha256("global:<method_name>")[:8]
func getAnchorDiscriminator(methodName string) []byte {
	hash := sha256.Sum256([]byte("global:" + methodName))
	return hash[:8]
}

// Anchor instruction discriminators
var (
	DiscriminatorMigrate          = getAnchorDiscriminator("migrate")
	DiscriminatorClaimWithReceipt = getAnchorDiscriminator("claim_with_receipt")
	DiscriminatorClaimWithProof   = getAnchorDiscriminator("claim_with_proof")
	DiscriminatorClaimRefund      = getAnchorDiscriminator("claim_refund")
)

// MaxProofLength caps the merkle path a claim may carry.
const MaxProofLength = 32

// instructionAccounts collects accounts in program order with their roles.
type instructionAccounts []NamedAccount

func (a *instructionAccounts) add(name string, key solana.PublicKey, writable, signer bool) {
	*a = append(*a, NamedAccount{Name: name, Address: key, Writable: writable, Signer: signer})
}

func (a instructionAccounts) metas() solana.AccountMetaSlice {
	out := make(solana.AccountMetaSlice, 0, len(a))
	for _, acc := range a {
		out = append(out, solana.NewAccountMeta(acc.Address, acc.Writable, acc.Signer))
	}
	return out
}

// userTokenAccounts - The user's associated accounts for the project's three mints
type userTokenAccounts struct {
	Old     solana.PublicKey
	New     solana.PublicKey
	Receipt solana.PublicKey
}

func deriveUserTokenAccounts(project *ProjectView, user solana.PublicKey) (userTokenAccounts, error) {
	var out userTokenAccounts
	var err error
	if out.Old, err = AssociatedTokenAddress(user, project.OldMint, project.OldTokenProgram); err != nil {
		return out, err
	}
	if out.New, err = AssociatedTokenAddress(user, project.NewMint, project.NewTokenProgram); err != nil {
		return out, err
	}
	if out.Receipt, err = AssociatedTokenAddress(user, project.ReceiptMint, project.ReceiptTokenProgram); err != nil {
		return out, err
	}
	return out, nil
}

// encodeAmountArgs serializes discriminator + u64 amount.
func encodeAmountArgs(disc []byte, amount uint64) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteBytes(disc, false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(amount, binary.LittleEndian); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeProofArgs serializes discriminator + u64 amount + Vec<[u8; 32]>.
func encodeProofArgs(amount uint64, proof [][32]byte) ([]byte, error) {
	if len(proof) > MaxProofLength {
		return nil, fmt.Errorf("proof has %d nodes (max %d)", len(proof), MaxProofLength)
	}
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteBytes(DiscriminatorClaimWithProof, false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(amount, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteUint32(uint32(len(proof)), binary.LittleEndian); err != nil {
		return nil, err
	}
	for _, node := range proof {
		if err := enc.WriteBytes(node[:], false); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// BuildMigrateInstruction - Build migrate instruction: old tokens into the vault,
// receipt tokens minted 1:1 to the user
func BuildMigrateInstruction(programID solana.PublicKey, project *ProjectView, user solana.PublicKey, amount uint64) (solana.Instruction, []NamedAccount, error) {
	atas, err := deriveUserTokenAccounts(project, user)
	if err != nil {
		return nil, nil, err
	}
	userMigration, _, err := DeriveUserMigrationPDA(programID, project.ProjectID, user)
	if err != nil {
		return nil, nil, err
	}

	data, err := encodeAmountArgs(DiscriminatorMigrate, amount)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode migrate args: %w", err)
	}

	var accounts instructionAccounts
	accounts.add("user", user, true, true)
	accounts.add("config", project.Addresses.Config, true, false)
	accounts.add("old_mint", project.OldMint, false, false)
	accounts.add("receipt_mint", project.ReceiptMint, true, false)
	accounts.add("user_old_token_account", atas.Old, true, false)
	accounts.add("user_receipt_token_account", atas.Receipt, true, false)
	accounts.add("old_vault", project.Addresses.OldVault, true, false)
	accounts.add("user_migration", userMigration, true, false)
	accounts.add("old_token_program", project.OldTokenProgram, false, false)
	accounts.add("receipt_token_program", project.ReceiptTokenProgram, false, false)
	accounts.add("associated_token_program", AssociatedTokenProgID, false, false)
	accounts.add("system_program", SystemProgramID, false, false)

	return solana.NewInstruction(programID, accounts.metas(), data), accounts, nil
}

// BuildClaimReceiptInstruction - Build claim_with_receipt instruction: burn receipts,
// receive new tokens at the exchange rate
func BuildClaimReceiptInstruction(programID solana.PublicKey, project *ProjectView, user solana.PublicKey, amount uint64) (solana.Instruction, []NamedAccount, error) {
	atas, err := deriveUserTokenAccounts(project, user)
	if err != nil {
		return nil, nil, err
	}

	data, err := encodeAmountArgs(DiscriminatorClaimWithReceipt, amount)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode claim args: %w", err)
	}

	var accounts instructionAccounts
	accounts.add("user", user, true, true)
	accounts.add("config", project.Addresses.Config, true, false)
	accounts.add("receipt_mint", project.ReceiptMint, true, false)
	accounts.add("new_mint", project.NewMint, false, false)
	accounts.add("user_receipt_token_account", atas.Receipt, true, false)
	accounts.add("user_new_token_account", atas.New, true, false)
	accounts.add("new_vault", project.Addresses.NewVault, true, false)
	accounts.add("receipt_token_program", project.ReceiptTokenProgram, false, false)
	accounts.add("new_token_program", project.NewTokenProgram, false, false)
	accounts.add("associated_token_program", AssociatedTokenProgID, false, false)
	accounts.add("system_program", SystemProgramID, false, false)

	return solana.NewInstruction(programID, accounts.metas(), data), accounts, nil
}

// BuildClaimProofInstruction - Build claim_with_proof instruction: late claim of old
// tokens against the merkle snapshot, minus the penalty
func BuildClaimProofInstruction(programID solana.PublicKey, project *ProjectView, user solana.PublicKey, amount uint64, proof [][32]byte) (solana.Instruction, []NamedAccount, error) {
	atas, err := deriveUserTokenAccounts(project, user)
	if err != nil {
		return nil, nil, err
	}
	userMigration, _, err := DeriveUserMigrationPDA(programID, project.ProjectID, user)
	if err != nil {
		return nil, nil, err
	}

	data, err := encodeProofArgs(amount, proof)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode proof claim args: %w", err)
	}

	var accounts instructionAccounts
	accounts.add("user", user, true, true)
	accounts.add("config", project.Addresses.Config, true, false)
	accounts.add("old_mint", project.OldMint, false, false)
	accounts.add("new_mint", project.NewMint, false, false)
	accounts.add("user_old_token_account", atas.Old, true, false)
	accounts.add("user_new_token_account", atas.New, true, false)
	accounts.add("old_vault", project.Addresses.OldVault, true, false)
	accounts.add("new_vault", project.Addresses.NewVault, true, false)
	accounts.add("fee_vault", project.Addresses.FeeVault, true, false)
	accounts.add("user_migration", userMigration, true, false)
	accounts.add("old_token_program", project.OldTokenProgram, false, false)
	accounts.add("new_token_program", project.NewTokenProgram, false, false)
	accounts.add("associated_token_program", AssociatedTokenProgID, false, false)
	accounts.add("system_program", SystemProgramID, false, false)

	return solana.NewInstruction(programID, accounts.metas(), data), accounts, nil
}

// BuildClaimRefundInstruction - Build claim_refund instruction: burn receipts, get the
// migrated old tokens back. The program reads the amount from the user's record.
func BuildClaimRefundInstruction(programID solana.PublicKey, project *ProjectView, user solana.PublicKey) (solana.Instruction, []NamedAccount, error) {
	atas, err := deriveUserTokenAccounts(project, user)
	if err != nil {
		return nil, nil, err
	}
	userMigration, _, err := DeriveUserMigrationPDA(programID, project.ProjectID, user)
	if err != nil {
		return nil, nil, err
	}

	var accounts instructionAccounts
	accounts.add("user", user, true, true)
	accounts.add("config", project.Addresses.Config, true, false)
	accounts.add("old_mint", project.OldMint, false, false)
	accounts.add("receipt_mint", project.ReceiptMint, true, false)
	accounts.add("user_old_token_account", atas.Old, true, false)
	accounts.add("user_receipt_token_account", atas.Receipt, true, false)
	accounts.add("old_vault", project.Addresses.OldVault, true, false)
	accounts.add("user_migration", userMigration, true, false)
	accounts.add("old_token_program", project.OldTokenProgram, false, false)
	accounts.add("receipt_token_program", project.ReceiptTokenProgram, false, false)

	data := append([]byte(nil), DiscriminatorClaimRefund...)
	return solana.NewInstruction(programID, accounts.metas(), data), accounts, nil
}
