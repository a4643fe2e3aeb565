package solprogram

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Phase - Position of a project in its migration lifecycle
type Phase uint8

const (
	PhaseSetup Phase = iota
	PhaseActiveMigration
	PhaseGracePeriod
	PhaseFinalized
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "Setup"
	case PhaseActiveMigration:
		return "ActiveMigration"
	case PhaseGracePeriod:
		return "GracePeriod"
	case PhaseFinalized:
		return "Finalized"
	default:
		return "Unknown"
	}
}

// MarshalText renders the phase name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ComputePhase derives the phase from the migration window and the claims flag.
func ComputePhase(now, start, end time.Time, claimsEnabled bool) Phase {
	switch {
	case now.Before(start):
		return PhaseSetup
	case now.Before(end):
		return PhaseActiveMigration
	case claimsEnabled:
		return PhaseGracePeriod
	default:
		return PhaseFinalized
	}
}

// ProjectAddresses - Every PDA a project's instructions reference
type ProjectAddresses struct {
	Config         solana.PublicKey `json:"config"`
	OldVault       solana.PublicKey `json:"old_vault"`
	NewVault       solana.PublicKey `json:"new_vault"`
	ReceiptMint    solana.PublicKey `json:"receipt_mint"`
	LiquidityVault solana.PublicKey `json:"liquidity_vault"`
	QuoteVault     solana.PublicKey `json:"quote_vault"`
	FeeVault       solana.PublicKey `json:"fee_vault"`
}

// ProtocolState carries the late-claim and refund gates. Supplied is false when the
// on-chain record predates these fields, in which case both gates stay closed.
type ProtocolState struct {
	Supplied        bool     `json:"supplied"`
	HasProofRoot    bool     `json:"has_proof_root"`
	ProofRoot       [32]byte `json:"-"`
	MigrationFailed bool     `json:"migration_failed"`
}

// ProjectView - Client-side projection of a project's on-chain configuration.
// It is a plain value: copies never share state with the cache.
type ProjectView struct {
	ProjectID string           `json:"project_id"`
	Network   string           `json:"network"`
	Admin     solana.PublicKey `json:"admin"`

	OldMint     solana.PublicKey `json:"old_mint"`
	NewMint     solana.PublicKey `json:"new_mint"`
	ReceiptMint solana.PublicKey `json:"receipt_mint"`

	OldTokenProgram     solana.PublicKey `json:"old_token_program"`
	NewTokenProgram     solana.PublicKey `json:"new_token_program"`
	ReceiptTokenProgram solana.PublicKey `json:"receipt_token_program"`

	OldDecimals     uint8 `json:"old_decimals"`
	NewDecimals     uint8 `json:"new_decimals"`
	ReceiptDecimals uint8 `json:"receipt_decimals"`

	ExchangeRateBps uint64 `json:"exchange_rate_bps"`
	PenaltyBps      uint16 `json:"penalty_bps"`

	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	ClaimsEnabled bool      `json:"claims_enabled"`
	Paused        bool      `json:"paused"`
	TotalMigrated uint64    `json:"total_migrated"`
	Phase         Phase     `json:"phase"`

	Addresses ProjectAddresses `json:"addresses"`
	Protocol  ProtocolState    `json:"protocol"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// BalanceSnapshot - A user's balances relative to one project, in raw units
type BalanceSnapshot struct {
	Native   uint64 `json:"native"`
	OldToken uint64 `json:"old_token"`
	NewToken uint64 `json:"new_token"`
	Receipt  uint64 `json:"receipt"`
}

// Equal compares the four balances.
func (b BalanceSnapshot) Equal(o BalanceSnapshot) bool {
	return b.Native == o.Native &&
		b.OldToken == o.OldToken &&
		b.NewToken == o.NewToken &&
		b.Receipt == o.Receipt
}

// ClaimType - Claim variants, in preference order
type ClaimType string

const (
	ClaimTypeNone        ClaimType = ""
	ClaimTypeReceiptBurn ClaimType = "receipt_burn"
	ClaimTypeProof       ClaimType = "proof"
	ClaimTypeRefund      ClaimType = "refund"
)

// ClaimEligibility - Which claims a user may submit right now
type ClaimEligibility struct {
	ReceiptBurn bool            `json:"receipt_burn"`
	ProofClaim  bool            `json:"proof_claim"`
	Refund      bool            `json:"refund"`
	Balances    BalanceSnapshot `json:"balances"`
}

// UserMigrationRecord - Per-user record written by the program on migrate
type UserMigrationRecord struct {
	User           solana.PublicKey `json:"user"`
	AmountMigrated uint64           `json:"amount_migrated"`
	RefundClaimed  bool             `json:"refund_claimed"`
	MigratedAt     time.Time        `json:"migrated_at"`
}

// TxKind - Operations the transaction builder can assemble
type TxKind string

const (
	TxMigrate      TxKind = "migrate"
	TxClaimReceipt TxKind = "claim_receipt"
	TxClaimProof   TxKind = "claim_proof"
	TxClaimRefund  TxKind = "claim_refund"
)

// BuildRequest - Parameters for BuildTransaction
type BuildRequest struct {
	ProjectID string
	User      solana.PublicKey
	// Amount is in raw units of the token the user gives up. Ignored for refunds.
	Amount uint64
	// Proof is the merkle path for proof-based claims.
	Proof [][32]byte
	// Project skips the project load when set.
	Project *ProjectView
}

// NamedAccount - An instruction account with its role, for confirmation screens
type NamedAccount struct {
	Name     string           `json:"name"`
	Address  solana.PublicKey `json:"address"`
	Writable bool             `json:"writable"`
	Signer   bool             `json:"signer"`
}

// BuiltTransaction - Unsigned transaction plus what it is expected to do
type BuiltTransaction struct {
	Kind            TxKind              `json:"kind"`
	Transaction     *solana.Transaction `json:"-"`
	Encoded         string              `json:"unsigned_transaction"`
	RecentBlockhash solana.Hash         `json:"recent_blockhash"`
	// ExpectedAmount is what the instruction pays out, in the output token's raw units.
	ExpectedAmount uint64 `json:"expected_amount"`
	// ExpectedNewTokens is the eventual new-token amount for a migrate.
	ExpectedNewTokens uint64         `json:"expected_new_tokens,omitempty"`
	Penalty           uint64         `json:"penalty,omitempty"`
	Accounts          []NamedAccount `json:"accounts"`
}
