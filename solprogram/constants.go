package solprogram

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Program IDs of the migration program per network.
const (
	MigrationProgramIDMainnet = "MiGRxYp1cQ8z4Y7ovVnq9Q5fGk1sX8nE7dVv3cYtHqA"
	MigrationProgramIDDevnet  = "MiGdEvYp1cQ8z4Y7ovVnq9Q5fGk1sX8nE7dVv3cYtHq"
)

// PDA seed tags. Each is followed by the project ID, and for per-user accounts by the
// user's key.
var (
	SeedConfig         = []byte("config")
	SeedOldVault       = []byte("old_vault")
	SeedNewVault       = []byte("new_vault")
	SeedReceiptMint    = []byte("receipt_mint")
	SeedLiquidityVault = []byte("liquidity_vault")
	SeedQuoteVault     = []byte("quote_vault")
	SeedUserMigration  = []byte("user_migration")
	SeedFeeVault       = []byte("fee_vault")
)

// Seed limits enforced by the runtime's create_program_address.
const (
	MaxSeedLength = 32
	// MaxSeeds includes the bump seed appended during derivation.
	MaxSeeds = 16
)

// DefaultTokenDecimals is assumed when a mint account cannot be read or decoded.
const DefaultTokenDecimals = 9

// Cache lifetimes. Project configuration rarely changes; balances move with every
// transaction.
const (
	DefaultProjectTTL    = 5 * time.Minute
	DefaultBalanceTTL    = 10 * time.Second
	DefaultUserRecordTTL = 30 * time.Second
	DefaultMinInterval   = 100 * time.Millisecond
	DefaultPollInterval  = 15 * time.Second
)

// System Program IDs
var (
	SystemProgramID       = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
	TokenProgramID        = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	Token2022ProgramID    = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PEnBmkTBfC23Mp")
	AssociatedTokenProgID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

// Network names understood by the client and the resolver.
const (
	NetworkMainnet  = "mainnet-beta"
	NetworkDevnet   = "devnet"
	NetworkLocalnet = "localnet"
)
