package solprogram

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// Account discriminators
func getAccountDiscriminator(name string) [8]byte {
	hash := sha256.Sum256([]byte("account:" + name))
	var disc [8]byte
	copy(disc[:], hash[:8])
	return disc
}

var (
	ProjectConfigDisc = getAccountDiscriminator("ProjectConfig")
	UserMigrationDisc = getAccountDiscriminator("UserMigration")
)

// maxProjectIDLength bounds the project_id string; it is used as a PDA seed.
const maxProjectIDLength = MaxSeedLength

// projectConfigRecord mirrors the on-chain ProjectConfig account.
type projectConfigRecord struct {
	Admin         solana.PublicKey
	ProjectID     string
	OldMint       solana.PublicKey
	NewMint       solana.PublicKey
	ReceiptMint   solana.PublicKey
	ExchangeRate  uint64
	PenaltyBps    uint16
	StartTS       int64
	EndTS         int64
	ClaimsEnabled bool
	Paused        bool
	TotalMigrated uint64
	Bump          uint8
	Protocol      ProtocolState
}

// userMigrationRecord mirrors the on-chain UserMigration account.
type userMigrationRecord struct {
	User           solana.PublicKey
	AmountMigrated uint64
	RefundClaimed  bool
	MigratedAt     int64
	Bump           uint8
}

// recordReader wraps a Borsh decoder and keeps the first error.
type recordReader struct {
	dec *bin.Decoder
	err error
}

func (r *recordReader) pubkey() solana.PublicKey {
	if r.err != nil {
		return solana.PublicKey{}
	}
	b, err := r.dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		r.err = err
		return solana.PublicKey{}
	}
	return solana.PublicKeyFromBytes(b)
}

func (r *recordReader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint64(binary.LittleEndian)
	r.err = err
	return v
}

func (r *recordReader) i64() int64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadInt64(binary.LittleEndian)
	r.err = err
	return v
}

func (r *recordReader) u16() uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint16(binary.LittleEndian)
	r.err = err
	return v
}

func (r *recordReader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint8()
	r.err = err
	return v
}

func (r *recordReader) boolean() bool {
	if r.err != nil {
		return false
	}
	v, err := r.dec.ReadBool()
	r.err = err
	return v
}

// str reads a Borsh string: u32 length then UTF-8 bytes.
func (r *recordReader) str(max int) string {
	if r.err != nil {
		return ""
	}
	n, err := r.dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		r.err = err
		return ""
	}
	if int(n) > max {
		r.err = fmt.Errorf("string length %d exceeds %d", n, max)
		return ""
	}
	b, err := r.dec.ReadNBytes(int(n))
	if err != nil {
		r.err = err
		return ""
	}
	return string(b)
}

func newRecordReader(data []byte, disc [8]byte, name string) (*recordReader, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("invalid %s data length: %d", name, len(data))
	}
	if !bytes.Equal(data[:8], disc[:]) {
		return nil, fmt.Errorf("invalid %s discriminator: %x", name, data[:8])
	}
	return &recordReader{dec: bin.NewBorshDecoder(data[8:])}, nil
}

// decodeProjectConfig - Parse project config account data. Records written before the
// late-claim upgrade end after the bump; their ProtocolState stays unsupplied.
func decodeProjectConfig(data []byte) (*projectConfigRecord, error) {
	r, err := newRecordReader(data, ProjectConfigDisc, "project config")
	if err != nil {
		return nil, err
	}

	rec := &projectConfigRecord{}
	rec.Admin = r.pubkey()
	rec.ProjectID = r.str(maxProjectIDLength)
	rec.OldMint = r.pubkey()
	rec.NewMint = r.pubkey()
	rec.ReceiptMint = r.pubkey()
	rec.ExchangeRate = r.u64()
	rec.PenaltyBps = r.u16()
	rec.StartTS = r.i64()
	rec.EndTS = r.i64()
	rec.ClaimsEnabled = r.boolean()
	rec.Paused = r.boolean()
	rec.TotalMigrated = r.u64()
	rec.Bump = r.u8()
	if r.err != nil {
		return nil, fmt.Errorf("failed to decode project config: %w", r.err)
	}

	// Option<[u8; 32]> merkle root + migration_failed flag
	if r.dec.Remaining() > 0 {
		tag := r.u8()
		switch tag {
		case 0:
		case 1:
			root, err := r.dec.ReadNBytes(32)
			if err != nil {
				return nil, fmt.Errorf("failed to decode merkle root: %w", err)
			}
			copy(rec.Protocol.ProofRoot[:], root)
			rec.Protocol.HasProofRoot = true
		default:
			return nil, fmt.Errorf("invalid merkle root option tag: %d", tag)
		}
		rec.Protocol.MigrationFailed = r.boolean()
		if r.err != nil {
			return nil, fmt.Errorf("failed to decode protocol state: %w", r.err)
		}
		rec.Protocol.Supplied = true
	}

	if rec.EndTS < rec.StartTS {
		return nil, fmt.Errorf("invalid migration window: end %d before start %d", rec.EndTS, rec.StartTS)
	}
	return rec, nil
}

// decodeUserMigration - Parse user migration account data
func decodeUserMigration(data []byte) (*userMigrationRecord, error) {
	r, err := newRecordReader(data, UserMigrationDisc, "user migration")
	if err != nil {
		return nil, err
	}

	rec := &userMigrationRecord{}
	rec.User = r.pubkey()
	rec.AmountMigrated = r.u64()
	rec.RefundClaimed = r.boolean()
	rec.MigratedAt = r.i64()
	rec.Bump = r.u8()
	if r.err != nil {
		return nil, fmt.Errorf("failed to decode user migration: %w", r.err)
	}
	return rec, nil
}

// decodeMintDecimals - Read decimals from an SPL Token or Token-2022 mint. Extensions
// after the base layout are ignored.
func decodeMintDecimals(data []byte) (uint8, error) {
	var mint token.Mint
	if err := mint.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return 0, fmt.Errorf("failed to decode mint: %w", err)
	}
	if !mint.IsInitialized {
		return 0, fmt.Errorf("mint is not initialized")
	}
	return mint.Decimals, nil
}

func (r *userMigrationRecord) view() *UserMigrationRecord {
	return &UserMigrationRecord{
		User:           r.User,
		AmountMigrated: r.AmountMigrated,
		RefundClaimed:  r.RefundClaimed,
		MigratedAt:     time.Unix(r.MigratedAt, 0).UTC(),
	}
}
