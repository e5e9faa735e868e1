package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	_ "github.com/glebarez/sqlite"
	"github.com/google/uuid"

	"lavasale/native/sale"
)

// Archive wraps the saled persistence layer. It records accepted contribution
// receipts and raw oracle samples for audit and reconciliation.
type Archive struct {
	db *sql.DB
}

// ErrReceiptNotFound is returned when a receipt lookup misses.
var ErrReceiptNotFound = errors.New("saled storage: receipt not found")

// Open initialises the backing store using a sqlite-compatible DSN.
func Open(dsn string) (*Archive, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close releases database resources.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// ReceiptRecord is the persisted form of a contribution receipt.
type ReceiptRecord struct {
	ID            string
	Contributor   string
	RoundID       uint8
	TokenAmount   uint64
	BonusTokens   uint64
	USDCost       uint64
	PaymentAsset  string
	PaymentAmount uint64
	ReferralCode  string
	CreatedAt     time.Time
}

// RecordReceipt persists an accepted contribution and returns its identifier.
func (a *Archive) RecordReceipt(ctx context.Context, receipt *sale.Receipt, created time.Time) (string, error) {
	if a == nil || a.db == nil {
		return "", fmt.Errorf("archive not configured")
	}
	if receipt == nil {
		return "", fmt.Errorf("receipt required")
	}
	id := uuid.NewString()
	referralCode := ""
	if receipt.Referral != nil {
		referralCode = strings.TrimSpace(receipt.Referral.Code)
	}
	_, err := a.db.ExecContext(ctx, `
        INSERT INTO receipts(id, contributor, round_id, token_amount, bonus_tokens, usd_cost, payment_asset, payment_amount, referral_code, created_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, id,
		ethcommon.BytesToAddress(receipt.Contributor[:]).Hex(),
		receipt.RoundID,
		receipt.TokenAmount,
		receipt.BonusTokens,
		receipt.USDCost,
		strings.ToUpper(strings.TrimSpace(receipt.PaymentAsset)),
		receipt.PaymentAmount,
		referralCode,
		created.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert receipt: %w", err)
	}
	return id, nil
}

// Receipt loads a single receipt by identifier.
func (a *Archive) Receipt(ctx context.Context, id string) (ReceiptRecord, error) {
	record := ReceiptRecord{}
	if a == nil || a.db == nil {
		return record, fmt.Errorf("archive not configured")
	}
	row := a.db.QueryRowContext(ctx, `
        SELECT id, contributor, round_id, token_amount, bonus_tokens, usd_cost, payment_asset, payment_amount, referral_code, created_at
        FROM receipts
        WHERE id = ?
    `, strings.TrimSpace(id))
	if err := scanReceipt(row, &record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return record, ErrReceiptNotFound
		}
		return record, fmt.Errorf("query receipt: %w", err)
	}
	return record, nil
}

// ReceiptsByContributor returns the most recent receipts for an address.
func (a *Archive) ReceiptsByContributor(ctx context.Context, contributor string, limit int) ([]ReceiptRecord, error) {
	if a == nil || a.db == nil {
		return nil, fmt.Errorf("archive not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx, `
        SELECT id, contributor, round_id, token_amount, bonus_tokens, usd_cost, payment_asset, payment_amount, referral_code, created_at
        FROM receipts
        WHERE contributor = ?
        ORDER BY created_at DESC, id DESC
        LIMIT ?
    `, strings.TrimSpace(contributor), limit)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	defer rows.Close()
	records := make([]ReceiptRecord, 0)
	for rows.Next() {
		var record ReceiptRecord
		if err := scanReceipt(rows, &record); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner, record *ReceiptRecord) error {
	return row.Scan(
		&record.ID,
		&record.Contributor,
		&record.RoundID,
		&record.TokenAmount,
		&record.BonusTokens,
		&record.USDCost,
		&record.PaymentAsset,
		&record.PaymentAmount,
		&record.ReferralCode,
		&record.CreatedAt,
	)
}

// RecordSample persists a raw oracle observation.
func (a *Archive) RecordSample(ctx context.Context, pair, source string, price int64, expo int32, observed, recorded time.Time) error {
	if a == nil || a.db == nil {
		return fmt.Errorf("archive not configured")
	}
	_, err := a.db.ExecContext(ctx, `
        INSERT INTO oracle_samples(pair, source, price, expo, observed_at, recorded_at)
        VALUES(?, ?, ?, ?, ?, ?)
    `, strings.ToUpper(strings.TrimSpace(pair)), strings.ToLower(strings.TrimSpace(source)), price, expo, observed.UTC().Unix(), recorded.UTC())
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// Sample captures a persisted oracle observation.
type Sample struct {
	Pair           string
	Source         string
	Price          int64
	Expo           int32
	ObservedAtUnix int64
	RecordedAt     time.Time
}

// LatestSample returns the most recent observation for the pair.
func (a *Archive) LatestSample(ctx context.Context, pair string) (Sample, error) {
	result := Sample{}
	if a == nil || a.db == nil {
		return result, fmt.Errorf("archive not configured")
	}
	row := a.db.QueryRowContext(ctx, `
        SELECT pair, source, price, expo, observed_at, recorded_at
        FROM oracle_samples
        WHERE pair = ?
        ORDER BY id DESC
        LIMIT 1
    `, strings.ToUpper(strings.TrimSpace(pair)))
	if err := row.Scan(&result.Pair, &result.Source, &result.Price, &result.Expo, &result.ObservedAtUnix, &result.RecordedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, fmt.Errorf("sample not found")
		}
		return result, fmt.Errorf("query sample: %w", err)
	}
	return result, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS receipts (
    id TEXT PRIMARY KEY,
    contributor TEXT NOT NULL,
    round_id INTEGER NOT NULL,
    token_amount INTEGER NOT NULL,
    bonus_tokens INTEGER NOT NULL,
    usd_cost INTEGER NOT NULL,
    payment_asset TEXT NOT NULL,
    payment_amount INTEGER NOT NULL,
    referral_code TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_receipts_contributor ON receipts(contributor, created_at);

CREATE TABLE IF NOT EXISTS oracle_samples (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    pair TEXT NOT NULL,
    source TEXT NOT NULL,
    price INTEGER NOT NULL,
    expo INTEGER NOT NULL,
    observed_at INTEGER NOT NULL,
    recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_oracle_samples_pair_ts ON oracle_samples(pair, observed_at);
`
