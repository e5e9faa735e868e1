package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lavasale/native/sale"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	dsn, err := FileDSN(filepath.Join(t.TempDir(), "saled.sqlite"))
	require.NoError(t, err)
	archive, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })
	return archive
}

func TestArchiveReceipts(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()
	var contributor [20]byte
	contributor[19] = 0xcc
	receipt := &sale.Receipt{
		Contributor:   contributor,
		RoundID:       2,
		TokenAmount:   1_000_000,
		BonusTokens:   50_000,
		USDCost:       100_000,
		PaymentAsset:  "usdc",
		PaymentAmount: 100_000,
		Referral:      &sale.ReferralData{Code: "FRIEND", BonusPercent: 500},
	}
	id, err := archive.RecordReceipt(ctx, receipt, time.Unix(1_700_000_000, 0))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	loaded, err := archive.Receipt(ctx, id)
	require.NoError(t, err)
	require.Equal(t, uint8(2), loaded.RoundID)
	require.Equal(t, uint64(1_000_000), loaded.TokenAmount)
	require.Equal(t, "USDC", loaded.PaymentAsset)
	require.Equal(t, "FRIEND", loaded.ReferralCode)

	records, err := archive.ReceiptsByContributor(ctx, loaded.Contributor, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, id, records[0].ID)

	_, err = archive.Receipt(ctx, "missing")
	require.True(t, errors.Is(err, ErrReceiptNotFound))
}

func TestArchiveSamples(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()
	observed := time.Unix(1_700_000_000, 0)
	require.NoError(t, archive.RecordSample(ctx, "sol/usd", "CoinGecko", 15_000_000_000, -8, observed, observed.Add(time.Second)))
	require.NoError(t, archive.RecordSample(ctx, "sol/usd", "CoinGecko", 15_100_000_000, -8, observed.Add(15*time.Second), observed.Add(16*time.Second)))

	latest, err := archive.LatestSample(ctx, "SOL/USD")
	require.NoError(t, err)
	require.Equal(t, int64(15_100_000_000), latest.Price)
	require.Equal(t, int32(-8), latest.Expo)
	require.Equal(t, "coingecko", latest.Source)

	_, err = archive.LatestSample(ctx, "BTC/USD")
	require.Error(t, err)
}

func TestFileDSN(t *testing.T) {
	_, err := FileDSN("  ")
	require.True(t, errors.Is(err, ErrPathRequired))
	dsn, err := FileDSN("saled.sqlite")
	require.NoError(t, err)
	require.Contains(t, dsn, "file:")
	require.Contains(t, dsn, "_journal_mode=WAL")
}
