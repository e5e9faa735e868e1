package sale

import (
	"errors"
	"testing"
	"time"
)

func TestValidateQuote(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	fresh := PriceQuote{Price: 15_000_000_000, Expo: -8, Timestamp: now.Add(-5 * time.Second)}
	if err := ValidateQuote(fresh, now, 30*time.Second); err != nil {
		t.Fatalf("fresh quote rejected: %v", err)
	}
	boundary := PriceQuote{Price: 15_000_000_000, Expo: -8, Timestamp: now.Add(-30 * time.Second)}
	if err := ValidateQuote(boundary, now, 30*time.Second); err != nil {
		t.Fatalf("boundary quote rejected: %v", err)
	}
	stale := PriceQuote{Price: 15_000_000_000, Expo: -8, Timestamp: now.Add(-31 * time.Second)}
	if err := ValidateQuote(stale, now, 30*time.Second); !errors.Is(err, ErrOracleStale) {
		t.Fatalf("expected ErrOracleStale, got %v", err)
	}
	zeroPrice := PriceQuote{Price: 0, Expo: -8, Timestamp: now}
	if err := ValidateQuote(zeroPrice, now, 30*time.Second); !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable for zero price, got %v", err)
	}
	noTimestamp := PriceQuote{Price: 15_000_000_000, Expo: -8}
	if err := ValidateQuote(noTimestamp, now, 30*time.Second); !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable for missing timestamp, got %v", err)
	}
}

func TestManualOracle(t *testing.T) {
	oracle := NewManualOracle()
	if _, err := oracle.GetQuote("SOL", "USD"); !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable for missing pair, got %v", err)
	}
	ts := time.Unix(1_700_000_000, 0)
	oracle.Set("sol", "usd", 15_000_000_000, -8, ts)
	quote, err := oracle.GetQuote("SOL", "USD")
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}
	if quote.Price != 15_000_000_000 || quote.Expo != -8 || !quote.Timestamp.Equal(ts) {
		t.Fatalf("unexpected quote %+v", quote)
	}
	if quote.Source != "manual" {
		t.Fatalf("expected manual source, got %q", quote.Source)
	}
}
