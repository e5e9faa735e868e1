package sale

import (
	"errors"
	"math"
	"testing"
)

func TestLedgerPrepareDoesNotPersist(t *testing.T) {
	state := NewState(newMemStorage())
	ledger := NewLedger(state, 0)
	user := addr(1)
	staged, err := ledger.Prepare(user, 100_000, 1_000_000)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if staged.TotalContributedUSD != 100_000 || staged.TotalTokensPurchased != 1_000_000 {
		t.Fatalf("unexpected staged record %+v", staged)
	}
	if _, ok, err := ledger.Totals(user); err != nil || ok {
		t.Fatalf("prepare must not persist, ok=%v err=%v", ok, err)
	}
	if err := ledger.Commit(staged); err != nil {
		t.Fatalf("commit: %v", err)
	}
	persisted, ok, err := ledger.Totals(user)
	if err != nil || !ok {
		t.Fatalf("totals after commit: ok=%v err=%v", ok, err)
	}
	if persisted.TotalContributedUSD != 100_000 {
		t.Fatalf("unexpected persisted record %+v", persisted)
	}
}

func TestLedgerAccumulates(t *testing.T) {
	state := NewState(newMemStorage())
	ledger := NewLedger(state, 0)
	user := addr(2)
	for i := 0; i < 3; i++ {
		staged, err := ledger.Prepare(user, 1_000_000, 10_000_000)
		if err != nil {
			t.Fatalf("prepare %d: %v", i, err)
		}
		if err := ledger.Commit(staged); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}
	record, ok, err := ledger.Totals(user)
	if err != nil || !ok {
		t.Fatalf("totals: ok=%v err=%v", ok, err)
	}
	if record.TotalContributedUSD != 3_000_000 || record.TotalTokensPurchased != 30_000_000 {
		t.Fatalf("unexpected totals %+v", record)
	}
}

func TestLedgerEnforcesCap(t *testing.T) {
	state := NewState(newMemStorage())
	ledger := NewLedger(state, 150_000)
	user := addr(3)
	staged, err := ledger.Prepare(user, 100_000, 1_000_000)
	if err != nil {
		t.Fatalf("first prepare: %v", err)
	}
	if err := ledger.Commit(staged); err != nil {
		t.Fatalf("commit: %v", err)
	}
	// 100k + 100k breaches the 150k cap.
	if _, err := ledger.Prepare(user, 100_000, 1_000_000); !errors.Is(err, ErrExceedsMaxContribution) {
		t.Fatalf("expected ErrExceedsMaxContribution, got %v", err)
	}
	// An exact fill of the remaining headroom is allowed.
	staged, err = ledger.Prepare(user, 50_000, 500_000)
	if err != nil {
		t.Fatalf("exact fill prepare: %v", err)
	}
	if err := ledger.Commit(staged); err != nil {
		t.Fatalf("exact fill commit: %v", err)
	}
	record, _, err := ledger.Totals(user)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if record.TotalContributedUSD != 150_000 {
		t.Fatalf("expected cap reached exactly, got %d", record.TotalContributedUSD)
	}
}

func TestLedgerDefaultsCap(t *testing.T) {
	state := NewState(newMemStorage())
	ledger := NewLedger(state, 0)
	user := addr(4)
	if _, err := ledger.Prepare(user, DefaultMaxContributionUSD+1, 1); !errors.Is(err, ErrExceedsMaxContribution) {
		t.Fatalf("expected default cap enforcement, got %v", err)
	}
	if _, err := ledger.Prepare(user, DefaultMaxContributionUSD, 1); err != nil {
		t.Fatalf("exact default cap should pass: %v", err)
	}
}

func TestLedgerOverflow(t *testing.T) {
	state := NewState(newMemStorage())
	ledger := NewLedger(state, math.MaxUint64)
	user := addr(5)
	staged, err := ledger.Prepare(user, math.MaxUint64, 1)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := ledger.Commit(staged); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := ledger.Prepare(user, 1, 1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}
}
