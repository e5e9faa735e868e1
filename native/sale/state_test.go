package sale

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
)

type memStorage struct {
	data map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{data: make(map[string][]byte)}
}

func (m *memStorage) KVGet(key []byte, out interface{}) (bool, error) {
	raw, ok := m.data[string(key)]
	if !ok {
		return false, nil
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *memStorage) KVPut(key []byte, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.data[string(key)] = raw
	return nil
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func TestStateSaleConfigRoundTrip(t *testing.T) {
	state := NewState(newMemStorage())
	if _, ok, err := state.SaleConfigGet(); err != nil || ok {
		t.Fatalf("expected absent config, ok=%v err=%v", ok, err)
	}
	cfg := &SaleConfig{Operator: addr(1), Treasury: addr(2), CurrentRound: 3, Finalized: true}
	if err := state.SaleConfigPut(cfg); err != nil {
		t.Fatalf("put config: %v", err)
	}
	loaded, ok, err := state.SaleConfigGet()
	if err != nil || !ok {
		t.Fatalf("load config: ok=%v err=%v", ok, err)
	}
	if *loaded != *cfg {
		t.Fatalf("config mismatch: %+v != %+v", loaded, cfg)
	}
}

func TestStateRoundImmutable(t *testing.T) {
	state := NewState(newMemStorage())
	round := &Round{ID: 1, PriceUSD: 100_000, StartTime: 100, EndTime: 200}
	if err := state.RoundPut(round); err != nil {
		t.Fatalf("put round: %v", err)
	}
	loaded, ok, err := state.RoundGet(1)
	if err != nil || !ok {
		t.Fatalf("load round: ok=%v err=%v", ok, err)
	}
	if *loaded != *round {
		t.Fatalf("round mismatch: %+v != %+v", loaded, round)
	}
	overwrite := &Round{ID: 1, PriceUSD: 200_000, StartTime: 100, EndTime: 200}
	if err := state.RoundPut(overwrite); !errors.Is(err, ErrInvalidRoundConfig) {
		t.Fatalf("expected ErrInvalidRoundConfig on overwrite, got %v", err)
	}
}

func TestStateContributionAbsentVsZero(t *testing.T) {
	state := NewState(newMemStorage())
	user := addr(7)
	if _, ok, err := state.ContributionGet(user); err != nil || ok {
		t.Fatalf("expected absent record, ok=%v err=%v", ok, err)
	}
	if err := state.ContributionPut(&UserContribution{User: user}); err != nil {
		t.Fatalf("put contribution: %v", err)
	}
	record, ok, err := state.ContributionGet(user)
	if err != nil || !ok {
		t.Fatalf("load contribution: ok=%v err=%v", ok, err)
	}
	if record.TotalContributedUSD != 0 || record.TotalTokensPurchased != 0 {
		t.Fatalf("expected zero totals, got %+v", record)
	}
}

func TestStateBalances(t *testing.T) {
	state := NewState(newMemStorage())
	account := addr(9)
	balance, err := state.BalanceGet("USDC", account)
	if err != nil {
		t.Fatalf("missing balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("expected zero balance, got %s", balance)
	}
	if err := state.BalanceSet("USDC", account, big.NewInt(1234)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	balance, err = state.BalanceGet("USDC", account)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Int64() != 1234 {
		t.Fatalf("expected 1234, got %s", balance)
	}
	if err := state.BalanceSet("USDC", account, big.NewInt(-1)); err == nil {
		t.Fatalf("expected negative balance rejection")
	}
}
