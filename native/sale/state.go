package sale

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

// Storage abstracts the subset of state manager functionality required by the
// sale engine. Implementations encode values with a stable codec and report
// absence through the boolean rather than an error.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	saleConfigKey      = []byte("sale/config")
	roundPrefix        = []byte("sale/round/")
	contributionPrefix = []byte("sale/contribution/")
	balancePrefix      = []byte("sale/balance/")
)

type storedSaleConfig struct {
	Operator     [20]byte
	Treasury     [20]byte
	CurrentRound uint8
	Finalized    bool
}

type storedRound struct {
	ID        uint8
	PriceUSD  uint64
	StartTime uint64
	EndTime   uint64
}

type storedContribution struct {
	User                 [20]byte
	TotalContributedUSD  uint64
	TotalTokensPurchased uint64
}

type storedBalance struct {
	Amount *big.Int
}

// State provides typed access to the persisted sale records on top of the raw
// key-value storage.
type State struct {
	store Storage
}

// NewState binds typed accessors to the provided storage backend.
func NewState(store Storage) *State {
	return &State{store: store}
}

// SaleConfigGet loads the singleton sale configuration.
func (s *State) SaleConfigGet() (*SaleConfig, bool, error) {
	if s == nil || s.store == nil {
		return nil, false, fmt.Errorf("sale state not configured")
	}
	var stored storedSaleConfig
	ok, err := s.store.KVGet(saleConfigKey, &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	cfg := &SaleConfig{
		Operator:     stored.Operator,
		Treasury:     stored.Treasury,
		CurrentRound: stored.CurrentRound,
		Finalized:    stored.Finalized,
	}
	return cfg, true, nil
}

// SaleConfigPut persists the sale configuration.
func (s *State) SaleConfigPut(cfg *SaleConfig) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("sale state not configured")
	}
	if cfg == nil {
		return fmt.Errorf("sale state: config must not be nil")
	}
	stored := storedSaleConfig{
		Operator:     cfg.Operator,
		Treasury:     cfg.Treasury,
		CurrentRound: cfg.CurrentRound,
		Finalized:    cfg.Finalized,
	}
	return s.store.KVPut(saleConfigKey, stored)
}

// RoundGet loads the round with the supplied identifier.
func (s *State) RoundGet(id uint8) (*Round, bool, error) {
	if s == nil || s.store == nil {
		return nil, false, fmt.Errorf("sale state not configured")
	}
	var stored storedRound
	ok, err := s.store.KVGet(roundKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	round := &Round{
		ID:        stored.ID,
		PriceUSD:  stored.PriceUSD,
		StartTime: int64(stored.StartTime),
		EndTime:   int64(stored.EndTime),
	}
	return round, true, nil
}

// RoundPut persists a round record. Rounds are immutable; overwriting an
// existing identifier is rejected so the registry stays append-only.
func (s *State) RoundPut(round *Round) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("sale state not configured")
	}
	if round == nil {
		return fmt.Errorf("sale state: round must not be nil")
	}
	if round.StartTime < 0 || round.EndTime < 0 {
		return fmt.Errorf("sale state: round window must not be negative")
	}
	var existing storedRound
	ok, err := s.store.KVGet(roundKey(round.ID), &existing)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("sale state: round %d already exists: %w", round.ID, ErrInvalidRoundConfig)
	}
	stored := storedRound{
		ID:        round.ID,
		PriceUSD:  round.PriceUSD,
		StartTime: uint64(round.StartTime),
		EndTime:   uint64(round.EndTime),
	}
	return s.store.KVPut(roundKey(round.ID), stored)
}

// ContributionGet loads the running totals for a contributor. The boolean
// distinguishes an absent record from a zero-valued one.
func (s *State) ContributionGet(user [20]byte) (*UserContribution, bool, error) {
	if s == nil || s.store == nil {
		return nil, false, fmt.Errorf("sale state not configured")
	}
	var stored storedContribution
	ok, err := s.store.KVGet(contributionKey(user), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	record := &UserContribution{
		User:                 stored.User,
		TotalContributedUSD:  stored.TotalContributedUSD,
		TotalTokensPurchased: stored.TotalTokensPurchased,
	}
	return record, true, nil
}

// ContributionPut persists the running totals for a contributor.
func (s *State) ContributionPut(record *UserContribution) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("sale state not configured")
	}
	if record == nil {
		return fmt.Errorf("sale state: contribution must not be nil")
	}
	stored := storedContribution{
		User:                 record.User,
		TotalContributedUSD:  record.TotalContributedUSD,
		TotalTokensPurchased: record.TotalTokensPurchased,
	}
	return s.store.KVPut(contributionKey(record.User), stored)
}

// BalanceGet returns the custodial balance held for an account in the supplied
// asset. Missing records read as zero.
func (s *State) BalanceGet(asset string, addr [20]byte) (*big.Int, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("sale state not configured")
	}
	var stored storedBalance
	ok, err := s.store.KVGet(balanceKey(asset, addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok || stored.Amount == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(stored.Amount), nil
}

// BalanceSet overwrites the custodial balance for an account.
func (s *State) BalanceSet(asset string, addr [20]byte, amount *big.Int) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("sale state not configured")
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("sale state: balance must not be negative")
	}
	return s.store.KVPut(balanceKey(asset, addr), storedBalance{Amount: new(big.Int).Set(amount)})
}

func roundKey(id uint8) []byte {
	key := make([]byte, len(roundPrefix)+1)
	copy(key, roundPrefix)
	key[len(roundPrefix)] = id
	return key
}

func contributionKey(user [20]byte) []byte {
	suffix := hex.EncodeToString(user[:])
	key := make([]byte, len(contributionPrefix)+len(suffix))
	copy(key, contributionPrefix)
	copy(key[len(contributionPrefix):], suffix)
	return key
}

func balanceKey(asset string, addr [20]byte) []byte {
	suffix := hex.EncodeToString(addr[:])
	key := make([]byte, 0, len(balancePrefix)+len(asset)+1+len(suffix))
	key = append(key, balancePrefix...)
	key = append(key, asset...)
	key = append(key, '/')
	key = append(key, suffix...)
	return key
}
