package sale

import "fmt"

// validateRoundData rejects malformed round parameters. The same rules apply
// to the initial round and to every advancement.
func validateRoundData(data CreateRoundData) error {
	if data.PriceUSD == 0 {
		return fmt.Errorf("round price must be positive: %w", ErrInvalidRoundConfig)
	}
	if data.StartTime >= data.EndTime {
		return fmt.Errorf("round window start must precede end: %w", ErrInvalidRoundConfig)
	}
	return nil
}

// activeRound resolves the round the sale configuration points at. A missing
// record means the registry and the configuration disagree, which is treated
// as an invalid round configuration rather than a storage fault.
func (s *State) activeRound(cfg *SaleConfig) (*Round, error) {
	if cfg == nil {
		return nil, ErrNotInitialized
	}
	round, ok, err := s.RoundGet(cfg.CurrentRound)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("round %d missing from registry: %w", cfg.CurrentRound, ErrInvalidRoundConfig)
	}
	return round, nil
}
