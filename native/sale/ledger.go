package sale

import "fmt"

// Ledger maintains per-user cumulative totals and enforces the per-user USD
// cap. Updates are staged first and committed only after the rest of the
// contribution succeeds, so a failed operation leaves no partial write.
type Ledger struct {
	state              *State
	maxContributionUSD uint64
}

// NewLedger binds a ledger to the sale state. A zero cap falls back to the
// default per-user maximum.
func NewLedger(state *State, maxContributionUSD uint64) *Ledger {
	if maxContributionUSD == 0 {
		maxContributionUSD = DefaultMaxContributionUSD
	}
	return &Ledger{state: state, maxContributionUSD: maxContributionUSD}
}

// Prepare stages a contribution against the user's running totals. It loads
// the existing record (creating a fresh one when the user has never
// contributed), applies checked additions and verifies the cap. Nothing is
// persisted; the returned record must be handed to Commit once the payment
// has been collected.
func (l *Ledger) Prepare(user [20]byte, usdCost, tokensIncludingBonus uint64) (*UserContribution, error) {
	if l == nil || l.state == nil {
		return nil, fmt.Errorf("ledger not initialised")
	}
	record, ok, err := l.state.ContributionGet(user)
	if err != nil {
		return nil, err
	}
	if !ok {
		record = &UserContribution{User: user}
	}
	totalUSD, err := checkedAddU64(record.TotalContributedUSD, usdCost)
	if err != nil {
		return nil, err
	}
	if totalUSD > l.maxContributionUSD {
		return nil, ErrExceedsMaxContribution
	}
	totalTokens, err := checkedAddU64(record.TotalTokensPurchased, tokensIncludingBonus)
	if err != nil {
		return nil, err
	}
	updated := record.Copy()
	updated.TotalContributedUSD = totalUSD
	updated.TotalTokensPurchased = totalTokens
	return updated, nil
}

// Commit persists a staged contribution record.
func (l *Ledger) Commit(record *UserContribution) error {
	if l == nil || l.state == nil {
		return fmt.Errorf("ledger not initialised")
	}
	return l.state.ContributionPut(record)
}

// Totals returns the persisted running totals for a contributor.
func (l *Ledger) Totals(user [20]byte) (*UserContribution, bool, error) {
	if l == nil || l.state == nil {
		return nil, false, fmt.Errorf("ledger not initialised")
	}
	return l.state.ContributionGet(user)
}
