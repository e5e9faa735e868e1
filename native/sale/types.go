package sale

import "time"

// Fixed-point precisions used throughout the sale. Token and USD amounts share
// a 6 decimal scale; the native settlement currency uses 9 decimals (smallest
// unit).
const (
	USDDecimals    = 6
	TokenDecimals  = 6
	NativeDecimals = 9
)

const (
	// MaxRounds bounds how many pricing rounds the sale may ever open.
	MaxRounds uint8 = 10
	// StartRoundID is the identifier assigned to the round created at setup.
	StartRoundID uint8 = 1
	// BasisPoints is the denominator for referral bonus percentages.
	BasisPoints uint64 = 10_000
)

// DefaultMaxContributionUSD caps the lifetime spend of a single contributor:
// $50,000 expressed at 6 decimals.
const DefaultMaxContributionUSD uint64 = 50_000 * 1_000_000

// DefaultMaxQuoteAge bounds how old an oracle quote may be before native-path
// contributions are refused.
const DefaultMaxQuoteAge = 30 * time.Second

// SaleConfig is the singleton sale record. It is created once at setup and
// mutated only by round advancement and finalisation.
type SaleConfig struct {
	Operator     [20]byte
	Treasury     [20]byte
	CurrentRound uint8
	Finalized    bool
}

// Copy returns a value copy so callers cannot mutate cached state.
func (c *SaleConfig) Copy() *SaleConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Round is a time-boxed pricing tier. Rounds are immutable once created and
// their identifiers form a contiguous 1-based sequence.
type Round struct {
	ID        uint8
	PriceUSD  uint64
	StartTime int64
	EndTime   int64
}

// IsActive reports whether now falls inside the round window. Both boundaries
// are inclusive.
func (r *Round) IsActive(now int64) bool {
	if r == nil {
		return false
	}
	return now >= r.StartTime && now <= r.EndTime
}

// Copy returns a value copy of the round.
func (r *Round) Copy() *Round {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// CreateRoundData carries the parameters for a new round.
type CreateRoundData struct {
	PriceUSD  uint64
	StartTime int64
	EndTime   int64
}

// ReferralData is supplied per contribution and never persisted. The code and
// type are informational; only the bonus percentage feeds the pricing path.
type ReferralData struct {
	Code         string
	BonusPercent uint16
	RefType      uint8
}

// Copy returns a value copy of the referral payload.
func (r *ReferralData) Copy() *ReferralData {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// UserContribution tracks the running totals for one contributor. Both fields
// are monotonically non-decreasing across the lifetime of the record.
type UserContribution struct {
	User                 [20]byte
	TotalContributedUSD  uint64
	TotalTokensPurchased uint64
}

// Copy returns a value copy of the contribution record.
func (u *UserContribution) Copy() *UserContribution {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

// Receipt summarises a successful contribution as returned to the caller. The
// payment amount is denominated in the payment asset's smallest unit and must
// be collected by the external settlement layer.
type Receipt struct {
	Contributor   [20]byte
	RoundID       uint8
	TokenAmount   uint64
	BonusTokens   uint64
	USDCost       uint64
	PaymentAsset  string
	PaymentAmount uint64
	Referral      *ReferralData
}
