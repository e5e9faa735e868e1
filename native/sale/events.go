package sale

import (
	"strconv"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"lavasale/core/types"
)

const (
	// TypeContributed is emitted once per successful contribution.
	TypeContributed = "sale.contributed"
	// TypeRoundAdvanced is emitted when the operator opens a new round.
	TypeRoundAdvanced = "sale.round_advanced"
	// TypeFinalized is emitted when the sale reaches its terminal state.
	TypeFinalized = "sale.finalized"
)

// Contributed is the canonical record of a successful purchase.
type Contributed struct {
	Contributor   [20]byte
	RoundID       uint8
	AmountTokens  uint64
	BonusTokens   uint64
	USDCost       uint64
	PaymentAsset  string
	PaymentAmount uint64
	Referral      *ReferralData
}

func (Contributed) EventType() string { return TypeContributed }

// Event renders the contribution as a generic attribute payload.
func (e Contributed) Event() *types.Event {
	attrs := map[string]string{
		"contributor":   ethcommon.BytesToAddress(e.Contributor[:]).Hex(),
		"roundId":       strconv.FormatUint(uint64(e.RoundID), 10),
		"amountTokens":  strconv.FormatUint(e.AmountTokens, 10),
		"bonusTokens":   strconv.FormatUint(e.BonusTokens, 10),
		"usdCost":       strconv.FormatUint(e.USDCost, 10),
		"paymentAsset":  strings.TrimSpace(e.PaymentAsset),
		"paymentAmount": strconv.FormatUint(e.PaymentAmount, 10),
	}
	if e.Referral != nil {
		attrs["referralCode"] = strings.TrimSpace(e.Referral.Code)
		attrs["referralBonusBp"] = strconv.FormatUint(uint64(e.Referral.BonusPercent), 10)
		attrs["referralType"] = strconv.FormatUint(uint64(e.Referral.RefType), 10)
	}
	return &types.Event{Type: TypeContributed, Attributes: attrs}
}

// RoundAdvanced is emitted when a new round becomes current.
type RoundAdvanced struct {
	RoundID   uint8
	PriceUSD  uint64
	StartTime int64
	EndTime   int64
}

func (RoundAdvanced) EventType() string { return TypeRoundAdvanced }

// Event renders the round advancement as a generic attribute payload.
func (e RoundAdvanced) Event() *types.Event {
	return &types.Event{
		Type: TypeRoundAdvanced,
		Attributes: map[string]string{
			"roundId":   strconv.FormatUint(uint64(e.RoundID), 10),
			"priceUsd":  strconv.FormatUint(e.PriceUSD, 10),
			"startTime": strconv.FormatInt(e.StartTime, 10),
			"endTime":   strconv.FormatInt(e.EndTime, 10),
		},
	}
}

// Finalized is emitted exactly once, when the sale closes.
type Finalized struct {
	FinalRound uint8
}

func (Finalized) EventType() string { return TypeFinalized }

// Event renders the finalisation as a generic attribute payload.
func (e Finalized) Event() *types.Event {
	return &types.Event{
		Type: TypeFinalized,
		Attributes: map[string]string{
			"finalRound": strconv.FormatUint(uint64(e.FinalRound), 10),
		},
	}
}
