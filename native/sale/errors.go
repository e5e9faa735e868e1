package sale

import "errors"

var (
	// ErrNotInitialized indicates the sale configuration record has not been
	// created yet.
	ErrNotInitialized = errors.New("sale: sale not initialised")
	// ErrAlreadyInitialized indicates setup ran against an existing sale.
	ErrAlreadyInitialized = errors.New("sale: sale already initialised")
	// ErrPresaleNotStarted indicates the sale window has not opened.
	ErrPresaleNotStarted = errors.New("sale: presale has not started yet")
	// ErrPresaleEnded indicates the sale has already ended or been finalised.
	ErrPresaleEnded = errors.New("sale: presale has already ended")
	// ErrRoundNotActive indicates the current time falls outside the active
	// round's window.
	ErrRoundNotActive = errors.New("sale: round is not active")
	// ErrInvalidRoundConfig covers stale round references, exhausted round
	// budgets and malformed round parameters.
	ErrInvalidRoundConfig = errors.New("sale: invalid round configuration")
	// ErrInvalidAmount indicates a zero token quantity was requested.
	ErrInvalidAmount = errors.New("sale: token amount must be positive")
	// ErrBelowMinContribution indicates the computed payment rounds to zero.
	ErrBelowMinContribution = errors.New("sale: contribution amount is below minimum")
	// ErrExceedsMaxContribution indicates the per-user USD cap would be
	// breached by the contribution.
	ErrExceedsMaxContribution = errors.New("sale: contribution exceeds maximum per wallet")
	// ErrInvalidPaymentToken indicates the payment asset is not allow-listed.
	ErrInvalidPaymentToken = errors.New("sale: invalid payment token")
	// ErrArithmeticOverflow indicates a checked multiplication, division or
	// addition overflowed its width.
	ErrArithmeticOverflow = errors.New("sale: arithmetic overflow")
	// ErrUnauthorized indicates the caller is not the sale operator.
	ErrUnauthorized = errors.New("sale: unauthorized access")
	// ErrPresaleNotFinalized indicates finalisation ran before the last round.
	ErrPresaleNotFinalized = errors.New("sale: presale is not finalized")
	// ErrPresaleAlreadyFinalized indicates a round advancement after the sale
	// was closed out.
	ErrPresaleAlreadyFinalized = errors.New("sale: presale already finalized")
	// ErrOracleUnavailable indicates no usable oracle quote was supplied.
	ErrOracleUnavailable = errors.New("sale: oracle quote unavailable")
	// ErrOracleStale indicates the oracle quote exceeded the freshness window.
	ErrOracleStale = errors.New("sale: oracle quote stale")
	// ErrInsufficientBalance indicates the payer cannot cover the computed
	// payment amount.
	ErrInsufficientBalance = errors.New("sale: insufficient balance")
)

// Reserved variants. No operation on the current surface raises them; they are
// declared so future hard-cap and refund flows keep stable error identities.
var (
	ErrStageSupplyExhausted    = errors.New("sale: round token supply exhausted")
	ErrHardCapReached          = errors.New("sale: global hard cap reached")
	ErrSoftCapNotReached       = errors.New("sale: soft cap not reached")
	ErrNoContributionsToRefund = errors.New("sale: no contributions to refund")
	ErrRefundsNotAvailable     = errors.New("sale: refunds not available yet")
)
