package sale

import (
	"fmt"
	"time"

	"lavasale/core/events"
)

// Engine orchestrates the sale: it validates lifecycle and round state, prices
// contributions, updates the ledger and instructs the payment executor. Every
// operation runs as one all-or-nothing unit; persisted writes happen only
// after all checks and the payment have succeeded.
type Engine struct {
	state    *State
	ledger   *Ledger
	params   Params
	oracle   PriceOracle
	payments PaymentExecutor
	emitter  events.Emitter
	nowFn    func() int64
}

// NewEngine constructs an engine over the supplied state with normalised
// parameters and a no-op emitter.
func NewEngine(state *State, params Params) *Engine {
	normalised := params.Normalise()
	return &Engine{
		state:   state,
		ledger:  NewLedger(state, normalised.MaxContributionUSD),
		params:  normalised,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetOracle configures the price oracle consulted on native-path buys.
func (e *Engine) SetOracle(oracle PriceOracle) { e.oracle = oracle }

// SetPayments configures the settlement backend.
func (e *Engine) SetPayments(payments PaymentExecutor) { e.payments = payments }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Params returns the normalised parameters the engine runs with.
func (e *Engine) Params() Params { return e.params }

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// Initialize bootstraps the sale: it creates the singleton configuration and
// the first round in one step. Only the configured operator may run it and it
// can succeed at most once.
func (e *Engine) Initialize(caller, treasury [20]byte, first CreateRoundData) (*SaleConfig, error) {
	if e == nil || e.state == nil {
		return nil, fmt.Errorf("sale engine not configured")
	}
	if caller != e.params.Operator {
		return nil, ErrUnauthorized
	}
	if _, ok, err := e.state.SaleConfigGet(); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInitialized
	}
	if err := validateRoundData(first); err != nil {
		return nil, err
	}
	cfg := &SaleConfig{
		Operator:     caller,
		Treasury:     treasury,
		CurrentRound: StartRoundID,
	}
	round := &Round{
		ID:        StartRoundID,
		PriceUSD:  first.PriceUSD,
		StartTime: first.StartTime,
		EndTime:   first.EndTime,
	}
	if err := e.state.RoundPut(round); err != nil {
		return nil, err
	}
	if err := e.state.SaleConfigPut(cfg); err != nil {
		return nil, err
	}
	return cfg.Copy(), nil
}

// AdvanceRound creates the next round and moves the current-round pointer by
// exactly one. It can run at most MaxRounds-1 times after setup.
func (e *Engine) AdvanceRound(caller [20]byte, data CreateRoundData) (*Round, error) {
	if e == nil || e.state == nil {
		return nil, fmt.Errorf("sale engine not configured")
	}
	cfg, ok, err := e.state.SaleConfigGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	if caller != cfg.Operator {
		return nil, ErrUnauthorized
	}
	if cfg.Finalized {
		return nil, ErrPresaleAlreadyFinalized
	}
	if cfg.CurrentRound >= e.params.MaxRounds {
		return nil, fmt.Errorf("round budget of %d exhausted: %w", e.params.MaxRounds, ErrInvalidRoundConfig)
	}
	if err := validateRoundData(data); err != nil {
		return nil, err
	}
	next := cfg.CurrentRound + 1
	round := &Round{
		ID:        next,
		PriceUSD:  data.PriceUSD,
		StartTime: data.StartTime,
		EndTime:   data.EndTime,
	}
	if err := e.state.RoundPut(round); err != nil {
		return nil, err
	}
	cfg.CurrentRound = next
	if err := e.state.SaleConfigPut(cfg); err != nil {
		return nil, err
	}
	e.emit(RoundAdvanced{RoundID: next, PriceUSD: round.PriceUSD, StartTime: round.StartTime, EndTime: round.EndTime})
	return round.Copy(), nil
}

// Finalize closes the sale permanently. It requires the sale to have
// progressed through every configured round.
func (e *Engine) Finalize(caller [20]byte) error {
	if e == nil || e.state == nil {
		return fmt.Errorf("sale engine not configured")
	}
	cfg, ok, err := e.state.SaleConfigGet()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotInitialized
	}
	if caller != cfg.Operator {
		return ErrUnauthorized
	}
	if cfg.Finalized {
		return ErrPresaleEnded
	}
	if cfg.CurrentRound != e.params.MaxRounds {
		return ErrPresaleNotFinalized
	}
	cfg.Finalized = true
	if err := e.state.SaleConfigPut(cfg); err != nil {
		return err
	}
	e.emit(Finalized{FinalRound: cfg.CurrentRound})
	return nil
}

// CurrentRound returns the sale configuration together with the round it
// points at.
func (e *Engine) CurrentRound() (*SaleConfig, *Round, error) {
	if e == nil || e.state == nil {
		return nil, nil, fmt.Errorf("sale engine not configured")
	}
	cfg, ok, err := e.state.SaleConfigGet()
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrNotInitialized
	}
	round, err := e.state.activeRound(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg.Copy(), round.Copy(), nil
}

// Contribution returns the persisted totals for a contributor.
func (e *Engine) Contribution(user [20]byte) (*UserContribution, bool, error) {
	if e == nil || e.ledger == nil {
		return nil, false, fmt.Errorf("sale engine not configured")
	}
	return e.ledger.Totals(user)
}

// BuyWithNative prices a purchase in the native currency via the oracle pair
// and settles it against the treasury. roundID must match the current round;
// a stale reference is rejected before any other work happens.
func (e *Engine) BuyWithNative(user [20]byte, roundID uint8, tokenAmount uint64, referral *ReferralData) (*Receipt, error) {
	if e == nil || e.state == nil {
		return nil, fmt.Errorf("sale engine not configured")
	}
	if e.oracle == nil {
		return nil, ErrOracleUnavailable
	}
	cfg, round, now, err := e.validateBuy(roundID, tokenAmount)
	if err != nil {
		return nil, err
	}
	quote, err := e.oracle.GetQuote(e.params.NativeSymbol, e.params.QuoteSymbol)
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s quote: %w", e.params.NativeSymbol, e.params.QuoteSymbol, err)
	}
	if err := ValidateQuote(quote, time.Unix(now, 0), e.params.MaxQuoteAge); err != nil {
		return nil, err
	}
	usdCost, err := USDCost(tokenAmount, round.PriceUSD)
	if err != nil {
		return nil, err
	}
	nativeAmount, err := NativeAmountForUSD(tokenAmount, round.PriceUSD, quote.Price, quote.Expo)
	if err != nil {
		return nil, err
	}
	if nativeAmount == 0 {
		return nil, ErrBelowMinContribution
	}
	return e.settle(cfg, round, user, tokenAmount, usdCost, e.params.NativeSymbol, nativeAmount, referral, func(treasury [20]byte) error {
		return e.payments.TransferNative(user, treasury, nativeAmount)
	})
}

// BuyWithStable settles a purchase in one of the two allow-listed stable
// tokens. The payment amount equals the USD cost since both carry 6 decimals.
func (e *Engine) BuyWithStable(user [20]byte, roundID uint8, tokenAmount uint64, paymentAsset string, referral *ReferralData) (*Receipt, error) {
	if e == nil || e.state == nil {
		return nil, fmt.Errorf("sale engine not configured")
	}
	cfg, round, _, err := e.validateBuy(roundID, tokenAmount)
	if err != nil {
		return nil, err
	}
	if !e.params.IsStableAsset(paymentAsset) {
		return nil, ErrInvalidPaymentToken
	}
	usdCost, err := USDCost(tokenAmount, round.PriceUSD)
	if err != nil {
		return nil, err
	}
	if usdCost == 0 {
		return nil, ErrBelowMinContribution
	}
	return e.settle(cfg, round, user, tokenAmount, usdCost, paymentAsset, usdCost, referral, func(treasury [20]byte) error {
		return e.payments.TransferToken(paymentAsset, user, treasury, usdCost)
	})
}

// validateBuy runs the ordered precondition checks shared by both payment
// paths and returns the loaded configuration, active round and current time.
func (e *Engine) validateBuy(roundID uint8, tokenAmount uint64) (*SaleConfig, *Round, int64, error) {
	cfg, ok, err := e.state.SaleConfigGet()
	if err != nil {
		return nil, nil, 0, err
	}
	if !ok {
		return nil, nil, 0, ErrNotInitialized
	}
	if cfg.Finalized {
		return nil, nil, 0, ErrPresaleEnded
	}
	if roundID != cfg.CurrentRound {
		return nil, nil, 0, ErrInvalidRoundConfig
	}
	round, err := e.state.activeRound(cfg)
	if err != nil {
		return nil, nil, 0, err
	}
	now := e.now()
	if !round.IsActive(now) {
		return nil, nil, 0, ErrRoundNotActive
	}
	if tokenAmount == 0 {
		return nil, nil, 0, ErrInvalidAmount
	}
	return cfg, round, now, nil
}

// settle runs the tail of a contribution: referral bonus, staged ledger
// update, payment execution and the final commit plus event emission.
func (e *Engine) settle(cfg *SaleConfig, round *Round, user [20]byte, tokenAmount, usdCost uint64, paymentAsset string, paymentAmount uint64, referral *ReferralData, transfer func(treasury [20]byte) error) (*Receipt, error) {
	if e.payments == nil {
		return nil, fmt.Errorf("sale engine: payment executor not configured")
	}
	var bonusTokens uint64
	if referral != nil {
		bonus, err := ReferralBonus(tokenAmount, referral.BonusPercent)
		if err != nil {
			return nil, err
		}
		bonusTokens = bonus
	}
	totalTokens, err := checkedAddU64(tokenAmount, bonusTokens)
	if err != nil {
		return nil, err
	}
	staged, err := e.ledger.Prepare(user, usdCost, totalTokens)
	if err != nil {
		return nil, err
	}
	if err := transfer(cfg.Treasury); err != nil {
		return nil, err
	}
	if err := e.ledger.Commit(staged); err != nil {
		return nil, err
	}
	receipt := &Receipt{
		Contributor:   user,
		RoundID:       round.ID,
		TokenAmount:   tokenAmount,
		BonusTokens:   bonusTokens,
		USDCost:       usdCost,
		PaymentAsset:  paymentAsset,
		PaymentAmount: paymentAmount,
		Referral:      referral.Copy(),
	}
	e.emit(Contributed{
		Contributor:   user,
		RoundID:       round.ID,
		AmountTokens:  tokenAmount,
		BonusTokens:   bonusTokens,
		USDCost:       usdCost,
		PaymentAsset:  paymentAsset,
		PaymentAmount: paymentAmount,
		Referral:      referral.Copy(),
	})
	return receipt, nil
}
