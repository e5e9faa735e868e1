package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"lavasale/native/sale"
	"lavasale/observability"
	"lavasale/services/saled/storage"
)

type referralPayload struct {
	Code         string `json:"code"`
	BonusPercent uint16 `json:"bonus_percent_bps"`
	RefType      uint8  `json:"ref_type"`
}

type contributePayload struct {
	Contributor string           `json:"contributor"`
	RoundID     uint8            `json:"round_id"`
	TokenAmount uint64           `json:"token_amount"`
	Asset       string           `json:"asset,omitempty"`
	Referral    *referralPayload `json:"referral,omitempty"`
}

type receiptPayload struct {
	ID            string `json:"id,omitempty"`
	Contributor   string `json:"contributor"`
	RoundID       uint8  `json:"round_id"`
	TokenAmount   uint64 `json:"token_amount"`
	BonusTokens   uint64 `json:"bonus_tokens"`
	USDCost       uint64 `json:"usd_cost"`
	PaymentAsset  string `json:"payment_asset"`
	PaymentAmount uint64 `json:"payment_amount"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSaleStatus(w http.ResponseWriter, r *http.Request) {
	cfg, round, err := s.engine.CurrentRound()
	if err != nil {
		s.writeError(w, err)
		return
	}
	observability.Sale().SetCurrentRound(cfg.CurrentRound)
	writeJSON(w, http.StatusOK, map[string]any{
		"operator":      ethcommon.BytesToAddress(cfg.Operator[:]).Hex(),
		"treasury":      ethcommon.BytesToAddress(cfg.Treasury[:]).Hex(),
		"current_round": cfg.CurrentRound,
		"finalized":     cfg.Finalized,
		"round": map[string]any{
			"id":         round.ID,
			"price_usd":  round.PriceUSD,
			"start_time": round.StartTime,
			"end_time":   round.EndTime,
		},
	})
}

func (s *Server) handleContributionTotals(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddressParam(w, chi.URLParam(r, "address"))
	if !ok {
		return
	}
	record, found, err := s.engine.Contribution(addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		record = &sale.UserContribution{User: addr}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contributor":            ethcommon.BytesToAddress(addr[:]).Hex(),
		"total_contributed_usd":  record.TotalContributedUSD,
		"total_tokens_purchased": record.TotalTokensPurchased,
	})
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		http.Error(w, "receipt archive unavailable", http.StatusNotFound)
		return
	}
	record, err := s.archive.Receipt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrReceiptNotFound) {
			http.Error(w, "receipt not found", http.StatusNotFound)
			return
		}
		http.Error(w, "receipt lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleContributeNative(w http.ResponseWriter, r *http.Request) {
	payload, addr, ok := s.decodeContribution(w, r)
	if !ok {
		return
	}
	started := s.nowFn()
	receipt, err := s.engine.BuyWithNative(addr, payload.RoundID, payload.TokenAmount, payload.Referral.toReferral())
	asset := s.engine.Params().NativeSymbol
	s.finishContribution(w, r, receipt, asset, started, err)
}

func (s *Server) handleContributeStable(w http.ResponseWriter, r *http.Request) {
	payload, addr, ok := s.decodeContribution(w, r)
	if !ok {
		return
	}
	started := s.nowFn()
	receipt, err := s.engine.BuyWithStable(addr, payload.RoundID, payload.TokenAmount, payload.Asset, payload.Referral.toReferral())
	s.finishContribution(w, r, receipt, payload.Asset, started, err)
}

func (s *Server) finishContribution(w http.ResponseWriter, r *http.Request, receipt *sale.Receipt, asset string, started time.Time, err error) {
	duration := s.nowFn().Sub(started)
	if err != nil {
		observability.Sale().ObserveContribution(asset, 0, duration, err)
		s.writeError(w, err)
		return
	}
	observability.Sale().ObserveContribution(receipt.PaymentAsset, receipt.USDCost, duration, nil)
	out := receiptPayload{
		Contributor:   ethcommon.BytesToAddress(receipt.Contributor[:]).Hex(),
		RoundID:       receipt.RoundID,
		TokenAmount:   receipt.TokenAmount,
		BonusTokens:   receipt.BonusTokens,
		USDCost:       receipt.USDCost,
		PaymentAsset:  receipt.PaymentAsset,
		PaymentAmount: receipt.PaymentAmount,
	}
	if s.archive != nil {
		id, archiveErr := s.archive.RecordReceipt(r.Context(), receipt, s.nowFn())
		if archiveErr != nil {
			s.logger.Warn("archive receipt failed", "err", archiveErr)
		} else {
			out.ID = id
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOraclePrice(w http.ResponseWriter, r *http.Request) {
	if s.oracle == nil {
		http.Error(w, "oracle unavailable", http.StatusServiceUnavailable)
		return
	}
	base := strings.TrimSpace(r.URL.Query().Get("base"))
	quoteSym := strings.TrimSpace(r.URL.Query().Get("quote"))
	if base == "" {
		base = s.engine.Params().NativeSymbol
	}
	if quoteSym == "" {
		quoteSym = s.engine.Params().QuoteSymbol
	}
	quote, err := s.oracle.GetQuote(base, quoteSym)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"base":      strings.ToUpper(base),
		"quote":     strings.ToUpper(quoteSym),
		"price":     quote.Price,
		"expo":      quote.Expo,
		"timestamp": quote.Timestamp.UTC().Unix(),
		"source":    quote.Source,
	})
}

func (s *Server) handleAdvanceRound(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PriceUSD  uint64 `json:"price_usd"`
		StartTime int64  `json:"start_time"`
		EndTime   int64  `json:"end_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	started := s.nowFn()
	round, err := s.engine.AdvanceRound(s.engine.Params().Operator, sale.CreateRoundData{
		PriceUSD:  req.PriceUSD,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	observability.Sale().ObserveOperation("advance_round", s.nowFn().Sub(started))
	if err != nil {
		s.writeError(w, err)
		return
	}
	observability.Sale().SetCurrentRound(round.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         round.ID,
		"price_usd":  round.PriceUSD,
		"start_time": round.StartTime,
		"end_time":   round.EndTime,
	})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	started := s.nowFn()
	err := s.engine.Finalize(s.engine.Params().Operator)
	observability.Sale().ObserveOperation("finalize", s.nowFn().Sub(started))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decodeContribution(w http.ResponseWriter, r *http.Request) (contributePayload, [20]byte, bool) {
	var payload contributePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return payload, [20]byte{}, false
	}
	addr, ok := parseAddressParam(w, payload.Contributor)
	if !ok {
		return payload, [20]byte{}, false
	}
	return payload, addr, true
}

func (p *referralPayload) toReferral() *sale.ReferralData {
	if p == nil {
		return nil
	}
	return &sale.ReferralData{
		Code:         strings.TrimSpace(p.Code),
		BonusPercent: p.BonusPercent,
		RefType:      p.RefType,
	}
}

func parseAddressParam(w http.ResponseWriter, raw string) ([20]byte, bool) {
	trimmed := strings.TrimSpace(raw)
	if !ethcommon.IsHexAddress(trimmed) {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return [20]byte{}, false
	}
	return ethcommon.HexToAddress(trimmed), true
}

// writeError maps engine sentinel errors onto HTTP statuses: invalid input is
// 400/422, lifecycle conflicts are 409, authorization is 403 and upstream
// availability is 503.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sale.ErrInvalidAmount),
		errors.Is(err, sale.ErrInvalidPaymentToken),
		errors.Is(err, sale.ErrInvalidRoundConfig),
		errors.Is(err, sale.ErrBelowMinContribution):
		status = http.StatusBadRequest
	case errors.Is(err, sale.ErrExceedsMaxContribution):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, sale.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, sale.ErrNotInitialized):
		status = http.StatusServiceUnavailable
	case errors.Is(err, sale.ErrAlreadyInitialized),
		errors.Is(err, sale.ErrPresaleEnded),
		errors.Is(err, sale.ErrPresaleAlreadyFinalized),
		errors.Is(err, sale.ErrPresaleNotFinalized),
		errors.Is(err, sale.ErrRoundNotActive):
		status = http.StatusConflict
	case errors.Is(err, sale.ErrOracleUnavailable), errors.Is(err, sale.ErrOracleStale):
		status = http.StatusServiceUnavailable
	case errors.Is(err, sale.ErrInsufficientBalance):
		status = http.StatusPaymentRequired
	case errors.Is(err, sale.ErrArithmeticOverflow):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
		http.Error(w, "internal error", status)
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
