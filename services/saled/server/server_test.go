package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"lavasale/native/sale"
	kvstorage "lavasale/storage"
)

var (
	testSecret   = []byte("test-admin-secret")
	testOperator = testAddr(0x0a)
	testTreasury = testAddr(0x0b)
	testUser     = testAddr(0x0c)
)

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func hexAddr(addr [20]byte) string {
	return fmt.Sprintf("0x%040x", addr[19])
}

type serverHarness struct {
	server   *Server
	engine   *sale.Engine
	oracle   *sale.ManualOracle
	payments *sale.StatePayments
	now      int64
}

func newServerHarness(t *testing.T, limiter *RateLimiter) *serverHarness {
	t.Helper()
	state := sale.NewState(kvstorage.NewKVStore(kvstorage.NewMemDB()))
	engine := sale.NewEngine(state, sale.Params{
		Operator:     testOperator,
		StableAssets: []string{"USDC", "USDT"},
	})
	oracle := sale.NewManualOracle()
	payments := sale.NewStatePayments(state)
	engine.SetOracle(oracle)
	engine.SetPayments(payments)

	h := &serverHarness{engine: engine, oracle: oracle, payments: payments, now: time.Now().Unix()}
	engine.SetNowFunc(func() int64 { return h.now })

	_, err := engine.Initialize(testOperator, testTreasury, sale.CreateRoundData{
		PriceUSD:  100_000,
		StartTime: h.now - 60,
		EndTime:   h.now + 3600,
	})
	require.NoError(t, err)

	auth, err := NewAuthenticator(testSecret, "saled-test", "", "operator")
	require.NoError(t, err)
	srv, err := New(Config{ListenAddress: ":0"}, engine, oracle, nil, auth, limiter, slog.Default())
	require.NoError(t, err)
	h.server = srv
	return h
}

func (h *serverHarness) request(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"iss": "saled-test",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestHealthEndpoint(t *testing.T) {
	h := newServerHarness(t, nil)
	rec := h.request(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSaleStatus(t *testing.T) {
	h := newServerHarness(t, nil)
	rec := h.request(t, http.MethodGet, "/v1/sale", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		CurrentRound uint8 `json:"current_round"`
		Finalized    bool  `json:"finalized"`
		Round        struct {
			PriceUSD uint64 `json:"price_usd"`
		} `json:"round"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, uint8(1), payload.CurrentRound)
	require.False(t, payload.Finalized)
	require.Equal(t, uint64(100_000), payload.Round.PriceUSD)
}

func TestContributeStable(t *testing.T) {
	h := newServerHarness(t, nil)
	require.NoError(t, h.payments.Credit("USDC", testUser, 10_000_000))
	rec := h.request(t, http.MethodPost, "/v1/sale/contributions/stable", map[string]any{
		"contributor":  hexAddr(testUser),
		"round_id":     1,
		"token_amount": 1_000_000,
		"asset":        "USDC",
		"referral": map[string]any{
			"code":              "FRIEND",
			"bonus_percent_bps": 500,
		},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var receipt receiptPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	require.Equal(t, uint64(100_000), receipt.USDCost)
	require.Equal(t, uint64(50_000), receipt.BonusTokens)
	require.Equal(t, "USDC", receipt.PaymentAsset)

	totals := h.request(t, http.MethodGet, "/v1/sale/contributions/"+hexAddr(testUser), nil, nil)
	require.Equal(t, http.StatusOK, totals.Code)
	var summary struct {
		TotalContributedUSD  uint64 `json:"total_contributed_usd"`
		TotalTokensPurchased uint64 `json:"total_tokens_purchased"`
	}
	require.NoError(t, json.Unmarshal(totals.Body.Bytes(), &summary))
	require.Equal(t, uint64(100_000), summary.TotalContributedUSD)
	require.Equal(t, uint64(1_050_000), summary.TotalTokensPurchased)
}

func TestContributeStableErrors(t *testing.T) {
	h := newServerHarness(t, nil)
	require.NoError(t, h.payments.Credit("USDC", testUser, 10_000_000))

	badAsset := h.request(t, http.MethodPost, "/v1/sale/contributions/stable", map[string]any{
		"contributor":  hexAddr(testUser),
		"round_id":     1,
		"token_amount": 1_000_000,
		"asset":        "DAI",
	}, nil)
	require.Equal(t, http.StatusBadRequest, badAsset.Code)

	badAddress := h.request(t, http.MethodPost, "/v1/sale/contributions/stable", map[string]any{
		"contributor":  "nope",
		"round_id":     1,
		"token_amount": 1_000_000,
		"asset":        "USDC",
	}, nil)
	require.Equal(t, http.StatusBadRequest, badAddress.Code)

	broke := h.request(t, http.MethodPost, "/v1/sale/contributions/stable", map[string]any{
		"contributor":  hexAddr(testAddr(0x0d)),
		"round_id":     1,
		"token_amount": 1_000_000,
		"asset":        "USDC",
	}, nil)
	require.Equal(t, http.StatusPaymentRequired, broke.Code)

	staleRound := h.request(t, http.MethodPost, "/v1/sale/contributions/stable", map[string]any{
		"contributor":  hexAddr(testUser),
		"round_id":     2,
		"token_amount": 1_000_000,
		"asset":        "USDC",
	}, nil)
	require.Equal(t, http.StatusBadRequest, staleRound.Code)
}

func TestContributeNative(t *testing.T) {
	h := newServerHarness(t, nil)
	require.NoError(t, h.payments.Credit("", testUser, 10_000_000_000))
	h.oracle.Set("SOL", "USD", 15_000_000_000, -8, time.Unix(h.now, 0))
	rec := h.request(t, http.MethodPost, "/v1/sale/contributions/native", map[string]any{
		"contributor":  hexAddr(testUser),
		"round_id":     1,
		"token_amount": 10_000_000_000,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var receipt receiptPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	require.Equal(t, uint64(6_000_000_000), receipt.PaymentAmount)
	require.Equal(t, "SOL", receipt.PaymentAsset)
}

func TestContributeNativeStaleOracle(t *testing.T) {
	h := newServerHarness(t, nil)
	require.NoError(t, h.payments.Credit("", testUser, 10_000_000_000))
	h.oracle.Set("SOL", "USD", 15_000_000_000, -8, time.Unix(h.now-120, 0))
	rec := h.request(t, http.MethodPost, "/v1/sale/contributions/native", map[string]any{
		"contributor":  hexAddr(testUser),
		"round_id":     1,
		"token_amount": 10_000_000_000,
	}, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOraclePriceEndpoint(t *testing.T) {
	h := newServerHarness(t, nil)
	h.oracle.Set("SOL", "USD", 15_000_000_000, -8, time.Unix(h.now, 0))
	rec := h.request(t, http.MethodGet, "/v1/oracle/price", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Base  string `json:"base"`
		Price int64  `json:"price"`
		Expo  int32  `json:"expo"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "SOL", payload.Base)
	require.Equal(t, int64(15_000_000_000), payload.Price)
	require.Equal(t, int32(-8), payload.Expo)
}

func TestAdminAuth(t *testing.T) {
	h := newServerHarness(t, nil)
	body := map[string]any{
		"price_usd":  200_000,
		"start_time": h.now + 3700,
		"end_time":   h.now + 7200,
	}
	unauthed := h.request(t, http.MethodPost, "/admin/rounds", body, nil)
	require.Equal(t, http.StatusUnauthorized, unauthed.Code)

	badToken := h.request(t, http.MethodPost, "/admin/rounds", body, map[string]string{"Authorization": "Bearer garbage"})
	require.Equal(t, http.StatusUnauthorized, badToken.Code)

	authed := h.request(t, http.MethodPost, "/admin/rounds", body, map[string]string{"Authorization": adminToken(t)})
	require.Equal(t, http.StatusOK, authed.Code)
	var round struct {
		ID       uint8  `json:"id"`
		PriceUSD uint64 `json:"price_usd"`
	}
	require.NoError(t, json.Unmarshal(authed.Body.Bytes(), &round))
	require.Equal(t, uint8(2), round.ID)
	require.Equal(t, uint64(200_000), round.PriceUSD)
}

func TestFinalizeLifecycle(t *testing.T) {
	h := newServerHarness(t, nil)
	headers := map[string]string{"Authorization": adminToken(t)}

	early := h.request(t, http.MethodPost, "/admin/finalize", nil, headers)
	require.Equal(t, http.StatusConflict, early.Code)

	for i := 1; i < int(sale.MaxRounds); i++ {
		start := h.now + int64(i)*7200
		rec := h.request(t, http.MethodPost, "/admin/rounds", map[string]any{
			"price_usd":  100_000,
			"start_time": start,
			"end_time":   start + 3600,
		}, headers)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	done := h.request(t, http.MethodPost, "/admin/finalize", nil, headers)
	require.Equal(t, http.StatusNoContent, done.Code)

	repeat := h.request(t, http.MethodPost, "/admin/finalize", nil, headers)
	require.Equal(t, http.StatusConflict, repeat.Code)
}

func TestRateLimiting(t *testing.T) {
	h := newServerHarness(t, NewRateLimiter(60, 2))
	var last int
	for i := 0; i < 4; i++ {
		rec := h.request(t, http.MethodGet, "/v1/sale", nil, nil)
		last = rec.Code
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}
