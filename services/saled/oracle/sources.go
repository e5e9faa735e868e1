package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultCoinGeckoEndpoint = "https://api.coingecko.com/api/v3/simple/price"

// BuildSource creates a source from configuration. The type string selects the
// upstream adapter.
func BuildSource(client *http.Client, name, typ, endpoint, apiKey string, assets map[string]string) (Source, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "coingecko":
		return newCoinGeckoSource(client, name, endpoint, apiKey, assets), nil
	default:
		return nil, fmt.Errorf("unknown oracle source type %q", typ)
	}
}

// coinGeckoSource adapts the public CoinGecko simple price API.
type coinGeckoSource struct {
	client   *http.Client
	name     string
	endpoint string
	apiKey   string
	idMap    map[string]string
}

func newCoinGeckoSource(client *http.Client, name, endpoint, apiKey string, idMap map[string]string) *coinGeckoSource {
	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		ep = defaultCoinGeckoEndpoint
	}
	label := strings.TrimSpace(name)
	if label == "" {
		label = "coingecko"
	}
	mapped := make(map[string]string, len(idMap))
	for k, v := range idMap {
		mapped[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return &coinGeckoSource{client: client, name: label, endpoint: ep, apiKey: strings.TrimSpace(apiKey), idMap: mapped}
}

func (s *coinGeckoSource) Name() string { return s.name }

func (s *coinGeckoSource) assetID(symbol string) string {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	if id, ok := s.idMap[key]; ok && id != "" {
		return id
	}
	return strings.ToLower(strings.TrimSpace(symbol))
}

// Fetch resolves the base asset price denominated in the quote currency.
func (s *coinGeckoSource) Fetch(ctx context.Context, base, quote string) (*big.Rat, time.Time, error) {
	if s == nil {
		return nil, time.Time{}, fmt.Errorf("coingecko source not configured")
	}
	id := s.assetID(base)
	vs := strings.ToLower(strings.TrimSpace(quote))
	if id == "" || vs == "" {
		return nil, time.Time{}, fmt.Errorf("coingecko source: pair %s/%s not resolvable", base, quote)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, time.Time{}, err
	}
	values := url.Values{}
	values.Set("ids", id)
	values.Set("vs_currencies", vs)
	values.Set("include_last_updated_at", "true")
	req.URL.RawQuery = values.Encode()
	if s.apiKey != "" {
		req.Header.Set("x-cg-pro-api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, time.Time{}, fmt.Errorf("coingecko source: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	var payload map[string]map[string]json.Number
	if err := decoder.Decode(&payload); err != nil {
		return nil, time.Time{}, fmt.Errorf("coingecko source: decode: %w", err)
	}
	entry, ok := payload[id]
	if !ok {
		return nil, time.Time{}, fmt.Errorf("coingecko source: quote missing for %s", base)
	}
	raw, ok := entry[vs]
	if !ok {
		return nil, time.Time{}, fmt.Errorf("coingecko source: %s price missing for %s", vs, base)
	}
	rate, ok := new(big.Rat).SetString(raw.String())
	if !ok || rate.Sign() <= 0 {
		return nil, time.Time{}, fmt.Errorf("coingecko source: invalid rate %q", raw.String())
	}
	observed := time.Now()
	if rawTs, exists := entry["last_updated_at"]; exists {
		if parsed, err := strconv.ParseInt(rawTs.String(), 10, 64); err == nil && parsed > 0 {
			observed = time.Unix(parsed, 0)
		}
	}
	return rate, observed, nil
}
