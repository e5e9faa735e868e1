package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"lavasale/native/sale"
)

// Genesis describes the operator-signed sale deployment parameters. It is
// decoded from TOML and validated before any state is created.
type Genesis struct {
	Operator           string     `toml:"Operator"`
	Treasury           string     `toml:"Treasury"`
	NativeSymbol       string     `toml:"NativeSymbol"`
	QuoteSymbol        string     `toml:"QuoteSymbol"`
	StableAssets       []string   `toml:"StableAssets"`
	MaxQuoteAgeSeconds int64      `toml:"MaxQuoteAgeSeconds"`
	MaxContributionUSD uint64     `toml:"MaxContributionUSD"`
	MaxRounds          uint8      `toml:"MaxRounds"`
	FirstRound         RoundEntry `toml:"FirstRound"`
}

// RoundEntry is the TOML representation of a pricing round.
type RoundEntry struct {
	PriceUSD  uint64 `toml:"PriceUSD"`
	StartTime int64  `toml:"StartTime"`
	EndTime   int64  `toml:"EndTime"`
}

// Load reads and validates a genesis file.
func Load(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis %s: %w", path, err)
	}
	genesis := &Genesis{}
	if err := toml.Unmarshal(raw, genesis); err != nil {
		return nil, fmt.Errorf("decode genesis %s: %w", path, err)
	}
	if err := genesis.Validate(); err != nil {
		return nil, fmt.Errorf("validate genesis %s: %w", path, err)
	}
	return genesis, nil
}

// Validate checks the genesis parameters without touching state.
func (g *Genesis) Validate() error {
	if g == nil {
		return fmt.Errorf("genesis must not be nil")
	}
	if _, err := parseAddress("Operator", g.Operator); err != nil {
		return err
	}
	if _, err := parseAddress("Treasury", g.Treasury); err != nil {
		return err
	}
	assets := trimmedAssets(g.StableAssets)
	if len(assets) != 2 {
		return fmt.Errorf("exactly two stable assets required, got %d", len(assets))
	}
	if assets[0] == assets[1] {
		return fmt.Errorf("stable assets must be distinct")
	}
	if g.MaxQuoteAgeSeconds < 0 {
		return fmt.Errorf("MaxQuoteAgeSeconds must not be negative")
	}
	if g.FirstRound.PriceUSD == 0 {
		return fmt.Errorf("FirstRound.PriceUSD must be positive")
	}
	if g.FirstRound.StartTime >= g.FirstRound.EndTime {
		return fmt.Errorf("FirstRound window start must precede end")
	}
	return nil
}

// Params maps the genesis onto engine parameters.
func (g *Genesis) Params() (sale.Params, error) {
	operator, err := parseAddress("Operator", g.Operator)
	if err != nil {
		return sale.Params{}, err
	}
	params := sale.Params{
		Operator:           operator,
		NativeSymbol:       g.NativeSymbol,
		QuoteSymbol:        g.QuoteSymbol,
		StableAssets:       trimmedAssets(g.StableAssets),
		MaxQuoteAge:        time.Duration(g.MaxQuoteAgeSeconds) * time.Second,
		MaxContributionUSD: g.MaxContributionUSD,
		MaxRounds:          g.MaxRounds,
	}
	return params.Normalise(), nil
}

// TreasuryAddress returns the parsed treasury address.
func (g *Genesis) TreasuryAddress() ([20]byte, error) {
	return parseAddress("Treasury", g.Treasury)
}

// FirstRoundData returns the initial round parameters.
func (g *Genesis) FirstRoundData() sale.CreateRoundData {
	return sale.CreateRoundData{
		PriceUSD:  g.FirstRound.PriceUSD,
		StartTime: g.FirstRound.StartTime,
		EndTime:   g.FirstRound.EndTime,
	}
}

func parseAddress(field, value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if !ethcommon.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("%s must be a 20-byte hex address, got %q", field, value)
	}
	return ethcommon.HexToAddress(trimmed), nil
}

func trimmedAssets(assets []string) []string {
	out := make([]string, 0, len(assets))
	for _, asset := range assets {
		trimmed := strings.TrimSpace(asset)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
