package sale

import (
	"fmt"
	"math/big"
)

// PaymentExecutor moves value between the payer and the treasury. The engine
// only invokes it after every validation and cap check has passed; any failure
// it returns aborts the contribution with no persisted effect.
type PaymentExecutor interface {
	TransferNative(from, to [20]byte, amount uint64) error
	TransferToken(asset string, from, to [20]byte, amount uint64) error
}

// nativeAsset is the balance bucket used for native-currency custody.
const nativeAsset = "NATIVE"

// StatePayments settles transfers against custodial balances kept in the sale
// state. It exists for deployments where the sale engine also custodies the
// funds; on-chain deployments swap in an adapter over the host transfer
// primitives instead.
type StatePayments struct {
	state *State
}

// NewStatePayments constructs a settlement backend over the sale state.
func NewStatePayments(state *State) *StatePayments {
	return &StatePayments{state: state}
}

// TransferNative moves native currency from payer to payee.
func (p *StatePayments) TransferNative(from, to [20]byte, amount uint64) error {
	return p.transfer(nativeAsset, from, to, amount)
}

// TransferToken moves a stable-value token from payer to payee.
func (p *StatePayments) TransferToken(asset string, from, to [20]byte, amount uint64) error {
	if asset == "" {
		return fmt.Errorf("payments: asset required")
	}
	return p.transfer(asset, from, to, amount)
}

// Credit adds funds to an account, used to seed custodial balances.
func (p *StatePayments) Credit(asset string, addr [20]byte, amount uint64) error {
	if p == nil || p.state == nil {
		return fmt.Errorf("payments not initialised")
	}
	if asset == "" {
		asset = nativeAsset
	}
	balance, err := p.state.BalanceGet(asset, addr)
	if err != nil {
		return err
	}
	updated := new(big.Int).Add(balance, new(big.Int).SetUint64(amount))
	return p.state.BalanceSet(asset, addr, updated)
}

// Balance reports the custodial balance for an account.
func (p *StatePayments) Balance(asset string, addr [20]byte) (*big.Int, error) {
	if p == nil || p.state == nil {
		return nil, fmt.Errorf("payments not initialised")
	}
	if asset == "" {
		asset = nativeAsset
	}
	return p.state.BalanceGet(asset, addr)
}

func (p *StatePayments) transfer(asset string, from, to [20]byte, amount uint64) error {
	if p == nil || p.state == nil {
		return fmt.Errorf("payments not initialised")
	}
	if amount == 0 {
		return nil
	}
	value := new(big.Int).SetUint64(amount)
	fromBalance, err := p.state.BalanceGet(asset, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(value) < 0 {
		return ErrInsufficientBalance
	}
	toBalance, err := p.state.BalanceGet(asset, to)
	if err != nil {
		return err
	}
	if err := p.state.BalanceSet(asset, from, new(big.Int).Sub(fromBalance, value)); err != nil {
		return err
	}
	return p.state.BalanceSet(asset, to, new(big.Int).Add(toBalance, value))
}
