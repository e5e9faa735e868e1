package sale

import "github.com/holiman/uint256"

// usdScale is 10^USDDecimals, the divisor that collapses the token*price
// product back to a 6 decimal USD amount.
var usdScale = uint256.NewInt(1_000_000)

// pow10 returns 10^n as a checked 256-bit integer. Negative exponents have no
// integer representation and therefore fail with ErrArithmeticOverflow, which
// keeps deeply negative oracle exponents from silently scaling the wrong way.
func pow10(n int32) (*uint256.Int, error) {
	if n < 0 {
		return nil, ErrArithmeticOverflow
	}
	result := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := int32(0); i < n; i++ {
		if _, overflow := result.MulOverflow(result, ten); overflow {
			return nil, ErrArithmeticOverflow
		}
	}
	return result, nil
}

// USDCost prices a token quantity against a round price. Both inputs carry 6
// decimals; the result is a 6 decimal USD amount with any sub-unit remainder
// truncated. The product is formed in 256-bit width before the division.
func USDCost(tokenAmount, priceUSD uint64) (uint64, error) {
	product := new(uint256.Int)
	if _, overflow := product.MulOverflow(uint256.NewInt(tokenAmount), uint256.NewInt(priceUSD)); overflow {
		return 0, ErrArithmeticOverflow
	}
	cost := new(uint256.Int).Div(product, usdScale)
	if !cost.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return cost.Uint64(), nil
}

// NativeAmountForUSD converts a token purchase into the native currency's
// smallest unit using an oracle quote of price * 10^expo (expo typically
// negative). The token*price product keeps 12 decimal digits of headroom so
// cents survive until the native conversion:
//
//	        tokenAmount * priceUSD
//	----------------------------------------  *  10^NativeDecimals
//	oraclePrice * 10^(2*USDDecimals + expo)
//
// Every intermediate is checked in 256-bit width. A result of zero means the
// request is too small to settle and must be rejected by the caller.
func NativeAmountForUSD(tokenAmount, priceUSD uint64, oraclePrice int64, oracleExpo int32) (uint64, error) {
	if oraclePrice <= 0 {
		return 0, ErrOracleUnavailable
	}
	numerator := new(uint256.Int)
	if _, overflow := numerator.MulOverflow(uint256.NewInt(tokenAmount), uint256.NewInt(priceUSD)); overflow {
		return 0, ErrArithmeticOverflow
	}
	scale, err := pow10(int32(2*USDDecimals) + oracleExpo)
	if err != nil {
		return 0, err
	}
	denominator := new(uint256.Int)
	if _, overflow := denominator.MulOverflow(uint256.NewInt(uint64(oraclePrice)), scale); overflow {
		return 0, ErrArithmeticOverflow
	}
	if denominator.IsZero() {
		return 0, ErrArithmeticOverflow
	}
	quotient := new(uint256.Int).Div(numerator, denominator)
	nativeScale, err := pow10(NativeDecimals)
	if err != nil {
		return 0, err
	}
	native := new(uint256.Int)
	if _, overflow := native.MulOverflow(quotient, nativeScale); overflow {
		return 0, ErrArithmeticOverflow
	}
	if !native.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return native.Uint64(), nil
}

// ReferralBonus computes the bonus token quantity for a referral expressed in
// basis points. A nil referral yields zero, handled by the caller.
func ReferralBonus(tokenAmount uint64, bonusPercentBP uint16) (uint64, error) {
	product := new(uint256.Int)
	if _, overflow := product.MulOverflow(uint256.NewInt(tokenAmount), uint256.NewInt(uint64(bonusPercentBP))); overflow {
		return 0, ErrArithmeticOverflow
	}
	bonus := new(uint256.Int).Div(product, uint256.NewInt(BasisPoints))
	if !bonus.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return bonus.Uint64(), nil
}

// checkedAddU64 adds two uint64 values, failing instead of wrapping.
func checkedAddU64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}
