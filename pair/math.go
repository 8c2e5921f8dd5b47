// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pair

import (
	"github.com/holiman/uint256"
)

// GetInputPrice prices an exact-input trade against the given reserves with
// the 997/1000 fee folded in:
//
//	amountOut = floor(amountIn*997*reserveOut / (reserveIn*1000 + amountIn*997))
//
// Pure function, no state access. Operands are expected within the 112-bit
// reserve range, which keeps every intermediate inside 256 bits.
func GetInputPrice(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInvalidReserves
	}

	amountInWithFee := new(uint256.Int).Mul(amountIn, uint256.NewInt(FeeNumerator))
	numerator := new(uint256.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(uint256.Int).Mul(reserveIn, uint256.NewInt(FeeDenominator))
	denominator.Add(denominator, amountInWithFee)

	return new(uint256.Int).Div(numerator, denominator), nil
}

// sqrt returns the integer square root, rounded down.
func sqrt(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sqrt(x)
}

// minInt returns the smaller of a and b.
func minInt(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a
	}
	return b
}
