// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package uq112 implements UQ112x112 unsigned fixed-point arithmetic:
// 112 integer bits and 112 fractional bits packed into a 224-bit value.
// It is the numeric base of the pair price accumulator; a full-range
// reserve (< 2^112) encodes without loss and the encoded product of a
// price and an elapsed-block count stays inside 256 bits.
package uq112

import (
	"errors"

	"github.com/holiman/uint256"
)

// FractionBits is the number of fractional bits in a UQ112x112 value.
const FractionBits = 112

// One is the UQ112x112 representation of 1 (2^112).
var One = new(uint256.Int).Lsh(uint256.NewInt(1), FractionBits)

// MaxInteger is the largest integer representable in the 112 integer bits.
var MaxInteger = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), FractionBits), 1)

var (
	// ErrDivisionByZero is returned when a UQ112x112 quotient has a zero denominator.
	ErrDivisionByZero = errors.New("uq112: division by zero")

	// ErrIntegerOverflow is returned when a value does not fit in 112 integer bits.
	ErrIntegerOverflow = errors.New("uq112: value exceeds 112 integer bits")
)

// Encode converts a plain unsigned integer into UQ112x112 representation.
// The input must fit in 112 bits.
func Encode(x *uint256.Int) (*uint256.Int, error) {
	if x.Gt(MaxInteger) {
		return nil, ErrIntegerOverflow
	}
	return new(uint256.Int).Lsh(x, FractionBits), nil
}

// Div divides a UQ112x112 value by a plain unsigned integer, returning
// a UQ112x112 result. Division truncates toward zero.
func Div(x, y *uint256.Int) (*uint256.Int, error) {
	if y.IsZero() {
		return nil, ErrDivisionByZero
	}
	return new(uint256.Int).Div(x, y), nil
}

// Price returns the UQ112x112 ratio numerator/denominator, the spot
// exchange rate floor(numerator * 2^112 / denominator). Both operands
// must be plain integers within 112 bits.
func Price(numerator, denominator *uint256.Int) (*uint256.Int, error) {
	encoded, err := Encode(numerator)
	if err != nil {
		return nil, err
	}
	return Div(encoded, denominator)
}

// Decode truncates a UQ112x112 value to its integer part.
func Decode(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Rsh(x, FractionBits)
}
