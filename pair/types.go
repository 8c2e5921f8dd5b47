// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pair implements the state-transition core of a two-asset
// constant-product AMM pair: fee-inclusive swap pricing, proportional
// liquidity-share mint/burn, and a block-weighted UQ112x112 price
// accumulator. All authoritative state lives behind the StateDB
// interface; the Pair value itself carries only wiring.
package pair

import (
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
)

// Fee applied to swap input amounts: 997/1000, i.e. 0.3%.
const (
	FeeNumerator   = 997
	FeeDenominator = 1000
)

// MinimumLiquidity is deducted from the first liquidity mint. It is never
// credited to anyone, so the last burn can still empty the pool, but it
// keeps the first depositor from minting dust-priced shares.
const MinimumLiquidity = 1000

// MaxReserve is the largest balance a reserve slot can represent (2^112 - 1).
var MaxReserve = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 112), 1)

// ZeroAddress is the burn/mint counterparty in share Transfer logs.
var ZeroAddress = common.Address{}

// Errors - pair operations
var (
	ErrIdenticalTokens       = errors.New("pair: token0 and token1 are the same asset")
	ErrZeroPairAddress       = errors.New("pair: pair address must not be zero")
	ErrInvalidReserves       = errors.New("pair: pricing requires both reserves non-zero")
	ErrNoInput               = errors.New("pair: no input balance surplus observed")
	ErrInsufficientLiquidity = errors.New("pair: output amount is zero or would drain the reserve")
	ErrKViolation            = errors.New("pair: constant product invariant violated")
	ErrInsufficientInitial   = errors.New("pair: initial deposit below minimum liquidity")
	ErrZeroLiquidityMinted   = errors.New("pair: deposit mints zero shares")
	ErrZeroLiquidityBurned   = errors.New("pair: burn releases zero of both assets")
	ErrReserveOverflow       = errors.New("pair: balance exceeds 112-bit reserve range")
	ErrNothingToSkim         = errors.New("pair: balances already match reserves")
	ErrReentrant             = errors.New("pair: reentrant call")
)

// Errors - ledger
var (
	ErrInsufficientBalance = errors.New("pair: transfer amount exceeds balance")
	ErrSupplyOverflow      = errors.New("pair: total supply overflow")
)

// StateDB is the narrow state surface pair operations need from the host.
// Snapshot/RevertToSnapshot give every public operation all-or-nothing
// semantics: any failure after partial writes reverts to the entry snapshot.
type StateDB interface {
	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash)
	AddLog(log *types.Log)
	GetBlockNumber() uint64
	Snapshot() int
	RevertToSnapshot(id int)
}

// Token is the capability surface of an external fungible asset. Transfer
// may run arbitrary collaborator code and must be treated as a potential
// reentry point: never trust a balance cached across it.
type Token interface {
	Address() common.Address
	BalanceOf(db StateDB, owner common.Address) *uint256.Int
	Transfer(db StateDB, from, to common.Address, amount *uint256.Int) error
	TotalSupply(db StateDB) *uint256.Int
}
