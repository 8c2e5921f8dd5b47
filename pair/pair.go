// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pair

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Pair is one constant-product pool over two external assets. The pair
// address is simultaneously the pool's vault address and its liquidity
// share token address. Authoritative reserves, accumulators, and share
// balances live in the StateDB; a Pair value holds only the wiring and
// may be freely recreated.
//
// The host runs operations strictly serially, but token Transfer calls
// can reenter the pair before a commit. Every operation therefore works
// from freshly read balances, performs transfers-out before committing,
// validates against the external calls' outcome, and snapshots the
// StateDB on entry so any failure leaves no observable change.
type Pair struct {
	addr   common.Address
	token0 Token
	token1 Token
	shares *Ledger

	// locked latches while an operation is in flight so a token callback
	// cannot reenter and, e.g., double-advance the oracle within a block.
	locked bool
}

// enter latches the pair for the duration of one public operation.
func (p *Pair) enter() error {
	if p.locked {
		return ErrReentrant
	}
	p.locked = true
	return nil
}

func (p *Pair) exit() { p.locked = false }

// New wires a pair at the given address over two distinct asset tokens.
func New(addr common.Address, token0, token1 Token) (*Pair, error) {
	if addr == ZeroAddress {
		return nil, ErrZeroPairAddress
	}
	if token0.Address() == token1.Address() {
		return nil, ErrIdenticalTokens
	}
	return &Pair{
		addr:   addr,
		token0: token0,
		token1: token1,
		shares: NewLedger(addr),
	}, nil
}

// Address returns the pair's own address.
func (p *Pair) Address() common.Address { return p.addr }

// Token0 returns the asset0 collaborator.
func (p *Pair) Token0() Token { return p.token0 }

// Token1 returns the asset1 collaborator.
func (p *Pair) Token1() Token { return p.token1 }

// TotalSupply returns the issued liquidity share supply.
func (p *Pair) TotalSupply(db StateDB) *uint256.Int {
	return p.shares.TotalSupply(db)
}

// BalanceOf returns the liquidity shares held by owner.
func (p *Pair) BalanceOf(db StateDB, owner common.Address) *uint256.Int {
	return p.shares.BalanceOf(db, owner)
}

// Shares exposes the share ledger, e.g. for transferring shares to the
// pair address ahead of a Burn.
func (p *Pair) Shares() *Ledger { return p.shares }

// surplus returns balance - reserve, clamped at zero.
func surplus(balance, reserve *uint256.Int) *uint256.Int {
	if balance.Lt(reserve) {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Sub(balance, reserve)
}

// Mint issues liquidity shares to [to] against the asset surplus deposited
// since the last commit. The first deposit mints sqrt(amount0*amount1)
// minus MinimumLiquidity; later deposits mint the smaller of the two
// reserve-ratio contributions, donating any excess to existing holders.
func (p *Pair) Mint(db StateDB, caller, to common.Address) (*uint256.Int, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.exit()

	snap := db.Snapshot()
	liquidity, err := p.mint(db, caller, to)
	if err != nil {
		db.RevertToSnapshot(snap)
		return nil, err
	}
	return liquidity, nil
}

func (p *Pair) mint(db StateDB, caller, to common.Address) (*uint256.Int, error) {
	rec := p.loadReserves(db)
	balance0 := p.token0.BalanceOf(db, p.addr)
	balance1 := p.token1.BalanceOf(db, p.addr)
	amount0 := surplus(balance0, rec.reserve0)
	amount1 := surplus(balance1, rec.reserve1)

	total := p.shares.TotalSupply(db)
	var liquidity *uint256.Int
	if total.IsZero() {
		liquidity = sqrt(new(uint256.Int).Mul(amount0, amount1))
		if !liquidity.GtUint64(MinimumLiquidity) {
			return nil, ErrInsufficientInitial
		}
		liquidity.SubUint64(liquidity, MinimumLiquidity)
	} else {
		if rec.reserve0.IsZero() || rec.reserve1.IsZero() {
			return nil, ErrInvalidReserves
		}
		share0 := new(uint256.Int).Div(new(uint256.Int).Mul(amount0, total), rec.reserve0)
		share1 := new(uint256.Int).Div(new(uint256.Int).Mul(amount1, total), rec.reserve1)
		liquidity = minInt(share0, share1)
	}
	if liquidity.IsZero() {
		return nil, ErrZeroLiquidityMinted
	}

	if balance0.Gt(MaxReserve) || balance1.Gt(MaxReserve) {
		return nil, ErrReserveOverflow
	}
	if err := p.advanceOracle(db, rec); err != nil {
		return nil, err
	}
	if err := p.shares.Mint(db, to, liquidity); err != nil {
		return nil, err
	}
	p.storeReserves(db, balance0, balance1, db.GetBlockNumber())
	emitSync(db, p.addr, balance0, balance1)
	emitMint(db, p.addr, caller, amount0, amount1)

	return liquidity, nil
}

// Burn redeems every share currently held by the pair address itself
// (the caller transfers shares in first), paying the proportional cut of
// both asset balances to [to]. Rounding always favors remaining holders.
func (p *Pair) Burn(db StateDB, caller, to common.Address) (*uint256.Int, *uint256.Int, error) {
	if err := p.enter(); err != nil {
		return nil, nil, err
	}
	defer p.exit()

	snap := db.Snapshot()
	amount0, amount1, err := p.burn(db, caller, to)
	if err != nil {
		db.RevertToSnapshot(snap)
		return nil, nil, err
	}
	return amount0, amount1, nil
}

func (p *Pair) burn(db StateDB, caller, to common.Address) (*uint256.Int, *uint256.Int, error) {
	rec := p.loadReserves(db)
	balance0 := p.token0.BalanceOf(db, p.addr)
	balance1 := p.token1.BalanceOf(db, p.addr)
	liquidity := p.shares.BalanceOf(db, p.addr)

	total := p.shares.TotalSupply(db)
	if total.IsZero() {
		return nil, nil, ErrZeroLiquidityBurned
	}
	amount0 := new(uint256.Int).Div(new(uint256.Int).Mul(liquidity, balance0), total)
	amount1 := new(uint256.Int).Div(new(uint256.Int).Mul(liquidity, balance1), total)
	if amount0.IsZero() && amount1.IsZero() {
		return nil, nil, ErrZeroLiquidityBurned
	}

	if err := p.shares.Burn(db, p.addr, liquidity); err != nil {
		return nil, nil, err
	}
	if err := p.token0.Transfer(db, p.addr, to, amount0); err != nil {
		return nil, nil, err
	}
	if err := p.token1.Transfer(db, p.addr, to, amount1); err != nil {
		return nil, nil, err
	}

	// Balances re-read after the payouts; the transfers may have run
	// collaborator code.
	balance0 = p.token0.BalanceOf(db, p.addr)
	balance1 = p.token1.BalanceOf(db, p.addr)
	if balance0.Gt(MaxReserve) || balance1.Gt(MaxReserve) {
		return nil, nil, ErrReserveOverflow
	}
	if err := p.advanceOracle(db, rec); err != nil {
		return nil, nil, err
	}
	p.storeReserves(db, balance0, balance1, db.GetBlockNumber())
	emitSync(db, p.addr, balance0, balance1)
	emitBurn(db, p.addr, caller, to, amount0, amount1)

	return amount0, amount1, nil
}

// Swap0 trades asset0 in for asset1 out. The input is inferred from the
// asset0 balance surplus since the last commit.
func (p *Pair) Swap0(db StateDB, caller, to common.Address) (*uint256.Int, error) {
	return p.swapDirectional(db, caller, to, true)
}

// Swap1 trades asset1 in for asset0 out.
func (p *Pair) Swap1(db StateDB, caller, to common.Address) (*uint256.Int, error) {
	return p.swapDirectional(db, caller, to, false)
}

func (p *Pair) swapDirectional(db StateDB, caller, to common.Address, zeroForOne bool) (*uint256.Int, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.exit()

	snap := db.Snapshot()
	amountOut, err := p.swap(db, caller, to, zeroForOne)
	if err != nil {
		db.RevertToSnapshot(snap)
		return nil, err
	}
	return amountOut, nil
}

func (p *Pair) swap(db StateDB, caller, to common.Address, zeroForOne bool) (*uint256.Int, error) {
	rec := p.loadReserves(db)
	tokenIn, tokenOut := p.token0, p.token1
	reserveIn, reserveOut := rec.reserve0, rec.reserve1
	if !zeroForOne {
		tokenIn, tokenOut = p.token1, p.token0
		reserveIn, reserveOut = rec.reserve1, rec.reserve0
	}

	amountIn := surplus(tokenIn.BalanceOf(db, p.addr), reserveIn)
	if amountIn.IsZero() {
		return nil, ErrNoInput
	}
	amountOut, err := GetInputPrice(amountIn, reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}
	if amountOut.IsZero() || !amountOut.Lt(reserveOut) {
		return nil, ErrInsufficientLiquidity
	}

	// Pay out before committing; the transfer is a reentry point.
	if err := tokenOut.Transfer(db, p.addr, to, amountOut); err != nil {
		return nil, err
	}

	balanceIn := tokenIn.BalanceOf(db, p.addr)
	balanceOut := tokenOut.BalanceOf(db, p.addr)

	// Constant-product guard on fresh balances, with the 0.3% fee
	// excluded from the input side. The input amount is recomputed from
	// the post-transfer balance so reentrant deposits are priced in.
	freshIn := surplus(balanceIn, reserveIn)
	thousand := uint256.NewInt(FeeDenominator)
	adjustedIn := new(uint256.Int).Mul(balanceIn, thousand)
	adjustedIn.Sub(adjustedIn, new(uint256.Int).Mul(freshIn, uint256.NewInt(FeeDenominator-FeeNumerator)))
	adjustedOut := new(uint256.Int).Mul(balanceOut, thousand)

	kBefore := new(uint256.Int).Mul(reserveIn, reserveOut)
	kBefore.Mul(kBefore, uint256.NewInt(FeeDenominator*FeeDenominator))
	if new(uint256.Int).Mul(adjustedIn, adjustedOut).Lt(kBefore) {
		return nil, ErrKViolation
	}

	if balanceIn.Gt(MaxReserve) || balanceOut.Gt(MaxReserve) {
		return nil, ErrReserveOverflow
	}
	if err := p.advanceOracle(db, rec); err != nil {
		return nil, err
	}

	balance0, balance1 := balanceIn, balanceOut
	if !zeroForOne {
		balance0, balance1 = balanceOut, balanceIn
	}
	p.storeReserves(db, balance0, balance1, db.GetBlockNumber())
	emitSync(db, p.addr, balance0, balance1)
	emitSwap(db, p.addr, caller, to, tokenIn.Address(), amountIn, amountOut)

	return amountOut, nil
}

// Sync forces the cached reserves to match the actual held balances and
// advances the oracle, with no trade. Calling it again in the same block
// rewrites the same record and contributes no additional oracle weight.
func (p *Pair) Sync(db StateDB) error {
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()

	snap := db.Snapshot()
	if err := p.sync(db); err != nil {
		db.RevertToSnapshot(snap)
		return err
	}
	return nil
}

func (p *Pair) sync(db StateDB) error {
	rec := p.loadReserves(db)
	balance0 := p.token0.BalanceOf(db, p.addr)
	balance1 := p.token1.BalanceOf(db, p.addr)
	if balance0.Gt(MaxReserve) || balance1.Gt(MaxReserve) {
		return ErrReserveOverflow
	}
	if err := p.advanceOracle(db, rec); err != nil {
		return err
	}
	p.storeReserves(db, balance0, balance1, db.GetBlockNumber())
	emitSync(db, p.addr, balance0, balance1)
	return nil
}

// Skim transfers any balance surplus above the cached reserves to [to]
// without touching the reserves. It is the recovery path when donations
// push a balance past the 112-bit reserve range and Sync starts failing.
func (p *Pair) Skim(db StateDB, to common.Address) error {
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()

	snap := db.Snapshot()
	if err := p.skim(db, to); err != nil {
		db.RevertToSnapshot(snap)
		return err
	}
	return nil
}

func (p *Pair) skim(db StateDB, to common.Address) error {
	rec := p.loadReserves(db)
	extra0 := surplus(p.token0.BalanceOf(db, p.addr), rec.reserve0)
	extra1 := surplus(p.token1.BalanceOf(db, p.addr), rec.reserve1)
	if extra0.IsZero() && extra1.IsZero() {
		return ErrNothingToSkim
	}
	if !extra0.IsZero() {
		if err := p.token0.Transfer(db, p.addr, to, extra0); err != nil {
			return err
		}
	}
	if !extra1.IsZero() {
		if err := p.token1.Transfer(db, p.addr, to, extra1); err != nil {
			return err
		}
	}
	return nil
}
