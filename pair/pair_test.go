// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pair

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/amm/statedb"
)

// Test addresses for pair operations
var (
	asset0Addr = commonAddr("0x4444444444444444444444444444444444444444")
	asset1Addr = commonAddr("0x5555555555555555555555555555555555555555")
	poolAddr   = commonAddr("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	alice      = commonAddr("0x6666666666666666666666666666666666666666")
	bob        = commonAddr("0x7777777777777777777777777777777777777777")
)

func commonAddr(hex string) common.Address {
	return common.HexToAddress(hex)
}

func newBarePair(t *testing.T) *Pair {
	t.Helper()
	p, err := New(poolAddr, NewLedger(asset0Addr), NewLedger(asset1Addr))
	require.NoError(t, err)
	return p
}

// deposit transfers fresh asset balances onto the pair address, mimicking
// the push-then-call pattern the operations expect.
func deposit(t *testing.T, db StateDB, p *Pair, amount0, amount1 *uint256.Int) {
	t.Helper()
	if !amount0.IsZero() {
		require.NoError(t, p.token0.(*Ledger).Mint(db, p.Address(), amount0))
	}
	if !amount1.IsZero() {
		require.NoError(t, p.token1.(*Ledger).Mint(db, p.Address(), amount1))
	}
}

// seedPool gives alice an initial position and returns the minted shares.
func seedPool(t *testing.T, db StateDB, p *Pair, amount0, amount1 *uint256.Int) *uint256.Int {
	t.Helper()
	deposit(t, db, p, amount0, amount1)
	liquidity, err := p.Mint(db, alice, alice)
	require.NoError(t, err)
	return liquidity
}

func TestNewValidation(t *testing.T) {
	_, err := New(poolAddr, NewLedger(asset0Addr), NewLedger(asset0Addr))
	require.ErrorIs(t, err, ErrIdenticalTokens)

	_, err = New(ZeroAddress, NewLedger(asset0Addr), NewLedger(asset1Addr))
	require.ErrorIs(t, err, ErrZeroPairAddress)
}

func TestMintInitial(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)

	liquidity := seedPool(t, db, p, e18(1), e18(4))

	// sqrt(1e18 * 4e18) = 2e18, minus the minimum locked amount.
	want := new(uint256.Int).SubUint64(e18(2), MinimumLiquidity)
	require.Equal(t, want, liquidity)
	require.Equal(t, want, p.TotalSupply(db))
	require.Equal(t, want, p.BalanceOf(db, alice))

	r0, r1, last := p.Reserves(db)
	require.Equal(t, e18(1), r0)
	require.Equal(t, e18(4), r1)
	require.Equal(t, uint32(1), last)
}

func TestMintInitialEventOrder(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	deposit(t, db, p, e18(1), e18(4))
	before := len(db.Logs())

	_, err := p.Mint(db, alice, alice)
	require.NoError(t, err)

	logs := db.Logs()[before:]
	require.Len(t, logs, 3)
	require.Equal(t, TransferTopic, logs[0].Topics[0]) // share mint
	require.Equal(t, addressTopic(ZeroAddress), logs[0].Topics[1])
	require.Equal(t, SyncTopic, logs[1].Topics[0])
	require.Equal(t, MintTopic, logs[2].Topics[0])
	require.Equal(t, addressTopic(alice), logs[2].Topics[1])
}

func TestMintInsufficientInitial(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	deposit(t, db, p, uint256.NewInt(1000), uint256.NewInt(1000))
	before := len(db.Logs())

	_, err := p.Mint(db, alice, alice)
	require.ErrorIs(t, err, ErrInsufficientInitial)

	// Aborted with no observable state change.
	require.True(t, p.TotalSupply(db).IsZero())
	r0, r1, _ := p.Reserves(db)
	require.True(t, r0.IsZero() && r1.IsZero())
	require.Len(t, db.Logs()[before:], 0)
}

func TestMintProportional(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	initial := seedPool(t, db, p, e18(1), e18(4))

	// A matching deposit doubles the position.
	deposit(t, db, p, e18(1), e18(4))
	liquidity, err := p.Mint(db, bob, bob)
	require.NoError(t, err)
	require.Equal(t, initial, liquidity)
	require.Equal(t, new(uint256.Int).Lsh(initial, 1), p.TotalSupply(db))
}

func TestMintUnbalancedTakesMinRatio(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	total := seedPool(t, db, p, e18(1), e18(4))

	// Excess asset1 is donated to existing holders, not refunded.
	deposit(t, db, p, e18(1), e18(8))
	liquidity, err := p.Mint(db, bob, bob)
	require.NoError(t, err)

	want := new(uint256.Int).Div(new(uint256.Int).Mul(e18(1), total), e18(1))
	require.Equal(t, want, liquidity)
}

func TestMintZeroLiquidity(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	seedPool(t, db, p, e18(1), e18(4))

	// One-sided dust mints min(ratio, 0) = 0 shares.
	deposit(t, db, p, uint256.NewInt(1), uint256.NewInt(0))
	_, err := p.Mint(db, bob, bob)
	require.ErrorIs(t, err, ErrZeroLiquidityMinted)
}

func TestSwap0ReferenceTrade(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	seedPool(t, db, p, e18(5), e18(10))

	deposit(t, db, p, e18(1), uint256.NewInt(0))
	out, err := p.Swap0(db, bob, bob)
	require.NoError(t, err)
	require.Equal(t, uint256.MustFromDecimal("1662497915624478906"), out)
	require.Equal(t, uint256.MustFromDecimal("1662497915624478906"), p.token1.BalanceOf(db, bob))

	r0, r1, _ := p.Reserves(db)
	require.Equal(t, e18(6), r0)
	require.Equal(t, new(uint256.Int).Sub(e18(10), out), r1)
}

func TestSwap1ReferenceTrade(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	seedPool(t, db, p, e18(5), e18(10))

	deposit(t, db, p, uint256.NewInt(0), e18(1))
	out, err := p.Swap1(db, bob, bob)
	require.NoError(t, err)
	require.Equal(t, uint256.MustFromDecimal("453305446940074565"), out)
	require.Equal(t, out, p.token0.BalanceOf(db, bob))
}

func TestSwapEmitsSwapEvent(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	seedPool(t, db, p, e18(5), e18(10))

	deposit(t, db, p, e18(1), uint256.NewInt(0))
	before := len(db.Logs())
	_, err := p.Swap0(db, alice, bob)
	require.NoError(t, err)

	logs := db.Logs()[before:]
	// Payout transfer, reserve update, swap.
	require.Len(t, logs, 3)
	require.Equal(t, TransferTopic, logs[0].Topics[0])
	require.Equal(t, SyncTopic, logs[1].Topics[0])
	require.Equal(t, SwapTopic, logs[2].Topics[0])
	require.Equal(t, addressTopic(alice), logs[2].Topics[1])
	require.Equal(t, addressTopic(bob), logs[2].Topics[2])
	require.Equal(t, addressTopic(asset0Addr), logs[2].Topics[3])
}

func TestSwapNoInput(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	seedPool(t, db, p, e18(5), e18(10))

	_, err := p.Swap0(db, bob, bob)
	require.ErrorIs(t, err, ErrNoInput)
	_, err = p.Swap1(db, bob, bob)
	require.ErrorIs(t, err, ErrNoInput)
}

func TestSwapDustOutput(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	seedPool(t, db, p, e18(1), e18(1))

	deposit(t, db, p, uint256.NewInt(1), uint256.NewInt(0))
	_, err := p.Swap0(db, bob, bob)
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestSwapOnEmptyPool(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)

	deposit(t, db, p, e18(1), uint256.NewInt(0))
	_, err := p.Swap0(db, bob, bob)
	require.ErrorIs(t, err, ErrInvalidReserves)
}

func TestSwapKNonDecreasing(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	seedPool(t, db, p, e18(5), e18(10))

	for i, in := range []*uint256.Int{
		uint256.NewInt(1e12),
		e18(1),
		e18(3),
		uint256.NewInt(777777777777777),
	} {
		r0, r1, _ := p.Reserves(db)
		kBefore := new(uint256.Int).Mul(r0, r1)

		if i%2 == 0 {
			deposit(t, db, p, in, uint256.NewInt(0))
			_, err := p.Swap0(db, bob, bob)
			require.NoError(t, err)
		} else {
			deposit(t, db, p, uint256.NewInt(0), in)
			_, err := p.Swap1(db, bob, bob)
			require.NoError(t, err)
		}

		r0, r1, _ = p.Reserves(db)
		kAfter := new(uint256.Int).Mul(r0, r1)
		require.False(t, kAfter.Lt(kBefore), "k decreased on iteration %d", i)
	}
}

// taxedToken burns an extra cut from the sender on every transfer, which
// must trip the post-payout constant-product guard.
type taxedToken struct {
	*Ledger
	tax *uint256.Int
}

func (tt *taxedToken) Transfer(db StateDB, from, to common.Address, amount *uint256.Int) error {
	if err := tt.Ledger.Transfer(db, from, to, amount); err != nil {
		return err
	}
	return tt.Ledger.Burn(db, from, tt.tax)
}

func TestSwapKViolationReverts(t *testing.T) {
	db := newTestState()
	leaky := &taxedToken{Ledger: NewLedger(asset1Addr), tax: e18(1)}
	p, err := New(poolAddr, NewLedger(asset0Addr), leaky)
	require.NoError(t, err)

	require.NoError(t, p.token0.(*Ledger).Mint(db, p.Address(), e18(5)))
	require.NoError(t, leaky.Ledger.Mint(db, p.Address(), e18(10)))
	_, err = p.Mint(db, alice, alice)
	require.NoError(t, err)

	require.NoError(t, p.token0.(*Ledger).Mint(db, p.Address(), e18(1)))
	before := len(db.Logs())
	_, err = p.Swap0(db, bob, bob)
	require.ErrorIs(t, err, ErrKViolation)

	// Full revert: the leaked payout never happened.
	require.Len(t, db.Logs()[before:], 0)
	require.True(t, p.token1.BalanceOf(db, bob).IsZero())
	r0, r1, _ := p.Reserves(db)
	require.Equal(t, e18(5), r0)
	require.Equal(t, e18(10), r1)
}

// reentrantToken calls back into the pair mid-payout, once.
type reentrantToken struct {
	*Ledger
	pool     *Pair
	innerErr error
	fired    bool
}

func (rt *reentrantToken) Transfer(db StateDB, from, to common.Address, amount *uint256.Int) error {
	if err := rt.Ledger.Transfer(db, from, to, amount); err != nil {
		return err
	}
	if !rt.fired {
		rt.fired = true
		_, rt.innerErr = rt.pool.Swap1(db, bob, bob)
	}
	return nil
}

func TestSwapReentrancyFailsSafely(t *testing.T) {
	db := newTestState()
	hostile := &reentrantToken{Ledger: NewLedger(asset1Addr)}
	p, err := New(poolAddr, NewLedger(asset0Addr), hostile)
	require.NoError(t, err)
	hostile.pool = p

	require.NoError(t, p.token0.(*Ledger).Mint(db, p.Address(), e18(5)))
	require.NoError(t, hostile.Ledger.Mint(db, p.Address(), e18(10)))
	_, err = p.Mint(db, alice, alice)
	require.NoError(t, err)

	require.NoError(t, p.token0.(*Ledger).Mint(db, p.Address(), e18(1)))
	out, err := p.Swap0(db, bob, bob)
	require.NoError(t, err)
	require.Equal(t, uint256.MustFromDecimal("1662497915624478906"), out)

	// The nested call was attempted and rejected without stalling the
	// outer operation.
	require.True(t, hostile.fired)
	require.ErrorIs(t, hostile.innerErr, ErrReentrant)
}

func TestBurnFull(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	shares := seedPool(t, db, p, e18(3), e18(3))

	require.NoError(t, p.Shares().Transfer(db, alice, p.Address(), shares))
	amount0, amount1, err := p.Burn(db, alice, alice)
	require.NoError(t, err)

	// The last burn empties the pool completely.
	require.Equal(t, e18(3), amount0)
	require.Equal(t, e18(3), amount1)
	require.True(t, p.TotalSupply(db).IsZero())
	r0, r1, _ := p.Reserves(db)
	require.True(t, r0.IsZero() && r1.IsZero())
	require.Equal(t, e18(3), p.token0.BalanceOf(db, alice))
	require.Equal(t, e18(3), p.token1.BalanceOf(db, alice))
}

func TestBurnPartial(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	shares := seedPool(t, db, p, e18(4), e18(4))
	total := p.TotalSupply(db)

	half := new(uint256.Int).Rsh(shares, 1)
	require.NoError(t, p.Shares().Transfer(db, alice, p.Address(), half))
	amount0, amount1, err := p.Burn(db, alice, bob)
	require.NoError(t, err)

	want0 := new(uint256.Int).Div(new(uint256.Int).Mul(half, e18(4)), total)
	require.Equal(t, want0, amount0)
	require.Equal(t, want0, amount1)
	require.Equal(t, amount0, p.token0.BalanceOf(db, bob))
	require.Equal(t, new(uint256.Int).Sub(total, half), p.TotalSupply(db))
}

func TestBurnZero(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	seedPool(t, db, p, e18(3), e18(3))

	// No shares transferred in beforehand.
	_, _, err := p.Burn(db, alice, alice)
	require.ErrorIs(t, err, ErrZeroLiquidityBurned)
}

func TestBurnOnEmptyPool(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)

	_, _, err := p.Burn(db, alice, alice)
	require.ErrorIs(t, err, ErrZeroLiquidityBurned)
}

func TestBurnEventOrder(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	shares := seedPool(t, db, p, e18(3), e18(3))
	require.NoError(t, p.Shares().Transfer(db, alice, p.Address(), shares))
	before := len(db.Logs())

	_, _, err := p.Burn(db, alice, bob)
	require.NoError(t, err)

	logs := db.Logs()[before:]
	// Share burn, two asset payouts, reserve update, burn.
	require.Len(t, logs, 5)
	require.Equal(t, TransferTopic, logs[0].Topics[0])
	require.Equal(t, addressTopic(ZeroAddress), logs[0].Topics[2])
	require.Equal(t, TransferTopic, logs[1].Topics[0])
	require.Equal(t, TransferTopic, logs[2].Topics[0])
	require.Equal(t, SyncTopic, logs[3].Topics[0])
	require.Equal(t, BurnTopic, logs[4].Topics[0])
	require.Equal(t, addressTopic(alice), logs[4].Topics[1])
	require.Equal(t, addressTopic(bob), logs[4].Topics[2])
}

func TestMintThenBurnNeverProfits(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	seedPool(t, db, p, e18(5), e18(10))

	// Awkward amounts force rounding; the withdrawer can never come out
	// ahead of the deposit.
	in0 := uint256.MustFromDecimal("333333333333333333")
	in1 := uint256.MustFromDecimal("777777777777777777")
	deposit(t, db, p, in0, in1)
	liquidity, err := p.Mint(db, bob, bob)
	require.NoError(t, err)

	require.NoError(t, p.Shares().Transfer(db, bob, p.Address(), liquidity))
	out0, out1, err := p.Burn(db, bob, bob)
	require.NoError(t, err)

	require.False(t, out0.Gt(in0), "asset0 refund exceeds deposit")
	require.False(t, out1.Gt(in1), "asset1 refund exceeds deposit")
}

func TestSyncOracleAccumulation(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	seedPool(t, db, p, e18(3), e18(3))
	require.True(t, p.Price0CumulativeLast(db).IsZero())

	one := new(uint256.Int).Lsh(uint256.NewInt(1), 112)

	db.SetBlockNumber(2)
	require.NoError(t, p.Sync(db))
	require.Equal(t, one, p.Price0CumulativeLast(db))
	require.Equal(t, one, p.Price1CumulativeLast(db))
	_, _, last := p.Reserves(db)
	require.Equal(t, uint32(2), last)

	db.SetBlockNumber(3)
	require.NoError(t, p.Sync(db))
	require.Equal(t, new(uint256.Int).Lsh(one, 1), p.Price0CumulativeLast(db))
	_, _, last = p.Reserves(db)
	require.Equal(t, uint32(3), last)
}

func TestSyncSameBlockIdempotent(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	seedPool(t, db, p, e18(3), e18(3))

	db.SetBlockNumber(2)
	require.NoError(t, p.Sync(db))
	acc := p.Price0CumulativeLast(db)
	r0, r1, last := p.Reserves(db)

	require.NoError(t, p.Sync(db))
	require.Equal(t, acc, p.Price0CumulativeLast(db))
	r0b, r1b, lastb := p.Reserves(db)
	require.Equal(t, r0, r0b)
	require.Equal(t, r1, r1b)
	require.Equal(t, last, lastb)
}

func TestOracleOneTickPerBlockAcrossOperations(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	seedPool(t, db, p, e18(5), e18(10))

	db.SetBlockNumber(2)
	deposit(t, db, p, e18(1), uint256.NewInt(0))
	_, err := p.Swap0(db, bob, bob)
	require.NoError(t, err)
	accAfterFirst := p.Price0CumulativeLast(db)

	// Second operation in the same block adds no oracle weight even
	// though reserves moved.
	deposit(t, db, p, uint256.NewInt(0), e18(1))
	_, err = p.Swap1(db, bob, bob)
	require.NoError(t, err)
	require.Equal(t, accAfterFirst, p.Price0CumulativeLast(db))
}

func TestSyncReserveOverflowAndSkimRecovery(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	seedPool(t, db, p, e18(3), e18(3))

	// A donation past the 112-bit range wedges Sync...
	over := new(uint256.Int).AddUint64(MaxReserve, 1)
	require.NoError(t, p.token0.(*Ledger).Mint(db, p.Address(), over))
	require.ErrorIs(t, p.Sync(db), ErrReserveOverflow)

	// ...and Skim recovers by paying the surplus out.
	require.NoError(t, p.Skim(db, bob))
	require.Equal(t, over, p.token0.BalanceOf(db, bob))
	require.NoError(t, p.Sync(db))

	r0, r1, _ := p.Reserves(db)
	require.Equal(t, e18(3), r0)
	require.Equal(t, e18(3), r1)
}

func TestSkimNothing(t *testing.T) {
	db := newTestState()
	p := newBarePair(t)
	seedPool(t, db, p, e18(3), e18(3))

	require.ErrorIs(t, p.Skim(db, bob), ErrNothingToSkim)
}

func TestStateSurvivesCommitReload(t *testing.T) {
	backing := memdb.New()
	db := statedb.New(backing)
	db.SetBlockNumber(1)
	p := newBarePair(t)
	shares := seedPool(t, db, p, e18(5), e18(10))
	require.NoError(t, db.Commit())

	// A fresh overlay over the same backing sees the committed pool.
	reopened := statedb.New(backing)
	reopened.SetBlockNumber(1)
	r0, r1, _ := p.Reserves(reopened)
	require.Equal(t, e18(5), r0)
	require.Equal(t, e18(10), r1)
	require.Equal(t, shares, p.BalanceOf(reopened, alice))
}
