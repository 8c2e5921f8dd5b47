// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pair

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/amm/uq112"
)

// Storage key prefixes for the pool record
var (
	reservesSlotPrefix = []byte("amm/res")
	price0SlotPrefix   = []byte("amm/p0c")
	price1SlotPrefix   = []byte("amm/p1c")
)

// reserves is the unpacked pool record: two 112-bit reserves and the
// 32-bit block index of the last oracle advance, stored packed in a
// single slot as blockNumberLast(32) | reserve1(112) | reserve0(112).
type reserves struct {
	reserve0        *uint256.Int
	reserve1        *uint256.Int
	blockNumberLast uint32
}

func (p *Pair) reservesSlot() common.Hash {
	return makeStorageKey(reservesSlotPrefix, p.addr.Bytes())
}

func (p *Pair) price0Slot() common.Hash {
	return makeStorageKey(price0SlotPrefix, p.addr.Bytes())
}

func (p *Pair) price1Slot() common.Hash {
	return makeStorageKey(price1SlotPrefix, p.addr.Bytes())
}

func (p *Pair) loadReserves(db StateDB) reserves {
	word := db.GetState(p.addr, p.reservesSlot())
	packed := new(uint256.Int).SetBytes(word[:])

	mask := new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 112), 1)
	r0 := new(uint256.Int).And(packed, mask)
	r1 := new(uint256.Int).And(new(uint256.Int).Rsh(packed, 112), mask)
	bn := uint32(new(uint256.Int).Rsh(packed, 224).Uint64())

	return reserves{reserve0: r0, reserve1: r1, blockNumberLast: bn}
}

// storeReserves commits the packed pool record. Callers must have verified
// both balances fit in 112 bits. The block index wraps modulo 2^32, which
// the elapsed-block subtraction tolerates.
func (p *Pair) storeReserves(db StateDB, reserve0, reserve1 *uint256.Int, blockNumber uint64) {
	packed := new(uint256.Int).Lsh(uint256.NewInt(uint64(uint32(blockNumber))), 224)
	packed.Or(packed, new(uint256.Int).Lsh(reserve1, 112))
	packed.Or(packed, reserve0)
	db.SetState(p.addr, p.reservesSlot(), common.Hash(packed.Bytes32()))
}

// advanceOracle accrues one block-weighted tick of the pre-operation spot
// price into both accumulators. Zero elapsed blocks or zero prior reserves
// are steady-state no-ops, not errors. Accumulators wrap modulo 2^256;
// consumers must difference readings with modular subtraction.
func (p *Pair) advanceOracle(db StateDB, rec reserves) error {
	elapsed := uint32(db.GetBlockNumber()) - rec.blockNumberLast
	if elapsed == 0 || rec.reserve0.IsZero() || rec.reserve1.IsZero() {
		return nil
	}

	price0, err := uq112.Price(rec.reserve1, rec.reserve0)
	if err != nil {
		return err
	}
	price1, err := uq112.Price(rec.reserve0, rec.reserve1)
	if err != nil {
		return err
	}

	weight := uint256.NewInt(uint64(elapsed))

	acc0 := p.Price0CumulativeLast(db)
	acc0.Add(acc0, new(uint256.Int).Mul(price0, weight))
	p.writeAccumulator(db, p.price0Slot(), acc0)

	acc1 := p.Price1CumulativeLast(db)
	acc1.Add(acc1, new(uint256.Int).Mul(price1, weight))
	p.writeAccumulator(db, p.price1Slot(), acc1)

	return nil
}

func (p *Pair) writeAccumulator(db StateDB, slot common.Hash, value *uint256.Int) {
	db.SetState(p.addr, slot, common.Hash(value.Bytes32()))
}

func (p *Pair) readAccumulator(db StateDB, slot common.Hash) *uint256.Int {
	word := db.GetState(p.addr, slot)
	return new(uint256.Int).SetBytes(word[:])
}

// Reserves returns the cached reserves and the block index of the last
// oracle advance.
func (p *Pair) Reserves(db StateDB) (reserve0, reserve1 *uint256.Int, blockNumberLast uint32) {
	rec := p.loadReserves(db)
	return rec.reserve0, rec.reserve1, rec.blockNumberLast
}

// Price0CumulativeLast returns the asset0-denominated price accumulator.
func (p *Pair) Price0CumulativeLast(db StateDB) *uint256.Int {
	return p.readAccumulator(db, p.price0Slot())
}

// Price1CumulativeLast returns the asset1-denominated price accumulator.
func (p *Pair) Price1CumulativeLast(db StateDB) *uint256.Int {
	return p.readAccumulator(db, p.price1Slot())
}
