// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pair

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Storage key prefixes for ledger state
var (
	balanceSlotPrefix = []byte("amm/bal")
	supplySlotPrefix  = []byte("amm/sup")
)

// makeStorageKey creates a storage key from prefix and identifier
func makeStorageKey(prefix []byte, id []byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id)
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// Ledger is a storage-slot fungible token: a total supply scalar plus an
// address-keyed balance mapping under the token's own address. It backs the
// pair's liquidity shares and, in tests and the simulator, the two
// underlying assets.
type Ledger struct {
	token common.Address
}

// NewLedger returns a ledger for the token at the given address.
func NewLedger(token common.Address) *Ledger {
	return &Ledger{token: token}
}

// Address returns the token address this ledger accounts for.
func (l *Ledger) Address() common.Address {
	return l.token
}

func (l *Ledger) balanceSlot(owner common.Address) common.Hash {
	id := make([]byte, 0, 2*common.AddressLength)
	id = append(id, l.token.Bytes()...)
	id = append(id, owner.Bytes()...)
	return makeStorageKey(balanceSlotPrefix, id)
}

func (l *Ledger) supplySlot() common.Hash {
	return makeStorageKey(supplySlotPrefix, l.token.Bytes())
}

func (l *Ledger) readWord(db StateDB, slot common.Hash) *uint256.Int {
	word := db.GetState(l.token, slot)
	return new(uint256.Int).SetBytes(word[:])
}

func (l *Ledger) writeWord(db StateDB, slot common.Hash, value *uint256.Int) {
	db.SetState(l.token, slot, common.Hash(value.Bytes32()))
}

// BalanceOf returns the balance held by owner.
func (l *Ledger) BalanceOf(db StateDB, owner common.Address) *uint256.Int {
	return l.readWord(db, l.balanceSlot(owner))
}

// TotalSupply returns the total issued amount.
func (l *Ledger) TotalSupply(db StateDB) *uint256.Int {
	return l.readWord(db, l.supplySlot())
}

// Transfer moves amount from one holder to another and emits a Transfer log.
func (l *Ledger) Transfer(db StateDB, from, to common.Address, amount *uint256.Int) error {
	fromBal := l.BalanceOf(db, from)
	if fromBal.Lt(amount) {
		return ErrInsufficientBalance
	}

	l.writeWord(db, l.balanceSlot(from), new(uint256.Int).Sub(fromBal, amount))
	toBal := l.BalanceOf(db, to)
	l.writeWord(db, l.balanceSlot(to), new(uint256.Int).Add(toBal, amount))

	emitTransfer(db, l.token, from, to, amount)
	return nil
}

// Mint issues amount to the holder and emits a Transfer from the zero address.
func (l *Ledger) Mint(db StateDB, to common.Address, amount *uint256.Int) error {
	supply, overflow := new(uint256.Int).AddOverflow(l.TotalSupply(db), amount)
	if overflow {
		return ErrSupplyOverflow
	}
	l.writeWord(db, l.supplySlot(), supply)

	bal := l.BalanceOf(db, to)
	l.writeWord(db, l.balanceSlot(to), new(uint256.Int).Add(bal, amount))

	emitTransfer(db, l.token, ZeroAddress, to, amount)
	return nil
}

// Burn destroys amount held by the holder and emits a Transfer to the zero address.
func (l *Ledger) Burn(db StateDB, from common.Address, amount *uint256.Int) error {
	bal := l.BalanceOf(db, from)
	if bal.Lt(amount) {
		return ErrInsufficientBalance
	}

	l.writeWord(db, l.balanceSlot(from), new(uint256.Int).Sub(bal, amount))
	l.writeWord(db, l.supplySlot(), new(uint256.Int).Sub(l.TotalSupply(db), amount))

	emitTransfer(db, l.token, from, ZeroAddress, amount)
	return nil
}
