// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pair

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
)

// Event topics (keccak256 of the canonical signatures)
var (
	// Transfer(address indexed from, address indexed to, uint256 value)
	TransferTopic = common.BytesToHash(crypto.Keccak256([]byte("Transfer(address,address,uint256)")))

	// Sync(uint112 reserve0, uint112 reserve1) - emitted on every reserve commit
	SyncTopic = common.BytesToHash(crypto.Keccak256([]byte("Sync(uint112,uint112)")))

	// Mint(address indexed sender, uint256 amount0, uint256 amount1)
	MintTopic = common.BytesToHash(crypto.Keccak256([]byte("Mint(address,uint256,uint256)")))

	// Burn(address indexed sender, address indexed to, uint256 amount0, uint256 amount1)
	BurnTopic = common.BytesToHash(crypto.Keccak256([]byte("Burn(address,address,uint256,uint256)")))

	// Swap(address indexed sender, address indexed to, address indexed assetIn,
	//      uint256 amountIn, uint256 amountOut)
	SwapTopic = common.BytesToHash(crypto.Keccak256([]byte("Swap(address,address,address,uint256,uint256)")))
)

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func wordData(words ...*uint256.Int) []byte {
	data := make([]byte, 0, 32*len(words))
	for _, w := range words {
		b := w.Bytes32()
		data = append(data, b[:]...)
	}
	return data
}

func emitTransfer(db StateDB, token, from, to common.Address, amount *uint256.Int) {
	db.AddLog(&types.Log{
		Address:     token,
		Topics:      []common.Hash{TransferTopic, addressTopic(from), addressTopic(to)},
		Data:        wordData(amount),
		BlockNumber: db.GetBlockNumber(),
	})
}

func emitSync(db StateDB, pool common.Address, reserve0, reserve1 *uint256.Int) {
	db.AddLog(&types.Log{
		Address:     pool,
		Topics:      []common.Hash{SyncTopic},
		Data:        wordData(reserve0, reserve1),
		BlockNumber: db.GetBlockNumber(),
	})
}

func emitMint(db StateDB, pool, sender common.Address, amount0, amount1 *uint256.Int) {
	db.AddLog(&types.Log{
		Address:     pool,
		Topics:      []common.Hash{MintTopic, addressTopic(sender)},
		Data:        wordData(amount0, amount1),
		BlockNumber: db.GetBlockNumber(),
	})
}

func emitBurn(db StateDB, pool, sender, to common.Address, amount0, amount1 *uint256.Int) {
	db.AddLog(&types.Log{
		Address:     pool,
		Topics:      []common.Hash{BurnTopic, addressTopic(sender), addressTopic(to)},
		Data:        wordData(amount0, amount1),
		BlockNumber: db.GetBlockNumber(),
	})
}

func emitSwap(db StateDB, pool, sender, to, assetIn common.Address, amountIn, amountOut *uint256.Int) {
	db.AddLog(&types.Log{
		Address:     pool,
		Topics:      []common.Hash{SwapTopic, addressTopic(sender), addressTopic(to), addressTopic(assetIn)},
		Data:        wordData(amountIn, amountOut),
		BlockNumber: db.GetBlockNumber(),
	})
}
