// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry indexes AMM pairs by pair address and by token pair.
package registry

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/amm/pair"
)

// Registry is a set of registered pairs. Iteration order is sorted by
// pair address to keep multi-pair processing deterministic.
type Registry struct {
	mu    sync.RWMutex
	pairs []*pair.Pair
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{pairs: make([]*pair.Pair, 0)}
}

// tokenKey identifies a token pair regardless of ordering.
func tokenKey(a, b common.Address) [2]common.Address {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	return [2]common.Address{a, b}
}

// Register adds a pair. The pair address and the token pair must both be
// unused.
func (r *Registry) Register(p *pair.Pair) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := tokenKey(p.Token0().Address(), p.Token1().Address())
	for _, registered := range r.pairs {
		if registered.Address() == p.Address() {
			return fmt.Errorf("pair address %s already registered", p.Address())
		}
		if tokenKey(registered.Token0().Address(), registered.Token1().Address()) == key {
			return fmt.Errorf("token pair %s/%s already registered",
				p.Token0().Address(), p.Token1().Address())
		}
	}

	// sort by address to ensure deterministic iteration
	r.pairs = insertSortedByAddress(r.pairs, p)
	return nil
}

// PairAt returns the pair registered at the given pair address.
func (r *Registry) PairAt(addr common.Address) (*pair.Pair, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.pairs {
		if p.Address() == addr {
			return p, true
		}
	}
	return nil, false
}

// PairFor returns the pair trading the given tokens, in either order.
func (r *Registry) PairFor(tokenA, tokenB common.Address) (*pair.Pair, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := tokenKey(tokenA, tokenB)
	for _, p := range r.pairs {
		if tokenKey(p.Token0().Address(), p.Token1().Address()) == key {
			return p, true
		}
	}
	return nil, false
}

// Pairs returns the registered pairs in address order.
func (r *Registry) Pairs() []*pair.Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*pair.Pair, len(r.pairs))
	copy(out, r.pairs)
	return out
}

func insertSortedByAddress(data []*pair.Pair, p *pair.Pair) []*pair.Pair {
	data = append(data, p)
	sort.Sort(pairArray(data))
	return data
}

type pairArray []*pair.Pair

func (a pairArray) Len() int { return len(a) }

func (a pairArray) Less(i, j int) bool {
	return bytes.Compare(a[i].Address().Bytes(), a[j].Address().Bytes()) < 0
}

func (a pairArray) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
