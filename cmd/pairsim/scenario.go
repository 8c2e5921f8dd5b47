// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luxfi/amm/pair"
	"github.com/luxfi/amm/registry"
	"github.com/luxfi/amm/statedb"
)

// Step is one line of a scenario file.
type Step struct {
	Op     string `json:"op"`
	Pair   string `json:"pair,omitempty"`
	Token0 string `json:"token0,omitempty"`
	Token1 string `json:"token1,omitempty"`
	Token  string `json:"token,omitempty"`
	Caller string `json:"caller,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Amount string `json:"amount,omitempty"`
	Block  uint64 `json:"block,omitempty"`
}

// eventRecord is the JSONL rendering of an emitted log.
type eventRecord struct {
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    []string `json:"data"`
	Block   uint64   `json:"block"`
}

var eventNames = map[common.Hash]string{
	pair.TransferTopic: "Transfer",
	pair.SyncTopic:     "Sync",
	pair.MintTopic:     "Mint",
	pair.BurnTopic:     "Burn",
	pair.SwapTopic:     "Swap",
}

// Simulator drives pool operations over a single in-memory state.
type Simulator struct {
	db      *statedb.DB
	pairs   *registry.Registry
	ledgers map[common.Address]*pair.Ledger
	logger  *zap.Logger
}

// NewSimulator returns a simulator with empty state at block 1.
func NewSimulator(logger *zap.Logger) *Simulator {
	db := statedb.New(memdb.New())
	db.SetBlockNumber(1)
	return &Simulator{
		db:      db,
		pairs:   registry.New(),
		ledgers: make(map[common.Address]*pair.Ledger),
		logger:  logger,
	}
}

// DB exposes the underlying state for draining logs after a replay.
func (s *Simulator) DB() *statedb.DB { return s.db }

func (s *Simulator) ledger(token common.Address) *pair.Ledger {
	if l, ok := s.ledgers[token]; ok {
		return l
	}
	l := pair.NewLedger(token)
	s.ledgers[token] = l
	return l
}

func (s *Simulator) pairAt(field string) (*pair.Pair, error) {
	addr, err := parseAddress(field)
	if err != nil {
		return nil, err
	}
	p, ok := s.pairs.PairAt(addr)
	if !ok {
		return nil, fmt.Errorf("unknown pair %s", addr)
	}
	return p, nil
}

// Apply executes one scenario step against the state.
func (s *Simulator) Apply(step Step) error {
	switch step.Op {
	case "block":
		if step.Block <= s.db.GetBlockNumber() {
			return fmt.Errorf("block %d does not advance past %d", step.Block, s.db.GetBlockNumber())
		}
		s.db.SetBlockNumber(step.Block)
		return nil

	case "create":
		addr, err := parseAddress(step.Pair)
		if err != nil {
			return err
		}
		token0, err := parseAddress(step.Token0)
		if err != nil {
			return err
		}
		token1, err := parseAddress(step.Token1)
		if err != nil {
			return err
		}
		p, err := pair.New(addr, s.ledger(token0), s.ledger(token1))
		if err != nil {
			return err
		}
		if err := s.pairs.Register(p); err != nil {
			return err
		}
		// Shares transfer by the pair address like any other token.
		s.ledgers[addr] = p.Shares()
		return nil

	case "fund":
		token, err := parseAddress(step.Token)
		if err != nil {
			return err
		}
		to, err := parseAddress(step.To)
		if err != nil {
			return err
		}
		amount, err := parseAmount(step.Amount)
		if err != nil {
			return err
		}
		return s.ledger(token).Mint(s.db, to, amount)

	case "transfer":
		token, err := parseAddress(step.Token)
		if err != nil {
			return err
		}
		from, err := parseAddress(step.From)
		if err != nil {
			return err
		}
		to, err := parseAddress(step.To)
		if err != nil {
			return err
		}
		amount, err := parseAmount(step.Amount)
		if err != nil {
			return err
		}
		return s.ledger(token).Transfer(s.db, from, to, amount)

	case "mint":
		p, err := s.pairAt(step.Pair)
		if err != nil {
			return err
		}
		caller, to, err := parseCallerTo(step)
		if err != nil {
			return err
		}
		liquidity, err := p.Mint(s.db, caller, to)
		if err != nil {
			return err
		}
		s.logger.Info("mint", zap.String("pair", p.Address().Hex()), zap.String("liquidity", liquidity.Dec()))
		return nil

	case "burn":
		p, err := s.pairAt(step.Pair)
		if err != nil {
			return err
		}
		caller, to, err := parseCallerTo(step)
		if err != nil {
			return err
		}
		amount0, amount1, err := p.Burn(s.db, caller, to)
		if err != nil {
			return err
		}
		s.logger.Info("burn", zap.String("pair", p.Address().Hex()),
			zap.String("amount0", amount0.Dec()), zap.String("amount1", amount1.Dec()))
		return nil

	case "swap0", "swap1":
		p, err := s.pairAt(step.Pair)
		if err != nil {
			return err
		}
		caller, to, err := parseCallerTo(step)
		if err != nil {
			return err
		}
		var out *uint256.Int
		if step.Op == "swap0" {
			out, err = p.Swap0(s.db, caller, to)
		} else {
			out, err = p.Swap1(s.db, caller, to)
		}
		if err != nil {
			return err
		}
		s.logger.Info(step.Op, zap.String("pair", p.Address().Hex()), zap.String("out", out.Dec()))
		return nil

	case "sync":
		p, err := s.pairAt(step.Pair)
		if err != nil {
			return err
		}
		return p.Sync(s.db)

	case "skim":
		p, err := s.pairAt(step.Pair)
		if err != nil {
			return err
		}
		to, err := parseAddress(step.To)
		if err != nil {
			return err
		}
		return p.Skim(s.db, to)

	case "commit":
		return s.db.Commit()

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func parseCallerTo(step Step) (caller, to common.Address, err error) {
	caller, err = parseAddress(step.Caller)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	to = caller
	if step.To != "" {
		to, err = parseAddress(step.To)
		if err != nil {
			return common.Address{}, common.Address{}, err
		}
	}
	return caller, to, nil
}

func parseAddress(field string) (common.Address, error) {
	if !common.IsHexAddress(field) {
		return common.Address{}, fmt.Errorf("invalid address %q", field)
	}
	return common.HexToAddress(field), nil
}

func parseAmount(field string) (*uint256.Int, error) {
	if field == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amount, err := uint256.FromDecimal(field)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", field, err)
	}
	return amount, nil
}

func renderEvent(log *types.Log) eventRecord {
	rec := eventRecord{
		Address: log.Address.Hex(),
		Block:   log.BlockNumber,
	}
	if len(log.Topics) > 0 {
		rec.Name = eventNames[log.Topics[0]]
	}
	for _, topic := range log.Topics {
		rec.Topics = append(rec.Topics, topic.Hex())
	}
	for i := 0; i+32 <= len(log.Data); i += 32 {
		word := new(uint256.Int).SetBytes(log.Data[i : i+32])
		rec.Data = append(rec.Data, word.Dec())
	}
	return rec
}

func runScenario(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input scenario path is required")
	}

	in, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open scenario: %w", err)
	}
	defer in.Close()

	sim := NewSimulator(logger)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	failed := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var step Step
		if err := json.Unmarshal([]byte(text), &step); err != nil {
			return fmt.Errorf("scenario line %d: %w", line, err)
		}
		if err := sim.Apply(step); err != nil {
			if cfg.StopOnError {
				return fmt.Errorf("scenario line %d (%s): %w", line, step.Op, err)
			}
			failed++
			logger.Warn("step failed", zap.Int("line", line), zap.String("op", step.Op), zap.Error(err))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read scenario: %w", err)
	}

	out, err := os.Create(cfg.Out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	writer := bufio.NewWriter(out)
	encoder := json.NewEncoder(writer)
	for _, log := range sim.DB().Logs() {
		if err := encoder.Encode(renderEvent(log)); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	logger.Info("replay done",
		zap.Int("steps", line),
		zap.Int("failed", failed),
		zap.Int("events", len(sim.DB().Logs())),
		zap.String("out", cfg.Out),
	)
	return nil
}
