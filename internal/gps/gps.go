// Package gps implements the Global Position Store: the per-session,
// per-strategy transactional position ledger.
package gps

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradelayout/strategy-engine/pkg/types"
)

// TransactionStatus is the lifecycle state of one Transaction.
type TransactionStatus string

const (
	TransactionOpen   TransactionStatus = "open"
	TransactionClosed TransactionStatus = "closed"
)

// Transaction is one entry-fill/exit-fill pair within a Position.
type Transaction struct {
	PositionID      string
	OrderID         string
	BrokerOrderID   string
	NodeID          string
	ExecutionID     string
	ExitExecutionID string
	ReEntryNum      int
	PositionNum     int
	Symbol          string
	Exchange        string
	Side            types.Side
	Quantity        decimal.Decimal
	OrderType       types.OrderType
	ProductType     types.ProductType
	EntryPrice      decimal.Decimal
	ExitPrice       decimal.Decimal
	EntryTime       time.Time
	ExitTime        time.Time
	Status          TransactionStatus
	PNL             decimal.Decimal
}

// Position is the GPS ledger entry for one stable position_id (an Entry
// node's VPI). It accumulates one Transaction per entry/exit cycle.
type Position struct {
	PositionID              string
	Status                  string // "open" | "closed"
	PositionNum             int
	ReEntryNum              int
	EntryTime               time.Time
	ExitTime                time.Time
	CloseReason             string
	ActualQuantity          decimal.Decimal
	Quantity                decimal.Decimal
	Multiplier              decimal.Decimal
	EntryPrice              decimal.Decimal
	ExitPrice               decimal.Decimal
	CurrentPrice            decimal.Decimal
	UnrealizedPNL           decimal.Decimal
	RealizedPNL             decimal.Decimal
	PNL                     decimal.Decimal
	Instrument              string
	Symbol                  string
	Exchange                string
	Side                    types.Side
	Strategy                string
	NodeID                  string
	UnderlyingPriceOnEntry  decimal.Decimal
	NodeVariablesSnapshot   map[string]decimal.Decimal
	Transactions            []*Transaction

	// JustOpenedAtTick is the tick timestamp of the most recent AddPosition
	// call. ExitNode compares this against the current tick to defer a
	// same-tick open-then-close to the next tick.
	JustOpenedAtTick time.Time
}

// TradeID formats the canonical trade identifier for the position's
// current re-entry index: "<position_id>" for the first position,
// "<position_id>-r<N>" for re-entries.
func (p *Position) TradeID() string {
	if p.ReEntryNum <= 0 {
		return p.PositionID
	}
	return fmt.Sprintf("%s-r%d", p.PositionID, p.ReEntryNum)
}

// EntryInput carries the fields add_position needs from the caller
// (normally EntryNode, after order fill confirmation).
type EntryInput struct {
	Price                  decimal.Decimal
	Quantity               decimal.Decimal
	Multiplier             decimal.Decimal
	ActualQuantity         decimal.Decimal // optional: quantity*multiplier*scale, precomputed by caller
	Instrument             string
	Symbol                 string
	Exchange               string
	Side                   types.Side
	Strategy               string
	NodeID                 string
	OrderID                string
	BrokerOrderID          string
	ExecutionID            string
	ReEntryNum             int
	UnderlyingPriceOnEntry decimal.Decimal
	NodeVariablesSnapshot  map[string]decimal.Decimal
	OrderType              types.OrderType
	ProductType            types.ProductType
}

// ExitInput carries the fields close_position needs (normally ExitNode,
// after order fill confirmation).
type ExitInput struct {
	Price       decimal.Decimal
	Reason      string
	ExecutionID string
	ReEntryNum  int
}

// ConcurrentOpenPositionError is returned by AddPosition when the target
// position_id already has an open transaction.
type ConcurrentOpenPositionError struct {
	PositionID  string
	PositionNum int
}

func (e *ConcurrentOpenPositionError) Error() string {
	return fmt.Sprintf(
		"position %s already has an open transaction: cannot create position_num %d until previous closes",
		e.PositionID, e.PositionNum,
	)
}

// Store is the Global Position Store. A Store belongs to exactly one
// session and is never shared across sessions or accessed concurrently:
// the session's scheduler is the sole caller (§5 cooperative scheduling
// model), so Store carries no internal locking.
type Store struct {
	logger *zap.Logger

	positions        map[string]*Position
	nodeVariables    map[string]map[string]decimal.Decimal
	positionCounters map[string]int // position_id -> next position_num

	strategyStartTime time.Time
	dayStartTime      time.Time
	currentTickTime   time.Time

	overallRealizedPNL   decimal.Decimal
	overallUnrealizedPNL decimal.Decimal
	overallPNL           decimal.Decimal
}

// NewStore creates an empty Global Position Store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		logger:           logger.Named("gps"),
		positions:        make(map[string]*Position),
		nodeVariables:    make(map[string]map[string]decimal.Decimal),
		positionCounters: make(map[string]int),
	}
}

// SetCurrentTickTime sets the tick time used as the default timestamp
// for operations that omit one explicitly.
func (s *Store) SetCurrentTickTime(t time.Time) {
	s.currentTickTime = t
}

// ResetStrategy wipes positions, counters and node variables, and records
// the strategy's start time. Nothing in this module calls it: cmd/server
// gives each session a fresh Store from NewStore.
func (s *Store) ResetStrategy(tickTime time.Time) {
	s.positions = make(map[string]*Position)
	s.nodeVariables = make(map[string]map[string]decimal.Decimal)
	s.positionCounters = make(map[string]int)
	if tickTime.IsZero() {
		tickTime = s.currentTickTime
	}
	s.strategyStartTime = tickTime
	s.dayStartTime = time.Time{}
}

// ResetDay clears position_counters for a new trading day, leaving
// historical positions and node variables intact.
func (s *Store) ResetDay(tickTime time.Time) {
	if tickTime.IsZero() {
		tickTime = s.currentTickTime
	}
	s.dayStartTime = tickTime
	s.positionCounters = make(map[string]int)
}

// AddPosition opens a new transaction for position_id. Returns
// *ConcurrentOpenPositionError if one is already open.
func (s *Store) AddPosition(positionID string, in EntryInput, tickTime time.Time) error {
	if tickTime.IsZero() {
		tickTime = s.currentTickTime
	}
	if tickTime.IsZero() {
		return fmt.Errorf("gps: no tick time available for position entry")
	}

	if s.positionCounters[positionID] == 0 {
		s.positionCounters[positionID] = 1
	}
	positionNum := s.positionCounters[positionID]

	if s.HasOpenPosition(positionID) {
		return &ConcurrentOpenPositionError{PositionID: positionID, PositionNum: positionNum}
	}

	actualQuantity := in.ActualQuantity
	if actualQuantity.IsZero() {
		actualQuantity = in.Quantity.Mul(in.Multiplier)
	}

	exchange := in.Exchange
	if exchange == "" {
		exchange = types.ExchangeFor(in.Symbol)
	}
	side := in.Side
	if side == "" {
		side = types.SideBuy
	}

	pos, exists := s.positions[positionID]
	if !exists {
		pos = &Position{PositionID: positionID}
		s.positions[positionID] = pos
	}

	txn := &Transaction{
		PositionID:    positionID,
		OrderID:       in.OrderID,
		BrokerOrderID: in.BrokerOrderID,
		NodeID:        in.NodeID,
		ExecutionID:   in.ExecutionID,
		ReEntryNum:    in.ReEntryNum,
		PositionNum:   positionNum,
		Symbol:        in.Symbol,
		Exchange:      exchange,
		Side:          side,
		Quantity:      in.Quantity,
		OrderType:     in.OrderType,
		ProductType:   in.ProductType,
		EntryPrice:    in.Price,
		EntryTime:     tickTime,
		Status:        TransactionOpen,
	}
	pos.Transactions = append(pos.Transactions, txn)
	s.positionCounters[positionID]++

	pos.Status = "open"
	pos.EntryTime = tickTime
	pos.ExitTime = time.Time{}
	pos.CloseReason = ""
	pos.PNL = decimal.Zero
	pos.ActualQuantity = actualQuantity
	pos.Quantity = in.Quantity
	pos.Multiplier = in.Multiplier
	pos.EntryPrice = in.Price
	pos.ExitPrice = decimal.Zero
	pos.CurrentPrice = in.Price
	pos.UnrealizedPNL = decimal.Zero
	pos.RealizedPNL = decimal.Zero
	pos.Instrument = in.Instrument
	pos.Symbol = in.Symbol
	pos.Exchange = exchange
	pos.UnderlyingPriceOnEntry = in.UnderlyingPriceOnEntry
	pos.NodeVariablesSnapshot = in.NodeVariablesSnapshot
	pos.Side = side
	pos.Strategy = in.Strategy
	pos.NodeID = in.NodeID
	pos.ReEntryNum = in.ReEntryNum
	pos.PositionNum = positionNum
	pos.JustOpenedAtTick = tickTime

	s.logger.Info("add_position",
		zap.String("position_id", positionID),
		zap.Int("re_entry_num", in.ReEntryNum),
		zap.Int("txns", len(pos.Transactions)),
	)
	return nil
}

// ClosePosition closes the last open transaction for position_id. It is
// a defensive no-op if there is no open transaction to close.
func (s *Store) ClosePosition(positionID string, out ExitInput, tickTime time.Time) error {
	pos, exists := s.positions[positionID]
	if !exists {
		return nil
	}
	if tickTime.IsZero() {
		tickTime = s.currentTickTime
	}
	if tickTime.IsZero() {
		return fmt.Errorf("gps: no tick time available for position exit")
	}
	if len(pos.Transactions) == 0 {
		return nil
	}

	txn := pos.Transactions[len(pos.Transactions)-1]
	if txn.Status != TransactionOpen {
		return nil
	}

	txn.ExitPrice = out.Price
	txn.ExitExecutionID = out.ExecutionID
	txn.Status = TransactionClosed
	txn.ExitTime = tickTime

	if !txn.EntryPrice.IsZero() && !out.Price.IsZero() && !pos.ActualQuantity.IsZero() {
		if txn.Side == types.SideBuy {
			txn.PNL = out.Price.Sub(txn.EntryPrice).Mul(pos.ActualQuantity)
		} else {
			txn.PNL = txn.EntryPrice.Sub(out.Price).Mul(pos.ActualQuantity)
		}
	}

	s.logger.Info("close_position",
		zap.String("position_id", positionID),
		zap.Int("re_entry_num", txn.ReEntryNum),
		zap.Int("txns", len(pos.Transactions)),
	)

	pos.Status = "closed"
	pos.ExitTime = tickTime
	pos.CloseReason = out.Reason
	pos.ExitPrice = out.Price

	totalPNL := decimal.Zero
	for _, t := range pos.Transactions {
		if t.Status == TransactionClosed {
			totalPNL = totalPNL.Add(t.PNL)
		}
	}
	pos.PNL = totalPNL
	pos.RealizedPNL = totalPNL
	if out.ReEntryNum != 0 {
		pos.ReEntryNum = out.ReEntryNum
	}

	s.logger.Info("position closed",
		zap.String("position_id", positionID),
		zap.String("pnl", totalPNL.String()),
		zap.Int("txns", len(pos.Transactions)),
	)

	s.updateOverallPNL()
	return nil
}

// UpdatePrices refreshes current_price and unrealized_pnl for every open
// position using the LTP store. Lookup order: the position's own symbol,
// then underlyingSymbol as a fallback, then the position's last known
// current price if neither resolves.
func (s *Store) UpdatePrices(ltp map[string]types.LTPEntry, underlyingSymbol string) {
	for _, pos := range s.positions {
		if pos.Status != "open" {
			continue
		}

		var current decimal.Decimal
		if entry, ok := ltp[pos.Symbol]; ok {
			current = entry.LTP
		} else if underlyingSymbol != "" {
			if entry, ok := ltp[underlyingSymbol]; ok {
				current = entry.LTP
			}
		}
		if current.IsZero() {
			current = pos.CurrentPrice
		}
		if current.IsZero() {
			continue
		}

		pos.CurrentPrice = current
		if !pos.EntryPrice.IsZero() && !pos.ActualQuantity.IsZero() {
			if pos.Side == types.SideBuy {
				pos.UnrealizedPNL = current.Sub(pos.EntryPrice).Mul(pos.ActualQuantity)
			} else {
				pos.UnrealizedPNL = pos.EntryPrice.Sub(current).Mul(pos.ActualQuantity)
			}
			pos.PNL = pos.RealizedPNL.Add(pos.UnrealizedPNL)
		}
	}
	s.updateOverallPNL()
}

func (s *Store) updateOverallPNL() {
	realized := decimal.Zero
	unrealized := decimal.Zero
	for _, pos := range s.positions {
		if len(pos.Transactions) == 0 {
			continue
		}
		last := pos.Transactions[len(pos.Transactions)-1]
		if last.Status == TransactionClosed {
			for _, t := range pos.Transactions {
				if t.Status == TransactionClosed {
					realized = realized.Add(t.PNL)
				}
			}
		} else {
			unrealized = unrealized.Add(pos.UnrealizedPNL)
		}
	}
	s.overallRealizedPNL = realized
	s.overallUnrealizedPNL = unrealized
	s.overallPNL = realized.Add(unrealized)
}

// OverallPNL returns the session-wide realized, unrealized and total P&L.
func (s *Store) OverallPNL() (realized, unrealized, overall decimal.Decimal) {
	return s.overallRealizedPNL, s.overallUnrealizedPNL, s.overallPNL
}

// HasOpenPosition reports whether position_id has an open transaction.
func (s *Store) HasOpenPosition(positionID string) bool {
	pos, ok := s.positions[positionID]
	if !ok || len(pos.Transactions) == 0 {
		return false
	}
	return pos.Transactions[len(pos.Transactions)-1].Status == TransactionOpen
}

// GetLatestPositionNum returns the highest position_num issued for
// position_id, or 0 if none exist yet.
func (s *Store) GetLatestPositionNum(positionID string) int {
	n, ok := s.positionCounters[positionID]
	if !ok {
		return 0
	}
	return n - 1
}

// GetPosition returns the position by ID, or nil if unknown.
func (s *Store) GetPosition(positionID string) *Position {
	return s.positions[positionID]
}

// GetOpenPositions returns all positions whose last transaction is open.
func (s *Store) GetOpenPositions() map[string]*Position {
	result := make(map[string]*Position)
	for id, pos := range s.positions {
		if len(pos.Transactions) > 0 && pos.Transactions[len(pos.Transactions)-1].Status == TransactionOpen {
			result[id] = pos
		}
	}
	return result
}

// GetClosedPositions returns all positions whose last transaction is closed.
func (s *Store) GetClosedPositions() map[string]*Position {
	result := make(map[string]*Position)
	for id, pos := range s.positions {
		if len(pos.Transactions) > 0 && pos.Transactions[len(pos.Transactions)-1].Status == TransactionClosed {
			result[id] = pos
		}
	}
	return result
}

// GetAllPositions returns a shallow copy of the full position map.
func (s *Store) GetAllPositions() map[string]*Position {
	result := make(map[string]*Position, len(s.positions))
	for k, v := range s.positions {
		result[k] = v
	}
	return result
}

// SetNodeVariable stores a computed variable under a node's namespace.
func (s *Store) SetNodeVariable(nodeID, name string, value decimal.Decimal) {
	if s.nodeVariables[nodeID] == nil {
		s.nodeVariables[nodeID] = make(map[string]decimal.Decimal)
	}
	s.nodeVariables[nodeID][name] = value
}

// GetNodeVariable looks up a computed variable, returning ok=false if unset.
func (s *Store) GetNodeVariable(nodeID, name string) (decimal.Decimal, bool) {
	vars, ok := s.nodeVariables[nodeID]
	if !ok {
		return decimal.Zero, false
	}
	v, ok := vars[name]
	return v, ok
}

// GetNodeVariables returns a shallow copy of every variable computed for
// nodeID, used to snapshot a node's variables onto a Position at entry time.
func (s *Store) GetNodeVariables(nodeID string) map[string]decimal.Decimal {
	vars, ok := s.nodeVariables[nodeID]
	if !ok {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}
