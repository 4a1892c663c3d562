// Package markprice computes a per-market mark price at a fixed tick from
// a median of up to three inputs, each potentially time-smoothed by an EMA.
package markprice

import (
	"sync"
	"time"
)

const (
	basisTau = 150 * time.Second // 2.5 minutes
	midTau   = 30 * time.Second  // 0.5 minutes
)

// Inputs are collected once per tick per market.
type Inputs struct {
	BestBid     float64
	BestAsk     float64
	LastTrade   *float64
	OraclePrice *float64
	CEXPrices   map[string]float64 // venue -> price
}

// Result is the per-market output of one tick.
type Result struct {
	MarkPrice      float64
	OracleAdjusted *float64
	InternalMedian float64
	CEXMedian      *float64
	UsedFallback   bool
}

type marketState struct {
	basisEMA  *EMA
	midEMA    *EMA
	lastTrade *float64
}

// Calculator holds per-market EMA state across ticks.
type Calculator struct {
	mu         sync.Mutex
	states     map[uint32]*marketState
	basisTau   time.Duration
	midTau     time.Duration
}

func New() *Calculator {
	return &Calculator{
		states:   make(map[uint32]*marketState),
		basisTau: basisTau,
		midTau:   midTau,
	}
}

func (c *Calculator) stateFor(marketID uint32) *marketState {
	st, ok := c.states[marketID]
	if !ok {
		st = &marketState{basisEMA: NewEMA(c.basisTau), midEMA: NewEMA(c.midTau)}
		c.states[marketID] = st
	}
	return st
}

// Compute produces the mark price for one market at one tick. It does not
// check for an empty bid or ask side; the caller is responsible for not
// invoking Compute when BestBidAsk() reported !ok (Service.tick skips such
// markets).
func (c *Calculator) Compute(marketID uint32, in Inputs, now time.Time) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.stateFor(marketID)
	mid := (in.BestBid + in.BestAsk) / 2

	if in.LastTrade != nil {
		st.lastTrade = in.LastTrade
	}
	st.midEMA.Update(mid, now)

	var oracleAdjusted *float64
	if in.OraclePrice != nil {
		basis := mid - *in.OraclePrice
		emaBasis := st.basisEMA.Update(basis, now)
		adjusted := *in.OraclePrice + emaBasis
		oracleAdjusted = &adjusted
	}

	internalPrices := []float64{in.BestBid, in.BestAsk}
	if st.lastTrade != nil {
		internalPrices = append(internalPrices, *st.lastTrade)
	}
	internalMedian := median(internalPrices)

	var cexMedian *float64
	if m, ok := weightedCEXMedian(in.CEXPrices); ok {
		cexMedian = &m
	}

	markPrice, usedFallback := combine(oracleAdjusted, internalMedian, cexMedian, func() (float64, bool) {
		return st.midEMA.Value()
	})

	return Result{
		MarkPrice:      markPrice,
		OracleAdjusted: oracleAdjusted,
		InternalMedian: internalMedian,
		CEXMedian:      cexMedian,
		UsedFallback:   usedFallback,
	}
}

// combine builds the final median-of-medians input list, appending the
// fallback EMA only when exactly two of the three primary inputs are
// present.
func combine(oracleAdjusted *float64, internalMedian float64, cexMedian *float64, fallback func() (float64, bool)) (markPrice float64, usedFallback bool) {
	inputs := make([]float64, 0, 3)
	if oracleAdjusted != nil {
		inputs = append(inputs, *oracleAdjusted)
	}
	inputs = append(inputs, internalMedian)
	if cexMedian != nil {
		inputs = append(inputs, *cexMedian)
	}

	if len(inputs) == 2 {
		if fb, ok := fallback(); ok {
			inputs = append(inputs, fb)
			usedFallback = true
		}
	}

	return median(inputs), usedFallback
}
