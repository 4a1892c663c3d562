// Package ingest pulls lines from an external byte source, routes them
// through the parser, registry, and circuit breakers into the order book
// or the stop-order registry, and publishes MarketUpdate events on the
// bus.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/severussssss/hp-node-stream/internal/breaker"
	"github.com/severussssss/hp-node-stream/internal/bus"
	"github.com/severussssss/hp-node-stream/internal/orderbook"
	"github.com/severussssss/hp-node-stream/internal/parser"
	"github.com/severussssss/hp-node-stream/internal/registry"
	"github.com/severussssss/hp-node-stream/internal/stoporder"
	"github.com/severussssss/hp-node-stream/pkg/clock"
)

const (
	throughputLogEvery = 1000
	errorLogSampleRate = 100 // log 1 in N parse/validation failures
)

// recorder is the subset of internal/metrics.Registry the ingest loop
// reports to, kept narrow and satisfied structurally so this package never
// imports internal/metrics.
type recorder interface {
	RecordParsed(outcome string)
	RecordBookUpdate(market string)
}

// Loop is the single long-running task that drains the line source.
type Loop struct {
	parser   *parser.Parser
	registry *registry.Registry
	breakers *breaker.Set
	books    *BookSet
	stops    *stoporder.Registry
	updates  *bus.Bus[MarketUpdate]
	clock    clock.Clock
	logger   *zap.SugaredLogger
	metrics  recorder

	successCount atomic.Uint64
	errorCount   atomic.Uint64
}

func NewLoop(p *parser.Parser, reg *registry.Registry, breakers *breaker.Set, books *BookSet, stops *stoporder.Registry, updates *bus.Bus[MarketUpdate], c clock.Clock, logger *zap.SugaredLogger) *Loop {
	return &Loop{
		parser:   p,
		registry: reg,
		breakers: breakers,
		books:    books,
		stops:    stops,
		updates:  updates,
		clock:    c,
		logger:   logger,
	}
}

// SetMetrics attaches a metrics recorder. Optional; nil (the default) means
// no metrics are reported.
func (l *Loop) SetMetrics(m recorder) { l.metrics = m }

// Run drains r line by line until it ends or ctx is cancelled. The file
// watcher / process-stdin wiring that produces r is peripheral; the loop
// itself only needs an io.Reader.
func (l *Loop) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)

	statsTicker := l.clock.NewTicker(60 * time.Second)
	defer statsTicker.Stop()

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-statsTicker.C():
			l.logStats()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue // trailing blank lines are skipped
		}
		l.processLine(line)
	}
	return scanner.Err()
}

func (l *Loop) logStats() {
	if l.logger == nil {
		return
	}
	counters := l.parser.Counters()
	l.logger.Infow("ingest_periodic_stats",
		"total", counters.Total,
		"parse_failures", counters.ParseFailures,
		"validation_failures", counters.ValidationFailures,
		"successes", l.successCount.Load(),
	)
}

func (l *Loop) processLine(line []byte) {
	order, err := l.parser.Parse(line)
	if err != nil {
		l.recordError(err)
		l.breakers.RecordValidationFailure(err.Error())
		if l.metrics != nil {
			l.metrics.RecordParsed("failure")
		}
		return
	}
	if l.metrics != nil {
		l.metrics.RecordParsed("success")
	}

	marketID, ok := l.registry.LookupByCoin(order.Coin)
	if !ok {
		l.breakers.RecordValidationFailure(fmt.Sprintf("unknown coin %q", order.Coin))
		return
	}

	if !l.breakers.Allow(marketID) {
		return // market breaker open, not yet eligible for reset
	}

	symbol, _ := l.registry.LookupByID(marketID)
	book := l.books.Ensure(marketID, symbol)
	side := bookSide(order.Side)

	if order.IsTrigger {
		l.stops.Add(marketID, stoporder.StopOrder{
			ID:               order.OrderID,
			User:             order.User,
			Coin:             order.Coin,
			Side:             side,
			Price:            order.Price,
			Size:             order.Size,
			TriggerCondition: order.TriggerCondition,
			Timestamp:        order.TimestampMillis,
		})
		l.breakers.RecordSuccess(marketID)
		return
	}

	var delta orderbook.Delta
	var mutated bool
	switch order.Status.Kind {
	case parser.StatusOpen:
		delta, mutated = book.Add(orderbook.Order{ID: order.OrderID, Price: order.Price, Size: order.Size}, side)
	case parser.StatusFilled, parser.StatusCancelled:
		delta, mutated = book.Remove(order.OrderID, order.Price, side)
	default:
		return // unknown/rejected statuses are a no-op on the book
	}

	if !mutated {
		return // capacity back-pressure drop, or unknown order id on remove
	}

	l.breakers.RecordSuccess(marketID)
	if l.metrics != nil {
		l.metrics.RecordBookUpdate(strconv.FormatUint(uint64(marketID), 10))
	}

	update := MarketUpdate{
		MarketID:       marketID,
		Symbol:         symbol,
		Sequence:       book.Sequence(),
		TimestampNanos: l.clock.Now().UnixNano(),
		Deltas:         []orderbook.Delta{delta},
	}
	l.updates.Publish(update)

	if n := l.successCount.Add(1); l.logger != nil && n%throughputLogEvery == 0 {
		l.logger.Infow("ingest_throughput", "processed", n)
	}
}

func (l *Loop) recordError(err error) {
	n := l.errorCount.Add(1)
	if l.logger != nil && n%errorLogSampleRate == 0 {
		l.logger.Warnw("ingest_parse_error", "err", err, "count", n)
	}
}

func bookSide(s parser.Side) orderbook.Side {
	if s == parser.Ask {
		return orderbook.Ask
	}
	return orderbook.Bid
}
