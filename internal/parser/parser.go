// Package parser decodes one line-delimited order-status record into a
// ValidatedOrder, enforcing numeric bounds and an optional coin allow-list.
// It owns its own throughput/error counters and a bounded diagnostic ring,
// following the predecessor mempool's ClassifyRaw style of tolerant,
// schema-drift-aware decoding.
package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

const diagnosticRingCapacity = 64

type Config struct {
	MaxPrice      float64
	MaxSize       float64
	MaxCoinLength int
	// AllowList, when non-empty, restricts accepted coins. Empty means
	// every coin is accepted.
	AllowList map[string]bool
}

func DefaultConfig() Config {
	return Config{
		MaxPrice:      10_000_000.0,
		MaxSize:       1_000_000.0,
		MaxCoinLength: 20,
	}
}

// Counters are the atomically-updated throughput/error counters exposed for
// diagnostics and metrics.
type Counters struct {
	Total              uint64
	ParseFailures      uint64
	ValidationFailures uint64
}

type Parser struct {
	cfg Config

	total              atomic.Uint64
	parseFailures      atomic.Uint64
	validationFailures atomic.Uint64

	diagnostics *ring
}

func New(cfg Config) *Parser {
	return &Parser{
		cfg:         cfg,
		diagnostics: newRing(diagnosticRingCapacity),
	}
}

func (p *Parser) Counters() Counters {
	return Counters{
		Total:              p.total.Load(),
		ParseFailures:      p.parseFailures.Load(),
		ValidationFailures: p.validationFailures.Load(),
	}
}

// Diagnostics returns the most recent parse/validation failures, oldest
// first.
func (p *Parser) Diagnostics() []Diagnostic {
	return p.diagnostics.snapshot()
}

type wireOrder struct {
	OID              uint64          `json:"oid"`
	Coin             string          `json:"coin"`
	Side             string          `json:"side"`
	LimitPx          decimal.Decimal `json:"limitPx"`
	Sz               decimal.Decimal `json:"sz"`
	IsTrigger        bool            `json:"isTrigger"`
	TriggerCondition string          `json:"triggerCondition"`
	Timestamp        uint64          `json:"timestamp"`
}

type wireLine struct {
	Order  wireOrder `json:"order"`
	Status string    `json:"status"`
	User   string    `json:"user"`
}

// Parse decodes and validates one line. It never returns both a
// ValidatedOrder and an error.
func (p *Parser) Parse(line []byte) (ValidatedOrder, error) {
	p.total.Add(1)

	var raw wireLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return p.parseFail(line, fmt.Sprintf("invalid json: %v", err))
	}

	side, ok := sideFromWire(raw.Order.Side)
	if !ok {
		return p.parseFail(line, fmt.Sprintf("unknown side %q", raw.Order.Side))
	}

	price, _ := raw.Order.LimitPx.Float64()
	size, _ := raw.Order.Sz.Float64()

	if err := p.validateNumeric(price, "price"); err != nil {
		return p.validationFail(line, err.Error())
	}
	if err := p.validateNumeric(size, "size"); err != nil {
		return p.validationFail(line, err.Error())
	}
	if price > p.cfg.MaxPrice {
		return p.validationFail(line, fmt.Sprintf("price %v exceeds max %v", price, p.cfg.MaxPrice))
	}
	if size > p.cfg.MaxSize {
		return p.validationFail(line, fmt.Sprintf("size %v exceeds max %v", size, p.cfg.MaxSize))
	}

	maxCoinLen := p.cfg.MaxCoinLength
	if maxCoinLen <= 0 {
		maxCoinLen = 20
	}
	if raw.Order.Coin == "" || len(raw.Order.Coin) > maxCoinLen {
		return p.validationFail(line, fmt.Sprintf("invalid coin length %q", raw.Order.Coin))
	}
	if len(p.cfg.AllowList) > 0 && !p.cfg.AllowList[raw.Order.Coin] {
		return p.validationFail(line, fmt.Sprintf("coin %q not in allow-list", raw.Order.Coin))
	}

	order := ValidatedOrder{
		OrderID:          raw.Order.OID,
		User:             raw.User,
		Coin:             raw.Order.Coin,
		Side:             side,
		Price:            price,
		Size:             size,
		Status:           classifyStatus(raw.Status),
		IsTrigger:        raw.Order.IsTrigger,
		TriggerCondition: raw.Order.TriggerCondition,
		TimestampMillis:  raw.Order.Timestamp,
	}
	return order, nil
}

func (p *Parser) validateNumeric(v float64, field string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s is not finite", field)
	}
	if v <= 0 {
		return fmt.Errorf("%s must be positive", field)
	}
	return nil
}

func classifyStatus(raw string) OrderStatus {
	switch raw {
	case "open":
		return OrderStatus{Kind: StatusOpen}
	case "filled":
		return OrderStatus{Kind: StatusFilled}
	case "cancelled", "canceled":
		return OrderStatus{Kind: StatusCancelled}
	default:
		if strings.Contains(raw, "Rejected") {
			return OrderStatus{Kind: StatusRejected, Reason: raw}
		}
		return OrderStatus{Kind: StatusUnknown, Raw: raw}
	}
}

func (p *Parser) parseFail(line []byte, reason string) (ValidatedOrder, error) {
	p.parseFailures.Add(1)
	p.diagnostics.push(Diagnostic{Err: reason, Sample: sample(line), At: time.Now()})
	return ValidatedOrder{}, &ParseError{Reason: reason, Line: string(line)}
}

func (p *Parser) validationFail(line []byte, reason string) (ValidatedOrder, error) {
	p.validationFailures.Add(1)
	p.diagnostics.push(Diagnostic{Err: reason, Sample: sample(line), At: time.Now()})
	return ValidatedOrder{}, &ValidationError{Reason: reason, Line: string(line)}
}

func sample(line []byte) string {
	const maxSample = 200
	if len(line) > maxSample {
		return string(line[:maxSample])
	}
	return string(line)
}
