package stoporder

import "github.com/severussssss/hp-node-stream/internal/orderbook"

// StopOrder is a resting conditional order, kept outside the book until its
// trigger price is crossed.
type StopOrder struct {
	ID               uint64
	User             string
	Coin             string
	Side             orderbook.Side
	Price            float64
	Size             float64
	TriggerCondition string
	Timestamp        uint64
}

// RiskLevel buckets a ranked order's risk_score for operator display.
type RiskLevel string

const (
	RiskHigh    RiskLevel = "HIGH"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskLow     RiskLevel = "LOW"
	RiskUnknown RiskLevel = "UNKNOWN"
)

func riskLevelFor(score float64) RiskLevel {
	switch {
	case score >= 80:
		return RiskHigh
	case score >= 50:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Ranked is a StopOrder annotated with its derived risk fields.
type Ranked struct {
	Order          StopOrder
	DistanceBps    float64
	SlippageBps    float64
	DistanceScore  float64
	SlippageScore  float64
	RiskScore      float64
	RiskLevel      RiskLevel
	NotionalValue  float64
}
