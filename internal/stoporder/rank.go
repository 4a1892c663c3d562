package stoporder

import (
	"math"
	"sort"

	"github.com/severussssss/hp-node-stream/internal/orderbook"
)

// insufficientLiquiditySlippageBps is the sentinel applied when the
// opposite side of the book cannot fully fill the order's size.
const insufficientLiquiditySlippageBps = 1000.0

// Book is the subset of *orderbook.Book the ranking algorithm needs.
type Book interface {
	WalkForFill(side orderbook.Side, target float64) (vwap float64, ok bool)
}

// Rank scores each order by closeness-to-trigger and expected slippage and
// returns them sorted descending by risk_score.
// midPrices and books are keyed by market id; orders whose market has no
// entry in either map are skipped.
func Rank(orders []StopOrder, marketIDs map[uint64]uint32, midPrices map[uint32]float64, books map[uint32]Book, wDist, wSlip float64) []Ranked {
	out := make([]Ranked, 0, len(orders))

	for _, order := range orders {
		marketID, ok := marketIDs[order.ID]
		if !ok {
			continue
		}
		mid, ok := midPrices[marketID]
		if !ok || mid == 0 {
			continue
		}
		book, ok := books[marketID]
		if !ok {
			continue
		}

		distanceBps := math.Abs(order.Price-mid) / mid * 10000

		// A buy stop fills by buying from the asks; a sell stop fills by
		// selling into the bids.
		fillSide := orderbook.Bid
		if order.Side == orderbook.Bid {
			fillSide = orderbook.Ask
		}

		slippageBps := insufficientLiquiditySlippageBps
		if vwap, ok := book.WalkForFill(fillSide, order.Size); ok {
			slippageBps = math.Abs(vwap-order.Price) / order.Price * 10000
		}

		distanceScore := math.Max(0, 100-math.Min(100, distanceBps))
		slippageScore := math.Min(100, slippageBps)
		riskScore := wDist*distanceScore + wSlip*slippageScore

		out = append(out, Ranked{
			Order:         order,
			DistanceBps:   distanceBps,
			SlippageBps:   slippageBps,
			DistanceScore: distanceScore,
			SlippageScore: slippageScore,
			RiskScore:     riskScore,
			RiskLevel:     riskLevelFor(riskScore),
			NotionalValue: order.Price * order.Size,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RiskScore > out[j].RiskScore })
	return out
}
