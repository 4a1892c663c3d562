package markprice

import "sort"

// median returns the median of values, sorting a copy. Returns 0 for an
// empty input.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// cexWeights mirrors the venue weighting used to build the weighted CEX
// median: Binance 3, OKX 2, Bybit 2, Gate 1, MEXC 1.
var cexWeights = map[string]int{
	"binance": 3,
	"okx":     2,
	"bybit":   2,
	"gate":    1,
	"mexc":    1,
}

// weightedCEXMedian appends each venue's price weight-many times, then
// takes the simple median of the expanded list (scenario 3).
func weightedCEXMedian(prices map[string]float64) (float64, bool) {
	var expanded []float64
	for venue, price := range prices {
		weight, ok := cexWeights[venue]
		if !ok {
			weight = 1
		}
		for i := 0; i < weight; i++ {
			expanded = append(expanded, price)
		}
	}
	if len(expanded) == 0 {
		return 0, false
	}
	return median(expanded), true
}
