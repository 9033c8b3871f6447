// Package costmodel holds the linear price/cost model a carrier uses to value
// transport requests: revenue of a job is a base price plus a per-distance
// price, cost of carrying it is a per-job loading cost plus a per-distance
// cost. Two thresholds steer the carrier's economics: jobs whose standalone
// profit falls below the sell threshold are offloaded to the auction, and the
// buy threshold is the minimum margin required before bidding.
package costmodel

import (
	"math/rand"

	"github.com/carriernet/auction/auctiontypes"
)

type CostModel struct {
	BasePrice     float64 `toml:"base_price"`
	DistancePrice float64 `toml:"distance_price"`
	LoadingCost   float64 `toml:"loading_cost"`
	DistanceCost  float64 `toml:"distance_cost"`
	SellThreshold float64 `toml:"sell_threshold"`
	BuyThreshold  float64 `toml:"buy_threshold"`
}

// MarginalRevenue values a single pickup/dropoff pair.
func (m CostModel) MarginalRevenue(pickup, dropoff auctiontypes.Coordinate) float64 {
	return m.BasePrice + m.DistancePrice*pickup.DistanceTo(dropoff)
}

// MarginalCost prices the tour-length change caused by adding or removing
// jobs. The loading cost applies once per job regardless of distance.
func (m CostModel) MarginalCost(marginalDistance float64, jobs int) float64 {
	return float64(jobs)*m.LoadingCost + m.DistanceCost*marginalDistance
}

// Random draws coefficients from the ranges used for simulated carriers.
// Thresholds are left for the caller to set.
func Random(rng *rand.Rand) CostModel {
	uniform := func(low, high float64) float64 {
		return low + rng.Float64()*(high-low)
	}
	return CostModel{
		BasePrice:     uniform(700, 750),
		DistancePrice: uniform(185, 215),
		LoadingCost:   uniform(50, 55),
		DistanceCost:  uniform(23, 28),
	}
}
