package visualization

import (
	"time"

	"github.com/GaryBoone/GoStats/stats"

	"github.com/carriernet/auction/auctiontypes"
	"github.com/carriernet/auction/carrier"
)

// CarrierOutcome is what one carrier took away from an auction day.
type CarrierOutcome struct {
	CarrierID string
	Depot     auctiontypes.Coordinate
	Jobs      []carrier.Job
	Stats     carrier.DayStats
	OldProfit float64
	NewProfit float64
}

// Report aggregates a finished auction day for inspection and drawing.
type Report struct {
	Outcomes        []CarrierOutcome
	Unsold          []auctiontypes.Offer
	AuctionDuration time.Duration
}

type Stat struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	Total  float64
}

func NewStat(data []float64) Stat {
	return Stat{
		Min:    stats.StatsMin(data),
		Max:    stats.StatsMax(data),
		Mean:   stats.StatsMean(data),
		StdDev: stats.StatsPopulationStandardDeviation(data),
		Total:  stats.StatsSum(data),
	}
}

// ProfitDeltas is each carrier's profit change over the day.
func (r *Report) ProfitDeltas() []float64 {
	deltas := make([]float64, 0, len(r.Outcomes))
	for _, outcome := range r.Outcomes {
		deltas = append(deltas, outcome.NewProfit-outcome.OldProfit)
	}
	return deltas
}

func (r *Report) ProfitStats() Stat {
	return NewStat(r.ProfitDeltas())
}

// JobsMoved is how many transport requests changed hands.
func (r *Report) JobsMoved() int {
	moved := 0
	for _, outcome := range r.Outcomes {
		moved += outcome.Stats.Won
	}
	return moved
}

// MoneyMoved is the total of winning bids paid during the day.
func (r *Report) MoneyMoved() float64 {
	paid := []float64{}
	for _, outcome := range r.Outcomes {
		paid = append(paid, outcome.Stats.Paid)
	}
	return stats.StatsSum(paid)
}
