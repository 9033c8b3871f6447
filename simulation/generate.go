// Package simulation generates randomized carrier fleets for end-to-end
// auction days. Deliveries are drawn from the New York City harbor reach used
// by the historical request data; depots from a wider operations box.
package simulation

import (
	"math/rand"

	"github.com/carriernet/auction/auctiontypes"
	"github.com/carriernet/auction/carrier"
	"github.com/carriernet/auction/costmodel"
)

const (
	deliveryMinX = 81.9698
	deliveryMaxX = 93.2898
	deliveryMinY = 37.5281
	deliveryMaxY = 46.2281

	depotMin = 0.0
	depotMax = 300.0
)

func uniform(rng *rand.Rand, min, max float64) float64 {
	return min + rng.Float64()*(max-min)
}

// RandomDeliveryLocation draws a coordinate within the delivery reach.
func RandomDeliveryLocation(rng *rand.Rand) auctiontypes.Coordinate {
	return auctiontypes.Coordinate{
		PosX: uniform(rng, deliveryMinX, deliveryMaxX),
		PosY: uniform(rng, deliveryMinY, deliveryMaxY),
	}
}

// RandomDepot draws a depot within the operations box.
func RandomDepot(rng *rand.Rand) auctiontypes.Coordinate {
	return auctiontypes.Coordinate{
		PosX: uniform(rng, depotMin, depotMax),
		PosY: uniform(rng, depotMin, depotMax),
	}
}

// RandomJobs creates n transport requests, each valued by the given cost
// model's marginal revenue.
func RandomJobs(rng *rand.Rand, n int, model costmodel.CostModel) []carrier.Job {
	jobs := make([]carrier.Job, 0, n)
	for i := 0; i < n; i++ {
		pickup := RandomDeliveryLocation(rng)
		dropoff := RandomDeliveryLocation(rng)
		jobs = append(jobs, carrier.NewJob(pickup, dropoff, model.MarginalRevenue(pickup, dropoff)))
	}
	return jobs
}

// RandomCostModel draws carrier coefficients and applies the fleet-wide
// thresholds.
func RandomCostModel(rng *rand.Rand, sellThreshold, buyThreshold float64) costmodel.CostModel {
	model := costmodel.Random(rng)
	model.SellThreshold = sellThreshold
	model.BuyThreshold = buyThreshold
	return model
}
