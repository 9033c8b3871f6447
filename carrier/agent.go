package carrier

import (
	"sync"

	"code.cloudfoundry.org/lager"
	"github.com/google/uuid"

	"github.com/carriernet/auction/auctiontypes"
	"github.com/carriernet/auction/communication/msg"
	"github.com/carriernet/auction/costmodel"
	"github.com/carriernet/auction/routesolver"
)

// Job is one pickup/dropoff transport request on a carrier's plan.
type Job struct {
	ID      string
	Pickup  auctiontypes.Coordinate
	Dropoff auctiontypes.Coordinate
	Revenue float64
}

// NewJob assigns a fresh offer id to a transport request.
func NewJob(pickup, dropoff auctiontypes.Coordinate, revenue float64) Job {
	return Job{
		ID:      uuid.NewString(),
		Pickup:  pickup,
		Dropoff: dropoff,
		Revenue: revenue,
	}
}

// DayStats summarizes what an auction day did to the carrier's plan.
type DayStats struct {
	Sold     int
	Won      int
	Proceeds float64
	Paid     float64
}

// Agent holds a carrier's routing plan and makes its auction decisions: which
// jobs to offload, what a lot is worth, and how results change the plan. All
// decisions route through the Route Optimizer via marginal tour distances.
type Agent struct {
	carrierID string
	depot     auctiontypes.Coordinate
	model     costmodel.CostModel
	solver    routesolver.Solver
	logger    lager.Logger

	lock   sync.Mutex
	jobs   []Job
	listed map[string]Job
	stats  DayStats
}

func NewAgent(carrierID string, depot auctiontypes.Coordinate, jobs []Job, model costmodel.CostModel, solver routesolver.Solver, logger lager.Logger) *Agent {
	return &Agent{
		carrierID: carrierID,
		depot:     depot,
		model:     model,
		solver:    solver,
		logger:    logger.Session("agent", lager.Data{"carrier": carrierID}),
		jobs:      append([]Job{}, jobs...),
		listed:    map[string]Job{},
	}
}

func (a *Agent) CarrierID() string {
	return a.carrierID
}

// SelectOffers decides which jobs to offload: every job whose marginal removal
// profit falls below the sell threshold leaves the plan and is returned as an
// offer submission, reserve-priced at that marginal profit.
func (a *Agent) SelectOffers() ([]msg.OfferPayload, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	full, err := a.solver.Solve(a.problem(nil, nil, nil))
	if err != nil {
		return nil, err
	}

	payloads := []msg.OfferPayload{}
	kept := []Job{}
	for i, job := range a.jobs {
		without, err := a.solver.Solve(a.problem([]int{i}, nil, nil))
		if err != nil {
			return nil, err
		}
		marginalCost := a.model.MarginalCost(full.Distance-without.Distance, 1)
		profit := job.Revenue - marginalCost

		if profit >= a.model.SellThreshold {
			kept = append(kept, job)
			continue
		}

		a.listed[job.ID] = job
		payloads = append(payloads, msg.OfferPayload{
			OfferID:    job.ID,
			LocPickup:  job.Pickup,
			LocDropoff: job.Dropoff,
			Profit:     profit,
			Revenue:    job.Revenue,
		})
		a.logger.Info("listing-job", lager.Data{
			"offer":   job.ID,
			"reserve": profit,
			"revenue": job.Revenue,
		})
	}
	a.jobs = kept
	return payloads, nil
}

// ComputeBid values a lot as its stated revenue minus the marginal cost of
// inserting its jobs into the current tour, minus the per-job buy threshold.
// A non-positive result means the lot is not worth bidding on.
func (a *Agent) ComputeBid(lot msg.LotPayload) (float64, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	base, err := a.solver.Solve(a.problem(nil, nil, nil))
	if err != nil {
		return 0, err
	}
	with, err := a.solver.Solve(a.problem(nil, lot.LocPickup, lot.LocDropoff))
	if err != nil {
		return 0, err
	}

	jobs := len(lot.LocPickup)
	marginalCost := a.model.MarginalCost(with.Distance-base.Distance, jobs)
	bid := lot.Revenue - marginalCost - float64(jobs)*a.model.BuyThreshold
	a.logger.Debug("bid-computed", lager.Data{
		"lot":  lot.OfferID,
		"bid":  bid,
		"jobs": jobs,
	})
	return bid, nil
}

// ReconcileResults applies a lot's outcome: sold listed jobs leave the plan
// for good, lots won from other carriers join it.
func (a *Agent) ReconcileResults(offers []msg.OfferDict) {
	a.lock.Lock()
	defer a.lock.Unlock()

	for _, dict := range offers {
		if job, ours := a.listed[dict.OfferID]; ours {
			if dict.Winner == auctiontypes.NoWinner {
				continue
			}
			delete(a.listed, dict.OfferID)
			if dict.Winner == a.carrierID {
				a.jobs = append(a.jobs, job)
				continue
			}
			a.stats.Sold++
			a.stats.Proceeds += dict.WinningBid.Value
			a.logger.Info("job-sold", lager.Data{
				"offer":  dict.OfferID,
				"winner": dict.Winner,
				"price":  dict.WinningBid.Value,
			})
			continue
		}

		if dict.Winner == a.carrierID {
			a.jobs = append(a.jobs, Job{
				ID:      dict.OfferID,
				Pickup:  dict.LocPickup,
				Dropoff: dict.LocDropoff,
				Revenue: dict.Revenue,
			})
			a.stats.Won++
			a.stats.Paid += dict.WinningBid.Value
			a.logger.Info("lot-won", lager.Data{
				"offer": dict.OfferID,
				"price": dict.WinningBid.Value,
			})
		}
	}
}

// AbsorbUnsold returns still-listed jobs to the plan once the day is over.
func (a *Agent) AbsorbUnsold() {
	a.lock.Lock()
	defer a.lock.Unlock()

	for id, job := range a.listed {
		a.jobs = append(a.jobs, job)
		delete(a.listed, id)
	}
}

// TourProfit is the profit of the current plan: total job revenue minus the
// cost of the optimal tour over all kept jobs.
func (a *Agent) TourProfit() (float64, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	tour, err := a.solver.Solve(a.problem(nil, nil, nil))
	if err != nil {
		return 0, err
	}
	revenue := 0.0
	for _, job := range a.jobs {
		revenue += job.Revenue
	}
	return revenue - a.model.MarginalCost(tour.Distance, len(a.jobs)), nil
}

func (a *Agent) Stats() DayStats {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.stats
}

// Jobs returns a snapshot of the jobs currently on the plan.
func (a *Agent) Jobs() []Job {
	a.lock.Lock()
	defer a.lock.Unlock()
	return append([]Job{}, a.jobs...)
}

// problem assembles the routing problem for the kept jobs. Callers hold the
// lock.
func (a *Agent) problem(exclude []int, extraPickups, extraDropoffs []auctiontypes.Coordinate) routesolver.Problem {
	locations := []auctiontypes.Coordinate{a.depot}
	pairs := [][2]int{}
	for _, job := range a.jobs {
		pickup := len(locations)
		locations = append(locations, job.Pickup)
		dropoff := len(locations)
		locations = append(locations, job.Dropoff)
		pairs = append(pairs, [2]int{pickup, dropoff})
	}
	return routesolver.Problem{
		Locations:     locations,
		Pairs:         pairs,
		Exclude:       exclude,
		ExtraPickups:  extraPickups,
		ExtraDropoffs: extraDropoffs,
	}
}
