// Package routesolver solves the single-vehicle pickup-and-delivery problem
// carriers use to price their tours. The tour starts and ends at the depot
// (location index 0), every pickup is visited before its paired dropoff, and
// distances are Manhattan.
package routesolver

import (
	"errors"
	"math"

	"github.com/carriernet/auction/auctiontypes"
)

var (
	ErrNoDepot         = errors.New("routesolver: location list is empty")
	ErrMismatchedExtra = errors.New("routesolver: extra pickups and dropoffs differ in length")
	ErrBadPair         = errors.New("routesolver: pickup/dropoff pair index out of range")
)

// Problem describes one tour computation. Exclude lists pair indices to leave
// out of the tour; ExtraPickups/ExtraDropoffs are appended as additional jobs
// without touching the base location list, which is how a carrier prices a
// lot it does not own yet.
type Problem struct {
	Locations     []auctiontypes.Coordinate
	Pairs         [][2]int
	Exclude       []int
	ExtraPickups  []auctiontypes.Coordinate
	ExtraDropoffs []auctiontypes.Coordinate
}

// Tour is an ordered visitation of location indices, depot first and last.
// Indices past len(Problem.Locations) refer to the extra pickups and dropoffs
// in submission order.
type Tour struct {
	Sequence []int
	Distance float64
}

type Solver interface {
	Solve(problem Problem) (Tour, error)
}

// InsertionSolver builds tours by cheapest insertion: jobs are inserted one at
// a time at the position pair that adds the least distance while keeping the
// pickup ahead of its dropoff. Deterministic for a given problem.
type InsertionSolver struct{}

func NewInsertionSolver() *InsertionSolver {
	return &InsertionSolver{}
}

type job struct {
	pickup  int
	dropoff int
}

func (s *InsertionSolver) Solve(problem Problem) (Tour, error) {
	if len(problem.Locations) == 0 {
		return Tour{}, ErrNoDepot
	}
	if len(problem.ExtraPickups) != len(problem.ExtraDropoffs) {
		return Tour{}, ErrMismatchedExtra
	}

	locations := append([]auctiontypes.Coordinate{}, problem.Locations...)

	excluded := map[int]bool{}
	for _, i := range problem.Exclude {
		excluded[i] = true
	}

	jobs := []job{}
	for i, pair := range problem.Pairs {
		if excluded[i] {
			continue
		}
		if pair[0] <= 0 || pair[0] >= len(problem.Locations) ||
			pair[1] <= 0 || pair[1] >= len(problem.Locations) {
			return Tour{}, ErrBadPair
		}
		jobs = append(jobs, job{pickup: pair[0], dropoff: pair[1]})
	}
	for i := range problem.ExtraPickups {
		pickup := len(locations)
		locations = append(locations, problem.ExtraPickups[i])
		dropoff := len(locations)
		locations = append(locations, problem.ExtraDropoffs[i])
		jobs = append(jobs, job{pickup: pickup, dropoff: dropoff})
	}

	dist := func(a, b int) float64 {
		return locations[a].DistanceTo(locations[b])
	}

	sequence := []int{0, 0}
	for _, j := range jobs {
		bestCost := math.Inf(1)
		bestPickup, bestDropoff := -1, -1
		for p := 1; p < len(sequence); p++ {
			for d := p; d < len(sequence); d++ {
				cost := insertionCost(sequence, dist, j, p, d)
				if cost < bestCost {
					bestCost = cost
					bestPickup, bestDropoff = p, d
				}
			}
		}
		sequence = insertAt(sequence, j.pickup, bestPickup)
		sequence = insertAt(sequence, j.dropoff, bestDropoff+1)
	}

	total := 0.0
	for i := 1; i < len(sequence); i++ {
		total += dist(sequence[i-1], sequence[i])
	}
	return Tour{Sequence: sequence, Distance: total}, nil
}

// insertionCost is the added distance of placing the job's pickup before
// sequence[p] and its dropoff before sequence[d] (after the pickup when the
// two positions coincide).
func insertionCost(sequence []int, dist func(int, int) float64, j job, p, d int) float64 {
	if p == d {
		return dist(sequence[p-1], j.pickup) +
			dist(j.pickup, j.dropoff) +
			dist(j.dropoff, sequence[p]) -
			dist(sequence[p-1], sequence[p])
	}
	return dist(sequence[p-1], j.pickup) +
		dist(j.pickup, sequence[p]) -
		dist(sequence[p-1], sequence[p]) +
		dist(sequence[d-1], j.dropoff) +
		dist(j.dropoff, sequence[d]) -
		dist(sequence[d-1], sequence[d])
}

func insertAt(sequence []int, value, position int) []int {
	sequence = append(sequence, 0)
	copy(sequence[position+1:], sequence[position:])
	sequence[position] = value
	return sequence
}
