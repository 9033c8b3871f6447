// Command carrier plays one auction day against a running auctioneer:
// register, list the transport requests that are not worth keeping, bid on
// every lot and reconcile the plan with the results. The process exits when
// the auctioneer announces the final round.
package main

import (
	"flag"
	"math/rand"
	"os"
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager"
	"github.com/tedsuo/ifrit"
	"github.com/tedsuo/ifrit/sigmon"

	"github.com/carriernet/auction/carrier"
	"github.com/carriernet/auction/communication/carrierclient"
	"github.com/carriernet/auction/config"
	"github.com/carriernet/auction/resultslog"
	"github.com/carriernet/auction/routesolver"
	"github.com/carriernet/auction/simulation"
	"github.com/carriernet/auction/util"
)

var (
	configPath = flag.String("config", "carrier.toml", "path to the carrier configuration file")
	seed       = flag.Int64("seed", 0, "seed for random jobs and coefficients (0 seeds from the clock)")
)

func main() {
	flag.Parse()

	logger := lager.NewLogger("carrier")
	logger.RegisterSink(lager.NewWriterSink(os.Stdout, lager.INFO))

	cfg, err := config.LoadCarrier(*configPath)
	if err != nil {
		logger.Fatal("failed-to-load-config", err, lager.Data{"path": *configPath})
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	model := cfg.Cost
	if cfg.RandomCost {
		model = simulation.RandomCostModel(rng, cfg.Cost.SellThreshold, cfg.Cost.BuyThreshold)
	}

	carrierID := cfg.CarrierID
	if carrierID == "" {
		carrierID = "carrier-" + util.RandomGuid()
	}

	depot := simulation.RandomDepot(rng)
	if cfg.Depot != nil {
		depot = cfg.Depot.Coordinate()
	}

	jobs := make([]carrier.Job, 0, len(cfg.Jobs)+cfg.RandomJobs)
	for _, job := range cfg.Jobs {
		pickup, dropoff := job.Pickup.Coordinate(), job.Dropoff.Coordinate()
		revenue := job.Revenue
		if revenue == 0 {
			revenue = model.MarginalRevenue(pickup, dropoff)
		}
		jobs = append(jobs, carrier.NewJob(pickup, dropoff, revenue))
	}
	jobs = append(jobs, simulation.RandomJobs(rng, cfg.RandomJobs, model)...)

	agent := carrier.NewAgent(carrierID, depot, jobs, model, routesolver.NewInsertionSolver(), logger)
	clk := clock.NewClock()
	client := carrierclient.New(cfg.AuctioneerAddr, carrierID, clk, logger)
	statsLog := resultslog.New(cfg.ResultsLog, logger)
	runner := carrier.NewRunner(client, agent, clk, logger, statsLog)

	process := ifrit.Invoke(sigmon.New(runner))
	logger.Info("started", lager.Data{
		"carrier":    carrierID,
		"auctioneer": cfg.AuctioneerAddr,
		"jobs":       len(jobs),
		"seed":       *seed,
	})

	if err := <-process.Wait(); err != nil {
		logger.Fatal("exited-with-failure", err)
	}
	logger.Info("exited")
}
