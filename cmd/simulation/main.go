// Command simulation runs a self-contained auction day: an in-process
// auctioneer and a randomized carrier fleet talking to it over TCP. When the
// day closes it prints each carrier's outcome and renders an SVG report card.
package main

import (
	"flag"
	"math"
	"math/rand"
	"os"
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager"
	"github.com/tedsuo/ifrit"
	"golang.org/x/sync/errgroup"

	"github.com/carriernet/auction/auctionrunner"
	"github.com/carriernet/auction/auctiontypes"
	"github.com/carriernet/auction/carrier"
	"github.com/carriernet/auction/communication/auctionserver"
	"github.com/carriernet/auction/communication/carrierclient"
	"github.com/carriernet/auction/resultslog"
	"github.com/carriernet/auction/routesolver"
	"github.com/carriernet/auction/simulation"
	"github.com/carriernet/auction/simulation/visualization"
	"github.com/carriernet/auction/util"
)

var (
	numCarriers   = flag.Int("carriers", 8, "number of carriers in the fleet")
	jobsPerEach   = flag.Int("jobs", 10, "transport requests per carrier")
	baseTimeout   = flag.Duration("base-timeout", 2*time.Second, "length of one phase window")
	pricing       = flag.String("pricing", string(auctiontypes.PricingVickrey), "pricing mode: vickrey or first_price")
	sellThreshold = flag.Float64("sell-threshold", 100, "profit below which a job is offered for sale")
	buyThreshold  = flag.Float64("buy-threshold", 30, "margin a carrier demands on a bought job")
	seed          = flag.Int64("seed", 0, "fleet seed (0 seeds from the clock)")
	svgOut        = flag.String("out", "auction-day.svg", "path of the SVG report")
	resultsOut    = flag.String("results", "auction-days.csv", "path of the CSV results log")
)

func main() {
	flag.Parse()

	logger := lager.NewLogger("simulation")
	logger.RegisterSink(lager.NewWriterSink(os.Stdout, lager.INFO))

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	rules := auctiontypes.DefaultAuctionRules()
	rules.BaseTimeout = *baseTimeout
	switch auctiontypes.PricingMode(*pricing) {
	case auctiontypes.PricingVickrey, auctiontypes.PricingFirstPrice:
		rules.Pricing = auctiontypes.PricingMode(*pricing)
	default:
		logger.Fatal("unknown-pricing-mode", nil, lager.Data{"pricing": *pricing})
	}

	clk := clock.NewClock()
	dayLog := resultslog.New(*resultsOut, logger)
	ledger := auctionrunner.NewLedger(2*rules.BaseTimeout, clk, logger)
	runner := auctionrunner.NewRunner(ledger, rules, clk, logger, dayLog)

	server, err := auctionserver.New("127.0.0.1:0", *numCarriers*2, ledger, logger)
	if err != nil {
		logger.Fatal("failed-to-listen", err)
	}
	serverProcess := ifrit.Invoke(server)
	runnerProcess := ifrit.Invoke(runner)

	logger.Info("fleet-starting", lager.Data{
		"carriers": *numCarriers,
		"jobs":     *jobsPerEach,
		"seed":     *seed,
		"addr":     server.Addr(),
	})

	util.ResetGuids()
	agents := make([]*carrier.Agent, *numCarriers)
	depots := make([]auctiontypes.Coordinate, *numCarriers)
	oldProfits := make([]float64, *numCarriers)

	var fleet errgroup.Group
	start := clk.Now()
	for i := 0; i < *numCarriers; i++ {
		model := simulation.RandomCostModel(rng, *sellThreshold, *buyThreshold)
		depots[i] = simulation.RandomDepot(rng)
		jobs := simulation.RandomJobs(rng, *jobsPerEach, model)
		carrierID := util.NewGuid("carrier")

		agent := carrier.NewAgent(carrierID, depots[i], jobs, model, routesolver.NewInsertionSolver(), logger)
		agents[i] = agent
		oldProfits[i], err = agent.TourProfit()
		if err != nil {
			logger.Fatal("failed-to-price-initial-tour", err, lager.Data{"carrier": carrierID})
		}

		client := carrierclient.New(server.Addr(), carrierID, clk, logger)
		process := ifrit.Invoke(carrier.NewRunner(client, agent, clk, logger, dayLog))
		fleet.Go(func() error {
			return <-process.Wait()
		})
	}

	if err := fleet.Wait(); err != nil {
		logger.Fatal("carrier-failed", err)
	}
	if err := <-runnerProcess.Wait(); err != nil {
		logger.Fatal("auction-day-failed", err)
	}
	duration := clk.Since(start)

	serverProcess.Signal(os.Interrupt)
	<-serverProcess.Wait()

	report := &visualization.Report{
		Unsold:          ledger.LiveOffers(),
		AuctionDuration: duration,
	}
	for i, agent := range agents {
		newProfit, err := agent.TourProfit()
		if err != nil {
			logger.Fatal("failed-to-price-final-tour", err, lager.Data{"carrier": agent.CarrierID()})
		}
		report.Outcomes = append(report.Outcomes, visualization.CarrierOutcome{
			CarrierID: agent.CarrierID(),
			Depot:     depots[i],
			Jobs:      agent.Jobs(),
			Stats:     agent.Stats(),
			OldProfit: oldProfits[i],
			NewProfit: newProfit,
		})
	}

	profits := report.ProfitStats()
	logger.Info("auction-day-summary", lager.Data{
		"duration":     duration.String(),
		"jobs-moved":   report.JobsMoved(),
		"money-moved":  report.MoneyMoved(),
		"profit-total": profits.Total,
		"profit-mean":  profits.Mean,
		"unsold":       len(report.Unsold),
	})

	columns := int(math.Ceil(math.Sqrt(float64(len(report.Outcomes)))))
	rows := (len(report.Outcomes) + columns - 1) / columns
	svgReport, err := visualization.StartSVGReport(*svgOut, columns, rows)
	if err != nil {
		logger.Fatal("failed-to-create-report", err, lager.Data{"path": *svgOut})
	}
	svgReport.DrawHeader(rules)
	for i, outcome := range report.Outcomes {
		svgReport.DrawCarrierCard(i%columns, i/columns, outcome)
	}
	if err := svgReport.Done(report); err != nil {
		logger.Fatal("failed-to-write-report", err, lager.Data{"path": *svgOut})
	}
	logger.Info("report-written", lager.Data{"path": *svgOut})
}
