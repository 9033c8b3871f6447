// Command auctioneer runs one auction day: it accepts carrier connections,
// waits out the registration window, then cycles every lot through the
// request-offer, bid, results and confirmation phases. The process exits when
// the day closes.
package main

import (
	"flag"
	"os"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager"
	"github.com/tedsuo/ifrit"
	"github.com/tedsuo/ifrit/grouper"
	"github.com/tedsuo/ifrit/sigmon"

	"github.com/carriernet/auction/auctionrunner"
	"github.com/carriernet/auction/communication/auctionserver"
	"github.com/carriernet/auction/config"
	"github.com/carriernet/auction/resultslog"
)

var configPath = flag.String("config", "auctioneer.toml", "path to the auctioneer configuration file")

func main() {
	flag.Parse()

	logger := lager.NewLogger("auctioneer")
	logger.RegisterSink(lager.NewWriterSink(os.Stdout, lager.INFO))

	cfg, err := config.LoadAuctioneer(*configPath)
	if err != nil {
		logger.Fatal("failed-to-load-config", err, lager.Data{"path": *configPath})
	}
	rules, err := cfg.Auction.Rules()
	if err != nil {
		logger.Fatal("invalid-auction-rules", err)
	}

	clk := clock.NewClock()
	dayLog := resultslog.New(cfg.ResultsLog, logger)
	ledger := auctionrunner.NewLedger(2*rules.BaseTimeout, clk, logger)
	runner := auctionrunner.NewRunner(ledger, rules, clk, logger, dayLog)

	server, err := auctionserver.New(cfg.ListenAddr, cfg.MaxWorkers, ledger, logger)
	if err != nil {
		logger.Fatal("failed-to-listen", err, lager.Data{"addr": cfg.ListenAddr})
	}

	members := grouper.Members{
		{Name: "server", Runner: server},
		{Name: "auction-day", Runner: runner},
	}
	process := ifrit.Invoke(sigmon.New(grouper.NewOrdered(os.Interrupt, members)))
	logger.Info("started", lager.Data{
		"listen-addr": server.Addr(),
		"pricing":     rules.Pricing,
		"max-rounds":  rules.MaxRounds,
	})

	if err := <-process.Wait(); err != nil {
		logger.Fatal("exited-with-failure", err)
	}
	logger.Info("exited")
}
