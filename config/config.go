// Package config loads the auctioneer and carrier TOML configuration files.
// Unset fields fall back to the built-in defaults; durations are spelled the
// Go way ("30s", "2m").
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/carriernet/auction/auctiontypes"
	"github.com/carriernet/auction/costmodel"
)

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// AuctionConfig is the [auction] section shared by the auctioneer binary and
// the simulation.
type AuctionConfig struct {
	BaseTimeout  duration `toml:"base_timeout"`
	MaxRounds    int      `toml:"max_rounds"`
	BundleRounds int      `toml:"bundle_rounds"`
	BundleSize   int      `toml:"bundle_size"`
	Pricing      string   `toml:"pricing"`
}

// Rules translates the section into auction rules, keeping the defaults for
// unset fields.
func (c AuctionConfig) Rules() (auctiontypes.AuctionRules, error) {
	rules := auctiontypes.DefaultAuctionRules()
	if c.BaseTimeout.Duration > 0 {
		rules.BaseTimeout = c.BaseTimeout.Duration
	}
	if c.MaxRounds > 0 {
		rules.MaxRounds = c.MaxRounds
	}
	if c.BundleRounds > 0 {
		rules.BundleRounds = c.BundleRounds
	}
	if c.BundleSize > 1 {
		rules.BundleSize = c.BundleSize
	}
	switch c.Pricing {
	case "":
	case string(auctiontypes.PricingVickrey):
		rules.Pricing = auctiontypes.PricingVickrey
	case string(auctiontypes.PricingFirstPrice):
		rules.Pricing = auctiontypes.PricingFirstPrice
	default:
		return rules, fmt.Errorf("config: unknown pricing mode %q", c.Pricing)
	}
	return rules, nil
}

type Auctioneer struct {
	ListenAddr string        `toml:"listen_addr"`
	MaxWorkers int           `toml:"max_workers"`
	ResultsLog string        `toml:"results_log"`
	Auction    AuctionConfig `toml:"auction"`
}

func LoadAuctioneer(path string) (Auctioneer, error) {
	cfg := Auctioneer{
		ListenAddr: "0.0.0.0:7001",
		MaxWorkers: 32,
		ResultsLog: "auction-days.csv",
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type Location struct {
	PosX float64 `toml:"pos_x"`
	PosY float64 `toml:"pos_y"`
}

func (l Location) Coordinate() auctiontypes.Coordinate {
	return auctiontypes.Coordinate{PosX: l.PosX, PosY: l.PosY}
}

// JobConfig is one pre-assigned transport request in a carrier's plan. Jobs
// without a revenue are valued by the carrier's own cost model.
type JobConfig struct {
	Pickup  Location `toml:"pickup"`
	Dropoff Location `toml:"dropoff"`
	Revenue float64  `toml:"revenue"`
}

type Carrier struct {
	AuctioneerAddr string              `toml:"auctioneer_addr"`
	CarrierID      string              `toml:"carrier_id"`
	Depot          *Location           `toml:"depot"`
	Jobs           []JobConfig         `toml:"jobs"`
	RandomJobs     int                 `toml:"random_jobs"`
	ResultsLog     string              `toml:"results_log"`
	Cost           costmodel.CostModel `toml:"cost"`
	// RandomCost draws the price and cost coefficients instead of reading
	// them from [cost]; the thresholds are still taken from [cost].
	RandomCost bool `toml:"random_cost"`
}

func LoadCarrier(path string) (Carrier, error) {
	cfg := Carrier{
		AuctioneerAddr: "127.0.0.1:7001",
		ResultsLog:     "carrier-days.csv",
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Cost == (costmodel.CostModel{}) && !cfg.RandomCost {
		return cfg, fmt.Errorf("config: missing [cost] section (or set random_cost)")
	}
	return cfg, nil
}
