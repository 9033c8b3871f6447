package config_test

import (
	"os"
	"path/filepath"
	"time"

	"github.com/carriernet/auction/auctiontypes"
	"github.com/carriernet/auction/config"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "config")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
		return path
	}

	Describe("the auctioneer file", func() {
		It("fills unset fields from the defaults", func() {
			path := write("auctioneer.toml", `
listen_addr = "0.0.0.0:9999"

[auction]
base_timeout = "2s"
pricing = "first_price"
`)
			cfg, err := config.LoadAuctioneer(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.ListenAddr).To(Equal("0.0.0.0:9999"))
			Expect(cfg.MaxWorkers).To(Equal(32))
			Expect(cfg.ResultsLog).To(Equal("auction-days.csv"))

			rules, err := cfg.Auction.Rules()
			Expect(err).NotTo(HaveOccurred())
			Expect(rules.BaseTimeout).To(Equal(2 * time.Second))
			Expect(rules.Pricing).To(Equal(auctiontypes.PricingFirstPrice))
			Expect(rules.MaxRounds).To(Equal(auctiontypes.DefaultAuctionRules().MaxRounds))
		})

		It("rejects an unknown pricing mode", func() {
			path := write("auctioneer.toml", `
[auction]
pricing = "dutch"
`)
			cfg, err := config.LoadAuctioneer(path)
			Expect(err).NotTo(HaveOccurred())
			_, err = cfg.Auction.Rules()
			Expect(err).To(MatchError(ContainSubstring("dutch")))
		})
	})

	Describe("the carrier file", func() {
		It("parses depot, jobs and the cost model", func() {
			path := write("carrier.toml", `
auctioneer_addr = "10.0.0.1:7001"
carrier_id = "carrier-blue"
random_jobs = 3

[depot]
pos_x = 150.0
pos_y = 120.0

[[jobs]]
revenue = 800.0
  [jobs.pickup]
  pos_x = 85.0
  pos_y = 40.0
  [jobs.dropoff]
  pos_x = 90.0
  pos_y = 42.0

[cost]
base_price = 720.0
distance_price = 200.0
loading_cost = 52.0
distance_cost = 25.0
sell_threshold = 100.0
buy_threshold = 30.0
`)
			cfg, err := config.LoadCarrier(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.AuctioneerAddr).To(Equal("10.0.0.1:7001"))
			Expect(cfg.CarrierID).To(Equal("carrier-blue"))
			Expect(cfg.RandomJobs).To(Equal(3))
			Expect(cfg.Depot.Coordinate()).To(Equal(auctiontypes.Coordinate{PosX: 150, PosY: 120}))
			Expect(cfg.Jobs).To(HaveLen(1))
			Expect(cfg.Jobs[0].Revenue).To(Equal(800.0))
			Expect(cfg.Jobs[0].Pickup.Coordinate().PosX).To(Equal(85.0))
			Expect(cfg.Cost.BasePrice).To(Equal(720.0))
			Expect(cfg.Cost.BuyThreshold).To(Equal(30.0))
		})

		It("requires a cost model unless random_cost is set", func() {
			path := write("carrier.toml", `auctioneer_addr = "10.0.0.1:7001"`)
			_, err := config.LoadCarrier(path)
			Expect(err).To(MatchError(ContainSubstring("cost")))

			path = write("carrier-random.toml", `
random_cost = true

[cost]
sell_threshold = 100.0
buy_threshold = 30.0
`)
			cfg, err := config.LoadCarrier(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.RandomCost).To(BeTrue())
			Expect(cfg.Cost.SellThreshold).To(Equal(100.0))
		})
	})
})
