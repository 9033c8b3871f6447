package carrier_test

import (
	"code.cloudfoundry.org/lager/lagertest"

	"github.com/carriernet/auction/auctiontypes"
	"github.com/carriernet/auction/carrier"
	"github.com/carriernet/auction/communication/msg"
	"github.com/carriernet/auction/costmodel"
	"github.com/carriernet/auction/routesolver"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Agent", func() {
	var agent *carrier.Agent

	coord := func(x, y float64) auctiontypes.Coordinate {
		return auctiontypes.Coordinate{PosX: x, PosY: y}
	}

	model := costmodel.CostModel{
		LoadingCost:   50,
		DistanceCost:  1,
		SellThreshold: 100,
		BuyThreshold:  30,
	}

	keeper := carrier.Job{ID: "keeper", Pickup: coord(1, 0), Dropoff: coord(2, 0), Revenue: 500}
	outlier := carrier.Job{ID: "outlier", Pickup: coord(0, 5), Dropoff: coord(0, 6), Revenue: 140}

	BeforeEach(func() {
		agent = carrier.NewAgent(
			"carrier-a",
			coord(0, 0),
			[]carrier.Job{keeper, outlier},
			model,
			routesolver.NewInsertionSolver(),
			lagertest.NewTestLogger("test"),
		)
	})

	Describe("SelectOffers", func() {
		It("lists jobs whose marginal removal profit falls below the sell threshold", func() {
			offers, err := agent.SelectOffers()
			Expect(err).NotTo(HaveOccurred())

			// Removing the outlier saves 12 distance: profit 140-(50+12)=78.
			// Removing the keeper saves 4: profit 500-54=446.
			Expect(offers).To(HaveLen(1))
			Expect(offers[0].OfferID).To(Equal("outlier"))
			Expect(offers[0].Profit).To(Equal(78.0))
			Expect(offers[0].Revenue).To(Equal(140.0))

			jobs := agent.Jobs()
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].ID).To(Equal("keeper"))
		})

		It("lists nothing when every job clears the threshold", func() {
			relaxed := model
			relaxed.SellThreshold = 10
			agent = carrier.NewAgent("carrier-a", coord(0, 0), []carrier.Job{keeper, outlier}, relaxed, routesolver.NewInsertionSolver(), lagertest.NewTestLogger("test"))

			offers, err := agent.SelectOffers()
			Expect(err).NotTo(HaveOccurred())
			Expect(offers).To(BeEmpty())
			Expect(agent.Jobs()).To(HaveLen(2))
		})
	})

	Describe("ComputeBid", func() {
		BeforeEach(func() {
			_, err := agent.SelectOffers()
			Expect(err).NotTo(HaveOccurred())
		})

		It("bids revenue minus marginal insertion cost minus the buy threshold", func() {
			bid, err := agent.ComputeBid(msg.LotPayload{
				OfferID:    "lot-1",
				LocPickup:  []auctiontypes.Coordinate{coord(3, 0)},
				LocDropoff: []auctiontypes.Coordinate{coord(3, 1)},
				Revenue:    200,
			})
			Expect(err).NotTo(HaveOccurred())

			// Inserting the job adds 4 distance: 200-(50+4)-30 = 116.
			Expect(bid).To(Equal(116.0))
		})

		It("scales the per-job terms with the lot size", func() {
			bid, err := agent.ComputeBid(msg.LotPayload{
				OfferID:    "lot-2",
				LocPickup:  []auctiontypes.Coordinate{coord(3, 0), coord(3, 0)},
				LocDropoff: []auctiontypes.Coordinate{coord(3, 1), coord(3, 1)},
				Revenue:    400,
			})
			Expect(err).NotTo(HaveOccurred())

			// The second coincident job rides the same segment, so the
			// pair adds 4 distance but two loading and threshold charges:
			// 400-(100+4)-60 = 236.
			Expect(bid).To(Equal(236.0))
		})

		It("can return a non-positive bid for an unattractive lot", func() {
			bid, err := agent.ComputeBid(msg.LotPayload{
				OfferID:    "lot-3",
				LocPickup:  []auctiontypes.Coordinate{coord(100, 100)},
				LocDropoff: []auctiontypes.Coordinate{coord(110, 100)},
				Revenue:    100,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(bid).To(BeNumerically("<", 0))
		})
	})

	Describe("ReconcileResults", func() {
		BeforeEach(func() {
			_, err := agent.SelectOffers()
			Expect(err).NotTo(HaveOccurred())
		})

		It("drops a listed job sold to another carrier and books the proceeds", func() {
			agent.ReconcileResults([]msg.OfferDict{{
				Offeror:    "carrier-a",
				Winner:     "carrier-b",
				WinningBid: msg.SomeAmount(95),
				OfferID:    "outlier",
			}})

			stats := agent.Stats()
			Expect(stats.Sold).To(Equal(1))
			Expect(stats.Proceeds).To(Equal(95.0))

			agent.AbsorbUnsold()
			Expect(agent.Jobs()).To(HaveLen(1))
		})

		It("keeps an unsold listed job for a later round", func() {
			agent.ReconcileResults([]msg.OfferDict{{
				Offeror: "carrier-a",
				Winner:  auctiontypes.NoWinner,
				OfferID: "outlier",
			}})

			Expect(agent.Stats().Sold).To(BeZero())

			agent.AbsorbUnsold()
			Expect(agent.Jobs()).To(HaveLen(2))
		})

		It("returns a listed job won back by its owner to the plan", func() {
			agent.ReconcileResults([]msg.OfferDict{{
				Offeror:    "carrier-a",
				Winner:     "carrier-a",
				WinningBid: msg.SomeAmount(90),
				OfferID:    "outlier",
			}})

			Expect(agent.Stats().Sold).To(BeZero())
			Expect(agent.Jobs()).To(HaveLen(2))
		})

		It("adds a won foreign lot to the plan and books the price paid", func() {
			agent.ReconcileResults([]msg.OfferDict{{
				Offeror:    "carrier-b",
				Winner:     "carrier-a",
				WinningBid: msg.SomeAmount(120),
				OfferID:    "foreign-1",
				LocPickup:  coord(3, 0),
				LocDropoff: coord(3, 1),
				Revenue:    200,
			}})

			stats := agent.Stats()
			Expect(stats.Won).To(Equal(1))
			Expect(stats.Paid).To(Equal(120.0))

			jobs := agent.Jobs()
			Expect(jobs).To(HaveLen(2))
			Expect(jobs[1].ID).To(Equal("foreign-1"))
			Expect(jobs[1].Revenue).To(Equal(200.0))
		})

		It("ignores lots won by someone else entirely", func() {
			agent.ReconcileResults([]msg.OfferDict{{
				Offeror:    "carrier-b",
				Winner:     "carrier-c",
				WinningBid: msg.SomeAmount(120),
				OfferID:    "foreign-1",
			}})

			Expect(agent.Stats()).To(Equal(carrier.DayStats{}))
			Expect(agent.Jobs()).To(HaveLen(1))
		})
	})

	Describe("TourProfit", func() {
		It("is total revenue minus the cost of the optimal tour", func() {
			_, err := agent.SelectOffers()
			Expect(err).NotTo(HaveOccurred())

			// Keeper alone: tour distance 4, one loading charge.
			profit, err := agent.TourProfit()
			Expect(err).NotTo(HaveOccurred())
			Expect(profit).To(Equal(446.0))
		})
	})
})
