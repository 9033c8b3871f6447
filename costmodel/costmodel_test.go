package costmodel_test

import (
	"math/rand"

	"github.com/carriernet/auction/auctiontypes"
	"github.com/carriernet/auction/costmodel"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("CostModel", func() {
	model := costmodel.CostModel{
		BasePrice:     700,
		DistancePrice: 200,
		LoadingCost:   50,
		DistanceCost:  25,
		SellThreshold: 100,
		BuyThreshold:  80,
	}

	It("values a job by base price plus per-distance price over Manhattan distance", func() {
		pickup := auctiontypes.Coordinate{PosX: 1, PosY: 1}
		dropoff := auctiontypes.Coordinate{PosX: 3, PosY: 2}
		Expect(model.MarginalRevenue(pickup, dropoff)).To(Equal(700 + 200*3.0))
	})

	It("charges the loading cost once per job", func() {
		Expect(model.MarginalCost(4, 1)).To(Equal(50 + 25*4.0))
		Expect(model.MarginalCost(4, 3)).To(Equal(150 + 25*4.0))
	})

	It("prices a zero-distance change at the loading cost alone", func() {
		Expect(model.MarginalCost(0, 2)).To(Equal(100.0))
	})

	Describe("Random", func() {
		It("draws coefficients within the simulated-carrier ranges", func() {
			rng := rand.New(rand.NewSource(42))
			for i := 0; i < 100; i++ {
				m := costmodel.Random(rng)
				Expect(m.BasePrice).To(And(BeNumerically(">=", 700), BeNumerically("<", 750)))
				Expect(m.DistancePrice).To(And(BeNumerically(">=", 185), BeNumerically("<", 215)))
				Expect(m.LoadingCost).To(And(BeNumerically(">=", 50), BeNumerically("<", 55)))
				Expect(m.DistanceCost).To(And(BeNumerically(">=", 23), BeNumerically("<", 28)))
			}
		})
	})
})
