package auctionrunner_test

import (
	"os"
	"syscall"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"code.cloudfoundry.org/lager/lagertest"

	. "github.com/carriernet/auction/auctionrunner"
	"github.com/carriernet/auction/auctiontypes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type recordingDayLog struct {
	date   time.Time
	unsold []auctiontypes.Offer
	calls  int
}

func (d *recordingDayLog) RecordUnsold(date time.Time, offers []auctiontypes.Offer) error {
	d.date = date
	d.unsold = offers
	d.calls++
	return nil
}

var _ = Describe("Runner", func() {
	var (
		ledger    *Ledger
		runner    *Runner
		rules     auctiontypes.AuctionRules
		fakeClock *fakeclock.FakeClock
		logger    *lagertest.TestLogger
		dayLog    *recordingDayLog
		phases    <-chan PhaseChange
		signals   chan os.Signal
		done      chan error
	)

	startRunner := func() {
		phases = runner.SubscribeToPhases()
		signals = make(chan os.Signal, 1)
		ready := make(chan struct{})
		done = make(chan error, 1)
		go func() {
			done <- runner.Run(signals, ready)
		}()
		Eventually(ready).Should(BeClosed())
	}

	expectPhase := func(phase auctiontypes.Phase, lotID string) {
		var change PhaseChange
		Eventually(phases).Should(Receive(&change))
		Expect(change.Phase).To(Equal(phase))
		Expect(change.LotID).To(Equal(lotID))
	}

	advance := func(d time.Duration) {
		fakeClock.WaitForWatcherAndIncrement(d)
	}

	BeforeEach(func() {
		fakeClock = fakeclock.NewFakeClock(time.Unix(1700000000, 0))
		logger = lagertest.NewTestLogger("test")
		dayLog = &recordingDayLog{}

		rules = auctiontypes.DefaultAuctionRules()
		rules.BaseTimeout = 10 * time.Second
		ledger = NewLedger(2*rules.BaseTimeout, fakeClock, logger)
		runner = NewRunner(ledger, rules, fakeClock, logger, dayLog)

		Expect(ledger.RegisterCarrier("owner")).To(Succeed())
		Expect(ledger.RegisterCarrier("carrier-a")).To(Succeed())
		Expect(ledger.RegisterCarrier("carrier-b")).To(Succeed())
	})

	Context("when the only offer sells in the bundle round", func() {
		BeforeEach(func() {
			offer := auctiontypes.NewOffer("owner", "o1", auctiontypes.Coordinate{PosX: 1, PosY: 1}, auctiontypes.Coordinate{PosX: 4, PosY: 5}, 80, 300)
			Expect(ledger.SubmitOffer("owner", offer)).To(Succeed())
			startRunner()
		})

		It("runs one full lot cycle and closes the day", func() {
			advance(2 * rules.BaseTimeout)

			expectPhase(auctiontypes.PhaseRequestOffer, BundleIDPrefix+"o1")
			view, err := ledger.LotOnAuction("carrier-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Revenue).To(Equal(300.0))
			advance(rules.BaseTimeout)

			expectPhase(auctiontypes.PhaseBid, BundleIDPrefix+"o1")
			Expect(ledger.PlaceBid("carrier-a", BundleIDPrefix+"o1", 90)).To(Succeed())
			Expect(ledger.PlaceBid("carrier-b", BundleIDPrefix+"o1", 100)).To(Succeed())
			advance(rules.BaseTimeout)

			expectPhase(auctiontypes.PhaseResults, BundleIDPrefix+"o1")
			for _, carrierID := range []string{"owner", "carrier-a", "carrier-b"} {
				offers, err := ledger.Results(carrierID)
				Expect(err).NotTo(HaveOccurred())
				Expect(offers).To(HaveLen(1))
				Expect(offers[0].Winner).To(Equal("carrier-b"))
				Expect(offers[0].WinningBid).To(Equal(90.0))
			}
			advance(rules.BaseTimeout)

			expectPhase(auctiontypes.PhaseConfirm, BundleIDPrefix+"o1")
			offers, _, err := ledger.Confirm("carrier-b")
			Expect(err).NotTo(HaveOccurred())
			Expect(offers[0].Winner).To(Equal("carrier-b"))
			advance(rules.BaseTimeout)

			Eventually(done).Should(Receive(BeNil()))
			Expect(ledger.OpenForBusiness()).To(BeFalse())
			Expect(dayLog.calls).To(Equal(1))
			Expect(dayLog.unsold).To(BeEmpty())
		})
	})

	Context("the instant the results window opens", func() {
		BeforeEach(func() {
			offer := auctiontypes.NewOffer("owner", "o1", auctiontypes.Coordinate{}, auctiontypes.Coordinate{}, 80, 300)
			Expect(ledger.SubmitOffer("owner", offer)).To(Succeed())
			startRunner()
		})

		It("already exposes the priced outcome", func() {
			advance(2 * rules.BaseTimeout)
			expectPhase(auctiontypes.PhaseRequestOffer, BundleIDPrefix+"o1")
			advance(rules.BaseTimeout)

			expectPhase(auctiontypes.PhaseBid, BundleIDPrefix+"o1")
			Expect(ledger.PlaceBid("carrier-a", BundleIDPrefix+"o1", 90)).To(Succeed())
			Expect(ledger.PlaceBid("carrier-b", BundleIDPrefix+"o1", 100)).To(Succeed())
			advance(rules.BaseTimeout)

			// No clock advance between the broadcast and the retrieval: the
			// winner is determined before the window opens.
			expectPhase(auctiontypes.PhaseResults, BundleIDPrefix+"o1")
			offers, err := ledger.Results("carrier-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(offers[0].Winner).To(Equal("carrier-b"))
			Expect(offers[0].WinningBid).To(Equal(90.0))
		})
	})

	Context("when no legal bid ever arrives", func() {
		BeforeEach(func() {
			offer := auctiontypes.NewOffer("owner", "o1", auctiontypes.Coordinate{}, auctiontypes.Coordinate{}, 80, 300)
			Expect(ledger.SubmitOffer("owner", offer)).To(Succeed())
			startRunner()
		})

		retrieveResults := func() {
			for _, carrierID := range []string{"owner", "carrier-a", "carrier-b"} {
				_, err := ledger.Results(carrierID)
				Expect(err).NotTo(HaveOccurred())
			}
		}

		It("abandons bundle rounds, then ends the day after the singleton round", func() {
			advance(2 * rules.BaseTimeout)

			// Bundle round: shares below the reserve are recorded anyway.
			expectPhase(auctiontypes.PhaseRequestOffer, BundleIDPrefix+"o1")
			advance(rules.BaseTimeout)
			expectPhase(auctiontypes.PhaseBid, BundleIDPrefix+"o1")
			Expect(ledger.PlaceBid("carrier-a", BundleIDPrefix+"o1", 50)).To(Succeed())
			Expect(ledger.PlaceBid("carrier-b", BundleIDPrefix+"o1", 60)).To(Succeed())
			advance(rules.BaseTimeout)

			expectPhase(auctiontypes.PhaseResults, BundleIDPrefix+"o1")
			retrieveResults()
			advance(rules.BaseTimeout)

			expectPhase(auctiontypes.PhaseConfirm, BundleIDPrefix+"o1")
			_, next, err := ledger.Confirm("carrier-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(BeTrue())
			advance(rules.BaseTimeout)

			// Singleton round: a bid at or below the reserve is rejected outright.
			expectPhase(auctiontypes.PhaseRequestOffer, "o1")
			advance(rules.BaseTimeout)
			expectPhase(auctiontypes.PhaseBid, "o1")
			Expect(ledger.PlaceBid("carrier-a", "o1", 50)).To(MatchError(auctiontypes.ErrInvalidBid))
			advance(rules.BaseTimeout)

			expectPhase(auctiontypes.PhaseResults, "o1")
			retrieveResults()
			advance(rules.BaseTimeout)

			expectPhase(auctiontypes.PhaseConfirm, "o1")
			offers, next, err := ledger.Confirm("carrier-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(BeFalse())
			Expect(offers[0].Winner).To(Equal(auctiontypes.NoWinner))
			advance(rules.BaseTimeout)

			Eventually(done).Should(Receive(BeNil()))
			Expect(dayLog.unsold).To(HaveLen(1))
			Expect(dayLog.unsold[0].OfferID).To(Equal("o1"))
			Expect(dayLog.unsold[0].Winner).To(Equal(auctiontypes.NoWinner))
		})
	})

	Context("when nudged to skip a phase wait", func() {
		BeforeEach(func() {
			offer := auctiontypes.NewOffer("owner", "o1", auctiontypes.Coordinate{}, auctiontypes.Coordinate{}, 80, 300)
			Expect(ledger.SubmitOffer("owner", offer)).To(Succeed())
			startRunner()
		})

		It("advances without waiting out the clock", func() {
			advance(2 * rules.BaseTimeout)
			expectPhase(auctiontypes.PhaseRequestOffer, BundleIDPrefix+"o1")

			runner.Skip()
			expectPhase(auctiontypes.PhaseBid, BundleIDPrefix+"o1")
		})
	})

	Context("when signalled", func() {
		It("stops before any offer arrives", func() {
			startRunner()
			signals <- syscall.SIGTERM
			Eventually(done).Should(Receive(BeNil()))
		})

		It("stops mid-phase without flushing the day log", func() {
			offer := auctiontypes.NewOffer("owner", "o1", auctiontypes.Coordinate{}, auctiontypes.Coordinate{}, 80, 300)
			Expect(ledger.SubmitOffer("owner", offer)).To(Succeed())
			startRunner()

			advance(2 * rules.BaseTimeout)
			expectPhase(auctiontypes.PhaseRequestOffer, BundleIDPrefix+"o1")

			signals <- syscall.SIGTERM
			Eventually(done).Should(Receive(BeNil()))
			Expect(dayLog.calls).To(BeZero())
		})
	})
})
