package auctionrunner

import (
	"os"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager"

	"github.com/carriernet/auction/auctiontypes"
)

// DayLog receives whatever is left on the auction list when the day closes.
type DayLog interface {
	RecordUnsold(date time.Time, offers []auctiontypes.Offer) error
}

// PhaseChange is broadcast to subscribers whenever the runner advances the
// state machine. Carriers in the same process (simulation, tests) can act on
// it instead of polling.
type PhaseChange struct {
	Phase    auctiontypes.Phase
	LotID    string
	Deadline time.Time
}

// Runner drives the auction-day state machine: it waits out the registration
// window, builds the day's bundles, then cycles every lot through the
// REQ_OFFER, BID, RESULTS and CONFIRM windows until everything is sold or no
// legal bid remains. All state lives in the Ledger; the runner only advances
// phases and applies the round bookkeeping between them.
type Runner struct {
	ledger *Ledger
	rules  auctiontypes.AuctionRules
	clock  clock.Clock
	logger lager.Logger
	dayLog DayLog

	skip chan struct{}

	subscriberLock sync.Mutex
	subscribers    []chan PhaseChange
}

func NewRunner(ledger *Ledger, rules auctiontypes.AuctionRules, clk clock.Clock, logger lager.Logger, dayLog DayLog) *Runner {
	return &Runner{
		ledger: ledger,
		rules:  rules,
		clock:  clk,
		logger: logger.Session("auction-day"),
		dayLog: dayLog,
		skip:   make(chan struct{}, 1),
	}
}

// SubscribeToPhases returns a channel receiving every phase transition. Slow
// subscribers miss transitions rather than blocking the runner.
func (r *Runner) SubscribeToPhases() <-chan PhaseChange {
	r.subscriberLock.Lock()
	defer r.subscriberLock.Unlock()

	ch := make(chan PhaseChange, 32)
	r.subscribers = append(r.subscribers, ch)
	return ch
}

// Skip cancels the current phase wait, advancing the state machine
// immediately.
func (r *Runner) Skip() {
	select {
	case r.skip <- struct{}{}:
	default:
	}
}

func (r *Runner) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	close(ready)
	r.logger.Info("started")

	// Registration stays open until the first offer arms the day clock.
	select {
	case <-r.ledger.Armed():
	case <-signals:
		r.logger.Info("stopped-before-any-offer")
		return nil
	}
	if !r.waitUntil(r.ledger.Deadline(), signals) {
		return nil
	}

	r.ledger.GenerateBundles(r.rules.BundleSize)

	bundlePhaseOver := false
	for round := 0; round < r.rules.MaxRounds && r.ledger.OpenForBusiness(); round++ {
		bundleRound := round < r.rules.BundleRounds && !bundlePhaseOver
		lots := r.ledger.RoundLots(bundleRound)
		r.logger.Info("round-started", lager.Data{
			"round":        round + 1,
			"bundle-round": bundleRound,
			"lots":         len(lots),
		})

		sold := 0
		for i, lot := range lots {
			if !r.ledger.StartLot(lot) {
				continue
			}

			if !r.runPhase(auctiontypes.PhaseRequestOffer, signals) {
				return nil
			}
			if !r.runPhase(auctiontypes.PhaseBid, signals) {
				return nil
			}

			// Pricing runs before the results window opens so even the
			// first retrieval sees the finalized winner.
			r.ledger.RunPricing(r.rules.Pricing)
			deadline := r.enterPhase(auctiontypes.PhaseResults)
			if !r.waitUntil(deadline, signals) {
				return nil
			}
			r.ledger.ReconcileActiveCarriers()

			sold += r.ledger.LotSoldCount()
			lastLot := i == len(lots)-1
			if lastLot && sold == 0 && !r.ledger.ExistsLegalUnsoldBid() {
				if bundleRound {
					// Nothing moved on bundles; fall through to
					// singleton rounds instead of repeating them.
					bundlePhaseOver = true
					r.logger.Info("bundle-rounds-abandoned")
				} else {
					r.ledger.SetNextRound(false)
				}
			}
			// The verdict must be in place before the confirm window so
			// carriers learn the day is over from their last exchange.
			if lastLot && (r.ledger.PendingOfferCount() == 0 || round == r.rules.MaxRounds-1) {
				r.ledger.SetNextRound(false)
			}

			if !r.runPhase(auctiontypes.PhaseConfirm, signals) {
				return nil
			}
			r.ledger.EndLot()
		}

		remaining := r.ledger.UpdateAuctionList()
		r.logger.Info("round-finished", lager.Data{"sold": sold, "remaining": remaining})

		if remaining == 0 || !r.ledger.NextRound() {
			r.ledger.Close()
		}
	}

	r.ledger.Close()
	r.flushDayLog()
	r.logger.Info("auction-day-closed")
	return nil
}

// runPhase opens a phase window and waits it out. Returns false on shutdown.
func (r *Runner) runPhase(phase auctiontypes.Phase, signals <-chan os.Signal) bool {
	return r.waitUntil(r.enterPhase(phase), signals)
}

func (r *Runner) enterPhase(phase auctiontypes.Phase) time.Time {
	deadline := r.clock.Now().Add(r.rules.BaseTimeout)
	r.ledger.SetPhase(phase, deadline)
	r.logger.Info("entering-phase", lager.Data{"phase": phase, "deadline": deadline})
	r.broadcast(PhaseChange{Phase: phase, LotID: r.ledger.LotID(), Deadline: deadline})
	return deadline
}

// waitUntil blocks until the deadline, a skip, or shutdown. Returns false only
// on shutdown.
func (r *Runner) waitUntil(deadline time.Time, signals <-chan os.Signal) bool {
	duration := deadline.Sub(r.clock.Now())
	if duration <= 0 {
		return true
	}
	timer := r.clock.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C():
		return true
	case <-r.skip:
		return true
	case <-signals:
		r.logger.Info("interrupted")
		return false
	}
}

func (r *Runner) broadcast(change PhaseChange) {
	r.subscriberLock.Lock()
	defer r.subscriberLock.Unlock()

	for _, subscriber := range r.subscribers {
		select {
		case subscriber <- change:
		default:
		}
	}
}

func (r *Runner) flushDayLog() {
	if r.dayLog == nil {
		return
	}
	unsold := r.ledger.LiveOffers()
	if err := r.dayLog.RecordUnsold(r.clock.Now(), unsold); err != nil {
		r.logger.Error("failed-to-record-unsold-offers", err)
	}
}
