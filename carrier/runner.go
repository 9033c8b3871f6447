package carrier

import (
	"errors"
	"os"
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager"

	"github.com/carriernet/auction/communication/carrierclient"
	"github.com/carriernet/auction/communication/msg"
)

// StatsLog receives the carrier's profit change when the auction day closes.
type StatsLog interface {
	RecordCarrierDay(date time.Time, carrierID string, oldProfit, newProfit float64) error
}

var ErrRegistrationRefused = errors.New("carrier: registration refused")

const (
	// The grace added to every auctioneer deadline before acting is a
	// quarter of the remaining phase window, clamped to this range, so a
	// carrier never races the phase transition it is waiting for and never
	// overshoots a short window.
	deadlineGraceMin = 50 * time.Millisecond
	deadlineGraceMax = 500 * time.Millisecond

	pollInterval = time.Second
)

// Runner drives one carrier through a whole auction day: register, offload
// sub-threshold jobs, then follow the lot cycles until the auctioneer reports
// no further round. The auctioneer's timeout field is authoritative; the
// runner sleeps until each returned deadline before acting again.
type Runner struct {
	client   *carrierclient.Client
	agent    *Agent
	clock    clock.Clock
	logger   lager.Logger
	statsLog StatsLog
}

func NewRunner(client *carrierclient.Client, agent *Agent, clk clock.Clock, logger lager.Logger, statsLog StatsLog) *Runner {
	return &Runner{
		client:   client,
		agent:    agent,
		clock:    clk,
		logger:   logger.Session("carrier-day", lager.Data{"carrier": agent.CarrierID()}),
		statsLog: statsLog,
	}
}

func (r *Runner) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	close(ready)

	oldProfit, err := r.agent.TourProfit()
	if err != nil {
		return err
	}

	registration, _, err := r.client.Register()
	if err != nil {
		return err
	}
	if registration.Status != msg.StatusOK && registration.Status != msg.StatusAlreadyRegistered {
		r.logger.Info("registration-refused", lager.Data{"status": registration.Status})
		return ErrRegistrationRefused
	}

	offers, err := r.agent.SelectOffers()
	if err != nil {
		return err
	}
	var dayStart time.Time
	for _, payload := range offers {
		response, deadline, err := r.client.SubmitOffer(payload)
		if err != nil {
			return err
		}
		if response.Response != msg.StatusOK {
			r.logger.Info("offer-rejected", lager.Data{
				"offer":  payload.OfferID,
				"status": response.Response,
			})
			continue
		}
		dayStart = deadline
	}
	r.logger.Info("offers-submitted", lager.Data{"count": len(offers)})

	if !r.waitUntil(dayStart, signals) {
		return nil
	}

	for {
		lot, deadline, err := r.client.RequestOffer()
		if err != nil {
			if !r.pause(signals) {
				return nil
			}
			continue
		}

		switch lot.Status {
		case msg.StatusOK:
			finished, ok := r.playLot(*lot.Offer, deadline, signals)
			if !ok {
				return nil
			}
			if finished {
				return r.finishDay(oldProfit)
			}
		case msg.StatusNoOffersAvailable:
			// The day closed with nothing left to auction.
			return r.finishDay(oldProfit)
		case msg.StatusNotRegistered:
			return ErrRegistrationRefused
		default:
			// Between phases or between lots; poll again shortly.
			if !r.pause(signals) {
				return nil
			}
		}
	}
}

// playLot bids on one lot and follows it through results and confirmation.
// Returns finished=true when the auctioneer announced the last round, ok=false
// on shutdown.
func (r *Runner) playLot(lot msg.LotPayload, reqOfferDeadline time.Time, signals <-chan os.Signal) (finished bool, ok bool) {
	bid, err := r.agent.ComputeBid(lot)
	if err != nil {
		r.logger.Error("failed-to-compute-bid", err, lager.Data{"lot": lot.OfferID})
		bid = 0
	}

	if !r.waitUntil(reqOfferDeadline, signals) {
		return false, false
	}

	if bid > 0 {
		response, deadline, err := r.client.Bid(lot.OfferID, bid)
		if err == nil && response.Status == msg.StatusOK {
			r.logger.Info("bid-placed", lager.Data{"lot": lot.OfferID, "bid": bid})
			if !r.waitUntil(deadline, signals) {
				return false, false
			}
		} else if err == nil {
			r.logger.Info("bid-not-accepted", lager.Data{"lot": lot.OfferID, "status": response.Status})
		}
	}

	// The results snapshot is taken before the auctioneer reconciles
	// dropped carriers; retrieving it keeps this carrier in the active set,
	// but outcomes are only applied from the finalized confirm payload.
	_, resultsDeadline, ok := r.retrieveResults(signals)
	if !ok {
		return false, false
	}
	if !r.waitUntil(resultsDeadline, signals) {
		return false, false
	}

	confirmation, confirmDeadline, ok := r.retrieveConfirmation(signals)
	if !ok {
		return false, false
	}
	r.agent.ReconcileResults(confirmation.Offers)
	if !confirmation.NextRound {
		return true, true
	}
	if !r.waitUntil(confirmDeadline, signals) {
		return false, false
	}
	return false, true
}

func (r *Runner) retrieveResults(signals <-chan os.Signal) (msg.ResultsResponse, time.Time, bool) {
	for {
		response, deadline, err := r.client.RequestResults()
		if err == nil && response.Status == msg.StatusOK {
			return response, deadline, true
		}
		if !r.pause(signals) {
			return msg.ResultsResponse{}, time.Time{}, false
		}
	}
}

func (r *Runner) retrieveConfirmation(signals <-chan os.Signal) (msg.ConfirmResponse, time.Time, bool) {
	for {
		response, deadline, err := r.client.Confirm()
		if err == nil && response.Status == msg.StatusOK {
			return response, deadline, true
		}
		if !r.pause(signals) {
			return msg.ConfirmResponse{}, time.Time{}, false
		}
	}
}

func (r *Runner) finishDay(oldProfit float64) error {
	r.agent.AbsorbUnsold()

	newProfit, err := r.agent.TourProfit()
	if err != nil {
		return err
	}
	stats := r.agent.Stats()
	r.logger.Info("auction-day-finished", lager.Data{
		"old-profit": oldProfit,
		"new-profit": newProfit,
		"sold":       stats.Sold,
		"won":        stats.Won,
	})

	if r.statsLog == nil {
		return nil
	}
	return r.statsLog.RecordCarrierDay(r.clock.Now(), r.agent.CarrierID(), oldProfit, newProfit)
}

// waitUntil sleeps past the given deadline plus a grace period. Returns false
// on shutdown.
func (r *Runner) waitUntil(deadline time.Time, signals <-chan os.Signal) bool {
	if deadline.IsZero() {
		return r.pause(signals)
	}
	remaining := deadline.Sub(r.clock.Now())
	grace := remaining / 4
	if grace < deadlineGraceMin {
		grace = deadlineGraceMin
	}
	if grace > deadlineGraceMax {
		grace = deadlineGraceMax
	}
	duration := remaining + grace
	if duration <= 0 {
		return true
	}
	timer := r.clock.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C():
		return true
	case <-signals:
		r.logger.Info("interrupted")
		return false
	}
}

func (r *Runner) pause(signals <-chan os.Signal) bool {
	timer := r.clock.NewTimer(pollInterval)
	defer timer.Stop()

	select {
	case <-timer.C():
		return true
	case <-signals:
		r.logger.Info("interrupted")
		return false
	}
}
