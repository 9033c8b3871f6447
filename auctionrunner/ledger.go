package auctionrunner

import (
	"sort"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager"

	"github.com/carriernet/auction/auctiontypes"
)

// BundleIDPrefix marks a lot id as referring to a bundle rather than a single
// offer. A bundle lot is identified on the wire by its first member's offer id.
const BundleIDPrefix = "bundle_"

// LotView is what a carrier sees of the lot currently on auction.
type LotView struct {
	ID       string
	Pickups  []auctiontypes.Coordinate
	Dropoffs []auctiontypes.Coordinate
	Revenue  float64
}

// Ledger is the single owner of all mutable auction-day state: the live offer
// list, the bundle map, the carrier sets, the current phase and the lot on
// auction. Connection handlers and the phase runner never touch that state
// directly; every read and write goes through a command method, and every
// command method serializes on one mutex so a request cannot slip in after its
// phase has closed.
type Ledger struct {
	clock  clock.Clock
	logger lager.Logger

	lock       sync.Mutex
	offers     []*auctiontypes.Offer
	bundles    map[int][]string
	registered map[string]bool
	active     map[string]bool
	phase      auctiontypes.Phase
	deadline   time.Time
	lotIndices []int
	lot        auctiontypes.Lot
	lotID      string
	hasLot     bool
	open       bool
	nextRound  bool
	armTimeout time.Duration

	armed chan struct{}
}

// NewLedger creates a ledger in the registration phase. armTimeout is how far
// in the future the first accepted offer schedules the start of the day.
func NewLedger(armTimeout time.Duration, clk clock.Clock, logger lager.Logger) *Ledger {
	return &Ledger{
		clock:      clk,
		logger:     logger.Session("ledger"),
		bundles:    map[int][]string{},
		registered: map[string]bool{},
		active:     map[string]bool{},
		phase:      auctiontypes.PhaseRegistration,
		open:       true,
		nextRound:  true,
		armTimeout: armTimeout,
		armed:      make(chan struct{}, 1),
	}
}

// Armed is signalled once, when the first offer submission schedules the
// auction day.
func (l *Ledger) Armed() <-chan struct{} {
	return l.armed
}

func (l *Ledger) RegisterCarrier(carrierID string) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.phase != auctiontypes.PhaseRegistration {
		return auctiontypes.ErrPhaseMismatch
	}
	if l.registered[carrierID] {
		return auctiontypes.ErrAlreadyRegistered
	}
	l.registered[carrierID] = true
	l.logger.Info("carrier-registered", lager.Data{"carrier": carrierID})
	return nil
}

func (l *Ledger) SubmitOffer(carrierID string, offer *auctiontypes.Offer) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.phase != auctiontypes.PhaseRegistration {
		return auctiontypes.ErrPhaseMismatch
	}
	if !l.registered[carrierID] {
		return auctiontypes.ErrNotRegistered
	}

	l.offers = append(l.offers, offer)
	l.logger.Info("offer-submitted", lager.Data{
		"carrier":  carrierID,
		"offer":    offer.OfferID,
		"revenue":  offer.Revenue,
		"reserve":  offer.ReservePrice,
	})

	// The first accepted offer arms the day clock.
	if l.deadline.IsZero() {
		l.deadline = l.clock.Now().Add(l.armTimeout)
		select {
		case l.armed <- struct{}{}:
		default:
		}
		l.logger.Info("auction-day-armed", lager.Data{"starts-at": l.deadline})
	}
	return nil
}

// LotOnAuction returns the pickup/dropoff list and aggregate revenue of the
// current lot. Only valid during the offer-request window.
func (l *Ledger) LotOnAuction(carrierID string) (LotView, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.phase != auctiontypes.PhaseRequestOffer {
		return LotView{}, auctiontypes.ErrPhaseMismatch
	}
	if !l.registered[carrierID] {
		return LotView{}, auctiontypes.ErrNotRegistered
	}
	if len(l.offers) == 0 {
		return LotView{}, auctiontypes.ErrNoOffers
	}

	view := LotView{ID: l.lotID}
	for _, i := range l.lotIndices {
		offer := l.offers[i]
		if !offer.OnAuction {
			continue
		}
		view.Pickups = append(view.Pickups, offer.Pickup)
		view.Dropoffs = append(view.Dropoffs, offer.Dropoff)
		view.Revenue += offer.Revenue
	}
	if len(view.Pickups) == 0 {
		return LotView{}, auctiontypes.ErrNoActiveOffers
	}
	return view, nil
}

// PlaceBid records a bid against the current lot. For a bundle lot the bid is
// converted to per-offer shares before recording, and legality against each
// reserve is deferred to price determination; for a singleton lot a bid at or
// below the reserve is rejected outright.
func (l *Ledger) PlaceBid(carrierID, lotID string, amount float64) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.phase != auctiontypes.PhaseBid {
		return auctiontypes.ErrPhaseMismatch
	}
	if !l.registered[carrierID] {
		return auctiontypes.ErrNotRegistered
	}
	if !l.hasLot || lotID != l.lotID {
		return auctiontypes.ErrUnknownLot
	}

	if l.lot.IsBundle {
		members := l.lotOffers()
		for _, member := range members {
			share := ComputeShare(members, member.OfferID, amount)
			member.AddBid(carrierID, share)
		}
		l.logger.Info("bundle-bid-recorded", lager.Data{
			"carrier": carrierID,
			"lot":     lotID,
			"bid":     amount,
			"members": len(members),
		})
		return nil
	}

	offers := l.lotOffers()
	if len(offers) != 1 {
		return auctiontypes.ErrUnknownLot
	}
	offer := offers[0]
	if amount <= offer.ReservePrice {
		l.logger.Info("bid-rejected-below-reserve", lager.Data{
			"carrier": carrierID,
			"lot":     lotID,
			"bid":     amount,
		})
		return auctiontypes.ErrInvalidBid
	}
	offer.AddBid(carrierID, amount)
	l.logger.Info("bid-recorded", lager.Data{"carrier": carrierID, "lot": lotID, "bid": amount})
	return nil
}

// Results returns the finalized lot offers and marks the requesting carrier as
// having completed this round's results retrieval.
func (l *Ledger) Results(carrierID string) ([]auctiontypes.Offer, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.phase != auctiontypes.PhaseResults {
		return nil, auctiontypes.ErrPhaseMismatch
	}
	if !l.registered[carrierID] {
		return nil, auctiontypes.ErrNotRegistered
	}

	l.active[carrierID] = true
	return l.lotSnapshot(), nil
}

// Confirm returns the lot outcome together with whether another round follows.
func (l *Ledger) Confirm(carrierID string) ([]auctiontypes.Offer, bool, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.phase != auctiontypes.PhaseConfirm {
		return nil, false, auctiontypes.ErrPhaseMismatch
	}
	if !l.registered[carrierID] {
		return nil, false, auctiontypes.ErrNotRegistered
	}
	return l.lotSnapshot(), l.nextRound, nil
}

// Deadline is the instant the current phase window closes; zero until the day
// has been armed.
func (l *Ledger) Deadline() time.Time {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.deadline
}

// LotID is the wire id of the lot currently on auction, empty between lots.
func (l *Ledger) LotID() string {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.lotID
}

func (l *Ledger) Phase() auctiontypes.Phase {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.phase
}

// --- phase-runner surface ---

func (l *Ledger) SetPhase(phase auctiontypes.Phase, deadline time.Time) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.phase = phase
	l.deadline = deadline
}

// GenerateBundles runs the bundle builder over the current offer list. Bundles
// are computed once per auction day and never regenerated; stale bundles are
// skipped at lot start instead.
func (l *Ledger) GenerateBundles(bundleSize int) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.bundles = BuildBundles(l.offers, bundleSize)
	l.logger.Info("bundles-generated", lager.Data{"bundles": l.bundles})
	for index, members := range l.bundles {
		if len(members) == 0 {
			l.logger.Info("empty-bundle", lager.Data{"bundle": index})
		}
	}
}

// BundleCount reports how many bundles the day's one-shot builder produced.
func (l *Ledger) BundleCount() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.bundles)
}

// RoundLots lists the lots for the upcoming round: one lot per bundle during
// bundle rounds, one lot per live offer afterwards.
func (l *Ledger) RoundLots(bundleRound bool) []auctiontypes.Lot {
	l.lock.Lock()
	defer l.lock.Unlock()

	lots := []auctiontypes.Lot{}
	if bundleRound {
		for index := 0; index < len(l.bundles); index++ {
			lots = append(lots, auctiontypes.BundleLot(index))
		}
		return lots
	}
	for _, offer := range l.offers {
		lots = append(lots, auctiontypes.SingleLot(offer.OfferID))
	}
	return lots
}

// StartLot marks the lot's offers as on auction and resets the active-carrier
// set for the new round. It reports false for a stale lot, one whose member
// offers have all left the live list.
func (l *Ledger) StartLot(lot auctiontypes.Lot) bool {
	l.lock.Lock()
	defer l.lock.Unlock()

	indices := []int{}
	firstMember := ""
	if lot.IsBundle {
		index := map[string]int{}
		for i, offer := range l.offers {
			index[offer.OfferID] = i
		}
		for _, id := range l.bundles[lot.BundleIndex] {
			i, live := index[id]
			if !live {
				continue
			}
			indices = append(indices, i)
			if firstMember == "" {
				firstMember = id
			}
		}
	} else {
		for i, offer := range l.offers {
			if offer.OfferID == lot.OfferID {
				indices = append(indices, i)
			}
		}
	}

	if len(indices) == 0 {
		l.logger.Info("skipping-stale-lot", lager.Data{"bundle": lot.IsBundle})
		return false
	}

	l.lot = lot
	l.lotIndices = indices
	l.hasLot = true
	if lot.IsBundle {
		l.lotID = BundleIDPrefix + firstMember
	} else {
		l.lotID = lot.OfferID
	}
	for _, i := range indices {
		l.offers[i].OnAuction = true
	}
	l.active = map[string]bool{}
	return true
}

// EndLot clears the on-auction flags once the lot's confirm window closes.
func (l *Ledger) EndLot() {
	l.lock.Lock()
	defer l.lock.Unlock()

	for _, i := range l.lotIndices {
		l.offers[i].OnAuction = false
	}
	l.lotIndices = nil
	l.lotID = ""
	l.hasLot = false
}

// RunPricing determines winner and price for every offer in the current lot.
func (l *Ledger) RunPricing(mode auctiontypes.PricingMode) {
	l.lock.Lock()
	defer l.lock.Unlock()

	for _, offer := range l.lotOffers() {
		DetermineOutcome(offer, mode)
		l.logger.Info("results-determined", lager.Data{
			"offer":       offer.OfferID,
			"winner":      offer.Winner,
			"winning-bid": offer.WinningBid,
		})
	}
}

// ReconcileActiveCarriers drops every registered carrier that did not complete
// this round's results retrieval. Sales to or by a dropped carrier are
// invalidated; the surviving bid set is kept only if some remaining bid still
// beats the reserve, otherwise it is cleared.
func (l *Ledger) ReconcileActiveCarriers() {
	l.lock.Lock()
	defer l.lock.Unlock()

	dropped := map[string]bool{}
	for carrierID := range l.registered {
		if !l.active[carrierID] {
			dropped[carrierID] = true
		}
	}
	if len(dropped) == 0 {
		return
	}

	for _, offer := range l.lotOffers() {
		if !dropped[offer.Winner] && !dropped[offer.CarrierID] {
			continue
		}
		for carrierID := range dropped {
			delete(offer.Bids, carrierID)
		}
		offer.ResetOutcome()
		if !offer.HasLegalBid() {
			offer.Bids = map[string]float64{}
		}
	}

	for carrierID := range dropped {
		delete(l.registered, carrierID)
		l.logger.Info("carrier-dropped", lager.Data{"carrier": carrierID})
	}
}

// LotSoldCount reports how many of the current lot's offers were sold.
func (l *Ledger) LotSoldCount() int {
	l.lock.Lock()
	defer l.lock.Unlock()

	sold := 0
	for _, offer := range l.lotOffers() {
		if offer.Sold() {
			sold++
		}
	}
	return sold
}

// ExistsLegalUnsoldBid reports whether any unsold offer holds a bid strictly
// above its reserve price. Used both for the bundle-round short-circuit and
// for whole-day termination.
func (l *Ledger) ExistsLegalUnsoldBid() bool {
	l.lock.Lock()
	defer l.lock.Unlock()

	for _, offer := range l.offers {
		if !offer.Sold() && offer.HasLegalBid() {
			return true
		}
	}
	return false
}

// PendingOfferCount counts the offers that would survive the round's list
// update: unsold and still owned by a registered carrier.
func (l *Ledger) PendingOfferCount() int {
	l.lock.Lock()
	defer l.lock.Unlock()

	count := 0
	for _, offer := range l.offers {
		if !offer.Sold() && l.registered[offer.CarrierID] {
			count++
		}
	}
	return count
}

// UpdateAuctionList drops sold offers and offers whose owner is no longer
// registered, returning how many live offers remain.
func (l *Ledger) UpdateAuctionList() int {
	l.lock.Lock()
	defer l.lock.Unlock()

	remaining := []*auctiontypes.Offer{}
	for _, offer := range l.offers {
		if !offer.Sold() && l.registered[offer.CarrierID] {
			remaining = append(remaining, offer)
		}
	}
	l.offers = remaining
	return len(remaining)
}

func (l *Ledger) SetNextRound(next bool) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.nextRound = next
}

func (l *Ledger) NextRound() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.nextRound
}

// Close ends the auction day; it is never reopened.
func (l *Ledger) Close() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.open = false
	l.nextRound = false
}

func (l *Ledger) OpenForBusiness() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.open
}

// LiveOffers returns a snapshot of the current auction list.
func (l *Ledger) LiveOffers() []auctiontypes.Offer {
	l.lock.Lock()
	defer l.lock.Unlock()

	snapshot := make([]auctiontypes.Offer, 0, len(l.offers))
	for _, offer := range l.offers {
		snapshot = append(snapshot, *offer)
	}
	return snapshot
}

// RegisteredCarriers returns the registered carrier ids, sorted.
func (l *Ledger) RegisteredCarriers() []string {
	l.lock.Lock()
	defer l.lock.Unlock()

	ids := make([]string, 0, len(l.registered))
	for carrierID := range l.registered {
		ids = append(ids, carrierID)
	}
	sort.Strings(ids)
	return ids
}

// lotOffers resolves the current lot indices to offers. Callers hold the lock.
func (l *Ledger) lotOffers() []*auctiontypes.Offer {
	offers := make([]*auctiontypes.Offer, 0, len(l.lotIndices))
	for _, i := range l.lotIndices {
		offers = append(offers, l.offers[i])
	}
	return offers
}

// lotSnapshot copies the current lot's offers. Callers hold the lock.
func (l *Ledger) lotSnapshot() []auctiontypes.Offer {
	offers := l.lotOffers()
	snapshot := make([]auctiontypes.Offer, 0, len(offers))
	for _, offer := range offers {
		snapshot = append(snapshot, *offer)
	}
	return snapshot
}
