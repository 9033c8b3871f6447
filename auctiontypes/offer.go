package auctiontypes

import "sort"

// NoWinner is the sentinel carrier id for an offer that has not been sold.
const NoWinner = "NONE"

// Offer is a single transport request under negotiation. It is created when
// the owning carrier submits it during registration, collects bids while its
// lot is on auction, and carries the sale outcome once results are determined.
type Offer struct {
	OfferID      string
	CarrierID    string
	Pickup       Coordinate
	Dropoff      Coordinate
	Revenue      float64
	ReservePrice float64

	Bids       map[string]float64
	OnAuction  bool
	Winner     string
	WinningBid float64
}

func NewOffer(carrierID, offerID string, pickup, dropoff Coordinate, reservePrice, revenue float64) *Offer {
	return &Offer{
		OfferID:      offerID,
		CarrierID:    carrierID,
		Pickup:       pickup,
		Dropoff:      dropoff,
		Revenue:      revenue,
		ReservePrice: reservePrice,
		Bids:         map[string]float64{},
		Winner:       NoWinner,
	}
}

// AddBid records a bid; a later bid from the same bidder replaces the earlier
// one.
func (o *Offer) AddBid(bidder string, amount float64) {
	o.Bids[bidder] = amount
}

func (o *Offer) Sold() bool {
	return o.Winner != NoWinner
}

// QualifyingBidders returns the bidders whose bids strictly exceed the reserve
// price, ordered by descending amount. Equal amounts are ordered by bidder id
// so that outcomes are reproducible.
func (o *Offer) QualifyingBidders() []string {
	bidders := []string{}
	for bidder, amount := range o.Bids {
		if amount > o.ReservePrice {
			bidders = append(bidders, bidder)
		}
	}
	sort.Slice(bidders, func(i, j int) bool {
		bi, bj := o.Bids[bidders[i]], o.Bids[bidders[j]]
		if bi != bj {
			return bi > bj
		}
		return bidders[i] < bidders[j]
	})
	return bidders
}

// HasLegalBid reports whether at least one recorded bid strictly exceeds the
// reserve price.
func (o *Offer) HasLegalBid() bool {
	for _, amount := range o.Bids {
		if amount > o.ReservePrice {
			return true
		}
	}
	return false
}

// ResetOutcome clears any sale result, leaving the bid set untouched.
func (o *Offer) ResetOutcome() {
	o.Winner = NoWinner
	o.WinningBid = 0
}
