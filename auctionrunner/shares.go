package auctionrunner

import "github.com/carriernet/auction/auctiontypes"

// ComputeShare splits a bundle bid across its member offers in proportion to
// their stated revenue. Summing the share over every member for the same bid
// reproduces the bid, so bundle bids can be recorded per offer and processed
// exactly like singleton bids.
func ComputeShare(members []*auctiontypes.Offer, offerID string, bid float64) float64 {
	total := 0.0
	single := 0.0
	for _, offer := range members {
		total += offer.Revenue
		if offer.OfferID == offerID {
			single = offer.Revenue
		}
	}
	if total == 0 {
		return 0
	}
	return (single / total) * bid
}
