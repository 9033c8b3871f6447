package auctionrunner

import "github.com/carriernet/auction/auctiontypes"

// DetermineOutcome runs price determination for one offer once its bidding
// window has closed. Only bids strictly above the reserve price qualify.
//
// Under Vickrey pricing the highest qualifying bidder wins but pays the
// second-highest qualifying bid; with fewer than two qualifying bids there is
// no sale. Under first-price the single highest qualifying bid wins at its own
// amount.
func DetermineOutcome(offer *auctiontypes.Offer, mode auctiontypes.PricingMode) {
	qualifying := offer.QualifyingBidders()

	switch mode {
	case auctiontypes.PricingFirstPrice:
		if len(qualifying) == 0 {
			offer.ResetOutcome()
			return
		}
		offer.Winner = qualifying[0]
		offer.WinningBid = offer.Bids[qualifying[0]]

	default:
		if len(qualifying) < 2 {
			offer.ResetOutcome()
			return
		}
		offer.Winner = qualifying[0]
		offer.WinningBid = offer.Bids[qualifying[1]]
	}
}
