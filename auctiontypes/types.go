package auctiontypes

import (
	"errors"
	"math"
	"time"
)

var (
	ErrNotRegistered     = errors.New("carrier is not registered")
	ErrAlreadyRegistered = errors.New("carrier is already registered")
	ErrPhaseMismatch     = errors.New("action does not match the current phase")
	ErrInvalidBid        = errors.New("bid does not beat the reserve price")
	ErrUnknownLot        = errors.New("no such lot on auction")
	ErrNoOffers          = errors.New("no offers on the auction list")
	ErrNoActiveOffers    = errors.New("no offers are currently on auction")
)

// Phase is one of the five steps of the auction-day state machine. REGIST is
// entered once at the start of the day; the per-lot cycle loops through the
// remaining four.
type Phase string

const (
	PhaseRegistration Phase = "REGIST"
	PhaseRequestOffer Phase = "REQ_OFFER"
	PhaseBid          Phase = "BID"
	PhaseResults      Phase = "RESULTS"
	PhaseConfirm      Phase = "CONFIRM"
)

// PricingMode selects how winner and price are determined once bidding closes.
type PricingMode string

const (
	// PricingVickrey awards the lot to the highest bidder at the
	// second-highest price that beats the reserve.
	PricingVickrey PricingMode = "vickrey"
	// PricingFirstPrice awards the lot to the highest bidder at its own bid.
	PricingFirstPrice PricingMode = "first_price"
)

type AuctionRules struct {
	BaseTimeout  time.Duration
	MaxRounds    int
	BundleRounds int
	BundleSize   int
	Pricing      PricingMode
}

func DefaultAuctionRules() AuctionRules {
	return AuctionRules{
		BaseTimeout:  30 * time.Second,
		MaxRounds:    5,
		BundleRounds: 1,
		BundleSize:   2,
		Pricing:      PricingVickrey,
	}
}

type Coordinate struct {
	PosX float64 `json:"pos_x"`
	PosY float64 `json:"pos_y"`
}

// DistanceTo is the Manhattan distance; all distances in the system use the
// taxicab metric.
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	return math.Abs(c.PosX-other.PosX) + math.Abs(c.PosY-other.PosY)
}

// Lot identifies what is currently up for auction: a single offer or a whole
// bundle.
type Lot struct {
	IsBundle    bool
	OfferID     string
	BundleIndex int
}

func SingleLot(offerID string) Lot {
	return Lot{OfferID: offerID}
}

func BundleLot(index int) Lot {
	return Lot{IsBundle: true, BundleIndex: index}
}
