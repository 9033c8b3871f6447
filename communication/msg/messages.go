// Package msg defines the single-shot JSON contract spoken between carriers
// and the auctioneer. Every connection carries exactly one Request and one
// Response; absent values are encoded as the string sentinel "NONE".
package msg

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/carriernet/auction/auctiontypes"
)

const (
	ActionRegister       = "register"
	ActionOffer          = "offer"
	ActionRequestOffer   = "request_offer"
	ActionBid            = "bid"
	ActionRequestResults = "request_auction_results"
	ActionConfirm        = "confirm"
)

const (
	StatusOK                     = "OK"
	StatusAlreadyRegistered      = "ALREADY_REGISTERED"
	StatusNoRegistrationPhase    = "NO_REGISTRATION_PHASE"
	StatusNotRegistered          = "NOT_REGISTERED"
	StatusOfferSubmissionTimeout = "OFFER_SUBMISSION_TIMEOUT"
	StatusOfferRequestTimeout    = "OFFER_REQUEST_TIMEOUT"
	StatusNoOffersAvailable      = "NO_OFFERS_AVAILABLE"
	StatusNoActiveOffers         = "NO_ACTIVE_OFFERS"
	StatusBiddingTimeout         = "BIDDING_TIMEOUT"
	StatusInvalidBid             = "INVALID_BID"
	StatusNoResultsPhase         = "NO_RESULTS_PHASE"
	StatusConfirmationTimeout    = "CONFIRMATION_TIMEOUT"
	StatusUnknownAction          = "UNKNOWN_ACTION"
)

// NoneValue is the wire sentinel for an absent timestamp, winner or amount.
const NoneValue = "NONE"

// Timestamp is a unix-seconds instant that renders as "NONE" when unset.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return json.Marshal(NoneValue)
	}
	return json.Marshal(t.Unix())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var unix int64
	if err := json.Unmarshal(data, &unix); err == nil {
		t.Time = time.Unix(unix, 0)
		return nil
	}
	var sentinel string
	if err := json.Unmarshal(data, &sentinel); err != nil || sentinel != NoneValue {
		return errors.New("timestamp must be unix seconds or NONE")
	}
	t.Time = time.Time{}
	return nil
}

// Amount is a monetary value that renders as "NONE" when unset.
type Amount struct {
	Value float64
	Valid bool
}

func SomeAmount(value float64) Amount {
	return Amount{Value: value, Valid: true}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return json.Marshal(NoneValue)
	}
	return json.Marshal(a.Value)
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var value float64
	if err := json.Unmarshal(data, &value); err == nil {
		a.Value = value
		a.Valid = true
		return nil
	}
	var sentinel string
	if err := json.Unmarshal(data, &sentinel); err != nil || sentinel != NoneValue {
		return errors.New("amount must be a number or NONE")
	}
	a.Value = 0
	a.Valid = false
	return nil
}

// Request is the envelope a carrier sends; one per connection.
type Request struct {
	CarrierID string          `json:"carrier_id"`
	Action    string          `json:"action"`
	Time      Timestamp       `json:"time"`
	Payload   json.RawMessage `json:"payload"`
}

// Response is the envelope the auctioneer answers with. Time echoes the
// request; Timeout is the absolute deadline of the next phase the carrier
// should act against, "NONE" before the day is armed.
type Response struct {
	CarrierID string          `json:"carrier_id"`
	Action    string          `json:"action"`
	Time      Timestamp       `json:"time"`
	Timeout   Timestamp       `json:"timeout"`
	Payload   json.RawMessage `json:"payload"`
}

func NewRequest(carrierID, action string, now time.Time, payload interface{}) (Request, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Request{}, err
	}
	return Request{
		CarrierID: carrierID,
		Action:    action,
		Time:      NewTimestamp(now),
		Payload:   raw,
	}, nil
}

func NewResponse(request Request, deadline time.Time, payload interface{}) (Response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Response{}, err
	}
	return Response{
		CarrierID: request.CarrierID,
		Action:    request.Action,
		Time:      request.Time,
		Timeout:   NewTimestamp(deadline),
		Payload:   raw,
	}, nil
}

// OfferPayload carries a new offer submission during registration.
type OfferPayload struct {
	OfferID    string                  `json:"offer_id"`
	LocPickup  auctiontypes.Coordinate `json:"loc_pickup"`
	LocDropoff auctiontypes.Coordinate `json:"loc_dropoff"`
	Profit     float64                 `json:"profit"`
	Revenue    float64                 `json:"revenue"`
}

// BidPayload carries a bid against the lot currently on auction.
type BidPayload struct {
	OfferID string  `json:"offer_id"`
	Bid     float64 `json:"bid"`
}

// LotPayload describes the lot on auction: one coordinate pair per member
// offer and the aggregate revenue.
type LotPayload struct {
	OfferID    string                    `json:"offer_id"`
	LocPickup  []auctiontypes.Coordinate `json:"loc_pickup"`
	LocDropoff []auctiontypes.Coordinate `json:"loc_dropoff"`
	Revenue    float64                   `json:"revenue"`
}

type RegisterResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the bare rejection payload for unrecognized actions.
type StatusResponse struct {
	Status string `json:"status"`
}

// OfferResponse acknowledges an offer submission; the status field is named
// "response" on this endpoint.
type OfferResponse struct {
	OfferID  string `json:"offer_id,omitempty"`
	Response string `json:"response"`
}

type RequestOfferResponse struct {
	Status string      `json:"status"`
	Offer  *LotPayload `json:"offer,omitempty"`
}

type BidResponse struct {
	Status  string `json:"status"`
	OfferID string `json:"offer_id,omitempty"`
}

type ResultsResponse struct {
	Status string      `json:"status"`
	Offers []OfferDict `json:"offers,omitempty"`
}

type ConfirmResponse struct {
	Status    string      `json:"status"`
	Offers    []OfferDict `json:"offers,omitempty"`
	NextRound bool        `json:"next_round"`
}

// OfferDict is the wire rendering of an offer's outcome. The reserve price is
// deliberately not exposed.
type OfferDict struct {
	Offeror    string                  `json:"offeror"`
	Winner     string                  `json:"winner"`
	WinningBid Amount                  `json:"winning_bid"`
	OfferID    string                  `json:"offer_id"`
	LocPickup  auctiontypes.Coordinate `json:"loc_pickup"`
	LocDropoff auctiontypes.Coordinate `json:"loc_dropoff"`
	Revenue    float64                 `json:"revenue"`
}

func OfferDictFrom(offer auctiontypes.Offer) OfferDict {
	dict := OfferDict{
		Offeror:    offer.CarrierID,
		Winner:     offer.Winner,
		OfferID:    offer.OfferID,
		LocPickup:  offer.Pickup,
		LocDropoff: offer.Dropoff,
		Revenue:    offer.Revenue,
	}
	if offer.Sold() {
		dict.WinningBid = SomeAmount(offer.WinningBid)
	}
	return dict
}

func OfferDictsFrom(offers []auctiontypes.Offer) []OfferDict {
	dicts := make([]OfferDict, 0, len(offers))
	for _, offer := range offers {
		dicts = append(dicts, OfferDictFrom(offer))
	}
	return dicts
}
