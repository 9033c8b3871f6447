// Package carrierclient is the carrier side of the wire protocol. Every call
// dials a fresh connection, exchanges one request-response pair and closes.
package carrierclient

import (
	"encoding/json"
	"net"
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager"

	"github.com/carriernet/auction/communication/msg"
)

const defaultDialTimeout = 5 * time.Second

type Client struct {
	addr        string
	carrierID   string
	dialTimeout time.Duration
	clock       clock.Clock
	logger      lager.Logger
}

func New(addr, carrierID string, clk clock.Clock, logger lager.Logger) *Client {
	return &Client{
		addr:        addr,
		carrierID:   carrierID,
		dialTimeout: defaultDialTimeout,
		clock:       clk,
		logger:      logger.Session("carrier-client", lager.Data{"carrier": carrierID}),
	}
}

// Register announces the carrier for the upcoming auction day. The returned
// time is the auctioneer's current phase deadline, zero before the day is
// armed.
func (c *Client) Register() (msg.RegisterResponse, time.Time, error) {
	var response msg.RegisterResponse
	deadline, err := c.roundTrip(msg.ActionRegister, struct{}{}, &response)
	return response, deadline, err
}

func (c *Client) SubmitOffer(payload msg.OfferPayload) (msg.OfferResponse, time.Time, error) {
	var response msg.OfferResponse
	deadline, err := c.roundTrip(msg.ActionOffer, payload, &response)
	return response, deadline, err
}

func (c *Client) RequestOffer() (msg.RequestOfferResponse, time.Time, error) {
	var response msg.RequestOfferResponse
	deadline, err := c.roundTrip(msg.ActionRequestOffer, struct{}{}, &response)
	return response, deadline, err
}

func (c *Client) Bid(lotID string, amount float64) (msg.BidResponse, time.Time, error) {
	var response msg.BidResponse
	deadline, err := c.roundTrip(msg.ActionBid, msg.BidPayload{OfferID: lotID, Bid: amount}, &response)
	return response, deadline, err
}

func (c *Client) RequestResults() (msg.ResultsResponse, time.Time, error) {
	var response msg.ResultsResponse
	deadline, err := c.roundTrip(msg.ActionRequestResults, struct{}{}, &response)
	return response, deadline, err
}

func (c *Client) Confirm() (msg.ConfirmResponse, time.Time, error) {
	var response msg.ConfirmResponse
	deadline, err := c.roundTrip(msg.ActionConfirm, struct{}{}, &response)
	return response, deadline, err
}

func (c *Client) roundTrip(action string, payload interface{}, out interface{}) (time.Time, error) {
	conn, err := net.DialTimeout("tcp", c.addr, c.dialTimeout)
	if err != nil {
		return time.Time{}, err
	}
	defer conn.Close()

	request, err := msg.NewRequest(c.carrierID, action, c.clock.Now(), payload)
	if err != nil {
		return time.Time{}, err
	}
	if err := json.NewEncoder(conn).Encode(request); err != nil {
		return time.Time{}, err
	}

	var response msg.Response
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		c.logger.Error("failed-to-decode-response", err, lager.Data{"action": action})
		return time.Time{}, err
	}
	if err := json.Unmarshal(response.Payload, out); err != nil {
		return time.Time{}, err
	}
	return response.Timeout.Time, nil
}
