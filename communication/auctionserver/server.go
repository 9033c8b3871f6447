// Package auctionserver exposes the auction ledger over the carrier wire
// protocol: a TCP listener where every connection carries exactly one JSON
// request and one JSON response.
package auctionserver

import (
	"encoding/json"
	"net"
	"os"

	"code.cloudfoundry.org/lager"
	"code.cloudfoundry.org/workpool"

	"github.com/carriernet/auction/auctionrunner"
	"github.com/carriernet/auction/auctiontypes"
	"github.com/carriernet/auction/communication/msg"
)

// Server accepts carrier connections and hands each one to a bounded worker
// pool. It implements ifrit.Runner.
type Server struct {
	listenAddr string
	ledger     *auctionrunner.Ledger
	logger     lager.Logger
	pool       *workpool.WorkPool

	boundAddr string
}

func New(listenAddr string, maxWorkers int, ledger *auctionrunner.Ledger, logger lager.Logger) (*Server, error) {
	pool, err := workpool.NewWorkPool(maxWorkers)
	if err != nil {
		return nil, err
	}
	return &Server{
		listenAddr: listenAddr,
		ledger:     ledger,
		logger:     logger.Session("auction-server"),
		pool:       pool,
	}, nil
}

// Addr is the listener's bound address, valid once Run has signalled ready.
func (s *Server) Addr() string {
	return s.boundAddr
}

func (s *Server) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return err
	}
	s.boundAddr = listener.Addr().String()
	s.logger.Info("listening", lager.Data{"addr": s.boundAddr})
	close(ready)

	conns := make(chan net.Conn)
	acceptErr := make(chan error, 1)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				acceptErr <- err
				return
			}
			conns <- conn
		}
	}()

	for {
		select {
		case conn := <-conns:
			c := conn
			s.pool.Submit(func() {
				s.handle(c)
			})
		case err := <-acceptErr:
			s.pool.Stop()
			return err
		case <-signals:
			s.logger.Info("shutting-down")
			listener.Close()
			for {
				select {
				case conn := <-conns:
					conn.Close()
				case <-acceptErr:
					s.pool.Stop()
					return nil
				}
			}
		}
	}
}

// handle performs the single request-response exchange. A request that cannot
// be decoded is dropped without a response.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	var request msg.Request
	if err := json.NewDecoder(conn).Decode(&request); err != nil {
		s.logger.Error("malformed-request", err, lager.Data{"remote": conn.RemoteAddr().String()})
		return
	}

	logger := s.logger.Session("request", lager.Data{
		"carrier": request.CarrierID,
		"action":  request.Action,
	})

	payload, ok := s.dispatch(logger, request)
	if !ok {
		return
	}

	response, err := msg.NewResponse(request, s.ledger.Deadline(), payload)
	if err != nil {
		logger.Error("failed-to-build-response", err)
		return
	}
	if err := json.NewEncoder(conn).Encode(response); err != nil {
		logger.Error("failed-to-send-response", err)
	}
}

func (s *Server) dispatch(logger lager.Logger, request msg.Request) (interface{}, bool) {
	switch request.Action {
	case msg.ActionRegister:
		return s.register(request), true
	case msg.ActionOffer:
		return s.receiveOffer(logger, request)
	case msg.ActionRequestOffer:
		return s.sendLot(request), true
	case msg.ActionBid:
		return s.receiveBid(logger, request)
	case msg.ActionRequestResults:
		return s.sendResults(request), true
	case msg.ActionConfirm:
		return s.confirm(request), true
	default:
		logger.Info("unknown-action")
		return msg.StatusResponse{Status: msg.StatusUnknownAction}, true
	}
}

func (s *Server) register(request msg.Request) msg.RegisterResponse {
	switch err := s.ledger.RegisterCarrier(request.CarrierID); err {
	case nil:
		return msg.RegisterResponse{Status: msg.StatusOK}
	case auctiontypes.ErrPhaseMismatch:
		return msg.RegisterResponse{Status: msg.StatusNoRegistrationPhase}
	case auctiontypes.ErrAlreadyRegistered:
		return msg.RegisterResponse{Status: msg.StatusAlreadyRegistered}
	default:
		return msg.RegisterResponse{Status: msg.StatusNoRegistrationPhase}
	}
}

func (s *Server) receiveOffer(logger lager.Logger, request msg.Request) (interface{}, bool) {
	var payload msg.OfferPayload
	if err := json.Unmarshal(request.Payload, &payload); err != nil {
		logger.Error("malformed-offer-payload", err)
		return nil, false
	}

	offer := auctiontypes.NewOffer(
		request.CarrierID,
		payload.OfferID,
		payload.LocPickup,
		payload.LocDropoff,
		payload.Profit,
		payload.Revenue,
	)

	switch err := s.ledger.SubmitOffer(request.CarrierID, offer); err {
	case nil:
		return msg.OfferResponse{OfferID: payload.OfferID, Response: msg.StatusOK}, true
	case auctiontypes.ErrNotRegistered:
		return msg.OfferResponse{Response: msg.StatusNotRegistered}, true
	default:
		return msg.OfferResponse{Response: msg.StatusOfferSubmissionTimeout}, true
	}
}

func (s *Server) sendLot(request msg.Request) msg.RequestOfferResponse {
	view, err := s.ledger.LotOnAuction(request.CarrierID)
	switch err {
	case nil:
	case auctiontypes.ErrNotRegistered:
		return msg.RequestOfferResponse{Status: msg.StatusNotRegistered}
	case auctiontypes.ErrNoOffers:
		return msg.RequestOfferResponse{Status: msg.StatusNoOffersAvailable}
	case auctiontypes.ErrNoActiveOffers:
		return msg.RequestOfferResponse{Status: msg.StatusNoActiveOffers}
	default:
		return msg.RequestOfferResponse{Status: msg.StatusOfferRequestTimeout}
	}

	return msg.RequestOfferResponse{
		Status: msg.StatusOK,
		Offer: &msg.LotPayload{
			OfferID:    view.ID,
			LocPickup:  view.Pickups,
			LocDropoff: view.Dropoffs,
			Revenue:    view.Revenue,
		},
	}
}

func (s *Server) receiveBid(logger lager.Logger, request msg.Request) (interface{}, bool) {
	var payload msg.BidPayload
	if err := json.Unmarshal(request.Payload, &payload); err != nil {
		logger.Error("malformed-bid-payload", err)
		return nil, false
	}

	switch err := s.ledger.PlaceBid(request.CarrierID, payload.OfferID, payload.Bid); err {
	case nil:
		return msg.BidResponse{Status: msg.StatusOK, OfferID: payload.OfferID}, true
	case auctiontypes.ErrNotRegistered:
		return msg.BidResponse{Status: msg.StatusNotRegistered}, true
	case auctiontypes.ErrPhaseMismatch:
		return msg.BidResponse{Status: msg.StatusBiddingTimeout}, true
	default:
		return msg.BidResponse{Status: msg.StatusInvalidBid}, true
	}
}

func (s *Server) sendResults(request msg.Request) msg.ResultsResponse {
	offers, err := s.ledger.Results(request.CarrierID)
	switch err {
	case nil:
	case auctiontypes.ErrNotRegistered:
		return msg.ResultsResponse{Status: msg.StatusNotRegistered}
	default:
		return msg.ResultsResponse{Status: msg.StatusNoResultsPhase}
	}
	return msg.ResultsResponse{Status: msg.StatusOK, Offers: msg.OfferDictsFrom(offers)}
}

func (s *Server) confirm(request msg.Request) msg.ConfirmResponse {
	offers, nextRound, err := s.ledger.Confirm(request.CarrierID)
	switch err {
	case nil:
	case auctiontypes.ErrNotRegistered:
		return msg.ConfirmResponse{Status: msg.StatusNotRegistered}
	default:
		return msg.ConfirmResponse{Status: msg.StatusConfirmationTimeout}
	}
	return msg.ConfirmResponse{
		Status:    msg.StatusOK,
		Offers:    msg.OfferDictsFrom(offers),
		NextRound: nextRound,
	}
}
