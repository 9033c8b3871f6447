// Package resultslog appends auction-day outcomes to a CSV file: the offers
// still unsold when the auctioneer closes the day, and each carrier's profit
// change. The file is append-only across days.
package resultslog

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"code.cloudfoundry.org/lager"

	"github.com/carriernet/auction/auctiontypes"
)

const dateLayout = "2006-01-02 15:04:05"

const (
	recordUnsold     = "unsold"
	recordCarrierDay = "carrier_day"
)

type Log struct {
	path   string
	logger lager.Logger

	lock sync.Mutex
}

func New(path string, logger lager.Logger) *Log {
	return &Log{
		path:   path,
		logger: logger.Session("results-log", lager.Data{"path": path}),
	}
}

// RecordUnsold writes one row per offer left on the auction list at day end.
func (l *Log) RecordUnsold(date time.Time, offers []auctiontypes.Offer) error {
	rows := make([][]string, 0, len(offers))
	for _, offer := range offers {
		rows = append(rows, []string{
			date.Format(dateLayout),
			recordUnsold,
			offer.OfferID,
			offer.CarrierID,
			formatFloat(offer.Revenue),
			formatFloat(offer.ReservePrice),
		})
	}
	if err := l.append(rows); err != nil {
		return err
	}
	l.logger.Info("recorded-unsold-offers", lager.Data{"count": len(offers)})
	return nil
}

// RecordCarrierDay writes a carrier's profit before and after the day, the
// difference and the relative increase.
func (l *Log) RecordCarrierDay(date time.Time, carrierID string, oldProfit, newProfit float64) error {
	increase := 0.0
	if oldProfit != 0 {
		increase = (newProfit - oldProfit) / oldProfit
	}
	row := []string{
		date.Format(dateLayout),
		recordCarrierDay,
		carrierID,
		formatFloat(oldProfit),
		formatFloat(newProfit),
		formatFloat(newProfit - oldProfit),
		formatFloat(increase),
	}
	if err := l.append([][]string{row}); err != nil {
		return err
	}
	l.logger.Info("recorded-carrier-day", lager.Data{"carrier": carrierID})
	return nil
}

func (l *Log) append(rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}
