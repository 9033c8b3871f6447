package visualization

import (
	"fmt"
	"math"
	"os"

	svg "github.com/ajstarks/svgo"

	"github.com/carriernet/auction/auctiontypes"
)

const border = 10
const cardSize = 280
const captionHeight = 40
const headerHeight = 60

const CardWidth = cardSize + border*2
const CardHeight = cardSize + captionHeight + border*2

// SVGReport renders one card per carrier: its depot, its final plan's
// pickup/dropoff pairs, and the day's profit change.
type SVGReport struct {
	SVG     *svg.SVG
	file    *os.File
	columns int
	rows    int
}

func StartSVGReport(path string, columns, rows int) (*SVGReport, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s := svg.New(file)
	s.Start(columns*CardWidth, headerHeight+rows*CardHeight)
	return &SVGReport{
		SVG:     s,
		file:    file,
		columns: columns,
		rows:    rows,
	}, nil
}

func (r *SVGReport) DrawHeader(rules auctiontypes.AuctionRules) {
	header := fmt.Sprintf(
		"base timeout %s - %d rounds (%d bundle, size %d) - %s pricing",
		rules.BaseTimeout, rules.MaxRounds, rules.BundleRounds, rules.BundleSize, rules.Pricing,
	)
	r.SVG.Text(border, 30, header, `text-anchor:start;font-size:20px;font-family:Helvetica Neue`)
}

func (r *SVGReport) DrawCarrierCard(column, row int, outcome CarrierOutcome) {
	r.SVG.Translate(column*CardWidth, headerHeight+row*CardHeight)
	r.SVG.Rect(border, border, cardSize, cardSize, `fill:none;stroke:gray`)

	project := r.projection(outcome)

	depotX, depotY := project(outcome.Depot)
	r.SVG.Square(depotX-4, depotY-4, 8, `fill:black`)

	for _, job := range outcome.Jobs {
		pickupX, pickupY := project(job.Pickup)
		dropoffX, dropoffY := project(job.Dropoff)
		r.SVG.Line(pickupX, pickupY, dropoffX, dropoffY, `stroke:steelblue;stroke-width:1`)
		r.SVG.Circle(pickupX, pickupY, 3, `fill:green`)
		r.SVG.Circle(dropoffX, dropoffY, 3, `fill:red`)
	}

	caption := fmt.Sprintf(
		"%s: %d jobs, sold %d, won %d, profit %+.0f",
		outcome.CarrierID, len(outcome.Jobs), outcome.Stats.Sold, outcome.Stats.Won,
		outcome.NewProfit-outcome.OldProfit,
	)
	r.SVG.Text(border, border+cardSize+25, caption, `text-anchor:start;font-size:14px;font-family:Helvetica Neue`)

	r.SVG.Gend()
}

// Done writes the summary line and closes the file.
func (r *SVGReport) Done(report *Report) error {
	profits := report.ProfitStats()
	summary := fmt.Sprintf(
		"moved %d jobs for %.0f - profit delta total %.0f (mean %.0f, stddev %.0f) - %d unsold - %s",
		report.JobsMoved(), report.MoneyMoved(), profits.Total, profits.Mean, profits.StdDev,
		len(report.Unsold), report.AuctionDuration,
	)
	r.SVG.Text(border, 55, summary, `text-anchor:start;font-size:20px;font-family:Helvetica Neue`)
	r.SVG.End()
	return r.file.Close()
}

// projection maps the outcome's bounding box into the card, preserving
// aspect ratio.
func (r *SVGReport) projection(outcome CarrierOutcome) func(auctiontypes.Coordinate) (int, int) {
	minX, maxX := outcome.Depot.PosX, outcome.Depot.PosX
	minY, maxY := outcome.Depot.PosY, outcome.Depot.PosY
	grow := func(c auctiontypes.Coordinate) {
		minX = math.Min(minX, c.PosX)
		maxX = math.Max(maxX, c.PosX)
		minY = math.Min(minY, c.PosY)
		maxY = math.Max(maxY, c.PosY)
	}
	for _, job := range outcome.Jobs {
		grow(job.Pickup)
		grow(job.Dropoff)
	}

	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		span = 1
	}
	scale := float64(cardSize-20) / span

	return func(c auctiontypes.Coordinate) (int, int) {
		x := border + 10 + int((c.PosX-minX)*scale)
		y := border + 10 + int((c.PosY-minY)*scale)
		return x, y
	}
}
