package resultslog_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"time"

	"code.cloudfoundry.org/lager/lagertest"

	"github.com/carriernet/auction/auctiontypes"
	"github.com/carriernet/auction/resultslog"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Log", func() {
	var (
		dir  string
		path string
		log  *resultslog.Log
		date time.Time
	)

	readRows := func() [][]string {
		file, err := os.Open(path)
		Expect(err).NotTo(HaveOccurred())
		defer file.Close()

		rows, err := csv.NewReader(file).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		return rows
	}

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "resultslog")
		Expect(err).NotTo(HaveOccurred())

		path = filepath.Join(dir, "auction-days.csv")
		log = resultslog.New(path, lagertest.NewTestLogger("test"))
		date = time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("records one row per unsold offer", func() {
		offer := auctiontypes.NewOffer("carrier-a", "o1", auctiontypes.Coordinate{}, auctiontypes.Coordinate{}, 80, 300)
		Expect(log.RecordUnsold(date, []auctiontypes.Offer{*offer})).To(Succeed())

		rows := readRows()
		Expect(rows).To(HaveLen(1))
		Expect(rows[0]).To(Equal([]string{
			"2024-03-15 18:30:00", "unsold", "o1", "carrier-a", "300.00", "80.00",
		}))
	})

	It("writes nothing for an empty unsold list", func() {
		Expect(log.RecordUnsold(date, nil)).To(Succeed())
		_, err := os.Stat(path)
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("records a carrier's profit change", func() {
		Expect(log.RecordCarrierDay(date, "carrier-a", 400, 500)).To(Succeed())

		rows := readRows()
		Expect(rows).To(HaveLen(1))
		Expect(rows[0]).To(Equal([]string{
			"2024-03-15 18:30:00", "carrier_day", "carrier-a", "400.00", "500.00", "100.00", "0.25",
		}))
	})

	It("guards the relative increase against a zero starting profit", func() {
		Expect(log.RecordCarrierDay(date, "carrier-a", 0, 500)).To(Succeed())

		rows := readRows()
		Expect(rows[0][6]).To(Equal("0.00"))
	})

	It("appends across days", func() {
		Expect(log.RecordCarrierDay(date, "carrier-a", 400, 500)).To(Succeed())
		Expect(log.RecordCarrierDay(date.AddDate(0, 0, 1), "carrier-a", 500, 480)).To(Succeed())

		rows := readRows()
		Expect(rows).To(HaveLen(2))
		Expect(rows[1][0]).To(Equal("2024-03-16 18:30:00"))
		Expect(rows[1][5]).To(Equal("-20.00"))
	})
})
