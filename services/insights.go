package services

import (
	"math"
	"sort"
	"strings"

	"github.com/go-gota/gota/series"
	"github.com/mmcloughlin/geohash"

	"basic-cleaning/models"
	"basic-cleaning/utils"
)

const (
	// cellPrecision of 5 characters gives roughly 4.9km x 4.9km cells.
	cellPrecision = 5
	topCells      = 10
)

// InsightService summarises the rows retained by the cleaner.
type InsightService struct {
	logger *utils.Logger
}

// NewInsightService returns an InsightService that logs through logger.
func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate fills the price statistics and geohash histogram of report from
// the cleaned dataset. Rows without a parsable price or location are skipped.
func (s *InsightService) Generate(cleaned models.Dataset, report *models.CleaningReport) *models.CleaningReport {
	if report == nil {
		report = &models.CleaningReport{RowsIn: cleaned.Len(), RowsOut: cleaned.Len()}
	}
	report.ListingsByCell = nil

	priceIdx := cleaned.ColumnIndex(models.ColumnPrice)
	lonIdx := cleaned.ColumnIndex(models.ColumnLongitude)
	latIdx := cleaned.ColumnIndex(models.ColumnLatitude)

	prices := make([]float64, 0, cleaned.Len())
	cells := make(map[string]int)

	for _, r := range cleaned.Records {
		if p, ok := r.Float(priceIdx); ok {
			prices = append(prices, p)
		}
		lon, lonOK := r.Float(lonIdx)
		lat, latOK := r.Float(latIdx)
		if lonOK && latOK {
			cells[geohash.EncodeWithPrecision(lat, lon, cellPrecision)]++
		}
	}

	if len(prices) > 0 {
		ps := series.New(prices, series.Float, models.ColumnPrice)
		report.MinPrice = round2(ps.Min())
		report.MaxPrice = round2(ps.Max())
		report.MeanPrice = round2(ps.Mean())
		report.MedianPrice = round2(ps.Median())
		if len(prices) > 1 {
			report.StdDevPrice = round2(ps.StdDev())
		} else {
			report.StdDevPrice = 0
		}
	}

	for hash, n := range cells {
		report.ListingsByCell = append(report.ListingsByCell, models.CellCount{Geohash: hash, Count: n})
	}
	sort.Slice(report.ListingsByCell, func(i, j int) bool {
		a, b := report.ListingsByCell[i], report.ListingsByCell[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Geohash < b.Geohash
	})

	return report
}

// Log writes the report through the logger.
func (s *InsightService) Log(r *models.CleaningReport) {
	s.logger.Info("[insights] Rows in: %d | rows out: %d | dropped price: %d | dropped geo: %d | malformed: %d",
		r.RowsIn, r.RowsOut, r.DroppedPrice, r.DroppedGeo, r.Malformed)

	if r.RowsOut == 0 {
		s.logger.Warn("[insights] No rows retained")
		return
	}

	s.logger.Info("[insights] Price min $%.2f | max $%.2f | mean $%.2f | median $%.2f | std $%.2f",
		r.MinPrice, r.MaxPrice, r.MeanPrice, r.MedianPrice, r.StdDevPrice)

	n := len(r.ListingsByCell)
	if n > topCells {
		n = topCells
	}
	for _, c := range r.ListingsByCell[:n] {
		s.logger.Info("[insights]   %-8s %s (%d)", c.Geohash, strings.Repeat("█", barWidth(c.Count, r.ListingsByCell[0].Count)), c.Count)
	}
}

// barWidth scales count against the busiest cell onto 1..30 characters.
func barWidth(count, max int) int {
	if max <= 0 {
		return 0
	}
	w := count * 30 / max
	if w < 1 {
		w = 1
	}
	return w
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
