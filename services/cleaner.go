package services

import (
	"errors"
	"fmt"

	"basic-cleaning/models"
	"basic-cleaning/utils"
)

// ErrMissingColumn is returned when the dataset header lacks a column the
// cleaner filters on.
var ErrMissingColumn = errors.New("required column missing")

// PriceRange is an inclusive price bound. Min > Max matches nothing.
type PriceRange struct {
	Min float64
	Max float64
}

// Contains reports whether Min <= p <= Max.
func (r PriceRange) Contains(p float64) bool {
	return p >= r.Min && p <= r.Max
}

// GeoBox is an inclusive longitude/latitude rectangle.
type GeoBox struct {
	MinLon, MaxLon float64
	MinLat, MaxLat float64
}

// DefaultGeoBox covers New York City.
var DefaultGeoBox = GeoBox{
	MinLon: -74.25, MaxLon: -73.50,
	MinLat: 40.5, MaxLat: 41.2,
}

// Contains reports whether the point lies inside the box, edges included.
func (b GeoBox) Contains(lon, lat float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon &&
		lat >= b.MinLat && lat <= b.MaxLat
}

// Bounds groups the two predicates a row must satisfy to be kept.
type Bounds struct {
	Price PriceRange
	Geo   GeoBox
}

// NewBounds returns price bounds combined with DefaultGeoBox.
func NewBounds(minPrice, maxPrice float64) Bounds {
	return Bounds{
		Price: PriceRange{Min: minPrice, Max: maxPrice},
		Geo:   DefaultGeoBox,
	}
}

// Cleaner drops rows outside the price range or the geographic box.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean returns the rows of ds that satisfy both bounds, in their original
// order and with every column intact. ds is not modified.
//
// Rows whose price, longitude or latitude is missing or not a number fail
// the corresponding bound and are dropped; they are counted in the report's
// Malformed field rather than reported as errors.
func (c *Cleaner) Clean(ds models.Dataset, b Bounds) (models.Dataset, *models.CleaningReport, error) {
	priceIdx, lonIdx, latIdx, err := requiredColumns(ds)
	if err != nil {
		return models.Dataset{}, nil, err
	}

	if b.Price.Min > b.Price.Max {
		c.logger.Warn("[cleaner] min_price %.2f > max_price %.2f, no row can be kept",
			b.Price.Min, b.Price.Max)
	}

	report := &models.CleaningReport{RowsIn: ds.Len()}
	kept := make([]models.Record, 0, ds.Len())

	for _, r := range ds.Records {
		price, ok := r.Float(priceIdx)
		if !ok {
			report.Malformed++
			c.logger.Debug("[cleaner] Line %d: unparsable price %q", r.Line, r.Field(priceIdx))
			continue
		}
		if !b.Price.Contains(price) {
			report.DroppedPrice++
			continue
		}

		lon, lonOK := r.Float(lonIdx)
		lat, latOK := r.Float(latIdx)
		if !lonOK || !latOK {
			report.Malformed++
			c.logger.Debug("[cleaner] Line %d: unparsable coordinates (%q, %q)",
				r.Line, r.Field(lonIdx), r.Field(latIdx))
			continue
		}
		if !b.Geo.Contains(lon, lat) {
			report.DroppedGeo++
			continue
		}

		kept = append(kept, r)
	}

	report.RowsOut = len(kept)
	c.logger.Info("[cleaner] Data cleaned. Rows before: %d, Rows after: %d (price %d, geo %d, malformed %d)",
		report.RowsIn, report.RowsOut, report.DroppedPrice, report.DroppedGeo, report.Malformed)

	return ds.WithRecords(kept), report, nil
}

func requiredColumns(ds models.Dataset) (price, lon, lat int, err error) {
	price = ds.ColumnIndex(models.ColumnPrice)
	lon = ds.ColumnIndex(models.ColumnLongitude)
	lat = ds.ColumnIndex(models.ColumnLatitude)

	for _, col := range []struct {
		name string
		idx  int
	}{
		{models.ColumnPrice, price},
		{models.ColumnLongitude, lon},
		{models.ColumnLatitude, lat},
	} {
		if col.idx < 0 {
			return 0, 0, 0, fmt.Errorf("cleaner: %w: %q", ErrMissingColumn, col.name)
		}
	}
	return price, lon, lat, nil
}
