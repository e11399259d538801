package models

import (
	"math"
	"strconv"
)

// CleaningReport summarises one pass of the cleaning transform.
type CleaningReport struct {
	RowsIn       int
	RowsOut      int
	DroppedPrice int
	DroppedGeo   int
	// Malformed counts rows whose price, longitude or latitude was missing or
	// non-numeric. Those rows are dropped and counted here only.
	Malformed int

	MinPrice    float64
	MaxPrice    float64
	MeanPrice   float64
	MedianPrice float64
	StdDevPrice float64

	ListingsByCell []CellCount
}

// CellCount is the number of retained rows in one geohash cell.
type CellCount struct {
	Geohash string
	Count   int
}

// Metadata flattens the report for storage alongside an artifact version.
func (r *CleaningReport) Metadata() map[string]any {
	cells := make(map[string]int, len(r.ListingsByCell))
	for _, c := range r.ListingsByCell {
		cells[c.Geohash] = c.Count
	}
	return map[string]any{
		"rows_in":       r.RowsIn,
		"rows_out":      r.RowsOut,
		"dropped_price": r.DroppedPrice,
		"dropped_geo":   r.DroppedGeo,
		"malformed":     r.Malformed,
		"price_min":     JSONFloat(r.MinPrice),
		"price_max":     JSONFloat(r.MaxPrice),
		"price_mean":    JSONFloat(r.MeanPrice),
		"price_median":  JSONFloat(r.MedianPrice),
		"price_std":     JSONFloat(r.StdDevPrice),
		"geohash_cells": cells,
	}
}

// JSONFloat returns f unchanged when it is finite. Infinities and NaN have no
// JSON encoding and are returned as strings ("+Inf", "-Inf", "NaN").
func JSONFloat(f float64) any {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return f
}
