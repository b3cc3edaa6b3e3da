package domain

// PriceObservation is one price sample taken by the tracker during a tick.
// Written to the timeseries store as an append-only analytics trail.
type PriceObservation struct {
	PositionID string
	Mint       string
	PriceUsd   float64
	Multiple   float64 // price / entry price at observation time
	ObservedAt int64   // ms
}
