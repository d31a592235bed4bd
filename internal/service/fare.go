package service

// DefaultFareRate is the fare charged per unit of distance.
const DefaultFareRate = 5.0

// FareCalculator prices a ride from its distance.
type FareCalculator interface {
	Fare(distance float64) float64
}

// FlatRateFare charges a fixed rate per unit of distance.
type FlatRateFare struct {
	RatePerUnit float64
}

// NewFlatRateFare returns a flat-rate calculator. A non-positive rate falls
// back to DefaultFareRate.
func NewFlatRateFare(ratePerUnit float64) FlatRateFare {
	if ratePerUnit <= 0 {
		ratePerUnit = DefaultFareRate
	}
	return FlatRateFare{RatePerUnit: ratePerUnit}
}

// Fare returns distance * RatePerUnit.
func (f FlatRateFare) Fare(distance float64) float64 {
	return distance * f.RatePerUnit
}
