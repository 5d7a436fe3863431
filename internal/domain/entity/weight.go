package entity

import "time"

// WeightSample одно показание весов.
type WeightSample struct {
	Timestamp time.Time
	Grams     float64
}

// NewWeightSample создаёт показание; отрицательный вес считается нулевым.
func NewWeightSample(grams float64, at time.Time) WeightSample {
	if grams < 0 || grams != grams {
		grams = 0
	}
	return WeightSample{Timestamp: at, Grams: grams}
}
