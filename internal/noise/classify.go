// Package noise provides ambient noise measurement and classification.
// Decibel readings are averaged over a fixed window and mapped to one of
// three coarse loudness categories.
package noise

import (
	"errors"
	"fmt"
)

// Category is a coarse ambient loudness bucket.
type Category string

const (
	// Quiet is an average level below QuietBelowDB.
	Quiet Category = "Quiet"
	// Moderate is an average level from QuietBelowDB up to LoudFromDB.
	Moderate Category = "Moderate"
	// Loud is an average level at or above LoudFromDB.
	Loud Category = "Loud"
)

// Classification thresholds in dB.
const (
	QuietBelowDB = -50.0
	LoudFromDB   = -30.0
)

// ErrNoSamples is returned when a measurement window produced no readings.
var ErrNoSamples = errors.New("noise: no samples collected")

// Measurement is the result of one ambient noise measurement.
type Measurement struct {
	// DB is the average level in decibels.
	DB float64 `json:"dB"`
	// Level is the category DB falls into.
	Level Category `json:"noiseLevel"`
}

// String formats the measurement for display, e.g. "Quiet (-57.7 dB)".
func (m Measurement) String() string {
	return fmt.Sprintf("%s (%.1f dB)", m.Level, m.DB)
}

// Classify maps an average decibel level to its category.
// Exactly -50 is Moderate and exactly -30 is Loud.
func Classify(avgDB float64) Category {
	if avgDB < QuietBelowDB {
		return Quiet
	}
	if avgDB < LoudFromDB {
		return Moderate
	}
	return Loud
}

// Mean returns the arithmetic mean of samples.
// It returns ErrNoSamples for an empty slice.
func Mean(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrNoSamples
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples)), nil
}

// Summarize averages samples and classifies the result.
func Summarize(samples []float64) (Measurement, error) {
	avg, err := Mean(samples)
	if err != nil {
		return Measurement{}, err
	}
	return Measurement{DB: avg, Level: Classify(avg)}, nil
}
