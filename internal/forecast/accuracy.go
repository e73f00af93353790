package forecast

import (
	"errors"
	"math"
)

// Accuracy summarises how far past predictions were from actual sales.
type Accuracy struct {
	MAE        float64 `json:"mae"`
	MAPE       float64 `json:"mape"`
	Accuracy   float64 `json:"accuracy"`
	SampleSize int     `json:"sample_size"`
}

var (
	errNoSamples      = errors.New("predicted and actual values must not be empty")
	errLengthMismatch = errors.New("predicted and actual values differ in length")
)

// Evaluate compares predicted against actual values. Points with an actual of
// zero count toward MAE but not toward MAPE.
func Evaluate(predicted, actual []float64) (Accuracy, error) {
	if len(predicted) == 0 || len(actual) == 0 {
		return Accuracy{}, errNoSamples
	}
	if len(predicted) != len(actual) {
		return Accuracy{}, errLengthMismatch
	}

	var absSum, pctSum float64
	pctCount := 0
	for i := range predicted {
		diff := math.Abs(predicted[i] - actual[i])
		absSum += diff
		if actual[i] != 0 {
			pctSum += diff / math.Abs(actual[i])
			pctCount++
		}
	}

	acc := Accuracy{
		MAE:        absSum / float64(len(predicted)),
		SampleSize: len(predicted),
	}
	if pctCount > 0 {
		acc.MAPE = pctSum / float64(pctCount) * 100
	}
	acc.Accuracy = 100 - acc.MAPE
	return acc, nil
}
