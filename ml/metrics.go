package ml

import (
	"github.com/juju/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Scores are goodness-of-fit statistics of a regressor.
type Scores struct {
	R2  float64 `json:"r2"`
	MSE float64 `json:"mse"`
	MAE float64 `json:"mae"`
}

// Evaluate compares predictions with the actual targets. R² uses the
// population mean of actual. When actual is constant R² is 1 for a perfect
// fit and 0 otherwise, which keeps the result finite.
func Evaluate(actual, predicted []float64) (Scores, error) {
	if len(actual) == 0 {
		return Scores{}, errors.NotValidf("empty evaluation set")
	}
	if len(actual) != len(predicted) {
		return Scores{}, errors.NotValidf("%d targets with %d predictions", len(actual), len(predicted))
	}

	n := float64(len(actual))
	residuals := make([]float64, len(actual))
	floats.SubTo(residuals, actual, predicted)
	scores := Scores{
		MSE: floats.Dot(residuals, residuals) / n,
		MAE: floats.Norm(residuals, 1) / n,
	}

	switch {
	case floats.Max(actual) != floats.Min(actual):
		scores.R2 = stat.RSquaredFrom(predicted, actual, nil)
	case scores.MSE == 0:
		scores.R2 = 1
	default:
		scores.R2 = 0
	}
	return scores, nil
}

// EvaluateRegressor scores model over a labelled set.
func EvaluateRegressor(model Regressor, features [][]float64, targets []float64) (Scores, error) {
	predicted, err := model.PredictBatch(features)
	if err != nil {
		return Scores{}, errors.Trace(err)
	}
	return Evaluate(targets, predicted)
}
