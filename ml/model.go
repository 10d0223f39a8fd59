package ml

import "github.com/juju/errors"

// Regressor is a model fit on a feature matrix and a continuous target.
// A fitted Regressor is safe for concurrent prediction.
type Regressor interface {
	Fit(features [][]float64, targets []float64) error
	Predict(features []float64) (float64, error)
	PredictBatch(features [][]float64) ([]float64, error)
}

func checkTrainingSet(features [][]float64, targets []float64) (int, error) {
	if len(features) == 0 || len(targets) == 0 {
		return 0, errors.NotValidf("empty training set")
	}
	if len(features) != len(targets) {
		return 0, errors.NotValidf("%d feature rows with %d targets", len(features), len(targets))
	}
	width := len(features[0])
	if width == 0 {
		return 0, errors.NotValidf("feature rows without columns")
	}
	for i, row := range features {
		if len(row) != width {
			return 0, errors.NotValidf("feature row %d width %d (want %d)", i, len(row), width)
		}
	}
	return width, nil
}

func predictBatch(model Regressor, features [][]float64) ([]float64, error) {
	predictions := make([]float64, len(features))
	for i, row := range features {
		prediction, err := model.Predict(row)
		if err != nil {
			return nil, errors.Annotatef(err, "row %d", i)
		}
		predictions[i] = prediction
	}
	return predictions, nil
}
