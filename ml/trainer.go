package ml

import (
	"math"
	"math/rand"

	"github.com/juju/errors"
)

const (
	ModelLinearRegression = "linear_regression"
	ModelRandomForest     = "random_forest"
)

// Models holds the two fitted regressors. It is immutable and safe for
// concurrent use.
type Models struct {
	Linear *LinearRegression
	Forest *RandomForest
}

// Prediction is the raw output of both models for one feature row.
type Prediction struct {
	LinearRegression float64 `json:"linear_regression"`
	RandomForest     float64 `json:"random_forest"`
}

// Report holds the scores of both models on one labelled set.
type Report struct {
	LinearRegression Scores `json:"linear_regression"`
	RandomForest     Scores `json:"random_forest"`
}

// TrainModels fits both models on the whole dataset.
func TrainModels(dataset *Dataset, options ForestOptions) (*Models, error) {
	return FitModels(dataset.Features(), dataset.Targets(), options)
}

// FitModels fits both models on an arbitrary labelled set.
func FitModels(features [][]float64, targets []float64, options ForestOptions) (*Models, error) {
	linear := NewLinearRegression()
	if err := linear.Fit(features, targets); err != nil {
		return nil, errors.Annotate(err, ModelLinearRegression)
	}
	forest := NewRandomForest(options)
	if err := forest.Fit(features, targets); err != nil {
		return nil, errors.Annotate(err, ModelRandomForest)
	}
	return &Models{Linear: linear, Forest: forest}, nil
}

func (m *Models) Predict(features []float64) (Prediction, error) {
	linear, err := m.Linear.Predict(features)
	if err != nil {
		return Prediction{}, errors.Annotate(err, ModelLinearRegression)
	}
	forest, err := m.Forest.Predict(features)
	if err != nil {
		return Prediction{}, errors.Annotate(err, ModelRandomForest)
	}
	return Prediction{LinearRegression: linear, RandomForest: forest}, nil
}

// Evaluate re-runs both models over a labelled set.
func (m *Models) Evaluate(features [][]float64, targets []float64) (Report, error) {
	linear, err := EvaluateRegressor(m.Linear, features, targets)
	if err != nil {
		return Report{}, errors.Annotate(err, ModelLinearRegression)
	}
	forest, err := EvaluateRegressor(m.Forest, features, targets)
	if err != nil {
		return Report{}, errors.Annotate(err, ModelRandomForest)
	}
	return Report{LinearRegression: linear, RandomForest: forest}, nil
}

// SplitDataset shuffles rows with seed and holds out testRatio of them. Ratios
// outside (0, 1) fall back to 0.2.
func SplitDataset(features [][]float64, targets []float64, testRatio float64, seed int64) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(len(features))

	split := int(math.Round(float64(len(features)) * (1 - testRatio)))
	for i, idx := range indices {
		if i < split {
			trainX = append(trainX, features[idx])
			trainY = append(trainY, targets[idx])
		} else {
			testX = append(testX, features[idx])
			testY = append(testY, targets[idx])
		}
	}
	return trainX, trainY, testX, testY
}
