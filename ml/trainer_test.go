package ml

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainModels(t *testing.T) {
	dataset := loadFixture(t)
	models, err := TrainModels(dataset, DefaultForestOptions())
	require.NoError(t, err)

	report, err := models.Evaluate(dataset.Features(), dataset.Targets())
	require.NoError(t, err)
	for _, scores := range []Scores{report.LinearRegression, report.RandomForest} {
		assert.LessOrEqual(t, scores.R2, 1.0)
		assert.GreaterOrEqual(t, scores.MSE, 0.0)
		assert.GreaterOrEqual(t, scores.MAE, 0.0)
	}
	// the forest memorises most of the training set
	assert.Greater(t, report.RandomForest.R2, report.LinearRegression.R2)

	features, err := dataset.Encode(25, 0, "Monday", "June")
	require.NoError(t, err)
	vector := FeatureVector(features)
	prediction, err := models.Predict(vector)
	require.NoError(t, err)

	expected := models.Linear.Intercept()
	for i, coefficient := range models.Linear.Coefficients() {
		expected += coefficient * vector[i]
	}
	assert.InDelta(t, expected, prediction.LinearRegression, 1e-9)
	assert.InDelta(t, 120, prediction.RandomForest, 10)
}

func TestTrainModelsRepeatable(t *testing.T) {
	dataset := loadFixture(t)
	first, err := TrainModels(dataset, DefaultForestOptions())
	require.NoError(t, err)
	second, err := TrainModels(dataset, DefaultForestOptions())
	require.NoError(t, err)

	assert.Equal(t, first.Linear.Coefficients(), second.Linear.Coefficients())
	firstReport, err := first.Evaluate(dataset.Features(), dataset.Targets())
	require.NoError(t, err)
	secondReport, err := second.Evaluate(dataset.Features(), dataset.Targets())
	require.NoError(t, err)
	assert.Equal(t, firstReport, secondReport)
}

func TestFitModelsInvalid(t *testing.T) {
	_, err := FitModels(nil, nil, DefaultForestOptions())
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestSplitDataset(t *testing.T) {
	features := make([][]float64, 10)
	targets := make([]float64, 10)
	for i := range features {
		features[i] = []float64{float64(i)}
		targets[i] = float64(i)
	}

	trainX, trainY, testX, testY := SplitDataset(features, targets, 0.3, 1)
	assert.Len(t, trainX, 7)
	assert.Len(t, trainY, 7)
	assert.Len(t, testX, 3)
	assert.Len(t, testY, 3)
	for i := range trainX {
		assert.Equal(t, trainX[i][0], trainY[i])
	}

	againX, _, _, _ := SplitDataset(features, targets, 0.3, 1)
	assert.Equal(t, trainX, againX)

	trainX, _, testX, _ = SplitDataset(features, targets, 5, 1)
	assert.Len(t, trainX, 8)
	assert.Len(t, testX, 2)
}
