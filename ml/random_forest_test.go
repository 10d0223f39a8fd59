package ml

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomForestDeterministic(t *testing.T) {
	dataset := loadFixture(t)

	serial := NewRandomForest(ForestOptions{Trees: 20, Seed: 42, Jobs: 1})
	require.NoError(t, serial.Fit(dataset.Features(), dataset.Targets()))
	parallel := NewRandomForest(ForestOptions{Trees: 20, Seed: 42, Jobs: 4})
	require.NoError(t, parallel.Fit(dataset.Features(), dataset.Targets()))

	first, err := serial.PredictBatch(dataset.Features())
	require.NoError(t, err)
	second, err := parallel.PredictBatch(dataset.Features())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other := NewRandomForest(ForestOptions{Trees: 20, Seed: 7, Jobs: 4})
	require.NoError(t, other.Fit(dataset.Features(), dataset.Targets()))
	third, err := other.PredictBatch(dataset.Features())
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestRandomForestFitsTrainingRow(t *testing.T) {
	dataset := loadFixture(t)
	forest := NewRandomForest(DefaultForestOptions())
	require.NoError(t, forest.Fit(dataset.Features(), dataset.Targets()))
	assert.Len(t, forest.Trees(), 100)

	features, err := dataset.Encode(25, 0, "Monday", "June")
	require.NoError(t, err)
	prediction, err := forest.Predict(FeatureVector(features))
	require.NoError(t, err)
	assert.InDelta(t, 120, prediction, 10)
}

func TestRandomForestPredictionWithinTargetRange(t *testing.T) {
	features := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}}
	targets := []float64{5, 6, 7, 20, 21, 22}
	forest := NewRandomForest(ForestOptions{Trees: 10, Seed: 1, Jobs: -1})
	require.NoError(t, forest.Fit(features, targets))

	for _, x := range []float64{-100, 0, 3.5, 100} {
		prediction, err := forest.Predict([]float64{x})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, prediction, 5.0)
		assert.LessOrEqual(t, prediction, 22.0)
	}
}

func TestRandomForestErrors(t *testing.T) {
	forest := NewRandomForest(ForestOptions{Trees: 0, Seed: 1})
	assert.Error(t, forest.Fit([][]float64{{1}}, []float64{1}))

	forest = NewRandomForest(DefaultForestOptions())
	_, err := forest.Predict([]float64{1})
	assert.Error(t, err)
	require.NoError(t, forest.Fit([][]float64{{1}, {2}}, []float64{1, 2}))
	_, err = forest.Predict([]float64{1, 2})
	assert.Error(t, err)
}

func TestRandomForestJobs(t *testing.T) {
	assert.Equal(t, runtime.GOMAXPROCS(0), NewRandomForest(ForestOptions{Trees: 100, Jobs: -1}).jobs())
	assert.Equal(t, runtime.GOMAXPROCS(0), NewRandomForest(ForestOptions{Trees: 100, Jobs: 0}).jobs())
	assert.Equal(t, 3, NewRandomForest(ForestOptions{Trees: 100, Jobs: 3}).jobs())
	assert.Equal(t, 2, NewRandomForest(ForestOptions{Trees: 2, Jobs: 8}).jobs())
}
