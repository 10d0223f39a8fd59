package ml

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionTreeTrainPredict(t *testing.T) {
	features := [][]float64{
		{0.1, 0.2},
		{0.2, 0.1},
		{0.9, 0.8},
		{0.8, 0.9},
	}
	targets := []float64{10, 12, 50, 52}

	model := NewDecisionTree(0)
	require.NoError(t, model.Fit(features, targets))

	// every training row ends in its own leaf
	for i, row := range features {
		prediction, err := model.Predict(row)
		require.NoError(t, err)
		assert.Equal(t, targets[i], prediction)
	}

	prediction, err := model.Predict([]float64{0.15, 0.15})
	require.NoError(t, err)
	assert.Contains(t, []float64{10, 12}, prediction)
}

func TestDecisionTreeMaxDepth(t *testing.T) {
	features := [][]float64{{1}, {2}, {3}, {4}}
	targets := []float64{1, 2, 3, 4}

	model := NewDecisionTree(1)
	require.NoError(t, model.Fit(features, targets))
	assert.Equal(t, 1, model.Depth())

	prediction, err := model.Predict([]float64{1})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, prediction, 1e-9)
	prediction, err = model.Predict([]float64{4})
	require.NoError(t, err)
	assert.InDelta(t, 3.5, prediction, 1e-9)
}

func TestDecisionTreeSplitThreshold(t *testing.T) {
	model := NewDecisionTree(0)
	require.NoError(t, model.Fit([][]float64{{1}, {3}}, []float64{0, 10}))

	nodes := model.Nodes()
	require.Len(t, nodes, 3)
	assert.False(t, nodes[0].IsLeaf)
	assert.Equal(t, 0, nodes[0].FeatureIdx)
	assert.Equal(t, 2.0, nodes[0].Threshold)
	assert.True(t, nodes[nodes[0].LeftChild].IsLeaf)
	assert.Equal(t, 0.0, nodes[nodes[0].LeftChild].Value)
	assert.Equal(t, 10.0, nodes[nodes[0].RightChild].Value)
}

func TestDecisionTreeIdenticalFeatures(t *testing.T) {
	model := NewDecisionTree(0)
	require.NoError(t, model.Fit([][]float64{{1, 1}, {1, 1}, {1, 1}}, []float64{3, 6, 9}))

	nodes := model.Nodes()
	require.Len(t, nodes, 1)
	assert.True(t, nodes[0].IsLeaf)
	prediction, err := model.Predict([]float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 6.0, prediction)
}

func TestDecisionTreeErrors(t *testing.T) {
	model := NewDecisionTree(0)
	_, err := model.Predict([]float64{1})
	assert.Error(t, err)

	assert.True(t, errors.Is(model.Fit(nil, nil), errors.NotValid))
	assert.True(t, errors.Is(model.Fit([][]float64{{1}}, []float64{1, 2}), errors.NotValid))
	assert.True(t, errors.Is(model.Fit([][]float64{{1}, {1, 2}}, []float64{1, 2}), errors.NotValid))

	require.NoError(t, model.Fit([][]float64{{1}, {2}}, []float64{1, 2}))
	_, err = model.Predict([]float64{1, 2})
	assert.True(t, errors.Is(err, errors.NotValid))
}
