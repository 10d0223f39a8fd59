package ml

import (
	"math"
	"sort"

	"github.com/juju/errors"
)

// featureThreshold is the smallest gap between two values that a split may separate.
const featureThreshold = 1e-7

// DecisionTree is a CART regression tree grown with the squared-error
// criterion. Nodes are stored in a flat slice; node 0 is the root.
type DecisionTree struct {
	maxDepth  int
	nFeatures int
	nodes     []TreeNode
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	Samples    int     `json:"samples"`
	IsLeaf     bool    `json:"is_leaf"`
}

// NewDecisionTree creates an untrained tree. A maxDepth of zero or less grows
// the tree until every leaf is pure or holds a single sample.
func NewDecisionTree(maxDepth int) *DecisionTree {
	return &DecisionTree{maxDepth: maxDepth}
}

func (dt *DecisionTree) Fit(features [][]float64, targets []float64) error {
	width, err := checkTrainingSet(features, targets)
	if err != nil {
		return errors.Trace(err)
	}
	indices := make([]int, len(features))
	for i := range indices {
		indices[i] = i
	}
	dt.fitSample(features, targets, indices, width)
	return nil
}

// fitSample grows the tree on the rows named by indices. Repeated indices act
// as sample weights, which is how bootstrap samples are passed in.
func (dt *DecisionTree) fitSample(features [][]float64, targets []float64, indices []int, width int) {
	dt.nFeatures = width
	dt.nodes = dt.nodes[:0]
	dt.buildNode(features, targets, indices, 0)
}

func (dt *DecisionTree) Predict(features []float64) (float64, error) {
	if len(dt.nodes) == 0 {
		return 0, errors.New("model not trained")
	}
	if len(features) != dt.nFeatures {
		return 0, errors.NotValidf("feature width %d (want %d)", len(features), dt.nFeatures)
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx <= 0 || idx >= len(dt.nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

func (dt *DecisionTree) PredictBatch(features [][]float64) ([]float64, error) {
	return predictBatch(dt, features)
}

// Nodes returns a copy of the flattened tree.
func (dt *DecisionTree) Nodes() []TreeNode {
	return append([]TreeNode(nil), dt.nodes...)
}

// Depth is the number of edges on the longest root-to-leaf path.
func (dt *DecisionTree) Depth() int {
	if len(dt.nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return 0
		}
		return 1 + max(walk(node.LeftChild), walk(node.RightChild))
	}
	return walk(0)
}

func (dt *DecisionTree) buildNode(features [][]float64, targets []float64, indices []int, depth int) int {
	nodeIdx := len(dt.nodes)
	dt.nodes = append(dt.nodes, TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Value:      meanTarget(targets, indices),
		Samples:    len(indices),
		IsLeaf:     true,
	})

	if len(indices) < 2 || isConstant(targets, indices) {
		return nodeIdx
	}
	if dt.maxDepth > 0 && depth >= dt.maxDepth {
		return nodeIdx
	}

	bestFeature, threshold, ok := findBestSplit(features, targets, indices, dt.nFeatures)
	if !ok {
		return nodeIdx
	}

	leftIndices, rightIndices := splitIndices(features, indices, bestFeature, threshold)
	if len(leftIndices) == 0 || len(rightIndices) == 0 {
		return nodeIdx
	}

	left := dt.buildNode(features, targets, leftIndices, depth+1)
	right := dt.buildNode(features, targets, rightIndices, depth+1)

	node := &dt.nodes[nodeIdx]
	node.FeatureIdx = bestFeature
	node.Threshold = threshold
	node.LeftChild = left
	node.RightChild = right
	node.IsLeaf = false
	return nodeIdx
}

// findBestSplit scans every feature for the threshold that minimises the
// summed squared error of the two children.
func findBestSplit(features [][]float64, targets []float64, indices []int, nFeatures int) (int, float64, bool) {
	n := len(indices)
	var total, totalSq float64
	for _, i := range indices {
		total += targets[i]
		totalSq += targets[i] * targets[i]
	}

	bestFeature := -1
	bestThreshold := 0.0
	bestError := math.Inf(1)
	sorted := make([]int, n)

	for featureIdx := 0; featureIdx < nFeatures; featureIdx++ {
		copy(sorted, indices)
		sort.SliceStable(sorted, func(a, b int) bool {
			return features[sorted[a]][featureIdx] < features[sorted[b]][featureIdx]
		})

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			i := sorted[k]
			leftSum += targets[i]
			leftSq += targets[i] * targets[i]

			current := features[i][featureIdx]
			next := features[sorted[k+1]][featureIdx]
			if next <= current+featureThreshold {
				continue
			}

			leftCount := float64(k + 1)
			rightCount := float64(n - k - 1)
			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/leftCount) + (rightSq - rightSum*rightSum/rightCount)
			if sse < bestError {
				bestError = sse
				bestFeature = featureIdx
				bestThreshold = current/2 + next/2
				if bestThreshold == next || math.IsInf(bestThreshold, 0) {
					bestThreshold = current
				}
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitIndices(features [][]float64, indices []int, featureIdx int, threshold float64) ([]int, []int) {
	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, i := range indices {
		if features[i][featureIdx] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

func meanTarget(targets []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	var sum float64
	for _, i := range indices {
		sum += targets[i]
	}
	return sum / float64(len(indices))
}

func isConstant(targets []float64, indices []int) bool {
	first := targets[indices[0]]
	for _, i := range indices[1:] {
		if targets[i] != first {
			return false
		}
	}
	return true
}
