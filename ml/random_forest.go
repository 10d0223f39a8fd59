package ml

import (
	"math/rand"
	"runtime"

	"github.com/juju/errors"
	"golang.org/x/sync/errgroup"
)

// ForestOptions configures a RandomForest.
type ForestOptions struct {
	// Trees is the number of trees in the ensemble.
	Trees int
	// Seed drives bootstrap sampling.
	Seed int64
	// Jobs is the number of goroutines building trees; -1 or 0 uses every CPU.
	Jobs int
	// MaxDepth limits every tree; 0 grows trees fully.
	MaxDepth int
}

func DefaultForestOptions() ForestOptions {
	return ForestOptions{
		Trees: 100,
		Seed:  42,
		Jobs:  -1,
	}
}

// RandomForest averages regression trees fit on bootstrap samples.
//
// Per-tree seeds are drawn from Seed before any tree is built, so the fitted
// ensemble does not depend on Jobs or on goroutine scheduling.
type RandomForest struct {
	options   ForestOptions
	nFeatures int
	trees     []*DecisionTree
}

func NewRandomForest(options ForestOptions) *RandomForest {
	return &RandomForest{options: options}
}

func (rf *RandomForest) Fit(features [][]float64, targets []float64) error {
	width, err := checkTrainingSet(features, targets)
	if err != nil {
		return errors.Trace(err)
	}
	if rf.options.Trees <= 0 {
		return errors.NotValidf("forest with %d trees", rf.options.Trees)
	}

	n := len(features)
	rng := rand.New(rand.NewSource(rf.options.Seed))
	seeds := make([]int64, rf.options.Trees)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	trees := make([]*DecisionTree, rf.options.Trees)
	var group errgroup.Group
	group.SetLimit(rf.jobs())
	for i := range trees {
		group.Go(func() error {
			sampler := rand.New(rand.NewSource(seeds[i]))
			sample := make([]int, n)
			for k := range sample {
				sample[k] = sampler.Intn(n)
			}
			tree := NewDecisionTree(rf.options.MaxDepth)
			tree.fitSample(features, targets, sample, width)
			trees[i] = tree
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return errors.Trace(err)
	}

	rf.nFeatures = width
	rf.trees = trees
	return nil
}

func (rf *RandomForest) Predict(features []float64) (float64, error) {
	if len(rf.trees) == 0 {
		return 0, errors.New("model not trained")
	}
	if len(features) != rf.nFeatures {
		return 0, errors.NotValidf("feature width %d (want %d)", len(features), rf.nFeatures)
	}
	var sum float64
	for i, tree := range rf.trees {
		prediction, err := tree.Predict(features)
		if err != nil {
			return 0, errors.Annotatef(err, "tree %d", i)
		}
		sum += prediction
	}
	return sum / float64(len(rf.trees)), nil
}

func (rf *RandomForest) PredictBatch(features [][]float64) ([]float64, error) {
	return predictBatch(rf, features)
}

// Trees returns the fitted trees.
func (rf *RandomForest) Trees() []*DecisionTree {
	return append([]*DecisionTree(nil), rf.trees...)
}

// jobs is the number of trees built at once.
func (rf *RandomForest) jobs() int {
	if rf.options.Jobs <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return min(rf.options.Jobs, rf.options.Trees)
}
