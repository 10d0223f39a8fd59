package ml

import (
	"github.com/juju/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// rcond is the relative cutoff below which singular values are treated as zero.
const rcond = 1e-12

// LinearRegression is ordinary least squares with an intercept.
//
// The features and target are centred, and the coefficients are the
// minimum-norm least-squares solution of the centred system obtained from a
// thin SVD. Constant or collinear columns therefore never fail the fit.
type LinearRegression struct {
	coefficients []float64
	intercept    float64
}

func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

func (lr *LinearRegression) Fit(features [][]float64, targets []float64) error {
	width, err := checkTrainingSet(features, targets)
	if err != nil {
		return errors.Trace(err)
	}
	n := len(features)

	means := make([]float64, width)
	for _, row := range features {
		floats.Add(means, row)
	}
	floats.Scale(1/float64(n), means)
	targetMean := floats.Sum(targets) / float64(n)

	x := mat.NewDense(n, width, nil)
	y := mat.NewDense(n, 1, nil)
	for i, row := range features {
		for j, value := range row {
			x.Set(i, j, value-means[j])
		}
		y.Set(i, 0, targets[i]-targetMean)
	}

	coefficients := make([]float64, width)
	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return errors.New("svd factorization failed")
	}
	if rank := svd.Rank(rcond); rank > 0 {
		var beta mat.Dense
		svd.SolveTo(&beta, y, rank)
		for j := range coefficients {
			coefficients[j] = beta.At(j, 0)
		}
	}

	lr.coefficients = coefficients
	lr.intercept = targetMean - floats.Dot(means, coefficients)
	return nil
}

func (lr *LinearRegression) Predict(features []float64) (float64, error) {
	if lr.coefficients == nil {
		return 0, errors.New("model not trained")
	}
	if len(features) != len(lr.coefficients) {
		return 0, errors.NotValidf("feature width %d (want %d)", len(features), len(lr.coefficients))
	}
	return lr.intercept + floats.Dot(lr.coefficients, features), nil
}

func (lr *LinearRegression) PredictBatch(features [][]float64) ([]float64, error) {
	return predictBatch(lr, features)
}

// Coefficients returns the fitted weights in feature order.
func (lr *LinearRegression) Coefficients() []float64 {
	return append([]float64(nil), lr.coefficients...)
}

func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept
}
