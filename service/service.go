// Package service owns the data and models trained at startup and answers
// prediction and metrics queries against them.
package service

import (
	"context"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"icecream/ml"
	"icecream/monitoring"
)

// ErrUnavailable is returned by every query when startup failed.
var ErrUnavailable = errors.New("service unavailable")

// ErrOutOfRange is returned when the inputs drive a model output past the
// float64 range.
var ErrOutOfRange = errors.New("prediction out of range")

// State is fixed for the lifetime of a Service.
type State int

const (
	StateUnavailable State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	default:
		return "unavailable"
	}
}

// Lifecycle is either *Ready or *Unavailable.
type Lifecycle interface {
	State() State
}

// Ready carries everything trained at startup.
type Ready struct {
	Dataset *ml.Dataset
	Models  *ml.Models
}

func (*Ready) State() State { return StateReady }

// Unavailable records why startup failed.
type Unavailable struct {
	Err error
}

func (*Unavailable) State() State { return StateUnavailable }

type Options struct {
	DataPath  string
	Forest    ml.ForestOptions
	CacheSize int
}

// PredictRequest holds raw, unencoded inputs.
type PredictRequest struct {
	Temperature float64
	Rainfall    float64
	DayOfWeek   string
	Month       string
}

// UnknownCategoryError reports a categorical value absent from the training data.
type UnknownCategoryError struct {
	Field string
	Value string
	err   error
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("Unknown %s '%s'", e.Field, e.Value)
}

func (e *UnknownCategoryError) Unwrap() error {
	return e.err
}

type Service struct {
	lifecycle Lifecycle
	cache     *lru.Cache[PredictRequest, ml.Prediction]
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

// Start loads the dataset and trains both models. It never fails: errors
// put the returned Service in the unavailable state for good.
func Start(options Options, logger *zap.Logger, metrics *monitoring.Metrics) *Service {
	start := time.Now()
	lifecycle, err := initialize(options)
	if err != nil {
		logger.Error("startup failed, serving without models",
			zap.String("data", options.DataPath), zap.Error(err))
		lifecycle = &Unavailable{Err: err}
	} else {
		ready := lifecycle.(*Ready)
		logger.Info("models loaded",
			zap.String("data", options.DataPath),
			zap.Int("rows", ready.Dataset.Len()),
			zap.Int("trees", options.Forest.Trees),
			zap.Duration("elapsed", time.Since(start)))
	}
	return New(lifecycle, options.CacheSize, logger, metrics)
}

// New wraps an existing lifecycle. A cacheSize of zero disables the
// prediction cache.
func New(lifecycle Lifecycle, cacheSize int, logger *zap.Logger, metrics *monitoring.Metrics) *Service {
	s := &Service{
		lifecycle: lifecycle,
		logger:    logger,
		metrics:   metrics,
	}
	if cacheSize > 0 {
		cache, err := lru.New[PredictRequest, ml.Prediction](cacheSize)
		if err != nil {
			logger.Warn("prediction cache disabled", zap.Int("size", cacheSize), zap.Error(err))
		} else {
			s.cache = cache
		}
	}
	metrics.SetReady(lifecycle.State() == StateReady)
	return s
}

func initialize(options Options) (Lifecycle, error) {
	dataset, err := ml.LoadDataset(options.DataPath)
	if err != nil {
		return nil, errors.Trace(err)
	}
	models, err := ml.TrainModels(dataset, options.Forest)
	if err != nil {
		return nil, errors.Annotate(err, "train models")
	}
	return &Ready{Dataset: dataset, Models: models}, nil
}

func (s *Service) State() State {
	return s.lifecycle.State()
}

// Err is the startup error, nil when ready.
func (s *Service) Err() error {
	if unavailable, ok := s.lifecycle.(*Unavailable); ok {
		return unavailable.Err
	}
	return nil
}

func (s *Service) ready() (*Ready, error) {
	switch lifecycle := s.lifecycle.(type) {
	case *Ready:
		return lifecycle, nil
	default:
		return nil, ErrUnavailable
	}
}

// Predict encodes the request with the startup encoders and runs both models.
// Predictions are clamped at zero.
func (s *Service) Predict(ctx context.Context, request PredictRequest) (ml.Prediction, error) {
	ready, err := s.ready()
	if err != nil {
		return ml.Prediction{}, err
	}
	if err := ctx.Err(); err != nil {
		return ml.Prediction{}, errors.Trace(err)
	}
	if s.cache != nil {
		if prediction, ok := s.cache.Get(request); ok {
			s.metrics.ObservePrediction(true)
			return prediction, nil
		}
	}

	dayCode, err := ready.Dataset.DayOfWeekEncoder().Encode(request.DayOfWeek)
	if err != nil {
		return ml.Prediction{}, &UnknownCategoryError{Field: "dayOfWeek", Value: request.DayOfWeek, err: err}
	}
	monthCode, err := ready.Dataset.MonthEncoder().Encode(request.Month)
	if err != nil {
		return ml.Prediction{}, &UnknownCategoryError{Field: "month", Value: request.Month, err: err}
	}
	features := ml.FeatureVector(ml.Features{
		Temperature:   request.Temperature,
		Rainfall:      request.Rainfall,
		DayOfWeekCode: dayCode,
		MonthCode:     monthCode,
	})

	prediction, err := ready.Models.Predict(features)
	if err != nil {
		return ml.Prediction{}, errors.Trace(err)
	}
	if !isFinite(prediction.LinearRegression) || !isFinite(prediction.RandomForest) {
		return ml.Prediction{}, ErrOutOfRange
	}
	prediction.LinearRegression = math.Max(0, prediction.LinearRegression)
	prediction.RandomForest = math.Max(0, prediction.RandomForest)

	if s.cache != nil {
		s.cache.Add(request, prediction)
	}
	s.metrics.ObservePrediction(false)
	s.logger.Debug("prediction",
		zap.Float64("temperature", request.Temperature),
		zap.Float64("rainfall", request.Rainfall),
		zap.String("day_of_week", request.DayOfWeek),
		zap.String("month", request.Month),
		zap.Float64(ml.ModelLinearRegression, prediction.LinearRegression),
		zap.Float64(ml.ModelRandomForest, prediction.RandomForest))
	return prediction, nil
}

// Metrics re-runs both models over the training set.
func (s *Service) Metrics(ctx context.Context) (ml.Report, error) {
	ready, err := s.ready()
	if err != nil {
		return ml.Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return ml.Report{}, errors.Trace(err)
	}
	report, err := ready.Models.Evaluate(ready.Dataset.Features(), ready.Dataset.Targets())
	if err != nil {
		return ml.Report{}, errors.Trace(err)
	}
	return report, nil
}

// Categories lists the labels each categorical input accepts, ordered by code.
func (s *Service) Categories(ctx context.Context) (map[string][]string, error) {
	ready, err := s.ready()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return map[string][]string{
		"dayOfWeek": ready.Dataset.DayOfWeekEncoder().Classes(),
		"month":     ready.Dataset.MonthEncoder().Classes(),
	}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
