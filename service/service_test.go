package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"icecream/ml"
	"icecream/monitoring"
)

func startService(t *testing.T, cacheSize int) *Service {
	t.Helper()
	svc := Start(Options{
		DataPath:  filepath.Join("..", "ice-cream.csv"),
		Forest:    ml.DefaultForestOptions(),
		CacheSize: cacheSize,
	}, zap.NewNop(), monitoring.NewMetrics())
	require.Equal(t, StateReady, svc.State())
	require.NoError(t, svc.Err())
	return svc
}

func TestPredict(t *testing.T) {
	svc := startService(t, 0)
	prediction, err := svc.Predict(context.Background(), PredictRequest{
		Temperature: 25,
		Rainfall:    0,
		DayOfWeek:   "Monday",
		Month:       "June",
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, prediction.LinearRegression, 0.0)
	assert.InDelta(t, 120, prediction.RandomForest, 10)
}

func TestPredictClampsAtZero(t *testing.T) {
	svc := startService(t, 0)
	prediction, err := svc.Predict(context.Background(), PredictRequest{
		Temperature: -40,
		Rainfall:    80,
		DayOfWeek:   "Monday",
		Month:       "January",
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, prediction.LinearRegression)
	assert.GreaterOrEqual(t, prediction.RandomForest, 0.0)
}

func TestPredictUnknownCategory(t *testing.T) {
	svc := startService(t, 16)

	_, err := svc.Predict(context.Background(), PredictRequest{Temperature: 20, DayOfWeek: "Funday", Month: "June"})
	var unknown *UnknownCategoryError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "dayOfWeek", unknown.Field)
	assert.Equal(t, "Unknown dayOfWeek 'Funday'", err.Error())
	assert.True(t, errors.Is(err, errors.NotFound))

	_, err = svc.Predict(context.Background(), PredictRequest{Temperature: 20, DayOfWeek: "Monday", Month: "june"})
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "month", unknown.Field)
}

func TestPredictOutOfRange(t *testing.T) {
	svc := startService(t, 16)
	for _, request := range []PredictRequest{
		{Temperature: 1e308, DayOfWeek: "Monday", Month: "June"},
		{Temperature: 1e308, Rainfall: 1e308, DayOfWeek: "Monday", Month: "June"},
		{Temperature: -1e308, DayOfWeek: "Monday", Month: "June"},
	} {
		_, err := svc.Predict(context.Background(), request)
		assert.ErrorIs(t, err, ErrOutOfRange, "%+v", request)
	}
}

func TestCanceledContext(t *testing.T) {
	svc := startService(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Predict(ctx, PredictRequest{Temperature: 25, DayOfWeek: "Monday", Month: "June"})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = svc.Metrics(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = svc.Categories(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPredictCache(t *testing.T) {
	metrics := monitoring.NewMetrics()
	svc := Start(Options{
		DataPath:  filepath.Join("..", "ice-cream.csv"),
		Forest:    ml.ForestOptions{Trees: 10, Seed: 42, Jobs: -1},
		CacheSize: 8,
	}, zap.NewNop(), metrics)

	request := PredictRequest{Temperature: 22, Rainfall: 1, DayOfWeek: "Friday", Month: "May"}
	first, err := svc.Predict(context.Background(), request)
	require.NoError(t, err)
	second, err := svc.Predict(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	uncached := New(&Ready{Dataset: mustReady(t, svc).Dataset, Models: mustReady(t, svc).Models}, 0, zap.NewNop(), nil)
	third, err := uncached.Predict(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, first, third)

	assert.Contains(t, mustGather(t, metrics), `icecream_predictions_total{cache="hit"} 1`)
}

func TestPredictConcurrent(t *testing.T) {
	svc := startService(t, 4)
	var wg sync.WaitGroup
	results := make([]ml.Prediction, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prediction, err := svc.Predict(context.Background(), PredictRequest{
				Temperature: 25, DayOfWeek: "Monday", Month: "June",
			})
			assert.NoError(t, err)
			results[i] = prediction
		}(i)
	}
	wg.Wait()
	for _, result := range results[1:] {
		assert.Equal(t, results[0], result)
	}
}

func TestMetrics(t *testing.T) {
	svc := startService(t, 0)
	report, err := svc.Metrics(context.Background())
	require.NoError(t, err)
	for _, scores := range []ml.Scores{report.LinearRegression, report.RandomForest} {
		assert.LessOrEqual(t, scores.R2, 1.0)
		assert.GreaterOrEqual(t, scores.MSE, 0.0)
		assert.GreaterOrEqual(t, scores.MAE, 0.0)
	}
}

func TestCategories(t *testing.T) {
	svc := startService(t, 0)
	categories, err := svc.Categories(context.Background())
	require.NoError(t, err)
	assert.Len(t, categories["dayOfWeek"], 7)
	assert.Len(t, categories["month"], 12)
	assert.Equal(t, "Friday", categories["dayOfWeek"][0])
}

func TestStartMissingDataset(t *testing.T) {
	metrics := monitoring.NewMetrics()
	svc := Start(Options{
		DataPath: filepath.Join(t.TempDir(), "missing.csv"),
		Forest:   ml.DefaultForestOptions(),
	}, zap.NewNop(), metrics)

	assert.Equal(t, StateUnavailable, svc.State())
	assert.Equal(t, "unavailable", svc.State().String())
	assert.Error(t, svc.Err())
	assert.Contains(t, mustGather(t, metrics), "icecream_models_ready 0")

	_, err := svc.Predict(context.Background(), PredictRequest{DayOfWeek: "Monday", Month: "June"})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = svc.Metrics(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = svc.Categories(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func mustReady(t *testing.T, svc *Service) *Ready {
	t.Helper()
	ready, err := svc.ready()
	require.NoError(t, err)
	return ready
}

func mustGather(t *testing.T, metrics *monitoring.Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}
