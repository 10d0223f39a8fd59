package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"icecream/ml"
)

type trainOptions struct {
	dataPath  string
	forest    ml.ForestOptions
	testRatio float64
}

var trainCommand = &cobra.Command{
	Use:   "train_model",
	Short: "Train both regressors offline and print their scores.",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		var options trainOptions
		options.dataPath, _ = flags.GetString("data")
		options.forest.Trees, _ = flags.GetInt("trees")
		options.forest.Seed, _ = flags.GetInt64("seed")
		options.forest.Jobs, _ = flags.GetInt("jobs")
		options.forest.MaxDepth, _ = flags.GetInt("max-depth")
		options.testRatio, _ = flags.GetFloat64("test-ratio")
		return train(cmd.OutOrStdout(), options)
	},
}

func init() {
	defaults := ml.DefaultForestOptions()
	trainCommand.Flags().String("data", "ice-cream.csv", "training CSV path")
	trainCommand.Flags().Int("trees", defaults.Trees, "number of trees in the forest")
	trainCommand.Flags().Int64("seed", defaults.Seed, "random seed")
	trainCommand.Flags().Int("jobs", defaults.Jobs, "parallel jobs, -1 uses every CPU")
	trainCommand.Flags().Int("max-depth", 0, "max tree depth, 0 grows trees fully")
	trainCommand.Flags().Float64("test-ratio", 0, "hold out this share of rows for a second evaluation, 0 disables")
	trainCommand.SilenceUsage = true
}

func main() {
	if err := trainCommand.Execute(); err != nil {
		os.Exit(1)
	}
}

func train(out io.Writer, options trainOptions) error {
	if options.forest.Trees < 1 {
		return errors.NotValidf("trees %d", options.forest.Trees)
	}
	dataset, err := ml.LoadDataset(options.dataPath)
	if err != nil {
		return errors.Trace(err)
	}
	models, err := ml.TrainModels(dataset, options.forest)
	if err != nil {
		return errors.Trace(err)
	}
	report, err := models.Evaluate(dataset.Features(), dataset.Targets())
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintf(out, "trained on %d rows\n", dataset.Len())

	table := tablewriter.NewWriter(out)
	table.Header("Set", "Model", "R2", "MSE", "MAE")
	if err := appendReport(table, "train", report); err != nil {
		return errors.Trace(err)
	}

	if options.testRatio > 0 {
		trainX, trainY, testX, testY := ml.SplitDataset(dataset.Features(), dataset.Targets(), options.testRatio, options.forest.Seed)
		holdout, err := ml.FitModels(trainX, trainY, options.forest)
		if err != nil {
			return errors.Annotate(err, "holdout")
		}
		scores, err := holdout.Evaluate(testX, testY)
		if err != nil {
			return errors.Annotate(err, "holdout")
		}
		if err := appendReport(table, "holdout", scores); err != nil {
			return errors.Trace(err)
		}
	}
	if err := table.Render(); err != nil {
		return errors.Trace(err)
	}

	coefficients := tablewriter.NewWriter(out)
	coefficients.Header("Feature", "Coefficient")
	rows := make([][]string, 0, ml.NumFeatures+1)
	for i, name := range ml.FeatureNames() {
		rows = append(rows, []string{name, formatFloat(models.Linear.Coefficients()[i])})
	}
	rows = append(rows, []string{"(intercept)", formatFloat(models.Linear.Intercept())})
	if err := coefficients.Bulk(rows); err != nil {
		return errors.Trace(err)
	}
	if err := coefficients.Render(); err != nil {
		return errors.Trace(err)
	}

	encoders := tablewriter.NewWriter(out)
	encoders.Header("Column", "Code", "Label")
	for _, encoder := range []struct {
		column  string
		encoder *ml.LabelEncoder
	}{
		{ml.ColumnDayOfWeek, dataset.DayOfWeekEncoder()},
		{ml.ColumnMonth, dataset.MonthEncoder()},
	} {
		for code, label := range encoder.encoder.Classes() {
			if err := encoders.Append([]string{encoder.column, strconv.Itoa(code), label}); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return errors.Trace(encoders.Render())
}

func appendReport(table *tablewriter.Table, set string, report ml.Report) error {
	return table.Bulk([][]string{
		scoreRow(set, ml.ModelLinearRegression, report.LinearRegression),
		scoreRow(set, ml.ModelRandomForest, report.RandomForest),
	})
}

func scoreRow(set, model string, scores ml.Scores) []string {
	return []string{set, model, formatFloat(scores.R2), formatFloat(scores.MSE), formatFloat(scores.MAE)}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
