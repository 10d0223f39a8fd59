package ml

import (
	"io"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Dataset is the in-memory training table together with the encoders fit on
// its categorical columns. It is read-only after construction.
type Dataset struct {
	rows      []Row
	dayOfWeek *LabelEncoder
	month     *LabelEncoder
	features  [][]float64
	targets   []float64
}

// LoadDataset reads the CSV file at path.
func LoadDataset(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()

	dataset, err := ReadDataset(file)
	if err != nil {
		return nil, errors.Annotatef(err, "load dataset %s", path)
	}
	return dataset, nil
}

// ReadDataset parses CSV with the columns listed by RequiredColumns. A leading
// byte-order mark is ignored.
func ReadDataset(r io.Reader) (*Dataset, error) {
	reader := transform.NewReader(r, unicode.BOMOverride(transform.Nop))
	df := dataframe.ReadCSV(reader,
		dataframe.DetectTypes(false),
		dataframe.WithTypes(map[string]series.Type{
			ColumnTemperature:   series.Float,
			ColumnRainfall:      series.Float,
			ColumnDayOfWeek:     series.String,
			ColumnMonth:         series.String,
			ColumnIceCreamsSold: series.Float,
		}))
	if df.Err != nil {
		return nil, errors.Annotate(df.Err, "parse csv")
	}

	names := df.Names()
	for _, column := range RequiredColumns() {
		if !lo.Contains(names, column) {
			return nil, errors.NotValidf("dataset without column %q", column)
		}
	}
	if df.Nrow() == 0 {
		return nil, errors.NotValidf("empty dataset")
	}

	for _, column := range RequiredColumns() {
		if _, i, found := lo.FindIndexOf(df.Col(column).IsNaN(), func(nan bool) bool { return nan }); found {
			return nil, errors.NotValidf("value of %s at row %d", column, i+1)
		}
	}

	temperature := df.Col(ColumnTemperature).Float()
	rainfall := df.Col(ColumnRainfall).Float()
	dayOfWeek := df.Col(ColumnDayOfWeek).Records()
	month := df.Col(ColumnMonth).Records()
	sold := df.Col(ColumnIceCreamsSold).Float()

	rows := make([]Row, df.Nrow())
	for i := range rows {
		rows[i] = Row{
			Temperature:   temperature[i],
			Rainfall:      rainfall[i],
			DayOfWeek:     dayOfWeek[i],
			Month:         month[i],
			IceCreamsSold: sold[i],
		}
	}
	return NewDataset(rows)
}

// NewDataset fits the category encoders on rows and prepares the feature
// matrix and target vector.
func NewDataset(rows []Row) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, errors.NotValidf("empty dataset")
	}
	for i, row := range rows {
		if row.DayOfWeek == "" {
			return nil, errors.NotValidf("empty %s at row %d", ColumnDayOfWeek, i+1)
		}
		if row.Month == "" {
			return nil, errors.NotValidf("empty %s at row %d", ColumnMonth, i+1)
		}
	}

	dataset := &Dataset{
		rows:      append([]Row(nil), rows...),
		dayOfWeek: FitLabelEncoder(lo.Map(rows, func(row Row, _ int) string { return row.DayOfWeek })),
		month:     FitLabelEncoder(lo.Map(rows, func(row Row, _ int) string { return row.Month })),
		features:  make([][]float64, len(rows)),
		targets:   make([]float64, len(rows)),
	}
	for i, row := range dataset.rows {
		features, err := dataset.Encode(row.Temperature, row.Rainfall, row.DayOfWeek, row.Month)
		if err != nil {
			return nil, errors.Trace(err)
		}
		dataset.features[i] = FeatureVector(features)
		dataset.targets[i] = row.IceCreamsSold
	}
	return dataset, nil
}

// Encode turns raw inputs into model features using the encoders fit on this
// dataset. Unseen categorical values yield NotFound errors.
func (d *Dataset) Encode(temperature, rainfall float64, dayOfWeek, month string) (Features, error) {
	dayCode, err := d.dayOfWeek.Encode(dayOfWeek)
	if err != nil {
		return Features{}, errors.Annotate(err, ColumnDayOfWeek)
	}
	monthCode, err := d.month.Encode(month)
	if err != nil {
		return Features{}, errors.Annotate(err, ColumnMonth)
	}
	return Features{
		Temperature:   temperature,
		Rainfall:      rainfall,
		DayOfWeekCode: dayCode,
		MonthCode:     monthCode,
	}, nil
}

func (d *Dataset) Len() int {
	return len(d.rows)
}

func (d *Dataset) Rows() []Row {
	return append([]Row(nil), d.rows...)
}

// Features returns the encoded feature matrix. Callers must not modify it.
func (d *Dataset) Features() [][]float64 {
	return d.features
}

// Targets returns the IceCreamsSold column. Callers must not modify it.
func (d *Dataset) Targets() []float64 {
	return d.targets
}

func (d *Dataset) DayOfWeekEncoder() *LabelEncoder {
	return d.dayOfWeek
}

func (d *Dataset) MonthEncoder() *LabelEncoder {
	return d.month
}
