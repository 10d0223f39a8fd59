package ml

// Column names of the training CSV.
const (
	ColumnTemperature   = "Temperature"
	ColumnRainfall      = "Rainfall"
	ColumnDayOfWeek     = "DayOfWeek"
	ColumnMonth         = "Month"
	ColumnIceCreamsSold = "IceCreamsSold"
)

// RequiredColumns lists every column the loader expects, in file order.
func RequiredColumns() []string {
	return []string{
		ColumnTemperature,
		ColumnRainfall,
		ColumnDayOfWeek,
		ColumnMonth,
		ColumnIceCreamsSold,
	}
}

// Row is one observation of the historical dataset.
type Row struct {
	Temperature   float64
	Rainfall      float64
	DayOfWeek     string
	Month         string
	IceCreamsSold float64
}

// Features is a row with its categorical columns already encoded.
type Features struct {
	Temperature   float64
	Rainfall      float64
	DayOfWeekCode int
	MonthCode     int
}

// FeatureVector lays out features in the column order the models are fit on.
func FeatureVector(feature Features) []float64 {
	return []float64{
		feature.Temperature,
		feature.Rainfall,
		float64(feature.DayOfWeekCode),
		float64(feature.MonthCode),
	}
}

func FeatureNames() []string {
	return []string{
		ColumnTemperature,
		ColumnRainfall,
		ColumnDayOfWeek + "_encoded",
		ColumnMonth + "_encoded",
	}
}

// NumFeatures is the width of every feature vector.
const NumFeatures = 4
