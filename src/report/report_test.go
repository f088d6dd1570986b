package report

import (
	"path/filepath"
	"testing"

	"CarAds/src/processor"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var adsRecords = [][]string{
	{"price", "model_year", "model", "condition", "cylinders", "fuel", "odometer", "transmission", "type", "paint_color", "is_4wd", "date_posted", "days_listed"},
	{"9400", "2011", "bmw x5", "good", "6", "gas", "145000", "automatic", "SUV", "", "1", "2018-06-23", "19"},
	{"25500", "", "ford f-150", "good", "6", "gas", "88705", "automatic", "pickup", "white", "1", "2018-10-19", "50"},
	{"5500", "2013", "hyundai sonata", "like new", "4", "gas", "110000", "automatic", "sedan", "red", "", "2019-02-07", "79"},
	{"1500", "2003", "ford f-150", "fair", "8", "gas", "", "automatic", "pickup", "", "", "2019-03-22", "9"},
	{"14900", "2017", "chrysler 200", "excellent", "4", "gas", "80903", "automatic", "sedan", "black", "", "2019-04-02", "28"},
	{"14900", "2017", "chrysler 200", "excellent", "4", "gas", "80903", "automatic", "sedan", "black", "", "2019-04-02", "28"},
	{"9000", "2011", "", "good", "", "gas", "1000", "manual", "", "", "", "2019-01-01", "40"},
}

func loadAds(t *testing.T) dataframe.DataFrame {
	t.Helper()
	return loadRecords(t, adsRecords)
}

func loadRecords(t *testing.T, records [][]string) dataframe.DataFrame {
	t.Helper()
	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{"", "NA", "NaN"}),
		dataframe.WithTypes(map[string]series.Type{
			"price":       series.Float,
			"model_year":  series.Float,
			"cylinders":   series.Float,
			"odometer":    series.Float,
			"is_4wd":      series.Float,
			"days_listed": series.Int,
		}),
	)
	require.NoError(t, df.Err)
	return df
}

func buildReport(t *testing.T) *Report {
	t.Helper()
	return buildFrom(t, loadAds(t))
}

func buildFrom(t *testing.T, df dataframe.DataFrame) *Report {
	t.Helper()
	before := Diagnose(df)
	table, err := processor.NewNormalizer(nil, nil).Normalize(df)
	require.NoError(t, err)
	r, err := Build(table, before)
	require.NoError(t, err)
	return r
}

func column(t *testing.T, df dataframe.DataFrame, name string) []string {
	t.Helper()
	require.NoError(t, df.Err)
	return df.Col(name).Records()
}

func TestDiagnose(t *testing.T) {
	d := Diagnose(loadAds(t))

	assert.Equal(t, 7, d.Rows)
	assert.Equal(t, 1, d.Duplicates)
	assert.Equal(t, 1, d.Missing["model_year"])
	assert.Equal(t, 1, d.Missing["odometer"])
	assert.Equal(t, 5, d.Missing["is_4wd"])
	assert.Equal(t, 3, d.Missing["paint_color"])
	assert.Equal(t, 0, d.Missing["price"])
	assert.Equal(t, 1+1+1+5+3+1+1, d.MissingTotal()) // model_year odometer model is_4wd paint_color cylinders type
}

func TestBuild_AdsByMake(t *testing.T) {
	r := buildReport(t)

	agg, ok := r.Aggregation("ads_by_make")
	require.True(t, ok)
	assert.Equal(t, []string{"bmw", "chrysler", "ford", "hyundai"}, column(t, agg.Frame, "make"), "missing make dropped, sorted")
	assert.Equal(t, []string{"1", "2", "2", "1"}, column(t, agg.Frame, CountColumn))

	agg, ok = r.Aggregation("ads_by_make_model")
	require.True(t, ok)
	assert.Equal(t, []string{"bmw", "chrysler", "ford", "hyundai"}, column(t, agg.Frame, "make"))
	assert.Equal(t, []string{"x5", "200", "f-150", "sonata"}, column(t, agg.Frame, "model_ind"))
}

// withLastRow 复制样本并改写最后一行的 type 列
func withLastRow(bodyType string) [][]string {
	records := make([][]string, len(adsRecords))
	for i, row := range adsRecords {
		records[i] = append([]string(nil), row...)
	}
	records[len(records)-1][8] = bodyType
	return records
}

func TestBuild_AdsByTypeCountsMake(t *testing.T) {
	r := buildFrom(t, loadRecords(t, withLastRow("sedan")))

	agg, ok := r.Aggregation("ads_by_type")
	require.True(t, ok)
	assert.Equal(t, []string{"SUV", "pickup", "sedan"}, column(t, agg.Frame, "type"))
	assert.Equal(t, []string{"1", "2", "3"}, column(t, agg.Frame, CountColumn), "row without make not counted")

	agg, ok = r.Aggregation("price_by_type")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "2", "4"}, column(t, agg.Frame, CountColumn))
}

func TestBuild_BlankKeyIsGroup(t *testing.T) {
	r := buildFrom(t, loadRecords(t, withLastRow(" ")))

	agg, ok := r.Aggregation("price_by_type")
	require.True(t, ok)
	assert.Equal(t, []string{" ", "SUV", "pickup", "sedan"}, column(t, agg.Frame, "type"))
	assert.Equal(t, []string{"1", "1", "2", "3"}, column(t, agg.Frame, CountColumn))
	assert.Equal(t, 9000.0, agg.Frame.Col("mean_price").Elem(0).Float())
}

func TestBuild_PriceByMake(t *testing.T) {
	r := buildReport(t)

	agg, ok := r.Aggregation("price_by_make")
	require.True(t, ok)
	assert.Equal(t, []string{"make", CountColumn, "mean_price"}, agg.Frame.Names())

	means := agg.Frame.Col("mean_price")
	assert.Equal(t, 9400.0, means.Elem(0).Float())
	assert.Equal(t, 14900.0, means.Elem(1).Float())
	assert.Equal(t, 13500.0, means.Elem(2).Float())
	assert.Equal(t, 5500.0, means.Elem(3).Float())
}

func TestBuild_NumericKeysSorted(t *testing.T) {
	r := buildReport(t)

	agg, ok := r.Aggregation("days_by_model_year")
	require.True(t, ok)
	years := agg.Frame.Col("model_year")
	require.Equal(t, 4, years.Len(), "missing model_year dropped")
	assert.Equal(t, []float64{2003, 2011, 2013, 2017}, years.Float())
	assert.Equal(t, []string{"1", "2", "1", "2"}, column(t, agg.Frame, CountColumn))
	assert.Equal(t, 29.5, agg.Frame.Col("mean_days_listed").Elem(1).Float())

	agg, ok = r.Aggregation("price_days_by_is_4wd")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1}, agg.Frame.Col("is_4wd").Float())
	assert.Equal(t, []string{"4", "3"}, column(t, agg.Frame, CountColumn))
}

func TestBuild_SkipsAbsentColumns(t *testing.T) {
	df := loadAds(t).Drop([]string{"condition", "paint_color"})
	table, err := processor.NewNormalizer(nil, nil).Normalize(df)
	require.NoError(t, err)

	r, err := Build(table, Diagnose(df))
	require.NoError(t, err)
	_, ok := r.Aggregation("price_by_condition")
	assert.False(t, ok)
	_, ok = r.Aggregation("price_days_by_paint_color")
	assert.False(t, ok)
	_, ok = r.Aggregation("days_by_price")
	assert.True(t, ok)
}

func TestBuild_NilTable(t *testing.T) {
	_, err := Build(nil, Diagnostics{})
	assert.Error(t, err)
}

func TestReport_Summary(t *testing.T) {
	r := buildReport(t)
	summary := r.Summary()
	require.NoError(t, summary.Err)

	metrics := column(t, summary, "metric")
	assert.Equal(t, []string{"rows", "duplicates", "missing_total"}, metrics[:3])
	assert.Contains(t, metrics, "missing_make")
	assert.Equal(t, "odometer_mean", metrics[len(metrics)-1])

	idx := indexOf(metrics, "missing_odometer")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, 1.0, summary.Col("before").Elem(idx).Float())
	assert.Equal(t, 0.0, summary.Col("after").Elem(idx).Float())

	idx = indexOf(metrics, "missing_make")
	assert.True(t, summary.Col("before").Elem(idx).IsNA(), "make did not exist before cleaning")
	assert.Equal(t, 1.0, summary.Col("after").Elem(idx).Float())
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func TestReport_Save(t *testing.T) {
	r := buildReport(t)
	path := filepath.Join(t.TempDir(), "out", "report.xlsx")
	require.NoError(t, r.Save(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	require.Len(t, sheets, len(r.Aggregations)+1)
	assert.Equal(t, SummarySheet, sheets[0])
	assert.Contains(t, sheets, "ads_by_make")

	rows, err := f.GetRows("ads_by_make")
	require.NoError(t, err)
	assert.Equal(t, []string{"make", "count"}, rows[0])
	assert.Equal(t, []string{"bmw", "1"}, rows[1])

	assert.Contains(t, r.Text(), r.RunID)
}
