package processor

import (
	"errors"
	"testing"
	"time"

	"CarAds/src/config"
	"CarAds/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var header = []string{"price", "model_year", "model", "condition", "cylinders", "fuel",
	"odometer", "transmission", "type", "paint_color", "is_4wd", "date_posted", "days_listed"}

var adTypes = map[string]series.Type{
	"price":       series.Float,
	"model_year":  series.Float,
	"cylinders":   series.Float,
	"odometer":    series.Float,
	"is_4wd":      series.Float,
	"days_listed": series.Int,
}

func loadAds(t *testing.T, rows ...[]string) dataframe.DataFrame {
	t.Helper()
	return loadTyped(t, adTypes, rows...)
}

// loadTyped 按 types 读入, 未列出的列为字符串
func loadTyped(t *testing.T, types map[string]series.Type, rows ...[]string) dataframe.DataFrame {
	t.Helper()
	records := append([][]string{header}, rows...)
	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{"", "NA", "NaN"}),
		dataframe.WithTypes(types),
	)
	require.NoError(t, df.Err)
	return df
}

// textIndicator is_4wd 按原始文本读入
func textIndicator() map[string]series.Type {
	types := make(map[string]series.Type, len(adTypes))
	for k, v := range adTypes {
		if k != "is_4wd" {
			types[k] = v
		}
	}
	return types
}

// ad 按列顺序: price, model, cylinders, odometer, is_4wd, date_posted
func ad(price, model, cylinders, odometer, is4wd, date string) []string {
	return []string{price, "2015", model, "good", cylinders, "gas", odometer, "automatic", "SUV", "", is4wd, date, "10"}
}

func normalize(t *testing.T, df dataframe.DataFrame) *Table {
	t.Helper()
	table, err := NewNormalizer(nil, nil).Normalize(df)
	require.NoError(t, err)
	return table
}

func floats(t *testing.T, table *Table, column string) []interface{} {
	t.Helper()
	col := table.DataFrame().Col(column)
	out := make([]interface{}, col.Len())
	for i := range out {
		if v, ok := floatAt(col, i); ok {
			out[i] = v
		}
	}
	return out
}

func TestNormalize_HondaPilot(t *testing.T) {
	df := loadAds(t,
		ad("9400", "honda pilot", "6", "50000", "1", "2019-04-01"),
		ad("5000", "ford focus", "4", "60001", "0", "2019-04-15"),
		ad("8800", "honda pilot", "", "", "", "2019-05-01"),
	)

	table := normalize(t, df)
	records := table.Records()
	require.Len(t, records, 3)

	r := records[2]
	assert.Equal(t, "honda", r.Make)
	assert.Equal(t, "pilot", r.ModelInd)
	require.NotNil(t, r.Cylinders)
	assert.Equal(t, 6.0, *r.Cylinders)
	assert.True(t, r.Is4WD)
	assert.Equal(t, 55000.5, r.Odometer, "odometer mean is global, not per model")
	assert.Equal(t, time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC), r.DatePosted)

	stats := table.Stats()
	assert.Equal(t, 3, stats.Rows)
	assert.Equal(t, 55000.5, stats.OdometerMean)
	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, 1, stats.Changed["impute_odometer"])
	assert.Equal(t, 1, stats.Changed["fill_forward_cylinders"])
}

func TestNormalize_NoMissingAfterRun(t *testing.T) {
	df := loadAds(t,
		ad("1", "bmw x5", "", "", "", "2018-06-23"),
		ad("2", "bmw x5", "6", "100", "", "2018-06-24"),
		ad("3", "kia soul", "", "200", "1", "2018-06-25"),
		ad("4", "kia soul", "", "", "", "2018-06-26"),
	)

	table := normalize(t, df)
	out := table.DataFrame()
	for _, name := range []string{"odometer", "is_4wd"} {
		col := out.Col(name)
		for i := 0; i < col.Len(); i++ {
			assert.False(t, col.Elem(i).IsNA(), "%s row %d", name, i)
		}
	}

	for _, v := range floats(t, table, "is_4wd") {
		f := v.(float64)
		assert.True(t, f == 0 || f == 1)
	}
	assert.Equal(t, []interface{}{0.0, 0.0, 1.0, 1.0}, floats(t, table, "is_4wd"))
}

func TestNormalize_OdometerMeanRounded(t *testing.T) {
	df := loadAds(t,
		ad("1", "a b", "4", "1", "1", "2019-01-01"),
		ad("1", "a b", "4", "2", "1", "2019-01-01"),
		ad("1", "a b", "4", "2", "1", "2019-01-01"),
		ad("1", "a b", "4", "", "1", "2019-01-01"),
	)

	table := normalize(t, df)
	assert.Equal(t, []interface{}{1.0, 2.0, 2.0, 1.67}, floats(t, table, "odometer"))
}

func TestNormalize_MakeModelSplit(t *testing.T) {
	df := loadAds(t,
		ad("1", "ford f-150 supercrew", "8", "1", "1", "2019-01-01"),
		ad("1", "jeep", "6", "1", "1", "2019-01-01"),
		ad("1", "  toyota   camry ", "4", "1", "0", "2019-01-01"),
	)

	records := normalize(t, df).Records()
	assert.Equal(t, "ford", records[0].Make)
	assert.Equal(t, "f-150", records[0].ModelInd)
	assert.Equal(t, "jeep", records[1].Make)
	assert.Empty(t, records[1].ModelInd)
	assert.Equal(t, "toyota", records[2].Make)
	assert.Equal(t, "camry", records[2].ModelInd)

	out := normalize(t, df).DataFrame()
	assert.True(t, out.Col(ModelIndColumn).Elem(1).IsNA(), "single token model has no model_ind")
}

func TestNormalize_CylindersForwardFill(t *testing.T) {
	df := loadAds(t,
		ad("1", "chevrolet silverado", "", "1", "1", "2019-01-01"),
		ad("1", "chevrolet silverado", "6", "1", "1", "2019-01-01"),
		ad("1", "chevrolet silverado", "", "1", "1", "2019-01-01"),
		ad("1", "chevrolet silverado", "8", "1", "1", "2019-01-01"),
		ad("1", "chevrolet silverado", "", "1", "1", "2019-01-01"),
	)

	table := normalize(t, df)
	assert.Equal(t, []interface{}{nil, 6.0, 6.0, 8.0, 8.0}, floats(t, table, "cylinders"))
}

func TestNormalize_ForwardFillIsModelScoped(t *testing.T) {
	df := loadAds(t,
		ad("1", "ram 1500", "8", "1", "1", "2019-01-01"),
		ad("1", "nissan altima", "", "1", "", "2019-01-01"),
		ad("1", "ram 1500", "", "1", "", "2019-01-01"),
	)

	table := normalize(t, df)
	assert.Equal(t, []interface{}{8.0, nil, 8.0}, floats(t, table, "cylinders"))
	assert.Equal(t, []interface{}{1.0, 0.0, 1.0}, floats(t, table, "is_4wd"))
}

func TestNormalize_MissingModelPassesThrough(t *testing.T) {
	df := loadAds(t,
		ad("1", "subaru outback", "4", "1", "1", "2019-01-01"),
		ad("1", "", "", "1", "", "2019-01-01"),
	)

	table := normalize(t, df)
	records := table.Records()
	assert.Empty(t, records[1].Make)
	assert.Nil(t, records[1].Cylinders)
	assert.False(t, records[1].Is4WD)
}

func TestNormalize_Idempotent(t *testing.T) {
	df := loadAds(t,
		ad("1", "honda pilot", "6", "50000", "1", "2019-04-01"),
		ad("2", "honda pilot", "", "", "", "2019-05-01"),
		ad("3", "gmc sierra", "", "12000", "", "2019-05-02"),
	)

	first := normalize(t, df)
	second := normalize(t, first.DataFrame())
	assert.Equal(t, first.Records(), second.Records())
	assert.Equal(t, first.DataFrame().Names(), second.DataFrame().Names())
	assert.Equal(t, first.DataFrame().Types(), second.DataFrame().Types())
	assert.Equal(t, first.DataFrame().Records(), second.DataFrame().Records())
	assert.Zero(t, second.Stats().Changed["impute_odometer"])
	assert.Zero(t, second.Stats().Changed["fill_constant_is_4wd"])
}

func TestNormalize_DoesNotModifyInput(t *testing.T) {
	df := loadAds(t, ad("1", "honda pilot", "", "", "", "2019-05-01"), ad("1", "honda pilot", "6", "10", "1", "2019-05-01"))
	normalize(t, df)
	assert.True(t, df.Col("odometer").Elem(0).IsNA())
	assert.False(t, utils.HasColumn(df, MakeColumn))
}

func TestNormalize_MalformedDate(t *testing.T) {
	df := loadAds(t,
		ad("1", "honda pilot", "6", "1", "1", "2019-04-01"),
		ad("1", "honda pilot", "6", "1", "1", "05/01/2019"),
	)

	_, err := NewNormalizer(nil, nil).Normalize(df)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedDate))

	var dateErr *MalformedDateError
	require.True(t, errors.As(err, &dateErr))
	assert.Equal(t, 1, dateErr.Row)
	assert.Equal(t, "05/01/2019", dateErr.Value)

	df = loadAds(t, ad("1", "honda pilot", "6", "1", "1", ""))
	_, err = NewNormalizer(nil, nil).Normalize(df)
	assert.ErrorIs(t, err, ErrMalformedDate)
}

func TestNormalize_EmptyOdometerColumn(t *testing.T) {
	df := loadAds(t,
		ad("1", "honda pilot", "6", "", "1", "2019-04-01"),
		ad("1", "honda pilot", "6", "", "1", "2019-04-02"),
	)

	_, err := NewNormalizer(nil, nil).Normalize(df)
	assert.ErrorIs(t, err, ErrEmptyOdometerColumn)

	var odoErr *EmptyOdometerColumnError
	require.ErrorAs(t, err, &odoErr)
	assert.Equal(t, 2, odoErr.Rows)
}

func TestNormalize_MissingRequiredColumn(t *testing.T) {
	df := loadAds(t, ad("1", "honda pilot", "6", "1", "1", "2019-04-01"))
	df = df.Drop("days_listed")

	_, err := NewNormalizer(nil, nil).Normalize(df)
	assert.ErrorIs(t, err, ErrMissingRequiredColumn)

	var colErr *MissingRequiredColumnError
	require.ErrorAs(t, err, &colErr)
	assert.Equal(t, "days_listed", colErr.Column)
}

func TestNormalize_RenamedColumns(t *testing.T) {
	df := loadAds(t,
		ad("1", "honda pilot", "6", "100", "1", "2019-04-01"),
		ad("1", "honda pilot", "", "", "", "2019-04-02"),
	)
	df = df.Rename("mileage", "odometer")

	dcfg := config.NewDataConfig()
	dcfg.SetColumn("odometer", "mileage")

	table, err := NewNormalizer(dcfg, nil).Normalize(df)
	require.NoError(t, err)
	assert.Equal(t, "mileage", table.Column("odometer"))
	assert.Equal(t, 100.0, table.Records()[1].Odometer)
}

func TestTable_Records(t *testing.T) {
	row := []string{"25500", "", "ford f-150", "excellent", "6", "gas", "88705", "automatic", "pickup", "white", "1", "2018-10-19", "50"}
	table := normalize(t, loadAds(t, row))

	r := table.Records()[0]
	assert.Equal(t, 25500.0, r.Price)
	assert.Nil(t, r.ModelYear)
	assert.Equal(t, "excellent", r.Condition)
	assert.Equal(t, "pickup", r.Type)
	require.NotNil(t, r.PaintColor)
	assert.Equal(t, "white", *r.PaintColor)
	assert.Equal(t, 50, r.DaysListed)
	assert.Equal(t, []time.Time{time.Date(2018, 10, 19, 0, 0, 0, 0, time.UTC)}, table.DatePosted())
}

func TestNormalize_LoadError(t *testing.T) {
	_, err := NewNormalizer(nil, nil).Normalize(dataframe.DataFrame{Err: errors.New("load records: empty DataFrame")})
	assert.ErrorContains(t, err, "empty DataFrame")
}

func TestNormalize_IndicatorText(t *testing.T) {
	df := loadTyped(t, textIndicator(),
		ad("1", "honda pilot", "6", "100", "True", "2019-04-01"),
		ad("1", "honda pilot", "6", "200", "", "2019-04-02"),
		ad("1", "kia soul", "4", "300", "no", "2019-04-03"),
		ad("1", "jeep wrangler", "6", "400", "YES", "2019-04-04"),
		ad("1", "ford focus", "4", "500", "0", "2019-04-05"),
		ad("1", "ram 1500", "8", "600", "1.0", "2019-04-06"),
		ad("1", "gmc sierra", "8", "700", "", "2019-04-07"),
	)

	table := normalize(t, df)
	assert.Equal(t, []interface{}{1.0, 1.0, 0.0, 1.0, 0.0, 1.0, 0.0}, floats(t, table, "is_4wd"))
	assert.Equal(t, 5, table.Stats().Changed["parse_indicator_is_4wd"])
	assert.Equal(t, 1, table.Stats().Changed["fill_forward_is_4wd"])
	assert.Equal(t, 1, table.Stats().Changed["fill_constant_is_4wd"])
	assert.True(t, table.Records()[0].Is4WD)
}

func TestNormalize_InvalidIndicator(t *testing.T) {
	df := loadTyped(t, textIndicator(),
		ad("1", "honda pilot", "6", "100", "true", "2019-04-01"),
		ad("1", "honda pilot", "6", "100", "maybe", "2019-04-02"),
	)

	_, err := NewNormalizer(nil, nil).Normalize(df)
	require.ErrorIs(t, err, ErrInvalidIndicator)
	var indErr *InvalidIndicatorError
	require.ErrorAs(t, err, &indErr)
	assert.Equal(t, 1, indErr.Row)
	assert.Equal(t, "maybe", indErr.Value)

	// 数值列中只接受0和1
	df = loadAds(t, ad("1", "honda pilot", "6", "100", "2", "2019-04-01"))
	_, err = NewNormalizer(nil, nil).Normalize(df)
	assert.ErrorIs(t, err, ErrInvalidIndicator)
}

func TestNormalize_WhitespaceModelIsOwnGroup(t *testing.T) {
	df := loadAds(t,
		ad("1", "  ", "6", "1", "1", "2019-01-01"),
		ad("1", "  ", "", "1", "", "2019-01-02"),
		ad("1", " ", "", "1", "", "2019-01-03"),
	)

	table := normalize(t, df)
	assert.Equal(t, []interface{}{6.0, 6.0, nil}, floats(t, table, "cylinders"))
	assert.Equal(t, []interface{}{1.0, 1.0, 0.0}, floats(t, table, "is_4wd"))

	records := table.Records()
	assert.Empty(t, records[1].Make, "no token to derive make from")
	assert.True(t, table.DataFrame().Col(MakeColumn).Elem(1).IsNA())
}
