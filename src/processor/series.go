package processor

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/series"
)

// floatAt 返回第 i 行的数值以及是否存在
func floatAt(s series.Series, i int) (float64, bool) {
	e := s.Elem(i)
	if e.IsNA() {
		return 0, false
	}
	f := e.Float()
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// stringAt 返回第 i 行的文本以及是否存在
func stringAt(s series.Series, i int) (string, bool) {
	e := s.Elem(i)
	if e.IsNA() {
		return "", false
	}
	return e.String(), true
}

// groupKey 第 i 行的前向填充分组键. 只有缺失值不属于任何分组,
// 空白文本按原样作为一个分组
func groupKey(s series.Series, i int) (string, bool) {
	return stringAt(s, i)
}

// indicatorValue 把 1/0/true/false/yes/no(不区分大小写)解析为 1 或 0.
// 空白视为缺失
func indicatorValue(raw string) (value float64, present, ok bool) {
	token := strings.ToLower(strings.TrimSpace(raw))
	switch token {
	case "":
		return 0, false, true
	case "1", "true", "t", "yes", "y":
		return 1, true, true
	case "0", "false", "f", "no", "n":
		return 0, true, true
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil && (f == 0 || f == 1) {
		return f, true, true
	}
	return 0, false, false
}

// floatSeries 生成 Float 列, known[i] 为 false 的行是 NA.
// gota 不把 []float64 中的 NaN 视为 NA, 所以缺失行用 nil 传入
func floatSeries(values []float64, known []bool, name string) series.Series {
	vals := make([]interface{}, len(values))
	for i, v := range values {
		if known[i] {
			vals[i] = v
		}
	}
	return series.New(vals, series.Float, name)
}

// stringSeries 生成 String 列, nil 为 NA
func stringSeries(values []interface{}, name string) series.Series {
	return series.New(values, series.String, name)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
