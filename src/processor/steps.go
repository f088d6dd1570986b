package processor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"
)

// DateLayout date_posted 唯一接受的格式
const DateLayout = "2006-01-02"

// CleaningStep 原地改写表中的一列或多列, changed 为产生或替换的值个数
type CleaningStep interface {
	Name() string
	Apply(df *dataframe.DataFrame) (changed int, err error)
}

// parseDates 校验 date_posted 并保留解析结果
type parseDates struct {
	column string
	posted []time.Time
}

func (s *parseDates) Name() string { return "parse_dates" }

func (s *parseDates) Apply(df *dataframe.DataFrame) (int, error) {
	col := df.Col(s.column)
	n := col.Len()

	s.posted = make([]time.Time, n)
	text := make([]interface{}, n)
	for i := 0; i < n; i++ {
		raw, ok := stringAt(col, i)
		if !ok {
			return 0, &MalformedDateError{Column: s.column, Row: i, Value: ""}
		}
		t, err := time.Parse(DateLayout, raw)
		if err != nil {
			return 0, &MalformedDateError{Column: s.column, Row: i, Value: raw}
		}
		s.posted[i] = t
		text[i] = t.Format(DateLayout)
	}

	return n, mutate(df, stringSeries(text, s.column))
}

// imputeOdometer 用已知值的均值(保留两位小数)替换缺失值, 均值在替换前计算
type imputeOdometer struct {
	column string
	mean   float64
}

func (s *imputeOdometer) Name() string { return "impute_odometer" }

func (s *imputeOdometer) Apply(df *dataframe.DataFrame) (int, error) {
	col := df.Col(s.column)
	n := col.Len()

	values := make([]float64, n)
	known := make([]bool, n)
	present := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if v, ok := floatAt(col, i); ok {
			values[i], known[i] = v, true
			present = append(present, v)
		}
	}

	missing := n - len(present)
	if missing == 0 {
		return 0, nil
	}
	if len(present) == 0 {
		return 0, &EmptyOdometerColumnError{Column: s.column, Rows: n}
	}

	s.mean = roundTo(stat.Mean(present, nil), 2)
	for i := range values {
		if !known[i] {
			values[i], known[i] = s.mean, true
		}
	}

	return missing, mutate(df, floatSeries(values, known, s.column))
}

// parseIndicator 把指示列统一成 Float 0/1, 缺失值保持缺失.
// 文本 true/yes 等按指示值解析, 无法识别的值中止清洗
type parseIndicator struct {
	column string
}

func (s *parseIndicator) Name() string { return "parse_indicator_" + s.column }

func (s *parseIndicator) Apply(df *dataframe.DataFrame) (int, error) {
	col := df.Col(s.column)
	n := col.Len()
	numeric := col.Type() == series.Float || col.Type() == series.Int

	values := make([]float64, n)
	known := make([]bool, n)
	rewrite := col.Type() != series.Float
	parsed := 0
	for i := 0; i < n; i++ {
		e := col.Elem(i)
		if e.IsNA() {
			continue
		}
		raw := e.String()
		if numeric {
			raw = strconv.FormatFloat(e.Float(), 'f', -1, 64)
		}
		v, present, ok := indicatorValue(raw)
		if !ok {
			return 0, &InvalidIndicatorError{Column: s.column, Row: i, Value: e.String()}
		}
		if !present {
			rewrite = true
			continue
		}
		values[i], known[i] = v, true
		parsed++
	}

	if !rewrite {
		return 0, nil
	}
	return parsed, mutate(df, floatSeries(values, known, s.column))
}

// deriveIdentity 把 model 拆成 make 和 model_ind
type deriveIdentity struct {
	model    string
	make     string
	modelInd string
}

func (s *deriveIdentity) Name() string { return "derive_make_model" }

func (s *deriveIdentity) Apply(df *dataframe.DataFrame) (int, error) {
	col := df.Col(s.model)
	n := col.Len()

	makes := make([]interface{}, n)
	inds := make([]interface{}, n)
	derived := 0
	for i := 0; i < n; i++ {
		model, ok := stringAt(col, i)
		if !ok {
			continue
		}
		tokens := strings.Fields(model)
		if len(tokens) > 0 {
			makes[i] = tokens[0]
			derived++
		}
		if len(tokens) > 1 {
			inds[i] = tokens[1]
		}
	}

	if err := mutate(df, stringSeries(makes, s.make)); err != nil {
		return 0, err
	}
	return derived, mutate(df, stringSeries(inds, s.modelInd))
}

// fillForward 按行序把同一分组键的上一个已知值填到后面的缺失行; 没有分组键的行保持不变
type fillForward struct {
	key    string
	column string
}

func (s *fillForward) Name() string { return "fill_forward_" + s.column }

func (s *fillForward) Apply(df *dataframe.DataFrame) (int, error) {
	keys := df.Col(s.key)
	col := df.Col(s.column)
	n := col.Len()

	values := make([]float64, n)
	known := make([]bool, n)
	last := make(map[string]float64)
	filled := 0
	for i := 0; i < n; i++ {
		key, grouped := groupKey(keys, i)
		if v, ok := floatAt(col, i); ok {
			values[i], known[i] = v, true
			if grouped {
				last[key] = v
			}
			continue
		}
		if !grouped {
			continue
		}
		if prev, seen := last[key]; seen {
			values[i], known[i] = prev, true
			filled++
		}
	}

	if filled == 0 {
		return 0, nil
	}
	return filled, mutate(df, floatSeries(values, known, s.column))
}

// fillConstant 把剩余缺失值全部替换为 value
type fillConstant struct {
	column string
	value  float64
}

func (s *fillConstant) Name() string { return "fill_constant_" + s.column }

func (s *fillConstant) Apply(df *dataframe.DataFrame) (int, error) {
	col := df.Col(s.column)
	n := col.Len()

	values := make([]float64, n)
	known := make([]bool, n)
	filled := 0
	for i := 0; i < n; i++ {
		if v, ok := floatAt(col, i); ok {
			values[i] = v
		} else {
			values[i] = s.value
			filled++
		}
		known[i] = true
	}

	if filled == 0 {
		return 0, nil
	}
	return filled, mutate(df, floatSeries(values, known, s.column))
}

func mutate(df *dataframe.DataFrame, s series.Series) error {
	if s.Err != nil {
		return fmt.Errorf("build column %q: %w", s.Name, s.Err)
	}
	out := df.Mutate(s)
	if out.Err != nil {
		return fmt.Errorf("mutate column %q: %w", s.Name, out.Err)
	}
	*df = out
	return nil
}
