package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"
)

// CountColumn 每组广告数所在列
const CountColumn = "count"

// groupSpec 一个分组聚合: 按 keys 分组, 统计行数和 means 各列的均值.
// countOf 不为空时 count 只计该列非缺失的行
type groupSpec struct {
	name    string
	keys    []string
	countOf string
	means   []string
}

type groupRow struct {
	keys  []interface{}
	count int
	means []interface{}
}

// aggregate 丢弃分组键缺失的行, 按键升序输出 keys..., count, mean_<col>...
func aggregate(df dataframe.DataFrame, spec groupSpec) (dataframe.DataFrame, error) {
	keyed := dropMissingKeys(df, spec.keys)
	if keyed.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%s: 过滤分组键失败: %w", spec.name, keyed.Err)
	}

	var rows []groupRow
	if keyed.Nrow() > 0 {
		groups := keyed.GroupBy(spec.keys...)
		if groups.Err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("%s: 分组失败: %w", spec.name, groups.Err)
		}
		for _, g := range groups.GetGroups() {
			if g.Err != nil {
				return dataframe.DataFrame{}, fmt.Errorf("%s: 分组失败: %w", spec.name, g.Err)
			}
			rows = append(rows, summarize(g, spec))
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		return lessKeys(rows[i].keys, rows[j].keys)
	})
	return buildFrame(df, spec, rows)
}

// dropMissingKeys 去掉任一分组键缺失的行, 空白文本照常分组
func dropMissingKeys(df dataframe.DataFrame, keys []string) dataframe.DataFrame {
	present := func(e series.Element) bool {
		return !e.IsNA()
	}
	for _, key := range keys {
		df = df.Filter(dataframe.F{Colname: key, Comparator: series.CompFunc, Comparando: present})
	}
	return df
}

func summarize(g dataframe.DataFrame, spec groupSpec) groupRow {
	row := groupRow{
		keys:  make([]interface{}, len(spec.keys)),
		count: g.Nrow(),
		means: make([]interface{}, len(spec.means)),
	}
	for i, key := range spec.keys {
		row.keys[i] = g.Col(key).Elem(0).Val()
	}
	if spec.countOf != "" {
		row.count = countOf(g.Col(spec.countOf))
	}
	for i, name := range spec.means {
		if mean, ok := meanOf(g.Col(name)); ok {
			row.means[i] = mean
		}
	}
	return row
}

func countOf(s series.Series) int {
	n := 0
	for i := 0; i < s.Len(); i++ {
		if !s.Elem(i).IsNA() {
			n++
		}
	}
	return n
}

// meanOf 非缺失值的均值, 保留两位小数
func meanOf(s series.Series) (float64, bool) {
	values := make([]float64, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		e := s.Elem(i)
		if e.IsNA() {
			continue
		}
		values = append(values, e.Float())
	}
	if len(values) == 0 {
		return 0, false
	}
	return round2(stat.Mean(values, nil)), true
}

func buildFrame(src dataframe.DataFrame, spec groupSpec, rows []groupRow) (dataframe.DataFrame, error) {
	columns := make([]series.Series, 0, len(spec.keys)+1+len(spec.means))

	for i, key := range spec.keys {
		vals := make([]interface{}, len(rows))
		for r, row := range rows {
			vals[r] = row.keys[i]
		}
		columns = append(columns, series.New(vals, src.Col(key).Type(), key))
	}

	counts := make([]int, len(rows))
	for r, row := range rows {
		counts[r] = row.count
	}
	columns = append(columns, series.New(counts, series.Int, CountColumn))

	for i, name := range spec.means {
		vals := make([]interface{}, len(rows))
		for r, row := range rows {
			vals[r] = row.means[i]
		}
		columns = append(columns, series.New(vals, series.Float, "mean_"+name))
	}

	out := dataframe.New(columns...)
	if out.Err != nil {
		return out, fmt.Errorf("%s: 生成结果表失败: %w", spec.name, out.Err)
	}
	return out, nil
}

// lessKeys 逐个比较分组键, 数值按大小, 其余按文本
func lessKeys(a, b []interface{}) bool {
	for i := range a {
		if c := compareValue(a[i], b[i]); c != 0 {
			return c < 0
		}
	}
	return false
}

func compareValue(a, b interface{}) int {
	fa, okA := number(a)
	fb, okB := number(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
