package report

import (
	"strings"

	"github.com/go-gota/gota/dataframe"
)

// Diagnostics 数据集概况: 行数, 重复行数, 每列缺失数
type Diagnostics struct {
	Rows       int
	Duplicates int
	Columns    []string
	Missing    map[string]int
}

// Diagnose 统计 df 的行数, 完全重复的行数和每列缺失值个数
func Diagnose(df dataframe.DataFrame) Diagnostics {
	d := Diagnostics{
		Rows:    df.Nrow(),
		Columns: df.Names(),
		Missing: make(map[string]int, df.Ncol()),
	}
	if df.Err != nil {
		return d
	}

	for _, name := range d.Columns {
		col := df.Col(name)
		for i := 0; i < col.Len(); i++ {
			if col.Elem(i).IsNA() {
				d.Missing[name]++
			}
		}
	}

	// Records 第一行是表头
	records := df.Records()
	seen := make(map[string]struct{}, len(records))
	for _, row := range records[1:] {
		key := strings.Join(row, "\x1f")
		if _, ok := seen[key]; ok {
			d.Duplicates++
			continue
		}
		seen[key] = struct{}{}
	}
	return d
}

// MissingTotal 所有列缺失值之和
func (d Diagnostics) MissingTotal() int {
	total := 0
	for _, n := range d.Missing {
		total += n
	}
	return total
}
