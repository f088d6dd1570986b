// Package report 生成清洗前后的概况和各分组汇总表, 并按工作表输出
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"CarAds/src/processor"
	"CarAds/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"golang.org/x/sync/errgroup"
)

// SummarySheet 概况页的工作表名
const SummarySheet = "summary"

// Aggregation 一张分组汇总表
type Aggregation struct {
	Name  string
	Keys  []string
	Frame dataframe.DataFrame
}

// Report 一次清洗的全部汇总结果
type Report struct {
	RunID        string
	GeneratedAt  time.Time
	OdometerMean float64
	Before       Diagnostics
	After        Diagnostics
	Aggregations []Aggregation
}

// specs 按逻辑列名描述全部汇总表, 键列不存在时跳过
func specs(col func(string) string) []groupSpec {
	var (
		brand    = col(processor.MakeColumn)
		modelInd = col(processor.ModelIndColumn)
		price    = col("price")
		days     = col("days_listed")
	)
	out := []groupSpec{
		{name: "ads_by_make", keys: []string{brand}},
		{name: "ads_by_make_model", keys: []string{brand, modelInd}},
		{name: "ads_by_type", keys: []string{col("type")}, countOf: brand},
	}
	for _, key := range []string{processor.MakeColumn, "model_year", "type", "condition"} {
		out = append(out, groupSpec{name: "price_by_" + key, keys: []string{col(key)}, means: []string{price}})
	}
	for _, key := range []string{processor.MakeColumn, "model_year", "type", "condition"} {
		out = append(out, groupSpec{name: "days_by_" + key, keys: []string{col(key)}, means: []string{days}})
	}
	for _, key := range []string{"transmission", "is_4wd", "paint_color"} {
		out = append(out, groupSpec{name: "price_days_by_" + key, keys: []string{col(key)}, means: []string{price, days}})
	}
	out = append(out, groupSpec{name: "days_by_price", keys: []string{price}, means: []string{days}})
	return out
}

// Build 对清洗后的表做全部分组汇总; before 是清洗前的概况
func Build(table *processor.Table, before Diagnostics) (*Report, error) {
	if table == nil {
		return nil, fmt.Errorf("没有可汇总的数据表")
	}
	df := table.DataFrame()
	stats := table.Stats()

	var wanted []groupSpec
	for _, spec := range specs(table.Column) {
		if spec.countOf != "" && !hasColumns(df, []string{spec.countOf}) {
			spec.countOf = ""
		}
		if hasColumns(df, spec.keys) && hasColumns(df, spec.means) {
			wanted = append(wanted, spec)
		}
	}

	results := make([]Aggregation, len(wanted))
	var g errgroup.Group
	for i, spec := range wanted {
		i, spec := i, spec
		g.Go(func() error {
			frame, err := aggregate(df, spec)
			if err != nil {
				return err
			}
			results[i] = Aggregation{Name: spec.name, Keys: spec.keys, Frame: frame}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("汇总失败: %w", err)
	}

	return &Report{
		RunID:        stats.RunID,
		GeneratedAt:  time.Now(),
		OdometerMean: stats.OdometerMean,
		Before:       before,
		After:        Diagnose(df),
		Aggregations: results,
	}, nil
}

// Aggregation 按名字查找汇总表
func (r *Report) Aggregation(name string) (Aggregation, bool) {
	for _, a := range r.Aggregations {
		if a.Name == name {
			return a, true
		}
	}
	return Aggregation{}, false
}

// Summary 清洗前后概况对比, 列为 metric, before, after
func (r *Report) Summary() dataframe.DataFrame {
	var (
		metrics []string
		before  []interface{}
		after   []interface{}
	)
	add := func(name string, b, a interface{}) {
		metrics = append(metrics, name)
		before = append(before, b)
		after = append(after, a)
	}

	add("rows", r.Before.Rows, r.After.Rows)
	add("duplicates", r.Before.Duplicates, r.After.Duplicates)
	add("missing_total", r.Before.MissingTotal(), r.After.MissingTotal())

	columns := append([]string{}, r.Before.Columns...)
	for _, name := range r.After.Columns {
		if !utils.Contains(columns, name) {
			columns = append(columns, name)
		}
	}
	for _, name := range columns {
		var b interface{}
		if utils.Contains(r.Before.Columns, name) {
			b = r.Before.Missing[name]
		}
		add("missing_"+name, b, r.After.Missing[name])
	}
	add("odometer_mean", nil, r.OdometerMean)

	return dataframe.New(
		series.New(metrics, series.String, "metric"),
		series.New(before, series.Float, "before"),
		series.New(after, series.Float, "after"),
	)
}

// Sheets 概况页在前, 其后每个汇总一页
func (r *Report) Sheets() []utils.Sheet {
	sheets := []utils.Sheet{{Name: SummarySheet, Frame: r.Summary()}}
	for _, a := range r.Aggregations {
		sheets = append(sheets, utils.Sheet{Name: a.Name, Frame: a.Frame})
	}
	return sheets
}

// Save 写出报告工作簿
func (r *Report) Save(path string) error {
	if err := utils.SaveSheets(path, r.Sheets()...); err != nil {
		return fmt.Errorf("保存报告失败: %w", err)
	}
	return nil
}

// Text 纯文本摘要, 用作邮件正文
func (r *Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "清洗批次: %s\n", r.RunID)
	fmt.Fprintf(&b, "生成时间: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "行数: %d, 重复行: %d\n", r.After.Rows, r.After.Duplicates)
	fmt.Fprintf(&b, "缺失值: 清洗前 %d, 清洗后 %d\n", r.Before.MissingTotal(), r.After.MissingTotal())
	fmt.Fprintf(&b, "里程均值: %.2f\n", r.OdometerMean)
	fmt.Fprintf(&b, "汇总表: %d 张\n", len(r.Aggregations))
	return b.String()
}

func hasColumns(df dataframe.DataFrame, names []string) bool {
	for _, name := range names {
		if !utils.HasColumn(df, name) {
			return false
		}
	}
	return true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
