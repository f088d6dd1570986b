package processor

import (
	"time"

	"CarAds/src/config"
	"CarAds/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// AdRecord 一条清洗后的广告. 指针字段在缺失时为 nil, 可选文本列缺失或不存在时为 ""
type AdRecord struct {
	Price        float64
	ModelYear    *int
	Model        string
	Make         string
	ModelInd     string
	Condition    string
	Cylinders    *float64
	Fuel         string
	Odometer     float64
	Transmission string
	Type         string
	PaintColor   *string
	Is4WD        bool
	DatePosted   time.Time
	DaysListed   int
}

// Table Normalize 的只读结果
type Table struct {
	df     dataframe.DataFrame
	posted []time.Time
	stats  Stats
	dcfg   *config.DataConfig
}

// DataFrame 返回清洗后数据表的副本
func (t *Table) DataFrame() dataframe.DataFrame {
	return t.df.Copy()
}

func (t *Table) Nrow() int { return t.df.Nrow() }

func (t *Table) Stats() Stats { return t.stats }

// DatePosted 按行序返回解析后的 date_posted
func (t *Table) DatePosted() []time.Time {
	out := make([]time.Time, len(t.posted))
	copy(out, t.posted)
	return out
}

// Column 返回逻辑列名对应的表头
func (t *Table) Column(name string) string {
	return t.dcfg.Column(name)
}

// Records 把数据表转换为 AdRecord
func (t *Table) Records() []AdRecord {
	col := func(name string) *series.Series {
		header := t.dcfg.Column(name)
		if !utils.HasColumn(t.df, header) {
			return nil
		}
		s := t.df.Col(header)
		return &s
	}

	var (
		price        = col("price")
		modelYear    = col("model_year")
		model        = col("model")
		brand        = col(MakeColumn)
		modelInd     = col(ModelIndColumn)
		condition    = col("condition")
		cylinders    = col("cylinders")
		fuel         = col("fuel")
		odometer     = col("odometer")
		transmission = col("transmission")
		bodyType     = col("type")
		paintColor   = col("paint_color")
		is4wd        = col("is_4wd")
		daysListed   = col("days_listed")
	)

	text := func(s *series.Series, i int) string {
		if s == nil {
			return ""
		}
		v, _ := stringAt(*s, i)
		return v
	}
	number := func(s *series.Series, i int) (float64, bool) {
		if s == nil {
			return 0, false
		}
		return floatAt(*s, i)
	}

	records := make([]AdRecord, t.df.Nrow())
	for i := range records {
		r := &records[i]
		r.Price, _ = number(price, i)
		r.Model = text(model, i)
		r.Make = text(brand, i)
		r.ModelInd = text(modelInd, i)
		r.Condition = text(condition, i)
		r.Fuel = text(fuel, i)
		r.Transmission = text(transmission, i)
		r.Type = text(bodyType, i)
		r.Odometer, _ = number(odometer, i)
		r.DatePosted = t.posted[i]

		if v, ok := number(modelYear, i); ok {
			year := int(v)
			r.ModelYear = &year
		}
		if v, ok := number(cylinders, i); ok {
			r.Cylinders = &v
		}
		if v, ok := number(is4wd, i); ok {
			r.Is4WD = v != 0
		}
		if v, ok := number(daysListed, i); ok {
			r.DaysListed = int(v)
		}
		if paintColor != nil {
			if v, ok := stringAt(*paintColor, i); ok {
				r.PaintColor = &v
			}
		}
	}
	return records
}
