// Package processor 把原始车辆广告表清洗成报告使用的数据表
package processor

import (
	"fmt"
	"time"

	"CarAds/src/config"
	"CarAds/src/storage"
	"CarAds/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/google/uuid"
)

// 派生列名
const (
	MakeColumn     = "make"
	ModelIndColumn = "model_ind"
)

// Stats 一次清洗的统计
type Stats struct {
	RunID        string
	Rows         int
	OdometerMean float64        // 没有填充时为0
	Changed      map[string]int // 步骤名 -> 产生或替换的值个数
	Duration     time.Duration
}

// Normalizer 对广告表执行固定的清洗流程
type Normalizer struct {
	dcfg   *config.DataConfig
	logger *storage.Logger
}

func NewNormalizer(dcfg *config.DataConfig, logger *storage.Logger) *Normalizer {
	if dcfg == nil {
		dcfg = config.NewDataConfig()
	}
	if logger == nil {
		logger = storage.Discard()
	}
	return &Normalizer{dcfg: dcfg, logger: logger}
}

// Normalize 先检查必需列, 再依次执行: 解析日期, 解析 is_4wd 指示值,
// 里程均值填充, 拆分 make/model_ind, 按 model 前向填充 cylinders,
// 按 model 前向填充 is_4wd 后补0.
// 行序保持不变, 前向填充按行序进行. 任何错误都中止清洗, 不返回部分结果
func (n *Normalizer) Normalize(df dataframe.DataFrame) (*Table, error) {
	if df.Err != nil {
		return nil, fmt.Errorf("input table: %w", df.Err)
	}
	if err := n.checkColumns(df); err != nil {
		return nil, err
	}

	// 在副本上清洗, 不改动调用方的表
	df = df.Copy()
	start := time.Now()
	stats := Stats{
		RunID:   uuid.NewString(),
		Rows:    df.Nrow(),
		Changed: make(map[string]int),
	}
	n.logger.Info(fmt.Sprintf("清洗开始 run=%s rows=%d", stats.RunID, stats.Rows))

	model := n.dcfg.Column("model")
	dates := &parseDates{column: n.dcfg.Column("date_posted")}
	odometer := &imputeOdometer{column: n.dcfg.Column("odometer")}
	steps := []CleaningStep{
		dates,
		&parseIndicator{column: n.dcfg.Column("is_4wd")},
		odometer,
		&deriveIdentity{model: model, make: n.dcfg.Column(MakeColumn), modelInd: n.dcfg.Column(ModelIndColumn)},
		&fillForward{key: model, column: n.dcfg.Column("cylinders")},
		&fillForward{key: model, column: n.dcfg.Column("is_4wd")},
		&fillConstant{column: n.dcfg.Column("is_4wd"), value: 0},
	}

	for _, step := range steps {
		changed, err := step.Apply(&df)
		if err != nil {
			n.logger.Error(fmt.Sprintf("清洗失败 run=%s step=%s: %v", stats.RunID, step.Name(), err))
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
		stats.Changed[step.Name()] = changed
		n.logger.Debug(fmt.Sprintf("run=%s step=%s changed=%d", stats.RunID, step.Name(), changed))
	}

	stats.OdometerMean = odometer.mean
	stats.Duration = time.Since(start)
	n.logger.Info(fmt.Sprintf("清洗完成 run=%s odometer_mean=%.2f 耗时=%v", stats.RunID, stats.OdometerMean, stats.Duration))

	return &Table{df: df, posted: dates.posted, stats: stats, dcfg: n.dcfg}, nil
}

func (n *Normalizer) checkColumns(df dataframe.DataFrame) error {
	required := append(append([]string{}, config.DefaultRequired...), n.dcfg.Required...)
	for _, name := range required {
		header := n.dcfg.Column(name)
		if !utils.HasColumn(df, header) {
			n.logger.Error(fmt.Sprintf("缺少必需列: %s", header))
			return &MissingRequiredColumnError{Column: header}
		}
	}
	return nil
}
