// reader.go
package file

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"CarAds/src/config"
	"CarAds/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

const Number string = `^[0-9]+(\.[0-9]+)?$`

var numberPattern = regexp.MustCompile(Number)

// 数值列, 其余列按字符串读取; is_4wd 是指示列, 由清洗步骤解析
var (
	floatColumns = []string{"price", "model_year", "cylinders", "odometer"}
	intColumns   = []string{"days_listed"}
)

// ErrInvalidValue 数值列中出现无法解析的文本
var ErrInvalidValue = errors.New("invalid numeric value")

// InvalidValueError 指出无法解析的单元格, Row 从0开始(不含表头)
type InvalidValueError struct {
	Column string
	Row    int
	Value  string
	Type   series.Type
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s: 列 %q 第 %d 行: %q 不是 %s", ErrInvalidValue, e.Column, e.Row, e.Value, e.Type)
}

func (e *InvalidValueError) Unwrap() error { return ErrInvalidValue }

// Options 读取选项
type Options struct {
	Sheet      string // xlsx工作表, 为空时取第一个
	Encoding   string // csv编码, 为空时按utf-8
	Delimiter  rune
	NaNValues  []string
	Types      map[string]series.Type // 表头 -> 类型
	DateColumn string                 // xlsx中需要从Excel序列号转换的日期列
}

// OptionsFrom 根据配置生成读取选项
func OptionsFrom(cfg *config.Config, dcfg *config.DataConfig) Options {
	if dcfg == nil {
		dcfg = config.NewDataConfig()
	}
	opts := Options{
		NaNValues:  dcfg.NaNValues,
		Types:      make(map[string]series.Type),
		DateColumn: dcfg.Column("date_posted"),
	}
	if cfg != nil {
		opts.Sheet = cfg.Input.Sheet
		opts.Encoding = cfg.Input.Encoding
		if cfg.Input.Delimiter != "" {
			opts.Delimiter = []rune(cfg.Input.Delimiter)[0]
		}
	}
	for _, name := range floatColumns {
		opts.Types[dcfg.Column(name)] = series.Float
	}
	for _, name := range intColumns {
		opts.Types[dcfg.Column(name)] = series.Int
	}
	return opts
}

func (o Options) loadOptions() []dataframe.LoadOption {
	nan := o.NaNValues
	if len(nan) == 0 {
		nan = config.DefaultNaNValues
	}
	opts := []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nan),
	}
	if o.Delimiter != 0 {
		opts = append(opts, dataframe.WithDelimiter(o.Delimiter))
	}
	return opts
}

// Load 按扩展名读取 .csv 或 .xlsx 文件
func Load(filePath string, opts Options) (dataframe.DataFrame, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("读取文件失败 %s: %w", filePath, err)
	}
	return LoadBytes(filepath.Base(filePath), data, opts)
}

// LoadBytes 读取内存中的文件内容, name 用于判断格式
func LoadBytes(name string, data []byte, opts Options) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return ReadCSV(bytes.NewReader(data), opts)
	case ".xlsx":
		return ReadXLSXBytes(data, opts)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("不支持的文件格式: %s", name)
	}
}

// ReadCSV 读取csv, 非utf-8内容按 opts.Encoding 解码
func ReadCSV(r io.Reader, opts Options) (dataframe.DataFrame, error) {
	if opts.Encoding != "" && !strings.EqualFold(opts.Encoding, "utf-8") && !strings.EqualFold(opts.Encoding, "utf8") {
		enc, err := htmlindex.Get(opts.Encoding)
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("未知编码 %q: %w", opts.Encoding, err)
		}
		r = transform.NewReader(r, enc.NewDecoder())
	}

	df := dataframe.ReadCSV(r, opts.loadOptions()...)
	if df.Err != nil {
		return df, fmt.Errorf("解析csv失败: %w", df.Err)
	}
	return applyTypes(df, opts.Types)
}

// ReadXLSX 读取xlsx文件中的工作表
func ReadXLSX(filePath string, opts Options) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open file false: %w", err)
	}
	return convertWorkbook(xlFile, opts)
}

// ReadXLSXBytes 读取内存中的xlsx内容(例如邮件附件)
func ReadXLSXBytes(data []byte, opts Options) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open binary false: %w", err)
	}
	return convertWorkbook(xlFile, opts)
}

func convertWorkbook(xlFile *xlsx.File, opts Options) (dataframe.DataFrame, error) {
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表")
	}

	sheet := xlFile.Sheets[0]
	if opts.Sheet != "" {
		s, ok := xlFile.Sheet[opts.Sheet]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("工作表不存在: %s", opts.Sheet)
		}
		sheet = s
	}

	records, err := sheetRecords(sheet, opts.DateColumn)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	df := dataframe.LoadRecords(records, opts.loadOptions()...)
	if df.Err != nil {
		return df, fmt.Errorf("转换为dataframe失败: %w", df.Err)
	}
	return applyTypes(df, opts.Types)
}

// sheetRecords 第一行为表头, 短行补空串
func sheetRecords(sheet *xlsx.Sheet, dateColumn string) ([][]string, error) {
	if len(sheet.Rows) == 0 {
		return nil, fmt.Errorf("工作表 %s 为空", sheet.Name)
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}
	dateIdx := -1
	for i, h := range headers {
		if h == dateColumn {
			dateIdx = i
		}
	}

	records := make([][]string, 0, len(sheet.Rows))
	records = append(records, headers)
	for _, row := range sheet.Rows[1:] {
		if row == nil {
			continue
		}
		record := make([]string, len(headers))
		blank := true
		for i, cell := range row.Cells {
			if i >= len(headers) {
				break
			}
			record[i] = cell.Value
			if strings.TrimSpace(cell.Value) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		if dateIdx >= 0 {
			record[dateIdx] = excelToDate(record[dateIdx])
		}
		records = append(records, record)
	}
	return records, nil
}

// applyTypes 把按字符串读入的列转换为 types 指定的类型.
// 缺失值和空白保持缺失; 其他无法解析的文本返回 InvalidValueError, 不会被当作缺失值
func applyTypes(df dataframe.DataFrame, types map[string]series.Type) (dataframe.DataFrame, error) {
	names := make([]string, 0, len(types))
	for name := range types {
		if utils.HasColumn(df, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		typ := types[name]
		col := df.Col(name)
		vals := make([]interface{}, col.Len())
		for i := range vals {
			e := col.Elem(i)
			if e.IsNA() {
				continue
			}
			raw := strings.TrimSpace(e.String())
			if raw == "" {
				continue
			}
			v, err := parseNumber(raw, typ)
			if err != nil {
				return dataframe.DataFrame{}, &InvalidValueError{Column: name, Row: i, Value: e.String(), Type: typ}
			}
			vals[i] = v
		}
		df = df.Mutate(series.New(vals, typ, name))
		if df.Err != nil {
			return df, fmt.Errorf("转换列 %s 失败: %w", name, df.Err)
		}
	}
	return df, nil
}

func parseNumber(raw string, typ series.Type) (interface{}, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("not a number")
	}
	switch typ {
	case series.Int:
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("not an integer")
		}
		return int(f), nil
	case series.Float:
		return f, nil
	default:
		return raw, nil
	}
}

// excelToDate 把Excel日期序列号转换为 2006-01-02, 其他文本原样返回
func excelToDate(v string) string {
	if !numberPattern.MatchString(v) {
		return v
	}
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}
	// 1900日期系统以1899-12-30为零点
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, int(serial)).Format("2006-01-02")
}
