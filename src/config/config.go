package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Config 应用程序配置
type Config struct {
	Input struct {
		Path      string `json:"path" yaml:"path" validate:"required"` // 广告数据文件(.csv/.xlsx)
		Sheet     string `json:"sheet" yaml:"sheet"`                   // xlsx工作表名
		Encoding  string `json:"encoding" yaml:"encoding"`             // csv文本编码, 例如 windows-1252
		Delimiter string `json:"delimiter" yaml:"delimiter" validate:"omitempty,len=1"`
	} `json:"input" yaml:"input"`

	Output struct {
		CleanedFile string `json:"cleaned_file" yaml:"cleaned_file"`
		ReportFile  string `json:"report_file" yaml:"report_file"`
	} `json:"output" yaml:"output"`

	Email struct {
		Enabled       bool     `json:"enabled" yaml:"enabled"`
		Server        string   `json:"server" yaml:"server" validate:"required_if=Enabled true"` // IMAP服务器地址
		Username      string   `json:"username" yaml:"username"`
		Password      string   `json:"password" yaml:"password"`
		TargetSubject string   `json:"target_subject" yaml:"target_subject"` // 需要匹配的邮件主题
		CheckInterval Duration `json:"check_interval" yaml:"check_interval"`
	} `json:"email" yaml:"email"`

	SendEmail struct {
		Server   string   `json:"server" yaml:"server"`
		Username string   `json:"username" yaml:"username"`
		Password string   `json:"password" yaml:"password"`
		To       []string `json:"to" yaml:"to" validate:"dive,email"`
		Subject  string   `json:"subject" yaml:"subject"`
	} `json:"send_email" yaml:"send_email"`

	Schedule struct {
		Interval Duration `json:"interval" yaml:"interval"`
	} `json:"schedule" yaml:"schedule"`

	DataDir    string `json:"data_dir" yaml:"data_dir"`
	LogName    string `json:"log_name" yaml:"log_name"`
	LogMaxSize string `json:"log_max_size" yaml:"log_max_size"`
	LogLevel   string `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warning error"`
}

// DataConfig 描述输入表的列
type DataConfig struct {
	Columns   map[string]string `json:"columns" yaml:"columns"`       // 逻辑列名 -> 表头
	NaNValues []string          `json:"nan_values" yaml:"nan_values"` // 视为缺失值的文本
	Required  []string          `json:"required" yaml:"required"`     // 必须存在的逻辑列
}

// 必需列, 与 DataConfig.Required 合并
var DefaultRequired = []string{
	"price", "model", "cylinders", "is_4wd", "odometer", "date_posted", "days_listed",
}

var DefaultNaNValues = []string{"", "NA", "NaN", "nan", "<nil>"}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	mu                 sync.RWMutex
)

// LoadConfig 只在第一次调用时读取配置文件
func LoadConfig(folder, file, dataFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(folder, file, dataFile)
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(folder, file, dataFile string) (*Config, *DataConfig, error) {
	// .env 不存在时忽略
	_ = godotenv.Load(filepath.Join(folder, ".env"))

	var (
		cfg  Config
		dcfg DataConfig
	)

	g := new(errgroup.Group)
	g.Go(func() error {
		if err := decodeFile(filepath.Join(folder, file), &cfg); err != nil {
			return fmt.Errorf("解析Config失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if dataFile == "" {
			return nil
		}
		if err := decodeFile(filepath.Join(folder, dataFile), &dcfg); err != nil {
			return fmt.Errorf("解析DataConfig失败: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	dcfg.applyDefaults()

	return &cfg, &dcfg, nil
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("无法读取文件 %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	default:
		return json.Unmarshal(data, v)
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CARADS_INPUT"); v != "" {
		c.Input.Path = v
	}
	if v := os.Getenv("CARADS_SHEET"); v != "" {
		c.Input.Sheet = v
	}
	if v := os.Getenv("CARADS_IMAP_PASSWORD"); v != "" {
		c.Email.Password = v
	}
	if v := os.Getenv("CARADS_SMTP_PASSWORD"); v != "" {
		c.SendEmail.Password = v
	}
	if v := os.Getenv("CARADS_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.LogName == "" {
		c.LogName = "app.log"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Output.ReportFile == "" {
		c.Output.ReportFile = filepath.Join(c.DataDir, "report.xlsx")
	}
	if c.Schedule.Interval == 0 {
		c.Schedule.Interval = Duration(time.Hour)
	}
	if c.Email.CheckInterval == 0 {
		c.Email.CheckInterval = Duration(5 * time.Minute)
	}
}

func (dc *DataConfig) applyDefaults() {
	if dc.Columns == nil {
		dc.Columns = map[string]string{}
	}
	if len(dc.NaNValues) == 0 {
		dc.NaNValues = DefaultNaNValues
	}
	for _, col := range DefaultRequired {
		if !contains(dc.Required, col) {
			dc.Required = append(dc.Required, col)
		}
	}
}

// NewDataConfig 返回默认列映射(表头与逻辑列名相同)
func NewDataConfig() *DataConfig {
	dc := &DataConfig{}
	dc.applyDefaults()
	return dc
}

// Validate 检查配置字段
func Validate(c *Config) error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Duration 支持 "5m" 这样的JSON/YAML字符串
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Column 返回逻辑列在输入表中的表头
func (dc *DataConfig) Column(name string) string {
	mu.RLock()
	defer mu.RUnlock()
	if header, ok := dc.Columns[name]; ok && header != "" {
		return header
	}
	return name
}

func (dc *DataConfig) SetColumn(name, header string) {
	mu.Lock()
	defer mu.Unlock()
	if dc.Columns == nil {
		dc.Columns = map[string]string{}
	}
	dc.Columns[name] = header
}
