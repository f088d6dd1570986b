package main

import (
	"fmt"
	"os"
	"path/filepath"

	"CarAds/src/config"
	"CarAds/src/storage"

	"github.com/spf13/cobra"
)

var (
	configDir      string
	configFile     string
	dataConfigFile string
	inputPath      string
	sheetName      string
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:           "carads",
	Short:         "Vehicle ad cleaning pipeline",
	Long:          "carads loads vehicle sale ads from CSV or XLSX, cleans them and writes the cleaned table and summary reports.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configDir, "config-dir", "./config", "配置文件目录")
	flags.StringVar(&configFile, "config", "config.json", "应用配置文件(.json/.yaml)")
	flags.StringVar(&dataConfigFile, "data-config", "dataconfig.json", "数据列配置文件, 为空时使用默认列名")
	flags.StringVarP(&inputPath, "input", "i", "", "输入文件, 覆盖配置中的 input.path")
	flags.StringVar(&sheetName, "sheet", "", "xlsx工作表名, 覆盖配置中的 input.sheet")
	flags.BoolVarP(&verbose, "verbose", "v", false, "日志同时输出到标准错误")
}

// app 一次命令执行共享的配置和日志
type app struct {
	cfg    *config.Config
	dcfg   *config.DataConfig
	logger *storage.Logger
}

// setup 加载配置, 应用命令行覆盖项并初始化日志
func setup() (*app, error) {
	cfg, dcfg, err := config.LoadConfig(configDir, configFile, dataConfigFile)
	if err != nil {
		return nil, err
	}
	if inputPath != "" {
		cfg.Input.Path = inputPath
	}
	if sheetName != "" {
		cfg.Input.Sheet = sheetName
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logger, err := storage.NewLogger(filepath.Join(cfg.DataDir, cfg.LogName))
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	logger.SetLevel(storage.ParseLevel(cfg.LogLevel))
	if cfg.LogMaxSize != "" {
		if err := logger.CheckRotate(cfg.LogMaxSize); err != nil {
			logger.Warning("日志轮转失败: " + err.Error())
		}
	}

	if verbose {
		ch := logger.Subscribe()
		go func() {
			for msg := range ch {
				fmt.Fprint(os.Stderr, msg)
			}
		}()
	}
	return &app{cfg: cfg, dcfg: dcfg, logger: logger}, nil
}

func (a *app) Close() {
	a.logger.Close()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
