package main

import (
	"os/signal"
	"syscall"

	"CarAds/src/datasource/file"

	"github.com/spf13/cobra"
)

var watchMail bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the report whenever the input file changes",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchMail, "mail", false, "每次生成后发送报告")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	monitor, err := file.NewFileMonitor(a.cfg.Input.Path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := a.reportOptions("", watchMail)
	if _, err := a.runPipeline(opts); err != nil {
		a.logger.Error(err.Error())
	}

	a.logger.Info("开始监视输入文件: " + a.cfg.Input.Path + ", 按Ctrl+C退出")
	err = monitor.Watch(ctx, func(path string) {
		a.logger.Info("检测到文件更新: " + path)
		if _, err := a.runPipeline(opts); err != nil {
			a.logger.Error(err.Error())
		}
	})
	if err != nil && ctx.Err() == nil {
		return err
	}
	a.logger.Info("文件监视已停止")
	return nil
}

