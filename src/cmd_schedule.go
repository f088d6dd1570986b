package main

import (
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"CarAds/src/datasource/email"

	"github.com/robfig/cron"
	"github.com/spf13/cobra"
)

var scheduleMail bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Rebuild the report periodically, fetching new data from the mailbox first when enabled",
	RunE:  runSchedule,
}

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleMail, "mail", false, "每次生成后发送报告")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		client  *email.EmailClient
		handler *email.DatasetAttachmentHandler
		dfw     email.DataFrameWrapper // 最近一次收到的附件
		mu      sync.Mutex             // cron 可能并发触发
	)
	if a.cfg.Email.Enabled {
		client = a.mailClient()
		handler = email.NewDatasetAttachmentHandler(a.cfg.Email.TargetSubject, a.cfg.DataDir)
	}

	job := func() {
		mu.Lock()
		defer mu.Unlock()

		t1 := time.Now()
		if client != nil {
			path, err := a.fetchDataset(client, handler, &dfw)
			if err != nil {
				a.logger.Error("检查处理邮件失败: " + err.Error())
			}
			if path != "" {
				a.logger.Info("使用新的数据附件: " + path)
			}
		}
		opts := a.reportOptions("", scheduleMail)
		opts.source = &dfw
		if _, err := a.runPipeline(opts); err != nil {
			a.logger.Error(err.Error())
		}
		if a.cfg.LogMaxSize != "" {
			if err := a.logger.CheckRotate(a.cfg.LogMaxSize); err != nil {
				a.logger.Warning("日志轮转失败: " + err.Error())
			}
		}
		a.logger.Info(fmt.Sprintf("定时任务完成, 耗时: %v", time.Since(t1)))
	}

	interval := time.Duration(a.cfg.Schedule.Interval).String() // 例如 "1h0m0s"
	cronSpec := fmt.Sprintf("@every %s", interval)

	c := cron.New()
	if err := c.AddFunc(cronSpec, job); err != nil {
		return fmt.Errorf("创建定时任务失败: %w", err)
	}

	job()
	c.Start()
	defer c.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info(fmt.Sprintf("定时服务已启动(间隔: %v), 按Ctrl+C退出", interval))
	<-ctx.Done()
	a.logger.Info("收到退出信号, 正在停止...")
	return nil
}
