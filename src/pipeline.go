package main

import (
	"fmt"
	"time"

	"CarAds/src/datasource/email"
	"CarAds/src/datasource/file"
	"CarAds/src/processor"
	"CarAds/src/report"
	"CarAds/src/utils"

	"github.com/go-gota/gota/dataframe"
)

// runOptions 一次流水线执行的输出选项, 路径为空时不写对应文件.
// source 已载入邮件附件时直接使用其中的数据表, 不再读 input
type runOptions struct {
	input       string
	source      *email.DataFrameWrapper
	cleanedFile string
	reportFile  string
	mail        bool
}

// runResult 流水线产物
type runResult struct {
	table  *processor.Table
	report *report.Report
}

// runPipeline 读取 -> 清洗 -> 汇总 -> 保存 -> (可选)邮件发送
func (a *app) runPipeline(opts runOptions) (*runResult, error) {
	start := time.Now()
	if opts.input == "" {
		opts.input = a.cfg.Input.Path
	}

	df, err := a.loadInput(&opts)
	if err != nil {
		return nil, err
	}
	a.logger.Info(fmt.Sprintf("读取 %s: %d 行 %d 列", opts.input, df.Nrow(), df.Ncol()))
	before := report.Diagnose(df)

	table, err := processor.NewNormalizer(a.dcfg, a.logger).Normalize(df)
	if err != nil {
		return nil, fmt.Errorf("清洗 %s 失败: %w", opts.input, err)
	}
	result := &runResult{table: table}

	if opts.cleanedFile != "" {
		if err := utils.SaveFrame(table.DataFrame(), opts.cleanedFile); err != nil {
			return nil, err
		}
		a.logger.Info("清洗结果已保存到: " + opts.cleanedFile)
	}

	if opts.reportFile == "" {
		a.logger.Info(fmt.Sprintf("处理完成, 耗时: %v", time.Since(start)))
		return result, nil
	}

	rep, err := report.Build(table, before)
	if err != nil {
		return nil, err
	}
	if err := rep.Save(opts.reportFile); err != nil {
		return nil, err
	}
	result.report = rep
	a.logger.Info(fmt.Sprintf("报告已保存到: %s (%d 张汇总表)", opts.reportFile, len(rep.Aggregations)))

	if opts.mail {
		if err := email.SendReport(a.cfg, rep.Text(), opts.reportFile); err != nil {
			return nil, err
		}
		a.logger.Info(fmt.Sprintf("报告已发送给 %v", a.cfg.SendEmail.To))
	}

	a.logger.Info(fmt.Sprintf("处理完成, 耗时: %v", time.Since(start)))
	return result, nil
}

func (a *app) loadInput(opts *runOptions) (dataframe.DataFrame, error) {
	if opts.source != nil && opts.source.Source() != "" {
		opts.input = opts.source.Source()
		return opts.source.GetDF(), nil
	}
	return file.Load(opts.input, file.OptionsFrom(a.cfg, a.dcfg))
}

// fetchDataset 从邮箱取最新的数据附件保存到 DataDir, 没有新附件时返回空路径.
// dfw 不为空时同时把附件读入 dfw
func (a *app) fetchDataset(client email.MailService, handler *email.DatasetAttachmentHandler, dfw *email.DataFrameWrapper) (string, error) {
	newEmail, err := email.CheckAndProcessEmails(client, a.cfg.Email.TargetSubject, a.logger)
	if err != nil {
		return "", err
	}
	if newEmail == nil {
		return "", nil
	}
	path, err := handler.Handle(newEmail, a.logger)
	if err != nil || path == "" || dfw == nil {
		return path, err
	}
	if err := dfw.LoadAttachment(newEmail.DatasetAttachment(), file.OptionsFrom(a.cfg, a.dcfg)); err != nil {
		return path, fmt.Errorf("读取附件 %s 失败: %w", path, err)
	}
	return path, nil
}

func (a *app) mailClient() *email.EmailClient {
	return email.NewEmailClient(a.cfg.Email.Server, a.cfg.Email.Username, a.cfg.Email.Password, a.logger)
}
