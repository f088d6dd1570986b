package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	reportOutput string
	reportMail   bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Normalize the ad table and write the summary workbook",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportOutput, "out", "o", "", "报告文件(.xlsx), 默认使用 output.report_file")
	reportCmd.Flags().BoolVar(&reportMail, "mail", false, "通过 send_email 配置发送报告")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.runPipeline(a.reportOptions(reportOutput, reportMail))
	if err != nil {
		a.logger.Error(err.Error())
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), result.report.Text())
	return nil
}

// reportOptions 报告类命令共用的输出选项
func (a *app) reportOptions(out string, mail bool) runOptions {
	if out == "" {
		out = a.cfg.Output.ReportFile
	}
	return runOptions{
		cleanedFile: a.cfg.Output.CleanedFile,
		reportFile:  out,
		mail:        mail,
	}
}
