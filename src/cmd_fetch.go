package main

import (
	"fmt"

	"CarAds/src/datasource/email"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the newest dataset attachment from the mailbox",
	RunE:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Email.Server == "" {
		return fmt.Errorf("未配置邮箱服务器 email.server")
	}

	handler := email.NewDatasetAttachmentHandler(a.cfg.Email.TargetSubject, a.cfg.DataDir)
	var dfw email.DataFrameWrapper
	path, err := a.fetchDataset(a.mailClient(), handler, &dfw)
	if err != nil {
		a.logger.Error("检查处理邮件失败: " + err.Error())
		return err
	}
	if path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "no new dataset attachment")
		return nil
	}
	df := dfw.GetDF()
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d rows, %d columns)\n", path, df.Nrow(), df.Ncol())
	return nil
}
