package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanOutput string

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Normalize the ad table and write the cleaned table",
	Long:  "Load the input table, parse dates, impute odometer, derive make/model_ind, forward-fill cylinders and is_4wd, and write the result as CSV or XLSX.",
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().StringVarP(&cleanOutput, "out", "o", "", "输出文件(.csv/.xlsx), 默认使用 output.cleaned_file")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	out := cleanOutput
	if out == "" {
		out = a.cfg.Output.CleanedFile
	}
	if out == "" {
		return fmt.Errorf("未指定输出文件: 使用 --out 或配置 output.cleaned_file")
	}

	result, err := a.runPipeline(runOptions{cleanedFile: out})
	if err != nil {
		a.logger.Error(err.Error())
		return err
	}

	stats := result.table.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "cleaned %d rows (run %s), odometer mean %.2f -> %s\n",
		stats.Rows, stats.RunID, stats.OdometerMean, out)
	return nil
}
