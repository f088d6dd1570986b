package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

// Sheet 一个命名的工作表
type Sheet struct {
	Name  string
	Frame dataframe.DataFrame
}

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// HasColumn 判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	return Contains(df.Names(), name)
}

// SaveToExcel 将单个DataFrame保存为xlsx
func SaveToExcel(df dataframe.DataFrame, filePath string) error {
	return SaveSheets(filePath, Sheet{Name: "Sheet1", Frame: df})
}

// SaveSheets 每个Sheet写入一个工作表, 第一行为列名, 缺失值留空
func SaveSheets(filePath string, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("没有需要保存的工作表")
	}
	if err := ensureParent(filePath); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		name := sheetName(sheet.Name)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("重命名工作表失败: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("创建工作表 %s 失败: %w", name, err)
		}
		if err := writeFrame(f, name, sheet.Frame); err != nil {
			return err
		}
	}

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

func writeFrame(f *excelize.File, sheet string, df dataframe.DataFrame) error {
	colNames := df.Names()
	for i, name := range colNames {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}

	for colIdx, colName := range colNames {
		col := df.Col(colName)
		for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
			elem := col.Elem(rowIdx)
			if elem.IsNA() {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, elem.Val()); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteCSV 将DataFrame写入csv, 缺失值写为 NaN
func WriteCSV(df dataframe.DataFrame, filePath string) error {
	if err := ensureParent(filePath); err != nil {
		return err
	}
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("创建csv文件失败: %w", err)
	}
	defer file.Close()

	if err := df.WriteCSV(file); err != nil {
		return fmt.Errorf("写入csv失败: %w", err)
	}
	return nil
}

// SaveFrame 按扩展名保存为 .xlsx 或 .csv
func SaveFrame(df dataframe.DataFrame, filePath string) error {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".xlsx":
		return SaveToExcel(df, filePath)
	case ".csv":
		return WriteCSV(df, filePath)
	default:
		return fmt.Errorf("不支持的输出格式: %s", filePath)
	}
}

func ensureParent(filePath string) error {
	dir := filepath.Dir(filePath)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	return nil
}

// sheetName 工作表名最长31个字符且不能包含 []:*?/\
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, name)
	if name == "" {
		name = "Sheet"
	}
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
