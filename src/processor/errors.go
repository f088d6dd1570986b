package processor

import (
	"errors"
	"fmt"
)

// 哨兵错误, 下面的类型化错误 Unwrap 后得到它们, 供 errors.Is 判断
var (
	ErrMalformedDate         = errors.New("malformed date")
	ErrEmptyOdometerColumn   = errors.New("odometer column has no values")
	ErrMissingRequiredColumn = errors.New("missing required column")
	ErrInvalidIndicator      = errors.New("invalid indicator value")
)

// MalformedDateError date_posted 不符合 2006-01-02 格式, Row 从0开始(不含表头)
type MalformedDateError struct {
	Column string
	Row    int
	Value  string
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("%s: column %q row %d: %q does not match YYYY-MM-DD",
		ErrMalformedDate, e.Column, e.Row, e.Value)
}

func (e *MalformedDateError) Unwrap() error { return ErrMalformedDate }

// EmptyOdometerColumnError 有缺失值但没有任何已知里程, 无法求均值
type EmptyOdometerColumnError struct {
	Column string
	Rows   int
}

func (e *EmptyOdometerColumnError) Error() string {
	return fmt.Sprintf("%s: column %q is missing in all %d rows", ErrEmptyOdometerColumn, e.Column, e.Rows)
}

func (e *EmptyOdometerColumnError) Unwrap() error { return ErrEmptyOdometerColumn }

// MissingRequiredColumnError 输入表头缺少必需列
type MissingRequiredColumnError struct {
	Column string
}

func (e *MissingRequiredColumnError) Error() string {
	return fmt.Sprintf("%s: %q", ErrMissingRequiredColumn, e.Column)
}

func (e *MissingRequiredColumnError) Unwrap() error { return ErrMissingRequiredColumn }

// InvalidIndicatorError 指示列(is_4wd)中出现无法识别的值
type InvalidIndicatorError struct {
	Column string
	Row    int
	Value  string
}

func (e *InvalidIndicatorError) Error() string {
	return fmt.Sprintf("%s: column %q row %d: %q is not 0/1/true/false/yes/no",
		ErrInvalidIndicator, e.Column, e.Row, e.Value)
}

func (e *InvalidIndicatorError) Unwrap() error { return ErrInvalidIndicator }
