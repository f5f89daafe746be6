package processor

import (
	"fmt"
	"strings"
)

// FormatError 表示输入文件的列结构与期望的18列模式不一致
type FormatError struct {
	Expected []string
	Actual   []string
	Detail   string
}

func (e *FormatError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("列结构不匹配: %s", e.Detail)
	}
	return fmt.Sprintf("列结构不匹配: 期望 [%s]，实际 [%s]",
		strings.Join(e.Expected, ", "), strings.Join(e.Actual, ", "))
}

// IOError 表示输入文件不可读或输出文件不可写
type IOError struct {
	Op   string // 操作描述，如 "读取" / "写入"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s 失败: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ValidationError 表示字段取值超出业务域，定位到行和列
type ValidationError struct {
	Row    int // 数据行号，从1开始(不含表头)
	Column string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("第%d行 %s 列取值非法: %q (%s)", e.Row, e.Column, e.Value, e.Reason)
}
