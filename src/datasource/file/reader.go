// reader.go
package file

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"

	"ShoppingBehavior/src/config"
	"ShoppingBehavior/src/processor"
)

// LoadDataset 按扩展名读取csv或xlsx数据集，并校验列结构
// 所有列先按字符串读入，数值解析交给清洗阶段统一处理
func LoadDataset(path, sheetName string, dcfg *config.DataConfig) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSVToDataFrame(path, dcfg)
	case ".xlsx":
		return ReadXLSXToDataFrame(path, sheetName, dcfg)
	default:
		return dataframe.DataFrame{}, &processor.FormatError{
			Detail: fmt.Sprintf("不支持的数据文件类型: %s", filepath.Ext(path)),
		}
	}
}

// ReadCSVToDataFrame 读取带表头的CSV数据集
func ReadCSVToDataFrame(path string, dcfg *config.DataConfig) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, &processor.IOError{Op: "读取", Path: path, Err: err}
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return df, &processor.FormatError{Detail: fmt.Sprintf("CSV解析失败: %v", df.Err)}
	}

	if err := CheckSchema(df, dcfg); err != nil {
		return df, err
	}
	return df, nil
}

// ReadXLSXToDataFrame 读取xlsx数据集的指定工作表，第一行视为表头
func ReadXLSXToDataFrame(path, sheetName string, dcfg *config.DataConfig) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenFile(path)
	if err != nil {
		return dataframe.DataFrame{}, &processor.IOError{Op: "读取", Path: path, Err: err}
	}

	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, &processor.FormatError{Detail: "excel文件中没有工作表"}
	}

	sheet, ok := xlFile.Sheet[sheetName]
	if !ok {
		// 未配置或找不到时退回第一个工作表
		sheet = xlFile.Sheets[0]
	}

	df, err := convertSheetToDataFrame(sheet)
	if err != nil {
		return df, err
	}

	if err := CheckSchema(df, dcfg); err != nil {
		return df, err
	}
	return df, nil
}

// ReadCleanedCSV 读取已清洗的数据集(18列原始列+5列派生列)，不做模式校验
// 数值列在聚合时按需转float，这里保持字符串读入即可
func ReadCleanedCSV(r io.Reader) dataframe.DataFrame {
	return dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
}

// CheckSchema 校验列名集合与dataconfig中的期望模式完全一致(含顺序)
func CheckSchema(df dataframe.DataFrame, dcfg *config.DataConfig) error {
	names := df.Names()
	if len(names) != len(dcfg.Columns) {
		return &processor.FormatError{
			Expected: dcfg.Columns,
			Actual:   names,
			Detail:   fmt.Sprintf("列数不匹配: 期望 %d 列，实际 %d 列", len(dcfg.Columns), len(names)),
		}
	}
	for i, want := range dcfg.Columns {
		if names[i] != want {
			return &processor.FormatError{
				Expected: dcfg.Columns,
				Actual:   names,
				Detail:   fmt.Sprintf("第%d列应为 %q，实际为 %q", i+1, want, names[i]),
			}
		}
	}
	return nil
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
func convertSheetToDataFrame(sheet *xlsx.Sheet) (dataframe.DataFrame, error) {
	if len(sheet.Rows) < 2 {
		return dataframe.New(), &processor.FormatError{Detail: "工作表中没有数据行"}
	}

	// 第一行是表头
	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, cell.String())
	}

	columns := make([][]string, len(headers))
	for i := range columns {
		columns[i] = make([]string, 0, len(sheet.Rows)-1)
	}

	for _, row := range sheet.Rows[1:] {
		for i := range headers {
			if i < len(row.Cells) {
				columns[i] = append(columns[i], row.Cells[i].String())
			} else {
				columns[i] = append(columns[i], "")
			}
		}
	}

	seriesList := make([]series.Series, len(headers))
	for i, colName := range headers {
		seriesList[i] = series.New(columns[i], series.String, colName)
	}

	return dataframe.New(seriesList...), nil
}
