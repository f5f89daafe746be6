// excel.go
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"

	"ShoppingBehavior/src/config"
	"ShoppingBehavior/src/processor"
	"ShoppingBehavior/src/storage"
)

// 仪表盘各工作表名称，引用公式里不带空格省去转义
const (
	SheetOverview       = "Overview"
	SheetCleaned        = "CleanedData"
	SheetSeasonCategory = "SeasonCategory"
	SheetPivot          = "Pivot"
)

// sheetNames 一维汇总维度对应的工作表名
var sheetNames = map[string]string{
	processor.ColCategory:      "ByCategory",
	processor.ColGender:        "ByGender",
	processor.ColAgeGroup:      "ByAgeGroup",
	processor.ColSeason:        "BySeason",
	processor.ColPaymentMethod: "ByPayment",
}

// Writer 负责把一次运行的产物写成清洗后CSV、汇总CSV和Excel仪表盘
type Writer struct {
	cfg    *config.Config
	dcfg   *config.DataConfig
	logger *storage.Logger
}

func NewWriter(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) *Writer {
	return &Writer{cfg: cfg, dcfg: dcfg, logger: logger}
}

// WriteAll 落盘全部产物，任何一步失败整个运行视为失败，不保留半成品
func (w *Writer) WriteAll(res *processor.RunResult) (string, error) {
	if err := os.MkdirAll(w.cfg.Data.ReportsDir, 0755); err != nil {
		return "", &processor.IOError{Op: "创建", Path: w.cfg.Data.ReportsDir, Err: err}
	}

	if err := w.WriteCleanedCSV(res.Cleaned); err != nil {
		return "", err
	}
	w.logger.Info("清洗后数据已写入 " + w.cfg.Data.CleanedFile)

	if err := w.writeSummaryCSVs(res); err != nil {
		return "", err
	}

	dashboard, err := w.WriteDashboard(res)
	if err != nil {
		return "", err
	}
	w.logger.Info("仪表盘已写入 " + dashboard)
	return dashboard, nil
}

// WriteCleanedCSV 输出清洗并派生后的数据集
func (w *Writer) WriteCleanedCSV(cleaned dataframe.DataFrame) error {
	f, err := os.Create(w.cfg.Data.CleanedFile)
	if err != nil {
		return &processor.IOError{Op: "写入", Path: w.cfg.Data.CleanedFile, Err: err}
	}
	defer f.Close()

	if err := cleaned.WriteCSV(f); err != nil {
		return &processor.IOError{Op: "写入", Path: w.cfg.Data.CleanedFile, Err: err}
	}
	return nil
}

// writeSummaryCSVs 每个维度一张汇总CSV
func (w *Writer) writeSummaryCSVs(res *processor.RunResult) error {
	for _, dim := range processor.Dimensions {
		path := filepath.Join(w.cfg.Data.ReportsDir, "summary_"+sheetNames[dim]+".csv")
		f, err := os.Create(path)
		if err != nil {
			return &processor.IOError{Op: "写入", Path: path, Err: err}
		}

		fmt.Fprintln(f, "Key,Count,Revenue,AvgAmount,AvgRating")
		for _, r := range res.Summaries[dim] {
			fmt.Fprintf(f, "%s,%d,%.2f,%.2f,%.2f\n", r.Key, r.Count, r.TotalAmount, r.AvgAmount, r.AvgRating)
		}
		f.Close()
	}
	return nil
}

// WriteDashboard 生成Excel仪表盘：总览页、各维度汇总页(带图表)、
// 季节x品类热力页、清洗数据页和透视表页
func (w *Writer) WriteDashboard(res *processor.RunResult) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetOverview); err != nil {
		return "", err
	}

	if err := w.writeOverviewSheet(f, res); err != nil {
		return "", err
	}
	if err := w.writeSummarySheets(f, res); err != nil {
		return "", err
	}
	if err := w.writeHeatmapSheet(f, res.Matrix); err != nil {
		return "", err
	}
	if err := writeDataFrameSheet(f, SheetCleaned, res.Cleaned); err != nil {
		return "", err
	}
	if err := w.writePivotSheet(f, res.Cleaned); err != nil {
		return "", err
	}

	if idx, err := f.GetSheetIndex(SheetOverview); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	path := filepath.Join(w.cfg.Data.ReportsDir, "dashboard.xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", &processor.IOError{Op: "写入", Path: path, Err: err}
	}
	return path, nil
}

func (w *Writer) writeOverviewSheet(f *excelize.File, res *processor.RunResult) error {
	rows := [][]interface{}{
		{"Run ID", res.RunID},
		{"Started", res.StartedAt.Format("2006-01-02 15:04:05")},
		{"Elapsed", res.Elapsed.String()},
		{},
		{"Input rows", res.Report.InputRows},
		{"Output rows", res.Report.OutputRows},
		{"Duplicates removed", res.Report.DuplicatesRemoved},
		{},
		{"Column", "Missing filled"},
	}
	for _, col := range w.dcfg.Columns {
		if n, ok := res.Report.MissingFilled[col]; ok {
			rows = append(rows, []interface{}{col, n})
		}
	}

	rows = append(rows, []interface{}{}, []interface{}{"Column", "Cap lower", "Cap upper", "Capped"})
	for _, col := range w.dcfg.OutlierColumns {
		b := res.Report.Outliers[col]
		rows = append(rows, []interface{}{col, b.Lower, b.Upper, b.Capped})
	}

	rows = append(rows, []interface{}{},
		[]interface{}{"Age vs spend slope", res.Trend.Slope},
		[]interface{}{"Age vs spend correlation", res.Trend.Correlation},
		[]interface{}{"Mean purchase amount", res.Trend.MeanAmount},
		[]interface{}{"Stddev purchase amount", res.Trend.StdAmount},
		[]interface{}{},
		[]interface{}{"Rows", res.Overview.Rows, "Cols", res.Overview.Cols},
		[]interface{}{},
		[]interface{}{"注", "排行榜并列名次按清洗后数据中的先后顺序取舍"},
	)

	for i, row := range rows {
		for j, v := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			if err := f.SetCellValue(SheetOverview, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) writeSummarySheets(f *excelize.File, res *processor.RunResult) error {
	for _, dim := range processor.Dimensions {
		sheet := sheetNames[dim]
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}

		header := []interface{}{dim, "Count", "Revenue", "AvgAmount", "AvgRating"}
		for j, v := range header {
			cell, _ := excelize.CoordinatesToCellName(j+1, 1)
			f.SetCellValue(sheet, cell, v)
		}

		rows := res.Summaries[dim]
		for i, r := range rows {
			values := []interface{}{r.Key, r.Count, r.TotalAmount, r.AvgAmount, r.AvgRating}
			for j, v := range values {
				cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
				f.SetCellValue(sheet, cell, v)
			}
		}

		if err := w.addSummaryChart(f, sheet, dim, len(rows)); err != nil {
			return err
		}
	}
	return nil
}

// addSummaryChart 品类页放营收柱状图，性别页放人数饼图，年龄组页放AOV柱状图
func (w *Writer) addSummaryChart(f *excelize.File, sheet, dim string, n int) error {
	if n == 0 {
		return nil
	}
	last := fmt.Sprintf("%d", n+1)

	switch dim {
	case processor.ColCategory:
		return f.AddChart(sheet, "G2", &excelize.Chart{
			Type: excelize.Col,
			Series: []excelize.ChartSeries{{
				Name:       sheet + "!$C$1",
				Categories: sheet + "!$A$2:$A$" + last,
				Values:     sheet + "!$C$2:$C$" + last,
			}},
			Title: []excelize.RichTextRun{{Text: "Revenue by Category"}},
		})
	case processor.ColGender:
		return f.AddChart(sheet, "G2", &excelize.Chart{
			Type: excelize.Pie,
			Series: []excelize.ChartSeries{{
				Name:       sheet + "!$B$1",
				Categories: sheet + "!$A$2:$A$" + last,
				Values:     sheet + "!$B$2:$B$" + last,
			}},
			Title: []excelize.RichTextRun{{Text: "Customers by Gender"}},
		})
	case processor.ColAgeGroup:
		return f.AddChart(sheet, "G2", &excelize.Chart{
			Type: excelize.Col,
			Series: []excelize.ChartSeries{{
				Name:       sheet + "!$D$1",
				Categories: sheet + "!$A$2:$A$" + last,
				Values:     sheet + "!$D$2:$D$" + last,
			}},
			Title: []excelize.RichTextRun{{Text: "Average Order Value by Age Group"}},
		})
	}
	return nil
}

// writeHeatmapSheet 季节x品类营收矩阵，用三色色阶模拟热力图
func (w *Writer) writeHeatmapSheet(f *excelize.File, m *processor.Matrix) error {
	if _, err := f.NewSheet(SheetSeasonCategory); err != nil {
		return err
	}

	for j, c := range m.ColKeys {
		cell, _ := excelize.CoordinatesToCellName(j+2, 1)
		f.SetCellValue(SheetSeasonCategory, cell, c)
	}
	for i, r := range m.RowKeys {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		f.SetCellValue(SheetSeasonCategory, cell, r)
		for j, v := range m.Cells[i] {
			cell, _ := excelize.CoordinatesToCellName(j+2, i+2)
			f.SetCellValue(SheetSeasonCategory, cell, v)
		}
	}

	first, _ := excelize.CoordinatesToCellName(2, 2)
	last, _ := excelize.CoordinatesToCellName(len(m.ColKeys)+1, len(m.RowKeys)+1)
	return f.SetConditionalFormat(SheetSeasonCategory, first+":"+last,
		[]excelize.ConditionalFormatOptions{{
			Type:     "3_color_scale",
			Criteria: "=",
			MinType:  "min",
			MidType:  "percentile",
			MidValue: "50",
			MaxType:  "max",
			MinColor: "#63BE7B",
			MidColor: "#FFEB84",
			MaxColor: "#F8696B",
		}})
}

// writePivotSheet 在清洗数据页上建支付方式x品类的营收透视表
func (w *Writer) writePivotSheet(f *excelize.File, cleaned dataframe.DataFrame) error {
	if _, err := f.NewSheet(SheetPivot); err != nil {
		return err
	}

	lastCell, err := excelize.CoordinatesToCellName(cleaned.Ncol(), cleaned.Nrow()+1)
	if err != nil {
		return err
	}

	return f.AddPivotTable(&excelize.PivotTableOptions{
		DataRange:       SheetCleaned + "!A1:" + lastCell,
		PivotTableRange: SheetPivot + "!A3:H20",
		Rows:            []excelize.PivotTableField{{Data: processor.ColPaymentMethod}},
		Columns:         []excelize.PivotTableField{{Data: processor.ColCategory}},
		Data: []excelize.PivotTableField{{
			Data:     processor.ColPurchaseAmount,
			Name:     "Revenue",
			Subtotal: "Sum",
		}},
		RowGrandTotals: true,
		ColGrandTotals: true,
	})
}

// writeDataFrameSheet 把DataFrame整表写入指定工作表
func writeDataFrameSheet(f *excelize.File, sheet string, df dataframe.DataFrame) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	colNames := df.Names()
	for i, name := range colNames {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, name)
	}

	for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
		for colIdx, colName := range colNames {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheet, cell, df.Col(colName).Val(rowIdx))
		}
	}
	return nil
}

// BuildSummaryText 拼出一段给推送和邮件正文用的运行摘要
func BuildSummaryText(res *processor.RunResult, topN int) string {
	top := processor.TopN(res.Summaries[processor.ColCategory], topN)

	msg := fmt.Sprintf("购物行为分析完成(运行 %s)\n清洗: %d -> %d 行，去重 %d 条\n",
		res.RunID, res.Report.InputRows, res.Report.OutputRows, res.Report.DuplicatesRemoved)

	if len(top) > 0 {
		msg += fmt.Sprintf("营收第一品类: %s ($%.2f，并列按数据先后取第一)\n", top[0].Key, top[0].TotalAmount)
	}
	msg += fmt.Sprintf("客单价均值 $%.2f，年龄与消费相关系数 %.3f", res.Trend.MeanAmount, res.Trend.Correlation)
	return msg
}
