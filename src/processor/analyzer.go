package processor

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/stat"

	"ShoppingBehavior/src/config"
	"ShoppingBehavior/src/utils"
)

// Dimensions 一维汇总覆盖的分类维度，顺序即报告中的出现顺序
var Dimensions = []string{
	ColCategory,
	ColGender,
	ColAgeGroup,
	ColSeason,
	ColPaymentMethod,
}

// SummaryRow 某个分组键的聚合结果
type SummaryRow struct {
	Key         string
	Count       int
	TotalAmount float64
	AvgAmount   float64
	AvgRating   float64
}

// Matrix 两维汇总(季节 x 品类)的营收矩阵，行列顺序为首次出现顺序
type Matrix struct {
	RowKeys []string
	ColKeys []string
	Cells   [][]float64
}

// TrendStats 年龄与消费金额的线性关系，替代原报告中的回归散点图
type TrendStats struct {
	Slope       float64
	Intercept   float64
	Correlation float64
	MeanAmount  float64
	StdAmount   float64
}

// Overview 数据集概览
type Overview struct {
	Rows     int
	Cols     int
	Distinct map[string]int
}

// Analyzer 聚合分析器，消费清洗并派生后的只读表
type Analyzer struct {
	dcfg *config.DataConfig
}

func NewAnalyzer(dcfg *config.DataConfig) *Analyzer {
	return &Analyzer{dcfg: dcfg}
}

// Summarize 对单个维度做count/sum/mean聚合
// 没有行的键不会出现在结果里；键序为在表中的首次出现顺序
func (a *Analyzer) Summarize(df dataframe.DataFrame, dim string) ([]SummaryRow, error) {
	if !utils.HasColumn(df, dim) {
		return nil, &FormatError{Detail: fmt.Sprintf("汇总维度 %q 不存在", dim)}
	}

	keys := df.Col(dim).Records()
	amounts := df.Col(ColPurchaseAmount).Float()
	ratings := df.Col(ColReviewRating).Float()

	type acc struct {
		count     int
		amountSum float64
		ratingSum float64
	}
	accs := make(map[string]*acc)
	var order []string

	for i, k := range keys {
		v, ok := accs[k]
		if !ok {
			v = &acc{}
			accs[k] = v
			order = append(order, k)
		}
		v.count++
		v.amountSum += amounts[i]
		v.ratingSum += ratings[i]
	}

	rows := make([]SummaryRow, 0, len(order))
	for _, k := range order {
		v := accs[k]
		rows = append(rows, SummaryRow{
			Key:         k,
			Count:       v.count,
			TotalAmount: v.amountSum,
			AvgAmount:   v.amountSum / float64(v.count),
			AvgRating:   v.ratingSum / float64(v.count),
		})
	}
	return rows, nil
}

// SeasonCategoryMatrix 计算季节x品类的营收矩阵，供热力图页使用
func (a *Analyzer) SeasonCategoryMatrix(df dataframe.DataFrame) (*Matrix, error) {
	seasons := df.Col(ColSeason).Records()
	categories := df.Col(ColCategory).Records()
	amounts := df.Col(ColPurchaseAmount).Float()

	rowIdx := make(map[string]int)
	colIdx := make(map[string]int)
	m := &Matrix{}

	for i := range seasons {
		r, ok := rowIdx[seasons[i]]
		if !ok {
			r = len(m.RowKeys)
			rowIdx[seasons[i]] = r
			m.RowKeys = append(m.RowKeys, seasons[i])
			m.Cells = append(m.Cells, make([]float64, len(m.ColKeys)))
		}
		c, ok := colIdx[categories[i]]
		if !ok {
			c = len(m.ColKeys)
			colIdx[categories[i]] = c
			m.ColKeys = append(m.ColKeys, categories[i])
			for j := range m.Cells {
				m.Cells[j] = append(m.Cells[j], 0)
			}
		}
		m.Cells[r][c] += amounts[i]
	}

	if len(m.RowKeys) == 0 {
		return nil, fmt.Errorf("没有可汇总的数据行")
	}
	return m, nil
}

// TopN 按营收降序取前n名
// 并列时保留清洗后表中的先后顺序(稳定排序)，报告页会注明这一规则
func TopN(rows []SummaryRow, n int) []SummaryRow {
	out := append([]SummaryRow(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalAmount > out[j].TotalAmount
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Reconcile 核对分组营收之和与总营收一致(浮点容差内)
func (a *Analyzer) Reconcile(rows []SummaryRow, df dataframe.DataFrame) error {
	var grouped float64
	for _, r := range rows {
		grouped += r.TotalAmount
	}

	var total float64
	for _, v := range df.Col(ColPurchaseAmount).Float() {
		total += v
	}

	if math.Abs(grouped-total) > 1e-6*math.Max(1, math.Abs(total)) {
		return fmt.Errorf("汇总对账失败: 分组合计 %.6f != 总计 %.6f", grouped, total)
	}
	return nil
}

// AgeSpendTrend 年龄与消费金额的相关性与一元回归
func (a *Analyzer) AgeSpendTrend(df dataframe.DataFrame) TrendStats {
	ages := df.Col(ColAge).Float()
	amounts := df.Col(ColPurchaseAmount).Float()

	alpha, beta := stat.LinearRegression(ages, amounts, nil, false)
	return TrendStats{
		Slope:       beta,
		Intercept:   alpha,
		Correlation: stat.Correlation(ages, amounts, nil),
		MeanAmount:  stat.Mean(amounts, nil),
		StdAmount:   stat.StdDev(amounts, nil),
	}
}

// DatasetOverview 行列数与各维度的去重计数
func (a *Analyzer) DatasetOverview(df dataframe.DataFrame) Overview {
	ov := Overview{
		Rows:     df.Nrow(),
		Cols:     df.Ncol(),
		Distinct: make(map[string]int),
	}

	for _, dim := range Dimensions {
		if !utils.HasColumn(df, dim) {
			continue
		}
		seen := make(map[string]bool)
		for _, v := range df.Col(dim).Records() {
			seen[v] = true
		}
		ov.Distinct[dim] = len(seen)
	}
	return ov
}
