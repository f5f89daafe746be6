package processor

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"ShoppingBehavior/src/config"
	"ShoppingBehavior/src/storage"
	"ShoppingBehavior/src/utils"
)

// CapBound 记录某一列盖帽时使用的上下界，界由盖帽前的分布算出
type CapBound struct {
	Lower  float64
	Upper  float64
	Capped int
}

// CleaningReport 汇总一次清洗的全部动作，供日志、总览页和推送使用
type CleaningReport struct {
	InputRows         int
	OutputRows        int
	DuplicatesRemoved int
	MissingFilled     map[string]int
	Outliers          map[string]CapBound
}

// Cleaner 数据清洗器：去重、缺失值填充、IQR盖帽
// 清洗只会减少行数(去重)，不会新增行；列集合保持不变
type Cleaner struct {
	dcfg   *config.DataConfig
	logger *storage.Logger
}

func NewCleaner(dcfg *config.DataConfig, logger *storage.Logger) *Cleaner {
	return &Cleaner{dcfg: dcfg, logger: logger}
}

// Clean 按固定顺序执行清洗：去重 -> 缺失值填充 -> 业务域校验 -> 盖帽
// 校验放在填充之后，保证每一行都能构造出完整的Transaction
func (c *Cleaner) Clean(df dataframe.DataFrame) (dataframe.DataFrame, *CleaningReport, error) {
	report := &CleaningReport{
		InputRows:     df.Nrow(),
		MissingFilled: make(map[string]int),
		Outliers:      make(map[string]CapBound),
	}

	df, removed, err := c.dedup(df)
	if err != nil {
		return df, nil, err
	}
	report.DuplicatesRemoved = removed
	c.logger.Info(fmt.Sprintf("去除重复行 %d 条", removed))

	df, err = c.fillMissing(df, report)
	if err != nil {
		return df, nil, err
	}

	if err := ValidateRecords(df, c.dcfg); err != nil {
		return df, nil, err
	}

	df, err = c.capOutliers(df, report)
	if err != nil {
		return df, nil, err
	}

	report.OutputRows = df.Nrow()
	return df, report, nil
}

// dedup 去除完全重复的行，保留首次出现
func (c *Cleaner) dedup(df dataframe.DataFrame) (dataframe.DataFrame, int, error) {
	records := df.Records() // 第一行是表头
	seen := make(map[string]bool, len(records))
	var keep []int

	for i, row := range records[1:] {
		key := strings.Join(row, "\x1f")
		if seen[key] {
			continue
		}
		seen[key] = true
		keep = append(keep, i)
	}

	removed := df.Nrow() - len(keep)
	if removed == 0 {
		return df, 0, nil
	}

	out := df.Subset(keep)
	if out.Err != nil {
		return df, 0, fmt.Errorf("去重失败: %w", out.Err)
	}
	return out, removed, nil
}

// fillMissing 数值列用中位数填充，分类列用众数(或Unknown)填充
// 数值列在这里统一转成Float序列，后续聚合不再做字符串解析
func (c *Cleaner) fillMissing(df dataframe.DataFrame, report *CleaningReport) (dataframe.DataFrame, error) {
	numeric := make(map[string]bool, len(c.dcfg.NumericColumns))
	for _, col := range c.dcfg.NumericColumns {
		numeric[col] = true
	}

	for _, col := range c.dcfg.Columns {
		if !utils.HasColumn(df, col) {
			return df, &FormatError{Detail: fmt.Sprintf("缺少列 %q", col)}
		}

		if numeric[col] {
			vals, filled, err := c.fillNumeric(col, df.Col(col).Records())
			if err != nil {
				return df, err
			}
			if filled > 0 {
				report.MissingFilled[col] = filled
				c.logger.Info(fmt.Sprintf("%s: 中位数填充缺失值 %d 个", col, filled))
			}
			df = df.Mutate(series.New(vals, series.Float, col))
		} else {
			vals, filled := c.fillCategorical(df.Col(col).Records())
			if filled > 0 {
				report.MissingFilled[col] = filled
				c.logger.Info(fmt.Sprintf("%s: 填充缺失值 %d 个", col, filled))
			}
			df = df.Mutate(series.New(vals, series.String, col))
		}
		if df.Err != nil {
			return df, fmt.Errorf("填充 %s 失败: %w", col, df.Err)
		}
	}

	return df, nil
}

func (c *Cleaner) fillNumeric(col string, records []string) ([]float64, int, error) {
	vals := make([]float64, len(records))
	missing := make([]bool, len(records))
	var present []float64

	for i, r := range records {
		if c.dcfg.IsMissing(r) {
			missing[i] = true
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(r), 64)
		if err != nil {
			return nil, 0, &ValidationError{
				Row:    i + 1,
				Column: col,
				Value:  r,
				Reason: "不是数值",
			}
		}
		vals[i] = v
		present = append(present, v)
	}

	med := median(present)
	filled := 0
	for i := range vals {
		if missing[i] {
			vals[i] = med
			filled++
		}
	}
	return vals, filled, nil
}

func (c *Cleaner) fillCategorical(records []string) ([]string, int) {
	fill := "Unknown"
	if c.dcfg.CategoricalFill != "unknown" {
		if m, ok := mode(records, c.dcfg.IsMissing); ok {
			fill = m
		}
	}

	out := make([]string, len(records))
	filled := 0
	for i, r := range records {
		if c.dcfg.IsMissing(r) {
			out[i] = fill
			filled++
		} else {
			out[i] = r
		}
	}
	return out, filled
}

// capOutliers 按1.5倍IQR规则逐列盖帽，只改值不删行
// 上下界基于盖帽前的分布计算，列与列之间互不影响
func (c *Cleaner) capOutliers(df dataframe.DataFrame, report *CleaningReport) (dataframe.DataFrame, error) {
	for _, col := range c.dcfg.OutlierColumns {
		if !utils.HasColumn(df, col) {
			return df, &FormatError{Detail: fmt.Sprintf("盖帽目标列 %q 不存在", col)}
		}

		vals := df.Col(col).Float()
		q1 := quantile(vals, 0.25)
		q3 := quantile(vals, 0.75)
		iqr := q3 - q1
		lower := q1 - c.dcfg.IQRFactor*iqr
		upper := q3 + c.dcfg.IQRFactor*iqr

		capped := 0
		out := make([]float64, len(vals))
		for i, v := range vals {
			switch {
			case v < lower:
				out[i] = lower
				capped++
			case v > upper:
				out[i] = upper
				capped++
			default:
				out[i] = v
			}
		}

		report.Outliers[col] = CapBound{Lower: lower, Upper: upper, Capped: capped}
		if capped > 0 {
			c.logger.Info(fmt.Sprintf("%s: 盖帽异常值 %d 个，区间 [%.2f, %.2f]", col, capped, lower, upper))
		}

		df = df.Mutate(series.New(out, series.Float, col))
		if df.Err != nil {
			return df, fmt.Errorf("盖帽 %s 失败: %w", col, df.Err)
		}
	}
	return df, nil
}

// median 中位数，偶数个取中间两数均值
func median(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// mode 众数，出现次数相同时取字典序较小者，保证结果可复现
func mode(records []string, isMissing func(string) bool) (string, bool) {
	counts := make(map[string]int)
	for _, r := range records {
		if isMissing(r) {
			continue
		}
		counts[r]++
	}
	if len(counts) == 0 {
		return "", false
	}

	best := ""
	bestCount := -1
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best = v
			bestCount = n
		}
	}
	return best, true
}

// quantile 线性插值分位数，h = p*(n-1)
// 与原始报告使用的统计口径一致；gonum的stat.Quantile按经验CDF插值，
// 复现不出同样的盖帽边界，所以这里自行实现
func quantile(vals []float64, p float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)

	h := p * float64(len(s)-1)
	lo := int(math.Floor(h))
	if lo >= len(s)-1 {
		return s[len(s)-1]
	}
	frac := h - float64(lo)
	return s[lo] + frac*(s[lo+1]-s[lo])
}
