package processor

import (
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/google/uuid"

	"ShoppingBehavior/src/config"
	"ShoppingBehavior/src/storage"
)

// RunResult 一次完整流水线的全部产物，report包据此落盘
type RunResult struct {
	RunID     string
	StartedAt time.Time
	Elapsed   time.Duration

	Cleaned   dataframe.DataFrame
	Report    *CleaningReport
	Summaries map[string][]SummaryRow
	Matrix    *Matrix
	Trend     TrendStats
	Overview  Overview
}

// Pipeline 清洗->派生->聚合的单遍流水线
// 每个阶段都是表到表的纯函数，顺序执行一次，任何错误都终止本次运行
type Pipeline struct {
	dcfg    *config.DataConfig
	logger  *storage.Logger
	cleaner *Cleaner
	deriver *FeatureDeriver
	analyst *Analyzer
}

func NewPipeline(dcfg *config.DataConfig, logger *storage.Logger) *Pipeline {
	return &Pipeline{
		dcfg:    dcfg,
		logger:  logger,
		cleaner: NewCleaner(dcfg, logger),
		deriver: NewFeatureDeriver(dcfg),
		analyst: NewAnalyzer(dcfg),
	}
}

// CleanOnly 只执行清洗与派生，对应clean子命令
func (p *Pipeline) CleanOnly(df dataframe.DataFrame) (dataframe.DataFrame, *CleaningReport, error) {
	cleaned, report, err := p.cleaner.Clean(df)
	if err != nil {
		return cleaned, nil, fmt.Errorf("清洗阶段: %w", err)
	}

	cleaned, err = p.deriver.Derive(cleaned)
	if err != nil {
		return cleaned, nil, fmt.Errorf("特征派生阶段: %w", err)
	}
	return cleaned, report, nil
}

// Analyze 在已清洗并派生的表上做全部聚合，对应analyze子命令
func (p *Pipeline) Analyze(cleaned dataframe.DataFrame) (map[string][]SummaryRow, *Matrix, TrendStats, Overview, error) {
	summaries := make(map[string][]SummaryRow, len(Dimensions))
	for _, dim := range Dimensions {
		rows, err := p.analyst.Summarize(cleaned, dim)
		if err != nil {
			return nil, nil, TrendStats{}, Overview{}, fmt.Errorf("聚合阶段(%s): %w", dim, err)
		}
		if err := p.analyst.Reconcile(rows, cleaned); err != nil {
			return nil, nil, TrendStats{}, Overview{}, fmt.Errorf("聚合阶段(%s): %w", dim, err)
		}
		summaries[dim] = rows
	}

	matrix, err := p.analyst.SeasonCategoryMatrix(cleaned)
	if err != nil {
		return nil, nil, TrendStats{}, Overview{}, fmt.Errorf("聚合阶段(季节x品类): %w", err)
	}

	return summaries, matrix, p.analyst.AgeSpendTrend(cleaned), p.analyst.DatasetOverview(cleaned), nil
}

// Run 执行完整流水线
func (p *Pipeline) Run(df dataframe.DataFrame) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	p.logger.Info(fmt.Sprintf("[%s] 流水线开始，输入 %d 行 %d 列", result.RunID, df.Nrow(), df.Ncol()))

	cleaned, report, err := p.CleanOnly(df)
	if err != nil {
		return nil, err
	}
	result.Cleaned = cleaned
	result.Report = report
	p.logger.Info(fmt.Sprintf("[%s] 清洗完成，剩余 %d 行", result.RunID, cleaned.Nrow()))

	summaries, matrix, trend, overview, err := p.Analyze(cleaned)
	if err != nil {
		return nil, err
	}
	result.Summaries = summaries
	result.Matrix = matrix
	result.Trend = trend
	result.Overview = overview

	result.Elapsed = time.Since(result.StartedAt)
	p.logger.Info(fmt.Sprintf("[%s] 流水线完成，耗时 %v", result.RunID, result.Elapsed))
	return result, nil
}

// Analyzer 暴露给报告层复用排行榜逻辑
func (p *Pipeline) Analyzer() *Analyzer { return p.analyst }
