package processor

import (
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShoppingBehavior/src/config"
)

// analyzerFrame 三个品类、两个季节的小样本，金额方便手算
func analyzerFrame(t *testing.T, dcfg *config.DataConfig) dataframe.DataFrame {
	return testFrame(t, dcfg,
		testRow("1", "20", "Male", "Clothing", "10", "Winter", "4.0", "No", "No", "5"),
		testRow("2", "30", "Female", "Clothing", "20", "Winter", "2.0", "No", "No", "5"),
		testRow("3", "40", "Male", "Footwear", "30", "Summer", "3.0", "No", "No", "5"),
		testRow("4", "50", "Female", "Accessories", "40", "Summer", "5.0", "No", "No", "5"),
	)
}

func TestSummarizeCountSumMean(t *testing.T) {
	dcfg := testDataConfig()
	a := NewAnalyzer(dcfg)

	rows, err := a.Summarize(analyzerFrame(t, dcfg), ColCategory)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// 键序为首次出现顺序
	assert.Equal(t, "Clothing", rows[0].Key)
	assert.Equal(t, 2, rows[0].Count)
	assert.InDelta(t, 30.0, rows[0].TotalAmount, 1e-9)
	assert.InDelta(t, 15.0, rows[0].AvgAmount, 1e-9)
	assert.InDelta(t, 3.0, rows[0].AvgRating, 1e-9)

	assert.Equal(t, "Footwear", rows[1].Key)
	assert.Equal(t, "Accessories", rows[2].Key)
}

func TestSummarizeUnknownDimension(t *testing.T) {
	dcfg := testDataConfig()
	_, err := NewAnalyzer(dcfg).Summarize(analyzerFrame(t, dcfg), "No Such Column")
	require.Error(t, err)
	assert.IsType(t, &FormatError{}, err)
}

func TestReconcileGroupTotals(t *testing.T) {
	dcfg := testDataConfig()
	a := NewAnalyzer(dcfg)
	df := analyzerFrame(t, dcfg)

	rows, err := a.Summarize(df, ColCategory)
	require.NoError(t, err)
	assert.NoError(t, a.Reconcile(rows, df))

	// 篡改一个分组合计后对账必须失败
	rows[0].TotalAmount += 1
	assert.Error(t, a.Reconcile(rows, df))
}

func TestTopNStableOnTies(t *testing.T) {
	rows := []SummaryRow{
		{Key: "A", TotalAmount: 100},
		{Key: "B", TotalAmount: 300},
		{Key: "C", TotalAmount: 100},
		{Key: "D", TotalAmount: 200},
	}

	top := TopN(rows, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "B", top[0].Key)
	assert.Equal(t, "D", top[1].Key)
	// A与C并列，保留原有先后顺序
	assert.Equal(t, "A", top[2].Key)

	// 入参不被改动
	assert.Equal(t, "A", rows[0].Key)

	all := TopN(rows, 0)
	assert.Len(t, all, 4)
}

func TestSeasonCategoryMatrixSums(t *testing.T) {
	dcfg := testDataConfig()
	m, err := NewAnalyzer(dcfg).SeasonCategoryMatrix(analyzerFrame(t, dcfg))
	require.NoError(t, err)

	assert.Equal(t, []string{"Winter", "Summer"}, m.RowKeys)
	assert.Equal(t, []string{"Clothing", "Footwear", "Accessories"}, m.ColKeys)

	assert.InDelta(t, 30.0, m.Cells[0][0], 1e-9) // Winter x Clothing
	assert.InDelta(t, 0.0, m.Cells[0][1], 1e-9)
	assert.InDelta(t, 30.0, m.Cells[1][1], 1e-9) // Summer x Footwear
	assert.InDelta(t, 40.0, m.Cells[1][2], 1e-9) // Summer x Accessories

	var total float64
	for _, row := range m.Cells {
		for _, v := range row {
			total += v
		}
	}
	assert.InDelta(t, 100.0, total, 1e-9)
}

func TestAgeSpendTrendOnPerfectLine(t *testing.T) {
	dcfg := testDataConfig()
	df := testFrame(t, dcfg,
		testRow("1", "20", "Male", "Clothing", "10", "Winter", "3.0", "No", "No", "5"),
		testRow("2", "30", "Male", "Clothing", "20", "Winter", "3.0", "No", "No", "5"),
		testRow("3", "40", "Male", "Clothing", "30", "Winter", "3.0", "No", "No", "5"),
	)

	trend := NewAnalyzer(dcfg).AgeSpendTrend(df)
	assert.InDelta(t, 1.0, trend.Slope, 1e-9)
	assert.InDelta(t, -10.0, trend.Intercept, 1e-9)
	assert.InDelta(t, 1.0, trend.Correlation, 1e-9)
	assert.InDelta(t, 20.0, trend.MeanAmount, 1e-9)
}

func TestDatasetOverviewDistinctCounts(t *testing.T) {
	dcfg := testDataConfig()
	df := analyzerFrame(t, dcfg)

	derived, err := NewFeatureDeriver(dcfg).Derive(df)
	require.NoError(t, err)

	ov := NewAnalyzer(dcfg).DatasetOverview(derived)
	assert.Equal(t, 4, ov.Rows)
	assert.Equal(t, 23, ov.Cols) // 18原始列 + 5派生列
	assert.Equal(t, 3, ov.Distinct[ColCategory])
	assert.Equal(t, 2, ov.Distinct[ColGender])
	assert.Equal(t, 2, ov.Distinct[ColSeason])
}
