package file

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShoppingBehavior/src/config"
	"ShoppingBehavior/src/processor"
)

var testColumns = []string{
	processor.ColCustomerID, processor.ColAge, processor.ColGender,
	processor.ColItemPurchased, processor.ColCategory, processor.ColPurchaseAmount,
	processor.ColLocation, processor.ColSize, processor.ColColor, processor.ColSeason,
	processor.ColReviewRating, processor.ColSubscription, processor.ColShippingType,
	processor.ColDiscountApplied, processor.ColPromoCodeUsed, processor.ColPreviousPurchases,
	processor.ColPaymentMethod, processor.ColFrequency,
}

func testDataConfig() *config.DataConfig {
	return &config.DataConfig{Columns: testColumns}
}

func writeCSV(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func sampleRow(id string) string {
	return id + `,30,Male,Sweater,Clothing,50,Kentucky,M,Gray,Winter,3.5,Yes,Express,No,No,14,Venmo,Fortnightly`
}

func quoteHeader(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = `"` + c + `"`
	}
	return strings.Join(quoted, ",")
}

func TestLoadDatasetCSV(t *testing.T) {
	path := writeCSV(t, "shopping.csv",
		quoteHeader(testColumns),
		sampleRow("1"),
		sampleRow("2"),
	)

	df, err := LoadDataset(path, "", testDataConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, testColumns, df.Names())
	// 所有列按字符串读入，数值解析留给清洗阶段
	assert.Equal(t, "50", df.Col(processor.ColPurchaseAmount).Records()[0])
}

func TestLoadDatasetMissingFile(t *testing.T) {
	_, err := LoadDataset(filepath.Join(t.TempDir(), "nope.csv"), "", testDataConfig())
	require.Error(t, err)

	var ioErr *processor.IOError
	assert.True(t, errors.As(err, &ioErr))
}

func TestLoadDatasetUnsupportedExtension(t *testing.T) {
	_, err := LoadDataset("shopping.json", "", testDataConfig())
	require.Error(t, err)

	var fmtErr *processor.FormatError
	assert.True(t, errors.As(err, &fmtErr))
}

func TestCheckSchemaRejectsMissingColumn(t *testing.T) {
	header := quoteHeader(testColumns[:len(testColumns)-1])
	row := sampleRow("1")
	row = row[:strings.LastIndex(row, ",")] // 同样少一列
	path := writeCSV(t, "short.csv", header, row)

	_, err := LoadDataset(path, "", testDataConfig())
	require.Error(t, err)

	var fmtErr *processor.FormatError
	require.True(t, errors.As(err, &fmtErr))
	assert.Contains(t, fmtErr.Error(), "列数不匹配")
}

func TestCheckSchemaRejectsReorderedColumns(t *testing.T) {
	cols := append([]string(nil), testColumns...)
	cols[0], cols[1] = cols[1], cols[0]
	path := writeCSV(t, "reordered.csv", quoteHeader(cols), sampleRow("1"))

	_, err := LoadDataset(path, "", testDataConfig())
	require.Error(t, err)

	var fmtErr *processor.FormatError
	assert.True(t, errors.As(err, &fmtErr))
}

func TestReadCleanedCSVSkipsSchemaCheck(t *testing.T) {
	content := "A,B\n1,x\n2,y\n"
	df := ReadCleanedCSV(strings.NewReader(content))
	require.NoError(t, df.Err)
	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, []string{"A", "B"}, df.Names())
}

func TestIsDatasetFile(t *testing.T) {
	assert.True(t, isDatasetFile("/data/shopping.csv"))
	assert.True(t, isDatasetFile("/data/Shopping.XLSX"))
	assert.False(t, isDatasetFile("/data/~$shopping.xlsx")) // excel临时文件
	assert.False(t, isDatasetFile("/data/shopping.json"))
	assert.False(t, isDatasetFile("/data/app.log"))
}

func TestFileMonitorTriggersOnNewDataset(t *testing.T) {
	dir := t.TempDir()
	monitor, err := NewFileMonitor(dir)
	require.NoError(t, err)
	defer monitor.Close()

	got := make(chan string, 1)
	go monitor.Watch(func(path string) {
		select {
		case got <- path:
		default:
		}
	})

	target := filepath.Join(dir, "fresh.csv")
	require.NoError(t, os.WriteFile(target, []byte("a,b\n1,2\n"), 0644))

	select {
	case path := <-got:
		assert.Equal(t, target, path)
	case <-time.After(3 * time.Second):
		t.Fatal("监控未在期限内触发")
	}
}

func TestNewFileMonitorMissingDir(t *testing.T) {
	_, err := NewFileMonitor(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
