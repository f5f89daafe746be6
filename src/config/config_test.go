package config

import (
	"encoding/json"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	cfg, dcfg, err := LoadConfig("../../config", "config.json", "dataconfig.json")
	if err != nil {
		t.Fatal("加载配置失败:", err)
	}

	if cfg.Data.InputFile == "" {
		t.Error("input_file 不应为空")
	}
	if cfg.Data.ReportsDir == "" {
		t.Error("reports_dir 不应为空")
	}
	if len(dcfg.Columns) != 18 {
		t.Errorf("期望18个数据列，实际 %d 个", len(dcfg.Columns))
	}
	if len(dcfg.AgeLabels) != len(dcfg.AgeCuts)+1 {
		t.Error("年龄分桶标签数应比边界数多一个")
	}
	if dcfg.IQRFactor != 1.5 {
		t.Errorf("盖帽系数应为1.5，实际 %v", dcfg.IQRFactor)
	}
	if time.Duration(cfg.Data.CheckInterval) <= 0 {
		t.Error("check_interval 应为正的时间间隔")
	}
}

func TestDurationUnmarshal(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`"5m"`), &d); err != nil {
		t.Fatal(err)
	}
	if time.Duration(d) != 5*time.Minute {
		t.Errorf("期望5m，实际 %v", time.Duration(d))
	}

	if err := json.Unmarshal([]byte(`"not-a-duration"`), &d); err == nil {
		t.Error("非法时间间隔应当报错")
	}
}

func TestDataConfigCheck(t *testing.T) {
	dc := &DataConfig{
		Columns:      []string{"A"},
		AgeCuts:      []float64{20, 35, 55},
		AgeLabels:    []string{"Teen", "Young Adult", "Adult", "Senior"},
		AmountCuts:   []float64{30, 50, 75, 100},
		AmountLabels: []string{"Very Low", "Low", "Medium", "High", "Very High"},
	}
	if err := dc.check(); err != nil {
		t.Fatal(err)
	}

	// 默认值补齐
	if dc.IQRFactor != 1.5 || dc.RepeatThreshold != 10 || dc.TopN != 8 {
		t.Errorf("默认参数未补齐: %v %v %v", dc.IQRFactor, dc.RepeatThreshold, dc.TopN)
	}

	bad := &DataConfig{
		Columns:      []string{"A"},
		AgeCuts:      []float64{20, 35},
		AgeLabels:    []string{"Teen"},
		AmountCuts:   []float64{30},
		AmountLabels: []string{"Low", "High"},
	}
	if err := bad.check(); err == nil {
		t.Error("标签数量不匹配应当报错")
	}

	empty := &DataConfig{}
	if err := empty.check(); err == nil {
		t.Error("空列清单应当报错")
	}
}

func TestIsMissing(t *testing.T) {
	dc := &DataConfig{MissingTokens: []string{"NA", "N/A", "null"}}

	for _, v := range []string{"", "NA", "N/A", "null"} {
		if !dc.IsMissing(v) {
			t.Errorf("%q 应视为缺失", v)
		}
	}
	for _, v := range []string{"0", "Male", "na"} {
		if dc.IsMissing(v) {
			t.Errorf("%q 不应视为缺失", v)
		}
	}
}
