package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	Data struct {
		InputFile     string   `json:"input_file"`     // 原始数据集路径(csv或xlsx)
		SheetName     string   `json:"sheet_name"`     // xlsx数据集使用的工作表名
		CleanedFile   string   `json:"cleaned_file"`   // 清洗后数据集的输出路径
		ReportsDir    string   `json:"reports_dir"`    // 汇总表与仪表盘的输出目录
		WatchDir      string   `json:"watch_dir"`      // watch模式下监控的数据目录
		CheckInterval Duration `json:"check_interval"` // watch模式下检查邮箱的间隔时间
	} `json:"data"`

	Email struct {
		Server        string `json:"server"`         // IMAP服务器地址
		Username      string `json:"username"`       // 邮箱用户名
		Password      string `json:"password"`       // 邮箱密码(建议用环境变量覆盖)
		TargetSubject string `json:"target_subject"` // 数据集邮件的主题关键字
	} `json:"email"`

	SendEmail struct {
		Server   string `json:"server"`   // SMTP服务器地址
		Username string `json:"username"` // 发件邮箱
		Password string `json:"password"` // 发件密码(建议用环境变量覆盖)
		To       string `json:"to"`       // 仪表盘接收人
		Subject  string `json:"subject"`  // 报告邮件主题
	} `json:"send_email"`

	Webhook    string `json:"webhook"` // 钉钉机器人webhook地址，为空则不推送
	LogName    string `json:"log_name"`
	LogMaxSize string `json:"log_max_size"`
}

// DataConfig 描述数据集本身：列结构、分桶边界与清洗参数
// 报告中的分桶阈值属于配置而不是代码，修改这里即可复现别的分桶方案
type DataConfig struct {
	Columns        []string `json:"columns"`         // 期望的18个列名，顺序即文件列序
	NumericColumns []string `json:"numeric_columns"` // 数值列(中位数填充的对象)
	OutlierColumns []string `json:"outlier_columns"` // 需要IQR盖帽的数值列
	IQRFactor      float64  `json:"iqr_factor"`      // 盖帽系数，默认1.5

	MissingTokens   []string `json:"missing_tokens"`   // 视为缺失值的单元格内容
	CategoricalFill string   `json:"categorical_fill"` // 分类列填充策略: mode 或 unknown

	AgeCuts      []float64 `json:"age_cuts"`      // 年龄分桶右开边界
	AgeLabels    []string  `json:"age_labels"`    // 年龄分桶标签，比边界多一个
	AmountCuts   []float64 `json:"amount_cuts"`   // 消费金额分桶右开边界
	AmountLabels []string  `json:"amount_labels"` // 消费金额分桶标签

	RepeatThreshold float64 `json:"repeat_threshold"` // 历史购买次数达到该值视为回头客
	TopN            int     `json:"top_n"`            // 排行榜条目数
}

// credentials 允许用环境变量覆盖JSON中的邮箱凭据，避免密码入库
type credentials struct {
	ImapPassword string `envconfig:"IMAP_PASSWORD"`
	SmtpPassword string `envconfig:"SMTP_PASSWORD"`
	Webhook      string `envconfig:"WEBHOOK"`
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
)

func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, nil, err
	}

	if err := dcfg.check(); err != nil {
		return nil, nil, fmt.Errorf("数据配置不合法: %w", err)
	}

	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

// applyEnvOverrides 先加载.env文件，再用SHOPPING_前缀的环境变量覆盖凭据
func applyEnvOverrides(cfg *Config) error {
	_ = godotenv.Load() // .env不存在不算错误

	var creds credentials
	if err := envconfig.Process("shopping", &creds); err != nil {
		return fmt.Errorf("读取环境变量失败: %w", err)
	}

	if creds.ImapPassword != "" {
		cfg.Email.Password = creds.ImapPassword
	}
	if creds.SmtpPassword != "" {
		cfg.SendEmail.Password = creds.SmtpPassword
	}
	if creds.Webhook != "" {
		cfg.Webhook = creds.Webhook
	}
	return nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// check 校验分桶边界与标签的对应关系，并补齐默认参数
func (dc *DataConfig) check() error {
	if len(dc.Columns) == 0 {
		return fmt.Errorf("columns 不能为空")
	}
	if len(dc.AgeLabels) != len(dc.AgeCuts)+1 {
		return fmt.Errorf("age_labels 数量应为 age_cuts + 1，当前 %d/%d",
			len(dc.AgeLabels), len(dc.AgeCuts))
	}
	if len(dc.AmountLabels) != len(dc.AmountCuts)+1 {
		return fmt.Errorf("amount_labels 数量应为 amount_cuts + 1，当前 %d/%d",
			len(dc.AmountLabels), len(dc.AmountCuts))
	}
	if dc.IQRFactor <= 0 {
		dc.IQRFactor = 1.5
	}
	if dc.RepeatThreshold <= 0 {
		dc.RepeatThreshold = 10
	}
	if dc.TopN <= 0 {
		dc.TopN = 8
	}
	return nil
}

// IsMissing 判断单元格内容是否视为缺失
func (dc *DataConfig) IsMissing(v string) bool {
	if v == "" {
		return true
	}
	for _, tok := range dc.MissingTokens {
		if v == tok {
			return true
		}
	}
	return false
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
