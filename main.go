package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron"

	"ShoppingBehavior/src/config"
	"ShoppingBehavior/src/datapush"
	"ShoppingBehavior/src/datasource/email"
	"ShoppingBehavior/src/datasource/file"
	"ShoppingBehavior/src/processor"
	"ShoppingBehavior/src/report"
	"ShoppingBehavior/src/storage"
	"ShoppingBehavior/src/utils"
)

func main() {
	jsonFolder := "./config"
	jsonFile := "config.json"
	dataJsonFile := "dataconfig.json"
	cfg, dcfg, err := config.LoadConfig(jsonFolder, jsonFile, dataJsonFile)
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName, cfg.LogMaxSize)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Close()

	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	input := cfg.Data.InputFile
	if len(args) > 0 {
		input = args[0]
	}

	switch cmd {
	case "run":
		// 清洗 -> 派生 -> 聚合 -> 报告，一遍跑完
		if err := runOnce(cfg, dcfg, logger, input); err != nil {
			fail(logger, err)
		}
	case "clean":
		if err := cleanOnly(cfg, dcfg, logger, input); err != nil {
			fail(logger, err)
		}
	case "analyze":
		if err := analyzeOnly(cfg, dcfg, logger); err != nil {
			fail(logger, err)
		}
	case "watch":
		if err := watch(cfg, dcfg, logger); err != nil {
			fail(logger, err)
		}
	case "sendmail":
		dashboard := filepath.Join(cfg.Data.ReportsDir, "dashboard.xlsx")
		if err := email.SendReport(cfg, dashboard, "本期购物行为分析仪表盘见附件。"); err != nil {
			fail(logger, err)
		}
		logger.Info("报告邮件已发送")
	default:
		fmt.Fprintf(os.Stderr, "用法: %s [run|clean|analyze|watch|sendmail] [数据文件]\n", os.Args[0])
		os.Exit(2)
	}
}

// fail 打印一条定位到失败阶段的诊断信息并以非零码退出
// 批处理中任何错误都是致命的，不保留半成品产物
func fail(logger *storage.Logger, err error) {
	logger.Error(err.Error())
	fmt.Fprintln(os.Stderr, "错误:", err)
	os.Exit(1)
}

// runOnce 对单个数据文件执行完整流水线
func runOnce(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger, input string) error {
	df, err := file.LoadDataset(input, cfg.Data.SheetName, dcfg)
	if err != nil {
		return fmt.Errorf("加载阶段: %w", err)
	}

	p := processor.NewPipeline(dcfg, logger)
	res, err := p.Run(df)
	if err != nil {
		return err
	}

	w := report.NewWriter(cfg, dcfg, logger)
	if _, err := w.WriteAll(res); err != nil {
		return fmt.Errorf("报告阶段: %w", err)
	}

	// 推送只是通知渠道，失败降级为警告，不影响已落盘的产物
	summary := report.BuildSummaryText(res, dcfg.TopN)
	if err := datapush.PushRunSummary(cfg.Webhook, summary); err != nil {
		logger.Warning("推送运行摘要失败: " + err.Error())
	}
	return nil
}

// cleanOnly 只输出清洗并派生后的数据集
func cleanOnly(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger, input string) error {
	df, err := file.LoadDataset(input, cfg.Data.SheetName, dcfg)
	if err != nil {
		return fmt.Errorf("加载阶段: %w", err)
	}

	p := processor.NewPipeline(dcfg, logger)
	cleaned, _, err := p.CleanOnly(df)
	if err != nil {
		return err
	}

	w := report.NewWriter(cfg, dcfg, logger)
	if err := w.WriteCleanedCSV(cleaned); err != nil {
		return fmt.Errorf("报告阶段: %w", err)
	}
	logger.Info("清洗后数据已写入 " + cfg.Data.CleanedFile)

	// 顺手给下游一份同名的excel副本
	xlsxPath := strings.TrimSuffix(cfg.Data.CleanedFile, filepath.Ext(cfg.Data.CleanedFile)) + ".xlsx"
	if err := utils.SaveToExcel(cleaned, xlsxPath, report.SheetCleaned); err != nil {
		return fmt.Errorf("报告阶段: %w", err)
	}
	logger.Info("清洗后数据已写入 " + xlsxPath)
	return nil
}

// analyzeOnly 消费已清洗的数据集，重建汇总与仪表盘
func analyzeOnly(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) error {
	f, err := os.Open(cfg.Data.CleanedFile)
	if err != nil {
		return fmt.Errorf("加载阶段: %w",
			&processor.IOError{Op: "读取", Path: cfg.Data.CleanedFile, Err: err})
	}
	defer f.Close()

	df := file.ReadCleanedCSV(f)
	if df.Err != nil {
		return fmt.Errorf("加载阶段: 清洗后数据解析失败: %w", df.Err)
	}

	p := processor.NewPipeline(dcfg, logger)
	summaries, matrix, trend, overview, err := p.Analyze(df)
	if err != nil {
		return err
	}

	res := &processor.RunResult{
		StartedAt: time.Now(),
		Cleaned:   df,
		Report:    &processor.CleaningReport{InputRows: df.Nrow(), OutputRows: df.Nrow()},
		Summaries: summaries,
		Matrix:    matrix,
		Trend:     trend,
		Overview:  overview,
	}

	w := report.NewWriter(cfg, dcfg, logger)
	if err := os.MkdirAll(cfg.Data.ReportsDir, 0755); err != nil {
		return &processor.IOError{Op: "创建", Path: cfg.Data.ReportsDir, Err: err}
	}
	if _, err := w.WriteDashboard(res); err != nil {
		return fmt.Errorf("报告阶段: %w", err)
	}
	logger.Info("仪表盘已重建")
	return nil
}

// watch 常驻模式：fsnotify盯数据目录，cron定时查收数据集邮件
// 两条路都只是重新触发一次完整的批处理
func watch(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) error {
	monitor, err := file.NewFileMonitor(cfg.Data.WatchDir)
	if err != nil {
		return fmt.Errorf("创建文件监控失败: %w", err)
	}
	defer monitor.Close()

	go func() {
		err := monitor.Watch(func(path string) {
			logger.Info("检测到数据文件更新: " + path)
			if err := runOnce(cfg, dcfg, logger, path); err != nil {
				logger.Error("处理更新文件失败: " + err.Error())
			}
		})
		if err != nil {
			logger.Error("文件监控异常退出: " + err.Error())
		}
	}()

	// 邮箱地址，用户名和密码
	emailClient := email.NewEmailClient(
		cfg.Email.Server,
		cfg.Email.Username,
		cfg.Email.Password)
	handler := email.NewDatasetAttachmentHandler(cfg.Email.TargetSubject, cfg.Data.WatchDir)

	c := cron.New()
	interval := time.Duration(cfg.Data.CheckInterval).String()
	cronSpec := fmt.Sprintf("@every %s", interval)

	err = c.AddFunc(cronSpec, func() {
		logger.Info(fmt.Sprintf("开始定时检查邮箱(间隔: %v)...", cronSpec))

		savedPath, err := email.CheckAndProcessEmails(emailClient, handler, logger)
		if err != nil {
			logger.Error("检查处理邮件失败: " + err.Error())
			return
		}
		if savedPath == "" {
			return
		}

		// 新数据集落盘后fsnotify会接手触发流水线，这里只负责落盘日志
		logger.Info("收到新数据集: " + savedPath)
	})
	if err != nil {
		return fmt.Errorf("创建定时任务失败: %w", err)
	}

	c.Start()
	defer c.Stop()

	logger.Info(fmt.Sprintf("监控已启动(邮箱检查间隔: %v)，按Ctrl+C退出", interval))
	select {}
}
