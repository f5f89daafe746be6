package storage

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LogLevel 定义日志级别类型
type LogLevel int

// 日志级别常量定义
const (
	DEBUG   LogLevel = iota // 调试信息
	INFO                    // 普通信息
	WARNING                 // 警告信息
	ERROR                   // 错误信息
	FATAL                   // 致命错误
)

// Logger 日志记录器结构体
// 同时写入文件并向订阅者广播，watch模式下前台可以实时看到流水线进度
type Logger struct {
	filename    string
	maxSize     int64
	file        *os.File
	mu          sync.Mutex
	subscribers []chan string
}

// NewLogger 创建新的日志记录器
// 参数:
//
//	filename: 日志文件路径
//	maxSize: 日志文件大小上限表达式，如 "10 * 1024 * 1024"
func NewLogger(filename, maxSize string) (*Logger, error) {
	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	return &Logger{
		filename: filename,
		maxSize:  eval(maxSize),
		file:     file,
	}, nil
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Log 记录日志方法
// 参数:
//
//	level: 日志级别
//	message: 日志消息内容
func (l *Logger) Log(level LogLevel, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// 格式化日志条目: [时间] 级别: 消息
	entry := fmt.Sprintf("[%s] %s: %s\n",
		time.Now().Format("2006-01-02 15:04:05"),
		level.String(),
		message)

	l.file.WriteString(entry)

	// 通知所有订阅者
	for _, ch := range l.subscribers {
		select {
		case ch <- entry:
		default: // 通道已满则跳过
		}
	}

	l.checkRotate()
}

// checkRotate 超过大小上限时轮转日志，调用方需持有锁
func (l *Logger) checkRotate() {
	if l.maxSize <= 0 {
		return
	}

	info, err := l.file.Stat()
	if err != nil || info.Size() <= l.maxSize {
		return
	}

	l.file.Close()
	os.Rename(l.filename, fmt.Sprintf("%s.%s", l.filename, time.Now().Format("20060102150405")))

	file, err := os.OpenFile(l.filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	l.file = file
}

// Subscribe 订阅日志消息
// 返回值:
//
//	<-chan string: 只读通道，用于接收日志消息
func (l *Logger) Subscribe() <-chan string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan string, 100)
	l.subscribers = append(l.subscribers, ch)
	return ch
}

// String 实现LogLevel的String方法
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// eval 解析形如 "10 * 1024 * 1024" 的大小表达式
func eval(expr string) int64 {
	if strings.TrimSpace(expr) == "" {
		return 0
	}
	parts := strings.Split(expr, " * ")
	var result int64 = 1
	for _, part := range parts {
		num, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0
		}
		result *= int64(num)
	}
	return result
}

// 以下是快捷日志方法
func (l *Logger) Debug(msg string)   { l.Log(DEBUG, msg) }
func (l *Logger) Info(msg string)    { l.Log(INFO, msg) }
func (l *Logger) Warning(msg string) { l.Log(WARNING, msg) }
func (l *Logger) Error(msg string)   { l.Log(ERROR, msg) }
func (l *Logger) Fatal(msg string)   { l.Log(FATAL, msg) }
