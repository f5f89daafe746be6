package datapush

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// 常量定义
const (
	RETRY_TIMES    = 5
	RETRY_INTERVAL = 2 * time.Second
	PUSH_TIMEOUT   = 10 * time.Second
)

// 钉钉 API 响应结构体
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// PushRunSummary 把一次运行的摘要推送到钉钉机器人webhook
// webhook为空表示未配置推送，直接跳过
func PushRunSummary(webhook, content string) error {
	if webhook == "" {
		return nil
	}
	return retry(func() error {
		return sendDingMessage(webhook, content)
	}, RETRY_TIMES, RETRY_INTERVAL)
}

// sendDingMessage 发送钉钉文本消息
func sendDingMessage(webhook, content string) error {
	payload := map[string]interface{}{
		"msgtype": "text",
		"text": map[string]string{
			"content": content,
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %v", err)
	}

	req, err := http.NewRequest("POST", webhook, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("创建请求失败: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: PUSH_TIMEOUT}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %v", err)
	}

	var result DingTalkResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("解析响应失败: %v", err)
	}

	if result.ErrCode != 0 {
		return fmt.Errorf("发送消息失败: %s", result.ErrMsg)
	}

	return nil
}

// retry 重试函数
func retry(fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			time.Sleep(interval)
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %v", times, err)
}
