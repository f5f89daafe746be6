// data_handler.go
package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ShoppingBehavior/src/storage"
)

// DatasetAttachmentHandler 把匹配主题的邮件附件落盘为数据集文件
type DatasetAttachmentHandler struct {
	targetSubject string // 邮件主题需要包含的关键字
	dataDir       string // 数据集保存目录
}

func NewDatasetAttachmentHandler(targetSubject, dataDir string) *DatasetAttachmentHandler {
	return &DatasetAttachmentHandler{
		targetSubject: targetSubject,
		dataDir:       dataDir,
	}
}

// Handle 保存邮件里第一个csv/xlsx附件，返回保存路径
// 主题不匹配或没有数据附件时返回空路径，不算错误
func (h *DatasetAttachmentHandler) Handle(e *Email, logger *storage.Logger) (string, error) {
	if e == nil {
		return "", nil
	}
	if h.targetSubject != "" && !strings.Contains(e.Subject, h.targetSubject) {
		return "", nil
	}

	for _, att := range e.Attachments {
		if !isDatasetAttachment(att.Filename) {
			continue
		}

		if err := os.MkdirAll(h.dataDir, 0755); err != nil {
			return "", fmt.Errorf("创建数据目录失败: %w", err)
		}

		path := filepath.Join(h.dataDir, filepath.Base(att.Filename))
		if err := os.WriteFile(path, att.Content, 0644); err != nil {
			return "", fmt.Errorf("保存附件失败: %w", err)
		}

		logger.Info(fmt.Sprintf("已保存数据集附件 %s (UID:%d)", path, e.UID))
		return path, nil
	}

	return "", nil
}

// CheckAndProcessEmails 拉取未读邮件并挑出最新的数据集邮件
func CheckAndProcessEmails(client *EmailClient, handler *DatasetAttachmentHandler, logger *storage.Logger) (string, error) {
	if err := client.Connect(); err != nil {
		return "", err
	}

	emails, err := client.FetchUnreadEmails()
	if err != nil {
		return "", err
	}
	if len(emails) == 0 {
		return "", nil
	}

	// 取最新的一封匹配邮件
	var savedPath string
	for _, e := range emails {
		path, err := handler.Handle(e, logger)
		if err != nil {
			logger.Error(fmt.Sprintf("处理邮件失败(UID:%d): %v", e.UID, err))
			continue
		}
		if path != "" {
			savedPath = path
		}
	}
	return savedPath, nil
}

func isDatasetAttachment(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	default:
		return false
	}
}
