// email_handler.go
package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"CarAds/src/storage"
)

// DatasetAttachmentHandler 把目标邮件中的数据附件保存到 DataDir
type DatasetAttachmentHandler struct {
	TargetSubject string
	DataDir       string
	processedUIDs map[uint32]bool
	mu            sync.RWMutex
}

func NewDatasetAttachmentHandler(subject, dataDir string) *DatasetAttachmentHandler {
	return &DatasetAttachmentHandler{
		TargetSubject: subject,
		DataDir:       dataDir,
		processedUIDs: make(map[uint32]bool),
	}
}

func (h *DatasetAttachmentHandler) isProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

func (h *DatasetAttachmentHandler) markAsProcessed(uid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
}

// Handle 保存附件并返回保存路径; 已处理或不匹配的邮件返回空路径
func (h *DatasetAttachmentHandler) Handle(email *Email, logger *storage.Logger) (string, error) {
	if email == nil || h.isProcessed(email.UID) {
		return "", nil
	}

	if !strings.Contains(email.Subject, h.TargetSubject) {
		logger.Debug(fmt.Sprintf("跳过主题不匹配的邮件: %s", email.Subject))
		return "", nil
	}

	attachment := email.DatasetAttachment()
	if attachment == nil {
		logger.Warning(fmt.Sprintf("邮件没有数据附件(UID:%d)", email.UID))
		return "", nil
	}

	if err := os.MkdirAll(h.DataDir, 0755); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}

	// 附件名来自外部, 只保留文件名部分
	filePath := filepath.Join(h.DataDir, filepath.Base(attachment.Filename))
	if err := os.WriteFile(filePath, attachment.Content, 0644); err != nil {
		return "", fmt.Errorf("保存附件失败: %w", err)
	}

	h.markAsProcessed(email.UID)
	logger.Info(fmt.Sprintf("附件已保存到: %s (发件人: %s, 日期: %s)",
		filePath, email.From, email.Date.Format("2006-01-02 15:04:05")))
	return filePath, nil
}

func isDatasetFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	default:
		return false
	}
}
