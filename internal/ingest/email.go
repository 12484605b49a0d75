package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"workspace-assistant-go/internal/index"
	"workspace-assistant-go/internal/model"
	"workspace-assistant-go/pkg/log"
)

// receivedTimeLayout 对应导出格式 "2006-01-02 15:04:05 (UTC+09:00)"，
// 原始串的第 10~14 字节是星期标注，解析前先截掉。
const receivedTimeLayout = "2006-01-02 15:04:05 (UTC-07:00)"

// EmailPipeline 读取邮件导出 JSON，把每条邮件正文与可转换的附件
// 写入 "email" 命名空间。
//
// 与 drive 管道不同，邮件导出由备份步骤保证完整性：
// 引用的附件文件缺失说明导出已经不一致，直接中止整次摄取。
type EmailPipeline struct {
	store        index.Store
	converter    Converter
	rootLocation string
}

// NewEmailPipeline 创建邮件摄取管道。
func NewEmailPipeline(store index.Store, converter Converter, rootLocation string) *EmailPipeline {
	return &EmailPipeline{
		store:        store,
		converter:    converter,
		rootLocation: rootLocation,
	}
}

// EmbedEmail 摄取 <root>/data/<userID>/emails/email_conversations.json。
// 返回成功写入的条目数。
func (p *EmailPipeline) EmbedEmail(ctx context.Context, userID string) (int, error) {
	attachmentRoot := filepath.Join(p.rootLocation, "data", userID)
	jsonLoc := filepath.Join(attachmentRoot, "emails", "email_conversations.json")
	log.Infof("[EmailIngest] 开始摄取, user: %s, export: %s", userID, jsonLoc)

	raw, err := os.ReadFile(jsonLoc)
	if err != nil {
		return 0, fmt.Errorf("读取邮件导出文件失败: %w", err)
	}

	var conversations []model.EmailConversation
	if err := json.Unmarshal(raw, &conversations); err != nil {
		return 0, fmt.Errorf("解析邮件导出文件失败: %w", err)
	}
	log.Infof("[EmailIngest] 共发现 %d 个会话", len(conversations))

	added := 0
	for _, conv := range conversations {
		for _, msg := range conv.Messages {
			parsed, err := parseReceivedTime(msg.ReceivedTime)
			if err != nil {
				return added, err
			}

			metadata := buildEmailMetadata(conv, msg, parsed, userID)

			// 附件先于正文处理，缺失即中止
			for _, attachPath := range msg.AttachmentFiles {
				fullPath := filepath.Join(attachmentRoot, attachPath)
				if _, err := os.Stat(fullPath); err != nil {
					return added, fmt.Errorf("attachment file not found: %s", attachPath)
				}
				if !IsSupportedFileType(attachPath) {
					log.Infof("[EmailIngest] 附件类型不支持，跳过: %s", attachPath)
					continue
				}

				content, err := p.converter.Convert(ctx, fullPath)
				if err != nil {
					return added, fmt.Errorf("转换附件失败 (%s): %w", attachPath, err)
				}
				if content == "" {
					log.Infof("[EmailIngest] 附件没有可用内容，跳过: %s", attachPath)
					continue
				}

				doc := model.Document{Content: content, Metadata: metadata}
				if err := p.store.Add(ctx, index.NamespaceEmail, doc, uuid.NewString()); err != nil {
					return added, fmt.Errorf("写入附件到向量索引失败: %w", err)
				}
				added++
			}

			// 正文总是单独成条，即使为空
			doc := model.Document{Content: msg.Body, Metadata: metadata}
			if err := p.store.Add(ctx, index.NamespaceEmail, doc, uuid.NewString()); err != nil {
				return added, fmt.Errorf("写入邮件正文到向量索引失败: %w", err)
			}
			added++
		}
	}

	log.Infof("[EmailIngest] 摄取完成, user: %s, 新增 %d 条", userID, added)
	return added, nil
}

// buildEmailMetadata 组装一条邮件（及其附件共享）的元数据。
func buildEmailMetadata(conv model.EmailConversation, msg model.EmailMessage, parsed *time.Time, userID string) map[string]interface{} {
	var forwardedBy interface{}
	if msg.ForwardedBy != nil {
		forwardedBy = msg.ForwardedBy.From
	}

	var year, month, day, timeOfDay interface{}
	if parsed != nil {
		year = parsed.Year()
		month = int(parsed.Month())
		day = parsed.Day()
		timeOfDay = parsed.Format("15:04:05")
	}

	return map[string]interface{}{
		"from":            msg.SenderName,
		"to":              msg.To,
		"cc":              msg.CC,
		"date":            msg.ReceivedTime,
		"subject":         msg.Subject,
		"year":            year,
		"month":           month,
		"day":             day,
		"time":            timeOfDay,
		"forwarded_by":    forwardedBy,
		"conversation_id": conv.ConversationID,
		"topic":           conv.Topic,
		"user_id":         userID,
		"data_source":     model.DataSourceEmail,
	}
}

// parseReceivedTime 解析导出时间串。空串返回 nil（时间字段留空），
// 截掉星期标注后解析失败视为致命错误。
func parseReceivedTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	trimmed := s
	if len(trimmed) >= 15 {
		trimmed = trimmed[:10] + trimmed[15:]
	}
	t, err := time.Parse(receivedTimeLayout, trimmed)
	if err != nil {
		return nil, fmt.Errorf("无法解析邮件时间 '%s': %w", s, err)
	}
	return &t, nil
}
