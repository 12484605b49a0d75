package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gdrive "google.golang.org/api/drive/v3"
	ggmail "google.golang.org/api/gmail/v1"

	"workspace-assistant-go/internal/ingest"
	"workspace-assistant-go/internal/model"
	"workspace-assistant-go/internal/repository"
	"workspace-assistant-go/pkg/log"
	"workspace-assistant-go/pkg/storage"
	"workspace-assistant-go/pkg/workspace"
)

// exportTimeLayout 邮件导出中 ReceivedTime 的格式。
// 第 10~14 字节是星期标注, 摄取侧解析前会整体剔除。
const exportTimeLayout = "2006-01-02(Mon) 15:04:05 (UTC-07:00)"

// SyncService 接口定义了把 Google 数据备份到本地导出目录的操作。
type SyncService interface {
	// SyncDrive 把用户云盘中受支持的文件下载到本地, 返回下载数量。
	SyncDrive(ctx context.Context, userEmail string) (int, error)
	// SyncEmails 把用户邮箱导出为 email_conversations.json 加附件目录, 返回会话数量。
	SyncEmails(ctx context.Context, userEmail string) (int, error)
}

// syncService 是 SyncService 接口的实现。
type syncService struct {
	users        repository.UserRepository
	google       *workspace.Client
	archive      *storage.Archive
	rootLocation string
}

// NewSyncService 创建一个新的 SyncService 实例。archive 为 nil 时跳过对象存储备份。
func NewSyncService(users repository.UserRepository, google *workspace.Client, archive *storage.Archive, rootLocation string) SyncService {
	return &syncService{
		users:        users,
		google:       google,
		archive:      archive,
		rootLocation: rootLocation,
	}
}

// SyncDrive 下载用户云盘中所有受支持类型的文件, 保留目录层级。
func (s *syncService) SyncDrive(ctx context.Context, userEmail string) (int, error) {
	user, err := s.users.FindByEmail(userEmail)
	if err != nil {
		return 0, fmt.Errorf("load user %s: %w", userEmail, err)
	}
	srv, err := s.google.DriveService(ctx, user.AccessToken, user.RefreshToken, s.persistTokens(userEmail))
	if err != nil {
		return 0, err
	}

	log.Infof("【步骤1】枚举云盘文件, user: %s", userEmail)
	files, err := workspace.ListDriveFiles(srv)
	if err != nil {
		return 0, err
	}

	driveRoot := filepath.Join(s.rootLocation, "data", userEmail, "drive")
	log.Infof("【步骤2】下载文件到 %s, 候选: %d", driveRoot, len(files))

	downloaded := 0
	for _, file := range files {
		// Google 原生文档没有二进制内容, 跳过
		if strings.HasPrefix(file.MimeType, "application/vnd.google-apps.") {
			continue
		}
		if !ingest.IsSupportedFileType(file.Name) {
			log.Debugf("云盘文件类型不支持, 跳过: %s", file.Path)
			continue
		}
		if err := s.downloadDriveFile(ctx, srv, file, driveRoot, userEmail); err != nil {
			return downloaded, err
		}
		downloaded++
	}

	log.Infof("【步骤3】云盘同步完成, user: %s, 下载: %d", userEmail, downloaded)
	return downloaded, nil
}

func (s *syncService) downloadDriveFile(ctx context.Context, srv *gdrive.Service, file workspace.DriveFile, driveRoot, userEmail string) error {
	body, err := workspace.DownloadDriveFile(srv, file.ID)
	if err != nil {
		return fmt.Errorf("下载云盘文件失败 (%s): %w", file.Path, err)
	}
	defer body.Close()

	localPath := filepath.Join(driveRoot, filepath.FromSlash(file.Path))
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("创建本地文件失败: %w", err)
	}
	if _, err := out.ReadFrom(body); err != nil {
		out.Close()
		return fmt.Errorf("写入本地文件失败 (%s): %w", file.Path, err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	s.archiveFile(ctx, localPath, userEmail+"/drive/"+file.Path)
	return nil
}

// SyncEmails 导出用户邮箱的所有会话与附件。
func (s *syncService) SyncEmails(ctx context.Context, userEmail string) (int, error) {
	user, err := s.users.FindByEmail(userEmail)
	if err != nil {
		return 0, fmt.Errorf("load user %s: %w", userEmail, err)
	}
	srv, err := s.google.GmailService(ctx, user.AccessToken, user.RefreshToken, s.persistTokens(userEmail))
	if err != nil {
		return 0, err
	}

	log.Infof("【步骤1】枚举邮件会话, user: %s", userEmail)
	threadIDs, err := workspace.ListThreadIDs(srv)
	if err != nil {
		return 0, err
	}

	userRoot := filepath.Join(s.rootLocation, "data", userEmail)
	emailsDir := filepath.Join(userRoot, "emails")
	if err := os.MkdirAll(emailsDir, 0o755); err != nil {
		return 0, fmt.Errorf("创建导出目录失败: %w", err)
	}

	log.Infof("【步骤2】导出会话与附件, 线程: %d", len(threadIDs))
	conversations := make([]model.EmailConversation, 0, len(threadIDs))
	for _, threadID := range threadIDs {
		conversation, err := s.exportThread(ctx, srv, threadID, userRoot)
		if err != nil {
			return 0, err
		}
		conversations = append(conversations, *conversation)
	}

	log.Infof("【步骤3】写出 email_conversations.json, 会话: %d", len(conversations))
	exportPath := filepath.Join(emailsDir, "email_conversations.json")
	data, err := json.MarshalIndent(conversations, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("序列化邮件导出失败: %w", err)
	}
	if err := os.WriteFile(exportPath, data, 0o644); err != nil {
		return 0, fmt.Errorf("写出邮件导出失败: %w", err)
	}

	s.archiveFile(ctx, exportPath, userEmail+"/emails/email_conversations.json")
	return len(conversations), nil
}

// exportThread 把一个 Gmail 线程转换为导出格式的会话。
func (s *syncService) exportThread(ctx context.Context, srv *ggmail.Service, threadID, userRoot string) (*model.EmailConversation, error) {
	thread, err := workspace.GetThread(srv, threadID)
	if err != nil {
		return nil, err
	}

	conversation := &model.EmailConversation{
		ConversationID: thread.Id,
		Messages:       make([]model.EmailMessage, 0, len(thread.Messages)),
	}
	for _, msg := range thread.Messages {
		if conversation.Topic == "" {
			conversation.Topic = workspace.Header(msg, "Subject")
		}

		attachments, err := s.exportAttachments(ctx, srv, msg, threadID, userRoot)
		if err != nil {
			return nil, err
		}
		conversation.Messages = append(conversation.Messages, model.EmailMessage{
			SenderName:      workspace.Header(msg, "From"),
			To:              workspace.Header(msg, "To"),
			CC:              workspace.Header(msg, "Cc"),
			ReceivedTime:    formatReceivedTime(msg),
			Subject:         workspace.Header(msg, "Subject"),
			Body:            workspace.MessageBody(msg),
			AttachmentFiles: attachments,
		})
	}
	return conversation, nil
}

// exportAttachments 下载报文的全部附件, 返回相对于用户导出根目录的路径。
func (s *syncService) exportAttachments(ctx context.Context, srv *ggmail.Service, msg *ggmail.Message, threadID, userRoot string) ([]string, error) {
	var saved []string
	for _, part := range workspace.AttachmentParts(msg) {
		data, err := workspace.FetchAttachment(srv, msg.Id, part.Body.AttachmentId)
		if err != nil {
			return nil, err
		}

		relPath := filepath.ToSlash(filepath.Join("emails", "attachments", threadID, part.Filename))
		localPath := filepath.Join(userRoot, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return nil, fmt.Errorf("创建附件目录失败: %w", err)
		}
		if err := os.WriteFile(localPath, data, 0o644); err != nil {
			return nil, fmt.Errorf("写出附件失败 (%s): %w", relPath, err)
		}
		saved = append(saved, relPath)
	}
	return saved, nil
}

// formatReceivedTime 把 Gmail 的时间转换为导出格式。
// 优先解析 Date 头, 失败时退回 internalDate。
func formatReceivedTime(msg *ggmail.Message) string {
	if raw := workspace.Header(msg, "Date"); raw != "" {
		if t, err := mail.ParseDate(raw); err == nil {
			return t.Format(exportTimeLayout)
		}
	}
	if msg.InternalDate > 0 {
		return time.UnixMilli(msg.InternalDate).Format(exportTimeLayout)
	}
	return ""
}

// persistTokens 返回把刷新后的 Google 令牌落库的回调。
func (s *syncService) persistTokens(userEmail string) workspace.TokenUpdateFunc {
	return func(tok *oauth2.Token) error {
		expiry := tok.Expiry
		return s.users.UpdateTokens(userEmail, tok.AccessToken, tok.RefreshToken, &expiry)
	}
}

// archiveFile 把本地文件备份到对象存储。备份失败只告警, 不影响同步。
func (s *syncService) archiveFile(ctx context.Context, localPath, objectName string) {
	if s.archive == nil {
		return
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		log.Errorf("读取待备份文件失败 (%s): %v", localPath, err)
		return
	}
	if err := s.archive.Put(ctx, objectName, bytes.NewReader(data), int64(len(data)), ""); err != nil {
		log.Errorf("备份对象失败 (%s): %v", objectName, err)
	}
}
