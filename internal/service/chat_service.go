package service

import (
	"context"
	"fmt"
	"time"

	"workspace-assistant-go/internal/index"
	"workspace-assistant-go/internal/model"
	"workspace-assistant-go/internal/repository"
	"workspace-assistant-go/pkg/llm"
	"workspace-assistant-go/pkg/log"
)

// retrievalTopK 每次问答检索的文档数量
const retrievalTopK = 3

// ChatService 接口定义了基于检索增强的邮件与云盘问答操作。
type ChatService interface {
	EmailAnswer(ctx context.Context, userEmail, question string) (string, error)
	EmailAnswerStream(ctx context.Context, userEmail, question string, writer llm.ChunkWriter) error
	DriveAnswer(ctx context.Context, userEmail, question, directory string) (string, error)
	DriveAnswerStream(ctx context.Context, userEmail, question, directory string, writer llm.ChunkWriter) error
}

// chatService 是 ChatService 接口的实现。
type chatService struct {
	store         index.Store
	llmClient     llm.Client
	conversations repository.ConversationRepository
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(store index.Store, llmClient llm.Client, conversations repository.ConversationRepository) ChatService {
	return &chatService{
		store:         store,
		llmClient:     llmClient,
		conversations: conversations,
	}
}

// EmailAnswer 针对用户的邮件数据回答问题, 阻塞式返回完整答案。
func (s *chatService) EmailAnswer(ctx context.Context, userEmail, question string) (string, error) {
	prompt, fallback, err := s.buildEmailPrompt(ctx, userEmail, question)
	if err != nil {
		return "", err
	}
	if fallback != "" {
		s.saveHistory(ctx, model.DataSourceEmail, userEmail, question, fallback)
		return fallback, nil
	}

	log.Infof("【步骤2】调用大模型生成邮件问答回答, user: %s", userEmail)
	answer, err := s.llmClient.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate email answer: %w", err)
	}
	s.saveHistory(ctx, model.DataSourceEmail, userEmail, question, answer)
	return answer, nil
}

// EmailAnswerStream 针对用户的邮件数据回答问题, 以流式分片输出。
func (s *chatService) EmailAnswerStream(ctx context.Context, userEmail, question string, writer llm.ChunkWriter) error {
	prompt, fallback, err := s.buildEmailPrompt(ctx, userEmail, question)
	if err != nil {
		return err
	}
	if fallback != "" {
		s.saveHistory(ctx, model.DataSourceEmail, userEmail, question, fallback)
		return writer.WriteChunk(fallback)
	}

	log.Infof("【步骤2】调用大模型流式生成邮件问答回答, user: %s", userEmail)
	collector := newCollectingWriter(writer)
	if err := s.llmClient.GenerateStream(ctx, prompt, collector); err != nil {
		return fmt.Errorf("stream email answer: %w", err)
	}
	s.saveHistory(ctx, model.DataSourceEmail, userEmail, question, collector.String())
	return nil
}

// DriveAnswer 针对用户的云盘数据回答问题, directory 为可选的路径过滤条件。
func (s *chatService) DriveAnswer(ctx context.Context, userEmail, question, directory string) (string, error) {
	prompt, fallback, err := s.buildDrivePrompt(ctx, userEmail, question, directory)
	if err != nil {
		return "", err
	}
	if fallback != "" {
		s.saveHistory(ctx, model.DataSourceDrive, userEmail, question, fallback)
		return fallback, nil
	}

	log.Infof("【步骤2】调用大模型生成云盘问答回答, user: %s", userEmail)
	answer, err := s.llmClient.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate drive answer: %w", err)
	}
	s.saveHistory(ctx, model.DataSourceDrive, userEmail, question, answer)
	return answer, nil
}

// DriveAnswerStream 针对用户的云盘数据回答问题, 以流式分片输出。
func (s *chatService) DriveAnswerStream(ctx context.Context, userEmail, question, directory string, writer llm.ChunkWriter) error {
	prompt, fallback, err := s.buildDrivePrompt(ctx, userEmail, question, directory)
	if err != nil {
		return err
	}
	if fallback != "" {
		s.saveHistory(ctx, model.DataSourceDrive, userEmail, question, fallback)
		return writer.WriteChunk(fallback)
	}

	log.Infof("【步骤2】调用大模型流式生成云盘问答回答, user: %s", userEmail)
	collector := newCollectingWriter(writer)
	if err := s.llmClient.GenerateStream(ctx, prompt, collector); err != nil {
		return fmt.Errorf("stream drive answer: %w", err)
	}
	s.saveHistory(ctx, model.DataSourceDrive, userEmail, question, collector.String())
	return nil
}

// buildEmailPrompt 检索邮件文档并组装提示词。检索结果为空时返回兜底回答。
func (s *chatService) buildEmailPrompt(ctx context.Context, userEmail, question string) (prompt, fallback string, err error) {
	log.Infof("【步骤1】检索邮件文档, user: %s, k: %d", userEmail, retrievalTopK)
	documents, err := s.store.Query(ctx, index.NamespaceEmail, question, retrievalTopK, index.Filter{UserID: userEmail})
	if err != nil {
		return "", "", fmt.Errorf("retrieve emails: %w", err)
	}
	if len(documents) == 0 {
		log.Infof("邮件检索结果为空, 返回兜底回答, user: %s", userEmail)
		return "", FallbackNoEmails, nil
	}
	return CreatePromptEmail(FormatEmails(documents), question), "", nil
}

// buildDrivePrompt 检索云盘文档并组装提示词。检索结果为空时返回兜底回答。
func (s *chatService) buildDrivePrompt(ctx context.Context, userEmail, question, directory string) (prompt, fallback string, err error) {
	log.Infof("【步骤1】检索云盘文档, user: %s, directory: %q, k: %d", userEmail, directory, retrievalTopK)
	filter := index.Filter{UserID: userEmail, PathContains: directory}
	documents, err := s.store.Query(ctx, index.NamespaceDrive, question, retrievalTopK, filter)
	if err != nil {
		return "", "", fmt.Errorf("retrieve drive files: %w", err)
	}
	if len(documents) == 0 {
		log.Infof("云盘检索结果为空, 返回兜底回答, user: %s", userEmail)
		return "", FallbackNoDriveFiles, nil
	}
	return CreatePromptDrive(FormatDrive(documents), question), "", nil
}

// saveHistory 把一轮问答写入会话历史。历史记录失败只告警, 不影响本次回答。
func (s *chatService) saveHistory(ctx context.Context, source, userEmail, question, answer string) {
	now := time.Now()
	err := s.conversations.Append(ctx, source, userEmail,
		model.ChatMessage{Role: "user", Content: question, Timestamp: now},
		model.ChatMessage{Role: "assistant", Content: answer, Timestamp: now},
	)
	if err != nil {
		log.Errorf("保存会话历史失败, source: %s, user: %s, err: %v", source, userEmail, err)
	}
}

// collectingWriter 在转发分片的同时收集完整答案, 用于会话历史落盘。
type collectingWriter struct {
	inner llm.ChunkWriter
	parts []string
}

func newCollectingWriter(inner llm.ChunkWriter) *collectingWriter {
	return &collectingWriter{inner: inner}
}

func (w *collectingWriter) WriteChunk(chunk string) error {
	w.parts = append(w.parts, chunk)
	return w.inner.WriteChunk(chunk)
}

func (w *collectingWriter) String() string {
	full := ""
	for _, part := range w.parts {
		full += part
	}
	return full
}
