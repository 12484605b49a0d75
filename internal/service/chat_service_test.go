package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-assistant-go/internal/index"
	"workspace-assistant-go/internal/model"
	"workspace-assistant-go/pkg/llm"
)

// fakeStore 返回预置文档并记录最近一次查询参数。
type fakeStore struct {
	docs          []model.Document
	lastNamespace string
	lastQuery     string
	lastK         int
	lastFilter    index.Filter
}

func (s *fakeStore) Add(ctx context.Context, namespace string, doc model.Document, id string) error {
	return nil
}

func (s *fakeStore) Query(ctx context.Context, namespace, query string, k int, filter index.Filter) ([]model.Document, error) {
	s.lastNamespace = namespace
	s.lastQuery = query
	s.lastK = k
	s.lastFilter = filter
	return s.docs, nil
}

func (s *fakeStore) Reset(ctx context.Context, namespace string) error { return nil }

func (s *fakeStore) EnsureNamespaces(ctx context.Context) error { return nil }

// fakeLLM 记录收到的提示词并返回固定回答。
type fakeLLM struct {
	lastPrompt string
	answer     string
	chunks     []string
	calls      int
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	return f.answer, nil
}

func (f *fakeLLM) GenerateStream(ctx context.Context, prompt string, writer llm.ChunkWriter) error {
	f.calls++
	f.lastPrompt = prompt
	for _, chunk := range f.chunks {
		if err := writer.WriteChunk(chunk); err != nil {
			return err
		}
	}
	return nil
}

// fakeConversations 把会话历史记在内存里。
type fakeConversations struct {
	appended []model.ChatMessage
}

func (f *fakeConversations) Append(ctx context.Context, source, email string, messages ...model.ChatMessage) error {
	f.appended = append(f.appended, messages...)
	return nil
}

func (f *fakeConversations) History(ctx context.Context, source, email string) ([]model.ChatMessage, error) {
	return f.appended, nil
}

func (f *fakeConversations) Clear(ctx context.Context, source, email string) error {
	f.appended = nil
	return nil
}

// chunkRecorder 收集流式分片。
type chunkRecorder struct {
	chunks []string
}

func (r *chunkRecorder) WriteChunk(chunk string) error {
	r.chunks = append(r.chunks, chunk)
	return nil
}

func TestEmailAnswerEmptyRetrievalReturnsFallback(t *testing.T) {
	store := &fakeStore{}
	model1 := &fakeLLM{answer: "should not be used"}
	conv := &fakeConversations{}
	svc := NewChatService(store, model1, conv)

	answer, err := svc.EmailAnswer(context.Background(), "alice@x.com", "any question")
	require.NoError(t, err)
	assert.Equal(t, "No emails found.", answer)
	// 兜底回答不经过大模型
	assert.Equal(t, 0, model1.calls)
	// 兜底回答也进入会话历史
	require.Len(t, conv.appended, 2)
	assert.Equal(t, "assistant", conv.appended[1].Role)
	assert.Equal(t, "No emails found.", conv.appended[1].Content)
}

func TestDriveAnswerEmptyRetrievalReturnsFallback(t *testing.T) {
	store := &fakeStore{}
	model1 := &fakeLLM{answer: "should not be used"}
	svc := NewChatService(store, model1, &fakeConversations{})

	answer, err := svc.DriveAnswer(context.Background(), "alice@x.com", "any question", "")
	require.NoError(t, err)
	assert.Equal(t, "No drive files found.", answer)
	assert.Equal(t, 0, model1.calls)
}

func TestEmailAnswerAssemblesPromptFromRetrievedDocs(t *testing.T) {
	docs := []model.Document{
		{Content: "body", Metadata: map[string]interface{}{"from": "a@x.com", "subject": "hi", "user_id": "alice@x.com"}},
	}
	store := &fakeStore{docs: docs}
	model1 := &fakeLLM{answer: "the answer"}
	svc := NewChatService(store, model1, &fakeConversations{})

	answer, err := svc.EmailAnswer(context.Background(), "alice@x.com", "질문")
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)

	assert.Equal(t, index.NamespaceEmail, store.lastNamespace)
	assert.Equal(t, "질문", store.lastQuery)
	assert.Equal(t, retrievalTopK, store.lastK)
	assert.Equal(t, index.Filter{UserID: "alice@x.com"}, store.lastFilter)

	// 提示词与独立组装的结果逐字一致
	expected := CreatePromptEmail(FormatEmails(docs), "질문")
	assert.Equal(t, expected, model1.lastPrompt)
}

func TestDriveAnswerAppliesPathFilter(t *testing.T) {
	docs := []model.Document{{Content: "x", Metadata: map[string]interface{}{"user_id": "alice@x.com"}}}
	store := &fakeStore{docs: docs}
	model1 := &fakeLLM{answer: "ok"}
	svc := NewChatService(store, model1, &fakeConversations{})

	_, err := svc.DriveAnswer(context.Background(), "alice@x.com", "q", "Reports")
	require.NoError(t, err)
	assert.Equal(t, index.NamespaceDrive, store.lastNamespace)
	assert.Equal(t, index.Filter{UserID: "alice@x.com", PathContains: "Reports"}, store.lastFilter)
}

func TestEmailAnswerStreamFallbackSingleChunk(t *testing.T) {
	store := &fakeStore{}
	model1 := &fakeLLM{chunks: []string{"should", "not", "appear"}}
	recorder := &chunkRecorder{}
	svc := NewChatService(store, model1, &fakeConversations{})

	err := svc.EmailAnswerStream(context.Background(), "alice@x.com", "q", recorder)
	require.NoError(t, err)
	assert.Equal(t, []string{"No emails found."}, recorder.chunks)
	assert.Equal(t, 0, model1.calls)
}

func TestDriveAnswerStreamForwardsChunksAndSavesHistory(t *testing.T) {
	docs := []model.Document{{Content: "x", Metadata: map[string]interface{}{"user_id": "alice@x.com"}}}
	store := &fakeStore{docs: docs}
	model1 := &fakeLLM{chunks: []string{"Hel", "lo"}}
	recorder := &chunkRecorder{}
	conv := &fakeConversations{}
	svc := NewChatService(store, model1, conv)

	err := svc.DriveAnswerStream(context.Background(), "alice@x.com", "q", "", recorder)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, recorder.chunks)

	// 历史里保存的是拼接后的完整回答
	require.Len(t, conv.appended, 2)
	assert.Equal(t, "Hello", conv.appended[1].Content)
}
