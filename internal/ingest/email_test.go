package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-assistant-go/internal/index"
	"workspace-assistant-go/internal/model"
)

func writeEmailExport(t *testing.T, root, user string, conversations []model.EmailConversation) {
	t.Helper()
	dir := filepath.Join(root, "data", user, "emails")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(conversations)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "email_conversations.json"), data, 0o644))
}

func writeAttachment(t *testing.T, root, user, relPath, content string) {
	t.Helper()
	full := filepath.Join(root, "data", user, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestEmbedEmailIndexesAttachmentsBeforeBody(t *testing.T) {
	root := t.TempDir()
	user := "alice@x.com"
	writeAttachment(t, root, user, "emails/attachments/t1/doc.pdf", "attachment text")
	writeEmailExport(t, root, user, []model.EmailConversation{{
		ConversationID: "t1",
		Topic:          "Quarterly",
		Messages: []model.EmailMessage{{
			SenderName:      "bob@x.com",
			To:              "alice@x.com",
			ReceivedTime:    "2025-01-02(Thu) 15:04:05 (UTC+09:00)",
			Subject:         "Report",
			Body:            "see attached",
			AttachmentFiles: []string{"emails/attachments/t1/doc.pdf"},
		}},
	}})

	store := &recordingStore{}
	pipeline := NewEmailPipeline(store, &fileContentConverter{}, root)

	added, err := pipeline.EmbedEmail(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	require.Len(t, store.entries, 2)

	// 附件先写入, 正文随后
	assert.Equal(t, "attachment text", store.entries[0].doc.Content)
	assert.Equal(t, "see attached", store.entries[1].doc.Content)
	for _, entry := range store.entries {
		assert.Equal(t, index.NamespaceEmail, entry.namespace)
		md := entry.doc.Metadata
		assert.Equal(t, user, md["user_id"])
		assert.Equal(t, model.DataSourceEmail, md["data_source"])
		assert.Equal(t, "t1", md["conversation_id"])
		assert.Equal(t, "Quarterly", md["topic"])
		assert.Equal(t, 2025, md["year"])
		assert.Equal(t, 1, md["month"])
		assert.Equal(t, 2, md["day"])
		assert.Equal(t, "15:04:05", md["time"])
	}
}

func TestEmbedEmailMissingAttachmentAborts(t *testing.T) {
	root := t.TempDir()
	user := "alice@x.com"
	writeEmailExport(t, root, user, []model.EmailConversation{{
		ConversationID: "t1",
		Messages: []model.EmailMessage{{
			Body:            "body",
			AttachmentFiles: []string{"emails/attachments/t1/missing.pdf"},
		}},
	}})

	store := &recordingStore{}
	pipeline := NewEmailPipeline(store, &fileContentConverter{}, root)

	_, err := pipeline.EmbedEmail(context.Background(), user)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attachment file not found")
	// 缺失附件中止整条消息的摄取, 正文也不会写入
	assert.Empty(t, store.entries)
}

func TestEmbedEmailUnsupportedAttachmentSkipped(t *testing.T) {
	root := t.TempDir()
	user := "alice@x.com"
	writeAttachment(t, root, user, "emails/attachments/t1/tool.exe", "binary")
	writeEmailExport(t, root, user, []model.EmailConversation{{
		ConversationID: "t1",
		Messages: []model.EmailMessage{{
			Body:            "body",
			AttachmentFiles: []string{"emails/attachments/t1/tool.exe"},
		}},
	}})

	store := &recordingStore{}
	pipeline := NewEmailPipeline(store, &fileContentConverter{}, root)

	added, err := pipeline.EmbedEmail(context.Background(), user)
	require.NoError(t, err)
	// 不支持的附件跳过, 正文照常写入
	assert.Equal(t, 1, added)
	require.Len(t, store.entries, 1)
	assert.Equal(t, "body", store.entries[0].doc.Content)
}

func TestEmbedEmailEmptyBodyStillIndexed(t *testing.T) {
	root := t.TempDir()
	user := "alice@x.com"
	writeEmailExport(t, root, user, []model.EmailConversation{{
		ConversationID: "t1",
		Messages:       []model.EmailMessage{{Body: ""}},
	}})

	store := &recordingStore{}
	pipeline := NewEmailPipeline(store, &fileContentConverter{}, root)

	added, err := pipeline.EmbedEmail(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	require.Len(t, store.entries, 1)
	assert.Equal(t, "", store.entries[0].doc.Content)
	// 时间串为空时日期派生字段保持为 nil
	assert.Nil(t, store.entries[0].doc.Metadata["year"])
}

func TestEmbedEmailForwardedByRecorded(t *testing.T) {
	root := t.TempDir()
	user := "alice@x.com"
	writeEmailExport(t, root, user, []model.EmailConversation{{
		ConversationID: "t1",
		Messages: []model.EmailMessage{{
			Body:        "fwd body",
			ForwardedBy: &model.ForwardedInfo{From: "carol@x.com"},
		}},
	}})

	store := &recordingStore{}
	pipeline := NewEmailPipeline(store, &fileContentConverter{}, root)

	_, err := pipeline.EmbedEmail(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, store.entries, 1)
	assert.Equal(t, "carol@x.com", store.entries[0].doc.Metadata["forwarded_by"])
}

func TestParseReceivedTime(t *testing.T) {
	t.Run("with weekday annotation", func(t *testing.T) {
		parsed, err := parseReceivedTime("2025-01-02(Thu) 15:04:05 (UTC+09:00)")
		require.NoError(t, err)
		require.NotNil(t, parsed)
		assert.Equal(t, 2025, parsed.Year())
		assert.Equal(t, 15, parsed.Hour())
		_, offset := parsed.Zone()
		assert.Equal(t, 9*3600, offset)
	})

	t.Run("empty string means no timestamp", func(t *testing.T) {
		parsed, err := parseReceivedTime("")
		require.NoError(t, err)
		assert.Nil(t, parsed)
	})

	t.Run("malformed string is fatal", func(t *testing.T) {
		_, err := parseReceivedTime("definitely not a timestamp")
		require.Error(t, err)
	})
}
