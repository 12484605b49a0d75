package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-assistant-go/internal/index"
	"workspace-assistant-go/internal/model"
)

// recordingStore 把写入的条目记在内存里。
type recordingStore struct {
	entries []storedEntry
}

type storedEntry struct {
	namespace string
	doc       model.Document
	id        string
}

func (s *recordingStore) Add(ctx context.Context, namespace string, doc model.Document, id string) error {
	s.entries = append(s.entries, storedEntry{namespace: namespace, doc: doc, id: id})
	return nil
}

func (s *recordingStore) Query(ctx context.Context, namespace, query string, k int, filter index.Filter) ([]model.Document, error) {
	return nil, nil
}

func (s *recordingStore) Reset(ctx context.Context, namespace string) error { return nil }

func (s *recordingStore) EnsureNamespaces(ctx context.Context) error { return nil }

// fileContentConverter 直接返回文件内容, 按路径可注入失败与空结果。
type fileContentConverter struct {
	failPaths  map[string]bool
	emptyPaths map[string]bool
}

func (c *fileContentConverter) Convert(ctx context.Context, filePath string) (string, error) {
	if c.failPaths[filepath.Base(filePath)] {
		return "", errors.New("conversion failed")
	}
	if c.emptyPaths[filepath.Base(filePath)] {
		return "", nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func writeDriveFile(t *testing.T, root, user, relPath, content string) string {
	t.Helper()
	full := filepath.Join(root, "data", user, "drive", filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}

func TestEmbedDriveIndexesOnlySupportedTypes(t *testing.T) {
	root := t.TempDir()
	writeDriveFile(t, root, "alice@x.com", "report.pdf", "pdf text")
	writeDriveFile(t, root, "alice@x.com", "tool.exe", "binary")

	store := &recordingStore{}
	pipeline := NewDrivePipeline(store, &fileContentConverter{}, root)

	added, err := pipeline.EmbedDrive(context.Background(), "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	require.Len(t, store.entries, 1)

	entry := store.entries[0]
	assert.Equal(t, index.NamespaceDrive, entry.namespace)
	assert.Equal(t, "pdf text", entry.doc.Content)
	assert.Equal(t, "alice@x.com", entry.doc.Metadata["user_id"])
	assert.Equal(t, "report.pdf", entry.doc.Metadata["file_name"])
	assert.Equal(t, ".pdf", entry.doc.Metadata["file_type"])
	assert.Equal(t, model.DataSourceDrive, entry.doc.Metadata["data_source"])
}

func TestEmbedDriveSkipsEmptyAndFailedConversions(t *testing.T) {
	root := t.TempDir()
	writeDriveFile(t, root, "alice@x.com", "empty.txt", "")
	writeDriveFile(t, root, "alice@x.com", "bad.pdf", "whatever")
	writeDriveFile(t, root, "alice@x.com", "good.docx", "usable text")

	converter := &fileContentConverter{
		failPaths:  map[string]bool{"bad.pdf": true},
		emptyPaths: map[string]bool{"empty.txt": true},
	}
	store := &recordingStore{}
	pipeline := NewDrivePipeline(store, converter, root)

	added, err := pipeline.EmbedDrive(context.Background(), "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	require.Len(t, store.entries, 1)
	assert.Equal(t, "usable text", store.entries[0].doc.Content)
}

func TestEmbedDriveScopedToRequestedUser(t *testing.T) {
	root := t.TempDir()
	writeDriveFile(t, root, "alice@x.com", "alice.txt", "alice data")
	writeDriveFile(t, root, "bob@x.com", "bob.txt", "bob data")

	store := &recordingStore{}
	pipeline := NewDrivePipeline(store, &fileContentConverter{}, root)

	added, err := pipeline.EmbedDrive(context.Background(), "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	for _, entry := range store.entries {
		assert.Equal(t, "alice@x.com", entry.doc.Metadata["user_id"])
	}
}

func TestEmbedDriveReingestionAppendsWithFreshIDs(t *testing.T) {
	root := t.TempDir()
	writeDriveFile(t, root, "alice@x.com", "report.pdf", "pdf text")

	store := &recordingStore{}
	pipeline := NewDrivePipeline(store, &fileContentConverter{}, root)

	_, err := pipeline.EmbedDrive(context.Background(), "alice@x.com")
	require.NoError(t, err)
	_, err = pipeline.EmbedDrive(context.Background(), "alice@x.com")
	require.NoError(t, err)

	// 不做去重: 同一目录摄取两次产生两条独立条目
	require.Len(t, store.entries, 2)
	assert.NotEqual(t, store.entries[0].id, store.entries[1].id)
}

func TestEmbedDriveMissingRootIsEmpty(t *testing.T) {
	// 没有任何可下载文件时同步不会创建 drive 目录，摄取视为空集
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data", "ghost@x.com"), 0o755))

	store := &recordingStore{}
	pipeline := NewDrivePipeline(store, &fileContentConverter{}, root)

	added, err := pipeline.EmbedDrive(context.Background(), "ghost@x.com")
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Empty(t, store.entries)
}

func TestIsSupportedFileType(t *testing.T) {
	assert.True(t, IsSupportedFileType("a.pdf"))
	assert.True(t, IsSupportedFileType("A.PDF"))
	assert.True(t, IsSupportedFileType("deck.pptx"))
	assert.False(t, IsSupportedFileType("tool.exe"))
	assert.False(t, IsSupportedFileType("noext"))
}
