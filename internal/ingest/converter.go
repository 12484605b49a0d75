// Package ingest 实现把用户数据（drive 备份、邮件导出）转换并写入
// 向量索引的摄取管道。
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"workspace-assistant-go/pkg/tika"
)

// 可转换的文件类型白名单，其余类型一律跳过。
var supportedExtensions = map[string]struct{}{
	".pdf":  {},
	".docx": {},
	".txt":  {},
	".xls":  {},
	".xlsx": {},
	".ppt":  {},
	".pptx": {},
}

// IsSupportedFileType 判断文件扩展名是否在白名单内。
func IsSupportedFileType(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Converter 把单个文件转换为纯文本。返回空串表示文件没有可用内容，
// 调用方应跳过该文件而不是报错。
type Converter interface {
	Convert(ctx context.Context, filePath string) (string, error)
}

type tikaConverter struct {
	tikaClient *tika.Client
}

// NewConverter 创建基于 Tika 的文本转换器。
func NewConverter(tikaClient *tika.Client) Converter {
	return &tikaConverter{tikaClient: tikaClient}
}

// Convert 读取文件并通过 Tika 提取文本，前后空白会被去除。
func (c *tikaConverter) Convert(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("打开文件失败: %w", err)
	}
	defer f.Close()

	text, err := c.tikaClient.ExtractText(ctx, f, filepath.Base(filePath))
	if err != nil {
		return "", fmt.Errorf("提取文本失败: %w", err)
	}
	return strings.TrimSpace(text), nil
}
