package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"workspace-assistant-go/internal/index"
	"workspace-assistant-go/internal/model"
	"workspace-assistant-go/pkg/log"
)

// DrivePipeline 把用户 drive 备份目录下的文件逐个转换并写入
// "drive" 命名空间。每次运行都会生成全新 id，不做去重。
type DrivePipeline struct {
	store        index.Store
	converter    Converter
	rootLocation string
}

// NewDrivePipeline 创建 drive 摄取管道。
func NewDrivePipeline(store index.Store, converter Converter, rootLocation string) *DrivePipeline {
	return &DrivePipeline{
		store:        store,
		converter:    converter,
		rootLocation: rootLocation,
	}
}

// EmbedDrive 遍历 <root>/data/<userID>/drive 下的全部文件并摄取。
// drive 目录是实时枚举的文件系统，坏文件与不支持的类型都只跳过，
// 不会中断整次运行；索引写入失败才是致命错误。
// 返回成功写入的条目数。
func (p *DrivePipeline) EmbedDrive(ctx context.Context, userID string) (int, error) {
	root := filepath.Join(p.rootLocation, "data", userID, "drive")
	log.Infof("[DriveIngest] 开始摄取, user: %s, root: %s", userID, root)

	var allFiles []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		allFiles = append(allFiles, path)
		return nil
	})
	if err != nil {
		// 同步过零个文件时 drive 目录不存在，视为空集即可
		if os.IsNotExist(err) {
			log.Infof("[DriveIngest] drive 目录不存在，视为空: %s", root)
			return 0, nil
		}
		return 0, fmt.Errorf("遍历 drive 目录失败: %w", err)
	}
	log.Infof("[DriveIngest] 共发现 %d 个文件", len(allFiles))

	added := 0
	for _, file := range allFiles {
		if !IsSupportedFileType(file) {
			log.Infof("[DriveIngest] 文件类型不支持，跳过: %s", file)
			continue
		}

		content, err := p.converter.Convert(ctx, file)
		if err != nil {
			log.Warnf("[DriveIngest] 文件转换失败，跳过: %s, error: %v", file, err)
			continue
		}
		if content == "" {
			log.Infof("[DriveIngest] 文件没有可用内容，跳过: %s", file)
			continue
		}

		metadata := map[string]interface{}{
			"user_id":     userID,
			"file_path":   file,
			"file_name":   filepath.Base(file),
			"file_type":   filepath.Ext(file),
			"data_source": model.DataSourceDrive,
		}
		doc := model.Document{Content: content, Metadata: metadata}

		if err := p.store.Add(ctx, index.NamespaceDrive, doc, uuid.NewString()); err != nil {
			return added, fmt.Errorf("写入向量索引失败 (%s): %w", file, err)
		}
		added++
	}

	log.Infof("[DriveIngest] 摄取完成, user: %s, 新增 %d 条", userID, added)
	return added, nil
}
