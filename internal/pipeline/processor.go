// Package pipeline 实现了 setup 任务的异步处理端:
// 从队列取出任务, 同步 Google 数据到本地, 再摄取进向量索引。
package pipeline

import (
	"context"
	"fmt"
	"time"

	"workspace-assistant-go/internal/ingest"
	"workspace-assistant-go/internal/model"
	"workspace-assistant-go/internal/repository"
	"workspace-assistant-go/internal/service"
	"workspace-assistant-go/pkg/log"
	"workspace-assistant-go/pkg/tasks"
)

// Processor 消费 setup 任务, 实现 kafka.TaskProcessor。
type Processor struct {
	users repository.UserRepository
	runs  repository.IngestionRepository
	sync  service.SyncService
	drive *ingest.DrivePipeline
	email *ingest.EmailPipeline
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	users repository.UserRepository,
	runs repository.IngestionRepository,
	sync service.SyncService,
	drive *ingest.DrivePipeline,
	email *ingest.EmailPipeline,
) *Processor {
	return &Processor{
		users: users,
		runs:  runs,
		sync:  sync,
		drive: drive,
		email: email,
	}
}

// Process 执行一个 setup 任务: 同步数据, 摄取索引, 更新任务与用户状态。
func (p *Processor) Process(ctx context.Context, task tasks.SetupTask) error {
	if err := p.runs.MarkRunning(task.RunID); err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}

	docsCount, err := p.run(ctx, task)
	if err != nil {
		if markErr := p.runs.MarkFailed(task.RunID, err); markErr != nil {
			log.Errorf("标记任务失败状态时出错: %v", markErr)
		}
		return err
	}

	if err := p.runs.MarkCompleted(task.RunID, docsCount); err != nil {
		return fmt.Errorf("mark run completed: %w", err)
	}
	if err := p.users.MarkServiceSetup(task.UserEmail, task.DataSource, time.Now()); err != nil {
		log.Errorf("更新用户 setup 状态失败, user: %s, source: %s, err: %v", task.UserEmail, task.DataSource, err)
	}
	return nil
}

func (p *Processor) run(ctx context.Context, task tasks.SetupTask) (int, error) {
	switch task.DataSource {
	case model.DataSourceDrive:
		log.Infof("【步骤1】同步云盘数据, user: %s", task.UserEmail)
		if _, err := p.sync.SyncDrive(ctx, task.UserEmail); err != nil {
			return 0, fmt.Errorf("sync drive: %w", err)
		}
		log.Infof("【步骤2】摄取云盘数据, user: %s", task.UserEmail)
		return p.drive.EmbedDrive(ctx, task.UserEmail)

	case model.DataSourceEmail:
		log.Infof("【步骤1】同步邮件数据, user: %s", task.UserEmail)
		if _, err := p.sync.SyncEmails(ctx, task.UserEmail); err != nil {
			return 0, fmt.Errorf("sync emails: %w", err)
		}
		log.Infof("【步骤2】摄取邮件数据, user: %s", task.UserEmail)
		return p.email.EmbedEmail(ctx, task.UserEmail)

	default:
		return 0, fmt.Errorf("unknown data source: %q", task.DataSource)
	}
}
