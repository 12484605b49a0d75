package service

import (
	"context"
	"fmt"

	"workspace-assistant-go/internal/index"
	"workspace-assistant-go/internal/model"
	"workspace-assistant-go/internal/repository"
	"workspace-assistant-go/pkg/kafka"
	"workspace-assistant-go/pkg/log"
	"workspace-assistant-go/pkg/tasks"
)

// SetupService 接口定义了数据摄取任务的触发、查询与索引清空操作。
type SetupService interface {
	// Trigger 创建一条同步记录并投递异步任务, 返回任务记录。
	Trigger(ctx context.Context, userEmail, dataSource string) (*model.IngestionRun, error)
	// Status 返回某用户某数据来源最近一次同步的状态, 从未同步过时返回 nil。
	Status(userEmail, dataSource string) (*model.IngestionRun, error)
	// RemoveAll 清空一个索引命名空间并重建为空。
	RemoveAll(ctx context.Context, dataSource string) error
}

// setupService 是 SetupService 接口的实现。
type setupService struct {
	runs     repository.IngestionRepository
	producer *kafka.Producer
	store    index.Store
}

// NewSetupService 创建一个新的 SetupService 实例。
func NewSetupService(runs repository.IngestionRepository, producer *kafka.Producer, store index.Store) SetupService {
	return &setupService{runs: runs, producer: producer, store: store}
}

// Trigger 落库一条 pending 记录后把任务写入队列。
func (s *setupService) Trigger(ctx context.Context, userEmail, dataSource string) (*model.IngestionRun, error) {
	if dataSource != model.DataSourceEmail && dataSource != model.DataSourceDrive {
		return nil, fmt.Errorf("unknown data source: %q", dataSource)
	}

	run := &model.IngestionRun{
		UserEmail:  userEmail,
		DataSource: dataSource,
		Status:     model.RunStatusPending,
	}
	if err := s.runs.Create(run); err != nil {
		return nil, fmt.Errorf("create ingestion run: %w", err)
	}

	task := tasks.SetupTask{UserEmail: userEmail, DataSource: dataSource, RunID: run.ID}
	if err := s.producer.ProduceSetupTask(ctx, task); err != nil {
		// 投递失败直接置为失败, 调用方可以重试 setup
		if markErr := s.runs.MarkFailed(run.ID, err); markErr != nil {
			log.Errorf("标记任务失败状态时出错: %v", markErr)
		}
		return nil, fmt.Errorf("enqueue setup task: %w", err)
	}

	log.Infof("setup 任务已投递, user: %s, source: %s, run: %d", userEmail, dataSource, run.ID)
	return run, nil
}

func (s *setupService) Status(userEmail, dataSource string) (*model.IngestionRun, error) {
	return s.runs.Latest(userEmail, dataSource)
}

// RemoveAll 删除并重建命名空间, 这是索引唯一的删除路径。
func (s *setupService) RemoveAll(ctx context.Context, dataSource string) error {
	var namespace string
	switch dataSource {
	case model.DataSourceEmail:
		namespace = index.NamespaceEmail
	case model.DataSourceDrive:
		namespace = index.NamespaceDrive
	default:
		return fmt.Errorf("unknown data source: %q", dataSource)
	}
	log.Infof("重置索引命名空间: %s", namespace)
	return s.store.Reset(ctx, namespace)
}
