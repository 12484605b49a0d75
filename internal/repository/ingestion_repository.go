package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"workspace-assistant-go/internal/model"
)

// IngestionRepository 接口定义了对数据同步任务记录的操作。
type IngestionRepository interface {
	Create(run *model.IngestionRun) error
	MarkRunning(runID uint) error
	MarkCompleted(runID uint, docsCount int) error
	MarkFailed(runID uint, runErr error) error
	// Latest 返回某用户某数据来源最近的一次同步记录, 不存在时返回 nil。
	Latest(email, dataSource string) (*model.IngestionRun, error)
}

type ingestionRepository struct {
	db *gorm.DB
}

// NewIngestionRepository 创建一个新的 IngestionRepository 实例。
func NewIngestionRepository(db *gorm.DB) IngestionRepository {
	return &ingestionRepository{db: db}
}

func (r *ingestionRepository) Create(run *model.IngestionRun) error {
	return r.db.Create(run).Error
}

func (r *ingestionRepository) MarkRunning(runID uint) error {
	return r.db.Model(&model.IngestionRun{}).Where("id = ?", runID).
		Update("status", model.RunStatusRunning).Error
}

func (r *ingestionRepository) MarkCompleted(runID uint, docsCount int) error {
	now := time.Now()
	return r.db.Model(&model.IngestionRun{}).Where("id = ?", runID).Updates(map[string]interface{}{
		"status":      model.RunStatusCompleted,
		"docs_count":  docsCount,
		"finished_at": &now,
	}).Error
}

func (r *ingestionRepository) MarkFailed(runID uint, runErr error) error {
	now := time.Now()
	message := ""
	if runErr != nil {
		message = runErr.Error()
	}
	return r.db.Model(&model.IngestionRun{}).Where("id = ?", runID).Updates(map[string]interface{}{
		"status":      model.RunStatusFailed,
		"error":       message,
		"finished_at": &now,
	}).Error
}

func (r *ingestionRepository) Latest(email, dataSource string) (*model.IngestionRun, error) {
	var run model.IngestionRun
	err := r.db.Where("user_email = ? AND data_source = ?", email, dataSource).
		Order("created_at DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
