package model

import "time"

// IngestionRun 记录一次 setup（同步 + 摄取）任务的执行情况，
// 对应数据库中的 'ingestion_runs' 表。
type IngestionRun struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserEmail  string     `gorm:"type:varchar(255);not null;index" json:"userEmail"`
	DataSource string     `gorm:"type:varchar(16);not null" json:"dataSource"` // "email" 或 "drive"
	Status     string     `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	DocsCount  int        `gorm:"not null;default:0" json:"docsCount"`
	Error      string     `gorm:"type:text" json:"error,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	FinishedAt *time.Time `gorm:"default:null" json:"finishedAt"`
}

// IngestionRun 的状态取值。
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// TableName 指定了此模型在数据库中对应的表名。
func (IngestionRun) TableName() string {
	return "ingestion_runs"
}
