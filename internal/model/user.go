package model

import "time"

// User 对应数据库中的 'users' 表，保存 Google 账户信息与 OAuth 令牌。
type User struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name         string     `gorm:"type:varchar(255)" json:"name"`
	Picture      string     `gorm:"type:varchar(512)" json:"picture"`
	PasswordHash string     `gorm:"type:varchar(255)" json:"-"` // 仅 test_mode 本地用户使用
	AccessToken  string     `gorm:"type:text" json:"-"`
	RefreshToken string     `gorm:"type:text" json:"-"`
	TokenExpiry  *time.Time `gorm:"default:null" json:"-"`

	// 各服务的初始化状态（是否完成过 setup）。
	CalendarSetup bool       `gorm:"not null;default:false" json:"calendarSetup"`
	EmailSetup    bool       `gorm:"not null;default:false" json:"emailSetup"`
	DriveSetup    bool       `gorm:"not null;default:false" json:"driveSetup"`
	EmailSetupAt  *time.Time `gorm:"default:null" json:"emailSetupAt"`
	DriveSetupAt  *time.Time `gorm:"default:null" json:"driveSetupAt"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}
