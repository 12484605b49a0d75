// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"workspace-assistant-go/internal/model"
)

// ErrUserNotFound 表示用户记录不存在。
var ErrUserNotFound = errors.New("user not found")

// UserRepository 接口定义了用户数据的持久化操作。
type UserRepository interface {
	Create(user *model.User) error
	FindByEmail(email string) (*model.User, error)
	Update(user *model.User) error
	// UpdateTokens 更新 OAuth 令牌。refreshToken 为空串时保留原值。
	UpdateTokens(email, accessToken, refreshToken string, expiry *time.Time) error
	// MarkServiceSetup 更新某个数据来源的 setup 状态。
	MarkServiceSetup(email, dataSource string, at time.Time) error
}

// userRepository 是 UserRepository 接口的 GORM 实现。
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建一个新的 UserRepository 实例。
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create 在数据库中创建一个新的用户记录。
func (r *userRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

// FindByEmail 根据邮箱从数据库中查找一个用户。
func (r *userRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update 更新数据库中一个已存在的用户记录。
func (r *userRepository) Update(user *model.User) error {
	return r.db.Save(user).Error
}

// UpdateTokens 更新用户的 OAuth 令牌与过期时间。
func (r *userRepository) UpdateTokens(email, accessToken, refreshToken string, expiry *time.Time) error {
	updates := map[string]interface{}{
		"access_token": accessToken,
		"token_expiry": expiry,
	}
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	return r.db.Model(&model.User{}).Where("email = ?", email).Updates(updates).Error
}

// MarkServiceSetup 记录某个数据来源完成了一次 setup。
func (r *userRepository) MarkServiceSetup(email, dataSource string, at time.Time) error {
	updates := map[string]interface{}{}
	switch dataSource {
	case model.DataSourceEmail:
		updates["email_setup"] = true
		updates["email_setup_at"] = at
	case model.DataSourceDrive:
		updates["drive_setup"] = true
		updates["drive_setup_at"] = at
	default:
		return nil
	}
	return r.db.Model(&model.User{}).Where("email = ?", email).Updates(updates).Error
}
