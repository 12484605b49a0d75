package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"workspace-assistant-go/internal/model"
	"workspace-assistant-go/internal/repository"
	"workspace-assistant-go/pkg/log"
	"workspace-assistant-go/pkg/token"
	"workspace-assistant-go/pkg/workspace"
)

var (
	// ErrInvalidCredentials 表示本地账号密码校验失败。
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidRefreshToken 表示 refresh token 无效或已过期。
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// TokenPair 是签发给前端的应用会话令牌。
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// UserService 接口定义了用户登录与会话令牌相关的操作。
type UserService interface {
	// GoogleLogin 校验 Google access token, 注册或更新用户, 并签发应用会话令牌。
	GoogleLogin(ctx context.Context, accessToken, refreshToken string, expiry *time.Time) (*TokenPair, *model.User, error)
	// LocalLogin 本地账号密码登录, 仅用于没有 Google 凭证的测试场景。
	LocalLogin(ctx context.Context, email, password string) (*TokenPair, *model.User, error)
	// RefreshToken 用 refresh token 换发新的会话令牌。
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
	GetUserByEmail(email string) (*model.User, error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	users      repository.UserRepository
	jwtManager *token.JWTManager
	google     *workspace.Client
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(users repository.UserRepository, jwtManager *token.JWTManager, google *workspace.Client) UserService {
	return &userService{users: users, jwtManager: jwtManager, google: google}
}

// GoogleLogin 处理 Google 登录的核心逻辑。
func (s *userService) GoogleLogin(ctx context.Context, accessToken, refreshToken string, expiry *time.Time) (*TokenPair, *model.User, error) {
	log.Infof("【步骤1】校验 Google access token")
	info, err := s.google.VerifyAccessToken(ctx, accessToken)
	if err != nil {
		return nil, nil, err
	}

	log.Infof("【步骤2】注册或更新用户记录, email: %s", info.Email)
	user, err := s.users.FindByEmail(info.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		user = &model.User{
			Email:   info.Email,
			Name:    info.Name,
			Picture: info.Picture,
		}
		if err := s.users.Create(user); err != nil {
			return nil, nil, fmt.Errorf("create user: %w", err)
		}
	} else if err != nil {
		return nil, nil, fmt.Errorf("find user: %w", err)
	} else {
		user.Name = info.Name
		user.Picture = info.Picture
	}

	user.AccessToken = accessToken
	if refreshToken != "" {
		user.RefreshToken = refreshToken
	}
	user.TokenExpiry = expiry
	if err := s.users.Update(user); err != nil {
		return nil, nil, fmt.Errorf("update user tokens: %w", err)
	}

	log.Infof("【步骤3】签发应用会话令牌, email: %s", info.Email)
	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// LocalLogin 校验本地账号密码并签发会话令牌。
func (s *userService) LocalLogin(ctx context.Context, email, password string) (*TokenPair, *model.User, error) {
	user, err := s.users.FindByEmail(email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find user: %w", err)
	}
	if user.PasswordHash == "" {
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// RefreshToken 校验 refresh token 并换发新的令牌对。
func (s *userService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwtManager.VerifyToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	user, err := s.users.FindByEmail(claims.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return s.issueTokens(user)
}

func (s *userService) GetUserByEmail(email string) (*model.User, error) {
	return s.users.FindByEmail(email)
}

func (s *userService) issueTokens(user *model.User) (*TokenPair, error) {
	access, err := s.jwtManager.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
