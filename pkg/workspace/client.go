// Package workspace 封装了对 Google Workspace API（Calendar/Drive/Gmail）
// 的访问，以及 Google OAuth 令牌的校验与刷新。
package workspace

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	drive "google.golang.org/api/drive/v3"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"workspace-assistant-go/internal/config"
	"workspace-assistant-go/pkg/log"
)

// TokenUpdateFunc 在底层 TokenSource 完成一次刷新后被调用，
// 由调用方负责把新令牌持久化（update_user_tokens 语义）。
type TokenUpdateFunc func(tok *oauth2.Token) error

// Client 持有 OAuth 客户端凭据，按用户令牌构造各 API 服务。
type Client struct {
	clientID     string
	clientSecret string
}

// NewClient 创建一个 workspace 客户端。
func NewClient(cfg config.GoogleConfig) *Client {
	return &Client{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}
}

// notifyTokenSource 包装 oauth2.TokenSource，在 access token
// 变化时触发回调，保证刷新结果落库。
type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Errorf("持久化刷新后的令牌失败: %v", err)
		}
	}
	return t, nil
}

// httpClient 基于用户令牌构造带自动刷新的 http.Client。
func (c *Client) httpClient(ctx context.Context, accessToken, refreshToken string, onRefresh TokenUpdateFunc) *http.Client {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}

	conf := &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint:     google.Endpoint,
	}

	src := &notifyTokenSource{
		src:      conf.TokenSource(ctx, token),
		current:  token,
		callback: onRefresh,
	}
	return oauth2.NewClient(ctx, src)
}

// CalendarService 构造用户级的 Calendar API 服务。
func (c *Client) CalendarService(ctx context.Context, accessToken, refreshToken string, onRefresh TokenUpdateFunc) (*calendar.Service, error) {
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(c.httpClient(ctx, accessToken, refreshToken, onRefresh)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	return srv, nil
}

// DriveService 构造用户级的 Drive API 服务。
func (c *Client) DriveService(ctx context.Context, accessToken, refreshToken string, onRefresh TokenUpdateFunc) (*drive.Service, error) {
	srv, err := drive.NewService(ctx, option.WithHTTPClient(c.httpClient(ctx, accessToken, refreshToken, onRefresh)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}
	return srv, nil
}

// GmailService 构造用户级的 Gmail API 服务。
func (c *Client) GmailService(ctx context.Context, accessToken, refreshToken string, onRefresh TokenUpdateFunc) (*gmail.Service, error) {
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(c.httpClient(ctx, accessToken, refreshToken, onRefresh)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}
