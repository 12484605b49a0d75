package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const userinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// ErrInvalidToken 表示 Google 返回 401，令牌已过期或无效。
var ErrInvalidToken = errors.New("invalid or expired google token")

// UserInfo 是 Google userinfo 接口返回的用户身份。
type UserInfo struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// VerifyAccessToken 用 userinfo 接口校验 Google access token 并取回用户信息。
func (c *Client) VerifyAccessToken(ctx context.Context, accessToken string) (*UserInfo, error) {
	if accessToken == "" {
		return nil, ErrInvalidToken
	}

	req, err := http.NewRequestWithContext(ctx, "GET", userinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建 userinfo 请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用 Google userinfo 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo returned status %d", resp.StatusCode)
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("解析 userinfo 响应失败: %w", err)
	}
	if info.Email == "" {
		return nil, ErrInvalidToken
	}
	return &info, nil
}
