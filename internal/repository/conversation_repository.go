package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"workspace-assistant-go/internal/model"
)

const (
	// conversationKeyFormat 会话历史在 Redis 中的 key 格式: chat:history:<source>:<email>
	conversationKeyFormat = "chat:history:%s:%s"
	// conversationMaxLen 每个会话最多保留的消息条数
	conversationMaxLen = 20
	// conversationTTL 会话历史的过期时间
	conversationTTL = 7 * 24 * time.Hour
)

// ConversationRepository 接口定义了对会话历史的读写操作。
type ConversationRepository interface {
	Append(ctx context.Context, source, email string, messages ...model.ChatMessage) error
	History(ctx context.Context, source, email string) ([]model.ChatMessage, error)
	Clear(ctx context.Context, source, email string) error
}

// conversationRepository 基于 Redis List 实现会话历史存储。
type conversationRepository struct {
	rdb *redis.Client
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(rdb *redis.Client) ConversationRepository {
	return &conversationRepository{rdb: rdb}
}

// Append 将若干条消息追加到会话历史尾部, 并裁剪到最大长度。
func (r *conversationRepository) Append(ctx context.Context, source, email string, messages ...model.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	key := fmt.Sprintf(conversationKeyFormat, source, email)
	values := make([]interface{}, 0, len(messages))
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal chat message: %w", err)
		}
		values = append(values, data)
	}
	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, -conversationMaxLen, -1)
	pipe.Expire(ctx, key, conversationTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append conversation history: %w", err)
	}
	return nil
}

// History 按时间顺序返回会话历史。
func (r *conversationRepository) History(ctx context.Context, source, email string) ([]model.ChatMessage, error) {
	key := fmt.Sprintf(conversationKeyFormat, source, email)
	raw, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read conversation history: %w", err)
	}
	messages := make([]model.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg model.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			// 单条损坏的记录跳过, 不影响整段历史
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Clear 删除整段会话历史。
func (r *conversationRepository) Clear(ctx context.Context, source, email string) error {
	key := fmt.Sprintf(conversationKeyFormat, source, email)
	return r.rdb.Del(ctx, key).Err()
}
