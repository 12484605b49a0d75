package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-assistant-go/pkg/llm"
	"workspace-assistant-go/pkg/token"
)

// slowStreamChatService 持续产出分片, 直到 writer 报错为止。
// 用来模拟一个长回答, 好让停止指令能在回答进行中到达。
type slowStreamChatService struct {
	chunk    string
	maxSteps int
}

func (s *slowStreamChatService) EmailAnswer(ctx context.Context, userEmail, question string) (string, error) {
	return s.chunk, nil
}

func (s *slowStreamChatService) EmailAnswerStream(ctx context.Context, userEmail, question string, writer llm.ChunkWriter) error {
	for i := 0; i < s.maxSteps; i++ {
		if err := writer.WriteChunk(s.chunk); err != nil {
			return err
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

func (s *slowStreamChatService) DriveAnswer(ctx context.Context, userEmail, question, directory string) (string, error) {
	return s.chunk, nil
}

func (s *slowStreamChatService) DriveAnswerStream(ctx context.Context, userEmail, question, directory string, writer llm.ChunkWriter) error {
	return s.EmailAnswerStream(ctx, userEmail, question, writer)
}

type wsFrame struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Chunk  string `json:"chunk"`
	Error  string `json:"error"`
}

func dialWsChat(t *testing.T, chatService *slowStreamChatService) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtManager := token.NewJWTManager("test-secret", 1, 1)
	accessToken, err := jwtManager.GenerateToken(1, "alice@x.com")
	require.NoError(t, err)

	r := gin.New()
	handler := NewWsChatHandler(chatService, jwtManager)
	r.GET("/ws/chat/:source/:token", handler.Handle)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/chat/email/" + accessToken
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrames(t *testing.T, conn *websocket.Conn) []wsFrame {
	t.Helper()
	var frames []wsFrame
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		_, message, err := conn.ReadMessage()
		require.NoError(t, err)

		var frame wsFrame
		require.NoError(t, json.Unmarshal(message, &frame))
		frames = append(frames, frame)
		if frame.Type == "completion" {
			return frames
		}
	}
}

func TestWsChatStopInterruptsStreamingAnswer(t *testing.T) {
	chatService := &slowStreamChatService{chunk: "词", maxSteps: 1000}
	conn := dialWsChat(t, chatService)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"user_message":"今天有什么新邮件"}`)))

	// 等第一个分片到达, 确认回答已经在流式输出中
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, first, err := conn.ReadMessage()
	require.NoError(t, err)
	var firstFrame wsFrame
	require.NoError(t, json.Unmarshal(first, &firstFrame))
	require.Equal(t, "词", firstFrame.Chunk)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stop"}`)))

	frames := readFrames(t, conn)

	chunks := 0
	sawStopAck := false
	sawError := false
	for _, frame := range frames {
		switch {
		case frame.Chunk != "":
			chunks++
		case frame.Type == "stop":
			sawStopAck = true
		case frame.Error != "":
			sawError = true
		}
	}
	assert.True(t, sawStopAck)
	// 停止后流在远未到 maxSteps 时就结束了
	assert.Less(t, chunks, chatService.maxSteps/2)
	// 停止不算失败, 不应下发错误帧
	assert.False(t, sawError)
	assert.Equal(t, "finished", frames[len(frames)-1].Status)
}

func TestWsChatPlainTextMessageIsAQuestion(t *testing.T) {
	chatService := &slowStreamChatService{chunk: "答案", maxSteps: 1}
	conn := dialWsChat(t, chatService)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("并非 JSON 的问题")))

	frames := readFrames(t, conn)
	require.NotEmpty(t, frames)
	assert.Equal(t, "答案", frames[0].Chunk)
	assert.Equal(t, "completion", frames[len(frames)-1].Type)
}
