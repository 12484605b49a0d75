package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-assistant-go/pkg/llm"
)

// scriptedLLM 按脚本依次返回输出, 并记录每次收到的提示词。
type scriptedLLM struct {
	outputs []string
	prompts []string
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	out := s.outputs[0]
	s.outputs = s.outputs[1:]
	return out, nil
}

func (s *scriptedLLM) GenerateStream(ctx context.Context, prompt string, writer llm.ChunkWriter) error {
	out, err := s.Generate(ctx, prompt)
	if err != nil {
		return err
	}
	return writer.WriteChunk(out)
}

func newTestAgent(t *testing.T, model *scriptedLLM) *Agent {
	t.Helper()
	agent := NewAgent(model, newTestDispatcher(t, &fakeEventOps{}))
	agent.now = func() time.Time {
		return time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)
	}
	return agent
}

func TestAgentExecutesCommandThenAnswers(t *testing.T) {
	model := &scriptedLLM{outputs: []string{
		`{"command": "get_current_time", "args": {}}`,
		`{"answer": "It is half past nine in the evening in Seoul."}`,
	}}
	agent := newTestAgent(t, model)

	answer, err := agent.ProcessMessage(context.Background(), "alice@x.com", "지금 몇 시야?", "primary")
	require.NoError(t, err)
	assert.Equal(t, "It is half past nine in the evening in Seoul.", answer)

	require.Len(t, model.prompts, 2)
	// 首轮提示词包含人设、命令协议与请求上下文
	assert.Contains(t, model.prompts[0], "Google Calendar assistant")
	assert.Contains(t, model.prompts[0], "user_email: alice@x.com")
	assert.Contains(t, model.prompts[0], "calendar_id: primary")
	assert.Contains(t, model.prompts[0], "current weekday: Monday")
	// 第二轮提示词带上了命令执行结果
	assert.Contains(t, model.prompts[1], "Result of get_current_time: 2025-03-10T12:30:00.000000Z")
}

func TestAgentDirectAnswer(t *testing.T) {
	model := &scriptedLLM{outputs: []string{`{"answer": "Hello there!"}`}}
	agent := newTestAgent(t, model)

	answer, err := agent.ProcessMessage(context.Background(), "alice@x.com", "hi", "primary")
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", answer)
}

func TestAgentTreatsUnparseableOutputAsAnswer(t *testing.T) {
	model := &scriptedLLM{outputs: []string{"Sure, your schedule is clear tomorrow."}}
	agent := newTestAgent(t, model)

	answer, err := agent.ProcessMessage(context.Background(), "alice@x.com", "am I free tomorrow?", "primary")
	require.NoError(t, err)
	assert.Equal(t, "Sure, your schedule is clear tomorrow.", answer)
}

func TestAgentRecoversFromBadCommand(t *testing.T) {
	model := &scriptedLLM{outputs: []string{
		`{"command": "teleport", "args": {}}`,
		`{"answer": "sorry, done now"}`,
	}}
	agent := newTestAgent(t, model)

	answer, err := agent.ProcessMessage(context.Background(), "alice@x.com", "do it", "primary")
	require.NoError(t, err)
	assert.Equal(t, "sorry, done now", answer)
	// 失败的命令以错误文本回灌, 而不是中止对话
	assert.Contains(t, model.prompts[1], "Result of teleport: Error:")
}

func TestAgentStopsAfterMaxSteps(t *testing.T) {
	outputs := make([]string, maxAgentSteps)
	for i := range outputs {
		outputs[i] = `{"command": "get_current_time", "args": {}}`
	}
	model := &scriptedLLM{outputs: outputs}
	agent := newTestAgent(t, model)

	answer, err := agent.ProcessMessage(context.Background(), "alice@x.com", "loop forever", "primary")
	require.NoError(t, err)
	assert.Equal(t, fallbackAnswer, answer)
}
