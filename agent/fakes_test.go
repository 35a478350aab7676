package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"datachat/dataset"
)

// scripted is one canned model turn: either a response or an error.
type scripted struct {
	text string
	err  error
}

// scriptedModel replays canned responses in order and records every prompt
// it was sent.
type scriptedModel struct {
	script  []scripted
	calls   int
	systems []string
	prompts []string
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.calls++
	for _, msg := range input {
		switch msg.Role {
		case schema.System:
			m.systems = append(m.systems, msg.Content)
		case schema.User:
			m.prompts = append(m.prompts, msg.Content)
		}
	}
	if len(m.script) == 0 {
		return nil, fmt.Errorf("scripted model: no response left for call %d", m.calls)
	}
	turn := m.script[0]
	m.script = m.script[1:]
	if turn.err != nil {
		return nil, turn.err
	}
	return &schema.Message{Role: schema.Assistant, Content: turn.text}, nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("scripted model does not stream")
}

// fakeBuilder hands out one scripted model and records the useFallback flag
// of every Build call.
type fakeBuilder struct {
	cm       model.BaseChatModel
	buildErr error

	fallbackCalls []bool
}

func (b *fakeBuilder) Build(ctx context.Context, useFallback bool) (model.BaseChatModel, error) {
	b.fallbackCalls = append(b.fallbackCalls, useFallback)
	if b.buildErr != nil {
		return nil, b.buildErr
	}
	return b.cm, nil
}

// memHandle serves a fixed frame from memory.
type memHandle struct {
	frame     *dataset.Frame
	schemaErr error
}

func (h *memHandle) Schema() (dataset.Schema, error) {
	if h.schemaErr != nil {
		return nil, h.schemaErr
	}
	return h.frame.Columns, nil
}

func (h *memHandle) Materialize() (*dataset.Frame, error) {
	if h.schemaErr != nil {
		return nil, h.schemaErr
	}
	return h.frame, nil
}

func (h *memHandle) Source() string { return "mem" }

func suppliersHandle(t *testing.T) *memHandle {
	t.Helper()
	return &memHandle{frame: &dataset.Frame{
		Columns: dataset.Schema{
			{Name: "supplier_name", Type: dataset.TypeText},
			{Name: "total_revenue", Type: dataset.TypeReal},
		},
		Rows: [][]any{
			{"acme", 120.0},
			{"globex", 300.0},
			{"initech", 80.0},
			{"umbrella", 500.0},
			{"soylent", 40.0},
			{"stark", 700.0},
		},
	}}
}

// codeResponse wraps Starlark code in the tagged-block protocol.
func codeResponse(code string) string {
	return "<thinking>ok</thinking>\n<plan>run it</plan>\n<code>\n" + code + "\n</code>"
}

func planResponse(routing string, requiresViz bool, chartType string) string {
	return fmt.Sprintf(`<plan>{"intent":"analysis","primary_task":"do it","requires_sql":false,"requires_viz":%v,"chart_type":%q,"complexity":"low","routing":%q}</plan>`,
		requiresViz, chartType, routing)
}
