package agent

import (
	"context"
	"encoding/json"

	"github.com/dpnam2112/codemate-backend/internal/platform/openai"
)

// ChoiceAuto lets the model decide; any other non-empty value names a tool
// the model must call.
const ChoiceAuto = ""

type ModelRequest struct {
	Messages   []Message
	Tools      []ToolSpec
	ToolChoice string
}

// ChatModel produces the next assistant message.
type ChatModel interface {
	Generate(ctx context.Context, req ModelRequest) (Message, error)
}

// ToolCaller is the tool-calling half of openai.Client.
type ToolCaller interface {
	GenerateWithTools(ctx context.Context, req openai.ToolRequest) (openai.ToolResponse, error)
}

type openAIModel struct {
	client ToolCaller
}

func NewOpenAIModel(client ToolCaller) ChatModel {
	return &openAIModel{client: client}
}

func (m *openAIModel) Generate(ctx context.Context, req ModelRequest) (Message, error) {
	items := make([]openai.Item, 0, len(req.Messages)+4)
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleTool:
			items = append(items, openai.FunctionOutputItem(msg.ToolCallID, msg.Content))
		case RoleAssistant:
			if msg.Content != "" {
				items = append(items, openai.MessageItem(string(RoleAssistant), msg.Content))
			}
			for _, c := range msg.ToolCalls {
				items = append(items, openai.FunctionCallItem(c.ID, string(c.Name), string(c.Arguments)))
			}
		default:
			items = append(items, openai.MessageItem(string(msg.Role), msg.Content))
		}
	}
	tools := make([]openai.FunctionTool, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, openai.FunctionTool{Name: string(t.Name), Description: t.Description, Parameters: t.Parameters})
	}

	resp, err := m.client.GenerateWithTools(ctx, openai.ToolRequest{Input: items, Tools: tools, ToolChoice: req.ToolChoice})
	if err != nil {
		return Message{}, err
	}
	out := Message{Role: RoleAssistant, Content: resp.Text}
	for _, c := range resp.Calls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: c.CallID, Name: ToolName(c.Name), Arguments: json.RawMessage(c.Arguments)})
	}
	return out, nil
}
