// Package agenttest provides a scripted ChatModel for loop tests.
package agenttest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dpnam2112/codemate-backend/internal/modules/recommend/agent"
)

// Step produces one assistant message. It may inspect the request, for
// example to read the previous tool result.
type Step func(req agent.ModelRequest) (agent.Message, error)

// Script replays steps in order. Once exhausted it repeats the last step.
type Script struct {
	Steps []Step

	mu       sync.Mutex
	requests []agent.ModelRequest
}

func (s *Script) Generate(ctx context.Context, req agent.ModelRequest) (agent.Message, error) {
	s.mu.Lock()
	i := len(s.requests)
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if len(s.Steps) == 0 {
		return agent.Message{}, fmt.Errorf("agenttest: empty script")
	}
	if i >= len(s.Steps) {
		i = len(s.Steps) - 1
	}
	return s.Steps[i](req)
}

func (s *Script) Requests() []agent.ModelRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]agent.ModelRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Call returns a step that requests one tool with args marshaled to JSON.
func Call(name agent.ToolName, args any) Step {
	return CallMany(Pair{Name: name, Args: args})
}

type Pair struct {
	Name agent.ToolName
	Args any
}

// CallMany returns a step requesting several tools in one message.
func CallMany(calls ...Pair) Step {
	return func(req agent.ModelRequest) (agent.Message, error) {
		msg := agent.Message{Role: agent.RoleAssistant}
		for i, c := range calls {
			raw, err := json.Marshal(c.Args)
			if err != nil {
				return agent.Message{}, err
			}
			msg.ToolCalls = append(msg.ToolCalls, agent.ToolCall{
				ID:        fmt.Sprintf("call_%d_%d", len(req.Messages), i),
				Name:      c.Name,
				Arguments: raw,
			})
		}
		return msg, nil
	}
}

// RawCall requests a tool with literal argument bytes.
func RawCall(name agent.ToolName, raw string) Step {
	return func(req agent.ModelRequest) (agent.Message, error) {
		return agent.Message{Role: agent.RoleAssistant, ToolCalls: []agent.ToolCall{
			{ID: fmt.Sprintf("call_%d", len(req.Messages)), Name: name, Arguments: json.RawMessage(raw)},
		}}, nil
	}
}

// Text returns a step with plain content and no tool call.
func Text(content string) Step {
	return func(agent.ModelRequest) (agent.Message, error) {
		return agent.Message{Role: agent.RoleAssistant, Content: content}, nil
	}
}

// Fail returns a step that errors.
func Fail(err error) Step {
	return func(agent.ModelRequest) (agent.Message, error) { return agent.Message{}, err }
}

// LastToolResult is the content of the latest tool message in req.
func LastToolResult(req agent.ModelRequest) (string, bool) {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == agent.RoleTool {
			return req.Messages[i].Content, true
		}
	}
	return "", false
}
