package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dpnam2112/codemate-backend/internal/observability"
	apperr "github.com/dpnam2112/codemate-backend/internal/pkg/errors"
	"github.com/dpnam2112/codemate-backend/internal/platform/envutil"
	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
	"github.com/dpnam2112/codemate-backend/internal/platform/validation"
)

type Config struct {
	MaxTurns int
	// MaxToolCalls caps successful executions per retrieval tool in one run.
	// Zero disables the cap.
	MaxToolCalls int
}

func LoadConfig() Config {
	return Config{
		MaxTurns:     envutil.PositiveInt("RECOMMEND_MAX_TURNS", 10),
		MaxToolCalls: envutil.Int("RECOMMEND_MAX_TOOL_CALLS", 1),
	}
}

// Spec declares one loop instantiation.
type Spec struct {
	Name  string
	Tools []Tool
	// Final is the tool whose arguments become the structured response.
	Final            ToolName
	FinalDescription string
	// Once every tool listed here has returned a result, the next turn forces
	// the final tool.
	Required []ToolName
}

type Deps struct {
	Log          *logger.Logger
	Metrics      *observability.Metrics
	Checkpointer Checkpointer
}

// Loop drives a model through tool calls until it calls the final tool.
// T is the structured response decoded from the final tool's arguments and
// validated with struct tags.
type Loop[T any] struct {
	model   ChatModel
	spec    Spec
	cfg     Config
	tools   map[ToolName]Tool
	specs   []ToolSpec
	log     *logger.Logger
	metrics *observability.Metrics
	cp      Checkpointer
}

func NewLoop[T any](model ChatModel, spec Spec, cfg Config, deps Deps) (*Loop[T], error) {
	if model == nil {
		return nil, errors.New("agent: model required")
	}
	if spec.Final == "" {
		return nil, errors.New("agent: final tool required")
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 10
	}
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.Checkpointer == nil {
		deps.Checkpointer = LogCheckpointer{Log: deps.Log}
	}

	l := &Loop[T]{
		model:   model,
		spec:    spec,
		cfg:     cfg,
		tools:   make(map[ToolName]Tool, len(spec.Tools)),
		log:     deps.Log.With("service", "AgentLoop", "loop", spec.Name),
		metrics: deps.Metrics,
		cp:      deps.Checkpointer,
	}
	for _, t := range spec.Tools {
		ts := t.Spec()
		if ts.Name == spec.Final {
			return nil, fmt.Errorf("agent: tool %s collides with the final tool", ts.Name)
		}
		if _, dup := l.tools[ts.Name]; dup {
			return nil, fmt.Errorf("agent: duplicate tool %s", ts.Name)
		}
		l.tools[ts.Name] = t
		l.specs = append(l.specs, ts)
	}
	for _, name := range spec.Required {
		if _, ok := l.tools[name]; !ok {
			return nil, fmt.Errorf("agent: required tool %s is not registered", name)
		}
	}
	finalParams, err := SchemaFor[T]()
	if err != nil {
		return nil, fmt.Errorf("agent: final tool schema: %w", err)
	}
	l.specs = append(l.specs, ToolSpec{Name: spec.Final, Description: spec.FinalDescription, Parameters: finalParams})
	return l, nil
}

// Result describes a finished run. Final is only meaningful when Outcome is
// OutcomeFinalResponse.
type Result[T any] struct {
	RunID    string
	Outcome  Outcome
	Final    T
	Turns    int
	Messages []Message
}

type runIDKey struct{}

// WithRunID makes the next Run under ctx use id as its run and transcript id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

type run[T any] struct {
	id        string
	state     State[T]
	phase     Phase
	calls     map[ToolName]int
	answered  map[ToolName]bool
	startedAt time.Time
}

// Run executes the state machine from START with the given system and user
// messages.
//
//	START -> AGENT_TURN
//	AGENT_TURN -> TOOL_EXECUTION   latest call is a retrieval tool
//	AGENT_TURN -> RESPOND          latest call is the final tool
//	AGENT_TURN -> END              no tool call
//	TOOL_EXECUTION -> AGENT_TURN
//	RESPOND -> END
func (l *Loop[T]) Run(ctx context.Context, system, user string) (Result[T], error) {
	id, ok := ctx.Value(runIDKey{}).(string)
	if !ok || id == "" {
		id = uuid.NewString()
	}
	r := &run[T]{
		id:        id,
		phase:     PhaseStart,
		calls:     map[ToolName]int{},
		answered:  map[ToolName]bool{},
		startedAt: time.Now(),
	}
	ctx, span := observability.Tracer().Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.loop", l.spec.Name),
		attribute.String("agent.run_id", r.id),
	))
	defer span.End()

	outcome, err := l.drive(ctx, r, system, user)

	span.SetAttributes(attribute.String("agent.outcome", string(outcome)), attribute.Int("agent.turns", r.state.turns))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	l.finish(ctx, r, outcome, err)

	res := Result[T]{RunID: r.id, Outcome: outcome, Turns: r.state.turns, Messages: r.state.Messages()}
	if final, ok := r.state.Final(); ok && err == nil {
		res.Final = final
	}
	return res, err
}

func (l *Loop[T]) drive(ctx context.Context, r *run[T], system, user string) (Outcome, error) {
	for {
		switch r.phase {
		case PhaseStart:
			r.state.append(SystemMessage(system), UserMessage(user))
			r.phase = PhaseAgentTurn

		case PhaseAgentTurn:
			if err := ctx.Err(); err != nil {
				return OutcomeCanceled, err
			}
			if r.state.turns >= l.cfg.MaxTurns {
				return OutcomeTimeout, &TimeoutError{Loop: l.spec.Name, Turns: r.state.turns, Messages: r.state.Messages()}
			}
			msg, err := l.turn(ctx, r)
			if err != nil {
				if ctx.Err() != nil {
					return OutcomeCanceled, ctx.Err()
				}
				return OutcomeModelError, fmt.Errorf("%w: agent turn %d: %w", apperr.ErrRecommendationGeneration, r.state.turns, err)
			}
			r.state.append(msg)
			r.phase = l.route(msg)

		case PhaseToolExecution:
			results, err := l.executeTools(ctx, r)
			if err != nil {
				return OutcomeCanceled, err
			}
			r.state.append(results...)
			r.phase = PhaseAgentTurn

		case PhaseRespond:
			if err := l.respond(r); err != nil {
				return OutcomeInvalidResponse, err
			}
			r.phase = PhaseEnd

		case PhaseEnd:
			if _, ok := r.state.Final(); ok {
				return OutcomeFinalResponse, nil
			}
			return OutcomeNoAction, nil
		}
	}
}

// route inspects only the declared name of the most recent tool call.
func (l *Loop[T]) route(msg Message) Phase {
	last, ok := msg.LastToolCall()
	if !ok {
		return PhaseEnd
	}
	if last.Name == l.spec.Final {
		return PhaseRespond
	}
	return PhaseToolExecution
}

func (l *Loop[T]) toolChoice(r *run[T]) string {
	if len(l.spec.Required) == 0 {
		return ChoiceAuto
	}
	for _, name := range l.spec.Required {
		if !r.answered[name] {
			return ChoiceAuto
		}
	}
	return string(l.spec.Final)
}

func (l *Loop[T]) turn(ctx context.Context, r *run[T]) (Message, error) {
	r.state.turns++
	choice := l.toolChoice(r)
	ctx, span := observability.Tracer().Start(ctx, "agent.turn", trace.WithAttributes(
		attribute.Int("agent.turn", r.state.turns),
		attribute.String("agent.tool_choice", choice),
	))
	defer span.End()

	msg, err := l.model.Generate(ctx, ModelRequest{
		Messages:   r.state.Messages(),
		Tools:      l.specs,
		ToolChoice: choice,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Message{}, err
	}
	msg.Role = RoleAssistant
	for i := range msg.ToolCalls {
		if msg.ToolCalls[i].ID == "" {
			msg.ToolCalls[i].ID = fmt.Sprintf("call_%d_%d", r.state.turns, i)
		}
	}
	l.log.Debug("agent turn", "run_id", r.id, "turn", r.state.turns, "tool_calls", len(msg.ToolCalls), "tool_choice", choice)
	return msg, nil
}

type toolError struct {
	Error string `json:"error"`
}

// executeTools answers every call of the latest assistant message. Results of
// a batch that finishes after cancellation are dropped.
func (l *Loop[T]) executeTools(ctx context.Context, r *run[T]) ([]Message, error) {
	last, _ := r.state.last()
	out := make([]Message, 0, len(last.ToolCalls))
	for _, call := range last.ToolCalls {
		content, status := l.executeOne(ctx, r, call)
		l.metrics.IncToolCall(l.spec.Name, string(call.Name), status)
		out = append(out, toolResultMessage(call, content))
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (l *Loop[T]) executeOne(ctx context.Context, r *run[T], call ToolCall) (string, string) {
	if call.Name == l.spec.Final {
		return encodeToolResult(toolError{Error: fmt.Sprintf("%s must be the last tool call of a message; it was ignored", call.Name)}), "ignored"
	}
	tool, ok := l.tools[call.Name]
	if !ok {
		return encodeToolResult(toolError{Error: fmt.Sprintf("unknown tool %q", call.Name)}), "unknown"
	}
	if l.cfg.MaxToolCalls > 0 && r.calls[call.Name] >= l.cfg.MaxToolCalls {
		l.log.Warn("tool call cap reached", "run_id", r.id, "tool", string(call.Name), "cap", l.cfg.MaxToolCalls)
		return encodeToolResult(toolError{Error: fmt.Sprintf(
			"%s may be called at most %d time(s) and its result is already above; call %s now",
			call.Name, l.cfg.MaxToolCalls, l.spec.Final,
		)}), "capped"
	}

	ctx, span := observability.Tracer().Start(ctx, "agent.tool", trace.WithAttributes(attribute.String("agent.tool", string(call.Name))))
	defer span.End()

	result, err := tool.Call(ctx, call.Arguments)
	if err != nil {
		span.RecordError(err)
		l.log.Warn("tool call failed", "run_id", r.id, "tool", string(call.Name), "error", err)
		return encodeToolResult(toolError{Error: err.Error()}), "error"
	}
	r.calls[call.Name]++
	r.answered[call.Name] = true
	return encodeToolResult(result), "ok"
}

func encodeToolResult(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, "unencodable tool result: "+err.Error())
	}
	return string(b)
}

func (l *Loop[T]) respond(r *run[T]) error {
	last, _ := r.state.last()
	call, _ := last.LastToolCall()
	v, err := decodeArgs[T](call.Arguments)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrRecommendationGeneration, err)
	}
	if err := validation.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrRecommendationGeneration, err)
	}
	r.state.setFinal(v)
	return nil
}

func (l *Loop[T]) finish(ctx context.Context, r *run[T], outcome Outcome, runErr error) {
	l.metrics.ObserveAgentRun(l.spec.Name, string(outcome), r.state.turns)

	t := Transcript{
		RunID:     r.id,
		Loop:      l.spec.Name,
		Outcome:   outcome,
		Turns:     r.state.turns,
		Messages:  r.state.Messages(),
		StartedAt: r.startedAt,
		EndedAt:   time.Now(),
	}
	if runErr != nil {
		t.Error = runErr.Error()
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := l.cp.Save(saveCtx, t); err != nil {
		l.log.Warn("agent checkpoint failed", "run_id", r.id, "error", err)
	}

	if runErr != nil {
		l.log.Warn("agent run failed", "run_id", r.id, "outcome", string(outcome), "turns", r.state.turns, "error", runErr)
		return
	}
	l.log.Info("agent run finished", "run_id", r.id, "outcome", string(outcome), "turns", r.state.turns)
}
