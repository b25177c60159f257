package agent

// Phase is a node of the agent state machine.
type Phase string

const (
	PhaseStart         Phase = "START"
	PhaseAgentTurn     Phase = "AGENT_TURN"
	PhaseToolExecution Phase = "TOOL_EXECUTION"
	PhaseRespond       Phase = "RESPOND"
	PhaseEnd           Phase = "END"
)

type Outcome string

const (
	OutcomeFinalResponse   Outcome = "final_response"
	OutcomeNoAction        Outcome = "no_action"
	OutcomeTimeout         Outcome = "timeout"
	OutcomeInvalidResponse Outcome = "invalid_response"
	OutcomeModelError      Outcome = "model_error"
	OutcomeCanceled        Outcome = "canceled"
)

// State is the per-run transcript. Messages only ever grow, and the final
// response is set at most once.
type State[T any] struct {
	messages []Message
	final    *T
	turns    int
}

func (s *State[T]) append(msgs ...Message) {
	s.messages = append(s.messages, msgs...)
}

func (s *State[T]) setFinal(v T) bool {
	if s.final != nil {
		return false
	}
	s.final = &v
	return true
}

// Messages returns a copy of the transcript.
func (s *State[T]) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *State[T]) Final() (T, bool) {
	if s.final == nil {
		var zero T
		return zero, false
	}
	return *s.final, true
}

func (s *State[T]) last() (Message, bool) {
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}
