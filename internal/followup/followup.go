// Package followup carries a bounded question and answer conversation about
// one completed skin analysis.
package followup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/raine/telegram-skinwise-bot/internal/analysis"
	"github.com/raine/telegram-skinwise-bot/internal/llm"
	"github.com/rs/zerolog/log"
)

// DefaultMaxTurns bounds a conversation, counting both roles.
const DefaultMaxTurns = 20

// FallbackReply is the assistant turn used when the model cannot be reached.
const FallbackReply = "I'm sorry, but I encountered an error and can't respond right now. Please try again later."

var (
	ErrTurnInProgress   = errors.New("a follow-up question is already being answered")
	ErrConversationFull = errors.New("conversation turn limit reached")
	ErrEmptyQuestion    = errors.New("empty question")
	ErrInvalidHistory   = errors.New("invalid conversation history")
)

// Conversation is the append-only history scoped to one analysis result.
// It is owned by the caller and safe for concurrent use, but only one turn
// may be outstanding at a time.
type Conversation struct {
	result  *analysis.Result
	context string

	mu    sync.Mutex
	turns []llm.Turn
	busy  bool
}

func NewConversation(result *analysis.Result) *Conversation {
	return &Conversation{result: result, context: DiagnosisContext(result)}
}

// RestoreConversation rebuilds a conversation from a history held by a
// stateless client. Turns must alternate, starting with the user and ending
// with an answer.
func RestoreConversation(result *analysis.Result, history []llm.Turn) (*Conversation, error) {
	for i, turn := range history {
		want := llm.RoleUser
		if i%2 == 1 {
			want = llm.RoleAssistant
		}
		if turn.Role != want {
			return nil, fmt.Errorf("%w: turn %d has role %q, want %q", ErrInvalidHistory, i, turn.Role, want)
		}
	}
	if len(history)%2 == 1 {
		return nil, fmt.Errorf("%w: last turn is an unanswered question", ErrInvalidHistory)
	}
	c := NewConversation(result)
	c.turns = append([]llm.Turn(nil), history...)
	return c, nil
}

// Result returns the analysis the conversation is about.
func (c *Conversation) Result() *analysis.Result {
	return c.result
}

// History returns a copy of the turns so far.
func (c *Conversation) History() []llm.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Turn(nil), c.turns...)
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Manager forwards follow-up questions to the inference gateway. It holds no
// per-conversation state.
type Manager struct {
	gateway  llm.Gateway
	maxTurns int
}

func NewManager(gateway llm.Gateway, maxTurns int) *Manager {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Manager{gateway: gateway, maxTurns: maxTurns}
}

// MaxTurns returns the conversation bound.
func (m *Manager) MaxTurns() int {
	return m.maxTurns
}

// begin appends the user turn and marks the conversation busy. It returns
// the history that preceded the new turn.
func (m *Manager) begin(conv *Conversation, text string) ([]llm.Turn, error) {
	conv.mu.Lock()
	defer conv.mu.Unlock()
	if conv.busy {
		return nil, ErrTurnInProgress
	}
	if len(conv.turns)+2 > m.maxTurns {
		return nil, ErrConversationFull
	}
	prior := append([]llm.Turn(nil), conv.turns...)
	conv.turns = append(conv.turns, llm.Turn{Role: llm.RoleUser, Content: text})
	conv.busy = true
	return prior, nil
}

func (m *Manager) finish(conv *Conversation, reply llm.Turn) {
	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.turns = append(conv.turns, reply)
	conv.busy = false
}

// SubmitTurn asks text about the conversation's analysis and returns the
// assistant turn, which has already been appended to conv. A gateway failure
// is not returned; the fallback reply is appended instead.
func (m *Manager) SubmitTurn(ctx context.Context, conv *Conversation, text string) (llm.Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return llm.Turn{}, ErrEmptyQuestion
	}

	prior, err := m.begin(conv, text)
	if err != nil {
		return llm.Turn{}, err
	}

	reply, err := m.gateway.FollowUp(ctx, llm.FollowUpRequest{
		DiagnosisContext: conv.context,
		History:          prior,
		Question:         text,
	})
	if err != nil {
		log.Warn().Err(err).Str("analysisId", conv.result.ID).Msg("follow-up failed, using fallback reply")
		reply = FallbackReply
	} else {
		reply = withDisclaimer(reply)
	}

	turn := llm.Turn{Role: llm.RoleAssistant, Content: reply}
	m.finish(conv, turn)
	log.Debug().Str("analysisId", conv.result.ID).Int("turns", conv.Len()).Msg("follow-up answered")
	return turn, nil
}

func withDisclaimer(reply string) string {
	reply = strings.TrimSpace(reply)
	if strings.Contains(reply, llm.Disclaimer) {
		return reply
	}
	if reply == "" {
		return llm.Disclaimer
	}
	return reply + "\n\n" + llm.Disclaimer
}

// DiagnosisContext renders the result in the fixed form the model is given
// as the only basis for its answers.
func DiagnosisContext(result *analysis.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Condition: %s\n", result.Condition)
	fmt.Fprintf(&b, "Severity: %s\n", result.Severity)
	fmt.Fprintf(&b, "Suggested Remedies: %s\n", joinItems(result.Remedies.Remedies))
	fmt.Fprintf(&b, "Morning Routine: %s\n", joinSteps(result.Remedies.Routine.AM))
	fmt.Fprintf(&b, "Evening Routine: %s\n", joinSteps(result.Remedies.Routine.PM))
	fmt.Fprintf(&b, "Lifestyle Tips: %s", joinItems(result.Remedies.Lifestyle))
	return b.String()
}

func joinItems(items []llm.Item) string {
	if len(items) == 0 {
		return "None"
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.Title + ": " + item.Description
	}
	return strings.Join(parts, "; ")
}

func joinSteps(steps []string) string {
	if len(steps) == 0 {
		return "None"
	}
	return strings.Join(steps, ", ")
}
