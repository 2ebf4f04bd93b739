package parley

import (
	"context"
	"log/slog"
	"strings"
)

// ReplyFunc produces the agent's utterance for one turn. msgs is the
// aggregated context for the chat (own transcript plus reference chats,
// timestamp order). Returning an empty string with nil error skips the turn.
type ReplyFunc func(ctx context.Context, chatID string, msgs []Message) (string, error)

// Agent layers LLM-driven behavior on a member Client: every send and
// receive is mirrored into local memory, and when a manager hands the agent
// the turn it generates a reply from the aggregated context.
//
// The zero extension point is the ReplyFunc; the default builds role-mapped
// LLM context and asks the configured Provider.
type Agent struct {
	*Client

	memory   *ChatMemory
	provider Provider
	system   string
	logger   *slog.Logger
	reply    ReplyFunc

	clientOpts []ClientOption // collected before the Client is built
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithProvider sets the LLM backend used by the default reply path. Wrap it
// with WithRetry/WithRateLimit before passing it in.
func WithProvider(p Provider) AgentOption {
	return func(a *Agent) { a.provider = p }
}

// WithSystemPrompt sets the persona prompt leading every LLM context.
func WithSystemPrompt(s string) AgentOption {
	return func(a *Agent) { a.system = s }
}

// WithReply replaces the default LLM reply path.
func WithReply(fn ReplyFunc) AgentOption {
	return func(a *Agent) { a.reply = fn }
}

// AgentLogger sets the structured logger for the agent and its client.
func AgentLogger(l *slog.Logger) AgentOption {
	return func(a *Agent) { a.logger = l }
}

// AgentClientOptions forwards options to the underlying Client.
func AgentClientOptions(opts ...ClientOption) AgentOption {
	return func(a *Agent) { a.clientOpts = append(a.clientOpts, opts...) }
}

// NewAgent creates an agent member for the broker at baseURL.
func NewAgent(baseURL, name string, opts ...AgentOption) *Agent {
	a := &Agent{memory: NewChatMemory()}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = nopLogger
	}
	a.clientOpts = append(a.clientOpts, WithLogger(a.logger))
	a.Client = NewClient(baseURL, name, a.clientOpts...)
	if a.reply == nil {
		a.reply = a.defaultReply
	}
	a.Client.OnMessage = a.handleMessage
	a.Client.OnNextSpeaker = a.handleNextSpeaker
	return a
}

// Memory returns the agent's chat memory.
func (a *Agent) Memory() *ChatMemory { return a.memory }

// AddReferenceChat links refID as a context source for mainID. Local only;
// the agent must separately be a member or listener of refID for its
// messages to arrive.
func (a *Agent) AddReferenceChat(mainID, refID string) {
	a.memory.AddReferenceChat(mainID, refID)
}

// RemoveReferenceChat unlinks refID from mainID.
func (a *Agent) RemoveReferenceChat(mainID, refID string) {
	a.memory.RemoveReferenceChat(mainID, refID)
}

// SendMessage posts text into chatID, mirroring the sent message into local
// memory.
func (a *Agent) SendMessage(ctx context.Context, chatID, text string) Message {
	m := a.Client.SendMessage(ctx, chatID, text)
	a.memory.AddMessage(m)
	return m
}

// handleMessage mirrors every inbound message into memory. Runs on a worker
// goroutine per message.
func (a *Agent) handleMessage(m Message) {
	a.memory.AddMessage(m)
}

// handleNextSpeaker reacts to a manager handing this agent the turn. It runs
// inline on the receive loop, so the actual reply work moves to a goroutine.
func (a *Agent) handleNextSpeaker(ns NextSpeaker) {
	if ns.MemberID != a.MemberID() {
		return
	}
	go a.takeTurn(ns)
}

// takeTurn generates and sends the agent's reply for one turn. Reply
// failures never crash the session; the agent falls silent for the turn.
func (a *Agent) takeTurn(ns NextSpeaker) {
	msgs := a.memory.ContextMessages(ns.ChatID)
	text, err := a.reply(context.Background(), ns.ChatID, msgs)
	if err != nil {
		a.logger.Error("reply failed, skipping turn",
			"chat_id", ns.ChatID, "member_id", a.MemberID(), "error", err)
		return
	}
	if text == "" {
		return
	}
	a.SendMessage(context.Background(), ns.ChatID, text)
}

// defaultReply builds role-mapped LLM context from the transcript and asks
// the provider.
func (a *Agent) defaultReply(ctx context.Context, chatID string, msgs []Message) (string, error) {
	if a.provider == nil {
		return "", &ErrLLM{Provider: "agent", Message: "no provider configured"}
	}
	req := ChatRequest{Messages: BuildChatContext(a.MemberID(), a.system, msgs)}
	resp, err := a.provider.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}
