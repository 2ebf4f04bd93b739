package parley

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
)

// TurnStrategy selects how a Manager picks the next speaker in chats with
// more than two participants. Chats with exactly two non-manager members
// always alternate, regardless of strategy.
type TurnStrategy string

const (
	StrategyRoundRobin TurnStrategy = "round_robin"
	StrategyRandom     TurnStrategy = "random"
	StrategyAI         TurnStrategy = "ai"
)

// Manager is a member that arbiters turn-taking in the chats it manages.
// After every message it observes, it picks the next speaker and signals
// them through the broker. It also relays cross-chat notifications: a
// participant of chat A addresses this manager about chat B, and the
// manager posts a human-readable relay into B.
type Manager struct {
	*Agent

	strategy TurnStrategy
	pick     func(n int) int // random strategy; swapped in tests

	agentOpts []AgentOption // collected before the Agent is built
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStrategy sets the turn-selection strategy (default round-robin).
func WithStrategy(s TurnStrategy) ManagerOption {
	return func(m *Manager) { m.strategy = s }
}

// ManagerAgentOptions forwards options to the underlying Agent.
func ManagerAgentOptions(opts ...AgentOption) ManagerOption {
	return func(m *Manager) { m.agentOpts = append(m.agentOpts, opts...) }
}

// NewManager creates a chat manager for the broker at baseURL.
func NewManager(baseURL, name string, opts ...ManagerOption) *Manager {
	m := &Manager{
		strategy: StrategyRoundRobin,
		pick:     rand.Intn,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.Agent = NewAgent(baseURL, name, m.agentOpts...)
	m.Client.OnMessage = m.handleMessage
	m.Client.OnNotification = m.handleNotification
	return m
}

// RegisterChatManager tells the broker this member arbiters chatID. The
// broker enforces at most one manager per chat.
func (m *Manager) RegisterChatManager(ctx context.Context, chatID string) error {
	return m.call(ctx, EventRegisterChatManager, map[string]string{"chat_id": chatID}, nil)
}

// ChooseNextSpeaker signals memberID to speak next in chatID. Fire-and-
// forget: the broker relays the signal to the target member.
func (m *Manager) ChooseNextSpeaker(chatID, memberID string) error {
	ns := NextSpeaker{ChatID: chatID, MemberID: memberID, ManagerID: m.MemberID()}
	return m.Transport().Emit(EventNextSpeaker, ns)
}

// SendNotificationToChat addresses toChatID's manager with text on behalf of
// fromChatID. The receiving manager decides how to surface it.
func (m *Manager) SendNotificationToChat(ctx context.Context, fromChatID, toChatID, text string) error {
	n := Notification{Message: m.NewMessage(fromChatID, text), ToChatID: toChatID}
	return m.call(ctx, EventSendNotificationToChat, n, nil)
}

// handleMessage mirrors the message and advances the turn. Runs on a worker
// goroutine per message.
func (m *Manager) handleMessage(msg Message) {
	m.Memory().AddMessage(msg)
	ctx := context.Background()
	next := m.nextSpeaker(ctx, msg)
	if next == "" {
		return
	}
	if err := m.ChooseNextSpeaker(msg.ChatID, next); err != nil {
		m.logger.Warn("choose next speaker failed", "chat_id", msg.ChatID, "error", err)
	}
}

// handleNotification relays a cross-chat notification into its destination
// chat as a readable message naming the source chat.
func (m *Manager) handleNotification(n Notification) {
	ctx := context.Background()
	name := n.ChatID
	if chat, err := m.GetChat(ctx, n.ChatID); err == nil {
		name = chat.Name
	} else {
		m.logger.Warn("notification source chat lookup failed", "chat_id", n.ChatID, "error", err)
	}
	m.SendMessage(ctx, n.ToChatID, fmt.Sprintf("来自 %s的通知: %s", name, n.Message.Message))
}

// nextSpeaker picks who speaks after msg, or "" to skip the turn.
func (m *Manager) nextSpeaker(ctx context.Context, msg Message) string {
	chat, err := m.GetChat(ctx, msg.ChatID)
	if err != nil {
		m.logger.Warn("turn skipped, chat lookup failed", "chat_id", msg.ChatID, "error", err)
		return ""
	}
	ids := excludeID(chat.Members, m.MemberID())
	if len(ids) == 0 {
		return ""
	}

	// Two participants alternate unconditionally.
	if len(ids) == 2 {
		if msg.FromMemberID == ids[1] {
			return ids[0]
		}
		return ids[1]
	}

	switch m.strategy {
	case StrategyRandom:
		return m.nextByRandom(ids, msg.FromMemberID)
	case StrategyAI:
		return m.nextByAI(ctx, msg)
	default:
		return m.nextByRoundRobin(ids, msg.FromMemberID)
	}
}

// nextByRoundRobin returns the successor of the last speaker in chat-member
// insertion order, wrapping at the end. An unknown last speaker restarts the
// rotation at the first member.
func (m *Manager) nextByRoundRobin(ids []string, lastSpeaker string) string {
	for i, id := range ids {
		if id == lastSpeaker {
			return ids[(i+1)%len(ids)]
		}
	}
	m.logger.Warn("last speaker not in rotation, restarting", "member_id", lastSpeaker)
	return ids[0]
}

// nextByRandom picks uniformly among everyone but the manager and the last
// speaker.
func (m *Manager) nextByRandom(ids []string, lastSpeaker string) string {
	candidates := excludeID(ids, lastSpeaker)
	if len(candidates) == 0 {
		return ""
	}
	return candidates[m.pick(len(candidates))]
}

// nextByAI asks the LLM to read the transcript and name the next speaker.
// An unresolvable name skips the turn.
func (m *Manager) nextByAI(ctx context.Context, msg Message) string {
	if m.provider == nil {
		m.logger.Warn("ai strategy without provider, turn skipped", "chat_id", msg.ChatID)
		return ""
	}

	var names []string
	for _, member := range m.GetChatMembers(ctx, msg.ChatID, true) {
		if member.Name != m.Name() && member.Name != msg.FromMemberName {
			names = append(names, member.Name)
		}
	}
	if len(names) == 0 {
		return ""
	}

	var b strings.Builder
	for _, t := range m.Memory().GetMessages(msg.ChatID) {
		fmt.Fprintf(&b, "%s: %s\n", t.FromMemberName, t.Message)
	}
	fmt.Fprintf(&b, "Read the above conversation. Then select the next role from %v to play. Only return the role.", names)

	resp, err := m.provider.Chat(ctx, ChatRequest{Messages: []ChatMessage{{Role: "user", Content: b.String()}}})
	if err != nil {
		m.logger.Warn("ai next-speaker call failed", "chat_id", msg.ChatID, "error", err)
		return ""
	}
	name := strings.TrimSpace(resp.Content)
	member, err := m.GetMemberByName(ctx, name, true)
	if err != nil {
		m.logger.Warn("ai chose unknown member, turn skipped", "name", name, "error", err)
		return ""
	}
	return member.MemberID
}

// excludeID returns ids without the given id, preserving order.
func excludeID(ids []string, drop string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
