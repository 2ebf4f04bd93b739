package parley

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ChatLog is one chat's in-process transcript. Messages are kept in append
// order. Safe for concurrent use.
type ChatLog struct {
	chatID string

	mu       sync.RWMutex
	messages []Message
}

// NewChatLog returns an empty transcript for chatID.
func NewChatLog(chatID string) *ChatLog {
	return &ChatLog{chatID: chatID}
}

// ChatID returns the chat this transcript belongs to.
func (c *ChatLog) ChatID() string { return c.chatID }

// Add appends m to the transcript.
func (c *ChatLog) Add(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
}

// Messages returns a copy of the transcript in append order.
func (c *ChatLog) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages in the transcript.
func (c *ChatLog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Remove deletes the message with messageID, if present.
func (c *ChatLog) Remove(messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.messages {
		if m.MessageID == messageID {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			return
		}
	}
}

// Clear empties the transcript. The chat record itself survives.
func (c *ChatLog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

// Render formats the transcript as one "[<timestamp>] <name>: <text>" line
// per message.
func (c *ChatLog) Render() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var b strings.Builder
	for _, m := range c.messages {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Timestamp, m.FromMemberName, m.Message)
	}
	return b.String()
}

// SaveToFile writes the rendered transcript to <dir>/<chat_id>.txt, creating
// dir if needed. It returns the path written.
func (c *ChatLog) SaveToFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, c.chatID+".txt")
	if err := os.WriteFile(path, []byte(c.Render()), 0o644); err != nil {
		return "", fmt.Errorf("write chat log: %w", err)
	}
	return path, nil
}

// ChatMemory is a member's in-process store of chat transcripts, plus the
// depth-1 reference-chat relation used to widen an agent's context.
type ChatMemory struct {
	mu    sync.RWMutex
	chats map[string]*ChatLog
	refs  map[string][]string
}

// NewChatMemory returns an empty store.
func NewChatMemory() *ChatMemory {
	return &ChatMemory{
		chats: make(map[string]*ChatLog),
		refs:  make(map[string][]string),
	}
}

// GetChat returns the transcript for chatID, creating an empty one if absent.
func (m *ChatMemory) GetChat(chatID string) *ChatLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[chatID]
	if !ok {
		c = NewChatLog(chatID)
		m.chats[chatID] = c
	}
	return c
}

// peek returns the transcript without creating one.
func (m *ChatMemory) peek(chatID string) (*ChatLog, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chats[chatID]
	return c, ok
}

// AddMessage appends msg to its chat's transcript, creating the chat record
// on first use.
func (m *ChatMemory) AddMessage(msg Message) {
	m.GetChat(msg.ChatID).Add(msg)
}

// GetMessages returns a copy of chatID's transcript, empty when the chat has
// no record yet.
func (m *ChatMemory) GetMessages(chatID string) []Message {
	c, ok := m.peek(chatID)
	if !ok {
		return nil
	}
	return c.Messages()
}

// RemoveMessage deletes messageID from chatID's transcript. The return value
// reports whether the chat had a record, not whether the message was found.
func (m *ChatMemory) RemoveMessage(messageID, chatID string) bool {
	c, ok := m.peek(chatID)
	if !ok {
		return false
	}
	c.Remove(messageID)
	return true
}

// ClearChat empties chatID's transcript, keeping the chat record.
func (m *ChatMemory) ClearChat(chatID string) {
	if c, ok := m.peek(chatID); ok {
		c.Clear()
	}
}

// AddReferenceChat links refID as a context source for mainID. The relation
// is depth 1: references of references are never followed.
func (m *ChatMemory) AddReferenceChat(mainID, refID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.refs[mainID] {
		if id == refID {
			return
		}
	}
	m.refs[mainID] = append(m.refs[mainID], refID)
}

// RemoveReferenceChat unlinks refID from mainID. Unknown links are a no-op.
func (m *ChatMemory) RemoveReferenceChat(mainID, refID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.refs[mainID]
	for i, id := range ids {
		if id == refID {
			m.refs[mainID] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

// ReferenceChats returns a copy of mainID's reference-chat ids.
func (m *ChatMemory) ReferenceChats(mainID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.refs[mainID]))
	copy(out, m.refs[mainID])
	return out
}

// ContextMessages returns chatID's transcript merged with the transcripts of
// its reference chats, sorted ascending by timestamp. Reference chats with no
// local record contribute nothing.
func (m *ChatMemory) ContextMessages(chatID string) []Message {
	merged := m.GetMessages(chatID)
	for _, refID := range m.ReferenceChats(chatID) {
		merged = append(merged, m.GetMessages(refID)...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
