package parley

import "encoding/json"

// --- Domain types (broker records) ---

// Member is the identity record of a participant. MemberID is assigned at
// signup and immutable for the lifetime of the account.
type Member struct {
	MemberID      string   `json:"member_id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	ListenInChats []string `json:"listen_in_chats,omitempty"`
}

// Chat is a named room. Members is ordered; insertion order is the
// round-robin speaking order. Manager, when set, is the member arbitering
// turn-taking in this chat. Listeners receive messages without participating.
type Chat struct {
	ChatID      string   `json:"chat_id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	IsGroup     bool     `json:"is_group"`
	Members     []string `json:"members"`
	CreatedBy   string   `json:"created_by"`
	CreatedAt   string   `json:"createdAt"`
	Manager     string   `json:"manager,omitempty"`
	Listeners   []string `json:"listeners,omitempty"`
}

// Message is an atomic utterance. Immutable once produced; MessageID is a
// client-generated UUID, Timestamp an RFC 3339 string.
type Message struct {
	MessageID      string `json:"message_id"`
	ChatID         string `json:"chat_id"`
	FromMemberID   string `json:"from_member_id"`
	FromMemberName string `json:"from_member_name"`
	MessageType    string `json:"message_type"`
	Message        string `json:"message"`
	Timestamp      string `json:"timestamp"`
}

// Notification is a Message with a declared destination chat distinct from
// its originating chat. It is the cross-chat side channel: a participant of
// chat A addresses the manager of chat B, who relays a human-readable
// message into B.
type Notification struct {
	Message
	ToChatID string `json:"to_chat_id"`
}

// Command is a typed RPC request from one member to one or more recipients.
type Command struct {
	Command string         `json:"command"`
	By      string         `json:"by"`
	To      []string       `json:"to"`
	Data    map[string]any `json:"data,omitempty"`
}

// CommandBasicInfo identifies the command a CommandResult answers.
// To is the single recipient that produced the result.
type CommandBasicInfo struct {
	Command string `json:"command"`
	By      string `json:"by"`
	To      string `json:"to"`
}

// CommandResult is one recipient's reply to a Command. A command sent to N
// recipients yields exactly N results, or none at all on timeout.
type CommandResult struct {
	Result  any              `json:"result"`
	Command CommandBasicInfo `json:"command"`
}

// NextSpeaker is the broker-relayed signal that a specific member is
// expected to produce the next message in a chat.
type NextSpeaker struct {
	ChatID    string `json:"chat_id"`
	MemberID  string `json:"member_id"`
	ManagerID string `json:"manager_id"`
}

// LoginResponse is the push the broker sends after the auth handshake.
type LoginResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// statusReply is the broker's envelope for chat-management calls.
type statusReply struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (r statusReply) ok() bool { return r.Status == "success" }
