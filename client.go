package parley

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// DefaultLoginTimeout bounds how long Login waits for the broker's login
// response push.
const DefaultLoginTimeout = 10 * time.Second

// Client is a member's session with the broker: identity, transport,
// command registry, and the complete member-facing chat API.
//
// Behavior is extended by composition, not subclassing: the Agent and
// Manager layers set the On* hooks and register commands. Hooks must be
// assigned before Login; the transport binds its handlers once per client
// lifetime.
type Client struct {
	member      Member
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
	commands    *CommandRegistry
	callTimeout time.Duration
	loginWait   time.Duration

	transport Transport
	bindOnce  sync.Once

	// Hooks. Nil hooks are skipped. OnMessage and OnNotification run on a
	// worker goroutine per event and may block; the others run inline on the
	// receive loop and must be short.
	OnMessage      func(Message)
	OnNotification func(Notification)
	OnNextSpeaker  func(NextSpeaker)
	OnLoginSuccess func()
	OnDisconnect   func()

	mu      sync.Mutex
	loginOK bool
	loginCh chan LoginResponse

	cacheMu     sync.Mutex
	chatMembers map[string][]Member // primed on first miss, never invalidated
	memberNames map[string]Member
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDescription sets the member's self-description shared at signup.
func WithDescription(d string) ClientOption {
	return func(c *Client) { c.member.Description = d }
}

// WithMemberID sets a pre-existing member id, skipping the need to Signup.
func WithMemberID(id string) ClientOption {
	return func(c *Client) { c.member.MemberID = id }
}

// WithLogger sets the structured logger. If not set, a no-op logger is used.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithCallTimeout sets the default timeout for broker calls (default 30s).
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.callTimeout = d }
}

// WithLoginTimeout sets how long Login waits for the broker's response
// (default 10s).
func WithLoginTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.loginWait = d }
}

// WithHTTPClient sets the HTTP client used for signup.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// WithTransport injects a transport, replacing the socket transport the
// client would otherwise build at Login.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) { c.transport = t }
}

// NewClient creates a member client for the broker at baseURL. The member
// needs an id before Login: either Signup or WithMemberID provides one.
func NewClient(baseURL, name string, opts ...ClientOption) *Client {
	c := &Client{
		member:      Member{Name: name},
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		commands:    NewCommandRegistry(),
		callTimeout: DefaultCallTimeout,
		loginWait:   DefaultLoginTimeout,
		chatMembers: make(map[string][]Member),
		memberNames: make(map[string]Member),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = nopLogger
	}
	c.commands.Register("test", func(data map[string]any) any {
		c.logger.Info("test command received", "name", c.member.Name, "data", data)
		return fmt.Sprintf("%s this is a test command result", c.member.Name)
	})
	return c
}

// MemberID returns the member id, empty before signup.
func (c *Client) MemberID() string { return c.member.MemberID }

// Name returns the member name.
func (c *Client) Name() string { return c.member.Name }

// Member returns the member record as known locally.
func (c *Client) Member() Member { return c.member }

// Commands returns the client's command registry. Registered handlers answer
// inbound receive_command events synchronously.
func (c *Client) Commands() *CommandRegistry { return c.commands }

// Logger returns the client's structured logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Transport returns the underlying transport, nil before the first Login
// when none was injected.
func (c *Client) Transport() Transport { return c.transport }

// LoggedIn reports whether the broker has acknowledged this session.
func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginOK
}

// --- Signup / login / session ---

// Signup registers the member with the broker over HTTP. The member id is
// supplied by the client: an id set via WithMemberID is kept, otherwise a
// fresh one is generated before the request. The broker answers
// {status, message, data} with a numeric status; 200 and 201 are success.
func (c *Client) Signup(ctx context.Context) (Member, error) {
	if c.member.MemberID == "" {
		c.member.MemberID = NewID()
	}
	payload, err := json.Marshal(map[string]string{
		"member_id":   c.member.MemberID,
		"member_name": c.member.Name,
		"description": c.member.Description,
	})
	if err != nil {
		return Member{}, fmt.Errorf("marshal signup: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/signup", bytes.NewReader(payload))
	if err != nil {
		return Member{}, fmt.Errorf("create signup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Member{}, fmt.Errorf("signup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return Member{}, &ErrHTTP{Status: resp.StatusCode, Body: string(body)}
	}

	var reply struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Data    struct {
			MemberID   string `json:"member_id"`
			MemberName string `json:"member_name"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return Member{}, fmt.Errorf("decode signup response: %w", err)
	}
	if reply.Status != http.StatusOK && reply.Status != http.StatusCreated {
		return Member{}, fmt.Errorf("signup rejected (%d): %s", reply.Status, reply.Message)
	}
	if reply.Data.MemberID != "" {
		c.member.MemberID = reply.Data.MemberID
	}
	c.logger.Info("signed up", "member_id", c.member.MemberID, "name", c.member.Name)
	return c.member, nil
}

// Login opens the socket session and blocks until the broker confirms the
// login or the login timeout elapses. A failed or timed-out login is not
// retried; callers re-invoke Login, also after a disconnect.
func (c *Client) Login(ctx context.Context) error {
	if c.member.MemberID == "" {
		return ErrNotLoggedIn
	}
	if c.transport == nil {
		c.transport = NewSocketClient(c.baseURL, c.member.Name, c.member.MemberID, SocketLogger(c.logger), SocketCallTimeout(c.callTimeout))
	}
	c.bindOnce.Do(c.bindHandlers)

	c.mu.Lock()
	c.loginOK = false
	c.loginCh = make(chan LoginResponse, 1)
	ch := c.loginCh
	c.mu.Unlock()

	if err := c.transport.Connect(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(c.loginWait)
	defer timer.Stop()
	select {
	case resp := <-ch:
		if resp.Status != http.StatusOK {
			return fmt.Errorf("login rejected (%d): %s", resp.Status, resp.Message)
		}
		c.mu.Lock()
		c.loginOK = true
		c.mu.Unlock()
		c.logger.Info("logged in", "member_id", c.member.MemberID, "name", c.member.Name)
		if c.OnLoginSuccess != nil {
			c.OnLoginSuccess()
		}
		return nil
	case <-timer.C:
		return ErrLoginTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the session ends.
func (c *Client) Wait() {
	if c.transport != nil {
		c.transport.Wait()
	}
}

// Close tears the session down.
func (c *Client) Close() error {
	if c.transport == nil {
		return nil
	}
	return c.transport.Close()
}

// bindHandlers wires the inbound events exactly once per client lifetime.
func (c *Client) bindHandlers() {
	c.transport.On(EventReceiveLoginResponse, func(data json.RawMessage) any {
		var resp LoginResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Warn("bad login response", "error", err)
			return nil
		}
		c.mu.Lock()
		ch := c.loginCh
		c.mu.Unlock()
		if ch != nil {
			select {
			case ch <- resp:
			default:
			}
		}
		return nil
	})

	c.transport.On(EventDisconnect, func(json.RawMessage) any {
		c.mu.Lock()
		c.loginOK = false
		c.mu.Unlock()
		c.logger.Warn("disconnected", "member_id", c.member.MemberID)
		if c.OnDisconnect != nil {
			c.OnDisconnect()
		}
		return nil
	})

	c.transport.OnWorker(EventReceiveMessage, func(data json.RawMessage) any {
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			c.logger.Warn("bad inbound message", "error", err)
			return nil
		}
		if c.OnMessage != nil {
			c.OnMessage(m)
		}
		return nil
	})

	c.transport.OnWorker(EventReceiveNotificationFromChat, func(data json.RawMessage) any {
		var n Notification
		if err := json.Unmarshal(data, &n); err != nil {
			c.logger.Warn("bad inbound notification", "error", err)
			return nil
		}
		if c.OnNotification != nil {
			c.OnNotification(n)
		}
		return nil
	})

	// Synchronous: the sender's SendCommand awaits this return value.
	c.transport.On(EventReceiveCommand, func(data json.RawMessage) any {
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.logger.Warn("bad inbound command", "error", err)
			return fmt.Sprintf("unknown command,%v", err)
		}
		c.logger.Debug("command received", "command", cmd.Command, "by", cmd.By)
		res := c.commands.Dispatch(cmd)
		if res == nil {
			// Handlers with nothing to report still ack, or the sender
			// would block until its timeout.
			res = true
		}
		return res
	})

	c.transport.On(EventNextSpeaker, func(data json.RawMessage) any {
		var ns NextSpeaker
		if err := json.Unmarshal(data, &ns); err != nil {
			c.logger.Warn("bad next-speaker signal", "error", err)
			return nil
		}
		if c.OnNextSpeaker != nil {
			c.OnNextSpeaker(ns)
		}
		return nil
	})
}

// call issues a broker request and decodes the enveloped reply into out
// (when out is non-nil).
func (c *Client) call(ctx context.Context, event string, payload any, out any) error {
	if c.transport == nil {
		return ErrNotConnected
	}
	raw, err := c.transport.Call(ctx, event, payload, c.callTimeout)
	if err != nil {
		return err
	}
	var reply statusReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return fmt.Errorf("%s: decode reply: %w", event, err)
	}
	if !reply.ok() {
		return fmt.Errorf("%s: %s", event, reply.Message)
	}
	if out != nil && len(reply.Data) > 0 {
		if err := json.Unmarshal(reply.Data, out); err != nil {
			return fmt.Errorf("%s: decode data: %w", event, err)
		}
	}
	return nil
}

// --- Messaging ---

// NewMessage builds a text Message from this member in chatID, stamped with
// a fresh id and timestamp.
func (c *Client) NewMessage(chatID, text string) Message {
	return Message{
		MessageID:      NewID(),
		ChatID:         chatID,
		FromMemberID:   c.member.MemberID,
		FromMemberName: c.member.Name,
		MessageType:    "text",
		Message:        text,
		Timestamp:      Timestamp(),
	}
}

// SendMessage posts text into chatID and returns the Message it built. Send
// failures are logged, not returned: the Message is the caller's record of
// what was attempted, whether or not the broker confirmed it.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) Message {
	m := c.NewMessage(chatID, text)
	if err := c.call(ctx, EventSendMessage, m, nil); err != nil {
		c.logger.Warn("send message failed", "chat_id", chatID, "error", err)
	}
	return m
}

// SendCommand issues a named command to the given member ids and returns one
// CommandResult per recipient. Empty name or recipients, and any transport
// failure, yield an empty result list.
func (c *Client) SendCommand(ctx context.Context, name string, to []string, data map[string]any) []CommandResult {
	if name == "" || len(to) == 0 {
		c.logger.Warn("send command rejected", "command", name, "recipients", len(to))
		return nil
	}
	cmd := Command{Command: name, By: c.member.MemberID, To: to, Data: data}
	var results []CommandResult
	if err := c.call(ctx, EventSendCommand, cmd, &results); err != nil {
		c.logger.Warn("send command failed", "command", name, "error", err)
		return nil
	}
	return results
}

// --- Chat management ---

// CreateChat creates a chat and optionally joins it immediately.
func (c *Client) CreateChat(ctx context.Context, name, description string, isGroup, join bool) (Chat, error) {
	payload := map[string]any{
		"name":        name,
		"description": description,
		"is_group":    isGroup,
	}
	var chat Chat
	if err := c.call(ctx, EventCreateChat, payload, &chat); err != nil {
		return Chat{}, err
	}
	if join {
		if err := c.JoinChat(ctx, chat.ChatID); err != nil {
			return chat, err
		}
	}
	return chat, nil
}

// JoinChat adds this member to chatID.
func (c *Client) JoinChat(ctx context.Context, chatID string) error {
	return c.call(ctx, EventJoinChat, map[string]string{"chat_id": chatID}, nil)
}

// ExitChat removes this member from chatID.
func (c *Client) ExitChat(ctx context.Context, chatID string) error {
	return c.call(ctx, EventExitChat, map[string]string{"chat_id": chatID}, nil)
}

// DeleteChat deletes a chat this member created.
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	return c.call(ctx, EventDeleteChat, map[string]string{"chat_id": chatID}, nil)
}

// PullMembersIntoChat adds the given member ids to chatID.
func (c *Client) PullMembersIntoChat(ctx context.Context, chatID string, memberIDs []string) error {
	payload := map[string]any{"chat_id": chatID, "members": memberIDs}
	return c.call(ctx, EventPullMembersIntoChat, payload, nil)
}

// RemoveMemberFromChat removes memberID from chatID.
func (c *Client) RemoveMemberFromChat(ctx context.Context, chatID, memberID string) error {
	payload := map[string]string{"chat_id": chatID, "member_id": memberID}
	return c.call(ctx, EventRemoveMemberFromChat, payload, nil)
}

// --- Lookups (non-destructive: failures log and return empty) ---

// GetChat fetches the chat record for chatID.
func (c *Client) GetChat(ctx context.Context, chatID string) (Chat, error) {
	var chat Chat
	err := c.call(ctx, EventGetChat, map[string]string{"chat_id": chatID}, &chat)
	return chat, err
}

// GetChatMembers returns chatID's member records. With useCache, a
// process-local cache primed on first miss answers subsequent lookups; the
// cache is never invalidated, so membership changes require useCache=false.
func (c *Client) GetChatMembers(ctx context.Context, chatID string, useCache bool) []Member {
	if useCache {
		c.cacheMu.Lock()
		cached, ok := c.chatMembers[chatID]
		c.cacheMu.Unlock()
		if ok {
			return cached
		}
	}
	// complete selects the full-record variant of the reply; the broker
	// returns bare member ids otherwise.
	var members []Member
	if err := c.call(ctx, EventGetChatMembers, map[string]any{"chat_id": chatID, "complete": true}, &members); err != nil {
		c.logger.Warn("get chat members failed", "chat_id", chatID, "error", err)
		return nil
	}
	c.cacheMu.Lock()
	c.chatMembers[chatID] = members
	c.cacheMu.Unlock()
	return members
}

// GetJoinedChats returns the chats this member participates in.
func (c *Client) GetJoinedChats(ctx context.Context) []Chat {
	var chats []Chat
	if err := c.call(ctx, EventGetJoinedChats, map[string]string{}, &chats); err != nil {
		c.logger.Warn("get joined chats failed", "error", err)
		return nil
	}
	return chats
}

// GetCreatedChats returns the chats this member created.
func (c *Client) GetCreatedChats(ctx context.Context) []Chat {
	var chats []Chat
	if err := c.call(ctx, EventGetCreatedChats, map[string]string{}, &chats); err != nil {
		c.logger.Warn("get created chats failed", "error", err)
		return nil
	}
	return chats
}

// GetMember fetches one member record by id.
func (c *Client) GetMember(ctx context.Context, memberID string) (Member, error) {
	var m Member
	err := c.call(ctx, EventGetMember, map[string]string{"member_id": memberID}, &m)
	return m, err
}

// GetMembers fetches member records for the given ids.
func (c *Client) GetMembers(ctx context.Context, memberIDs []string) []Member {
	var members []Member
	if err := c.call(ctx, EventGetMembers, map[string]any{"members": memberIDs}, &members); err != nil {
		c.logger.Warn("get members failed", "error", err)
		return nil
	}
	return members
}

// GetMemberByName resolves a member name to its record. With useCache, a
// process-local cache primed on first miss answers subsequent lookups.
func (c *Client) GetMemberByName(ctx context.Context, name string, useCache bool) (Member, error) {
	if useCache {
		c.cacheMu.Lock()
		cached, ok := c.memberNames[name]
		c.cacheMu.Unlock()
		if ok {
			return cached, nil
		}
	}
	var m Member
	if err := c.call(ctx, EventGetMemberByName, map[string]string{"name": name}, &m); err != nil {
		return Member{}, err
	}
	c.cacheMu.Lock()
	c.memberNames[name] = m
	c.cacheMu.Unlock()
	return m, nil
}

// GetOnlineMembers returns all currently connected members.
func (c *Client) GetOnlineMembers(ctx context.Context) []Member {
	var members []Member
	if err := c.call(ctx, EventGetOnlineMembers, map[string]string{}, &members); err != nil {
		c.logger.Warn("get online members failed", "error", err)
		return nil
	}
	return members
}

// GetChatOnlineMembers returns the currently connected members of chatID.
func (c *Client) GetChatOnlineMembers(ctx context.Context, chatID string) []Member {
	var members []Member
	if err := c.call(ctx, EventGetChatOnlineMembers, map[string]string{"chat_id": chatID}, &members); err != nil {
		c.logger.Warn("get chat online members failed", "chat_id", chatID, "error", err)
		return nil
	}
	return members
}

// LoadChatMessagesFromServer fetches chatID's server-side history. count -1
// means all messages.
func (c *Client) LoadChatMessagesFromServer(ctx context.Context, chatID string, count int) []Message {
	payload := map[string]any{"chat_id": chatID, "count": count}
	var msgs []Message
	if err := c.call(ctx, EventLoadChatMessagesFromServer, payload, &msgs); err != nil {
		c.logger.Warn("load chat messages failed", "chat_id", chatID, "error", err)
		return nil
	}
	return msgs
}

// --- Listening ---

// ListenInChat subscribes this member to chatID's messages without joining.
func (c *Client) ListenInChat(ctx context.Context, chatID string) error {
	return c.call(ctx, EventListenInChat, map[string]string{"chat_id": chatID}, nil)
}

// UnlistenInChat removes the subscription.
func (c *Client) UnlistenInChat(ctx context.Context, chatID string) error {
	return c.call(ctx, EventUnlistenInChat, map[string]string{"chat_id": chatID}, nil)
}

// GetListenInChats returns the chat ids this member listens in.
func (c *Client) GetListenInChats(ctx context.Context) []string {
	var ids []string
	if err := c.call(ctx, EventGetListenInChats, map[string]string{}, &ids); err != nil {
		c.logger.Warn("get listen-in chats failed", "error", err)
		return nil
	}
	return ids
}
