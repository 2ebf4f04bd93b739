package werewolf

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/parleyhq/parley"
)

const defaultGoal = "找出狼人并投票驱逐，帮助好人阵营获得胜利"

// Villager is an LLM player. The base type plays the plain villager role;
// Werewolf, Prophet, and Witch build on it with their night abilities. Each
// player answers the host's typed commands (vote, out, villager-info, ...)
// and speaks in the village chat when handed the turn.
type Villager struct {
	*parley.Agent

	role           Role
	style          string
	ability        string
	goal           string
	villagerChatID string
	provider       parley.Provider
	logger         *slog.Logger

	agentOpts []parley.AgentOption // collected before the Agent is built
	promptFn  func() string        // role variants refresh their persona here

	mu    sync.Mutex
	alive bool
}

// Option configures a Villager and its role variants.
type Option func(*Villager)

// WithStyle sets the player's speaking style, woven into its persona.
func WithStyle(s string) Option {
	return func(v *Villager) { v.style = s }
}

// WithProvider sets the LLM backend the player thinks with.
func WithProvider(p parley.Provider) Option {
	return func(v *Villager) { v.provider = p }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Villager) { v.logger = l }
}

// WithAgentOptions forwards options to the underlying parley.Agent.
func WithAgentOptions(opts ...parley.AgentOption) Option {
	return func(v *Villager) { v.agentOpts = append(v.agentOpts, opts...) }
}

// NewVillager creates a plain villager for the game hosted in
// villagerChatID.
func NewVillager(baseURL, name, villagerChatID string, opts ...Option) *Villager {
	return newPlayer(baseURL, name, villagerChatID, RoleVillager, "无特殊能力", opts...)
}

// newPlayer is the shared construction path for every role.
func newPlayer(baseURL, name, villagerChatID string, role Role, ability string, opts ...Option) *Villager {
	v := &Villager{
		role:           role,
		ability:        ability,
		goal:           defaultGoal,
		villagerChatID: villagerChatID,
		alive:          true,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	v.agentOpts = append(v.agentOpts,
		parley.WithProvider(v.provider),
		parley.WithReply(v.speak),
	)
	v.Agent = parley.NewAgent(baseURL, name, v.agentOpts...)
	v.registerCommands()
	return v
}

// Role returns the player's hidden identity.
func (v *Villager) Role() Role { return v.role }

// Alive reports whether the player is still in the game.
func (v *Villager) Alive() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.alive
}

// Prompt returns the player's current persona prompt.
func (v *Villager) Prompt() string {
	return BasePrompt(v.Name(), v.role, v.ability, v.goal, v.style)
}

// speak is the player's turn handler: persona plus the aggregated
// transcript, straight to the LLM.
func (v *Villager) speak(ctx context.Context, chatID string, msgs []parley.Message) (string, error) {
	return v.think(ctx, msgs, "")
}

// think asks the LLM with the player's persona, the given transcript, and
// an optional trailing instruction.
func (v *Villager) think(ctx context.Context, msgs []parley.Message, instruction string) (string, error) {
	if v.provider == nil {
		return "", &parley.ErrLLM{Provider: "werewolf", Message: "no provider configured"}
	}
	turns := parley.BuildChatContext(v.MemberID(), v.prompt(), msgs)
	if instruction != "" {
		turns = append(turns, parley.ChatMessage{Role: "user", Content: instruction})
	}
	resp, err := v.provider.Chat(ctx, parley.ChatRequest{Messages: turns})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// prompt is the persona in effect for the next LLM call; role variants
// refresh it through promptFn.
func (v *Villager) prompt() string {
	if v.promptFn != nil {
		return v.promptFn()
	}
	return v.Prompt()
}

// registerCommands wires the commands every player answers.
func (v *Villager) registerCommands() {
	reg := v.Commands()

	reg.Register("vote", func(data map[string]any) any {
		candidates := remove(stringSlice(data["candidates"]), v.Name())
		res, err := v.think(context.Background(), v.gameContext(), VotePrompt(candidates))
		if err != nil {
			v.logger.Error("vote failed", "name", v.Name(), "error", err)
			return ""
		}
		target := GetTarget(res, "VOTETO")
		v.logger.Info("voted", "name", v.Name(), "target", target)
		return target
	})

	reg.Register("out", func(map[string]any) any {
		v.mu.Lock()
		v.alive = false
		v.mu.Unlock()
		v.logger.Info("player out", "name", v.Name())
		return nil
	})

	reg.Register("be-saved", func(map[string]any) any {
		v.mu.Lock()
		defer v.mu.Unlock()
		if v.alive {
			v.logger.Info("no rescue needed", "name", v.Name())
			return nil
		}
		v.alive = true
		v.logger.Info("player saved", "name", v.Name())
		return nil
	})

	reg.Register("villager-info", func(map[string]any) any {
		return VillagerInfo{
			Name:     v.Name(),
			MemberID: v.MemberID(),
			Role:     v.role,
			IsAlive:  v.Alive(),
		}
	})

	reg.Register("clear-chat", func(data map[string]any) any {
		if chatID, ok := data["chat_id"].(string); ok {
			v.Memory().ClearChat(chatID)
		}
		return nil
	})
}

// gameContext is the player's full view of the game: the village chat plus
// any reference chats (the wolves' room, for wolves).
func (v *Villager) gameContext() []parley.Message {
	return v.Memory().ContextMessages(v.villagerChatID)
}

// Werewolf is a wolf player. It shares the wolves' private chat and keeps
// its persona in sync with its surviving teammates.
type Werewolf struct {
	*Villager

	werewolfChatID string

	teamMu    sync.Mutex
	teammates []string
}

// NewWerewolf creates a wolf playing in both the village chat and the
// wolves' private chat. The two chats reference each other so the wolf
// reasons over both transcripts wherever it speaks.
func NewWerewolf(baseURL, name, villagerChatID, werewolfChatID string, opts ...Option) *Werewolf {
	w := &Werewolf{werewolfChatID: werewolfChatID}
	w.Villager = newPlayer(baseURL, name, villagerChatID, RoleWerewolf,
		"在夜晚可以与其他狼人商议后袭击一名玩家", opts...)
	w.goal = "在白天学会伪装隐藏自己的真实身份，与其他狼人合作，消灭所有好人阵营玩家"
	w.promptFn = w.wolfPrompt

	w.AddReferenceChat(villagerChatID, werewolfChatID)
	w.AddReferenceChat(werewolfChatID, villagerChatID)

	w.Commands().Register("update-teammates", func(data map[string]any) any {
		teammates := remove(stringSlice(data["teammates"]), w.Name())
		w.teamMu.Lock()
		w.teammates = teammates
		w.teamMu.Unlock()
		w.logger.Info("teammates updated", "name", w.Name(), "teammates", teammates)
		return nil
	})
	return w
}

// Teammates returns the wolf's known surviving teammates.
func (w *Werewolf) Teammates() []string {
	w.teamMu.Lock()
	defer w.teamMu.Unlock()
	return append([]string(nil), w.teammates...)
}

func (w *Werewolf) wolfPrompt() string {
	teammates := w.Teammates()
	team := "所有队友已出局，你是最后的狼人"
	if len(teammates) > 0 {
		team = strings.Join(teammates, ", ")
	}
	return WerewolfPrompt(w.Name(), w.role, w.ability, w.goal, w.style, team)
}

// Prophet verifies one player's identity each night and carries the
// accumulated results in its persona.
type Prophet struct {
	*Villager

	verifyMu sync.Mutex
	verified []VerifyResult
}

// NewProphet creates the prophet.
func NewProphet(baseURL, name, villagerChatID string, opts ...Option) *Prophet {
	p := &Prophet{}
	p.Villager = newPlayer(baseURL, name, villagerChatID, RoleProphet,
		"每晚可以验证一名玩家的身份", opts...)
	p.promptFn = p.prophetPrompt

	p.Commands().Register("get-verify-target", func(data map[string]any) any {
		candidates := remove(stringSlice(data["candidates"]), p.Name())
		for _, v := range p.Verified() {
			candidates = remove(candidates, v.Name)
		}
		res, err := p.think(context.Background(), p.gameContext(), ProphetVerifyPrompt(candidates, p.Verified()))
		if err != nil {
			p.logger.Error("verify-target failed", "name", p.Name(), "error", err)
			return ""
		}
		return GetTarget(res, "VERIFY")
	})

	p.Commands().Register("verify-villager", func(data map[string]any) any {
		name, _ := data["name"].(string)
		role, _ := data["role"].(string)
		p.verifyMu.Lock()
		p.verified = append(p.verified, VerifyResult{Name: name, Role: Role(role)})
		p.verifyMu.Unlock()
		p.logger.Info("verified", "prophet", p.Name(), "target", name, "role", role)
		return true
	})
	return p
}

// Verified returns the prophet's verification results in order.
func (p *Prophet) Verified() []VerifyResult {
	p.verifyMu.Lock()
	defer p.verifyMu.Unlock()
	return append([]VerifyResult(nil), p.verified...)
}

func (p *Prophet) prophetPrompt() string {
	prompt := p.Prompt()
	results := p.Verified()
	if len(results) == 0 {
		return prompt
	}
	info := make([]string, 0, len(results))
	for _, v := range results {
		info = append(info, v.Name+"是"+string(v.Role))
	}
	return prompt + "\n重要！！！已验证的村民身份：" + strings.Join(info, ",")
}

// Witch holds one antidote and one poison, each usable once, at most one
// per night.
type Witch struct {
	*Villager

	potionMu sync.Mutex
	hasSave  bool
	hasKill  bool
}

// NewWitch creates the witch.
func NewWitch(baseURL, name, villagerChatID string, opts ...Option) *Witch {
	w := &Witch{hasSave: true, hasKill: true}
	w.Villager = newPlayer(baseURL, name, villagerChatID, RoleWitch,
		"每晚可以使用一瓶解药救人或使用一瓶毒药杀人，每种药水只能使用一次", opts...)

	w.Commands().Register("save-or-kill", func(data map[string]any) any {
		dead, _ := data["dead-villager"].(string)
		alive := stringSlice(data["alive-villagers"])

		w.potionMu.Lock()
		hasSave, hasKill := w.hasSave, w.hasKill
		w.potionMu.Unlock()

		res, err := w.think(context.Background(), w.gameContext(),
			WitchSavePrompt(dead, hasSave, hasKill, alive))
		if err != nil {
			w.logger.Error("save-or-kill failed", "name", w.Name(), "error", err)
			return "GIVEUP"
		}
		action := ExtractWitchAction(res)
		w.logger.Info("witch action", "name", w.Name(), "action", action)

		w.potionMu.Lock()
		switch {
		case action == "SAVE":
			w.hasSave = false
		case strings.HasPrefix(action, "KILL:"):
			w.hasKill = false
		}
		w.potionMu.Unlock()
		return action
	})
	return w
}

// Potions reports whether the antidote and poison are still available.
func (w *Witch) Potions() (hasSave, hasKill bool) {
	w.potionMu.Lock()
	defer w.potionMu.Unlock()
	return w.hasSave, w.hasKill
}

// ExtractWitchAction parses the witch's free-form reply into one of the
// three actions: "SAVE", "KILL:<name>", or "GIVEUP". Unparseable replies
// yield "".
func ExtractWitchAction(text string) string {
	upper := strings.ToUpper(text)
	if strings.Contains(upper, "SAVE") {
		return "SAVE"
	}
	if target := GetTarget(text, "KILL"); target != "" {
		return "KILL:" + target
	}
	if strings.Contains(upper, "GIVEUP") {
		return "GIVEUP"
	}
	return ""
}
