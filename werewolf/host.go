package werewolf

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/parleyhq/parley"
)

// BaseHost is the game master's foundation: a chat manager that knows the
// players, polls their state through the villager-info command, and walks
// the alive roster for speaking order.
type BaseHost struct {
	*parley.Manager

	villagerIDs []string
	logger      *slog.Logger

	infoMu    sync.Mutex
	villagers []VillagerInfo
}

func newBaseHost(mgr *parley.Manager, villagerIDs []string, logger *slog.Logger) *BaseHost {
	if logger == nil {
		logger = slog.Default()
	}
	return &BaseHost{
		Manager:     mgr,
		villagerIDs: append([]string(nil), villagerIDs...),
		logger:      logger,
	}
}

// SetVillagers replaces the player roster. Call before the game starts,
// once every player has registered with the broker.
func (h *BaseHost) SetVillagers(memberIDs []string) {
	h.infoMu.Lock()
	h.villagerIDs = append([]string(nil), memberIDs...)
	h.infoMu.Unlock()
}

// UpdateVillagersInfo refreshes the host's roster by querying every player.
func (h *BaseHost) UpdateVillagersInfo(ctx context.Context) []VillagerInfo {
	h.infoMu.Lock()
	ids := append([]string(nil), h.villagerIDs...)
	h.infoMu.Unlock()
	results := h.SendCommand(ctx, "villager-info", ids, nil)
	villagers := make([]VillagerInfo, 0, len(results))
	for _, r := range results {
		var v VillagerInfo
		if err := decodeResult(r.Result, &v); err != nil {
			h.logger.Warn("bad villager-info result", "error", err)
			continue
		}
		villagers = append(villagers, v)
	}
	h.infoMu.Lock()
	h.villagers = villagers
	h.infoMu.Unlock()
	return villagers
}

// Villagers returns the roster from the last refresh.
func (h *BaseHost) Villagers() []VillagerInfo {
	h.infoMu.Lock()
	defer h.infoMu.Unlock()
	return append([]VillagerInfo(nil), h.villagers...)
}

// VillagerByID refreshes the roster and returns the player with memberID.
func (h *BaseHost) VillagerByID(ctx context.Context, memberID string) *VillagerInfo {
	for _, v := range h.UpdateVillagersInfo(ctx) {
		if v.MemberID == memberID {
			return &v
		}
	}
	return nil
}

// VillagerByName refreshes the roster and returns the player named name.
func (h *BaseHost) VillagerByName(ctx context.Context, name string) *VillagerInfo {
	for _, v := range h.UpdateVillagersInfo(ctx) {
		if v.Name == name {
			return &v
		}
	}
	return nil
}

// AliveVillagers returns every player still in the game, in roster order.
func (h *BaseHost) AliveVillagers(ctx context.Context) []VillagerInfo {
	var alive []VillagerInfo
	for _, v := range h.UpdateVillagersInfo(ctx) {
		if v.IsAlive {
			alive = append(alive, v)
		}
	}
	return alive
}

// Wolves returns every wolf, dead or alive.
func (h *BaseHost) Wolves(ctx context.Context) []VillagerInfo {
	var wolves []VillagerInfo
	for _, v := range h.UpdateVillagersInfo(ctx) {
		if v.Role == RoleWerewolf {
			wolves = append(wolves, v)
		}
	}
	return wolves
}

// AliveWolves returns the wolves still in the game.
func (h *BaseHost) AliveWolves(ctx context.Context) []VillagerInfo {
	var wolves []VillagerInfo
	for _, v := range h.UpdateVillagersInfo(ctx) {
		if v.Role == RoleWerewolf && v.IsAlive {
			wolves = append(wolves, v)
		}
	}
	return wolves
}

// FirstAlivePlayer returns the first alive player, or nil when everyone is
// out.
func (h *BaseHost) FirstAlivePlayer(ctx context.Context) *VillagerInfo {
	alive := h.AliveVillagers(ctx)
	if len(alive) == 0 {
		return nil
	}
	return &alive[0]
}

// NextAliveVillager returns the alive player after currentID in roster
// order, or nil once the round is complete. An unknown currentID restarts
// the round at the first alive player.
func (h *BaseHost) NextAliveVillager(ctx context.Context, currentID string) *VillagerInfo {
	alive := h.AliveVillagers(ctx)
	if len(alive) == 0 {
		return nil
	}
	for i, v := range alive {
		if v.MemberID == currentID {
			if i+1 < len(alive) {
				return &alive[i+1]
			}
			return nil
		}
	}
	return &alive[0]
}

// NextAliveWolf returns the alive wolf after currentID, cycling back to the
// first so the wolves keep talking until they agree.
func (h *BaseHost) NextAliveWolf(ctx context.Context, currentID string) *VillagerInfo {
	wolves := h.AliveWolves(ctx)
	if len(wolves) == 0 {
		return nil
	}
	for i, w := range wolves {
		if w.MemberID == currentID {
			return &wolves[(i+1)%len(wolves)]
		}
	}
	return &wolves[0]
}

// Out removes a player from the game and refreshes the roster.
func (h *BaseHost) Out(ctx context.Context, memberID string) {
	h.SendCommand(ctx, "out", []string{memberID}, nil)
	h.UpdateVillagersInfo(ctx)
}

// CheckGameOver reports whether either side has won: the good side when all
// wolves are out, the wolves when they match or outnumber the rest.
func (h *BaseHost) CheckGameOver(ctx context.Context) bool {
	var aliveWolves, aliveOthers int
	for _, v := range h.UpdateVillagersInfo(ctx) {
		if !v.IsAlive {
			continue
		}
		if v.Role == RoleWerewolf {
			aliveWolves++
		} else {
			aliveOthers++
		}
	}
	if aliveWolves == 0 {
		h.logger.Info("game over", "winner", "好人阵营")
		return true
	}
	if aliveOthers <= aliveWolves {
		h.logger.Info("game over", "winner", "狼人阵营")
		return true
	}
	return false
}

// GameHost drives the full day and night cycle: wolf kill, prophet verify,
// witch potion, death report, speeches, vote, last words. It reacts to the
// players' messages in the village and wolves chats, stepping a phase
// machine keyed by State. Inconsistent game state, such as a vote for a
// player that does not exist, is a logic error and panics.
type GameHost struct {
	*BaseHost

	villagersChatID string
	wolvesChatID    string

	mu       sync.Mutex
	state    State
	gameTime GameTime
	ledger   *DayLedger
	handlers map[State]func(ctx context.Context, msg parley.Message)

	mgrOpts []parley.ManagerOption
}

// HostOption configures a GameHost.
type HostOption func(*GameHost)

// WithHostLogger sets the structured logger.
func WithHostLogger(l *slog.Logger) HostOption {
	return func(h *GameHost) { h.mgrOpts = append(h.mgrOpts, parley.ManagerAgentOptions(parley.AgentLogger(l))) }
}

// WithManagerOptions forwards options to the underlying parley.Manager.
func WithManagerOptions(opts ...parley.ManagerOption) HostOption {
	return func(h *GameHost) { h.mgrOpts = append(h.mgrOpts, opts...) }
}

// NewGameHost creates the game master for the given players. Attach the two
// chats with SetChats before starting the game.
func NewGameHost(baseURL, name string, villagerIDs []string, opts ...HostOption) *GameHost {
	h := &GameHost{
		state:    StateInit,
		gameTime: NewGameTime(),
		ledger:   NewDayLedger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	mgr := parley.NewManager(baseURL, name, h.mgrOpts...)
	h.BaseHost = newBaseHost(mgr, villagerIDs, mgr.Logger())

	// Phases without an entry here advance themselves; player messages
	// arriving during them are mirrored and otherwise ignored.
	h.handlers = map[State]func(context.Context, parley.Message){
		StateNightStart: h.handleNightStart,
		StateWolfKill:   h.handleWolfKill,
		StateSpeech:     h.handleSpeech,
		StateVoting:     func(ctx context.Context, _ parley.Message) { h.handleVoting(ctx) },
		StateWill:       h.handleWill,
	}

	// The host paces the game itself, so the manager's automatic
	// turn-advance is replaced with the phase machine.
	h.Client.OnMessage = h.onMessage
	return h
}

// SetChats attaches the village chat and the wolves' private chat.
func (h *GameHost) SetChats(villagersChatID, wolvesChatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.villagersChatID = villagersChatID
	h.wolvesChatID = wolvesChatID
}

// State returns the current phase.
func (h *GameHost) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Time returns the in-game clock.
func (h *GameHost) Time() GameTime {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gameTime
}

// Ledger returns the per-day record of night actions and votes.
func (h *GameHost) Ledger() *DayLedger { return h.ledger }

// InitGame loads the roster and arms the night-start phase.
func (h *GameHost) InitGame(ctx context.Context) {
	h.UpdateVillagersInfo(ctx)
	h.mu.Lock()
	h.state = StateNightStart
	h.mu.Unlock()
}

// onMessage mirrors the message and feeds it to the current phase handler.
func (h *GameHost) onMessage(msg parley.Message) {
	h.Memory().AddMessage(msg)

	h.mu.Lock()
	defer h.mu.Unlock()
	if msg.ChatID != h.villagersChatID && msg.ChatID != h.wolvesChatID {
		return
	}
	handler, ok := h.handlers[h.state]
	if !ok {
		h.logger.Debug("message outside handled phase", "state", h.state, "from", msg.FromMemberName)
		return
	}
	handler(context.Background(), msg)
}

// StartNightPhase closes the village's eyes and opens the wolves'.
func (h *GameHost) StartNightPhase(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.startNightPhase(ctx)
}

func (h *GameHost) startNightPhase(ctx context.Context) {
	h.logger.Info("night begins", "time", h.gameTime.String())
	h.state = StateNightStart
	h.SendMessage(ctx, h.villagersChatID, "天黑请闭眼。")
	h.startWolfDiscussion(ctx)
}

// StartDayPhase opens the village's eyes and reports the night's deaths.
func (h *GameHost) StartDayPhase(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ledger.Day(h.gameTime.DayNumber)
	h.state = StateDayStart
	h.SendMessage(ctx, h.villagersChatID, "天亮了，请大家睁眼。")
	h.handleDeathReport(ctx)
}

func (h *GameHost) handleNightStart(ctx context.Context, _ parley.Message) {
	h.startWolfDiscussion(ctx)
}

// startWolfDiscussion announces the night's targets in the wolves chat and
// hands the first wolf the floor.
func (h *GameHost) startWolfDiscussion(ctx context.Context) {
	wolves := h.AliveWolves(ctx)
	if len(wolves) == 0 {
		h.logger.Error("no wolves left, discussion aborted")
		return
	}
	var targets []string
	for _, v := range h.AliveVillagers(ctx) {
		if v.Role != RoleWerewolf {
			targets = append(targets, v.Name)
		}
	}
	if len(targets) == 0 {
		h.logger.Error("no targets left, discussion aborted")
		return
	}

	wolfNames := make([]string, 0, len(wolves))
	for _, w := range wolves {
		wolfNames = append(wolfNames, w.Name)
	}
	h.logger.Info("wolf discussion begins", "wolves", wolfNames, "targets", targets)

	h.state = StateWolfKill
	h.SendMessage(ctx, h.wolvesChatID, fmt.Sprintf(
		"狼人请睁眼。\n"+
			"今晚的狼人们：%s\n"+
			"可以袭击的目标：%s\n"+
			"请狼人们进行讨论，轮流发言，最后投票选择要袭击的目标。\n"+
			"在%s发言时对之前的狼人队友发言进行汇总，请在消息中同时包含最终目标和\"TERMINATE\"，如：\"ATTACK 全名 TERMINATE\"",
		strings.Join(wolfNames, ", "), strings.Join(targets, ", "), wolfNames[len(wolfNames)-1]))

	h.ChooseNextSpeaker(h.wolvesChatID, wolves[0].MemberID)
}

// handleWolfKill records each wolf's message and either passes the floor or,
// once the closing sentinel appears, resolves the kill.
func (h *GameHost) handleWolfKill(ctx context.Context, msg parley.Message) {
	if msg.ChatID != h.wolvesChatID {
		return
	}
	h.ledger.AddNightMessage(h.gameTime.DayNumber, msg.Message)

	if IsAttackSentinel(msg.Message) {
		h.state = StateWolfKillResult
		h.handleWolfKillResult(ctx)
		return
	}
	if next := h.NextAliveWolf(ctx, msg.FromMemberID); next != nil {
		h.ChooseNextSpeaker(h.wolvesChatID, next.MemberID)
	}
}

// handleWolfKillResult applies the wolves' decision and moves to the
// prophet.
func (h *GameHost) handleWolfKillResult(ctx context.Context) {
	if killed := h.processWolfKill(ctx); killed != "" {
		h.ledger.SetWolfKill(h.gameTime.DayNumber, killed)
		if player := h.VillagerByName(ctx, killed); player != nil {
			h.Out(ctx, player.MemberID)
		}
	}
	h.state = StateProphetVerify
	h.handleProphetVerify(ctx)
}

// processWolfKill finds the closing sentinel in the wolves' transcript and
// announces the victim.
func (h *GameHost) processWolfKill(ctx context.Context) string {
	msgs := h.Memory().GetMessages(h.wolvesChatID)
	for i := len(msgs) - 1; i >= 0; i-- {
		if !IsAttackSentinel(msgs[i].Message) {
			continue
		}
		target := AttackTarget(msgs[i].Message)
		if target != "" {
			h.SendMessage(ctx, h.wolvesChatID, fmt.Sprintf("狼人们一致决定袭击 %s。狼人请闭眼。", target))
		}
		return target
	}
	return ""
}

// handleProphetVerify lets the prophet check one player, then moves to the
// witch.
func (h *GameHost) handleProphetVerify(ctx context.Context) {
	prophet := h.aliveByRole(ctx, RoleProphet)
	if prophet == nil {
		h.state = StateWitchSave
		h.handleWitchSaveOrKill(ctx)
		return
	}

	var candidates []string
	for _, v := range h.AliveVillagers(ctx) {
		if v.Name != prophet.Name {
			candidates = append(candidates, v.Name)
		}
	}
	if len(candidates) == 0 {
		panic("werewolf: prophet has no verify candidates")
	}

	results := h.SendCommand(ctx, "get-verify-target", []string{prophet.MemberID},
		map[string]any{"candidates": candidates})
	if len(results) == 0 {
		panic("werewolf: get-verify-target returned no result")
	}
	target, _ := results[0].Result.(string)
	if target == "" {
		panic("werewolf: prophet chose no verify target")
	}
	player := h.VillagerByName(ctx, target)
	if player == nil {
		panic(fmt.Sprintf("werewolf: verify target %q not found", target))
	}

	h.SendCommand(ctx, "verify-villager", []string{prophet.MemberID},
		map[string]any{"name": player.Name, "role": string(player.Role)})
	h.ledger.SetProphetVerify(h.gameTime.DayNumber, VerifyResult{Name: player.Name, Role: player.Role})

	h.state = StateWitchSave
	h.handleWitchSaveOrKill(ctx)
}

// handleWitchSaveOrKill offers the witch her potions, then turns the night
// into day.
func (h *GameHost) handleWitchSaveOrKill(ctx context.Context) {
	killed := h.ledger.Day(h.gameTime.DayNumber).KilledByWolves
	witch := h.aliveByRole(ctx, RoleWitch)

	if witch != nil && killed != "" {
		saved, poisoned := h.witchAction(ctx, witch, killed)
		if saved {
			h.ledger.SetWitchSave(h.gameTime.DayNumber, killed)
			if player := h.VillagerByName(ctx, killed); player != nil {
				h.SendCommand(ctx, "be-saved", []string{player.MemberID}, nil)
			}
		}
		if poisoned != "" {
			h.ledger.SetWitchKill(h.gameTime.DayNumber, poisoned)
			if player := h.VillagerByName(ctx, poisoned); player != nil {
				h.Out(ctx, player.MemberID)
			}
		}
	} else if witch == nil {
		h.logger.Info("witch is out, night action skipped")
	}

	h.state = StateDayStart
	h.gameTime.NextPhase()
	h.handleDayStart(ctx)
}

func (h *GameHost) handleDayStart(ctx context.Context) {
	h.state = StateDeathReport
	h.handleDeathReport(ctx)
}

// handleDeathReport announces last night's deaths and opens the speeches.
func (h *GameHost) handleDeathReport(ctx context.Context) {
	dayInfo := h.ledger.Day(h.gameTime.DayNumber - 1)
	h.logger.Info("death report", "day", h.gameTime.DayNumber, "night", fmt.Sprintf("%+v", dayInfo))

	var deaths []string
	if dayInfo.KilledByWolves != "" && dayInfo.SavedByWitch == "" {
		deaths = append(deaths, dayInfo.KilledByWolves)
	}
	if dayInfo.KilledByWitch != "" {
		deaths = append(deaths, dayInfo.KilledByWitch)
	}

	if len(deaths) > 0 {
		h.SendMessage(ctx, h.villagersChatID, fmt.Sprintf("昨晚，%s 玩家死亡。", strings.Join(deaths, ", ")))
	} else {
		h.SendMessage(ctx, h.villagersChatID, "昨晚是平安夜，没有玩家死亡。")
	}

	if h.CheckGameOver(ctx) {
		h.state = StateGameOver
		return
	}
	h.state = StateSpeech
	if first := h.FirstAlivePlayer(ctx); first != nil {
		h.ChooseNextSpeaker(h.villagersChatID, first.MemberID)
	}
}

// handleSpeech passes the floor down the alive roster, then opens the vote.
func (h *GameHost) handleSpeech(ctx context.Context, msg parley.Message) {
	if next := h.NextAliveVillager(ctx, msg.FromMemberID); next != nil {
		h.ChooseNextSpeaker(msg.ChatID, next.MemberID)
		return
	}
	h.state = StateVoting
	h.handleVoting(ctx)
}

// handleVoting collects everyone's ballot, exiles the most voted player,
// and asks for their last words.
func (h *GameHost) handleVoting(ctx context.Context) {
	alive := h.AliveVillagers(ctx)
	ids := make([]string, 0, len(alive))
	names := make([]string, 0, len(alive))
	for _, v := range alive {
		ids = append(ids, v.MemberID)
		names = append(names, v.Name)
	}

	results := h.SendCommand(ctx, "vote", ids, map[string]any{"candidates": names})
	votes := make([]string, 0, len(results))
	for _, r := range results {
		if vote, ok := r.Result.(string); ok && vote != "" {
			votes = append(votes, vote)
		}
	}

	mostVoted := MostVoted(votes)
	player := h.VillagerByName(ctx, mostVoted)
	if player == nil {
		panic(fmt.Sprintf("werewolf: vote winner %q not found", mostVoted))
	}

	h.Out(ctx, player.MemberID)
	h.ledger.SetVoteOut(h.gameTime.DayNumber, mostVoted)

	if h.CheckGameOver(ctx) {
		h.state = StateGameOver
		return
	}
	h.state = StateWill
	h.SendMessage(ctx, h.villagersChatID, fmt.Sprintf("%s 被驱逐，请发表遗言。", mostVoted))
	h.ChooseNextSpeaker(h.villagersChatID, player.MemberID)
}

// handleWill closes the day after the exiled player's last words.
func (h *GameHost) handleWill(ctx context.Context, msg parley.Message) {
	h.logger.Info("last words", "from", msg.FromMemberName, "message", msg.Message)
	h.gameTime.NextPhase()
	h.startNightPhase(ctx)
}

// witchAction asks the witch what to do about tonight's victim and parses
// her answer.
func (h *GameHost) witchAction(ctx context.Context, witch *VillagerInfo, killed string) (saved bool, poisoned string) {
	var alive []string
	for _, v := range h.AliveVillagers(ctx) {
		alive = append(alive, v.Name)
	}
	results := h.SendCommand(ctx, "save-or-kill", []string{witch.MemberID},
		map[string]any{"dead-villager": killed, "alive-villagers": alive})
	if len(results) == 0 {
		return false, ""
	}
	action, _ := results[0].Result.(string)
	if action == "SAVE" {
		return true, ""
	}
	if strings.HasPrefix(action, "KILL:") {
		return false, strings.TrimPrefix(action, "KILL:")
	}
	return false, ""
}

// aliveByRole returns the first alive player with the given role, or nil.
func (h *GameHost) aliveByRole(ctx context.Context, role Role) *VillagerInfo {
	for _, v := range h.UpdateVillagersInfo(ctx) {
		if v.Role == role && v.IsAlive {
			return &v
		}
	}
	return nil
}
