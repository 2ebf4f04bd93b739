// Package werewolf implements a multi-agent Werewolf (狼人杀) game on top of
// the parley framework: LLM players with hidden roles, a host that drives
// the day/night phase machine over two chats, and typed commands for the
// night actions.
package werewolf

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// GameRule is the rule sheet shared with every player's persona prompt.
const GameRule = `狼人杀游戏规则：
游戏人数： 8人
游戏角色： 狼人x2,村民x4,预言家x1,女巫x1
进入夜晚时：狼人需要投票选择杀害一位玩家；预言家可以验证一位玩家身份；女巫有一次救人机会和杀人机会，一晚上只能选择救人或者杀人。
白天时：玩家依次发言，发言完毕后全员投票选择要驱逐的玩家。驱逐的玩家可发表遗言。`

// State is the host's phase.
type State int

const (
	StateInit State = iota

	// Day phases.
	StateDayStart
	StateDeathReport
	StateSpeech
	StateVoting
	StateVoteResult
	StateWill

	// Night phases.
	StateNightStart
	StateWolfKill
	StateWolfKillResult
	StateProphetVerify
	StateWitchSave
	StateWitchKill

	StateGameOver
)

var stateNames = map[State]string{
	StateInit:           "INIT",
	StateDayStart:       "DAY_START",
	StateDeathReport:    "DEATH_REPORT",
	StateSpeech:         "SPEECH",
	StateVoting:         "VOTING",
	StateVoteResult:     "VOTE_RESULT",
	StateWill:           "WILL",
	StateNightStart:     "NIGHT_START",
	StateWolfKill:       "WOLF_KILL",
	StateWolfKillResult: "WOLF_KILL_RESULT",
	StateProphetVerify:  "PROPHET_VERIFY",
	StateWitchSave:      "WITCH_SAVE",
	StateWitchKill:      "WITCH_KILL",
	StateGameOver:       "GAME_OVER",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Role is a player's hidden identity. The Chinese values are the wire and
// prompt representation.
type Role string

const (
	RoleWerewolf Role = "狼人"
	RoleVillager Role = "村民"
	RoleProphet  Role = "预言家"
	RoleWitch    Role = "女巫"
)

// GameTime tracks the in-game clock. Games start on night of day 1; the day
// number advances when night turns into day.
type GameTime struct {
	DayNumber int
	IsDay     bool
}

// NewGameTime returns the clock at the start of a game.
func NewGameTime() GameTime {
	return GameTime{DayNumber: 1}
}

// NextPhase flips between day and night, advancing the day number when
// morning comes.
func (t *GameTime) NextPhase() {
	t.IsDay = !t.IsDay
	if t.IsDay {
		t.DayNumber++
	}
}

func (t GameTime) String() string {
	phase := "夜晚"
	if t.IsDay {
		phase = "白天"
	}
	return fmt.Sprintf("第%d天，%s", t.DayNumber, phase)
}

// VillagerInfo is a player's state as reported by the villager-info command.
type VillagerInfo struct {
	Name     string `json:"name"`
	MemberID string `json:"member_id"`
	Role     Role   `json:"role"`
	IsAlive  bool   `json:"is_alive"`
}

// GetTarget extracts a |KEYWORD:target| directive from text, or "" when
// absent. Players embed these directives in otherwise free-form replies.
func GetTarget(text, keyword string) string {
	re := regexp.MustCompile(`\|` + regexp.QuoteMeta(keyword) + `:([^|]+)\|`)
	if m := re.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// attackRe parses the wolf discussion's closing sentinel, matched against
// the uppercased text.
var attackRe = regexp.MustCompile(`ATTACK\s+(\S+)\s+TERMINATE`)

// AttackTarget extracts the target from an "ATTACK <name> TERMINATE"
// sentinel, or "" when the text carries none.
func AttackTarget(text string) string {
	if m := attackRe.FindStringSubmatch(strings.ToUpper(text)); m != nil {
		return m[1]
	}
	return ""
}

// IsAttackSentinel reports whether text closes the wolf discussion.
func IsAttackSentinel(text string) bool {
	upper := strings.ToUpper(text)
	return strings.Contains(upper, "TERMINATE") && strings.Contains(upper, "ATTACK")
}

// MostVoted returns the option with the highest count. Ties break toward
// the option seen first in votes; an empty ballot yields "".
func MostVoted(votes []string) string {
	if len(votes) == 0 {
		return ""
	}
	counts := make(map[string]int)
	var order []string
	for _, v := range votes {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	winner := order[0]
	for _, v := range order[1:] {
		if counts[v] > counts[winner] {
			winner = v
		}
	}
	return winner
}

// decodeResult converts a command result that crossed the wire as generic
// JSON into a typed value.
func decodeResult(v, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// stringSlice coerces a decoded JSON array into []string, dropping
// non-string entries.
func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// remove returns items without every occurrence of drop.
func remove(items []string, drop string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item != drop {
			out = append(out, item)
		}
	}
	return out
}
