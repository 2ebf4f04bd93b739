package werewolf

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/parleyhq/parley"
)

// scriptProvider returns canned replies in order and records every request.
type scriptProvider struct {
	mu      sync.Mutex
	replies []string
	reqs    []parley.ChatRequest
}

func (p *scriptProvider) Chat(_ context.Context, req parley.ChatRequest) (parley.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)
	if len(p.replies) == 0 {
		return parley.ChatResponse{}, &parley.ErrLLM{Provider: "script", Message: "no reply scripted"}
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return parley.ChatResponse{Content: reply}, nil
}

func (p *scriptProvider) Name() string { return "script" }

// lastRequest returns the most recent request sent to the provider.
func (p *scriptProvider) lastRequest(t *testing.T) parley.ChatRequest {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.reqs) == 0 {
		t.Fatal("provider was never called")
	}
	return p.reqs[len(p.reqs)-1]
}

func dispatch(t *testing.T, v *Villager, name string, data map[string]any) any {
	t.Helper()
	return v.Commands().Dispatch(parley.Command{Command: name, Data: data})
}

func TestVillagerVoteCommand(t *testing.T) {
	sp := &scriptProvider{replies: []string{"张三的发言前后矛盾。|VOTETO:张三|"}}
	v := NewVillager("http://broker", "李四", "c-village", WithProvider(sp))

	got := dispatch(t, v, "vote", map[string]any{"candidates": []any{"李四", "张三", "王五"}})
	if got != "张三" {
		t.Fatalf("vote = %v, want 张三", got)
	}

	// The ballot excludes the voter themselves.
	req := sp.lastRequest(t)
	instruction := req.Messages[len(req.Messages)-1].Content
	if !strings.Contains(instruction, "候选人：张三,王五") {
		t.Errorf("vote instruction = %q, want candidates without self", instruction)
	}
}

func TestVillagerVoteProviderFailure(t *testing.T) {
	sp := &scriptProvider{} // no replies scripted
	v := NewVillager("http://broker", "李四", "c-village", WithProvider(sp))

	if got := dispatch(t, v, "vote", map[string]any{"candidates": []any{"张三"}}); got != "" {
		t.Errorf("vote on provider failure = %v, want empty abstention", got)
	}
}

func TestVillagerOutAndSaved(t *testing.T) {
	v := NewVillager("http://broker", "李四", "c-village")
	if !v.Alive() {
		t.Fatal("new villager should be alive")
	}

	dispatch(t, v, "out", nil)
	if v.Alive() {
		t.Fatal("villager still alive after out")
	}

	dispatch(t, v, "be-saved", nil)
	if !v.Alive() {
		t.Fatal("villager still dead after be-saved")
	}

	// A rescue while alive is a no-op.
	dispatch(t, v, "be-saved", nil)
	if !v.Alive() {
		t.Fatal("redundant rescue flipped state")
	}
}

func TestVillagerInfoCommand(t *testing.T) {
	v := NewVillager("http://broker", "李四", "c-village",
		WithAgentOptions(parley.AgentClientOptions(parley.WithMemberID("m-4"))))

	got, ok := dispatch(t, v, "villager-info", nil).(VillagerInfo)
	if !ok {
		t.Fatal("villager-info did not return a VillagerInfo")
	}
	want := VillagerInfo{Name: "李四", MemberID: "m-4", Role: RoleVillager, IsAlive: true}
	if got != want {
		t.Errorf("villager-info = %+v, want %+v", got, want)
	}
}

func TestVillagerClearChat(t *testing.T) {
	v := NewVillager("http://broker", "李四", "c-village")
	v.Memory().AddMessage(parley.Message{MessageID: "1", ChatID: "c-village", Message: "旧消息"})

	dispatch(t, v, "clear-chat", map[string]any{"chat_id": "c-village"})
	if got := len(v.Memory().GetMessages("c-village")); got != 0 {
		t.Errorf("messages after clear-chat = %d, want 0", got)
	}
}

func TestWerewolfTeammatesAndPrompt(t *testing.T) {
	w := NewWerewolf("http://broker", "狼一", "c-village", "c-wolves")

	if got := w.Role(); got != RoleWerewolf {
		t.Fatalf("Role() = %q, want 狼人", got)
	}

	dispatch(t, w.Villager, "update-teammates", map[string]any{"teammates": []any{"狼一", "狼二", "狼三"}})
	teammates := w.Teammates()
	if len(teammates) != 2 || teammates[0] != "狼二" || teammates[1] != "狼三" {
		t.Fatalf("Teammates() = %v, want self removed", teammates)
	}
	if !strings.Contains(w.wolfPrompt(), "【狼二, 狼三】") {
		t.Errorf("wolf prompt missing teammates: %s", w.wolfPrompt())
	}
}

func TestWerewolfLastWolfPrompt(t *testing.T) {
	w := NewWerewolf("http://broker", "狼一", "c-village", "c-wolves")
	if !strings.Contains(w.wolfPrompt(), "所有队友已出局") {
		t.Errorf("lone wolf prompt missing fallback: %s", w.wolfPrompt())
	}
}

func TestWerewolfReferenceChats(t *testing.T) {
	w := NewWerewolf("http://broker", "狼一", "c-village", "c-wolves")

	refs := w.Memory().ReferenceChats("c-village")
	if len(refs) != 1 || refs[0] != "c-wolves" {
		t.Errorf("village references = %v, want [c-wolves]", refs)
	}
	refs = w.Memory().ReferenceChats("c-wolves")
	if len(refs) != 1 || refs[0] != "c-village" {
		t.Errorf("wolves references = %v, want [c-village]", refs)
	}
}

func TestProphetVerifyCycle(t *testing.T) {
	sp := &scriptProvider{replies: []string{"|VERIFY:张三|", "|VERIFY:王五|"}}
	p := NewProphet("http://broker", "预言家", "c-village", WithProvider(sp))

	got := dispatch(t, p.Villager, "get-verify-target", map[string]any{"candidates": []any{"预言家", "张三", "王五"}})
	if got != "张三" {
		t.Fatalf("first verify target = %v, want 张三", got)
	}

	dispatch(t, p.Villager, "verify-villager", map[string]any{"name": "张三", "role": "狼人"})
	verified := p.Verified()
	if len(verified) != 1 || verified[0] != (VerifyResult{Name: "张三", Role: RoleWerewolf}) {
		t.Fatalf("Verified() = %v", verified)
	}
	if !strings.Contains(p.prophetPrompt(), "张三是狼人") {
		t.Errorf("prophet prompt missing verified identity: %s", p.prophetPrompt())
	}

	// Already-verified players drop out of the candidate list.
	dispatch(t, p.Villager, "get-verify-target", map[string]any{"candidates": []any{"预言家", "张三", "王五"}})
	req := sp.lastRequest(t)
	instruction := req.Messages[len(req.Messages)-1].Content
	if !strings.Contains(instruction, "可验证的玩家：王五") {
		t.Errorf("second verify instruction = %q, want 张三 excluded", instruction)
	}
}

func TestWitchSave(t *testing.T) {
	sp := &scriptProvider{replies: []string{"他很重要，SAVE"}}
	w := NewWitch("http://broker", "女巫", "c-village", WithProvider(sp))

	got := dispatch(t, w.Villager, "save-or-kill",
		map[string]any{"dead-villager": "张三", "alive-villagers": []any{"女巫", "李四"}})
	if got != "SAVE" {
		t.Fatalf("save-or-kill = %v, want SAVE", got)
	}
	hasSave, hasKill := w.Potions()
	if hasSave || !hasKill {
		t.Errorf("Potions() = %v, %v, want antidote spent", hasSave, hasKill)
	}
}

func TestWitchKill(t *testing.T) {
	sp := &scriptProvider{replies: []string{"他太可疑了。|KILL:李四|"}}
	w := NewWitch("http://broker", "女巫", "c-village", WithProvider(sp))

	got := dispatch(t, w.Villager, "save-or-kill",
		map[string]any{"dead-villager": "张三", "alive-villagers": []any{"李四"}})
	if got != "KILL:李四" {
		t.Fatalf("save-or-kill = %v, want KILL:李四", got)
	}
	hasSave, hasKill := w.Potions()
	if !hasSave || hasKill {
		t.Errorf("Potions() = %v, %v, want poison spent", hasSave, hasKill)
	}
}

func TestWitchGiveUpOnProviderFailure(t *testing.T) {
	sp := &scriptProvider{} // no replies scripted
	w := NewWitch("http://broker", "女巫", "c-village", WithProvider(sp))

	got := dispatch(t, w.Villager, "save-or-kill",
		map[string]any{"dead-villager": "张三", "alive-villagers": []any{"李四"}})
	if got != "GIVEUP" {
		t.Fatalf("save-or-kill on failure = %v, want GIVEUP", got)
	}
	if hasSave, hasKill := w.Potions(); !hasSave || !hasKill {
		t.Errorf("potions consumed despite failure: %v, %v", hasSave, hasKill)
	}
}

func TestExtractWitchAction(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"我决定救人，SAVE", "SAVE"},
		{"save", "SAVE"},
		{"毒死他。|KILL:张三|", "KILL:张三"},
		{"今晚放弃，GIVEUP", "GIVEUP"},
		{"giveup", "GIVEUP"},
		{"不知道该怎么办", ""},
	}
	for _, tt := range tests {
		if got := ExtractWitchAction(tt.text); got != tt.want {
			t.Errorf("ExtractWitchAction(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
