package werewolf

import "testing"

func TestMostVoted(t *testing.T) {
	tests := []struct {
		name  string
		votes []string
		want  string
	}{
		{"majority", []string{"张三", "李四", "张三"}, "张三"},
		{"tie breaks first seen", []string{"李四", "张三", "张三", "李四"}, "李四"},
		{"single vote", []string{"王五"}, "王五"},
		{"empty ballot", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MostVoted(tt.votes); got != tt.want {
				t.Errorf("MostVoted(%v) = %q, want %q", tt.votes, got, tt.want)
			}
		})
	}
}

func TestGetTarget(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		keyword string
		want    string
	}{
		{"vote directive", "我怀疑他。|VOTETO:张三|", "VOTETO", "张三"},
		{"verify directive", "先验一下 |VERIFY:李四| 吧", "VERIFY", "李四"},
		{"kill directive", "|KILL:王五|", "KILL", "王五"},
		{"keyword mismatch", "|VOTETO:张三|", "VERIFY", ""},
		{"no directive", "今晚大家都很可疑", "VOTETO", ""},
		{"unterminated", "|VOTETO:张三", "VOTETO", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetTarget(tt.text, tt.keyword); got != tt.want {
				t.Errorf("GetTarget(%q, %q) = %q, want %q", tt.text, tt.keyword, got, tt.want)
			}
		})
	}
}

func TestAttackTarget(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"chinese target", "大家同意了。ATTACK 张三 TERMINATE", "张三"},
		{"lowercase sentinel", "attack 张三 terminate", "张三"},
		{"latin target uppercased", "attack bob terminate", "BOB"},
		{"no sentinel", "今晚袭击张三吧", ""},
		{"attack without terminate", "ATTACK 张三", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AttackTarget(tt.text); got != tt.want {
				t.Errorf("AttackTarget(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestIsAttackSentinel(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"ATTACK 张三 TERMINATE", true},
		{"attack 张三 terminate", true},
		{"同意，terminate。目标 attack 张三", true}, // order-insensitive
		{"ATTACK 张三", false},
		{"TERMINATE", false},
		{"继续讨论", false},
	}
	for _, tt := range tests {
		if got := IsAttackSentinel(tt.text); got != tt.want {
			t.Errorf("IsAttackSentinel(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestGameTime(t *testing.T) {
	gt := NewGameTime()
	if gt.DayNumber != 1 || gt.IsDay {
		t.Fatalf("NewGameTime() = %+v, want day 1 night", gt)
	}
	if got, want := gt.String(), "第1天，夜晚"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	gt.NextPhase() // morning: day advances
	if gt.DayNumber != 2 || !gt.IsDay {
		t.Fatalf("after first NextPhase = %+v, want day 2 daytime", gt)
	}
	if got, want := gt.String(), "第2天，白天"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	gt.NextPhase() // nightfall: day holds
	if gt.DayNumber != 2 || gt.IsDay {
		t.Fatalf("after second NextPhase = %+v, want day 2 night", gt)
	}
}

func TestStateString(t *testing.T) {
	if got, want := StateWolfKill.String(), "WOLF_KILL"; got != want {
		t.Errorf("StateWolfKill.String() = %q, want %q", got, want)
	}
	if got, want := State(99).String(), "State(99)"; got != want {
		t.Errorf("State(99).String() = %q, want %q", got, want)
	}
}

func TestStringSlice(t *testing.T) {
	got := stringSlice([]any{"a", 1, "b", nil})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("stringSlice dropped wrong entries: %v", got)
	}
	if got := stringSlice("not a slice"); got != nil {
		t.Errorf("stringSlice(string) = %v, want nil", got)
	}
}

func TestDecodeResult(t *testing.T) {
	in := map[string]any{"name": "张三", "member_id": "m-1", "role": "狼人", "is_alive": true}
	var v VillagerInfo
	if err := decodeResult(in, &v); err != nil {
		t.Fatalf("decodeResult() error = %v", err)
	}
	want := VillagerInfo{Name: "张三", MemberID: "m-1", Role: RoleWerewolf, IsAlive: true}
	if v != want {
		t.Errorf("decodeResult() = %+v, want %+v", v, want)
	}
}
