package werewolf

import "testing"

func TestDayInfoCopyOnWrite(t *testing.T) {
	d := NewDayInfo(1)
	d2 := d.WithWolfKill("张三").WithNightMessage("夜聊")

	if d.KilledByWolves != "" || len(d.NightMessages) != 0 {
		t.Errorf("original mutated: %+v", d)
	}
	if d2.KilledByWolves != "张三" || len(d2.NightMessages) != 1 {
		t.Errorf("copy missing updates: %+v", d2)
	}

	// Appending to a copy must not leak into siblings sharing the slice.
	d3 := d2.WithNightMessage("第二条")
	d4 := d2.WithNightMessage("另一条")
	if d3.NightMessages[1] == d4.NightMessages[1] {
		t.Errorf("sibling copies share backing slice: %q", d3.NightMessages[1])
	}
}

func TestDayLedger(t *testing.T) {
	l := NewDayLedger()

	if got := l.Day(1); got.DayNumber != 1 {
		t.Fatalf("Day(1).DayNumber = %d, want 1", got.DayNumber)
	}

	l.SetWolfKill(1, "张三")
	l.SetWitchSave(1, "张三")
	l.SetWitchKill(1, "李四")
	l.SetProphetVerify(1, VerifyResult{Name: "王五", Role: RoleVillager})
	l.AddNightMessage(1, "狼人商议")
	l.AddNightMessage(1, "ATTACK 张三 TERMINATE")
	l.SetVoteOut(2, "赵六")

	d1 := l.Day(1)
	if d1.KilledByWolves != "张三" || d1.SavedByWitch != "张三" || d1.KilledByWitch != "李四" {
		t.Errorf("day 1 night actions = %+v", d1)
	}
	if d1.VerifiedByProphet == nil || d1.VerifiedByProphet.Name != "王五" {
		t.Errorf("day 1 verify = %+v", d1.VerifiedByProphet)
	}
	if len(d1.NightMessages) != 2 {
		t.Errorf("day 1 night messages = %v", d1.NightMessages)
	}

	if got := l.Day(2).Out; got != "赵六" {
		t.Errorf("Day(2).Out = %q, want 赵六", got)
	}
	if got := l.Day(1).Out; got != "" {
		t.Errorf("Day(1).Out = %q, want empty", got)
	}
}
