package werewolf

import "sync"

// VerifyResult is one prophet verification: who was checked and what they
// turned out to be.
type VerifyResult struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// DayInfo records everything that happened on one game day. Values are
// immutable once stored: every setter returns a fresh copy, and the ledger
// swaps the new record in under the day's key.
type DayInfo struct {
	DayNumber         int
	DaySummary        string
	Out               string // exiled by vote
	KilledByWolves    string
	SavedByWitch      string
	KilledByWitch     string
	VerifiedByProphet *VerifyResult
	DayMessages       []string
	NightMessages     []string
}

// NewDayInfo returns an empty record for day n.
func NewDayInfo(n int) DayInfo {
	return DayInfo{DayNumber: n}
}

func (d DayInfo) WithWolfKill(target string) DayInfo {
	d.KilledByWolves = target
	return d
}

func (d DayInfo) WithWitchSave(target string) DayInfo {
	d.SavedByWitch = target
	return d
}

func (d DayInfo) WithWitchKill(target string) DayInfo {
	d.KilledByWitch = target
	return d
}

func (d DayInfo) WithProphetVerify(result VerifyResult) DayInfo {
	d.VerifiedByProphet = &result
	return d
}

func (d DayInfo) WithVoteOut(target string) DayInfo {
	d.Out = target
	return d
}

func (d DayInfo) WithNightMessage(msg string) DayInfo {
	d.NightMessages = append(append([]string(nil), d.NightMessages...), msg)
	return d
}

func (d DayInfo) WithDayMessage(msg string) DayInfo {
	d.DayMessages = append(append([]string(nil), d.DayMessages...), msg)
	return d
}

// DayLedger holds the per-day records, keyed by day number. Safe for
// concurrent use.
type DayLedger struct {
	mu   sync.Mutex
	days map[int]DayInfo
}

// NewDayLedger returns an empty ledger.
func NewDayLedger() *DayLedger {
	return &DayLedger{days: make(map[int]DayInfo)}
}

// Day returns day n's record, creating an empty one if absent.
func (l *DayLedger) Day(n int) DayInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dayLocked(n)
}

func (l *DayLedger) dayLocked(n int) DayInfo {
	d, ok := l.days[n]
	if !ok {
		d = NewDayInfo(n)
		l.days[n] = d
	}
	return d
}

// update swaps in fn's copy of day n's record.
func (l *DayLedger) update(n int, fn func(DayInfo) DayInfo) DayInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := fn(l.dayLocked(n))
	l.days[n] = d
	return d
}

func (l *DayLedger) SetWolfKill(n int, target string) DayInfo {
	return l.update(n, func(d DayInfo) DayInfo { return d.WithWolfKill(target) })
}

func (l *DayLedger) SetWitchSave(n int, target string) DayInfo {
	return l.update(n, func(d DayInfo) DayInfo { return d.WithWitchSave(target) })
}

func (l *DayLedger) SetWitchKill(n int, target string) DayInfo {
	return l.update(n, func(d DayInfo) DayInfo { return d.WithWitchKill(target) })
}

func (l *DayLedger) SetProphetVerify(n int, result VerifyResult) DayInfo {
	return l.update(n, func(d DayInfo) DayInfo { return d.WithProphetVerify(result) })
}

func (l *DayLedger) SetVoteOut(n int, target string) DayInfo {
	return l.update(n, func(d DayInfo) DayInfo { return d.WithVoteOut(target) })
}

func (l *DayLedger) AddNightMessage(n int, msg string) DayInfo {
	return l.update(n, func(d DayInfo) DayInfo { return d.WithNightMessage(msg) })
}

func (l *DayLedger) AddDayMessage(n int, msg string) DayInfo {
	return l.update(n, func(d DayInfo) DayInfo { return d.WithDayMessage(msg) })
}
