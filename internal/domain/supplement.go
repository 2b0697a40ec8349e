package domain

import (
	"fmt"
	"math"
	"strconv"
)

// Supplement is one trackable item with a daily schedule and per-channel
// reminder flags. The ID is assigned by the store on insert and is stable
// for the lifetime of the row.
type Supplement struct {
	ID           int
	RegimenID    int
	Name         string
	Amount       float64
	Units        string
	Time         TimeOfDay
	EmailEnabled bool
	TextEnabled  bool
	VoiceEnabled bool
	Notes        string
}

// ChannelEnabled reports the per-supplement flag for the given medium.
// The three flags are independent; any subset may be set.
func (s Supplement) ChannelEnabled(c Channel) bool {
	switch c {
	case ChannelEmail:
		return s.EmailEnabled
	case ChannelText:
		return s.TextEnabled
	case ChannelVoice:
		return s.VoiceEnabled
	}
	return false
}

// HasAnyReminder reports whether at least one channel flag is set.
func (s Supplement) HasAnyReminder() bool {
	return s.EmailEnabled || s.TextEnabled || s.VoiceEnabled
}

// FormattedAmount renders the amount for reminder text: at most two fraction
// digits rounded half-up, trailing zeros dropped, no thousands separators.
// 2.00 -> "2", 2.5 -> "2.5", 2.567 -> "2.57", 1234.5 -> "1234.5".
func (s Supplement) FormattedAmount() string {
	return FormatAmount(s.Amount)
}

func FormatAmount(v float64) string {
	r := math.Floor(v*100+0.5) / 100
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// JobName is the scheduler job name for this supplement, e.g. "suppID_1_job".
// The encoding is fixed; external tooling inspects persisted jobs by it.
func (s Supplement) JobName() string {
	return fmt.Sprintf("suppID_%d_job", s.ID)
}
